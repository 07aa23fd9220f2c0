package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

const boxThickness = 2

var boxColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}

// Annotate draws the detection bounding boxes onto the frame and
// re-encodes it as JPEG.
func Annotate(frame []byte, detections []models.Detection) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	canvas := image.NewRGBA(img.Bounds())
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	for _, d := range detections {
		if len(d.Box) < 4 {
			continue
		}
		r := image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3]))
		drawBorder(canvas, r.Intersect(canvas.Bounds()))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode annotated frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBorder(img *image.RGBA, r image.Rectangle) {
	if r.Empty() {
		return
	}
	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setIn(img, x, r.Min.Y+t)
			setIn(img, x, r.Max.Y-1-t)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setIn(img, r.Min.X+t, y)
			setIn(img, r.Max.X-1-t, y)
		}
	}
}

func setIn(img *image.RGBA, x, y int) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.Set(x, y, boxColor)
	}
}
