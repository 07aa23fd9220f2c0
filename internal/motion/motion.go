// Package motion implements the cheap frame-pair comparison that gates
// object detection. It is stateless: the caller supplies the previous
// frame's intensity plane on every call.
package motion

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
)

// Measure selects how the changed area of a binarized diff is counted.
type Measure string

const (
	// MeasureTotal counts every changed pixel.
	MeasureTotal Measure = "total"
	// MeasureRegion counts only the largest 4-connected changed region.
	MeasureRegion Measure = "region"
)

// Score is the result of comparing two consecutive frames.
type Score struct {
	Area    int
	Exceeds bool
}

// Detector holds the thresholds for one feed. Safe to copy; it carries
// no state between calls.
type Detector struct {
	DiffThreshold uint8
	MinArea       int
	Measure       Measure
}

// DecodeGray decodes an encoded frame into its intensity plane.
func DecodeGray(data []byte) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray, nil
}

// Score compares the current frame against the previous one. A nil
// previous frame seeds the baseline and never triggers. Frames of
// different sizes (e.g. a source that renegotiated resolution after a
// reconnect) are compared over the overlapping region only.
func (d Detector) Score(prev, cur *image.Gray) Score {
	if prev == nil || cur == nil {
		return Score{}
	}

	w := min(prev.Bounds().Dx(), cur.Bounds().Dx())
	h := min(prev.Bounds().Dy(), cur.Bounds().Dy())
	if w == 0 || h == 0 {
		return Score{}
	}

	mask := make([]bool, w*h)
	changed := 0
	for y := 0; y < h; y++ {
		po := prev.PixOffset(prev.Bounds().Min.X, prev.Bounds().Min.Y+y)
		co := cur.PixOffset(cur.Bounds().Min.X, cur.Bounds().Min.Y+y)
		for x := 0; x < w; x++ {
			diff := absDiff(prev.Pix[po+x], cur.Pix[co+x])
			if diff > d.DiffThreshold {
				mask[y*w+x] = true
				changed++
			}
		}
	}

	area := changed
	if d.Measure == MeasureRegion {
		area = largestRegion(mask, w, h)
	}
	return Score{Area: area, Exceeds: area >= d.MinArea}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// largestRegion runs a flood fill over the changed-pixel mask and
// returns the size of the biggest 4-connected component. The mask is
// consumed in the process.
func largestRegion(mask []bool, w, h int) int {
	best := 0
	var stack []int
	for start := range mask {
		if !mask[start] {
			continue
		}
		mask[start] = false
		stack = append(stack[:0], start)
		size := 0
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := idx%w, idx/w
			if x > 0 && mask[idx-1] {
				mask[idx-1] = false
				stack = append(stack, idx-1)
			}
			if x < w-1 && mask[idx+1] {
				mask[idx+1] = false
				stack = append(stack, idx+1)
			}
			if y > 0 && mask[idx-w] {
				mask[idx-w] = false
				stack = append(stack, idx-w)
			}
			if y < h-1 && mask[idx+w] {
				mask[idx+w] = false
				stack = append(stack, idx+w)
			}
		}
		if size > best {
			best = size
		}
	}
	return best
}
