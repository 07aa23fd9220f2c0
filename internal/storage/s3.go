package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Capitan-Parrot/camera-sentry/internal/models"
)

// S3 stores artifacts in MinIO: raw captures in one bucket, annotated
// frames plus detections JSON in another, keyed <feed>/<timestamp>.
type S3 struct {
	client          *minio.Client
	captureBucket   string
	detectionBucket string
}

func NewS3(endpoint, accessKey, secretKey, captureBucket, detectionBucket string) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &S3{
		client:          client,
		captureBucket:   captureBucket,
		detectionBucket: detectionBucket,
	}, nil
}

func (s *S3) SaveCapture(ctx context.Context, feed string, frame models.Frame) (string, error) {
	key := fmt.Sprintf("%s/%s.jpg", feed, stamp(frame.Time))
	if err := s.put(ctx, s.captureBucket, key, frame.Bytes, "image/jpeg"); err != nil {
		return "", fmt.Errorf("save capture: %w", err)
	}
	return key, nil
}

func (s *S3) SaveDetection(ctx context.Context, feed string, frame models.Frame, detections []models.Detection) (string, error) {
	annotated, err := Annotate(frame.Bytes, detections)
	if err != nil {
		annotated = frame.Bytes
	}

	base := fmt.Sprintf("%s/%s", feed, stamp(frame.Time))
	if err := s.put(ctx, s.detectionBucket, base+".jpg", annotated, "image/jpeg"); err != nil {
		return "", fmt.Errorf("save detection image: %w", err)
	}

	meta, err := json.Marshal(detections)
	if err != nil {
		return "", fmt.Errorf("failed to marshal detections: %w", err)
	}
	if err := s.put(ctx, s.detectionBucket, base+".json", meta, "application/json"); err != nil {
		return "", fmt.Errorf("save detection metadata: %w", err)
	}
	return base + ".jpg", nil
}

func (s *S3) put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(
		ctx,
		bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to save %s to S3: %w", key, err)
	}
	return nil
}
