// Package s3 implements domain.BlobStore over AWS S3, archiving raw Reddit
// submission/comment JSON payloads.
package s3

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/gabriel-vasile/mimetype"

	"github.com/therealityreport/socializer/internal/domain"
)

// Config configures the Store.
type Config struct {
	Region string
	Bucket string
}

// Store is a hand-rolled S3 PutObject archiver, grounded on the ingesters
// pack's session-then-client construction style.
type Store struct {
	client s3iface.S3API
	bucket string
	logger *slog.Logger
}

// New constructs a Store from an AWS session.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("op=s3.New session: %w", err)
	}
	return &Store{client: s3.New(sess), bucket: cfg.Bucket, logger: logger}, nil
}

var _ domain.BlobStore = (*Store)(nil)

// PutObject implements domain.BlobStore. When contentType is empty, it is
// sniffed from the body via mimetype.Detect for untrusted/uncategorized
// payloads.
func (s *Store) PutObject(ctx domain.Context, key string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("op=s3.PutObject key=%s: %w", key, err)
	}
	return nil
}
