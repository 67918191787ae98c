package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/V4T54L/medallion/internal/domain"
)

// NewSession builds an AWS session. endpoint and forcePathStyle allow
// S3-compatible stores such as MinIO or LocalStack.
func NewSession(region, endpoint string, forcePathStyle bool) (*session.Session, error) {
	cfg := &aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if forcePathStyle {
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return sess, nil
}

// Store implements domain.ObjectStore on a single S3 bucket.
type Store struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	logger   *slog.Logger
}

// New creates a store for bucket using sess.
func New(sess *session.Session, bucket string, logger *slog.Logger) *Store {
	client := s3.New(sess)
	return NewWithClients(client, s3manager.NewUploaderWithClient(client), bucket, logger)
}

// NewWithClients creates a store from explicit clients.
func NewWithClients(client s3iface.S3API, uploader s3manageriface.UploaderAPI, bucket string, logger *slog.Logger) *Store {
	return &Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		logger:   logger.With("component", "s3store", "bucket", bucket),
	}
}

// List pages through every object under prefix. When a page fails, the
// objects gathered so far are returned together with the error.
func (s *Store) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var objects []domain.ObjectInfo
	err := s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				info := domain.ObjectInfo{Key: aws.StringValue(obj.Key), Size: aws.Int64Value(obj.Size)}
				if obj.LastModified != nil {
					info.LastModified = obj.LastModified.UTC()
				}
				objects = append(objects, info)
			}
			return !lastPage
		})
	if err != nil {
		return objects, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, prefix, err)
	}
	return objects, nil
}

// Get downloads a whole object.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, domain.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Put uploads a whole object. S3 makes an object visible only once the
// upload completes.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Debug("object uploaded", "key", key, "bytes", len(data))
	return nil
}

// Delete removes an object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Debug("object deleted", "key", key)
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
