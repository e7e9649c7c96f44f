// Package storage talks to the S3-compatible object store that hosts expense
// form attachments.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/wibowo/expense-report/internal"
)

// BlobStore is what the expense and title services need from the store.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Copy(ctx context.Context, srcKey, dstKey string) (url string, err error)
	Delete(ctx context.Context, key string) error
}

type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

func NewS3Store(cfg internal.StorageConfig, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimSuffix(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		logger:    logger,
	}, nil
}

// NewObjectKey builds a collision-free key; the original file name stays at
// the end so downloads keep it.
func NewObjectKey(fileName string) string {
	d := time.Now()
	return fmt.Sprintf("attachments/%d/%02d/%s/%s", d.Year(), int(d.Month()), uuid.NewString(), fileName)
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("storage put failed", "key", key, "error", err)
		return "", wrapStorageError(err)
	}
	return s.ObjectURL(key), nil
}

func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(fmt.Sprintf("%s/%s", s.bucket, srcKey)),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		s.logger.Error("storage copy failed", "src_key", srcKey, "dst_key", dstKey, "error", err)
		return "", wrapStorageError(err)
	}
	return s.ObjectURL(dstKey), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("storage delete failed", "key", key, "error", err)
		return wrapStorageError(err)
	}
	return nil
}

func (s *S3Store) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}

// authExpirySubstrings are the provider error fragments that mean the store's
// credentials need re-authentication rather than the request being bad.
var authExpirySubstrings = []string{
	"InvalidAuthenticationToken",
	"token is expired",
	"ExpiredToken",
	"InvalidAccessKeyId",
}

// IsAuthExpired reports whether a storage error is an authentication expiry,
// which clients surface as a dedicated reconnect prompt instead of the
// generic failure banner.
func IsAuthExpired(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, fragment := range authExpirySubstrings {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func wrapStorageError(err error) error {
	if IsAuthExpired(err) {
		return internal.NewExternalError(
			"attachment storage authentication expired, please reconnect",
			internal.ErrCodeStorageAuthExpired,
			err,
		)
	}
	return internal.NewExternalError("attachment storage request failed", internal.ErrCodeStorageFailed, err)
}
