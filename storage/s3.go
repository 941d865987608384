package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"inkpost/common"
	"inkpost/logging"
)

// ErrUploadFailed tags every upload failure so handlers can report it as an
// error instead of passing failure text around where a URL belongs.
var ErrUploadFailed = errors.New("upload failed")

// Uploader is the asset-upload collaborator boundary: a content stream goes
// in, a retrievable URL comes out.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

type S3Store struct {
	client    *s3.Client
	bucket    string
	region    string
	publicURL string
	log       logging.Logger
}

func NewS3Store(ctx context.Context, cfg *common.Config, log logging.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			// MinIO and other S3-compatible stores need path-style addressing
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:    client,
		bucket:    cfg.S3Bucket,
		region:    cfg.S3Region,
		publicURL: cfg.S3PublicURL,
		log:       log,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		s.log.Error(ctx, "s3 put failed", "bucket", s.bucket, "key", key, "err", err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Store) objectURL(key string) string {
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// PostImageKey builds a unique object key for a post image. The uuid keeps
// same-named uploads from different requests from clobbering each other.
func PostImageKey(username, filename string) string {
	return fmt.Sprintf("post-images/%s/%s-%s", username, uuid.New(), path.Base(filename))
}

// ProfileImageKey builds a unique object key for a profile picture.
func ProfileImageKey(username, filename string) string {
	return fmt.Sprintf("profile-pics/%s/%s-%s", username, uuid.New(), path.Base(filename))
}
