package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/config"
)

// s3Store implements ObjectStore for S3-compatible storage.
type s3Store struct {
	log    logrus.FieldLogger
	cfg    *config.S3StorageConfig
	client *s3.Client
}

var _ ObjectStore = (*s3Store)(nil)

// NewS3Store creates an S3 object store from the given configuration.
func NewS3Store(log logrus.FieldLogger, cfg *config.S3StorageConfig) ObjectStore {
	return &s3Store{
		log:    log.WithField("component", "s3-store"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

func newS3Client(cfg *config.S3StorageConfig) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}

func (s *s3Store) Upload(
	ctx context.Context,
	key string,
	r io.Reader,
	size int64,
	contentType string,
) error {
	if !isAllowedKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	if s.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(s.cfg.ACL)
	}

	s.log.WithFields(logrus.Fields{
		"key":    input.Key,
		"bucket": s.cfg.Bucket,
		"size":   size,
	}).Debug("Uploading object")

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

func (s *s3Store) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make([]s3types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		if !isAllowedKey(key) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}

		objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(s.objectKey(key))})
	}

	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.cfg.Bucket),
		Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("DeleteObjects: %w", err)
	}

	return nil
}

// PublicURL prefers the configured public base URL, then a path-style or
// virtual-hosted URL on the endpoint.
func (s *s3Store) PublicURL(key string) string {
	objectKey := s.objectKey(key)

	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + objectKey
	}

	if s.cfg.EndpointURL != "" {
		endpoint := strings.TrimRight(s.cfg.EndpointURL, "/")

		if s.cfg.ForcePathStyle {
			return endpoint + "/" + s.cfg.Bucket + "/" + objectKey
		}

		scheme, host, ok := strings.Cut(endpoint, "://")
		if ok {
			return scheme + "://" + s.cfg.Bucket + "." + host + "/" + objectKey
		}
	}

	region := s.cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, region, objectKey)
}

// objectKey places key under the configured prefix.
func (s *s3Store) objectKey(key string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return key
	}

	return prefix + "/" + key
}
