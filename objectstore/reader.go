// Package objectstore reads hourly log objects out of an S3-compatible
// bucket, for --swift mode assembly runs against archived data rather than
// a live honeypot's local disk.
package objectstore

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// Reader fetches objects from one bucket.
type Reader struct {
	client *s3.Client
	bucket string
}

// Config configures the underlying S3 client. Endpoint is optional and, if
// set, points the client at an S3-compatible endpoint other than AWS
// (e.g. OpenStack Swift's S3 gateway).
type Config struct {
	Bucket   string
	Endpoint string
	Region   string
}

// New builds a Reader from Config, loading credentials the standard AWS
// way (environment, shared config file, instance role).
func New(ctx context.Context, cfg Config) (*Reader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: region}, nil
			},
		)
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &Reader{client: client, bucket: cfg.Bucket}, nil
}

// Get opens the object at key for reading. The caller must Close it.
func (r *Reader) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting s3://%s/%s", r.bucket, key)
	}
	return out.Body, nil
}
