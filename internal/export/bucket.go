package export

//go:generate mockgen -source=bucket.go -destination=mocks/mock_bucket.go -package=mocks

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dgnsrekt/gql_sniffer/internal/config"
)

type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BucketSink uploads export artifacts to an S3-compatible bucket.
type BucketSink struct {
	bucket string
	client S3Client
	now    func() time.Time
}

func NewBucketSink(ctx context.Context, cfg config.BucketConfig) (*BucketSink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		// MinIO and other S3-compatible endpoints
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return NewBucketSinkWithClient(cfg.Name, client), nil
}

func NewBucketSinkWithClient(bucket string, client S3Client) *BucketSink {
	return &BucketSink{
		bucket: bucket,
		client: client,
		now:    time.Now,
	}
}

// Key is the object key an export named name is stored under at t.
func Key(t time.Time, name string) string {
	return fmt.Sprintf("exports/%d-%02d-%02d/%s", t.Year(), t.Month(), t.Day(), name)
}

// Upload stores data under exports/YYYY-MM-DD/<name> and returns the key.
func (b *BucketSink) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := Key(b.now().UTC(), SanitizeFilename(name, DefaultFilename))

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return key, nil
}
