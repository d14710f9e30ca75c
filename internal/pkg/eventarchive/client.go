package eventarchive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// objectPutter is the part of *s3.Client the archive uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores verified webhook payloads in S3.
type Archive struct {
	s3     objectPutter
	config *Config
	now    func() time.Time
}

// New creates an S3-backed archive
func New(ctx context.Context, cfg *Config) (*Archive, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("event archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[EventArchive] archiving webhook payloads to bucket %s", cfg.BucketName)
	return newArchive(s3Client, cfg), nil
}

func newArchive(p objectPutter, cfg *Config) *Archive {
	return &Archive{s3: p, config: cfg, now: time.Now}
}

// Store uploads one raw payload and returns its object key.
func (a *Archive) Store(ctx context.Context, provider, eventID, eventType string, payload []byte) (string, error) {
	key := a.config.ObjectKey(provider, eventID, a.now())

	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
		Metadata: map[string]string{
			"event-id":      eventID,
			"event-type":    eventType,
			"upload-source": "opsledger-webhooks",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	log.Debugf("[EventArchive] stored s3://%s/%s", a.config.BucketName, key)
	return key, nil
}
