package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config locates the outbox bucket. It targets MinIO as well as AWS.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3OutboxSender writes each message as a .eml object into a bucket, where
// a separate relay picks it up. Useful when the service has no direct SMTP
// egress.
type S3OutboxSender struct {
	client putObjectAPI
	bucket string
	from   string
	now    func() time.Time
}

func NewS3OutboxSender(ctx context.Context, cfg S3Config, from string) (*S3OutboxSender, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3OutboxSender{client: client, bucket: cfg.Bucket, from: from, now: time.Now}, nil
}

// outboxKey spreads objects by day, e.g. outbox/2024/9/1/<uuid>.eml.
func (s *S3OutboxSender) outboxKey() string {
	d := s.now()
	return fmt.Sprintf("outbox/%d/%d/%d/%v.eml", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3OutboxSender) Send(ctx context.Context, msg Message) error {
	body, err := renderMIME(s.from, msg)
	if err != nil {
		return err
	}

	key := s.outboxKey()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("message/rfc822"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
