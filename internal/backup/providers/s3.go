package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/NotCreative21/taurus/internal/config"
)

type s3API interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Provider stores backups in an S3 compatible bucket under Prefix.
type S3Provider struct {
	Bucket string
	Prefix string

	client   s3API
	uploader uploader
}

// NewS3Provider resolves AWS credentials from cfg or the default chain.
// Endpoint, when set, points the client at an S3 compatible server using
// path-style addressing.
func NewS3Provider(ctx context.Context, cfg config.S3Config) (*S3Provider, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Provider(cfg.Bucket, cfg.Prefix, client, manager.NewUploader(client)), nil
}

func newS3Provider(bucket, prefix string, client s3API, up uploader) *S3Provider {
	return &S3Provider{
		Bucket:   bucket,
		Prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: up,
	}
}

func (s *S3Provider) key(remotePath string) string {
	if s.Prefix == "" {
		return remotePath
	}
	return s.Prefix + "/" + strings.TrimPrefix(remotePath, "/")
}

func (s *S3Provider) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(remotePath)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.Bucket, s.key(remotePath), err)
	}
	return nil
}

// List returns keys under prefix relative to the provider prefix.
func (s *S3Provider) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.key(prefix)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.Bucket, s.key(prefix), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.Prefix != "" {
				key = strings.TrimPrefix(key, s.Prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *S3Provider) Delete(ctx context.Context, remotePath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(remotePath)),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.Bucket, s.key(remotePath), err)
	}
	return nil
}
