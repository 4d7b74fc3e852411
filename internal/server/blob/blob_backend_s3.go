package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const downloadExpiry = 15 * time.Minute

type S3Backend struct {
	s3Client    *s3.Client
	s3Presigner *s3.PresignClient
	config      *S3Config
}

func NewS3Backend(s3Client *s3.Client, config *S3Config) *S3Backend {
	return &S3Backend{
		s3Client:    s3Client,
		s3Presigner: s3.NewPresignClient(s3Client),
		config:      config,
	}
}

func NewS3BackendWithConfig(cfg *S3Config) (*S3Backend, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Backend(awsClient, cfg), nil
}

func (s *S3Backend) PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}

	resp, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.config.BucketName,
		Key:           &params.Key,
		Body:          params.Body,
		ContentLength: aws.Int64(params.Size),
	})
	if err != nil {
		return nil, err
	}

	return &PutObjectResponse{
		Key:  params.Key,
		Size: params.Size,
		ETag: strings.ReplaceAll(aws.ToString(resp.ETag), "\"", ""),
	}, nil
}

func (s *S3Backend) GetObject(ctx context.Context, key string) (*GetObjectResponse, error) {
	if !ValidateKey(key) {
		return nil, ErrInvalidKey
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, ErrObjectNotFound
	} else if err != nil {
		return nil, err
	}

	return &GetObjectResponse{
		Body: resp.Body,
		Size: aws.ToInt64(resp.ContentLength),
	}, nil
}

func (s *S3Backend) GetObjectPresigned(ctx context.Context, key string) (string, error) {
	if !s.config.Presign {
		return "", ErrPresignUnsupported
	}
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}

	url, err := s.s3Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = downloadExpiry
	})
	if err != nil {
		return "", err
	}
	return url.URL, nil
}

func (s *S3Backend) DeleteObject(ctx context.Context, key string) error {
	if !ValidateKey(key) {
		return ErrInvalidKey
	}

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	return err
}

var _ Backend = (*S3Backend)(nil)
