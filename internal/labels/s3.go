package labels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/fieldmark/fieldmark/internal/config"
	fmerr "github.com/fieldmark/fieldmark/internal/errors"
)

// S3API defines the subset of the AWS S3 client interface the label archive
// uses. This allows mocking in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store archives label PNGs in an Amazon S3 bucket under an optional key
// prefix. Credentials are resolved via the standard AWS credential chain.
type S3Store struct {
	bucket string
	prefix string
	client S3API
}

// NewS3Store creates an S3Store for the configured bucket.
func NewS3Store(ctx context.Context, cfg *config.LabelsConfig) (*S3Store, error) {
	if cfg == nil || cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	// Static credentials if provided, otherwise the default chain.
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3EndpointURL)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
	}, nil
}

// NewS3StoreWithClient creates an S3Store with a pre-configured client,
// primarily for testing.
func NewS3StoreWithClient(bucket, prefix string, client S3API) *S3Store {
	return &S3Store{bucket: bucket, prefix: prefix, client: client}
}

func (s *S3Store) Put(ctx context.Context, code string, png []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(s.prefix, code)),
		Body:        bytes.NewReader(png),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return fmt.Errorf("putting label object: %w", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, code string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, code)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmerr.ErrLabelNotFound.WithMessage("no label archived for code %q", code)
		}
		return nil, fmt.Errorf("getting label object: %w", err)
	}
	defer out.Body.Close()
	png, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading label object: %w", err)
	}
	return png, nil
}

func (s *S3Store) Exists(ctx context.Context, code string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, code)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking label object: %w", err)
	}
	return true, nil
}

func (s *S3Store) Delete(ctx context.Context, code string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, code)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("deleting label object: %w", err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var out []string
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(listPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing label objects: %w", err)
		}
		for _, obj := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			if strings.HasSuffix(name, ".png") {
				out = append(out, strings.TrimSuffix(name, ".png"))
			}
		}
		if resp.NextContinuationToken == nil {
			break
		}
		token = resp.NextContinuationToken
	}
	sort.Strings(out)
	return out, nil
}

func (s *S3Store) Close() error { return nil }

// isS3NotFound checks if an AWS error is a 404/NoSuchKey/NotFound error.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
