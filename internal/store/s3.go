package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/debemdeboas/kable/internal/util"
)

// s3API is the part of the S3 client the asset store calls.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Config struct {
	AccessKeyID     string
	AccessKeySecret string
	BaseEndpoint    string
	Region          string
	Bucket          string
}

type S3AssetStore struct { // implements AssetStore
	client s3API
	bucket string
}

func NewS3AssetStore(ctx context.Context, cfg S3Config) (*S3AssetStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3AssetStore(client, cfg.Bucket), nil
}

func newS3AssetStore(client s3API, bucket string) *S3AssetStore {
	return &S3AssetStore{client: client, bucket: bucket}
}

// objectKey maps a server-relative path to an object key.
func objectKey(assetPath string) string {
	return strings.TrimPrefix(util.CleanAssetPath(assetPath), "/")
}

func (s *S3AssetStore) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}
	return false, err
}

func (s *S3AssetStore) UploadAsset(ctx context.Context, assetPath string, data []byte, opts UploadOptions) error {
	key := objectKey(assetPath)

	if !opts.Overwrite {
		found, err := s.exists(ctx, key)
		if err != nil {
			return fmt.Errorf("error checking asset %s: %w", key, err)
		}
		if found {
			return fmt.Errorf("%w: %s", ErrAssetExists, assetPath)
		}
	}

	hash := util.ContentHash(data)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      map[string]string{"sha256": hash},
	}
	if ctype := mime.TypeByExtension(path.Ext(key)); ctype != "" {
		input.ContentType = aws.String(ctype)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("error uploading asset %s: %w", key, err)
	}

	storeLogger.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Str("sha256", hash).
		Msg("Asset uploaded")
	return nil
}
