// Package s3 implements store.Store on an S3 (or S3-compatible) bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog/log"

	"github.com/robertof/go-thermo-sync/store"
)

type Options struct {
	Bucket string
	Region string
	// Custom endpoint for S3-compatible services (MinIO, B2, ...). Empty means AWS.
	Endpoint     string
	UsePathStyle bool
}

// API is the subset of *s3.Client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type Store struct {
	api    API
	bucket string
}

// New loads credentials from the default AWS chain (environment, shared config, instance role).
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error

	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	log.Debug().
		Str("Bucket", opts.Bucket).
		Str("Region", cfg.Region).
		Str("Endpoint", opts.Endpoint).
		Msg("s3: client initialized")

	return NewWithAPI(client, opts.Bucket), nil
}

func NewWithAPI(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

// classify maps SDK errors onto the store error classes. NoSuchBucket counts as a permission
// problem: it needs an operator, not a retry.
func classify(err error, op, key string) error {
	class := store.ErrTransient

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	var apiErr smithy.APIError
	var respErr *smithyhttp.ResponseError

	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		class = store.ErrNotFound
	case errors.As(err, &noSuchBucket):
		class = store.ErrPermission
	case errors.As(err, &apiErr) && isPermissionCode(apiErr.ErrorCode()):
		class = store.ErrPermission
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey":
		class = store.ErrNotFound
	case errors.As(err, &respErr):
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			class = store.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			class = store.ErrPermission
		}
	}

	return fmt.Errorf("s3: %s %q: %w: %v", op, key, class, err)
}

func isPermissionCode(code string) bool {
	switch code {
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"AllAccessDisabled", "ExpiredToken", "InvalidToken":
		return true
	}

	return false
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".jsonl":
		return "application/jsonl"
	case ".cbor":
		return "application/cbor"
	case ".zst":
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return nil, classify(err, "get", key)
	}

	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: get %q: %w: %v", key, store.ErrTransient, err)
	}

	return data, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(key)),
	})

	if err != nil {
		return classify(err, "put", key)
	}

	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list", prefix)
		}

		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	sort.Strings(keys)

	return keys, nil
}
