package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/snapfeed/backend/internal/config"
	"github.com/snapfeed/backend/internal/gateway"
)

// S3Storage implements gateway.FileStore backed by an S3-compatible object
// store. Preview URLs are rendered against the configured image proxy base;
// the proxy resolves object keys from the same bucket.
type S3Storage struct {
	uploader       *manager.Uploader
	client         *s3.Client
	bucket         string
	previewBaseURL string
}

// NewS3Storage configures a client and uploader targeting the provided
// object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if strings.TrimSpace(cfg.Endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return &S3Storage{
		uploader:       uploader,
		client:         client,
		bucket:         cfg.Bucket,
		previewBaseURL: strings.TrimSuffix(cfg.PreviewBaseURL, "/"),
	}, nil
}

// Upload stores the provided content under a freshly generated file id and
// returns its reference. The original filename only contributes the content
// type.
func (s *S3Storage) Upload(ctx context.Context, filename string, r io.Reader) (gateway.FileRef, error) {
	if r == nil {
		return gateway.FileRef{}, fmt.Errorf("s3 storage: empty upload: %w", gateway.ErrUpload)
	}

	id := uuid.NewString()
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
		Body:   manager.ReadSeekCloser(r),
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if contentType := mime.TypeByExtension(path.Ext(filename)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return gateway.FileRef{}, fmt.Errorf("s3 storage upload %s: %w: %w", id, gateway.ErrUpload, err)
	}

	return gateway.FileRef{ID: id}, nil
}

// PreviewURL derives the resized rendition URL for a stored file.
func (s *S3Storage) PreviewURL(fileID string, opts gateway.PreviewOptions) (string, error) {
	if strings.TrimSpace(fileID) == "" {
		return "", fmt.Errorf("s3 storage: empty file id: %w", gateway.ErrUpload)
	}
	if s.previewBaseURL == "" {
		return "", fmt.Errorf("s3 storage: preview base url not configured: %w", gateway.ErrUpload)
	}

	params := url.Values{}
	if opts.Width > 0 {
		params.Set("width", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		params.Set("height", strconv.Itoa(opts.Height))
	}
	if opts.Gravity != "" {
		params.Set("gravity", opts.Gravity)
	}
	if opts.Quality > 0 {
		params.Set("quality", strconv.Itoa(opts.Quality))
	}

	previewURL := fmt.Sprintf("%s/%s", s.previewBaseURL, url.PathEscape(fileID))
	if encoded := params.Encode(); encoded != "" {
		previewURL += "?" + encoded
	}
	return previewURL, nil
}

// Delete removes the stored object behind the file id.
func (s *S3Storage) Delete(ctx context.Context, fileID string) error {
	if strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("s3 storage: empty file id")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return fmt.Errorf("s3 storage delete %s: %w", fileID, err)
	}
	return nil
}

var _ gateway.FileStore = (*S3Storage)(nil)
