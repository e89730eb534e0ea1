// Package media stores report attachments durably in S3. Gateway-hosted
// media URLs expire, so attachments are copied into the bucket at submission
// time and reports only ever reference the durable copy.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	defaultFetchTimeout = 30 * time.Second
	// maxObjectSize caps a single attachment; WhatsApp media tops out well
	// below this.
	maxObjectSize = 32 << 20
)

// s3API is the slice of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads media objects to one bucket.
type Store struct {
	client     s3API
	httpClient *http.Client
	bucket     string
	region     string
	folder     string
}

// StoreOpts holds parameters for creating a Store.
type StoreOpts struct {
	Bucket string
	Region string
	Folder string // default key prefix, e.g. "reports"
}

// NewStore creates a Store using the ambient AWS credential chain.
func NewStore(ctx context.Context, opts StoreOpts) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("media: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("media: region is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	return &Store{
		client:     s3.NewFromConfig(cfg),
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		bucket:     opts.Bucket,
		region:     opts.Region,
		folder:     opts.Folder,
	}, nil
}

// UploadFromURL fetches a gateway-hosted media item and copies it into the
// bucket, returning the durable public URL. Satisfies the report pipeline's
// Uploader contract.
func (s *Store) UploadFromURL(ctx context.Context, srcURL, contentType, folder string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", fmt.Errorf("media: build fetch request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: fetch %s: %w", srcURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media: fetch %s: unexpected status %s", srcURL, resp.Status)
	}
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}

	return s.Upload(ctx, io.LimitReader(resp.Body, maxObjectSize), contentType, folder)
}

// Upload writes one object and returns its public URL.
func (s *Store) Upload(ctx context.Context, r io.Reader, contentType, folder string) (string, error) {
	key := s.objectKey(contentType, folder)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("media: put %s: %w", key, err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// objectKey builds a collision-free key under the folder prefix.
func (s *Store) objectKey(contentType, folder string) string {
	if folder == "" {
		folder = s.folder
	}
	name := uuid.New().String() + extension(contentType)
	if folder == "" {
		return name
	}
	return strings.TrimSuffix(folder, "/") + "/" + name
}

// extension maps the common attachment MIME types to a file extension.
func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "audio/ogg":
		return ".ogg"
	case "application/pdf":
		return ".pdf"
	}
	return ""
}
