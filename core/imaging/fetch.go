package imaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VinhGH/Lost-Found-PLatform-sub001/helper"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxImageBytes bounds downloaded images.
const maxImageBytes = 10 << 20

// Fetcher downloads image bytes and reports their MIME type.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, string, error)
}

// HTTPFetcher downloads images over http(s).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("get image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}

	return data, detectMIME(data, resp.Header.Get("Content-Type")), nil
}

// S3Config configures access to the object store holding post images.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// NewS3ConfigFromEnv reads the S3_* environment variables. It returns nil
// if no endpoint is configured.
func NewS3ConfigFromEnv() *S3Config {
	endpoint := helper.GetEnvString("S3_ENDPOINT", "")
	if endpoint == "" {
		return nil
	}
	return &S3Config{
		Endpoint:  endpoint,
		AccessKey: helper.GetEnvString("S3_ACCESS_KEY", ""),
		SecretKey: helper.GetEnvString("S3_SECRET_KEY", ""),
		UseSSL:    helper.GetEnvBool("S3_USE_SSL", false),
		Region:    helper.GetEnvString("S3_REGION", "us-east-1"),
	}
}

// MinioFetcher downloads s3://bucket/key images from MinIO or S3.
type MinioFetcher struct {
	client *minio.Client
}

// NewMinioFetcher creates a MinIO client from the config.
func NewMinioFetcher(config *S3Config) (*MinioFetcher, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioFetcher{client: client}, nil
}

func (f *MinioFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	bucket, key, err := parseS3URL(imageURL)
	if err != nil {
		return nil, "", err
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get image object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image object: %w", err)
	}

	contentType := ""
	if info, err := obj.Stat(); err == nil {
		contentType = info.ContentType
	}

	return data, detectMIME(data, contentType), nil
}

// URLFetcher picks a fetcher by URL scheme: s3:// goes to S3, everything else
// to HTTP.
type URLFetcher struct {
	HTTP Fetcher
	S3   Fetcher
}

func (f *URLFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	if strings.HasPrefix(imageURL, "s3://") {
		if f.S3 == nil {
			return nil, "", fmt.Errorf("no object storage configured for %s", imageURL)
		}
		return f.S3.Fetch(ctx, imageURL)
	}
	if f.HTTP == nil {
		return nil, "", fmt.Errorf("no http fetcher configured for %s", imageURL)
	}
	return f.HTTP.Fetch(ctx, imageURL)
}

func parseS3URL(imageURL string) (string, string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse image url: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %s", imageURL)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 url has no object key: %s", imageURL)
	}
	return u.Host, key, nil
}

func detectMIME(data []byte, declared string) string {
	if declared != "" && strings.HasPrefix(declared, "image/") {
		return strings.TrimSpace(strings.Split(declared, ";")[0])
	}
	return http.DetectContentType(data)
}
