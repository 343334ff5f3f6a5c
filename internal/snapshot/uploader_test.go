package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/config"
)

// --- NoopUploader Tests ---

func TestNoopUploader_Upload_IsNoOp(t *testing.T) {
	u := &NoopUploader{}
	if err := u.Upload(context.Background(), "/some/path"); err != nil {
		t.Errorf("NoopUploader.Upload() should not error, got %v", err)
	}
}

func TestNoopUploader_PresignedURL_ReturnsErrNotConfigured(t *testing.T) {
	u := &NoopUploader{}
	_, _, err := u.PresignedURL(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NoopUploader.PresignedURL() should return ErrNotConfigured, got %v", err)
	}
}

// --- NewUploader factory tests ---

func TestNewUploader_EmptyBucket_ReturnsNoopUploader(t *testing.T) {
	u, err := NewUploader(config.SnapshotConfig{})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	if _, ok := u.(*NoopUploader); !ok {
		t.Errorf("expected *NoopUploader, got %T", u)
	}
}

func TestNewUploader_WithBucket_ReturnsS3Uploader(t *testing.T) {
	cfg := config.SnapshotConfig{
		Bucket:    "test-bucket",
		Endpoint:  "localhost:9000",
		UseSSL:    true,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	if _, ok := u.(*S3Uploader); !ok {
		t.Errorf("expected *S3Uploader, got %T", u)
	}
}

// --- S3Uploader tests with a mock client ---

type mockS3Client struct {
	putBucket  string
	putObject  string
	putPath    string
	putErr     error
	presignErr error
}

func (m *mockS3Client) FPutObject(ctx context.Context, bucket, objectName, filePath string, opts interface{}) error {
	m.putBucket = bucket
	m.putObject = objectName
	m.putPath = filePath
	return m.putErr
}

func (m *mockS3Client) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse(fmt.Sprintf("https://s3.example.com/%s/%s?signed=1", bucket, objectName))
}

func TestS3Uploader_Upload(t *testing.T) {
	mock := &mockS3Client{}
	u := &S3Uploader{client: mock, bucket: "backups", urlExpiry: time.Hour}

	if err := u.Upload(context.Background(), "/tmp/fieldbridge.db"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if mock.putBucket != "backups" {
		t.Errorf("bucket = %q", mock.putBucket)
	}
	if mock.putObject != "snapshots/current.db" {
		t.Errorf("object key = %q", mock.putObject)
	}
	if mock.putPath != "/tmp/fieldbridge.db" {
		t.Errorf("file path = %q", mock.putPath)
	}
}

func TestS3Uploader_UploadError(t *testing.T) {
	mock := &mockS3Client{putErr: errors.New("connection refused")}
	u := &S3Uploader{client: mock, bucket: "backups", urlExpiry: time.Hour}

	if err := u.Upload(context.Background(), "/tmp/fieldbridge.db"); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestS3Uploader_PresignedURL(t *testing.T) {
	mock := &mockS3Client{}
	u := &S3Uploader{client: mock, bucket: "backups", urlExpiry: 15 * time.Minute}

	urlStr, expiry, err := u.PresignedURL(context.Background())
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}
	if urlStr == "" {
		t.Error("expected non-empty URL")
	}
	if time.Until(expiry) > 15*time.Minute || time.Until(expiry) <= 0 {
		t.Errorf("expiry = %v", expiry)
	}
}

func TestS3Uploader_PresignedURLError(t *testing.T) {
	mock := &mockS3Client{presignErr: errors.New("access denied")}
	u := &S3Uploader{client: mock, bucket: "backups", urlExpiry: time.Hour}

	if _, _, err := u.PresignedURL(context.Background()); err == nil {
		t.Fatal("expected presign error")
	}
}
