package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu  sync.Mutex
	n   int
	err error
}

func (f *fakeSource) SnapshotTo(ctx context.Context, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.n++
	return os.WriteFile(dest, []byte("snapshot"), 0644)
}

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, filePath)
	return nil
}

func (f *fakeUploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func TestSnapshotGeneratesAndUploads(t *testing.T) {
	source := &fakeSource{}
	uploader := &fakeUploader{}
	c := NewSnapshotCoordinator(source, uploader, time.Hour)

	c.Snapshot(context.Background())

	if source.n != 1 {
		t.Errorf("snapshots = %d, want 1", source.n)
	}
	if len(uploader.paths) != 1 {
		t.Fatalf("uploads = %v", uploader.paths)
	}
	// Staging directory is cleaned up after the upload.
	if _, err := os.Stat(uploader.paths[0]); !os.IsNotExist(err) {
		t.Errorf("staging file should be removed, stat err = %v", err)
	}
}

func TestSnapshotSourceFailureSkipsUpload(t *testing.T) {
	source := &fakeSource{err: errors.New("database locked")}
	uploader := &fakeUploader{}
	c := NewSnapshotCoordinator(source, uploader, time.Hour)

	c.Snapshot(context.Background())

	if len(uploader.paths) != 0 {
		t.Errorf("upload should not happen after snapshot failure: %v", uploader.paths)
	}
}

func TestSnapshotUploadFailureIsNotFatal(t *testing.T) {
	source := &fakeSource{}
	uploader := &fakeUploader{err: errors.New("bucket missing")}
	c := NewSnapshotCoordinator(source, uploader, time.Hour)

	// Must not panic; the next cycle retries.
	c.Snapshot(context.Background())
	if source.n != 1 {
		t.Errorf("snapshots = %d", source.n)
	}
}
