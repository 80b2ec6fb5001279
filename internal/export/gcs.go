package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// Uploader ships an export to an object store. The GCS implementation is
// below; tests substitute their own.
type Uploader interface {
	Upload(ctx context.Context, objectName string, data []byte) (string, error)
}

// GCSUploader writes exports into a Cloud Storage bucket. It assumes
// Application Default Credentials are configured.
type GCSUploader struct {
	Bucket string
}

// NewGCSUploader creates an uploader targeting the given bucket.
func NewGCSUploader(bucket string) *GCSUploader {
	return &GCSUploader{Bucket: bucket}
}

// Upload writes data under objectName and returns the gs:// URI.
func (u *GCSUploader) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Upload: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(u.Bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", u.Bucket, objectName), nil
}

// ObjectName builds the conventional export object path for a point in time.
func ObjectName(format Format, now time.Time) string {
	return fmt.Sprintf("exports/records-%s.%s", now.UTC().Format("20060102-150405"), format)
}
