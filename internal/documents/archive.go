package documents

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"signing-portal/signing-portal-backend/pkg/storage"
)

// Archiver keeps a copy of signed documents outside the session.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, data []byte) (key, url string, err error)
}

type s3Archiver struct {
	client  storage.S3Client
	bucket  string
	prefix  string
	linkTTL time.Duration
	now     func() time.Time
}

// NewS3Archiver stores signed documents under prefix/<session>/ in bucket.
// A non-zero linkTTL also returns a presigned download link.
func NewS3Archiver(client storage.S3Client, bucket, prefix string, linkTTL time.Duration) Archiver {
	return &s3Archiver{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		linkTTL: linkTTL,
		now:     time.Now,
	}
}

func (a *s3Archiver) Archive(ctx context.Context, sessionID string, data []byte) (string, string, error) {
	key := path.Join(a.prefix, sessionID, a.now().UTC().Format("20060102T150405Z")+"-"+SignedFileName)
	if err := a.client.Upload(ctx, a.bucket, key, bytes.NewReader(data)); err != nil {
		return "", "", fmt.Errorf("archive signed document: %w", err)
	}
	if a.linkTTL <= 0 {
		return key, "", nil
	}
	url, err := a.client.GetPresignedURL(ctx, a.bucket, key, a.linkTTL)
	if err != nil {
		return key, "", fmt.Errorf("presign archived document: %w", err)
	}
	return key, url, nil
}
