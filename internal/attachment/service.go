// Package attachment stores note attachments in S3-compatible object
// storage. Objects are keyed campaigns/<campaignID>/notes/<noteID>/<name>
// so access checks can be done by prefix.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("attachment not found")

// Object describes one stored attachment.
type Object struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Service wraps a MinIO client scoped to a single bucket.
type Service struct {
	client *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Service{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func objectKey(campaignID, noteID, filename string) string {
	return path.Join("campaigns", campaignID, "notes", noteID, sanitizeName(filename))
}

func notePrefix(campaignID, noteID string) string {
	return path.Join("campaigns", campaignID, "notes", noteID) + "/"
}

// Upload stores the attachment and returns its object metadata.
func (s *Service) Upload(ctx context.Context, campaignID, noteID, filename, contentType string, r io.Reader, size int64) (Object, error) {
	key := objectKey(campaignID, noteID, filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("put object: %w", err)
	}
	return Object{
		Key:         key,
		Filename:    path.Base(key),
		ContentType: contentType,
		Size:        info.Size,
		UploadedAt:  time.Now(),
	}, nil
}

// List returns all attachments stored for a note.
func (s *Service) List(ctx context.Context, campaignID, noteID string) ([]Object, error) {
	objects := []Object{}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    notePrefix(campaignID, noteID),
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		objects = append(objects, Object{
			Key:         info.Key,
			Filename:    path.Base(info.Key),
			ContentType: info.ContentType,
			Size:        info.Size,
			UploadedAt:  info.LastModified,
		})
	}
	return objects, nil
}

// DownloadURL returns a presigned GET URL valid for the given duration.
func (s *Service) DownloadURL(ctx context.Context, campaignID, noteID, filename string, expiry time.Duration) (string, error) {
	key := objectKey(campaignID, noteID, filename)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

// Delete removes one attachment.
func (s *Service) Delete(ctx context.Context, campaignID, noteID, filename string) error {
	key := objectKey(campaignID, noteID, filename)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// DeleteNote removes every attachment for a note. Used when the note
// itself is deleted.
func (s *Service) DeleteNote(ctx context.Context, campaignID, noteID string) error {
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    notePrefix(campaignID, noteID),
		Recursive: true,
	}) {
		if info.Err != nil {
			return fmt.Errorf("list objects: %w", info.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, info.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove object %s: %w", info.Key, err)
		}
	}
	return nil
}

// sanitizeName keeps object keys flat and predictable. Path separators
// and parent references are stripped.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
