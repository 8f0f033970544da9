package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StoredFile describes content placed in the store: its content address and
// the public URL it can be fetched from.
type StoredFile struct {
	Hash string
	Url  string
}

// FileStore is a create/read-only content-addressed blob store. Uploading the
// same bytes twice yields the same hash and overwrites nothing.
type FileStore interface {
	Put(ctx context.Context, r io.Reader, size int64, contentType string) (StoredFile, error)
}

type MinioConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// BaseURL is the public gateway prefix returned URLs are built from.
	BaseURL string
}

type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("file store endpoint and bucket are required")
	}

	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{
		client:  cl,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Put stores the content under its sha256 hash. The content is buffered so
// the address is known before the object key is chosen.
func (s *MinioStore) Put(ctx context.Context, r io.Reader, size int64, contentType string) (StoredFile, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return StoredFile{}, fmt.Errorf("read content: %w", err)
	}

	hash := ContentKey(buf.Bytes())

	_, err := s.client.PutObject(ctx, s.bucket, hash, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return StoredFile{}, fmt.Errorf("put object: %w", err)
	}

	return StoredFile{Hash: hash, Url: s.baseURL + "/" + hash}, nil
}

// ContentKey returns the content address for a blob.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
