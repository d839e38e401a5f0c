// Package objectstore keeps workflow artifacts (markdown posts and audio) in a
// NATS JetStream object store bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerContentType  = "Content-Type"
	defaultContentType = "application/octet-stream"
)

// Static errors.
var (
	ErrBucketEmpty = errors.New("bucket name cannot be empty")
	ErrKeyEmpty    = errors.New("object key cannot be empty")
)

var contentTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".pcm":  "audio/pcm",
}

// NatsObjectStore implements core.ObjectStore on a JetStream object store.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	if bucketName == "" {
		return nil, ErrBucketEmpty
	}

	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Blog workflow artifacts (%s).", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Bucket returns the bucket name.
func (n *NatsObjectStore) Bucket() string {
	return n.bucket
}

// Download retrieves an object.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	obj, err := n.store.Get(key, nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores data under key. The content type header is derived from the
// key's extension.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}

	headers := nats.Header{}
	headers.Set(headerContentType, ContentType(key))

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:    key,
		Headers: headers,
	}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// UploadFile stores the file at path under key.
func (n *NatsObjectStore) UploadFile(ctx context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact '%s': %w", path, err)
	}

	return n.Upload(ctx, key, data)
}

// ContentType maps an artifact key to a MIME type.
func ContentType(key string) string {
	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(key))]
	if !ok {
		return defaultContentType
	}

	return contentType
}
