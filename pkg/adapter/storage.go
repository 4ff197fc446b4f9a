package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/googleapi"
)

// ContentStore uploads post metadata and returns a content URI that the Lens
// API accepts as a post reference
type ContentStore interface {
	Upload(ctx context.Context, document []byte) (string, error)
}

// gcsStore implements ContentStore on a Cloud Storage bucket. Objects are
// keyed by the SHA-256 of their content, so the URI is content-addressed.
// The bucket must allow public reads for Lens to fetch the returned URL.
type gcsStore struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewGCSStore creates a Cloud Storage backed ContentStore
func NewGCSStore(ctx context.Context, bucketName, prefix string) (ContentStore, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &gcsStore{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

// ContentKey returns the object key used for document
func ContentKey(prefix string, document []byte) string {
	sum := sha256.Sum256(document)
	return prefix + hex.EncodeToString(sum[:]) + ".json"
}

func (s *gcsStore) Upload(ctx context.Context, document []byte) (string, error) {
	key := ContentKey(s.prefix, document)
	obj := s.client.Bucket(s.bucketName).Object(key)

	// identical content maps to the same key, so an existing object is kept
	writer := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(document); err != nil {
		_ = writer.Close()
		return "", goerr.Wrap(err, "failed to write content", goerr.V("key", key))
	}
	if err := writer.Close(); err != nil && !isPreconditionFailed(err) {
		return "", goerr.Wrap(err, "failed to upload content",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", key))
	}

	return PublicObjectURL(s.bucketName, key), nil
}

// PublicObjectURL returns the public HTTPS URL of a Cloud Storage object
func PublicObjectURL(bucket, key string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + bucket + "/" + key,
	}
	return u.String()
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
