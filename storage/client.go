// Package storage talks to the hosted object storage that keeps product images.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sony/gobreaker/v2"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/judyrop/epicerie-backend/apperr"
)

// MaxUploadSize is the bucket's per-object limit.
const MaxUploadSize = 5 << 20

const defaultTimeout = 30 * time.Second

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrNotConfigured  = errors.New("storage is not configured")
)

type Object struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Client wraps the storage-go SDK for one bucket. The SDK keeps upload
// options on its shared transport headers, so uploads hold the write lock
// and every other call the read lock.
type Client struct {
	api     *storage_go.Client
	baseURL string
	bucket  string
	timeout time.Duration
	mu      sync.RWMutex
	breaker *gobreaker.CircuitBreaker[any]
}

func NewClient(baseURL, serviceKey, bucket string) *Client {
	settings := gobreaker.Settings{
		Name:        "blob-store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrObjectNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		timeout: defaultTimeout,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
	if c.baseURL != "" && serviceKey != "" {
		c.api = storage_go.NewClient(c.baseURL+"/storage/v1", serviceKey, map[string]string{"apikey": serviceKey})
	}
	return c
}

func (c *Client) Bucket() string { return c.bucket }

// PublicURL is the direct public-read address of path.
func (c *Client) PublicURL(path string) string {
	path = strings.TrimLeft(path, "/")
	if c.api == nil {
		return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, path)
	}
	return c.api.GetPublicUrl(c.bucket, path).SignedURL
}

// Upload stores data at path, replacing any existing object. An empty
// contentType is sniffed from the bytes.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if len(data) == 0 {
		return apperr.Validation("image", "Fichier invalide")
	}
	if len(data) > MaxUploadSize {
		return apperr.Validation("image", "L'image dépasse la taille maximale de 5 Mo")
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	cacheControl, upsert := "3600", true
	_, err := c.run(ctx, true, func() (any, error) {
		return c.api.UploadFile(c.bucket, strings.TrimLeft(path, "/"), bytes.NewReader(data), storage_go.FileOptions{
			CacheControl: &cacheControl,
			ContentType:  &contentType,
			Upsert:       &upsert,
		})
	})
	return apperr.Upstream("upload "+path, err)
}

func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	v, err := c.run(ctx, false, func() (any, error) {
		return c.api.DownloadFile(c.bucket, strings.TrimLeft(path, "/"))
	})
	if err != nil {
		return nil, apperr.Upstream("download "+path, err)
	}
	return v.([]byte), nil
}

// List returns the objects directly under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	v, err := c.run(ctx, false, func() (any, error) {
		return c.api.ListFiles(c.bucket, prefix, storage_go.FileSearchOptions{
			Limit:         100,
			SortByOptions: storage_go.SortBy{Column: "name", Order: "asc"},
		})
	})
	if err != nil {
		return nil, apperr.Upstream("list "+prefix, err)
	}
	files := v.([]storage_go.FileObject)
	objects := make([]Object, 0, len(files))
	for _, f := range files {
		objects = append(objects, Object{Name: f.Name, ID: f.Id, UpdatedAt: f.UpdatedAt})
	}
	return objects, nil
}

// Exists reports whether path is listed under its parent directory.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	dir, file := splitPath(path)
	objects, err := c.List(ctx, dir)
	if err != nil {
		return false, err
	}
	for _, o := range objects {
		if o.Name == file {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := c.run(ctx, false, func() (any, error) {
		return c.api.RemoveFile(c.bucket, paths)
	})
	return apperr.Upstream("remove "+strings.Join(paths, ","), err)
}

// EnsureBucket creates the public image bucket if it does not exist yet.
// It reports whether the bucket was created.
func (c *Client) EnsureBucket(ctx context.Context) (bool, error) {
	v, err := c.run(ctx, false, func() (any, error) {
		return c.api.ListBuckets()
	})
	if err != nil {
		return false, apperr.Upstream("list buckets", err)
	}
	for _, b := range v.([]storage_go.Bucket) {
		if b.Name == c.bucket {
			return false, nil
		}
	}

	_, err = c.run(ctx, false, func() (any, error) {
		return c.api.CreateBucket(c.bucket, storage_go.BucketOptions{
			Public:        true,
			FileSizeLimit: strconv.Itoa(MaxUploadSize),
		})
	})
	if err != nil {
		return false, apperr.Upstream("create bucket", err)
	}
	log.Printf("bucket %s created", c.bucket)
	return true, nil
}

// run executes fn through the breaker. The SDK takes no context, so the
// caller stops waiting on cancellation or timeout while fn finishes in the
// background.
func (c *Client) run(ctx context.Context, exclusive bool, fn func() (any, error)) (any, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.breaker.Execute(func() (any, error) {
			if exclusive {
				c.mu.Lock()
				defer c.mu.Unlock()
			} else {
				c.mu.RLock()
				defer c.mu.RUnlock()
			}
			v, err := fn()
			return v, classify(err)
		})
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *storage_go.StorageError
	if errors.As(err, &se) {
		if se.Status == 404 || strings.Contains(strings.ToLower(se.Message), "not found") {
			return ErrObjectNotFound
		}
		if se.Message == "" {
			return errors.New("storage request rejected")
		}
	}
	return err
}

func splitPath(path string) (dir, file string) {
	path = strings.TrimLeft(path, "/")
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
