// Package objstore opens catalog datasets from the local filesystem or from a
// gocloud blob bucket (file://, s3://, mem://).
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Config carries defaults applied to s3:// locations that do not set them.
type Config struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// Location is a parsed dataset location. BucketURL is empty for local files.
type Location struct {
	BucketURL string
	Key       string
	Path      string
}

func (l Location) IsLocal() bool { return l.BucketURL == "" }

func (l Location) String() string {
	if l.IsLocal() {
		return l.Path
	}
	return l.BucketURL + " " + l.Key
}

// Parse splits a location into bucket and key. Anything without a scheme is a
// local path.
func Parse(location string) (Location, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Location{}, errors.New("empty dataset location")
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // 1: windows drive letter
		return Location{Path: location}, nil
	}
	switch u.Scheme {
	case "file":
		dir, key := path.Split(u.Path)
		if key == "" {
			return Location{}, fmt.Errorf("no object key in %q", location)
		}
		return Location{BucketURL: "file://" + strings.TrimSuffix(dir, "/"), Key: key}, nil
	case "s3", "mem":
		key := sanitizeKey(u.Path)
		if key == "" {
			return Location{}, fmt.Errorf("no object key in %q", location)
		}
		b := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
		return Location{BucketURL: b.String(), Key: key}, nil
	}
	return Location{}, fmt.Errorf("unsupported dataset scheme %q", u.Scheme)
}

// Opener opens dataset locations and keeps the buckets it opened until
// Close.
type Opener struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*blob.Bucket
}

func NewOpener(cfg Config) *Opener { return &Opener{cfg: cfg, buckets: map[string]*blob.Bucket{}} }

// Open returns a reader for the object or file at location.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := Parse(location)
	if err != nil {
		return nil, err
	}
	if loc.IsLocal() {
		return os.Open(loc.Path)
	}
	bk, err := o.bucket(ctx, loc.BucketURL)
	if err != nil {
		return nil, err
	}
	return bk.NewReader(ctx, loc.Key, nil)
}

// Put writes data to location, creating it if needed.
func (o *Opener) Put(ctx context.Context, location string, data []byte) error {
	loc, err := Parse(location)
	if err != nil {
		return err
	}
	if loc.IsLocal() {
		if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(loc.Path, data, 0o644)
	}
	bk, err := o.bucket(ctx, loc.BucketURL)
	if err != nil {
		return err
	}
	return bk.WriteAll(ctx, loc.Key, data, &blob.WriterOptions{ContentType: "text/csv"})
}

func (o *Opener) bucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	bucketURL = o.withDefaults(bucketURL)
	o.mu.Lock()
	defer o.mu.Unlock()
	if bk, ok := o.buckets[bucketURL]; ok {
		return bk, nil
	}
	bk, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	o.buckets[bucketURL] = bk
	return bk, nil
}

// withDefaults fills s3 query parameters from the config.
func (o *Opener) withDefaults(bucketURL string) string {
	u, err := url.Parse(bucketURL)
	if err != nil || u.Scheme != "s3" {
		return bucketURL
	}
	q := u.Query()
	if o.cfg.Region != "" && q.Get("region") == "" {
		q.Set("region", o.cfg.Region)
	}
	if o.cfg.Endpoint != "" && q.Get("endpoint") == "" {
		q.Set("endpoint", o.cfg.Endpoint)
	}
	if o.cfg.ForcePathStyle && q.Get("s3ForcePathStyle") == "" {
		q.Set("s3ForcePathStyle", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for k, bk := range o.buckets {
		errs = append(errs, bk.Close())
		delete(o.buckets, k)
	}
	return errors.Join(errs...)
}

// sanitizeKey prevents path traversal.
func sanitizeKey(key string) string {
	key = filepath.ToSlash(key)
	key = strings.TrimLeft(key, "/")
	parts := strings.Split(key, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
