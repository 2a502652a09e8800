// Package memory provides an in-process filestore.Store.
//
// It backs the "memory" provider used for local demos and for tests of the
// layers above filestore. Contents are lost when the process exits.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
)

type item struct {
	data []byte
	info filestore.ObjectInfo
}

// Store is a mutex-guarded map of buckets to objects.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]item
	created map[string]time.Time
	now     func() time.Time
}

var _ filestore.Store = (*Store)(nil)

// New returns an empty store holding the given buckets.
func New(buckets ...string) *Store {
	s := &Store{
		buckets: make(map[string]map[string]item),
		created: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]item)
		s.created[b] = s.now()
	}
	return s
}

// Seed stores objects directly, bypassing PutObject. Sizes are taken from
// data; LastModified is kept when set.
func (s *Store) Seed(bucket string, objects map[string][]byte, lastModified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = make(map[string]item)
		s.created[bucket] = s.now()
	}
	for key, data := range objects {
		s.buckets[bucket][key] = newItem(key, data, "", lastModified)
	}
}

func newItem(key string, data []byte, contentType string, at time.Time) item {
	sum := md5.Sum(data)
	return item{
		data: data,
		info: filestore.ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  contentType,
			ETag:         hex.EncodeToString(sum[:]),
			LastModified: at,
			IsDir:        strings.HasSuffix(key, "/"),
		},
	}
}

func (s *Store) bucket(name string) (map[string]item, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", name)
	}
	return b, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// ListBuckets returns the buckets sorted by name.
func (s *Store) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]filestore.BucketInfo, 0, len(s.buckets))
	for name := range s.buckets {
		out = append(out, filestore.BucketInfo{Name: name, CreatedAt: s.created[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListObjects returns objects in key order, mimicking S3 delimiter listing
// when opts.Recursive is false.
func (s *Store) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "failed to list objects", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b))
	for k := range b {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.Marker {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []filestore.ObjectInfo
	seen := make(map[string]bool)
	for _, k := range keys {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		if !opts.Recursive {
			rest := k[len(opts.Prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				cp := opts.Prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out = append(out, filestore.ObjectInfo{Key: cp, IsDir: true})
				}
				continue
			}
		}
		out = append(out, b[k].info)
	}
	return out, nil
}

// GetObject returns a reader over a copy of the object's bytes.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := it.info
	return &object{
		ReadCloser: io.NopCloser(bytes.NewReader(it.data)),
		info:       &info,
	}, nil
}

// StatObject returns the object's metadata.
func (s *Store) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := it.info
	return &info, nil
}

func (s *Store) lookup(bucket, key string) (item, error) {
	b, err := s.bucket(bucket)
	if err != nil {
		return item{}, err
	}
	it, ok := b[key]
	if !ok {
		return item{}, errs.Newf(errs.ErrKindNotFound, "object %q does not exist", key)
	}
	return it, nil
}

// PutObject reads body fully and stores it under key.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.PutOptions) (*filestore.ObjectInfo, error) {
	if key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "object key is empty")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindOperationFailed, "failed to read upload body", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "body has %d bytes, expected %d", len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	it := newItem(key, data, opts.ContentType, s.now())
	b[key] = it
	info := it.info
	return &info, nil
}

// DeleteObject removes key; a missing key is not an error.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	delete(b, key)
	return nil
}

// PresignGetURL returns a memory:// URL carrying the expiry. It is not
// fetchable; it exists so callers can exercise the presign flow.
func (s *Store) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.lookup(bucket, key); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme:   "memory",
		Host:     bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {fmt.Sprint(int64(ttl.Seconds()))}}.Encode(),
	}
	return u.String(), nil
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
