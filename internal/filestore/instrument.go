package filestore

import (
	"context"
	"io"
	"time"

	"github.com/koustreak/bucketview/internal/metrics"
)

// Instrument wraps s so that every call is timed and counted in the
// metrics package under the operation's name.
func Instrument(s Store) Store {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{next: s}
}

type instrumented struct {
	next Store
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, time.Since(start), err == nil)
}

func (s *instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	observe("ping", start, err)
	return err
}

func (s *instrumented) Close() error {
	return s.next.Close()
}

func (s *instrumented) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	start := time.Now()
	out, err := s.next.ListBuckets(ctx)
	observe("list_buckets", start, err)
	return out, err
}

func (s *instrumented) ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error) {
	start := time.Now()
	out, err := s.next.ListObjects(ctx, bucket, opts)
	observe("list_objects", start, err)
	return out, err
}

func (s *instrumented) GetObject(ctx context.Context, bucket, key string) (Object, error) {
	start := time.Now()
	out, err := s.next.GetObject(ctx, bucket, key)
	observe("get_object", start, err)
	return out, err
}

func (s *instrumented) StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	start := time.Now()
	out, err := s.next.StatObject(ctx, bucket, key)
	observe("stat_object", start, err)
	return out, err
}

func (s *instrumented) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts PutOptions) (*ObjectInfo, error) {
	start := time.Now()
	out, err := s.next.PutObject(ctx, bucket, key, body, size, opts)
	observe("put_object", start, err)
	return out, err
}

func (s *instrumented) DeleteObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := s.next.DeleteObject(ctx, bucket, key)
	observe("delete_object", start, err)
	return err
}

func (s *instrumented) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	start := time.Now()
	out, err := s.next.PresignGetURL(ctx, bucket, key, ttl)
	observe("presign_get", start, err)
	return out, err
}
