// Package browser is the store-access service shared by the HTTP API and
// the CLI. It owns the listing snapshot of one bucket, hands it to the
// hierarchy projection and performs mutations. It never tracks a
// navigation path; callers pass one per request.
package browser

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/koustreak/bucketview/internal/activity"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/hierarchy"
	"github.com/koustreak/bucketview/internal/keypath"
	"github.com/koustreak/bucketview/internal/logger"
	"github.com/koustreak/bucketview/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPresign     = time.Hour
	MaxPresign         = 7 * 24 * time.Hour
	DefaultSearchLimit = 200
)

// Options configures a Service. Zero values select the defaults above, a
// Nop recorder, a Nop logger and time.Now.
type Options struct {
	Bucket string

	// ListingTTL is how long a fetched listing is reused. 0 fetches on
	// every call.
	ListingTTL time.Duration

	PresignDefault time.Duration
	PresignMax     time.Duration
	SearchLimit    int

	Recorder activity.Recorder
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service browses and mutates a single bucket.
// It is safe for concurrent use.
type Service struct {
	store filestore.Store
	opts  Options
	log   *logger.Logger

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  []filestore.ObjectInfo
	fetchedAt time.Time
	// generation increments on every invalidation so that a fetch which
	// started before a mutation cannot install its stale result.
	generation uint64
}

// New returns a Service for opts.Bucket.
func New(store filestore.Store, opts Options) *Service {
	if opts.PresignDefault <= 0 {
		opts.PresignDefault = DefaultPresign
	}
	if opts.PresignMax <= 0 {
		opts.PresignMax = MaxPresign
	}
	if opts.PresignDefault > opts.PresignMax {
		opts.PresignDefault = opts.PresignMax
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.Recorder == nil {
		opts.Recorder = activity.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store: store,
		opts:  opts,
		log:   opts.Logger.With().Str("bucket", opts.Bucket).Logger(),
	}
}

// Bucket returns the bucket the service manages.
func (s *Service) Bucket() string { return s.opts.Bucket }

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Objects returns the full recursive listing of the bucket. A snapshot
// younger than ListingTTL is reused; concurrent fetches share one store
// call. The returned slice must not be modified.
//
// The shared call is detached from any single caller's cancellation. A
// caller whose ctx ends stops waiting; the others still get the result.
func (s *Service) Objects(ctx context.Context) ([]filestore.ObjectInfo, error) {
	if objs, ok := s.cached(); ok {
		metrics.RecordListingCache(true)
		return objs, nil
	}
	metrics.RecordListingCache(false)

	ch := s.group.DoChan("list", func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ErrKindTimeout, "list objects", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]filestore.ObjectInfo), nil
	}
}

func (s *Service) cached() ([]filestore.ObjectInfo, bool) {
	if s.opts.ListingTTL <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || s.opts.Now().Sub(s.fetchedAt) >= s.opts.ListingTTL {
		return nil, false
	}
	return s.snapshot, true
}

func (s *Service) fetch(ctx context.Context) ([]filestore.ObjectInfo, error) {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	start := s.opts.Now()
	objs, err := s.store.ListObjects(ctx, s.opts.Bucket, filestore.ListOptions{Recursive: true})
	if err != nil {
		s.log.ErrorWith("list objects failed", err, nil)
		return nil, err
	}
	if objs == nil {
		objs = []filestore.ObjectInfo{}
	}

	s.mu.Lock()
	if gen == s.generation {
		s.snapshot = objs
		s.fetchedAt = start
	}
	s.mu.Unlock()

	metrics.SetListingObjects(len(objs))
	s.log.With().Int("objects", len(objs)).Logger().Debug("listing fetched")
	return objs, nil
}

// Refresh drops the snapshot and fetches the listing again.
func (s *Service) Refresh(ctx context.Context) ([]filestore.ObjectInfo, error) {
	s.invalidate()
	return s.Objects(ctx)
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.generation++
	s.mu.Unlock()
	s.group.Forget("list")
}

// Browse projects the listing at path.
func (s *Service) Browse(ctx context.Context, path string) (hierarchy.Level, error) {
	objs, err := s.Objects(ctx)
	if err != nil {
		return hierarchy.Level{}, err
	}
	level := hierarchy.Project(objs, path)
	metrics.RecordProjection(len(level.Entries))
	s.log.With().Str("path", keypath.Clean(path)).Int("entries", len(level.Entries)).Logger().Debug("browsed")
	return level, nil
}

// Search returns files whose key contains query. limit <= 0 or above the
// configured search limit is capped to it.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]hierarchy.File, error) {
	objs, err := s.Objects(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.opts.SearchLimit {
		limit = s.opts.SearchLimit
	}
	return hierarchy.Search(objs, query, limit), nil
}

// UploadRequest describes one file to store.
type UploadRequest struct {
	// Folder is the navigation path to upload into; "" is the root.
	Folder string

	// Filename is the client's file name. Only its last element is used.
	Filename string

	Body        io.Reader
	Size        int64
	ContentType string
}

// Upload stores req.Body at Folder/Filename and returns the key.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (string, error) {
	name := keypath.BaseName(req.Filename)
	if req.Body == nil || name == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "No file uploaded")
	}
	key := keypath.UploadKey(req.Folder, name)

	info, err := s.store.PutObject(ctx, s.opts.Bucket, key, req.Body, req.Size, filestore.PutOptions{
		ContentType: req.ContentType,
	})
	metrics.RecordMutation(string(activity.ActionUpload), err == nil)
	if err != nil {
		s.log.ErrorWith("upload failed", err, map[string]any{"key": key})
		return "", err
	}
	s.invalidate()

	size := req.Size
	if info != nil && info.Size >= 0 {
		size = info.Size
	}
	metrics.RecordUploadBytes(size)

	e := activity.NewEvent(activity.ActionUpload, s.opts.Bucket, key, s.opts.Now())
	e.Size = size
	s.record(ctx, e)

	s.log.InfoWith("uploaded", map[string]any{"key": key, "size": size})
	return key, nil
}

// Delete removes the object stored under key.
func (s *Service) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errs.New(errs.ErrKindInvalidInput, "key is required")
	}

	err := s.store.DeleteObject(ctx, s.opts.Bucket, key)
	metrics.RecordMutation(string(activity.ActionDelete), err == nil)
	if err != nil {
		s.log.ErrorWith("delete failed", err, map[string]any{"key": key})
		return err
	}
	s.invalidate()

	s.record(ctx, activity.NewEvent(activity.ActionDelete, s.opts.Bucket, key, s.opts.Now()))
	s.log.InfoWith("deleted", map[string]any{"key": key})
	return nil
}

// Stat returns the metadata of the object stored under key.
func (s *Service) Stat(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	if key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "key is required")
	}
	info, err := s.store.StatObject(ctx, s.opts.Bucket, key)
	if err != nil {
		if !errs.IsNotFound(err) {
			s.log.ErrorWith("stat failed", err, map[string]any{"key": key})
		}
		return nil, err
	}
	return info, nil
}

// Open returns a reader over the object stored under key. The caller must
// close it.
func (s *Service) Open(ctx context.Context, key string) (filestore.Object, error) {
	if key == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "key is required")
	}
	obj, err := s.store.GetObject(ctx, s.opts.Bucket, key)
	if err != nil {
		if !errs.IsNotFound(err) {
			s.log.ErrorWith("open failed", err, map[string]any{"key": key})
		}
		return nil, err
	}
	return obj, nil
}

// Buckets lists the buckets the configured credentials can see. The
// service still serves only its own bucket.
func (s *Service) Buckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	buckets, err := s.store.ListBuckets(ctx)
	if err != nil {
		s.log.ErrorWith("list buckets failed", err, nil)
		return nil, err
	}
	if buckets == nil {
		buckets = []filestore.BucketInfo{}
	}
	return buckets, nil
}

// Presigned is a time-limited download link.
type Presigned struct {
	URL       string        `json:"url"`
	Key       string        `json:"key"`
	ExpiresIn time.Duration `json:"-"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Presign issues a download URL for key. expiresIn <= 0 selects the
// default lifetime; longer requests are clamped to the maximum.
func (s *Service) Presign(ctx context.Context, key string, expiresIn time.Duration) (Presigned, error) {
	if key == "" {
		return Presigned{}, errs.New(errs.ErrKindInvalidInput, "key is required")
	}
	expiresIn = s.Lifetime(expiresIn)

	// PresignGetURL signs any key, so existence is checked first.
	if _, err := s.Stat(ctx, key); err != nil {
		metrics.RecordMutation(string(activity.ActionPresign), false)
		return Presigned{}, err
	}

	now := s.opts.Now()
	url, err := s.store.PresignGetURL(ctx, s.opts.Bucket, key, expiresIn)
	metrics.RecordMutation(string(activity.ActionPresign), err == nil)
	if err != nil {
		s.log.ErrorWith("presign failed", err, map[string]any{"key": key})
		return Presigned{}, err
	}

	e := activity.NewEvent(activity.ActionPresign, s.opts.Bucket, key, now)
	e.Detail = "expires in " + expiresIn.String()
	s.record(ctx, e)

	return Presigned{
		URL:       url,
		Key:       key,
		ExpiresIn: expiresIn,
		ExpiresAt: now.Add(expiresIn).UTC(),
	}, nil
}

// Lifetime applies the default and the maximum to a requested presign
// lifetime.
func (s *Service) Lifetime(expiresIn time.Duration) time.Duration {
	switch {
	case expiresIn <= 0:
		return s.opts.PresignDefault
	case expiresIn > s.opts.PresignMax:
		return s.opts.PresignMax
	default:
		return expiresIn
	}
}

// Activity returns the recorded mutations of this bucket matching q,
// newest first. q.Bucket is always replaced by the service's bucket.
func (s *Service) Activity(ctx context.Context, q activity.Query) ([]activity.Event, error) {
	q.Bucket = s.opts.Bucket
	return s.opts.Recorder.Recent(ctx, q)
}

// record stores e; a failing recorder never fails the mutation.
func (s *Service) record(ctx context.Context, e activity.Event) {
	if err := s.opts.Recorder.Record(ctx, e); err != nil {
		s.log.With().Err(err).Str("action", string(e.Action)).Str("key", e.Key).Logger().Warn("activity not recorded")
	}
}

// Close releases the recorder. The store is owned by the caller.
func (s *Service) Close() {
	s.opts.Recorder.Close()
}
