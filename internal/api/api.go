// Package api serves the browser service over HTTP with chi.
package api

import (
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/bucketview/internal/activity"
	"github.com/koustreak/bucketview/internal/browser"
	"github.com/koustreak/bucketview/internal/config"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/hierarchy"
	"github.com/koustreak/bucketview/internal/keypath"
	"github.com/koustreak/bucketview/internal/logger"
	"github.com/koustreak/bucketview/internal/metrics"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temporary file.
const multipartMemory = 32 << 20

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	svc     *browser.Service
	cfg     *config.Config
	log     *logger.Logger
	limiter *ipRateLimiter
}

// NewHandler returns a Handler serving svc. cfg supplies server limits and
// the values reported by GET /api/config.
func NewHandler(svc *browser.Service, cfg *config.Config, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	h := &Handler{svc: svc, cfg: cfg, log: log}
	if cfg.Server.RateLimit > 0 {
		h.limiter = newIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	return h
}

// Close stops background work started by the handler.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.stop()
	}
}

// Router builds the chi router with the full middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.log.Middleware(middleware.GetReqID))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(securityHeaders)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.middleware)
		}
		r.Use(limitBody(h.cfg.Server.MaxUploadBytes))

		r.Get("/files", h.ListFiles)
		r.Post("/files", h.Upload)
		r.Get("/files/{key}", h.Download)
		r.Delete("/files/{key}", h.Delete)
		r.Post("/files/{key}/presign", h.Presign)

		r.Get("/browse", h.Browse)
		r.Get("/search", h.Search)
		r.Post("/refresh", h.Refresh)
		r.Get("/config", h.Config)
		r.Get("/buckets", h.Buckets)
		r.Get("/activity", h.Activity)
	})

	return r
}

type listResponse struct {
	Name     string                 `json:"name"`
	KeyCount int                    `json:"keyCount"`
	Contents []filestore.ObjectInfo `json:"contents"`
}

// ListFiles returns the flat listing of the bucket.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	objs, err := h.svc.Objects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Name: h.svc.Bucket(), KeyCount: len(objs), Contents: objs})
}

// Download streams the object stored under {key}.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	obj, err := h.svc.Open(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Close()

	info := obj.Info()
	ct := "application/octet-stream"
	if info != nil && info.ContentType != "" {
		ct = info.ContentType
	}
	w.Header().Set("Content-Type", ct)
	if info != nil && info.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info != nil && info.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(info.ETag))
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": keypath.Base(key),
	}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj); err != nil {
		logger.FromRequest(r).With().Err(err).Str("key", key).Logger().Warn("download interrupted")
	}
}

type browseResponse struct {
	hierarchy.Level
	Summary hierarchy.Summary `json:"summary"`
}

// Browse returns the level at ?path=.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	level, err := h.svc.Browse(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, browseResponse{Level: level, Summary: level.Summary()})
}

// Search returns files whose key contains ?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	files, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Upload stores the multipart "file" field under the "folder" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "No file uploaded"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "No file uploaded"))
		return
	}
	defer file.Close()

	key, err := h.svc.Upload(r.Context(), browser.UploadRequest{
		Folder:      r.FormValue("folder"),
		Filename:    header.Filename,
		Body:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key})
}

// Delete removes the object named by the escaped {key} segment.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Presign issues a download URL. expiresIn is read from the form or the
// query string, in seconds; missing or unparsable values select the
// default lifetime.
func (h *Handler) Presign(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var expires time.Duration
	if secs, err := strconv.ParseFloat(r.FormValue("expiresIn"), 64); err == nil && secs > 0 {
		expires = seconds(secs)
	}

	p, err := h.svc.Presign(r.Context(), key, expires)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"url":       p.URL,
		"key":       p.Key,
		"expiresIn": int64(p.ExpiresIn / time.Second),
		"expiresAt": p.ExpiresAt,
	})
}

// Refresh drops the listing snapshot.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	objs, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "objects": len(objs)})
}

type configResponse struct {
	Provider        string `json:"provider"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	Endpoint        string `json:"endpoint"`
}

// Config reports the store connection settings. The secret is masked
// unless server.expose_credentials is set.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	s := h.cfg.Store
	secret := s.SecretKey
	if !h.cfg.Server.ExposeCredentials {
		secret = mask(secret)
	}
	writeJSON(w, http.StatusOK, configResponse{
		Provider:        string(s.Provider),
		AccessKeyID:     s.AccessKey,
		SecretAccessKey: secret,
		Region:          s.Region,
		Bucket:          s.DefaultBucket,
		Endpoint:        s.Endpoint,
	})
}

// Buckets lists the buckets visible to the configured credentials.
func (h *Handler) Buckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.svc.Buckets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": h.svc.Bucket(), "buckets": buckets})
}

// Activity returns recent mutations, newest first, optionally narrowed
// by ?key= and ?action=.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = 50
	}
	events, err := h.svc.Activity(r.Context(), activity.Query{
		Key:    r.URL.Query().Get("key"),
		Action: activity.Action(r.URL.Query().Get("action")),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Health pings the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// keyParam returns the decoded {key} segment. chi routes on the escaped
// path when the request has one, so "%2F" inside a key arrives escaped.
func keyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			return "", errs.Wrap(errs.ErrKindInvalidInput, "malformed key", err)
		}
		key = unescaped
	}
	if key == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "key is required")
	}
	return key, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindInvalidInput, name+" must be an integer", err)
	}
	return n, nil
}

// seconds converts s to a Duration, saturating at the largest Duration
// instead of overflowing.
func seconds(s float64) time.Duration {
	if s >= math.MaxInt64/float64(time.Second) {
		return math.MaxInt64
	}
	return time.Duration(s * float64(time.Second))
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
