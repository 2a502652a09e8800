// Package factory opens the filestore.Store named by a Config.
package factory

import (
	"context"

	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/filestore/memory"
	"github.com/koustreak/bucketview/internal/filestore/minio"
	"github.com/koustreak/bucketview/internal/filestore/s3"
)

// Open validates cfg, connects to the configured provider and returns the
// store wrapped with metrics instrumentation.
func Open(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "storage config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store filestore.Store
		err   error
	)
	switch cfg.Provider {
	case filestore.ProviderMinIO:
		store, err = minio.New(ctx, cfg)
	case filestore.ProviderS3:
		store, err = s3.New(ctx, cfg)
	case filestore.ProviderMemory:
		store = memory.New(cfg.DefaultBucket)
	}
	if err != nil {
		return nil, err
	}

	return filestore.Instrument(store), nil
}
