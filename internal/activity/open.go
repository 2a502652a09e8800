package activity

import (
	"context"

	"github.com/koustreak/bucketview/internal/database"
	"github.com/koustreak/bucketview/internal/database/mysql"
	"github.com/koustreak/bucketview/internal/database/postgres"
)

// DriverMemory selects the in-process ring instead of a database.
const DriverMemory database.Driver = "memory"

// Open returns the recorder named by cfg.Driver: Nop when empty, Memory for
// "memory", or a migrated SQL recorder for postgres and mysql.
func Open(ctx context.Context, cfg *database.Config) (Recorder, error) {
	if cfg == nil || cfg.Driver == "" {
		return Nop{}, nil
	}
	if cfg.Driver == DriverMemory {
		return NewMemory(DefaultMemoryCapacity), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  database.DB
		err error
	)
	switch cfg.Driver {
	case database.DriverPostgres:
		db, err = postgres.New(ctx, cfg)
	case database.DriverMySQL:
		db, err = mysql.New(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	rec := NewSQL(db)
	if err := rec.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return rec, nil
}
