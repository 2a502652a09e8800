package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/bucketview/internal/database"
	"github.com/koustreak/bucketview/internal/errs"
)

// TableName is the table SQL records into.
const TableName = "bucketview_activity"

var columns = []string{"id", "action", "bucket", "object_key", "size", "detail", "occurred_at"}

// SQL records events into a table through database.DB.
type SQL struct {
	db database.DB
}

var _ Recorder = (*SQL)(nil)

// NewSQL wraps db. Call Migrate before the first Record.
func NewSQL(db database.DB) *SQL {
	return &SQL{db: db}
}

// Migrate creates the events table if it does not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range ddl(s.db.Dialect()) {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func ddl(d database.Dialect) []string {
	q := d.QuoteIdent
	table := q(TableName)
	body := "" +
		q("id") + " VARCHAR(36) PRIMARY KEY, " +
		q("action") + " VARCHAR(16) NOT NULL, " +
		q("bucket") + " VARCHAR(255) NOT NULL, " +
		q("object_key") + " VARCHAR(1024) NOT NULL, " +
		q("size") + " BIGINT NOT NULL, " +
		q("detail") + " TEXT NOT NULL, " +
		q("occurred_at") + " BIGINT NOT NULL"

	// MySQL has no CREATE INDEX IF NOT EXISTS; declare the index inline.
	if d == database.DialectMySQL {
		return []string{
			"CREATE TABLE IF NOT EXISTS " + table + " (" + body +
				", INDEX " + q("idx_activity_occurred_at") + " (" + q("occurred_at") + "))",
		}
	}
	return []string{
		"CREATE TABLE IF NOT EXISTS " + table + " (" + body + ")",
		"CREATE INDEX IF NOT EXISTS " + q("idx_activity_occurred_at") + " ON " + table + " (" + q("occurred_at") + ")",
	}
}

func (s *SQL) Record(ctx context.Context, e Event) error {
	query, args, err := database.Insert(TableName, s.db.Dialect(), columns, []any{
		e.ID.String(), string(e.Action), e.Bucket, e.Key, e.Size, e.Detail, e.At.UnixMilli(),
	})
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, query, args...)
	return err
}

func (s *SQL) Recent(ctx context.Context, q Query) ([]Event, error) {
	b := database.Select(TableName, s.db.Dialect()).Columns(columns...)
	if q.Bucket != "" {
		b.Where("bucket", "=", q.Bucket)
	}
	if q.Key != "" {
		b.Where("object_key", "=", q.Key)
	}
	if q.Action != "" {
		b.Where("action", "=", string(q.Action))
	}
	b.OrderBy("occurred_at", database.Desc)
	if q.Limit > 0 {
		b.Limit(q.Limit)
	}
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e      Event
			id     string
			action string
			millis int64
		)
		if err := rows.Scan(&id, &action, &e.Bucket, &e.Key, &e.Size, &e.Detail, &millis); err != nil {
			return nil, errs.Wrap(errs.ErrKindOperationFailed, "scan activity row", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, errs.Wrap(errs.ErrKindOperationFailed, "activity row has a malformed id", err)
		}
		e.Action = Action(action)
		e.At = time.UnixMilli(millis).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindOperationFailed, "iterate activity rows", err)
	}
	return out, nil
}

func (s *SQL) Close() {
	s.db.Close()
}
