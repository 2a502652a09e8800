// Package activity keeps an audit trail of bucket mutations.
//
// The browser service records one Event per upload, delete and presign.
// Where the events go is a deployment choice: nowhere (Nop), a bounded
// in-process ring (Memory), or a SQL table (SQL).
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names a mutation.
type Action string

const (
	ActionUpload  Action = "upload"
	ActionDelete  Action = "delete"
	ActionPresign Action = "presign"
)

// Event is one recorded mutation.
type Event struct {
	ID     uuid.UUID `json:"id"`
	Action Action    `json:"action"`
	Bucket string    `json:"bucket"`
	Key    string    `json:"key"`
	Size   int64     `json:"size"`
	At     time.Time `json:"at"`

	// Detail is free-form context, e.g. the presign lifetime.
	Detail string `json:"detail,omitempty"`
}

// NewEvent returns an Event with a fresh ID.
func NewEvent(action Action, bucket, key string, at time.Time) Event {
	return Event{
		ID:     uuid.New(),
		Action: action,
		Bucket: bucket,
		Key:    key,
		At:     at.UTC(),
	}
}

// Query selects events. Empty fields match every event.
type Query struct {
	Bucket string
	Key    string
	Action Action

	// Limit caps the result; <= 0 returns every match.
	Limit int
}

func (q Query) matches(e Event) bool {
	return (q.Bucket == "" || e.Bucket == q.Bucket) &&
		(q.Key == "" || e.Key == q.Key) &&
		(q.Action == "" || e.Action == q.Action)
}

// Recorder stores and retrieves events. Implementations are safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Event) error

	// Recent returns the events matching q, newest first.
	Recent(ctx context.Context, q Query) ([]Event, error)

	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func (Nop) Recent(context.Context, Query) ([]Event, error) { return []Event{}, nil }

func (Nop) Close() {}

var _ Recorder = Nop{}
