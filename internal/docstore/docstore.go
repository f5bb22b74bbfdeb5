// Package docstore defines the document-store contract the engine runs on:
// per-document atomic read-modify-write, field queries, and snapshot change
// subscriptions. Backends: memory (dev/tests), redis, postgres.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("docstore: not found")
	ErrConflict = errors.New("docstore: conflict")
)

// Doc is a committed document snapshot.
type Doc struct {
	Path      string
	Data      json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// UpdateFn transforms the current document data into the next. current is
// nil when the document does not exist yet. Returning an error aborts the
// update and surfaces that error unchanged to the caller.
type UpdateFn func(current json.RawMessage) (json.RawMessage, error)

// Op is a query comparison operator.
type Op string

const OpEqual Op = "=="

// Filter matches documents by a top-level field. The zero Filter matches
// every document in the collection.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// Event carries the full current matching document set of a collection.
// Subscribers always receive complete snapshots, never diffs.
type Event struct {
	Docs []Doc
}

// Store is the storage collaborator contract. A document path is a
// slash-separated key; its collection is the path up to the final segment
// (campaigns/c1/notes/n1 lives in collection campaigns/c1/notes).
type Store interface {
	Get(ctx context.Context, path string) (Doc, error)
	// Update applies fn as an atomic compare-and-swap, creating the
	// document if fn accepts a nil current. Concurrent updates retry
	// internally; exhausting retries returns ErrConflict.
	Update(ctx context.Context, path string, fn UpdateFn) (Doc, error)
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, collection string, filter Filter) ([]Doc, error)
	// Subscribe emits an initial snapshot, then a fresh snapshot after
	// every committed change in the collection. Delivery is asynchronous
	// and coalescing: slow consumers observe the latest state.
	Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error)
	// Now returns a server-assigned timestamp.
	Now(ctx context.Context) time.Time
	Ping(ctx context.Context) error
	Close() error
}

// Subscription is a cancellable change stream. After Close returns no new
// snapshots are produced, though one in-flight event may still be read
// from C by a concurrent receiver.
type Subscription struct {
	C      <-chan Event
	cancel func()
	once   sync.Once
}

func newSubscription(ch <-chan Event, cancel func()) *Subscription {
	return &Subscription{C: ch, cancel: cancel}
}

// Close tears the stream down. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Collection returns the collection a document path belongs to.
func Collection(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// Matches reports whether a document satisfies the filter.
func (f Filter) Matches(doc Doc) bool {
	if f.Field == "" {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		return false
	}
	value, ok := fields[f.Field].(string)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual, "":
		return value == f.Value
	default:
		return false
	}
}

// send delivers an event without blocking the producer: if the consumer
// has not drained the previous snapshot it is replaced by the newer one.
func send(ch chan Event, event Event) {
	select {
	case ch <- event:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}
