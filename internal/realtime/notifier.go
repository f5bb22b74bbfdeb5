// Package realtime pushes note snapshots to connected clients. Each
// subscriber gets the full visible set on every change, re-filtered for
// that subscriber, so a reveal shows up and a retraction disappears
// without any client-side merging.
package realtime

import (
	"context"
	"log"
	"sync/atomic"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/note"
)

// State tracks a subscription's lifecycle. It moves Pending -> Active on
// the first delivered snapshot and lands in Closed exactly once.
type State int32

const (
	Pending State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// SnapshotFunc receives each visible snapshot. Calls stop after Close,
// though one in-flight delivery may still land just after.
type SnapshotFunc func(notes []note.Note)

type Notifier struct {
	docs docstore.Store
}

func NewNotifier(docs docstore.Store) *Notifier {
	return &Notifier{docs: docs}
}

type Subscription struct {
	campaignID string
	userID     string
	role       campaign.Role
	state      atomic.Int32
	src        *docstore.Subscription
}

// Subscribe streams visibility-filtered snapshots of a campaign's notes
// to fn. Slow consumers never block writers; intermediate snapshots are
// dropped in favor of the latest.
func (n *Notifier) Subscribe(ctx context.Context, campaignID, userID string, role campaign.Role, fn SnapshotFunc) (*Subscription, error) {
	src, err := n.docs.Subscribe(ctx, campaign.NotesCollection(campaignID), docstore.Filter{})
	if err != nil {
		return nil, err
	}
	sub := &Subscription{campaignID: campaignID, userID: userID, role: role, src: src}
	go sub.run(fn)
	return sub, nil
}

func (s *Subscription) run(fn SnapshotFunc) {
	for event := range s.src.C {
		if State(s.state.Load()) == Closed {
			return
		}
		notes := make([]note.Note, 0, len(event.Docs))
		for _, doc := range event.Docs {
			decoded, err := note.Decode(doc.Data)
			if err != nil {
				log.Printf("realtime: skipping malformed note %s: %v", doc.Path, err)
				continue
			}
			notes = append(notes, decoded)
		}
		note.SortNotes(notes)
		s.state.CompareAndSwap(int32(Pending), int32(Active))
		fn(note.FilterVisible(notes, s.userID, s.role))
	}
}

func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Close is idempotent and stops further deliveries.
func (s *Subscription) Close() {
	s.state.Store(int32(Closed))
	s.src.Close()
}
