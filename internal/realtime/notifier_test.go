package realtime

import (
	"context"
	"testing"
	"time"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/note"
)

const campaignID = "cmp_rt"

func setup(t *testing.T) (*Notifier, *note.Store) {
	t.Helper()
	docs := docstore.NewMemory()
	return NewNotifier(docs), note.NewStore(docs)
}

func collect(t *testing.T, n *Notifier, userID string, role campaign.Role) (*Subscription, chan []note.Note) {
	t.Helper()
	snapshots := make(chan []note.Note, 16)
	sub, err := n.Subscribe(context.Background(), campaignID, userID, role, func(notes []note.Note) {
		snapshots <- notes
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(sub.Close)
	return sub, snapshots
}

func nextSnapshot(t *testing.T, snapshots chan []note.Note) []note.Note {
	t.Helper()
	select {
	case snap := <-snapshots:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func titles(notes []note.Note) map[string]bool {
	set := make(map[string]bool, len(notes))
	for _, n := range notes {
		set[n.Title] = true
	}
	return set
}

func TestPlayerSnapshotsExcludeHiddenNotes(t *testing.T) {
	notifier, notes := setup(t)
	ctx := context.Background()

	if _, err := notes.Create(ctx, campaignID, note.Author{ID: "user-dm"}, campaign.RoleOwner, note.CreateInput{Title: "Hidden plan", Type: note.TypeOwner}); err != nil {
		t.Fatalf("create: %v", err)
	}

	sub, playerSnaps := collect(t, notifier, "user-p1", campaign.RolePlayer)
	_, ownerSnaps := collect(t, notifier, "user-dm", campaign.RoleOwner)

	if snap := nextSnapshot(t, playerSnaps); len(snap) != 0 {
		t.Fatalf("player initial snapshot should be empty, got %+v", snap)
	}
	if snap := nextSnapshot(t, ownerSnaps); len(snap) != 1 {
		t.Fatalf("owner initial snapshot should have 1 note, got %+v", snap)
	}
	if sub.State() != Active {
		t.Fatalf("expected Active after first delivery, got %s", sub.State())
	}

	if _, err := notes.Create(ctx, campaignID, note.Author{ID: "user-p1"}, campaign.RolePlayer, note.CreateInput{Title: "Shared find", Type: note.TypeShared}); err != nil {
		t.Fatalf("create shared: %v", err)
	}
	snap := nextSnapshot(t, playerSnaps)
	if len(snap) != 1 || snap[0].Title != "Shared find" {
		t.Fatalf("player should see only the shared note, got %+v", snap)
	}
}

func TestRevealShowsUpInPlayerSnapshot(t *testing.T) {
	notifier, notes := setup(t)
	ctx := context.Background()

	hidden, err := notes.Create(ctx, campaignID, note.Author{ID: "user-dm"}, campaign.RoleOwner, note.CreateInput{Title: "The twist", Type: note.TypeOwner})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, playerSnaps := collect(t, notifier, "user-p1", campaign.RolePlayer)
	if snap := nextSnapshot(t, playerSnaps); len(snap) != 0 {
		t.Fatalf("hidden note leaked into initial snapshot: %+v", snap)
	}

	if _, err := notes.Reveal(ctx, campaignID, hidden.ID, "user-dm", campaign.RoleOwner); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-playerSnaps:
			if titles(snap)["The twist"] {
				return
			}
		case <-deadline:
			t.Fatal("revealed note never reached player snapshot")
		}
	}
}

func TestCloseStopsDeliveries(t *testing.T) {
	notifier, notes := setup(t)
	ctx := context.Background()

	sub, snaps := collect(t, notifier, "user-p1", campaign.RolePlayer)
	nextSnapshot(t, snaps)

	sub.Close()
	sub.Close()
	if sub.State() != Closed {
		t.Fatalf("expected Closed, got %s", sub.State())
	}

	if _, err := notes.Create(ctx, campaignID, note.Author{ID: "user-p1"}, campaign.RolePlayer, note.CreateInput{Title: "Late", Type: note.TypeShared}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Allow any in-flight delivery to drain, then confirm silence.
	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case snap := <-snaps:
			if titles(snap)["Late"] {
				t.Fatal("delivery after Close")
			}
		default:
			return
		}
	}
}
