package note

import (
	"context"
	"errors"
	"testing"
	"time"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/docstore"
)

const campaignID = "cmp_test"

var (
	dm     = Author{ID: "user-dm", Name: "Mira"}
	player = Author{ID: "user-p1", Name: "Theo"}
	other  = Author{ID: "user-p2", Name: "Anya"}
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(docstore.NewMemory())
}

func TestCreateValidation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, campaignID, player, campaign.RolePlayer, CreateInput{Type: "secret"}); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if _, err := store.Create(ctx, campaignID, player, campaign.RolePlayer, CreateInput{Type: TypeOwner}); !errors.Is(err, campaign.ErrPermissionDenied) {
		t.Fatalf("player creating owner note: expected ErrPermissionDenied, got %v", err)
	}

	n, err := store.Create(ctx, campaignID, player, campaign.RolePlayer, CreateInput{
		Title:   "  The sewer map  ",
		Content: "Entrance behind the tannery.",
		Type:    TypeShared,
		Tags:    []string{"Maps", "maps", " locations "},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Title != "The sewer map" {
		t.Fatalf("title not trimmed: %q", n.Title)
	}
	if len(n.Tags) != 2 || n.Tags[0] != "maps" || n.Tags[1] != "locations" {
		t.Fatalf("tags not normalized: %v", n.Tags)
	}

	untitled, err := store.Create(ctx, campaignID, player, campaign.RolePlayer, CreateInput{Type: TypePersonal})
	if err != nil {
		t.Fatalf("create untitled: %v", err)
	}
	if untitled.Title != "Untitled" {
		t.Fatalf("expected Untitled default, got %q", untitled.Title)
	}
}

func TestVisibilityRules(t *testing.T) {
	promoted := Note{Type: TypeShared, AuthorID: dm.ID, IsRevealed: true}
	hidden := Note{Type: TypeOwner, AuthorID: dm.ID}
	personal := Note{Type: TypePersonal, AuthorID: player.ID}
	shared := Note{Type: TypeShared, AuthorID: player.ID}

	cases := []struct {
		name    string
		n       Note
		viewer  string
		role    campaign.Role
		visible bool
	}{
		{"owner sees hidden owner note", hidden, dm.ID, campaign.RoleOwner, true},
		{"player blind to hidden owner note", hidden, player.ID, campaign.RolePlayer, false},
		{"player sees promoted note", promoted, player.ID, campaign.RolePlayer, true},
		{"author sees own personal note", personal, player.ID, campaign.RolePlayer, true},
		{"other player blind to personal note", personal, other.ID, campaign.RolePlayer, false},
		{"owner sees personal note", personal, dm.ID, campaign.RoleOwner, true},
		{"everyone sees shared note", shared, other.ID, campaign.RolePlayer, true},
	}
	for _, tc := range cases {
		if got := Visible(tc.n, tc.viewer, tc.role); got != tc.visible {
			t.Errorf("%s: Visible=%v, want %v", tc.name, got, tc.visible)
		}
	}
}

func TestListFiltersPerViewer(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	mustCreate(t, store, dm, campaign.RoleOwner, CreateInput{Title: "Villain's plan", Type: TypeOwner})
	mustCreate(t, store, player, campaign.RolePlayer, CreateInput{Title: "My suspicions", Type: TypePersonal})
	mustCreate(t, store, player, campaign.RolePlayer, CreateInput{Title: "Party ledger", Type: TypeShared})

	ownerView, err := store.List(ctx, campaignID, dm.ID, campaign.RoleOwner)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(ownerView) != 3 {
		t.Fatalf("owner should see 3 notes, got %d", len(ownerView))
	}

	authorView, err := store.List(ctx, campaignID, player.ID, campaign.RolePlayer)
	if err != nil {
		t.Fatalf("author list: %v", err)
	}
	if len(authorView) != 2 {
		t.Fatalf("author should see 2 notes, got %d", len(authorView))
	}

	otherView, err := store.List(ctx, campaignID, other.ID, campaign.RolePlayer)
	if err != nil {
		t.Fatalf("other list: %v", err)
	}
	if len(otherView) != 1 || otherView[0].Title != "Party ledger" {
		t.Fatalf("other player should see only the shared note, got %+v", otherView)
	}
}

func TestGetHidesInvisibleNotes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	n := mustCreate(t, store, dm, campaign.RoleOwner, CreateInput{Title: "Villain's plan", Type: TypeOwner})
	if _, err := store.Get(ctx, campaignID, n.ID, player.ID, campaign.RolePlayer); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("hidden note should read as missing, got %v", err)
	}
	if _, err := store.Get(ctx, campaignID, n.ID, dm.ID, campaign.RoleOwner); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestUpdateRecordsHistory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	n := mustCreate(t, store, player, campaign.RolePlayer, CreateInput{
		Title: "Party ledger", Content: "10 gold", Type: TypeShared,
	})

	content := "8 gold after the inn"
	updated, err := store.Update(ctx, campaignID, n.ID, other.ID, campaign.RolePlayer, UpdateInput{Content: &content})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != content {
		t.Fatalf("content not updated: %q", updated.Content)
	}
	if len(updated.EditHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(updated.EditHistory))
	}
	entry := updated.EditHistory[0]
	if entry.EditorID != other.ID || entry.PreviousContent != "10 gold" {
		t.Fatalf("unexpected history entry: %+v", entry)
	}

	// Second edit lands newest-first.
	content2 := "2 gold after the bribe"
	updated, err = store.Update(ctx, campaignID, n.ID, player.ID, campaign.RolePlayer, UpdateInput{Content: &content2})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(updated.EditHistory) != 2 || updated.EditHistory[0].PreviousContent != content {
		t.Fatalf("history not newest-first: %+v", updated.EditHistory)
	}

	// Title-only edits append too: one entry per update call, carrying
	// the untouched content.
	title := "Treasury"
	updated, err = store.Update(ctx, campaignID, n.ID, player.ID, campaign.RolePlayer, UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("title update: %v", err)
	}
	if len(updated.EditHistory) != 3 {
		t.Fatalf("expected 3 history entries after 3 updates, got %d", len(updated.EditHistory))
	}
	if updated.EditHistory[0].PreviousContent != content2 {
		t.Fatalf("title edit should carry the current content: %+v", updated.EditHistory[0])
	}
	if updated.Content != content2 {
		t.Fatalf("title edit must not touch content: %q", updated.Content)
	}
}

func TestUpdatePermissions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := "edited"

	personal := mustCreate(t, store, player, campaign.RolePlayer, CreateInput{Title: "Diary", Type: TypePersonal, Content: "secret"})
	if _, err := store.Update(ctx, campaignID, personal.ID, other.ID, campaign.RolePlayer, UpdateInput{Content: &content}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("invisible personal note should read as missing, got %v", err)
	}
	if _, err := store.Update(ctx, campaignID, personal.ID, dm.ID, campaign.RoleOwner, UpdateInput{Content: &content}); err != nil {
		t.Fatalf("owner edit of personal note: %v", err)
	}

	ownerNote := mustCreate(t, store, dm, campaign.RoleOwner, CreateInput{Title: "Plan", Type: TypeOwner, Content: "ambush"})
	// Hidden owner notes read as missing to players.
	if _, err := store.Update(ctx, campaignID, ownerNote.ID, player.ID, campaign.RolePlayer, UpdateInput{Content: &content}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("player editing hidden owner note: expected ErrNotFound, got %v", err)
	}
	revealed, err := store.Reveal(ctx, campaignID, ownerNote.ID, dm.ID, campaign.RoleOwner)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	// Once promoted the note is shared and any member may edit it.
	if _, err := store.Update(ctx, campaignID, revealed.ID, player.ID, campaign.RolePlayer, UpdateInput{Content: &content}); err != nil {
		t.Fatalf("player editing promoted note: %v", err)
	}
}

func TestRevealRatchet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	n := mustCreate(t, store, dm, campaign.RoleOwner, CreateInput{Title: "The twist", Type: TypeOwner})

	if _, err := store.Reveal(ctx, campaignID, n.ID, player.ID, campaign.RolePlayer); !errors.Is(err, campaign.ErrPermissionDenied) {
		t.Fatalf("player reveal: expected ErrPermissionDenied, got %v", err)
	}

	revealed, err := store.Reveal(ctx, campaignID, n.ID, dm.ID, campaign.RoleOwner)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !revealed.IsRevealed || revealed.RevealedAt == nil {
		t.Fatalf("note not revealed: %+v", revealed)
	}
	if revealed.Type != TypeShared {
		t.Fatalf("reveal must promote the type to shared, got %q", revealed.Type)
	}
	firstRevealedAt := *revealed.RevealedAt

	time.Sleep(5 * time.Millisecond)
	again, err := store.Reveal(ctx, campaignID, n.ID, dm.ID, campaign.RoleOwner)
	if err != nil {
		t.Fatalf("second reveal: %v", err)
	}
	if !again.RevealedAt.Equal(firstRevealedAt) {
		t.Fatal("second reveal moved the reveal timestamp")
	}

	personal := mustCreate(t, store, dm, campaign.RoleOwner, CreateInput{Title: "Diary", Type: TypePersonal})
	if _, err := store.Reveal(ctx, campaignID, personal.ID, dm.ID, campaign.RoleOwner); !errors.Is(err, ErrNotRevealable) {
		t.Fatalf("personal reveal: expected ErrNotRevealable, got %v", err)
	}

	shared := mustCreate(t, store, dm, campaign.RoleOwner, CreateInput{Title: "Ledger", Type: TypeShared})
	if _, err := store.Reveal(ctx, campaignID, shared.ID, dm.ID, campaign.RoleOwner); !errors.Is(err, ErrNotRevealable) {
		t.Fatalf("born-shared reveal: expected ErrNotRevealable, got %v", err)
	}
}

func TestDeletePermissions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	shared := mustCreate(t, store, player, campaign.RolePlayer, CreateInput{Title: "Ledger", Type: TypeShared})
	if err := store.Delete(ctx, campaignID, shared.ID, other.ID, campaign.RolePlayer); !errors.Is(err, campaign.ErrPermissionDenied) {
		t.Fatalf("non-author delete: expected ErrPermissionDenied, got %v", err)
	}
	if err := store.Delete(ctx, campaignID, shared.ID, player.ID, campaign.RolePlayer); err != nil {
		t.Fatalf("author delete: %v", err)
	}

	second := mustCreate(t, store, player, campaign.RolePlayer, CreateInput{Title: "Another", Type: TypeShared})
	if err := store.Delete(ctx, campaignID, second.ID, dm.ID, campaign.RoleOwner); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := store.Delete(ctx, campaignID, second.ID, dm.ID, campaign.RoleOwner); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}

func mustCreate(t *testing.T, store *Store, author Author, role campaign.Role, in CreateInput) Note {
	t.Helper()
	n, err := store.Create(context.Background(), campaignID, author, role, in)
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	return n
}
