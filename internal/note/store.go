package note

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/util"
)

// Store reads and writes notes under campaigns/<id>/notes/<noteID>.
// Mutations run inside document updates so concurrent edits of the same
// note serialize, and every permission check happens against the state
// the mutation actually sees.
type Store struct {
	docs docstore.Store
}

func NewStore(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Author identifies who is writing. AuthorName is denormalized onto the
// note so readers don't need a user lookup.
type Author struct {
	ID   string
	Name string
}

type CreateInput struct {
	Title    string
	Content  string
	Type     Type
	Category string
	Tags     []string
}

// UpdateInput carries partial edits; nil fields are left untouched.
type UpdateInput struct {
	Title    *string
	Content  *string
	Category *string
	Tags     *[]string
}

func path(campaignID, noteID string) string {
	return campaign.NotesCollection(campaignID) + "/" + noteID
}

// Create writes a new note. Owner notes can only be created by the
// campaign owner.
func (s *Store) Create(ctx context.Context, campaignID string, author Author, role campaign.Role, in CreateInput) (Note, error) {
	if !ValidType(in.Type) {
		return Note{}, ErrInvalidType
	}
	if in.Type == TypeOwner && role != campaign.RoleOwner {
		return Note{}, campaign.ErrPermissionDenied
	}

	now := s.docs.Now(ctx)
	n := Note{
		ID:          util.NewID("note"),
		CampaignID:  campaignID,
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Type:        in.Type,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
		Tags:        normalizeTags(in.Tags),
		Category:    strings.TrimSpace(in.Category),
		EditHistory: []EditEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if n.Title == "" {
		n.Title = "Untitled"
	}
	if _, err := s.docs.Update(ctx, path(campaignID, n.ID), func(json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(n)
	}); err != nil {
		return Note{}, fmt.Errorf("create note: %w", err)
	}
	return n, nil
}

// Get returns a note if the viewer may see it. Invisible notes report
// ErrNotFound so their existence leaks nothing.
func (s *Store) Get(ctx context.Context, campaignID, noteID, viewerID string, role campaign.Role) (Note, error) {
	doc, err := s.docs.Get(ctx, path(campaignID, noteID))
	if err != nil {
		return Note{}, err
	}
	n, err := decode(doc.Data)
	if err != nil {
		return Note{}, err
	}
	if !Visible(n, viewerID, role) {
		return Note{}, docstore.ErrNotFound
	}
	return n, nil
}

// List returns the notes visible to the viewer, most recently updated
// first.
func (s *Store) List(ctx context.Context, campaignID, viewerID string, role campaign.Role) ([]Note, error) {
	docs, err := s.docs.Query(ctx, campaign.NotesCollection(campaignID), docstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	notes := make([]Note, 0, len(docs))
	for _, doc := range docs {
		n, err := decode(doc.Data)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	SortNotes(notes)
	return FilterVisible(notes, viewerID, role), nil
}

// Update applies partial edits. Every successful update pushes the prior
// content onto the edit history, newest first, so the trail records each
// edit even when only the title or tags changed.
func (s *Store) Update(ctx context.Context, campaignID, noteID, editorID string, role campaign.Role, in UpdateInput) (Note, error) {
	now := s.docs.Now(ctx)
	var updated Note
	_, err := s.docs.Update(ctx, path(campaignID, noteID), func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, docstore.ErrNotFound
		}
		n, err := decode(current)
		if err != nil {
			return nil, err
		}
		if !Visible(n, editorID, role) {
			return nil, docstore.ErrNotFound
		}
		if !canEdit(n, editorID, role) {
			return nil, campaign.ErrPermissionDenied
		}

		n.EditHistory = append([]EditEntry{{
			EditorID:        editorID,
			EditedAt:        now,
			PreviousContent: n.Content,
		}}, n.EditHistory...)

		if in.Title != nil {
			n.Title = strings.TrimSpace(*in.Title)
			if n.Title == "" {
				n.Title = "Untitled"
			}
		}
		if in.Content != nil {
			n.Content = *in.Content
		}
		if in.Category != nil {
			n.Category = strings.TrimSpace(*in.Category)
		}
		if in.Tags != nil {
			n.Tags = normalizeTags(*in.Tags)
		}
		n.UpdatedAt = now
		updated = n
		return json.Marshal(n)
	})
	if err != nil {
		return Note{}, err
	}
	return updated, nil
}

// Reveal promotes an owner note to a shared one, stamping revealedAt.
// The promotion is one-way and idempotent: revealing an already promoted
// note changes nothing. Notes created as shared or personal have nothing
// to reveal and fail with ErrNotRevealable.
func (s *Store) Reveal(ctx context.Context, campaignID, noteID, actorID string, role campaign.Role) (Note, error) {
	if role != campaign.RoleOwner {
		return Note{}, campaign.ErrPermissionDenied
	}
	now := s.docs.Now(ctx)
	var revealed Note
	_, err := s.docs.Update(ctx, path(campaignID, noteID), func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, docstore.ErrNotFound
		}
		n, err := decode(current)
		if err != nil {
			return nil, err
		}
		if n.IsRevealed {
			revealed = n
			return current, nil
		}
		if n.Type != TypeOwner {
			return nil, ErrNotRevealable
		}
		n.Type = TypeShared
		n.IsRevealed = true
		n.RevealedAt = &now
		n.UpdatedAt = now
		revealed = n
		return json.Marshal(n)
	})
	if err != nil {
		return Note{}, err
	}
	return revealed, nil
}

// Delete removes a note. Authors can delete their own notes; the owner
// can delete any note.
func (s *Store) Delete(ctx context.Context, campaignID, noteID, actorID string, role campaign.Role) error {
	doc, err := s.docs.Get(ctx, path(campaignID, noteID))
	if err != nil {
		return err
	}
	n, err := decode(doc.Data)
	if err != nil {
		return err
	}
	if !Visible(n, actorID, role) {
		return docstore.ErrNotFound
	}
	if role != campaign.RoleOwner && n.AuthorID != actorID {
		return campaign.ErrPermissionDenied
	}
	return s.docs.Delete(ctx, path(campaignID, noteID))
}

// Decode converts a raw document into a Note. Realtime snapshots use it
// to interpret subscription events.
func Decode(data json.RawMessage) (Note, error) { return decode(data) }

func decode(data json.RawMessage) (Note, error) {
	var n Note
	if err := json.Unmarshal(data, &n); err != nil {
		return Note{}, fmt.Errorf("decode note: %w", err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.EditHistory == nil {
		n.EditHistory = []EditEntry{}
	}
	return n, nil
}

// SortNotes orders most recently updated first, with the id as a stable
// tiebreak.
func SortNotes(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}

func canEdit(n Note, editorID string, role campaign.Role) bool {
	if role == campaign.RoleOwner {
		return true
	}
	switch n.Type {
	case TypeShared:
		return true
	case TypePersonal:
		return n.AuthorID == editorID
	}
	return false
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
