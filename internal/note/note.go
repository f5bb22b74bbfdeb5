// Package note owns campaign notes: the three note types, their
// visibility rules, edit history, and the one-way reveal of owner notes.
package note

import (
	"errors"
	"time"
)

// Type partitions notes into the three visibility classes.
type Type string

const (
	// TypePersonal notes are private to their author.
	TypePersonal Type = "personal"
	// TypeShared notes are visible to every member.
	TypeShared Type = "shared"
	// TypeOwner notes are hidden from players until the owner reveals
	// them, which promotes them to TypeShared.
	TypeOwner Type = "owner"
)

var (
	ErrInvalidType = errors.New("note: invalid note type")
	// ErrNotRevealable means the note's type does not participate in the
	// reveal mechanic.
	ErrNotRevealable = errors.New("note: only owner notes can be revealed")
)

func ValidType(t Type) bool {
	switch t {
	case TypePersonal, TypeShared, TypeOwner:
		return true
	}
	return false
}

// EditEntry records one prior revision. History is newest-first.
type EditEntry struct {
	EditorID        string    `json:"editorId"`
	EditedAt        time.Time `json:"editedAt"`
	PreviousContent string    `json:"previousContent"`
}

type Note struct {
	ID          string      `json:"id"`
	CampaignID  string      `json:"campaignId"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Type        Type        `json:"type"`
	AuthorID    string      `json:"authorId"`
	AuthorName  string      `json:"authorName"`
	Tags        []string    `json:"tags"`
	Category    string      `json:"category"`
	// IsRevealed marks shared notes that began life as owner notes.
	IsRevealed  bool        `json:"isRevealed"`
	RevealedAt  *time.Time  `json:"revealedAt,omitempty"`
	EditHistory []EditEntry `json:"editHistory"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
