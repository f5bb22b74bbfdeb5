// Package campaign owns the campaign data model: the member map, the two
// roles, invite codes, and the directory of campaigns. All mutations go
// through the document store's compare-and-swap update so concurrent joins
// and leaves can never drop each other.
package campaign

import (
	"encoding/json"
	"errors"
	"time"

	"lorekeeper/api/internal/docstore"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RolePlayer Role = "player"
)

var (
	ErrAlreadyMember     = errors.New("campaign: already a member")
	ErrOwnerCannotLeave  = errors.New("campaign: owner cannot leave")
	ErrNotMember         = errors.New("campaign: not a member")
	ErrPermissionDenied  = errors.New("campaign: permission denied")
	ErrInvalidInviteCode = errors.New("campaign: invalid invite code")
	// ErrCodeSpaceExhausted means repeated invite-code collisions; this is
	// a configuration-class failure, not a user error.
	ErrCodeSpaceExhausted = errors.New("campaign: invite code space exhausted")
)

// CharacterRef is the optional character a player binds to a membership.
type CharacterRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
	Level int    `json:"level"`
}

type Membership struct {
	UserID    string        `json:"userId"`
	Role      Role          `json:"role"`
	JoinedAt  time.Time     `json:"joinedAt"`
	Character *CharacterRef `json:"character,omitempty"`
	IsActive  bool          `json:"isActive"`
}

// Campaign holds its members keyed by user id. Exactly one membership has
// RoleOwner and OwnerID always names it.
type Campaign struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	OwnerID     string                `json:"ownerId"`
	InviteCode  string                `json:"inviteCode"`
	Members     map[string]Membership `json:"members"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// Summary is the public invite preview. It must never carry member or
// note data.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RoleOf reports the member's role, or false if userID is not a member.
func RoleOf(c Campaign, userID string) (Role, bool) {
	member, ok := c.Members[userID]
	if !ok {
		return "", false
	}
	return member.Role, true
}

func IsOwner(c Campaign, userID string) bool {
	role, ok := RoleOf(c, userID)
	return ok && role == RoleOwner
}

func (c Campaign) Summary() Summary {
	return Summary{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		MemberCount: len(c.Members),
		CreatedAt:   c.CreatedAt,
	}
}

func Path(campaignID string) string { return "campaigns/" + campaignID }

func NotesCollection(campaignID string) string { return "campaigns/" + campaignID + "/notes" }

func invitePath(code string) string { return "invites/" + code }

func userPath(userID string) string { return "users/" + userID }

func decodeCampaign(current json.RawMessage) (Campaign, error) {
	if current == nil {
		return Campaign{}, docstore.ErrNotFound
	}
	var c Campaign
	if err := json.Unmarshal(current, &c); err != nil {
		return Campaign{}, err
	}
	if c.Members == nil {
		c.Members = make(map[string]Membership)
	}
	return c, nil
}
