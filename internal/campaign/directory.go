package campaign

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/util"
)

const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	// codeAttempts bounds the reservation loop. With a 31-char alphabet and
	// six positions a collision streak this long means something is broken.
	codeAttempts = 5
)

// inviteDoc lives at invites/<CODE> and maps a code back to its campaign.
// Creating it with a create-if-absent update is what makes codes unique.
type inviteDoc struct {
	Code       string    `json:"code"`
	CampaignID string    `json:"campaignId"`
	CreatedAt  time.Time `json:"createdAt"`
}

var errCodeTaken = errors.New("campaign: invite code taken")

// Directory creates, resolves, lists, and deletes campaigns.
type Directory struct {
	docs    docstore.Store
	members *Members
	newCode func() (string, error)
}

func NewDirectory(docs docstore.Store, members *Members) *Directory {
	return &Directory{docs: docs, members: members, newCode: randomCode}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode uppercases and trims user input so codes compare
// case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

// Create provisions a campaign with the creator as its owner and a fresh
// invite code already reserved.
func (d *Directory) Create(ctx context.Context, ownerID, name, description string) (Campaign, error) {
	id := util.NewID("cmp")
	code, err := d.reserveCode(ctx, id)
	if err != nil {
		return Campaign{}, err
	}

	now := d.docs.Now(ctx)
	c := Campaign{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		InviteCode:  code,
		Members: map[string]Membership{
			ownerID: {UserID: ownerID, Role: RoleOwner, JoinedAt: now, IsActive: true},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := d.docs.Update(ctx, Path(id), func(json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(c)
	}); err != nil {
		return Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	if err := d.members.indexAdd(ctx, ownerID, id); err != nil {
		return Campaign{}, err
	}
	return c, nil
}

// reserveCode claims a globally unique invite code by creating its invite
// document, retrying on collision.
func (d *Directory) reserveCode(ctx context.Context, campaignID string) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := d.newCode()
		if err != nil {
			return "", err
		}
		now := d.docs.Now(ctx)
		_, err = d.docs.Update(ctx, invitePath(code), func(current json.RawMessage) (json.RawMessage, error) {
			if current != nil {
				return nil, errCodeTaken
			}
			return json.Marshal(inviteDoc{Code: code, CampaignID: campaignID, CreatedAt: now})
		})
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reserve invite code: %w", err)
		}
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

// Resolve maps an invite code to the public campaign preview. It never
// returns members or notes.
func (d *Directory) Resolve(ctx context.Context, code string) (Summary, error) {
	code = NormalizeCode(code)
	if !validCode(code) {
		return Summary{}, ErrInvalidInviteCode
	}
	doc, err := d.docs.Get(ctx, invitePath(code))
	if errors.Is(err, docstore.ErrNotFound) {
		return Summary{}, ErrInvalidInviteCode
	}
	if err != nil {
		return Summary{}, err
	}
	var invite inviteDoc
	if err := json.Unmarshal(doc.Data, &invite); err != nil {
		return Summary{}, fmt.Errorf("decode invite %s: %w", code, err)
	}
	c, err := d.Get(ctx, invite.CampaignID)
	if errors.Is(err, docstore.ErrNotFound) {
		// campaign deleted out from under the invite
		return Summary{}, ErrInvalidInviteCode
	}
	if err != nil {
		return Summary{}, err
	}
	return c.Summary(), nil
}

// CampaignIDByCode resolves a code to its campaign id for the join flow.
func (d *Directory) CampaignIDByCode(ctx context.Context, code string) (string, error) {
	code = NormalizeCode(code)
	if !validCode(code) {
		return "", ErrInvalidInviteCode
	}
	doc, err := d.docs.Get(ctx, invitePath(code))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrInvalidInviteCode
	}
	if err != nil {
		return "", err
	}
	var invite inviteDoc
	if err := json.Unmarshal(doc.Data, &invite); err != nil {
		return "", fmt.Errorf("decode invite %s: %w", code, err)
	}
	return invite.CampaignID, nil
}

func (d *Directory) Get(ctx context.Context, campaignID string) (Campaign, error) {
	doc, err := d.docs.Get(ctx, Path(campaignID))
	if err != nil {
		return Campaign{}, err
	}
	c, err := decodeCampaign(doc.Data)
	if err != nil {
		return Campaign{}, fmt.Errorf("decode campaign %s: %w", campaignID, err)
	}
	return c, nil
}

// ListForUser returns every campaign the user belongs to, via the
// users/<id> reverse index. Stale index entries are skipped.
func (d *Directory) ListForUser(ctx context.Context, userID string) ([]Campaign, error) {
	doc, err := d.docs.Get(ctx, userPath(userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return []Campaign{}, nil
	}
	if err != nil {
		return nil, err
	}
	var idx userIndex
	if err := json.Unmarshal(doc.Data, &idx); err != nil {
		return nil, fmt.Errorf("decode user index %s: %w", userID, err)
	}

	campaigns := make([]Campaign, 0, len(idx.CampaignIDs))
	for _, id := range idx.CampaignIDs {
		c, err := d.Get(ctx, id)
		if errors.Is(err, docstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, nil
}

// RegenerateInvite swaps the campaign's invite code for a fresh one and
// retires the old code. Owner only.
func (d *Directory) RegenerateInvite(ctx context.Context, campaignID, userID string) (Campaign, error) {
	current, err := d.Get(ctx, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if !IsOwner(current, userID) {
		return Campaign{}, ErrPermissionDenied
	}

	code, err := d.reserveCode(ctx, campaignID)
	if err != nil {
		return Campaign{}, err
	}

	now := d.docs.Now(ctx)
	var oldCode string
	var updated Campaign
	_, err = d.docs.Update(ctx, Path(campaignID), func(raw json.RawMessage) (json.RawMessage, error) {
		c, err := decodeCampaign(raw)
		if err != nil {
			return nil, err
		}
		if !IsOwner(c, userID) {
			return nil, ErrPermissionDenied
		}
		oldCode = c.InviteCode
		c.InviteCode = code
		c.UpdatedAt = now
		updated = c
		return json.Marshal(c)
	})
	if err != nil {
		// Release the fresh reservation so the code can be reused.
		_ = d.docs.Delete(ctx, invitePath(code))
		return Campaign{}, err
	}
	if oldCode != "" && oldCode != code {
		if err := d.docs.Delete(ctx, invitePath(oldCode)); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return Campaign{}, fmt.Errorf("retire invite %s: %w", oldCode, err)
		}
	}
	return updated, nil
}

// Delete tears down a campaign: its notes, its invite code, its entry in
// every member's index, and finally the campaign document itself. Owner
// only.
func (d *Directory) Delete(ctx context.Context, campaignID, userID string) error {
	c, err := d.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if !IsOwner(c, userID) {
		return ErrPermissionDenied
	}

	notes, err := d.docs.Query(ctx, NotesCollection(campaignID), docstore.Filter{})
	if err != nil {
		return fmt.Errorf("list notes for delete: %w", err)
	}
	for _, doc := range notes {
		if err := d.docs.Delete(ctx, doc.Path); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("delete note %s: %w", doc.Path, err)
		}
	}

	if c.InviteCode != "" {
		if err := d.docs.Delete(ctx, invitePath(c.InviteCode)); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("delete invite %s: %w", c.InviteCode, err)
		}
	}
	for memberID := range c.Members {
		if err := d.members.indexRemove(ctx, memberID, campaignID); err != nil {
			return err
		}
	}
	if err := d.docs.Delete(ctx, Path(campaignID)); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("delete campaign %s: %w", campaignID, err)
	}
	return nil
}
