package campaign

import (
	"context"
	"encoding/json"
	"fmt"

	"lorekeeper/api/internal/docstore"
)

// Members mutates the member map of a campaign. Every mutation runs as a
// single document update so concurrent joins, leaves, and character edits
// against the same campaign serialize cleanly.
type Members struct {
	docs docstore.Store
}

func NewMembers(docs docstore.Store) *Members {
	return &Members{docs: docs}
}

// Join appends userID as a player. The membership check and the append
// happen inside one update closure; two racing joins for the same user
// resolve to exactly one membership and one ErrAlreadyMember.
func (m *Members) Join(ctx context.Context, campaignID, userID string, character *CharacterRef) (Campaign, error) {
	now := m.docs.Now(ctx)
	var joined Campaign
	_, err := m.docs.Update(ctx, Path(campaignID), func(current json.RawMessage) (json.RawMessage, error) {
		c, err := decodeCampaign(current)
		if err != nil {
			return nil, err
		}
		if _, ok := c.Members[userID]; ok {
			return nil, ErrAlreadyMember
		}
		c.Members[userID] = Membership{
			UserID:    userID,
			Role:      RolePlayer,
			JoinedAt:  now,
			Character: character,
			IsActive:  true,
		}
		c.UpdatedAt = now
		joined = c
		return json.Marshal(c)
	})
	if err != nil {
		return Campaign{}, err
	}
	if err := m.indexAdd(ctx, userID, campaignID); err != nil {
		return Campaign{}, err
	}
	return joined, nil
}

// Leave removes a player membership. The owner cannot leave; ownership
// transfer is not a thing, deleting the campaign is.
func (m *Members) Leave(ctx context.Context, campaignID, userID string) (Campaign, error) {
	now := m.docs.Now(ctx)
	var left Campaign
	_, err := m.docs.Update(ctx, Path(campaignID), func(current json.RawMessage) (json.RawMessage, error) {
		c, err := decodeCampaign(current)
		if err != nil {
			return nil, err
		}
		member, ok := c.Members[userID]
		if !ok {
			return nil, ErrNotMember
		}
		if member.Role == RoleOwner {
			return nil, ErrOwnerCannotLeave
		}
		delete(c.Members, userID)
		c.UpdatedAt = now
		left = c
		return json.Marshal(c)
	})
	if err != nil {
		return Campaign{}, err
	}
	if err := m.indexRemove(ctx, userID, campaignID); err != nil {
		return Campaign{}, err
	}
	return left, nil
}

// SetCharacter replaces the character reference on an existing membership.
func (m *Members) SetCharacter(ctx context.Context, campaignID, userID string, character *CharacterRef) (Campaign, error) {
	now := m.docs.Now(ctx)
	var updated Campaign
	_, err := m.docs.Update(ctx, Path(campaignID), func(current json.RawMessage) (json.RawMessage, error) {
		c, err := decodeCampaign(current)
		if err != nil {
			return nil, err
		}
		member, ok := c.Members[userID]
		if !ok {
			return nil, ErrNotMember
		}
		member.Character = character
		c.Members[userID] = member
		c.UpdatedAt = now
		updated = c
		return json.Marshal(c)
	})
	if err != nil {
		return Campaign{}, err
	}
	return updated, nil
}

// userIndex is the reverse lookup document at users/<id>, listing the
// campaigns a user belongs to.
type userIndex struct {
	CampaignIDs []string `json:"campaignIds"`
}

func (m *Members) indexAdd(ctx context.Context, userID, campaignID string) error {
	_, err := m.docs.Update(ctx, userPath(userID), func(current json.RawMessage) (json.RawMessage, error) {
		var idx userIndex
		if current != nil {
			if err := json.Unmarshal(current, &idx); err != nil {
				return nil, err
			}
		}
		for _, id := range idx.CampaignIDs {
			if id == campaignID {
				return json.Marshal(idx)
			}
		}
		idx.CampaignIDs = append(idx.CampaignIDs, campaignID)
		return json.Marshal(idx)
	})
	if err != nil {
		return fmt.Errorf("index campaign %s for user %s: %w", campaignID, userID, err)
	}
	return nil
}

func (m *Members) indexRemove(ctx context.Context, userID, campaignID string) error {
	_, err := m.docs.Update(ctx, userPath(userID), func(current json.RawMessage) (json.RawMessage, error) {
		var idx userIndex
		if current != nil {
			if err := json.Unmarshal(current, &idx); err != nil {
				return nil, err
			}
		}
		kept := idx.CampaignIDs[:0]
		for _, id := range idx.CampaignIDs {
			if id != campaignID {
				kept = append(kept, id)
			}
		}
		idx.CampaignIDs = kept
		return json.Marshal(idx)
	})
	if err != nil {
		return fmt.Errorf("deindex campaign %s for user %s: %w", campaignID, userID, err)
	}
	return nil
}
