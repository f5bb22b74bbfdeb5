package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/note"
)

// Scan is the fallback searcher: it walks the user's campaigns in the
// document store and substring-matches. Slower than Meilisearch but
// works against every backend with zero extra infrastructure.
type Scan struct {
	docs docstore.Store
}

func NewScan(docs docstore.Store) *Scan {
	return &Scan{docs: docs}
}

func (s *Scan) Search(ctx context.Context, q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" || len(q.Access) == 0 {
		return []Result{}, 0, nil
	}

	var results []Result
	for _, access := range q.Access {
		if q.FilterType == "" || q.FilterType == ResultCampaign {
			hit, err := s.matchCampaign(ctx, access.ID, needle)
			if err != nil {
				return nil, 0, err
			}
			if hit != nil {
				results = append(results, *hit)
			}
		}
		if q.FilterType == "" || q.FilterType == ResultNote {
			noteHits, err := s.matchNotes(ctx, access, q.UserID, needle)
			if err != nil {
				return nil, 0, err
			}
			results = append(results, noteHits...)
		}
	}

	total := len(results)
	results = page(results, q.Offset, q.Limit)
	return results, total, nil
}

func (s *Scan) matchCampaign(ctx context.Context, campaignID, needle string) (*Result, error) {
	doc, err := s.docs.Get(ctx, campaign.Path(campaignID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan campaign %s: %w", campaignID, err)
	}
	var c campaign.Campaign
	if err := json.Unmarshal(doc.Data, &c); err != nil {
		return nil, fmt.Errorf("decode campaign %s: %w", campaignID, err)
	}
	if !contains(needle, c.Name, c.Description) {
		return nil, nil
	}
	return &Result{
		Type:       ResultCampaign,
		ID:         c.ID,
		CampaignID: c.ID,
		Title:      c.Name,
		Snippet:    snippet(c.Description),
	}, nil
}

func (s *Scan) matchNotes(ctx context.Context, access CampaignAccess, userID, needle string) ([]Result, error) {
	docs, err := s.docs.Query(ctx, campaign.NotesCollection(access.ID), docstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("scan notes %s: %w", access.ID, err)
	}
	var results []Result
	for _, doc := range docs {
		n, err := note.Decode(doc.Data)
		if err != nil {
			continue
		}
		if !note.Visible(n, userID, access.Role) {
			continue
		}
		haystacks := append([]string{n.Title, n.Content, n.Category}, n.Tags...)
		if !contains(needle, haystacks...) {
			continue
		}
		results = append(results, Result{
			Type:       ResultNote,
			ID:         n.ID,
			CampaignID: n.CampaignID,
			NoteType:   string(n.Type),
			AuthorID:   n.AuthorID,
			Revealed:   n.IsRevealed,
			Title:      n.Title,
			Snippet:    snippet(n.Content),
		})
	}
	return results, nil
}

func contains(needle string, haystacks ...string) bool {
	for _, haystack := range haystacks {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

func snippet(content string) string {
	const max = 160
	content = strings.TrimSpace(content)
	if len(content) <= max {
		return content
	}
	return content[:max] + "…"
}

func page(results []Result, offset, limit int) []Result {
	if limit == 0 {
		limit = 20
	}
	if offset >= len(results) {
		return []Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
