package search

import (
	"context"
	"log"

	"lorekeeper/api/internal/campaign"
)

// Service is the facade that tries Meilisearch first and falls back to a
// document-store scan.
type Service struct {
	meili *Meili
	scan  *Scan
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, scan *Scan) *Service {
	return &Service{meili: meili, scan: scan}
}

// Search tries Meilisearch if healthy, otherwise falls back to scanning.
// Either way the results pass a final visibility check against the
// caller's access list.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: sanitize(nonNil(results), q), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to scan: %v", err)
	}

	results, total, err := s.scan.Search(ctx, q)
	if err != nil {
		log.Printf("search: scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: sanitize(nonNil(results), q), Total: total, Query: q.Text}
}

// IndexNote indexes a note (fire-and-forget to Meilisearch).
func (s *Service) IndexNote(record NoteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexNote(record); err != nil {
			log.Printf("search: index note %s: %v", record.ID, err)
		}
	}()
}

// IndexCampaign indexes a campaign (fire-and-forget to Meilisearch).
func (s *Service) IndexCampaign(record CampaignRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCampaign(record); err != nil {
			log.Printf("search: index campaign %s: %v", record.ID, err)
		}
	}()
}

// DeleteNote removes a note from the search index (fire-and-forget).
func (s *Service) DeleteNote(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNote(id); err != nil {
			log.Printf("search: delete note %s: %v", id, err)
		}
	}()
}

// DeleteCampaign removes a campaign from the search index
// (fire-and-forget).
func (s *Service) DeleteCampaign(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteCampaign(id); err != nil {
			log.Printf("search: delete campaign %s: %v", id, err)
		}
	}()
}

// ReindexNotes bulk-pushes a campaign's notes into Meilisearch.
func (s *Service) ReindexNotes(records []NoteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexNotes(records); err != nil {
		log.Printf("search: reindex notes: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

// sanitize drops any hit the caller's access list does not cover. The
// index filters should already guarantee this; a stale index must not
// be able to leak a hidden note title.
func sanitize(results []Result, q Query) []Result {
	roles := make(map[string]campaign.Role, len(q.Access))
	for _, access := range q.Access {
		roles[access.ID] = access.Role
	}
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		role, ok := roles[result.CampaignID]
		if !ok {
			continue
		}
		if result.Type == ResultNote && role != campaign.RoleOwner {
			switch result.NoteType {
			case "owner":
				// A revealed flag on an owner-typed hit means the index
				// entry predates the note's promotion to shared.
				if !result.Revealed {
					continue
				}
			case "personal":
				if result.AuthorID != q.UserID {
					continue
				}
			}
		}
		filtered = append(filtered, result)
	}
	return filtered
}
