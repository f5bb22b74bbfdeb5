// Package search provides full-text search over campaigns and notes,
// backed by Meilisearch with a document-store scan fallback. Results are
// always constrained to what the searching user is allowed to see.
package search

import "lorekeeper/api/internal/campaign"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultNote     ResultType = "note"
	ResultCampaign ResultType = "campaign"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	CampaignID string     `json:"campaignId"`
	NoteType   string     `json:"noteType,omitempty"`
	AuthorID   string     `json:"-"`
	Revealed   bool       `json:"-"`
}

// CampaignAccess names one campaign the searcher belongs to, with the
// role that decides which notes they may hit.
type CampaignAccess struct {
	ID   string
	Role campaign.Role
}

// Query describes a search request. Access must list every campaign the
// user belongs to; campaigns outside it are never searched.
type Query struct {
	Text       string
	UserID     string
	Access     []CampaignAccess
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// NoteRecord is the data we index for a note. The visibility fields ride
// along so filters and post-search sanitizing can re-check access.
type NoteRecord struct {
	ID         string   `json:"id"`
	CampaignID string   `json:"campaignId"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Type       string   `json:"type"`
	AuthorID   string   `json:"authorId"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	IsRevealed bool     `json:"isRevealed"`
}

// CampaignRecord is the data we index for a campaign.
type CampaignRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
