package search

import (
	"context"
	"testing"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/note"
)

func seedScan(t *testing.T) (*Scan, string) {
	t.Helper()
	docs := docstore.NewMemory()
	ctx := context.Background()

	members := campaign.NewMembers(docs)
	dir := campaign.NewDirectory(docs, members)
	c, err := dir.Create(ctx, "user-dm", "Crimson Throne", "A conspiracy in the capital")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	if _, err := members.Join(ctx, c.ID, "user-p1", nil); err != nil {
		t.Fatalf("join: %v", err)
	}

	notes := note.NewStore(docs)
	mustNote := func(author note.Author, role campaign.Role, in note.CreateInput) {
		t.Helper()
		if _, err := notes.Create(ctx, c.ID, author, role, in); err != nil {
			t.Fatalf("create note: %v", err)
		}
	}
	mustNote(note.Author{ID: "user-dm"}, campaign.RoleOwner, note.CreateInput{
		Title: "The traitor", Content: "The chancellor serves the cult.", Type: note.TypeOwner,
	})
	mustNote(note.Author{ID: "user-p1"}, campaign.RolePlayer, note.CreateInput{
		Title: "Chancellor suspicions", Content: "Something is off about the chancellor.", Type: note.TypePersonal,
	})
	mustNote(note.Author{ID: "user-p1"}, campaign.RolePlayer, note.CreateInput{
		Title: "Market rumors", Content: "Rumors about the chancellor at the fish market.", Type: note.TypeShared,
	})

	return NewScan(docs), c.ID
}

func TestScanRespectsVisibility(t *testing.T) {
	scan, campaignID := seedScan(t)
	ctx := context.Background()

	ownerResults, _, err := scan.Search(ctx, Query{
		Text:   "chancellor",
		UserID: "user-dm",
		Access: []CampaignAccess{{ID: campaignID, Role: campaign.RoleOwner}},
	})
	if err != nil {
		t.Fatalf("owner search: %v", err)
	}
	if countType(ownerResults, ResultNote) != 3 {
		t.Fatalf("owner should hit all 3 notes, got %+v", ownerResults)
	}

	playerResults, _, err := scan.Search(ctx, Query{
		Text:   "chancellor",
		UserID: "user-p1",
		Access: []CampaignAccess{{ID: campaignID, Role: campaign.RolePlayer}},
	})
	if err != nil {
		t.Fatalf("player search: %v", err)
	}
	// Own personal note plus the shared one; the owner note stays hidden.
	if countType(playerResults, ResultNote) != 2 {
		t.Fatalf("player should hit 2 notes, got %+v", playerResults)
	}
	for _, r := range playerResults {
		if r.NoteType == "owner" {
			t.Fatalf("hidden owner note leaked into player results: %+v", r)
		}
	}

	strangerResults, _, err := scan.Search(ctx, Query{
		Text:   "chancellor",
		UserID: "user-stranger",
		Access: nil,
	})
	if err != nil {
		t.Fatalf("stranger search: %v", err)
	}
	if len(strangerResults) != 0 {
		t.Fatalf("no access should mean no results, got %+v", strangerResults)
	}
}

func TestScanMatchesCampaigns(t *testing.T) {
	scan, campaignID := seedScan(t)
	ctx := context.Background()

	results, _, err := scan.Search(ctx, Query{
		Text:   "conspiracy",
		UserID: "user-p1",
		Access: []CampaignAccess{{ID: campaignID, Role: campaign.RolePlayer}},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if countType(results, ResultCampaign) != 1 {
		t.Fatalf("expected a campaign hit, got %+v", results)
	}
}

func TestServiceFallsBackToScan(t *testing.T) {
	scan, campaignID := seedScan(t)
	svc := NewService(nil, scan)

	resp := svc.Search(context.Background(), Query{
		Text:   "chancellor",
		UserID: "user-p1",
		Access: []CampaignAccess{{ID: campaignID, Role: campaign.RolePlayer}},
	})
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results via fallback, got %+v", resp.Results)
	}
	if resp.Query != "chancellor" {
		t.Fatalf("unexpected query echo: %q", resp.Query)
	}
}

func TestSanitizeDropsForeignAndHiddenHits(t *testing.T) {
	q := Query{
		UserID: "user-p1",
		Access: []CampaignAccess{{ID: "cmp-1", Role: campaign.RolePlayer}},
	}
	results := []Result{
		{Type: ResultNote, ID: "n1", CampaignID: "cmp-1", NoteType: "shared"},
		{Type: ResultNote, ID: "n2", CampaignID: "cmp-1", NoteType: "owner"},
		{Type: ResultNote, ID: "n3", CampaignID: "cmp-1", NoteType: "owner", Revealed: true},
		{Type: ResultNote, ID: "n4", CampaignID: "cmp-1", NoteType: "personal", AuthorID: "user-p2"},
		{Type: ResultNote, ID: "n5", CampaignID: "cmp-2", NoteType: "shared"},
		{Type: ResultCampaign, ID: "cmp-1", CampaignID: "cmp-1"},
	}

	got := sanitize(results, q)
	want := map[string]bool{"n1": true, "n3": true, "cmp-1": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), got)
	}
	for _, r := range got {
		if !want[r.ID] {
			t.Fatalf("unexpected survivor %s", r.ID)
		}
	}
}

func countType(results []Result, rt ResultType) int {
	count := 0
	for _, r := range results {
		if r.Type == rt {
			count++
		}
	}
	return count
}
