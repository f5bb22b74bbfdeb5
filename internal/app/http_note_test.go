package app

import (
	"net/http"
	"strings"
	"testing"
)

// setupTable registers an owner and a player sharing one campaign.
func setupTable(t *testing.T) (server *HTTPServer, campaignID, ownerToken, playerToken string) {
	t.Helper()
	server = newTestServer(t)
	ownerToken, _ = registerUser(t, server, "dm@example.com", "Mira")
	playerToken, _ = registerUser(t, server, "theo@example.com", "Theo")
	campaignID, code := createCampaign(t, server, ownerToken, "Crimson Throne")
	joinCampaign(t, server, playerToken, code)
	return server, campaignID, ownerToken, playerToken
}

func noteTitles(t *testing.T, server *HTTPServer, token, campaignID string) []string {
	t.Helper()
	rr := doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID+"/notes", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list notes: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	items, _ := parseBody(t, rr)["notes"].([]any)
	titles := make([]string, 0, len(items))
	for _, item := range items {
		entry, _ := item.(map[string]any)
		title, _ := entry["title"].(string)
		titles = append(titles, title)
	}
	return titles
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

func TestNoteVisibilityPerRole(t *testing.T) {
	server, campaignID, ownerToken, playerToken := setupTable(t)

	secretID := createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "The twist", "content": "The chancellor serves the cult.", "type": "owner",
	})
	createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "Session recap", "content": "You met at the tavern.", "type": "shared",
	})
	createNote(t, server, playerToken, campaignID, map[string]any{
		"title": "Theo's diary", "content": "I don't trust the chancellor.", "type": "personal",
	})

	ownerTitles := noteTitles(t, server, ownerToken, campaignID)
	if len(ownerTitles) != 3 {
		t.Fatalf("owner should see all 3 notes, got %v", ownerTitles)
	}

	playerTitles := noteTitles(t, server, playerToken, campaignID)
	if len(playerTitles) != 2 || contains(playerTitles, "The twist") {
		t.Fatalf("player should see 2 notes and no secret, got %v", playerTitles)
	}

	// Hidden notes read as absent, not as forbidden.
	rr := doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID+"/notes/"+secretID, playerToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for hidden note, got %d", rr.Code)
	}

	// Reveal is a one-way promotion, owner only.
	rr = doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/notes/"+secretID+"/reveal", playerToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for player reveal, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/notes/"+secretID+"/reveal", ownerToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner reveal failed: %d body=%s", rr.Code, rr.Body.String())
	}
	revealed := parseBody(t, rr)
	if revealed["isRevealed"] != true {
		t.Fatalf("expected isRevealed=true, got %v", revealed)
	}
	if revealed["type"] != "shared" {
		t.Fatalf("reveal should promote the note to shared, got %v", revealed["type"])
	}

	playerTitles = noteTitles(t, server, playerToken, campaignID)
	if !contains(playerTitles, "The twist") {
		t.Fatalf("revealed note should be visible to player, got %v", playerTitles)
	}

	// Promoted notes are shared notes; any member may edit them now.
	rr = doRequest(t, server, http.MethodPatch, "/api/campaigns/"+campaignID+"/notes/"+secretID, playerToken, map[string]any{
		"content": "annotated by the party",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for player edit of promoted note, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestPersonalNoteHiddenFromOtherPlayers(t *testing.T) {
	server, campaignID, ownerToken, playerToken := setupTable(t)

	createNote(t, server, playerToken, campaignID, map[string]any{
		"title": "Theo's diary", "content": "private", "type": "personal",
	})

	// The owner sees everything at the table, diaries included.
	ownerTitles := noteTitles(t, server, ownerToken, campaignID)
	if !contains(ownerTitles, "Theo's diary") {
		t.Fatalf("owner should see all notes, got %v", ownerTitles)
	}

	// A second player sees nothing of it.
	otherToken, _ := registerUser(t, server, "pip@example.com", "Pip")
	regenerateAndJoin(t, server, ownerToken, otherToken, campaignID)
	otherTitles := noteTitles(t, server, otherToken, campaignID)
	if contains(otherTitles, "Theo's diary") {
		t.Fatalf("another player must not see a foreign diary, got %v", otherTitles)
	}
}

// regenerateAndJoin fetches the owner's current invite code and joins
// the second player with it.
func regenerateAndJoin(t *testing.T, server *HTTPServer, ownerToken, playerToken, campaignID string) string {
	t.Helper()
	rr := doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID, ownerToken, nil)
	code, _ := parseBody(t, rr)["inviteCode"].(string)
	if code == "" {
		t.Fatal("expected invite code on owner payload")
	}
	joinCampaign(t, server, playerToken, code)
	return code
}

func TestNoteEditHistoryAndPermissions(t *testing.T) {
	server, campaignID, ownerToken, playerToken := setupTable(t)

	noteID := createNote(t, server, playerToken, campaignID, map[string]any{
		"title": "Party ledger", "content": "10 gold", "type": "shared",
	})

	// Any member may edit a shared note; content edits append history.
	rr := doRequest(t, server, http.MethodPatch, "/api/campaigns/"+campaignID+"/notes/"+noteID, ownerToken, map[string]any{
		"content": "2 gold after the inn",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	history, _ := payload["editHistory"].([]any)
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	entry, _ := history[0].(map[string]any)
	if entry["previousContent"] != "10 gold" {
		t.Fatalf("expected previous content preserved, got %v", entry)
	}

	// Deleting is for the author or the owner; another player is refused.
	otherToken, _ := registerUser(t, server, "pip@example.com", "Pip")
	regenerateAndJoin(t, server, ownerToken, otherToken, campaignID)
	rr = doRequest(t, server, http.MethodDelete, "/api/campaigns/"+campaignID+"/notes/"+noteID, otherToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign delete, got %d", rr.Code)
	}
	rr = doRequest(t, server, http.MethodDelete, "/api/campaigns/"+campaignID+"/notes/"+noteID, playerToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("author delete failed: %d", rr.Code)
	}
}

func TestInvalidNoteTypeRejected(t *testing.T) {
	server, campaignID, _, playerToken := setupTable(t)

	rr := doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/notes", playerToken, map[string]any{
		"title": "Oops", "content": "x", "type": "secret",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}

	// Players cannot author owner-type notes.
	rr = doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/notes", playerToken, map[string]any{
		"title": "Sneaky", "content": "x", "type": "owner",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestSearchRespectsVisibility(t *testing.T) {
	server, campaignID, ownerToken, playerToken := setupTable(t)
	_ = campaignID

	createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "The twist", "content": "chancellor cult", "type": "owner",
	})
	createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "Recap", "content": "the chancellor greeted you", "type": "shared",
	})

	rr := doRequest(t, server, http.MethodGet, "/api/search?q=chancellor", playerToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	results, _ := parseBody(t, rr)["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("player should hit only the shared note, got %v", rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodGet, "/api/search?q=chancellor", ownerToken, nil)
	results, _ = parseBody(t, rr)["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("owner should hit both notes, got %v", rr.Body.String())
	}
}

func TestExportMarkdownFiltersByViewer(t *testing.T) {
	server, campaignID, ownerToken, playerToken := setupTable(t)

	createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "The twist", "content": "chancellor cult", "type": "owner",
	})
	createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "Recap", "content": "tavern", "type": "shared",
	})

	rr := doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID+"/export?format=markdown", playerToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	if strings.Contains(body, "The twist") {
		t.Fatal("player export must not contain hidden notes")
	}
	if !strings.Contains(body, "Recap") {
		t.Fatal("player export should contain shared notes")
	}

	rr = doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID+"/export?format=markdown", ownerToken, nil)
	if !strings.Contains(rr.Body.String(), "The twist") {
		t.Fatal("owner export should contain secret notes")
	}
}

func TestArchiveSnapshotAndHistory(t *testing.T) {
	server, campaignID, ownerToken, playerToken := setupTable(t)

	createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "Recap", "content": "tavern", "type": "shared",
	})

	// The journal is the owner's; players get 403.
	rr := doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/archive", playerToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for player snapshot, got %d", rr.Code)
	}

	rr = doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/archive", ownerToken, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("snapshot: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	hash, _ := parseBody(t, rr)["hash"].(string)
	if hash == "" {
		t.Fatal("expected commit hash")
	}

	rr = doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID+"/archive", ownerToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", rr.Code)
	}
	snapshots, _ := parseBody(t, rr)["snapshots"].([]any)
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
}

func TestAttachmentsUnavailableWithoutObjectStorage(t *testing.T) {
	server, campaignID, ownerToken, _ := setupTable(t)
	noteID := createNote(t, server, ownerToken, campaignID, map[string]any{
		"title": "Recap", "content": "tavern", "type": "shared",
	})

	rr := doRequest(t, server, http.MethodGet, "/api/campaigns/"+campaignID+"/notes/"+noteID+"/attachments", ownerToken, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without object storage, got %d", rr.Code)
	}
	if parseBody(t, rr)["code"] != "ATTACHMENTS_UNAVAILABLE" {
		t.Fatalf("expected ATTACHMENTS_UNAVAILABLE, got %s", rr.Body.String())
	}
}
