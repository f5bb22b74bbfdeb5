package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lorekeeper/api/internal/archive"
	"lorekeeper/api/internal/config"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/search"
	"lorekeeper/api/internal/session"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	docs := docstore.NewMemory()
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		BaseURL:    "http://localhost:8787",
	}
	searcher := search.NewService(nil, search.NewScan(docs))
	archives := archive.New(t.TempDir())
	return New(cfg, docs, session.NewDocStore(docs), searcher, archives)
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	return NewHTTPServer(newTestService(t), "*")
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func parseBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

// registerUser runs the full signup / verify / signin flow and returns a
// bearer token plus the user id.
func registerUser(t *testing.T, server *HTTPServer, email, name string) (string, string) {
	t.Helper()

	rr := doRequest(t, server, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       email,
		"password":    "correct-horse-battery",
		"displayName": name,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	verifyToken, _ := payload["devVerificationToken"].(string)
	if verifyToken == "" {
		t.Fatalf("expected dev verification token, got %v", payload)
	}

	rr = doRequest(t, server, http.MethodPost, "/api/auth/verify-email", "", map[string]any{"token": verifyToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, server, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    email,
		"password": "correct-horse-battery",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload = parseBody(t, rr)
	token, _ := payload["accessToken"].(string)
	userID, _ := payload["userId"].(string)
	if token == "" || userID == "" {
		t.Fatalf("expected access token and user id, got %v", payload)
	}
	return token, userID
}

// createCampaign returns the campaign id and invite code.
func createCampaign(t *testing.T, server *HTTPServer, token, name string) (string, string) {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/api/campaigns", token, map[string]any{
		"name":        name,
		"description": "a test table",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create campaign: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	id, _ := payload["id"].(string)
	code, _ := payload["inviteCode"].(string)
	if id == "" || code == "" {
		t.Fatalf("expected campaign id and invite code, got %v", payload)
	}
	return id, code
}

func joinCampaign(t *testing.T, server *HTTPServer, token, code string) {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/api/invites/"+code+"/join", token, map[string]any{})
	if rr.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func createNote(t *testing.T, server *HTTPServer, token, campaignID string, body map[string]any) string {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/api/campaigns/"+campaignID+"/notes", token, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create note: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatalf("expected note id, got %v", payload)
	}
	return id
}
