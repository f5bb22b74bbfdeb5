package export

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/note"
)

func exportRequest() Request {
	revealedAt := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	return Request{
		Campaign: campaign.Campaign{
			ID:          "cmp_export",
			Name:        "Crimson Throne",
			Description: "A conspiracy in the capital",
			OwnerID:     "user-dm",
			Members: map[string]campaign.Membership{
				"user-dm": {UserID: "user-dm", Role: campaign.RoleOwner},
				"user-p1": {
					UserID: "user-p1", Role: campaign.RolePlayer,
					Character: &campaign.CharacterRef{Name: "Seelah", Class: "Paladin", Level: 3},
				},
			},
		},
		Notes: []note.Note{
			{
				ID: "n1", Title: "The twist", Type: note.TypeShared, AuthorName: "Mira",
				Content: "The chancellor serves the cult.", IsRevealed: true, RevealedAt: &revealedAt,
				Tags: []string{"villains"}, UpdatedAt: revealedAt,
				EditHistory: []note.EditEntry{{EditorID: "user-dm", EditedAt: revealedAt, PreviousContent: "draft"}},
			},
			{
				ID: "n2", Title: "Party ledger", Type: note.TypeShared, AuthorName: "Theo",
				Content: "10 gold", UpdatedAt: revealedAt,
			},
		},
		Format:         FormatMarkdown,
		IncludeHistory: true,
	}
}

func TestExportMarkdown(t *testing.T) {
	result, err := NewService().Export(exportRequest())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Filename != "Crimson-Throne.md" {
		t.Fatalf("unexpected filename: %s", result.Filename)
	}
	body := string(result.Data)
	for _, want := range []string{
		"# Crimson Throne",
		"## Party",
		"user-dm (owner)",
		"Seelah, level 3 Paladin",
		"### The twist",
		"shared, revealed",
		"10 gold",
		"1 earlier revisions",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderJournalHTML(t *testing.T) {
	svc := NewService()
	html, err := RenderJournalHTML(svc.templateData(exportRequest()))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"Crimson Throne",
		"A conspiracy in the capital",
		"The twist",
		"revealed",
		"Party ledger",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
	// Content is escaped, not interpreted.
	req := exportRequest()
	req.Notes[0].Content = "<script>alert(1)</script>"
	html, err = RenderJournalHTML(svc.templateData(req))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("note content was not escaped")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	req := exportRequest()
	req.Format = "docx"
	if _, err := NewService().Export(req); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Crimson Throne":    "Crimson-Throne",
		"/etc/passwd":       "etcpasswd",
		"???":               "document",
		strings.Repeat("a", 80): strings.Repeat("a", 50),
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
