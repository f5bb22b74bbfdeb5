package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lorekeeper/api/internal/campaign"
)

// Service renders campaign journals for download.
type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: time.Now}
}

// Export generates the journal in the requested format.
func (s *Service) Export(req Request) (*Result, error) {
	switch req.Format {
	case FormatPDF:
		html, err := RenderJournalHTML(s.templateData(req))
		if err != nil {
			return nil, fmt.Errorf("render journal: %w", err)
		}
		return exportPDF(html, req.Campaign.Name)
	case FormatMarkdown:
		return s.exportMarkdown(req), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
}

func (s *Service) templateData(req Request) TemplateData {
	data := TemplateData{
		CampaignName: req.Campaign.Name,
		Description:  req.Campaign.Description,
		OwnerName:    req.Campaign.OwnerID,
		GeneratedAt:  s.now(),
	}
	for _, member := range sortedMembers(req.Campaign) {
		data.Members = append(data.Members, TemplateMember{
			Name:      member.UserID,
			Role:      string(member.Role),
			Character: characterLabel(member.Character),
		})
	}
	for _, n := range req.Notes {
		tn := TemplateNote{
			Title:     n.Title,
			Type:      string(n.Type),
			Author:    n.AuthorName,
			Category:  n.Category,
			Tags:      strings.Join(n.Tags, ", "),
			Content:   n.Content,
			Revealed:  n.IsRevealed,
			UpdatedAt: n.UpdatedAt,
		}
		if req.IncludeHistory {
			for _, edit := range n.EditHistory {
				tn.EditTrail = append(tn.EditTrail, TemplateEdit{Editor: edit.EditorID, EditedAt: edit.EditedAt})
			}
		}
		data.Notes = append(data.Notes, tn)
	}
	return data
}

func (s *Service) exportMarkdown(req Request) *Result {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", req.Campaign.Name)
	if req.Campaign.Description != "" {
		fmt.Fprintf(&b, "_%s_\n\n", req.Campaign.Description)
	}
	fmt.Fprintf(&b, "Exported %s\n\n", s.now().Format("January 2, 2006"))

	b.WriteString("## Party\n\n")
	for _, member := range sortedMembers(req.Campaign) {
		line := fmt.Sprintf("- %s (%s)", member.UserID, member.Role)
		if label := characterLabel(member.Character); label != "" {
			line += " — " + label
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n## Notes\n\n")

	for _, n := range req.Notes {
		fmt.Fprintf(&b, "### %s\n\n", n.Title)
		badge := string(n.Type)
		if n.IsRevealed {
			badge += ", revealed"
		}
		fmt.Fprintf(&b, "_%s · %s · %s_\n\n", badge, n.AuthorName, n.UpdatedAt.Format("Jan 2, 2006"))
		if len(n.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(n.Tags, ", "))
		}
		b.WriteString(n.Content + "\n\n")
		if req.IncludeHistory && len(n.EditHistory) > 0 {
			fmt.Fprintf(&b, "<details><summary>%d earlier revisions</summary></details>\n\n", len(n.EditHistory))
		}
	}

	return &Result{
		Data:     []byte(b.String()),
		Filename: sanitizeFilename(req.Campaign.Name) + ".md",
		MimeType: "text/markdown; charset=utf-8",
	}
}

func sortedMembers(c campaign.Campaign) []campaign.Membership {
	members := make([]campaign.Membership, 0, len(c.Members))
	// Owner first, then players by id.
	if owner, ok := c.Members[c.OwnerID]; ok {
		members = append(members, owner)
	}
	ids := make([]string, 0, len(c.Members))
	for id := range c.Members {
		if id != c.OwnerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		members = append(members, c.Members[id])
	}
	return members
}

func characterLabel(ref *campaign.CharacterRef) string {
	if ref == nil {
		return ""
	}
	if ref.Class == "" {
		return ref.Name
	}
	return fmt.Sprintf("%s, level %d %s", ref.Name, ref.Level, ref.Class)
}

