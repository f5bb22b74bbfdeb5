package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var journalTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	journalTemplate = template.Must(template.New("journal").Funcs(funcMap).Parse(journalHTML))
}

// TemplateData holds data for journal template rendering
type TemplateData struct {
	CampaignName string
	Description  string
	OwnerName    string
	GeneratedAt  time.Time
	Members      []TemplateMember
	Notes        []TemplateNote
}

// TemplateMember holds one membership row
type TemplateMember struct {
	Name      string
	Role      string
	Character string
}

// TemplateNote holds note data for the template
type TemplateNote struct {
	Title      string
	Type       string
	Author     string
	Category   string
	Tags       string
	Content    string
	Revealed   bool
	UpdatedAt  time.Time
	EditTrail  []TemplateEdit
}

// TemplateEdit holds one edit history row
type TemplateEdit struct {
	Editor   string
	EditedAt time.Time
}

// RenderJournalHTML renders the journal template with provided data
func RenderJournalHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := journalTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const journalHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.CampaignName}}</title>
<style>
  body { font-family: Georgia, 'Times New Roman', serif; color: #1f2328; line-height: 1.55; margin: 0; }
  h1 { font-size: 26px; border-bottom: 2px solid #7c3aed; padding-bottom: 8px; }
  h2 { font-size: 18px; margin-top: 28px; }
  .meta { color: #57606a; font-size: 12px; }
  .description { font-style: italic; margin: 12px 0 24px; }
  table { border-collapse: collapse; width: 100%; font-size: 13px; }
  th, td { text-align: left; border-bottom: 1px solid #d0d7de; padding: 4px 8px; }
  .note { page-break-inside: avoid; margin-bottom: 20px; border: 1px solid #d0d7de; border-radius: 6px; padding: 12px 16px; }
  .note .badge { display: inline-block; font-size: 10px; text-transform: uppercase; letter-spacing: 1px; padding: 2px 8px; border-radius: 10px; background: #eef; color: #334; margin-left: 8px; }
  .note .badge.owner { background: #fde8e8; color: #7f1d1d; }
  .note .content { white-space: pre-wrap; margin-top: 8px; }
  .trail { font-size: 11px; color: #57606a; margin-top: 8px; }
</style>
</head>
<body>
  <h1>{{.CampaignName}}</h1>
  <p class="meta">Journal of {{.OwnerName}} &middot; exported {{formatDate .GeneratedAt "January 2, 2006"}}</p>
  {{if .Description}}<p class="description">{{.Description}}</p>{{end}}

  <h2>Party</h2>
  <table>
    <tr><th>Member</th><th>Role</th><th>Character</th></tr>
    {{range .Members}}
    <tr><td>{{.Name}}</td><td>{{.Role}}</td><td>{{.Character}}</td></tr>
    {{end}}
  </table>

  <h2>Notes</h2>
  {{range .Notes}}
  <div class="note">
    <strong>{{.Title}}</strong>
    <span class="badge {{lower .Type}}">{{.Type}}{{if .Revealed}} &middot; revealed{{end}}</span>
    <div class="meta">{{.Author}}{{if .Category}} &middot; {{.Category}}{{end}}{{if .Tags}} &middot; {{.Tags}}{{end}} &middot; {{formatDate .UpdatedAt "Jan 2, 2006 15:04"}}</div>
    <div class="content">{{.Content}}</div>
    {{if .EditTrail}}
    <div class="trail">
      {{range .EditTrail}}edited by {{.Editor}} on {{formatDate .EditedAt "Jan 2, 2006 15:04"}}<br>{{end}}
    </div>
    {{end}}
  </div>
  {{end}}
</body>
</html>`
