package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"lorekeeper/api/internal/archive"
	"lorekeeper/api/internal/attachment"
	"lorekeeper/api/internal/auth"
	"lorekeeper/api/internal/authpw"
	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/config"
	"lorekeeper/api/internal/docstore"
	"lorekeeper/api/internal/email"
	"lorekeeper/api/internal/export"
	"lorekeeper/api/internal/identity"
	"lorekeeper/api/internal/note"
	"lorekeeper/api/internal/realtime"
	"lorekeeper/api/internal/search"
	"lorekeeper/api/internal/session"
	"lorekeeper/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// Service orchestrates campaigns, notes, search, journals, and auth on
// top of the document store.
type Service struct {
	cfg         config.Config
	docs        docstore.Store
	campaigns   *campaign.Directory
	members     *campaign.Members
	notes       *note.Store
	notifier    *realtime.Notifier
	accounts    *identity.Directory
	passwords   *authpw.Service
	sessions    session.Store
	searcher    *search.Service
	archives    *archive.Service
	exporter    *export.Service
	mailer      *email.Service
	attachments *attachment.Service
}

func New(cfg config.Config, docs docstore.Store, sessions session.Store, searcher *search.Service, archives *archive.Service) *Service {
	members := campaign.NewMembers(docs)
	accounts := identity.NewDirectory(docs)
	return &Service{
		cfg:       cfg,
		docs:      docs,
		campaigns: campaign.NewDirectory(docs, members),
		members:   members,
		notes:     note.NewStore(docs),
		notifier:  realtime.NewNotifier(docs),
		accounts:  accounts,
		passwords: authpw.NewService(accounts),
		sessions:  sessions,
		searcher:  searcher,
		archives:  archives,
		exporter:  export.NewService(),
		mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}
}

// WithAttachments enables object-storage attachments. Optional; without
// it attachment routes answer 503.
func (s *Service) WithAttachments(svc *attachment.Service) *Service {
	s.attachments = svc
	return s
}

func (s *Service) SMTPConfigured() bool {
	return s.mailer.IsConfigured()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}

// --- Accounts and sessions ---

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (*authpw.SignUpResponse, error) {
	resp, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.mailer.IsConfigured() && resp.VerificationToken != "" {
		verifyURL := s.cfg.BaseURL + "/verify-email?token=" + resp.VerificationToken
		go func(to, name, url string) {
			if err := s.mailer.SendVerificationEmail(to, name, url); err != nil {
				log.Printf("verification email to %s failed: %v", to, err)
			}
		}(req.Email, req.DisplayName, verifyURL)
	}
	return resp, nil
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (*authpw.SignInResponse, error) {
	return s.passwords.SignIn(ctx, req)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	return s.passwords.VerifyEmail(ctx, token)
}

func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	token, err := s.passwords.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	if token != "" && s.mailer.IsConfigured() {
		resetURL := s.cfg.BaseURL + "/reset-password?token=" + token
		go func(to, url string) {
			if err := s.mailer.SendPasswordResetEmail(to, "", url); err != nil {
				log.Printf("reset email to %s failed: %v", to, err)
			}
		}(emailAddr, resetURL)
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, req authpw.ResetPasswordRequest) error {
	return s.passwords.ResetPassword(ctx, req)
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.accounts.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.accounts.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user identity.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, user.DisplayName, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// --- Campaigns ---

func (s *Service) CreateCampaign(ctx context.Context, ownerID, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	c, err := s.campaigns.Create(ctx, ownerID, name, strings.TrimSpace(description))
	if err != nil {
		return nil, err
	}
	s.indexCampaign(c)
	return s.campaignPayload(ctx, c, ownerID), nil
}

func (s *Service) ListCampaigns(ctx context.Context, userID string) ([]map[string]any, error) {
	list, err := s.campaigns.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(list))
	for _, c := range list {
		items = append(items, s.campaignPayload(ctx, c, userID))
	}
	return items, nil
}

func (s *Service) GetCampaign(ctx context.Context, campaignID, viewerID string) (map[string]any, error) {
	c, _, err := s.membership(ctx, campaignID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.campaignPayload(ctx, c, viewerID), nil
}

// PreviewInvite resolves an invite code to a campaign summary without
// joining. Anyone holding a valid code may preview.
func (s *Service) PreviewInvite(ctx context.Context, code string) (map[string]any, error) {
	summary, err := s.campaigns.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":          summary.ID,
		"name":        summary.Name,
		"description": summary.Description,
		"memberCount": summary.MemberCount,
		"createdAt":   summary.CreatedAt,
	}, nil
}

func (s *Service) JoinCampaign(ctx context.Context, code, userID string, character *campaign.CharacterRef) (map[string]any, error) {
	campaignID, err := s.campaigns.CampaignIDByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c, err := s.members.Join(ctx, campaignID, userID, character)
	if err != nil {
		return nil, err
	}
	return s.campaignPayload(ctx, c, userID), nil
}

func (s *Service) LeaveCampaign(ctx context.Context, campaignID, userID string) error {
	_, err := s.members.Leave(ctx, campaignID, userID)
	return err
}

func (s *Service) SetCharacter(ctx context.Context, campaignID, userID string, character *campaign.CharacterRef) (map[string]any, error) {
	c, err := s.members.SetCharacter(ctx, campaignID, userID, character)
	if err != nil {
		return nil, err
	}
	return s.campaignPayload(ctx, c, userID), nil
}

func (s *Service) RegenerateInvite(ctx context.Context, campaignID, userID string) (map[string]any, error) {
	c, err := s.campaigns.RegenerateInvite(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	return s.campaignPayload(ctx, c, userID), nil
}

// SendInvite emails the campaign's current invite code. Owner only.
func (s *Service) SendInvite(ctx context.Context, campaignID, actorID, recipient string) error {
	c, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return err
	}
	if role != campaign.RoleOwner {
		return campaign.ErrPermissionDenied
	}
	if !s.mailer.IsConfigured() {
		return domainError(http.StatusServiceUnavailable, "EMAIL_UNAVAILABLE", "Email service not configured", nil)
	}
	inviterName := actorID
	if user, err := s.accounts.GetUserByID(ctx, actorID); err == nil {
		inviterName = user.DisplayName
	}
	joinURL := s.cfg.BaseURL + "/join?code=" + c.InviteCode
	go func() {
		if err := s.mailer.SendCampaignInviteEmail(recipient, inviterName, c.Name, c.InviteCode, joinURL); err != nil {
			log.Printf("invite email for campaign %s failed: %v", campaignID, err)
		}
	}()
	return nil
}

func (s *Service) DeleteCampaign(ctx context.Context, campaignID, userID string) error {
	_, role, err := s.membership(ctx, campaignID, userID)
	if err != nil {
		return err
	}
	if role != campaign.RoleOwner {
		return campaign.ErrPermissionDenied
	}
	// Collect note ids before the cascade so the index can be cleaned.
	var noteIDs []string
	if notes, err := s.notes.List(ctx, campaignID, userID, campaign.RoleOwner); err == nil {
		for _, n := range notes {
			noteIDs = append(noteIDs, n.ID)
		}
	}
	if err := s.campaigns.Delete(ctx, campaignID, userID); err != nil {
		return err
	}
	if s.searcher != nil {
		s.searcher.DeleteCampaign(campaignID)
		for _, id := range noteIDs {
			s.searcher.DeleteNote(id)
		}
	}
	return nil
}

// membership loads the campaign and resolves the viewer's role. Viewers
// outside the member map get ErrNotMember; the campaign itself stays
// hidden from them.
func (s *Service) membership(ctx context.Context, campaignID, viewerID string) (campaign.Campaign, campaign.Role, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return campaign.Campaign{}, "", err
	}
	role, ok := campaign.RoleOf(c, viewerID)
	if !ok {
		return campaign.Campaign{}, "", campaign.ErrNotMember
	}
	return c, role, nil
}

func (s *Service) campaignPayload(ctx context.Context, c campaign.Campaign, viewerID string) map[string]any {
	role, _ := campaign.RoleOf(c, viewerID)

	ids := make([]string, 0, len(c.Members))
	for id := range c.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	members := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m := c.Members[id]
		name := id
		if user, err := s.accounts.GetUserByID(ctx, id); err == nil {
			name = user.DisplayName
		}
		entry := map[string]any{
			"userId":      m.UserID,
			"displayName": name,
			"role":        m.Role,
			"joinedAt":    m.JoinedAt,
			"isActive":    m.IsActive,
		}
		if m.Character != nil {
			entry["character"] = m.Character
		}
		members = append(members, entry)
	}

	payload := map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"description": c.Description,
		"ownerId":     c.OwnerID,
		"members":     members,
		"memberCount": len(c.Members),
		"role":        role,
		"createdAt":   c.CreatedAt,
		"updatedAt":   c.UpdatedAt,
	}
	// The invite code is the join credential; players never see it.
	if role == campaign.RoleOwner {
		payload["inviteCode"] = c.InviteCode
	}
	return payload
}

// --- Notes ---

func (s *Service) CreateNote(ctx context.Context, campaignID, authorID string, in note.CreateInput) (map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, authorID)
	if err != nil {
		return nil, err
	}
	author := note.Author{ID: authorID, Name: authorID}
	if user, err := s.accounts.GetUserByID(ctx, authorID); err == nil {
		author.Name = user.DisplayName
	}
	n, err := s.notes.Create(ctx, campaignID, author, role, in)
	if err != nil {
		return nil, err
	}
	s.indexNote(n)
	return notePayload(n), nil
}

func (s *Service) GetNote(ctx context.Context, campaignID, noteID, viewerID string) (map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, viewerID)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, campaignID, noteID, viewerID, role)
	if err != nil {
		return nil, err
	}
	return notePayload(n), nil
}

func (s *Service) ListNotes(ctx context.Context, campaignID, viewerID string) ([]map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, viewerID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.List(ctx, campaignID, viewerID, role)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		items = append(items, notePayload(n))
	}
	return items, nil
}

func (s *Service) UpdateNote(ctx context.Context, campaignID, noteID, editorID string, in note.UpdateInput) (map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, editorID)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Update(ctx, campaignID, noteID, editorID, role, in)
	if err != nil {
		return nil, err
	}
	s.indexNote(n)
	return notePayload(n), nil
}

func (s *Service) RevealNote(ctx context.Context, campaignID, noteID, actorID string) (map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Reveal(ctx, campaignID, noteID, actorID, role)
	if err != nil {
		return nil, err
	}
	s.indexNote(n)
	return notePayload(n), nil
}

func (s *Service) DeleteNote(ctx context.Context, campaignID, noteID, actorID string) error {
	_, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return err
	}
	if err := s.notes.Delete(ctx, campaignID, noteID, actorID, role); err != nil {
		return err
	}
	if s.searcher != nil {
		s.searcher.DeleteNote(noteID)
	}
	if s.attachments != nil {
		if err := s.attachments.DeleteNote(ctx, campaignID, noteID); err != nil {
			log.Printf("attachment cleanup for note %s failed: %v", noteID, err)
		}
	}
	return nil
}

func notePayload(n note.Note) map[string]any {
	payload := map[string]any{
		"id":          n.ID,
		"campaignId":  n.CampaignID,
		"title":       n.Title,
		"content":     n.Content,
		"type":        n.Type,
		"authorId":    n.AuthorID,
		"authorName":  n.AuthorName,
		"tags":        n.Tags,
		"category":    n.Category,
		"isRevealed":  n.IsRevealed,
		"editHistory": n.EditHistory,
		"createdAt":   n.CreatedAt,
		"updatedAt":   n.UpdatedAt,
	}
	if n.RevealedAt != nil {
		payload["revealedAt"] = n.RevealedAt
	}
	return payload
}

func (s *Service) indexNote(n note.Note) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexNote(search.NoteRecord{
		ID:         n.ID,
		CampaignID: n.CampaignID,
		Title:      n.Title,
		Content:    n.Content,
		Type:       string(n.Type),
		AuthorID:   n.AuthorID,
		Tags:       n.Tags,
		Category:   n.Category,
		IsRevealed: n.IsRevealed,
	})
}

func (s *Service) indexCampaign(c campaign.Campaign) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexCampaign(search.CampaignRecord{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
	})
}

// --- Search ---

func (s *Service) Search(ctx context.Context, userID, text string, filterType search.ResultType, limit, offset int) (search.Response, error) {
	if s.searcher == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	list, err := s.campaigns.ListForUser(ctx, userID)
	if err != nil {
		return search.Response{}, err
	}
	access := make([]search.CampaignAccess, 0, len(list))
	for _, c := range list {
		role, _ := campaign.RoleOf(c, userID)
		access = append(access, search.CampaignAccess{ID: c.ID, Role: role})
	}
	return s.searcher.Search(ctx, search.Query{
		Text:       text,
		UserID:     userID,
		Access:     access,
		FilterType: filterType,
		Limit:      limit,
		Offset:     offset,
	}), nil
}

// --- Journal archive ---

func (s *Service) ArchiveCampaign(ctx context.Context, campaignID, actorID string) (map[string]any, error) {
	c, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return nil, err
	}
	if role != campaign.RoleOwner {
		return nil, campaign.ErrPermissionDenied
	}
	if s.archives == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Journal archive not configured", nil)
	}
	notes, err := s.notes.List(ctx, campaignID, actorID, campaign.RoleOwner)
	if err != nil {
		return nil, err
	}
	actorName := actorID
	if user, err := s.accounts.GetUserByID(ctx, actorID); err == nil {
		actorName = user.DisplayName
	}
	info, err := s.archives.Snapshot(c, notes, actorName)
	if err != nil {
		return nil, err
	}
	return commitPayload(info), nil
}

func (s *Service) ArchiveHistory(ctx context.Context, campaignID, actorID string, limit int) (map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return nil, err
	}
	if role != campaign.RoleOwner {
		return nil, campaign.ErrPermissionDenied
	}
	if s.archives == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Journal archive not configured", nil)
	}
	history, err := s.archives.History(campaignID, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(history))
	for _, info := range history {
		entries = append(entries, commitPayload(info))
	}
	return map[string]any{"snapshots": entries}, nil
}

func (s *Service) ArchivedNote(ctx context.Context, campaignID, actorID, hash, noteID string) (map[string]any, error) {
	_, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return nil, err
	}
	if role != campaign.RoleOwner {
		return nil, campaign.ErrPermissionDenied
	}
	if s.archives == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "Journal archive not configured", nil)
	}
	n, err := s.archives.NoteAtCommit(campaignID, hash, noteID)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Snapshot or note not found", nil)
	}
	return notePayload(n), nil
}

func commitPayload(info archive.CommitInfo) map[string]any {
	return map[string]any{
		"hash":      info.Hash,
		"message":   info.Message,
		"author":    info.Author,
		"createdAt": info.CreatedAt,
	}
}

// --- Export ---

func (s *Service) ExportCampaign(ctx context.Context, campaignID, viewerID string, format export.Format, includeHistory bool) (*export.Result, error) {
	c, role, err := s.membership(ctx, campaignID, viewerID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.List(ctx, campaignID, viewerID, role)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(export.Request{
		Campaign:       c,
		Notes:          notes,
		Format:         format,
		IncludeHistory: includeHistory,
	})
}

// --- Attachments ---

var errAttachmentsDisabled = domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Object storage not configured", nil)

// attachmentNote checks the viewer may see the note attachments belong to.
func (s *Service) attachmentNote(ctx context.Context, campaignID, noteID, viewerID string) (note.Note, campaign.Role, error) {
	_, role, err := s.membership(ctx, campaignID, viewerID)
	if err != nil {
		return note.Note{}, "", err
	}
	n, err := s.notes.Get(ctx, campaignID, noteID, viewerID, role)
	if err != nil {
		return note.Note{}, "", err
	}
	return n, role, nil
}

func (s *Service) UploadAttachment(ctx context.Context, campaignID, noteID, viewerID, filename, contentType string, r io.Reader, size int64) (attachment.Object, error) {
	if s.attachments == nil {
		return attachment.Object{}, errAttachmentsDisabled
	}
	if _, _, err := s.attachmentNote(ctx, campaignID, noteID, viewerID); err != nil {
		return attachment.Object{}, err
	}
	return s.attachments.Upload(ctx, campaignID, noteID, filename, contentType, r, size)
}

func (s *Service) ListAttachments(ctx context.Context, campaignID, noteID, viewerID string) ([]attachment.Object, error) {
	if s.attachments == nil {
		return nil, errAttachmentsDisabled
	}
	if _, _, err := s.attachmentNote(ctx, campaignID, noteID, viewerID); err != nil {
		return nil, err
	}
	return s.attachments.List(ctx, campaignID, noteID)
}

func (s *Service) AttachmentURL(ctx context.Context, campaignID, noteID, viewerID, filename string) (string, error) {
	if s.attachments == nil {
		return "", errAttachmentsDisabled
	}
	if _, _, err := s.attachmentNote(ctx, campaignID, noteID, viewerID); err != nil {
		return "", err
	}
	return s.attachments.DownloadURL(ctx, campaignID, noteID, filename, 15*time.Minute)
}

func (s *Service) DeleteAttachment(ctx context.Context, campaignID, noteID, viewerID, filename string) error {
	if s.attachments == nil {
		return errAttachmentsDisabled
	}
	n, role, err := s.attachmentNote(ctx, campaignID, noteID, viewerID)
	if err != nil {
		return err
	}
	if role != campaign.RoleOwner && n.AuthorID != viewerID {
		return campaign.ErrPermissionDenied
	}
	return s.attachments.Delete(ctx, campaignID, noteID, filename)
}

// --- Realtime ---

// StreamNotes subscribes the viewer to visibility-filtered note
// snapshots for one campaign.
func (s *Service) StreamNotes(ctx context.Context, campaignID, viewerID string, fn realtime.SnapshotFunc) (*realtime.Subscription, error) {
	_, role, err := s.membership(ctx, campaignID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.notifier.Subscribe(ctx, campaignID, viewerID, role, fn)
}

// ReindexCampaignNotes pushes every note of a campaign into the search
// index. Used after enabling Meilisearch on an existing deployment.
func (s *Service) ReindexCampaignNotes(ctx context.Context, campaignID, actorID string) error {
	_, role, err := s.membership(ctx, campaignID, actorID)
	if err != nil {
		return err
	}
	if role != campaign.RoleOwner {
		return campaign.ErrPermissionDenied
	}
	if s.searcher == nil {
		return nil
	}
	notes, err := s.notes.List(ctx, campaignID, actorID, campaign.RoleOwner)
	if err != nil {
		return err
	}
	records := make([]search.NoteRecord, 0, len(notes))
	for _, n := range notes {
		records = append(records, search.NoteRecord{
			ID:         n.ID,
			CampaignID: n.CampaignID,
			Title:      n.Title,
			Content:    n.Content,
			Type:       string(n.Type),
			AuthorID:   n.AuthorID,
			Tags:       n.Tags,
			Category:   n.Category,
			IsRevealed: n.IsRevealed,
		})
	}
	s.searcher.ReindexNotes(records)
	return nil
}
