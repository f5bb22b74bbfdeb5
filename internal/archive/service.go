// Package archive keeps a git journal per campaign. Every snapshot
// commits the campaign document and its notes, giving owners a browsable
// history of the whole workspace outside the document store.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"lorekeeper/api/internal/campaign"
	"lorekeeper/api/internal/note"
)

// CommitInfo describes one journal entry.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Snapshot writes the campaign and its notes into the campaign's journal
// repository and commits. Callers pass the owner's full note set; the
// journal is owner-eyes-only.
func (s *Service) Snapshot(c campaign.Campaign, notes []note.Note, actor string) (CommitInfo, error) {
	lock := s.campaignLock(c.ID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(c.ID)
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	if err := writeJSON(filepath.Join(root, "campaign.json"), c); err != nil {
		return CommitInfo{}, err
	}
	if _, err := worktree.Add("campaign.json"); err != nil {
		return CommitInfo{}, fmt.Errorf("git add campaign.json: %w", err)
	}

	notesDir := filepath.Join(root, "notes")
	if err := os.MkdirAll(notesDir, 0o755); err != nil {
		return CommitInfo{}, fmt.Errorf("create notes dir: %w", err)
	}
	current := make(map[string]bool, len(notes))
	for _, n := range notes {
		name := n.ID + ".json"
		current[name] = true
		if err := writeJSON(filepath.Join(notesDir, name), n); err != nil {
			return CommitInfo{}, err
		}
		if _, err := worktree.Add(filepath.Join("notes", name)); err != nil {
			return CommitInfo{}, fmt.Errorf("git add note %s: %w", n.ID, err)
		}
	}
	if err := s.removeStale(worktree, notesDir, current); err != nil {
		return CommitInfo{}, err
	}

	message := fmt.Sprintf("Journal snapshot: %d notes", len(notes))
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  actor,
			Email: fmt.Sprintf("%s@journal.lorekeeper.local", sanitizeEmail(actor)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// History returns the most recent journal entries, newest first.
func (s *Service) History(campaignID string, limit int) ([]CommitInfo, error) {
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(campaignID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []CommitInfo{}, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return []CommitInfo{}, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// NoteAtCommit reads one note as it was captured in a given snapshot.
func (s *Service) NoteAtCommit(campaignID, hash, noteID string) (note.Note, error) {
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(campaignID))
	if err != nil {
		return note.Note{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return note.Note{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return note.Note{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File("notes/" + noteID + ".json")
	if err != nil {
		return note.Note{}, fmt.Errorf("load note %s from commit: %w", noteID, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return note.Note{}, fmt.Errorf("open note reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return note.Note{}, fmt.Errorf("read note bytes: %w", err)
	}
	return note.Decode(raw)
}

func (s *Service) ensureRepo(campaignID string) (*git.Repository, error) {
	path := s.repoPath(campaignID)
	if _, err := os.Stat(path); err == nil {
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("open repo: %w", err)
		}
		return repo, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) removeStale(worktree *git.Worktree, notesDir string, current map[string]bool) error {
	entries, err := os.ReadDir(notesDir)
	if err != nil {
		return fmt.Errorf("read notes dir: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || current[name] {
			continue
		}
		if _, err := worktree.Remove(filepath.Join("notes", name)); err != nil {
			return fmt.Errorf("git rm stale note %s: %w", name, err)
		}
	}
	return nil
}

func (s *Service) repoPath(campaignID string) string {
	return filepath.Join(s.baseDir, campaignID)
}

func (s *Service) campaignLock(campaignID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[campaignID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[campaignID] = lock
	return lock
}

func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
