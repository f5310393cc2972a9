// Package history keeps a git repository per project and commits the
// project document after every successful remote save.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

const documentFile = "project.json"

var ErrNoHistory = errors.New("project has no history")

type Commit struct {
	Hash      string `json:"hash"`
	Message   string `json:"message"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
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

// Record commits p as the next revision of its project. When the document
// is identical to the current head no commit is made and the head is
// returned.
func (s *Service) Record(p project.Project, author string) (Commit, error) {
	lock := s.projectLock(p.ID)
	lock.Lock()
	defer lock.Unlock()

	payload, err := encodeDocument(p)
	if err != nil {
		return Commit{}, err
	}

	repo, err := s.openOrInit(p.ID)
	if err != nil {
		return Commit{}, err
	}

	if head, err := headCommit(repo); err == nil {
		current, err := readDocument(head)
		if err == nil && bytes.Equal(current, payload) {
			return toCommit(head), nil
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Commit{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Commit{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), documentFile), payload, 0o644); err != nil {
		return Commit{}, fmt.Errorf("write %s: %w", documentFile, err)
	}
	if _, err := worktree.Add(documentFile); err != nil {
		return Commit{}, fmt.Errorf("git add document: %w", err)
	}

	if author == "" {
		author = "anonymous"
	}
	hash, err := worktree.Commit(fmt.Sprintf("Save %s", p.Name), &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.canvas.dev", sanitizeEmail(author)),
			When:  p.UpdatedAt,
		},
	})
	if err != nil {
		return Commit{}, fmt.Errorf("commit document: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// Log lists up to limit revisions of a project, newest first. A limit of
// zero or less returns every revision.
func (s *Service) Log(projectID string, limit int) ([]Commit, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(projectID)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []Commit{}, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// At returns the project as it was recorded in the given revision. hash may
// be abbreviated.
func (s *Service) At(projectID, hash string) (project.Project, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(projectID)
	if err != nil {
		return project.Project{}, err
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return project.Project{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return project.Project{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	payload, err := readDocument(commitObj)
	if err != nil {
		return project.Project{}, err
	}
	return project.Decode(payload)
}

// Hooks records every successful write. Deletes keep the repository so a
// removed project can still be recovered.
func (s *Service) Hooks() store.Hooks {
	return store.Hooks{
		AfterUpsert: []func(context.Context, project.Project){
			func(_ context.Context, p project.Project) {
				if _, err := s.Record(p, p.OwnerID); err != nil {
					log.Printf("history: record %s: %v", p.ID, err)
				}
			},
		},
	}
}

func (s *Service) repoPath(projectID string) string {
	return filepath.Join(s.baseDir, filepath.Base(projectID))
}

func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[projectID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[projectID] = lock
	return lock
}

func (s *Service) open(projectID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoHistory
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(projectID string) (*git.Repository, error) {
	repo, err := s.open(projectID)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNoHistory) {
		return nil, err
	}

	path := s.repoPath(projectID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, nil
}

func encodeDocument(p project.Project) ([]byte, error) {
	payload, err := project.Encode(p)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func readDocument(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(documentFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", documentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open document reader: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read document bytes: %w", err)
	}
	return payload, nil
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String(),
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
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
