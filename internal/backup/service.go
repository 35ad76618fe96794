// Package backup commits export snapshots to a local git repository, so
// every snapshot is retained with a timestamped history for free.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Service owns one git repository under dir.
type Service struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

// Snapshot writes files into the backup worktree and commits them.
// files maps a filename ("tasks.json") to its JSON export blob. Returns
// the commit hash. An unchanged worktree still produces a commit so each
// snapshot is visible in the log.
func (s *Service) Snapshot(files map[string][]byte, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.openOrInit()
	if err != nil {
		return "", err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(s.dir, filepath.Base(name))
		if err := os.WriteFile(path, append(files[name], '\n'), 0o644); err != nil {
			return "", fmt.Errorf("write snapshot file %s: %w", name, err)
		}
		if _, err := worktree.Add(filepath.Base(name)); err != nil {
			return "", fmt.Errorf("git add %s: %w", name, err)
		}
	}

	if message == "" {
		message = "Snapshot"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  "Pulseboard",
			Email: "backup@pulseboard.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return hash.String(), nil
}

// History returns snapshot commit messages with timestamps, newest first.
func (s *Service) History(limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("open backup repo: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("read backup log: %w", err)
	}
	defer iter.Close()

	var out []string
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, fmt.Sprintf("%s %s", c.Author.When.UTC().Format(time.RFC3339), c.Message))
		if limit > 0 && len(out) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("iterate backup log: %w", err)
	}
	return out, nil
}

var errStopIteration = errors.New("stop iteration")

func (s *Service) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open backup repo: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init backup repo: %w", err)
	}
	return repo, nil
}
