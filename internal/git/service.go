package git

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

// ErrNothingToCommit is returned when the worktree has no changes
var ErrNothingToCommit = errors.New("nothing to commit")

// Service provides Git operations
type Service struct {
	logger *loggy.Logger
	repo   *git.Repository
}

// NewService creates a new Git service
func NewService(logger *loggy.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// InitRepo opens the repository at repoPath, creating it when none exists
func (s *Service) InitRepo(repoPath string) error {
	repo, err := git.PlainOpen(repoPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(repoPath, false)
		if err != nil {
			return fmt.Errorf("initializing git repo: %w", err)
		}
		s.logger.Debug("Initialized git repository", "path", repoPath)
	} else if err != nil {
		return fmt.Errorf("opening git repo: %w", err)
	}

	s.repo = repo
	return nil
}

// ensureRepo ensures the repository is initialized before performing operations
func (s *Service) ensureRepo() error {
	if s.repo == nil {
		return fmt.Errorf("git repository not initialized")
	}
	return nil
}

// HasGitRepo checks if the provided path contains a valid Git repository
func (s *Service) HasGitRepo(path string) bool {
	_, err := git.PlainOpen(path)
	if err != nil {
		s.logger.Debug("Not a valid Git repository", "path", path, "error", err)
		return false
	}

	return true
}

// CommitAll stages every file in the worktree and commits it.
// The author falls back to the global git identity, then DefaultSignature.
func (s *Service) CommitAll(message string, author *Signature) (string, error) {
	if err := s.ensureRepo(); err != nil {
		return "", err
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("staging files: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("getting status: %w", err)
	}
	if status.IsClean() {
		return "", ErrNothingToCommit
	}

	sig := s.resolveSignature(author)
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  sig.Name,
			Email: sig.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	s.logger.Debug("Created commit", "hash", hash.String(), "files", len(status))
	return hash.String(), nil
}

func (s *Service) resolveSignature(author *Signature) Signature {
	if author != nil && author.Name != "" && author.Email != "" {
		return *author
	}

	cfg, err := config.LoadConfig(config.GlobalScope)
	if err == nil && cfg.User.Name != "" && cfg.User.Email != "" {
		return Signature{Name: cfg.User.Name, Email: cfg.User.Email}
	}
	return DefaultSignature
}

// ListCommits returns the most recent commits reachable from HEAD
func (s *Service) ListCommits(limit int) ([]*Commit, error) {
	if err := s.ensureRepo(); err != nil {
		return nil, err
	}

	headRef, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	commit, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting HEAD commit: %w", err)
	}

	commitIter := object.NewCommitIterCTime(commit, nil, nil)
	defer commitIter.Close()

	var commits []*Commit
	err = commitIter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}

		commits = append(commits, &Commit{
			Hash:      c.Hash.String(),
			Author:    c.Author.Name,
			Email:     c.Author.Email,
			Message:   c.Message,
			Timestamp: c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating commits: %w", err)
	}

	return commits, nil
}
