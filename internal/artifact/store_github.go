package artifact

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// GitHubStore implements Store on a dedicated artifact branch of the source
// repository. The branch name derives deterministically from the change
// request number and the run identifier, so re-running a pipeline updates
// the same files in place.
type GitHubStore struct {
	client  *github.Client
	owner   string
	repo    string
	baseRef string
	branch  string

	// Content writes count against GitHub's secondary rate limits; pace
	// them instead of bursting a whole screenshot set at once.
	limiter *rate.Limiter

	branchOnce sync.Once
	branchErr  error
}

// NewGitHubStore creates a GitHubStore for "owner/repo". The artifact
// branch is created lazily from baseRef's current revision on first upload.
// A missing token is the one fatal misconfiguration here.
func NewGitHubStore(token, repository, baseRef string, prNumber int, runID string) (*GitHubStore, error) {
	if token == "" {
		return nil, fmt.Errorf("github artifact store: %w", ErrMissingCredential)
	}
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/repo", repository)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &GitHubStore{
		client:  github.NewClient(tc),
		owner:   owner,
		repo:    repo,
		baseRef: baseRef,
		branch:  fmt.Sprintf("vizdiff/pr-%d-run-%s", prNumber, runID),
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}, nil
}

// Upload commits data as screenshots/{filename} on the per-run branch and
// returns the raw content URL. Any HTTP failure aborts just this upload.
func (s *GitHubStore) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if err := s.ensureBranch(ctx); err != nil {
		return "", err
	}

	path := "screenshots/" + filename

	// An existing file needs its blob SHA as the update precondition.
	var sha *string
	existing, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path,
		&github.RepositoryContentGetOptions{Ref: s.branch})
	switch {
	case err == nil && existing != nil:
		sha = existing.SHA
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		// create path below
	case err != nil:
		return "", fmt.Errorf("check existing %s: %w", path, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Add visual regression artifact %s", filename)),
		Content: data,
		Branch:  github.String(s.branch),
		SHA:     sha,
	}
	if sha == nil {
		_, _, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, path, opts)
	} else {
		_, _, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, path, opts)
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", s.owner, s.repo, s.branch, path), nil
}

// ensureBranch creates the per-run branch from the base ref's current
// revision if it does not exist yet. Concurrent uploads share one attempt.
func (s *GitHubStore) ensureBranch(ctx context.Context) error {
	s.branchOnce.Do(func() {
		_, resp, err := s.client.Git.GetRef(ctx, s.owner, s.repo, "refs/heads/"+s.branch)
		if err == nil {
			return
		}
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			s.branchErr = fmt.Errorf("check branch %s: %w", s.branch, err)
			return
		}

		base, _, err := s.client.Git.GetRef(ctx, s.owner, s.repo, "refs/heads/"+s.baseRef)
		if err != nil {
			s.branchErr = fmt.Errorf("resolve base ref %s: %w", s.baseRef, err)
			return
		}

		_, _, err = s.client.Git.CreateRef(ctx, s.owner, s.repo, &github.Reference{
			Ref:    github.String("refs/heads/" + s.branch),
			Object: &github.GitObject{SHA: base.Object.SHA},
		})
		if err != nil {
			s.branchErr = fmt.Errorf("create branch %s: %w", s.branch, err)
		}
	})
	return s.branchErr
}
