// Package status maintains the single marker-tagged summary comment on a
// change request.
package status

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/vizdiff/vizdiff/internal/artifact"
)

// Publisher upserts one status comment per change request: it scans the
// existing comments for the hidden marker and updates in place when found,
// so repeated runs never accumulate duplicates.
//
// The scan reads a single listing page. A change request with enough prior
// comments to paginate can hide the marker and produce a duplicate; known
// limitation.
type Publisher struct {
	client   *github.Client
	owner    string
	repo     string
	prNumber int
}

// NewPublisher creates a Publisher for the change request prNumber on
// "owner/repo".
func NewPublisher(token, repository string, prNumber int) (*Publisher, error) {
	if token == "" {
		return nil, fmt.Errorf("status publisher: %w", artifact.ErrMissingCredential)
	}
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q, want owner/repo", repository)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &Publisher{
		client:   github.NewClient(tc),
		owner:    owner,
		repo:     repo,
		prNumber: prNumber,
	}, nil
}

// Upsert posts body as the change request's status comment. body must start
// with marker; the same marker locates a previously posted comment.
func (p *Publisher) Upsert(ctx context.Context, marker, body string) error {
	if !strings.HasPrefix(body, marker) {
		return fmt.Errorf("comment body does not start with marker")
	}

	comments, _, err := p.client.Issues.ListComments(ctx, p.owner, p.repo, p.prNumber,
		&github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}})
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}

	for _, c := range comments {
		if strings.HasPrefix(c.GetBody(), marker) {
			_, _, err := p.client.Issues.EditComment(ctx, p.owner, p.repo, c.GetID(),
				&github.IssueComment{Body: github.String(body)})
			if err != nil {
				return fmt.Errorf("update comment %d: %w", c.GetID(), err)
			}
			log.Printf("updated status comment %d on #%d", c.GetID(), p.prNumber)
			return nil
		}
	}

	_, _, err = p.client.Issues.CreateComment(ctx, p.owner, p.repo, p.prNumber,
		&github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	log.Printf("created status comment on #%d", p.prNumber)
	return nil
}
