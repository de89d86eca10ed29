package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// RunRequest carries everything a pipeline run needs from one pull request
// event.
type RunRequest struct {
	Repository         string
	PRNumber           int
	HeadSHA            string
	BaseRef            string
	BeforeBaseURL      string
	AfterBaseURL       string
	Changed            []string
	ChangedUnavailable bool
}

// Runner executes a visual-regression run for one pull request.
type Runner interface {
	Run(ctx context.Context, req RunRequest) error
}

// FileLister resolves the changed-file list for a pull request.
type FileLister interface {
	ListFiles(ctx context.Context, repository string, number int) ([]string, error)
}

// Handler processes incoming GitHub webhook events and triggers runs for
// qualifying pull request actions.
type Handler struct {
	webhookSecret []byte
	files         FileLister
	runner        Runner

	// Preview deployment URL templates; "{sha}" and "{branch}" expand per
	// event. The before URL typically points at the base branch deployment.
	beforeTemplate string
	afterTemplate  string

	// dispatch decouples run execution from the webhook response; tests
	// replace it to run inline.
	dispatch func(fn func())
}

// NewHandler creates a webhook Handler.
func NewHandler(webhookSecret []byte, files FileLister, runner Runner, beforeTemplate, afterTemplate string) *Handler {
	return &Handler{
		webhookSecret:  webhookSecret,
		files:          files,
		runner:         runner,
		beforeTemplate: beforeTemplate,
		afterTemplate:  afterTemplate,
		dispatch:       func(fn func()) { go fn() },
	}
}

// ServeHTTP handles incoming webhook requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20)) // 10 MB limit
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if err := VerifySignature(body, signature, h.webhookSecret); err != nil {
		log.Printf("webhook signature verification failed: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}

	event, err := ParseEvent(eventType, body)
	if err != nil {
		log.Printf("webhook parse error for %s: %v", eventType, err)
		http.Error(w, "unsupported event", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *PingEvent:
		// delivery check, nothing to run
	case *PullRequestEvent:
		if err := h.handlePullRequest(r.Context(), e); err != nil {
			log.Printf("handle pull_request event: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

func (h *Handler) handlePullRequest(ctx context.Context, e *PullRequestEvent) error {
	switch e.Action {
	case "opened", "synchronize", "reopened":
	default:
		return nil // ignore other PR actions
	}

	req := RunRequest{
		Repository:    e.Repository.FullName,
		PRNumber:      e.Number,
		HeadSHA:       e.PullRequest.Head.SHA,
		BaseRef:       e.PullRequest.Base.Ref,
		BeforeBaseURL: expandTemplate(h.beforeTemplate, e.PullRequest.Base),
		AfterBaseURL:  expandTemplate(h.afterTemplate, e.PullRequest.Head),
	}

	changed, err := h.files.ListFiles(ctx, req.Repository, req.PRNumber)
	if err != nil {
		// Undeterminable change set falls back to a full run rather than
		// failing the delivery.
		log.Printf("list files for PR #%d on %s: %v", req.PRNumber, req.Repository, err)
		req.ChangedUnavailable = true
	} else {
		req.Changed = changed
	}

	h.dispatch(func() {
		if err := h.runner.Run(context.Background(), req); err != nil {
			log.Printf("run for PR #%d on %s failed: %v", req.PRNumber, req.Repository, err)
			return
		}
		log.Printf("completed run for PR #%d on %s (commit %s)", req.PRNumber, req.Repository, req.HeadSHA)
	})

	log.Printf("accepted run for PR #%d on %s (commit %s)", req.PRNumber, req.Repository, req.HeadSHA)
	return nil
}

// expandTemplate substitutes the ref's coordinates into a preview URL
// template.
func expandTemplate(tpl string, ref GitRef) string {
	s := strings.ReplaceAll(tpl, "{sha}", ref.SHA)
	s = strings.ReplaceAll(s, "{branch}", ref.Ref)
	return s
}

// GitHubFileLister lists pull request files through the GitHub REST API.
type GitHubFileLister struct {
	client *github.Client
}

// NewGitHubFileLister creates a lister authenticated with token.
func NewGitHubFileLister(token string) *GitHubFileLister {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	return &GitHubFileLister{client: github.NewClient(hc)}
}

// ListFiles returns every changed file path in the pull request, following
// pagination.
func (l *GitHubFileLister) ListFiles(ctx context.Context, repository string, number int) ([]string, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok {
		return nil, fmt.Errorf("invalid repository %q, want owner/repo", repository)
	}

	var files []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := l.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list files for PR #%d: %w", number, err)
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
		}
		if resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}
