// Package webhook handles incoming GitHub webhook events.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// VerifySignature validates the X-Hub-Signature-256 header against the payload.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("invalid signature format")
	}
	sig, err := hex.DecodeString(signature[7:])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(sig, expected) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// PingEvent represents GitHub's webhook verification ping.
type PingEvent struct {
	Zen    string `json:"zen"`
	HookID int64  `json:"hook_id"`
}

// PullRequestEvent represents a pull request webhook event.
type PullRequestEvent struct {
	Action      string             `json:"action"`
	Number      int                `json:"number"`
	PullRequest PullRequestPayload `json:"pull_request"`
	Repository  GitHubRepository   `json:"repository"`
}

// PullRequestPayload contains pull request details.
type PullRequestPayload struct {
	Number int        `json:"number"`
	Head   GitRef     `json:"head"`
	Base   GitRef     `json:"base"`
	State  string     `json:"state"`
	User   GitHubUser `json:"user"`
}

// GitRef represents a git reference (branch head).
type GitRef struct {
	SHA  string           `json:"sha"`
	Ref  string           `json:"ref"`
	Repo GitHubRepository `json:"repo"`
}

// GitHubUser represents a GitHub user or organization.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GitHubRepository represents a GitHub repository.
type GitHubRepository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// ParseEvent parses a webhook payload based on the event type.
func ParseEvent(eventType string, payload []byte) (interface{}, error) {
	switch eventType {
	case "ping":
		var e PingEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse ping event: %w", err)
		}
		return &e, nil
	case "pull_request":
		var e PullRequestEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse pull_request event: %w", err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
}
