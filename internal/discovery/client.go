// Package discovery queries the live documentation site for the catalog of
// testable component surfaces.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vizdiff/vizdiff/pkg/visual"
)

// Client fetches the component catalog from a deployed documentation site.
// Discovery failure is fatal for a run: without a catalog no scope can be
// targeted.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a discovery Client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Discover fetches the full catalog for the deployment at baseURL. The site
// serves it as JSON at /components.json. Relative component URLs are
// resolved against baseURL.
func (c *Client) Discover(ctx context.Context, baseURL string) ([]visual.Component, error) {
	url := strings.TrimRight(baseURL, "/") + "/components.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch component catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("component catalog returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Components []visual.Component `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode component catalog: %w", err)
	}

	for i := range payload.Components {
		comp := &payload.Components[i]
		if strings.HasPrefix(comp.URL, "/") {
			comp.URL = strings.TrimRight(baseURL, "/") + comp.URL
		}
		if comp.ID == "" {
			comp.ID = visual.PageSlug(comp.URL)
		}
	}

	return payload.Components, nil
}
