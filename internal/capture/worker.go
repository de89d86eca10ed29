// Package capture turns a component set into batched rendering-worker
// requests and persists the returned screenshots locally.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Action is one interaction step the worker executes before capturing,
// e.g. opening a dropdown.
type Action struct {
	Type     string `json:"type"`
	Selector string `json:"selector"`
}

// Page is one rendering instruction inside a batch.
type Page struct {
	URL             string   `json:"url"`
	CaptureSections bool     `json:"captureSections"`
	HideSidebar     bool     `json:"hideSidebar"`
	Actions         []Action `json:"actions,omitempty"`
}

// Viewport is the fixed run-wide capture viewport.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type batchRequest struct {
	BaseURL     string   `json:"baseUrl"`
	Pages       []Page   `json:"pages"`
	Viewport    Viewport `json:"viewport"`
	HideSidebar bool     `json:"hideSidebar"`
}

// WorkerResult is one entry of the worker's batch response. Image is a
// base64-encoded PNG; Error is set when rendering that entry failed.
// Section fields are present when the page was split into sections.
type WorkerResult struct {
	URL          string `json:"url"`
	Image        string `json:"image"`
	Error        string `json:"error,omitempty"`
	SectionID    string `json:"sectionId,omitempty"`
	SectionTitle string `json:"sectionTitle,omitempty"`
}

type batchResponse struct {
	Results []WorkerResult `json:"results"`
}

// WorkerClient talks to the remote screenshot rendering worker.
type WorkerClient struct {
	workerURL  string
	apiKey     string
	httpClient *http.Client
}

// NewWorkerClient creates a client for the worker at workerURL. apiKey may
// be empty when the worker is unauthenticated.
func NewWorkerClient(workerURL, apiKey string) *WorkerClient {
	return &WorkerClient{
		workerURL: workerURL,
		apiKey:    apiKey,
		// Batches render many pages server-side; allow them time.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// CaptureBatch sends all pages for one side as a single batched call.
// A non-2xx response is an error; the caller treats it as fatal for that
// side's entire capture. Per-entry failures come back inside the results.
func (c *WorkerClient) CaptureBatch(ctx context.Context, baseURL string, pages []Page, viewport Viewport, hideSidebar bool) ([]WorkerResult, error) {
	body, err := json.Marshal(batchRequest{
		BaseURL:     baseURL,
		Pages:       pages,
		Viewport:    viewport,
		HideSidebar: hideSidebar,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.workerURL+"/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("worker returned %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return decoded.Results, nil
}
