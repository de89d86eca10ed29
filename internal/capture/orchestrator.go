package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vizdiff/vizdiff/pkg/config"
	"github.com/vizdiff/vizdiff/pkg/visual"
)

// Side distinguishes the two capture passes of a run. Local screenshots
// partition by side, so no two operations contend for one path.
type Side string

const (
	SideBefore Side = "before"
	SideAfter  Side = "after"
)

// Outcome is the explicit per-surface result of one capture attempt. Either
// Shot is set or Err explains the skip; per-entry failures never abort the
// remaining batch.
type Outcome struct {
	ID   visual.ScreenshotID
	Name string
	Shot *visual.Screenshot
	Err  error
}

// Orchestrator drives one batched capture per side and writes the rasters
// under {outputDir}/{side}/{side}-{id}.png.
type Orchestrator struct {
	worker    *WorkerClient
	cfg       config.CaptureConfig
	outputDir string
}

// NewOrchestrator creates an Orchestrator using the given worker client and
// capture configuration.
func NewOrchestrator(worker *WorkerClient, cfg config.CaptureConfig) *Orchestrator {
	return &Orchestrator{worker: worker, cfg: cfg, outputDir: cfg.OutputDir}
}

// planEntry ties one batch page back to the component it renders.
type planEntry struct {
	component visual.Component
	open      bool
}

// CaptureSide captures every component (plus registered interaction
// variants) against baseURL in a single batched worker call and persists
// the results. The returned outcomes list one entry per captured or failed
// surface; the error is non-nil only for side-fatal conditions.
func (o *Orchestrator) CaptureSide(ctx context.Context, side Side, baseURL string, components []visual.Component) ([]Outcome, error) {
	pages, plan := o.buildPages(components)
	if len(pages) == 0 {
		return nil, nil
	}

	viewport := Viewport{Width: o.cfg.ViewportWidth, Height: o.cfg.ViewportHeight}
	results, err := o.worker.CaptureBatch(ctx, baseURL, pages, viewport, o.cfg.HideSidebar)
	if err != nil {
		return nil, fmt.Errorf("%s capture: %w", side, err)
	}

	dir := filepath.Join(o.outputDir, string(side))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", side, err)
	}

	// A main page that split into sections produces no plain result of its
	// own; note those URLs up front so plain results match the right entry
	// regardless of response order.
	sectioned := make(map[string]bool)
	for _, res := range results {
		if res.SectionID != "" {
			sectioned[res.URL] = true
		}
	}

	var outcomes []Outcome
	seen := make(map[string]int) // plain results already assigned per URL
	for _, res := range results {
		entry, ok := matchPlan(plan, res, seen, sectioned)
		if !ok {
			outcomes = append(outcomes, Outcome{
				Name: res.URL,
				Err:  fmt.Errorf("worker returned unrequested url %q", res.URL),
			})
			continue
		}

		id, name := identify(entry, res)
		if res.Error != "" {
			outcomes = append(outcomes, Outcome{ID: id, Name: name, Err: fmt.Errorf("worker: %s", res.Error)})
			continue
		}
		data, err := base64.StdEncoding.DecodeString(res.Image)
		if err != nil {
			outcomes = append(outcomes, Outcome{ID: id, Name: name, Err: fmt.Errorf("decode image: %w", err)})
			continue
		}
		if len(data) == 0 {
			outcomes = append(outcomes, Outcome{ID: id, Name: name, Err: fmt.Errorf("empty image payload")})
			continue
		}

		localPath := filepath.Join(dir, fmt.Sprintf("%s-%s.png", side, id))
		if err := os.WriteFile(localPath, data, 0o644); err != nil {
			outcomes = append(outcomes, Outcome{ID: id, Name: name, Err: fmt.Errorf("write screenshot: %w", err)})
			continue
		}

		outcomes = append(outcomes, Outcome{
			ID:   id,
			Name: name,
			Shot: &visual.Screenshot{ID: id, Name: name, LocalPath: localPath},
		})
	}

	return outcomes, nil
}

// buildPages produces one page per component, plus a second page for
// components with a registered interaction action. The open variant is
// always appended directly after its main page, which matchPlan relies on.
func (o *Orchestrator) buildPages(components []visual.Component) ([]Page, []planEntry) {
	var pages []Page
	var plan []planEntry
	for _, comp := range components {
		pages = append(pages, Page{
			URL:             comp.URL,
			CaptureSections: o.cfg.CaptureSections,
			HideSidebar:     o.cfg.HideSidebar,
		})
		plan = append(plan, planEntry{component: comp})

		if action, ok := o.cfg.Actions[comp.ID]; ok {
			pages = append(pages, Page{
				URL:         comp.URL,
				HideSidebar: o.cfg.HideSidebar,
				Actions:     []Action{parseAction(action)},
			})
			plan = append(plan, planEntry{component: comp, open: true})
		}
	}
	return pages, plan
}

// matchPlan resolves a worker result to its plan entry. Results carry only
// the page URL; section results always belong to the main page, and plain
// results for a URL are assigned main-then-open in request order. When the
// main page's capture came back as sections, its plan entry is already
// claimed and plain results fall through to the open variant.
func matchPlan(plan []planEntry, res WorkerResult, seen map[string]int, sectioned map[string]bool) (planEntry, bool) {
	var candidates []planEntry
	for _, entry := range plan {
		if entry.component.URL == res.URL {
			candidates = append(candidates, entry)
		}
	}
	if len(candidates) == 0 {
		return planEntry{}, false
	}
	if res.SectionID != "" {
		return candidates[0], true // sections only come from the main page
	}
	if sectioned[res.URL] && !candidates[0].open {
		candidates = candidates[1:]
	}
	idx := seen[res.URL]
	seen[res.URL]++
	if idx >= len(candidates) {
		return planEntry{}, false
	}
	return candidates[idx], true
}

// identify derives the stable screenshot identifier for one result. An
// explicit section ID takes priority, then the open-variant suffix.
func identify(entry planEntry, res WorkerResult) (visual.ScreenshotID, string) {
	comp := entry.component
	slug := comp.ID
	if slug == "" {
		slug = visual.PageSlug(comp.URL)
	}
	switch {
	case res.SectionID != "":
		name := comp.Name
		if res.SectionTitle != "" {
			name = comp.Name + " — " + res.SectionTitle
		}
		return visual.SectionID(slug, res.SectionID), name
	case entry.open:
		return visual.OpenID(slug), comp.Name + " (open)"
	default:
		return visual.MainID(slug), comp.Name
	}
}

// parseAction converts a configured action string ("click .trigger") into
// the worker's structured form. A bare selector defaults to a click.
func parseAction(s string) Action {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 2)
	if len(parts) == 1 {
		return Action{Type: "click", Selector: parts[0]}
	}
	return Action{Type: parts[0], Selector: parts[1]}
}
