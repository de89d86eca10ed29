// Package pipeline orchestrates one visual-regression run: discovery,
// classification, before/after capture, pairwise diffing, and publication
// of artifacts and the status comment.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vizdiff/vizdiff/internal/artifact"
	"github.com/vizdiff/vizdiff/internal/capture"
	"github.com/vizdiff/vizdiff/pkg/classify"
	"github.com/vizdiff/vizdiff/pkg/config"
	"github.com/vizdiff/vizdiff/pkg/imagediff"
	"github.com/vizdiff/vizdiff/pkg/report"
	"github.com/vizdiff/vizdiff/pkg/visual"
)

// Discoverer fetches the component catalog from a deployed site.
type Discoverer interface {
	Discover(ctx context.Context, baseURL string) ([]visual.Component, error)
}

// Capturer captures one side's screenshots for a component set.
type Capturer interface {
	CaptureSide(ctx context.Context, side capture.Side, baseURL string, components []visual.Component) ([]capture.Outcome, error)
}

// StatusPublisher upserts the marker-tagged summary comment.
type StatusPublisher interface {
	Upsert(ctx context.Context, marker, body string) error
}

// Pipeline wires the run's collaborators together. The artifact store and
// status publisher are constructed lazily so a SKIP run never demands
// credentials it will not use.
type Pipeline struct {
	cfg        *config.Config
	run        config.Run
	classifier *classify.Classifier
	discoverer Discoverer
	capturer   Capturer
	newStore   func(ctx context.Context) (artifact.Store, error)
	newStatus  func() (StatusPublisher, error)
	out        io.Writer
}

// Options selects the scope inputs for one run.
type Options struct {
	// Changed is the changed-file list for classification.
	Changed []string
	// ChangedUnavailable marks the list as undeterminable; classification
	// falls back to a full run.
	ChangedUnavailable bool
	// ForceFull runs the complete catalog regardless of changed files.
	ForceFull bool
}

// Summary aggregates per-stage outcomes for console diagnostics. Failed or
// skipped items never appear in the published report; they are only
// counted here.
type Summary struct {
	Scope             classify.Scope
	Components        int
	Captured          int
	CaptureFailed     int
	PublishFailed     int
	Compared          int
	Changed           int
	SkippedPairs      int
	DiffPublishFailed int
}

// New creates a Pipeline from configuration and collaborators.
func New(cfg *config.Config, run config.Run, discoverer Discoverer, capturer Capturer,
	newStore func(ctx context.Context) (artifact.Store, error),
	newStatus func() (StatusPublisher, error)) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		run:        run,
		classifier: classify.New(cfg.Rules),
		discoverer: discoverer,
		capturer:   capturer,
		newStore:   newStore,
		newStatus:  newStatus,
		out:        os.Stderr,
	}
}

// SetOutput redirects console diagnostics; used by tests.
func (p *Pipeline) SetOutput(w io.Writer) { p.out = w }

// Run executes the full pipeline. Fatal conditions (discovery failure,
// batch capture failure, missing credentials at publication time) return
// an error before any further network calls; recoverable per-item failures
// are narrated and reduce the comparison set.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	catalog, err := p.discoverer.Discover(ctx, p.run.BeforeBaseURL)
	if err != nil {
		return nil, fmt.Errorf("discover components: %w", err)
	}
	fmt.Fprintf(p.out, "Discovered %d components\n", len(catalog))

	cls := p.classifier.Classify(catalog, opts.Changed, classify.Options{
		ForceFull:          opts.ForceFull,
		ChangedUnavailable: opts.ChangedUnavailable,
	})
	summary := &Summary{Scope: cls.Scope, Components: len(cls.Components)}
	fmt.Fprintf(p.out, "Scope: %s (%d components)\n", cls.Scope, len(cls.Components))

	if cls.Scope == classify.ScopeSkip {
		fmt.Fprintln(p.out, "Nothing to test, skipping capture")
		return summary, nil
	}

	store, err := p.newStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	fmt.Fprintln(p.out, "Capturing before screenshots...")
	before, err := p.capturer.CaptureSide(ctx, capture.SideBefore, p.run.BeforeBaseURL, cls.Components)
	if err != nil {
		return nil, err
	}
	p.publishSide(ctx, store, capture.SideBefore, before, summary)

	fmt.Fprintln(p.out, "Capturing after screenshots...")
	after, err := p.capturer.CaptureSide(ctx, capture.SideAfter, p.run.AfterBaseURL, cls.Components)
	if err != nil {
		return nil, err
	}
	p.publishSide(ctx, store, capture.SideAfter, after, summary)

	results := p.compare(ctx, store, before, after, summary)

	body := report.Markdown(results)
	(&report.TerminalRenderer{}).Render(p.out, results)

	status, err := p.newStatus()
	if err != nil {
		return nil, fmt.Errorf("status publisher: %w", err)
	}
	if err := status.Upsert(ctx, report.Marker, body); err != nil {
		return nil, fmt.Errorf("publish status comment: %w", err)
	}

	fmt.Fprintf(p.out, "Summary: %d captured, %d capture failures, %d publish failures, %d compared (%d changed), %d pairs skipped\n",
		summary.Captured, summary.CaptureFailed, summary.PublishFailed,
		summary.Compared, summary.Changed, summary.SkippedPairs)

	return summary, nil
}

// publishSide uploads each captured screenshot. Upload failures are
// recoverable: the screenshot stays usable locally and its pair is later
// excluded from remote-URL-dependent comparison.
func (p *Pipeline) publishSide(ctx context.Context, store artifact.Store, side capture.Side, outcomes []capture.Outcome, summary *Summary) {
	for _, out := range outcomes {
		if out.Err != nil {
			summary.CaptureFailed++
			fmt.Fprintf(p.out, "  skip %s: %v\n", out.ID, out.Err)
			continue
		}
		summary.Captured++

		data, err := os.ReadFile(out.Shot.LocalPath)
		if err != nil {
			summary.PublishFailed++
			fmt.Fprintf(p.out, "  publish %s: read local file: %v\n", out.ID, err)
			continue
		}
		url, err := store.Upload(ctx, fmt.Sprintf("%s-%s.png", side, out.ID), data)
		if err != nil {
			summary.PublishFailed++
			fmt.Fprintf(p.out, "  publish %s: %v\n", out.ID, err)
			continue
		}
		out.Shot.RemoteURL = url
	}
}

// diffOptions exposes the configured threshold and highlight alpha.
func (p *Pipeline) diffOptions() imagediff.Options {
	return imagediff.Options{
		Threshold:      p.cfg.Diff.Threshold,
		HighlightAlpha: p.cfg.Diff.HighlightAlpha,
	}
}
