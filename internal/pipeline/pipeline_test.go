package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vizdiff/vizdiff/internal/artifact"
	"github.com/vizdiff/vizdiff/internal/capture"
	"github.com/vizdiff/vizdiff/pkg/classify"
	"github.com/vizdiff/vizdiff/pkg/config"
	"github.com/vizdiff/vizdiff/pkg/report"
	"github.com/vizdiff/vizdiff/pkg/visual"
)

type fakeDiscoverer struct {
	components []visual.Component
	err        error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, baseURL string) ([]visual.Component, error) {
	return f.components, f.err
}

type fakeCapturer struct {
	outcomes map[capture.Side][]capture.Outcome
	err      error
	calls    []capture.Side
}

func (f *fakeCapturer) CaptureSide(ctx context.Context, side capture.Side, baseURL string, components []visual.Component) ([]capture.Outcome, error) {
	f.calls = append(f.calls, side)
	if f.err != nil {
		return nil, f.err
	}
	return f.outcomes[side], nil
}

type fakeStore struct {
	mu      sync.Mutex
	uploads []string
	fail    map[string]bool
}

func (f *fakeStore) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[filename] {
		return "", fmt.Errorf("upload %s: simulated failure", filename)
	}
	f.uploads = append(f.uploads, filename)
	return "https://store.test/" + filename, nil
}

func (f *fakeStore) uploaded(filename string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.uploads {
		if u == filename {
			return true
		}
	}
	return false
}

type fakeStatus struct {
	marker string
	body   string
	calls  int
}

func (f *fakeStatus) Upsert(ctx context.Context, marker, body string) error {
	f.marker = marker
	f.body = body
	f.calls++
	return nil
}

// writeTestPNG renders a solid-color raster to path.
func writeTestPNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// outcome builds a successful capture outcome backed by a real file.
func outcome(t *testing.T, dir string, side capture.Side, id visual.ScreenshotID, name string, c color.RGBA) capture.Outcome {
	t.Helper()
	path := filepath.Join(dir, string(side), fmt.Sprintf("%s-%s.png", side, id))
	writeTestPNG(t, path, 20, 20, c)
	return capture.Outcome{
		ID:   id,
		Name: name,
		Shot: &visual.Screenshot{ID: id, Name: name, LocalPath: path},
	}
}

func testComponents() []visual.Component {
	return []visual.Component{
		{ID: "button", Name: "Button", URL: "https://site.test/components/button"},
		{ID: "card", Name: "Card", URL: "https://site.test/components/card"},
	}
}

func testPipeline(t *testing.T, disc *fakeDiscoverer, capt *fakeCapturer, store *fakeStore, status *fakeStatus) *Pipeline {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Capture.OutputDir = t.TempDir()
	cfg.Rules.Components = []config.ComponentRule{
		{Pattern: "src/components/button/**", Component: "button"},
		{Pattern: "src/components/card/**", Component: "card"},
	}
	run := config.Run{
		BeforeBaseURL: "https://before.test",
		AfterBaseURL:  "https://after.test",
	}
	p := New(cfg, run, disc, capt,
		func(ctx context.Context) (artifact.Store, error) { return store, nil },
		func() (StatusPublisher, error) { return status, nil })
	p.SetOutput(&bytes.Buffer{})
	return p
}

func TestRunSkipScopeIssuesNoCaptures(t *testing.T) {
	disc := &fakeDiscoverer{components: testComponents()}
	capt := &fakeCapturer{}
	status := &fakeStatus{}

	storeBuilt := false
	cfg := config.DefaultConfig()
	p := New(cfg, config.Run{}, disc, capt,
		func(ctx context.Context) (artifact.Store, error) {
			storeBuilt = true
			return &fakeStore{}, nil
		},
		func() (StatusPublisher, error) { return status, nil })
	p.SetOutput(&bytes.Buffer{})

	summary, err := p.Run(context.Background(), Options{Changed: []string{"docs/guide.md"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Scope != classify.ScopeSkip {
		t.Errorf("scope = %s, want SKIP", summary.Scope)
	}
	if len(capt.calls) != 0 {
		t.Errorf("capture calls = %d, want 0", len(capt.calls))
	}
	if storeBuilt {
		t.Error("artifact store constructed for a skipped run")
	}
	if status.calls != 0 {
		t.Errorf("status upserts = %d, want 0", status.calls)
	}
}

func TestRunFullFlow(t *testing.T) {
	dir := t.TempDir()
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	capt := &fakeCapturer{outcomes: map[capture.Side][]capture.Outcome{
		capture.SideBefore: {
			outcome(t, dir, capture.SideBefore, visual.MainID("button"), "Button", gray),
			outcome(t, dir, capture.SideBefore, visual.MainID("card"), "Card", gray),
		},
		capture.SideAfter: {
			outcome(t, dir, capture.SideAfter, visual.MainID("button"), "Button", blue),
			outcome(t, dir, capture.SideAfter, visual.MainID("card"), "Card", gray),
		},
	}}
	disc := &fakeDiscoverer{components: testComponents()}
	store := &fakeStore{}
	status := &fakeStatus{}
	p := testPipeline(t, disc, capt, store, status)

	summary, err := p.Run(context.Background(), Options{ForceFull: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Scope != classify.ScopeFull {
		t.Errorf("scope = %s, want FULL", summary.Scope)
	}
	if summary.Captured != 4 || summary.Compared != 2 || summary.Changed != 1 {
		t.Errorf("summary = %+v, want 4 captured, 2 compared, 1 changed", summary)
	}

	for _, want := range []string{
		"before-button.png", "before-card.png",
		"after-button.png", "after-card.png",
		"diff-button.png",
	} {
		if !store.uploaded(want) {
			t.Errorf("missing upload %s (got %v)", want, store.uploads)
		}
	}
	if store.uploaded("diff-card.png") {
		t.Error("unchanged pair published a diff raster")
	}
	if _, err := os.Stat(filepath.Join(p.cfg.Capture.OutputDir, "diff", "diff-button.png")); err != nil {
		t.Errorf("local diff raster missing: %v", err)
	}

	if status.calls != 1 {
		t.Fatalf("status upserts = %d, want 1", status.calls)
	}
	if status.marker != report.Marker {
		t.Errorf("marker = %q", status.marker)
	}
	if !strings.HasPrefix(status.body, report.Marker) {
		t.Error("report body does not start with the marker")
	}
	if !strings.Contains(status.body, "Button") || !strings.Contains(status.body, "https://store.test/diff-button.png") {
		t.Errorf("report body missing changed entry:\n%s", status.body)
	}
}

func TestRunCaptureBatchFailureIsFatal(t *testing.T) {
	disc := &fakeDiscoverer{components: testComponents()}
	capt := &fakeCapturer{err: fmt.Errorf("worker unreachable")}
	status := &fakeStatus{}
	p := testPipeline(t, disc, capt, &fakeStore{}, status)

	_, err := p.Run(context.Background(), Options{ForceFull: true})
	if err == nil {
		t.Fatal("expected error from failed batch capture")
	}
	if status.calls != 0 {
		t.Error("status comment published after fatal capture failure")
	}
}

func TestRunDiscoveryFailureIsFatal(t *testing.T) {
	disc := &fakeDiscoverer{err: fmt.Errorf("connection refused")}
	p := testPipeline(t, disc, &fakeCapturer{}, &fakeStore{}, &fakeStatus{})

	if _, err := p.Run(context.Background(), Options{ForceFull: true}); err == nil {
		t.Fatal("expected error from failed discovery")
	}
}

func TestRunUnpublishedScreenshotSkipsPair(t *testing.T) {
	dir := t.TempDir()
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}

	capt := &fakeCapturer{outcomes: map[capture.Side][]capture.Outcome{
		capture.SideBefore: {
			outcome(t, dir, capture.SideBefore, visual.MainID("button"), "Button", gray),
			outcome(t, dir, capture.SideBefore, visual.MainID("card"), "Card", gray),
		},
		capture.SideAfter: {
			outcome(t, dir, capture.SideAfter, visual.MainID("button"), "Button", gray),
			outcome(t, dir, capture.SideAfter, visual.MainID("card"), "Card", gray),
		},
	}}
	store := &fakeStore{fail: map[string]bool{"before-card.png": true}}
	status := &fakeStatus{}
	p := testPipeline(t, &fakeDiscoverer{components: testComponents()}, capt, store, status)

	summary, err := p.Run(context.Background(), Options{ForceFull: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.PublishFailed != 1 {
		t.Errorf("publish failures = %d, want 1", summary.PublishFailed)
	}
	if summary.Compared != 1 {
		t.Errorf("compared = %d, want 1", summary.Compared)
	}
	if summary.SkippedPairs != 1 {
		t.Errorf("skipped pairs = %d, want 1", summary.SkippedPairs)
	}
	if strings.Contains(status.body, "card") {
		t.Error("skipped pair leaked into the report")
	}
}

func TestRunDiffUploadFailureIsRecoverable(t *testing.T) {
	dir := t.TempDir()
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	capt := &fakeCapturer{outcomes: map[capture.Side][]capture.Outcome{
		capture.SideBefore: {outcome(t, dir, capture.SideBefore, visual.MainID("button"), "Button", gray)},
		capture.SideAfter:  {outcome(t, dir, capture.SideAfter, visual.MainID("button"), "Button", blue)},
	}}
	store := &fakeStore{fail: map[string]bool{"diff-button.png": true}}
	status := &fakeStatus{}
	p := testPipeline(t, &fakeDiscoverer{components: testComponents()[:1]}, capt, store, status)

	summary, err := p.Run(context.Background(), Options{ForceFull: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Changed != 1 {
		t.Errorf("changed = %d, want 1", summary.Changed)
	}
	if summary.DiffPublishFailed != 1 {
		t.Errorf("diff publish failures = %d, want 1", summary.DiffPublishFailed)
	}
	if !strings.Contains(status.body, "_diff unavailable_") {
		t.Errorf("report should mark the diff unavailable:\n%s", status.body)
	}
}

func TestRunCaptureFailureShrinksComparisonSet(t *testing.T) {
	dir := t.TempDir()
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}

	capt := &fakeCapturer{outcomes: map[capture.Side][]capture.Outcome{
		capture.SideBefore: {
			outcome(t, dir, capture.SideBefore, visual.MainID("button"), "Button", gray),
			{ID: visual.MainID("card"), Name: "Card", Err: fmt.Errorf("worker: timeout")},
		},
		capture.SideAfter: {
			outcome(t, dir, capture.SideAfter, visual.MainID("button"), "Button", gray),
			outcome(t, dir, capture.SideAfter, visual.MainID("card"), "Card", gray),
		},
	}}
	status := &fakeStatus{}
	p := testPipeline(t, &fakeDiscoverer{components: testComponents()}, capt, &fakeStore{}, status)

	summary, err := p.Run(context.Background(), Options{ForceFull: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.CaptureFailed != 1 {
		t.Errorf("capture failures = %d, want 1", summary.CaptureFailed)
	}
	if summary.Compared != 1 {
		t.Errorf("compared = %d, want 1", summary.Compared)
	}
	// the orphaned after-side screenshot counts as an incomplete pair
	if summary.SkippedPairs != 1 {
		t.Errorf("skipped pairs = %d, want 1", summary.SkippedPairs)
	}
}

func TestRunReportPreservesDiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	ids := []string{"alpha", "beta", "gamma", "delta"}
	var comps []visual.Component
	beforeOuts := []capture.Outcome{}
	afterOuts := []capture.Outcome{}
	for _, id := range ids {
		comps = append(comps, visual.Component{ID: id, Name: id, URL: "https://site.test/" + id})
		beforeOuts = append(beforeOuts, outcome(t, dir, capture.SideBefore, visual.MainID(id), id, gray))
		afterOuts = append(afterOuts, outcome(t, dir, capture.SideAfter, visual.MainID(id), id, blue))
	}
	capt := &fakeCapturer{outcomes: map[capture.Side][]capture.Outcome{
		capture.SideBefore: beforeOuts,
		capture.SideAfter:  afterOuts,
	}}
	status := &fakeStatus{}
	p := testPipeline(t, &fakeDiscoverer{components: comps}, capt, &fakeStore{}, status)

	if _, err := p.Run(context.Background(), Options{ForceFull: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	last := -1
	for _, id := range ids {
		pos := strings.Index(status.body, "(`"+id+"`)")
		if pos < 0 {
			t.Fatalf("report missing %s:\n%s", id, status.body)
		}
		if pos < last {
			t.Fatalf("report order does not follow discovery order:\n%s", status.body)
		}
		last = pos
	}
}
