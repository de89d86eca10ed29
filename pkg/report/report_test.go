package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vizdiff/vizdiff/pkg/visual"
)

func sampleResults() []visual.Comparison {
	return []visual.Comparison{
		{
			ID:        visual.MainID("button"),
			Name:      "Button",
			BeforeURL: "https://cdn.example.com/before-button.png",
			AfterURL:  "https://cdn.example.com/after-button.png",
		},
		{
			ID:          visual.OpenID("dropdown"),
			Name:        "Dropdown",
			BeforeURL:   "https://cdn.example.com/before-dropdown-open.png",
			AfterURL:    "https://cdn.example.com/after-dropdown-open.png",
			DiffURL:     "https://cdn.example.com/diff-dropdown-open.png",
			Changed:     true,
			DiffPixels:  420,
			DiffPercent: 3.25,
		},
		{
			ID:        visual.MainID("modal"),
			Name:      "Modal",
			BeforeURL: "https://cdn.example.com/before-modal.png",
			AfterURL:  "https://cdn.example.com/after-modal.png",
		},
	}
}

func TestMarkdownStartsWithMarker(t *testing.T) {
	for _, results := range [][]visual.Comparison{nil, sampleResults()} {
		doc := Markdown(results)
		if !strings.HasPrefix(doc, Marker) {
			t.Errorf("report does not start with marker: %q", doc[:min(len(doc), 60)])
		}
	}
}

func TestMarkdownChangedFirst(t *testing.T) {
	doc := Markdown(sampleResults())

	changedIdx := strings.Index(doc, "Dropdown")
	unchangedIdx := strings.Index(doc, "<details>")
	if changedIdx == -1 || unchangedIdx == -1 {
		t.Fatalf("missing sections in report:\n%s", doc)
	}
	if changedIdx > unchangedIdx {
		t.Error("changed section should precede the unchanged list")
	}

	if !strings.Contains(doc, "| Before | After | Diff |") {
		t.Error("missing three-column table header")
	}
	if !strings.Contains(doc, "![diff](https://cdn.example.com/diff-dropdown-open.png)") {
		t.Error("missing diff image cell")
	}
	if !strings.Contains(doc, "3.25% changed, 420 px") {
		t.Error("missing diff metrics in heading")
	}
	if !strings.Contains(doc, "2 unchanged screenshots") {
		t.Error("missing collapsed unchanged count")
	}
	if !strings.Contains(doc, "- Button (`button`)") || !strings.Contains(doc, "- Modal (`modal`)") {
		t.Error("missing unchanged list entries")
	}
}

func TestMarkdownMissingDiffURL(t *testing.T) {
	results := sampleResults()
	results[1].DiffURL = ""

	doc := Markdown(results)
	if !strings.Contains(doc, "_diff unavailable_") {
		t.Error("expected placeholder for missing diff URL")
	}
}

func TestMarkdownEmpty(t *testing.T) {
	doc := Markdown(nil)
	if !strings.Contains(doc, "No comparable screenshot pairs") {
		t.Errorf("unexpected empty-run body:\n%s", doc)
	}
}

func TestMarkdownDeterministic(t *testing.T) {
	a := Markdown(sampleResults())
	b := Markdown(sampleResults())
	if a != b {
		t.Error("identical inputs produced different documents")
	}
}

func TestMarkdownUnchangedOnly(t *testing.T) {
	results := sampleResults()[:1]
	doc := Markdown(results)
	if !strings.Contains(doc, "No visual changes detected across 1 screenshot.") {
		t.Errorf("unexpected unchanged-only summary:\n%s", doc)
	}
}

func TestTerminalRenderer(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	r := &TerminalRenderer{}
	if err := r.Render(&buf, sampleResults()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "3 compared, 1 changed") {
		t.Errorf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "Dropdown") {
		t.Errorf("missing changed entry:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("NO_COLOR output still contains ANSI escapes")
	}
}
