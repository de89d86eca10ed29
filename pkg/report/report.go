// Package report renders comparison results for the change request and the
// terminal. Rendering is deterministic and side-effect free: the same
// result set always produces the same document.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/vizdiff/vizdiff/pkg/visual"
)

// Marker is the hidden token prefixed to every generated report. The status
// publisher scans existing comments for it to update in place instead of
// posting duplicates.
const Marker = "<!-- vizdiff:visual-regression-report -->"

// Renderer produces formatted output from a comparison result set.
type Renderer interface {
	// Render writes the formatted results to the writer.
	Render(w io.Writer, results []visual.Comparison) error
}

// MarkdownRenderer renders the marker-tagged change-request comment body.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, results []visual.Comparison) error {
	_, err := io.WriteString(w, Markdown(results))
	return err
}

// Markdown builds the full report document. Changed pairs come first, each
// with a before/after/diff table; unchanged pairs collapse into a count and
// list. Within each group the input order is preserved, which mirrors the
// component catalog's natural order and keeps repeated runs byte-stable.
func Markdown(results []visual.Comparison) string {
	var changed, unchanged []visual.Comparison
	for _, res := range results {
		if res.Changed {
			changed = append(changed, res)
		} else {
			unchanged = append(unchanged, res)
		}
	}

	var sb strings.Builder
	sb.WriteString(Marker)
	sb.WriteString("\n## Visual regression report\n\n")

	switch {
	case len(results) == 0:
		sb.WriteString("No comparable screenshot pairs were produced for this run.\n")
		return sb.String()
	case len(changed) == 0:
		sb.WriteString(fmt.Sprintf("No visual changes detected across %d screenshot%s.\n\n",
			len(results), plural(len(results))))
	default:
		sb.WriteString(fmt.Sprintf("**%d of %d** screenshot%s changed.\n\n",
			len(changed), len(results), plural(len(results))))
	}

	for _, res := range changed {
		sb.WriteString(fmt.Sprintf("### %s (`%s`) — %.2f%% changed, %d px\n\n",
			res.Name, res.ID, res.DiffPercent, res.DiffPixels))
		sb.WriteString("| Before | After | Diff |\n")
		sb.WriteString("|--------|-------|------|\n")
		sb.WriteString(fmt.Sprintf("| ![before](%s) | ![after](%s) | %s |\n\n",
			res.BeforeURL, res.AfterURL, diffCell(res)))
	}

	if len(unchanged) > 0 {
		sb.WriteString("<details>\n")
		sb.WriteString(fmt.Sprintf("<summary>%d unchanged screenshot%s</summary>\n\n",
			len(unchanged), plural(len(unchanged))))
		for _, res := range unchanged {
			sb.WriteString(fmt.Sprintf("- %s (`%s`)\n", res.Name, res.ID))
		}
		sb.WriteString("\n</details>\n")
	}

	return sb.String()
}

func diffCell(res visual.Comparison) string {
	if res.DiffURL == "" {
		return "_diff unavailable_"
	}
	return fmt.Sprintf("![diff](%s)", res.DiffURL)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
