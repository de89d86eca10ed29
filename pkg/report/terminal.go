package report

import (
	"fmt"
	"io"
	"os"

	"github.com/vizdiff/vizdiff/pkg/visual"
)

// TerminalRenderer renders comparison results as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
)

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, results []visual.Comparison) error {
	changedCount := 0
	for _, res := range results {
		if res.Changed {
			changedCount++
		}
	}

	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("vizdiff: %d compared, %d changed", len(results), changedCount)))

	for _, res := range results {
		if !res.Changed {
			continue
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			colored("✗", colorRed),
			bold(res.Name),
			dim(fmt.Sprintf("(%s) %.2f%% / %d px", res.ID, res.DiffPercent, res.DiffPixels)))
		if res.DiffURL != "" {
			fmt.Fprintf(w, "    %s\n", dim(res.DiffURL))
		}
	}

	if changedCount == 0 && len(results) > 0 {
		fmt.Fprintf(w, "  %s no visual changes detected\n", colored("✓", colorGreen))
	}
	fmt.Fprintln(w)

	return nil
}
