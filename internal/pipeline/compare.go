package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"
	"sync"

	"github.com/vizdiff/vizdiff/internal/artifact"
	"github.com/vizdiff/vizdiff/internal/capture"
	"github.com/vizdiff/vizdiff/pkg/imagediff"
	"github.com/vizdiff/vizdiff/pkg/visual"
)

// compareWorkers bounds the concurrent diff-and-upload operations.
const compareWorkers = 4

// pair is one comparable before/after screenshot couple.
type pair struct {
	id     visual.ScreenshotID
	name   string
	before *visual.Screenshot
	after  *visual.Screenshot
}

// compare pairs the two capture passes by screenshot identifier and diffs
// every complete pair. Pairs missing a side, or whose screenshots never
// published, are skipped and counted. Results preserve the before pass's
// order regardless of worker scheduling, so the report stays byte-stable
// across runs.
func (p *Pipeline) compare(ctx context.Context, store artifact.Store, before, after []capture.Outcome, summary *Summary) []visual.Comparison {
	pairs := matchPairs(before, after, summary)
	if len(pairs) == 0 {
		return nil
	}

	results := make([]visual.Comparison, len(pairs))
	ok := make([]bool, len(pairs))
	sem := make(chan struct{}, compareWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards summary counters and console output

	for i, pr := range pairs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, pr pair) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := p.comparePair(ctx, store, pr)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.SkippedPairs++
				fmt.Fprintf(p.out, "  compare %s: %v\n", pr.id, err)
				return
			}
			results[i] = res
			ok[i] = true
			summary.Compared++
			if res.Changed {
				summary.Changed++
			}
			if res.Changed && res.DiffURL == "" && res.DiffPixels > 0 {
				summary.DiffPublishFailed++
			}
		}(i, pr)
	}
	wg.Wait()

	kept := results[:0]
	for i, res := range results {
		if ok[i] {
			kept = append(kept, res)
		}
	}
	return kept
}

// comparePair diffs one pair and, when changed, publishes the highlight
// raster. A failed diff upload is recoverable: the pair still reports as
// changed, just without a diff image.
func (p *Pipeline) comparePair(ctx context.Context, store artifact.Store, pr pair) (visual.Comparison, error) {
	res, err := imagediff.CompareFiles(pr.before.LocalPath, pr.after.LocalPath, p.diffOptions())
	if err != nil {
		return visual.Comparison{}, err
	}

	cmp := visual.Comparison{
		ID:          pr.id,
		Name:        pr.name,
		BeforeURL:   pr.before.RemoteURL,
		AfterURL:    pr.after.RemoteURL,
		Changed:     res.Changed,
		DiffPixels:  res.DiffPixels,
		DiffPercent: res.DiffPercent,
	}
	if !res.Changed || res.Diff == nil {
		return cmp, nil
	}

	filename := fmt.Sprintf("diff-%s.png", pr.id)
	localPath := filepath.Join(p.cfg.Capture.OutputDir, "diff", filename)
	if err := imagediff.WritePNG(localPath, res.Diff); err != nil {
		return visual.Comparison{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, res.Diff); err != nil {
		return visual.Comparison{}, fmt.Errorf("encode diff: %w", err)
	}
	url, err := store.Upload(ctx, filename, buf.Bytes())
	if err != nil {
		fmt.Fprintf(p.out, "  publish diff %s: %v\n", pr.id, err)
		return cmp, nil
	}
	cmp.DiffURL = url
	return cmp, nil
}

// matchPairs joins the two passes on screenshot identifier, preserving the
// before pass's order. Every screenshot that cannot enter a complete,
// published pair counts as skipped.
func matchPairs(before, after []capture.Outcome, summary *Summary) []pair {
	byID := make(map[string]*visual.Screenshot, len(after))
	for _, out := range after {
		if out.Shot != nil {
			byID[out.ID.String()] = out.Shot
		}
	}

	var pairs []pair
	matched := make(map[string]bool)
	for _, out := range before {
		if out.Shot == nil {
			continue // already counted as a capture failure
		}
		key := out.ID.String()
		afterShot, ok := byID[key]
		if !ok {
			summary.SkippedPairs++
			continue
		}
		matched[key] = true
		if out.Shot.RemoteURL == "" || afterShot.RemoteURL == "" {
			summary.SkippedPairs++
			continue
		}
		pairs = append(pairs, pair{id: out.ID, name: out.Name, before: out.Shot, after: afterShot})
	}

	for _, out := range after {
		if out.Shot != nil && !matched[out.ID.String()] {
			summary.SkippedPairs++
		}
	}
	return pairs
}
