// Package imagediff compares two encoded rasters pixel by pixel and
// produces a highlighted diff raster. It performs no I/O beyond the
// file-loading convenience wrapper.
package imagediff

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// Defaults for the perceptual comparison, preserved from the deployed
// pipeline and overridable through configuration.
const (
	DefaultThreshold      = 0.1
	DefaultHighlightAlpha = 0.3
)

// maxColorDelta is the largest possible YIQ color distance between two
// 8-bit pixels; thresholds are expressed as a fraction of it.
const maxColorDelta = 35215.0

// Options tunes the comparison.
type Options struct {
	// Threshold is the per-pixel perceptual difference, in [0,1], above
	// which a pixel counts as changed.
	Threshold float64
	// HighlightAlpha is the blend factor of the highlight tint over the
	// candidate image when rendering changed pixels.
	HighlightAlpha float64
}

// Result is the verdict for one before/after pair.
type Result struct {
	Changed     bool
	DiffPixels  int
	DiffPercent float64     // round(DiffPixels / area * 100, 2), in [0,100]
	Diff        image.Image // nil when unchanged or when inputs were missing
}

var highlight = color.RGBA{R: 255, A: 255}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.HighlightAlpha == 0 {
		o.HighlightAlpha = DefaultHighlightAlpha
	}
	return o
}

// Compare diffs two encoded PNG byte sequences.
//
// Byte-identical inputs short-circuit without decoding. Otherwise both
// images are decoded and zero-padded, top-left aligned, to the element-wise
// maximum of their dimensions, so a resized component compares cleanly and
// the grown or shrunk region surfaces as changed pixels.
func Compare(before, after []byte, opts Options) (Result, error) {
	if bytes.Equal(before, after) {
		return Result{}, nil
	}
	opts = opts.withDefaults()

	baseImg, err := png.Decode(bytes.NewReader(before))
	if err != nil {
		return Result{}, fmt.Errorf("decoding baseline: %w", err)
	}
	candImg, err := png.Decode(bytes.NewReader(after))
	if err != nil {
		return Result{}, fmt.Errorf("decoding candidate: %w", err)
	}

	width := max(baseImg.Bounds().Dx(), candImg.Bounds().Dx())
	height := max(baseImg.Bounds().Dy(), candImg.Bounds().Dy())

	base := pad(baseImg, width, height)
	cand := pad(candImg, width, height)

	diff := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(diff, diff.Bounds(), cand, image.Point{}, draw.Src)

	maxDelta := maxColorDelta * opts.Threshold * opts.Threshold
	diffPixels := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if colorDelta(base.RGBAAt(x, y), cand.RGBAAt(x, y)) > maxDelta {
				diffPixels++
				diff.SetRGBA(x, y, blend(cand.RGBAAt(x, y), highlight, opts.HighlightAlpha))
			}
		}
	}

	if diffPixels == 0 {
		// Encodings differed but every pixel is within threshold.
		return Result{}, nil
	}

	return Result{
		Changed:     true,
		DiffPixels:  diffPixels,
		DiffPercent: Percent(diffPixels, width, height),
		Diff:        diff,
	}, nil
}

// CompareFiles diffs two local PNG files. A missing file on either side is
// not an error: the pair is reported changed with zero metrics and no diff
// raster, the "can't compare, assume changed" policy.
func CompareFiles(beforePath, afterPath string, opts Options) (Result, error) {
	before, err := os.ReadFile(beforePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Changed: true}, nil
		}
		return Result{}, fmt.Errorf("reading baseline: %w", err)
	}
	after, err := os.ReadFile(afterPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Changed: true}, nil
		}
		return Result{}, fmt.Errorf("reading candidate: %w", err)
	}
	return Compare(before, after, opts)
}

// Percent converts a changed-pixel count into a percentage of the raster
// area, rounded to two decimal places.
func Percent(diffPixels, width, height int) float64 {
	area := width * height
	if area == 0 {
		return 0
	}
	return math.Round(float64(diffPixels)/float64(area)*100*100) / 100
}

// pad copies img into a fresh width x height RGBA buffer anchored at the
// top-left; uncovered pixels stay transparent black.
func pad(img image.Image, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, img.Bounds().Sub(img.Bounds().Min), img, img.Bounds().Min, draw.Src)
	return out
}

// colorDelta computes the squared YIQ distance between two pixels, the
// perceptual metric used by pixelmatch. The result is in [0, maxColorDelta].
func colorDelta(a, b color.RGBA) float64 {
	if a == b {
		return 0
	}

	r1, g1, b1 := blendWhite(a)
	r2, g2, b2 := blendWhite(b)

	dy := rgb2y(r1, g1, b1) - rgb2y(r2, g2, b2)
	di := rgb2i(r1, g1, b1) - rgb2i(r2, g2, b2)
	dq := rgb2q(r1, g1, b1) - rgb2q(r2, g2, b2)

	return 0.5053*dy*dy + 0.299*di*di + 0.1957*dq*dq
}

// blendWhite composites a possibly-transparent pixel over white, so alpha
// differences participate in the perceptual distance.
func blendWhite(c color.RGBA) (r, g, b float64) {
	a := float64(c.A) / 255
	r = 255 + (float64(c.R)-255)*a
	g = 255 + (float64(c.G)-255)*a
	b = 255 + (float64(c.B)-255)*a
	return r, g, b
}

func rgb2y(r, g, b float64) float64 { return r*0.29889531 + g*0.58662247 + b*0.11448223 }
func rgb2i(r, g, b float64) float64 { return r*0.59597799 - g*0.27417610 - b*0.32180189 }
func rgb2q(r, g, b float64) float64 { return r*0.21147017 - g*0.52261711 + b*0.31114694 }

// blend mixes tint into base at the given alpha.
func blend(base, tint color.RGBA, alpha float64) color.RGBA {
	mix := func(b, t uint8) uint8 {
		return uint8(math.Round(float64(b)*(1-alpha) + float64(t)*alpha))
	}
	return color.RGBA{
		R: mix(base.R, tint.R),
		G: mix(base.G, tint.G),
		B: mix(base.B, tint.B),
		A: 255,
	}
}

// WritePNG encodes img to path, creating parent directories as needed.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
