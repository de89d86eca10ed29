// Package visual defines the core data model for the visual-regression
// pipeline. These types are the shared vocabulary across all modules.
package visual

// Component represents one documented UI surface discovered on the live
// site. Components are discovered fresh each run and never persisted.
type Component struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// Screenshot is one captured raster for a single surface variant.
// RemoteURL is empty until publication succeeds; a screenshot without a
// remote URL is still usable locally but is excluded from comparisons that
// need a linkable before/after pair.
type Screenshot struct {
	ID        ScreenshotID `json:"id"`
	Name      string       `json:"name"`
	LocalPath string       `json:"local_path"`
	RemoteURL string       `json:"remote_url,omitempty"`
}

// Comparison is the outcome of diffing one before/after screenshot pair.
// A Comparison exists only for IDs present and published on both sides.
type Comparison struct {
	ID          ScreenshotID `json:"id"`
	Name        string       `json:"name"`
	BeforeURL   string       `json:"before_url"`
	AfterURL    string       `json:"after_url"`
	DiffURL     string       `json:"diff_url,omitempty"` // empty when unchanged or diff upload failed
	Changed     bool         `json:"changed"`
	DiffPixels  int          `json:"diff_pixels"`
	DiffPercent float64      `json:"diff_percent"` // derived from DiffPixels and raster area
}
