// Package config handles loading and managing vizdiff configuration.
//
// Configuration has two halves: a YAML file describing the deployment's
// classification rules and capture options, and run-scoped values taken
// from the environment (one CI run = one Run value). Both are loaded once
// in main and passed into each component explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for vizdiff.
type Config struct {
	Rules     RulesConfig    `yaml:"rules"`
	Capture   CaptureConfig  `yaml:"capture"`
	Diff      DiffConfig     `yaml:"diff"`
	Artifacts ArtifactConfig `yaml:"artifacts"`
}

// RulesConfig is the static rule set mapping changed paths to test scope.
type RulesConfig struct {
	// Skippable lists glob patterns for paths with no visual effect.
	Skippable []string `yaml:"skippable"`
	// BroadImpact lists glob patterns for paths affecting shared visual
	// primitives; any match forces a canary run.
	BroadImpact []string `yaml:"broad_impact"`
	// Components maps glob patterns to the single component ID they affect.
	Components []ComponentRule `yaml:"components"`
	// Canary names the representative component subset used for canary runs.
	Canary []string `yaml:"canary"`
}

// ComponentRule binds one path pattern to one component ID.
type ComponentRule struct {
	Pattern   string `yaml:"pattern"`
	Component string `yaml:"component"`
}

// CaptureConfig controls screenshot capture behavior.
type CaptureConfig struct {
	ViewportWidth   int  `yaml:"viewport_width"`
	ViewportHeight  int  `yaml:"viewport_height"`
	HideSidebar     bool `yaml:"hide_sidebar"`
	CaptureSections bool `yaml:"capture_sections"`
	// Actions maps a component ID to the interaction action captured as a
	// second "-open" variant (e.g. "click .dropdown-trigger").
	Actions map[string]string `yaml:"actions"`
	// OutputDir is the local root for before/, after/ and diff/ rasters.
	OutputDir string `yaml:"output_dir"`
}

// DiffConfig controls the pixel diff engine.
type DiffConfig struct {
	// Threshold is the perceptual per-pixel difference above which a pixel
	// counts as changed, in [0,1].
	Threshold float64 `yaml:"threshold"`
	// HighlightAlpha is the blend factor of the highlight tint over the
	// candidate image in the diff raster.
	HighlightAlpha float64 `yaml:"highlight_alpha"`
}

// ArtifactConfig selects and configures the durable artifact store.
type ArtifactConfig struct {
	// Backend is one of "github", "s3", "gcs", "local".
	Backend string `yaml:"backend"`

	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"`
	GCSBucket  string `yaml:"gcs_bucket"`
	LocalDir   string `yaml:"local_dir"`
}

// Run holds the run-scoped values a CI invocation supplies through the
// environment.
type Run struct {
	WorkerURL     string // screenshot rendering worker base URL
	WorkerAPIKey  string // optional X-API-Key for the worker
	GitHubToken   string // bearer token for the source-hosting API
	Repository    string // "owner/repo"
	PRNumber      int    // change request number
	RunID         string // unique per run; generated when absent
	BaseRef       string // main-line ref artifacts branch from
	BeforeBaseURL string // deployed site for the "before" side
	AfterBaseURL  string // deployed site for the "after" side
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			Skippable: []string{"*.md", "docs/**", ".github/**"},
		},
		Capture: CaptureConfig{
			ViewportWidth:   1440,
			ViewportHeight:  900,
			HideSidebar:     true,
			CaptureSections: true,
			OutputDir:       ".vizdiff",
		},
		Diff: DiffConfig{
			Threshold:      0.1,
			HighlightAlpha: 0.3,
		},
		Artifacts: ArtifactConfig{
			Backend: "github",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// FindConfigFile looks for .vizdiff/config.yaml in the given directory and
// its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".vizdiff", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// RunFromEnv builds the run-scoped configuration from the environment.
// RUN_ID falls back to a fresh UUID so local invocations still get a
// distinct artifact branch.
func RunFromEnv() (Run, error) {
	run := Run{
		WorkerURL:     os.Getenv("SCREENSHOT_WORKER_URL"),
		WorkerAPIKey:  os.Getenv("SCREENSHOT_WORKER_API_KEY"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		Repository:    os.Getenv("GITHUB_REPOSITORY"),
		RunID:         envOrDefault("RUN_ID", uuid.NewString()[:8]),
		BaseRef:       envOrDefault("BASE_REF", "main"),
		BeforeBaseURL: os.Getenv("BEFORE_BASE_URL"),
		AfterBaseURL:  os.Getenv("AFTER_BASE_URL"),
	}

	if pr := os.Getenv("PR_NUMBER"); pr != "" {
		n, err := strconv.Atoi(pr)
		if err != nil {
			return Run{}, fmt.Errorf("parsing PR_NUMBER %q: %w", pr, err)
		}
		run.PRNumber = n
	}

	return run, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
