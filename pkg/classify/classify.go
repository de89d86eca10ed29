// Package classify maps a changed-file set to a visual test scope using
// the static rule set from configuration. Classification is pure: it never
// touches the network or filesystem.
package classify

import (
	"github.com/vizdiff/vizdiff/pkg/config"
	"github.com/vizdiff/vizdiff/pkg/visual"
)

// Scope is the test scope decided for one run.
type Scope string

const (
	// ScopeSkip means nothing testable changed; no captures are issued.
	ScopeSkip Scope = "SKIP"
	// ScopeTargeted tests only the components mapped from changed files.
	ScopeTargeted Scope = "TARGETED"
	// ScopeCanary tests the fixed representative subset; chosen when a
	// broad-impact file changed.
	ScopeCanary Scope = "CANARY"
	// ScopeFull tests every discovered component.
	ScopeFull Scope = "FULL"
)

// Classification is the computed scope plus the component set to capture.
type Classification struct {
	Scope      Scope
	Components []visual.Component
}

// Options modifies classification for one run.
type Options struct {
	// ForceFull short-circuits the rules and returns FULL over the catalog.
	ForceFull bool
	// ChangedUnavailable marks the changed-file list as undeterminable
	// (e.g. history comparison failed); classification falls back to FULL.
	ChangedUnavailable bool
}

// Classifier applies a rule set to changed-file lists.
type Classifier struct {
	rules config.RulesConfig
}

// New creates a Classifier from the configured rule set.
func New(rules config.RulesConfig) *Classifier {
	return &Classifier{rules: rules}
}

// Classify decides the scope for the given changed files against the
// discovered catalog. Decision order, first match wins:
//
//  1. forced full flag, or undeterminable file list -> FULL over the catalog
//  2. every file skippable -> SKIP
//  3. any broad-impact file -> CANARY over the configured subset
//  4. union of component-mapped files -> TARGETED; empty union -> SKIP
func (c *Classifier) Classify(catalog []visual.Component, changed []string, opts Options) Classification {
	if opts.ForceFull || opts.ChangedUnavailable {
		return Classification{Scope: ScopeFull, Components: catalog}
	}

	allSkippable := true
	for _, file := range changed {
		if !matchAny(c.rules.Skippable, file) {
			allSkippable = false
			break
		}
	}
	if allSkippable {
		return Classification{Scope: ScopeSkip}
	}

	for _, file := range changed {
		if matchAny(c.rules.BroadImpact, file) {
			return Classification{Scope: ScopeCanary, Components: selectByID(catalog, c.rules.Canary)}
		}
	}

	matched := make(map[string]bool)
	for _, file := range changed {
		for _, rule := range c.rules.Components {
			if MatchPattern(rule.Pattern, file) {
				matched[rule.Component] = true
				break // each file maps to at most one component
			}
		}
	}
	if len(matched) == 0 {
		return Classification{Scope: ScopeSkip}
	}

	var components []visual.Component
	for _, comp := range catalog {
		if matched[comp.ID] {
			components = append(components, comp)
		}
	}
	return Classification{Scope: ScopeTargeted, Components: components}
}

func matchAny(patterns []string, file string) bool {
	for _, p := range patterns {
		if MatchPattern(p, file) {
			return true
		}
	}
	return false
}

// selectByID filters the catalog down to the named IDs, preserving catalog
// order so downstream capture and reporting stay stable.
func selectByID(catalog []visual.Component, ids []string) []visual.Component {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []visual.Component
	for _, comp := range catalog {
		if want[comp.ID] {
			out = append(out, comp)
		}
	}
	return out
}
