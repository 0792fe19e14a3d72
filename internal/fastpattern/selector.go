// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package fastpattern implements the fast-pattern selector and the
// pattern-final transform: choosing which content option becomes a
// rule's MPSE entry point, and computing the exact bytes inserted for it.
package fastpattern

import (
	"grimm.is/fastpattern/internal/pmd"
	"grimm.is/fastpattern/internal/rules"
)

// SelectResult is the outcome of selecting a rule's fast pattern(s) for one
// MPSE. Patterns holds every content option that should be inserted into
// that MPSE as an entry point for the rule; the last element is the main
// fast pattern, prior elements are alternates. Exclude is set when the rule
// must not contribute to fast-pattern matching at all.
type SelectResult struct {
	Patterns []*rules.DetectionOption
	Exclude  bool
}

// Select applies the fast-pattern selection policy for one rule against
// one MPSE, described by onlyLiteral (true when the MPSE cannot search
// regex). isServiceGroup distinguishes service-group compilation from
// port-group compilation; it is accepted for interface symmetry and does
// not change behavior. Candidates are not filtered by pm_type, here or by
// the per-rule adder in internal/portgroup.
func Select(rule *rules.Rule, isServiceGroup bool, onlyLiteral bool) SelectResult {
	_ = isServiceGroup

	contents := rule.ContentOptions()
	if len(contents) == 0 {
		return SelectResult{Exclude: true}
	}

	// Rule 1: an explicit fast_pattern winner, first-listed if more than
	// one is (incorrectly) marked.
	var explicit *rules.DetectionOption
	for _, opt := range contents {
		if opt.PMD.IsFastPattern {
			explicit = opt
			break
		}
	}
	if explicit != nil {
		return SelectResult{Patterns: buildPatternList(contents, explicit)}
	}

	// Rule 2: longest literal content compatible with onlyLiteral wins,
	// first-listed breaking ties on equal length.
	var longest *rules.DetectionOption
	for _, opt := range contents {
		if onlyLiteral && !opt.PMD.IsLiteral {
			continue
		}
		if longest == nil || opt.PMD.PatternSize > longest.PMD.PatternSize {
			longest = opt
		}
	}
	if longest != nil {
		return SelectResult{Patterns: buildPatternList(contents, longest)}
	}

	// Rule 3: nothing suitable under onlyLiteral — exclude from this MPSE.
	return SelectResult{Exclude: true}
}

// buildPatternList returns contents with main moved to the last position,
// preserving the relative order of the remaining alternates.
func buildPatternList(contents []*rules.DetectionOption, main *rules.DetectionOption) []*rules.DetectionOption {
	out := make([]*rules.DetectionOption, 0, len(contents))
	for _, opt := range contents {
		if opt != main {
			out = append(out, opt)
		}
	}
	return append(out, main)
}

// IsFastPatternOnly reports whether opt is the sole content option chosen
// as the rule's fast pattern and therefore should be suppressed during DOT
// evaluation (it contributes nothing the MPSE hit didn't already confirm).
func IsFastPatternOnly(rule *rules.Rule, opt *rules.DetectionOption) bool {
	contents := rule.ContentOptions()
	return len(contents) == 1 && contents[0] == opt && opt.PMD != nil
}

// MpseFlagsCompatible reports whether a PMD's mpse_flags share at least one
// bit with wantFlags (any PMD is compatible when wantFlags is zero). It
// does not look at pm_type, and nothing in the build path calls it.
func MpseFlagsCompatible(pm *pmd.PatternMatchData, wantFlags uint32) bool {
	if wantFlags == 0 {
		return true
	}
	return pm.MpseFlags&wantFlags != 0
}
