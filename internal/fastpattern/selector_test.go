// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package fastpattern

import (
	"testing"

	"grimm.is/fastpattern/internal/pmd"
	"grimm.is/fastpattern/internal/rules"
)

func contentOption(buf string, fastPattern, literal bool) *rules.DetectionOption {
	pm := pmd.NewPatternMatchData([]byte(buf), pmd.PMTypePkt)
	pm.IsFastPattern = fastPattern
	pm.IsLiteral = literal
	return rules.NewContentOption(pm, false)
}

// TestSelectExplicitFastPatternWins checks that an explicit fast_pattern
// option wins over a longer, unmarked content.
func TestSelectExplicitFastPatternWins(t *testing.T) {
	ab := contentOption("ab", false, true)
	abcdef := contentOption("abcdef", true, true)

	rule := &rules.Rule{Options: []*rules.DetectionOption{ab, abcdef}}

	result := Select(rule, false, false)
	if result.Exclude {
		t.Fatalf("expected a selection, got exclude")
	}
	if len(result.Patterns) != 2 {
		t.Fatalf("expected main + 1 alternate, got %d", len(result.Patterns))
	}
	main := result.Patterns[len(result.Patterns)-1]
	if main != abcdef {
		t.Fatalf("expected the explicit fast_pattern option to be the main pattern")
	}
	if result.Patterns[0] != ab {
		t.Fatalf("expected the non-winning content to appear as an alternate")
	}
}

// TestSelectLongestLiteralWins checks that the longest literal content
// wins when no content is explicitly marked fast_pattern.
func TestSelectLongestLiteralWins(t *testing.T) {
	short := contentOption("ab", false, true)
	long := contentOption("abcdef", false, true)

	rule := &rules.Rule{Options: []*rules.DetectionOption{short, long}}

	result := Select(rule, false, false)
	main := result.Patterns[len(result.Patterns)-1]
	if main != long {
		t.Fatalf("expected the longest literal content to win")
	}
}

// TestSelectOnlyLiteralExcludesRegex checks that when every candidate is
// regex (non-literal) and the MPSE is literal-only, the rule is excluded.
func TestSelectOnlyLiteralExcludesRegex(t *testing.T) {
	regexOnly := contentOption("a.*b", false, false)
	rule := &rules.Rule{Options: []*rules.DetectionOption{regexOnly}}

	result := Select(rule, false, true)
	if !result.Exclude {
		t.Fatalf("expected exclude when the only candidate is non-literal under onlyLiteral")
	}
}

// TestSelectNoContentExcludes covers the degenerate rule with no content
// options at all.
func TestSelectNoContentExcludes(t *testing.T) {
	opt := rules.NewOption(rules.OptByteTest, false, nil)
	rule := &rules.Rule{Options: []*rules.DetectionOption{opt}}

	result := Select(rule, false, false)
	if !result.Exclude {
		t.Fatalf("expected exclude for a rule with zero content options")
	}
}

// TestIsFastPatternOnly checks the single-content-option suppression rule
// consumed by the DOT builder's residual filter.
func TestIsFastPatternOnly(t *testing.T) {
	only := contentOption("solo", false, true)
	rule := &rules.Rule{Options: []*rules.DetectionOption{only}}

	if !IsFastPatternOnly(rule, only) {
		t.Fatalf("expected the sole content option to be fast-pattern-only")
	}

	other := contentOption("another", false, true)
	rule2 := &rules.Rule{Options: []*rules.DetectionOption{only, other}}
	if IsFastPatternOnly(rule2, only) {
		t.Fatalf("expected fast-pattern-only to be false when more than one content option exists")
	}
}
