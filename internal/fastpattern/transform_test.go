// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package fastpattern

import (
	"testing"

	"grimm.is/fastpattern/internal/pmd"
)

// TestFinalPatternNegatedVerbatim checks that a negated content is
// inserted into the MPSE verbatim, with no slicing or truncation.
func TestFinalPatternNegatedVerbatim(t *testing.T) {
	pm := pmd.NewPatternMatchData([]byte("XYZ"), pmd.PMTypePkt)
	pm.IsNegated = true
	pm.FPOffset = 1
	pm.FPLength = 1

	cfg := &Config{}
	bytes, length := FinalPattern(pm, cfg)
	if string(bytes) != "XYZ" || length != 3 {
		t.Fatalf("expected negated content verbatim 'XYZ', got %q (%d)", bytes, length)
	}
}

// TestFinalPatternNonLiteralVerbatim checks that non-literal (regex)
// content is never sliced.
func TestFinalPatternNonLiteralVerbatim(t *testing.T) {
	pm := pmd.NewPatternMatchData([]byte("a.*b"), pmd.PMTypePkt)
	pm.IsLiteral = false
	pm.FPOffset = 1
	pm.FPLength = 2

	cfg := &Config{}
	bytes, _ := FinalPattern(pm, cfg)
	if string(bytes) != "a.*b" {
		t.Fatalf("expected non-literal content verbatim, got %q", bytes)
	}
}

// TestFinalPatternExplicitSlice covers the normal slicing path with both
// fp_offset and fp_length set.
func TestFinalPatternExplicitSlice(t *testing.T) {
	pm := pmd.NewPatternMatchData([]byte("0123456789"), pmd.PMTypePkt)
	pm.FPOffset = 2
	pm.FPLength = 3

	cfg := &Config{}
	bytes, length := FinalPattern(pm, cfg)
	if string(bytes) != "234" || length != 3 {
		t.Fatalf("expected slice '234', got %q (%d)", bytes, length)
	}
}

// TestFinalPatternZeroLengthUsesRestOfBuffer checks that fp_length == 0
// with a nonzero fp_offset takes the rest of the buffer from fp_offset
// onward (pattern_size - fp_offset), not a pattern_size no-op.
func TestFinalPatternZeroLengthUsesRestOfBuffer(t *testing.T) {
	pm := pmd.NewPatternMatchData([]byte("0123456789"), pmd.PMTypePkt)
	pm.FPOffset = 7
	pm.FPLength = 0

	cfg := &Config{}
	bytes, length := FinalPattern(pm, cfg)
	if string(bytes) != "789" || length != 3 {
		t.Fatalf("expected the rest of the buffer from offset 7, got %q (%d)", bytes, length)
	}
}

// TestFinalPatternNoSliceRequested checks the fp_offset == 0 && fp_length
// == 0 case: the whole buffer is used, unsliced.
func TestFinalPatternNoSliceRequested(t *testing.T) {
	pm := pmd.NewPatternMatchData([]byte("hello"), pmd.PMTypePkt)

	cfg := &Config{}
	bytes, length := FinalPattern(pm, cfg)
	if string(bytes) != "hello" || length != 5 {
		t.Fatalf("expected the full buffer 'hello', got %q (%d)", bytes, length)
	}
}

// TestFinalPatternTruncation checks that set_max caps the result and
// increments the truncation counter.
func TestFinalPatternTruncation(t *testing.T) {
	pm := pmd.NewPatternMatchData([]byte("0123456789"), pmd.PMTypePkt)

	cfg := &Config{MaxPatternLen: 4}
	bytes, length := FinalPattern(pm, cfg)
	if string(bytes) != "0123" || length != 4 {
		t.Fatalf("expected truncation to 4 bytes, got %q (%d)", bytes, length)
	}
	if cfg.NumPatternsTruncated() != 1 {
		t.Fatalf("expected the truncation counter to be incremented once, got %d", cfg.NumPatternsTruncated())
	}
}
