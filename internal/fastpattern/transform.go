// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package fastpattern

import (
	"sync"

	"grimm.is/fastpattern/internal/pmd"
)

// Config carries the build-time fast-pattern tuning knobs and the
// truncation counter the transform maintains.
type Config struct {
	// MaxPatternLen caps the number of bytes FinalPattern inserts into an
	// MPSE for a literal, non-negated pattern. Zero means unlimited.
	MaxPatternLen int

	mu                   sync.Mutex
	numPatternsTruncated int
}

// SetMax caps bytes at Config.MaxPatternLen, incrementing the truncation
// counter when the cap bites.
func (c *Config) SetMax(bytes []byte) []byte {
	if c.MaxPatternLen <= 0 || len(bytes) <= c.MaxPatternLen {
		return bytes
	}
	c.mu.Lock()
	c.numPatternsTruncated++
	c.mu.Unlock()
	return bytes[:c.MaxPatternLen]
}

// NumPatternsTruncated returns how many patterns have been capped so far.
func (c *Config) NumPatternsTruncated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.numPatternsTruncated
}

// FinalPattern computes the exact bytes inserted into the MPSE for pm.
// Negated and non-literal patterns are returned whole, neither sliced nor
// capped by SetMax.
//
// For the fp_length==0 case we use pattern_size - fp_offset rather than
// pattern_size - fp_length (which reduces to pattern_size, a no-op slice
// bound that ignores fp_offset entirely). Taking the rest of the buffer
// from fp_offset to the end is the only reading consistent with fp_offset
// being honored at all when no explicit length was requested.
func FinalPattern(pm *pmd.PatternMatchData, cfg *Config) (bytes []byte, length int) {
	if pm.IsNegated || !pm.IsLiteral {
		return pm.PatternBuf, len(pm.PatternBuf)
	}

	if pm.FPOffset == 0 && pm.FPLength == 0 {
		out := cfg.SetMax(pm.PatternBuf)
		return out, len(out)
	}

	effectiveLength := pm.FPLength
	if effectiveLength <= 0 {
		effectiveLength = pm.PatternSize - pm.FPOffset
	}

	end := pm.FPOffset + effectiveLength
	if end > len(pm.PatternBuf) {
		end = len(pm.PatternBuf)
	}
	if pm.FPOffset > end {
		return nil, 0
	}

	slice := pm.PatternBuf[pm.FPOffset:end]
	out := cfg.SetMax(slice)
	return out, len(out)
}

