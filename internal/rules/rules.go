// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rules is the rule (OTN) and detection-option object model the
// compiler consumes. Rule parsing itself lives outside this package; it
// only defines the shape the parser hands off and the compile-time
// metadata the builder mutates.
package rules

import (
	"sync/atomic"

	"grimm.is/fastpattern/internal/pmd"
)

// RuleOptionKind tags a detection option.
type RuleOptionKind int

const (
	OptUnknown RuleOptionKind = iota
	OptContent
	OptPcreRegex
	OptByteTest
	OptFlowbits
	OptLeafNode
)

func (k RuleOptionKind) String() string {
	switch k {
	case OptContent:
		return "content"
	case OptPcreRegex:
		return "pcre"
	case OptByteTest:
		return "byte_test"
	case OptFlowbits:
		return "flowbits"
	case OptLeafNode:
		return "leaf"
	default:
		return "unknown"
	}
}

// OptionID is a stable, interned identity for a detection option.
//
// The source this is distilled from used raw pointer equality to decide
// whether two rules share "the same" option for prefix-sharing purposes.
// That only works because the parser keeps shared sub-expressions as a
// single allocation; a fresh implementation can't rely on allocator
// address stability, so every option gets an OptionID assigned once, at
// construction, from a monotonic counter. Two options compare equal for
// sharing iff their OptionID matches — callers that want two rules to
// share a DOT prefix must construct (or intern) the shared option once
// and reuse the same *DetectionOption across both rules.
type OptionID uint64

var nextOptionID atomic.Uint64

// NewOptionID allocates the next interned option identity.
func NewOptionID() OptionID {
	return OptionID(nextOptionID.Add(1))
}

// EvaluateFunc is the packet-time evaluation callback for an option. The
// runtime that calls it is out of scope here; the compiler only stores and
// threads it through the DOT.
type EvaluateFunc func(ctx any) bool

// DetectionOption is one node in a rule's ordered option list.
type DetectionOption struct {
	ID         OptionID
	Kind       RuleOptionKind
	IsRelative bool
	Evaluate   EvaluateFunc

	// PMD is populated only when Kind == OptContent.
	PMD *pmd.PatternMatchData
}

// NewContentOption interns a fresh content option around pm.
func NewContentOption(pm *pmd.PatternMatchData, relative bool) *DetectionOption {
	return &DetectionOption{
		ID:         NewOptionID(),
		Kind:       OptContent,
		IsRelative: relative,
		PMD:        pm,
	}
}

// NewOption interns a fresh non-content option.
func NewOption(kind RuleOptionKind, relative bool, eval EvaluateFunc) *DetectionOption {
	return &DetectionOption{
		ID:         NewOptionID(),
		Kind:       kind,
		IsRelative: relative,
		Evaluate:   eval,
	}
}

// ID identifies a rule by its globally unique (gid, sid, rev) triple.
type ID struct {
	GID uint32
	SID uint32
	Rev uint32
}

// SameSignature reports whether a and b name the same rule: an exact
// match on all three of (gid, sid, rev).
func (a ID) SameSignature(b ID) bool {
	return a.GID == b.GID && a.SID == b.SID && a.Rev == b.Rev
}

// Rule is an immutable-by-convention record describing one detection
// signature, plus the mutable compile-time bookkeeping the builder fills
// in as it processes the rule.
type Rule struct {
	ID         ID
	ProtocolID uint8
	Builtin    bool
	Options    []*DetectionOption

	// PolicyEnabled reports, per configured policy, whether this rule is
	// enabled. A rule with no entries set is disabled everywhere.
	PolicyEnabled []bool

	// Compile-time metadata, mutated only by the compiler.
	LongestPatternLen int
	NormalFPOnly      *DetectionOption
	OffloadFPOnly     *DetectionOption
	WarnedFP          bool
}

// EnabledAnywhere reports whether the rule is enabled in at least one
// configured policy.
func (r *Rule) EnabledAnywhere() bool {
	for _, enabled := range r.PolicyEnabled {
		if enabled {
			return true
		}
	}
	return false
}

// ContentOptions returns the rule's Content options in original order.
func (r *Rule) ContentOptions() []*DetectionOption {
	var out []*DetectionOption
	for _, opt := range r.Options {
		if opt.Kind == OptContent {
			out = append(out, opt)
		}
	}
	return out
}

// PMX is the cookie attached to each pattern inserted into an MPSE. When the
// MPSE fires on that pattern it returns the PMX, tying the hit back to the
// rule and the specific PMD that matched.
type PMX struct {
	Rule *Rule
	PMD  *pmd.PatternMatchData
}
