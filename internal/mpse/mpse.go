// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mpse defines the abstract multi-pattern search engine contract
// the compiler consumes and the concrete engines that satisfy it. The
// compiler core (internal/fastpattern, internal/dot, internal/portgroup,
// internal/compiler) never imports a concrete engine directly — only this
// interface — so the search engine stays swappable independent of the
// detection-tree and rule-map algorithms built on top of it.
package mpse

import (
	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/rules"
)

// PatternDescriptor carries the per-pattern flags an MPSE needs at
// AddPattern time, independent of PMD's richer field set.
type PatternDescriptor struct {
	NoCase  bool
	Negated bool
	Literal bool
}

// CreateTreeFunc is invoked by an Mpse's Compile pass once per distinct
// rule among its PMX cookies (with the first cookie seen for that rule),
// and once more with a nil cookie to finalize. It is the adapter the builder hands an MPSE so the MPSE never
// needs to know about the detection-option tree it's populating.
type CreateTreeFunc func(cookie *rules.PMX, treeSlot **dot.Tree) error

// Agent is the capability set an MPSE invokes during its own compile
// pass, expressed as an ordinary Go struct of closures rather than a
// function-pointer table.
type Agent struct {
	CreateTree   CreateTreeFunc
	AddNeg       func(cookie *rules.PMX)
	DeletePMX    func(cookie *rules.PMX)
	FreeTreeRoot func(root *dot.Tree)
	FreeNegList  func()
}

// Mpse is one compiled multi-pattern search engine instance.
type Mpse interface {
	// AddPattern registers bytes as a pattern to search for, tagged with
	// desc and cookie. Cookie is opaque to the engine; it's returned
	// verbatim on a hit at packet time (out of scope here) and consumed
	// by Compile's tree-grouping pass.
	AddPattern(bytes []byte, desc PatternDescriptor, cookie *rules.PMX) error

	PatternCount() int
	SetOpt(opt int)
	PrintInfo()

	// Compile performs the engine's own offline compilation, invoking
	// agent.CreateTree once per distinct rule among the registered PMX
	// cookies, then once more with a nil cookie to finalize.
	Compile(agent *Agent) error
}

// Api is the factory and capability-query contract for one Mpse
// implementation.
type Api interface {
	IsRegexCapable() bool
	ParallelCompiles() bool
	Create(agent *Agent) (Mpse, error)
	Delete(m Mpse)
	StartSearchEngine()
	SetupSearchEngine()
	PrintSummary()
}
