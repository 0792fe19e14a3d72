// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package portgroup implements the port-group builder and per-rule adder:
// the MPSE + DOT + no-fast-pattern-list bundle compiled for one port
// object.
package portgroup

import (
	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/errors"
	"grimm.is/fastpattern/internal/fastpattern"
	"grimm.is/fastpattern/internal/mpse"
	"grimm.is/fastpattern/internal/pmd"
	"grimm.is/fastpattern/internal/rules"
)

// MpseSlot bundles the normal and offload MPSE instances for one
// pattern-match category within a PortGroup, plus the Agent each was
// created with (needed again at Compile time) and the DOT each compile
// pass is accumulating.
type MpseSlot struct {
	Normal  mpse.Mpse
	Offload mpse.Mpse

	NormalAgent  *mpse.Agent
	OffloadAgent *mpse.Agent

	NormalTree  *dot.Tree
	OffloadTree *dot.Tree
}

// PortGroup is the MPSE + DOT + no-fast-pattern-list bundle compiled for
// one port object.
type PortGroup struct {
	MpseGrp [pmd.PMTypeMax]MpseSlot

	NfpHead []*rules.Rule
	NfpTree *dot.Tree

	RuleCount int
}

// Manager lazily creates the normal/offload Mpse instance for a
// (PortGroup, pm_type) slot, wiring each one's Agent so the MPSE's own
// Compile pass drives the DOT builder through CreateTree. One Manager is
// shared across every PortGroup built from the same configuration
// snapshot, since mpse_count/offload_mpse_count are counted
// snapshot-wide, to catch a compile that silently skipped a slot.
type Manager struct {
	NormalApi  mpse.Api
	OffloadApi mpse.Api // nil when no offload engine is configured

	HashCons *dot.HashCons

	MpseCount        int
	OffloadMpseCount int
}

// NewManager creates a Manager. offloadApi may be nil.
func NewManager(normalApi, offloadApi mpse.Api, hc *dot.HashCons) *Manager {
	return &Manager{NormalApi: normalApi, OffloadApi: offloadApi, HashCons: hc}
}

// createTreeCallback builds the CreateTreeFunc every Mpse's Compile pass
// drives: a non-nil cookie merges that rule's residual options into the
// engine-owned tree slot via the DOT builder's prefix-sharing insert; a
// nil cookie finalizes the accumulated tree and hands it to onFinal so
// the caller can stash it on the MpseSlot (the engine's local tree-slot
// variable doesn't outlive its Compile call). fpOnlyOf selects which of
// the rule's normal/offload fast-pattern-only option to suppress from the
// residual walk.
func createTreeCallback(hc *dot.HashCons, fpOnlyOf func(*rules.Rule) *rules.DetectionOption, onFinal func(*dot.Tree)) mpse.CreateTreeFunc {
	return func(cookie *rules.PMX, treeSlot **dot.Tree) error {
		if cookie == nil {
			if *treeSlot != nil {
				dot.Finalize(*treeSlot, hc)
			}
			if onFinal != nil {
				onFinal(*treeSlot)
			}
			return nil
		}

		if *treeSlot == nil {
			*treeSlot = dot.NewTree()
		}

		var fpOnly map[*rules.DetectionOption]bool
		if opt := fpOnlyOf(cookie.Rule); opt != nil {
			fpOnly = map[*rules.DetectionOption]bool{opt: true}
		}
		(*treeSlot).Insert(cookie.Rule, fpOnly)
		return nil
	}
}

func (m *Manager) ensureNormal(slot *MpseSlot) (mpse.Mpse, error) {
	if slot.Normal != nil {
		return slot.Normal, nil
	}
	agent := &mpse.Agent{
		CreateTree: createTreeCallback(m.HashCons, func(r *rules.Rule) *rules.DetectionOption { return r.NormalFPOnly }, func(t *dot.Tree) { slot.NormalTree = t }),
	}
	created, err := m.NormalApi.Create(agent)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to create normal mpse")
	}
	slot.Normal = created
	slot.NormalAgent = agent
	m.MpseCount++
	return created, nil
}

func (m *Manager) ensureOffload(slot *MpseSlot) (mpse.Mpse, error) {
	if m.OffloadApi == nil {
		return nil, nil
	}
	if slot.Offload != nil {
		return slot.Offload, nil
	}
	agent := &mpse.Agent{
		CreateTree: createTreeCallback(m.HashCons, func(r *rules.Rule) *rules.DetectionOption { return r.OffloadFPOnly }, func(t *dot.Tree) { slot.OffloadTree = t }),
	}
	created, err := m.OffloadApi.Create(agent)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to create offload mpse")
	}
	slot.Offload = created
	slot.OffloadAgent = agent
	m.OffloadMpseCount++
	return created, nil
}

// CompileSlot invokes Compile on every Mpse still present in slot.
// Callers (the top-level compiler) are responsible for summing the
// expected mpse_count + offload_mpse_count against how many compiles
// actually ran.
func (m *Manager) CompileSlot(slot *MpseSlot) error {
	if slot.Normal != nil {
		if err := slot.Normal.Compile(slot.NormalAgent); err != nil {
			return errors.Wrap(err, errors.KindCompile, "normal mpse compile failed")
		}
	}
	if slot.Offload != nil {
		if err := slot.Offload.Compile(slot.OffloadAgent); err != nil {
			return errors.Wrap(err, errors.KindCompile, "offload mpse compile failed")
		}
	}
	return nil
}

// Adder is the per-rule adder against one PortGroup.
type Adder struct {
	Manager        *Manager
	FastPattern    *fastpattern.Config
	IsServiceGroup bool
}

// NewAdder creates an Adder sharing mgr and fpConfig across every rule it
// processes.
func NewAdder(mgr *Manager, fpConfig *fastpattern.Config, isServiceGroup bool) *Adder {
	return &Adder{Manager: mgr, FastPattern: fpConfig, IsServiceGroup: isServiceGroup}
}

// AddRule selects the rule's fast pattern(s) for the normal MPSE and (if
// configured) the offload MPSE, adds them, and falls back to the group's
// no-fast-pattern list as required.
//
// A rule whose selection excluded it from an engine (no content
// suitable, or none at all) and a rule that simply never got added to
// either engine both need the same fallback, so addedAny == false
// unconditionally appends to NfpHead regardless of which case produced
// it — a rule can't be both "covered by fast-pattern matching" and
// missing from the no-fast-pattern list.
func (a *Adder) AddRule(group *PortGroup, rule *rules.Rule) error {
	normalResult := fastpattern.Select(rule, a.IsServiceGroup, !a.Manager.NormalApi.IsRegexCapable())

	var offloadResult fastpattern.SelectResult
	hasOffload := a.Manager.OffloadApi != nil
	if hasOffload {
		offloadResult = fastpattern.Select(rule, a.IsServiceGroup, !a.Manager.OffloadApi.IsRegexCapable())
	}

	addedAny := false
	mainNegated := false

	if !normalResult.Exclude && len(normalResult.Patterns) > 0 {
		if err := a.addToEngine(group, rule, normalResult, true); err != nil {
			return err
		}
		addedAny = true
		if normalResult.Patterns[len(normalResult.Patterns)-1].PMD.IsNegated {
			mainNegated = true
		}
	}

	if hasOffload && !offloadResult.Exclude && len(offloadResult.Patterns) > 0 {
		if err := a.addToEngine(group, rule, offloadResult, false); err != nil {
			return err
		}
		addedAny = true
		if offloadResult.Patterns[len(offloadResult.Patterns)-1].PMD.IsNegated {
			mainNegated = true
		}
	}

	if addedAny {
		if mainNegated {
			group.NfpHead = append(group.NfpHead, rule)
		}
		return nil
	}

	group.NfpHead = append(group.NfpHead, rule)
	return nil
}

// addToEngine adds result's patterns to the group's normal or offload
// engine for the main pattern's pm_type, applying the pattern-final
// transform to the main pattern and inserting alternates verbatim.
func (a *Adder) addToEngine(group *PortGroup, rule *rules.Rule, result fastpattern.SelectResult, normal bool) error {
	main := result.Patterns[len(result.Patterns)-1]
	pmType := main.PMD.PMType
	slot := &group.MpseGrp[pmType]

	var engine mpse.Mpse
	var err error
	if normal {
		engine, err = a.Manager.ensureNormal(slot)
	} else {
		engine, err = a.Manager.ensureOffload(slot)
	}
	if err != nil {
		return err
	}

	for _, alt := range result.Patterns[:len(result.Patterns)-1] {
		desc := mpse.PatternDescriptor{NoCase: alt.PMD.IsNoCase, Negated: alt.PMD.IsNegated, Literal: alt.PMD.IsLiteral}
		if err := engine.AddPattern(alt.PMD.PatternBuf, desc, &rules.PMX{Rule: rule, PMD: alt.PMD}); err != nil {
			return errors.Wrap(err, errors.KindUnavailable, "failed to add alternate pattern")
		}
	}

	bytes, length := fastpattern.FinalPattern(main.PMD, a.FastPattern)
	desc := mpse.PatternDescriptor{NoCase: main.PMD.IsNoCase, Negated: main.PMD.IsNegated, Literal: main.PMD.IsLiteral}
	if err := engine.AddPattern(bytes, desc, &rules.PMX{Rule: rule, PMD: main.PMD}); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to add main pattern")
	}

	if length > rule.LongestPatternLen {
		rule.LongestPatternLen = length
	}

	if fastpattern.IsFastPatternOnly(rule, main) {
		if normal {
			rule.NormalFPOnly = main
		} else {
			rule.OffloadFPOnly = main
		}
	}

	return nil
}

// Builder builds, for a port object's rule list, one PortGroup, pruning
// empty MPSE slots and dropping the group entirely if it ends up with
// zero rules.
type Builder struct {
	Manager *Manager
	Adder   *Adder
}

// NewBuilder creates a Builder.
func NewBuilder(mgr *Manager, adder *Adder) *Builder {
	return &Builder{Manager: mgr, Adder: adder}
}

// Build assembles one port object's rule list into a PortGroup. It
// returns (nil, nil) when the group ends up with zero rules.
func (b *Builder) Build(ruleList []*rules.Rule) (*PortGroup, error) {
	group := &PortGroup{}

	for _, rule := range ruleList {
		if rule.Builtin || !rule.EnabledAnywhere() {
			continue
		}
		if err := b.Adder.AddRule(group, rule); err != nil {
			return nil, err
		}
		group.RuleCount++
	}

	for i := range group.MpseGrp {
		slot := &group.MpseGrp[i]
		if slot.Normal != nil && slot.Normal.PatternCount() == 0 {
			slot.Normal = nil
		}
		if slot.Offload != nil && slot.Offload.PatternCount() == 0 {
			slot.Offload = nil
		}
	}

	if len(group.NfpHead) > 0 {
		tree := dot.NewTree()
		for _, rule := range group.NfpHead {
			tree.Insert(rule, nil)
		}
		dot.Finalize(tree, b.Manager.HashCons)
		group.NfpTree = tree
	}

	if group.RuleCount == 0 {
		return nil, nil
	}
	return group, nil
}
