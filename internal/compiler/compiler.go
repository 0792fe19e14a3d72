// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package compiler wires the fast-pattern selector, DOT builder,
// port-group/service-group builders, and rule-map assembly into one
// build(config) → Result pass, including an optional parallel MPSE
// compilation stage and its fatal compile-count-mismatch check.
package compiler

import (
	"sync"

	"github.com/google/uuid"

	"grimm.is/fastpattern/internal/config"
	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/errors"
	"grimm.is/fastpattern/internal/fastpattern"
	"grimm.is/fastpattern/internal/logging"
	"grimm.is/fastpattern/internal/mpse"
	"grimm.is/fastpattern/internal/portgroup"
	"grimm.is/fastpattern/internal/rulemap"
	"grimm.is/fastpattern/internal/rules"
	"grimm.is/fastpattern/internal/servicegroup"
)

// RuleGroup is one port object's rule list plus the concrete ports it
// covers (empty means "any port", folded into the generic slot below).
type RuleGroup struct {
	Ports []int
	Rules []*rules.Rule
}

// PortObjectSet is the per-protocol input a Build call consumes: the
// external PortTable/PortObject collaborator already reduced to
// (ports, rules) groups, split by direction plus an any-port bucket.
type PortObjectSet struct {
	Protocol rulemap.Protocol
	Src      []RuleGroup
	Dst      []RuleGroup
	Any      []RuleGroup
}

// Result is what Build returns: the assembled rule maps, the service
// group map, and summary counters for the compile's observable output.
// SnapshotID identifies this particular compiled configuration snapshot
// so an external reload/hot-swap path (out of scope here) can log which
// snapshot is live without re-deriving an identity from its contents.
type Result struct {
	SnapshotID   string
	RuleMaps     *rulemap.RuleMaps
	ServiceMap   *servicegroup.Map
	HashCons     *dot.HashCons
	MpseManager  *portgroup.Manager
	TruncatedFP  int
	CompiledMpse int
}

// Build compiles a rule corpus into rule maps and a service map.
// normalApi is required; offloadApi may be nil. portSets and serviceSets
// are the external rule-corpus-derived inputs already grouped by port
// object / service.
func Build(
	cfg config.CompilerConfig,
	normalApi, offloadApi mpse.Api,
	portSets []PortObjectSet,
	serviceSets []servicegroup.ServiceRuleSet,
	logger *logging.Logger,
) (*Result, error) {
	hashCons := dot.NewHashCons()
	mgr := portgroup.NewManager(normalApi, offloadApi, hashCons)
	fpConfig := &fastpattern.Config{MaxPatternLen: cfg.MaxPatternLen}

	portAdder := portgroup.NewAdder(mgr, fpConfig, false)
	portBuilder := portgroup.NewBuilder(mgr, portAdder)

	serviceAdder := portgroup.NewAdder(mgr, fpConfig, true)
	serviceBuilder := servicegroup.NewBuilder(portgroup.NewBuilder(mgr, serviceAdder))

	ruleMaps := &rulemap.RuleMaps{}
	rulemapBuilder := rulemap.NewBuilder()

	for _, set := range portSets {
		srcObjects, err := buildPortObjects(portBuilder, set.Src)
		if err != nil {
			return nil, err
		}
		dstObjects, err := buildPortObjects(portBuilder, set.Dst)
		if err != nil {
			return nil, err
		}

		var generic *portgroup.PortGroup
		if len(set.Any) > 0 {
			var anyRules []*rules.Rule
			for _, g := range set.Any {
				anyRules = append(anyRules, g.Rules...)
			}
			grp, err := portBuilder.Build(anyRules)
			if err != nil {
				return nil, err
			}
			generic = grp

			if !cfg.SplitAnyAny && grp != nil {
				srcObjects = append(srcObjects, rulemap.PortObject{Group: grp})
				dstObjects = append(dstObjects, rulemap.PortObject{Group: grp})
			}
		}

		ruleMaps.Set(set.Protocol, rulemapBuilder.Build(srcObjects, dstObjects, generic))
	}

	serviceMap, err := serviceBuilder.Build(serviceSets)
	if err != nil {
		return nil, err
	}

	compiled, err := compileEngines(mgr, cfg, allSlots(ruleMaps, serviceMap))
	if err != nil {
		return nil, err
	}

	expected := mgr.MpseCount + mgr.OffloadMpseCount
	if compiled != expected {
		return nil, errors.Errorf(errors.KindCompile, "compiled mpse count mismatch: expected %d, compiled %d", expected, compiled)
	}

	if logger != nil {
		logger.Info("fast-pattern compile complete",
			"mpse_count", mgr.MpseCount,
			"offload_mpse_count", mgr.OffloadMpseCount,
			"truncated_patterns", fpConfig.NumPatternsTruncated(),
		)
	}

	return &Result{
		SnapshotID:   uuid.New().String(),
		RuleMaps:     ruleMaps,
		ServiceMap:   serviceMap,
		HashCons:     hashCons,
		MpseManager:  mgr,
		TruncatedFP:  fpConfig.NumPatternsTruncated(),
		CompiledMpse: compiled,
	}, nil
}

func buildPortObjects(b *portgroup.Builder, groups []RuleGroup) ([]rulemap.PortObject, error) {
	var out []rulemap.PortObject
	for _, g := range groups {
		if len(g.Ports) == 0 {
			continue
		}
		grp, err := b.Build(g.Rules)
		if err != nil {
			return nil, err
		}
		if grp == nil {
			continue
		}
		out = append(out, rulemap.PortObject{Ports: g.Ports, Group: grp})
	}
	return out, nil
}

// allSlots collects every MpseSlot reachable from the assembled rule maps
// and service map so compileEngines can drive them, optionally in
// parallel. A seen-set dedupes groups shared between the src and dst
// sides of the same rule map (e.g. the folded-in any-port group).
func allSlots(maps *rulemap.RuleMaps, svc *servicegroup.Map) []*portgroup.MpseSlot {
	var slots []*portgroup.MpseSlot
	seen := make(map[*portgroup.PortGroup]bool)
	addGroup := func(g *portgroup.PortGroup) {
		if g == nil || seen[g] {
			return
		}
		seen[g] = true
		for i := range g.MpseGrp {
			slots = append(slots, &g.MpseGrp[i])
		}
	}

	collectFromMap := func(prm *rulemap.PortRuleMap) {
		if prm == nil {
			return
		}
		for _, g := range prm.PrmSrc {
			addGroup(g)
		}
		for _, g := range prm.PrmDst {
			addGroup(g)
		}
		addGroup(prm.PrmGeneric)
	}

	collectFromMap(maps.IP)
	collectFromMap(maps.ICMP)
	collectFromMap(maps.TCP)
	collectFromMap(maps.UDP)

	if svc != nil {
		for _, g := range svc.ToSrv {
			addGroup(g)
		}
		for _, g := range svc.ToCli {
			addGroup(g)
		}
	}

	return slots
}

// compileEngines invokes Compile on every slot's surviving MPSEs,
// optionally in parallel: only when the configuration is not a hot
// reload (cfg.TestMode acts as the stand-in "not a fresh build" signal
// the external loader sets) and both the normal and offload Api (when
// present) advertise ParallelCompiles.
func compileEngines(mgr *portgroup.Manager, cfg config.CompilerConfig, slots []*portgroup.MpseSlot) (int, error) {
	parallel := !cfg.TestMode && mgr.NormalApi.ParallelCompiles() &&
		(mgr.OffloadApi == nil || mgr.OffloadApi.ParallelCompiles())

	if !parallel {
		compiled := 0
		for _, slot := range slots {
			n, err := compileOneSlot(mgr, slot)
			if err != nil {
				return 0, err
			}
			compiled += n
		}
		return compiled, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		compiled int
	)
	for _, slot := range slots {
		wg.Add(1)
		go func(s *portgroup.MpseSlot) {
			defer wg.Done()
			n, err := compileOneSlot(mgr, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			compiled += n
		}(slot)
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return compiled, nil
}

func compileOneSlot(mgr *portgroup.Manager, slot *portgroup.MpseSlot) (int, error) {
	n := 0
	if slot.Normal != nil {
		n++
	}
	if slot.Offload != nil {
		n++
	}
	if err := mgr.CompileSlot(slot); err != nil {
		return 0, err
	}
	return n, nil
}

// Teardown releases everything a Result owns: every per-group MPSE,
// through its owning Api's Delete.
func Teardown(result *Result, normalApi, offloadApi mpse.Api) {
	if result == nil {
		return
	}
	for _, slot := range allSlots(result.RuleMaps, result.ServiceMap) {
		if slot.Normal != nil {
			normalApi.Delete(slot.Normal)
		}
		if slot.Offload != nil && offloadApi != nil {
			offloadApi.Delete(slot.Offload)
		}
	}
}
