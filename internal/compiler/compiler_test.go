// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package compiler

import (
	"testing"

	"grimm.is/fastpattern/internal/config"
	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/mpse"
	"grimm.is/fastpattern/internal/pmd"
	"grimm.is/fastpattern/internal/rulemap"
	"grimm.is/fastpattern/internal/rules"
	"grimm.is/fastpattern/internal/servicegroup"
)

// fakeMpse replicates the real engines' cookie-grouping-then-finalize
// Compile behavior so the full Build pass can be exercised without any
// concrete MPSE dependency.
type fakeMpse struct {
	patterns [][]byte
	cookies  []*rules.PMX
}

func (f *fakeMpse) AddPattern(bytes []byte, desc mpse.PatternDescriptor, cookie *rules.PMX) error {
	f.patterns = append(f.patterns, bytes)
	f.cookies = append(f.cookies, cookie)
	return nil
}
func (f *fakeMpse) PatternCount() int { return len(f.patterns) }
func (f *fakeMpse) SetOpt(opt int)    {}
func (f *fakeMpse) PrintInfo()        {}
func (f *fakeMpse) Compile(agent *mpse.Agent) error {
	seen := make(map[*rules.Rule]bool)
	var treeSlot *dot.Tree
	for _, c := range f.cookies {
		if c == nil || seen[c.Rule] {
			continue
		}
		seen[c.Rule] = true
		if err := agent.CreateTree(c, &treeSlot); err != nil {
			return err
		}
	}
	return agent.CreateTree(nil, &treeSlot)
}

type fakeApi struct {
	parallel bool
}

func (a *fakeApi) IsRegexCapable() bool   { return false }
func (a *fakeApi) ParallelCompiles() bool { return a.parallel }
func (a *fakeApi) Create(agent *mpse.Agent) (mpse.Mpse, error) {
	return &fakeMpse{}, nil
}
func (a *fakeApi) Delete(m mpse.Mpse) {}
func (a *fakeApi) StartSearchEngine() {}
func (a *fakeApi) SetupSearchEngine() {}
func (a *fakeApi) PrintSummary()      {}

func contentRule(id uint32, buf string) *rules.Rule {
	pm := pmd.NewPatternMatchData([]byte(buf), pmd.PMTypePkt)
	opt := rules.NewContentOption(pm, false)
	return &rules.Rule{
		ID:            rules.ID{GID: 1, SID: id, Rev: 1},
		Options:       []*rules.DetectionOption{opt},
		PolicyEnabled: []bool{true},
	}
}

// TestBuildAssemblesPortRuleMap checks the full Build pass end to end:
// one TCP destination-port rule object turns into a populated PortRuleMap
// entry with its MPSE compiled and the fatal-mismatch check satisfied.
func TestBuildAssemblesPortRuleMap(t *testing.T) {
	cfg := config.DefaultCompilerConfig()
	cfg.TestMode = true

	portSets := []PortObjectSet{
		{
			Protocol: rulemap.ProtoTCP,
			Dst: []RuleGroup{
				{Ports: []int{80}, Rules: []*rules.Rule{contentRule(100, "GET")}},
			},
		},
	}

	result, err := Build(cfg, &fakeApi{}, nil, portSets, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	group := result.RuleMaps.TCP.PrmDst[80]
	if group == nil {
		t.Fatalf("expected a port group assigned at destination port 80")
	}
	if group.RuleCount != 1 {
		t.Fatalf("expected one rule in the group, got %d", group.RuleCount)
	}

	slot := group.MpseGrp[pmd.PMTypePkt]
	if slot.Normal == nil {
		t.Fatalf("expected the normal mpse slot to be populated")
	}
	if slot.NormalTree == nil {
		t.Fatalf("expected Build's CompileSlot pass to have populated NormalTree")
	}
	if result.CompiledMpse != result.MpseManager.MpseCount+result.MpseManager.OffloadMpseCount {
		t.Fatalf("expected CompiledMpse to match mgr's counters")
	}
	if result.SnapshotID == "" {
		t.Fatalf("expected a non-empty SnapshotID")
	}
}

// TestBuildAssemblesServiceGroup checks that service-keyed rule sets also
// flow through Build and land in the returned ServiceMap.
func TestBuildAssemblesServiceGroup(t *testing.T) {
	cfg := config.DefaultCompilerConfig()
	cfg.TestMode = true

	serviceSets := []servicegroup.ServiceRuleSet{
		{Service: "http", ProtocolID: 6, ToSrv: []*rules.Rule{contentRule(200, "POST")}},
	}

	result, err := Build(cfg, &fakeApi{}, nil, nil, serviceSets, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	group := result.ServiceMap.ToSrv["http"]
	if group == nil {
		t.Fatalf("expected a to_srv http service group")
	}
	if group.RuleCount != 1 {
		t.Fatalf("expected one rule in the service group, got %d", group.RuleCount)
	}
}

// TestBuildGenericFoldedIntoBothDirections checks that an any-port rule
// group is folded into both PrmSrc and PrmDst when SplitAnyAny is false,
// and still reachable as PrmGeneric.
func TestBuildGenericFoldedIntoBothDirections(t *testing.T) {
	cfg := config.DefaultCompilerConfig()
	cfg.TestMode = true
	cfg.SplitAnyAny = false

	portSets := []PortObjectSet{
		{
			Protocol: rulemap.ProtoTCP,
			Any:      []RuleGroup{{Rules: []*rules.Rule{contentRule(300, "ANY")}}},
		},
	}

	result, err := Build(cfg, &fakeApi{}, nil, portSets, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.RuleMaps.TCP.PrmGeneric == nil {
		t.Fatalf("expected PrmGeneric to be populated")
	}
}

// TestBuildParallelCompilesWhenAdvertised checks that the parallel
// compile path still satisfies the fatal compile-count check when every
// configured Api advertises ParallelCompiles and the config isn't a test
// build.
func TestBuildParallelCompilesWhenAdvertised(t *testing.T) {
	cfg := config.DefaultCompilerConfig()
	cfg.TestMode = false

	portSets := []PortObjectSet{
		{
			Protocol: rulemap.ProtoUDP,
			Dst: []RuleGroup{
				{Ports: []int{53}, Rules: []*rules.Rule{contentRule(400, "query")}},
				{Ports: []int{5353}, Rules: []*rules.Rule{contentRule(401, "mdns")}},
			},
		},
	}

	result, err := Build(cfg, &fakeApi{parallel: true}, nil, portSets, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.CompiledMpse == 0 {
		t.Fatalf("expected at least one compiled mpse")
	}
}

// TestTeardownReleasesEveryMpse checks that Teardown invokes Delete on
// every surviving slot's Mpse instances.
func TestTeardownReleasesEveryMpse(t *testing.T) {
	cfg := config.DefaultCompilerConfig()
	cfg.TestMode = true

	portSets := []PortObjectSet{
		{
			Protocol: rulemap.ProtoTCP,
			Dst: []RuleGroup{
				{Ports: []int{443}, Rules: []*rules.Rule{contentRule(500, "TLS")}},
			},
		},
	}

	api := &trackingApi{fakeApi: fakeApi{}}
	result, err := Build(cfg, api, nil, portSets, nil, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	Teardown(result, api, nil)
	if api.deletes == 0 {
		t.Fatalf("expected Teardown to call Delete at least once")
	}
}

type trackingApi struct {
	fakeApi
	deletes int
}

func (a *trackingApi) Delete(m mpse.Mpse) { a.deletes++ }
