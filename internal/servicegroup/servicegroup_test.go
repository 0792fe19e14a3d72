// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package servicegroup

import (
	"testing"

	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/fastpattern"
	"grimm.is/fastpattern/internal/mpse"
	"grimm.is/fastpattern/internal/pmd"
	"grimm.is/fastpattern/internal/portgroup"
	"grimm.is/fastpattern/internal/rules"
)

type stubMpse struct{ n int }

func (s *stubMpse) AddPattern(bytes []byte, desc mpse.PatternDescriptor, cookie *rules.PMX) error {
	s.n++
	return nil
}
func (s *stubMpse) PatternCount() int                  { return s.n }
func (s *stubMpse) SetOpt(opt int)                     {}
func (s *stubMpse) PrintInfo()                         {}
func (s *stubMpse) Compile(agent *mpse.Agent) error {
	var treeSlot *dot.Tree
	return agent.CreateTree(nil, &treeSlot)
}

type stubApi struct{}

func (s *stubApi) IsRegexCapable() bool   { return false }
func (s *stubApi) ParallelCompiles() bool { return false }
func (s *stubApi) Create(agent *mpse.Agent) (mpse.Mpse, error) {
	return &stubMpse{}, nil
}
func (s *stubApi) Delete(m mpse.Mpse) {}
func (s *stubApi) StartSearchEngine() {}
func (s *stubApi) SetupSearchEngine() {}
func (s *stubApi) PrintSummary()      {}

// TestBuildServiceVsPortGroup checks that a rule with a service tag is
// reachable from its named service group (here just the to_srv group
// construction; the parallel port-group membership is the caller's
// responsibility to wire from the same rule list).
func TestBuildServiceVsPortGroup(t *testing.T) {
	mgr := portgroup.NewManager(&stubApi{}, nil, dot.NewHashCons())
	adder := portgroup.NewAdder(mgr, &fastpattern.Config{}, true)
	pb := portgroup.NewBuilder(mgr, adder)
	sb := NewBuilder(pb)

	pm := pmd.NewPatternMatchData([]byte("GET"), pmd.PMTypePkt)
	opt := rules.NewContentOption(pm, false)
	rule := &rules.Rule{
		ID:            rules.ID{GID: 1, SID: 1, Rev: 1},
		Options:       []*rules.DetectionOption{opt},
		PolicyEnabled: []bool{true},
	}

	m, err := sb.Build([]ServiceRuleSet{{Service: "http", ProtocolID: 6, ToSrv: []*rules.Rule{rule}}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	group, ok := m.ToSrv["http"]
	if !ok || group == nil {
		t.Fatalf("expected a to_srv['http'] group")
	}
	if group.RuleCount != 1 {
		t.Fatalf("expected one rule in the http service group, got %d", group.RuleCount)
	}
	if m.ByProtocolOrdinal[ToServer][6] != group {
		t.Fatalf("expected the protocol-ordinal index to reference the same group")
	}
}
