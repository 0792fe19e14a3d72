// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import (
	"sync"

	"github.com/coregx/ahocorasick"

	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/logging"
	"grimm.is/fastpattern/internal/rules"
)

// LiteralApi is the Api for the Aho-Corasick literal engine: not
// regex-capable, always a candidate for the onlyLiteral selector path,
// and safe to compile in parallel with other MPSEs since each instance's
// automaton build is self-contained.
type LiteralApi struct {
	logger *logging.Logger
}

// NewLiteralApi returns the Api for the Aho-Corasick literal MPSE.
func NewLiteralApi(logger *logging.Logger) *LiteralApi {
	return &LiteralApi{logger: logger}
}

func (a *LiteralApi) IsRegexCapable() bool   { return false }
func (a *LiteralApi) ParallelCompiles() bool { return true }

func (a *LiteralApi) Create(agent *Agent) (Mpse, error) {
	return &literalMpse{agent: agent, logger: a.logger}, nil
}

func (a *LiteralApi) Delete(m Mpse)      {}
func (a *LiteralApi) StartSearchEngine() {}
func (a *LiteralApi) SetupSearchEngine() {}
func (a *LiteralApi) PrintSummary() {
	if a.logger != nil {
		a.logger.Info("literal MPSE (aho-corasick) ready")
	}
}

// literalMpse records patterns and their PMX cookies in insertion order;
// Compile walks the cookies in that order to drive the agent's CreateTree
// callback.
type literalMpse struct {
	mu        sync.Mutex
	agent     *Agent
	logger    *logging.Logger
	patterns  [][]byte
	cookies   []*rules.PMX
	opt       int
	automaton *ahocorasick.Automaton
}

func (m *literalMpse) AddPattern(bytes []byte, desc PatternDescriptor, cookie *rules.PMX) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, bytes)
	m.cookies = append(m.cookies, cookie)
	return nil
}

func (m *literalMpse) PatternCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patterns)
}

func (m *literalMpse) SetOpt(opt int) { m.opt = opt }

func (m *literalMpse) PrintInfo() {
	if m.logger != nil {
		m.logger.Info("literal MPSE", "patterns", m.PatternCount())
	}
}

// Compile builds the Aho-Corasick automaton over every registered pattern
// and drives the agent's tree-grouping callback once per distinct rule
// among the PMX cookies, then once more with nil to finalize.
func (m *literalMpse) Compile(agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.patterns) > 0 {
		m.automaton = ahocorasick.NewAutomaton(m.patterns)
	}

	seen := make(map[*rules.Rule]bool)
	var treeSlot *dot.Tree
	for _, cookie := range m.cookies {
		if cookie == nil || seen[cookie.Rule] {
			continue
		}
		seen[cookie.Rule] = true
		if err := agent.CreateTree(cookie, &treeSlot); err != nil {
			return err
		}
	}
	return agent.CreateTree(nil, &treeSlot)
}
