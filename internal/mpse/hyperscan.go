//go:build cgo && hyperscan

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import (
	"sync"

	"github.com/flier/gohs/hyperscan"

	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/errors"
	"grimm.is/fastpattern/internal/logging"
	"grimm.is/fastpattern/internal/rules"
)

// HyperscanApi is the Api for the Intel Hyperscan-backed regex-capable
// MPSE, gated behind the cgo+hyperscan build tags the way the rest of the
// pack gates its vectorscan matcher. It is the preferred regex-capable
// engine when available; RegexpFallbackApi covers builds without cgo.
type HyperscanApi struct {
	logger *logging.Logger
}

// NewHyperscanApi returns the Api for the Hyperscan-backed MPSE.
func NewHyperscanApi(logger *logging.Logger) *HyperscanApi {
	return &HyperscanApi{logger: logger}
}

func (a *HyperscanApi) IsRegexCapable() bool   { return true }
func (a *HyperscanApi) ParallelCompiles() bool { return true }

func (a *HyperscanApi) Create(agent *Agent) (Mpse, error) {
	return &hyperscanMpse{agent: agent, logger: a.logger}, nil
}

func (a *HyperscanApi) Delete(m Mpse)      {}
func (a *HyperscanApi) StartSearchEngine() {}
func (a *HyperscanApi) SetupSearchEngine() {}
func (a *HyperscanApi) PrintSummary() {
	if a.logger != nil {
		a.logger.Info("hyperscan MPSE ready", "version", hyperscan.Version())
	}
}

type hyperscanEntry struct {
	pattern *hyperscan.Pattern
	cookie  *rules.PMX
}

// hyperscanMpse compiles all registered patterns into a single Hyperscan
// block database at Compile time. There is no per-pattern fallback: if the
// combined compile fails, Compile returns that error and no tree is built.
type hyperscanMpse struct {
	mu      sync.Mutex
	agent   *Agent
	logger  *logging.Logger
	entries []hyperscanEntry
	db      hyperscan.BlockDatabase
}

func (m *hyperscanMpse) AddPattern(bytes []byte, desc PatternDescriptor, cookie *rules.PMX) error {
	var flags hyperscan.CompileFlag
	if desc.NoCase {
		flags |= hyperscan.Caseless
	}
	p := hyperscan.NewPattern(string(bytes), flags)

	m.mu.Lock()
	defer m.mu.Unlock()
	p.Id = len(m.entries)
	m.entries = append(m.entries, hyperscanEntry{pattern: p, cookie: cookie})
	return nil
}

func (m *hyperscanMpse) PatternCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *hyperscanMpse) SetOpt(opt int) {}

func (m *hyperscanMpse) PrintInfo() {
	if m.logger != nil {
		m.logger.Info("hyperscan MPSE", "patterns", m.PatternCount())
	}
}

func (m *hyperscanMpse) Compile(agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) > 0 {
		patterns := make([]*hyperscan.Pattern, len(m.entries))
		for i, e := range m.entries {
			patterns[i] = e.pattern
		}
		db, err := hyperscan.NewBlockDatabase(patterns...)
		if err != nil {
			return errors.Wrap(err, errors.KindCompile, "hyperscan database compilation failed")
		}
		m.db = db
	}

	seen := make(map[*rules.Rule]bool)
	var treeSlot *dot.Tree
	for _, e := range m.entries {
		if e.cookie == nil || seen[e.cookie.Rule] {
			continue
		}
		seen[e.cookie.Rule] = true
		if err := agent.CreateTree(e.cookie, &treeSlot); err != nil {
			return err
		}
	}
	return agent.CreateTree(nil, &treeSlot)
}
