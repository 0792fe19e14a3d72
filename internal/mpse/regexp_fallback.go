// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mpse

import (
	"regexp"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"grimm.is/fastpattern/internal/dot"
	"grimm.is/fastpattern/internal/errors"
	"grimm.is/fastpattern/internal/logging"
	"grimm.is/fastpattern/internal/rules"
)

// regexCacheSize bounds the compiled-pattern LRU every fallback engine
// instance keeps, so a corpus with many distinct patterns can't grow the
// cache without bound.
const regexCacheSize = 512

// RegexpFallbackApi is the Api for the pure-Go regexp-backed MPSE, used
// when no cgo/hyperscan build is available: regex-capable, but not the
// preferred engine when hyperscan is on hand. It compiles each pattern
// independently through a per-instance LRU cache rather than building a
// single combined automaton, and reports ParallelCompiles() == false.
type RegexpFallbackApi struct {
	logger *logging.Logger
}

// NewRegexpFallbackApi returns the Api for the stdlib-regexp fallback MPSE.
func NewRegexpFallbackApi(logger *logging.Logger) *RegexpFallbackApi {
	return &RegexpFallbackApi{logger: logger}
}

func (a *RegexpFallbackApi) IsRegexCapable() bool   { return true }
func (a *RegexpFallbackApi) ParallelCompiles() bool { return false }

func (a *RegexpFallbackApi) Create(agent *Agent) (Mpse, error) {
	cache, err := lru.New[string, *regexp.Regexp](regexCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindCompile, "failed to allocate regex compile cache")
	}
	return &regexpFallbackMpse{agent: agent, logger: a.logger, cache: cache}, nil
}

func (a *RegexpFallbackApi) Delete(m Mpse)      {}
func (a *RegexpFallbackApi) StartSearchEngine() {}
func (a *RegexpFallbackApi) SetupSearchEngine() {}
func (a *RegexpFallbackApi) PrintSummary() {
	if a.logger != nil {
		a.logger.Info("regexp fallback MPSE ready")
	}
}

type regexEntry struct {
	re     *regexp.Regexp
	cookie *rules.PMX
}

// regexpFallbackMpse compiles each pattern via regexp.Compile, caching the
// result in an LRU keyed by pattern text so repeated patterns across rules
// (common with shared content strings) don't recompile.
type regexpFallbackMpse struct {
	mu      sync.Mutex
	agent   *Agent
	logger  *logging.Logger
	cache   *lru.Cache[string, *regexp.Regexp]
	entries []regexEntry
}

func (m *regexpFallbackMpse) AddPattern(bytes []byte, desc PatternDescriptor, cookie *rules.PMX) error {
	pattern := string(bytes)
	if desc.NoCase {
		pattern = "(?i)" + pattern
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	re, ok := m.cache.Get(pattern)
	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return errors.Wrapf(err, errors.KindValidation, "failed to compile fallback pattern %q", pattern)
		}
		re = compiled
		m.cache.Add(pattern, re)
	}

	m.entries = append(m.entries, regexEntry{re: re, cookie: cookie})
	return nil
}

func (m *regexpFallbackMpse) PatternCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *regexpFallbackMpse) SetOpt(opt int) {}

func (m *regexpFallbackMpse) PrintInfo() {
	if m.logger != nil {
		m.logger.Info("regexp fallback MPSE", "patterns", m.PatternCount(), "cache_len", m.cache.Len())
	}
}

func (m *regexpFallbackMpse) Compile(agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

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
