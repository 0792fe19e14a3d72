// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config provides HCL configuration loading for the compiler:
// hclsimple.Decode into tagged structs, with a schema scoped to the
// fast-pattern compiler's own build-time tuning knobs.
package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/fastpattern/internal/errors"
)

// CompilerConfig carries the compiler's build-time tuning knobs.
type CompilerConfig struct {
	// SplitAnyAny, when true, keeps any-port rules in the shared any-group
	// only; when false, Build also appends that group to the src and dst
	// port-object lists.
	SplitAnyAny bool `hcl:"split_any_any,optional"`

	DebugMode       bool `hcl:"debug_mode,optional"`
	DebugPrintRules bool `hcl:"debug_print_rules,optional"`
	DebugPrintFP    bool `hcl:"debug_print_fast_patterns,optional"`

	// SearchOpt selects the MPSE's internal compression/optimization level,
	// passed through to the engine's SetOpt.
	SearchOpt int `hcl:"search_opt,optional"`

	// MaxPatternLen caps the bytes inserted into an MPSE for a literal,
	// non-negated fast pattern. Zero means unlimited.
	MaxPatternLen int `hcl:"max_pattern_len,optional"`

	TestMode bool `hcl:"test_mode,optional"`
	MemCheck bool `hcl:"mem_check,optional"`

	// SearchApi and OffloadSearchApi name the registered mpse.Api
	// implementations to use (e.g. "ac_literal", "hyperscan",
	// "regexp_fallback"). OffloadSearchApi empty means no offload engine.
	SearchApi        string `hcl:"search_api,optional"`
	OffloadSearchApi string `hcl:"offload_search_api,optional"`
}

// DefaultCompilerConfig returns the configuration a bare `fpcompile` run
// uses when no file is given: unlimited pattern length, the literal
// engine only, no offload, no hot-reload/test-mode flags set.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		SplitAnyAny: false,
		SearchApi:   "ac_literal",
	}
}

// Load decodes an HCL compiler configuration file.
func Load(path string) (CompilerConfig, error) {
	if err := mustExist(path); err != nil {
		return CompilerConfig{}, err
	}
	cfg := DefaultCompilerConfig()
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return CompilerConfig{}, errors.Wrapf(err, errors.KindValidation, "failed to decode compiler config %q", path)
	}
	return cfg, nil
}

// LoadBytes decodes an HCL compiler configuration from in-memory bytes,
// used by tests and by callers that already have the file contents (e.g.
// a config pulled from a rule-corpus bundle rather than the filesystem).
func LoadBytes(filename string, data []byte) (CompilerConfig, error) {
	cfg := DefaultCompilerConfig()
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return CompilerConfig{}, errors.Wrapf(err, errors.KindValidation, "failed to decode compiler config %q", filename)
	}
	return cfg, nil
}

// mustExist is a small guard Load relies on so a missing file produces a
// KindNotFound error instead of hclsimple's generic diagnostic text.
func mustExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "compiler config %q not found", path)
	}
	return nil
}
