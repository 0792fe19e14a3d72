// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// fpcompile compiles a rule corpus into MPSE-backed port/service rule maps
// and prints a human-readable compile summary: per-rule fast-pattern
// choices, no-fast-pattern warnings, and aggregate group counts.
//
// Usage:
//
//	go run ./cmd/fpcompile -rules rules.yaml -config compiler.hcl
//	go run ./cmd/fpcompile -rules rules.json -format json
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"grimm.is/fastpattern/internal/compiler"
	"grimm.is/fastpattern/internal/config"
	"grimm.is/fastpattern/internal/logging"
	"grimm.is/fastpattern/internal/mpse"
	"grimm.is/fastpattern/internal/rulemap"
	"grimm.is/fastpattern/internal/ruleio"
	"grimm.is/fastpattern/internal/rules"
	"grimm.is/fastpattern/internal/servicegroup"
)

func main() {
	rulesPath := flag.String("rules", "", "Path to a rule corpus (YAML or JSON)")
	format := flag.String("format", "yaml", "Rule corpus format: yaml or json")
	configPath := flag.String("config", "", "Path to an HCL compiler config (defaults used if omitted)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.New(logging.Options{Prefix: "fpcompile", Level: *logLevel})

	if *rulesPath == "" {
		fmt.Fprintln(os.Stderr, "fpcompile: -rules is required")
		os.Exit(1)
	}

	cfg := config.DefaultCompilerConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load compiler config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	corpus, err := loadCorpus(*rulesPath, *format)
	if err != nil {
		logger.Error("failed to load rule corpus", "err", err)
		os.Exit(1)
	}

	ruleList, err := corpus.ToRules()
	if err != nil {
		logger.Error("failed to convert rule corpus", "err", err)
		os.Exit(1)
	}

	normalApi, err := mpse.New(cfg.SearchApi, logger)
	if err != nil {
		logger.Error("failed to resolve search_api", "err", err)
		os.Exit(1)
	}
	offloadApi, err := mpse.New(cfg.OffloadSearchApi, logger)
	if err != nil {
		logger.Error("failed to resolve offload_search_api", "err", err)
		os.Exit(1)
	}

	portSets, serviceSets := group(corpus.Rules, ruleList)

	result, err := compiler.Build(cfg, normalApi, offloadApi, portSets, serviceSets, logger)
	if err != nil {
		logger.Error("compile failed", "err", err)
		os.Exit(1)
	}

	printSummary(logger, ruleList, result)
}

func loadCorpus(path, format string) (*ruleio.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(format, "json") {
		return ruleio.LoadJSON(data)
	}
	return ruleio.LoadYAML(data)
}

// group reduces the flat rule corpus into the per-protocol port-object
// sets and per-service rule sets compiler.Build expects, mirroring how an
// external rule-loading stage would have already canonicalized port
// numbers into port objects. Rules sharing an identical port set are
// grouped into one RuleGroup so the MPSE for that port object is built
// once, not once per rule.
func group(docs []ruleio.RuleDoc, converted []*rules.Rule) ([]compiler.PortObjectSet, []servicegroup.ServiceRuleSet) {
	type protoBuckets struct {
		src, dst map[string]*compiler.RuleGroup
		any      *compiler.RuleGroup
	}

	byProto := make(map[rulemap.Protocol]*protoBuckets)
	bucketsFor := func(proto rulemap.Protocol) *protoBuckets {
		b, ok := byProto[proto]
		if !ok {
			b = &protoBuckets{src: make(map[string]*compiler.RuleGroup), dst: make(map[string]*compiler.RuleGroup)}
			byProto[proto] = b
		}
		return b
	}

	serviceBuckets := make(map[string]*servicegroup.ServiceRuleSet)

	for i, doc := range docs {
		rule := converted[i]
		proto := protocolFromID(doc.ProtocolID)

		if doc.Service != "" {
			set, ok := serviceBuckets[doc.Service]
			if !ok {
				set = &servicegroup.ServiceRuleSet{Service: doc.Service, ProtocolID: doc.ProtocolID}
				serviceBuckets[doc.Service] = set
			}
			if doc.Direction == "to_client" {
				set.ToCli = append(set.ToCli, rule)
			} else {
				set.ToSrv = append(set.ToSrv, rule)
			}
			// A service rule is also placed in its port group below.
		}

		b := bucketsFor(proto)

		if doc.AnyPort || len(doc.Ports) == 0 {
			if b.any == nil {
				b.any = &compiler.RuleGroup{}
			}
			b.any.Rules = append(b.any.Rules, rule)
			continue
		}

		key := portsKey(doc.Ports)
		if doc.Direction == "to_client" {
			g, ok := b.dst[key]
			if !ok {
				g = &compiler.RuleGroup{Ports: doc.Ports}
				b.dst[key] = g
			}
			g.Rules = append(g.Rules, rule)
			continue
		}

		// Default (unspecified direction) and "to_server" both populate src;
		// a port object with no declared direction is assumed reachable from
		// either side, matching the dst assignment below.
		g, ok := b.src[key]
		if !ok {
			g = &compiler.RuleGroup{Ports: doc.Ports}
			b.src[key] = g
		}
		g.Rules = append(g.Rules, rule)

		dg, ok := b.dst[key]
		if !ok {
			dg = &compiler.RuleGroup{Ports: doc.Ports}
			b.dst[key] = dg
		}
		dg.Rules = append(dg.Rules, rule)
	}

	portSets := make([]compiler.PortObjectSet, 0, len(byProto))
	for proto, b := range byProto {
		set := compiler.PortObjectSet{Protocol: proto}
		for _, g := range b.src {
			set.Src = append(set.Src, *g)
		}
		for _, g := range b.dst {
			set.Dst = append(set.Dst, *g)
		}
		if b.any != nil {
			set.Any = append(set.Any, *b.any)
		}
		portSets = append(portSets, set)
	}

	serviceSets := make([]servicegroup.ServiceRuleSet, 0, len(serviceBuckets))
	for _, set := range serviceBuckets {
		serviceSets = append(serviceSets, *set)
	}

	return portSets, serviceSets
}

func portsKey(ports []int) string {
	sorted := append([]int(nil), ports...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ",")
}

func protocolFromID(id uint8) rulemap.Protocol {
	switch id {
	case 1:
		return rulemap.ProtoICMP
	case 6:
		return rulemap.ProtoTCP
	case 17:
		return rulemap.ProtoUDP
	default:
		return rulemap.ProtoIP
	}
}

// printSummary logs the compile output: per-rule fast-pattern/
// no-fast-pattern lines followed by aggregate counts.
func printSummary(logger *logging.Logger, ruleList []*rules.Rule, result *compiler.Result) {
	for _, rule := range ruleList {
		switch {
		case rule.NormalFPOnly != nil:
			logger.Debug("rule fast pattern selected",
				"gid", rule.ID.GID, "sid", rule.ID.SID,
				"pattern_len", rule.LongestPatternLen,
			)
		case len(rule.ContentOptions()) == 0:
			logger.Warn("rule has no fast pattern",
				"gid", rule.ID.GID, "sid", rule.ID.SID,
			)
		}
	}

	logger.Info("compile summary",
		"snapshot_id", result.SnapshotID,
		"rules", len(ruleList),
		"mpse_compiled", result.CompiledMpse,
		"truncated_patterns", result.TruncatedFP,
	)
}
