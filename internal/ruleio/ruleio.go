// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ruleio loads a rule corpus from JSON or YAML into the
// internal/rules object model.
package ruleio

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"grimm.is/fastpattern/internal/errors"
	"grimm.is/fastpattern/internal/pmd"
	"grimm.is/fastpattern/internal/rules"
)

// ContentDoc is the on-disk shape of one content detection option.
type ContentDoc struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Hex         bool   `yaml:"hex,omitempty" json:"hex,omitempty"`
	PMType      string `yaml:"pm_type,omitempty" json:"pm_type,omitempty"`
	FPOffset    int    `yaml:"fp_offset,omitempty" json:"fp_offset,omitempty"`
	FPLength    int    `yaml:"fp_length,omitempty" json:"fp_length,omitempty"`
	MpseFlags   uint32 `yaml:"mpse_flags,omitempty" json:"mpse_flags,omitempty"`
	FastPattern bool   `yaml:"fast_pattern,omitempty" json:"fast_pattern,omitempty"`
	Negated     bool   `yaml:"negated,omitempty" json:"negated,omitempty"`
	NoCase      bool   `yaml:"nocase,omitempty" json:"nocase,omitempty"`
	Literal     *bool  `yaml:"literal,omitempty" json:"literal,omitempty"`
}

// OptionDoc is the on-disk shape of one detection option. Only Content is
// populated for kind == "content"; other kinds carry no packet-time
// evaluation here and exist purely to occupy a DOT slot.
type OptionDoc struct {
	Kind     string      `yaml:"kind" json:"kind"`
	Relative bool        `yaml:"relative,omitempty" json:"relative,omitempty"`
	Content  *ContentDoc `yaml:"content,omitempty" json:"content,omitempty"`
}

// RuleDoc is the on-disk shape of one rule.
type RuleDoc struct {
	GID        uint32      `yaml:"gid" json:"gid"`
	SID        uint32      `yaml:"sid" json:"sid"`
	Rev        uint32      `yaml:"rev" json:"rev"`
	ProtocolID uint8       `yaml:"protocol_id" json:"protocol_id"`
	Builtin    bool        `yaml:"builtin,omitempty" json:"builtin,omitempty"`
	Enabled    []bool      `yaml:"enabled" json:"enabled"`
	Service    string      `yaml:"service,omitempty" json:"service,omitempty"`
	Direction  string      `yaml:"direction,omitempty" json:"direction,omitempty"`
	Ports      []int       `yaml:"ports,omitempty" json:"ports,omitempty"`
	AnyPort    bool        `yaml:"any_port,omitempty" json:"any_port,omitempty"`
	Options    []OptionDoc `yaml:"options" json:"options"`
}

// Corpus is the top-level rule-corpus document.
type Corpus struct {
	Rules []RuleDoc `yaml:"rules" json:"rules"`
}

// LoadYAML parses a YAML rule corpus.
func LoadYAML(data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to parse YAML rule corpus")
	}
	return &c, nil
}

// LoadJSON parses a JSON rule corpus.
func LoadJSON(data []byte) (*Corpus, error) {
	var c Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to parse JSON rule corpus")
	}
	return &c, nil
}

var pmTypeByName = map[string]pmd.PMType{
	"pkt":    pmd.PMTypePkt,
	"body":   pmd.PMTypeBody,
	"uri":    pmd.PMTypeUri,
	"header": pmd.PMTypeHeader,
	"key":    pmd.PMTypeKey,
}

var optKindByName = map[string]rules.RuleOptionKind{
	"content":    rules.OptContent,
	"pcre":       rules.OptPcreRegex,
	"byte_test":  rules.OptByteTest,
	"flowbits":   rules.OptFlowbits,
	"leaf":       rules.OptLeafNode,
}

// ToRules converts a parsed Corpus into the compiler's rule object model.
// Content options sharing option identity across rules (for DOT prefix
// sharing) is an authoring-time concern this loader doesn't attempt to
// infer — every rule gets freshly interned options. A rule-authoring tool
// that wants shared prefixes must construct the DetectionOption once and
// reference it from multiple RuleDocs out of band; this loader's JSON/YAML
// schema is rule-at-a-time, so it always produces distinct OptionIDs.
func (c *Corpus) ToRules() ([]*rules.Rule, error) {
	out := make([]*rules.Rule, 0, len(c.Rules))
	for _, doc := range c.Rules {
		r, err := docToRule(doc)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "rule %d:%d:%d", doc.GID, doc.SID, doc.Rev)
		}
		out = append(out, r)
	}
	return out, nil
}

func docToRule(doc RuleDoc) (*rules.Rule, error) {
	r := &rules.Rule{
		ID:            rules.ID{GID: doc.GID, SID: doc.SID, Rev: doc.Rev},
		ProtocolID:    doc.ProtocolID,
		Builtin:       doc.Builtin,
		PolicyEnabled: doc.Enabled,
	}

	for _, optDoc := range doc.Options {
		opt, err := docToOption(optDoc)
		if err != nil {
			return nil, err
		}
		r.Options = append(r.Options, opt)
	}
	return r, nil
}

func docToOption(doc OptionDoc) (*rules.DetectionOption, error) {
	kind, ok := optKindByName[doc.Kind]
	if !ok {
		return nil, errors.Errorf(errors.KindValidation, "unknown option kind %q", doc.Kind)
	}

	if kind != rules.OptContent {
		return rules.NewOption(kind, doc.Relative, nil), nil
	}

	if doc.Content == nil {
		return nil, errors.New(errors.KindValidation, "content option missing its content body")
	}

	buf, err := contentBytes(doc.Content)
	if err != nil {
		return nil, err
	}

	pmType := pmd.PMTypePkt
	if doc.Content.PMType != "" {
		t, ok := pmTypeByName[doc.Content.PMType]
		if !ok {
			return nil, errors.Errorf(errors.KindValidation, "unknown pm_type %q", doc.Content.PMType)
		}
		pmType = t
	}

	pm := pmd.NewPatternMatchData(buf, pmType)
	pm.FPOffset = doc.Content.FPOffset
	pm.FPLength = doc.Content.FPLength
	pm.MpseFlags = doc.Content.MpseFlags
	pm.IsFastPattern = doc.Content.FastPattern
	pm.IsNegated = doc.Content.Negated
	pm.IsNoCase = doc.Content.NoCase
	if doc.Content.Literal != nil {
		pm.IsLiteral = *doc.Content.Literal
	}

	return rules.NewContentOption(pm, doc.Relative), nil
}

func contentBytes(c *ContentDoc) ([]byte, error) {
	if !c.Hex {
		return []byte(c.Pattern), nil
	}
	buf, err := hex.DecodeString(c.Pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "invalid hex content pattern")
	}
	return buf, nil
}

// String implements fmt.Stringer for RuleDoc's identity as gid:sid:rev.
func (d RuleDoc) String() string {
	return fmt.Sprintf("%d:%d:%d", d.GID, d.SID, d.Rev)
}
