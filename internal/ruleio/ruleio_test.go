// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ruleio

import (
	"testing"

	"grimm.is/fastpattern/internal/rules"
)

const sampleYAML = `
rules:
  - gid: 1
    sid: 1000
    rev: 1
    protocol_id: 6
    enabled: [true]
    options:
      - kind: content
        content:
          pattern: "abcdef"
          fast_pattern: true
      - kind: content
        content:
          pattern: "ab"
`

func TestLoadYAMLAndToRules(t *testing.T) {
	corpus, err := LoadYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	if len(corpus.Rules) != 1 {
		t.Fatalf("expected one rule, got %d", len(corpus.Rules))
	}

	rs, err := corpus.ToRules()
	if err != nil {
		t.Fatalf("ToRules failed: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected one converted rule, got %d", len(rs))
	}

	r := rs[0]
	if r.ID != (rules.ID{GID: 1, SID: 1000, Rev: 1}) {
		t.Fatalf("unexpected rule ID: %+v", r.ID)
	}
	if len(r.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(r.Options))
	}
	if !r.Options[0].PMD.IsFastPattern {
		t.Fatalf("expected the first content option to carry fast_pattern")
	}
	if string(r.Options[1].PMD.PatternBuf) != "ab" {
		t.Fatalf("expected the second option's pattern buffer to be 'ab', got %q", r.Options[1].PMD.PatternBuf)
	}
}

func TestLoadJSONEquivalent(t *testing.T) {
	const sampleJSON = `{"rules":[{"gid":1,"sid":2000,"rev":1,"protocol_id":6,"enabled":[true],"options":[{"kind":"content","content":{"pattern":"needle"}}]}]}`

	corpus, err := LoadJSON([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	rs, err := corpus.ToRules()
	if err != nil {
		t.Fatalf("ToRules failed: %v", err)
	}
	if len(rs) != 1 || rs[0].ID.SID != 2000 {
		t.Fatalf("unexpected conversion result: %+v", rs)
	}
}

func TestHexContentPattern(t *testing.T) {
	const yamlDoc = `
rules:
  - gid: 1
    sid: 1
    rev: 1
    enabled: [true]
    options:
      - kind: content
        content:
          pattern: "deadbeef"
          hex: true
`
	corpus, err := LoadYAML([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	rs, err := corpus.ToRules()
	if err != nil {
		t.Fatalf("ToRules failed: %v", err)
	}
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	got := rs[0].Options[0].PMD.PatternBuf
	if len(got) != len(want) {
		t.Fatalf("expected decoded hex bytes %x, got %x", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected decoded hex bytes %x, got %x", want, got)
		}
	}
}

func TestUnknownOptionKindRejected(t *testing.T) {
	const yamlDoc = `
rules:
  - gid: 1
    sid: 1
    rev: 1
    enabled: [true]
    options:
      - kind: bogus
`
	corpus, err := LoadYAML([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	if _, err := corpus.ToRules(); err == nil {
		t.Fatalf("expected an error for an unknown option kind")
	}
}
