// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dot implements the detection option tree: a prefix-sharing
// insertion algorithm and a hash-consing finalize pass that turn a set of
// rules' residual option sequences into a shared tree rooted at each
// matched pattern.
package dot

import "grimm.is/fastpattern/internal/rules"

// Node is either an inner node (one residual option shared by every rule
// whose path passes through it) or a leaf (option_type = OptLeafNode,
// carrying the rule it terminates).
type Node struct {
	OptionType   rules.RuleOptionKind
	OptionDataID rules.OptionID
	Evaluate     rules.EvaluateFunc
	IsRelative   bool

	Children         []*Node
	RelativeChildren int

	// LeafRule is set only on leaf nodes (OptionType == OptLeafNode).
	LeafRule *rules.Rule

	// OTNRef is the finalize-time cached back-pointer to the deepest leaf
	// descendant when this node's subtree never branches.
	OTNRef *rules.Rule
}

func (n *Node) isLeaf() bool { return n.OptionType == rules.OptLeafNode }

// Root anchors a DOT: one primary rule (the first rule inserted) plus an
// ordered array of children, one per distinct first residual option seen.
type Root struct {
	Rule     *rules.Rule
	Children []*Node
}

// Tree owns one Root plus the "existing tree" state the builder
// maintains while rules are added for a single (rule, mpse_type) context.
type Tree struct {
	Root *Root
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// residualOptions filters a rule's option list down to the options that
// participate in the DOT: leaf markers and options classified as
// fast-pattern-only for this mpse_type are skipped.
func residualOptions(rule *rules.Rule, fastPatternOnly map[*rules.DetectionOption]bool) []*rules.DetectionOption {
	var out []*rules.DetectionOption
	for _, opt := range rule.Options {
		if opt.Kind == rules.OptLeafNode {
			continue
		}
		if fastPatternOnly != nil && fastPatternOnly[opt] {
			continue
		}
		out = append(out, opt)
	}
	return out
}

// Insert merges rule's residual option sequence into the tree.
// fastPatternOnly names the options (if any) excluded from the residual
// walk because they were the rule's sole MPSE entry point for this
// mpse_type.
func (t *Tree) Insert(rule *rules.Rule, fastPatternOnly map[*rules.DetectionOption]bool) {
	if t.Root == nil {
		t.Root = &Root{Rule: rule}
	}

	options := residualOptions(rule, fastPatternOnly)

	branched := false
	current := &t.Root.Children
	var parent *Node // nil while current == &t.Root.Children

	for _, opt := range options {
		found, offFirst := findChild(*current, opt.ID)
		if found != nil {
			if offFirst {
				branched = true
			}
			parent = found
			current = &found.Children
			continue
		}

		node := &Node{
			OptionType:   opt.Kind,
			OptionDataID: opt.ID,
			Evaluate:     opt.Evaluate,
			IsRelative:   opt.IsRelative,
		}
		*current = append(*current, node)
		if len(*current) > 1 {
			branched = true
		}
		if parent != nil && node.IsRelative {
			parent.RelativeChildren++
		}
		parent = node
		current = &node.Children
	}

	if t.leafAlreadyPresent(*current, rule.ID) {
		return
	}
	*current = append(*current, &Node{
		OptionType: rules.OptLeafNode,
		LeafRule:   rule,
	})
	_ = branched // branching only matters to external invariant checks, not insertion itself
}

// findChild looks for a child of parent matching optID by identity: it
// first checks the first child, then the rest, first match wins. The
// second return value reports whether the match came from a non-first
// child (a "branch" under this tie-break rule).
func findChild(parent []*Node, optID rules.OptionID) (*Node, bool) {
	for i, c := range parent {
		if c.OptionDataID == optID && c.OptionType != rules.OptLeafNode {
			return c, i > 0
		}
	}
	return nil, false
}

// leafAlreadyPresent checks existing leaf siblings for the same
// (gid, sid, rev) "same signature" match.
func (t *Tree) leafAlreadyPresent(siblings []*Node, id rules.ID) bool {
	for _, s := range siblings {
		if s.isLeaf() && s.LeafRule != nil && s.LeafRule.ID.SameSignature(id) {
			return true
		}
	}
	return false
}

// Walk invokes fn for every node in the tree, root-children first,
// depth-first.
func (t *Tree) Walk(fn func(*Node)) {
	if t.Root == nil {
		return
	}
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			fn(n)
			walk(n.Children)
		}
	}
	walk(t.Root.Children)
}

// Leaves collects every leaf rule reachable from the tree.
func (t *Tree) Leaves() []*rules.Rule {
	var out []*rules.Rule
	t.Walk(func(n *Node) {
		if n.isLeaf() {
			out = append(out, n.LeafRule)
		}
	})
	return out
}
