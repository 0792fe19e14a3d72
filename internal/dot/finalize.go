// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dot

import "grimm.is/fastpattern/internal/rules"

// HashCons is a table of structurally-equal sub-trees scoped to one
// configuration snapshot rather than shared process-wide, so that
// discarding a snapshot also drops its interned nodes. After Finalize, no
// two distinct sub-trees registered in the same HashCons are structurally
// equal.
type HashCons struct {
	table map[string]*Node
}

// NewHashCons creates an empty hash-cons table, scoped to one configuration
// snapshot.
func NewHashCons() *HashCons {
	return &HashCons{table: make(map[string]*Node)}
}

// structuralKey computes a canonical key for a sub-tree: (option kind,
// option-data identity, ordered child keys, relative flag). Leaves key on
// the rule's (gid, sid, rev) instead of a data identity, since a leaf's
// OptionDataID isn't set (LeafRule is).
func structuralKey(n *Node) string {
	if n.isLeaf() {
		id := n.LeafRule.ID
		return "L:" + itoa(uint64(id.GID)) + ":" + itoa(uint64(id.SID)) + ":" + itoa(uint64(id.Rev))
	}

	key := "N:" + itoa(uint64(n.OptionType)) + ":" + itoa(uint64(n.OptionDataID))
	if n.IsRelative {
		key += ":r"
	} else {
		key += ":a"
	}
	key += "["
	for i, c := range n.Children {
		if i > 0 {
			key += ","
		}
		key += structuralKey(c)
	}
	key += "]"
	return key
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Finalize dedups every direct child of tree's root against hc (replacing
// structurally-equal sub-trees with the canonical instance already in hc)
// and then runs the fixup pass that promotes each unbranched chain's
// deepest leaf rule into the branching ancestor's OTNRef.
func Finalize(tree *Tree, hc *HashCons) {
	if tree.Root == nil {
		return
	}
	for i, child := range tree.Root.Children {
		tree.Root.Children[i] = hc.intern(child)
	}
	for _, child := range tree.Root.Children {
		fixup(child, false, 0)
	}
}

// intern recursively dedups n's children first (bottom-up, so a parent's
// structural key only ever references already-canonical children), then
// looks n itself up in the table.
func (hc *HashCons) intern(n *Node) *Node {
	for i, c := range n.Children {
		n.Children[i] = hc.intern(c)
	}

	key := structuralKey(n)
	if existing, ok := hc.table[key]; ok {
		return existing
	}
	hc.table[key] = n
	return n
}

// fixup is the second pass over a tree, after interning: it returns the
// deepest leaf rule reachable from n when n's subtree never branches and
// has accumulated at
// least one content option on the way down (contentSeen). branched is
// whether an ancestor already branched (more than one child at some
// level); once true, no node above can cache a back-pointer, since the
// path to a single leaf is no longer unambiguous.
func fixup(n *Node, branched bool, contentSeen int) *rules.Rule {
	if n.isLeaf() {
		if !branched && contentSeen > 0 {
			return n.LeafRule
		}
		return nil
	}

	childBranched := branched || len(n.Children) > 1
	if n.OptionType == rules.OptContent {
		contentSeen++
	}

	var deepest *rules.Rule
	for _, c := range n.Children {
		leaf := fixup(c, childBranched, contentSeen)
		if len(n.Children) == 1 {
			deepest = leaf
		}
	}

	if !branched && len(n.Children) == 1 && deepest != nil {
		n.OTNRef = deepest
		return deepest
	}
	return nil
}
