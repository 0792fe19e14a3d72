// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rulemap implements per-protocol rule-map assembly: dense
// port-indexed arrays mapping a port number to the PortGroup compiled for
// it.
package rulemap

import "grimm.is/fastpattern/internal/portgroup"

const maxPort = 65536

// Protocol identifies one of the four rule-map protocols.
type Protocol int

const (
	ProtoIP Protocol = iota
	ProtoICMP
	ProtoTCP
	ProtoUDP
)

// PortRuleMap is the per-protocol dense port → PortGroup index:
// prm_src[0..65535], prm_dst[0..65535], prm_generic for any-port rules,
// plus aggregate counters.
type PortRuleMap struct {
	PrmSrc     [maxPort]*portgroup.PortGroup
	PrmDst     [maxPort]*portgroup.PortGroup
	PrmGeneric *portgroup.PortGroup

	SrcGroupCount int
	DstGroupCount int
}

// PortObject is what a rule-map assembly pass iterates: a canonicalized
// set of port numbers shared by several rules, already compiled into one
// PortGroup.
type PortObject struct {
	Ports []int // empty means "any port"
	Group *portgroup.PortGroup
}

// Assemble populates one protocol/direction's dense port array: for
// every port object, for every port number it contains, point prm[port]
// at its PortGroup. Any-port objects (no explicit ports) are skipped here;
// prm_generic is set from the generic group passed to Builder.Build.
func Assemble(prm *[maxPort]*portgroup.PortGroup, objects []PortObject) int {
	assigned := 0
	for _, obj := range objects {
		if obj.Group == nil || len(obj.Ports) == 0 {
			continue
		}
		for _, port := range obj.Ports {
			if port < 0 || port >= maxPort {
				continue
			}
			prm[port] = obj.Group
			assigned++
		}
	}
	return assigned
}

// Builder assembles one PortRuleMap per protocol.
type Builder struct{}

// NewBuilder creates a rule-map assembly Builder.
func NewBuilder() *Builder { return &Builder{} }

// Build constructs one PortRuleMap from its src/dst port-object lists plus
// an optional any-port group.
func (b *Builder) Build(srcObjects, dstObjects []PortObject, generic *portgroup.PortGroup) *PortRuleMap {
	prm := &PortRuleMap{PrmGeneric: generic}
	prm.SrcGroupCount = Assemble(&prm.PrmSrc, srcObjects)
	prm.DstGroupCount = Assemble(&prm.PrmDst, dstObjects)
	return prm
}

// RuleMaps holds the four protocol-keyed PortRuleMaps a compiled
// configuration snapshot exposes.
type RuleMaps struct {
	IP   *PortRuleMap
	ICMP *PortRuleMap
	TCP  *PortRuleMap
	UDP  *PortRuleMap
}

// Get returns the PortRuleMap for protocol p, or nil if unset.
func (r *RuleMaps) Get(p Protocol) *PortRuleMap {
	switch p {
	case ProtoIP:
		return r.IP
	case ProtoICMP:
		return r.ICMP
	case ProtoTCP:
		return r.TCP
	case ProtoUDP:
		return r.UDP
	default:
		return nil
	}
}

// Set assigns the PortRuleMap for protocol p.
func (r *RuleMaps) Set(p Protocol, prm *PortRuleMap) {
	switch p {
	case ProtoIP:
		r.IP = prm
	case ProtoICMP:
		r.ICMP = prm
	case ProtoTCP:
		r.TCP = prm
	case ProtoUDP:
		r.UDP = prm
	}
}
