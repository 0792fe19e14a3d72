// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package servicegroup implements the service-group builder: the same
// MPSE + DOT + no-fast-pattern-list bundle as internal/portgroup, but
// keyed by (direction, service name) instead of a port object.
package servicegroup

import (
	"grimm.is/fastpattern/internal/portgroup"
	"grimm.is/fastpattern/internal/rules"
)

// Direction distinguishes a to-server service group from a to-client one.
type Direction int

const (
	ToServer Direction = iota
	ToClient
)

func (d Direction) String() string {
	if d == ToClient {
		return "to_cli"
	}
	return "to_srv"
}

// Map holds two direction-keyed maps from service name to PortGroup,
// plus a protocol-ordinal-indexed vector per direction for O(1)
// packet-time lookup.
type Map struct {
	ToSrv map[string]*portgroup.PortGroup
	ToCli map[string]*portgroup.PortGroup

	// ByProtocolOrdinal mirrors ToSrv/ToCli but indexed by protocol id for
	// O(1) packet-time lookup; populated alongside the name-keyed maps
	// whenever a group is assigned a protocol id.
	ByProtocolOrdinal map[Direction][]*portgroup.PortGroup
}

// NewMap creates an empty ServicePortGroupMap.
func NewMap() *Map {
	return &Map{
		ToSrv:             make(map[string]*portgroup.PortGroup),
		ToCli:             make(map[string]*portgroup.PortGroup),
		ByProtocolOrdinal: make(map[Direction][]*portgroup.PortGroup),
	}
}

func (m *Map) directionTable(dir Direction) map[string]*portgroup.PortGroup {
	if dir == ToClient {
		return m.ToCli
	}
	return m.ToSrv
}

// ensureOrdinalSlot grows ByProtocolOrdinal[dir] so index protocolID is
// addressable, mirroring the dense-array-indexed-by-port convention used
// in internal/rulemap.
func (m *Map) ensureOrdinalSlot(dir Direction, protocolID uint8) {
	slots := m.ByProtocolOrdinal[dir]
	for len(slots) <= int(protocolID) {
		slots = append(slots, nil)
	}
	m.ByProtocolOrdinal[dir] = slots
}

// ServiceRuleSet is one service name's per-direction rule lists, derived
// from rule metadata ahead of the build pass.
type ServiceRuleSet struct {
	Service    string
	ProtocolID uint8
	ToSrv      []*rules.Rule
	ToCli      []*rules.Rule
}

// Builder builds a ServicePortGroupMap from a set of per-service rule
// lists, reusing internal/portgroup's Builder for the bundle construction
// itself — the same MPSE/DOT/no-fast-pattern-list assembly, just keyed
// by service name instead of port.
type Builder struct {
	PortBuilder *portgroup.Builder
}

// NewBuilder creates a Builder delegating bundle construction to pb.
func NewBuilder(pb *portgroup.Builder) *Builder {
	return &Builder{PortBuilder: pb}
}

// Build processes every ServiceRuleSet, populating and returning a Map.
func (b *Builder) Build(sets []ServiceRuleSet) (*Map, error) {
	m := NewMap()

	for _, set := range sets {
		if err := b.buildDirection(m, ToServer, set.Service, set.ProtocolID, set.ToSrv); err != nil {
			return nil, err
		}
		if err := b.buildDirection(m, ToClient, set.Service, set.ProtocolID, set.ToCli); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (b *Builder) buildDirection(m *Map, dir Direction, service string, protocolID uint8, ruleList []*rules.Rule) error {
	if len(ruleList) == 0 {
		return nil
	}

	group, err := b.PortBuilder.Build(ruleList)
	if err != nil {
		return err
	}
	if group == nil {
		return nil
	}

	m.directionTable(dir)[service] = group
	m.ensureOrdinalSlot(dir, protocolID)
	m.ByProtocolOrdinal[dir][protocolID] = group
	return nil
}
