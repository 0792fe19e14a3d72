// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rulemap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/fastpattern/internal/portgroup"
)

// TestBuildAssignsDstPorts checks that for every port p, prm_dst[p] is
// either nil or points at a PortGroup whose rule set includes p.
func TestBuildAssignsDstPorts(t *testing.T) {
	group := &portgroup.PortGroup{RuleCount: 1}
	b := NewBuilder()

	prm := b.Build(nil, []PortObject{{Ports: []int{80, 8080}, Group: group}}, nil)

	require.Same(t, group, prm.PrmDst[80])
	require.Same(t, group, prm.PrmDst[8080])
	require.Nil(t, prm.PrmDst[443])
	require.Equal(t, 2, prm.DstGroupCount)
}

// TestBuildGenericForAnyPort covers any-port rules landing in prm_generic
// rather than a specific port slot.
func TestBuildGenericForAnyPort(t *testing.T) {
	generic := &portgroup.PortGroup{RuleCount: 1}
	b := NewBuilder()

	prm := b.Build(nil, nil, generic)

	require.Same(t, generic, prm.PrmGeneric)
	require.Zero(t, prm.SrcGroupCount)
	require.Zero(t, prm.DstGroupCount)
}
