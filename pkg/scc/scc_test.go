// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package scc

import (
	"testing"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/stretchr/testify/require"
)

const (
	p order.NodeID = 10
	q order.NodeID = 11
	x order.NodeID = 20
)

// TestPrune_S5_PendingCycleRemoved is scenario S5: a 2-cycle {p->q,
// q->p} where neither is fixed gets removed wholesale.
func TestPrune_S5_PendingCycleRemoved(t *testing.T) {
	r := require.New(t)
	g := globaldag.FromAdjacency([][]order.NodeID{
		{p, q},
		{q, p},
	}, nil)

	pruned := Prune(g)
	r.Empty(pruned.Nodes())
}

// TestPrune_S5_CyclePreservedWhenOneNodeFixed: if p is fixed, the
// cycle survives pruning for a later missed-edge resolution to break.
func TestPrune_S5_CyclePreservedWhenOneNodeFixed(t *testing.T) {
	r := require.New(t)
	g := globaldag.FromAdjacency([][]order.NodeID{
		{p, q},
		{q, p},
	}, []order.NodeID{p})

	pruned := Prune(g)
	r.ElementsMatch([]order.NodeID{p, q}, pruned.Nodes())
	r.ElementsMatch([][2]order.NodeID{{p, q}, {q, p}}, pruned.Edges())
}

func TestPrune_NonCyclicSingletonsAlwaysPreserved(t *testing.T) {
	r := require.New(t)
	// x has no incoming or outgoing edges and is not fixed; it is not
	// part of any cycle and must survive untouched.
	g := globaldag.FromAdjacency([][]order.NodeID{
		{x},
		{p, q},
		{q, p},
	}, nil)

	pruned := Prune(g)
	r.ElementsMatch([]order.NodeID{x}, pruned.Nodes())
}

func TestPrune_AcyclicChainUntouched(t *testing.T) {
	r := require.New(t)
	g := globaldag.FromAdjacency([][]order.NodeID{
		{p, q},
		{q, x},
		{x},
	}, nil)

	pruned := Prune(g)
	r.ElementsMatch([]order.NodeID{p, q, x}, pruned.Nodes())
	r.ElementsMatch([][2]order.NodeID{{p, q}, {q, x}}, pruned.Edges())
}

// TestPrune_Idempotent: pruning an already-pruned graph is a no-op.
func TestPrune_Idempotent(t *testing.T) {
	r := require.New(t)
	g := globaldag.FromAdjacency([][]order.NodeID{
		{p, q},
		{q, p},
	}, []order.NodeID{p})

	once := Prune(g)
	twice := Prune(once)
	r.ElementsMatch(once.Nodes(), twice.Nodes())
	r.ElementsMatch(once.Edges(), twice.Edges())
}

// TestPrune_SelfLoopDefensivelyTreatedAsCycle: §4.1 never produces a
// self-loop (an entry never conflicts with itself), but the pruner
// treats one defensively as a size-1 cycle.
func TestPrune_SelfLoopDefensivelyTreatedAsCycle(t *testing.T) {
	r := require.New(t)
	g := globaldag.FromAdjacency([][]order.NodeID{
		{p, p},
	}, nil)

	pruned := Prune(g)
	r.Empty(pruned.Nodes())
}

func TestPrune_SelfLoopPreservedWhenFixed(t *testing.T) {
	r := require.New(t)
	g := globaldag.FromAdjacency([][]order.NodeID{
		{p, p},
	}, []order.NodeID{p})

	pruned := Prune(g)
	r.ElementsMatch([]order.NodeID{p}, pruned.Nodes())
}
