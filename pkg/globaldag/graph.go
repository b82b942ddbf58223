// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package globaldag implements the Global-Order Aggregator (C4): it
// collects a quorum of peer local-order DAGs for a round, votes on
// node and edge admission, and synthesizes the Global DAG plus the
// round's missed-edge list.
package globaldag

import (
	"sort"

	"github.com/luxfi/fairdag/pkg/localdag"
	"github.com/luxfi/fairdag/pkg/order"
)

// Graph is the synthesized Global DAG: the admitted nodes and edges,
// plus which admitted nodes are "fixed" (observed with enough support
// to be considered committed). It may contain cycles before pruning
// (§4.4 operates on it next).
type Graph struct {
	local *localdag.Graph
	fixed map[order.NodeID]struct{}
}

// Nodes returns the admitted node ids.
func (g *Graph) Nodes() []order.NodeID { return g.local.Nodes() }

// Neighbors returns the admitted out-edges of u.
func (g *Graph) Neighbors(u order.NodeID) []order.NodeID { return g.local.Neighbors(u) }

// Edges enumerates every admitted (u, v) edge.
func (g *Graph) Edges() [][2]order.NodeID { return g.local.Edges() }

// IsFixed reports whether u was observed with enough support to be
// considered committed to the global order.
func (g *Graph) IsFixed(u order.NodeID) bool {
	_, ok := g.fixed[u]
	return ok
}

// Fixed returns the set of fixed node ids.
func (g *Graph) Fixed() map[order.NodeID]struct{} {
	out := make(map[order.NodeID]struct{}, len(g.fixed))
	for k := range g.fixed {
		out[k] = struct{}{}
	}
	return out
}

// Adjacency serializes the graph to the §6 wire adjacency-record
// shape.
func (g *Graph) Adjacency() [][]order.NodeID { return g.local.Adjacency() }

// AddEdge patches a missed-edge resolution into the graph, per §4.6's
// "apply resolved_edges to the stored DAG (add those directed
// edges)". It is a no-op if the edge is already present.
func (g *Graph) AddEdge(u, v order.NodeID) {
	for _, n := range g.local.Neighbors(u) {
		if n == v {
			return
		}
	}
	adj := g.local.Adjacency()
	adj = appendEdge(adj, u, v)
	g.local = localdag.FromAdjacency(adj)
}

func appendEdge(adj [][]order.NodeID, u, v order.NodeID) [][]order.NodeID {
	for i, record := range adj {
		if len(record) > 0 && record[0] == u {
			adj[i] = append(record, v)
			return adj
		}
	}
	return append(adj, []order.NodeID{u, v})
}

// FromAdjacency reconstructs a Graph from its wire adjacency records
// and fixed-node set, the inverse of Adjacency/Fixed.
func FromAdjacency(records [][]order.NodeID, fixed []order.NodeID) *Graph {
	fixedSet := make(map[order.NodeID]struct{}, len(fixed))
	for _, n := range fixed {
		fixedSet[n] = struct{}{}
	}
	return &Graph{local: localdag.FromAdjacency(records), fixed: fixedSet}
}

// InDegree computes the in-degree of every node in the graph, the
// input the Parallel Executor and the SCC Pruner both need.
func (g *Graph) InDegree() map[order.NodeID]int {
	deg := make(map[order.NodeID]int, len(g.Nodes()))
	for _, u := range g.Nodes() {
		if _, ok := deg[u]; !ok {
			deg[u] = 0
		}
	}
	for _, e := range g.Edges() {
		deg[e[1]]++
	}
	return deg
}

// sortedNodeIDs is a small helper used across this package and its
// tests to produce deterministic output.
func sortedNodeIDs(in map[order.NodeID]struct{}) []order.NodeID {
	out := make([]order.NodeID, 0, len(in))
	for n := range in {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
