// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package localdag builds the per-batch conflict-dependency DAG (C2):
// given a sealed local order and a Conflict Oracle, it derives the
// minimal read-write dependency graph consistent with the sequential
// order the batch was received in.
package localdag

import (
	"errors"
	"sort"

	"github.com/luxfi/fairdag/pkg/oracle"
	"github.com/luxfi/fairdag/pkg/order"
)

// ErrDuplicateNode is an invariant violation: node ids must be unique
// within a batch.
var ErrDuplicateNode = errors.New("localdag: duplicate node id in local order")

// access records a prior transaction's kind of access to a key, kept
// in the order transactions were processed.
type access struct {
	node order.NodeID
	kind order.AccessKind
}

// Graph is the sealed, acyclic Local Order DAG for one batch: a set of
// nodes (the batch's node ids) and a set of directed edges (u -> v)
// meaning u must execute before v.
type Graph struct {
	nodes []order.NodeID
	out   map[order.NodeID][]order.NodeID
}

// Build constructs the Local Order DAG from an ordered batch and a
// Conflict Oracle, per §4.1: maintain a mapping from object key to the
// list of (earlier node id, access kind) that touched it; for each
// transaction in order, for every prior access sharing a key where not
// both accesses are reads, add an edge from the earlier node to the
// current one.
//
// The graph is acyclic by construction: edges only ever point from an
// earlier node in `order` to a later one.
func Build(localOrder []order.Entry, oc oracle.Oracle) (*Graph, error) {
	g := &Graph{
		nodes: make([]order.NodeID, 0, len(localOrder)),
		out:   make(map[order.NodeID][]order.NodeID),
	}

	seen := make(map[order.NodeID]struct{}, len(localOrder))
	byKey := make(map[order.ObjectKey][]access)

	for _, entry := range localOrder {
		if _, dup := seen[entry.Node]; dup {
			return nil, ErrDuplicateNode
		}
		seen[entry.Node] = struct{}{}
		g.nodes = append(g.nodes, entry.Node)
		if _, ok := g.out[entry.Node]; !ok {
			g.out[entry.Node] = nil
		}

		kind, keys, err := oc.Classify(entry.Tx)
		if err != nil {
			return nil, err
		}

		// linked records the earlier nodes already given an edge into
		// this entry, so a pair sharing several keys gets one edge and a
		// key listed twice never links the entry to itself.
		linked := make(map[order.NodeID]struct{})
		for _, key := range keys {
			for _, prior := range byKey[key] {
				if prior.node == entry.Node || !prior.kind.Conflicts(kind) {
					continue
				}
				if _, done := linked[prior.node]; done {
					continue
				}
				linked[prior.node] = struct{}{}
				g.out[prior.node] = append(g.out[prior.node], entry.Node)
			}
			byKey[key] = append(byKey[key], access{node: entry.Node, kind: kind})
		}
	}

	return g, nil
}

// Nodes returns the batch's node ids in local-order sequence.
func (g *Graph) Nodes() []order.NodeID {
	out := make([]order.NodeID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns the out-edges of node u, sorted for determinism.
func (g *Graph) Neighbors(u order.NodeID) []order.NodeID {
	edges := g.out[u]
	out := make([]order.NodeID, len(edges))
	copy(out, edges)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edges enumerates every (u, v) edge in the graph.
func (g *Graph) Edges() [][2]order.NodeID {
	var edges [][2]order.NodeID
	for _, u := range g.nodes {
		for _, v := range g.Neighbors(u) {
			edges = append(edges, [2]order.NodeID{u, v})
		}
	}
	return edges
}

// Adjacency serializes the graph into the wire adjacency-record shape
// from §6: one record per node, the node id followed by its sorted
// out-neighbors.
func (g *Graph) Adjacency() [][]order.NodeID {
	records := make([][]order.NodeID, 0, len(g.nodes))
	for _, u := range g.nodes {
		record := append([]order.NodeID{u}, g.Neighbors(u)...)
		records = append(records, record)
	}
	return records
}

// FromAdjacency reconstructs a Graph from its wire adjacency records,
// the inverse of Adjacency.
func FromAdjacency(records [][]order.NodeID) *Graph {
	g := &Graph{
		nodes: make([]order.NodeID, 0, len(records)),
		out:   make(map[order.NodeID][]order.NodeID, len(records)),
	}
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		u := record[0]
		g.nodes = append(g.nodes, u)
		g.out[u] = append(g.out[u], record[1:]...)
	}
	return g
}
