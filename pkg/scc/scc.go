// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scc implements the SCC Pruner (C5): it removes cycles in the
// Global DAG composed entirely of pending (non-fixed) transactions,
// since such a cycle cannot be linearly ordered on the evidence
// available this round and must wait for a later round's
// missed-edge resolution.
package scc

import (
	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
)

// tarjan computes the strongly connected components of g using
// Tarjan's algorithm, a single-pass alternative to the original
// design's Kosaraju+reverse-DFS that needs no second graph traversal.
// Components are returned in the order Tarjan emits them: every
// component is emitted only after all components reachable from it
// have already been emitted (reverse topological order of the
// condensation).
func tarjan(g *globaldag.Graph) [][]order.NodeID {
	var (
		index   int
		indices = make(map[order.NodeID]int)
		lowlink = make(map[order.NodeID]int)
		onStack = make(map[order.NodeID]bool)
		stack   []order.NodeID
		out     [][]order.NodeID
	)

	var strongconnect func(v order.NodeID)
	strongconnect = func(v order.NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Neighbors(v) {
			if _, visited := indices[w]; !visited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []order.NodeID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			out = append(out, component)
		}
	}

	for _, v := range g.Nodes() {
		if _, visited := indices[v]; !visited {
			strongconnect(v)
		}
	}
	return out
}

// hasSelfLoop reports whether u has an edge to itself.
func hasSelfLoop(g *globaldag.Graph, u order.NodeID) bool {
	for _, v := range g.Neighbors(u) {
		if v == u {
			return true
		}
	}
	return false
}

// Prune removes every strongly connected component that represents an
// actual cycle (more than one node, or a single node with a
// defensively-handled self-loop — §4.1 never produces one) and is
// composed entirely of non-fixed nodes. Components containing at
// least one fixed node are preserved so a later missed-edge
// resolution can break the cycle; non-cyclic singleton components
// (the overwhelming majority of any batch) are always preserved, since
// a single node with no self-loop is never ambiguous to order. Prune
// is idempotent: running it again on its own output is a no-op.
func Prune(g *globaldag.Graph) *globaldag.Graph {
	fixed := g.Fixed()
	drop := make(map[order.NodeID]struct{})

	for _, component := range tarjan(g) {
		isCycle := len(component) > 1 || (len(component) == 1 && hasSelfLoop(g, component[0]))
		if !isCycle {
			continue
		}

		anyFixed := false
		for _, n := range component {
			if _, ok := fixed[n]; ok {
				anyFixed = true
				break
			}
		}
		if anyFixed {
			continue
		}

		for _, n := range component {
			drop[n] = struct{}{}
		}
	}

	if len(drop) == 0 {
		return g
	}

	var records [][]order.NodeID
	var fixedList []order.NodeID
	for _, n := range g.Nodes() {
		if _, dropped := drop[n]; dropped {
			continue
		}
		record := []order.NodeID{n}
		for _, v := range g.Neighbors(n) {
			if _, dropped := drop[v]; !dropped {
				record = append(record, v)
			}
		}
		records = append(records, record)
		if g.IsFixed(n) {
			fixedList = append(fixedList, n)
		}
	}

	return globaldag.FromAdjacency(records, fixedList)
}
