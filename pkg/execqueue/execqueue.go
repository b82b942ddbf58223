// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package execqueue implements the Execution Queue (C7): a strict FIFO
// of pruned global orders, each gated by the set of missed-edge pairs
// it was produced with. An entry is ready to execute only once every
// pair it was enqueued with has been resolved, and per invariant 6 no
// entry may execute before an earlier one still blocked — the queue
// never reorders around a stuck head, it only ever drains from the
// front.
package execqueue

import (
	"sync"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
)

// Entry is one round's pruned global order sitting in the queue,
// waiting for its missed edges to resolve.
type Entry struct {
	Digest     order.Digest
	Graph      *globaldag.Graph
	Unresolved map[order.EdgePair]struct{}
}

// Ready reports whether every missed edge this entry was enqueued with
// has since been resolved.
func (e *Entry) Ready() bool { return len(e.Unresolved) == 0 }

// Queue is the FIFO itself. Entries are appended at the back by
// Enqueue and removed from the front by DrainReady; OnEdgeResolved
// updates every entry referencing a pair without changing queue order.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a newly synthesized global order to the back of the
// queue, with the set of missed pairs blocking it. missed may be
// empty, in which case the entry is immediately ready.
func (q *Queue) Enqueue(digest order.Digest, g *globaldag.Graph, missed []order.EdgePair) *Entry {
	unresolved := make(map[order.EdgePair]struct{}, len(missed))
	for _, p := range missed {
		unresolved[p] = struct{}{}
	}
	e := &Entry{Digest: digest, Graph: g, Unresolved: unresolved}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return e
}

// OnEdgeResolved applies a missed-edge resolution to every queued
// entry that still references pair: the winning direction (from, to)
// is added to the entry's graph per §4.6, and pair is cleared from
// that entry's unresolved set. It does not drain the queue; callers
// poll DrainReady separately.
func (q *Queue) OnEdgeResolved(pair order.EdgePair, from, to order.NodeID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if _, blocked := e.Unresolved[pair]; !blocked {
			continue
		}
		e.Graph.AddEdge(from, to)
		delete(e.Unresolved, pair)
	}
}

// DrainReady removes and returns every entry from the front of the
// queue that is ready, stopping at the first entry that is still
// blocked (or when the queue empties). This is the strict-FIFO
// guarantee: a later, fully-resolved entry is never returned ahead of
// an earlier, still-blocked one.
func (q *Queue) DrainReady() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained []*Entry
	i := 0
	for ; i < len(q.entries); i++ {
		if !q.entries[i].Ready() {
			break
		}
		drained = append(drained, q.entries[i])
	}
	q.entries = q.entries[i:]
	return drained
}

// Len reports how many entries currently sit in the queue, ready or
// still blocked; drained entries are no longer counted.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Front returns the queue's head entry without removing it, or nil if
// the queue is empty. Useful for diagnostics and for callers that want
// to inspect why the queue is stalled.
func (q *Queue) Front() *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}
