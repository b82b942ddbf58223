// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package execqueue

import (
	"testing"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/stretchr/testify/require"
)

func digest(b byte) order.Digest {
	var d order.Digest
	d[0] = b
	return d
}

// TestQueue_S6_StrictFIFO: a later entry with no missed edges must not
// execute before an earlier entry that is still blocked.
func TestQueue_S6_StrictFIFO(t *testing.T) {
	r := require.New(t)
	q := New()

	blocked := order.NewEdgePair(1, 2)
	g1 := globaldag.FromAdjacency([][]order.NodeID{{1}, {2}}, nil)
	q.Enqueue(digest(1), g1, []order.EdgePair{blocked})

	g2 := globaldag.FromAdjacency([][]order.NodeID{{3}}, nil)
	q.Enqueue(digest(2), g2, nil) // fully ready on arrival

	drained := q.DrainReady()
	r.Empty(drained, "second entry must not drain while the first is still blocked")
	r.Equal(2, q.Len())

	q.OnEdgeResolved(blocked, 1, 2)
	drained = q.DrainReady()
	r.Len(drained, 2)
	r.Equal(digest(1), drained[0].Digest)
	r.Equal(digest(2), drained[1].Digest)
	r.Equal(0, q.Len())
}

// TestQueue_S4_MissedEdgeResolutionUnblocks: resolving the last
// outstanding pair on the head entry makes it drainable.
func TestQueue_S4_MissedEdgeResolutionUnblocks(t *testing.T) {
	r := require.New(t)
	q := New()

	pair := order.NewEdgePair(5, 6)
	g := globaldag.FromAdjacency([][]order.NodeID{{5}, {6}}, nil)
	e := q.Enqueue(digest(9), g, []order.EdgePair{pair})

	r.False(e.Ready())
	r.Empty(q.DrainReady())

	q.OnEdgeResolved(pair, 5, 6)
	r.True(e.Ready())
	r.ElementsMatch([][2]order.NodeID{{5, 6}}, e.Graph.Edges())

	drained := q.DrainReady()
	r.Len(drained, 1)
	r.Equal(digest(9), drained[0].Digest)
}

func TestQueue_PartialResolutionLeavesEntryBlocked(t *testing.T) {
	r := require.New(t)
	q := New()

	p1 := order.NewEdgePair(1, 2)
	p2 := order.NewEdgePair(3, 4)
	g := globaldag.FromAdjacency([][]order.NodeID{{1}, {2}, {3}, {4}}, nil)
	q.Enqueue(digest(1), g, []order.EdgePair{p1, p2})

	q.OnEdgeResolved(p1, 1, 2)
	r.Empty(q.DrainReady())

	q.OnEdgeResolved(p2, 4, 3)
	r.Len(q.DrainReady(), 1)
}

func TestQueue_OnEdgeResolvedIgnoresUnreferencedPair(t *testing.T) {
	r := require.New(t)
	q := New()

	tracked := order.NewEdgePair(1, 2)
	g := globaldag.FromAdjacency([][]order.NodeID{{1}, {2}}, nil)
	q.Enqueue(digest(1), g, []order.EdgePair{tracked})

	q.OnEdgeResolved(order.NewEdgePair(8, 9), 8, 9)
	r.Empty(q.DrainReady())
	r.Equal(1, q.Len())
}

func TestQueue_FrontAndLenOnEmptyQueue(t *testing.T) {
	r := require.New(t)
	q := New()
	r.Nil(q.Front())
	r.Equal(0, q.Len())
	r.Empty(q.DrainReady())
}
