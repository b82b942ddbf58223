// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"context"
	"sync"
	"testing"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(store.NewMemory())
}

// TestRun_RespectsEdgeOrder verifies invariant 7's ordering half: no
// node runs before every predecessor edge into it has completed.
func TestRun_RespectsEdgeOrder(t *testing.T) {
	r := require.New(t)
	st := newTestStore(t)
	r.NoError(st.PutTransaction(1, order.Transaction("payload-one-ok!!")))
	r.NoError(st.PutTransaction(2, order.Transaction("payload-two-ok!!")))
	r.NoError(st.PutTransaction(3, order.Transaction("payload-three-k!")))

	g := globaldag.FromAdjacency([][]order.NodeID{
		{1, 2},
		{2, 3},
		{3},
	}, nil)

	var mu sync.Mutex
	var finished []order.NodeID
	handle := func(_ context.Context, n order.NodeID, _ order.Transaction) error {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, n)
		return nil
	}

	ex := New(4, st)
	r.NoError(ex.Run(context.Background(), g, handle))
	r.Equal([]order.NodeID{1, 2, 3}, finished)
}

// TestRun_ExactlyOnce: every node is handled exactly once regardless
// of worker pool width.
func TestRun_ExactlyOnce(t *testing.T) {
	r := require.New(t)
	st := newTestStore(t)
	nodes := []order.NodeID{1, 2, 3, 4, 5, 6, 7, 8}
	records := make([][]order.NodeID, 0, len(nodes))
	for _, n := range nodes {
		r.NoError(st.PutTransaction(n, order.Transaction("payload-const-ok!")))
		records = append(records, []order.NodeID{n})
	}
	g := globaldag.FromAdjacency(records, nil)

	var mu sync.Mutex
	counts := make(map[order.NodeID]int)
	handle := func(_ context.Context, n order.NodeID, _ order.Transaction) error {
		mu.Lock()
		defer mu.Unlock()
		counts[n]++
		return nil
	}

	ex := New(3, st)
	r.NoError(ex.Run(context.Background(), g, handle))
	r.Len(counts, len(nodes))
	for _, n := range nodes {
		r.Equal(1, counts[n])
	}
}

// TestRun_StoreMissSkipsButCountsAsExecuted: §4.7 says a missing
// payload does not block the round — the handler still runs with a nil
// transaction, and downstream nodes proceed.
func TestRun_StoreMissSkipsButCountsAsExecuted(t *testing.T) {
	r := require.New(t)
	st := newTestStore(t)
	r.NoError(st.PutTransaction(2, order.Transaction("payload-two-ok!!")))
	// node 1's payload was never ingested locally.

	g := globaldag.FromAdjacency([][]order.NodeID{
		{1, 2},
		{2},
	}, nil)

	var mu sync.Mutex
	seen := make(map[order.NodeID]bool)
	handle := func(_ context.Context, n order.NodeID, tx order.Transaction) error {
		mu.Lock()
		defer mu.Unlock()
		seen[n] = tx != nil
		return nil
	}

	ex := New(2, st)
	r.NoError(ex.Run(context.Background(), g, handle))
	r.False(seen[1])
	r.True(seen[2])
}

func TestRun_EmptyGraph(t *testing.T) {
	r := require.New(t)
	st := newTestStore(t)
	g := globaldag.FromAdjacency(nil, nil)
	ex := New(2, st)
	r.NoError(ex.Run(context.Background(), g, func(context.Context, order.NodeID, order.Transaction) error {
		return nil
	}))
}
