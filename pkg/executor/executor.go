// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor implements the Parallel Executor (C8): given a
// pruned, fully-resolved global order, it walks the DAG by in-degree
// with a bounded worker pool, executing every node exactly once and
// never starting a node before all of its predecessors have finished.
package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/store"
)

// Handler applies one transaction's effects. tx is nil when the
// transaction payload was missing from the store (§4.7: a store miss
// still counts as executed, so the round makes forward progress
// instead of deadlocking on a peer's pruned history).
type Handler func(ctx context.Context, node order.NodeID, tx order.Transaction) error

// Executor runs Handler over a global order's nodes respecting edge
// order, using a fixed-size worker pool.
type Executor struct {
	mu      sync.Mutex
	workers int
	store   *store.Store
}

// New constructs an Executor with the given worker pool size. workers
// is clamped to at least 1.
func New(workers int, st *store.Store) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{workers: workers, store: st}
}

// Run walks g by in-degree: a node becomes eligible only once every
// predecessor edge into it has completed, and eligible nodes are
// handed to the worker pool in no particular order among themselves.
// Every node is handled exactly once (invariant 7); the first
// non-store-miss handler error cancels the remaining walk and is
// returned once all in-flight work drains.
func (e *Executor) Run(ctx context.Context, g *globaldag.Graph, handle Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inDegree := g.InDegree()
	remaining := make(map[order.NodeID]int, len(inDegree))
	for n, d := range inDegree {
		remaining[n] = d
	}

	ready := make(chan order.NodeID, len(remaining))
	for n, d := range remaining {
		if d == 0 {
			ready <- n
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		done     int
		total    = len(remaining)
	)

	advance := func(n order.NodeID) {
		mu.Lock()
		defer mu.Unlock()
		done++
		for _, v := range g.Neighbors(n) {
			remaining[v]--
			if remaining[v] == 0 {
				ready <- v
			}
		}
		if done == total {
			close(ready)
		}
	}

	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	if total == 0 {
		return nil
	}

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case n, ok := <-ready:
					if !ok {
						return
					}
					if err := e.runOne(ctx, n, handle); err != nil {
						recordErr(err)
					}
					advance(n)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// runOne fetches the node's transaction payload and invokes handle,
// treating a store miss as a skip rather than a failure.
func (e *Executor) runOne(ctx context.Context, n order.NodeID, handle Handler) error {
	tx, err := e.store.GetTransaction(n)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return handle(ctx, n, nil)
		}
		return err
	}
	return handle(ctx, n, tx)
}
