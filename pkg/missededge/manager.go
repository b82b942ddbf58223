// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package missededge implements the Missed-Edge Manager (C6): a
// symmetric table of (u,v) pairs that lacked quorum in some round,
// each direction carrying its own observation counter, so a later
// round's evidence can resolve the pair. The counters are persisted in
// the store; the set of open pairs is held in memory only and starts
// empty after a restart.
package missededge

import (
	"sync"

	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/store"
)

// Manager tracks missed edges across rounds. Per §4.5 and §5, all
// operations are mutually exclusive on a single coarse lock — pair
// throughput here is bounded by network quorum latency, not by lock
// contention.
type Manager struct {
	mu              sync.Mutex
	store           *store.Store
	quorumThreshold uint64

	// membership records which unordered pairs are currently tracked
	// as missing. It lives only in memory; the store holds the counters.
	membership map[order.EdgePair]struct{}
}

// New constructs a Manager backed by store, resolving a direction once
// its observation counter reaches quorumThreshold.
func New(st *store.Store, quorumThreshold uint64) *Manager {
	return &Manager{
		store:           st,
		quorumThreshold: quorumThreshold,
		membership:      make(map[order.EdgePair]struct{}),
	}
}

// AddMissing records {u,v} as an unresolved pair, initializing both
// directions' counters to 0 if they are not already tracked. Per §4.5,
// membership is symmetric: both (u,v) and (v,u) become known.
func (m *Manager) AddMissing(u, v order.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := order.NewEdgePair(u, v)
	if _, known := m.membership[pair]; known {
		return nil
	}

	if _, err := m.store.GetMissingEdgeCount(u, v); err != nil {
		return err
	}
	if err := m.store.PutMissingEdgeCount(u, v, 0); err != nil {
		return err
	}
	if err := m.store.PutMissingEdgeCount(v, u, 0); err != nil {
		return err
	}
	m.membership[pair] = struct{}{}
	return nil
}

// IsMissing reports whether {u,v} is currently tracked as an
// unresolved pair. Symmetric: IsMissing(u,v) == IsMissing(v,u).
func (m *Manager) IsMissing(u, v order.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, known := m.membership[order.NewEdgePair(u, v)]
	return known
}

// ObserveEdge increments the (u,v) direction's counter by delta when
// {u,v} is a known missing pair, and reports whether that direction
// just crossed the quorum threshold (became "resolved"). Counters are
// monotonically non-decreasing; resolution is asymmetric — only the
// direction observed is advanced.
func (m *Manager) ObserveEdge(u, v order.NodeID, delta uint64) (resolved bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := order.NewEdgePair(u, v)
	if _, known := m.membership[pair]; !known {
		return false, nil
	}

	count, err := m.store.GetMissingEdgeCount(u, v)
	if err != nil {
		return false, err
	}
	count += delta
	if err := m.store.PutMissingEdgeCount(u, v, count); err != nil {
		return false, err
	}

	if count >= m.quorumThreshold {
		delete(m.membership, pair)
		return true, nil
	}
	return false, nil
}

// Resolve marks {u,v} resolved in the winning direction (from, to)
// without requiring the counter itself to have crossed the threshold
// here — for a caller that has already settled the winning direction
// itself and only needs the manager's bookkeeping updated. Safe to call
// even if the
// pair was never tracked as missing.
func (m *Manager) Resolve(from, to order.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.membership, order.NewEdgePair(from, to))
}

// Pairs returns a snapshot of every pair currently tracked as
// unresolved, for callers (the per-round ordering loop) that need to
// feed fresh observations into each one without a store scan.
func (m *Manager) Pairs() []order.EdgePair {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.EdgePair, 0, len(m.membership))
	for p := range m.membership {
		out = append(out, p)
	}
	return out
}

// Counts returns the current (u,v) and (v,u) observation counters,
// primarily for tests and diagnostics.
func (m *Manager) Counts(u, v order.NodeID) (forward, reverse uint64, err error) {
	forward, err = m.store.GetMissingEdgeCount(u, v)
	if err != nil {
		return 0, 0, err
	}
	reverse, err = m.store.GetMissingEdgeCount(v, u)
	if err != nil {
		return 0, 0, err
	}
	return forward, reverse, nil
}
