// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package missededge

import (
	"testing"

	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/store"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, quorum uint64) *Manager {
	t.Helper()
	return New(store.New(store.NewMemory()), quorum)
}

func TestManager_MembershipIsSymmetric(t *testing.T) {
	r := require.New(t)
	m := newTestManager(t, 4)

	r.NoError(m.AddMissing(5, 9))
	r.True(m.IsMissing(5, 9))
	r.True(m.IsMissing(9, 5))
}

func TestManager_ObserveEdgeIgnoresUntrackedPair(t *testing.T) {
	r := require.New(t)
	m := newTestManager(t, 4)

	resolved, err := m.ObserveEdge(1, 2, 5)
	r.NoError(err)
	r.False(resolved)
}

// TestManager_CountersMonotonicAndAsymmetricResolution is invariant 5
// from §8 plus the S4 resolution scenario: counters never decrease,
// and the first direction to cross quorum resolves the pair.
func TestManager_CountersMonotonicAndAsymmetricResolution(t *testing.T) {
	r := require.New(t)
	m := newTestManager(t, 4)

	r.NoError(m.AddMissing(2, 3))

	resolved, err := m.ObserveEdge(2, 3, 2)
	r.NoError(err)
	r.False(resolved)

	fwd, rev, err := m.Counts(2, 3)
	r.NoError(err)
	r.Equal(uint64(2), fwd)
	r.Zero(rev)

	// A later round contributes two more observations of (2 -> 3),
	// matching the S4 scenario's "count reaches 4".
	resolved, err = m.ObserveEdge(2, 3, 2)
	r.NoError(err)
	r.True(resolved)
	r.False(m.IsMissing(2, 3))

	fwd, _, err = m.Counts(2, 3)
	r.NoError(err)
	r.Equal(uint64(4), fwd)
}

// TestManager_PairsSnapshotsTrackedPairs backs the per-round ordering
// loop's feedback path (§4.5/S4): it needs to enumerate every pair
// still open so it can feed fresh vote counts into each one without a
// store scan.
func TestManager_PairsSnapshotsTrackedPairs(t *testing.T) {
	r := require.New(t)
	m := newTestManager(t, 4)

	r.Empty(m.Pairs())

	r.NoError(m.AddMissing(2, 3))
	r.NoError(m.AddMissing(7, 9))
	r.ElementsMatch([]order.EdgePair{order.NewEdgePair(2, 3), order.NewEdgePair(7, 9)}, m.Pairs())

	resolved, err := m.ObserveEdge(2, 3, 4)
	r.NoError(err)
	r.True(resolved)
	r.Equal([]order.EdgePair{order.NewEdgePair(7, 9)}, m.Pairs())
}

func TestManager_ReverseDirectionDoesNotResolveForward(t *testing.T) {
	r := require.New(t)
	m := newTestManager(t, 3)
	r.NoError(m.AddMissing(1, 2))

	resolved, err := m.ObserveEdge(2, 1, 10)
	r.NoError(err)
	r.True(resolved)
	r.False(m.IsMissing(1, 2))

	fwd, rev, err := m.Counts(1, 2)
	r.NoError(err)
	r.Zero(fwd)
	r.Equal(uint64(10), rev)
}
