// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package globaldag

import (
	"fmt"

	"github.com/luxfi/fairdag/pkg/localdag"
	"github.com/luxfi/fairdag/pkg/order"
)

// PeerID identifies the sender of a local-order DAG within the
// committee, for per-round deduplication.
type PeerID string

// Thresholds are the vote-admission knobs from §6: PendingThreshold
// admits a node/edge, FixedThreshold additionally marks a node
// committed. Invariant: FixedThreshold >= PendingThreshold.
type Thresholds struct {
	Pending float64
	Fixed   float64
}

// Validate enforces FixedThreshold >= PendingThreshold.
func (t Thresholds) Validate() error {
	if t.Fixed < t.Pending {
		return fmt.Errorf("globaldag: fixed threshold %.2f must be >= pending threshold %.2f", t.Fixed, t.Pending)
	}
	return nil
}

// Aggregator implements C4: it owns the per-round accumulator of peer
// local-order DAGs and, once a quorum is reached, synthesizes the
// Global DAG plus the missed-edge list. It owns its accumulator
// exclusively and resets it on round advance (§3 "Ownership").
type Aggregator struct {
	quorum     int
	thresholds Thresholds

	round   order.Round
	seen    map[PeerID]struct{}
	dags    []*localdag.Graph

	// lastEdgeCounts holds the raw per-direction vote counts from the
	// most recent Synthesize call, keyed by (u, v). It lets a caller
	// feed this round's observations into the Missed-Edge Manager's
	// cross-round counters (§4.5/S4) without recomputing the tally.
	lastEdgeCounts map[[2]order.NodeID]int
}

// New constructs an Aggregator for the given quorum size and vote
// thresholds.
func New(quorum int, thresholds Thresholds) (*Aggregator, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		quorum:     quorum,
		thresholds: thresholds,
		round:      1,
		seen:       make(map[PeerID]struct{}),
	}, nil
}

// AdvanceRound flushes the per-round accumulator. Per §5, any message
// tagged with a round other than current is dropped for aggregation
// purposes; AdvanceRound is how the owning task observes the new
// round (non-blockingly polled, per §9, by its caller).
func (a *Aggregator) AdvanceRound(round order.Round) {
	if round == a.round {
		return
	}
	a.round = round
	a.seen = make(map[PeerID]struct{})
	a.dags = nil
}

// Round reports the aggregator's current round.
func (a *Aggregator) Round() order.Round { return a.round }

// Submit offers a peer's local-order DAG for the given round. Batches
// tagged with a round other than the aggregator's current round are
// discarded for aggregation (§4.3/§7 "round mismatch"); a peer's
// second batch in the same round is ignored, the first received being
// canonical (§9's documented safe default for the undefined
// duplicate-batch case). Submit reports whether the batch was accepted
// and the accumulator now holds at least a quorum.
func (a *Aggregator) Submit(round order.Round, sender PeerID, dag *localdag.Graph) bool {
	if round != a.round {
		return false
	}
	if _, dup := a.seen[sender]; dup {
		return false
	}
	a.seen[sender] = struct{}{}
	a.dags = append(a.dags, dag)
	return len(a.dags) >= a.quorum
}

// Ready reports whether the accumulator currently holds a quorum of
// distinct local-order DAGs.
func (a *Aggregator) Ready() bool { return len(a.dags) >= a.quorum }

// Synthesize produces the Global DAG plus the round's missed-edge
// pairs from the local DAGs accumulated so far, per §4.3 steps 1-4. It
// neither freezes nor resets the accumulator: a later Submit in the
// same round is still accepted and counted by the next Synthesize, and
// Ready stays true; callers that want a fresh round call AdvanceRound.
func (a *Aggregator) Synthesize() (*Graph, []order.EdgePair) {
	nodeCounts := make(map[order.NodeID]int)
	edgeCounts := make(map[[2]order.NodeID]int)

	for _, dag := range a.dags {
		for _, n := range dag.Nodes() {
			nodeCounts[n]++
		}
		for _, e := range dag.Edges() {
			edgeCounts[e]++
			// Ensure the reverse direction has an entry so later
			// comparisons don't need a second lookup with a default.
			rev := [2]order.NodeID{e[1], e[0]}
			if _, ok := edgeCounts[rev]; !ok {
				edgeCounts[rev] = 0
			}
		}
	}

	fixed := make(map[order.NodeID]struct{})
	admittedNodes := make(map[order.NodeID]struct{})
	for node, count := range nodeCounts {
		c := float64(count)
		if c >= a.thresholds.Pending {
			admittedNodes[node] = struct{}{}
		}
		if c >= a.thresholds.Fixed {
			fixed[node] = struct{}{}
		}
	}

	adjacency := make(map[order.NodeID][]order.NodeID)
	for n := range admittedNodes {
		adjacency[n] = nil
	}

	// Decide each unordered pair exactly once, comparing both
	// directions together, so a direction that admits under rule 3
	// can never also fall into the missed branch via the reverse
	// direction's own iteration (§8 invariant 4: missed iff *neither*
	// direction passed rule 3).
	seenPair := make(map[order.EdgePair]struct{})
	var missed []order.EdgePair
	for pair := range edgeCounts {
		u, v := pair[0], pair[1]
		canonical := order.NewEdgePair(u, v)
		if _, done := seenPair[canonical]; done {
			continue
		}
		seenPair[canonical] = struct{}{}

		low, high := canonical.Low, canonical.High
		cLowHigh := edgeCounts[[2]order.NodeID{low, high}]
		cHighLow := edgeCounts[[2]order.NodeID{high, low}]

		switch {
		case float64(cLowHigh) >= a.thresholds.Pending && cLowHigh > cHighLow:
			adjacency[low] = append(adjacency[low], high)
		case float64(cHighLow) >= a.thresholds.Pending && cHighLow > cLowHigh:
			adjacency[high] = append(adjacency[high], low)
		case cLowHigh > 0 && cHighLow > 0 && float64(cLowHigh+cHighLow) >= a.thresholds.Pending:
			// A genuine tie/under-threshold pair where both directions
			// were actually observed but neither dominates.
			missed = append(missed, canonical)
		}
	}

	records := make([][]order.NodeID, 0, len(adjacency))
	for _, n := range sortedNodeIDs(admittedNodes) {
		record := append([]order.NodeID{n}, sortNodeIDs(adjacency[n])...)
		records = append(records, record)
	}

	a.lastEdgeCounts = edgeCounts
	return FromAdjacency(records, sortedNodeIDs(fixed)), missed
}

// EdgeCount reports this round's raw observation count for the
// directed pair (u, v), as tallied by the most recent Synthesize call.
// It is 0 if u->v was never observed or Synthesize has not run yet.
func (a *Aggregator) EdgeCount(u, v order.NodeID) int {
	return a.lastEdgeCounts[[2]order.NodeID{u, v}]
}

func sortNodeIDs(in []order.NodeID) []order.NodeID {
	out := append([]order.NodeID(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
