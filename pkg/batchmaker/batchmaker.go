// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package batchmaker implements the Batch Maker (C3): it accumulates
// ingested transactions, assigns them dense per-batch node ids, seals
// a batch once a byte-size or delay threshold fires, builds that
// batch's Local Order DAG, and hands the sealed batch both to the
// network (broadcast to the committee) and to this node's own
// Global-Order Aggregator contribution.
package batchmaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/localdag"
	"github.com/luxfi/fairdag/pkg/oracle"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/store"
	"github.com/luxfi/fairdag/pkg/wire"
)

// ErrBatchTooLarge is returned when a single transaction alone already
// exceeds the configured batch size — it can never be sealed.
var ErrBatchTooLarge = errors.New("batchmaker: transaction larger than max batch size")

// Broadcaster publishes a sealed batch's wire encoding to the rest of
// the committee (the A1 peer transport).
type Broadcaster interface {
	BroadcastBatch(round order.Round, encoded []byte) error
}

// LocalSink hands this node's own sealed local-order DAG to its
// Global-Order Aggregator contribution, bypassing the network for the
// node's own vote.
type LocalSink interface {
	Submit(round order.Round, sender globaldag.PeerID, dag *localdag.Graph) bool
}

// Sampler observes a sample transaction's telemetry id as a batch is
// sealed. Per §4.2, the sample-tx id carries no consensus meaning —
// it exists purely for benchmark telemetry, so this collaborator sits
// outside the consensus path the same way Broadcaster/LocalSink do.
type Sampler interface {
	ObserveSample(node order.NodeID, sampleID uint64)
}

// Config holds the Batch Maker's sealing policy.
type Config struct {
	Self          globaldag.PeerID
	MaxBatchBytes int
	MaxDelay      time.Duration
}

// Validate checks the sealing policy is usable.
func (c Config) Validate() error {
	if c.MaxBatchBytes <= 0 {
		return fmt.Errorf("batchmaker: max batch bytes must be positive, got %d", c.MaxBatchBytes)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("batchmaker: max delay must be positive, got %s", c.MaxDelay)
	}
	return nil
}

// Maker accumulates transactions for the current round and seals them
// into a Batch once the byte or delay threshold fires.
type Maker struct {
	mu sync.Mutex

	cfg         Config
	oracle      oracle.Oracle
	store       *store.Store
	broadcaster Broadcaster
	sink        LocalSink
	sampler     Sampler

	nextNode     order.NodeID
	pending      []order.Entry
	pendingBytes int
}

// New constructs a Maker. sampler may be nil, in which case sealing
// never extracts sample-tx telemetry ids.
func New(cfg Config, oc oracle.Oracle, st *store.Store, b Broadcaster, sink LocalSink, sampler Sampler) (*Maker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Maker{cfg: cfg, oracle: oc, store: st, broadcaster: b, sink: sink, sampler: sampler}, nil
}

// Add ingests a transaction: it is validated, persisted to the store
// under a freshly assigned node id, and appended to the pending batch.
// If the byte threshold is now crossed, Add seals and broadcasts the
// batch for round before returning.
func (m *Maker) Add(round order.Round, tx order.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if len(tx) > m.cfg.MaxBatchBytes {
		return ErrBatchTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.nextNode
	m.nextNode++
	if err := m.store.PutTransaction(node, tx); err != nil {
		return err
	}

	m.pending = append(m.pending, order.Entry{Node: node, Tx: tx})
	m.pendingBytes += len(tx)

	if m.pendingBytes >= m.cfg.MaxBatchBytes {
		return m.sealLocked(round)
	}
	return nil
}

// PendingBytes reports the accumulated size of the not-yet-sealed
// batch.
func (m *Maker) PendingBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingBytes
}

// PendingCount reports how many transactions the not-yet-sealed batch
// holds.
func (m *Maker) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush forces a seal of whatever is currently pending for round, even
// if under the byte threshold — the delay-threshold path. It is a
// no-op when nothing is pending.
func (m *Maker) Flush(round order.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil
	}
	return m.sealLocked(round)
}

// sealLocked builds the pending entries' Local Order DAG, broadcasts
// the sealed batch, submits this node's own vote to the local
// aggregator sink, reports any sample-tx telemetry ids, and resets the
// accumulator, so the next batch's node ids start again at 0. Caller
// must hold mu.
func (m *Maker) sealLocked(round order.Round) error {
	dag, err := localdag.Build(m.pending, m.oracle)
	if err != nil {
		return err
	}

	encoded, err := wire.EncodeBatch(wire.Batch{Adjacency: dag.Adjacency(), Round: round})
	if err != nil {
		return err
	}

	if err := m.broadcaster.BroadcastBatch(round, encoded); err != nil {
		return err
	}
	m.sink.Submit(round, m.cfg.Self, dag)
	m.reportSamples()

	m.pending = nil
	m.pendingBytes = 0
	m.nextNode = 0
	return nil
}

// reportSamples extracts the telemetry id from every sample
// transaction in the batch just sealed and hands it to the configured
// Sampler, a no-op if none was configured. Per §4.2 these ids carry no
// consensus meaning — they're reported purely for benchmark telemetry,
// after the batch has already been broadcast and voted locally.
func (m *Maker) reportSamples() {
	if m.sampler == nil {
		return
	}
	for _, entry := range m.pending {
		if id, ok := entry.Tx.SampleID(); ok {
			m.sampler.ObserveSample(entry.Node, id)
		}
	}
}

// Run drives the delay-threshold path: it seals whatever is pending
// every cfg.MaxDelay, tagged with the round currentRound reports at
// fire time. Run blocks until ctx is canceled.
func (m *Maker) Run(ctx context.Context, currentRound func() order.Round) error {
	ticker := time.NewTicker(m.cfg.MaxDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(currentRound()); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
