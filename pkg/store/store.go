// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store implements the persisted key-value surface from §6:
// a 32-byte digest keyed to GlobalOrderInfo bytes, a 2-byte node id
// keyed to a transaction payload, and a missing-edge envelope keyed to
// an 8-byte little-endian observation count. The store interface
// itself is an external collaborator per §1 ("persistent key-value
// store interface" is out of scope as a generic abstraction); this
// package fixes the three key families the ordering pipeline needs and
// ships one production backend (BadgerDB, via luxfi/database) plus an
// in-memory backend for tests.
package store

import (
	"encoding/binary"
	"errors"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/fairdag/pkg/order"
)

// ErrNotFound is returned when a key is absent — the "store miss"
// error kind from §7, handled by callers rather than propagated as a
// fatal error.
var ErrNotFound = errors.New("store: key not found")

// KV is the minimal byte-oriented key-value surface the ordering
// pipeline needs from a persistent store.
type KV interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close() error
}

// key family prefixes, so the three key families in §6 can share one
// underlying keyspace without colliding.
const (
	prefixGlobalOrder byte = 'g'
	prefixTx          byte = 't'
	prefixMissingEdge byte = 'm'
)

// Store wraps a KV backend with the typed accessors the ordering
// pipeline's components (Missed-Edge Manager, Batch Maker ingress,
// Parallel Executor, and the ordering loop's global-order persistence)
// use.
type Store struct {
	kv KV
}

// New wraps an existing KV backend.
func New(kv KV) *Store { return &Store{kv: kv} }

// Open constructs a production Store backed by BadgerDB at path, or an
// in-memory store when path is empty.
func Open(path string) (*Store, error) {
	if path == "" {
		return New(NewMemory()), nil
	}
	db, err := badgerdb.New(path, nil, "", nil)
	if err != nil {
		return nil, err
	}
	return New(dbAdapter{db}), nil
}

// dbAdapter narrows luxfi/database's richer Database interface down to
// the KV surface this package needs.
type dbAdapter struct{ db database.Database }

func (a dbAdapter) Put(k, v []byte) error { return a.db.Put(k, v) }

func (a dbAdapter) Get(k []byte) ([]byte, error) {
	v, err := a.db.Get(k)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (a dbAdapter) Has(k []byte) (bool, error) { return a.db.Has(k) }
func (a dbAdapter) Delete(k []byte) error      { return a.db.Delete(k) }
func (a dbAdapter) Close() error               { return a.db.Close() }

func (s *Store) Close() error { return s.kv.Close() }

// --- global order digest -> GlobalOrderInfo bytes ---

func globalOrderKey(digest order.Digest) []byte {
	key := make([]byte, 0, 1+len(digest))
	key = append(key, prefixGlobalOrder)
	return append(key, digest[:]...)
}

// PutGlobalOrder persists the already-serialized GlobalOrderInfo
// message under its digest.
func (s *Store) PutGlobalOrder(digest order.Digest, serialized []byte) error {
	return s.kv.Put(globalOrderKey(digest), serialized)
}

// GetGlobalOrder retrieves a serialized GlobalOrderInfo by digest.
func (s *Store) GetGlobalOrder(digest order.Digest) ([]byte, error) {
	return s.kv.Get(globalOrderKey(digest))
}

// --- node id -> transaction payload ---

func txKey(node order.NodeID) []byte {
	key := make([]byte, 3)
	key[0] = prefixTx
	binary.BigEndian.PutUint16(key[1:], node)
	return key
}

// PutTransaction stores the ingress-populated payload for a node id.
func (s *Store) PutTransaction(node order.NodeID, tx order.Transaction) error {
	return s.kv.Put(txKey(node), tx)
}

// GetTransaction retrieves the payload for a node id.
func (s *Store) GetTransaction(node order.NodeID) (order.Transaction, error) {
	v, err := s.kv.Get(txKey(node))
	if err != nil {
		return nil, err
	}
	return order.Transaction(v), nil
}

// --- missing-edge envelope -> 8-byte LE count ---

func missingEdgeKey(u, v order.NodeID) []byte {
	key := make([]byte, 5)
	key[0] = prefixMissingEdge
	binary.BigEndian.PutUint16(key[1:3], u)
	binary.BigEndian.PutUint16(key[3:5], v)
	return key
}

// PutMissingEdgeCount stores the directed observation counter for
// (u, v).
func (s *Store) PutMissingEdgeCount(u, v order.NodeID, count uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], count)
	return s.kv.Put(missingEdgeKey(u, v), buf[:])
}

// GetMissingEdgeCount retrieves the directed observation counter for
// (u, v), returning 0 if absent.
func (s *Store) GetMissingEdgeCount(u, v order.NodeID) (uint64, error) {
	raw, err := s.kv.Get(missingEdgeKey(u, v))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(raw), nil
}
