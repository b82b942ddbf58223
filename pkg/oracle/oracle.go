// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle defines the Conflict Oracle collaborator (C1): the
// external, pure mapping from a transaction blob to the access kind
// and object-key set it touches. The oracle itself — in particular
// any benchmark transaction generator — is explicitly out of scope
// (§1); this package only fixes the interface every other component
// programs against, plus a small generic reference implementation used
// by tests and by the standalone daemon.
package oracle

import "github.com/luxfi/fairdag/pkg/order"

// Oracle maps a transaction to the object keys it accesses and the
// kind of access performed on all of them. A real deployment plugs in
// a domain-specific oracle (e.g. a benchmark's transaction decoder);
// this package never assumes one.
type Oracle interface {
	// Classify returns the access kind and the set of object keys the
	// transaction touches. An oracle that cannot parse tx should
	// return a non-nil error rather than guessing.
	Classify(tx order.Transaction) (order.AccessKind, []order.ObjectKey, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(tx order.Transaction) (order.AccessKind, []order.ObjectKey, error)

func (f Func) Classify(tx order.Transaction) (order.AccessKind, []order.ObjectKey, error) {
	return f(tx)
}

// ErrMalformed is returned by Generic when a transaction violates the
// §6 wire-level size floor.
var ErrMalformed = order.ErrTransactionTooShort

// Generic is a default, domain-agnostic reference oracle. It derives
// the access kind from the low bit of the opcode (byte 1) — odd
// opcodes write, even opcodes read — and reads one or more 4-byte
// big-endian object keys from the payload that follows the 6
// reserved sample-id bytes; when that payload is shorter than 4 bytes,
// the opcode itself is the single key. It exists only so the pipeline has a
// runnable oracle for tests and standalone operation; it is not a
// benchmark transaction generator (that generator is explicitly out of
// scope per §1).
func Generic() Oracle {
	return Func(classifyGeneric)
}

func classifyGeneric(tx order.Transaction) (order.AccessKind, []order.ObjectKey, error) {
	if err := tx.Validate(); err != nil {
		return 0, nil, err
	}

	opcode := tx[1]
	kind := order.AccessRead
	if opcode%2 == 1 {
		kind = order.AccessWrite
	}

	payload := tx[8:]
	nKeys := len(payload) / 4
	if nKeys == 0 {
		nKeys = 1
	}
	keys := make([]order.ObjectKey, 0, nKeys)
	for i := 0; i+4 <= len(payload); i += 4 {
		key := order.ObjectKey(payload[i])<<24 | order.ObjectKey(payload[i+1])<<16 |
			order.ObjectKey(payload[i+2])<<8 | order.ObjectKey(payload[i+3])
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		// Not enough payload for a full key word; fall back to the
		// opcode itself so every transaction still touches something.
		keys = append(keys, order.ObjectKey(opcode))
	}
	return kind, keys, nil
}
