// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the on-wire tagged-union envelope from §6:
// Batch, GlobalOrderInfo, and GlobalOrder messages, length-delimited
// and CBOR-encoded so the discriminant and payload travel together in
// one framed write/read.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/fairdag/pkg/order"
)

// Kind discriminates the tagged union of on-wire messages.
type Kind uint8

const (
	// KindBatch carries a sealed local order DAG tagged with its round.
	KindBatch Kind = iota + 1
	// KindGlobalOrderInfo carries an aggregated global DAG plus the set
	// of edges that missed quorum in this round.
	KindGlobalOrderInfo
	// KindGlobalOrder carries a pruned, execution-ready global DAG.
	KindGlobalOrder
)

// ErrUnknownKind is returned when a discriminant does not match any
// known message kind — per §9 "reject unknown discriminants".
var ErrUnknownKind = errors.New("wire: unknown message discriminant")

// Batch is the Batch Maker's sealed output: the local order DAG's
// adjacency records plus the round it was sealed in.
type Batch struct {
	Adjacency [][]order.NodeID
	Round     order.Round
}

// GlobalOrderInfo is the Global-Order Aggregator's output: the
// admitted global DAG plus the pairs that missed quorum this round.
type GlobalOrderInfo struct {
	Adjacency   [][]order.NodeID
	MissedPairs [][2]order.NodeID
}

// GlobalOrder is a pruned, missed-edge-patched global DAG ready for
// execution.
type GlobalOrder struct {
	Adjacency [][]order.NodeID
}

// Envelope is the tagged-union container every on-wire message travels
// in.
type Envelope struct {
	Kind    Kind
	Payload cbor.RawMessage
}

func wrap(kind Kind, v interface{}) ([]byte, error) {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal payload: %w", err)
	}
	return cbor.Marshal(Envelope{Kind: kind, Payload: payload})
}

// EncodeBatch serializes a Batch message.
func EncodeBatch(b Batch) ([]byte, error) { return wrap(KindBatch, b) }

// EncodeGlobalOrderInfo serializes a GlobalOrderInfo message.
func EncodeGlobalOrderInfo(g GlobalOrderInfo) ([]byte, error) {
	return wrap(KindGlobalOrderInfo, g)
}

// EncodeGlobalOrder serializes a GlobalOrder message.
func EncodeGlobalOrder(g GlobalOrder) ([]byte, error) { return wrap(KindGlobalOrder, g) }

// Decode inspects the envelope discriminant and returns the
// appropriately typed payload as one of *Batch, *GlobalOrderInfo, or
// *GlobalOrder.
func Decode(data []byte) (interface{}, error) {
	var env Envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: malformed envelope: %w", err)
	}

	switch env.Kind {
	case KindBatch:
		var b Batch
		if err := cbor.Unmarshal(env.Payload, &b); err != nil {
			return nil, fmt.Errorf("wire: malformed batch payload: %w", err)
		}
		return &b, nil
	case KindGlobalOrderInfo:
		var g GlobalOrderInfo
		if err := cbor.Unmarshal(env.Payload, &g); err != nil {
			return nil, fmt.Errorf("wire: malformed global order info payload: %w", err)
		}
		return &g, nil
	case KindGlobalOrder:
		var g GlobalOrder
		if err := cbor.Unmarshal(env.Payload, &g); err != nil {
			return nil, fmt.Errorf("wire: malformed global order payload: %w", err)
		}
		return &g, nil
	default:
		return nil, ErrUnknownKind
	}
}

// WriteMessage writes a 4-byte big-endian length prefix followed by
// the already-encoded message body, giving the length-delimited
// framing §6 requires over a stream transport.
func WriteMessage(w io.Writer, body []byte) error {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ReadMessage reads one length-delimited message body from r.
func ReadMessage(r io.Reader) ([]byte, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
