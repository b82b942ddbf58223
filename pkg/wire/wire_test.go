// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"bytes"
	"testing"

	"github.com/luxfi/fairdag/pkg/order"
	"github.com/stretchr/testify/require"
)

func TestBatchRoundTrip(t *testing.T) {
	r := require.New(t)
	batch := Batch{
		Adjacency: [][]order.NodeID{{0, 1}, {1}, {2}},
		Round:     42,
	}

	data, err := EncodeBatch(batch)
	r.NoError(err)

	decoded, err := Decode(data)
	r.NoError(err)

	got, ok := decoded.(*Batch)
	r.True(ok)
	r.Equal(batch, *got)
}

func TestGlobalOrderInfoRoundTrip(t *testing.T) {
	r := require.New(t)
	info := GlobalOrderInfo{
		Adjacency:   [][]order.NodeID{{0, 1}, {1}},
		MissedPairs: [][2]order.NodeID{{1, 2}},
	}

	data, err := EncodeGlobalOrderInfo(info)
	r.NoError(err)

	decoded, err := Decode(data)
	r.NoError(err)

	got, ok := decoded.(*GlobalOrderInfo)
	r.True(ok)
	r.Equal(info, *got)
}

func TestDecodeUnknownKind(t *testing.T) {
	r := require.New(t)
	raw, err := wrap(Kind(255), Batch{})
	r.NoError(err)

	_, err = Decode(raw)
	r.ErrorIs(err, ErrUnknownKind)
}

func TestDecodeMalformed(t *testing.T) {
	r := require.New(t)
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	r.Error(err)
}

func TestMessageFraming(t *testing.T) {
	r := require.New(t)
	body, err := EncodeBatch(Batch{Adjacency: [][]order.NodeID{{0}}, Round: 1})
	r.NoError(err)

	var buf bytes.Buffer
	r.NoError(WriteMessage(&buf, body))

	// A second message back-to-back must not corrupt framing.
	r.NoError(WriteMessage(&buf, body))

	got1, err := ReadMessage(&buf)
	r.NoError(err)
	r.Equal(body, got1)

	got2, err := ReadMessage(&buf)
	r.NoError(err)
	r.Equal(body, got2)
}
