// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package globaldag

import (
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/wire"
)

// Serialize builds the wire GlobalOrderInfo message for g and missed,
// and returns both the encoded bytes and their digest — "32 bytes of
// SHA-512" per §4.3 — which becomes the global-order identifier used
// as the store key and the Execution Queue entry's reference.
func Serialize(g *Graph, missed []order.EdgePair) (encoded []byte, digest order.Digest, err error) {
	pairs := make([][2]order.NodeID, len(missed))
	for i, p := range missed {
		pairs[i] = [2]order.NodeID{p.Low, p.High}
	}

	info := wire.GlobalOrderInfo{
		Adjacency:   g.Adjacency(),
		MissedPairs: pairs,
	}

	encoded, err = wire.EncodeGlobalOrderInfo(info)
	if err != nil {
		return nil, order.Digest{}, err
	}
	return encoded, order.ComputeDigest(encoded), nil
}
