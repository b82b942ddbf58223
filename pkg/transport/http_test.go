// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestHTTP_BroadcastDeliversToPeerHandler(t *testing.T) {
	r := require.New(t)

	var (
		mu       sync.Mutex
		received []globaldag.PeerID
	)
	receiver := NewHTTP("peer-b")
	srv := httptest.NewServer(receiver.Handler(func(sender globaldag.PeerID, msg interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, sender)
		batch, ok := msg.(*wire.Batch)
		r.True(ok)
		r.Equal(order.Round(3), batch.Round)
		return nil
	}))
	defer srv.Close()

	sender := NewHTTP("peer-a")
	sender.AddPeer("peer-b", srv.URL)

	encoded, err := wire.EncodeBatch(wire.Batch{Round: 3, Adjacency: [][]order.NodeID{{1}}})
	r.NoError(err)

	r.NoError(sender.BroadcastBatch(3, encoded))

	mu.Lock()
	defer mu.Unlock()
	r.Equal([]globaldag.PeerID{"peer-a"}, received)
}

func TestHTTP_BroadcastWithNoPeersIsNoop(t *testing.T) {
	r := require.New(t)
	sender := NewHTTP("peer-a")
	r.NoError(sender.BroadcastBatch(1, []byte("anything")))
}

func TestHTTP_BroadcastReportsErrorWhenAllPeersFail(t *testing.T) {
	r := require.New(t)
	sender := NewHTTP("peer-a")
	sender.AddPeer("peer-b", "http://127.0.0.1:0")

	err := sender.BroadcastBatch(1, []byte("x"))
	r.Error(err)
}

func TestHTTP_AddAndRemovePeer(t *testing.T) {
	r := require.New(t)
	h := NewHTTP("peer-a")
	h.AddPeer("peer-b", "http://example.invalid")
	r.ElementsMatch([]globaldag.PeerID{"peer-b"}, h.Peers())
	h.RemovePeer("peer-b")
	r.Empty(h.Peers())
}
