// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport implements the Peer Transport (A1) reference
// collaborator: a committee member broadcasts its sealed batches to
// every other peer over HTTP and receives theirs the same way, so the
// Global-Order Aggregator on each node can collect a quorum of local
// order DAGs. The wire format and message framing are fixed by
// pkg/wire; this package only moves the framed bytes between peers.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/wire"
)

// messagePath is the single endpoint every peer exposes for inbound
// wire envelopes.
const messagePath = "/order/message"

// peerHeader carries the sender's self-declared peer id, so the
// receiving Aggregator can attribute the contribution correctly.
const peerHeader = "X-Fairdag-Peer-Id"

// Dispatch routes one decoded inbound message to whatever local
// component consumes it — typically an Aggregator's Submit, adapted to
// this signature by the caller.
type Dispatch func(sender globaldag.PeerID, msg interface{}) error

// HTTP is the reference Broadcaster: it POSTs a wire envelope to every
// known peer concurrently and exposes the inbound side as an
// http.Handler a caller mounts on its own server (grounded on the
// daemon's gorilla/mux route setup).
type HTTP struct {
	mu    sync.RWMutex
	peers map[globaldag.PeerID]string

	self   globaldag.PeerID
	client *http.Client
}

// NewHTTP constructs an HTTP transport identifying itself as self.
func NewHTTP(self globaldag.PeerID) *HTTP {
	return &HTTP{
		self:   self,
		peers:  make(map[globaldag.PeerID]string),
		client: &http.Client{},
	}
}

// AddPeer registers a peer's base URL (e.g. "http://10.0.0.4:8080").
func (h *HTTP) AddPeer(id globaldag.PeerID, baseURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = baseURL
}

// RemovePeer drops a peer from the broadcast set.
func (h *HTTP) RemovePeer(id globaldag.PeerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Peers lists currently known peer ids.
func (h *HTTP) Peers() []globaldag.PeerID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]globaldag.PeerID, 0, len(h.peers))
	for id := range h.peers {
		out = append(out, id)
	}
	return out
}

// BroadcastBatch implements batchmaker.Broadcaster: it fans the
// already-encoded batch envelope out to every known peer concurrently,
// best-effort — one peer's failure does not block delivery to the
// others.
func (h *HTTP) BroadcastBatch(round order.Round, encoded []byte) error {
	return h.broadcast(encoded)
}

func (h *HTTP) broadcast(encoded []byte) error {
	h.mu.RLock()
	targets := make(map[globaldag.PeerID]string, len(h.peers))
	for id, url := range h.peers {
		targets[id] = url
	}
	h.mu.RUnlock()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	for id, baseURL := range targets {
		wg.Add(1)
		go func(id globaldag.PeerID, baseURL string) {
			defer wg.Done()
			if err := h.send(baseURL, encoded); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Errorf("transport: peer %s: %w", id, err))
				mu.Unlock()
			}
		}(id, baseURL)
	}
	wg.Wait()

	if len(targets) > 0 && len(failures) == len(targets) {
		return errors.Join(failures...)
	}
	return nil
}

func (h *HTTP) send(baseURL string, encoded []byte) error {
	req, err := http.NewRequest(http.MethodPost, baseURL+messagePath, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/cbor")
	req.Header.Set(peerHeader, string(h.self))

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("transport: peer responded %s", resp.Status)
	}
	return nil
}

// Handler builds the inbound mux.Router: a single POST endpoint that
// decodes the wire envelope and forwards it to dispatch.
func (h *HTTP) Handler(dispatch Dispatch) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(messagePath, func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		msg, err := wire.Decode(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sender := globaldag.PeerID(req.Header.Get(peerHeader))
		if err := dispatch(sender, msg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	return r
}

// Shutdown releases idle connections held by the broadcast client.
func (h *HTTP) Shutdown(_ context.Context) error {
	h.client.CloseIdleConnections()
	return nil
}
