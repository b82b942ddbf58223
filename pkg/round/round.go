// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package round implements the Round Controller (C9): an external
// collaborator per the ownership model — every other component polls
// it non-blockingly rather than being driven by it directly, so a
// stalled round never stalls the pipeline's ability to keep draining
// already-admitted work.
package round

import (
	"sync"
	"time"

	"github.com/luxfi/fairdag/pkg/order"
)

// Controller reports the worker's current round and publishes
// advances on a channel callers poll non-blockingly (via select with a
// default case), never by receiving synchronously.
type Controller interface {
	Round() order.Round
	Advance() <-chan order.Round
}

// TickerController is the reference implementation: a fixed-interval
// ticker that advances the round counter by one on every tick,
// grounded on the same time.Ticker idiom as the daemon's mining and
// metrics loops.
type TickerController struct {
	mu      sync.Mutex
	current order.Round

	ticker *time.Ticker
	advance chan order.Round
	stop    chan struct{}
	done    chan struct{}
}

// NewTicker constructs a TickerController starting at start and
// advancing every interval. Call Stop to release the underlying
// ticker.
func NewTicker(interval time.Duration, start order.Round) *TickerController {
	t := &TickerController{
		current: start,
		ticker:  time.NewTicker(interval),
		advance: make(chan order.Round, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TickerController) run() {
	defer close(t.done)
	for {
		select {
		case <-t.ticker.C:
			t.mu.Lock()
			t.current++
			next := t.current
			t.mu.Unlock()

			// Non-blocking publish: if a prior advance is still
			// unconsumed, drop it rather than block the ticker —
			// callers only ever care about the latest round.
			select {
			case t.advance <- next:
			default:
				select {
				case <-t.advance:
				default:
				}
				t.advance <- next
			}
		case <-t.stop:
			return
		}
	}
}

// Round reports the controller's current round.
func (t *TickerController) Round() order.Round {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Advance returns the channel that publishes each new round number.
// Callers poll it with select/default (§4.9's non-blocking pattern)
// rather than receiving synchronously.
func (t *TickerController) Advance() <-chan order.Round { return t.advance }

// Stop releases the ticker and ends the background goroutine.
func (t *TickerController) Stop() {
	close(t.stop)
	<-t.done
	t.ticker.Stop()
}

// Poll drains at most one pending value from ch without blocking; the
// ordering loop in cmd/orderworker uses it to observe round advances.
func Poll(ch <-chan order.Round) (order.Round, bool) {
	select {
	case r := <-ch:
		return r, true
	default:
		return 0, false
	}
}
