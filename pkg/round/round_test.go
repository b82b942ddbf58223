// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package round

import (
	"testing"
	"time"

	"github.com/luxfi/fairdag/pkg/order"
	"github.com/stretchr/testify/require"
)

func TestTickerController_AdvancesAndPublishes(t *testing.T) {
	r := require.New(t)
	c := NewTicker(5*time.Millisecond, 1)
	defer c.Stop()

	r.Equal(order.Round(1), c.Round())

	var got order.Round
	require.Eventually(t, func() bool {
		v, ok := Poll(c.Advance())
		if ok {
			got = v
			return true
		}
		return false
	}, time.Second, time.Millisecond)

	r.GreaterOrEqual(got, order.Round(2))
	r.GreaterOrEqual(c.Round(), got)
}

func TestPoll_NonBlockingOnEmptyChannel(t *testing.T) {
	r := require.New(t)
	ch := make(chan order.Round)
	_, ok := Poll(ch)
	r.False(ok)
}

func TestTickerController_StopEndsBackgroundGoroutine(t *testing.T) {
	c := NewTicker(time.Millisecond, 0)
	c.Stop() // must return promptly, not hang
}
