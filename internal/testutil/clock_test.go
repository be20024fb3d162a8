package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	later := start.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestFakeClock_TickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	var got []time.Time
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			got = append(got, <-tk.C())
		}
	}()

	c.BlockUntilTickers(1)
	c.Advance(2500 * time.Millisecond)
	<-done

	assert.Equal(t, []time.Time{start.Add(time.Second), start.Add(2 * time.Second)}, got)
}

func TestFakeClock_StoppedTickerNeverBlocks(t *testing.T) {
	c := NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
	tk := c.NewTicker(time.Second)
	tk.Stop()

	c.Advance(time.Minute)
	assert.Equal(t, time.Date(2025, 1, 1, 8, 1, 0, 0, time.UTC), c.Now())
}
