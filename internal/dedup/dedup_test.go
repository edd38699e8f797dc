package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduperAbsorbsDuplicates(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "stripe", "evt_1"))

	seen, err = d.Seen(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Same event ID from another vendor is a distinct event.
	seen, err = d.Seen(ctx, "paypal", "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryDeduperSeenIsReadOnly(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	// Checking without marking must not record the event, so a delivery
	// whose effects failed to apply can be retried by the vendor.
	for i := 0; i < 3; i++ {
		seen, err := d.Seen(ctx, "stripe", "evt_2")
		require.NoError(t, err)
		assert.False(t, seen)
	}
}

func TestMemoryDeduperExpiry(t *testing.T) {
	d := NewMemoryDeduper(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, d.Mark(ctx, "square", "evt_9"))

	time.Sleep(20 * time.Millisecond)

	seen, err := d.Seen(ctx, "square", "evt_9")
	require.NoError(t, err)
	assert.False(t, seen, "expired entries are forgotten")
}

func TestNewFallsBackWithoutRedis(t *testing.T) {
	d, err := New("", "", 0, 0)
	require.NoError(t, err)
	_, ok := d.(*MemoryDeduper)
	assert.True(t, ok)
}
