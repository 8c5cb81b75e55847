package mediasession

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SizeMatchesCeilDivision(t *testing.T) {
	cases := []struct {
		contentLength, packetSize int64
		wantN                     int
	}{
		{200000, 65536, 4},
		{65536, 65536, 1},
		{65537, 65536, 2},
		{1, 65536, 1},
	}
	for _, c := range cases {
		cache := NewCache(c.contentLength, c.packetSize)
		assert.Equal(t, c.wantN, cache.Size())
	}
}

func TestCache_CommitThenIsFilled(t *testing.T) {
	cache := NewCache(200000, 65536)
	assert.False(t, cache.IsFilled(0))

	p := newPacket(65536)
	cache.Commit(0, p)

	assert.True(t, cache.IsFilled(0))
	assert.Equal(t, p, cache.Get(0))
}

func TestCache_CommitTwiceOnSameSlotPanics(t *testing.T) {
	cache := NewCache(200000, 65536)
	cache.Commit(0, newPacket(65536))

	require.Panics(t, func() {
		cache.Commit(0, newPacket(65536))
	})
}

func TestCache_GetOnEmptySlotPanics(t *testing.T) {
	cache := NewCache(200000, 65536)
	require.Panics(t, func() {
		cache.Get(0)
	})
}

func TestCache_FirstEmpty(t *testing.T) {
	cache := NewCache(200000, 65536)
	cache.Commit(0, newPacket(65536))
	cache.Commit(1, newPacket(65536))

	idx, ok := cache.FirstEmpty()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	for i := 2; i < cache.Size(); i++ {
		cache.Commit(i, newPacket(65536))
	}
	_, ok = cache.FirstEmpty()
	assert.False(t, ok)
}

func TestCache_NextBoundary(t *testing.T) {
	cache := NewCache(10*65536, 65536)
	cache.Commit(5, newPacket(65536))

	assert.Equal(t, 5, cache.NextBoundary(0))
	assert.Equal(t, 10, cache.NextBoundary(6))
}
