package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/devberry/types"
)

func TestBlockCacheHits(t *testing.T) {
	chain := makeChain(3, 0x10)
	m := newBlockMap(chain...)
	c := newBlockCache(m, 2)

	for range 3 {
		b, err := c.GetBlock(chain[1].ID)
		require.NoError(t, err)
		assert.Equal(t, chain[1], b)
	}
	assert.Equal(t, 1, m.lookups)
}

func TestBlockCacheEvicts(t *testing.T) {
	chain := makeChain(3, 0x10)
	m := newBlockMap(chain...)
	c := newBlockCache(m, 2)

	for _, b := range chain {
		_, err := c.GetBlock(b.ID)
		require.NoError(t, err)
	}
	// Only the two most recent blocks are kept
	_, err := c.GetBlock(chain[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, m.lookups)
}

func TestBlockCacheSkipsErrors(t *testing.T) {
	m := newBlockMap()
	c := newBlockCache(m, 4)

	for range 2 {
		_, err := c.GetBlock(types.BlockID{0xff})
		require.Error(t, err)
	}
	assert.Equal(t, 2, m.lookups)
}

func TestBlockCacheDisabled(t *testing.T) {
	m := newBlockMap()
	assert.Same(t, m, newBlockCache(m, 0))
}
