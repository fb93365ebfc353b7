package engine

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockberries/devberry/types"
)

// blockCache memoizes block lookups. Blocks never change once the validator
// reports them, so entries are never invalidated. Failed lookups are not cached.
type blockCache struct {
	blocks BlockGetter
	cache  *lru.Cache[string, types.Block]
}

// newBlockCache wraps blocks with an LRU of the given size. A size of zero
// returns blocks unchanged.
func newBlockCache(blocks BlockGetter, size int) BlockGetter {
	if size <= 0 {
		return blocks
	}
	cache, err := lru.New[string, types.Block](size)
	if err != nil {
		return blocks
	}
	return &blockCache{blocks: blocks, cache: cache}
}

func (c *blockCache) GetBlock(id types.BlockID) (types.Block, error) {
	if b, ok := c.cache.Get(string(id)); ok {
		return b, nil
	}
	b, err := c.blocks.GetBlock(id)
	if err != nil {
		return types.Block{}, err
	}
	c.cache.Add(string(id), b)
	return b, nil
}
