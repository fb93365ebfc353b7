package devnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/devberry/service"
	"github.com/blockberries/devberry/tag"
	"github.com/blockberries/devberry/types"
)

func newTestValidator(t *testing.T, id byte) *Validator {
	t.Helper()
	v := NewValidator(Config{LocalID: types.PeerID{id}}, nil)
	t.Cleanup(v.Close)
	return v
}

func nextUpdate(t *testing.T, v *Validator) types.Update {
	t.Helper()
	select {
	case u, ok := <-v.Updates():
		require.True(t, ok, "update channel closed")
		return u
	case <-time.After(time.Second):
		t.Fatal("no update")
		return nil
	}
}

// publish runs one initialize/summarize/finalize cycle on the chain head
func publish(t *testing.T, v *Validator) types.Block {
	t.Helper()
	require.NoError(t, v.InitializeBlock(nil))
	return finishBlock(t, v)
}

func TestGenesis(t *testing.T) {
	v := newTestValidator(t, 1)
	head := v.Head()

	assert.Equal(t, Genesis(), head)
	assert.Equal(t, uint64(0), head.BlockNum)
	assert.True(t, head.PreviousID.IsNull())
	assert.Equal(t, StatusCommitted, v.Status(head.ID))

	startup := v.StartupState()
	assert.Equal(t, head, startup.ChainHead)
	assert.Equal(t, types.PeerID{1}, startup.LocalPeerInfo.PeerID)
	assert.Empty(t, startup.Peers)
}

func TestPendingBlockLifecycle(t *testing.T) {
	v := newTestValidator(t, 1)

	_, err := v.SummarizeBlock()
	assert.ErrorIs(t, err, service.ErrInvalidState)
	_, err = v.FinalizeBlock(nil)
	assert.ErrorIs(t, err, service.ErrInvalidState)
	assert.ErrorIs(t, v.CancelBlock(), service.ErrInvalidState)

	require.NoError(t, v.InitializeBlock(nil))
	assert.ErrorIs(t, v.InitializeBlock(nil), service.ErrInvalidState)

	require.NoError(t, v.CancelBlock())
	require.NoError(t, v.InitializeBlock(nil))

	block := finishBlock(t, v)
	assert.Equal(t, uint64(1), block.BlockNum)
	assert.Equal(t, Genesis().ID, block.PreviousID)
	assert.Equal(t, types.PeerID{1}, block.SignerID)
	assert.True(t, tag.Verify(block))

	u := nextUpdate(t, v)
	require.IsType(t, types.BlockNew{}, u)
	assert.Equal(t, block, u.(types.BlockNew).Block)
	assert.Equal(t, StatusReceived, v.Status(block.ID))

	// Finalize ends the pending block
	assert.ErrorIs(t, v.CancelBlock(), service.ErrInvalidState)
}

// finishBlock summarizes and finalizes the pending block
func finishBlock(t *testing.T, v *Validator) types.Block {
	t.Helper()
	summary, err := v.SummarizeBlock()
	require.NoError(t, err)
	id, err := v.FinalizeBlock(tag.Make(summary))
	require.NoError(t, err)
	b, ok := v.Block(id)
	require.True(t, ok)
	return b
}

func TestInitializeUnknownPrevious(t *testing.T) {
	v := newTestValidator(t, 1)
	err := v.InitializeBlock(types.BlockID{0xff})
	assert.ErrorIs(t, err, service.ErrUnknownBlock)
}

func TestSummaryIsStableForPendingBlock(t *testing.T) {
	v := newTestValidator(t, 1)
	require.NoError(t, v.InitializeBlock(nil))

	first, err := v.SummarizeBlock()
	require.NoError(t, err)
	second, err := v.SummarizeBlock()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A new pending block carries a new batch
	require.NoError(t, v.CancelBlock())
	require.NoError(t, v.InitializeBlock(nil))
	third, err := v.SummarizeBlock()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestNotReadyInjection(t *testing.T) {
	v := newTestValidator(t, 1)
	v.SetNotReady(2, 1)
	require.NoError(t, v.InitializeBlock(nil))

	for range 2 {
		_, err := v.SummarizeBlock()
		assert.ErrorIs(t, err, service.ErrBlockNotReady)
	}
	summary, err := v.SummarizeBlock()
	require.NoError(t, err)

	_, err = v.FinalizeBlock(tag.Make(summary))
	assert.ErrorIs(t, err, service.ErrBlockNotReady)
	_, err = v.FinalizeBlock(tag.Make(summary))
	assert.NoError(t, err)
}

func TestCheckAndCommit(t *testing.T) {
	v := newTestValidator(t, 1)
	block := publish(t, v)
	require.IsType(t, types.BlockNew{}, nextUpdate(t, v))

	require.NoError(t, v.CheckBlocks([]types.BlockID{block.ID}))
	assert.Equal(t, types.BlockValid{BlockID: block.ID}, nextUpdate(t, v))
	assert.Equal(t, StatusValid, v.Status(block.ID))

	require.NoError(t, v.CommitBlock(block.ID))
	assert.Equal(t, types.BlockCommit{BlockID: block.ID}, nextUpdate(t, v))
	assert.Equal(t, block, v.Head())

	head, err := v.GetChainHead()
	require.NoError(t, err)
	assert.Equal(t, block, head)

	chain := v.Chain()
	require.Len(t, chain, 2)
	assert.Equal(t, Genesis().ID, chain[0].ID)
	assert.Equal(t, block.ID, chain[1].ID)
}

func TestFailAndIgnore(t *testing.T) {
	v := newTestValidator(t, 1)
	a := publish(t, v)
	b := publish(t, v)

	require.NoError(t, v.FailBlock(a.ID))
	assert.Equal(t, StatusInvalid, v.Status(a.ID))
	require.NoError(t, v.IgnoreBlock(b.ID))
	assert.Equal(t, StatusIgnored, v.Status(b.ID))

	assert.IsType(t, types.BlockNew{}, nextUpdate(t, v))
	assert.IsType(t, types.BlockNew{}, nextUpdate(t, v))
	assert.Equal(t, types.BlockInvalid{BlockID: a.ID}, nextUpdate(t, v))

	unknown := types.BlockID{0xff}
	assert.ErrorIs(t, v.FailBlock(unknown), service.ErrUnknownBlock)
	assert.ErrorIs(t, v.IgnoreBlock(unknown), service.ErrUnknownBlock)
	assert.ErrorIs(t, v.CommitBlock(unknown), service.ErrUnknownBlock)
	assert.ErrorIs(t, v.CheckBlocks([]types.BlockID{unknown}), service.ErrUnknownBlock)
	assert.Equal(t, StatusUnknown, v.Status(unknown))
}

func TestGetBlocks(t *testing.T) {
	v := newTestValidator(t, 1)
	block := publish(t, v)

	blocks, err := v.GetBlocks([]types.BlockID{block.ID, Genesis().ID})
	require.NoError(t, err)
	assert.Equal(t, []types.Block{block, Genesis()}, blocks)

	_, err = v.GetBlocks([]types.BlockID{types.BlockID{0xff}})
	assert.ErrorIs(t, err, service.ErrUnknownBlock)
}

func TestGetSettings(t *testing.T) {
	v := NewValidator(Config{
		LocalID:  types.PeerID{1},
		Settings: map[string]string{"a": "1", "b": "2"},
	}, nil)
	defer v.Close()

	settings, err := v.GetSettings(Genesis().ID, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1"}, settings)

	_, err = v.GetSettings(types.BlockID{0xff}, []string{"a"})
	assert.ErrorIs(t, err, service.ErrUnknownBlock)
}

func TestSubmitBlock(t *testing.T) {
	v := newTestValidator(t, 1)
	block := types.Block{
		ID:         types.BlockID{0xaa},
		PreviousID: Genesis().ID,
		SignerID:   types.PeerID{2},
		BlockNum:   1,
	}

	require.NoError(t, v.SubmitBlock(block))
	require.NoError(t, v.SubmitBlock(block))
	assert.Equal(t, types.BlockNew{Block: block}, nextUpdate(t, v))
	assert.Equal(t, StatusReceived, v.Status(block.ID))

	v.Shutdown()
	assert.Equal(t, types.Shutdown{}, nextUpdate(t, v))
}

func TestSendWithoutNetwork(t *testing.T) {
	v := newTestValidator(t, 1)

	require.NoError(t, v.SendTo(types.PeerID{1}, "received", []byte{0xaa}))
	require.NoError(t, v.Broadcast("published", []byte{0xbb}))
	assert.ErrorIs(t, v.SendTo(types.PeerID{2}, "ack", nil), service.ErrUnknownPeer)

	assert.Equal(t, []Envelope{
		{To: types.PeerID{1}, MessageType: "received", Payload: []byte{0xaa}},
		{MessageType: "published", Payload: []byte{0xbb}},
	}, v.Envelopes())
}

func TestBlockStatusString(t *testing.T) {
	assert.Equal(t, "received", StatusReceived.String())
	assert.Equal(t, "committed", StatusCommitted.String())
	assert.Equal(t, "unknown", BlockStatus(42).String())
}
