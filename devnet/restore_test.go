package devnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/devberry/types"
	"github.com/blockberries/devberry/wal"
)

func TestValidatorRestoresFromLog(t *testing.T) {
	dir := t.TempDir()

	log, err := wal.Open(dir)
	require.NoError(t, err)
	v := NewValidator(Config{LocalID: types.PeerID{1}, Log: log}, nil)

	b1 := publish(t, v)
	require.NoError(t, v.CommitBlock(b1.ID))
	b2 := publish(t, v)
	require.NoError(t, v.CommitBlock(b2.ID))
	orphan := publish(t, v)
	v.Close()
	require.NoError(t, log.Close())

	log, err = wal.Open(dir)
	require.NoError(t, err)
	defer log.Close()
	restored := NewValidator(Config{LocalID: types.PeerID{1}, Log: log}, nil)
	defer restored.Close()

	assert.Equal(t, b2.ID, restored.Head().ID)
	assert.Equal(t, uint64(2), restored.Head().BlockNum)
	assert.Equal(t, StatusCommitted, restored.Status(b1.ID))
	assert.Equal(t, StatusCommitted, restored.Status(b2.ID))
	assert.Equal(t, StatusReceived, restored.Status(orphan.ID))
	require.Len(t, restored.Chain(), 3)

	// Building continues on the restored head
	next := publish(t, restored)
	assert.Equal(t, b2.ID, next.PreviousID)
	assert.Equal(t, uint64(3), next.BlockNum)
}

type failingLog struct {
	err error
}

func (l failingLog) Recovered() wal.State             { return wal.State{} }
func (l failingLog) AppendBlock(types.Block) error    { return l.err }
func (l failingLog) AppendCommit(types.BlockID) error { return l.err }

func TestValidatorLogFailures(t *testing.T) {
	boom := errors.New("disk full")
	v := NewValidator(Config{LocalID: types.PeerID{1}, Log: failingLog{err: boom}}, nil)
	defer v.Close()

	require.NoError(t, v.InitializeBlock(nil))
	summary, err := v.SummarizeBlock()
	require.NoError(t, err)
	_, err = v.FinalizeBlock(summary)
	assert.ErrorIs(t, err, boom)

	// The pending block survives a failed finalize
	require.NoError(t, v.CancelBlock())

	err = v.SubmitBlock(types.Block{ID: types.BlockID{0xaa}, PreviousID: Genesis().ID, BlockNum: 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusUnknown, v.Status(types.BlockID{0xaa}))

	assert.ErrorIs(t, v.CommitBlock(Genesis().ID), boom)
}
