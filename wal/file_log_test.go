package wal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blockberries/devberry/types"
)

func testBlock(n byte, prev types.BlockID) types.Block {
	return types.Block{
		ID:         types.BlockID{0xb0, n},
		PreviousID: prev,
		SignerID:   types.PeerID{0x01},
		BlockNum:   uint64(n),
		Payload:    []byte("Devmode-payload"),
		Summary:    []byte{n, n},
		Content:    []byte("batch"),
	}
}

func openLog(t *testing.T, dir string) *FileLog {
	t.Helper()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	return l
}

func TestFileLogEmpty(t *testing.T) {
	l := openLog(t, t.TempDir())
	defer l.Close()

	state := l.Recovered()
	if len(state.Blocks) != 0 || state.Head != nil {
		t.Errorf("expected empty state, got %+v", state)
	}
}

func TestFileLogReplay(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)

	b1 := testBlock(1, types.NullBlockID)
	b2 := testBlock(2, b1.ID)
	fork := testBlock(3, b1.ID)

	for _, b := range []types.Block{b1, b2, fork} {
		if err := l.AppendBlock(b); err != nil {
			t.Fatalf("failed to append block: %v", err)
		}
	}
	if err := l.AppendCommit(b1.ID); err != nil {
		t.Fatalf("failed to append commit: %v", err)
	}
	if err := l.AppendCommit(b2.ID); err != nil {
		t.Fatalf("failed to append commit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("failed to close log: %v", err)
	}

	l = openLog(t, dir)
	defer l.Close()
	state := l.Recovered()

	if len(state.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(state.Blocks))
	}
	for i, want := range []types.Block{b1, b2, fork} {
		got := state.Blocks[i]
		if !got.ID.Equal(want.ID) || !got.PreviousID.Equal(want.PreviousID) ||
			got.BlockNum != want.BlockNum || !bytes.Equal(got.Payload, want.Payload) ||
			!bytes.Equal(got.Summary, want.Summary) || !bytes.Equal(got.Content, want.Content) ||
			!got.SignerID.Equal(want.SignerID) {
			t.Errorf("block %d: got %+v, want %+v", i, got, want)
		}
	}
	if !state.Head.Equal(b2.ID) {
		t.Errorf("expected head %s, got %s", b2.ID, state.Head)
	}
}

func TestFileLogAppendAfterReopen(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	b1 := testBlock(1, types.NullBlockID)
	if err := l.AppendBlock(b1); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	l.Close()

	l = openLog(t, dir)
	b2 := testBlock(2, b1.ID)
	if err := l.AppendBlock(b2); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := l.AppendCommit(b2.ID); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	l.Close()

	l = openLog(t, dir)
	defer l.Close()
	state := l.Recovered()
	if len(state.Blocks) != 2 || !state.Head.Equal(b2.ID) {
		t.Errorf("unexpected state after reopen: %d blocks, head %s", len(state.Blocks), state.Head)
	}
}

func TestFileLogTruncatesTornRecord(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	b1 := testBlock(1, types.NullBlockID)
	if err := l.AppendBlock(b1); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := l.AppendBlock(testBlock(2, b1.ID)); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	l.Close()

	path := filepath.Join(dir, logFileName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	// Cut the second record in half
	if err := os.Truncate(path, info.Size()-10); err != nil {
		t.Fatal(err)
	}

	l = openLog(t, dir)
	state := l.Recovered()
	if len(state.Blocks) != 1 {
		t.Fatalf("expected 1 block after torn write, got %d", len(state.Blocks))
	}

	// New records land after the valid prefix
	if err := l.AppendBlock(testBlock(3, b1.ID)); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	l.Close()

	l = openLog(t, dir)
	defer l.Close()
	if n := len(l.Recovered().Blocks); n != 2 {
		t.Errorf("expected 2 blocks, got %d", n)
	}
}

func TestFileLogDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	if err := l.AppendBlock(testBlock(1, types.NullBlockID)); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	l.Close()

	path := filepath.Join(dir, logFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[frameHeaderSize] ^= 0xff
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(dir); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestFileLogRejectsCommitOfUnknownBlock(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	if err := l.AppendCommit(types.BlockID{0xff}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	l.Close()

	if _, err := Open(dir); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestFileLogClosed(t *testing.T) {
	l := openLog(t, t.TempDir())
	if err := l.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if err := l.AppendBlock(testBlock(1, types.NullBlockID)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
