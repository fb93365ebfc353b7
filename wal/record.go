package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/algorand/go-codec/codec"

	"github.com/blockberries/devberry/types"
)

// Errors
var (
	ErrClosed    = errors.New("block log is closed")
	ErrCorrupted = errors.New("block log is corrupted")
)

const (
	frameHeaderSize = 4
	frameCRCSize    = 4
	maxRecordSize   = 10 * 1024 * 1024
)

type recordKind uint8

const (
	recordBlock recordKind = iota + 1
	recordCommit
)

type record struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Kind       recordKind `codec:"k"`
	ID         []byte     `codec:"id"`
	PreviousID []byte     `codec:"prev"`
	SignerID   []byte     `codec:"signer"`
	BlockNum   uint64     `codec:"num"`
	Payload    []byte     `codec:"payload"`
	Summary    []byte     `codec:"summary"`
	Content    []byte     `codec:"content"`
}

var codecHandle = newCodecHandle()

func newCodecHandle() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.ErrorIfNoField = true
	h.Canonical = true
	h.WriteExt = true
	h.PositiveIntUnsigned = true
	return h
}

func blockRecord(b types.Block) *record {
	return &record{
		Kind:       recordBlock,
		ID:         b.ID,
		PreviousID: b.PreviousID,
		SignerID:   b.SignerID,
		BlockNum:   b.BlockNum,
		Payload:    b.Payload,
		Summary:    b.Summary,
		Content:    b.Content,
	}
}

func commitRecord(id types.BlockID) *record {
	return &record{Kind: recordCommit, ID: id}
}

func (r *record) block() types.Block {
	return types.Block{
		ID:         r.ID,
		PreviousID: r.PreviousID,
		SignerID:   r.SignerID,
		BlockNum:   r.BlockNum,
		Payload:    r.Payload,
		Summary:    r.Summary,
		Content:    r.Content,
	}
}

// appendFrame encodes r and appends its frame to dst
func appendFrame(dst []byte, r *record) ([]byte, error) {
	var data []byte
	if err := codec.NewEncoderBytes(&data, codecHandle).Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	if len(data) > maxRecordSize {
		return nil, fmt.Errorf("record of %d bytes exceeds limit", len(data))
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, data...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(data)), nil
}

// readFrame reads one record and returns it with the number of bytes
// consumed. It returns io.EOF at a clean end of file and
// io.ErrUnexpectedEOF for a truncated frame.
func readFrame(r io.Reader) (*record, int64, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, 0, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > maxRecordSize {
		return nil, 0, fmt.Errorf("%w: record length %d", ErrCorrupted, length)
	}

	buf := make([]byte, int(length)+frameCRCSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}
	data, sum := buf[:length], buf[length:]

	expected := binary.BigEndian.Uint32(sum)
	if actual := crc32.ChecksumIEEE(data); expected != actual {
		return nil, 0, fmt.Errorf("%w: CRC mismatch (expected %08x, got %08x)", ErrCorrupted, expected, actual)
	}

	rec := &record{}
	if err := codec.NewDecoderBytes(data, codecHandle).Decode(rec); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return rec, int64(frameHeaderSize + len(buf)), nil
}
