package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/blockberries/devberry/types"
)

const (
	logFileName = "blocks.wal"
	logFilePerm = 0o600
	logDirPerm  = 0o700
)

// State is the chain recovered from a log
type State struct {
	// Blocks in the order they were stored
	Blocks []types.Block
	// Head is the last committed block, nil if nothing was committed
	Head types.BlockID
}

// FileLog is a file-backed block log. It is safe for concurrent use.
type FileLog struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	buf       *bufio.Writer
	frame     []byte
	closed    bool
	recovered State
}

// Open opens or creates the log in dir and replays it
func Open(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, logFileName)

	state, size, err := replay(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	// Drop a torn final record
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to truncate log: %w", err)
	}
	if _, err := file.Seek(size, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek log: %w", err)
	}

	return &FileLog{
		path:      path,
		file:      file,
		buf:       bufio.NewWriter(file),
		recovered: state,
	}, nil
}

// replay reads every complete record and returns the state and the size of
// the valid prefix
func replay(path string) (State, int64, error) {
	var state State

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return state, 0, nil
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	known := make(map[string]bool)
	r := bufio.NewReader(file)
	var size int64
	for {
		rec, n, err := readFrame(r)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return state, size, nil
		}
		if err != nil {
			return State{}, 0, fmt.Errorf("record at offset %d: %w", size, err)
		}
		size += n

		switch rec.Kind {
		case recordBlock:
			known[string(rec.ID)] = true
			state.Blocks = append(state.Blocks, rec.block())
		case recordCommit:
			if !known[string(rec.ID)] {
				return State{}, 0, fmt.Errorf("%w: commit of unknown block %s", ErrCorrupted, types.BlockID(rec.ID))
			}
			state.Head = types.BlockID(rec.ID)
		default:
			return State{}, 0, fmt.Errorf("%w: unknown record kind %d", ErrCorrupted, rec.Kind)
		}
	}
}

// Recovered returns the state replayed by Open
func (l *FileLog) Recovered() State {
	return l.recovered
}

// AppendBlock stores a block
func (l *FileLog) AppendBlock(b types.Block) error {
	return l.write(blockRecord(b), false)
}

// AppendCommit records a new chain head and syncs the log to disk
func (l *FileLog) AppendCommit(id types.BlockID) error {
	return l.write(commitRecord(id), true)
}

func (l *FileLog) write(r *record, sync bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	frame, err := appendFrame(l.frame[:0], r)
	if err != nil {
		return err
	}
	l.frame = frame

	if _, err := l.buf.Write(frame); err != nil {
		return fmt.Errorf("failed to write log: %w", err)
	}
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush log: %w", err)
	}
	if sync {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log: %w", err)
		}
	}
	return nil
}

// Close syncs and closes the log
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.buf.Flush(); err != nil {
		l.file.Close()
		return err
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
