// Package wal implements the write-ahead block log used by devnet validators
// to survive restarts.
//
// # File Format
//
// The log is a single append-only file. Each record is framed as
//
//	[length uint32][msgpack record][crc32 uint32]
//
// with big-endian integers and an IEEE CRC over the record bytes. A record
// either stores a block or marks a block as the new chain head.
//
// # Recovery
//
// Open replays the file and exposes the result through Recovered. A record
// cut short by a crash is truncated away. A record whose checksum does not
// match, or a commit naming a block the log never stored, fails Open with
// ErrCorrupted.
//
// # Durability
//
// Block records are flushed to the OS on every append. Commit records are
// also fsynced, so a recovered head never refers to a block that was lost.
package wal
