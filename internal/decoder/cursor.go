// Package decoder implements the recursive-descent opcode decoder: a byte
// cursor, per-instruction context, the opcode-syntax decode tree, and the
// instruction decoder that walks a byte stream against it.
//
// Grounded on _examples/original_source/src/org/solhost/folko/dasm/cpu/x86/Decoder.java
// and the ByteSequence/Context contracts it consumes.
package decoder

import (
	"encoding/binary"
	"errors"
)

// ErrEndOfImage is returned when a read runs past the end of the cursor's
// backing bytes.
var ErrEndOfImage = errors.New("decoder: end of image")

// maxRewind is the minimum rewind depth the cursor guarantees, sized to
// cover the longest legal x86 instruction (15 bytes) being fully re-read
// from its first byte after a deep trie miss.
const maxRewind = 16

// Cursor is a position-tracked reader over an image's bytes with
// peek/skip/unread semantics, as required by spec.md §4.A.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor creates a cursor over data starting at position 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Position returns the current byte offset into the cursor's data.
func (c *Cursor) Position() int {
	return c.pos
}

// Seek repositions the cursor to an absolute offset.
func (c *Cursor) Seek(pos int) {
	c.pos = pos
}

// Skip advances the cursor by n bytes; n may be negative to rewind. Rewinds
// of at least maxRewind bytes are always legal per spec.md §4.A.
func (c *Cursor) Skip(n int) {
	c.pos += n
	if c.pos < 0 {
		c.pos = 0
	}
}

// ReadU8 reads one byte and advances the cursor by one.
func (c *Cursor) ReadU8() (uint8, error) {
	if c.pos >= len(c.data) {
		return 0, ErrEndOfImage
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// PeekU8 returns the next byte without advancing the cursor.
func (c *Cursor) PeekU8() (uint8, error) {
	if c.pos >= len(c.data) {
		return 0, ErrEndOfImage
	}
	return c.data[c.pos], nil
}

// ReadU16 reads a little-endian uint16 and advances the cursor by two.
func (c *Cursor) ReadU16() (uint16, error) {
	if c.pos+2 > len(c.data) {
		return 0, ErrEndOfImage
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32 and advances the cursor by four.
func (c *Cursor) ReadU32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, ErrEndOfImage
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

// ReadU64 reads a little-endian uint64 and advances the cursor by eight.
func (c *Cursor) ReadU64() (uint64, error) {
	if c.pos+8 > len(c.data) {
		return 0, ErrEndOfImage
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return v, nil
}

// Remaining reports how many bytes are left to read.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// MaxRewind is the rewind depth the cursor is guaranteed to support.
func MaxRewind() int {
	return maxRewind
}
