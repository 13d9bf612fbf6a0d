// Package image defines the Image interface the decoder and trace engine
// consume (spec.md §6), plus two concrete bindings: an in-memory test
// harness and a PE-backed loader.
//
// The container format itself is explicitly out of scope (spec.md §1); this
// package exists only to give the engine something real to run against.
package image

import (
	"errors"
	"sync"

	"dasm/internal/decoder"
)

// ErrInvalidAddress is returned when a byte sequence is requested at an
// address outside the image.
var ErrInvalidAddress = errors.New("image: invalid address")

// Section is a named, based, sized region of the image (SPEC_FULL.md §3).
type Section struct {
	Name           string
	VirtualAddress uint64
	Size           uint64
	IsCode         bool
}

// ByteSequence is a scoped resource (spec.md §5): callers must Release it on
// every exit path, including error paths, since acquire/release is the only
// mechanism the image uses to enforce read atomicity against patches.
type ByteSequence struct {
	cursor  *decoder.Cursor
	release func()
}

// Cursor returns the positioned cursor backing this sequence.
func (b *ByteSequence) Cursor() *decoder.Cursor {
	return b.cursor
}

// Release returns the sequence's lock, if any, to the image. Safe to call
// more than once.
func (b *ByteSequence) Release() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

// Image is the external collaborator the decoder and trace engine are
// built against (spec.md §6, "Image interface (consumed)").
type Image interface {
	// GetByteSequence returns a positioned, scoped reader starting at addr.
	// When lock is true the image serializes this read against PatchByte.
	GetByteSequence(addr uint64, lock bool) (*ByteSequence, error)
	CreateContext() *decoder.Context
	CodeEntryPointMem() uint64
	IsValidAddress(addr uint64) bool
	IsCodeAddress(addr uint64) bool
	ToMemAddress(fileOffset int) uint64
	GetImports() map[uint64]string
	GetSections() []Section
}

// Patcher is implemented by images that support the SPEC_FULL.md
// Supplemented Feature 2 control-surface primitive, patch_byte.
type Patcher interface {
	PatchByte(addr uint64, value byte) error
}

// lockingImage factors the read/write mutex shared by the concrete Image
// implementations below, since both enforce the same acquire/release
// contract over the same kind of backing byte slice.
type lockingImage struct {
	mu sync.Mutex
}

func (l *lockingImage) acquire(lock bool) func() {
	if !lock {
		return func() {}
	}
	l.mu.Lock()
	return l.mu.Unlock
}
