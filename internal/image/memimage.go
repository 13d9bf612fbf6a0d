package image

import (
	"dasm/internal/decoder"
)

// MemImage is an in-memory Image, backed by a single synthetic code
// section, used by the engine tests so nothing depends on a real binary on
// disk.
type MemImage struct {
	lockingImage

	base    uint64
	data    []byte
	entry   uint64
	imports map[uint64]string
}

// NewMemImage creates a MemImage whose code section starts at base and
// holds data; the entry point defaults to base.
func NewMemImage(base uint64, data []byte) *MemImage {
	return &MemImage{
		base:    base,
		data:    data,
		entry:   base,
		imports: make(map[uint64]string),
	}
}

// SetEntry overrides the entry point address.
func (m *MemImage) SetEntry(addr uint64) {
	m.entry = addr
}

// AddImport registers a named import at addr, as if resolved from the
// image's import directory.
func (m *MemImage) AddImport(addr uint64, name string) {
	m.imports[addr] = name
}

func (m *MemImage) contains(addr uint64) bool {
	return addr >= m.base && addr < m.base+uint64(len(m.data))
}

// GetByteSequence implements Image.
func (m *MemImage) GetByteSequence(addr uint64, lock bool) (*ByteSequence, error) {
	if !m.contains(addr) {
		return nil, ErrInvalidAddress
	}
	release := m.acquire(lock)
	offset := int(addr - m.base)
	return &ByteSequence{cursor: decoder.NewCursor(m.data[offset:]), release: release}, nil
}

// CreateContext implements Image.
func (m *MemImage) CreateContext() *decoder.Context {
	return decoder.NewContext()
}

// CodeEntryPointMem implements Image.
func (m *MemImage) CodeEntryPointMem() uint64 {
	return m.entry
}

// IsValidAddress implements Image.
func (m *MemImage) IsValidAddress(addr uint64) bool {
	return m.contains(addr)
}

// IsCodeAddress implements Image.
func (m *MemImage) IsCodeAddress(addr uint64) bool {
	return m.contains(addr)
}

// ToMemAddress implements Image.
func (m *MemImage) ToMemAddress(fileOffset int) uint64 {
	return m.base + uint64(fileOffset)
}

// GetImports implements Image.
func (m *MemImage) GetImports() map[uint64]string {
	return m.imports
}

// GetSections implements Image.
func (m *MemImage) GetSections() []Section {
	return []Section{{Name: ".text", VirtualAddress: m.base, Size: uint64(len(m.data)), IsCode: true}}
}

// PatchByte implements Patcher.
func (m *MemImage) PatchByte(addr uint64, value byte) error {
	if !m.contains(addr) {
		return ErrInvalidAddress
	}
	release := m.acquire(true)
	defer release()
	m.data[addr-m.base] = value
	return nil
}
