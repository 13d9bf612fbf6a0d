package engine

import "dasm/internal/decoder"

// Entity is a decoded thing at an address: an instruction, a data entry, or
// an unknown-opcode placeholder (spec.md §3's "decoded entities"). Function
// records are tracked separately (see function.go) and are not entities.
type Entity interface {
	Address() uint64
	Size() int
}

// InstructionEntity wraps a decoded instruction for storage in the entity
// map.
type InstructionEntity struct {
	Inst *decoder.Instruction
}

// NewInstructionEntity wraps inst.
func NewInstructionEntity(inst *decoder.Instruction) *InstructionEntity {
	return &InstructionEntity{Inst: inst}
}

// Address implements Entity.
func (e *InstructionEntity) Address() uint64 { return e.Inst.Address }

// Size implements Entity.
func (e *InstructionEntity) Size() int { return e.Inst.Size }

// DataKind tags a DataEntity's interpretation, per spec.md §3.
type DataKind int

const (
	DataUnknown DataKind = iota
	DataByte
	DataWord
	DataDword
	DataQword
	DataString
)

// DataEntity is a decoded datum at an address (spec.md §3's "Data entry").
type DataEntity struct {
	Addr   uint64
	Length int
	Type   DataKind
	// Text holds the escaped printable form when Type is DataString
	// (SUPPLEMENTED FEATURES 1 in SPEC_FULL.md).
	Text string
}

// Address implements Entity.
func (e *DataEntity) Address() uint64 { return e.Addr }

// Size implements Entity.
func (e *DataEntity) Size() int { return e.Length }

// UnknownEntity is the length-1 pseudo-entity inserted when the decoder
// reports a DecodeMiss (spec.md §4.D's failure contract).
type UnknownEntity struct {
	Addr uint64
}

// NewUnknownEntity builds an UnknownEntity at addr.
func NewUnknownEntity(addr uint64) *UnknownEntity {
	return &UnknownEntity{Addr: addr}
}

// Address implements Entity.
func (e *UnknownEntity) Address() uint64 { return e.Addr }

// Size implements Entity.
func (e *UnknownEntity) Size() int { return 1 }
