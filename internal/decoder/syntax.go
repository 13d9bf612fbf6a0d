package decoder

// Kind classifies the control-flow behavior of an opcode syntax, used by
// Instruction's classification predicates (spec.md §3).
type Kind int

const (
	KindOther Kind = iota
	KindCall
	KindJmpUnconditional
	KindJmpConditional
	KindRet
	KindHalt
)

// OperandKind enumerates the operand forms the decoder knows how to consume.
type OperandKind int

const (
	OpNone OperandKind = iota
	OpRegFromOpcode        // register encoded in the low 3 bits of the last opcode byte
	OpModRMRegAsReg         // ModR/M reg field, used as a register operand
	OpModRMRM               // ModR/M r/m field: register or memory
	OpImm8
	OpImm16
	OpImm32
	OpImm64
	OpRel8
	OpRel32
)

// SegmentOverride names a segment-override prefix's target segment register.
type SegmentOverride int

const (
	SegNone SegmentOverride = iota
	SegCS
	SegDS
	SegES
	SegFS
	SegGS
	SegSS
)

// RepKind names a rep/repne prefix.
type RepKind int

const (
	RepNone RepKind = iota
	RepE
	RepNE
)

// PrefixEffect describes the context mutation a prefix-only instruction
// applies via Context.ApplyPrefix, per spec.md §4.B.
type PrefixEffect struct {
	Segment             SegmentOverride
	OperandSizeOverride bool
	AddressSizeOverride bool
	Lock                bool
	Rep                 RepKind
}

// OpcodeSyntax describes one encodable instruction form: spec.md §3's
// "opcode syntax record". Built once by an OpcodeSource and never mutated
// after the decode tree is constructed.
type OpcodeSyntax struct {
	// Prefix is the ordered sequence of 1-3 bytes that must match literally
	// as a path in the decode tree.
	Prefix []byte

	// HasExtension and Extension describe a ModR/M reg-field group
	// extension (bits 5-3 of the byte following the prefix).
	HasExtension bool
	Extension    uint8

	// EncodesRegister marks that the low 3 bits of the last prefix byte
	// encode a register; such syntaxes occupy 8 adjacent leaf slots.
	EncodesRegister bool

	Mnemonic string
	Kind     Kind
	Operands []OperandKind

	IsPrefixOnly bool
	PrefixEffect PrefixEffect
}

// lastByte returns the final byte of the prefix path, the byte this
// syntax is filed under as a tree leaf.
func (s *OpcodeSyntax) lastByte() byte {
	return s.Prefix[len(s.Prefix)-1]
}

// OpcodeSource yields the finite sequence of opcode-syntax records the
// decode tree is built from (spec.md §6, "Opcode-source interface").
// The XML reference table this stands in for is explicitly out of scope;
// OpcodeSource is the seam between that opaque producer and the tree.
type OpcodeSource interface {
	Syntaxes() []*OpcodeSyntax
}
