package decoder

import "fmt"

// Operand is one decoded instruction operand, tagged by Kind.
type Operand struct {
	Kind OperandKind
	Reg  Register
	Mem  MemOperand
	Imm  int64
	// Target is the resolved absolute address for a Rel8/Rel32 operand:
	// next-instruction address + the signed displacement.
	Target uint64
}

// Instruction is the result of a successful decode (spec.md §3): the
// selected opcode syntax, decoded operands, total size, address, and the
// classification predicates the trace engine drives off of.
type Instruction struct {
	Syntax   *OpcodeSyntax
	Operands []Operand
	Size     int
	Address  uint64
}

// IsPrefixOnly reports whether this "instruction" is actually a
// prefix-only byte to be folded into Context via ApplyPrefix.
func (i *Instruction) IsPrefixOnly() bool {
	return i.Syntax.IsPrefixOnly
}

// IsFunctionCall reports whether this instruction is a call.
func (i *Instruction) IsFunctionCall() bool {
	return i.Syntax.Kind == KindCall
}

// IsUnconditionalBranch reports whether this instruction unconditionally
// transfers control (unconditional jmp).
func (i *Instruction) IsUnconditionalBranch() bool {
	return i.Syntax.Kind == KindJmpUnconditional
}

// IsJump reports whether this instruction is any jump form, conditional or
// not — used by the trampoline post-pass (spec.md §4.G).
func (i *Instruction) IsJump() bool {
	return i.Syntax.Kind == KindJmpUnconditional || i.Syntax.Kind == KindJmpConditional
}

// StopsTrace reports whether linear decoding must stop after this
// instruction: return, unconditional jump, or halt.
func (i *Instruction) StopsTrace() bool {
	switch i.Syntax.Kind {
	case KindRet, KindJmpUnconditional, KindHalt:
		return true
	default:
		return false
	}
}

// Mnemonic returns the instruction's opcode mnemonic, picking the group
// extension's specific name when the syntax is group-extended.
func (i *Instruction) Mnemonic() string {
	return i.Syntax.Mnemonic
}

// BranchTargets returns the set of memory addresses this instruction
// directly (literally) transfers control to: a Rel8/Rel32 operand's
// resolved Target. Indirect branches (through a register or memory
// operand) have no literal branch target and yield nothing here; one whose
// operand is an absolute memory address surfaces instead through
// AssociatedData, per spec.md §4.F.
func (i *Instruction) BranchTargets() []uint64 {
	if i.Syntax.Kind != KindCall && i.Syntax.Kind != KindJmpUnconditional && i.Syntax.Kind != KindJmpConditional {
		return nil
	}
	var out []uint64
	for _, op := range i.Operands {
		if op.Kind == OpRel8 || op.Kind == OpRel32 {
			out = append(out, op.Target)
		}
	}
	return out
}

// AssociatedData returns the literal effective addresses of this
// instruction's memory operands (spec.md §3's "associated data").
func (i *Instruction) AssociatedData() []uint64 {
	var out []uint64
	for _, op := range i.Operands {
		if op.Kind == OpModRMRM && op.Mem.IsAbsolute {
			out = append(out, op.Mem.EffectiveAddress())
		}
	}
	return out
}

// ProbableDataPointers returns immediate operand values that might be
// in-image addresses; the engine validates candidates against the image's
// address range (spec.md §3, §4.F).
func (i *Instruction) ProbableDataPointers() []uint64 {
	var out []uint64
	for _, op := range i.Operands {
		switch op.Kind {
		case OpImm32, OpImm64:
			out = append(out, uint64(op.Imm))
		}
	}
	return out
}

// decode consumes this instruction's operand bytes from cursor, resolving
// ModR/M, SIB, displacement, and immediates per the syntax's operand
// descriptors (spec.md §4.D). ctx.VirtualAddress and ctx.FileOffset must
// already be set by the caller; i.Address and i.Size are set by the caller
// afterwards.
func (i *Instruction) decode(cursor *Cursor, ctx *Context) error {
	var modrmReg Register
	var modrmMem Operand
	haveModRM := false

	for _, kind := range i.Syntax.Operands {
		switch kind {
		case OpNone:
			// no bytes consumed
		case OpRegFromOpcode:
			i.Operands = append(i.Operands, Operand{Kind: OpRegFromOpcode, Reg: Register(i.Syntax.lastByte() & 0x07)})
		case OpModRMRegAsReg, OpModRMRM:
			if !haveModRM {
				reg, mem, err := decodeModRM(cursor)
				if err != nil {
					return fmt.Errorf("decoding modrm: %w", err)
				}
				modrmReg = reg
				modrmMem = mem
				haveModRM = true
			}
			switch kind {
			case OpModRMRegAsReg:
				i.Operands = append(i.Operands, Operand{Kind: OpModRMRegAsReg, Reg: modrmReg})
			case OpModRMRM:
				i.Operands = append(i.Operands, modrmMem)
			}
		case OpImm8:
			v, err := cursor.ReadU8()
			if err != nil {
				return fmt.Errorf("reading imm8: %w", err)
			}
			i.Operands = append(i.Operands, Operand{Kind: OpImm8, Imm: int64(int8(v))})
		case OpImm16:
			v, err := cursor.ReadU16()
			if err != nil {
				return fmt.Errorf("reading imm16: %w", err)
			}
			i.Operands = append(i.Operands, Operand{Kind: OpImm16, Imm: int64(int16(v))})
		case OpImm32:
			v, err := cursor.ReadU32()
			if err != nil {
				return fmt.Errorf("reading imm32: %w", err)
			}
			i.Operands = append(i.Operands, Operand{Kind: OpImm32, Imm: int64(int32(v))})
		case OpImm64:
			v, err := cursor.ReadU64()
			if err != nil {
				return fmt.Errorf("reading imm64: %w", err)
			}
			i.Operands = append(i.Operands, Operand{Kind: OpImm64, Imm: int64(v)})
		case OpRel8:
			v, err := cursor.ReadU8()
			if err != nil {
				return fmt.Errorf("reading rel8: %w", err)
			}
			next := ctx.VirtualAddress + uint64(cursor.Position()-ctx.FileOffset)
			target := next + uint64(int64(int8(v)))
			i.Operands = append(i.Operands, Operand{Kind: OpRel8, Imm: int64(int8(v)), Target: target})
		case OpRel32:
			v, err := cursor.ReadU32()
			if err != nil {
				return fmt.Errorf("reading rel32: %w", err)
			}
			next := ctx.VirtualAddress + uint64(cursor.Position()-ctx.FileOffset)
			target := next + uint64(int64(int32(v)))
			i.Operands = append(i.Operands, Operand{Kind: OpRel32, Imm: int64(int32(v)), Target: target})
		}
	}
	return nil
}

// decodeModRM reads a ModR/M byte (and SIB/displacement if present) in
// 32-bit addressing mode. Returns the reg field as a Register and the r/m
// field as an Operand (register-direct when mod==11, memory otherwise).
func decodeModRM(cursor *Cursor) (Register, Operand, error) {
	b, err := cursor.ReadU8()
	if err != nil {
		return 0, Operand{}, err
	}
	mod := b >> 6
	reg := Register((b >> 3) & 0x07)
	rm := b & 0x07

	if mod == 0x03 {
		return reg, Operand{Kind: OpModRMRM, Mem: MemOperand{}, Reg: Register(rm)}, nil
	}

	mem := MemOperand{}
	if rm == 0x04 {
		sib, err := cursor.ReadU8()
		if err != nil {
			return 0, Operand{}, err
		}
		scale := uint8(1) << (sib >> 6)
		index := Register((sib >> 3) & 0x07)
		base := Register(sib & 0x07)
		if index != ESP {
			mem.HasIndex = true
			mem.Index = index
			mem.Scale = scale
		}
		if base == EBP && mod == 0x00 {
			disp, err := cursor.ReadU32()
			if err != nil {
				return 0, Operand{}, err
			}
			mem.Disp = int32(disp)
		} else {
			mem.HasBase = true
			mem.Base = base
		}
	} else if rm == 0x05 && mod == 0x00 {
		disp, err := cursor.ReadU32()
		if err != nil {
			return 0, Operand{}, err
		}
		mem.Disp = int32(disp)
	} else {
		mem.HasBase = true
		mem.Base = Register(rm)
	}

	switch mod {
	case 0x01:
		disp, err := cursor.ReadU8()
		if err != nil {
			return 0, Operand{}, err
		}
		mem.Disp = int32(int8(disp))
	case 0x02:
		disp, err := cursor.ReadU32()
		if err != nil {
			return 0, Operand{}, err
		}
		mem.Disp = int32(disp)
	}

	mem.IsAbsolute = !mem.HasBase && !mem.HasIndex

	return reg, Operand{Kind: OpModRMRM, Mem: mem}, nil
}
