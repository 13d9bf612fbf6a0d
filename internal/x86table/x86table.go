// Package x86table is a built-in OpcodeSource standing in for the XML
// opcode reference spec.md §1 declares out of scope to actually parse. It
// names every opcode form spec.md §8's boundary behaviors and scenarios
// exercise.
//
// Grounded on the OpcodeSyntax contract referenced by
// _examples/original_source/src/org/solhost/folko/dasm/main/Disassembler.java
// and cross-checked against real x86 opcode bytes in
// _examples/maxgio92-resurgo/detector.go.
package x86table

import "dasm/internal/decoder"

// Source is the builtin decoder.OpcodeSource.
type Source struct {
	syntaxes []*decoder.OpcodeSyntax
}

// New builds the builtin opcode table.
func New() *Source {
	return &Source{syntaxes: build()}
}

// Syntaxes implements decoder.OpcodeSource.
func (s *Source) Syntaxes() []*decoder.OpcodeSyntax {
	return s.syntaxes
}

func syn(prefix []byte, mnemonic string, kind decoder.Kind, operands ...decoder.OperandKind) *decoder.OpcodeSyntax {
	return &decoder.OpcodeSyntax{
		Prefix:   prefix,
		Mnemonic: mnemonic,
		Kind:     kind,
		Operands: operands,
	}
}

func ext(prefix []byte, extension uint8, mnemonic string, kind decoder.Kind, operands ...decoder.OperandKind) *decoder.OpcodeSyntax {
	return &decoder.OpcodeSyntax{
		Prefix:       prefix,
		HasExtension: true,
		Extension:    extension,
		Mnemonic:     mnemonic,
		Kind:         kind,
		Operands:     operands,
	}
}

func prefixOnly(b byte, mnemonic string, effect decoder.PrefixEffect) *decoder.OpcodeSyntax {
	return &decoder.OpcodeSyntax{
		Prefix:       []byte{b},
		Mnemonic:     mnemonic,
		IsPrefixOnly: true,
		PrefixEffect: effect,
	}
}

var group1Mnemonics = [8]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}

func build() []*decoder.OpcodeSyntax {
	var out []*decoder.OpcodeSyntax

	// Prefix-only instructions (spec.md §4.B's context mutations).
	out = append(out,
		prefixOnly(0xF0, "lock", decoder.PrefixEffect{Lock: true}),
		prefixOnly(0xF2, "repne", decoder.PrefixEffect{Rep: decoder.RepNE}),
		prefixOnly(0xF3, "repe", decoder.PrefixEffect{Rep: decoder.RepE}),
		prefixOnly(0x66, "opsize", decoder.PrefixEffect{OperandSizeOverride: true}),
		prefixOnly(0x67, "addrsize", decoder.PrefixEffect{AddressSizeOverride: true}),
		prefixOnly(0x2E, "cs", decoder.PrefixEffect{Segment: decoder.SegCS}),
		prefixOnly(0x36, "ss", decoder.PrefixEffect{Segment: decoder.SegSS}),
		prefixOnly(0x3E, "ds", decoder.PrefixEffect{Segment: decoder.SegDS}),
		prefixOnly(0x26, "es", decoder.PrefixEffect{Segment: decoder.SegES}),
		prefixOnly(0x64, "fs", decoder.PrefixEffect{Segment: decoder.SegFS}),
		prefixOnly(0x65, "gs", decoder.PrefixEffect{Segment: decoder.SegGS}),
	)

	// No-operand / single-byte forms.
	out = append(out,
		syn([]byte{0x90}, "nop", decoder.KindOther),
		syn([]byte{0xC3}, "ret", decoder.KindRet),
		syn([]byte{0xC9}, "leave", decoder.KindOther),
		syn([]byte{0xF4}, "hlt", decoder.KindHalt),
		syn([]byte{0x99}, "cdq", decoder.KindOther),
	)

	// Register-encoded PUSH/POP (8-way expansion of the low 3 opcode bits,
	// spec.md §4.C).
	out = append(out,
		&decoder.OpcodeSyntax{Prefix: []byte{0x50}, Mnemonic: "push", Kind: decoder.KindOther, EncodesRegister: true, Operands: []decoder.OperandKind{decoder.OpRegFromOpcode}},
		&decoder.OpcodeSyntax{Prefix: []byte{0x58}, Mnemonic: "pop", Kind: decoder.KindOther, EncodesRegister: true, Operands: []decoder.OperandKind{decoder.OpRegFromOpcode}},
	)

	// Direct call/jmp rel32, jmp rel8.
	out = append(out,
		syn([]byte{0xE8}, "call", decoder.KindCall, decoder.OpRel32),
		syn([]byte{0xE9}, "jmp", decoder.KindJmpUnconditional, decoder.OpRel32),
		syn([]byte{0xEB}, "jmp", decoder.KindJmpUnconditional, decoder.OpRel8),
	)
	// Short conditional jumps Jcc rel8 (0x70-0x7F).
	condMnemonics := [16]string{"jo", "jno", "jb", "jae", "je", "jne", "jbe", "ja", "js", "jns", "jp", "jnp", "jl", "jge", "jle", "jg"}
	for i, m := range condMnemonics {
		out = append(out, syn([]byte{byte(0x70 + i)}, m, decoder.KindJmpConditional, decoder.OpRel8))
	}

	// FF /r group: indirect call/jmp/push, inc/dec r/m32.
	out = append(out,
		ext([]byte{0xFF}, 0, "inc", decoder.KindOther, decoder.OpModRMRM),
		ext([]byte{0xFF}, 1, "dec", decoder.KindOther, decoder.OpModRMRM),
		ext([]byte{0xFF}, 2, "call", decoder.KindCall, decoder.OpModRMRM),
		ext([]byte{0xFF}, 4, "jmp", decoder.KindJmpUnconditional, decoder.OpModRMRM),
		ext([]byte{0xFF}, 6, "push", decoder.KindOther, decoder.OpModRMRM),
	)

	// 80/81/83 immediate-group (ADD/OR/ADC/SBB/AND/SUB/XOR/CMP), spec.md §8
	// scenario 5: same leading byte, ModR/M reg field picks the mnemonic.
	for reg := uint8(0); reg < 8; reg++ {
		out = append(out, ext([]byte{0x80}, reg, group1Mnemonics[reg], decoder.KindOther, decoder.OpModRMRM, decoder.OpImm8))
		out = append(out, ext([]byte{0x81}, reg, group1Mnemonics[reg], decoder.KindOther, decoder.OpModRMRM, decoder.OpImm32))
		out = append(out, ext([]byte{0x83}, reg, group1Mnemonics[reg], decoder.KindOther, decoder.OpModRMRM, decoder.OpImm8))
	}

	// MOV forms.
	out = append(out,
		syn([]byte{0x88}, "mov", decoder.KindOther, decoder.OpModRMRM, decoder.OpModRMRegAsReg),
		syn([]byte{0x89}, "mov", decoder.KindOther, decoder.OpModRMRM, decoder.OpModRMRegAsReg),
		syn([]byte{0x8A}, "mov", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
		syn([]byte{0x8B}, "mov", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
		&decoder.OpcodeSyntax{Prefix: []byte{0xB8}, Mnemonic: "mov", Kind: decoder.KindOther, EncodesRegister: true, Operands: []decoder.OperandKind{decoder.OpRegFromOpcode, decoder.OpImm32}},
	)

	// ADD/CMP/SUB/AND/OR/XOR r/m32, r32 and r32, r/m32 (two-operand forms,
	// opcodes 00-3D range sampled for the mnemonics above).
	arith := []struct {
		base byte
		name string
	}{
		{0x00, "add"}, {0x08, "or"}, {0x10, "adc"}, {0x18, "sbb"},
		{0x20, "and"}, {0x28, "sub"}, {0x30, "xor"}, {0x38, "cmp"},
	}
	for _, a := range arith {
		out = append(out, syn([]byte{a.base}, a.name, decoder.KindOther, decoder.OpModRMRM, decoder.OpModRMRegAsReg))
		out = append(out, syn([]byte{a.base + 1}, a.name, decoder.KindOther, decoder.OpModRMRM, decoder.OpModRMRegAsReg))
		out = append(out, syn([]byte{a.base + 2}, a.name, decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM))
		out = append(out, syn([]byte{a.base + 3}, a.name, decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM))
	}

	// Two-byte 0F escape: MOVQ mm, m64 and near Jcc rel32. Distinct from
	// the 66 0F mandatory-prefix forms below (spec.md §8 scenario 6).
	out = append(out,
		syn([]byte{0x0F, 0x6F}, "movq", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
	)
	for i, m := range condMnemonics {
		out = append(out, syn([]byte{0x0F, byte(0x80 + i)}, m, decoder.KindJmpConditional, decoder.OpRel32))
	}

	// Mandatory-prefix SSE forms: 66 0F / F2 0F / F3 0F, each its own
	// literal 3-byte trie path sharing the 0x66/0xF2/0xF3 byte that also
	// exists as a standalone prefix-only leaf at the root.
	out = append(out,
		syn([]byte{0x66, 0x0F, 0x6F}, "movdqa", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
		syn([]byte{0xF3, 0x0F, 0x6F}, "movdqu", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
		syn([]byte{0xF2, 0x0F, 0x10}, "movsd", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
		syn([]byte{0xF3, 0x0F, 0x10}, "movss", decoder.KindOther, decoder.OpModRMRegAsReg, decoder.OpModRMRM),
	)

	return out
}
