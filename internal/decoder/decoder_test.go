package decoder_test

import (
	"errors"
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"dasm/internal/decoder"
	"dasm/internal/x86table"
)

func newDecoder() *decoder.Decoder {
	return decoder.New(decoder.BuildTree(x86table.New()))
}

// decodeAt runs the production decoder over data starting at virtual
// address addr and returns the decoded instruction.
func decodeAt(t *testing.T, d *decoder.Decoder, data []byte, addr uint64) (*decoder.Instruction, error) {
	t.Helper()
	cursor := decoder.NewCursor(data)
	ctx := decoder.NewContext()
	ctx.VirtualAddress = addr
	return d.Decode(cursor, ctx)
}

// TestRetStopsTrace covers spec.md §8's "A single-byte C3 (RET) at the
// entry point produces one instruction and stops trace" boundary.
func TestRetStopsTrace(t *testing.T) {
	d := newDecoder()
	inst, err := decodeAt(t, d, []byte{0xC3}, 0x1000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inst.Mnemonic() != "ret" {
		t.Fatalf("mnemonic = %q, want ret", inst.Mnemonic())
	}
	if inst.Size != 1 {
		t.Fatalf("size = %d, want 1", inst.Size)
	}
	if !inst.StopsTrace() {
		t.Fatal("ret should stop trace")
	}
}

// TestGroupExtensionDisambiguatesMnemonic covers spec.md §8 scenario 5:
// 83 C0 05 (ADD EAX,5) vs 83 F8 05 (CMP EAX,5) — same leading opcode byte,
// distinct mnemonics selected by the ModR/M reg field.
func TestGroupExtensionDisambiguatesMnemonic(t *testing.T) {
	d := newDecoder()

	add, err := decodeAt(t, d, []byte{0x83, 0xC0, 0x05}, 0x1000)
	if err != nil {
		t.Fatalf("decode add: %v", err)
	}
	if add.Mnemonic() != "add" {
		t.Fatalf("mnemonic = %q, want add", add.Mnemonic())
	}
	if add.Size != 3 {
		t.Fatalf("size = %d, want 3", add.Size)
	}

	cmp, err := decodeAt(t, d, []byte{0x83, 0xF8, 0x05}, 0x1000)
	if err != nil {
		t.Fatalf("decode cmp: %v", err)
	}
	if cmp.Mnemonic() != "cmp" {
		t.Fatalf("mnemonic = %q, want cmp", cmp.Mnemonic())
	}
}

// TestMandatoryPrefixEscapeNotConflated covers spec.md §8 scenario 6: 66 0F
// 6F 00 (MOVDQA) descends the 66->0F->6F trie path and must not be
// conflated with the bare 0F 6F 00 (MOVQ) form.
func TestMandatoryPrefixEscapeNotConflated(t *testing.T) {
	d := newDecoder()

	movdqa, err := decodeAt(t, d, []byte{0x66, 0x0F, 0x6F, 0x00}, 0x1000)
	if err != nil {
		t.Fatalf("decode movdqa: %v", err)
	}
	if movdqa.Mnemonic() != "movdqa" {
		t.Fatalf("mnemonic = %q, want movdqa", movdqa.Mnemonic())
	}
	if movdqa.Size != 4 {
		t.Fatalf("size = %d, want 4", movdqa.Size)
	}

	movq, err := decodeAt(t, d, []byte{0x0F, 0x6F, 0x00}, 0x1000)
	if err != nil {
		t.Fatalf("decode movq: %v", err)
	}
	if movq.Mnemonic() != "movq" {
		t.Fatalf("mnemonic = %q, want movq", movq.Mnemonic())
	}
}

// TestLockPrefixAppliesToFollowingInstruction covers spec.md §8: "An F0
// (LOCK) followed by a legal instruction I decodes as one instruction with
// LOCK prefix applied to I".
func TestLockPrefixAppliesToFollowingInstruction(t *testing.T) {
	d := newDecoder()
	inst, err := decodeAt(t, d, []byte{0xF0, 0x90}, 0x1000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inst.Mnemonic() != "nop" {
		t.Fatalf("mnemonic = %q, want nop", inst.Mnemonic())
	}
	// The whole prefix+opcode sequence is consumed as one logical decode:
	// the prefix's effect is folded into Context, and Instruction.Size
	// covers both the prefix byte and the opcode byte.
	if inst.Size != 2 {
		t.Fatalf("size = %d, want 2", inst.Size)
	}
}

// TestLockAloneAtEOFIsDecodeMiss covers spec.md §8: "an F0 alone followed
// by EOF produces a DecodeMiss at the prefix byte".
func TestLockAloneAtEOFIsDecodeMiss(t *testing.T) {
	d := newDecoder()
	_, err := decodeAt(t, d, []byte{0xF0}, 0x1000)
	if !errors.Is(err, decoder.ErrDecodeMiss) {
		t.Fatalf("err = %v, want ErrDecodeMiss", err)
	}
}

// TestUnknownOpcodeIsDecodeMiss covers the "Unknown opcode" boundary: a
// byte with no matching leaf at the root.
func TestUnknownOpcodeIsDecodeMiss(t *testing.T) {
	d := newDecoder()
	// 0x0F with a second byte not covered by any 0F-escape leaf.
	_, err := decodeAt(t, d, []byte{0x0F, 0xFF}, 0x1000)
	if !errors.Is(err, decoder.ErrDecodeMiss) {
		t.Fatalf("err = %v, want ErrDecodeMiss", err)
	}
}

// TestCallRel32ResolvesTarget checks that a direct CALL's branch target is
// resolved relative to the address of the next instruction.
func TestCallRel32ResolvesTarget(t *testing.T) {
	d := newDecoder()
	inst, err := decodeAt(t, d, []byte{0xE8, 0x04, 0x00, 0x00, 0x00}, 0x1000)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !inst.IsFunctionCall() {
		t.Fatal("expected a function call")
	}
	targets := inst.BranchTargets()
	if len(targets) != 1 || targets[0] != 0x1000+5+4 {
		t.Fatalf("branch targets = %#v, want [%#x]", targets, 0x1000+5+4)
	}
}

// oracleForms are byte sequences for a sample of the builtin table's opcode
// forms that x86asm can also decode in 32-bit mode; the expected size of
// each comes from x86asm itself. They are used to
// cross-check the round-trip law (spec.md §8, law 2) against an
// independent decoder without letting x86asm anywhere near production
// code (SPEC_FULL.md §8).
var oracleForms = [][]byte{
	{0x90},                         // nop
	{0xC3},                         // ret
	{0xF4},                         // hlt
	{0x50},                         // push eax
	{0x58 + 3},                     // pop ebx
	{0xB8, 0x01, 0x00, 0x00, 0x00}, // mov eax, 1
	{0x83, 0xC0, 0x05},             // add eax, 5
	{0x83, 0xF8, 0x05},             // cmp eax, 5
	{0xE9, 0x00, 0x00, 0x00, 0x00}, // jmp rel32
	{0xEB, 0x00},                   // jmp rel8
	{0x74, 0x00},                   // je rel8
	{0x89, 0xC1},                   // mov ecx, eax
	{0x8B, 0x00},                   // mov eax, [eax]
}

func TestRoundTripAgainstX86asmOracle(t *testing.T) {
	d := newDecoder()
	for _, bytes := range oracleForms {
		bytes := bytes
		cursor := decoder.NewCursor(bytes)
		ctx := decoder.NewContext()
		ctx.VirtualAddress = 0x1000
		inst, err := d.Decode(cursor, ctx)
		if err != nil {
			t.Fatalf("decoding % x: %v", bytes, err)
		}

		oracle, err := x86asm.Decode(bytes, 32)
		if err != nil {
			t.Fatalf("x86asm decoding % x: %v", bytes, err)
		}
		if inst.Size != oracle.Len {
			t.Fatalf("% x: size = %d, x86asm len = %d", bytes, inst.Size, oracle.Len)
		}
	}
}
