// Package listing renders a decoded Instruction/Data stream to a stable
// text form: "address: bytes  mnemonic operands". Generalized from the
// teacher's minimal internal/disasm.Inst/Stream pair (address, text, op,
// fixed 4-byte raw encoding for ARM64) to x86's variable-length encoding,
// and used by the CLI driver (dasmcli) and by this package's tests
// asserting on decoded text.
package listing

import (
	"fmt"
	"strings"

	"dasm/internal/decoder"
	"dasm/internal/engine"
	"dasm/internal/image"
)

// Format renders the entity at addr (of the given length) as one listing
// line, fetching addr's raw bytes from img for the hex column.
func Format(img image.Image, addr uint64, length int, e engine.Entity) string {
	raw := fetchBytes(img, addr, length)
	return fmt.Sprintf("%08x: %-30s %s", addr, hexString(raw), TextFor(e))
}

// TextFor renders just the mnemonic/operand (or data) portion of an entity,
// with no address or byte column — used by tests that only care about the
// decoded text.
func TextFor(e engine.Entity) string {
	switch v := e.(type) {
	case *engine.InstructionEntity:
		return InstructionText(v.Inst)
	case *engine.DataEntity:
		return dataText(v)
	case *engine.UnknownEntity:
		return fmt.Sprintf("??  ; unknown opcode at %#08x", v.Addr)
	default:
		return "??"
	}
}

// InstructionText renders inst's mnemonic and operands, e.g. "mov eax, ecx".
func InstructionText(inst *decoder.Instruction) string {
	if len(inst.Operands) == 0 {
		return inst.Mnemonic()
	}
	parts := make([]string, len(inst.Operands))
	for i, op := range inst.Operands {
		parts[i] = operandText(op)
	}
	return inst.Mnemonic() + " " + strings.Join(parts, ", ")
}

func operandText(op decoder.Operand) string {
	switch op.Kind {
	case decoder.OpRegFromOpcode, decoder.OpModRMRegAsReg:
		return op.Reg.String()
	case decoder.OpModRMRM:
		if isRegisterDirect(op) {
			return op.Reg.String()
		}
		return memText(op.Mem)
	case decoder.OpImm8, decoder.OpImm16, decoder.OpImm32, decoder.OpImm64:
		return fmt.Sprintf("%#x", op.Imm)
	case decoder.OpRel8, decoder.OpRel32:
		return fmt.Sprintf("%#x", op.Target)
	default:
		return "?"
	}
}

// isRegisterDirect reports whether an OpModRMRM operand is actually a
// register-direct form (ModR/M mod==11): decodeModRM leaves Mem entirely
// zero-valued in that case, so the absence of every memory-addressing flag
// distinguishes it from a genuine absolute-address memory operand.
func isRegisterDirect(op decoder.Operand) bool {
	return !op.Mem.IsAbsolute && !op.Mem.HasBase && !op.Mem.HasIndex
}

func memText(mem decoder.MemOperand) string {
	if mem.IsAbsolute {
		return fmt.Sprintf("[%#x]", uint32(mem.Disp))
	}

	var sb strings.Builder
	sb.WriteByte('[')
	wrote := false
	if mem.HasBase {
		sb.WriteString(mem.Base.String())
		wrote = true
	}
	if mem.HasIndex {
		if wrote {
			sb.WriteByte('+')
		}
		fmt.Fprintf(&sb, "%s*%d", mem.Index.String(), mem.Scale)
		wrote = true
	}
	if mem.Disp != 0 {
		if mem.Disp > 0 && wrote {
			sb.WriteByte('+')
		}
		fmt.Fprintf(&sb, "%#x", mem.Disp)
	}
	sb.WriteByte(']')
	return sb.String()
}

func dataText(d *engine.DataEntity) string {
	switch d.Type {
	case engine.DataString:
		return fmt.Sprintf("db \"%s\", 0", d.Text)
	default:
		return fmt.Sprintf("db ; %d byte(s), unclassified", d.Length)
	}
}

func fetchBytes(img image.Image, addr uint64, length int) []byte {
	seq, err := img.GetByteSequence(addr, false)
	if err != nil {
		return nil
	}
	defer seq.Release()

	out := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		b, err := seq.Cursor().ReadU8()
		if err != nil {
			break
		}
		out = append(out, b)
	}
	return out
}

func hexString(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
