package decoder

// Register names a 32-bit general purpose register, selected either by
// ModR/M fields or by the low 3 bits of an opcode byte.
type Register uint8

const (
	EAX Register = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
)

var regNames = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

// String returns the register's assembly mnemonic.
func (r Register) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return "?"
}

// MemOperand is a decoded ModR/M-addressed memory reference. IsAbsolute is
// true when the effective address is a literal (no base, no index) — the
// "memory operand whose effective address is a literal" spec.md §3 calls
// out for the associated-data classification.
type MemOperand struct {
	HasBase  bool
	Base     Register
	HasIndex bool
	Index    Register
	Scale    uint8
	Disp     int32

	IsAbsolute bool
}

// EffectiveAddress returns the literal address for an absolute memory
// operand. Only meaningful when IsAbsolute is true.
func (m MemOperand) EffectiveAddress() uint64 {
	return uint64(uint32(m.Disp))
}
