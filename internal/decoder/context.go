package decoder

// Context holds the mutable per-decode state described in spec.md §4.B:
// the decoded-prefix trail maintained during trie descent, the starting
// file offset and virtual address, and operand/address-size and segment
// override state accumulated from prefix-only instructions.
//
// Grounded on the Context contract consumed by
// _examples/original_source/src/org/solhost/folko/dasm/cpu/x86/Decoder.java
// (setFileOffset/addDecodedPrefix/removeDecodedPrefixTop/applyPrefix/reset).
type Context struct {
	FileOffset     int
	VirtualAddress uint64

	decodedPrefixTrail []byte

	Segment             SegmentOverride
	OperandSizeOverride bool
	AddressSizeOverride bool
	Lock                bool
	Rep                 RepKind
}

// NewContext creates a fresh, zeroed context.
func NewContext() *Context {
	return &Context{}
}

// SetFileOffset records the file offset the current top-level decode began
// at; called once per Decode call, before any prefix byte is consumed.
func (c *Context) SetFileOffset(offset int) {
	c.FileOffset = offset
}

// AddDecodedPrefix pushes a consumed byte onto the descent trail.
func (c *Context) AddDecodedPrefix(b byte) {
	c.decodedPrefixTrail = append(c.decodedPrefixTrail, b)
}

// RemoveDecodedPrefixTop pops the most recently consumed byte, undoing
// AddDecodedPrefix on a failed descent.
func (c *Context) RemoveDecodedPrefixTop() {
	if n := len(c.decodedPrefixTrail); n > 0 {
		c.decodedPrefixTrail = c.decodedPrefixTrail[:n-1]
	}
}

// DecodedPrefixTrail returns the bytes consumed so far in the current
// descent, for diagnostics.
func (c *Context) DecodedPrefixTrail() []byte {
	return c.decodedPrefixTrail
}

// ApplyPrefix merges a prefix-only instruction's effect into the context:
// segment override, operand/address size toggles, lock, rep.
func (c *Context) ApplyPrefix(inst *Instruction) {
	eff := inst.Syntax.PrefixEffect
	if eff.Segment != SegNone {
		c.Segment = eff.Segment
	}
	if eff.OperandSizeOverride {
		c.OperandSizeOverride = true
	}
	if eff.AddressSizeOverride {
		c.AddressSizeOverride = true
	}
	if eff.Lock {
		c.Lock = true
	}
	if eff.Rep != RepNone {
		c.Rep = eff.Rep
	}
}

// Reset clears all accumulated prefix state for the next top-level decode.
func (c *Context) Reset() {
	c.decodedPrefixTrail = c.decodedPrefixTrail[:0]
	c.Segment = SegNone
	c.OperandSizeOverride = false
	c.AddressSizeOverride = false
	c.Lock = false
	c.Rep = RepNone
}
