package decoder

import (
	"errors"
	"fmt"
)

// ErrDecodeMiss is returned when no opcode syntax matches the byte stream
// at the current cursor position (spec.md §7's DecodeMiss taxonomy entry).
var ErrDecodeMiss = errors.New("decoder: no matching opcode")

// Decoder performs recursive-descent decoding against a Tree, as specified
// in spec.md §4.D.
//
// Grounded directly on the recursive descend()/decodeNext() algorithm of
// _examples/original_source/src/org/solhost/folko/dasm/cpu/x86/Decoder.java.
type Decoder struct {
	tree *Tree
}

// New builds a Decoder bound to the given decode tree.
func New(tree *Tree) *Decoder {
	return &Decoder{tree: tree}
}

// Decode repeatedly descends the tree from its root, applying any
// prefix-only instructions to ctx and continuing, until either a full
// instruction is decoded (its operands consumed and its Size set) or the
// descent fails, in which case (nil, ErrDecodeMiss) is returned and the
// cursor is rewound to the byte the failing descent started at (just after
// any prefix bytes already applied), matching spec.md §4.D's failure
// contract (caller emits a length-1 "unknown opcode" pseudo-entity). The
// returned Size counts every consumed byte, prefixes included.
func (d *Decoder) Decode(cursor *Cursor, ctx *Context) (*Instruction, error) {
	ctx.SetFileOffset(cursor.Position())
	for {
		inst, err := d.descend(cursor, ctx, d.tree.root)
		if err != nil {
			return nil, err
		}
		if inst.IsPrefixOnly() {
			ctx.ApplyPrefix(inst)
			continue
		}
		if err := inst.decode(cursor, ctx); err != nil {
			return nil, fmt.Errorf("decoder: decode exception: %w", err)
		}
		inst.Address = ctx.VirtualAddress
		inst.Size = cursor.Position() - ctx.FileOffset
		ctx.Reset()
		return inst, nil
	}
}

// descend implements spec.md §4.D's recursive step: read one byte, try the
// sub-tree first and propagate success, otherwise consult the leaf list at
// that byte and disambiguate by ModR/M group extension when needed.
func (d *Decoder) descend(cursor *Cursor, ctx *Context, node *treeNode) (*Instruction, error) {
	b, err := cursor.ReadU8()
	if err != nil {
		return nil, ErrDecodeMiss
	}
	ctx.AddDecodedPrefix(b)

	if sub := node.SubTree(b); sub != nil {
		if inst, err := d.descend(cursor, ctx, sub); err == nil {
			return inst, nil
		}
	}

	leaves := node.Leaves(b)
	if leaves == nil {
		cursor.Skip(-1)
		ctx.RemoveDecodedPrefixTop()
		return nil, ErrDecodeMiss
	}

	var selected *OpcodeSyntax
	var extension *uint8
	for _, syntax := range leaves {
		if syntax.HasExtension {
			if extension == nil {
				peek, err := cursor.PeekU8()
				if err != nil {
					cursor.Skip(-1)
					ctx.RemoveDecodedPrefixTop()
					return nil, ErrDecodeMiss
				}
				e := (peek >> 3) & 0x07
				extension = &e
			}
			if syntax.Extension == *extension {
				selected = syntax
				break
			}
		} else {
			// First match wins: a documented policy, not a bug (spec.md §9).
			selected = syntax
			break
		}
	}

	if selected == nil {
		cursor.Skip(-1)
		ctx.RemoveDecodedPrefixTop()
		return nil, ErrDecodeMiss
	}

	return &Instruction{Syntax: selected}, nil
}
