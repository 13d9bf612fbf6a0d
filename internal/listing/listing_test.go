package listing_test

import (
	"testing"

	"dasm/internal/decoder"
	"dasm/internal/engine"
	"dasm/internal/listing"
	"dasm/internal/x86table"
)

func TestInstructionTextRegisterForms(t *testing.T) {
	tree := decoder.BuildTree(x86table.New())
	d := decoder.New(tree)

	cursor := decoder.NewCursor([]byte{0x89, 0xC1}) // mov ecx, eax
	ctx := decoder.NewContext()
	ctx.VirtualAddress = 0x1000

	inst, err := d.Decode(cursor, ctx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	text := listing.InstructionText(inst)
	if text != "mov ecx, eax" {
		t.Fatalf("text = %q, want %q", text, "mov ecx, eax")
	}
}

func TestTextForDataAndUnknown(t *testing.T) {
	d := &engine.DataEntity{Addr: 0x2000, Length: 4, Type: engine.DataString, Text: "hi"}
	if got, want := listing.TextFor(d), `db "hi", 0`; got != want {
		t.Fatalf("TextFor(string) = %q, want %q", got, want)
	}

	u := engine.NewUnknownEntity(0x3000)
	got := listing.TextFor(u)
	if got == "" {
		t.Fatal("TextFor(unknown) returned empty string")
	}
}
