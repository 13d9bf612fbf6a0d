package image_test

import (
	"errors"
	"testing"

	"dasm/internal/image"
)

func TestMemImageByteSequenceAndPatch(t *testing.T) {
	img := image.NewMemImage(0x1000, []byte{0x90, 0xC3})
	img.AddImport(0x2000, "ExitProcess")

	if !img.IsValidAddress(0x1000) || img.IsValidAddress(0x1002) {
		t.Fatal("IsValidAddress boundary wrong")
	}
	if img.CodeEntryPointMem() != 0x1000 {
		t.Fatalf("entry = %#x, want 0x1000", img.CodeEntryPointMem())
	}

	seq, err := img.GetByteSequence(0x1001, true)
	if err != nil {
		t.Fatalf("GetByteSequence: %v", err)
	}
	b, err := seq.Cursor().ReadU8()
	seq.Release()
	if err != nil || b != 0xC3 {
		t.Fatalf("read byte = %#x, %v; want 0xC3, nil", b, err)
	}

	if _, err := img.GetByteSequence(0x5000, true); !errors.Is(err, image.ErrInvalidAddress) {
		t.Fatalf("err = %v, want ErrInvalidAddress", err)
	}

	if err := img.PatchByte(0x1000, 0xF4); err != nil {
		t.Fatalf("PatchByte: %v", err)
	}
	seq, _ = img.GetByteSequence(0x1000, true)
	b, _ = seq.Cursor().ReadU8()
	seq.Release()
	if b != 0xF4 {
		t.Fatalf("patched byte = %#x, want 0xF4", b)
	}

	if err := img.PatchByte(0x9999, 0x00); !errors.Is(err, image.ErrInvalidAddress) {
		t.Fatalf("PatchByte out of range err = %v, want ErrInvalidAddress", err)
	}

	if name, ok := img.GetImports()[0x2000]; !ok || name != "ExitProcess" {
		t.Fatalf("import lookup = %q, %v", name, ok)
	}
}

func TestMemImageDefaultEntryOverride(t *testing.T) {
	img := image.NewMemImage(0x1000, []byte{0x90, 0x90, 0xC3})
	img.SetEntry(0x1002)
	if img.CodeEntryPointMem() != 0x1002 {
		t.Fatalf("entry = %#x, want 0x1002", img.CodeEntryPointMem())
	}
}
