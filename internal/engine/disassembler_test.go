package engine_test

import (
	"sync"
	"testing"

	"dasm/internal/decoder"
	"dasm/internal/engine"
	"dasm/internal/image"
	"dasm/internal/x86table"
)

func buildTree() *decoder.Tree {
	return decoder.BuildTree(x86table.New())
}

// recorder is a test spy implementing engine.Listener, recording every
// OnAnalyzeError address seen — used to assert spec.md §8's "a jump to an
// invalid address emits on_analyze_error and does not stop the trace"
// boundary without depending on ordering.
type recorder struct {
	mu     sync.Mutex
	errors []uint64
}

func (r *recorder) OnAnalyzeStart()                                 {}
func (r *recorder) OnAnalyzeStop()                                   {}
func (r *recorder) OnChange(addr uint64)                             {}
func (r *recorder) OnDecode(addr uint64, length int, e engine.Entity) {}
func (r *recorder) OnAnalyzeError(addr uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, addr)
}

// TestEntryPointNopRet covers spec.md §8 scenario 1: entry bytes 90 C3
// produce two instructions and a function [entry, entry+1].
func TestEntryPointNopRet(t *testing.T) {
	const base = 0x1000
	img := image.NewMemImage(base, []byte{0x90, 0xC3})

	d := engine.New(img, buildTree())
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Wait()

	store := d.Store()
	if store.EntityOnExactAddress(base) == nil {
		t.Fatal("missing entity at entry point")
	}
	if store.EntityOnExactAddress(base+1) == nil {
		t.Fatal("missing entity at entry+1")
	}
	fn := store.FunctionAtStart(base)
	if fn == nil {
		t.Fatal("missing function at entry point")
	}
	if fn.End() != base+1 {
		t.Fatalf("function end = %#x, want %#x", fn.End(), base+1)
	}
}

// TestCallAndReturn covers spec.md §8 scenario 2: E8 04 00 00 00 C3 90 90
// 90 C3 produces two functions, one with a call reference to the final RET
// at entry+9 (next instruction entry+5, plus rel32 4).
func TestCallAndReturn(t *testing.T) {
	const base = 0x1000
	data := []byte{0xE8, 0x04, 0x00, 0x00, 0x00, 0xC3, 0x90, 0x90, 0x90, 0xC3}
	img := image.NewMemImage(base, data)

	d := engine.New(img, buildTree())
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Wait()

	store := d.Store()
	entryFn := store.FunctionAtStart(base)
	if entryFn == nil {
		t.Fatal("missing entry function")
	}
	if entryFn.End() != base+5 {
		t.Fatalf("entry function end = %#x, want %#x", entryFn.End(), base+5)
	}

	calleeFn := store.FunctionAtStart(base + 9)
	if calleeFn == nil {
		t.Fatal("missing callee function at entry+9")
	}

	refs := store.ReferencesTo(base + 9)
	if len(refs) == 0 {
		t.Fatal("expected a call reference to entry+9")
	}
}

// TestTrampolineRenamed covers spec.md §8 scenario 3: an import at 0x2000
// named ExitProcess, and a stub at 0x1000 containing FF 25 00 20 00 00
// (indirect jump through the import slot) renames the stub function to
// "!ExitProcess".
func TestTrampolineRenamed(t *testing.T) {
	const stubBase = 0x1000
	const importAddr = 0x2000

	img := image.NewMemImage(stubBase, []byte{0xFF, 0x25, 0x00, 0x20, 0x00, 0x00})
	img.AddImport(importAddr, "ExitProcess")

	d := engine.New(img, buildTree())
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Wait()

	stubFn := d.Store().FunctionAtStart(stubBase)
	if stubFn == nil {
		t.Fatal("missing stub function")
	}
	if got, want := stubFn.Name(), "!ExitProcess"; got != want {
		t.Fatalf("stub name = %q, want %q", got, want)
	}
}

// TestUnknownOpcodeStopsTraceAndNotifies covers spec.md §8 scenario 4: a
// byte that fails to decode emits on_analyze_error and stops that trace
// without inserting a real instruction entity.
func TestUnknownOpcodeStopsTraceAndNotifies(t *testing.T) {
	const base = 0x1000
	img := image.NewMemImage(base, []byte{0x0F, 0xFF})

	d := engine.New(img, buildTree())
	rec := &recorder{}
	d.AddListener(rec)

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	found := false
	for _, a := range rec.errors {
		if a == base {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an analyze error at %#x, got %#v", base, rec.errors)
	}
	if e := d.Store().EntityOnExactAddress(base); e == nil {
		t.Fatal("expected an unknown-opcode pseudo-entity at the failing address")
	} else if _, ok := e.(*engine.InstructionEntity); ok {
		t.Fatal("should not have inserted a real instruction entity")
	}
}

// TestInvalidBranchDoesNotStopTrace covers spec.md §8: "A jump to an
// invalid address emits on_analyze_error and does not stop the trace
// (other successors proceed)." A conditional jump to an out-of-image
// address is still followed by the fall-through path.
func TestInvalidBranchDoesNotStopTrace(t *testing.T) {
	const base = 0x1000
	// je +0x7f (an address far outside the tiny image), then ret.
	data := []byte{0x74, 0x7F, 0xC3}
	img := image.NewMemImage(base, data)

	d := engine.New(img, buildTree())
	rec := &recorder{}
	d.AddListener(rec)

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Wait()

	if d.Store().EntityOnExactAddress(base+2) == nil {
		t.Fatal("fall-through ret should still have been traced")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errors) == 0 {
		t.Fatal("expected an analyze error for the invalid branch target")
	}
}

// TestReanalyzeClearsAndRequeues exercises the control surface's
// reanalyze(addr): after a patch, the byte at the entry point changes from
// NOP to HLT and reanalysis must pick up the new decoding.
func TestReanalyzeClearsAndRequeues(t *testing.T) {
	const base = 0x1000
	img := image.NewMemImage(base, []byte{0x90, 0xC3})

	d := engine.New(img, buildTree())
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Wait()

	if err := d.PatchByte(base, 0xF4); err != nil {
		t.Fatalf("PatchByte: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start after patch: %v", err)
	}
	d.Wait()

	e := d.Store().EntityOnExactAddress(base)
	inst, ok := e.(*engine.InstructionEntity)
	if !ok {
		t.Fatalf("expected instruction entity at %#x, got %#v", base, e)
	}
	if inst.Inst.Mnemonic() != "hlt" {
		t.Fatalf("mnemonic = %q, want hlt", inst.Inst.Mnemonic())
	}
}

// TestResolveAddress covers the control surface's resolve_address, backed
// by an import name.
func TestResolveAddress(t *testing.T) {
	const base = 0x1000
	const importAddr = 0x2000
	img := image.NewMemImage(base, []byte{0xC3})
	img.AddImport(importAddr, "ExitProcess")

	d := engine.New(img, buildTree())
	name, ok := d.ResolveAddress(importAddr)
	if !ok || name != "ExitProcess" {
		t.Fatalf("ResolveAddress(%#x) = (%q, %v), want (%q, true)", importAddr, name, ok, "ExitProcess")
	}

	if _, ok := d.ResolveAddress(0xDEAD); ok {
		t.Fatal("expected no resolution for an unknown address")
	}
}

// TestAlreadyRunningRejected covers spec.md §5: start is idempotent-per-run.
func TestAlreadyRunningRejected(t *testing.T) {
	img := image.NewMemImage(0x1000, []byte{0xEB, 0xFE}) // jmp $ (traced once; the queue then drains and the worker exits)
	d := engine.New(img, buildTree())

	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(); err != engine.ErrAlreadyRunning {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}
}
