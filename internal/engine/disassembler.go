package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"dasm/internal/decoder"
	"dasm/internal/dlog"
	"dasm/internal/image"
)

// ErrAlreadyRunning is returned by Start when the worker is already
// running (spec.md §5, "start is idempotent-per-run").
var ErrAlreadyRunning = errors.New("engine: already running")

// ErrNotRunning is returned by Stop when no worker is running.
var ErrNotRunning = errors.New("engine: not running")

// Disassembler is the trace-driven disassembly engine of spec.md §4.F: a
// single dedicated worker draining a priority work queue, reconciling
// decodings against a Store, and running the trampoline post-pass (§4.G)
// once the queue drains.
type Disassembler struct {
	img      image.Image
	dec      *decoder.Decoder
	store    *Store
	resolver *NameResolver
	queue    *workQueue

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Disassembler over img, decoding against tree.
func New(img image.Image, tree *decoder.Tree) *Disassembler {
	store := NewStore()
	return &Disassembler{
		img:      img,
		dec:      decoder.New(tree),
		store:    store,
		resolver: NewNameResolver(store, img.GetImports()),
		queue:    newWorkQueue(),
	}
}

// Store exposes the underlying data store for read-only queries (listing,
// CLI summaries, tests).
func (d *Disassembler) Store() *Store { return d.store }

// AddListener registers l with the store's listener set.
func (d *Disassembler) AddListener(l Listener) { d.store.AddListener(l) }

// RemoveListener unregisters l.
func (d *Disassembler) RemoveListener(l Listener) { d.store.RemoveListener(l) }

// ResolveAddress implements the control surface's resolve_address.
func (d *Disassembler) ResolveAddress(addr uint64) (string, bool) {
	return d.resolver.ResolveAddress(addr)
}

// PatchByte implements SPEC_FULL.md's supplemented patch_byte control
// primitive: it writes through to the image, then reanalyzes addr.
func (d *Disassembler) PatchByte(addr uint64, value byte) error {
	patcher, ok := d.img.(image.Patcher)
	if !ok {
		return fmt.Errorf("engine: image does not support patching")
	}
	if err := patcher.PatchByte(addr, value); err != nil {
		return err
	}
	return d.Reanalyze(addr)
}

// Start registers imports as named functions, enqueues code work at the
// image's entry point, and launches the worker goroutine. It fails with
// ErrAlreadyRunning if a worker is already active (spec.md §5).
func (d *Disassembler) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrAlreadyRunning
	}

	for addr, name := range d.img.GetImports() {
		fn := NewFunction(addr, addr, name, d.resolver)
		d.store.InsertFunction(fn)
		d.store.TellListeners(addr)
	}

	entry := d.img.CodeEntryPointMem()
	if d.store.FunctionAtStart(entry) == nil {
		fn := NewFunction(entry, entry, defaultFunctionName(entry), d.resolver)
		d.store.InsertFunction(fn)
		d.store.TellListeners(entry)
	}
	d.queue.pushCode(entry)

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.running = true
	d.wg.Add(1)
	go d.run(ctx)
	return nil
}

// Stop signals cancellation and joins the worker. Partial state is
// preserved and consistent, per spec.md §5's cancellation semantics.
func (d *Disassembler) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrNotRunning
	}
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	return nil
}

// Wait blocks until the worker finishes draining the queue on its own,
// without requesting cancellation — the synchronous-completion path a
// one-shot CLI driver needs.
func (d *Disassembler) Wait() {
	d.wg.Wait()
}

// Reanalyze clears any decoded entity at addr and re-enqueues it as code
// work, per spec.md §6's control surface.
func (d *Disassembler) Reanalyze(addr uint64) error {
	if !d.img.IsValidAddress(addr) {
		return image.ErrInvalidAddress
	}
	d.store.ClearDecodedEntity(addr)
	d.queue.pushCode(addr)
	return nil
}

func (d *Disassembler) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			dlog.Default().Error("engine: worker panic", "panic", r, "stack", string(debug.Stack()))
		}
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.store.notifyAnalyzeStop()
		d.wg.Done()
	}()

	d.store.notifyAnalyzeStart()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, ok := d.queue.pop()
		if !ok {
			break
		}
		if item.isData {
			d.analyzeData(item.addr)
		} else {
			d.disassembleTrace(item.addr)
		}
	}

	d.postPass()
}

// disassembleTrace walks a linear trace from addr, inserting instructions
// until a terminator, an already-decoded address, an overlap, or an
// invalid address stops it — spec.md §4.F.
func (d *Disassembler) disassembleTrace(startAddr uint64) {
	fn := d.store.FunctionAtStart(startAddr)
	addr := startAddr
	progressed := false

	for {
		if e := d.store.EntityOnExactAddress(addr); e != nil {
			if _, ok := e.(*InstructionEntity); ok {
				break
			}
		}
		if e := d.store.FindEntityOnAddress(addr); e != nil {
			dlog.Default().Warn("engine: overlapping decode", "addr", fmt.Sprintf("%#x", addr))
			break
		}
		if !d.img.IsValidAddress(addr) {
			break
		}

		ctx := d.img.CreateContext()
		ctx.VirtualAddress = addr

		seq, err := d.img.GetByteSequence(addr, true)
		if err != nil {
			dlog.Default().Warn("engine: acquiring byte sequence", "addr", fmt.Sprintf("%#x", addr), "err", err)
			break
		}
		inst, decErr := d.decodeSafely(seq, ctx)
		seq.Release()

		if decErr != nil {
			d.store.notifyAnalyzeError(addr)
			if errors.Is(decErr, decoder.ErrDecodeMiss) {
				d.store.InsertEntity(NewUnknownEntity(addr))
			} else {
				dlog.Default().Warn("engine: decode exception", "addr", fmt.Sprintf("%#x", addr), "err", decErr)
			}
			break
		}

		ent := NewInstructionEntity(inst)
		if !d.store.InsertEntity(ent) {
			break
		}
		d.store.notifyDecode(addr, inst.Size, ent)
		progressed = true

		d.examineInstruction(ent, fn)

		if inst.StopsTrace() {
			break
		}
		addr += uint64(inst.Size)
		if next := d.store.FunctionAtStart(addr); next != nil {
			fn = next
		}
	}

	if progressed && fn != nil && fn.End() < addr {
		d.store.UpdateFunctionEnd(fn, addr)
	}
}

// decodeSafely recovers a panic from a malformed operand into a
// DecodeException error, per spec.md §7.
func (d *Disassembler) decodeSafely(seq *image.ByteSequence, ctx *decoder.Context) (inst *decoder.Instruction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: decode exception: %v", r)
		}
	}()
	return d.dec.Decode(seq.Cursor(), ctx)
}

// examineInstruction discovers new work from a just-decoded instruction's
// operands, per spec.md §4.F.
func (d *Disassembler) examineInstruction(ent *InstructionEntity, fn *Function) {
	inst := ent.Inst

	for _, b := range inst.BranchTargets() {
		if !d.img.IsValidAddress(b) {
			d.store.notifyAnalyzeError(b)
			continue
		}
		if inst.IsFunctionCall() {
			d.store.InsertReference(ent, b)
			if d.store.FunctionAtStart(b) == nil {
				target := NewFunction(b, b, defaultFunctionName(b), d.resolver)
				d.store.InsertFunction(target)
				d.store.TellListeners(b)
			}
		} else if fn != nil {
			// Associate b with the current function so that, when traced,
			// it inherits the function rather than starting a new one.
			d.store.AssociateAddress(b, fn)
		}
		d.queue.pushCode(b)
		break // spec.md §9: only the first valid branch target is enqueued.
	}

	for _, a := range inst.AssociatedData() {
		d.store.InsertReference(ent, a)
		d.queue.pushData(a)
	}

	for _, p := range inst.ProbableDataPointers() {
		if !d.img.IsValidAddress(p) {
			continue
		}
		if d.store.EntityOnExactAddress(p) != nil {
			continue
		}
		d.store.InsertReference(ent, p)
		if d.img.IsCodeAddress(p) {
			d.queue.pushCode(p)
		} else {
			d.queue.pushData(p)
		}
	}
}

func defaultFunctionName(addr uint64) string {
	return fmt.Sprintf("sub_%x", addr)
}

// analyzeData classifies the bytes at addr and inserts a DataEntity,
// unless an instruction already covers the address (data must never
// overwrite code) or data already covers it (refinement unsupported),
// per spec.md §4.F.
func (d *Disassembler) analyzeData(addr uint64) {
	if e := d.store.FindEntityOnAddress(addr); e != nil {
		switch e.(type) {
		case *InstructionEntity:
			dlog.Default().Warn("engine: data would overwrite code, abandoning", "addr", fmt.Sprintf("%#x", addr))
			return
		case *DataEntity:
			return
		}
	}

	seq, err := d.img.GetByteSequence(addr, true)
	if err != nil {
		d.store.notifyAnalyzeError(addr)
		dlog.Default().Warn("engine: acquiring byte sequence for data", "addr", fmt.Sprintf("%#x", addr), "err", err)
		return
	}
	data := classifyData(addr, seq.Cursor())
	seq.Release()

	d.store.InsertEntity(data)
	for _, src := range d.store.ReferencesTo(addr) {
		d.store.TellListeners(src.Address())
	}
}

// postPass implements spec.md §4.G's trampoline detection: a function
// whose first instruction is a jump with exactly one literal memory operand
// (an indirect jump through a slot), where that slot address is another
// known function's start, is renamed with a leading "!". Direct rel8/rel32
// jumps have no such operand and are not renamed.
func (d *Disassembler) postPass() {
	for _, f := range d.store.Functions() {
		e := d.store.EntityOnExactAddress(f.Start)
		inst, ok := e.(*InstructionEntity)
		if !ok || !inst.Inst.IsJump() {
			continue
		}
		targets := inst.Inst.AssociatedData()
		if len(targets) != 1 {
			continue
		}
		t := targets[0]
		g := d.store.FunctionAtStart(t)
		if g == nil || g == f {
			continue
		}
		f.SetName("!" + g.Name())
		d.store.TellListeners(t)
	}
}
