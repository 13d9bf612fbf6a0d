package listing

import (
	"fmt"
	"io"

	"dasm/internal/engine"
	"dasm/internal/image"
)

// Printer implements engine.Listener, writing each decode event to w as a
// listing line. It is the primary consumer of spec.md §6's "on_decode(addr,
// length, entity): primary decode stream (used by one-shot decoders
// without a data store)" and of the per-address change stream, for a CLI
// driver that wants to watch a run as it happens.
type Printer struct {
	img image.Image
	w   io.Writer
}

// NewPrinter builds a Printer that renders entities from img to w.
func NewPrinter(img image.Image, w io.Writer) *Printer {
	return &Printer{img: img, w: w}
}

// OnAnalyzeStart implements engine.Listener.
func (p *Printer) OnAnalyzeStart() {
	fmt.Fprintln(p.w, "; analysis started")
}

// OnAnalyzeStop implements engine.Listener.
func (p *Printer) OnAnalyzeStop() {
	fmt.Fprintln(p.w, "; analysis complete")
}

// OnAnalyzeError implements engine.Listener.
func (p *Printer) OnAnalyzeError(addr uint64) {
	fmt.Fprintf(p.w, "; analyze error at %#08x\n", addr)
}

// OnDecode implements engine.Listener.
func (p *Printer) OnDecode(addr uint64, length int, e engine.Entity) {
	fmt.Fprintln(p.w, Format(p.img, addr, length, e))
}

// OnChange implements engine.Listener. The printer only cares about the
// primary decode stream, not later renames/refinements, so this is a no-op.
func (p *Printer) OnChange(addr uint64) {}
