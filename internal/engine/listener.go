package engine

// Listener is spec.md §6's "Listener interface (exposed)": lifecycle and
// error notifications, the primary decode stream, and per-address change
// notifications delivered through the disassembly data store. Delivery is
// unordered but every listener sees every change at least once (spec.md
// §4.E); callbacks run on the worker goroutine and must not block it
// (spec.md §5).
type Listener interface {
	OnAnalyzeStart()
	OnAnalyzeStop()
	OnAnalyzeError(addr uint64)
	OnDecode(addr uint64, length int, entity Entity)
	OnChange(addr uint64)
}

// BaseListener implements Listener with no-ops; embed it to only override
// the callbacks a listener actually cares about.
type BaseListener struct{}

func (BaseListener) OnAnalyzeStart()                            {}
func (BaseListener) OnAnalyzeStop()                              {}
func (BaseListener) OnAnalyzeError(addr uint64)                  {}
func (BaseListener) OnDecode(addr uint64, length int, e Entity)  {}
func (BaseListener) OnChange(addr uint64)                        {}
