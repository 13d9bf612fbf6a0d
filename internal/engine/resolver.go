package engine

import (
	"strings"
	"sync"

	"github.com/ianlancetaylor/demangle"
)

// NameResolver backs the control surface's resolve_address(addr) (spec.md
// §6) and the rename fan-out Function.SetName drives. It consults the
// function index first, then falls back to the import map, demangling
// mangled names for display with a sync.Map cache — grounded directly on
// the teacher's CachedDemangle pattern in
// _examples/Dhruvchaudhary255-reverse/internal/analysis/symbols.go.
type NameResolver struct {
	store   *Store
	imports map[uint64]string

	demangleCache sync.Map
}

// NewNameResolver builds a resolver over store's function index and the
// image's import map.
func NewNameResolver(store *Store, imports map[uint64]string) *NameResolver {
	return &NameResolver{store: store, imports: imports}
}

// ResolveAddress implements spec.md §6's resolve_address(addr) → Option<name>.
func (r *NameResolver) ResolveAddress(addr uint64) (string, bool) {
	if fn := r.store.FunctionCovering(addr); fn != nil {
		return r.demangled(fn.Name()), true
	}
	if name, ok := r.imports[addr]; ok {
		return r.demangled(name), true
	}
	return "", false
}

// looksMangled reports whether name starts with the Itanium (_Z) or MSVC (?)
// mangling prefix. demangle.Filter returns any name it cannot demangle
// unchanged.
func looksMangled(name string) bool {
	return strings.HasPrefix(name, "_Z") || strings.HasPrefix(name, "?")
}

func (r *NameResolver) demangled(name string) string {
	if !looksMangled(name) {
		return name
	}
	if cached, ok := r.demangleCache.Load(name); ok {
		return cached.(string)
	}
	out := demangle.Filter(name, demangle.NoClones)
	r.demangleCache.Store(name, out)
	return out
}

// notifyChanged fans a Function rename out to the store's listener set for
// the given address.
func (r *NameResolver) notifyChanged(addr uint64) {
	r.store.TellListeners(addr)
}
