// Package engine implements the disassembly data store and the
// trace-driven disassembly engine of spec.md §4.E-G: a priority work queue
// that pulls code and data addresses, an address-indexed store of decoded
// entities with cross-reference edges and listener notification, and the
// trampoline-detecting post-pass.
//
// Grounded on _examples/original_source/.../disassembler/Disassembler.java
// (work queue, disassembleTrace, examineInstruction, analyzeData, the
// trampoline post-pass, and the double-Function-instantiation bug fix
// spec.md §9 calls for) and on the teacher's sync.RWMutex-guarded cache
// idiom in _examples/Dhruvchaudhary255-reverse/internal/analysis/symbols.go,
// generalized here to a copy-on-write listener snapshot.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"dasm/internal/dlog"
)

// AddressInfo bundles a covering entity with its inbound references, the
// "DataEntry bundle" spec.md §4.E's info_covering_address returns.
type AddressInfo struct {
	Entity     Entity
	References []Entity
}

// Store is the disassembly data store of spec.md §4.E: an address-indexed
// entity map with an interval index, the function list, cross-reference
// edges, and the listener set.
type Store struct {
	mu       sync.Mutex
	entities map[uint64]Entity
	ordered  []Entity // sorted by Address(), the "interval index"

	funcsByStart map[uint64]*Function
	funcsSorted  []*Function // sorted by Start, for covering queries
	pendingFn    map[uint64]*Function // non-call branch targets associated with a function ahead of tracing

	refs map[uint64][]Entity // target address -> incoming source entities

	lmu       sync.Mutex
	listeners []Listener
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entities:     make(map[uint64]Entity),
		funcsByStart: make(map[uint64]*Function),
		pendingFn:    make(map[uint64]*Function),
		refs:         make(map[uint64][]Entity),
	}
}

// InsertEntity stores e at e.Address() per spec.md §4.E, provided no prior
// entity claims that exact address and it does not partially overlap an
// existing one (spec.md §8 invariant 5). On success it notifies listeners
// for that address and returns true; on conflict it logs an Overlap and
// discards the new decoding (spec.md §7), returning false.
func (s *Store) InsertEntity(e Entity) bool {
	s.mu.Lock()
	if existing, exists := s.entities[e.Address()]; exists {
		s.mu.Unlock()
		dlog.Default().Warn("engine: overlap, exact address already claimed", "addr", fmt.Sprintf("%#x", e.Address()), "existing", existing)
		return false
	}
	if covering := s.findEntityLocked(e.Address()); covering != nil {
		s.mu.Unlock()
		dlog.Default().Warn("engine: overlap, address covered by a prior decoding", "addr", fmt.Sprintf("%#x", e.Address()), "covering", covering)
		return false
	}
	s.entities[e.Address()] = e
	s.insertOrderedLocked(e)
	s.mu.Unlock()

	s.TellListeners(e.Address())
	return true
}

func (s *Store) insertOrderedLocked(e Entity) {
	i := sort.Search(len(s.ordered), func(i int) bool { return s.ordered[i].Address() >= e.Address() })
	s.ordered = append(s.ordered, nil)
	copy(s.ordered[i+1:], s.ordered[i:])
	s.ordered[i] = e
}

// EntityOnExactAddress returns the entity filed at exactly addr, or nil.
func (s *Store) EntityOnExactAddress(addr uint64) Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[addr]
}

// FindEntityOnAddress returns the entity whose range covers addr (a
// covering lookup, possibly the entity that starts exactly at addr), or
// nil.
func (s *Store) FindEntityOnAddress(addr uint64) Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findEntityLocked(addr)
}

func (s *Store) findEntityLocked(addr uint64) Entity {
	i := sort.Search(len(s.ordered), func(i int) bool { return s.ordered[i].Address() > addr }) - 1
	if i < 0 || i >= len(s.ordered) {
		return nil
	}
	e := s.ordered[i]
	if addr >= e.Address() && addr < e.Address()+uint64(e.Size()) {
		return e
	}
	return nil
}

// InfoCoveringAddress returns the entity covering addr bundled with its
// inbound references, or nil if nothing covers it.
func (s *Store) InfoCoveringAddress(addr uint64) *AddressInfo {
	e := s.FindEntityOnAddress(addr)
	if e == nil {
		return nil
	}
	return &AddressInfo{Entity: e, References: s.ReferencesTo(e.Address())}
}

// ClearDecodedEntity drops the entity at addr (if any) and detaches
// references pointing at it, per spec.md §4.E.
func (s *Store) ClearDecodedEntity(addr uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[addr]; !ok {
		return
	}
	delete(s.entities, addr)
	for i, e := range s.ordered {
		if e.Address() == addr {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	delete(s.refs, addr)
}

// InsertReference adds a cross-reference edge src -> target, attaching src
// to target's inbound set (spec.md §4.E).
func (s *Store) InsertReference(src Entity, target uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[target] = append(s.refs[target], src)
}

// ReferencesTo returns the snapshot of entities referencing target.
func (s *Store) ReferencesTo(target uint64) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entity, len(s.refs[target]))
	copy(out, s.refs[target])
	return out
}

// InsertFunction adds f to both the function index and the covering list;
// a single *Function instance is shared by both, fixing the visible
// double-instantiation bug spec.md §9 documents.
func (s *Store) InsertFunction(f *Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcsByStart[f.Start] = f
	i := sort.Search(len(s.funcsSorted), func(i int) bool { return s.funcsSorted[i].Start >= f.Start })
	s.funcsSorted = append(s.funcsSorted, nil)
	copy(s.funcsSorted[i+1:], s.funcsSorted[i:])
	s.funcsSorted[i] = f
}

// UpdateFunctionEnd grows f's end to addr, per spec.md §4.E.
func (s *Store) UpdateFunctionEnd(f *Function, end uint64) {
	f.GrowEnd(end)
}

// FunctionAtStart returns the function registered to begin exactly at
// addr — either because addr is a known function's own Start, or because
// a non-call branch earlier associated addr with its current function
// (spec.md §4.F: "so the branch target, when traced, inherits the
// function"). The latter is consulted only as a fallback.
func (s *Store) FunctionAtStart(addr uint64) *Function {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.funcsByStart[addr]; ok {
		return f
	}
	return s.pendingFn[addr]
}

// AssociateAddress records that, when addr is traced, it should be treated
// as belonging to f even though addr is not f's own Start.
func (s *Store) AssociateAddress(addr uint64, f *Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingFn[addr] = f
}

// FunctionCovering returns the function whose [Start, End] range contains
// addr, or nil — spec.md §3's "function covering an address" invariant.
func (s *Store) FunctionCovering(addr uint64) *Function {
	s.mu.Lock()
	fns := s.funcsSorted
	s.mu.Unlock()
	i := sort.Search(len(fns), func(i int) bool { return fns[i].Start > addr }) - 1
	if i < 0 || i >= len(fns) {
		return nil
	}
	if fns[i].Covers(addr) {
		return fns[i]
	}
	return nil
}

// Functions returns a snapshot of every discovered function.
func (s *Store) Functions() []*Function {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Function, len(s.funcsSorted))
	copy(out, s.funcsSorted)
	return out
}

// EntityCount reports how many entities are currently stored.
func (s *Store) EntityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// FunctionCount reports how many functions have been discovered.
func (s *Store) FunctionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.funcsSorted)
}

// ReferenceCount reports how many cross-reference edges have been recorded.
func (s *Store) ReferenceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, srcs := range s.refs {
		n += len(srcs)
	}
	return n
}

// AddListener registers l. Registration is copy-on-write so notification
// dispatch (TellListeners et al.) never blocks on it, per spec.md §5.
func (s *Store) AddListener(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	next := make([]Listener, len(s.listeners)+1)
	copy(next, s.listeners)
	next[len(s.listeners)] = l
	s.listeners = next
}

// RemoveListener unregisters l.
func (s *Store) RemoveListener(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	next := make([]Listener, 0, len(s.listeners))
	for _, existing := range s.listeners {
		if existing != l {
			next = append(next, existing)
		}
	}
	s.listeners = next
}

func (s *Store) snapshotListeners() []Listener {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	return s.listeners
}

// TellListeners delivers a change notification for addr to every
// registered listener, synchronously on the caller's goroutine.
func (s *Store) TellListeners(addr uint64) {
	for _, l := range s.snapshotListeners() {
		l.OnChange(addr)
	}
}

func (s *Store) notifyAnalyzeStart() {
	for _, l := range s.snapshotListeners() {
		l.OnAnalyzeStart()
	}
}

func (s *Store) notifyAnalyzeStop() {
	for _, l := range s.snapshotListeners() {
		l.OnAnalyzeStop()
	}
}

func (s *Store) notifyAnalyzeError(addr uint64) {
	for _, l := range s.snapshotListeners() {
		l.OnAnalyzeError(addr)
	}
}

func (s *Store) notifyDecode(addr uint64, length int, e Entity) {
	for _, l := range s.snapshotListeners() {
		l.OnDecode(addr, length, e)
	}
}
