package asp

import (
	"sort"
	"sync"
)

// atomEntry is one symbol tracked by the domain together with its solver
// literal and grounding status.
type atomEntry struct {
	sym      Symbol
	lit      Literal
	fact     bool
	external bool
}

// SymbolicAtoms maps interned symbols to solver-level literals and tracks
// their fact/external status. The domain is owned by a Control and mutated
// only by grounding rounds; reads are safe from any goroutine.
//
// Iteration uses lightweight cursors (SymbolicAtomIter). A cursor retained
// across a domain-mutating call becomes invalid, not undefined: Valid
// reports false and every accessor fails with a logic error, so callers
// must re-validate cursors held across a new grounding round and treat
// stale ones as empty.
type SymbolicAtoms struct {
	mu       sync.RWMutex
	entries  []atomEntry
	index    map[uint64][]int // symbol hash -> candidate entry indices
	revision uint64
	sigBuf   []Signature // reused by Signatures; valid until its next call
}

func newSymbolicAtoms() *SymbolicAtoms {
	return &SymbolicAtoms{index: make(map[uint64][]int)}
}

// add registers sym with the given literal, returning the entry index. The
// caller must hold no iterators it intends to keep using; revisions are
// bumped by the grounding round, not per insertion.
func (d *SymbolicAtoms) add(sym Symbol, lit Literal) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.lookupLocked(sym); ok {
		return i
	}
	i := len(d.entries)
	d.entries = append(d.entries, atomEntry{sym: sym, lit: lit})
	d.index[sym.Hash()] = append(d.index[sym.Hash()], i)
	return i
}

func (d *SymbolicAtoms) lookupLocked(sym Symbol) (int, bool) {
	for _, i := range d.index[sym.Hash()] {
		if d.entries[i].sym.Equal(sym) {
			return i, true
		}
	}
	return 0, false
}

func (d *SymbolicAtoms) setFact(i int)               { d.mu.Lock(); d.entries[i].fact = true; d.mu.Unlock() }
func (d *SymbolicAtoms) setExternal(i int, ext bool) { d.mu.Lock(); d.entries[i].external = ext; d.mu.Unlock() }

// invalidate marks the start of a new grounding round, invalidating every
// outstanding cursor.
func (d *SymbolicAtoms) invalidate() {
	d.mu.Lock()
	d.revision++
	d.mu.Unlock()
}

// Length returns the number of atoms in the domain.
func (d *SymbolicAtoms) Length() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Lookup returns a cursor positioned at the entry for sym. If the symbol is
// not present the cursor is the explicit not-present sentinel: Valid
// reports false. Expected-constant time.
func (d *SymbolicAtoms) Lookup(sym Symbol) SymbolicAtomIter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i, ok := d.lookupLocked(sym); ok {
		return SymbolicAtomIter{dom: d, rev: d.revision, pos: i}
	}
	return SymbolicAtomIter{dom: d, rev: d.revision, pos: len(d.entries)}
}

// Iterate returns a cursor positioned at the first atom whose signature
// matches sig, or at the first atom of the whole domain when sig is nil.
func (d *SymbolicAtoms) Iterate(sig *Signature) SymbolicAtomIter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	it := SymbolicAtomIter{dom: d, rev: d.revision, pos: -1}
	if sig != nil {
		s := *sig
		it.sig = &s
	}
	it.advanceLocked()
	return it
}

// Signatures returns the distinct signatures of all function atoms in the
// domain, in ascending order. The returned slice is a copy-on-read snapshot
// backed by the domain and stays valid until the next call to Signatures on
// the same domain object; callers keeping it longer must copy it.
func (d *SymbolicAtoms) Signatures() []Signature {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[uint64]struct{})
	d.sigBuf = d.sigBuf[:0]
	for _, e := range d.entries {
		sig, err := e.sym.Signature()
		if err != nil {
			continue
		}
		if _, ok := seen[sig.Hash()]; ok {
			continue
		}
		seen[sig.Hash()] = struct{}{}
		d.sigBuf = append(d.sigBuf, sig)
	}
	sort.Slice(d.sigBuf, func(i, j int) bool { return d.sigBuf[i].Less(d.sigBuf[j]) })
	return d.sigBuf
}

// SymbolicAtomIter is a cursor over a SymbolicAtoms domain. The zero value
// is invalid. Cursors are cheap values; copying one copies the position.
type SymbolicAtomIter struct {
	dom *SymbolicAtoms
	sig *Signature
	rev uint64
	pos int
}

// Valid reports whether the cursor references an atom. It returns false at
// the end of iteration, for the not-present sentinel, and for cursors made
// stale by a later grounding round. Valid must be checked before
// dereferencing a cursor retained across a domain-mutating call.
func (it SymbolicAtomIter) Valid() bool {
	if it.dom == nil {
		return false
	}
	it.dom.mu.RLock()
	defer it.dom.mu.RUnlock()
	return it.validLocked()
}

func (it SymbolicAtomIter) validLocked() bool {
	return it.rev == it.dom.revision && it.pos >= 0 && it.pos < len(it.dom.entries)
}

// matchesLocked reports whether the entry at pos passes the signature
// filter.
func (it SymbolicAtomIter) matchesLocked() bool {
	if it.sig == nil {
		return true
	}
	sig, err := it.dom.entries[it.pos].sym.Signature()
	return err == nil && sig.Equal(*it.sig)
}

// advanceLocked moves pos forward to the next matching entry.
func (it *SymbolicAtomIter) advanceLocked() {
	for it.pos++; it.pos < len(it.dom.entries); it.pos++ {
		if it.matchesLocked() {
			return
		}
	}
}

// Next advances the cursor to the following matching atom and reports
// whether it still references one. Advancing a stale or exhausted cursor
// leaves it invalid and returns false.
func (it *SymbolicAtomIter) Next() bool {
	if it.dom == nil {
		return false
	}
	it.dom.mu.RLock()
	defer it.dom.mu.RUnlock()
	if !it.validLocked() {
		return false
	}
	it.advanceLocked()
	return it.pos < len(it.dom.entries)
}

// deref returns the entry under the cursor, or a logic error for invalid
// cursors.
func (it SymbolicAtomIter) deref() (atomEntry, error) {
	if it.dom == nil {
		return atomEntry{}, newError(CodeLogic, "dereference of zero atom cursor")
	}
	it.dom.mu.RLock()
	defer it.dom.mu.RUnlock()
	if !it.validLocked() {
		return atomEntry{}, newError(CodeLogic, "dereference of invalid atom cursor")
	}
	return it.dom.entries[it.pos], nil
}

// Symbol returns the atom's symbol.
func (it SymbolicAtomIter) Symbol() (Symbol, error) {
	e, err := it.deref()
	return e.sym, err
}

// Literal returns the solver literal associated with the atom.
func (it SymbolicAtomIter) Literal() (Literal, error) {
	e, err := it.deref()
	return e.lit, err
}

// IsFact reports whether the atom holds unconditionally in every model of
// the current grounding round.
func (it SymbolicAtomIter) IsFact() (bool, error) {
	e, err := it.deref()
	return e.fact, err
}

// IsExternal reports whether the atom's truth is controlled outside normal
// rule evaluation.
func (it SymbolicAtomIter) IsExternal() (bool, error) {
	e, err := it.deref()
	return e.external, err
}
