package asp

// ShowType selects which parts of a model Atoms returns. Values combine as
// a bitmask.
type ShowType int

const (
	// ShowCSP selects constraint-variable assignments. The core carries no
	// CSP variables, so this selects nothing.
	ShowCSP ShowType = 1 << iota

	// ShowShown selects the atoms covered by show directives; with no show
	// directive in the program, every atom is shown.
	ShowShown

	// ShowAtoms selects all symbolic atoms true in the model.
	ShowAtoms

	// ShowTerms selects shown terms. The core only shows atoms, so this
	// selects nothing.
	ShowTerms

	// ShowComplement inverts the atom selection: atoms false in the model
	// instead of true ones.
	ShowComplement = 16

	// ShowAll selects everything except the complement.
	ShowAll = ShowCSP | ShowShown | ShowAtoms | ShowTerms
)

// Model is a read-only view of one answer found during solving. It is
// valid only while the enumeration is paused on it: until the model
// callback returns, or until the next Next or Close on a SolveHandle.
// Using an invalidated model is a logic error.
type Model struct {
	sess     *session
	threadID int
	number   int64
	hash     uint64
	valid    bool

	inModel []bool // per domain entry, atom is true in the model
	buf     []Symbol
}

// buildModel snapshots the worker's total assignment restricted to the
// symbolic atom domain. Called with the session's handler lock held.
func buildModel(s *session, w *worker) *Model {
	m := &Model{sess: s, threadID: w.id, valid: true}
	dom := s.ctl.dom
	dom.mu.RLock()
	m.inModel = make([]bool, len(dom.entries))
	var trueIdx []int
	for i, e := range dom.entries {
		if w.asg.isTrueFast(e.lit) {
			m.inModel[i] = true
			trueIdx = append(trueIdx, i)
		}
	}
	dom.mu.RUnlock()
	m.hash = s.modelHash(trueIdx)
	return m
}

// ThreadID returns the id of the worker that found the model.
func (m *Model) ThreadID() (int, error) {
	if !m.valid {
		return 0, newError(CodeLogic, "model is no longer valid")
	}
	return m.threadID, nil
}

// Number returns the 1-based position of the model in the enumeration.
func (m *Model) Number() (int64, error) {
	if !m.valid {
		return 0, newError(CodeLogic, "model is no longer valid")
	}
	return m.number, nil
}

// Contains reports whether the atom is true in the model. Atoms outside
// the domain are false.
func (m *Model) Contains(atom Symbol) (bool, error) {
	if !m.valid {
		return false, newError(CodeLogic, "model is no longer valid")
	}
	it := m.sess.ctl.dom.Lookup(atom)
	if !it.Valid() {
		return false, nil
	}
	return m.inModel[it.pos], nil
}

// Atoms returns the symbols selected by the show mask. The returned slice
// is reused by the next Atoms call on any model of this solve; callers
// keeping it longer must copy.
func (m *Model) Atoms(show ShowType) ([]Symbol, error) {
	if !m.valid {
		return nil, newError(CodeLogic, "model is no longer valid")
	}
	dom := m.sess.ctl.dom
	shown := m.sess.ctl.shown
	complement := show&ShowComplement != 0

	m.buf = m.buf[:0]
	dom.mu.RLock()
	for i, e := range dom.entries {
		if m.inModel[i] == complement {
			continue
		}
		keep := false
		if show&ShowAtoms != 0 {
			keep = true
		}
		if !keep && show&ShowShown != 0 {
			if len(shown) == 0 {
				keep = true
			} else if sig, err := e.sym.Signature(); err == nil {
				_, keep = shown[sig.Hash()]
			}
		}
		if keep {
			m.buf = append(m.buf, e.sym)
		}
	}
	dom.mu.RUnlock()
	SortSymbols(m.buf)
	return m.buf, nil
}
