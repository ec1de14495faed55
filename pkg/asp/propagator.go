package asp

// Propagator is the extension protocol for injecting domain-specific
// reasoning into the search. A propagator is registered once per Control
// lifetime and invoked at four points:
//
//   - Init, once per solve session before search starts, to remap program
//     literals, register watches, and pre-size per-thread state;
//   - Propagate, after unit propagation assigns watched literals, with
//     exactly the newly-true watched literals since its last invocation;
//   - Undo, during backtracking, with the watched literals being unassigned
//     in the reverse of the order they were assigned;
//   - Check, once a Boolean-consistent total assignment has been found,
//     as a last chance to rule it out by adding clauses.
//
// Logical conflicts are expressed exclusively by adding conflicting clauses
// through the PropagateControl; an error return from any callback is a
// fatal internal failure that aborts the callback round for all registered
// propagators and the solve.
//
// Callbacks run on the calling worker's goroutine. The engine never invokes
// two callbacks concurrently for the same propagator with the same thread
// id, but different thread ids may run concurrently: propagator-local state
// must be partitioned by PropagateControl.ThreadID or synchronized
// internally.
type Propagator interface {
	Init(init *PropagateInit) error
	Propagate(ctl *PropagateControl, changes []Literal) error
	Undo(ctl *PropagateControl, changes []Literal) error
	Check(ctl *PropagateControl) error
}

// PropagateInit is the handle passed to Propagator.Init. It is valid only
// for the duration of the Init call.
type PropagateInit struct {
	sess    *session
	propIdx int
}

// SolverLiteral maps a program-level literal (as found in the symbolic atom
// domain) to the current session's solver-level literal. Literal numbering
// may change between grounding rounds, so mappings must be re-established
// in every Init. Unknown literals are a logic error.
func (in *PropagateInit) SolverLiteral(l Literal) (Literal, error) {
	if l == 0 || int(l.Var()) > in.sess.nvars {
		return 0, newError(CodeLogic, "literal %d is not part of this solve session", l)
	}
	// Program literals are stable across a grounding round; sessions share
	// the numbering established at ground time.
	return l, nil
}

// AddWatch registers interest in lit: the propagator's Propagate callback
// fires whenever lit becomes true at any decision level, on any worker.
func (in *PropagateInit) AddWatch(lit Literal) {
	w := in.sess.watches[in.propIdx]
	w[lit] = struct{}{}
}

// Threads returns the number of worker threads the session will run, for
// pre-sizing per-thread propagator state. Thread ids range over
// [0, Threads()).
func (in *PropagateInit) Threads() int { return in.sess.threads }

// SymbolicAtoms exposes read access to the atom domain for building
// semantic mappings from symbols to literals.
func (in *PropagateInit) SymbolicAtoms() *SymbolicAtoms { return in.sess.ctl.dom }

// TheoryData exposes the theory atoms of the grounded program, owned by the
// Control. The handle stays usable for the lifetime of the Control.
func (in *PropagateInit) TheoryData() TheoryData { return in.sess.ctl.theory }

// PropagateControl is the thread-scoped handle passed to Propagate, Undo
// and Check. It is valid only for the duration of the callback.
type PropagateControl struct {
	w       *worker
	propIdx int
}

// ThreadID returns the id of the worker invoking the callback, in
// [0, PropagateInit.Threads()). Propagator state partitioned by this id is
// never accessed concurrently.
func (pc *PropagateControl) ThreadID() int { return pc.w.id }

// Assignment returns the calling worker's assignment. The view is
// read-only and valid only during the callback.
func (pc *PropagateControl) Assignment() *Assignment { return pc.w.asg }

// AddClause inserts a clause over solver literals with the given retention
// class and reports whether propagation may continue: false requests an
// immediate backtrack (the clause is conflicting under the current
// assignment). Adding a conflicting clause is the supported way for a
// propagator to signal a logical conflict.
func (pc *PropagateControl) AddClause(lits []Literal, typ ClauseType) (bool, error) {
	for _, l := range lits {
		if l == 0 || int(l.Var()) > pc.w.sess.nvars {
			return false, newError(CodeLogic, "clause literal %d is not part of this solve session", l)
		}
	}
	own := make([]Literal, len(lits))
	copy(own, lits)
	return pc.w.integrateClause(&clause{lits: own, typ: typ}, true), nil
}

// Propagate runs a forced propagation fixpoint immediately, mid-callback,
// making the consequences of clauses just added visible. It reports false
// when the fixpoint uncovered a conflict and the current propagation round
// should stop so the engine can backtrack; this is a cooperative signal,
// not a failure.
func (pc *PropagateControl) Propagate() (bool, error) {
	if pc.w.asg.HasConflict() {
		return false, nil
	}
	confl := pc.w.propagateBoolean()
	if confl != nil {
		pc.w.pendingConflict = confl
		return false, nil
	}
	return true, nil
}
