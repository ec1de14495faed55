package asp

// Assignment is the truth-value store over solver literals, with one
// decision level per open search branch. It is the single source of truth
// consulted by the search loop and by propagator callbacks.
//
// Invariants upheld by the mutating search loop:
//   - a literal and its negation are never simultaneously true;
//     HasConflict reports exactly the violation of this condition,
//   - within one decision level truth values only move free -> true/false,
//   - backtracking to level L reverts every literal set above L in strict
//     reverse chronological order.
//
// Each portfolio worker owns one Assignment; the read-only query surface is
// side-effect-free and safe to call from that worker's propagator
// callbacks.
type Assignment struct {
	values   []TruthValue // indexed by variable, 1-based
	levels   []uint32     // level at which each variable was assigned
	reserved []bool       // variable is tracked at all
	trail    []Literal    // assignments in chronological order
	lim      []int        // trail offset where each decision level starts
	conflict bool
}

// newAssignment creates a store tracking variables 1..nvars.
func newAssignment(nvars int) *Assignment {
	a := &Assignment{
		values:   make([]TruthValue, nvars+1),
		levels:   make([]uint32, nvars+1),
		reserved: make([]bool, nvars+1),
	}
	for i := 1; i <= nvars; i++ {
		a.reserved[i] = true
	}
	return a
}

// HasConflict reports whether propagation has derived that some tracked
// literal must be simultaneously true and false.
func (a *Assignment) HasConflict() bool { return a.conflict }

// DecisionLevel returns the current decision level; level 0 holds
// permanently fixed literals.
func (a *Assignment) DecisionLevel() uint32 { return uint32(len(a.lim)) }

// HasLiteral reports whether the literal's variable is tracked by this
// assignment at all.
func (a *Assignment) HasLiteral(l Literal) bool {
	v := int(l.Var())
	return v > 0 && v < len(a.values) && a.reserved[v]
}

// Value returns the truth value of the literal under the current partial
// assignment. Querying an untracked literal is a logic error.
func (a *Assignment) Value(l Literal) (TruthValue, error) {
	if !a.HasLiteral(l) {
		return TruthFree, newError(CodeLogic, "literal %d is not tracked by this assignment", l)
	}
	v := a.values[l.Var()]
	if l.IsNegative() {
		v = v.Neg()
	}
	return v, nil
}

// Level returns the decision level at which the literal's variable was
// assigned. Querying an unassigned or untracked literal is a logic error.
func (a *Assignment) Level(l Literal) (uint32, error) {
	if !a.HasLiteral(l) {
		return 0, newError(CodeLogic, "literal %d is not tracked by this assignment", l)
	}
	if a.values[l.Var()] == TruthFree {
		return 0, newError(CodeLogic, "literal %d is unassigned", l)
	}
	return a.levels[l.Var()], nil
}

// Decision returns the literal chosen at the given decision level.
// Level 0 has no decision; querying it, or a level beyond the current one,
// is a logic error.
func (a *Assignment) Decision(level uint32) (Literal, error) {
	if level == 0 || level > a.DecisionLevel() {
		return 0, newError(CodeLogic, "no decision at level %d", level)
	}
	return a.trail[a.lim[level-1]], nil
}

// IsFixed reports whether the literal's variable is assigned at level 0 and
// therefore permanent for the current grounding round.
func (a *Assignment) IsFixed(l Literal) (bool, error) {
	if !a.HasLiteral(l) {
		return false, newError(CodeLogic, "literal %d is not tracked by this assignment", l)
	}
	return a.values[l.Var()] != TruthFree && a.levels[l.Var()] == 0, nil
}

// IsTrue reports whether the literal is assigned true.
func (a *Assignment) IsTrue(l Literal) (bool, error) {
	v, err := a.Value(l)
	return v == TruthTrue, err
}

// IsFalse reports whether the literal is assigned false.
func (a *Assignment) IsFalse(l Literal) (bool, error) {
	v, err := a.Value(l)
	return v == TruthFalse, err
}

// isTrueFast is the unchecked hot-path variant of IsTrue.
func (a *Assignment) isTrueFast(l Literal) bool {
	v := a.values[l.Var()]
	if l.IsNegative() {
		v = v.Neg()
	}
	return v == TruthTrue
}

// isFalseFast is the unchecked hot-path variant of IsFalse.
func (a *Assignment) isFalseFast(l Literal) bool {
	v := a.values[l.Var()]
	if l.IsNegative() {
		v = v.Neg()
	}
	return v == TruthFalse
}

// isFreeFast is the unchecked hot-path variant of Value == TruthFree.
func (a *Assignment) isFreeFast(l Literal) bool {
	return a.values[l.Var()] == TruthFree
}

// pushLevel opens a new decision level.
func (a *Assignment) pushLevel() {
	a.lim = append(a.lim, len(a.trail))
}

// assign records l as true at the current decision level. Assigning a
// literal whose negation already holds sets the conflict flag and reports
// false; re-assigning an identical value is a no-op.
func (a *Assignment) assign(l Literal) bool {
	v := int(l.Var())
	switch {
	case a.values[v] == TruthFree:
		if l.IsNegative() {
			a.values[v] = TruthFalse
		} else {
			a.values[v] = TruthTrue
		}
		a.levels[v] = a.DecisionLevel()
		a.trail = append(a.trail, l)
		return true
	case a.isTrueFast(l):
		return true
	default:
		a.conflict = true
		return false
	}
}

// backtrack reverts every literal assigned above the target level, in
// strict reverse chronological order, and returns the reverted literals in
// that order. The conflict flag is cleared.
func (a *Assignment) backtrack(level uint32) []Literal {
	if level >= a.DecisionLevel() {
		a.conflict = false
		return nil
	}
	mark := a.lim[level]
	undone := make([]Literal, 0, len(a.trail)-mark)
	for i := len(a.trail) - 1; i >= mark; i-- {
		l := a.trail[i]
		a.values[l.Var()] = TruthFree
		a.levels[l.Var()] = 0
		undone = append(undone, l)
	}
	a.trail = a.trail[:mark]
	a.lim = a.lim[:level]
	a.conflict = false
	return undone
}

// trailSize returns the number of assigned literals.
func (a *Assignment) trailSize() int { return len(a.trail) }

// totalAssigned reports whether every tracked variable has a value.
func (a *Assignment) totalAssigned() bool {
	for v := 1; v < len(a.values); v++ {
		if a.reserved[v] && a.values[v] == TruthFree {
			return false
		}
	}
	return true
}
