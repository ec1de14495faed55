package asp

import (
	"context"
	"math/rand"
)

// worker is one portfolio search thread: an independent CDCL engine over a
// private assignment and watch structure, sharing fixed facts, learnt
// clauses and model-blocking clauses with its siblings through the
// session's pool. All propagator callbacks for thread id w.id run on this
// worker's goroutine.
type worker struct {
	id   int
	sess *session
	asg  *Assignment

	watches   [][]*clause // indexed by Literal.watchIndex of a watched literal
	reasons   []*clause   // per variable: the clause that implied it, nil for decisions
	queueHead int         // trail index of the first unpropagated literal

	polarity []bool    // saved phase per variable
	activity []float64 // conflict-participation score per variable
	varInc   float64
	seen     []bool // scratch for conflict analysis
	rng      *rand.Rand

	// Propagator dispatch state: for each registered propagator, the trail
	// position up to which newly-true watched literals have been handed to
	// Propagate.
	propSeen []int

	pendingConflict *clause // conflict raised through clause integration
	checkAdded      bool    // a Check callback added clauses or assignments
	sharedCursor    int
	rootLevel       uint32

	decisions int64
	conflicts int64
	restarts  int64
}

func newWorker(id int, sess *session, seed int64) *worker {
	n := sess.nvars
	w := &worker{
		id:       id,
		sess:     sess,
		asg:      newAssignment(n),
		watches:  make([][]*clause, 2*(n+1)),
		reasons:  make([]*clause, n+1),
		polarity: make([]bool, n+1),
		activity: make([]float64, n+1),
		varInc:   1.0,
		seen:     make([]bool, n+1),
		rng:      rand.New(rand.NewSource(seed)),
		propSeen: make([]int, len(sess.props)),
	}
	return w
}

// attach takes a private copy of c and hooks it into the watch structure.
// The copy is required because watch maintenance reorders literals, which
// must not be visible to other workers sharing the clause object.
func (w *worker) attach(c *clause) *clause {
	own := &clause{typ: c.typ, activity: c.activity}
	own.lits = append(own.lits, c.lits...)
	w.watches[own.lits[0].watchIndex()] = append(w.watches[own.lits[0].watchIndex()], own)
	w.watches[own.lits[1].watchIndex()] = append(w.watches[own.lits[1].watchIndex()], own)
	return own
}

// enqueue records l as implied by reason. It reports false on conflict.
func (w *worker) enqueue(l Literal, reason *clause) bool {
	if w.asg.isFalseFast(l) {
		w.asg.conflict = true
		return false
	}
	if !w.asg.isFreeFast(l) {
		return true
	}
	w.asg.assign(l)
	w.reasons[l.Var()] = reason
	return true
}

// propagateBoolean runs unit propagation to fixpoint and returns the
// conflicting clause, or nil.
func (w *worker) propagateBoolean() *clause {
	for w.queueHead < len(w.asg.trail) {
		p := w.asg.trail[w.queueHead]
		w.queueHead++
		falsified := p.Neg()
		list := w.watches[falsified.watchIndex()]
		kept := list[:0]
		var confl *clause
		for ci, c := range list {
			if confl != nil {
				kept = append(kept, list[ci:]...)
				break
			}
			if c.lits[0] == falsified {
				c.lits[0], c.lits[1] = c.lits[1], c.lits[0]
			}
			if w.asg.isTrueFast(c.lits[0]) {
				kept = append(kept, c)
				continue
			}
			moved := false
			for i := 2; i < len(c.lits); i++ {
				if !w.asg.isFalseFast(c.lits[i]) {
					c.lits[1], c.lits[i] = c.lits[i], c.lits[1]
					w.watches[c.lits[1].watchIndex()] = append(w.watches[c.lits[1].watchIndex()], c)
					moved = true
					break
				}
			}
			if moved {
				continue
			}
			kept = append(kept, c)
			if w.asg.isFreeFast(c.lits[0]) {
				w.enqueue(c.lits[0], c)
				continue
			}
			// All literals false.
			w.asg.conflict = true
			confl = c
		}
		w.watches[falsified.watchIndex()] = kept
		if confl != nil {
			return confl
		}
	}
	return nil
}

// propagateAll interleaves Boolean propagation with propagator dispatch
// until a joint fixpoint or a conflict. Each propagator receives exactly
// the newly-true literals it watches since its previous invocation.
func (w *worker) propagateAll() (*clause, error) {
	for {
		if confl := w.propagateBoolean(); confl != nil {
			return confl, nil
		}
		dispatched := false
		for i, p := range w.sess.props {
			if w.propSeen[i] >= len(w.asg.trail) {
				continue
			}
			var changes []Literal
			for _, l := range w.asg.trail[w.propSeen[i]:] {
				if _, ok := w.sess.watches[i][l]; ok {
					changes = append(changes, l)
				}
			}
			w.propSeen[i] = len(w.asg.trail)
			if len(changes) == 0 {
				continue
			}
			dispatched = true
			ctl := &PropagateControl{w: w, propIdx: i}
			if err := p.Propagate(ctl, changes); err != nil {
				return nil, wrapError(err, "propagator %d failed during propagate", i)
			}
			if w.pendingConflict != nil {
				confl := w.pendingConflict
				w.pendingConflict = nil
				return confl, nil
			}
		}
		if !dispatched && w.queueHead >= len(w.asg.trail) {
			return nil, nil
		}
	}
}

// integrateClause adds a clause to this worker mid-search, handling the
// cases where the clause is already unit or conflicting under the current
// assignment. It reports whether propagation may continue; false requests
// an immediate backtrack. With publish set, non-volatile clauses are shared
// with sibling workers; clauses arriving from the pool are integrated with
// publish false so they circulate exactly once.
func (w *worker) integrateClause(c *clause, publish bool) bool {
	// Order literals so the two best candidates are watched: non-false
	// first, then false ones assigned at the highest levels.
	lits := c.lits
	rank := func(l Literal) int {
		if !w.asg.isFalseFast(l) {
			return 1 << 30
		}
		lvl, _ := w.asg.Level(l)
		return int(lvl)
	}
	for i := 0; i < len(lits) && i < 2; i++ {
		best := i
		for j := i + 1; j < len(lits); j++ {
			if rank(lits[j]) > rank(lits[best]) {
				best = j
			}
		}
		lits[i], lits[best] = lits[best], lits[i]
	}

	share := publish && !c.typ.IsVolatile()
	switch {
	case len(lits) == 0:
		w.asg.conflict = true
		w.pendingConflict = &clause{typ: c.typ}
		return false
	case len(lits) == 1:
		if share {
			w.sess.pool.publish(c, w.id)
		}
		w.checkAdded = true
		if w.asg.isFalseFast(lits[0]) {
			w.asg.conflict = true
			w.pendingConflict = c
			return false
		}
		return w.enqueue(lits[0], c)
	default:
		own := w.attach(c)
		if share {
			w.sess.pool.publish(c, w.id)
		}
		switch {
		case w.asg.isFalseFast(own.lits[0]):
			// Conflicting under the current assignment.
			w.asg.conflict = true
			w.pendingConflict = own
			return false
		case w.asg.isFalseFast(own.lits[1]) && w.asg.isFreeFast(own.lits[0]):
			w.checkAdded = true
			return w.enqueue(own.lits[0], own)
		default:
			return true
		}
	}
}

// importShared integrates clauses published by sibling workers (and the
// enumeration blocking clauses) since the last import. It reports false
// when an imported clause conflicts with the current assignment.
func (w *worker) importShared() bool {
	fresh, cursor := w.sess.pool.since(w.sharedCursor)
	w.sharedCursor = cursor
	for _, pc := range fresh {
		if pc.owner == w.id {
			continue
		}
		cp := &clause{typ: pc.c.typ}
		cp.lits = append(cp.lits, pc.c.lits...)
		if !w.integrateClause(cp, false) {
			return false
		}
	}
	return true
}

func (w *worker) bumpActivity(v int32) {
	w.activity[v] += w.varInc
	if w.activity[v] > 1e100 {
		for i := range w.activity {
			w.activity[i] *= 1e-100
		}
		w.varInc *= 1e-100
	}
}

// analyze performs first-UIP conflict analysis and returns the learnt
// clause literals (asserting literal first), the backjump level, and the
// retention class: clauses derived through any volatile clause are
// themselves volatile, everything else is learnt.
func (w *worker) analyze(confl *clause) ([]Literal, uint32, ClauseType) {
	var learnt []Literal
	learnt = append(learnt, 0) // slot for the asserting literal
	typ := ClauseLearnt
	current := w.asg.DecisionLevel()
	counter := 0
	var p Literal
	idx := len(w.asg.trail) - 1
	var toClear []int32

	reason := confl
	for {
		if reason.typ.IsVolatile() {
			typ = ClauseVolatile
		}
		for _, q := range reason.lits {
			if q == p {
				continue
			}
			v := q.Var()
			lvl := w.asg.levels[v]
			if w.seen[v] || lvl == 0 {
				continue
			}
			w.seen[v] = true
			toClear = append(toClear, v)
			w.bumpActivity(v)
			if lvl >= current {
				counter++
			} else {
				learnt = append(learnt, q)
			}
		}
		for !w.seen[w.asg.trail[idx].Var()] {
			idx--
		}
		p = w.asg.trail[idx]
		idx--
		w.seen[p.Var()] = false
		counter--
		if counter <= 0 {
			break
		}
		reason = w.reasons[p.Var()]
	}
	learnt[0] = p.Neg()
	for _, v := range toClear {
		w.seen[v] = false
	}
	w.varInc *= 1.05 // gentle decay of older activity

	btLevel := w.rootLevel
	if len(learnt) > 1 {
		// Move the literal with the highest level to the second watch slot.
		maxI := 1
		for i := 2; i < len(learnt); i++ {
			if w.asg.levels[learnt[i].Var()] > w.asg.levels[learnt[maxI].Var()] {
				maxI = i
			}
		}
		learnt[1], learnt[maxI] = learnt[maxI], learnt[1]
		if lvl := w.asg.levels[learnt[1].Var()]; lvl > btLevel {
			btLevel = lvl
		}
	}
	return learnt, btLevel, typ
}

// backtrackTo reverts the assignment to the target level and dispatches
// Undo callbacks: each propagator receives the watched literals being
// unassigned, in the reverse of their assignment order, restricted to the
// ones it has actually seen in a Propagate call.
func (w *worker) backtrackTo(level uint32) error {
	oldLen := len(w.asg.trail)
	undone := w.asg.backtrack(level)
	for _, l := range undone {
		w.reasons[l.Var()] = nil
		w.polarity[l.Var()] = !l.IsNegative()
	}
	w.queueHead = len(w.asg.trail)
	for i, p := range w.sess.props {
		cutoff := w.propSeen[i]
		var changes []Literal
		for j, l := range undone {
			pos := oldLen - 1 - j
			if pos >= cutoff {
				continue
			}
			if _, ok := w.sess.watches[i][l]; ok {
				changes = append(changes, l)
			}
		}
		if w.propSeen[i] > len(w.asg.trail) {
			w.propSeen[i] = len(w.asg.trail)
		}
		if len(changes) == 0 {
			continue
		}
		ctl := &PropagateControl{w: w, propIdx: i}
		if err := p.Undo(ctl, changes); err != nil {
			return wrapError(err, "propagator %d failed during undo", i)
		}
	}
	return nil
}

// decide opens a new decision level on a free variable, preferring
// conflict-active variables and the saved phase. It reports false when
// every variable is assigned.
func (w *worker) decide() bool {
	best := int32(-1)
	for v := int32(1); v <= int32(w.sess.nvars); v++ {
		if w.asg.values[v] != TruthFree {
			continue
		}
		if best < 0 || w.activity[v] > w.activity[best] ||
			(w.activity[v] == w.activity[best] && w.rng.Intn(8) == 0) {
			best = v
		}
	}
	if best < 0 {
		return false
	}
	w.decisions++
	lit := Literal(best)
	if !w.polarity[best] {
		lit = lit.Neg()
	}
	w.asg.pushLevel()
	w.asg.assign(lit)
	w.reasons[best] = nil
	return true
}

// runChecks invokes every propagator's Check on a total assignment, in
// registration order. It reports whether the assignment survived: false
// means a check added clauses or implications and search must continue.
func (w *worker) runChecks() (bool, error) {
	w.checkAdded = false
	for i, p := range w.sess.props {
		ctl := &PropagateControl{w: w, propIdx: i}
		if err := p.Check(ctl); err != nil {
			return false, wrapError(err, "propagator %d failed during check", i)
		}
		if w.pendingConflict != nil || w.asg.HasConflict() {
			return false, nil
		}
	}
	return !w.checkAdded, nil
}

// resolveConflict learns from a conflict clause and backjumps. Imported
// and propagator clauses can be falsified entirely below the current
// decision level, so the worker first jumps to the highest level among the
// conflict literals. It reports exhausted=true when the conflict is rooted
// at or below the assumption levels.
func (w *worker) resolveConflict(confl *clause) (bool, error) {
	w.conflicts++
	maxLvl := uint32(0)
	for _, l := range confl.lits {
		if lvl := w.asg.levels[l.Var()]; lvl > maxLvl {
			maxLvl = lvl
		}
	}
	if maxLvl <= w.rootLevel {
		return true, nil
	}
	if maxLvl < w.asg.DecisionLevel() {
		if err := w.backtrackTo(maxLvl); err != nil {
			return false, err
		}
	}
	learnt, btLevel, typ := w.analyze(confl)
	if err := w.backtrackTo(btLevel); err != nil {
		return false, err
	}
	lc := &clause{lits: learnt, typ: typ, activity: 1}
	if len(learnt) >= 2 {
		w.attach(lc)
		w.sess.pool.publish(lc, w.id)
	}
	if !typ.IsVolatile() {
		w.sess.ctl.db.retainLearnt(lc)
	}
	w.enqueue(learnt[0], lc)
	return false, nil
}

// workerOutcome describes how a worker's search ended.
type workerOutcome int

const (
	outcomeExhausted workerOutcome = iota // search space certified complete
	outcomeCancelled                      // stopped at a checkpoint
)

// search runs the CDCL loop until the space is exhausted, the context is
// cancelled, or a callback fails. Models are reported through
// sess.reportModel on this worker's goroutine; the blocking clause added
// afterwards forces the search onward.
func (w *worker) search(ctx context.Context) (workerOutcome, error) {
	// Level 0: shared fixed facts.
	for _, l := range w.sess.units {
		if !w.enqueue(l, nil) {
			return outcomeExhausted, nil
		}
	}
	if confl, err := w.propagateAll(); err != nil {
		return 0, err
	} else if confl != nil {
		return outcomeExhausted, nil
	}
	// Assumption levels: externals and per-call assumptions enter as
	// pseudo-decisions so learnt clauses stay valid once they change.
	for _, a := range w.sess.assumptions {
		if w.asg.isTrueFast(a) {
			continue
		}
		if w.asg.isFalseFast(a) {
			return outcomeExhausted, nil
		}
		w.asg.pushLevel()
		w.asg.assign(a)
		w.reasons[a.Var()] = nil
		if confl, err := w.propagateAll(); err != nil {
			return 0, err
		} else if confl != nil {
			return outcomeExhausted, nil
		}
	}
	w.rootLevel = w.asg.DecisionLevel()

	conflictBudget := int64(256)
	conflictsAtRestart := int64(0)

	for {
		confl, err := w.propagateAll()
		if err != nil {
			return 0, err
		}
		if confl != nil {
			exhausted, err := w.resolveConflict(confl)
			if err != nil {
				return 0, err
			}
			if exhausted {
				return outcomeExhausted, nil
			}
			continue
		}

		// Checkpoint: cooperative cancellation and clause import.
		select {
		case <-ctx.Done():
			return outcomeCancelled, nil
		default:
		}
		if !w.importShared() {
			confl := w.pendingConflict
			w.pendingConflict = nil
			if confl == nil {
				return 0, newError(CodeUnknown, "conflict flag set without a conflict clause")
			}
			exhausted, err := w.resolveConflict(confl)
			if err != nil {
				return 0, err
			}
			if exhausted {
				return outcomeExhausted, nil
			}
			continue
		}

		if len(w.asg.trail) == w.sess.nvars {
			ok, err := w.runChecks()
			if err != nil {
				return 0, err
			}
			if !ok {
				if w.pendingConflict != nil || w.asg.HasConflict() {
					confl := w.pendingConflict
					w.pendingConflict = nil
					if confl == nil {
						return 0, newError(CodeUnknown, "conflict flag set without a conflict clause")
					}
					exhausted, err := w.resolveConflict(confl)
					if err != nil {
						return 0, err
					}
					if exhausted {
						return outcomeExhausted, nil
					}
				}
				continue
			}
			stop, err := w.sess.reportModel(w)
			if err != nil {
				return 0, err
			}
			if stop {
				return outcomeCancelled, nil
			}
			// Block the model on this worker; siblings import it from the
			// pool. An empty blocking clause means the model was forced by
			// the fixed part alone, so the space is enumerated.
			block := w.sess.blockingClause(w)
			if len(block.lits) == 0 {
				return outcomeExhausted, nil
			}
			if !w.integrateClause(block, false) {
				confl := w.pendingConflict
				w.pendingConflict = nil
				if confl == nil {
					return 0, newError(CodeUnknown, "conflict flag set without a conflict clause")
				}
				exhausted, err := w.resolveConflict(confl)
				if err != nil {
					return 0, err
				}
				if exhausted {
					return outcomeExhausted, nil
				}
			}
			continue
		}

		if w.conflicts-conflictsAtRestart > conflictBudget {
			w.restarts++
			conflictsAtRestart = w.conflicts
			conflictBudget += conflictBudget / 2
			if err := w.backtrackTo(w.rootLevel); err != nil {
				return 0, err
			}
			continue
		}
		if !w.decide() {
			// All variables assigned by propagation alone; loop back so the
			// total-assignment branch runs checks.
			continue
		}
	}
}
