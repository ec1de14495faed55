package asp

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SolveResult is a bitmask describing the outcome of a solve call. The
// satisfiability bits are mutually exclusive; Exhausted and Interrupted
// qualify them.
type SolveResult int

const (
	// SolveSatisfiable is set when at least one model was found.
	SolveSatisfiable SolveResult = 1 << iota

	// SolveUnsatisfiable is set when the search space was exhausted without
	// finding a model.
	SolveUnsatisfiable

	// SolveExhausted is set when the search space was fully explored, so no
	// models exist beyond the reported ones.
	SolveExhausted

	// SolveInterrupted is set when the solve stopped before exhausting the
	// space because it was cancelled.
	SolveInterrupted
)

// IsSatisfiable reports whether a model was found.
func (r SolveResult) IsSatisfiable() bool { return r&SolveSatisfiable != 0 }

// IsUnsatisfiable reports whether the program was proven to have no model.
func (r SolveResult) IsUnsatisfiable() bool { return r&SolveUnsatisfiable != 0 }

// IsExhausted reports whether the search space was fully explored.
func (r SolveResult) IsExhausted() bool { return r&SolveExhausted != 0 }

// IsInterrupted reports whether the solve was cancelled before completion.
func (r SolveResult) IsInterrupted() bool { return r&SolveInterrupted != 0 }

// String renders the result in a compact human-readable form.
func (r SolveResult) String() string {
	s := ""
	switch {
	case r.IsSatisfiable():
		s = "SAT"
	case r.IsUnsatisfiable():
		s = "UNSAT"
	default:
		s = "UNKNOWN"
	}
	if r.IsExhausted() {
		s += "+"
	}
	if r.IsInterrupted() {
		s += " (interrupted)"
	}
	return s
}

// ModelCallback receives each model as it is found. Returning false stops
// the enumeration without exhausting the space; returning an error aborts
// the solve. The Model is valid only until the callback returns.
type ModelCallback func(m *Model) (bool, error)

// stop reasons, recorded when the session cancels itself.
const (
	stopNone int32 = iota
	stopHandler
	stopExternal
)

// session is the per-solve-call state shared by the portfolio workers: the
// clause snapshot, the assumption literals, the propagator watch tables,
// the clause exchange pool, and the model dedup table. A session is built
// under the Control's lock and torn down when every worker has returned.
type session struct {
	ctl     *Control
	nvars   int
	atomCap int // vars above this are completion auxiliaries
	threads int
	seed    int64

	problem      []*clause
	learnt       []*clause
	units        []Literal
	assumptions  []Literal
	trivialUnsat bool

	props   []Propagator
	watches []map[Literal]struct{} // per propagator, shared read-only after Init

	pool *sharedPool

	onModel   ModelCallback
	maxModels int64

	handlerMu   sync.Mutex
	dedup       map[uint64]struct{}
	modelsFound int64

	exhausted  atomic.Bool
	stopReason atomic.Int32
	cancel     context.CancelFunc
}

// newSession snapshots the Control's state for one solve call. The caller
// holds the Control's lock and has already rebuilt clauses if needed.
func newSession(c *Control, assumptions []SymbolicLiteral, onModel ModelCallback) (*session, error) {
	problem, learnt, units := c.db.snapshot()
	s := &session{
		ctl:       c,
		nvars:     int(c.nextVar) - 1 + c.auxVars,
		atomCap:   int(c.nextVar) - 1,
		threads:   c.threads,
		seed:      c.seed,
		problem:   problem,
		learnt:    learnt,
		units:     units,
		props:     c.propagators,
		pool:      &sharedPool{},
		onModel:   onModel,
		maxModels: c.maxModels,
		dedup:     make(map[uint64]struct{}),
	}
	for _, cl := range problem {
		if len(cl.lits) == 0 {
			s.trivialUnsat = true
		}
	}

	// Externals enter as pseudo-decisions below the root level so learnt
	// clauses stay valid when their truth changes between calls.
	c.dom.mu.RLock()
	for _, e := range c.dom.entries {
		if !e.external {
			continue
		}
		// Unassigned externals default to false; TruthFree leaves the atom
		// open for the search to branch on.
		truth, ok := c.externals[e.sym.Hash()]
		if !ok {
			truth = TruthFalse
		}
		switch truth {
		case TruthTrue:
			s.assumptions = append(s.assumptions, e.lit)
		case TruthFalse:
			s.assumptions = append(s.assumptions, e.lit.Neg())
		}
	}
	c.dom.mu.RUnlock()

	for _, a := range assumptions {
		it := c.dom.Lookup(a.Atom)
		if !it.Valid() {
			if !a.Sign {
				// Assuming an unknown atom true is unsatisfiable; assuming
				// it false holds vacuously.
				s.trivialUnsat = true
			}
			continue
		}
		lit, err := it.Literal()
		if err != nil {
			return nil, err
		}
		if a.Sign {
			lit = lit.Neg()
		}
		s.assumptions = append(s.assumptions, lit)
	}

	s.watches = make([]map[Literal]struct{}, len(s.props))
	for i, p := range s.props {
		s.watches[i] = make(map[Literal]struct{})
		if err := p.Init(&PropagateInit{sess: s, propIdx: i}); err != nil {
			return nil, wrapError(err, "propagator %d failed during init", i)
		}
	}
	return s, nil
}

// run executes the portfolio and returns the combined result. It blocks
// until every worker has stopped.
func (s *session) run(ctx context.Context) (SolveResult, error) {
	if s.trivialUnsat {
		return SolveUnsatisfiable | SolveExhausted, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < s.threads; id++ {
		id := id
		g.Go(func() error {
			w := newWorker(id, s, s.seed+int64(id)*2654435761)
			for _, cl := range s.problem {
				w.attach(cl)
			}
			for _, cl := range s.learnt {
				w.attach(cl)
			}
			outcome, err := w.search(ctx)
			s.ctl.stats.add(w)
			if err != nil {
				return err
			}
			if outcome == outcomeExhausted {
				// One worker certifying exhaustion is enough: every model is
				// blocked in its database, hence already reported.
				s.exhausted.Store(true)
				cancel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	s.ctl.stats.addModels(s.modelsFound)

	var r SolveResult
	if s.modelsFound > 0 {
		r |= SolveSatisfiable
	}
	if s.exhausted.Load() {
		r |= SolveExhausted
		if s.modelsFound == 0 {
			r |= SolveUnsatisfiable
		}
	} else if s.stopReason.Load() == stopExternal || ctx.Err() != nil && s.stopReason.Load() != stopHandler {
		r |= SolveInterrupted
	}
	return r, nil
}

// interrupt stops the portfolio from outside a model callback.
func (s *session) interrupt() {
	s.stopReason.CompareAndSwap(stopNone, stopExternal)
	if s.cancel != nil {
		s.cancel()
	}
}

// modelHash fingerprints the set of true atom variables for deduplication
// across workers.
func (s *session) modelHash(trueAtoms []int) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, idx := range trueAtoms {
		buf[0] = byte(idx)
		buf[1] = byte(idx >> 8)
		buf[2] = byte(idx >> 16)
		buf[3] = byte(idx >> 24)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// reportModel hands a freshly found total assignment to the model callback.
// Duplicate models found by different workers are suppressed. It reports
// stop=true when enumeration must end (callback declined, or the model
// budget is spent).
func (s *session) reportModel(w *worker) (bool, error) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()

	if s.stopReason.Load() != stopNone {
		return true, nil
	}

	m := buildModel(s, w)
	if _, dup := s.dedup[m.hash]; dup {
		return false, nil
	}
	s.dedup[m.hash] = struct{}{}
	s.modelsFound++
	m.number = s.modelsFound

	if s.onModel != nil {
		cont, err := s.onModel(m)
		m.valid = false
		if err != nil {
			s.stopReason.CompareAndSwap(stopNone, stopHandler)
			s.cancel()
			return true, wrapError(err, "model callback failed")
		}
		if !cont {
			s.stopReason.CompareAndSwap(stopNone, stopHandler)
			s.cancel()
			return true, nil
		}
	}
	m.valid = false
	if s.maxModels > 0 && s.modelsFound >= s.maxModels {
		s.stopReason.CompareAndSwap(stopNone, stopHandler)
		s.cancel()
		return true, nil
	}
	return false, nil
}

// blockingClause builds the volatile clause excluding the worker's current
// total assignment, projected onto non-auxiliary variables not fixed at
// level 0. An empty clause means the single remaining model was forced
// entirely by the fixed part, so the space is exhausted. The clause is
// published so sibling workers block the model too.
func (s *session) blockingClause(w *worker) *clause {
	var lits []Literal
	for v := int32(1); v <= int32(s.atomCap); v++ {
		if w.asg.levels[v] == 0 && w.asg.values[v] != TruthFree {
			continue
		}
		l := Literal(v)
		if w.asg.values[v] == TruthTrue {
			l = l.Neg()
		}
		lits = append(lits, l)
	}
	c := &clause{lits: lits, typ: ClauseVolatile}
	if len(lits) > 0 {
		s.pool.publish(c, w.id)
	}
	return c
}

// handleState tracks the lifecycle of a SolveHandle.
type handleState int

const (
	handleCreated handleState = iota
	handleRunning
	handlePaused
	handleFinished
	handleClosed
)

// SolveHandle drives an iterative solve: models are pulled one at a time
// with Next, the final result is read with Get, and Close releases the
// underlying search. A handle is not safe for concurrent use.
type SolveHandle struct {
	sess   *session
	models chan *Model
	resume chan struct{}
	done   chan struct{}

	state   handleState
	cur     *Model
	result  SolveResult
	err     error
	hcancel context.CancelFunc
}

// startHandle launches the session on its own goroutine and returns the
// handle through which models are consumed.
func startHandle(ctx context.Context, s *session) *SolveHandle {
	hctx, hcancel := context.WithCancel(ctx)
	h := &SolveHandle{
		sess:    s,
		models:  make(chan *Model),
		resume:  make(chan struct{}),
		done:    make(chan struct{}),
		hcancel: hcancel,
	}
	s.onModel = func(m *Model) (bool, error) {
		select {
		case h.models <- m:
		case <-hctx.Done():
			return false, nil
		}
		// Hold the model stable until the consumer advances or closes.
		select {
		case _, ok := <-h.resume:
			return ok, nil
		case <-hctx.Done():
			return false, nil
		}
	}
	go func() {
		r, err := s.run(hctx)
		h.result, h.err = r, err
		close(h.done)
	}()
	return h
}

// Next advances to the next model. It returns nil exactly once, when no
// further model exists; Get then reports why the enumeration ended.
// Calling Next again after that, after Cancel, or on a closed handle is a
// logic error.
func (h *SolveHandle) Next() (*Model, error) {
	switch h.state {
	case handleClosed:
		return nil, newError(CodeLogic, "solve handle is closed")
	case handleFinished:
		return nil, newError(CodeLogic, "enumeration already ended; the result is available through Get")
	}
	// Resuming the producer invalidates the model it is paused on.
	if h.cur != nil {
		h.cur = nil
		select {
		case h.resume <- struct{}{}:
		case <-h.done:
		}
	}
	h.state = handleRunning
	select {
	case m := <-h.models:
		h.cur = m
		h.state = handlePaused
		return m, nil
	case <-h.done:
		h.state = handleFinished
		return nil, h.err
	}
}

// Get returns the result of the finished search. Calling it while models
// may still be produced is a logic error; drain the handle with Next or
// stop it with Cancel first.
func (h *SolveHandle) Get() (SolveResult, error) {
	switch h.state {
	case handleFinished, handleClosed:
		return h.result, h.err
	default:
		select {
		case <-h.done:
			h.state = handleFinished
			return h.result, h.err
		default:
			return 0, newError(CodeLogic, "solve is still running; call Next until it returns nil or Cancel")
		}
	}
}

// Cancel interrupts the search and ends the enumeration: Get reports the
// interrupted result. The worker invalidates the current model while
// winding down, before Cancel returns.
func (h *SolveHandle) Cancel() {
	if h.state == handleClosed {
		return
	}
	h.sess.interrupt()
	h.hcancel()
	h.cur = nil
	<-h.done
	h.state = handleFinished
}

// Close stops the search if it is still running and releases the handle.
// Close is idempotent; after it returns the Control accepts new solve
// calls.
func (h *SolveHandle) Close() error {
	if h.state == handleClosed {
		return nil
	}
	h.sess.interrupt()
	h.hcancel()
	h.cur = nil
	<-h.done
	h.state = handleClosed
	h.sess.ctl.endSolve()
	return h.err
}
