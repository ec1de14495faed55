package asp

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Module is the top-level entry point. It owns shared configuration and
// tracks the Controls created through it; closing the module invalidates
// them all.
type Module struct {
	mu       sync.Mutex
	log      *logrus.Logger
	controls []*Control
	closed   bool
}

// NewModule creates a module. A nil base logger falls back to the logrus
// standard logger.
func NewModule(base *logrus.Logger) *Module {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &Module{log: base}
}

// NewControl creates a solving context. args configures it the way a
// command line would:
//
//	--threads=N   portfolio width (default 1)
//	--seed=N      base random seed for search diversification
//	N             (positional) model budget per solve call; 0 enumerates all
//
// Unknown arguments are a runtime error. The logger receives grounding and
// solving diagnostics, at most messageLimit of them (0 means unlimited);
// nil uses a logrus-backed default.
func (m *Module) NewControl(args []string, logger Logger, messageLimit uint) (*Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, newError(CodeRuntime, "module is closed")
	}
	if logger == nil {
		logger = DefaultLogger(m.log)
	}
	c := &Control{
		mod:       m,
		sink:      newMessageSink(logger, messageLimit),
		dom:       newSymbolicAtoms(),
		parts:     make(map[string]programPart),
		theory:    newTheoryData(),
		shown:     make(map[uint64]Signature),
		externals: make(map[uint64]TruthValue),
		released:  make(map[uint64]bool),
		loaded:    make(map[string]bool),
		db:        newClauseDB(),
		nextVar:   1,
		threads:   1,
		maxModels: 1,
	}
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--threads="):
			n, err := strconv.Atoi(a[len("--threads="):])
			if err != nil || n < 1 {
				return nil, newError(CodeRuntime, "invalid thread count %q", a)
			}
			c.threads = n
		case strings.HasPrefix(a, "--seed="):
			n, err := strconv.ParseInt(a[len("--seed="):], 10, 64)
			if err != nil {
				return nil, newError(CodeRuntime, "invalid seed %q", a)
			}
			c.seed = n
		case strings.HasPrefix(a, "-"):
			return nil, newError(CodeRuntime, "unknown argument %q", a)
		default:
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil || n < 0 {
				return nil, newError(CodeRuntime, "invalid model budget %q", a)
			}
			c.maxModels = n
		}
	}
	m.controls = append(m.controls, c)
	return c, nil
}

// Close invalidates every Control created through the module. Further
// operations on them fail with a runtime error. Close is idempotent.
func (m *Module) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, c := range m.controls {
		c.mu.Lock()
		c.poisoned = true
		c.mu.Unlock()
	}
	m.controls = nil
}

// Control is a solving context: it accumulates program parts, grounds them
// into a propositional representation, and answers solve calls over the
// result. A Control is safe for concurrent use, but only one solve call
// runs at a time and grounding is rejected while one is active.
type Control struct {
	mod  *Module
	mu   sync.Mutex
	sink *messageSink

	parts  map[string]programPart
	rules  []groundRule
	dom    *SymbolicAtoms
	theory *theoryData
	shown  map[uint64]Signature
	loaded map[string]bool

	externals map[uint64]TruthValue
	released  map[uint64]bool

	propagators []Propagator

	db           *clauseDB
	nextVar      Literal
	auxVars      int
	clausesDirty bool

	threads   int
	seed      int64
	maxModels int64

	solving  bool
	poisoned bool

	stats statsCollector
}

func (c *Control) check() error {
	if c.poisoned {
		return newError(CodeFatal, "control is unusable after an earlier failure")
	}
	return nil
}

// newSolverVar allocates a fresh solver variable and returns its positive
// literal. Called during grounding only.
func (c *Control) newSolverVar() Literal {
	l := c.nextVar
	c.nextVar++
	return l
}

// atomLit returns the literal of the domain entry, negated when pos is
// false.
func (c *Control) atomLit(idx int, pos bool) Literal {
	c.dom.mu.RLock()
	l := c.dom.entries[idx].lit
	c.dom.mu.RUnlock()
	if !pos {
		l = l.Neg()
	}
	return l
}

func (c *Control) atomSymbol(idx int) (Symbol, error) {
	c.dom.mu.RLock()
	defer c.dom.mu.RUnlock()
	if idx < 0 || idx >= len(c.dom.entries) {
		return Symbol{}, newError(CodeLogic, "atom index %d out of range", idx)
	}
	return c.dom.entries[idx].sym, nil
}

// isExternalNow reports whether the entry's truth is still supplied from
// outside; released externals fall back to normal rule evaluation.
func (c *Control) isExternalNow(idx int) bool {
	c.dom.mu.RLock()
	defer c.dom.mu.RUnlock()
	return c.dom.entries[idx].external
}

// Add registers a program part under name with formal parameters params.
// The program text is parsed immediately; a parse error leaves the part
// unregistered. Adding to the same name extends the part.
func (c *Control) Add(name string, params []string, program string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.solving {
		return newError(CodeRuntime, "cannot add to a program while solving")
	}
	stmts, err := parseProgram("<"+name+">", program)
	if err != nil {
		return err
	}
	part := c.parts[name]
	if len(part.stmts) == 0 {
		part.params = params
	}
	part.stmts = append(part.stmts, stmts...)
	c.parts[name] = part
	return nil
}

// Load reads a program file and adds its statements to the base part.
// Loading the same path twice reports the file-included warning and keeps
// only the first copy.
func (c *Control) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.solving {
		return newError(CodeRuntime, "cannot load a program while solving")
	}
	if c.loaded[path] {
		c.sink.report(MessageFileIncluded, "file %q included multiple times, ignoring", path)
		return nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return wrapError(err, "cannot load %q", path)
	}
	stmts, err := parseProgram(path, string(src))
	if err != nil {
		return err
	}
	c.loaded[path] = true
	part := c.parts["base"]
	part.stmts = append(part.stmts, stmts...)
	c.parts["base"] = part
	return nil
}

// Parse parses a program without modifying the Control and hands each
// statement's syntax tree to cb. A callback error aborts the walk and is
// returned unchanged.
func (c *Control) Parse(program string, cb func(AST) error) error {
	if cb == nil {
		return newError(CodeRuntime, "nil parse callback")
	}
	stmts, err := parseProgram("<parse>", program)
	if err != nil {
		return err
	}
	for _, st := range stmts {
		if err := cb(statementAST(st)); err != nil {
			return err
		}
	}
	return nil
}

// Ground instantiates the named parts, extending the symbolic atom domain
// and the ground rule set. cb resolves @-terms; it may be nil for programs
// without them. Grounding invalidates outstanding atom cursors and forces
// a clause rebuild on the next solve.
func (c *Control) Ground(parts []Part, cb GroundCallback) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.solving {
		return newError(CodeRuntime, "cannot ground while solving")
	}
	g := &grounder{c: c, cb: cb, sink: c.sink}
	if err := g.ground(parts); err != nil {
		c.poisoned = true
		return err
	}
	return nil
}

// RegisterPropagator attaches a propagator for all subsequent solve calls.
// Registration order fixes the callback dispatch order.
func (c *Control) RegisterPropagator(p Propagator) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.solving {
		return newError(CodeRuntime, "cannot register a propagator while solving")
	}
	if p == nil {
		return newError(CodeRuntime, "nil propagator")
	}
	c.propagators = append(c.propagators, p)
	return nil
}

// AssignExternal sets the truth value an external atom carries in
// subsequent solve calls. Externals default to false until assigned;
// TruthFree leaves the atom open so the search branches on it. Already
// released atoms are ignored, and assignments may be made speculatively
// before the grounding that introduces the atom.
func (c *Control) AssignExternal(atom Symbol, truth TruthValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	if c.released[atom.Hash()] {
		return nil
	}
	c.externals[atom.Hash()] = truth
	return nil
}

// ReleaseExternal permanently withdraws the external status of an atom:
// from the next solve call on it behaves like a regular atom, and with no
// defining rules it is fixed to false. Releasing is irreversible.
func (c *Control) ReleaseExternal(atom Symbol) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	c.released[atom.Hash()] = true
	delete(c.externals, atom.Hash())
	if it := c.dom.Lookup(atom); it.Valid() {
		c.dom.setExternal(it.pos, false)
		c.clausesDirty = true
	}
	return nil
}

// beginSolve prepares a session under the lock: rebuilds clauses if the
// grounding or externals changed, snapshots state, and marks the Control
// as solving.
func (c *Control) beginSolve(assumptions []SymbolicLiteral, onModel ModelCallback) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.solving {
		return nil, newError(CodeRuntime, "a solve call is already active")
	}
	if c.clausesDirty {
		c.buildClauses()
	}
	s, err := newSession(c, assumptions, onModel)
	if err != nil {
		return nil, err
	}
	c.solving = true
	return s, nil
}

func (c *Control) endSolve() {
	c.mu.Lock()
	c.solving = false
	c.mu.Unlock()
}

// Solve runs the search, invoking onModel for every model found. It blocks
// until the search ends: space exhausted, model budget spent, callback
// declined, or ctx cancelled. A nil onModel only computes satisfiability.
func (c *Control) Solve(ctx context.Context, assumptions []SymbolicLiteral, onModel ModelCallback) (SolveResult, error) {
	s, err := c.beginSolve(assumptions, onModel)
	if err != nil {
		return 0, err
	}
	defer c.endSolve()
	return s.run(ctx)
}

// SolveIter starts the search in the background and returns a handle
// through which models are pulled one at a time. The Control rejects
// grounding and further solve calls until the handle is closed.
func (c *Control) SolveIter(ctx context.Context, assumptions []SymbolicLiteral) (*SolveHandle, error) {
	s, err := c.beginSolve(assumptions, nil)
	if err != nil {
		return nil, err
	}
	return startHandle(ctx, s), nil
}

// SymbolicAtoms exposes the atom domain of the current grounding.
func (c *Control) SymbolicAtoms() *SymbolicAtoms { return c.dom }

// TheoryAtoms exposes the theory atoms of the current grounding.
func (c *Control) TheoryAtoms() TheoryData { return c.theory }

// Statistics returns a snapshot of the accumulated search statistics.
func (c *Control) Statistics() SolveStats {
	st := c.stats.snapshot()
	st.LearntClauses, st.DeletedClauses = c.db.counters()
	return st
}

// Close releases the Control. Further operations fail. Close is
// idempotent.
func (c *Control) Close() {
	c.mu.Lock()
	c.poisoned = true
	c.mu.Unlock()
}
