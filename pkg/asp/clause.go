package asp

import "sync"

// ClauseType is the retention class of a clause.
type ClauseType int

const (
	// ClauseLearnt marks clauses subject to database-reduction heuristics.
	// They persist across incremental solve calls as long as the grounding
	// they were learned under is unchanged.
	ClauseLearnt ClauseType = iota

	// ClauseStatic marks clauses that persist across solve calls and are
	// never removed by reduction.
	ClauseStatic

	// ClauseVolatile marks clauses scoped to the current solve call; they
	// are purged before the next one.
	ClauseVolatile

	// ClauseVolatileStatic marks clauses scoped to the current solve call
	// that are additionally exempt from reduction while it runs.
	ClauseVolatileStatic
)

// String returns the canonical name of the retention class.
func (t ClauseType) String() string {
	switch t {
	case ClauseLearnt:
		return "learnt"
	case ClauseStatic:
		return "static"
	case ClauseVolatile:
		return "volatile"
	case ClauseVolatileStatic:
		return "volatile_static"
	default:
		return "invalid"
	}
}

// IsVolatile reports whether the clause is scoped to a single solve call.
func (t ClauseType) IsVolatile() bool {
	return t == ClauseVolatile || t == ClauseVolatileStatic
}

// IsStatic reports whether the clause is exempt from database reduction.
func (t ClauseType) IsStatic() bool {
	return t == ClauseStatic || t == ClauseVolatileStatic
}

// clause is an ordered sequence of solver literals with a retention tag.
// Clauses never carry symbolic information. They are owned by the clause
// store; the assignment's conflict analysis references them, never copies.
type clause struct {
	lits     []Literal
	typ      ClauseType
	activity float64 // reduction heuristic score; meaningless for static clauses
}

func (c *clause) len() int { return len(c.lits) }

// clauseDB is the session-independent clause store owned by a Control. It
// holds the completion clauses of the current grounding plus clauses that
// survived earlier solve calls according to their retention class.
type clauseDB struct {
	mu       sync.Mutex
	problem  []*clause // static program clauses, rebuilt per grounding round
	learnt   []*clause // persistent learnt clauses, subject to reduction
	units    []Literal // facts and other level-0 literals
	epoch    uint64    // bumped when literal numbering changes (regrounding)
	maxLearn int       // reduction threshold; grows over time

	learntTotal  int64 // clauses ever retained, for statistics
	deletedTotal int64 // clauses dropped by reduction
}

func newClauseDB() *clauseDB {
	return &clauseDB{maxLearn: 2000}
}

// reset discards all clauses; used when a grounding round renumbers
// literals, which invalidates everything previously learned.
func (db *clauseDB) reset() {
	db.mu.Lock()
	db.problem = nil
	db.learnt = nil
	db.units = nil
	db.epoch++
	db.mu.Unlock()
}

// addProblem inserts a static program clause. Unit clauses go to the fixed
// trail instead of the watch structures.
func (db *clauseDB) addProblem(lits []Literal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(lits) == 1 {
		db.units = append(db.units, lits[0])
		return
	}
	db.problem = append(db.problem, &clause{lits: lits, typ: ClauseStatic})
}

// retainLearnt keeps a learnt clause for future solve calls and applies the
// reduction heuristic when the store grows past its threshold: the
// lowest-activity half of the learnt clauses is dropped and the threshold
// grows, so useful clauses survive longer.
func (db *clauseDB) retainLearnt(c *clause) {
	if c.typ.IsVolatile() {
		return
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.learntTotal++
	if len(c.lits) == 1 {
		db.units = append(db.units, c.lits[0])
		return
	}
	db.learnt = append(db.learnt, c)
	if len(db.learnt) > db.maxLearn {
		db.reduceLocked()
	}
}

func (db *clauseDB) reduceLocked() {
	kept := db.learnt[:0]
	// Median-free split: keep clauses with above-average activity plus all
	// binary clauses, which are cheap and strong.
	var sum float64
	for _, c := range db.learnt {
		sum += c.activity
	}
	avg := sum / float64(len(db.learnt))
	for _, c := range db.learnt {
		if c.len() <= 2 || c.activity >= avg {
			kept = append(kept, c)
		}
	}
	db.deletedTotal += int64(len(db.learnt) - len(kept))
	db.learnt = kept
	db.maxLearn += db.maxLearn / 2
}

// counters returns the running totals of retained and reduced-away learnt
// clauses.
func (db *clauseDB) counters() (learnt, deleted int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.learntTotal, db.deletedTotal
}

// snapshot returns the current problem clauses, persistent learnt clauses,
// and fixed units for building a solve session.
func (db *clauseDB) snapshot() (problem, learnt []*clause, units []Literal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	problem = append(problem, db.problem...)
	learnt = append(learnt, db.learnt...)
	units = append(units, db.units...)
	return problem, learnt, units
}

// pooledClause tags a shared clause with the worker that published it, so
// the publisher does not re-import its own clause.
type pooledClause struct {
	c     *clause
	owner int
}

// sharedPool is the solve-scoped pool through which portfolio workers
// exchange clauses: learnt clauses worth sharing and the volatile blocking
// clauses that drive model enumeration. Workers poll it at decision
// checkpoints.
type sharedPool struct {
	mu      sync.Mutex
	clauses []pooledClause
}

func (p *sharedPool) publish(c *clause, owner int) {
	p.mu.Lock()
	p.clauses = append(p.clauses, pooledClause{c: c, owner: owner})
	p.mu.Unlock()
}

// since returns clauses published after the caller's cursor and the new
// cursor value.
func (p *sharedPool) since(cursor int) ([]pooledClause, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cursor >= len(p.clauses) {
		return nil, cursor
	}
	out := make([]pooledClause, len(p.clauses)-cursor)
	copy(out, p.clauses[cursor:])
	return out, len(p.clauses)
}
