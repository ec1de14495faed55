package asp

import (
	"fmt"
	"sync"
)

// SolveStats is a snapshot of the search statistics accumulated by a
// Control. All counters are totals since the Control was created.
type SolveStats struct {
	// Decisions is the number of branching decisions taken.
	Decisions int64

	// Conflicts is the number of conflicts hit during propagation.
	Conflicts int64

	// Restarts is the number of search restarts performed.
	Restarts int64

	// Models is the number of distinct models reported.
	Models int64

	// LearntClauses is the number of learnt clauses retained in the
	// database; DeletedClauses counts those dropped again by reduction.
	LearntClauses  int64
	DeletedClauses int64
}

// String renders the totals in a compact single-line form.
func (s SolveStats) String() string {
	return fmt.Sprintf("decisions=%d conflicts=%d restarts=%d learnt=%d deleted=%d models=%d",
		s.Decisions, s.Conflicts, s.Restarts, s.LearntClauses, s.DeletedClauses, s.Models)
}

// statsCollector accumulates worker counters behind a mutex, so portfolio
// workers can fold in their totals concurrently while Statistics reads a
// consistent snapshot.
type statsCollector struct {
	mu     sync.Mutex
	totals SolveStats
}

// add folds one worker's counters into the totals.
func (st *statsCollector) add(w *worker) {
	st.mu.Lock()
	st.totals.Decisions += w.decisions
	st.totals.Conflicts += w.conflicts
	st.totals.Restarts += w.restarts
	st.mu.Unlock()
}

func (st *statsCollector) addModels(n int64) {
	st.mu.Lock()
	st.totals.Models += n
	st.mu.Unlock()
}

// snapshot returns a copy of the current totals, safe to read while a
// solve is running.
func (st *statsCollector) snapshot() SolveStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.totals
}
