package asp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func freeExternal(t *testing.T, ctl *Control, name string, arg int) Symbol {
	t.Helper()
	sym := mustAtom(t, name, arg)
	require.NoError(t, ctl.AssignExternal(sym, TruthFree))
	return sym
}

func TestSolveFactsOnly(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "a. b(1)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))

	models := 0
	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		models++
		has, err := m.Contains(mustAtom(t, "b", 1))
		if err != nil {
			return false, err
		}
		require.True(t, has)
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, models)
	require.True(t, result.IsSatisfiable())
	require.True(t, result.IsExhausted())
	require.False(t, result.IsUnsatisfiable())
	require.False(t, result.IsInterrupted())
}

func TestSolveUnsatisfiable(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "a. :- a."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))

	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		t.Error("no model expected")
		return false, nil
	})
	require.NoError(t, err)
	require.True(t, result.IsUnsatisfiable())
	require.True(t, result.IsExhausted())
	require.False(t, result.IsSatisfiable())
}

func TestSolveEvenLoop(t *testing.T) {
	// p and q exclude each other through default negation; the completion
	// admits exactly the two models {p} and {q}.
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "p :- not q. q :- not p."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))

	p, err := NewID("p", false)
	require.NoError(t, err)
	q, err := NewID("q", false)
	require.NoError(t, err)

	var seen []string
	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		hasP, err := m.Contains(p)
		if err != nil {
			return false, err
		}
		hasQ, err := m.Contains(q)
		if err != nil {
			return false, err
		}
		require.NotEqual(t, hasP, hasQ, "exactly one of p, q holds per model")
		if hasP {
			seen = append(seen, "p")
		} else {
			seen = append(seen, "q")
		}
		return true, nil
	})
	require.NoError(t, err)
	require.True(t, result.IsSatisfiable())
	require.True(t, result.IsExhausted())
	require.Len(t, seen, 2)
	require.Contains(t, seen, "p")
	require.Contains(t, seen, "q")
}

func TestSolveEnumerationWithFreeExternals(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	freeExternal(t, ctl, "c", 1)
	freeExternal(t, ctl, "c", 2)

	models := 0
	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		models++
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, models, "two free atoms span four models")
	require.True(t, result.IsExhausted())
}

func TestSolveModelBudget(t *testing.T) {
	ctl, _ := newTestControl(t, "3")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2). #external c(3)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	for i := 1; i <= 3; i++ {
		freeExternal(t, ctl, "c", i)
	}

	models := 0
	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		models++
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, models)
	require.True(t, result.IsSatisfiable())
	require.False(t, result.IsExhausted(), "stopping on the budget does not exhaust the space")
	require.False(t, result.IsInterrupted())
}

func TestSolveCallbackStops(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	freeExternal(t, ctl, "c", 1)
	freeExternal(t, ctl, "c", 2)

	models := 0
	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		models++
		return false, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, models)
	require.True(t, result.IsSatisfiable())
	require.False(t, result.IsExhausted())
}

func TestSolveAssumptions(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "p :- not q. q :- not p."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))

	q, err := NewID("q", false)
	require.NoError(t, err)
	p, err := NewID("p", false)
	require.NoError(t, err)

	t.Run("negative assumption", func(t *testing.T) {
		models := 0
		result, err := ctl.Solve(context.Background(),
			[]SymbolicLiteral{{Atom: q, Sign: true}},
			func(m *Model) (bool, error) {
				models++
				hasP, err := m.Contains(p)
				if err != nil {
					return false, err
				}
				require.True(t, hasP)
				return true, nil
			})
		require.NoError(t, err)
		require.Equal(t, 1, models)
		require.True(t, result.IsExhausted())
	})

	t.Run("assumptions do not persist", func(t *testing.T) {
		models := 0
		result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
			models++
			return true, nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, models)
		require.True(t, result.IsExhausted())
	})

	t.Run("contradictory assumptions", func(t *testing.T) {
		result, err := ctl.Solve(context.Background(),
			[]SymbolicLiteral{{Atom: p}, {Atom: q}},
			nil)
		require.NoError(t, err)
		require.True(t, result.IsUnsatisfiable())
		require.True(t, result.IsExhausted())
	})

	t.Run("unknown positive assumption is unsat", func(t *testing.T) {
		unknown := mustAtom(t, "nosuch", 1)
		result, err := ctl.Solve(context.Background(),
			[]SymbolicLiteral{{Atom: unknown}}, nil)
		require.NoError(t, err)
		require.True(t, result.IsUnsatisfiable())
	})

	t.Run("unknown negative assumption holds vacuously", func(t *testing.T) {
		unknown := mustAtom(t, "nosuch", 1)
		result, err := ctl.Solve(context.Background(),
			[]SymbolicLiteral{{Atom: unknown, Sign: true}}, nil)
		require.NoError(t, err)
		require.True(t, result.IsSatisfiable())
	})
}

func TestSolvePortfolio(t *testing.T) {
	ctl, _ := newTestControl(t, "0", "--threads=4", "--seed=7")
	program := ""
	for i := 1; i <= 4; i++ {
		program += "#external c(" + NewNumber(i).String() + ").\n"
	}
	require.NoError(t, ctl.Add("base", nil, program))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	for i := 1; i <= 4; i++ {
		freeExternal(t, ctl, "c", i)
	}

	models := 0
	result, err := ctl.Solve(context.Background(), nil, func(m *Model) (bool, error) {
		models++
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 16, models, "duplicate models across workers are suppressed")
	require.True(t, result.IsExhausted())
}

func TestSharedPoolImportDoesNotRepublish(t *testing.T) {
	s := &session{nvars: 3, pool: &sharedPool{}}
	w0 := newWorker(0, s, 1)
	w1 := newWorker(1, s, 2)

	learnt := &clause{lits: []Literal{1, 2}, typ: ClauseLearnt}
	s.pool.publish(learnt, w0.id)

	// Both workers drain the pool repeatedly; the imported clause must not
	// circulate back into it.
	for i := 0; i < 3; i++ {
		require.True(t, w0.importShared())
		require.True(t, w1.importShared())
	}
	fresh, cursor := s.pool.since(0)
	require.Len(t, fresh, 1)
	require.Equal(t, 1, cursor)

	// Clauses originating on a worker are still shared, exactly once.
	pc := &PropagateControl{w: w1}
	cont, err := pc.AddClause([]Literal{2, 3}, ClauseLearnt)
	require.NoError(t, err)
	require.True(t, cont)
	fresh, _ = s.pool.since(0)
	require.Len(t, fresh, 2)
	require.Equal(t, 1, fresh[1].owner)
}

func TestSolveInterrupted(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	program := ""
	for i := 1; i <= 8; i++ {
		program += "#external c(" + NewNumber(i).String() + ").\n"
	}
	require.NoError(t, ctl.Add("base", nil, program))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	for i := 1; i <= 8; i++ {
		freeExternal(t, ctl, "c", i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result, err := ctl.Solve(ctx, nil, func(m *Model) (bool, error) {
		cancel()
		return true, nil
	})
	require.NoError(t, err)
	require.True(t, result.IsSatisfiable())
	require.True(t, result.IsInterrupted())
	require.False(t, result.IsExhausted())
}

func TestSolveResultString(t *testing.T) {
	require.Equal(t, "SAT+", (SolveSatisfiable | SolveExhausted).String())
	require.Equal(t, "UNSAT+", (SolveUnsatisfiable | SolveExhausted).String())
	require.Equal(t, "SAT (interrupted)", (SolveSatisfiable | SolveInterrupted).String())
	require.Equal(t, "UNKNOWN", SolveResult(0).String())
}

func TestSolveIterProtocol(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "p :- not q. q :- not p."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))

	h, err := ctl.SolveIter(context.Background(), nil)
	require.NoError(t, err)

	m1, err := h.Next()
	require.NoError(t, err)
	require.NotNil(t, m1)
	_, err = m1.Atoms(ShowShown)
	require.NoError(t, err)

	m2, err := h.Next()
	require.NoError(t, err)
	require.NotNil(t, m2)

	// The previous model is invalidated by advancing.
	_, err = m1.Atoms(ShowShown)
	require.Equal(t, CodeLogic, CodeOf(err))

	end, err := h.Next()
	require.NoError(t, err)
	require.Nil(t, end)

	result, err := h.Get()
	require.NoError(t, err)
	require.True(t, result.IsSatisfiable())
	require.True(t, result.IsExhausted())

	// The end of the sequence is reported exactly once.
	_, err = h.Next()
	require.Equal(t, CodeLogic, CodeOf(err))

	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "close is idempotent")

	_, err = h.Next()
	require.Equal(t, CodeLogic, CodeOf(err))

	// The control accepts new solve calls after the handle is closed.
	result, err = ctl.Solve(context.Background(), nil, nil)
	require.NoError(t, err)
	require.True(t, result.IsSatisfiable())
}

func TestSolveIterGetWhileRunning(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	freeExternal(t, ctl, "c", 1)
	freeExternal(t, ctl, "c", 2)

	h, err := ctl.SolveIter(context.Background(), nil)
	require.NoError(t, err)
	defer h.Close()

	m, err := h.Next()
	require.NoError(t, err)
	require.NotNil(t, m)

	// The search is paused on the first model, so the result is not ready.
	_, err = h.Get()
	require.Equal(t, CodeLogic, CodeOf(err))
}

func TestSolveIterCancel(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2). #external c(3)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	for i := 1; i <= 3; i++ {
		freeExternal(t, ctl, "c", i)
	}

	h, err := ctl.SolveIter(context.Background(), nil)
	require.NoError(t, err)
	defer h.Close()

	m, err := h.Next()
	require.NoError(t, err)
	require.NotNil(t, m)

	h.Cancel()

	// Cancelling ends the enumeration: advancing is a logic error and the
	// model the search was paused on has been invalidated by the worker.
	_, err = h.Next()
	require.Equal(t, CodeLogic, CodeOf(err))
	_, err = m.Atoms(ShowShown)
	require.Equal(t, CodeLogic, CodeOf(err))

	result, err := h.Get()
	require.NoError(t, err)
	require.True(t, result.IsInterrupted())
	require.False(t, result.IsExhausted())
}

func TestSolveRejectsOverlap(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	freeExternal(t, ctl, "c", 1)
	freeExternal(t, ctl, "c", 2)

	h, err := ctl.SolveIter(context.Background(), nil)
	require.NoError(t, err)

	_, err = h.Next()
	require.NoError(t, err)

	_, err = ctl.Solve(context.Background(), nil, nil)
	require.Equal(t, CodeRuntime, CodeOf(err))
	err = ctl.Ground([]Part{{Name: "base"}}, nil)
	require.Equal(t, CodeRuntime, CodeOf(err))

	require.NoError(t, h.Close())
}

func TestStatisticsAccumulate(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1). #external c(2)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	freeExternal(t, ctl, "c", 1)
	freeExternal(t, ctl, "c", 2)

	_, err := ctl.Solve(context.Background(), nil, nil)
	require.NoError(t, err)

	st := ctl.Statistics()
	require.Equal(t, int64(4), st.Models)
	require.NotEmpty(t, st.String())
}

func TestSolveContextAlreadyCancelled(t *testing.T) {
	ctl, _ := newTestControl(t, "0")
	require.NoError(t, ctl.Add("base", nil, "#external c(1)."))
	require.NoError(t, ctl.Ground([]Part{{Name: "base"}}, nil))
	freeExternal(t, ctl, "c", 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	result, err := ctl.Solve(ctx, nil, nil)
	require.NoError(t, err)
	require.True(t, result.IsInterrupted() || result.IsExhausted())
}
