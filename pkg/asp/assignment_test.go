package asp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignmentBasics(t *testing.T) {
	a := newAssignment(3)

	require.Equal(t, uint32(0), a.DecisionLevel())
	require.False(t, a.HasConflict())
	require.True(t, a.HasLiteral(1))
	require.True(t, a.HasLiteral(-3))
	require.False(t, a.HasLiteral(4))
	require.False(t, a.HasLiteral(0))

	v, err := a.Value(2)
	require.NoError(t, err)
	require.Equal(t, TruthFree, v)

	_, err = a.Value(9)
	require.Equal(t, CodeLogic, CodeOf(err))
}

func TestAssignmentAssignAndQuery(t *testing.T) {
	a := newAssignment(3)
	require.True(t, a.assign(1))
	require.True(t, a.assign(-2))

	tr, err := a.IsTrue(1)
	require.NoError(t, err)
	require.True(t, tr)
	tr, err = a.IsTrue(-1)
	require.NoError(t, err)
	require.False(t, tr)
	fa, err := a.IsFalse(2)
	require.NoError(t, err)
	require.True(t, fa)

	// Level 0 assignments are fixed.
	fixed, err := a.IsFixed(1)
	require.NoError(t, err)
	require.True(t, fixed)

	// Re-assigning the same value is a no-op; the opposite conflicts.
	require.True(t, a.assign(1))
	require.False(t, a.assign(-1))
	require.True(t, a.HasConflict())
}

func TestAssignmentLevelsAndDecisions(t *testing.T) {
	a := newAssignment(4)
	require.True(t, a.assign(1)) // level 0

	a.pushLevel()
	require.True(t, a.assign(2))
	require.True(t, a.assign(-3)) // implied at level 1

	a.pushLevel()
	require.True(t, a.assign(4))

	require.Equal(t, uint32(2), a.DecisionLevel())

	lvl, err := a.Level(2)
	require.NoError(t, err)
	require.Equal(t, uint32(1), lvl)
	lvl, err = a.Level(-3)
	require.NoError(t, err)
	require.Equal(t, uint32(1), lvl)
	lvl, err = a.Level(4)
	require.NoError(t, err)
	require.Equal(t, uint32(2), lvl)

	d, err := a.Decision(1)
	require.NoError(t, err)
	require.Equal(t, Literal(2), d)
	d, err = a.Decision(2)
	require.NoError(t, err)
	require.Equal(t, Literal(4), d)

	_, err = a.Decision(0)
	require.Equal(t, CodeLogic, CodeOf(err))
	_, err = a.Decision(3)
	require.Equal(t, CodeLogic, CodeOf(err))

	fixed, err := a.IsFixed(2)
	require.NoError(t, err)
	require.False(t, fixed)

	_, err = a.Level(-4)
	require.NoError(t, err) // negation of an assigned literal is assigned too

	a2 := newAssignment(1)
	_, err = a2.Level(1)
	require.Equal(t, CodeLogic, CodeOf(err)) // unassigned
}

func TestAssignmentBacktrack(t *testing.T) {
	a := newAssignment(5)
	require.True(t, a.assign(1))

	a.pushLevel()
	require.True(t, a.assign(2))
	require.True(t, a.assign(3))
	a.pushLevel()
	require.True(t, a.assign(-4))
	require.True(t, a.assign(5))

	undone := a.backtrack(1)
	// Reverse chronological order of the literals above level 1.
	require.Equal(t, []Literal{5, -4}, undone)
	require.Equal(t, uint32(1), a.DecisionLevel())

	v, err := a.Value(4)
	require.NoError(t, err)
	require.Equal(t, TruthFree, v)
	tr, err := a.IsTrue(2)
	require.NoError(t, err)
	require.True(t, tr)

	// Backtracking to the current or a higher level undoes nothing but
	// clears the conflict flag.
	a.conflict = true
	require.Nil(t, a.backtrack(5))
	require.False(t, a.HasConflict())

	undone = a.backtrack(0)
	require.Equal(t, []Literal{3, 2}, undone)
	require.Equal(t, uint32(0), a.DecisionLevel())
	tr, err = a.IsTrue(1)
	require.NoError(t, err)
	require.True(t, tr, "level 0 assignments survive full backtracking")
}

func TestAssignmentTotality(t *testing.T) {
	a := newAssignment(2)
	require.False(t, a.totalAssigned())
	require.True(t, a.assign(1))
	require.False(t, a.totalAssigned())
	require.True(t, a.assign(-2))
	require.True(t, a.totalAssigned())
	require.Equal(t, 2, a.trailSize())
}
