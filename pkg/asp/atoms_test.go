package asp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustAtom(t *testing.T, name string, args ...int) Symbol {
	t.Helper()
	syms := make([]Symbol, len(args))
	for i, a := range args {
		syms[i] = NewNumber(a)
	}
	sym, err := NewFunction(name, syms, false)
	require.NoError(t, err)
	return sym
}

func TestSymbolicAtomsLookup(t *testing.T) {
	dom := newSymbolicAtoms()
	p1 := mustAtom(t, "p", 1)
	p2 := mustAtom(t, "p", 2)
	q := mustAtom(t, "q", 1, 2)
	dom.add(p1, 1)
	dom.add(p2, 2)
	dom.add(q, 3)

	require.Equal(t, 3, dom.Length())

	it := dom.Lookup(p2)
	require.True(t, it.Valid())
	lit, err := it.Literal()
	require.NoError(t, err)
	require.Equal(t, Literal(2), lit)
	sym, err := it.Symbol()
	require.NoError(t, err)
	require.True(t, sym.Equal(p2))

	// Absent symbols yield the explicit not-present sentinel.
	missing := dom.Lookup(mustAtom(t, "p", 99))
	require.False(t, missing.Valid())
	_, err = missing.Symbol()
	require.Equal(t, CodeLogic, CodeOf(err))
}

func TestSymbolicAtomsIterate(t *testing.T) {
	dom := newSymbolicAtoms()
	dom.add(mustAtom(t, "p", 1), 1)
	dom.add(mustAtom(t, "q", 1, 2), 2)
	dom.add(mustAtom(t, "p", 2), 3)

	t.Run("whole domain", func(t *testing.T) {
		count := 0
		for it := dom.Iterate(nil); it.Valid(); it.Next() {
			count++
		}
		require.Equal(t, 3, count)
	})

	t.Run("signature filter", func(t *testing.T) {
		sig, err := NewSignature("p", 1, false)
		require.NoError(t, err)
		var seen []string
		for it := dom.Iterate(&sig); it.Valid(); it.Next() {
			sym, err := it.Symbol()
			require.NoError(t, err)
			seen = append(seen, sym.String())
		}
		require.Equal(t, []string{"p(1)", "p(2)"}, seen)
	})

	t.Run("no matches", func(t *testing.T) {
		sig, err := NewSignature("r", 0, false)
		require.NoError(t, err)
		it := dom.Iterate(&sig)
		require.False(t, it.Valid())
		require.False(t, it.Next())
	})
}

func TestSymbolicAtomsCursorInvalidation(t *testing.T) {
	dom := newSymbolicAtoms()
	dom.add(mustAtom(t, "p", 1), 1)

	it := dom.Lookup(mustAtom(t, "p", 1))
	require.True(t, it.Valid())

	// A new grounding round invalidates outstanding cursors.
	dom.invalidate()
	require.False(t, it.Valid())
	require.False(t, it.Next())
	_, err := it.Literal()
	require.Equal(t, CodeLogic, CodeOf(err))

	// Fresh cursors over the grown domain work.
	dom.add(mustAtom(t, "p", 2), 2)
	it2 := dom.Lookup(mustAtom(t, "p", 2))
	require.True(t, it2.Valid())
}

func TestSymbolicAtomsFlags(t *testing.T) {
	dom := newSymbolicAtoms()
	i := dom.add(mustAtom(t, "f"), 1)
	j := dom.add(mustAtom(t, "e"), 2)
	dom.setFact(i)
	dom.setExternal(j, true)

	it := dom.Lookup(mustAtom(t, "f"))
	fact, err := it.IsFact()
	require.NoError(t, err)
	require.True(t, fact)
	ext, err := it.IsExternal()
	require.NoError(t, err)
	require.False(t, ext)

	it = dom.Lookup(mustAtom(t, "e"))
	ext, err = it.IsExternal()
	require.NoError(t, err)
	require.True(t, ext)
}

func TestSymbolicAtomsSignatures(t *testing.T) {
	dom := newSymbolicAtoms()
	dom.add(mustAtom(t, "q", 1, 2), 1)
	dom.add(mustAtom(t, "p", 1), 2)
	dom.add(mustAtom(t, "p", 2), 3)

	sigs := dom.Signatures()
	var got []string
	for _, s := range sigs {
		got = append(got, s.String())
	}
	// Distinct signatures in ascending name order.
	require.Equal(t, []string{"p/1", "q/2"}, got)
}
