package asp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSymbolVariants(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		s := NewNumber(42)
		require.Equal(t, SymbolNumber, s.Type())
		n, err := s.Number()
		require.NoError(t, err)
		require.Equal(t, 42, n)
		require.Equal(t, "42", s.String())
	})

	t.Run("string", func(t *testing.T) {
		s := NewString("hello world")
		v, err := s.StringValue()
		require.NoError(t, err)
		require.Equal(t, "hello world", v)
		require.Equal(t, `"hello world"`, s.String())
	})

	t.Run("function", func(t *testing.T) {
		s, err := NewFunction("edge", []Symbol{NewNumber(1), NewNumber(2)}, false)
		require.NoError(t, err)
		name, err := s.Name()
		require.NoError(t, err)
		require.Equal(t, "edge", name)
		args, err := s.Args()
		require.NoError(t, err)
		require.Len(t, args, 2)
		require.Equal(t, "edge(1,2)", s.String())
	})

	t.Run("negated constant", func(t *testing.T) {
		s, err := NewID("a", true)
		require.NoError(t, err)
		sign, err := s.Sign()
		require.NoError(t, err)
		require.True(t, sign)
		require.Equal(t, "-a", s.String())
	})

	t.Run("empty function name rejected", func(t *testing.T) {
		_, err := NewFunction("", nil, false)
		require.Error(t, err)
		require.Equal(t, CodeRuntime, CodeOf(err))
	})

	t.Run("extremes", func(t *testing.T) {
		require.Equal(t, "#inf", Infimum().String())
		require.Equal(t, "#sup", Supremum().String())
	})
}

func TestSymbolWrongVariantAccess(t *testing.T) {
	n := NewNumber(7)
	if _, err := n.Name(); CodeOf(err) != CodeLogic {
		t.Fatalf("Name on number: want logic error, got %v", err)
	}
	if _, err := n.Args(); CodeOf(err) != CodeLogic {
		t.Fatalf("Args on number: want logic error, got %v", err)
	}
	s := NewString("x")
	if _, err := s.Number(); CodeOf(err) != CodeLogic {
		t.Fatalf("Number on string: want logic error, got %v", err)
	}
	f, err := NewID("c", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.StringValue(); CodeOf(err) != CodeLogic {
		t.Fatalf("StringValue on function: want logic error, got %v", err)
	}
}

func TestSymbolArgumentsCopied(t *testing.T) {
	args := []Symbol{NewNumber(1), NewNumber(2)}
	s, err := NewFunction("f", args, false)
	require.NoError(t, err)
	args[0] = NewNumber(99)
	got, err := s.Args()
	require.NoError(t, err)
	n, err := got[0].Number()
	require.NoError(t, err)
	require.Equal(t, 1, n, "mutating the input slice must not change the symbol")
}

func TestSymbolEqualityAndHash(t *testing.T) {
	a1, _ := NewFunction("p", []Symbol{NewNumber(1), NewString("x")}, false)
	a2, _ := NewFunction("p", []Symbol{NewNumber(1), NewString("x")}, false)
	b, _ := NewFunction("p", []Symbol{NewNumber(2), NewString("x")}, false)

	if !a1.Equal(a2) {
		t.Fatal("structurally identical symbols must be equal")
	}
	if a1.Hash() != a2.Hash() {
		t.Fatal("equal symbols must hash identically")
	}
	if a1.Equal(b) {
		t.Fatal("different symbols must not be equal")
	}
	if a1.Equal(NewNumber(1)) {
		t.Fatal("symbols of different variants must not be equal")
	}
}

func TestSymbolTotalOrder(t *testing.T) {
	f1, _ := NewID("a", false)
	f1neg, _ := NewID("a", true)
	f2, _ := NewFunction("a", []Symbol{NewNumber(1)}, false)
	f3, _ := NewFunction("b", []Symbol{NewNumber(1)}, false)

	// Ascending ladder across and within variants.
	ladder := []Symbol{
		Infimum(),
		NewNumber(-3),
		NewNumber(0),
		NewNumber(5),
		NewString("abc"),
		NewString("abd"),
		f1,    // arity 0
		f1neg, // same name and arity, negative sign orders after positive
		f2,    // arity 1 orders after every arity 0
		f3,
		Supremum(),
	}
	for i := 0; i < len(ladder); i++ {
		for j := 0; j < len(ladder); j++ {
			less := ladder[i].Less(ladder[j])
			if (i < j) != less {
				t.Fatalf("ladder[%d].Less(ladder[%d]) = %v (%s vs %s)",
					i, j, less, ladder[i], ladder[j])
			}
		}
	}

	// Consistency law: equality holds exactly when neither compares less.
	for i := range ladder {
		for j := range ladder {
			eq := ladder[i].Equal(ladder[j])
			neither := !ladder[i].Less(ladder[j]) && !ladder[j].Less(ladder[i])
			if eq != neither {
				t.Fatalf("order inconsistent with equality for %s and %s", ladder[i], ladder[j])
			}
		}
	}
}

func TestSortSymbols(t *testing.T) {
	c, _ := NewID("c", false)
	syms := []Symbol{Supremum(), NewString("s"), c, NewNumber(10), Infimum(), NewNumber(-1)}
	SortSymbols(syms)

	want := []string{"#inf", "-1", "10", `"s"`, "c", "#sup"}
	var got []string
	for _, s := range syms {
		got = append(got, s.String())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sorted order mismatch (-want +got):\n%s", diff)
	}
}

func TestSignature(t *testing.T) {
	sym, err := NewFunction("edge", []Symbol{NewNumber(1), NewNumber(2)}, false)
	require.NoError(t, err)
	sig, err := sym.Signature()
	require.NoError(t, err)
	require.Equal(t, "edge", sig.Name())
	require.Equal(t, uint32(2), sig.Arity())
	require.False(t, sig.Sign())
	require.Equal(t, "edge/2", sig.String())

	other, err := NewSignature("edge", 2, false)
	require.NoError(t, err)
	require.True(t, sig.Equal(other))
	require.Equal(t, sig.Hash(), other.Hash())

	if _, err := NewNumber(1).Signature(); CodeOf(err) != CodeLogic {
		t.Fatalf("Signature on number: want logic error, got %v", err)
	}
}
