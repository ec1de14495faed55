package asp

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// SymbolType identifies the variant of a Symbol.
type SymbolType int

const (
	// SymbolInfimum is the unique smallest symbol.
	SymbolInfimum SymbolType = iota

	// SymbolNumber is an integer symbol.
	SymbolNumber

	// SymbolString is a quoted string symbol.
	SymbolString

	// SymbolFunction is a (possibly classically negated) function symbol
	// with a name and an ordered argument list. Constants are functions
	// with zero arguments.
	SymbolFunction

	// SymbolSupremum is the unique greatest symbol.
	SymbolSupremum
)

// String returns the canonical name of the symbol type.
func (t SymbolType) String() string {
	switch t {
	case SymbolInfimum:
		return "infimum"
	case SymbolNumber:
		return "number"
	case SymbolString:
		return "string"
	case SymbolFunction:
		return "function"
	case SymbolSupremum:
		return "supremum"
	default:
		return "invalid"
	}
}

// Symbol is an immutable interned term. The zero value is the infimum.
//
// Symbols carry a canonical 64-bit representation computed once at
// construction, giving O(1) hashing and expected O(1) equality. They are
// totally ordered: infimum < numbers (by value) < strings (lexicographic)
// < functions (by arity, then name, then arguments, then sign) < supremum.
// Symbols are plain values, safe to copy and share across goroutines.
type Symbol struct {
	typ  SymbolType
	num  int
	text string // string value, or function name
	sign bool   // classical negation flag of a function
	args []Symbol
	rep  uint64
}

// Infimum returns the smallest symbol.
func Infimum() Symbol {
	return Symbol{typ: SymbolInfimum, rep: hashSymbol(SymbolInfimum, 0, "", false, nil)}
}

// Supremum returns the greatest symbol.
func Supremum() Symbol {
	return Symbol{typ: SymbolSupremum, rep: hashSymbol(SymbolSupremum, 0, "", false, nil)}
}

// NewNumber returns an integer symbol.
func NewNumber(n int) Symbol {
	return Symbol{typ: SymbolNumber, num: n, rep: hashSymbol(SymbolNumber, n, "", false, nil)}
}

// NewString returns a string symbol.
func NewString(s string) Symbol {
	return Symbol{typ: SymbolString, text: s, rep: hashSymbol(SymbolString, 0, s, false, nil)}
}

// NewID returns a constant: a function symbol with zero arguments. The sign
// flag marks classical negation. The name must be non-empty.
func NewID(name string, sign bool) (Symbol, error) {
	return NewFunction(name, nil, sign)
}

// NewFunction returns a function symbol. The argument slice is copied, so
// later mutation of args does not affect the symbol. The name must be
// non-empty.
func NewFunction(name string, args []Symbol, sign bool) (Symbol, error) {
	if name == "" {
		return Symbol{}, newError(CodeRuntime, "function symbol requires a non-empty name")
	}
	own := make([]Symbol, len(args))
	copy(own, args)
	return Symbol{
		typ:  SymbolFunction,
		text: name,
		sign: sign,
		args: own,
		rep:  hashSymbol(SymbolFunction, 0, name, sign, own),
	}, nil
}

// hashSymbol computes the canonical 64-bit representation.
func hashSymbol(t SymbolType, num int, text string, sign bool, args []Symbol) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	put(uint64(t))
	switch t {
	case SymbolNumber:
		put(uint64(int64(num)))
	case SymbolString:
		h.Write([]byte(text))
	case SymbolFunction:
		h.Write([]byte(text))
		put(uint64(len(args)))
		for _, a := range args {
			put(a.rep)
		}
		if sign {
			put(1)
		}
	}
	return h.Sum64()
}

// Type returns the symbol's variant.
func (s Symbol) Type() SymbolType { return s.typ }

// Hash returns the canonical 64-bit representation of the symbol.
func (s Symbol) Hash() uint64 { return s.rep }

// Number returns the value of a number symbol. Calling it on any other
// variant is a logic error.
func (s Symbol) Number() (int, error) {
	if s.typ != SymbolNumber {
		return 0, newError(CodeLogic, "symbol is %s, not a number", s.typ)
	}
	return s.num, nil
}

// Name returns the name of a function symbol. Calling it on any other
// variant is a logic error.
func (s Symbol) Name() (string, error) {
	if s.typ != SymbolFunction {
		return "", newError(CodeLogic, "symbol is %s, not a function", s.typ)
	}
	return s.text, nil
}

// StringValue returns the value of a string symbol. Calling it on any other
// variant is a logic error.
func (s Symbol) StringValue() (string, error) {
	if s.typ != SymbolString {
		return "", newError(CodeLogic, "symbol is %s, not a string", s.typ)
	}
	return s.text, nil
}

// Args returns the arguments of a function symbol. The returned slice is a
// borrowed read-only view backed by the symbol; it stays valid for the life
// of the symbol and must not be modified. Calling Args on any other variant
// is a logic error.
func (s Symbol) Args() ([]Symbol, error) {
	if s.typ != SymbolFunction {
		return nil, newError(CodeLogic, "symbol is %s, not a function", s.typ)
	}
	return s.args, nil
}

// Sign returns the classical-negation flag of a function symbol. Calling it
// on any other variant is a logic error.
func (s Symbol) Sign() (bool, error) {
	if s.typ != SymbolFunction {
		return false, newError(CodeLogic, "symbol is %s, not a function", s.typ)
	}
	return s.sign, nil
}

// Equal reports structural equality. It is consistent with Less:
// Equal(a, b) holds exactly when neither a.Less(b) nor b.Less(a).
func (s Symbol) Equal(o Symbol) bool {
	if s.rep != o.rep || s.typ != o.typ {
		return false
	}
	switch s.typ {
	case SymbolNumber:
		return s.num == o.num
	case SymbolString:
		return s.text == o.text
	case SymbolFunction:
		if s.text != o.text || s.sign != o.sign || len(s.args) != len(o.args) {
			return false
		}
		for i := range s.args {
			if !s.args[i].Equal(o.args[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// typeRank orders the variants for comparison.
func (t SymbolType) typeRank() int {
	switch t {
	case SymbolInfimum:
		return 0
	case SymbolNumber:
		return 1
	case SymbolString:
		return 2
	case SymbolFunction:
		return 3
	default:
		return 4
	}
}

// Less implements the total order over symbols.
func (s Symbol) Less(o Symbol) bool {
	if r1, r2 := s.typ.typeRank(), o.typ.typeRank(); r1 != r2 {
		return r1 < r2
	}
	switch s.typ {
	case SymbolNumber:
		return s.num < o.num
	case SymbolString:
		return s.text < o.text
	case SymbolFunction:
		if len(s.args) != len(o.args) {
			return len(s.args) < len(o.args)
		}
		if s.text != o.text {
			return s.text < o.text
		}
		for i := range s.args {
			if s.args[i].Less(o.args[i]) {
				return true
			}
			if o.args[i].Less(s.args[i]) {
				return false
			}
		}
		return !s.sign && o.sign
	default:
		return false
	}
}

// String renders the symbol in logic-program syntax.
func (s Symbol) String() string {
	switch s.typ {
	case SymbolInfimum:
		return "#inf"
	case SymbolSupremum:
		return "#sup"
	case SymbolNumber:
		return strconv.Itoa(s.num)
	case SymbolString:
		return strconv.Quote(s.text)
	default:
		var b strings.Builder
		if s.sign {
			b.WriteByte('-')
		}
		b.WriteString(s.text)
		if len(s.args) > 0 {
			b.WriteByte('(')
			for i, a := range s.args {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(a.String())
			}
			b.WriteByte(')')
		}
		return b.String()
	}
}

// SortSymbols orders a slice of symbols in place by the total order.
func SortSymbols(syms []Symbol) {
	sort.Slice(syms, func(i, j int) bool { return syms[i].Less(syms[j]) })
}
