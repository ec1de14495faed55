package asp

import "fmt"

// Literal is a signed reference to a Boolean decision variable. Positive
// values denote the variable itself, negative values its negation; zero is
// never a valid literal. Literals are the shared currency between the
// Assignment, the clause store, and propagators.
type Literal int32

// Neg returns the complementary literal.
func (l Literal) Neg() Literal { return -l }

// Var returns the variable index the literal refers to (always positive).
func (l Literal) Var() int32 {
	if l < 0 {
		return int32(-l)
	}
	return int32(l)
}

// IsNegative reports whether the literal is a negation.
func (l Literal) IsNegative() bool { return l < 0 }

// String renders the literal as a signed integer.
func (l Literal) String() string { return fmt.Sprintf("%d", int32(l)) }

// watchIndex maps a literal to a dense index usable for watch lists:
// 2*var for positive literals, 2*var+1 for negative ones.
func (l Literal) watchIndex() int {
	v := int(l.Var()) << 1
	if l < 0 {
		v |= 1
	}
	return v
}

// TruthValue is the three-valued truth state of a literal or atom.
type TruthValue int

const (
	// TruthFree marks an unassigned literal.
	TruthFree TruthValue = iota

	// TruthTrue marks a literal assigned true.
	TruthTrue

	// TruthFalse marks a literal assigned false.
	TruthFalse
)

// Neg returns the complementary truth value; TruthFree is its own
// complement.
func (v TruthValue) Neg() TruthValue {
	switch v {
	case TruthTrue:
		return TruthFalse
	case TruthFalse:
		return TruthTrue
	default:
		return TruthFree
	}
}

// String returns a human-readable representation of the truth value.
func (v TruthValue) String() string {
	switch v {
	case TruthFree:
		return "free"
	case TruthTrue:
		return "true"
	case TruthFalse:
		return "false"
	default:
		return "invalid"
	}
}

// SymbolicLiteral is a symbol-level literal used for assumptions: the atom
// named by Atom, negated when Sign is true. Assumptions hold for a single
// solve call and never persist as facts.
type SymbolicLiteral struct {
	Atom Symbol
	Sign bool
}

// String renders the symbolic literal.
func (l SymbolicLiteral) String() string {
	if l.Sign {
		return "not " + l.Atom.String()
	}
	return l.Atom.String()
}
