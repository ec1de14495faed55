package asp

import (
	"fmt"
	"hash/fnv"
)

// Signature groups atoms sharing a functor: a (name, arity, sign) key
// derived from function symbols. Signatures are immutable values with the
// same hashing and ordering guarantees as symbols.
type Signature struct {
	name  string
	arity uint32
	sign  bool
	rep   uint64
}

// NewSignature builds a signature. The name must be non-empty.
func NewSignature(name string, arity uint32, sign bool) (Signature, error) {
	if name == "" {
		return Signature{}, newError(CodeRuntime, "signature requires a non-empty name")
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	var buf [8]byte
	for i := 0; i < 4; i++ {
		buf[i] = byte(arity >> (8 * i))
	}
	if sign {
		buf[4] = 1
	}
	h.Write(buf[:5])
	return Signature{name: name, arity: arity, sign: sign, rep: h.Sum64()}, nil
}

// Signature returns the (name, arity, sign) key of a function symbol.
// Calling it on any other variant is a logic error.
func (s Symbol) Signature() (Signature, error) {
	if s.typ != SymbolFunction {
		return Signature{}, newError(CodeLogic, "symbol is %s, not a function", s.typ)
	}
	return NewSignature(s.text, uint32(len(s.args)), s.sign)
}

// Name returns the functor name.
func (g Signature) Name() string { return g.name }

// Arity returns the number of arguments.
func (g Signature) Arity() uint32 { return g.arity }

// Sign returns the classical-negation flag.
func (g Signature) Sign() bool { return g.sign }

// Hash returns the canonical 64-bit representation of the signature.
func (g Signature) Hash() uint64 { return g.rep }

// Equal reports whether two signatures denote the same functor group.
func (g Signature) Equal(o Signature) bool {
	return g.arity == o.arity && g.sign == o.sign && g.name == o.name
}

// Less orders signatures by sign, name, then arity.
func (g Signature) Less(o Signature) bool {
	if g.sign != o.sign {
		return !g.sign && o.sign
	}
	if g.name != o.name {
		return g.name < o.name
	}
	return g.arity < o.arity
}

// String renders the signature in the conventional name/arity form.
func (g Signature) String() string {
	prefix := ""
	if g.sign {
		prefix = "-"
	}
	return fmt.Sprintf("%s%s/%d", prefix, g.name, g.arity)
}
