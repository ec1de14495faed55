package asp

import "strconv"

// TheoryTermType identifies the variant of a theory term.
type TheoryTermType int

const (
	// TheoryTermNumber is an integer theory term.
	TheoryTermNumber TheoryTermType = iota

	// TheoryTermSymbol is a named constant theory term.
	TheoryTermSymbol

	// TheoryTermFunction is a compound theory term with a name and
	// arguments.
	TheoryTermFunction

	// TheoryTermTuple is an unnamed sequence of theory terms.
	TheoryTermTuple
)

// String returns the canonical name of the theory term type.
func (t TheoryTermType) String() string {
	switch t {
	case TheoryTermNumber:
		return "number"
	case TheoryTermSymbol:
		return "symbol"
	case TheoryTermFunction:
		return "function"
	case TheoryTermTuple:
		return "tuple"
	default:
		return "invalid"
	}
}

// TheoryData is the capability interface through which propagators inspect
// the theory atoms of the grounded program. The Control owns the concrete
// data; propagators receive the interface through PropagateInit and may
// retain it for the lifetime of the Control. All term and atom ids are
// dense indices scoped to this data object.
//
// Term argument slices are borrowed views valid until the next grounding
// round; callers keeping them longer must copy.
type TheoryData interface {
	// NumAtoms returns the number of theory atoms.
	NumAtoms() int

	// AtomTerm returns the id of the term forming the atom's name and
	// arguments. Out-of-range atom ids are a logic error.
	AtomTerm(atom int) (int, error)

	// AtomLiteral returns the solver literal attached to the atom.
	AtomLiteral(atom int) (Literal, error)

	// TermType returns the variant of a term.
	TermType(term int) (TheoryTermType, error)

	// TermNumber returns the value of a number term; other variants are a
	// logic error.
	TermNumber(term int) (int, error)

	// TermName returns the name of a symbol or function term; other
	// variants are a logic error.
	TermName(term int) (string, error)

	// TermArgs returns the argument term ids of a function or tuple term.
	TermArgs(term int) ([]int, error)

	// TermString renders a term in logic-program syntax.
	TermString(term int) (string, error)
}

// theoryTerm is one node of the theory term store.
type theoryTerm struct {
	typ  TheoryTermType
	num  int
	name string
	args []int
}

// theoryAtom pairs a theory term with its solver literal.
type theoryAtom struct {
	term int
	lit  Literal
}

// theoryData is the concrete TheoryData owned by a Control, populated
// during grounding from &name(args) directives. Grounding is
// single-threaded; after grounding the data is read-only, so propagators
// may query it from any worker.
type theoryData struct {
	terms []theoryTerm
	atoms []theoryAtom
}

func newTheoryData() *theoryData { return &theoryData{} }

// addTerm interns a symbol as a theory term tree and returns its id.
func (td *theoryData) addTerm(sym Symbol) int {
	t := theoryTerm{}
	switch sym.Type() {
	case SymbolNumber:
		t.typ = TheoryTermNumber
		t.num, _ = sym.Number()
	case SymbolFunction:
		name, _ := sym.Name()
		args, _ := sym.Args()
		if len(args) == 0 {
			t.typ = TheoryTermSymbol
			t.name = name
		} else {
			t.typ = TheoryTermFunction
			t.name = name
			for _, a := range args {
				t.args = append(t.args, td.addTerm(a))
			}
		}
	case SymbolString:
		t.typ = TheoryTermSymbol
		t.name, _ = sym.StringValue()
	default:
		t.typ = TheoryTermTuple
	}
	td.terms = append(td.terms, t)
	return len(td.terms) - 1
}

// addAtom records a theory atom for sym with the given solver literal.
func (td *theoryData) addAtom(sym Symbol, lit Literal) int {
	td.atoms = append(td.atoms, theoryAtom{term: td.addTerm(sym), lit: lit})
	return len(td.atoms) - 1
}

func (td *theoryData) NumAtoms() int { return len(td.atoms) }

func (td *theoryData) atomAt(atom int) (theoryAtom, error) {
	if atom < 0 || atom >= len(td.atoms) {
		return theoryAtom{}, newError(CodeLogic, "theory atom id %d out of range", atom)
	}
	return td.atoms[atom], nil
}

func (td *theoryData) AtomTerm(atom int) (int, error) {
	a, err := td.atomAt(atom)
	return a.term, err
}

func (td *theoryData) AtomLiteral(atom int) (Literal, error) {
	a, err := td.atomAt(atom)
	return a.lit, err
}

func (td *theoryData) termAt(term int) (theoryTerm, error) {
	if term < 0 || term >= len(td.terms) {
		return theoryTerm{}, newError(CodeLogic, "theory term id %d out of range", term)
	}
	return td.terms[term], nil
}

func (td *theoryData) TermType(term int) (TheoryTermType, error) {
	t, err := td.termAt(term)
	return t.typ, err
}

func (td *theoryData) TermNumber(term int) (int, error) {
	t, err := td.termAt(term)
	if err != nil {
		return 0, err
	}
	if t.typ != TheoryTermNumber {
		return 0, newError(CodeLogic, "theory term %d is %s, not a number", term, t.typ)
	}
	return t.num, nil
}

func (td *theoryData) TermName(term int) (string, error) {
	t, err := td.termAt(term)
	if err != nil {
		return "", err
	}
	if t.typ != TheoryTermSymbol && t.typ != TheoryTermFunction {
		return "", newError(CodeLogic, "theory term %d is %s, not named", term, t.typ)
	}
	return t.name, nil
}

func (td *theoryData) TermArgs(term int) ([]int, error) {
	t, err := td.termAt(term)
	if err != nil {
		return nil, err
	}
	return t.args, nil
}

func (td *theoryData) TermString(term int) (string, error) {
	t, err := td.termAt(term)
	if err != nil {
		return "", err
	}
	switch t.typ {
	case TheoryTermNumber:
		return strconv.Itoa(t.num), nil
	case TheoryTermSymbol:
		return t.name, nil
	default:
		s := t.name
		s += "("
		for i, a := range t.args {
			if i > 0 {
				s += ","
			}
			as, err := td.TermString(a)
			if err != nil {
				return "", err
			}
			s += as
		}
		return s + ")", nil
	}
}
