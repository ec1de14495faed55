package asp

// Part names a program fragment to instantiate, together with the concrete
// symbols bound to its parameters.
type Part struct {
	Name   string
	Params []Symbol
}

// GroundCallback evaluates @name(args) terms embedded in a program: it maps
// the call to zero or more symbols, each of which yields one instance of
// the enclosing rule. A nil callback makes any @-term a grounding error.
type GroundCallback func(loc Location, name string, args []Symbol) ([]Symbol, error)

// programPart is a named, parameterized fragment registered with Add.
type programPart struct {
	params []string
	stmts  []statement
}

// groundLit is a body literal over a domain atom index.
type groundLit struct {
	atom int
	neg  bool
}

// groundRule is one instantiated rule: head atom index, or -1 for an
// integrity constraint.
type groundRule struct {
	head int
	body []groundLit
}

// errDroppedInstance marks a rule instance discarded after an undefined
// operation; it is reported as a warning, never as an error.
var errDroppedInstance = newError(CodeRuntime, "rule instance dropped")

// grounder instantiates parts into ground rules and registers their atoms.
// Grounding runs single-threaded under the Control's lock.
type grounder struct {
	c    *Control
	cb   GroundCallback
	sink *messageSink
}

// ground instantiates the requested parts.
func (g *grounder) ground(parts []Part) error {
	g.c.dom.invalidate()
	for _, part := range parts {
		tmpl, ok := g.c.parts[part.Name]
		if !ok {
			return newError(CodeRuntime, "no part named %q has been added", part.Name)
		}
		if len(tmpl.params) != len(part.Params) {
			return newError(CodeRuntime, "part %q expects %d parameters, got %d",
				part.Name, len(tmpl.params), len(part.Params))
		}
		subst := make(map[string]Symbol, len(tmpl.params))
		for i, p := range tmpl.params {
			subst[p] = part.Params[i]
		}
		for _, st := range tmpl.stmts {
			if err := g.groundStatement(st, subst); err != nil {
				return err
			}
		}
	}
	g.c.clausesDirty = true
	return nil
}

func (g *grounder) groundStatement(st statement, subst map[string]Symbol) error {
	switch st.kind {
	case stmtShow:
		sig, err := NewSignature(st.showName, uint32(st.showArity), false)
		if err != nil {
			return err
		}
		g.c.shown[sig.Hash()] = sig
		return nil
	case stmtExternal:
		syms, err := g.evalTerm(st.head, subst)
		if err != nil {
			return err
		}
		for _, sym := range syms {
			idx, err := g.registerAtom(sym, st.loc)
			if err != nil {
				return err
			}
			if !g.c.released[sym.Hash()] {
				g.c.dom.setExternal(idx, true)
			}
		}
		return nil
	case stmtTheory:
		syms, err := g.evalTerm(st.head, subst)
		if err != nil {
			return err
		}
		for _, sym := range syms {
			lit := g.c.newSolverVar()
			g.c.theory.addAtom(sym, lit)
		}
		return nil
	default:
		return g.groundRuleStatement(st, subst)
	}
}

// groundRuleStatement expands one rule or constraint statement into ground
// rule instances, taking the cartesian product over pooled term values.
func (g *grounder) groundRuleStatement(st statement, subst map[string]Symbol) error {
	pools := make([][]Symbol, 0, len(st.body)+1)
	if st.kind == stmtRule {
		heads, err := g.evalTerm(st.head, subst)
		if err == errDroppedInstance {
			return nil
		}
		if err != nil {
			return err
		}
		pools = append(pools, heads)
	}
	for _, bl := range st.body {
		syms, err := g.evalTerm(bl.atom, subst)
		if err == errDroppedInstance {
			return nil
		}
		if err != nil {
			return err
		}
		pools = append(pools, syms)
	}
	return g.expandInstances(st, pools, make([]Symbol, 0, len(pools)))
}

func (g *grounder) expandInstances(st statement, pools [][]Symbol, picked []Symbol) error {
	if len(picked) == len(pools) {
		return g.emitRule(st, picked)
	}
	for _, sym := range pools[len(picked)] {
		if err := g.expandInstances(st, pools, append(picked, sym)); err != nil {
			return err
		}
	}
	return nil
}

func (g *grounder) emitRule(st statement, picked []Symbol) error {
	r := groundRule{head: -1}
	i := 0
	if st.kind == stmtRule {
		idx, err := g.registerAtom(picked[0], st.head.loc)
		if err != nil {
			return err
		}
		r.head = idx
		i = 1
	}
	for b, bl := range st.body {
		idx, err := g.registerAtom(picked[i+b], bl.loc)
		if err != nil {
			return err
		}
		r.body = append(r.body, groundLit{atom: idx, neg: bl.neg})
	}
	if r.head >= 0 && len(r.body) == 0 {
		g.c.dom.setFact(r.head)
	}
	g.c.rules = append(g.c.rules, r)
	return nil
}

// registerAtom interns sym in the domain, allocating a solver variable on
// first sight. Only function symbols may serve as atoms.
func (g *grounder) registerAtom(sym Symbol, loc Location) (int, error) {
	if sym.Type() != SymbolFunction {
		return 0, newError(CodeRuntime, "%s: %s cannot be used as an atom", loc, sym)
	}
	if it := g.c.dom.Lookup(sym); it.Valid() {
		return it.pos, nil
	}
	return g.c.dom.add(sym, g.c.newSolverVar()), nil
}

// evalTerm evaluates a term under the parameter substitution, returning the
// pool of symbols it denotes. Undefined arithmetic reports the
// operation-undefined warning and drops the enclosing rule instance.
func (g *grounder) evalTerm(t astTerm, subst map[string]Symbol) ([]Symbol, error) {
	switch t.kind {
	case termNumber:
		return []Symbol{NewNumber(t.num)}, nil
	case termString:
		return []Symbol{NewString(t.text)}, nil
	case termInfimum:
		return []Symbol{Infimum()}, nil
	case termSupremum:
		return []Symbol{Supremum()}, nil
	case termBinop:
		ls, err := g.evalTerm(t.args[0], subst)
		if err != nil {
			return nil, err
		}
		rs, err := g.evalTerm(t.args[1], subst)
		if err != nil {
			return nil, err
		}
		var out []Symbol
		for _, l := range ls {
			for _, r := range rs {
				ln, lerr := l.Number()
				rn, rerr := r.Number()
				if lerr != nil || rerr != nil {
					g.sink.report(MessageOperationUndefined,
						"%s: operation %q undefined on %s and %s", t.loc, t.text, l, r)
					return nil, errDroppedInstance
				}
				switch t.text {
				case "+":
					out = append(out, NewNumber(ln+rn))
				case "-":
					out = append(out, NewNumber(ln-rn))
				default:
					out = append(out, NewNumber(ln*rn))
				}
			}
		}
		return out, nil
	case termCall:
		if g.cb == nil {
			return nil, newError(CodeRuntime, "%s: no ground callback provided for @%s", t.loc, t.text)
		}
		argPools, err := g.evalArgs(t.args, subst)
		if err != nil {
			return nil, err
		}
		var out []Symbol
		for _, args := range argPools {
			syms, err := g.cb(t.loc, t.text, args)
			if err != nil {
				return nil, wrapError(err, "ground callback @%s failed", t.text)
			}
			out = append(out, syms...)
		}
		return out, nil
	default: // termSymbolic
		if len(t.args) == 0 && !t.sign {
			if sym, ok := subst[t.text]; ok {
				return []Symbol{sym}, nil
			}
		}
		argPools, err := g.evalArgs(t.args, subst)
		if err != nil {
			return nil, err
		}
		var out []Symbol
		for _, args := range argPools {
			sym, err := NewFunction(t.text, args, t.sign)
			if err != nil {
				return nil, err
			}
			out = append(out, sym)
		}
		return out, nil
	}
}

// evalArgs evaluates an argument list, expanding pooled values into the
// cartesian product of concrete argument vectors.
func (g *grounder) evalArgs(args []astTerm, subst map[string]Symbol) ([][]Symbol, error) {
	vectors := [][]Symbol{nil}
	for _, a := range args {
		pool, err := g.evalTerm(a, subst)
		if err != nil {
			return nil, err
		}
		next := make([][]Symbol, 0, len(vectors)*len(pool))
		for _, v := range vectors {
			for _, sym := range pool {
				nv := make([]Symbol, len(v), len(v)+1)
				copy(nv, v)
				next = append(next, append(nv, sym))
			}
		}
		vectors = next
	}
	return vectors, nil
}

// buildClauses translates the accumulated ground rules into the clause
// database via Clark completion: every defined atom is made equivalent to
// the disjunction of its rule bodies, facts become unit clauses, undefined
// non-external atoms are fixed false with an atom-undefined warning, and
// external or theory atoms stay unconstrained so their truth can come from
// assignments or propagators. Rebuilding resets the database, dropping
// clauses learned under the previous numbering.
func (c *Control) buildClauses() {
	c.db.reset()
	c.auxVars = 0

	type defs struct {
		fact   bool
		bodies [][]groundLit
	}
	byHead := make(map[int]*defs)
	for _, r := range c.rules {
		if r.head < 0 {
			// Integrity constraint: at least one body literal is false.
			lits := make([]Literal, 0, len(r.body))
			for _, bl := range r.body {
				lits = append(lits, c.atomLit(bl.atom, !bl.neg).Neg())
			}
			c.db.addProblem(lits)
			continue
		}
		d := byHead[r.head]
		if d == nil {
			d = &defs{}
			byHead[r.head] = d
		}
		if len(r.body) == 0 {
			d.fact = true
		}
		d.bodies = append(d.bodies, r.body)
	}

	c.dom.mu.RLock()
	n := len(c.dom.entries)
	c.dom.mu.RUnlock()
	for idx := 0; idx < n; idx++ {
		head := c.atomLit(idx, true)
		d := byHead[idx]
		if d == nil {
			if c.isExternalNow(idx) {
				continue // truth supplied per solve call
			}
			sym, _ := c.atomSymbol(idx)
			c.sink.report(MessageAtomUndefined, "atom %s does not occur in any rule head", sym)
			c.db.addProblem([]Literal{head.Neg()})
			continue
		}
		if d.fact {
			c.db.addProblem([]Literal{head})
			continue
		}
		support := make([]Literal, 0, len(d.bodies)+1)
		support = append(support, head.Neg())
		for _, body := range d.bodies {
			bodyLit := c.bodyLiteral(body)
			support = append(support, bodyLit)
			// body -> head
			c.db.addProblem([]Literal{bodyLit.Neg(), head})
		}
		// head -> some body
		c.db.addProblem(support)
	}
	c.clausesDirty = false
}

// bodyLiteral returns a literal equivalent to the conjunction of body,
// introducing an auxiliary variable for bodies of length > 1.
func (c *Control) bodyLiteral(body []groundLit) Literal {
	if len(body) == 1 {
		return c.atomLit(body[0].atom, !body[0].neg)
	}
	c.auxVars++
	aux := c.nextVar + Literal(c.auxVars) - 1
	long := make([]Literal, 0, len(body)+1)
	long = append(long, aux)
	for _, bl := range body {
		l := c.atomLit(bl.atom, !bl.neg)
		// aux -> l
		c.db.addProblem([]Literal{aux.Neg(), l})
		long = append(long, l.Neg())
	}
	// all body literals -> aux
	c.db.addProblem(long)
	return aux
}
