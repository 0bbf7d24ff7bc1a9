package engine

import (
	"go/token"
	"strings"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
)

// outgoing is a state leaving an instruction.
type outgoing struct {
	state       state.ProgramState
	exceptional bool
}

func normal(s state.ProgramState) []outgoing {
	return []outgoing{{state: s}}
}

// fold is true if literals may be computed with at p. Past the loop bound
// every computation yields the site value, so loop counters stop growing.
func (x *explorer) fold(p defs.ProgramPoint) bool {
	return p.Iter < x.e.opts.LoopBound
}

// site binds dst to the value created at p, forgetting whatever an earlier
// visit of p learned about it.
func (x *explorer) site(p defs.ProgramPoint, s state.ProgramState, dst cfg.Slot) (state.ProgramState, symbolic.Value) {
	v := x.store.At(p, 0)
	return s.Clear(v).Bind(dst, v), v
}

func (x *explorer) transfer(
	p defs.ProgramPoint,
	s state.ProgramState,
	instr cfg.Instruction,
	callee *behavior.MethodBehavior,
) []outgoing {
	value := func(slot cfg.Slot) symbolic.Value {
		v, _ := s.ValueOf(slot)
		return v
	}

	switch i := instr.(type) {
	case cfg.Assign:
		return normal(s.Bind(i.Dst, value(i.Src)))

	case cfg.Const:
		if _, ok := i.Value.(cfg.UnknownConst); ok {
			s, _ = x.site(p, s, i.Dst)
			return normal(s)
		}
		return normal(s.Bind(i.Dst, x.store.ValueOf(i.Value)))

	case cfg.New:
		s, v := x.site(p, s, i.Dst)
		s, _ = s.Constrain(v, constraint.NotNull)
		return normal(s)

	case cfg.Load:
		s, v := x.site(p, s, i.Dst)
		if i.Addr {
			s, _ = s.Constrain(v, constraint.NotNull)
		}
		return normal(s)

	case cfg.Store:
		return normal(s)

	case cfg.UnOp:
		xv := value(i.X)
		if lit, ok := xv.Constant(); ok && x.fold(p) {
			if c, ok := unop(i.Op, lit); ok {
				return normal(s.Bind(i.Dst, x.store.ValueOf(c)))
			}
		}
		s, v := x.site(p, s, i.Dst)
		if i.Op == token.NOT {
			if c, ok := s.ConstraintOf(xv, constraint.Boolean); ok {
				nc, _ := constraint.Boolean.Complement(c)
				s, _ = s.Constrain(v, nc)
			}
		}
		return normal(s)

	case cfg.BinOp:
		xv, yv := value(i.X), value(i.Y)
		if x.fold(p) {
			a, aok := xv.Constant()
			b, bok := yv.Constant()
			if aok && bok {
				if c, ok := binop(i.Op, a, b); ok {
					return normal(s.Bind(i.Dst, x.store.ValueOf(c)))
				}
			}
		}
		s, _ = x.site(p, s, i.Dst)
		return normal(s)

	case cfg.Havoc:
		s, _ = x.site(p, s, i.Dst)
		return normal(s)

	case cfg.Call:
		args := make([]symbolic.Value, len(i.Args))
		for j, a := range i.Args {
			args[j] = value(a)
		}

		var res []outgoing
		for _, inst := range callee.Apply(s, args, x.store, p) {
			if inst.Exceptional {
				res = append(res, outgoing{inst.State, true})
				continue
			}
			st := inst.State
			for j, r := range i.Results {
				if r == cfg.NoSlot {
					continue
				}
				if j < len(inst.Results) {
					st = st.Bind(r, inst.Results[j])
					continue
				}
				v := x.store.At(p, j)
				st = st.Clear(v).Bind(r, v)
			}
			res = append(res, outgoing{state: st})
		}
		return res
	}
	panic("???")
}

func unop(op token.Token, c cfg.Constant) (cfg.Constant, bool) {
	switch c := c.(type) {
	case cfg.BoolConst:
		if op == token.NOT {
			return cfg.BoolConst{V: !c.V}, true
		}
	case cfg.IntConst:
		switch op {
		case token.SUB:
			return cfg.IntConst{V: -c.V}, true
		case token.XOR:
			return cfg.IntConst{V: ^c.V}, true
		}
	}
	return nil, false
}

func binop(op token.Token, a, b cfg.Constant) (cfg.Constant, bool) {
	if cfg.IsComparison(op) {
		if res, ok := compare(op, a, b); ok {
			return cfg.BoolConst{V: res}, true
		}
		return nil, false
	}

	switch a := a.(type) {
	case cfg.IntConst:
		b, ok := b.(cfg.IntConst)
		if !ok {
			return nil, false
		}
		switch op {
		case token.ADD:
			return cfg.IntConst{V: a.V + b.V}, true
		case token.SUB:
			return cfg.IntConst{V: a.V - b.V}, true
		case token.MUL:
			return cfg.IntConst{V: a.V * b.V}, true
		case token.QUO, token.REM:
			// Division by zero is left to the detectors.
			if b.V == 0 {
				return nil, false
			}
			if op == token.QUO {
				return cfg.IntConst{V: a.V / b.V}, true
			}
			return cfg.IntConst{V: a.V % b.V}, true
		case token.AND:
			return cfg.IntConst{V: a.V & b.V}, true
		case token.OR:
			return cfg.IntConst{V: a.V | b.V}, true
		case token.XOR:
			return cfg.IntConst{V: a.V ^ b.V}, true
		case token.AND_NOT:
			return cfg.IntConst{V: a.V &^ b.V}, true
		case token.SHL, token.SHR:
			if b.V < 0 || b.V >= 64 {
				return nil, false
			}
			if op == token.SHL {
				return cfg.IntConst{V: a.V << uint(b.V)}, true
			}
			return cfg.IntConst{V: a.V >> uint(b.V)}, true
		}
	case cfg.StringConst:
		if b, ok := b.(cfg.StringConst); ok && op == token.ADD {
			return cfg.StringConst{V: a.V + b.V}, true
		}
	case cfg.BoolConst:
		b, ok := b.(cfg.BoolConst)
		if !ok {
			return nil, false
		}
		switch op {
		case token.LAND:
			return cfg.BoolConst{V: a.V && b.V}, true
		case token.LOR:
			return cfg.BoolConst{V: a.V || b.V}, true
		}
	}
	return nil, false
}

// compare evaluates a comparison between literals. The second result is
// false if the literals are not comparable.
func compare(op token.Token, a, b cfg.Constant) (bool, bool) {
	var cmp int
	switch a := a.(type) {
	case cfg.IntConst:
		b, ok := b.(cfg.IntConst)
		if !ok {
			return false, false
		}
		switch {
		case a.V < b.V:
			cmp = -1
		case a.V > b.V:
			cmp = 1
		}
	case cfg.StringConst:
		b, ok := b.(cfg.StringConst)
		if !ok {
			return false, false
		}
		cmp = strings.Compare(a.V, b.V)
	case cfg.BoolConst, cfg.NilConst:
		// Only equality is defined. nil compared with a non-nil literal is
		// unequal.
		switch op {
		case token.EQL:
			return a == b, true
		case token.NEQ:
			return a != b, true
		}
		return false, false
	default:
		return false, false
	}

	switch op {
	case token.EQL:
		return cmp == 0, true
	case token.NEQ:
		return cmp != 0, true
	case token.LSS:
		return cmp < 0, true
	case token.LEQ:
		return cmp <= 0, true
	case token.GTR:
		return cmp > 0, true
	case token.GEQ:
		return cmp >= 0, true
	}
	return false, false
}

// negate returns the comparison holding exactly when op does not.
func negate(op token.Token) token.Token {
	switch op {
	case token.EQL:
		return token.NEQ
	case token.NEQ:
		return token.EQL
	case token.LSS:
		return token.GEQ
	case token.GEQ:
		return token.LSS
	case token.GTR:
		return token.LEQ
	case token.LEQ:
		return token.GTR
	}
	panic("???")
}

// condition constrains s by the outcome of a branch. The result is false
// if the outcome is infeasible.
func (x *explorer) condition(s state.ProgramState, cond cfg.Condition, branch bool) (state.ProgramState, bool) {
	value := func(slot cfg.Slot) symbolic.Value {
		v, _ := s.ValueOf(slot)
		return v
	}

	switch c := cond.(type) {
	case cfg.IsNil:
		want := constraint.NotNull
		if branch {
			want = constraint.Null
		}
		return s.Constrain(value(c.X), want)

	case cfg.Truth:
		want := constraint.False
		if branch {
			want = constraint.True
		}
		return s.Constrain(value(c.X), want)

	case cfg.Compare:
		op := c.Op
		if !branch {
			op = negate(op)
		}
		return x.assume(s, op, value(c.X), value(c.Y))
	}
	panic("???")
}

// assume constrains s by the comparison a op b.
func (x *explorer) assume(s state.ProgramState, op token.Token, a, b symbolic.Value) (state.ProgramState, bool) {
	ac, aok := a.Constant()
	bc, bok := b.Constant()
	if aok && bok {
		if res, ok := compare(op, ac, bc); ok {
			return s, res
		}
	}

	switch op {
	case token.EQL:
		if a == b {
			return s, true
		}
		// Equal values share their facts.
		for _, d := range x.e.domains {
			if d.Kind() != constraint.Fact {
				continue
			}
			var ok bool
			if c, found := s.ConstraintOf(a, d); found {
				if s, ok = s.Constrain(b, c); !ok {
					return s, false
				}
			}
			if c, found := s.ConstraintOf(b, d); found {
				if s, ok = s.Constrain(a, c); !ok {
					return s, false
				}
			}
		}
		return s, true

	case token.NEQ:
		if a == b {
			return s, false
		}
		for _, d := range x.e.domains {
			if d.Kind() != constraint.Fact {
				continue
			}
			ca, afound := s.ConstraintOf(a, d)
			cb, bfound := s.ConstraintOf(b, d)
			switch {
			case afound && bfound:
				if ca == cb && ca.IsSingleton() {
					return s, false
				}
			case afound && ca.IsSingleton():
				if other, ok := d.Complement(ca); ok {
					if s, ok = s.Constrain(b, other); !ok {
						return s, false
					}
				}
			case bfound && cb.IsSingleton():
				if other, ok := d.Complement(cb); ok {
					if s, ok = s.Constrain(a, other); !ok {
						return s, false
					}
				}
			}
		}
		return s, true

	case token.LSS, token.GTR:
		return s, a != b
	}
	return s, true
}
