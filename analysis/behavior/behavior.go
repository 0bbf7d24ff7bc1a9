// Package behavior summarizes methods for their callers.
package behavior

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
	"github.com/cs-au-dk/symbex/utils"
	i "github.com/cs-au-dk/symbex/utils/indenter"

	"github.com/benbjohnson/immutable"
)

// NoParam marks results that are not aliases of a parameter.
const NoParam = -1

// ResultFact describes a returned value: an alias of a parameter, a literal,
// or a new value carrying some constraints.
type ResultFact struct {
	Param       int
	Const       cfg.Constant
	Constraints constraint.Set
}

// Fresh describes a result about which only the given constraints are known.
func Fresh(cs ...constraint.Constraint) ResultFact {
	return ResultFact{Param: NoParam, Constraints: constraint.Of(cs...)}
}

func (r ResultFact) String() string {
	switch {
	case r.Param != NoParam:
		return fmt.Sprintf("p%d", r.Param)
	case r.Const != nil:
		return r.Const.String()
	}
	return r.Constraints.String()
}

// ExitPath is one way of leaving a method: the constraints it leaves on the
// parameters and what it returns.
type ExitPath struct {
	Exceptional bool
	// Params maps parameter indices to the constraints the path adds.
	Params  *immutable.Map[int, constraint.Set]
	Results []ResultFact
}

type indexHasher struct{}

func (indexHasher) Hash(i int) uint32   { return utils.HashInt(int64(i)) }
func (indexHasher) Equal(a, b int) bool { return a == b }

// NewPath builds a normal exit path.
func NewPath(params map[int]constraint.Set, results ...ResultFact) ExitPath {
	mp := immutable.NewMapBuilder[int, constraint.Set](indexHasher{})
	for idx, cs := range params {
		if !cs.IsEmpty() {
			mp.Set(idx, cs)
		}
	}
	return ExitPath{Params: mp.Map(), Results: results}
}

// ParamConstraints returns the constraints the path adds to parameter i.
func (p ExitPath) ParamConstraints(i int) constraint.Set {
	if p.Params == nil {
		return constraint.Set{}
	}
	cs, _ := p.Params.Get(i)
	return cs
}

func (p ExitPath) String() string {
	var params []int
	if p.Params != nil {
		for it := p.Params.Iterator(); !it.Done(); {
			idx, _, _ := it.Next()
			params = append(params, idx)
		}
	}
	sort.Ints(params)

	strs := make([]string, 0, len(params))
	for _, idx := range params {
		strs = append(strs, fmt.Sprintf("p%d: %s", idx, p.ParamConstraints(idx)))
	}
	res := make([]string, len(p.Results))
	for idx, r := range p.Results {
		res[idx] = r.String()
	}

	kind := "return"
	if p.Exceptional {
		kind = "throw"
	}
	return fmt.Sprintf("%s (%s) [%s]", kind, strings.Join(res, ", "), strings.Join(strs, ", "))
}

// MethodBehavior is the summary of a method as seen by callers.
type MethodBehavior struct {
	Method cfg.MethodID
	Name   string
	Paths  []ExitPath
	// Complete is set if exploration reached its fixed point.
	Complete bool
	// Unknown behaviors assume nothing about the callee.
	Unknown bool
	// Truncated is set if some call below the method hit the depth bound.
	Truncated bool
}

// Unknown is the behavior of a method about which nothing is known: it
// returns unconstrained values and leaves its arguments alone.
func Unknown(m cfg.MethodID, name string, results int) *MethodBehavior {
	res := make([]ResultFact, results)
	for idx := range res {
		res[idx] = Fresh()
	}
	return &MethodBehavior{
		Method:   m,
		Name:     name,
		Paths:    []ExitPath{NewPath(nil, res...)},
		Complete: true,
		Unknown:  true,
	}
}

// Normalize sorts and deduplicates the paths.
func (b *MethodBehavior) Normalize() *MethodBehavior {
	seen := make(map[string]bool)
	paths := b.Paths[:0:0]
	for _, p := range b.Paths {
		if key := p.String(); !seen[key] {
			seen[key] = true
			paths = append(paths, p)
		}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].String() < paths[j].String()
	})
	b.Paths = paths
	return b
}

// Normal lists the paths returning normally.
func (b *MethodBehavior) Normal() (res []ExitPath) {
	for _, p := range b.Paths {
		if !p.Exceptional {
			res = append(res, p)
		}
	}
	return
}

// Requires is true if every normal path leaves c on the parameter, meaning
// that calls violating c cannot return normally.
func (b *MethodBehavior) Requires(param int, c constraint.Constraint) bool {
	normal := b.Normal()
	if b.Unknown || len(normal) == 0 {
		return false
	}
	for _, p := range normal {
		if pc, ok := p.ParamConstraints(param).Get(c.Domain()); !ok || pc != c {
			return false
		}
	}
	return true
}

func (b *MethodBehavior) String() string {
	var flags []string
	if b.Unknown {
		flags = append(flags, "unknown")
	}
	if !b.Complete {
		flags = append(flags, "incomplete")
	}
	if b.Truncated {
		flags = append(flags, "truncated")
	}
	header := b.Name
	if len(flags) > 0 {
		header += " (" + strings.Join(flags, ", ") + ")"
	}

	paths := make([]string, len(b.Paths))
	for idx, p := range b.Paths {
		paths[idx] = p.String()
	}
	return i.Indenter().Start(header + ":").NestStrings(paths...).End("")
}

// Instance is a path of a behavior applied at a call site.
type Instance struct {
	State       state.ProgramState
	Exceptional bool
	Results     []symbolic.Value
}

// Apply instantiates every path of the behavior that is feasible in s.
// Results that are neither aliases nor literals become the site values of
// the call at point, with their previous constraints cleared.
func (b *MethodBehavior) Apply(
	s state.ProgramState,
	args []symbolic.Value,
	store *symbolic.Store,
	point defs.ProgramPoint,
) (res []Instance) {
paths:
	for _, p := range b.Paths {
		st := s
		for idx, arg := range args {
			var ok bool
			if st, ok = constrain(st, arg, p.ParamConstraints(idx)); !ok {
				continue paths
			}
		}

		inst := Instance{Exceptional: p.Exceptional}
		if !p.Exceptional {
			inst.Results = make([]symbolic.Value, len(p.Results))
			for j, r := range p.Results {
				var v symbolic.Value
				switch {
				case r.Param != NoParam && r.Param < len(args):
					v = args[r.Param]
				case r.Const != nil:
					v = store.ValueOf(r.Const)
				default:
					v = store.At(point, j)
					st = st.Clear(v)
				}

				var ok bool
				if st, ok = constrain(st, v, r.Constraints); !ok {
					continue paths
				}
				inst.Results[j] = v
			}
		}
		inst.State = st
		res = append(res, inst)
	}
	return
}

// constrain applies facts by meet and typestates by transition.
func constrain(s state.ProgramState, v symbolic.Value, cs constraint.Set) (state.ProgramState, bool) {
	ok := true
	cs.ForEach(func(c constraint.Constraint) {
		if !ok {
			return
		}
		if c.Domain().Kind() == constraint.Typestate {
			s = s.Transition(v, c)
		} else {
			s, ok = s.Constrain(v, c)
		}
	})
	return s, ok
}
