package engine

import (
	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
)

// derive summarizes the exits reached from the entry. Every exit yields a
// path recording what it leaves on the parameters and what it returns.
func (x *explorer) derive(outcome Outcome) *behavior.MethodBehavior {
	b := &behavior.MethodBehavior{
		Method:    x.method.ID,
		Name:      x.method.Name,
		Complete:  outcome == Complete,
		Truncated: x.truncated,
	}

	for _, n := range x.graph.Exits() {
		exit := n.Exit()
		s := exit.State

		params := make(map[int]constraint.Set, len(x.method.Params))
		for i := range x.method.Params {
			params[i] = s.ConstraintsOf(x.store.Param(i))
		}

		var results []behavior.ResultFact
		if exit.Kind == NormalExit {
			results = make([]behavior.ResultFact, len(exit.Returns))
			for j, v := range exit.Returns {
				results[j] = x.result(v, exit)
			}
		}

		path := behavior.NewPath(params, results...)
		path.Exceptional = exit.Kind == ExceptionalExit
		b.Paths = append(b.Paths, path)
	}

	return b.Normalize()
}

func (x *explorer) result(v symbolic.Value, exit *Exit) behavior.ResultFact {
	if idx, ok := v.ParamIndex(); ok {
		return behavior.ResultFact{Param: idx}
	}
	if lit, ok := v.Constant(); ok {
		return behavior.ResultFact{Param: behavior.NoParam, Const: lit}
	}
	return behavior.ResultFact{
		Param:       behavior.NoParam,
		Constraints: exit.State.Describe(v, x.e.domains),
	}
}
