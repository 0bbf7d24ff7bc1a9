package checks

import (
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
)

// ResourceLeak reports resources that are still open when the method
// returns, or that merged states show open on some path. Resources held by
// parameters or returned to the caller are the caller's business.
type ResourceLeak struct{}

func (ResourceLeak) Rule() string                  { return RuleResourceLeak }
func (ResourceLeak) Domains() []*constraint.Domain { return []*constraint.Domain{Resource} }

func (ResourceLeak) MethodExit(ctx *check.Context) check.Outcome {
	if ctx.Exceptional {
		return check.Outcome{}
	}

	returned := make(map[symbolic.Value]bool, len(ctx.Returns))
	for _, v := range ctx.Returns {
		returned[v] = true
	}

	var out check.Outcome
	for _, v := range ctx.State.ValuesWith(Resource) {
		if returned[v] || v.Kind() == symbolic.Param {
			continue
		}
		how := ""
		switch {
		case ctx.Is(v, Open):
		case ctx.Is(v, MaybeOpen):
			how = " on every path"
		default:
			continue
		}
		// Report where the resource was acquired.
		if at, ok := v.Point(); ok {
			out = out.ReportAt(at, "resource acquired here is not released"+how)
		} else {
			out = out.Report("resource %v is not released%s", v, how)
		}
	}
	return out
}
