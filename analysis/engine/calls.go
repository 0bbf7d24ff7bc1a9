package engine

import (
	"context"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
)

// resolve returns the behavior applied at a call. Calls that cannot be
// explored, or whose exploration did not complete, get the unknown
// behavior.
func (x *explorer) resolve(call cfg.Call) *behavior.MethodBehavior {
	unknown := func(m cfg.MethodID, name string) *behavior.MethodBehavior {
		return behavior.Unknown(m, name, len(call.Results))
	}

	switch t := call.Target.(type) {
	case cfg.External:
		if b, ok := x.e.dispatch.Model(t.Name, len(call.Results)); ok {
			return b
		}
		return unknown(cfg.MethodID(-1), t.Name)

	case cfg.Internal:
		callee := x.e.prog.Method(t.Method)
		switch {
		case callee == nil:
			return unknown(t.Method, t.String())
		case x.e.opaque(t.Method) || x.e.recursive(x.method.ID, t.Method):
			return unknown(t.Method, callee.Name)
		case x.depth+1 > x.e.opts.CallDepth:
			x.truncated = true
			return unknown(t.Method, callee.Name)
		}

		explored := false
		left := x.e.opts.CallDepth - (x.depth + 1)
		b, err := x.e.cache.Resolve(x.gov.Context(), t.Method, left, func(ctx context.Context) (*behavior.MethodBehavior, bool, error) {
			explored = true
			gov := x.gov.Child(x.e.opts.Budget)
			res := x.e.explore(gov, callee, x.depth+1, false)
			if res.Outcome == Cancelled {
				return nil, false, ctx.Err()
			}
			return res.Behavior, !gov.Inherited(), nil
		})
		if explored {
			x.metrics.cacheMiss()
		} else {
			x.metrics.cacheHit()
		}
		if err != nil {
			x.logf("%s: %v", callee.Name, err)
			return unknown(t.Method, callee.Name)
		}

		if b.Truncated {
			x.truncated = true
		}
		if !b.Complete {
			return unknown(t.Method, callee.Name)
		}
		return b
	}

	return unknown(cfg.MethodID(-1), call.Target.String())
}
