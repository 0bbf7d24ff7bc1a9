package checks

import (
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
)

// NullDereference reports dereferences of nil pointers, method calls on
// nil interfaces and nil arguments to methods that dereference them.
type NullDereference struct{}

func (NullDereference) Rule() string                  { return RuleNullDereference }
func (NullDereference) Domains() []*constraint.Domain { return nil }

func (d NullDereference) PreInstruction(ctx *check.Context) check.Outcome {
	switch i := ctx.Instr.(type) {
	case cfg.Load:
		return d.dereference(ctx, i.Ptr)
	case cfg.Store:
		return d.dereference(ctx, i.Ptr)
	case cfg.Call:
		return d.call(ctx, i)
	}
	return check.Outcome{}
}

// dereference stops paths on which ptr is nil. On the others ptr is not nil
// afterwards.
func (NullDereference) dereference(ctx *check.Context, ptr cfg.Slot) check.Outcome {
	v := ctx.ValueOf(ptr)
	if ctx.Is(v, constraint.Null) {
		return check.Prune().Report("nil dereference of %s", ctx.SlotName(ptr))
	}
	s, ok := ctx.State.Constrain(v, constraint.NotNull)
	if !ok {
		return check.Prune()
	}
	return check.Continue(s)
}

func (d NullDereference) call(ctx *check.Context, i cfg.Call) check.Outcome {
	if recv, ok := receiver(i); ok && i.Receiver && ctx.SlotType(recv).Kind == cfg.KindInterface {
		if _, internal := i.Target.(cfg.Internal); !internal {
			return d.dereference(ctx, recv)
		}
	}

	callee := ctx.Callee
	if callee == nil || callee.Unknown {
		return check.Outcome{}
	}
	for idx, arg := range i.Args {
		if has(ctx, arg, constraint.Null) && callee.Requires(idx, constraint.NotNull) {
			return check.Prune().Report("nil passed as %s to %s, which dereferences it", ctx.SlotName(arg), callee.Name)
		}
	}
	return check.Outcome{}
}
