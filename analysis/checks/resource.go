package checks

import (
	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/utils"
)

// Resource tracks the lifecycle of values that must be released. Values
// handed to code that is not analyzed are CONSUMED: someone else is
// responsible for them. A merged state holds MAYBE_OPEN resources that are
// still open on some incoming path.
var Resource = constraint.NewDomain("resource", constraint.Typestate, "OPEN", "CLOSED", "CONSUMED", "MAYBE_OPEN").
	WithJoin("OPEN", "CLOSED", "MAYBE_OPEN").
	WithJoin("OPEN", "CONSUMED", "MAYBE_OPEN").
	WithJoin("OPEN", "MAYBE_OPEN", "MAYBE_OPEN").
	WithJoin("CLOSED", "MAYBE_OPEN", "MAYBE_OPEN").
	WithJoin("CONSUMED", "MAYBE_OPEN", "MAYBE_OPEN")

var (
	Open      = Resource.Constraint("OPEN")
	Closed    = Resource.Constraint("CLOSED")
	Consumed  = Resource.Constraint("CONSUMED")
	MaybeOpen = Resource.Constraint("MAYBE_OPEN")
)

// ResourceLifecycle models the configured openers and closers and reports
// resources opened or closed twice.
type ResourceLifecycle struct {
	openers         map[string]bool
	receiverOpeners map[string]bool
	closers         map[string]bool
}

func NewResourceLifecycle(table utils.ResourceTable) *ResourceLifecycle {
	return &ResourceLifecycle{
		openers:         nameSet(table.Openers),
		receiverOpeners: nameSet(table.ReceiverOpeners),
		closers:         nameSet(table.Closers),
	}
}

func (*ResourceLifecycle) Rule() string                  { return RuleDoubleOpen }
func (*ResourceLifecycle) Domains() []*constraint.Domain { return []*constraint.Domain{Resource} }

// Model describes openers returning (resource, error) as either an open,
// non-nil resource with a nil error or a nil resource with an error.
func (r *ResourceLifecycle) Model(name string, results int) (*behavior.MethodBehavior, bool) {
	switch {
	case r.openers[name]:
		if results == 0 {
			return model(name, behavior.NewPath(nil)), true
		}
		ok := fresh(results)
		ok[0] = behavior.Fresh(constraint.NotNull, Open)
		if results == 1 {
			return model(name, behavior.NewPath(nil, ok...)), true
		}
		ok[results-1] = behavior.Fresh(constraint.Null)

		failed := fresh(results)
		failed[0] = behavior.Fresh(constraint.Null)
		failed[results-1] = behavior.Fresh(constraint.NotNull)
		return model(name, behavior.NewPath(nil, ok...), behavior.NewPath(nil, failed...)), true

	case r.receiverOpeners[name]:
		return model(name, behavior.NewPath(map[int]constraint.Set{0: constraint.Of(Open)}, fresh(results)...)), true
	case r.closers[name]:
		return model(name, behavior.NewPath(map[int]constraint.Set{0: constraint.Of(Closed)}, fresh(results)...)), true
	}
	return nil, false
}

func (r *ResourceLifecycle) PreInstruction(ctx *check.Context) check.Outcome {
	switch i := ctx.Instr.(type) {
	case cfg.Store:
		return r.consume(ctx, i.Src)
	case cfg.Call:
		name, _ := externalName(i)
		recv, hasRecv := receiver(i)
		switch {
		case hasRecv && r.receiverOpeners[name] && has(ctx, recv, Open):
			return check.Outcome{}.Report("%s is acquired again before being released", ctx.SlotName(recv))
		case hasRecv && r.closers[name] && has(ctx, recv, Closed):
			return check.Outcome{}.Report("%s is released twice", ctx.SlotName(recv))
		case ctx.Callee != nil && ctx.Callee.Unknown:
			return r.consume(ctx, i.Args...)
		}
	}
	return check.Outcome{}
}

// consume hands the open resources in slots over to someone else.
func (r *ResourceLifecycle) consume(ctx *check.Context, slots ...cfg.Slot) check.Outcome {
	s, changed := ctx.State, false
	for _, slot := range slots {
		v := ctx.ValueOf(slot)
		if ctx.Is(v, Open) || ctx.Is(v, MaybeOpen) {
			s = s.Transition(v, Consumed)
			changed = true
		}
	}
	if !changed {
		return check.Outcome{}
	}
	return check.Continue(s)
}
