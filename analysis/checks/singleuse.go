package checks

import (
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
)

// Stream marks receivers of single-use operations that were used up.
var Stream = constraint.NewDomain("stream", constraint.Typestate, "CONSUMED")

var Used = Stream.Constraint("CONSUMED")

// SingleUse reports single-use operations, such as running a command,
// applied to a receiver that was already used.
type SingleUse struct {
	ops map[string]bool
}

func NewSingleUse(ops []string) *SingleUse {
	return &SingleUse{nameSet(ops)}
}

func (*SingleUse) Rule() string                  { return RuleSingleUse }
func (*SingleUse) Domains() []*constraint.Domain { return []*constraint.Domain{Stream} }

func (u *SingleUse) PreInstruction(ctx *check.Context) check.Outcome {
	call, ok := ctx.Instr.(cfg.Call)
	if !ok {
		return check.Outcome{}
	}
	name, _ := externalName(call)
	recv, ok := receiver(call)
	if !ok || !u.ops[name] {
		return check.Outcome{}
	}

	v := ctx.ValueOf(recv)
	if ctx.Is(v, Used) {
		return check.Outcome{}.Report("%s has already been used by a previous call", ctx.SlotName(recv))
	}
	return check.Continue(ctx.State.Transition(v, Used))
}
