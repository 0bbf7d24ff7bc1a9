package checks

import (
	"go/token"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
)

// Zero tracks integers known to be zero. Comparisons against literals
// refine it through the intrinsic tags of the literals.
var Zero = constraint.NewDomain("zero", constraint.Fact, "ZERO", "NONZERO").
	WithSingleton("ZERO").
	WithIntrinsic(func(c cfg.Constant) string {
		if i, ok := c.(cfg.IntConst); ok {
			if i.V == 0 {
				return "ZERO"
			}
			return "NONZERO"
		}
		return ""
	})

var (
	IsZero  = Zero.Constraint("ZERO")
	NonZero = Zero.Constraint("NONZERO")
)

// DivisionByZero reports integer divisions and remainders by zero.
type DivisionByZero struct{}

func (DivisionByZero) Rule() string                  { return RuleDivisionByZero }
func (DivisionByZero) Domains() []*constraint.Domain { return []*constraint.Domain{Zero} }

func (DivisionByZero) PreInstruction(ctx *check.Context) check.Outcome {
	op, ok := ctx.Instr.(cfg.BinOp)
	if !ok || (op.Op != token.QUO && op.Op != token.REM) {
		return check.Outcome{}
	}
	if k := ctx.SlotType(op.Y).Kind; k != cfg.KindInt && k != cfg.KindUnknown {
		return check.Outcome{}
	}

	v := ctx.ValueOf(op.Y)
	if ctx.Is(v, IsZero) {
		return check.Prune().Report("%s is zero", ctx.SlotName(op.Y))
	}
	s, ok := ctx.State.Constrain(v, NonZero)
	if !ok {
		return check.Prune()
	}
	return check.Continue(s)
}
