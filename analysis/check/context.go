package check

import (
	"fmt"
	"go/token"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
)

// Context is what a detector sees of the exploration. Only the fields
// relevant to the event are set.
type Context struct {
	Program *cfg.Program
	Method  *cfg.Method
	Point   defs.ProgramPoint
	State   state.ProgramState

	// Instr is the current instruction of instruction events.
	Instr cfg.Instruction
	// Callee is the behavior resolved for call instructions.
	Callee *behavior.MethodBehavior

	// Term is the terminator of condition and exit events.
	Term cfg.Terminator
	Cond cfg.Condition
	// Branch is the outcome of Cond being observed.
	Branch bool

	// Exceptional is set on exceptional method exits.
	Exceptional bool
	// Returns holds the returned values on normal exits.
	Returns []symbolic.Value

	// Incoming is the state merged into State on merge events.
	Incoming state.ProgramState
}

// ValueOf returns the value of a slot. The engine binds every slot read by
// the current instruction before notifying detectors, so the result is only
// invalid for slots that are not read.
func (c *Context) ValueOf(s cfg.Slot) symbolic.Value {
	v, _ := c.State.ValueOf(s)
	return v
}

// ConstraintOf returns the constraint of v in domain d.
func (c *Context) ConstraintOf(v symbolic.Value, d *constraint.Domain) (constraint.Constraint, bool) {
	return c.State.ConstraintOf(v, d)
}

// Is checks whether v carries the constraint.
func (c *Context) Is(v symbolic.Value, want constraint.Constraint) bool {
	got, ok := c.State.ConstraintOf(v, want.Domain())
	return ok && got == want
}

// SlotName is the source name of a slot, for messages.
func (c *Context) SlotName(s cfg.Slot) string {
	return c.Program.SlotName(c.Method.ID, s)
}

// SlotType is the resolved type of a slot.
func (c *Context) SlotType(s cfg.Slot) cfg.Type {
	return c.Program.SlotType(c.Method.ID, s)
}

// Position resolves the source position of the current point.
func (c *Context) Position() token.Position {
	return c.Program.Position(c.Point.Method, c.Point.Block, c.Point.Index)
}

type report struct {
	// A point in block NoBlock stands for the current point.
	point    defs.ProgramPoint
	template string
	args     []string
}

// Outcome is the result of a detector callback. The zero Outcome continues
// with the unchanged state.
type Outcome struct {
	state   state.ProgramState
	set     bool
	pruned  bool
	reports []report
}

// Continue proceeds with s.
func Continue(s state.ProgramState) Outcome {
	return Outcome{state: s, set: true}
}

// Prune drops the path. Findings reported on the outcome are kept.
func Prune() Outcome {
	return Outcome{pruned: true}
}

// Report adds a finding at the current point.
func (o Outcome) Report(template string, args ...interface{}) Outcome {
	return o.ReportAt(defs.ProgramPoint{Block: cfg.NoBlock}, template, args...)
}

// ReportAt adds a finding at another point of the same method, such as the
// point where a leaked resource was acquired.
func (o Outcome) ReportAt(point defs.ProgramPoint, template string, args ...interface{}) Outcome {
	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = fmt.Sprint(a)
	}
	o.reports = append(o.reports[:len(o.reports):len(o.reports)], report{point, template, strs})
	return o
}

func (o Outcome) Pruned() bool {
	return o.pruned
}
