// Package check defines how detectors observe and transform the states of
// the exploded graph.
package check

import (
	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/constraint"
)

// Detector is the common part of every detector. A detector additionally
// implements one or more of the checker interfaces below to subscribe to
// events.
type Detector interface {
	// Rule is the stable identifier stamped on findings.
	Rule() string
	// Domains lists the constraint domains owned by the detector.
	Domains() []*constraint.Domain
}

type (
	// MethodEntryChecker observes the initial state of a method.
	MethodEntryChecker interface {
		Detector
		MethodEntry(ctx *Context) Outcome
	}

	// PreInstructionChecker observes the state before an instruction.
	// For calls, ctx.Callee holds the resolved behavior of the callee.
	PreInstructionChecker interface {
		Detector
		PreInstruction(ctx *Context) Outcome
	}

	// PostInstructionChecker observes the state after an instruction. For
	// calls, it is notified once per instantiated path of the callee.
	PostInstructionChecker interface {
		Detector
		PostInstruction(ctx *Context) Outcome
	}

	// ConditionChecker observes each outcome of a branch, after the engine
	// has constrained the state accordingly.
	ConditionChecker interface {
		Detector
		Condition(ctx *Context) Outcome
	}

	// MethodExitChecker observes states leaving the method, normally or
	// exceptionally.
	MethodExitChecker interface {
		Detector
		MethodExit(ctx *Context) Outcome
	}

	// MergeChecker observes the result of merging ctx.Incoming into the
	// state stored at a join point.
	MergeChecker interface {
		Detector
		Merge(ctx *Context) Outcome
	}

	// Modeler supplies behaviors for external targets, which have no body.
	Modeler interface {
		Detector
		Model(name string, results int) (*behavior.MethodBehavior, bool)
	}
)

type Event uint8

const (
	OnMethodEntry Event = iota
	OnPreInstruction
	OnPostInstruction
	OnCondition
	OnMethodExit
	OnMerge
)

var eventNames = [...]string{
	OnMethodEntry:     "method-entry",
	OnPreInstruction:  "pre-instruction",
	OnPostInstruction: "post-instruction",
	OnCondition:       "condition",
	OnMethodExit:      "method-exit",
	OnMerge:           "merge",
}

func (e Event) String() string {
	return eventNames[e]
}

// handler returns the callback of d for an event, or nil if d does not
// subscribe to it.
func handler(d Detector, e Event) func(*Context) Outcome {
	switch e {
	case OnMethodEntry:
		if c, ok := d.(MethodEntryChecker); ok {
			return c.MethodEntry
		}
	case OnPreInstruction:
		if c, ok := d.(PreInstructionChecker); ok {
			return c.PreInstruction
		}
	case OnPostInstruction:
		if c, ok := d.(PostInstructionChecker); ok {
			return c.PostInstruction
		}
	case OnCondition:
		if c, ok := d.(ConditionChecker); ok {
			return c.Condition
		}
	case OnMethodExit:
		if c, ok := d.(MethodExitChecker); ok {
			return c.MethodExit
		}
	case OnMerge:
		if c, ok := d.(MergeChecker); ok {
			return c.Merge
		}
	}
	return nil
}
