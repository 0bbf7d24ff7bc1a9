package engine

import (
	"context"
	"time"
)

// Outcome tells how the exploration of a method ended.
type Outcome uint8

const (
	Complete Outcome = iota
	BudgetExceeded
	Timeout
	Cancelled
)

var outcomeNames = [...]string{
	Complete:       "complete",
	BudgetExceeded: "budget exceeded",
	Timeout:        "timeout",
	Cancelled:      "cancelled",
}

func (o Outcome) String() string {
	return outcomeNames[o]
}

// Governor bounds the exploration of one method and the callees it
// explores. It is polled before every node expansion and is confined to the
// exploring goroutine.
type Governor struct {
	ctx context.Context

	// Steps taken by the root governor and all of its children.
	total    *int
	start    int
	limit    int
	deadline time.Time
	outcome  Outcome

	// Set if the step limit or deadline is the parent's rather than the
	// governor's own.
	inheritedSteps, inheritedDeadline bool
}

func NewGovernor(ctx context.Context, budget Budget) *Governor {
	g := &Governor{ctx: ctx, total: new(int), limit: budget.Steps}
	if budget.Timeout > 0 {
		g.deadline = time.Now().Add(budget.Timeout)
	}
	return g
}

// Child governs the exploration of a callee. Its steps are charged to g,
// and it never takes more steps or time than g has left.
func (g *Governor) Child(budget Budget) *Governor {
	c := &Governor{
		ctx:   g.ctx,
		total: g.total,
		start: *g.total,
		limit: *g.total + budget.Steps,
	}
	if g.limit < c.limit {
		c.limit = g.limit
		c.inheritedSteps = true
	}
	if budget.Timeout > 0 {
		c.deadline = time.Now().Add(budget.Timeout)
	}
	if !g.deadline.IsZero() && (c.deadline.IsZero() || g.deadline.Before(c.deadline)) {
		c.deadline = g.deadline
		c.inheritedDeadline = true
	}
	return c
}

func (g *Governor) Context() context.Context {
	return g.ctx
}

// Step accounts for one expansion. It returns false once any budget is
// exhausted or the run is cancelled, and keeps returning false afterwards.
func (g *Governor) Step() bool {
	if g.outcome != Complete {
		return false
	}
	switch {
	case g.ctx.Err() != nil:
		g.outcome = Cancelled
	case *g.total >= g.limit:
		g.outcome = BudgetExceeded
	case !g.deadline.IsZero() && time.Now().After(g.deadline):
		g.outcome = Timeout
	default:
		*g.total++
		return true
	}
	return false
}

// Steps is the number of expansions made under g, including those of its
// children.
func (g *Governor) Steps() int {
	return *g.total - g.start
}

func (g *Governor) Outcome() Outcome {
	return g.outcome
}

// Inherited reports whether exploration stopped at a limit of the parent.
// Such an outcome says nothing about the callee itself.
func (g *Governor) Inherited() bool {
	switch g.outcome {
	case BudgetExceeded:
		return g.inheritedSteps
	case Timeout:
		return g.inheritedDeadline
	}
	return false
}
