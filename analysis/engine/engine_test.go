package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/token"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
)

// deref reports dereferences of nil and remembers that dereferenced
// pointers are not nil.
type deref struct{}

func (deref) Rule() string                  { return "deref" }
func (deref) Domains() []*constraint.Domain { return nil }
func (deref) PreInstruction(ctx *check.Context) check.Outcome {
	var ptr cfg.Slot
	switch i := ctx.Instr.(type) {
	case cfg.Load:
		ptr = i.Ptr
	case cfg.Store:
		ptr = i.Ptr
	default:
		return check.Outcome{}
	}

	v := ctx.ValueOf(ptr)
	if ctx.Is(v, constraint.Null) {
		return check.Prune().Report("%s is nil", ctx.SlotName(ptr))
	}
	s, _ := ctx.State.Constrain(v, constraint.NotNull)
	return check.Continue(s)
}

// boom panics on every instruction.
type boom struct{}

func (boom) Rule() string                  { return "boom" }
func (boom) Domains() []*constraint.Domain { return nil }
func (boom) PreInstruction(*check.Context) check.Outcome {
	panic("boom")
}

// unbound reports returned slots that have no value at the exit.
type unbound struct{}

func (unbound) Rule() string                  { return "unbound" }
func (unbound) Domains() []*constraint.Domain { return nil }
func (unbound) MethodExit(ctx *check.Context) check.Outcome {
	var out check.Outcome
	if ret, ok := ctx.Term.(cfg.Return); ok {
		for _, slot := range ret.Values {
			if _, ok := ctx.State.ValueOf(slot); !ok {
				out = out.Report("%s is unbound", ctx.SlotName(slot))
			}
		}
	}
	return out
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Budget.Timeout = 0
	opts.KeepGraph = true
	return opts
}

func newEngine(t *testing.T, prog *cfg.Program, opts Options, ds ...check.Detector) *Engine {
	t.Helper()
	d, err := check.NewDispatcher(ds...)
	if err != nil {
		t.Fatal(err)
	}
	return New(prog, opts, d, behavior.NewCache())
}

func build(t *testing.T, pb *cfg.ProgramBuilder) *cfg.Program {
	t.Helper()
	prog, err := pb.Build()
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

func analyze(t *testing.T, e *Engine, m cfg.MethodID) *Result {
	t.Helper()
	res, err := e.Analyze(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

// guarded builds
//
//	func guard(p *T) {
//		if p == nil { [*p] } else { [*p] }
//	}
//
// with the dereferences present as requested.
func guarded(nilBranch, otherBranch, compare bool) *cfg.ProgramBuilder {
	pb := cfg.NewProgram(token.NewFileSet())
	ptr := pb.Kind(cfg.KindPointer)
	mb := pb.Unit("pkg").Method("pkg.guard")
	p := mb.Param("p", ptr)
	x := mb.Local("x", pb.Kind(cfg.KindInt))

	entry, then, els, done := mb.Block(), mb.Block(), mb.Block(), mb.Block()
	if compare {
		null := mb.Local("null", ptr)
		entry.Const(null, cfg.NilConst{})
		entry.If(cfg.Compare{Op: token.EQL, X: p, Y: null}, then, els)
	} else {
		entry.If(cfg.IsNil{X: p}, then, els)
	}
	if nilBranch {
		then.Load(x, p, "")
	}
	then.Jump(done)
	if otherBranch {
		els.Load(x, p, "")
	}
	els.Jump(done)
	done.Return()
	return pb
}

func TestNullGuard(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name                   string
		nilBranch, otherBranch bool
		expected               int
	}{
		{"guarded", false, true, 0},
		{"unguarded", true, false, 1},
		{"both", true, true, 1},
	} {
		test := test
		for _, compare := range []bool{false, true} {
			compare := compare
			t.Run(test.name, func(t *testing.T) {
				t.Parallel()
				prog := build(t, guarded(test.nilBranch, test.otherBranch, compare))
				res := analyze(t, newEngine(t, prog, testOptions(), deref{}), 0)

				if res.Findings.Len() != test.expected {
					t.Errorf("expected %d findings, got %v", test.expected, res.Findings)
				}
				if res.Outcome != Complete {
					t.Errorf("expected a complete exploration, got %v", res.Outcome)
				}
			})
		}
	}
}

// counter builds
//
//	func count(n int) int {
//		i := 0
//		for i < n { i = i + 1 }
//		return i
//	}
//
// where n is the literal bound if bound >= 0.
func counter(bound int64) *cfg.ProgramBuilder {
	pb := cfg.NewProgram(token.NewFileSet())
	integer := pb.Kind(cfg.KindInt)
	mb := pb.Unit("pkg").Method("pkg.count").Results(1)
	n := mb.Param("n", integer)
	i := mb.Local("i", integer)
	one := mb.Local("one", integer)

	entry, head, body, exit := mb.Block(), mb.Block(), mb.Block(), mb.Block()
	entry.Const(i, cfg.IntConst{V: 0}).Const(one, cfg.IntConst{V: 1})
	if bound >= 0 {
		entry.Const(n, cfg.IntConst{V: bound})
	}
	entry.Jump(head)
	head.If(cfg.Compare{Op: token.LSS, X: i, Y: n}, body, exit)
	body.BinOp(i, token.ADD, i, one).Jump(head)
	exit.Return(i)
	return pb
}

func TestLoops(t *testing.T) {
	t.Parallel()

	t.Run("constant", func(t *testing.T) {
		t.Parallel()
		prog := build(t, counter(5))
		res := analyze(t, newEngine(t, prog, testOptions()), 0)

		if res.Outcome != Complete {
			t.Fatalf("expected a complete exploration, got %v", res.Outcome)
		}
		paths := res.Behavior.Normal()
		if len(paths) != 1 {
			t.Fatalf("expected a single exit, got %v", res.Behavior)
		}
		if c := paths[0].Results[0].Const; c != (cfg.IntConst{V: 5}) {
			t.Errorf("expected the loop to be fully unrolled, got %v", res.Behavior)
		}
	})

	for _, bound := range []int64{-1, 8, 1000} {
		bound := bound
		t.Run("converges", func(t *testing.T) {
			t.Parallel()
			prog := build(t, counter(bound))
			res := analyze(t, newEngine(t, prog, testOptions()), 0)

			if res.Outcome != Complete {
				t.Fatalf("bound %d: expected convergence, got %v", bound, res.Outcome)
			}
			if len(res.Behavior.Normal()) == 0 {
				t.Errorf("bound %d: expected the exit to be reached", bound)
			}
		})
	}

	t.Run("infinite", func(t *testing.T) {
		t.Parallel()
		pb := cfg.NewProgram(nil)
		mb := pb.Unit("pkg").Method("pkg.spin")
		x := mb.Local("x", pb.Kind(cfg.KindInt))
		entry, loop := mb.Block(), mb.Block()
		entry.Jump(loop)
		loop.Havoc(x).Jump(loop)

		res := analyze(t, newEngine(t, build(t, pb), testOptions()), 0)
		if res.Outcome != Complete || len(res.Behavior.Paths) != 0 {
			t.Errorf("expected convergence without exits, got %v %v", res.Outcome, res.Behavior)
		}
	})
}

// calls builds a caller invoking the identity method twice.
func calls() (*cfg.ProgramBuilder, cfg.MethodID, cfg.MethodID) {
	pb := cfg.NewProgram(nil)
	ptr := pb.Kind(cfg.KindPointer)
	unit := pb.Unit("pkg")

	id := unit.Method("pkg.id").Results(1)
	p := id.Param("p", ptr)
	id.Block().Return(p)

	twice := unit.Method("pkg.twice").Results(1)
	a := twice.Param("a", ptr)
	r1, r2 := twice.Local("r1", ptr), twice.Local("r2", ptr)
	twice.Block().
		Call([]cfg.Slot{r1}, cfg.Internal{Method: id.ID()}, a).
		Call([]cfg.Slot{r2}, cfg.Internal{Method: id.ID()}, r1).
		Return(r2)

	return pb, id.ID(), twice.ID()
}

func TestBehaviorReuse(t *testing.T) {
	t.Parallel()

	pb, id, twice := calls()
	e := newEngine(t, build(t, pb), testOptions())
	res := analyze(t, e, twice)

	if st := e.Cache().Stats(id); st.Explorations != 1 || st.Hits != 1 {
		t.Errorf("expected one exploration and one hit, got %v", st)
	}
	paths := res.Behavior.Normal()
	if len(paths) != 1 || paths[0].Results[0].Param != 0 {
		t.Errorf("expected the argument to be returned, got %v", res.Behavior)
	}
	if b, ok := e.Cache().Lookup(twice, 0); !ok || b != res.Behavior {
		t.Error("expected the analyzed behavior to be cached")
	}
}

func TestCallDepth(t *testing.T) {
	t.Parallel()

	pb, id, twice := calls()
	opts := testOptions()
	opts.CallDepth = 0
	e := newEngine(t, build(t, pb), opts)
	res := analyze(t, e, twice)

	if !res.Behavior.Truncated {
		t.Error("expected the behavior to be truncated")
	}
	if _, ok := e.Cache().Lookup(twice, 0); !ok {
		t.Error("truncated behaviors serve callers without depth left")
	}
	if _, ok := e.Cache().Lookup(twice, 1); ok {
		t.Error("truncated behaviors should not serve deeper callers")
	}
	if st := e.Cache().Stats(id); st.Explorations != 0 {
		t.Errorf("the callee should not be explored, got %v", st)
	}
	if paths := res.Behavior.Normal(); len(paths) != 1 || paths[0].Results[0].Param != behavior.NoParam {
		t.Errorf("expected an unknown result, got %v", res.Behavior)
	}
}

// chain builds methods m0 .. m(n-1) where each method calls the next
// once and again on both sides of a branch.
func chain(n int) (*cfg.ProgramBuilder, []cfg.MethodID) {
	pb := cfg.NewProgram(nil)
	boolean := pb.Kind(cfg.KindBool)
	unit := pb.Unit("pkg")

	mbs := make([]*cfg.MethodBuilder, n)
	ids := make([]cfg.MethodID, n)
	for i := range mbs {
		mbs[i] = unit.Method(fmt.Sprintf("pkg.m%d", i))
		ids[i] = mbs[i].ID()
	}
	for i, mb := range mbs {
		c := mb.Param("c", boolean)
		entry := mb.Block()
		if i == n-1 {
			entry.Return()
			continue
		}
		next := cfg.Internal{Method: ids[i+1]}
		then, els, done := mb.Block(), mb.Block(), mb.Block()
		entry.Call(nil, next, c).If(cfg.Truth{X: c}, then, els)
		then.Call(nil, next, c).Jump(done)
		els.Call(nil, next, c).Jump(done)
		done.Return()
	}
	return pb, ids
}

func TestCallChain(t *testing.T) {
	t.Parallel()

	t.Run("reuse", func(t *testing.T) {
		t.Parallel()
		pb, ids := chain(12)
		opts := testOptions()
		opts.CallDepth = 4
		e := newEngine(t, build(t, pb), opts)
		res := analyze(t, e, ids[0])

		if res.Outcome != Complete || !res.Behavior.Truncated {
			t.Errorf("expected a complete truncated exploration, got %v %v", res.Outcome, res.Behavior)
		}
		for _, m := range ids[1:5] {
			if st := e.Cache().Stats(m); st.Explorations != 1 {
				t.Errorf("%v: expected a single exploration, got %v", m, st)
			}
		}
		if st := e.Cache().Totals(); st.Explorations != opts.CallDepth {
			t.Errorf("expected %d explorations, got %v", opts.CallDepth, st)
		}
	})

	t.Run("budget", func(t *testing.T) {
		t.Parallel()
		pb, ids := chain(12)
		opts := testOptions()
		opts.CallDepth = 10
		opts.Budget.Steps = 100
		opts.Metrics = true
		e := newEngine(t, build(t, pb), opts)
		res := analyze(t, e, ids[0])

		if steps := res.Metrics.Steps(); steps > opts.Budget.Steps {
			t.Errorf("expected at most %d steps including callees, got %d", opts.Budget.Steps, steps)
		}
		if st := e.Cache().Totals(); st.Explorations > opts.CallDepth {
			t.Errorf("expected callees to be explored at most once, got %v", st)
		}
	})
}

func TestRecursion(t *testing.T) {
	t.Parallel()

	pb := cfg.NewProgram(nil)
	ptr := pb.Kind(cfg.KindPointer)
	mb := pb.Unit("pkg").Method("pkg.rec").Results(1)
	p := mb.Param("p", ptr)
	r := mb.Local("r", ptr)
	mb.Block().Call([]cfg.Slot{r}, cfg.Internal{Method: mb.ID()}, p).Return(r)

	res := analyze(t, newEngine(t, build(t, pb), testOptions()), mb.ID())
	if res.Outcome != Complete || !res.Behavior.Complete {
		t.Errorf("expected recursion to be cut, got %v", res.Outcome)
	}
}

func TestExceptionalFlow(t *testing.T) {
	t.Parallel()

	pb := cfg.NewProgram(nil)
	integer := pb.Kind(cfg.KindInt)
	unit := pb.Unit("pkg")

	fail := unit.Method("pkg.fail")
	fail.Block().Throw(cfg.NoSlot)

	catch := unit.Method("pkg.catch").Results(1)
	r := catch.Local("r", integer)
	try, handler, after := catch.Block(), catch.Block(), catch.Block()
	try.Handler(handler.ID()).Call(nil, cfg.Internal{Method: fail.ID()}).Jump(after)
	handler.Const(r, cfg.IntConst{V: 1}).Return(r)
	after.Const(r, cfg.IntConst{V: 0}).Return(r)

	e := newEngine(t, build(t, pb), testOptions())

	res := analyze(t, e, fail.ID())
	if len(res.Behavior.Paths) != 1 || !res.Behavior.Paths[0].Exceptional {
		t.Errorf("expected a single exceptional path, got %v", res.Behavior)
	}

	res = analyze(t, e, catch.ID())
	paths := res.Behavior.Paths
	if len(paths) != 1 || paths[0].Exceptional || paths[0].Results[0].Const != (cfg.IntConst{V: 1}) {
		t.Errorf("expected the handler to return 1, got %v", res.Behavior)
	}
}

func TestDeterminism(t *testing.T) {
	t.Parallel()

	programs := map[string]*cfg.ProgramBuilder{
		"guard":   guarded(true, true, true),
		"counter": counter(-1),
	}
	for name, pb := range programs {
		name, prog := name, build(t, pb)
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var first *Result
			for _, strategy := range []Strategy{DFS, BFS, RPO} {
				opts := testOptions()
				opts.Strategy = strategy
				res := analyze(t, newEngine(t, prog, opts, deref{}), 0)

				if first == nil {
					first = res
					continue
				}
				if !res.Findings.Equal(first.Findings) {
					t.Errorf("%s: findings %v differ from %v", strategy, res.Findings, first.Findings)
				}
				if res.Behavior.String() != first.Behavior.String() {
					t.Errorf("%s: behavior %v differs from %v", strategy, res.Behavior, first.Behavior)
				}
				if res.Graph.Size() != first.Graph.Size() {
					t.Errorf("%s: explored %d nodes instead of %d", strategy, res.Graph.Size(), first.Graph.Size())
				}
			}
		})
	}
}

func TestPruning(t *testing.T) {
	t.Parallel()

	// if p == nil { if p != nil { *p } }
	pb := cfg.NewProgram(nil)
	ptr := pb.Kind(cfg.KindPointer)
	mb := pb.Unit("pkg").Method("pkg.prune")
	p := mb.Param("p", ptr)
	x := mb.Local("x", ptr)

	entry, inner, use, done := mb.Block(), mb.Block(), mb.Block(), mb.Block()
	entry.If(cfg.IsNil{X: p}, inner, done)
	inner.If(cfg.IsNil{X: p}, done, use)
	use.Load(x, p, "").Jump(done)
	done.Return()

	res := analyze(t, newEngine(t, build(t, pb), testOptions(), deref{}), mb.ID())
	if res.Findings.Len() != 0 {
		t.Errorf("expected no findings, got %v", res.Findings)
	}
	res.Graph.ForEach(func(n *Node) {
		if n.Point.Block == use.ID() {
			t.Errorf("infeasible block reached by %v", n)
		}
	})
}

func diamond(merge bool) (*Result, error) {
	pb := cfg.NewProgram(nil)
	integer := pb.Kind(cfg.KindInt)
	mb := pb.Unit("pkg").Method("pkg.pick").Results(1)
	c := mb.Param("c", pb.Kind(cfg.KindBool))
	x := mb.Local("x", integer)

	entry, then, els, join := mb.Block(), mb.Block(), mb.Block(), mb.Block()
	entry.If(cfg.Truth{X: c}, then, els)
	then.Const(x, cfg.IntConst{V: 1}).Jump(join)
	els.Const(x, cfg.IntConst{V: 2}).Jump(join)
	join.Return(x)

	prog, err := pb.Build()
	if err != nil {
		return nil, err
	}
	opts := testOptions()
	opts.MergeAtJoins = merge
	d, _ := check.NewDispatcher()
	return New(prog, opts, d, behavior.NewCache()).Analyze(context.Background(), mb.ID())
}

func TestMerge(t *testing.T) {
	t.Parallel()

	exact, err := diamond(false)
	if err != nil {
		t.Fatal(err)
	}
	if len(exact.Behavior.Paths) != 2 {
		t.Errorf("expected both literals to be returned, got %v", exact.Behavior)
	}

	merged, err := diamond(true)
	if err != nil {
		t.Fatal(err)
	}
	paths := merged.Behavior.Paths
	if len(paths) != 1 {
		t.Fatalf("expected the exits to be merged, got %v", merged.Behavior)
	}
	res := paths[0].Results[0]
	if res.Const != nil || res.Param != behavior.NoParam {
		t.Errorf("expected a joined result, got %v", res)
	}
	if c, ok := res.Constraints.Get(constraint.Nullness); !ok || c != constraint.NotNull {
		t.Errorf("constraints shared by both literals should survive the join, got %v", res)
	}
	if !paths[0].ParamConstraints(0).IsEmpty() {
		t.Errorf("disagreeing branch constraints should be dropped, got %v", paths[0])
	}
	if merged.Graph.Size() >= exact.Graph.Size() {
		t.Errorf("merging should explore fewer nodes, got %d and %d", merged.Graph.Size(), exact.Graph.Size())
	}
}

func TestBudget(t *testing.T) {
	t.Parallel()

	// func f(p *T, n int) { if p == nil { *p }; for i := 0; i < n; i++ {} }
	pb := cfg.NewProgram(nil)
	ptr, integer := pb.Kind(cfg.KindPointer), pb.Kind(cfg.KindInt)
	mb := pb.Unit("pkg").Method("pkg.long")
	p, n := mb.Param("p", ptr), mb.Param("n", integer)
	x, i, one := mb.Local("x", ptr), mb.Local("i", integer), mb.Local("one", integer)

	entry, null, loop, head, body, done := mb.Block(), mb.Block(), mb.Block(), mb.Block(), mb.Block(), mb.Block()
	entry.If(cfg.IsNil{X: p}, null, loop)
	null.Load(x, p, "").Jump(done)
	loop.Const(i, cfg.IntConst{V: 0}).Const(one, cfg.IntConst{V: 1}).Jump(head)
	head.If(cfg.Compare{Op: token.LSS, X: i, Y: n}, body, done)
	body.BinOp(i, token.ADD, i, one).Jump(head)
	done.Return()

	opts := testOptions()
	opts.Strategy = BFS
	opts.Budget.Steps = 4
	e := newEngine(t, build(t, pb), opts, deref{})
	res := analyze(t, e, mb.ID())

	if res.Outcome != BudgetExceeded {
		t.Fatalf("expected the budget to be exceeded, got %v", res.Outcome)
	}
	if res.Behavior.Complete {
		t.Error("the behavior of a truncated exploration is incomplete")
	}
	if res.Findings.Len() != 1 {
		t.Errorf("findings emitted before the budget ran out are kept, got %v", res.Findings)
	}
}

func TestCancellation(t *testing.T) {
	t.Parallel()

	pb, _, twice := calls()
	e := newEngine(t, build(t, pb), testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Analyze(ctx, twice)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Outcome != Cancelled {
		t.Errorf("expected a cancelled outcome, got %v", res.Outcome)
	}
	if e.Cache().Len() != 0 {
		t.Error("cancelled explorations should not be cached")
	}
}

func TestExitState(t *testing.T) {
	t.Parallel()

	// func fresh() *T { return r }, with r never assigned.
	pb := cfg.NewProgram(nil)
	mb := pb.Unit("pkg").Method("pkg.fresh").Results(1)
	r := mb.Local("r", pb.Kind(cfg.KindPointer))
	mb.Block().Return(r)

	res := analyze(t, newEngine(t, build(t, pb), testOptions(), unbound{}), mb.ID())
	if res.Findings.Len() != 0 {
		t.Errorf("returned slots should be bound at the exit, got %v", res.Findings)
	}
	if paths := res.Behavior.Normal(); len(paths) != 1 || len(paths[0].Results) != 1 {
		t.Errorf("expected a single result, got %v", res.Behavior)
	}
}

func TestFaultIsolation(t *testing.T) {
	t.Parallel()

	prog := build(t, guarded(true, false, false))
	res := analyze(t, newEngine(t, prog, testOptions(), boom{}, deref{}), 0)

	if len(res.Faults) != 1 || res.Faults[0].Rule != "boom" {
		t.Errorf("expected a single fault, got %v", res.Faults)
	}
	if res.Findings.Len() != 1 {
		t.Errorf("other detectors should keep reporting, got %v", res.Findings)
	}
}

func TestMalformed(t *testing.T) {
	t.Parallel()

	pb, _, _ := calls()
	e := newEngine(t, build(t, pb), testOptions())
	if _, err := e.Analyze(context.Background(), 42); !errors.Is(err, cfg.ErrMalformed) {
		t.Errorf("expected a malformed input error, got %v", err)
	}
}

func TestToDot(t *testing.T) {
	t.Parallel()

	prog := build(t, guarded(true, true, false))
	res := analyze(t, newEngine(t, prog, testOptions(), deref{}), 0)

	var buf bytes.Buffer
	if err := res.Graph.ToDot("guard").WriteDot(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("expected output")
	}
}
