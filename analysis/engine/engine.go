// Package engine explores the exploded graph of methods and derives their
// behaviors.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
	"github.com/cs-au-dk/symbex/utils"
	"github.com/cs-au-dk/symbex/utils/graph"
	"github.com/cs-au-dk/symbex/utils/worklist"

	"github.com/fatih/color"
)

var colorize = struct {
	Method  func(...interface{}) string
	Outcome func(...interface{}) string
	Prune   func(...interface{}) string
}{
	Method: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiBlue).SprintFunc())(is...)
	},
	Outcome: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgHiMagenta).SprintFunc())(is...)
	},
	Prune: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgRed).SprintFunc())(is...)
	},
}

// Engine explores the methods of one program. It is safe for concurrent
// use: workers share the program, the dispatcher and the behavior cache.
type Engine struct {
	prog     *cfg.Program
	opts     Options
	dispatch *check.Dispatcher
	domains  []*constraint.Domain
	cache    *behavior.Cache
	calls    graph.SCCDecomposition[cfg.MethodID]

	mu      sync.Mutex
	methods map[cfg.MethodID]*methodInfo
}

// methodInfo is the per-method structure computed on first exploration.
type methodInfo struct {
	loops *cfg.LoopInfo
	// Blocks with more than one predecessor.
	joins []bool
}

func New(prog *cfg.Program, opts Options, dispatch *check.Dispatcher, cache *behavior.Cache) *Engine {
	if opts.Strategy == "" {
		opts.Strategy = DFS
	}
	if opts.LoopBound < 1 {
		opts.LoopBound = 1
	}

	e := &Engine{
		prog:     prog,
		opts:     opts,
		dispatch: dispatch,
		domains:  dispatch.Registry().Domains(),
		cache:    cache,
		methods:  make(map[cfg.MethodID]*methodInfo),
	}

	all := make([]cfg.MethodID, len(prog.Methods))
	for i := range all {
		all[i] = cfg.MethodID(i)
	}
	e.calls = graph.OfHashable(func(m cfg.MethodID) (res []cfg.MethodID) {
		if e.opaque(m) {
			return nil
		}
		for _, callee := range prog.Callees(m) {
			if prog.Method(callee) != nil {
				res = append(res, callee)
			}
		}
		return
	}).SCC(all)

	return e
}

func (e *Engine) Program() *cfg.Program {
	return e.prog
}

func (e *Engine) Cache() *behavior.Cache {
	return e.cache
}

func (e *Engine) opaque(m cfg.MethodID) bool {
	return e.prog.Method(m) == nil || (e.opts.Opaque != nil && e.opts.Opaque(m))
}

// recursive is true if caller and callee may call each other.
func (e *Engine) recursive(caller, callee cfg.MethodID) bool {
	c := e.calls.ComponentOf(caller)
	return c >= 0 && c == e.calls.ComponentOf(callee) && e.calls.Cyclic(c)
}

func (e *Engine) info(m *cfg.Method) *methodInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if info, ok := e.methods[m.ID]; ok {
		return info
	}

	info := &methodInfo{
		loops: cfg.Loops(m),
		joins: make([]bool, len(m.Blocks)),
	}
	preds := make([]int, len(m.Blocks))
	for _, b := range m.Blocks {
		for _, s := range b.Succs() {
			preds[s]++
		}
	}
	for b, n := range preds {
		info.joins[b] = n > 1
	}
	e.methods[m.ID] = info
	return info
}

// Result is the outcome of exploring one method.
type Result struct {
	Method   *cfg.Method
	Findings check.FindingSet
	Behavior *behavior.MethodBehavior
	// Graph is only retained with Options.KeepGraph.
	Graph   *ExplodedGraph
	Outcome Outcome
	Metrics *Metrics
	Faults  []check.Fault
}

// Analyze explores a method from its entry and stores its behavior for
// callers. Findings of a truncated exploration are still reported. The
// error is only set if ctx was cancelled.
func (e *Engine) Analyze(ctx context.Context, m cfg.MethodID) (*Result, error) {
	method := e.prog.Method(m)
	if method == nil {
		return nil, fmt.Errorf("%w: no method %d", cfg.ErrMalformed, int(m))
	}
	if e.opaque(m) {
		return nil, fmt.Errorf("%w: method %s belongs to a malformed unit", cfg.ErrMalformed, method.Name)
	}

	res := e.explore(NewGovernor(ctx, e.opts.Budget), method, 0, e.opts.KeepGraph)
	if res.Outcome == Cancelled {
		return res, ctx.Err()
	}
	e.cache.Store(res.Behavior, e.opts.CallDepth)
	return res, nil
}

// explorer holds the state of one method exploration. It is confined to a
// single goroutine.
type explorer struct {
	e       *Engine
	method  *cfg.Method
	info    *methodInfo
	depth   int
	gov     *Governor
	store   *symbolic.Store
	session *check.Session
	graph   *ExplodedGraph
	work    worklist.Worklist[*Node]
	metrics *Metrics
	// Set if a call was not explored because of the depth bound.
	truncated bool
}

func (e *Engine) explore(gov *Governor, m *cfg.Method, depth int, keep bool) *Result {
	x := &explorer{
		e:       e,
		method:  m,
		info:    e.info(m),
		depth:   depth,
		gov:     gov,
		store:   symbolic.NewStore(),
		session: e.dispatch.Session(e.prog, m),
		graph:   newGraph(),
		metrics: e.opts.initMetrics(),
	}
	x.work = x.newWorklist()
	x.metrics.TimerStart()
	x.logf("exploring %s at depth %d", colorize.Method(m.Name), depth)

	x.seed()
	for !x.work.IsEmpty() && gov.Step() {
		n := x.work.GetNext()
		n.queued = false
		x.expand(n)
	}
	// An empty worklist does not need another step to be noticed.
	outcome := gov.Outcome()
	x.metrics.done(gov.Steps(), outcome)

	res := &Result{
		Method:   m,
		Findings: x.graph.Findings(),
		Behavior: x.derive(outcome),
		Outcome:  outcome,
		Metrics:  x.metrics,
		Faults:   x.session.Faults(),
	}
	if keep {
		res.Graph = x.graph
	}
	x.logf("%s: %s", colorize.Method(m.Name), colorize.Outcome(outcome))
	return res
}

func (x *explorer) logf(format string, args ...interface{}) {
	if x.e.opts.Logging {
		log.Printf(format, args...)
	}
}

// seed installs the entry node, with every parameter bound to its
// parameter value.
func (x *explorer) seed() {
	s := state.Empty()
	for i, p := range x.method.Params {
		s = s.Bind(p, x.store.Param(i))
	}

	point := defs.Entry(x.method.ID, x.depth)
	s, findings, ok := x.session.Dispatch(check.OnMethodEntry, &check.Context{Point: point, State: s})

	n, _ := x.graph.getOrAdd(point, s)
	n.findings = findings
	x.graph.entry = n
	x.metrics.node(0)
	if !ok {
		x.metrics.prune()
		return
	}
	x.push(n)
}

func (x *explorer) push(n *Node) {
	if !n.queued {
		n.queued = true
		x.work.Add(n)
	}
}

// successor installs the state s at point p as a successor of from.
func (x *explorer) successor(from *Node, p defs.ProgramPoint, s state.ProgramState) {
	if p.AtBlockEntry() {
		s = s.Compact()
		if x.e.opts.MergeAtJoins && x.info.joins[p.Block] {
			x.mergeInto(from, p, s)
			return
		}
	}

	n, created := x.graph.getOrAdd(p, s)
	from.link(n)
	if created {
		x.metrics.node(p.Iter)
		x.push(n)
	}
}

// mergeInto joins s into the single node kept for the join point p.
func (x *explorer) mergeInto(from *Node, p defs.ProgramPoint, s state.ProgramState) {
	n, found := x.graph.merged[p]
	if !found {
		n = x.graph.newNode(p, s)
		x.graph.merged[p] = n
		from.link(n)
		x.metrics.node(p.Iter)
		x.push(n)
		return
	}
	from.link(n)

	merged := n.State.Merge(s, x.e.domains, func(slot cfg.Slot, _, _ symbolic.Value) symbolic.Value {
		return x.store.Join(p, slot)
	})
	if merged.Equal(n.State) {
		return
	}

	merged, findings, ok := x.session.Dispatch(check.OnMerge, &check.Context{
		Point:    p,
		State:    merged,
		Incoming: s,
	})
	x.metrics.merge()
	if !ok {
		x.metrics.prune()
		return
	}

	n.reset()
	n.State = merged
	n.findings = findings
	x.push(n)
}

// enter computes the point reached by an edge into block to. Retreating
// edges count loop iterations up to the bound, edges within a loop keep
// the count and all other edges reset it.
func (x *explorer) enter(from defs.ProgramPoint, to cfg.BlockID) defs.ProgramPoint {
	loops := x.info.loops
	iter := 0
	switch {
	case loops.IsRetreating(from.Block, to):
		iter = from.Iter + 1
		if iter > x.e.opts.LoopBound {
			iter = x.e.opts.LoopBound
		}
	case loops.SameCycle(from.Block, to):
		iter = from.Iter
	}
	return from.Goto(to, iter)
}

// throw routes exceptional flow out of the block of from to its handler,
// or to the exceptional exit.
func (x *explorer) throw(n *Node, s state.ProgramState) {
	p := n.Point
	if h := x.method.Blocks[p.Block].Handler; h != cfg.NoBlock {
		x.successor(n, x.enter(p, h), s)
		return
	}
	x.successor(n, defs.Exceptional(x.method.ID, x.depth), s)
}

func (x *explorer) pruned(p defs.ProgramPoint, why string) {
	x.metrics.prune()
	x.logf("%v: %s %s", p, colorize.Prune("pruned"), why)
}

// expand computes the successors of a node.
func (x *explorer) expand(n *Node) {
	p := n.Point
	if p.IsExceptionalExit() {
		x.exit(n, n.State, nil, true)
		return
	}

	block := x.method.Blocks[p.Block]
	if p.Index < len(block.Instrs) {
		x.instruction(n, block.Instrs[p.Index])
	} else {
		x.terminator(n, block.Term)
	}
}

// read binds every slot in slots that is still unbound to a value of its
// own, so that detectors and transfer functions always see a value.
func (x *explorer) read(p defs.ProgramPoint, s state.ProgramState, slots []cfg.Slot) state.ProgramState {
	for _, slot := range slots {
		if _, ok := s.ValueOf(slot); !ok {
			s = s.Bind(slot, x.store.At(p, -1-int(slot)))
		}
	}
	return s
}

func (x *explorer) values(s state.ProgramState, slots []cfg.Slot) []symbolic.Value {
	vs := make([]symbolic.Value, len(slots))
	for i, slot := range slots {
		vs[i], _ = s.ValueOf(slot)
	}
	return vs
}

func (x *explorer) instruction(n *Node, instr cfg.Instruction) {
	p := n.Point
	s := x.read(p, n.State, cfg.Uses(instr))

	ctx := &check.Context{Point: p, State: s, Instr: instr}
	if call, ok := instr.(cfg.Call); ok {
		ctx.Callee = x.resolve(call)
	}

	s, findings, ok := x.session.Dispatch(check.OnPreInstruction, ctx)
	n.findings = append(n.findings, findings...)
	if !ok {
		x.pruned(p, "before "+instr.String())
		return
	}

	for _, succ := range x.transfer(p, s, instr, ctx.Callee) {
		if succ.exceptional {
			x.throw(n, succ.state)
			continue
		}

		s, findings, ok := x.session.Dispatch(check.OnPostInstruction, &check.Context{
			Point:  p,
			State:  succ.state,
			Instr:  instr,
			Callee: ctx.Callee,
		})
		n.findings = append(n.findings, findings...)
		if !ok {
			x.pruned(p, "after "+instr.String())
			continue
		}
		x.successor(n, p.Next(), s)
	}
}

func (x *explorer) terminator(n *Node, term cfg.Terminator) {
	p := n.Point
	s := x.read(p, n.State, cfg.TermUses(term))

	switch t := term.(type) {
	case cfg.Jump:
		x.successor(n, x.enter(p, t.Target), s)

	case cfg.If:
		for _, branch := range []bool{true, false} {
			target := t.Else
			if branch {
				target = t.Then
			}

			bs, ok := x.condition(s, t.Cond, branch)
			if !ok {
				x.pruned(p, fmt.Sprintf("%v is never %v", t.Cond, branch))
				continue
			}
			bs, findings, ok := x.session.Dispatch(check.OnCondition, &check.Context{
				Point:  p,
				State:  bs,
				Term:   term,
				Cond:   t.Cond,
				Branch: branch,
			})
			n.findings = append(n.findings, findings...)
			if !ok {
				x.pruned(p, fmt.Sprintf("%v on %v", t.Cond, branch))
				continue
			}
			x.successor(n, x.enter(p, target), bs)
		}

	case cfg.Return:
		x.exit(n, s, x.values(s, t.Values), false)

	case cfg.Throw:
		x.throw(n, s)

	default:
		panic("???")
	}
}

// exit notifies the exit detectors of the state s leaving the method and
// records the exit on the node.
func (x *explorer) exit(n *Node, s state.ProgramState, returns []symbolic.Value, exceptional bool) {
	s, findings, ok := x.session.Dispatch(check.OnMethodExit, &check.Context{
		Point:       n.Point,
		State:       s,
		Term:        x.termAt(n.Point),
		Exceptional: exceptional,
		Returns:     returns,
	})
	n.findings = append(n.findings, findings...)
	if !ok {
		x.pruned(n.Point, "at exit")
		return
	}

	kind := NormalExit
	if exceptional {
		kind = ExceptionalExit
	}
	n.exit = &Exit{kind, s, returns}
}

func (x *explorer) termAt(p defs.ProgramPoint) cfg.Terminator {
	if p.IsExceptionalExit() {
		return nil
	}
	return x.method.Blocks[p.Block].Term
}
