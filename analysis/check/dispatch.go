package check

import (
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sort"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/utils"
)

var ErrDuplicateRule = errors.New("duplicate detector rule")

// Dispatcher is the static composition of detectors used by an engine.
// It is immutable and shared between workers.
type Dispatcher struct {
	detectors []Detector
	registry  *constraint.Registry
}

// NewDispatcher orders detectors by rule and collects their domains.
func NewDispatcher(detectors ...Detector) (*Dispatcher, error) {
	ds := append([]Detector(nil), detectors...)
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].Rule() < ds[j].Rule()
	})

	var domains []*constraint.Domain
	for i, d := range ds {
		if i > 0 && ds[i-1].Rule() == d.Rule() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, d.Rule())
		}
		domains = append(domains, d.Domains()...)
	}

	registry, err := constraint.NewRegistry(domains...)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{ds, registry}, nil
}

func (d *Dispatcher) Detectors() []Detector {
	return d.detectors
}

func (d *Dispatcher) Registry() *constraint.Registry {
	return d.registry
}

// Model asks the modelers, in rule order, for the behavior of an external
// target.
func (d *Dispatcher) Model(name string, results int) (*behavior.MethodBehavior, bool) {
	for _, det := range d.detectors {
		if m, ok := det.(Modeler); ok {
			if b, ok := m.Model(name, results); ok {
				return b, true
			}
		}
	}
	return nil, false
}

// Fault records a detector that panicked.
type Fault struct {
	Rule  string
	Event Event
	Point defs.ProgramPoint
	Panic string
}

func (f Fault) String() string {
	return fmt.Sprintf("%s panicked on %s at %v: %s", f.Rule, f.Event, f.Point, f.Panic)
}

// Session dispatches the events of one method exploration. A detector that
// panics is disabled for the rest of the session. Sessions are confined to
// the goroutine exploring the method.
type Session struct {
	dispatcher *Dispatcher
	prog       *cfg.Program
	method     *cfg.Method
	disabled   []bool
	faults     []Fault
}

func (d *Dispatcher) Session(prog *cfg.Program, method *cfg.Method) *Session {
	return &Session{
		dispatcher: d,
		prog:       prog,
		method:     method,
		disabled:   make([]bool, len(d.detectors)),
	}
}

func (s *Session) Faults() []Fault {
	return s.faults
}

// Dispatch folds the state of ctx through every enabled detector
// subscribed to the event. It returns the resulting state, the findings
// reported along the way and whether the path survives.
func (s *Session) Dispatch(e Event, ctx *Context) (state.ProgramState, []Finding, bool) {
	ctx.Program, ctx.Method = s.prog, s.method

	var findings []Finding
	for i, det := range s.dispatcher.detectors {
		if s.disabled[i] {
			continue
		}
		cb := handler(det, e)
		if cb == nil {
			continue
		}

		out, ok := s.call(i, e, ctx, cb)
		if !ok {
			continue
		}
		for _, r := range out.reports {
			findings = append(findings, s.stamp(det.Rule(), ctx.Point, r))
		}
		if out.pruned {
			return ctx.State, findings, false
		}
		if out.set {
			ctx.State = out.state
		}
	}
	return ctx.State, findings, true
}

func (s *Session) call(i int, e Event, ctx *Context, cb func(*Context) Outcome) (out Outcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rule := s.dispatcher.detectors[i].Rule()
			s.disabled[i] = true
			s.faults = append(s.faults, Fault{rule, e, ctx.Point, fmt.Sprint(r)})
			log.Printf("%s %s panicked in %s: %v", colorize.Fault("Detector"), rule, s.method.Name, r)
			utils.VerbosePrint("%s\n", debug.Stack())
			ok = false
		}
	}()

	// Detectors may not write through the context of another detector.
	snapshot := *ctx
	return cb(&snapshot), true
}

func (s *Session) stamp(rule string, at defs.ProgramPoint, r report) Finding {
	point := r.point
	if point.Block == cfg.NoBlock {
		point = at
	}
	point = point.Location()
	return Finding{
		Rule:     rule,
		Point:    point,
		Pos:      s.prog.Position(point.Method, point.Block, point.Index),
		Template: r.template,
		Args:     r.args,
	}
}
