package checks

import (
	"context"
	"go/token"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/behavior"
	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/check"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/engine"
	"github.com/cs-au-dk/symbex/utils"
)

// explore analyzes m with every detector and returns the findings of rule.
func explore(t *testing.T, pb *cfg.ProgramBuilder, m cfg.MethodID, rule string) []check.Finding {
	t.Helper()
	opts := engine.DefaultOptions()
	opts.Budget.Timeout = 0
	return exploreWith(t, pb, m, rule, opts)
}

func exploreWith(t *testing.T, pb *cfg.ProgramBuilder, m cfg.MethodID, rule string, opts engine.Options) []check.Finding {
	t.Helper()
	prog, err := pb.Build()
	if err != nil {
		t.Fatal(err)
	}
	d, err := check.NewDispatcher(Registered(utils.DefaultConfig())...)
	if err != nil {
		t.Fatal(err)
	}

	res, err := engine.New(prog, opts, d, behavior.NewCache()).Analyze(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != engine.Complete {
		t.Fatalf("exploration did not complete: %v", res.Outcome)
	}
	return res.Findings.Rule(rule)
}

func at(m cfg.MethodID, b cfg.BlockID, index int) defs.ProgramPoint {
	return defs.ProgramPoint{Method: m, Block: b, Index: index}
}

func TestRegistered(t *testing.T) {
	t.Parallel()

	config := utils.DefaultConfig()
	if ds := Registered(config); len(ds) != 5 {
		t.Errorf("expected every detector by default, got %d", len(ds))
	}
	config.Detectors = []string{RuleNullDereference, RuleDivisionByZero}
	if ds := Registered(config); len(ds) != 2 {
		t.Errorf("expected two detectors, got %d", len(ds))
	}
	if _, err := check.NewDispatcher(Registered(utils.DefaultConfig())...); err != nil {
		t.Errorf("detectors should compose: %v", err)
	}
}

func TestDoubleOpen(t *testing.T) {
	t.Parallel()

	lock := cfg.External{Name: "(*sync.Mutex).Lock"}
	unlock := cfg.External{Name: "(*sync.Mutex).Unlock"}

	for _, test := range []struct {
		name     string
		calls    []cfg.CallTarget
		expected []defs.ProgramPoint
	}{
		{"lock twice", []cfg.CallTarget{lock, lock}, []defs.ProgramPoint{at(0, 0, 1)}},
		{"lock unlock lock", []cfg.CallTarget{lock, unlock, lock}, nil},
		{"unlock twice", []cfg.CallTarget{lock, unlock, unlock}, []defs.ProgramPoint{at(0, 0, 2)}},
	} {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			pb := cfg.NewProgram(nil)
			mb := pb.Unit("pkg").Method("pkg.locks")
			mu := mb.Param("mu", pb.Kind(cfg.KindPointer))
			b := mb.Block()
			for _, target := range test.calls {
				b.Invoke(nil, target, mu)
			}
			b.Return()

			fs := explore(t, pb, mb.ID(), RuleDoubleOpen)
			if len(fs) != len(test.expected) {
				t.Fatalf("expected %d findings, got %v", len(test.expected), fs)
			}
			for i, f := range fs {
				if f.Point != test.expected[i] {
					t.Errorf("expected a finding at %v, got %v", test.expected[i], f.Point)
				}
			}
		})
	}
}

// opener builds
//
//	func read(name string, p *T) {
//		f, err := os.Open(name)
//		if err != nil { return }
//		<release>(f)
//	}
func opener(release func(b *cfg.BlockBuilder, mb *cfg.MethodBuilder, f cfg.Slot)) (*cfg.ProgramBuilder, cfg.MethodID) {
	pb := cfg.NewProgram(nil)
	ptr := pb.Kind(cfg.KindPointer)
	iface := pb.Kind(cfg.KindInterface)
	mb := pb.Unit("pkg").Method("pkg.read")
	name := mb.Param("name", pb.Kind(cfg.KindString))
	mb.Param("p", ptr)
	f, err, null := mb.Local("f", ptr), mb.Local("err", iface), mb.Local("null", iface)

	entry, failed, opened := mb.Block(), mb.Block(), mb.Block()
	entry.Call([]cfg.Slot{f, err}, cfg.External{Name: "os.Open"}, name).
		Const(null, cfg.NilConst{}).
		If(cfg.Compare{Op: token.NEQ, X: err, Y: null}, failed, opened)
	failed.Return()
	if release != nil {
		release(opened, mb, f)
	}
	opened.Return()
	return pb, mb.ID()
}

func TestResourceLeak(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name    string
		release func(b *cfg.BlockBuilder, mb *cfg.MethodBuilder, f cfg.Slot)
		leaks   int
	}{
		{"leaked", nil, 1},
		{"closed", func(b *cfg.BlockBuilder, _ *cfg.MethodBuilder, f cfg.Slot) {
			b.Invoke(nil, cfg.External{Name: "(*os.File).Close"}, f)
		}, 0},
		{"stored", func(b *cfg.BlockBuilder, mb *cfg.MethodBuilder, f cfg.Slot) {
			b.Store(mb.Method().Params[1], "f", f)
		}, 0},
		{"escaped", func(b *cfg.BlockBuilder, _ *cfg.MethodBuilder, f cfg.Slot) {
			b.Call(nil, cfg.Unknown{}, f)
		}, 0},
	} {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			pb, m := opener(test.release)
			fs := explore(t, pb, m, RuleResourceLeak)
			if len(fs) != test.leaks {
				t.Fatalf("expected %d leaks, got %v", test.leaks, fs)
			}
			for _, f := range fs {
				if f.Point != at(m, 0, 0) {
					t.Errorf("leaks should be reported where the resource was opened, got %v", f.Point)
				}
			}
		})
	}
}

func TestResourceLeakMerged(t *testing.T) {
	t.Parallel()

	// func read(name string, c bool) {
	//	f, err := os.Open(name)
	//	if err != nil { return }
	//	if c { f.Close() }
	// }
	pb := cfg.NewProgram(nil)
	ptr, iface := pb.Kind(cfg.KindPointer), pb.Kind(cfg.KindInterface)
	mb := pb.Unit("pkg").Method("pkg.read")
	name := mb.Param("name", pb.Kind(cfg.KindString))
	c := mb.Param("c", pb.Kind(cfg.KindBool))
	f, err, null := mb.Local("f", ptr), mb.Local("err", iface), mb.Local("null", iface)

	entry, failed, opened, release, done := mb.Block(), mb.Block(), mb.Block(), mb.Block(), mb.Block()
	entry.Call([]cfg.Slot{f, err}, cfg.External{Name: "os.Open"}, name).
		Const(null, cfg.NilConst{}).
		If(cfg.Compare{Op: token.NEQ, X: err, Y: null}, failed, opened)
	failed.Return()
	opened.If(cfg.Truth{X: c}, release, done)
	release.Invoke(nil, cfg.External{Name: "(*os.File).Close"}, f).Jump(done)
	done.Return()

	for _, merge := range []bool{false, true} {
		opts := engine.DefaultOptions()
		opts.Budget.Timeout = 0
		opts.MergeAtJoins = merge

		fs := exploreWith(t, pb, mb.ID(), RuleResourceLeak, opts)
		if len(fs) != 1 || fs[0].Point != at(mb.ID(), 0, 0) {
			t.Errorf("merge %v: expected the leak on one path to be reported, got %v", merge, fs)
		}
	}
}

func TestSingleUse(t *testing.T) {
	t.Parallel()

	run := cfg.External{Name: "(*os/exec.Cmd).Run"}

	pb := cfg.NewProgram(nil)
	mb := pb.Unit("pkg").Method("pkg.twice")
	cmd := mb.Param("cmd", pb.Kind(cfg.KindPointer))
	mb.Block().Invoke(nil, run, cmd).Invoke(nil, run, cmd).Return()

	fs := explore(t, pb, mb.ID(), RuleSingleUse)
	if len(fs) != 1 || fs[0].Point != at(mb.ID(), 0, 1) {
		t.Errorf("expected a finding on the second run, got %v", fs)
	}
}

func TestDivisionByZero(t *testing.T) {
	t.Parallel()

	// func div(x, d int) int { if d == 0 { return x / d }; return x % d }
	pb := cfg.NewProgram(nil)
	integer := pb.Kind(cfg.KindInt)
	mb := pb.Unit("pkg").Method("pkg.div").Results(1)
	x, d := mb.Param("x", integer), mb.Param("d", integer)
	zero, r := mb.Local("zero", integer), mb.Local("r", integer)

	entry, isZero, nonZero := mb.Block(), mb.Block(), mb.Block()
	entry.Const(zero, cfg.IntConst{V: 0}).If(cfg.Compare{Op: token.EQL, X: d, Y: zero}, isZero, nonZero)
	isZero.BinOp(r, token.QUO, x, d).Return(r)
	nonZero.BinOp(r, token.REM, x, d).Return(r)

	fs := explore(t, pb, mb.ID(), RuleDivisionByZero)
	if len(fs) != 1 || fs[0].Point != at(mb.ID(), isZero.ID(), 0) {
		t.Errorf("expected a finding in the zero branch only, got %v", fs)
	}
}

func TestNullDereference(t *testing.T) {
	t.Parallel()

	pb := cfg.NewProgram(nil)
	ptr, integer := pb.Kind(cfg.KindPointer), pb.Kind(cfg.KindInt)
	iface := pb.Kind(cfg.KindInterface)
	unit := pb.Unit("pkg")

	// func load(p *int) int { return *p }
	load := unit.Method("pkg.load").Results(1)
	p := load.Param("p", ptr)
	v := load.Local("v", integer)
	load.Block().Load(v, p, "").Return(v)

	// func caller(i fmt.Stringer) { load(nil); i = nil; i.String() }
	caller := unit.Method("pkg.caller")
	i := caller.Param("i", iface)
	null, res := caller.Local("null", ptr), caller.Local("res", integer)
	entry, invoke := caller.Block(), caller.Block()
	entry.Const(null, cfg.NilConst{}).
		Call([]cfg.Slot{res}, cfg.Internal{Method: load.ID()}, null).
		Jump(invoke)
	invoke.Const(i, cfg.NilConst{}).
		Invoke(nil, cfg.External{Name: "(fmt.Stringer).String"}, i).
		Return()

	fs := explore(t, pb, caller.ID(), RuleNullDereference)
	if len(fs) != 1 || fs[0].Point != at(caller.ID(), 0, 1) {
		t.Fatalf("expected a finding at the call of load, got %v", fs)
	}
	if fs[0].Message() != "nil passed as null to pkg.load, which dereferences it" {
		t.Errorf("unexpected message %q", fs[0].Message())
	}
}

func TestNilInterfaceCall(t *testing.T) {
	t.Parallel()

	pb := cfg.NewProgram(nil)
	mb := pb.Unit("pkg").Method("pkg.call")
	i := mb.Param("i", pb.Kind(cfg.KindInterface))
	entry, call, done := mb.Block(), mb.Block(), mb.Block()
	entry.If(cfg.IsNil{X: i}, call, done)
	call.Invoke(nil, cfg.External{Name: "(fmt.Stringer).String"}, i).Jump(done)
	done.Return()

	fs := explore(t, pb, mb.ID(), RuleNullDereference)
	if len(fs) != 1 || fs[0].Point != at(mb.ID(), call.ID(), 0) {
		t.Errorf("expected a finding at the call, got %v", fs)
	}
}
