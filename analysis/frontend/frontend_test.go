package frontend_test

import (
	"go/token"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/testutil"
)

func load(t *testing.T, content string) testutil.LoadResult {
	t.Helper()
	return testutil.LoadPackageFromSource(t, "pkg", content)
}

func calls(m *cfg.Method) (res []cfg.Call) {
	for _, b := range m.Blocks {
		for _, i := range b.Instrs {
			if c, ok := i.(cfg.Call); ok {
				res = append(res, c)
			}
		}
	}
	return
}

func TestUnits(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

type T struct{ x int }

func (t *T) M() int { return t.x }

func f() func() int {
	return func() int { return 1 }
}

func main() {}
`)

	if len(res.Cfg.Units) != 1 || res.Cfg.Units[0].Name != "pkg" {
		t.Fatalf("expected a single unit for pkg, got %v", res.Cfg.Units)
	}
	for _, name := range []string{"(*pkg.T).M", "pkg.f", "pkg.f$1", "pkg.main"} {
		if _, ok := res.Cfg.MethodByName(name); !ok {
			t.Errorf("%s was not lowered", name)
		}
	}

	m := res.Method(t, "(*pkg.T).M")
	if len(m.Params) != 1 || res.Cfg.SlotName(m.ID, m.Params[0]) != "t" {
		t.Errorf("expected receiver parameter t, got %v", m.Params)
	}
	if m.Results != 1 {
		t.Errorf("expected 1 result, got %d", m.Results)
	}
	if typ := res.Cfg.SlotType(m.ID, m.Params[0]); typ.Kind != cfg.KindPointer {
		t.Errorf("expected a pointer receiver, got %v", typ)
	}
}

func TestConditions(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

func isNil(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func notNil(p *int) int {
	if p != nil {
		return *p
	}
	return 0
}

func less(a, b int) bool {
	if a < b {
		return true
	}
	return false
}

func not(x bool) int {
	if !x {
		return 1
	}
	return 0
}

func main() {}
`)

	tests := []struct {
		fun  string
		cond func(m *cfg.Method) cfg.Condition
	}{
		{"isNil", func(m *cfg.Method) cfg.Condition { return cfg.IsNil{X: m.Params[0]} }},
		{"notNil", func(m *cfg.Method) cfg.Condition { return cfg.IsNil{X: m.Params[0]} }},
		{"not", func(m *cfg.Method) cfg.Condition { return cfg.Truth{X: m.Params[0]} }},
	}

	for _, test := range tests {
		m := res.Method(t, "pkg."+test.fun)
		term, ok := m.Blocks[0].Term.(cfg.If)
		if !ok {
			t.Errorf("%s: expected a branch, got %v", test.fun, m.Blocks[0].Term)
			continue
		}
		if exp := test.cond(m); term.Cond != exp {
			t.Errorf("%s: expected condition %v, got %v", test.fun, exp, term.Cond)
		}
	}

	// A != check is lowered with its branches swapped.
	m := res.Method(t, "pkg.notNil")
	term := m.Blocks[0].Term.(cfg.If)
	if _, ok := m.Blocks[term.Then].Term.(cfg.Return); !ok {
		t.Fatalf("expected the nil branch to return")
	}
	for _, i := range m.Blocks[term.Then].Instrs {
		if _, ok := i.(cfg.Load); ok {
			t.Errorf("nil branch dereferences: %v", i)
		}
	}

	m = res.Method(t, "pkg.less")
	term = m.Blocks[0].Term.(cfg.If)
	if c, ok := term.Cond.(cfg.Compare); !ok || c.Op != token.LSS || c.X != m.Params[0] || c.Y != m.Params[1] {
		t.Errorf("expected %v < %v, got %v", m.Params[0], m.Params[1], term.Cond)
	}
}

func TestCallTargets(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

func g() int { return 1 }

func internal() int { return g() }

func builtin(s []int) int { return len(s) }

func dynamic(h func() int) int { return h() }

func invoke(e error) string { return e.Error() }

func tuple() (int, error) { return 0, nil }

func extract() int {
	x, _ := tuple()
	return x
}

func main() {}
`)

	g := res.Method(t, "pkg.g")
	tests := []struct {
		fun      string
		target   cfg.CallTarget
		receiver bool
	}{
		{"internal", cfg.Internal{Method: g.ID}, false},
		{"builtin", cfg.External{Name: "len"}, false},
		{"dynamic", cfg.Unknown{}, false},
		{"invoke", cfg.External{Name: "(error).Error"}, true},
	}

	for _, test := range tests {
		cs := calls(res.Method(t, "pkg."+test.fun))
		if len(cs) != 1 {
			t.Errorf("%s: expected 1 call, got %v", test.fun, cs)
			continue
		}
		if cs[0].Target != test.target || cs[0].Receiver != test.receiver {
			t.Errorf("%s: expected call to %v (receiver: %v), got %v", test.fun, test.target, test.receiver, cs[0])
		}
	}

	cs := calls(res.Method(t, "pkg.extract"))
	if len(cs) != 1 {
		t.Fatalf("expected 1 call, got %v", cs)
	}
	if rs := cs[0].Results; len(rs) != 2 || rs[0] == cfg.NoSlot || rs[1] != cfg.NoSlot {
		t.Errorf("expected only the first result to be bound, got %v", rs)
	}
}

func TestConstants(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

func answer() int { return 42 }

func none() *int { return nil }

func main() {}
`)

	tests := []struct {
		fun   string
		value cfg.Constant
	}{
		{"answer", cfg.IntConst{V: 42}},
		{"none", cfg.NilConst{}},
	}

	for _, test := range tests {
		m := res.Method(t, "pkg."+test.fun)
		entry := m.Blocks[0]
		if len(entry.Instrs) != 1 {
			t.Errorf("%s: expected a single instruction, got %v", test.fun, entry.Instrs)
			continue
		}
		c, ok := entry.Instrs[0].(cfg.Const)
		if !ok || c.Value != test.value {
			t.Errorf("%s: expected constant %v, got %v", test.fun, test.value, entry.Instrs[0])
			continue
		}
		if ret, ok := entry.Term.(cfg.Return); !ok || len(ret.Values) != 1 || ret.Values[0] != c.Dst {
			t.Errorf("%s: expected the constant to be returned, got %v", test.fun, entry.Term)
		}
	}
}

func TestPhiCopies(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

func swap(a, b, n int) int {
	for i := 0; i < n; i++ {
		a, b = b, a
	}
	return a - b
}

func main() {}
`)

	m := res.Method(t, "pkg.swap")

	// The swap is a parallel copy, which is sequentialized through
	// temporaries in the loop body.
	found := false
	for _, b := range m.Blocks {
		assigns := 0
		for _, i := range b.Instrs {
			if _, ok := i.(cfg.Assign); ok {
				assigns++
			}
		}
		if assigns >= 4 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a block with sequentialized copies:\n%s", m)
	}

	loops := cfg.Loops(m)
	cyclic := false
	for b := range m.Blocks {
		cyclic = cyclic || loops.InCycle(cfg.BlockID(b))
	}
	if !cyclic {
		t.Errorf("expected the loop to be preserved")
	}
}

func TestEscapes(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

func use(p *int) {}

func deferred(p *int) {
	defer use(p)
}

func spawned(p *int) {
	go use(p)
}

func main() {}
`)

	for _, fun := range []string{"deferred", "spawned"} {
		m := res.Method(t, "pkg."+fun)
		captured := false
		for _, c := range calls(m) {
			if _, ok := c.Target.(cfg.Unknown); !ok {
				continue
			}
			for _, a := range c.Args {
				captured = captured || a == m.Params[0]
			}
		}
		if !captured {
			t.Errorf("%s: expected p to escape into an unknown call", fun)
		}
	}
}

func TestFieldAccess(t *testing.T) {
	t.Parallel()
	res := load(t, `package main

type node struct {
	next *node
	val  int
}

func get(n *node) int { return n.val }

func set(n *node, v int) { n.val = v }

func main() {}
`)

	m := res.Method(t, "pkg.get")
	ld, ok := m.Blocks[0].Instrs[0].(cfg.Load)
	if !ok || !ld.Addr || ld.Field != "val" || ld.Ptr != m.Params[0] {
		t.Errorf("expected &n.val, got %v", m.Blocks[0].Instrs[0])
	}

	m = res.Method(t, "pkg.set")
	stored := false
	for _, i := range m.Blocks[0].Instrs {
		if s, ok := i.(cfg.Store); ok && s.Field == "val" && s.Src == m.Params[1] {
			stored = true
		}
	}
	if !stored {
		t.Errorf("expected a store to n.val:\n%s", m)
	}
}
