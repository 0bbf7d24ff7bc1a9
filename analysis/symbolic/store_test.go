package symbolic

import (
	"testing"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/defs"
)

func TestStore(t *testing.T) {
	t.Parallel()

	s := NewStore()

	a, b := s.NewValue(), s.NewValue()
	if a == b || !a.Valid() || a.Kind() != Fresh {
		t.Error("fresh values should be distinct")
	}
	if (Value{}).Valid() {
		t.Error("the zero value should be invalid")
	}

	if s.ValueOf(cfg.IntConst{V: 3}) != s.ValueOf(cfg.IntConst{V: 3}) {
		t.Error("equal literals should share a value")
	}
	if s.ValueOf(cfg.IntConst{V: 3}) == s.ValueOf(cfg.IntConst{V: 4}) {
		t.Error("distinct literals should not share a value")
	}
	if s.ValueOf(cfg.NilConst{}) == s.ValueOf(cfg.BoolConst{V: false}) {
		t.Error("nil and false should not share a value")
	}
	if s.ValueOf(cfg.UnknownConst{}) == s.ValueOf(cfg.UnknownConst{}) {
		t.Error("unknown literals should never be equal")
	}
	if c, ok := s.ValueOf(cfg.StringConst{V: "x"}).Constant(); !ok || c != (cfg.StringConst{V: "x"}) {
		t.Errorf("unexpected constant %v", c)
	}

	if s.Param(0) != NewStore().Param(0) || s.Param(0) == s.Param(1) {
		t.Error("parameter values are identified by index")
	}

	p := defs.Entry(0, 0).Next()
	if s.At(p, 0) != s.At(p, 0) || s.At(p, 0) == s.At(p, 1) || s.At(p, 0) == s.At(p.Next(), 0) {
		t.Error("site values are identified by point and ordinal")
	}
	if s.Join(p, 2) != NewStore().Join(p, 2) || s.Join(p, 2) == s.At(p, 2) {
		t.Error("joined values are identified by point and slot")
	}
}

func TestValueHash(t *testing.T) {
	t.Parallel()

	s := NewStore()
	p := defs.Entry(1, 0)
	values := []Value{
		s.NewValue(), s.Param(0), s.At(p, 0), s.Join(p, 0),
		s.ValueOf(cfg.IntConst{V: 0}), s.ValueOf(cfg.NilConst{}),
	}
	seen := map[uint32]Value{}
	for _, v := range values {
		if o, ok := seen[v.Hash()]; ok {
			t.Errorf("%v and %v collide", v, o)
		}
		seen[v.Hash()] = v
	}
}
