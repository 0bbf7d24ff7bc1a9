package behavior

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/analysis/state"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
)

var resource = constraint.NewDomain("resource", constraint.Typestate, "OPEN", "CLOSED")

func TestApply(t *testing.T) {
	t.Parallel()

	open := resource.Constraint("OPEN")
	// func open(p *T) (*T, error): requires p, returns an open value and a
	// nil error, or nil and an error.
	b := &MethodBehavior{
		Name: "open",
		Paths: []ExitPath{
			NewPath(map[int]constraint.Set{0: constraint.Of(constraint.NotNull)},
				Fresh(constraint.NotNull, open), Fresh(constraint.Null)),
			NewPath(map[int]constraint.Set{0: constraint.Of(constraint.NotNull)},
				Fresh(constraint.Null), Fresh(constraint.NotNull)),
		},
		Complete: true,
	}

	store := symbolic.NewStore()
	point := defs.Entry(0, 0)
	arg := store.NewValue()

	insts := b.Apply(state.Empty(), []symbolic.Value{arg}, store, point)
	if len(insts) != 2 {
		t.Fatalf("expected two instances, got %d", len(insts))
	}
	first := insts[0]
	if c, _ := first.State.ConstraintOf(arg, constraint.Nullness); c != constraint.NotNull {
		t.Error("argument should be NOT_NULL after the call")
	}
	if c, _ := first.State.ConstraintOf(first.Results[0], resource); c != open {
		t.Error("first result should be OPEN")
	}
	if first.Results[0] != store.At(point, 0) || first.Results[1] != store.At(point, 1) {
		t.Error("results should be the site values of the call")
	}

	// A NULL argument contradicts both paths.
	s, _ := state.Empty().Constrain(arg, constraint.Null)
	if insts := b.Apply(s, []symbolic.Value{arg}, store, point); len(insts) != 0 {
		t.Errorf("expected no feasible path, got %d", len(insts))
	}
	if !b.Requires(0, constraint.NotNull) || b.Requires(0, constraint.Null) {
		t.Error("unexpected requirement")
	}

	// Site values are reset before their constraints are applied.
	stale := state.Empty().Transition(store.At(point, 0), resource.Constraint("CLOSED"))
	if insts := b.Apply(stale, []symbolic.Value{arg}, store, point); len(insts) != 2 {
		t.Error("stale constraints on site values should not prune")
	}
}

func TestApplyAliasAndConst(t *testing.T) {
	t.Parallel()

	b := &MethodBehavior{Paths: []ExitPath{
		NewPath(nil, ResultFact{Param: 1}, ResultFact{Param: NoParam, Const: cfg.IntConst{V: 0}}),
		{Exceptional: true},
	}}

	store := symbolic.NewStore()
	args := []symbolic.Value{store.NewValue(), store.NewValue()}
	insts := b.Apply(state.Empty(), args, store, defs.Entry(0, 0))
	if len(insts) != 2 {
		t.Fatalf("expected two instances, got %d", len(insts))
	}
	if insts[0].Results[0] != args[1] {
		t.Error("first result should alias the second argument")
	}
	if insts[0].Results[1] != store.ValueOf(cfg.IntConst{V: 0}) {
		t.Error("second result should be the literal 0")
	}
	if !insts[1].Exceptional || insts[1].Results != nil {
		t.Error("exceptional paths have no results")
	}
}

func TestUnknown(t *testing.T) {
	t.Parallel()

	b := Unknown(3, "f", 2)
	if !b.Unknown || len(b.Paths) != 1 || len(b.Paths[0].Results) != 2 || b.Paths[0].Exceptional {
		t.Errorf("unexpected unknown behavior %v", b)
	}
	if b.Requires(0, constraint.NotNull) {
		t.Error("unknown behaviors require nothing")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	b := (&MethodBehavior{Paths: []ExitPath{
		NewPath(nil, Fresh(constraint.Null)),
		{Exceptional: true},
		NewPath(nil, Fresh(constraint.Null)),
	}}).Normalize()
	if len(b.Paths) != 2 {
		t.Errorf("expected duplicates to be dropped, got %v", b)
	}
}

func TestCache(t *testing.T) {
	t.Parallel()

	c := NewCache()
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	explore := func(context.Context) (*MethodBehavior, bool, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return &MethodBehavior{Method: 1, Complete: true}, true, nil
	}

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(ctx, 1, 1, explore); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected a single exploration, got %d", calls)
	}
	if st := c.Stats(1); st.Hits+st.Misses != 8 || st.Explorations != 1 {
		t.Errorf("unexpected stats %v", st)
	}

	b, err := c.Resolve(ctx, 1, 3, explore)
	if err != nil || b.Method != 1 || calls != 1 {
		t.Error("expected a hit")
	}
}

func TestCacheRejects(t *testing.T) {
	t.Parallel()

	c := NewCache()
	ctx := context.Background()

	_, err := c.Resolve(ctx, 1, 0, func(context.Context) (*MethodBehavior, bool, error) {
		return nil, false, context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected the exploration error, got %v", err)
	}
	if _, ok := c.Lookup(1, 0); ok {
		t.Error("failed explorations should not be cached")
	}

	b, _ := c.Resolve(ctx, 2, 0, func(context.Context) (*MethodBehavior, bool, error) {
		return &MethodBehavior{Method: 2}, false, nil
	})
	if b == nil {
		t.Error("behaviors that are not kept should still be returned")
	}
	if _, ok := c.Lookup(2, 0); ok {
		t.Error("behaviors that are not kept should not be cached")
	}

	c.Store(&MethodBehavior{Method: 3, Complete: false}, 0)
	if b, ok := c.Lookup(3, 5); !ok || b.Complete {
		t.Error("incomplete behaviors are cached as incomplete")
	}
}

func TestCacheTruncated(t *testing.T) {
	t.Parallel()

	c := NewCache()
	ctx := context.Background()

	explorations := 0
	explore := func(context.Context) (*MethodBehavior, bool, error) {
		explorations++
		return &MethodBehavior{Method: 1, Complete: true, Truncated: true}, true, nil
	}

	for _, test := range []struct {
		depth        int
		explorations int
	}{
		{2, 1},
		{2, 1},
		{1, 1},
		{0, 1},
		{3, 2},
		{2, 2},
	} {
		if _, err := c.Resolve(ctx, 1, test.depth, explore); err != nil {
			t.Fatal(err)
		}
		if explorations != test.explorations {
			t.Errorf("depth %d: expected %d explorations, got %d", test.depth, test.explorations, explorations)
		}
	}

	if _, ok := c.Lookup(1, 4); ok {
		t.Error("a truncated behavior should not serve callers with more depth left")
	}
	if c.Len() != 1 {
		t.Errorf("expected a single entry, got %d", c.Len())
	}

	full := &MethodBehavior{Method: 1, Complete: true}
	if b := c.Store(full, 0); b != full {
		t.Error("a full exploration should replace a truncated one")
	}
	if b, ok := c.Lookup(1, 10); !ok || b != full {
		t.Error("a full exploration serves every depth")
	}
}
