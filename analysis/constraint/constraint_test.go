package constraint

import (
	"errors"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/cfg"
)

var resource = NewDomain("resource", Typestate, "OPEN", "CLOSED", "CONSUMED").
	WithJoin("CLOSED", "CONSUMED", "CONSUMED")

func TestConstraint(t *testing.T) {
	t.Parallel()

	if _, ok := Null.Meet(NotNull); ok {
		t.Error("NULL and NOT_NULL should contradict")
	}
	if c, ok := Null.Meet(Null); !ok || c != Null {
		t.Error("meet should be idempotent")
	}
	if _, ok := Null.Join(NotNull); ok {
		t.Error("NULL and NOT_NULL have no common constraint")
	}

	closed, consumed := resource.Constraint("CLOSED"), resource.Constraint("CONSUMED")
	if c, ok := closed.Join(consumed); !ok || c != consumed {
		t.Errorf("expected the declared join, got %v", c)
	}
	if c, ok := consumed.Join(closed); !ok || c != consumed {
		t.Errorf("declared joins should be symmetric, got %v", c)
	}
	if _, ok := resource.Constraint("OPEN").Join(closed); ok {
		t.Error("undeclared joins drop the constraint")
	}

	if !Null.IsSingleton() || NotNull.IsSingleton() {
		t.Error("unexpected singleton tags")
	}
	if c, ok := Nullness.Complement(Null); !ok || c != NotNull {
		t.Error("NOT_NULL should complement NULL")
	}
	if _, ok := resource.Complement(closed); ok {
		t.Error("three-tag domains have no complement")
	}

	if c, ok := Nullness.Intrinsic(cfg.NilConst{}); !ok || c != Null {
		t.Error("nil should be NULL")
	}
	if c, ok := Boolean.Intrinsic(cfg.BoolConst{V: false}); !ok || c != False {
		t.Error("false should be FALSE")
	}
	if _, ok := Boolean.Intrinsic(cfg.IntConst{V: 1}); ok {
		t.Error("integers have no boolean intrinsic")
	}
}

func TestSet(t *testing.T) {
	t.Parallel()

	open := resource.Constraint("OPEN")
	s := Of(open, NotNull)

	if s.Len() != 2 {
		t.Fatalf("expected two constraints, got %v", s)
	}
	if c, ok := s.Get(Nullness); !ok || c != NotNull {
		t.Error("missing NOT_NULL")
	}
	if !s.Equal(Of(NotNull, open)) || s.Hash() != Of(NotNull, open).Hash() {
		t.Error("sets should not depend on insertion order")
	}

	if _, ok := s.Meet(Null); ok {
		t.Error("meeting NULL should contradict")
	}
	if s2, ok := s.Meet(True); !ok || s2.Len() != 3 || s.Len() != 2 {
		t.Error("meet should add to a copy")
	}

	s3 := s.With(resource.Constraint("CLOSED"))
	if c, _ := s3.Get(resource); c.Name() != "CLOSED" {
		t.Error("With should replace within a domain")
	}
	if c, _ := s.Get(resource); c != open {
		t.Error("With should not modify the original")
	}
	if s.Without(Nullness).Len() != 1 || s.Without(Boolean).Len() != 2 {
		t.Error("unexpected Without")
	}

	if j := s.Join(s3); j.Len() != 1 {
		t.Errorf("expected only NOT_NULL to survive, got %v", j)
	}
	if !s.Join(s).Equal(s) {
		t.Error("join should be idempotent")
	}
	if f := s.Filter(Typestate); f.Len() != 1 {
		t.Errorf("expected only the typestate, got %v", f)
	}

	if _, ok := Of(Null).MeetSet(Of(NotNull, open)); ok {
		t.Error("expected a contradiction")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(resource, resource, Nullness)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{}
	for _, d := range r.Domains() {
		names = append(names, d.Name())
	}
	if len(names) != 3 || names[0] != "boolean" || names[1] != "nullness" || names[2] != "resource" {
		t.Errorf("unexpected domains %v", names)
	}
	if d, ok := r.Lookup("resource"); !ok || d != resource {
		t.Error("lookup failed")
	}

	_, err = NewRegistry(NewDomain("nullness", Fact, "X"))
	if !errors.Is(err, ErrDuplicateDomain) {
		t.Errorf("expected ErrDuplicateDomain, got %v", err)
	}
}
