// Package state implements the immutable program states of the exploded
// graph.
package state

import (
	"fmt"
	"sort"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/constraint"
	"github.com/cs-au-dk/symbex/analysis/symbolic"
	"github.com/cs-au-dk/symbex/utils"
	i "github.com/cs-au-dk/symbex/utils/indenter"
	"github.com/cs-au-dk/symbex/utils/tree"

	"github.com/fatih/color"
)

var colorize = struct {
	Slot  func(...interface{}) string
	Value func(...interface{}) string
}{
	Slot: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgYellow).SprintFunc())(is...)
	},
	Value: func(is ...interface{}) string {
		return utils.CanColorize(color.New(color.FgGreen).SprintFunc())(is...)
	},
}

type (
	bindings    = tree.Tree[cfg.Slot, symbolic.Value]
	constraints = tree.Tree[symbolic.Value, constraint.Set]
)

// ProgramState maps slots to symbolic values and symbolic values to their
// constraints. States are values: every operation returns a new state and
// shares the untouched parts with the old one. The zero ProgramState is not
// usable; start from Empty.
type ProgramState struct {
	bindings    bindings
	constraints constraints
	// XOR of the hashes of all entries, maintained on every update.
	bhash, chash uint32
}

func Empty() ProgramState {
	return ProgramState{
		bindings:    tree.NewTree[cfg.Slot, symbolic.Value](utils.ComparableHasher[cfg.Slot]()),
		constraints: tree.NewTree[symbolic.Value, constraint.Set](utils.ComparableHasher[symbolic.Value]()),
	}
}

func bindingHash(s cfg.Slot, v symbolic.Value) uint32 {
	return utils.HashCombine(s.Hash(), v.Hash())
}

func constraintHash(v symbolic.Value, cs constraint.Set) uint32 {
	return utils.HashCombine(v.Hash(), cs.Hash())
}

// Bind sets the value of a slot.
func (s ProgramState) Bind(slot cfg.Slot, v symbolic.Value) ProgramState {
	if old, found := s.bindings.Lookup(slot); found {
		if old == v {
			return s
		}
		s.bhash ^= bindingHash(slot, old)
	}
	s.bindings = s.bindings.Insert(slot, v)
	s.bhash ^= bindingHash(slot, v)
	return s
}

// Unbind forgets the value of a slot.
func (s ProgramState) Unbind(slot cfg.Slot) ProgramState {
	if old, found := s.bindings.Lookup(slot); found {
		s.bhash ^= bindingHash(slot, old)
		s.bindings = s.bindings.Remove(slot)
	}
	return s
}

// ValueOf returns the value bound to a slot.
func (s ProgramState) ValueOf(slot cfg.Slot) (symbolic.Value, bool) {
	return s.bindings.Lookup(slot)
}

// setConstraints replaces all constraints on v.
func (s ProgramState) setConstraints(v symbolic.Value, cs constraint.Set) ProgramState {
	if old, found := s.constraints.Lookup(v); found {
		if old.Equal(cs) {
			return s
		}
		s.chash ^= constraintHash(v, old)
		s.constraints = s.constraints.Remove(v)
	}
	if !cs.IsEmpty() {
		s.constraints = s.constraints.Insert(v, cs)
		s.chash ^= constraintHash(v, cs)
	}
	return s
}

// ConstraintsOf returns the constraints recorded for v. Intrinsic
// constraints of literals are not included; see Describe.
func (s ProgramState) ConstraintsOf(v symbolic.Value) constraint.Set {
	cs, _ := s.constraints.Lookup(v)
	return cs
}

// ConstraintOf returns the constraint on v in domain d, including the
// intrinsic constraint of literals.
func (s ProgramState) ConstraintOf(v symbolic.Value, d *constraint.Domain) (constraint.Constraint, bool) {
	if c, ok := s.ConstraintsOf(v).Get(d); ok {
		return c, true
	}
	if lit, ok := v.Constant(); ok {
		return d.Intrinsic(lit)
	}
	return constraint.Constraint{}, false
}

// Describe returns every constraint on v in the given domains, intrinsic
// constraints included.
func (s ProgramState) Describe(v symbolic.Value, domains []*constraint.Domain) constraint.Set {
	cs := s.ConstraintsOf(v)
	if lit, ok := v.Constant(); ok {
		for _, d := range domains {
			if c, ok := d.Intrinsic(lit); ok {
				cs = cs.With(c)
			}
		}
	}
	return cs
}

// Constrain conjoins c with what is known about v. The result is false if
// the conjunction is unsatisfiable, in which case the path must be dropped.
func (s ProgramState) Constrain(v symbolic.Value, c constraint.Constraint) (ProgramState, bool) {
	if lit, ok := v.Constant(); ok {
		if ic, ok := c.Domain().Intrinsic(lit); ok {
			_, ok := ic.Meet(c)
			return s, ok
		}
	}
	cs, ok := s.ConstraintsOf(v).Meet(c)
	if !ok {
		return s, false
	}
	return s.setConstraints(v, cs), true
}

// Transition replaces the constraint on v in the domain of c.
func (s ProgramState) Transition(v symbolic.Value, c constraint.Constraint) ProgramState {
	return s.setConstraints(v, s.ConstraintsOf(v).With(c))
}

// Forget drops the constraint on v in domain d.
func (s ProgramState) Forget(v symbolic.Value, d *constraint.Domain) ProgramState {
	return s.setConstraints(v, s.ConstraintsOf(v).Without(d))
}

// Clear drops every constraint on v.
func (s ProgramState) Clear(v symbolic.Value) ProgramState {
	return s.setConstraints(v, constraint.Set{})
}

// ValuesWith lists the values constrained in domain d, ordered by hash.
func (s ProgramState) ValuesWith(d *constraint.Domain) (res []symbolic.Value) {
	s.constraints.ForEach(func(v symbolic.Value, cs constraint.Set) {
		if _, ok := cs.Get(d); ok {
			res = append(res, v)
		}
	})
	return
}

// ForEachBinding visits the bindings ordered by slot.
func (s ProgramState) ForEachBinding(f func(cfg.Slot, symbolic.Value)) {
	var slots []cfg.Slot
	s.bindings.ForEach(func(slot cfg.Slot, _ symbolic.Value) {
		slots = append(slots, slot)
	})
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, slot := range slots {
		v, _ := s.bindings.Lookup(slot)
		f(slot, v)
	}
}

// Referenced is true if some slot is bound to v.
func (s ProgramState) Referenced(v symbolic.Value) (found bool) {
	s.bindings.ForEach(func(_ cfg.Slot, w symbolic.Value) {
		found = found || w == v
	})
	return
}

// Compact drops the fact constraints of values no slot refers to anymore.
// Parameter values and typestates are kept: the former feed method
// behaviors and the latter are checked at method exit.
func (s ProgramState) Compact() ProgramState {
	live := make(map[symbolic.Value]bool)
	s.bindings.ForEach(func(_ cfg.Slot, v symbolic.Value) {
		live[v] = true
	})

	type update struct {
		v  symbolic.Value
		cs constraint.Set
	}
	var updates []update
	s.constraints.ForEach(func(v symbolic.Value, cs constraint.Set) {
		if live[v] || v.Kind() == symbolic.Param {
			return
		}
		if kept := cs.Filter(constraint.Typestate); kept.Len() != cs.Len() {
			updates = append(updates, update{v, kept})
		}
	})
	for _, u := range updates {
		s = s.setConstraints(u.v, u.cs)
	}
	return s
}

// Merge over-approximates two states. Slots bound in only one state are
// dropped, slots bound to different values are bound to the value produced
// by join, and constraints are joined per domain.
func (s ProgramState) Merge(
	o ProgramState,
	domains []*constraint.Domain,
	join func(slot cfg.Slot, a, b symbolic.Value) symbolic.Value,
) ProgramState {
	if s.Equal(o) {
		return s
	}

	res := Empty()
	res.constraints = s.constraints.Intersect(o.constraints, func(a, b constraint.Set) (constraint.Set, bool) {
		j := a.Join(b)
		return j, !j.IsEmpty()
	})
	res.constraints.ForEach(func(v symbolic.Value, cs constraint.Set) {
		res.chash ^= constraintHash(v, cs)
	})

	s.ForEachBinding(func(slot cfg.Slot, a symbolic.Value) {
		b, found := o.bindings.Lookup(slot)
		switch {
		case !found:
			return
		case a == b:
			res = res.Bind(slot, a)
			return
		}

		v := join(slot, a, b)
		res = res.Bind(slot, v)
		res = res.setConstraints(v, s.Describe(a, domains).Join(o.Describe(b, domains)))
	})
	return res
}

func (s ProgramState) BindingsEqual(o ProgramState) bool {
	return s.bhash == o.bhash && s.bindings.Equal(o.bindings, func(a, b symbolic.Value) bool {
		return a == b
	})
}

func (s ProgramState) BindingsHash() uint32 {
	return s.bhash
}

func (s ProgramState) Equal(o ProgramState) bool {
	return s.chash == o.chash &&
		s.BindingsEqual(o) &&
		s.constraints.Equal(o.constraints, func(a, b constraint.Set) bool {
			return a.Equal(b)
		})
}

func (s ProgramState) Hash() uint32 {
	return utils.HashCombine(s.bhash, s.chash)
}

func (s ProgramState) String() string {
	var bs []string
	s.ForEachBinding(func(slot cfg.Slot, v symbolic.Value) {
		bs = append(bs, fmt.Sprintf("%s ↦ %s", colorize.Slot(slot), colorize.Value(v)))
	})

	var cs []string
	s.constraints.ForEach(func(v symbolic.Value, set constraint.Set) {
		cs = append(cs, fmt.Sprintf("%s: %s", colorize.Value(v), set))
	})
	sort.Strings(cs)

	return i.Indenter().Start("[").NestStringsSep(",", bs...).End("]") +
		i.Indenter().Start(" {").NestStringsSep(",", cs...).End("}")
}
