package constraint

import (
	"sort"
	"strings"

	"github.com/cs-au-dk/symbex/utils"
)

// Set is the conjunction of the constraints on one value, at most one per
// domain, ordered by domain name. Sets are immutable. The zero Set is empty.
type Set struct {
	cs []Constraint
}

func Of(cs ...Constraint) (s Set) {
	for _, c := range cs {
		s = s.With(c)
	}
	return
}

func (s Set) find(d *Domain) (int, bool) {
	i := sort.Search(len(s.cs), func(i int) bool {
		return s.cs[i].domain.name >= d.name
	})
	return i, i < len(s.cs) && s.cs[i].domain == d
}

func (s Set) Len() int      { return len(s.cs) }
func (s Set) IsEmpty() bool { return len(s.cs) == 0 }

// Get returns the constraint in domain d.
func (s Set) Get(d *Domain) (Constraint, bool) {
	if i, ok := s.find(d); ok {
		return s.cs[i], true
	}
	return Constraint{}, false
}

// With replaces the constraint in the domain of c.
func (s Set) With(c Constraint) Set {
	i, found := s.find(c.domain)
	if found {
		if s.cs[i] == c {
			return s
		}
		cs := append([]Constraint(nil), s.cs...)
		cs[i] = c
		return Set{cs}
	}
	cs := make([]Constraint, 0, len(s.cs)+1)
	cs = append(cs, s.cs[:i]...)
	cs = append(cs, c)
	cs = append(cs, s.cs[i:]...)
	return Set{cs}
}

// Without drops the constraint in domain d.
func (s Set) Without(d *Domain) Set {
	i, found := s.find(d)
	if !found {
		return s
	}
	cs := make([]Constraint, 0, len(s.cs)-1)
	cs = append(cs, s.cs[:i]...)
	cs = append(cs, s.cs[i+1:]...)
	return Set{cs}
}

// Meet adds c to the conjunction. The result is false on a contradiction.
func (s Set) Meet(c Constraint) (Set, bool) {
	if old, found := s.Get(c.domain); found {
		if _, ok := old.Meet(c); !ok {
			return s, false
		}
		return s, true
	}
	return s.With(c), true
}

// MeetSet conjoins two sets.
func (s Set) MeetSet(o Set) (Set, bool) {
	ok := true
	for _, c := range o.cs {
		if s, ok = s.Meet(c); !ok {
			return s, false
		}
	}
	return s, true
}

// Join keeps what is implied by both sets.
func (s Set) Join(o Set) Set {
	var cs []Constraint
	for _, c := range s.cs {
		if oc, found := o.Get(c.domain); found {
			if j, ok := c.Join(oc); ok {
				cs = append(cs, j)
			}
		}
	}
	if len(cs) == len(s.cs) {
		return s.withSame(cs)
	}
	return Set{cs}
}

func (s Set) withSame(cs []Constraint) Set {
	for i := range cs {
		if cs[i] != s.cs[i] {
			return Set{cs}
		}
	}
	return s
}

// Filter keeps the constraints of domains of the given kind.
func (s Set) Filter(kind Kind) Set {
	var cs []Constraint
	for _, c := range s.cs {
		if c.domain.kind == kind {
			cs = append(cs, c)
		}
	}
	if len(cs) == len(s.cs) {
		return s
	}
	return Set{cs}
}

func (s Set) ForEach(f func(Constraint)) {
	for _, c := range s.cs {
		f(c)
	}
}

func (s Set) Equal(o Set) bool {
	if len(s.cs) != len(o.cs) {
		return false
	}
	for i := range s.cs {
		if s.cs[i] != o.cs[i] {
			return false
		}
	}
	return true
}

func (s Set) Hash() uint32 {
	hs := make([]uint32, len(s.cs))
	for i, c := range s.cs {
		hs[i] = c.Hash()
	}
	return utils.HashCombine(hs...)
}

func (s Set) String() string {
	strs := make([]string, len(s.cs))
	for i, c := range s.cs {
		strs[i] = c.String()
	}
	return "{" + strings.Join(strs, ", ") + "}"
}
