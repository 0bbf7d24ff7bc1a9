package constraint

import (
	"fmt"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/utils"
)

// Kind separates domains that describe what a value is from domains that
// describe what has happened to it.
type Kind uint8

const (
	// Fact constraints only ever narrow. They are dropped with the value.
	Fact Kind = iota
	// Typestate constraints are replaced on transitions and survive as long
	// as the state does.
	Typestate
)

func (k Kind) String() string {
	if k == Typestate {
		return "typestate"
	}
	return "fact"
}

type Tag uint8

// Domain is a finite set of mutually exclusive tags. A value carries at most
// one tag per domain. Domains are built once, before analysis starts, and
// are read-only afterwards.
type Domain struct {
	name      string
	kind      Kind
	tags      []string
	singleton []bool
	joins     map[[2]Tag]Tag
	intrinsic func(cfg.Constant) string
}

func NewDomain(name string, kind Kind, tags ...string) *Domain {
	if len(tags) == 0 || len(tags) > 256 {
		panic(fmt.Sprintf("domain %s: invalid number of tags %d", name, len(tags)))
	}
	return &Domain{
		name:      name,
		kind:      kind,
		tags:      tags,
		singleton: make([]bool, len(tags)),
		joins:     make(map[[2]Tag]Tag),
	}
}

// WithSingleton marks tags whose values are all equal to each other, such
// as NULL. A value known not to equal a singleton is known to carry another
// tag if the domain has two tags.
func (d *Domain) WithSingleton(tags ...string) *Domain {
	for _, name := range tags {
		d.singleton[d.mustTag(name)] = true
	}
	return d
}

// WithJoin declares that merging a and b yields to instead of nothing.
func (d *Domain) WithJoin(a, b, to string) *Domain {
	ta, tb, tt := d.mustTag(a), d.mustTag(b), d.mustTag(to)
	d.joins[[2]Tag{ta, tb}] = tt
	d.joins[[2]Tag{tb, ta}] = tt
	return d
}

// WithIntrinsic attaches the tags literals carry without being constrained.
// f returns the empty string for literals without an intrinsic tag.
func (d *Domain) WithIntrinsic(f func(cfg.Constant) string) *Domain {
	d.intrinsic = f
	return d
}

func (d *Domain) Name() string { return d.name }
func (d *Domain) Kind() Kind   { return d.kind }
func (d *Domain) Tags() []string {
	return append([]string(nil), d.tags...)
}

func (d *Domain) Tag(name string) (Tag, bool) {
	for i, t := range d.tags {
		if t == name {
			return Tag(i), true
		}
	}
	return 0, false
}

func (d *Domain) mustTag(name string) Tag {
	t, ok := d.Tag(name)
	if !ok {
		panic(fmt.Sprintf("domain %s has no tag %s", d.name, name))
	}
	return t
}

// Constraint returns the constraint for a tag name. It panics on unknown
// tags, which are programming errors in detectors.
func (d *Domain) Constraint(name string) Constraint {
	return Constraint{d, d.mustTag(name)}
}

// Intrinsic returns the constraint a literal carries in this domain.
func (d *Domain) Intrinsic(c cfg.Constant) (Constraint, bool) {
	if d.intrinsic == nil || c == nil {
		return Constraint{}, false
	}
	name := d.intrinsic(c)
	if name == "" {
		return Constraint{}, false
	}
	return d.Constraint(name), true
}

// Complement returns the only other tag of a two-tag domain.
func (d *Domain) Complement(c Constraint) (Constraint, bool) {
	if c.domain != d || len(d.tags) != 2 {
		return Constraint{}, false
	}
	return Constraint{d, 1 - c.tag}, true
}

func (d *Domain) String() string {
	return colorize.Domain(d.name)
}

// Constraint is one tag of one domain. It is compared with ==.
// The zero Constraint is absent.
type Constraint struct {
	domain *Domain
	tag    Tag
}

func (c Constraint) Valid() bool       { return c.domain != nil }
func (c Constraint) Domain() *Domain   { return c.domain }
func (c Constraint) Tag() Tag          { return c.tag }
func (c Constraint) Name() string      { return c.domain.tags[c.tag] }
func (c Constraint) IsSingleton() bool { return c.domain.singleton[c.tag] }

// Meet conjoins two constraints of the same domain. The result is false if
// they contradict.
func (c Constraint) Meet(o Constraint) (Constraint, bool) {
	if c.domain != o.domain {
		panic(fmt.Sprintf("meet of %s and %s across domains", c, o))
	}
	return c, c.tag == o.tag
}

// Join is the least constraint implied by both. The result is false if
// nothing is implied.
func (c Constraint) Join(o Constraint) (Constraint, bool) {
	if c.domain != o.domain {
		panic(fmt.Sprintf("join of %s and %s across domains", c, o))
	}
	if c.tag == o.tag {
		return c, true
	}
	if t, ok := c.domain.joins[[2]Tag{c.tag, o.tag}]; ok {
		return Constraint{c.domain, t}, true
	}
	return Constraint{}, false
}

func (c Constraint) Hash() uint32 {
	if c.domain == nil {
		return 0
	}
	return utils.HashCombine(utils.HashString(c.domain.name), uint32(c.tag)+1)
}

func (c Constraint) String() string {
	if c.domain == nil {
		return "⊤"
	}
	return colorize.Tag(c.Name())
}
