// Package symbolic provides the identities of unknown runtime values.
package symbolic

import (
	"fmt"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/defs"
	"github.com/cs-au-dk/symbex/utils"
)

type Kind uint8

const (
	// Fresh values are drawn from a store counter.
	Fresh Kind = iota + 1
	// Param values stand for the arguments a method is entered with.
	Param
	// Site values are created by an instruction. Their identity is the point
	// and an ordinal, so re-exploring the instruction yields the same value.
	Site
	// Const values are the canonical values of literals.
	Const
	// Joined values stand for slots on which merged states disagreed.
	Joined
)

var kindNames = [...]string{
	Fresh:  "fresh",
	Param:  "param",
	Site:   "site",
	Const:  "const",
	Joined: "join",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "invalid"
}

// Value is an opaque identity for an unknown runtime value. Two values are
// the same runtime value only if they are ==. The zero Value is invalid.
type Value struct {
	kind  Kind
	id    int
	point defs.ProgramPoint
	c     cfg.Constant
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) Valid() bool {
	return v.kind != 0
}

// Constant returns the literal a Const value stands for.
func (v Value) Constant() (cfg.Constant, bool) {
	return v.c, v.kind == Const
}

// ParamIndex returns the parameter index of a Param value.
func (v Value) ParamIndex() (int, bool) {
	return v.id, v.kind == Param
}

// Point returns the creating point of Site and Joined values.
func (v Value) Point() (defs.ProgramPoint, bool) {
	return v.point, v.kind == Site || v.kind == Joined
}

func (v Value) Hash() uint32 {
	var ch uint32
	if v.c != nil {
		ch = v.c.Hash()
	}
	return utils.HashCombine(
		uint32(v.kind),
		utils.HashInt(int64(v.id)),
		v.point.Hash(),
		ch,
	)
}

func (v Value) String() string {
	switch v.kind {
	case Fresh:
		return fmt.Sprintf("$%d", v.id)
	case Param:
		return fmt.Sprintf("$p%d", v.id)
	case Site:
		return fmt.Sprintf("$%v/%d", v.point, v.id)
	case Const:
		return "$" + v.c.String()
	case Joined:
		return fmt.Sprintf("$join(%v/%d)", v.point, v.id)
	}
	return "$invalid"
}
