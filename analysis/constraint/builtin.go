package constraint

import (
	"github.com/cs-au-dk/symbex/analysis/cfg"
)

// Nullness tracks whether a value is nil.
var Nullness = NewDomain("nullness", Fact, "NULL", "NOT_NULL").
	WithSingleton("NULL").
	WithIntrinsic(func(c cfg.Constant) string {
		switch c.(type) {
		case cfg.NilConst:
			return "NULL"
		case cfg.IntConst, cfg.BoolConst, cfg.StringConst:
			return "NOT_NULL"
		}
		return ""
	})

// Boolean tracks the truth of boolean values.
var Boolean = NewDomain("boolean", Fact, "TRUE", "FALSE").
	WithSingleton("TRUE", "FALSE").
	WithIntrinsic(func(c cfg.Constant) string {
		if b, ok := c.(cfg.BoolConst); ok {
			if b.V {
				return "TRUE"
			}
			return "FALSE"
		}
		return ""
	})

var (
	Null    = Nullness.Constraint("NULL")
	NotNull = Nullness.Constraint("NOT_NULL")
	True    = Boolean.Constraint("TRUE")
	False   = Boolean.Constraint("FALSE")
)

// Builtin lists the domains the engine itself relies on.
func Builtin() []*Domain {
	return []*Domain{Nullness, Boolean}
}
