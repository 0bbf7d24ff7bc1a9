package cfg

import (
	"fmt"
	"strconv"

	"github.com/cs-au-dk/symbex/utils"
)

type TypeKind uint8

const (
	// KindUnknown is the type of anything the frontend could not resolve.
	KindUnknown TypeKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindPointer
	KindInterface
	KindSlice
	KindMap
	KindChan
	KindFunc
	KindStruct
	KindOther
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindPointer:   "pointer",
	KindInterface: "interface",
	KindSlice:     "slice",
	KindMap:       "map",
	KindChan:      "chan",
	KindFunc:      "func",
	KindStruct:    "struct",
	KindOther:     "other",
}

func (k TypeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Nillable is true for kinds whose zero value is nil.
func (k TypeKind) Nillable() bool {
	switch k {
	case KindPointer, KindInterface, KindSlice, KindMap, KindChan, KindFunc:
		return true
	}
	return false
}

// Type is the resolved type of a slot. Elem is the pointee of pointer types
// and NoType otherwise. The zero Type is the unknown type.
type Type struct {
	Kind TypeKind
	Name string
	Elem TypeID
}

func (t Type) IsUnknown() bool {
	return t.Kind == KindUnknown
}

func (t Type) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Kind.String()
}

// Constant is the closed set of literal values. All variants are comparable,
// so constants may be compared with == and used as map keys.
type Constant interface {
	fmt.Stringer
	Hash() uint32
	constant()
}

type (
	NilConst    struct{}
	IntConst    struct{ V int64 }
	BoolConst   struct{ V bool }
	StringConst struct{ V string }
	// UnknownConst is a literal the frontend could not represent.
	// Two unknown literals are never known to be equal.
	UnknownConst struct{}
)

func (NilConst) constant()     {}
func (IntConst) constant()     {}
func (BoolConst) constant()    {}
func (StringConst) constant()  {}
func (UnknownConst) constant() {}

func (NilConst) String() string      { return "nil" }
func (c IntConst) String() string    { return strconv.FormatInt(c.V, 10) }
func (c BoolConst) String() string   { return strconv.FormatBool(c.V) }
func (c StringConst) String() string { return strconv.Quote(c.V) }
func (UnknownConst) String() string  { return "?" }

func (NilConst) Hash() uint32 { return 1 }
func (c IntConst) Hash() uint32 {
	return utils.HashCombine(2, utils.HashInt(c.V))
}
func (c BoolConst) Hash() uint32 {
	if c.V {
		return 3
	}
	return 4
}
func (c StringConst) Hash() uint32 {
	return utils.HashCombine(5, utils.HashString(c.V))
}
func (UnknownConst) Hash() uint32 { return 6 }
