package cfg

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/cs-au-dk/symbex/utils/slices"
)

func (s Slot) String() string {
	if s == NoSlot {
		return "_"
	}
	return fmt.Sprintf("t%d", int(s))
}

func (b BlockID) String() string {
	return fmt.Sprintf("b%d", int(b))
}

// Instruction is the closed set of straight-line operations.
type Instruction interface {
	fmt.Stringer
	instruction()
}

type (
	// Assign copies the value of Src into Dst.
	Assign struct{ Dst, Src Slot }

	// Const binds Dst to a literal.
	Const struct {
		Dst   Slot
		Value Constant
	}

	// New binds Dst to a freshly allocated, non-nil object.
	New struct {
		Dst  Slot
		Type TypeID
	}

	// Load reads through the pointer in Ptr. Field is empty for a plain
	// dereference. With Addr set, only the address of the field is computed,
	// which still requires Ptr to be non-nil.
	Load struct {
		Dst, Ptr Slot
		Field    string
		Addr     bool
	}

	// Store writes Src through the pointer in Ptr.
	Store struct {
		Ptr   Slot
		Field string
		Src   Slot
	}

	UnOp struct {
		Dst Slot
		Op  token.Token
		X   Slot
	}

	BinOp struct {
		Dst  Slot
		Op   token.Token
		X, Y Slot
	}

	// Call invokes Target. If Receiver is set, Args[0] is the receiver.
	// Results may contain NoSlot for results that are never read.
	Call struct {
		Results  []Slot
		Target   CallTarget
		Args     []Slot
		Receiver bool
	}

	// Havoc binds Dst to a value about which nothing is known.
	Havoc struct{ Dst Slot }
)

func (Assign) instruction() {}
func (Const) instruction()  {}
func (New) instruction()    {}
func (Load) instruction()   {}
func (Store) instruction()  {}
func (UnOp) instruction()   {}
func (BinOp) instruction()  {}
func (Call) instruction()   {}
func (Havoc) instruction()  {}

func (i Assign) String() string { return fmt.Sprintf("%s = %s", i.Dst, i.Src) }
func (i Const) String() string  { return fmt.Sprintf("%s = const %s", i.Dst, i.Value) }
func (i New) String() string    { return fmt.Sprintf("%s = new #%d", i.Dst, int(i.Type)) }
func (i UnOp) String() string   { return fmt.Sprintf("%s = %s%s", i.Dst, i.Op, i.X) }
func (i BinOp) String() string  { return fmt.Sprintf("%s = %s %s %s", i.Dst, i.X, i.Op, i.Y) }
func (i Havoc) String() string  { return fmt.Sprintf("%s = havoc", i.Dst) }

func (i Load) String() string {
	op := "*"
	if i.Addr {
		op = "&"
	}
	if i.Field == "" {
		return fmt.Sprintf("%s = %s%s", i.Dst, op, i.Ptr)
	}
	return fmt.Sprintf("%s = %s%s.%s", i.Dst, op, i.Ptr, i.Field)
}

func (i Store) String() string {
	if i.Field == "" {
		return fmt.Sprintf("*%s = %s", i.Ptr, i.Src)
	}
	return fmt.Sprintf("*%s.%s = %s", i.Ptr, i.Field, i.Src)
}

func slotList(slots []Slot) string {
	strs := make([]string, len(slots))
	for i, s := range slots {
		strs[i] = s.String()
	}
	return strings.Join(strs, ", ")
}

func (i Call) String() string {
	str := fmt.Sprintf("call %s(%s)", i.Target, slotList(i.Args))
	if i.Receiver {
		str = fmt.Sprintf("call %s(recv %s)", i.Target, slotList(i.Args))
	}
	if len(i.Results) > 0 {
		str = slotList(i.Results) + " = " + str
	}
	return str
}

// CallTarget identifies the callee of a call.
type CallTarget interface {
	fmt.Stringer
	callTarget()
}

type (
	// Internal targets have a body in the program.
	Internal struct{ Method MethodID }
	// External targets are known by name only.
	External struct{ Name string }
	// Unknown targets could not be resolved.
	Unknown struct{}
)

func (Internal) callTarget() {}
func (External) callTarget() {}
func (Unknown) callTarget()  {}

func (t Internal) String() string { return fmt.Sprintf("m%d", int(t.Method)) }
func (t External) String() string { return t.Name }
func (Unknown) String() string    { return "?" }

// Terminator ends a block.
type Terminator interface {
	fmt.Stringer
	terminator()
}

type (
	Jump struct{ Target BlockID }

	// If splits control flow on Cond.
	If struct {
		Cond       Condition
		Then, Else BlockID
	}

	Return struct{ Values []Slot }

	// Throw raises Value, which may be NoSlot, as an exception.
	Throw struct{ Value Slot }
)

func (Jump) terminator()   {}
func (If) terminator()     {}
func (Return) terminator() {}
func (Throw) terminator()  {}

func (t Jump) String() string   { return fmt.Sprintf("jump %s", t.Target) }
func (t If) String() string     { return fmt.Sprintf("if %s then %s else %s", t.Cond, t.Then, t.Else) }
func (t Return) String() string { return strings.TrimSpace("return " + slotList(t.Values)) }
func (t Throw) String() string  { return fmt.Sprintf("throw %s", t.Value) }

// Condition is the closed set of branch conditions.
type Condition interface {
	fmt.Stringer
	condition()
}

type (
	IsNil struct{ X Slot }

	// Compare holds when X Op Y does, for one of the comparison tokens
	// EQL, NEQ, LSS, LEQ, GTR and GEQ.
	Compare struct {
		Op   token.Token
		X, Y Slot
	}

	// Truth holds when the boolean in X is true.
	Truth struct{ X Slot }
)

func (IsNil) condition()   {}
func (Compare) condition() {}
func (Truth) condition()   {}

func (c IsNil) String() string   { return fmt.Sprintf("%s == nil", c.X) }
func (c Compare) String() string { return fmt.Sprintf("%s %s %s", c.X, c.Op, c.Y) }
func (c Truth) String() string   { return c.X.String() }

// Uses lists the slots read by an instruction.
func Uses(i Instruction) []Slot {
	switch i := i.(type) {
	case Assign:
		return []Slot{i.Src}
	case Load:
		return []Slot{i.Ptr}
	case Store:
		return []Slot{i.Ptr, i.Src}
	case UnOp:
		return []Slot{i.X}
	case BinOp:
		return []Slot{i.X, i.Y}
	case Call:
		return i.Args
	case Const, New, Havoc:
		return nil
	}
	panic("???")
}

// Defs lists the slots written by an instruction.
func Defs(i Instruction) []Slot {
	switch i := i.(type) {
	case Assign:
		return []Slot{i.Dst}
	case Const:
		return []Slot{i.Dst}
	case New:
		return []Slot{i.Dst}
	case Load:
		return []Slot{i.Dst}
	case UnOp:
		return []Slot{i.Dst}
	case BinOp:
		return []Slot{i.Dst}
	case Havoc:
		return []Slot{i.Dst}
	case Call:
		res := make([]Slot, 0, len(i.Results))
		for _, r := range i.Results {
			if r != NoSlot {
				res = append(res, r)
			}
		}
		return res
	case Store:
		return nil
	}
	panic("???")
}

// TermUses lists the slots read by a terminator.
func TermUses(t Terminator) []Slot {
	switch t := t.(type) {
	case Jump:
		return nil
	case If:
		switch c := t.Cond.(type) {
		case IsNil:
			return []Slot{c.X}
		case Compare:
			return []Slot{c.X, c.Y}
		case Truth:
			return []Slot{c.X}
		}
	case Return:
		return t.Values
	case Throw:
		if t.Value == NoSlot {
			return nil
		}
		return []Slot{t.Value}
	}
	panic("???")
}

// IsComparison is true for the tokens a Compare condition may use.
func IsComparison(op token.Token) bool {
	return slices.OneOf(op, token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ)
}
