package cfg

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every violation of the frontend contract.
var ErrMalformed = errors.New("malformed control flow graph")

// MalformedError locates a contract violation. Method and Block are -1 when
// the violation is not specific to one.
type MalformedError struct {
	Unit   UnitID
	Method MethodID
	Block  BlockID
	Reason string
}

func (e *MalformedError) Error() string {
	switch {
	case e.Method < 0:
		return fmt.Sprintf("unit %d: %s", int(e.Unit), e.Reason)
	case e.Block < 0:
		return fmt.Sprintf("unit %d, method %d: %s", int(e.Unit), int(e.Method), e.Reason)
	}
	return fmt.Sprintf("unit %d, method %d, %s: %s", int(e.Unit), int(e.Method), e.Block, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// Validate checks the whole program. It returns the first violation found.
func Validate(prog *Program) error {
	for i, m := range prog.Methods {
		if m == nil || m.ID != MethodID(i) {
			return &MalformedError{-1, MethodID(i), -1, "method ID does not match its index"}
		}
		if m.Unit < 0 || int(m.Unit) >= len(prog.Units) {
			return &MalformedError{m.Unit, m.ID, -1, "method belongs to an unknown unit"}
		}
	}
	for i, u := range prog.Units {
		if u == nil || u.ID != UnitID(i) {
			return &MalformedError{UnitID(i), -1, -1, "unit ID does not match its index"}
		}
		if err := ValidateUnit(prog, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUnit checks the methods of a single unit.
func ValidateUnit(prog *Program, id UnitID) error {
	unit := prog.Units[id]
	for _, mid := range unit.Methods {
		method := prog.Method(mid)
		if method == nil {
			return &MalformedError{id, mid, -1, "unit refers to an unknown method"}
		}
		if method.Unit != id {
			return &MalformedError{id, mid, -1, "method is listed in a unit it does not belong to"}
		}
		if err := (&validator{prog, method}).check(); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	prog   *Program
	method *Method
}

func (v *validator) fail(b BlockID, format string, args ...interface{}) error {
	return &MalformedError{v.method.Unit, v.method.ID, b, fmt.Sprintf(format, args...)}
}

func (v *validator) slot(b BlockID, s Slot) error {
	if s < 0 || int(s) >= len(v.method.Slots) {
		return v.fail(b, "slot %d out of range", int(s))
	}
	return nil
}

func (v *validator) target(b BlockID, t BlockID) error {
	if t < 0 || int(t) >= len(v.method.Blocks) {
		return v.fail(b, "branch target %d out of range", int(t))
	}
	return nil
}

func (v *validator) check() error {
	m := v.method
	if len(m.Blocks) == 0 {
		return v.fail(-1, "method has no blocks")
	}
	for _, p := range m.Params {
		if err := v.slot(-1, p); err != nil {
			return err
		}
	}
	for _, info := range m.Slots {
		if info.Type != NoType && (info.Type < 0 || int(info.Type) >= len(v.prog.Types)) {
			return v.fail(-1, "slot type %d out of range", int(info.Type))
		}
	}

	for i, b := range m.Blocks {
		if b == nil || b.ID != BlockID(i) {
			return v.fail(BlockID(i), "block ID does not match its index")
		}
		if b.Handler != NoBlock {
			if err := v.target(b.ID, b.Handler); err != nil {
				return err
			}
		}
		for _, instr := range b.Instrs {
			if err := v.instruction(b.ID, instr); err != nil {
				return err
			}
		}
		if err := v.terminator(b.ID, b.Term); err != nil {
			return err
		}
		if len(b.Positions) != 0 && len(b.Positions) != len(b.Instrs)+1 {
			return v.fail(b.ID, "%d positions for %d instructions", len(b.Positions), len(b.Instrs))
		}
	}
	return nil
}

func (v *validator) instruction(b BlockID, instr Instruction) error {
	if instr == nil {
		return v.fail(b, "nil instruction")
	}
	for _, s := range Uses(instr) {
		if err := v.slot(b, s); err != nil {
			return err
		}
	}
	for _, s := range Defs(instr) {
		if err := v.slot(b, s); err != nil {
			return err
		}
	}

	switch i := instr.(type) {
	case Const:
		if i.Value == nil {
			return v.fail(b, "constant without a value")
		}
	case New:
		if i.Type != NoType && (i.Type < 0 || int(i.Type) >= len(v.prog.Types)) {
			return v.fail(b, "allocated type %d out of range", int(i.Type))
		}
	case Call:
		if i.Receiver && len(i.Args) == 0 {
			return v.fail(b, "call with a receiver but no arguments")
		}
		switch t := i.Target.(type) {
		case Internal:
			callee := v.prog.Method(t.Method)
			if callee == nil {
				return v.fail(b, "call to unknown method %d", int(t.Method))
			}
			if len(i.Args) != len(callee.Params) {
				return v.fail(b, "call to %s with %d arguments, expected %d",
					callee.Name, len(i.Args), len(callee.Params))
			}
			if len(i.Results) != 0 && len(i.Results) != callee.Results {
				return v.fail(b, "call to %s with %d results, expected %d",
					callee.Name, len(i.Results), callee.Results)
			}
		case External, Unknown:
		default:
			return v.fail(b, "call without a target")
		}
	}
	return nil
}

func (v *validator) terminator(b BlockID, term Terminator) error {
	if term == nil {
		return v.fail(b, "block is not terminated")
	}

	switch t := term.(type) {
	case Jump:
		return v.target(b, t.Target)
	case If:
		if t.Cond == nil {
			return v.fail(b, "branch without a condition")
		}
		if err := v.target(b, t.Then); err != nil {
			return err
		}
		if err := v.target(b, t.Else); err != nil {
			return err
		}
		if c, ok := t.Cond.(Compare); ok && !IsComparison(c.Op) {
			return v.fail(b, "%s is not a comparison", c.Op)
		}
	case Return:
		if len(t.Values) != v.method.Results {
			return v.fail(b, "returning %d values, expected %d", len(t.Values), v.method.Results)
		}
	}

	for _, s := range TermUses(term) {
		if err := v.slot(b, s); err != nil {
			return err
		}
	}
	return nil
}
