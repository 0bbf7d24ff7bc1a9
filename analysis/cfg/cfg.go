package cfg

import (
	"go/token"
	"strings"

	"github.com/cs-au-dk/symbex/utils"
)

// Frontend entities live in arenas and refer to each other by index.
type (
	MethodID int
	BlockID  int
	Slot     int
	TypeID   int
	UnitID   int
)

const (
	NoSlot  Slot    = -1
	NoBlock BlockID = -1
	NoType  TypeID  = -1
)

func (s Slot) Hash() uint32 {
	return utils.HashInt(int64(s))
}

// Program is the immutable, already resolved input of the engine.
// It is shared read-only between all workers.
type Program struct {
	Methods []*Method
	Types   []Type
	Units   []*Unit
	// Fset resolves the positions recorded in blocks. It may be nil.
	Fset *token.FileSet
}

// Unit is a compilation unit. Units are analyzed independently, and a
// malformed unit does not prevent the analysis of the others.
type Unit struct {
	ID      UnitID
	Name    string
	Methods []MethodID
}

// SlotInfo describes a local variable of a method.
type SlotInfo struct {
	Name string
	Type TypeID
}

// Method is the control-flow graph of a single function body.
// Block 0 is the entry block.
type Method struct {
	ID      MethodID
	Name    string
	Unit    UnitID
	Params  []Slot
	Results int
	Slots   []SlotInfo
	Blocks  []*Block
	Pos     token.Pos
}

// Block is a straight-line sequence of instructions ending in a terminator.
type Block struct {
	ID     BlockID
	Instrs []Instruction
	Term   Terminator
	// Handler receives the exceptional flow of calls and throws in the
	// block. NoBlock routes it to the exceptional exit of the method.
	Handler BlockID
	// Positions holds a position per instruction, plus one for the
	// terminator. It may be empty.
	Positions []token.Pos
}

// Succs lists the normal successors of the block, followed by its handler.
func (b *Block) Succs() (res []BlockID) {
	switch t := b.Term.(type) {
	case Jump:
		res = append(res, t.Target)
	case If:
		res = append(res, t.Then)
		if t.Else != t.Then {
			res = append(res, t.Else)
		}
	}
	if b.Handler != NoBlock {
		res = append(res, b.Handler)
	}
	return
}

// Pos returns the position of the instruction at index, where
// index == len(Instrs) denotes the terminator.
func (b *Block) Pos(index int) token.Pos {
	if index < 0 || index >= len(b.Positions) {
		return token.NoPos
	}
	return b.Positions[index]
}

// Method retrieves a method by ID, or nil if it is out of range.
func (p *Program) Method(id MethodID) *Method {
	if id < 0 || int(id) >= len(p.Methods) {
		return nil
	}
	return p.Methods[id]
}

// Type retrieves a type by ID. Out of range IDs resolve to the unknown type.
func (p *Program) Type(id TypeID) Type {
	if id < 0 || int(id) >= len(p.Types) {
		return Type{}
	}
	return p.Types[id]
}

// SlotType resolves the declared type of a slot.
func (p *Program) SlotType(m MethodID, s Slot) Type {
	method := p.Method(m)
	if method == nil || s < 0 || int(s) >= len(method.Slots) {
		return Type{}
	}
	return p.Type(method.Slots[s].Type)
}

// SlotName resolves the source name of a slot, falling back to a
// synthesized name for temporaries.
func (p *Program) SlotName(m MethodID, s Slot) string {
	method := p.Method(m)
	if method == nil || s < 0 || int(s) >= len(method.Slots) || method.Slots[s].Name == "" {
		return s.String()
	}
	return method.Slots[s].Name
}

// Position resolves the source position of an instruction.
func (p *Program) Position(m MethodID, b BlockID, index int) token.Position {
	method := p.Method(m)
	if p.Fset == nil || method == nil {
		return token.Position{}
	}
	pos := method.Pos
	if b >= 0 && int(b) < len(method.Blocks) {
		if ipos := method.Blocks[b].Pos(index); ipos.IsValid() {
			pos = ipos
		}
	}
	return p.Fset.Position(pos)
}

// MethodByName returns the first method whose name ends with the given suffix.
func (p *Program) MethodByName(suffix string) (*Method, bool) {
	for _, m := range p.Methods {
		if m.Name == suffix {
			return m, true
		}
	}
	for _, m := range p.Methods {
		if strings.HasSuffix(m.Name, suffix) {
			return m, true
		}
	}
	return nil, false
}

// Callees returns the methods directly called by m through
// internal call targets, in order of first occurrence.
func (p *Program) Callees(m MethodID) (res []MethodID) {
	seen := map[MethodID]bool{}
	for _, b := range p.Method(m).Blocks {
		for _, i := range b.Instrs {
			if call, ok := i.(Call); ok {
				if in, ok := call.Target.(Internal); ok && !seen[in.Method] {
					seen[in.Method] = true
					res = append(res, in.Method)
				}
			}
		}
	}
	return
}
