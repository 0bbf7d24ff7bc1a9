package cfg

import (
	"go/token"
)

// ProgramBuilder assembles a Program. Frontends and tests use it to avoid
// managing arena indices by hand.
type ProgramBuilder struct {
	prog  *Program
	types map[Type]TypeID
}

type UnitBuilder struct {
	pb   *ProgramBuilder
	unit *Unit
}

type MethodBuilder struct {
	pb     *ProgramBuilder
	method *Method
}

type BlockBuilder struct {
	mb    *MethodBuilder
	block *Block
	// Position attached to the next appended instruction.
	pos token.Pos
}

func NewProgram(fset *token.FileSet) *ProgramBuilder {
	return &ProgramBuilder{
		prog:  &Program{Fset: fset},
		types: make(map[Type]TypeID),
	}
}

// Type interns a type.
func (pb *ProgramBuilder) Type(t Type) TypeID {
	if id, ok := pb.types[t]; ok {
		return id
	}
	id := TypeID(len(pb.prog.Types))
	pb.prog.Types = append(pb.prog.Types, t)
	pb.types[t] = id
	return id
}

// Kind interns an anonymous type of the given kind.
func (pb *ProgramBuilder) Kind(k TypeKind) TypeID {
	return pb.Type(Type{Kind: k, Elem: NoType})
}

func (pb *ProgramBuilder) Unit(name string) *UnitBuilder {
	u := &Unit{ID: UnitID(len(pb.prog.Units)), Name: name}
	pb.prog.Units = append(pb.prog.Units, u)
	return &UnitBuilder{pb, u}
}

// Build returns the assembled program after validating it.
func (pb *ProgramBuilder) Build() (*Program, error) {
	return pb.prog, Validate(pb.prog)
}

// Program returns the assembled program without validating it.
func (pb *ProgramBuilder) Program() *Program {
	return pb.prog
}

// Method adds a method to the unit. Its ID is known immediately, so
// calls to it may be built before its body.
func (ub *UnitBuilder) Method(name string) *MethodBuilder {
	prog := ub.pb.prog
	m := &Method{
		ID:   MethodID(len(prog.Methods)),
		Name: name,
		Unit: ub.unit.ID,
	}
	prog.Methods = append(prog.Methods, m)
	ub.unit.Methods = append(ub.unit.Methods, m.ID)
	return &MethodBuilder{ub.pb, m}
}

func (mb *MethodBuilder) ID() MethodID {
	return mb.method.ID
}

func (mb *MethodBuilder) Method() *Method {
	return mb.method
}

func (mb *MethodBuilder) SetPos(pos token.Pos) *MethodBuilder {
	mb.method.Pos = pos
	return mb
}

// Local allocates a slot.
func (mb *MethodBuilder) Local(name string, typ TypeID) Slot {
	s := Slot(len(mb.method.Slots))
	mb.method.Slots = append(mb.method.Slots, SlotInfo{name, typ})
	return s
}

// Param allocates a slot and appends it to the parameters.
func (mb *MethodBuilder) Param(name string, typ TypeID) Slot {
	s := mb.Local(name, typ)
	mb.method.Params = append(mb.method.Params, s)
	return s
}

func (mb *MethodBuilder) Results(n int) *MethodBuilder {
	mb.method.Results = n
	return mb
}

// Block appends an empty block. The first block is the entry.
func (mb *MethodBuilder) Block() *BlockBuilder {
	b := &Block{ID: BlockID(len(mb.method.Blocks)), Handler: NoBlock}
	mb.method.Blocks = append(mb.method.Blocks, b)
	return &BlockBuilder{mb: mb, block: b}
}

func (bb *BlockBuilder) ID() BlockID {
	return bb.block.ID
}

// At sets the position of the instructions appended next.
func (bb *BlockBuilder) At(pos token.Pos) *BlockBuilder {
	bb.pos = pos
	return bb
}

// Handler routes exceptional flow out of the block to h.
func (bb *BlockBuilder) Handler(h BlockID) *BlockBuilder {
	bb.block.Handler = h
	return bb
}

// Add appends an instruction.
func (bb *BlockBuilder) Add(i Instruction) *BlockBuilder {
	bb.block.Instrs = append(bb.block.Instrs, i)
	bb.block.Positions = append(bb.block.Positions, bb.pos)
	return bb
}

func (bb *BlockBuilder) Assign(dst, src Slot) *BlockBuilder {
	return bb.Add(Assign{dst, src})
}

func (bb *BlockBuilder) Const(dst Slot, c Constant) *BlockBuilder {
	return bb.Add(Const{dst, c})
}

func (bb *BlockBuilder) New(dst Slot, typ TypeID) *BlockBuilder {
	return bb.Add(New{dst, typ})
}

func (bb *BlockBuilder) Load(dst, ptr Slot, field string) *BlockBuilder {
	return bb.Add(Load{Dst: dst, Ptr: ptr, Field: field})
}

func (bb *BlockBuilder) FieldAddr(dst, ptr Slot, field string) *BlockBuilder {
	return bb.Add(Load{Dst: dst, Ptr: ptr, Field: field, Addr: true})
}

func (bb *BlockBuilder) Store(ptr Slot, field string, src Slot) *BlockBuilder {
	return bb.Add(Store{ptr, field, src})
}

func (bb *BlockBuilder) UnOp(dst Slot, op token.Token, x Slot) *BlockBuilder {
	return bb.Add(UnOp{dst, op, x})
}

func (bb *BlockBuilder) BinOp(dst Slot, op token.Token, x, y Slot) *BlockBuilder {
	return bb.Add(BinOp{dst, op, x, y})
}

func (bb *BlockBuilder) Call(results []Slot, target CallTarget, args ...Slot) *BlockBuilder {
	return bb.Add(Call{Results: results, Target: target, Args: args})
}

// Invoke appends a call with args[0] as the receiver.
func (bb *BlockBuilder) Invoke(results []Slot, target CallTarget, args ...Slot) *BlockBuilder {
	return bb.Add(Call{Results: results, Target: target, Args: args, Receiver: true})
}

func (bb *BlockBuilder) Havoc(dst Slot) *BlockBuilder {
	return bb.Add(Havoc{dst})
}

func (bb *BlockBuilder) terminate(t Terminator) {
	bb.block.Term = t
	bb.block.Positions = append(bb.block.Positions, bb.pos)
}

func (bb *BlockBuilder) Jump(target *BlockBuilder) {
	bb.terminate(Jump{target.ID()})
}

func (bb *BlockBuilder) If(cond Condition, then, els *BlockBuilder) {
	bb.terminate(If{cond, then.ID(), els.ID()})
}

func (bb *BlockBuilder) Return(values ...Slot) {
	bb.terminate(Return{values})
}

func (bb *BlockBuilder) Throw(value Slot) {
	bb.terminate(Throw{value})
}

// Terminate sets an arbitrary terminator.
func (bb *BlockBuilder) Terminate(t Terminator) {
	bb.terminate(t)
}
