package frontend

import (
	"errors"
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"sort"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/utils"

	uf "github.com/spakin/disjoint"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// ErrUnsupported is wrapped when a function body cannot be translated.
var ErrUnsupported = errors.New("unsupported function body")

// FromSSA lowers the functions of pkgs into a program. Every package
// becomes a unit, and every function with a body, including anonymous
// functions and methods, becomes a method of its package's unit.
// Functions outside pkgs are only referenced by name.
func FromSSA(prog *ssa.Program, pkgs []*ssa.Package) (*cfg.Program, error) {
	if prog == nil {
		return nil, errors.New("no SSA program")
	}

	included := make(map[*ssa.Package]bool, len(pkgs))
	for _, pkg := range pkgs {
		included[pkg] = true
	}

	byPkg := make(map[*ssa.Package][]*ssa.Function)
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Blocks == nil || fn.Synthetic != "" || !included[fn.Pkg] {
			continue
		}
		byPkg[fn.Pkg] = append(byPkg[fn.Pkg], fn)
	}

	sorted := append([]*ssa.Package(nil), pkgs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Pkg.Path() < sorted[j].Pkg.Path()
	})

	l := &lowering{
		pb:      cfg.NewProgram(prog.Fset),
		methods: make(map[*ssa.Function]*cfg.MethodBuilder),
		types:   make(map[types.Type]cfg.TypeID),
	}

	// Methods are allocated up front so calls may refer to functions
	// whose bodies have not been lowered yet.
	var order []*ssa.Function
	for _, pkg := range sorted {
		if pkg == nil || !included[pkg] {
			continue
		}
		included[pkg] = false
		unit := l.pb.Unit(pkg.Pkg.Path())
		fns := byPkg[pkg]
		sort.Slice(fns, func(i, j int) bool {
			return fns[i].String() < fns[j].String()
		})
		for _, fn := range fns {
			l.methods[fn] = unit.Method(fn.String()).SetPos(fn.Pos())
			order = append(order, fn)
		}
	}

	for _, fn := range order {
		if err := l.function(fn); err != nil {
			return nil, err
		}
	}

	return l.pb.Program(), nil
}

type lowering struct {
	pb      *cfg.ProgramBuilder
	methods map[*ssa.Function]*cfg.MethodBuilder
	types   map[types.Type]cfg.TypeID
}

// typeOf interns the kind of a Go type. Pointer types also record their
// pointee, one level deep.
func (l *lowering) typeOf(t types.Type) cfg.TypeID {
	if t == nil {
		return cfg.NoType
	}
	if id, ok := l.types[t]; ok {
		return id
	}

	typ := cfg.Type{Name: types.TypeString(t, nil), Elem: cfg.NoType}
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch {
		case u.Info()&types.IsBoolean != 0:
			typ.Kind = cfg.KindBool
		case u.Info()&types.IsInteger != 0:
			typ.Kind = cfg.KindInt
		case u.Info()&(types.IsFloat|types.IsComplex) != 0:
			typ.Kind = cfg.KindFloat
		case u.Info()&types.IsString != 0:
			typ.Kind = cfg.KindString
		case u.Kind() == types.UnsafePointer:
			typ.Kind = cfg.KindPointer
		}
	case *types.Pointer:
		typ.Kind = cfg.KindPointer
		if _, ok := u.Elem().Underlying().(*types.Pointer); !ok {
			typ.Elem = l.typeOf(u.Elem())
		}
	case *types.Interface:
		typ.Kind = cfg.KindInterface
	case *types.Slice:
		typ.Kind = cfg.KindSlice
	case *types.Map:
		typ.Kind = cfg.KindMap
	case *types.Chan:
		typ.Kind = cfg.KindChan
	case *types.Signature:
		typ.Kind = cfg.KindFunc
	case *types.Struct:
		typ.Kind = cfg.KindStruct
	default:
		typ.Kind = cfg.KindOther
	}

	id := l.pb.Type(typ)
	l.types[t] = id
	return id
}

func (l *lowering) function(fn *ssa.Function) (err error) {
	fl := &funcLowering{
		lowering: l,
		fn:       fn,
		mb:       l.methods[fn],
		elements: make(map[ssa.Value]*uf.Element),
		slots:    make(map[*uf.Element]cfg.Slot),
		extracts: make(map[ssa.Value][]*ssa.Extract),
	}

	defer func() {
		if r := recover(); r != nil {
			if fl.current != nil {
				err = fmt.Errorf("%w: %s: %v", ErrUnsupported, utils.SSAInstrString(fl.current), r)
			} else {
				err = fmt.Errorf("%w: %s: %v", ErrUnsupported, fn, r)
			}
		}
	}()

	fl.lower()
	return nil
}

type funcLowering struct {
	*lowering
	fn *ssa.Function
	mb *cfg.MethodBuilder

	// Values that are copies of each other share an equivalence class,
	// and every class is stored in a single slot.
	elements map[ssa.Value]*uf.Element
	slots    map[*uf.Element]cfg.Slot

	// Tuple components of calls, by call.
	extracts map[ssa.Value][]*ssa.Extract
	blocks   []*cfg.BlockBuilder
	// Blocks inserted on edges out of branches that carry phi copies.
	split    map[edge]*cfg.BlockBuilder

	// The instruction being lowered.
	current ssa.Instruction
}

func (fl *funcLowering) element(v ssa.Value) *uf.Element {
	el, ok := fl.elements[v]
	if !ok {
		el = uf.NewElement()
		el.Data = v
		fl.elements[v] = el
	}
	return el
}

// copyOf returns the operand of instructions that only change the static
// type of a value. An interface holding a nil pointer is itself non-nil,
// but the boxed value keeps its identity so resources may be tracked
// through interface conversions.
func copyOf(v ssa.Value) ssa.Value {
	switch v := v.(type) {
	case *ssa.ChangeType:
		return v.X
	case *ssa.ChangeInterface:
		return v.X
	case *ssa.MakeInterface:
		return v.X
	}
	return nil
}

func slotName(v ssa.Value) string {
	switch v := v.(type) {
	case *ssa.Parameter:
		return v.Name()
	case *ssa.FreeVar:
		return v.Name()
	case *ssa.Alloc:
		if v.Comment != "" {
			return v.Comment
		}
	case *ssa.Const:
		if v.Value == nil {
			return "nil"
		}
		return v.Value.String()
	case *ssa.Global:
		return v.Name()
	case *ssa.Function:
		return v.Name()
	}
	return v.Name()
}

// slot resolves the slot of a value, allocating it on first use.
func (fl *funcLowering) slot(v ssa.Value) cfg.Slot {
	rep := fl.element(v).Find()
	if s, ok := fl.slots[rep]; ok {
		return s
	}
	repv := rep.Data.(ssa.Value)
	s := fl.mb.Local(slotName(repv), fl.typeOf(repv.Type()))
	fl.slots[rep] = s
	return s
}

func (fl *funcLowering) lower() {
	fn, mb := fl.fn, fl.mb

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			switch i := instr.(type) {
			case *ssa.Extract:
				if _, ok := i.Tuple.(*ssa.Call); ok {
					fl.extracts[i.Tuple] = append(fl.extracts[i.Tuple], i)
				}
			case ssa.Value:
				if x := copyOf(i); x != nil {
					uf.Union(fl.element(i), fl.element(x))
				}
			}
		}
	}

	for _, p := range fn.Params {
		rep := fl.element(p).Find()
		s := mb.Param(p.Name(), fl.typeOf(p.Type()))
		fl.slots[rep] = s
	}
	mb.Results(fn.Signature.Results().Len())

	for range fn.Blocks {
		fl.blocks = append(fl.blocks, mb.Block())
	}
	fl.prologue(fl.blocks[0])

	for _, b := range fn.Blocks {
		bb := fl.blocks[b.Index]
		for _, instr := range b.Instrs {
			fl.current = instr
			if pos := instr.Pos(); pos.IsValid() {
				bb.At(pos)
			}
			fl.instruction(bb, instr)
		}
	}
}

// prologue materialises the constants, globals and function values used in
// the body at the start of the entry block.
func (fl *funcLowering) prologue(entry *cfg.BlockBuilder) {
	seen := make(map[ssa.Value]bool)
	var rands []*ssa.Value
	for _, b := range fl.fn.Blocks {
		for _, instr := range b.Instrs {
			rands = instr.Operands(rands[:0])
			for _, r := range rands {
				if r == nil || *r == nil || seen[*r] {
					continue
				}
				v := *r
				seen[v] = true
				switch v := v.(type) {
				case *ssa.Const:
					entry.Const(fl.slot(v), constOf(v))
				case *ssa.Global:
					entry.New(fl.slot(v), fl.typeOf(v.Type()))
				case *ssa.Function:
					entry.New(fl.slot(v), fl.typeOf(v.Type()))
				}
			}
		}
	}
}

func constOf(c *ssa.Const) cfg.Constant {
	if c.Value == nil {
		if c.IsNil() {
			return cfg.NilConst{}
		}
		return cfg.UnknownConst{}
	}
	switch c.Value.Kind() {
	case constant.Bool:
		return cfg.BoolConst{V: constant.BoolVal(c.Value)}
	case constant.String:
		return cfg.StringConst{V: constant.StringVal(c.Value)}
	case constant.Int:
		if v, exact := constant.Int64Val(c.Value); exact {
			return cfg.IntConst{V: v}
		}
	}
	return cfg.UnknownConst{}
}

func (fl *funcLowering) instruction(bb *cfg.BlockBuilder, instr ssa.Instruction) {
	switch i := instr.(type) {
	case *ssa.Alloc:
		bb.New(fl.slot(i), fl.typeOf(deref(i.Type())))
	case *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeSlice, *ssa.MakeClosure:
		v := i.(ssa.Value)
		bb.New(fl.slot(v), fl.typeOf(v.Type()))
	case *ssa.Phi:
		// Lowered into copies on incoming edges.
	case *ssa.Extract:
		if _, ok := i.Tuple.(*ssa.Call); !ok {
			bb.Havoc(fl.slot(i))
		}
	case *ssa.ChangeType, *ssa.ChangeInterface, *ssa.MakeInterface:
		// Shares the slot of its operand.
	case *ssa.UnOp:
		switch i.Op {
		case token.MUL:
			bb.Load(fl.slot(i), fl.slot(i.X), "")
		case token.ARROW:
			bb.Havoc(fl.slot(i))
		default:
			bb.UnOp(fl.slot(i), i.Op, fl.slot(i.X))
		}
	case *ssa.BinOp:
		bb.BinOp(fl.slot(i), i.Op, fl.slot(i.X), fl.slot(i.Y))
	case *ssa.FieldAddr:
		bb.FieldAddr(fl.slot(i), fl.slot(i.X), fieldName(i.X.Type(), i.Field))
	case *ssa.Store:
		field := ""
		if fa, ok := i.Addr.(*ssa.FieldAddr); ok {
			field = fieldName(fa.X.Type(), fa.Field)
		}
		bb.Store(fl.slot(i.Addr), field, fl.slot(i.Val))
	case *ssa.Call:
		bb.Add(fl.call(i.Common(), fl.results(i)))
	case *ssa.Go:
		bb.Add(fl.escape(i.Common()))
	case *ssa.Defer:
		bb.Add(fl.escape(i.Common()))
	case *ssa.Jump:
		fl.edges(bb, i.Block())
		bb.Jump(fl.blocks[i.Block().Succs[0].Index])
	case *ssa.If:
		fl.edges(bb, i.Block())
		fl.branch(bb, i)
	case *ssa.Return:
		values := make([]cfg.Slot, len(i.Results))
		for j, r := range i.Results {
			values[j] = fl.slot(r)
		}
		bb.Return(values...)
	case *ssa.Panic:
		bb.Throw(fl.slot(i.X))
	case ssa.Value:
		bb.Havoc(fl.slot(i))
	}
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

func fieldName(ptr types.Type, field int) string {
	if s, ok := deref(ptr).Underlying().(*types.Struct); ok && field < s.NumFields() {
		return s.Field(field).Name()
	}
	return fmt.Sprintf("#%d", field)
}

// results maps the results of a call to slots. Components of a tuple that
// are never extracted map to NoSlot.
func (fl *funcLowering) results(call *ssa.Call) []cfg.Slot {
	tuple, ok := call.Type().(*types.Tuple)
	if !ok {
		return []cfg.Slot{fl.slot(call)}
	}
	if tuple.Len() == 0 {
		return nil
	}
	res := make([]cfg.Slot, tuple.Len())
	for j := range res {
		res[j] = cfg.NoSlot
	}
	for _, e := range fl.extracts[call] {
		res[e.Index] = fl.slot(e)
	}
	return res
}

func (fl *funcLowering) args(vs []ssa.Value) []cfg.Slot {
	res := make([]cfg.Slot, len(vs))
	for j, v := range vs {
		res[j] = fl.slot(v)
	}
	return res
}

func (fl *funcLowering) call(common *ssa.CallCommon, results []cfg.Slot) cfg.Call {
	if common.IsInvoke() {
		recv := types.TypeString(common.Value.Type(), nil)
		return cfg.Call{
			Results:  results,
			Target:   cfg.External{Name: "(" + recv + ")." + common.Method.Name()},
			Args:     append([]cfg.Slot{fl.slot(common.Value)}, fl.args(common.Args)...),
			Receiver: true,
		}
	}

	call := cfg.Call{Results: results, Target: cfg.Unknown{}, Args: fl.args(common.Args)}
	switch v := common.Value.(type) {
	case *ssa.Builtin:
		call.Target = cfg.External{Name: v.Name()}
		return call
	}

	callee := common.StaticCallee()
	if callee == nil {
		return call
	}
	call.Receiver = callee.Signature.Recv() != nil && len(call.Args) > 0
	if mb, ok := fl.methods[callee]; ok {
		call.Target = cfg.Internal{Method: mb.ID()}
	} else {
		call.Target = cfg.External{Name: callee.String()}
	}
	return call
}

// escape lowers go and defer statements. The deferred or spawned call is
// not followed, but every value it captures escapes into an unknown call.
func (fl *funcLowering) escape(common *ssa.CallCommon) cfg.Call {
	var captured []cfg.Slot
	if common.IsInvoke() {
		captured = append(captured, fl.slot(common.Value))
	}
	captured = append(captured, fl.args(common.Args)...)
	if mc, ok := common.Value.(*ssa.MakeClosure); ok {
		captured = append(captured, fl.args(mc.Bindings)...)
	}
	return cfg.Call{Target: cfg.Unknown{}, Args: captured}
}

// branch lowers an if statement, recognizing nil checks and negations.
func (fl *funcLowering) branch(bb *cfg.BlockBuilder, i *ssa.If) {
	then, els := fl.succ(i.Block(), 0), fl.succ(i.Block(), 1)

	switch c := i.Cond.(type) {
	case *ssa.BinOp:
		if cfg.IsComparison(c.Op) {
			x, y := c.X, c.Y
			if isNil(x) {
				x, y = y, x
			}
			switch {
			case isNil(y) && c.Op == token.EQL:
				bb.If(cfg.IsNil{X: fl.slot(x)}, then, els)
			case isNil(y) && c.Op == token.NEQ:
				bb.If(cfg.IsNil{X: fl.slot(x)}, els, then)
			default:
				bb.If(cfg.Compare{Op: c.Op, X: fl.slot(c.X), Y: fl.slot(c.Y)}, then, els)
			}
			return
		}
	case *ssa.UnOp:
		if c.Op == token.NOT {
			bb.If(cfg.Truth{X: fl.slot(c.X)}, els, then)
			return
		}
	}
	bb.If(cfg.Truth{X: fl.slot(i.Cond)}, then, els)
}

func isNil(v ssa.Value) bool {
	c, ok := v.(*ssa.Const)
	return ok && c.Value == nil && c.IsNil()
}

// succ returns the block reached along the idx-th successor edge of b.
func (fl *funcLowering) succ(b *ssa.BasicBlock, idx int) *cfg.BlockBuilder {
	if fl.split != nil {
		if bb, ok := fl.split[edge{b, idx}]; ok {
			return bb
		}
	}
	return fl.blocks[b.Succs[idx].Index]
}
