package defs

import (
	"fmt"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/utils"
)

// ExceptionalExit is the synthetic block every method leaves through when
// an exception escapes it.
const ExceptionalExit cfg.BlockID = -2

// ProgramPoint is a location in the control flow of a method, refined by
// the number of times the enclosing loop was re-entered and by the depth of
// the call stack. It is compared with == and used as a map key.
type ProgramPoint struct {
	Method cfg.MethodID
	Block  cfg.BlockID
	// Index of the next instruction. len(Instrs) addresses the terminator.
	Index int
	// Loop iterations, capped by the loop bound.
	Iter  int
	Depth int
}

// Entry is the first point of a method.
func Entry(m cfg.MethodID, depth int) ProgramPoint {
	return ProgramPoint{Method: m, Depth: depth}
}

// Exceptional is the exceptional exit point of a method.
func Exceptional(m cfg.MethodID, depth int) ProgramPoint {
	return ProgramPoint{Method: m, Block: ExceptionalExit, Depth: depth}
}

// IsExceptionalExit is true for the synthetic exceptional exit.
func (p ProgramPoint) IsExceptionalExit() bool {
	return p.Block == ExceptionalExit
}

// AtBlockEntry is true if no instruction of the block has been executed yet.
func (p ProgramPoint) AtBlockEntry() bool {
	return p.Index == 0 && !p.IsExceptionalExit()
}

// Next advances to the following instruction of the same block.
func (p ProgramPoint) Next() ProgramPoint {
	p.Index++
	return p
}

// Goto enters another block of the same method.
func (p ProgramPoint) Goto(b cfg.BlockID, iter int) ProgramPoint {
	p.Block, p.Index, p.Iter = b, 0, iter
	return p
}

// Location forgets the loop iteration, leaving only the source location.
// Findings are reported at locations so that unrolled iterations agree.
func (p ProgramPoint) Location() ProgramPoint {
	p.Iter, p.Depth = 0, 0
	return p
}

// Less orders points by method, block, index, iteration and depth.
func (p ProgramPoint) Less(o ProgramPoint) bool {
	switch {
	case p.Method != o.Method:
		return p.Method < o.Method
	case p.Block != o.Block:
		return p.Block < o.Block
	case p.Index != o.Index:
		return p.Index < o.Index
	case p.Iter != o.Iter:
		return p.Iter < o.Iter
	}
	return p.Depth < o.Depth
}

func (p ProgramPoint) Hash() uint32 {
	return utils.HashCombine(
		utils.HashInt(int64(p.Method)),
		utils.HashInt(int64(p.Block)),
		utils.HashInt(int64(p.Index)),
		utils.HashInt(int64(p.Iter)),
		utils.HashInt(int64(p.Depth)),
	)
}

func (p ProgramPoint) String() string {
	str := colorize.Method(fmt.Sprintf("m%d", int(p.Method))) + ":"
	if p.IsExceptionalExit() {
		str += colorize.Exit("exc-exit")
	} else {
		str += colorize.Block(fmt.Sprintf("%s.%d", p.Block, p.Index))
	}
	if p.Iter > 0 {
		str += colorize.Iter(fmt.Sprintf("#%d", p.Iter))
	}
	if p.Depth > 0 {
		str += fmt.Sprintf("@%d", p.Depth)
	}
	return str
}
