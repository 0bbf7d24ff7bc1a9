package frontend

import (
	"github.com/cs-au-dk/symbex/analysis/cfg"

	"golang.org/x/tools/go/ssa"
)

// edge is the idx-th successor edge of a block.
type edge struct {
	from *ssa.BasicBlock
	idx  int
}

func phis(b *ssa.BasicBlock) (res []*ssa.Phi) {
	for _, instr := range b.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break
		}
		res = append(res, phi)
	}
	return
}

// predIndex finds the position of the idx-th successor edge of from among
// the predecessors of its target.
func predIndex(from *ssa.BasicBlock, idx int) int {
	to := from.Succs[idx]
	nth := 0
	for j := 0; j < idx; j++ {
		if from.Succs[j] == to {
			nth++
		}
	}
	for k, pred := range to.Preds {
		if pred != from {
			continue
		}
		if nth == 0 {
			return k
		}
		nth--
	}
	panic("successor does not list its predecessor")
}

// edges lowers the phis of the successors of b into copies. A block with a
// single successor receives the copies itself. Otherwise a block is
// inserted on every edge that needs copies.
func (fl *funcLowering) edges(bb *cfg.BlockBuilder, b *ssa.BasicBlock) {
	for idx, succ := range b.Succs {
		ps := phis(succ)
		if len(ps) == 0 {
			continue
		}
		k := predIndex(b, idx)

		if len(b.Succs) == 1 {
			fl.copies(bb, ps, k)
			continue
		}

		eb := fl.mb.Block()
		if pos := b.Instrs[len(b.Instrs)-1].Pos(); pos.IsValid() {
			eb.At(pos)
		}
		fl.copies(eb, ps, k)
		eb.Jump(fl.blocks[succ.Index])
		if fl.split == nil {
			fl.split = make(map[edge]*cfg.BlockBuilder)
		}
		fl.split[edge{b, idx}] = eb
	}
}

// copies assigns the k-th incoming values of phis. The assignments happen
// simultaneously, so when a phi reads another phi of the same block the
// values are first saved in temporaries.
func (fl *funcLowering) copies(bb *cfg.BlockBuilder, phis []*ssa.Phi, k int) {
	dsts := make([]cfg.Slot, len(phis))
	srcs := make([]cfg.Slot, len(phis))
	written := make(map[cfg.Slot]bool, len(phis))
	for j, phi := range phis {
		dsts[j] = fl.slot(phi)
		srcs[j] = fl.slot(phi.Edges[k])
	}

	overlap := false
	for j := range phis {
		if written[srcs[j]] {
			overlap = true
			break
		}
		written[dsts[j]] = true
	}

	if overlap {
		slots := fl.mb.Method().Slots
		for j, src := range srcs {
			tmp := fl.mb.Local("", slots[src].Type)
			bb.Assign(tmp, src)
			srcs[j] = tmp
		}
	}
	for j := range phis {
		if dsts[j] != srcs[j] {
			bb.Assign(dsts[j], srcs[j])
		}
	}
}
