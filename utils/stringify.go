package utils

import (
	"fmt"

	"github.com/fatih/color"

	"golang.org/x/tools/go/ssa"
)

var funColor = func(is ...interface{}) string {
	return CanColorize(color.New(color.FgHiYellow).SprintFunc())(is...)
}
var blkColor = func(is ...interface{}) string {
	return CanColorize(color.New(color.FgHiCyan).SprintFunc())(is...)
}
var nameColor = func(is ...interface{}) string {
	return CanColorize(color.New(color.FgHiGreen).SprintFunc())(is...)
}
var insColor = func(is ...interface{}) string {
	return CanColorize(color.New(color.FgHiWhite, color.Faint).SprintFunc())(is...)
}

func SSAFunString(fun *ssa.Function) string {
	if fun == nil {
		return funColor("<nil>")
	}
	return funColor(fun.String())
}

func SSABlockString(blk *ssa.BasicBlock) string {
	return SSAFunString(blk.Parent()) + ":" + blkColor(fmt.Sprintf("%d", blk.Index))
}

// SSAInstrString renders an instruction with its enclosing function and block.
func SSAInstrString(i ssa.Instruction) string {
	prefix := SSABlockString(i.Block()) + ": "
	if v, ok := i.(ssa.Value); ok {
		return prefix + nameColor(v.Name()+" ") + "= " + insColor(v.String())
	}
	return prefix + insColor(i.String())
}
