package utils

import (
	"fmt"
	"go/token"
	"io"

	"golang.org/x/tools/go/ssa"
)

// PrintSSAFunWithPos dumps the SSA form of fun with source positions.
func PrintSSAFunWithPos(w io.Writer, fset *token.FileSet, fun *ssa.Function) {
	fmt.Fprintln(w, fun.String())
	for bi, b := range fun.Blocks {
		fmt.Fprintln(w, bi, ":")
		for _, i := range b.Instrs {
			switch v := i.(type) {
			case *ssa.DebugRef:
				// skip
			case ssa.Value:
				fmt.Fprintln(w, "  ", v.Name(), "=", v, "at position:", fset.Position(v.Pos()))
			default:
				fmt.Fprintln(w, "  ", i, "at position:", fset.Position(i.Pos()))
			}
		}
	}
}
