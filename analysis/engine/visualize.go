package engine

import (
	"fmt"
	"strings"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/utils/dot"
	"github.com/cs-au-dk/symbex/utils/graph"
)

// ToDot renders the nodes reachable from the entry, clustered by block.
// Exits are shaded and nodes carrying findings are outlined in red.
func (G *ExplodedGraph) ToDot(title string) *dot.DotGraph {
	var nodes []*Node
	G.ForEach(func(n *Node) {
		nodes = append(nodes, n)
	})

	dg := graph.OfHashable(func(n *Node) []*Node {
		return n.succs
	}).ToDotGraph(nodes, &graph.VisualizationConfig[*Node]{
		NodeAttrs: func(n *Node) (string, dot.DotAttrs) {
			label := []string{n.Point.String(), n.State.String()}
			for _, f := range n.findings {
				label = append(label, f.String())
			}

			attrs := dot.DotAttrs{
				"label": strings.Join(label, "\n"),
				"shape": "box",
			}
			switch {
			case n == G.entry:
				attrs["style"] = "filled"
				attrs["fillcolor"] = "lightblue"
			case n.exit != nil && n.exit.Kind == ExceptionalExit:
				attrs["style"] = "filled"
				attrs["fillcolor"] = "lightpink"
			case n.exit != nil:
				attrs["style"] = "filled"
				attrs["fillcolor"] = "lightgrey"
			}
			if len(n.findings) > 0 {
				attrs["color"] = "red"
			}
			return fmt.Sprintf("n%d", n.id), attrs
		},
		ClusterKey: func(n *Node) any {
			return n.Point.Block
		},
		ClusterAttrs: func(key any) (string, dot.DotAttrs) {
			b := key.(cfg.BlockID)
			if b < 0 {
				return "exit", dot.DotAttrs{"label": "exceptional exit"}
			}
			return b.String(), dot.DotAttrs{"label": b.String()}
		},
	})
	dg.Title = title
	return dg
}
