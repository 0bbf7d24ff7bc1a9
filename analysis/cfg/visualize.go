package cfg

import (
	"github.com/cs-au-dk/symbex/utils/dot"
	"github.com/cs-au-dk/symbex/utils/graph"
)

// ToDot renders the block graph of a method. Branch edges are coloured by
// outcome and handler edges are dashed.
func (m *Method) ToDot() *dot.DotGraph {
	G := Graph(m)

	blocks := make([]BlockID, len(m.Blocks))
	for idx := range m.Blocks {
		blocks[idx] = BlockID(idx)
	}

	dg := G.ToDotGraph(blocks, &graph.VisualizationConfig[BlockID]{
		NodeAttrs: func(b BlockID) (string, dot.DotAttrs) {
			attrs := dot.DotAttrs{
				"label": m.Blocks[b].String(),
				"shape": "box",
			}
			if b == 0 {
				attrs["fillcolor"] = "lightblue"
			}
			return b.String(), attrs
		},
		EdgeAttrs: func(from, to BlockID) dot.DotAttrs {
			blk := m.Blocks[from]
			if t, ok := blk.Term.(If); ok && t.Then != t.Else {
				switch to {
				case t.Then:
					return dot.DotAttrs{"color": "darkgreen"}
				case t.Else:
					return dot.DotAttrs{"color": "red"}
				}
			}
			if to == blk.Handler {
				return dot.DotAttrs{"style": "dashed"}
			}
			return nil
		},
	})
	dg.Title = m.Name
	return dg
}
