// Package dot writes graphs in the Graphviz dot language and renders them.
package dot

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/template"

	"github.com/goccy/go-graphviz"
)

var tmpl = template.Must(template.New("dot").Option("missingkey=zero").Parse(`
{{- define "node"}}{{printf "%q [ %s ]" .ID .Attrs}}{{end -}}
digraph Exploration {
	label="{{.Title}}";
	labeljust="l";
	fontname="Arial";
	fontsize="14";
	rankdir="{{or .Options.rankdir "LR"}}";
	bgcolor="lightgray";
	nodesep="{{.Options.nodesep}}";

	node [shape="ellipse" style="filled" fillcolor="honeydew" fontname="Verdana" margin="0.05,0.0"];
	edge [minlen="{{.Options.minlen}}"]
{{range .Clusters}}
	{{printf "subgraph %q {" .}}
		{{.Attrs.Lines}}
		{{- range .Nodes}}
		{{template "node" .}}
		{{- end}}
	}
{{- end}}
{{range .Nodes}}
	{{template "node" .}}
{{- end}}
{{range .Edges}}
	{{printf "%q -> %q [ %s ]" .From .To .Attrs}}
{{- end}}
}
`))

// DotCluster groups nodes in a subgraph. Clusters do not nest.
type DotCluster struct {
	ID    string
	Nodes []*DotNode
	Attrs DotAttrs
}

func NewDotCluster(id string) *DotCluster {
	return &DotCluster{ID: id, Attrs: make(DotAttrs)}
}

func (c *DotCluster) String() string {
	return "cluster_" + c.ID
}

type DotNode struct {
	ID    string
	Attrs DotAttrs
}

func (n *DotNode) String() string {
	return n.ID
}

type DotEdge struct {
	From  *DotNode
	To    *DotNode
	Attrs DotAttrs
}

type DotAttrs map[string]string

// List renders the attributes sorted by key, so output is stable.
func (p DotAttrs) List() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	l := make([]string, 0, len(p))
	for _, k := range keys {
		l = append(l, fmt.Sprintf("%s=%q;", k, p[k]))
	}
	return l
}

func (p DotAttrs) String() string {
	return strings.Join(p.List(), " ")
}

func (p DotAttrs) Lines() string {
	return strings.Join(p.List(), "\n\t\t")
}

type DotGraph struct {
	Title    string
	Clusters []*DotCluster
	Nodes    []*DotNode
	Edges    []*DotEdge

	// Options fills in the graph-level settings rankdir, nodesep and minlen.
	Options map[string]string
}

func (g *DotGraph) countNodes() int {
	res := len(g.Nodes)
	for _, c := range g.Clusters {
		res += len(c.Nodes)
	}
	return res
}

func (g *DotGraph) WriteDot(w io.Writer) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, g); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// Render lays out g with Graphviz and writes the image to name.format,
// returning the file path.
func (g *DotGraph) Render(name, format string) (string, error) {
	var buf bytes.Buffer
	if err := g.WriteDot(&buf); err != nil {
		return "", err
	}

	gv := graphviz.New()
	defer gv.Close()
	graph, err := graphviz.ParseBytes(buf.Bytes())
	if err != nil {
		return "", err
	}
	defer graph.Close()

	out := fmt.Sprintf("%s.%s", name, format)
	if err := gv.RenderFilename(graph, graphviz.Format(format), out); err != nil {
		return "", err
	}
	return out, nil
}

// Show opens g in xdot and waits for it to exit.
func (g *DotGraph) Show() error {
	xdot, err := exec.LookPath("xdot")
	if err != nil {
		return fmt.Errorf("unable to find program 'xdot', please install it or check your PATH: %w", err)
	}

	f, err := os.CreateTemp("", "symbex.*.dot")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	err = g.WriteDot(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Printf("Showing %s: %d nodes, %d edges", f.Name(), g.countNodes(), len(g.Edges))
	return exec.Command(xdot, f.Name()).Run()
}
