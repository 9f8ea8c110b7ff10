package graph

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/tryfix/estream/kstream/branch"
	"github.com/tryfix/estream/kstream/processors"
	"github.com/tryfix/estream/kstream/processors/join"
	"github.com/tryfix/estream/kstream/topology"
	"github.com/tryfix/estream/kstream/window"
)

// Graph renders built topologies as a graphviz DOT document.
type Graph struct {
	parent   string
	vizGraph *gographviz.Graph
	ids      int
	stores   map[string]bool
}

type named interface {
	Name() string
}

type stateful interface {
	Stores() []string
}

func NewGraph() *Graph {
	parent := `root`
	g := gographviz.NewGraph()
	if err := g.SetName(parent); err != nil {
		panic(err)
	}
	if err := g.SetDir(true); err != nil {
		panic(err)
	}

	if err := g.AddAttr(parent, `splines`, `ortho`); err != nil {
		panic(err)
	}

	if err := g.AddNode(parent, `estream`, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `limegreen`,
		`style`:     `filled`,
		`label`:     `"EStream"`,
	}); err != nil {
		panic(err)
	}

	if err := g.AddNode(parent, `def`, map[string]string{
		`shape`: `plaintext`,
		`label`: `<
     		<table BORDER="0" CELLBORDER="1" CELLSPACING="0">
       			<tr><td WIDTH="50" BGCOLOR="slateblue4"></td> <td><B>Processor Node</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="darkorchid"></td><td><B>Window</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="grey95"></td><td><B>Store</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="black"></td><td><B>Stream Branch</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="limegreen"></td><td><B>Predicate</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="deepskyblue1"></td><td><B>Source</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="orange"></td><td><B>Sink</B></td></tr>
     		</table>
  >`,
	}); err != nil {
		panic(err)
	}

	return &Graph{
		parent:   parent,
		vizGraph: g,
		stores:   make(map[string]bool),
	}
}

func (g *Graph) nextId(prefix string) string {
	g.ids++
	return fmt.Sprintf(`%s_%d`, prefix, g.ids)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `'`) + `"`
}

func (g *Graph) node(parent string, name string, attrs map[string]string, edgeAttrs map[string]string) {
	if err := g.vizGraph.AddNode(g.parent, name, attrs); err != nil {
		panic(err)
	}

	if parent != `` {
		if err := g.vizGraph.AddEdge(parent, name, true, edgeAttrs); err != nil {
			panic(err)
		}
	}
}

func (g *Graph) Source(name string, info string) string {
	id := g.nextId(`stream`)
	g.node(`estream`, id, map[string]string{
		`color`:     `black`,
		`fillcolor`: `deepskyblue1`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     quote(fmt.Sprintf(`stream:%s\n%s`, name, info)),
	}, nil)

	return id
}

func (g *Graph) Processor(parent string, name string, label string, edgeAttrs map[string]string) {
	g.node(parent, name, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `slateblue4`,
		`style`:     `filled`,
		`shape`:     `square`,
		`label`:     quote(label),
	}, edgeAttrs)
}

func (g *Graph) Window(parent string, name string, label string, edgeAttrs map[string]string) {
	g.node(parent, name, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `darkorchid`,
		`style`:     `filled`,
		`shape`:     `box3d`,
		`label`:     quote(label),
	}, edgeAttrs)
}

func (g *Graph) Predicate(parent string, name string, label string, edgeAttrs map[string]string) {
	g.node(parent, name, map[string]string{
		`fontcolor`: `black`,
		`fillcolor`: `olivedrab2`,
		`shape`:     `rectangle`,
		`style`:     `"rounded,filled"`,
		`label`:     quote(label),
	}, edgeAttrs)
}

func (g *Graph) Joiner(parent string, name string, typ join.Type, edgeAttrs map[string]string) {
	g.node(parent, name, map[string]string{
		`shape`:    `plaintext`,
		`fontsize`: `11`,
		`label`:    fmt.Sprintf(`< <B>%s JOIN</B> >`, strings.ToUpper(typ.String())),
	}, edgeAttrs)
}

func (g *Graph) Branch(parent string, name string, edgeAttrs map[string]string) {
	g.node(parent, name, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `black`,
		`fontname`:  `Arial`,
		`fontsize`:  `14`,
		`shape`:     `rectangle`,
		`style`:     `"rounded,filled"`,
		`label`:     `"branch"`,
	}, edgeAttrs)
}

func (g *Graph) Sink(parent string, name string, label string, edgeAttrs map[string]string) {
	g.node(parent, name, map[string]string{
		`color`:     `black`,
		`fillcolor`: `orange`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     quote(label),
	}, edgeAttrs)
}

// Store draws a store once and links it to the node using it.
func (g *Graph) Store(node string, store string) {
	id := `store_` + strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, store)

	if !g.stores[id] {
		g.node(``, id, map[string]string{
			`shape`:     `cylinder`,
			`fillcolor`: `grey95`,
			`style`:     `filled`,
			`label`:     quote(store),
		}, nil)
		g.stores[id] = true
	}

	if err := g.vizGraph.AddEdge(node, id, true, map[string]string{`style`: `dashed`}); err != nil {
		panic(err)
	}
}

// RenderTopology draws a built stream root and everything below it.
func (g *Graph) RenderTopology(name string, info string, root topology.Node) {
	g.draw(g.Source(name, info), root.Childs())
}

func (g *Graph) Build() string {
	return g.vizGraph.String()
}

func (g *Graph) draw(parent string, nodes []topology.Node) {
	for i, n := range nodes {
		edgeAttr := map[string]string{
			`label`: fmt.Sprintf(`"%d"`, i+1),
		}

		name := g.nextId(string(n.Type()))
		switch nd := n.(type) {
		case *processors.Filter:
			g.Processor(parent, name, `F`, edgeAttr)
		case *processors.Transformer:
			g.Processor(parent, name, `M`, edgeAttr)
		case *processors.ValueTransformer:
			g.Processor(parent, name, `MV`, edgeAttr)
		case *processors.KeySelector:
			g.Processor(parent, name, `KS`, edgeAttr)
		case *processors.FlatMap:
			g.Processor(parent, name, `FM`, edgeAttr)
		case *processors.Processor:
			g.Processor(parent, name, `P`, edgeAttr)
		case *processors.Materializer:
			g.Processor(parent, name, `MAT`, edgeAttr)
		case *processors.GroupBy:
			g.Processor(parent, name, `GROUP`, edgeAttr)
		case *processors.Aggregator:
			g.Processor(parent, name, `AGG`, edgeAttr)
		case *join.StoreJoiner:
			g.Joiner(parent, name, nd.Typ, edgeAttr)
		case *branch.Splitter:
			g.Branch(parent, name, edgeAttr)
		case *branch.Branch:
			g.Predicate(parent, name, fmt.Sprintf(`P\n%s`, nd.Name), edgeAttr)
		case *window.TumblingWindow:
			g.Window(parent, name, fmt.Sprintf(`%s\ntumbling %s`, nd.Name, nd.Size), edgeAttr)
		case *window.SlidingWindow:
			g.Window(parent, name, fmt.Sprintf(`%s\nsliding %s/%s`, nd.Name, nd.Size, nd.Advance), edgeAttr)
		case *window.SessionWindow:
			g.Window(parent, name, fmt.Sprintf(`%s\nsession %s`, nd.Name, nd.Gap), edgeAttr)
		default:
			label := string(n.Type())
			if nm, ok := n.(named); ok {
				label = fmt.Sprintf(`%s\n%s`, n.Type(), nm.Name())
			}

			if n.Type() == topology.TypeSink {
				g.Sink(parent, name, label, edgeAttr)
			} else {
				g.Processor(parent, name, label, edgeAttr)
			}
		}

		if s, ok := n.(stateful); ok {
			for _, store := range s.Stores() {
				g.Store(name, store)
			}
		}

		g.draw(name, n.Childs())
	}
}
