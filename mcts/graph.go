package mcts

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"

	"github.com/mkr-ml/tabula/game"
)

// ToDot runs a search at root (priors and leaf values from inf) and renders
// the resulting tree in graphviz dot format. Debugging aid: the output shows
// per-edge visits, mean value and prior.
func (s *Searcher) ToDot(inf Inferer, seed uint64, root game.State) (string, error) {
	logits, _, err := inf.Infer(root.Observation())
	if err != nil {
		return "", err
	}

	tree := newNode(root)
	tree.expand(logits, root.LegalMask())
	for i := 0; i < s.conf.Simulations; i++ {
		if _, err := s.simulate(inf, tree); err != nil {
			return "", err
		}
	}

	g := gographviz.NewGraph()
	if err := g.SetName("MCTS"); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	var id int
	if err := dotWalk(g, tree, &id); err != nil {
		return "", err
	}
	return g.String(), nil
}

type dotNode struct {
	ID     int
	Visits int32
	State  string
}

func (d dotNode) label() string {
	var buf bytes.Buffer
	dotTmpl.Execute(&buf, d)
	return buf.String()
}

func dotWalk(g *gographviz.Graph, nd *node, id *int) error {
	myID := *id
	*id++

	d := dotNode{
		ID:     myID,
		Visits: nd.total,
		State:  fmt.Sprintf("%v", nd.state),
	}
	attrs := map[string]string{
		"shape": "none",
		"label": d.label(),
	}
	if err := g.AddNode("MCTS", fmt.Sprintf("n%d", myID), attrs); err != nil {
		return err
	}

	for a, child := range nd.children {
		if child == nil || nd.visits[a] == 0 {
			continue
		}
		childID := *id
		if err := dotWalk(g, child, id); err != nil {
			return err
		}
		edgeAttrs := map[string]string{
			"label": fmt.Sprintf(`"a=%d n=%d q=%.2f p=%.2f"`, a, nd.visits[a], nd.totalQ[a]/float32(nd.visits[a]), nd.p[a]),
		}
		if err := g.AddEdge(fmt.Sprintf("n%d", myID), fmt.Sprintf("n%d", childID), true, edgeAttrs); err != nil {
			return err
		}
	}
	return nil
}

const dotTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Node</TD><TD>{{.ID}}</TD></TR>
<TR><TD>Visits</TD><TD>{{.Visits}}</TD></TR>
<TR><TD>State</TD><TD>{{.State}}</TD></TR>
</TABLE>
>
`

var dotTmpl = template.Must(template.New("mctsnode").Parse(dotTmplRaw))
