package agent

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-scout/backend/internal/model/chat"
)

// Node identifies one state of the agent graph.
type Node int

const (
	NodeDecide Node = iota
	NodeSearch
	NodeRespond
	NodeEnd
)

func (n Node) String() string {
	switch n {
	case NodeDecide:
		return "decide"
	case NodeSearch:
		return "search"
	case NodeRespond:
		return "respond"
	case NodeEnd:
		return "END"
	default:
		return fmt.Sprintf("node(%d)", int(n))
	}
}

// transition is one outgoing edge. A nil guard always matches.
type transition struct {
	to    Node
	label string
	guard func(chat.State) bool
}

// Graph is the fixed transition table decide -> [search ->] respond -> END.
type Graph struct {
	entry Node
	edges map[Node][]transition
}

// NewGraph returns the routing graph used by the agent.
func NewGraph() Graph {
	needsSearch := func(s chat.State) bool { return s.NeedsSearch }

	return Graph{
		entry: NodeDecide,
		edges: map[Node][]transition{
			NodeDecide: {
				{to: NodeSearch, label: "needs_search", guard: needsSearch},
				{to: NodeRespond, label: "otherwise"},
			},
			NodeSearch:  {{to: NodeRespond}},
			NodeRespond: {{to: NodeEnd}},
		},
	}
}

// Entry returns the initial node.
func (g Graph) Entry() Node {
	return g.entry
}

// Next picks the first edge out of from whose guard accepts the state.
// Nodes without edges are terminal.
func (g Graph) Next(from Node, state chat.State) Node {
	for _, edge := range g.edges[from] {
		if edge.guard == nil || edge.guard(state) {
			return edge.to
		}
	}
	return NodeEnd
}

// String renders the transition table as ASCII.
func (g Graph) String() string {
	var b strings.Builder
	b.WriteString("+-----------+\n")
	b.WriteString("| __start__ |\n")
	b.WriteString("+-----------+\n")
	fmt.Fprintf(&b, "      |\n      v\n  %s\n", g.entry)

	for _, from := range []Node{NodeDecide, NodeSearch, NodeRespond} {
		for _, edge := range g.edges[from] {
			if edge.label != "" {
				fmt.Fprintf(&b, "  %s --[%s]--> %s\n", from, edge.label, edge.to)
				continue
			}
			fmt.Fprintf(&b, "  %s --> %s\n", from, edge.to)
		}
	}
	return b.String()
}
