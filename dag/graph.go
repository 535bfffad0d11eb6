package dag

import (
	"fmt"
	"sort"
)

// Graph declares nodes, edges (dependency relationships) and per-node policy.
type Graph struct {
	Nodes    map[string]Node
	Edges    []Edge
	Policies map[string]Policy
}

// Edge represents a dependency: To depends on From.
type Edge struct {
	From string
	To   string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]Node), Policies: make(map[string]Policy)}
}

// Add registers node under its name with the given policy.
func (g *Graph) Add(node Node, policy Policy) *Graph {
	if g.Nodes == nil {
		g.Nodes = make(map[string]Node)
	}
	if g.Policies == nil {
		g.Policies = make(map[string]Policy)
	}
	g.Nodes[node.Name()] = node
	g.Policies[node.Name()] = policy
	return g
}

// Connect adds the edge from -> to.
func (g *Graph) Connect(from, to string) *Graph {
	g.Edges = append(g.Edges, Edge{From: from, To: to})
	return g
}

// Chain connects names in sequence.
func (g *Graph) Chain(names ...string) *Graph {
	for i := 1; i < len(names); i++ {
		g.Connect(names[i-1], names[i])
	}
	return g
}

// Policy returns the node's policy with defaults applied.
func (g *Graph) Policy(name string) Policy {
	p := g.Policies[name]
	p.ApplyDefaults()
	return p
}

// Upstream returns the nodes name depends on, sorted.
func (g *Graph) Upstream(name string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.To == name {
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out
}

// Downstream returns the nodes that depend on name, sorted.
func (g *Graph) Downstream(name string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == name {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// BuildLevels uses Kahn's algorithm to group nodes by dependency level.
// Nodes within the same level can execute in parallel; each level is sorted.
// Returns an error if an edge names an unknown node or a cycle is detected.
func BuildLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	for name := range g.Nodes {
		inDegree[name] = 0
	}

	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.From)
		}
		if _, ok := g.Nodes[e.To]; !ok {
			return nil, fmt.Errorf("dag: edge references unknown node %q", e.To)
		}
		inDegree[e.To]++
		dependents[e.From] = append(dependents[e.From], e.To)
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	var levels [][]string
	visited := 0

	for len(queue) > 0 {
		sort.Strings(queue)
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, name := range queue {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	if visited != len(g.Nodes) {
		return nil, fmt.Errorf("dag: cycle detected, processed %d of %d nodes", visited, len(g.Nodes))
	}

	return levels, nil
}

// TopologicalOrder flattens BuildLevels.
func TopologicalOrder(g *Graph) ([]string, error) {
	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}
