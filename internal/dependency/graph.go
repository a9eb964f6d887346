// Package dependency models the startup ordering between services as a
// directed graph. Edges point from a service to the services it depends
// on; resolving the graph yields a deterministic dependency-first start
// order or a CycleError naming the offending cycle.
package dependency

import (
	"fmt"
	"strings"
)

// NodeID identifies a node in the graph. It is the service name.
type NodeID string

// Node is a single service and its declared dependencies.
type Node struct {
	ID        NodeID
	DependsOn []NodeID
}

// Graph holds the declared services. Insertion order is preserved and
// used as the tie-break everywhere, so results never depend on map
// iteration order.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds a node to the graph. Adding the same ID twice is an error.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("node with empty ID")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("node %q already in graph", n.ID)
	}
	node := n
	g.nodes[n.ID] = &node
	g.order = append(g.order, n.ID)
	return nil
}

// Get returns the node with the given ID, or nil if it is not in the
// graph.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Nodes returns all node IDs in insertion order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, len(g.order))
	copy(out, g.order)
	return out
}

// Dependents returns the IDs of nodes that directly depend on id, in
// insertion order.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var out []NodeID
	for _, candidate := range g.order {
		for _, dep := range g.nodes[candidate].DependsOn {
			if dep == id {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// CycleError reports a dependency cycle. Path lists the nodes along the
// cycle in order, with the first node repeated at the end.
type CycleError struct {
	Path []NodeID
}

func (e *CycleError) Error() string {
	quoted := make([]string, len(e.Path))
	for i, id := range e.Path {
		quoted[i] = fmt.Sprintf("%q", string(id))
	}
	return "circular dependency detected: " + strings.Join(quoted, " -> ")
}

const (
	unvisited = iota
	visiting
	visited
)

// Resolve returns every node in dependency-first order: a node appears
// only after all of its dependencies. Roots and edges are visited in
// insertion order, so the result is identical across runs for the same
// declarations. A cycle yields a CycleError; an edge to a node that was
// never added yields a plain error.
func (g *Graph) Resolve() ([]NodeID, error) {
	state := make(map[NodeID]uint8, len(g.order))
	active := make([]NodeID, 0, len(g.order))
	ordered := make([]NodeID, 0, len(g.order))

	var dfs func(NodeID) error
	dfs = func(id NodeID) error {
		switch state[id] {
		case visiting:
			// Back-edge. The node is on the active path, so the path
			// from its first occurrence down to here is the cycle.
			return &CycleError{Path: closeCycle(active, id)}
		case visited:
			return nil
		}
		state[id] = visiting
		active = append(active, id)

		for _, dep := range g.nodes[id].DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return fmt.Errorf("node %q depends on unknown node %q", id, dep)
			}
			if err := dfs(dep); err != nil {
				return err
			}
		}

		active = active[:len(active)-1]
		state[id] = visited
		ordered = append(ordered, id)
		return nil
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			if err := dfs(id); err != nil {
				return nil, err
			}
		}
	}
	return ordered, nil
}

// closeCycle slices the active DFS path from the first occurrence of
// start and closes the loop by repeating start at the end. Nodes the
// DFS passed through before reaching the cycle are not on it and are
// left out.
func closeCycle(active []NodeID, start NodeID) []NodeID {
	for i, id := range active {
		if id == start {
			path := make([]NodeID, 0, len(active)-i+1)
			path = append(path, active[i:]...)
			return append(path, start)
		}
	}
	// A back-edge target is always on the active path.
	return []NodeID{start, start}
}
