package dependency

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, g *Graph, id NodeID, deps ...NodeID) {
	t.Helper()
	require.NoError(t, g.AddNode(Node{ID: id, DependsOn: deps}))
}

func TestGraph_AddAndGet(t *testing.T) {
	g := New()
	mustAdd(t, g, "postgres")
	mustAdd(t, g, "rag-api", "postgres")

	assert.Equal(t, 2, g.Len())

	node := g.Get("rag-api")
	require.NotNil(t, node)
	assert.Equal(t, []NodeID{"postgres"}, node.DependsOn)

	assert.Nil(t, g.Get("ghost"))
}

func TestGraph_AddNodeDuplicate(t *testing.T) {
	g := New()
	mustAdd(t, g, "postgres")
	err := g.AddNode(Node{ID: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in graph")
}

func TestGraph_AddNodeEmptyID(t *testing.T) {
	g := New()
	assert.Error(t, g.AddNode(Node{}))
}

func TestGraph_Dependents(t *testing.T) {
	g := New()
	mustAdd(t, g, "postgres")
	mustAdd(t, g, "neo4j")
	mustAdd(t, g, "rag-api", "postgres", "neo4j")
	mustAdd(t, g, "worker", "postgres")

	assert.Equal(t, []NodeID{"rag-api", "worker"}, g.Dependents("postgres"))
	assert.Equal(t, []NodeID{"rag-api"}, g.Dependents("neo4j"))
	assert.Empty(t, g.Dependents("rag-api"))
}

func TestResolve_DependenciesFirst(t *testing.T) {
	g := New()
	mustAdd(t, g, "store")
	mustAdd(t, g, "cache", "store")
	mustAdd(t, g, "api", "cache", "store")

	order, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"store", "cache", "api"}, order)
}

func TestResolve_DiamondKeepsEveryNodeAfterItsDeps(t *testing.T) {
	g := New()
	mustAdd(t, g, "base")
	mustAdd(t, g, "left", "base")
	mustAdd(t, g, "right", "base")
	mustAdd(t, g, "top", "left", "right")

	order, err := g.Resolve()
	require.NoError(t, err)

	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range g.Nodes() {
		for _, dep := range g.Get(id).DependsOn {
			assert.Less(t, pos[dep], pos[id], "%s must come after %s", id, dep)
		}
	}
}

func TestResolve_IndependentNodesKeepDeclarationOrder(t *testing.T) {
	g := New()
	mustAdd(t, g, "b-second")
	mustAdd(t, g, "a-first")
	mustAdd(t, g, "c-third")

	order, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"b-second", "a-first", "c-third"}, order)
}

func TestResolve_DeterministicAcrossRuns(t *testing.T) {
	build := func() *Graph {
		g := New()
		mustAdd(t, g, "postgres")
		mustAdd(t, g, "neo4j")
		mustAdd(t, g, "rag-api", "postgres", "neo4j")
		mustAdd(t, g, "frontend", "rag-api")
		mustAdd(t, g, "metrics")
		return g
	}

	first, err := build().Resolve()
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := build().Resolve()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_TwoNodeCycle(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", "b")
	mustAdd(t, g, "b", "a")

	_, err := g.Resolve()
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)

	assert.Contains(t, cerr.Path, NodeID("a"))
	assert.Contains(t, cerr.Path, NodeID("b"))
	assert.Equal(t, cerr.Path[0], cerr.Path[len(cerr.Path)-1], "cycle path closes on itself")
	assert.Contains(t, err.Error(), `"a"`)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestResolve_LongerCycleNamesEveryMember(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", "b")
	mustAdd(t, g, "b", "c")
	mustAdd(t, g, "c", "a")

	_, err := g.Resolve()
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	for _, id := range []NodeID{"a", "b", "c"} {
		assert.Contains(t, cerr.Path, id)
	}
}

func TestResolve_CycleEnteredFromOutsideNamesOnlyItsMembers(t *testing.T) {
	// "a" depends on the cycle without being part of it; the reported
	// path must name the cycle members and nothing upstream of them.
	g := New()
	mustAdd(t, g, "a", "b")
	mustAdd(t, g, "b", "c")
	mustAdd(t, g, "c", "b")

	_, err := g.Resolve()
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)

	assert.Equal(t, []NodeID{"b", "c", "b"}, cerr.Path)
	assert.NotContains(t, err.Error(), `"a"`)
}

func TestResolve_SelfCycle(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", "a")

	_, err := g.Resolve()
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []NodeID{"a", "a"}, cerr.Path)
}

func TestResolve_CycleDoesNotHideValidSubgraph(t *testing.T) {
	// A cycle anywhere fails resolution outright; nothing may start on a
	// manifest containing one.
	g := New()
	mustAdd(t, g, "healthy")
	mustAdd(t, g, "a", "b")
	mustAdd(t, g, "b", "a")

	order, err := g.Resolve()
	assert.Nil(t, order)
	var cerr *CycleError
	assert.ErrorAs(t, err, &cerr)
}

func TestResolve_UnknownDependency(t *testing.T) {
	g := New()
	mustAdd(t, g, "api", "ghost")

	_, err := g.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost"`)
	var cerr *CycleError
	assert.False(t, errors.As(err, &cerr), "unknown node is not a cycle")
}
