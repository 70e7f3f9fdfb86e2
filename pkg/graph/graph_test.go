package graph_test

import (
	"testing"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNode(t *testing.T) {
	g := graph.New("wf-1", "First")

	require.NoError(t, g.AddNode(testutil.Trigger("t1")))
	assert.Equal(t, uint64(1), g.Version())

	err := g.AddNode(testutil.Trigger("t1"))
	require.ErrorIs(t, err, graph.ErrNodeExists)
	assert.Equal(t, uint64(1), g.Version())

	require.ErrorIs(t, g.AddNode(&models.Node{ID: "bad", Kind: models.NodeKindAction}), models.ErrInvalidNode)
	require.ErrorIs(t, g.AddNode(&models.Node{ID: "bad", Kind: "webhook", Name: "Bad"}), models.ErrInvalidNodeKind)
}

func TestGraph_AddNodeStoresCopy(t *testing.T) {
	g := graph.New("wf-1", "First")
	node := testutil.Action("a1", testutil.WithParam("message", "hi"))

	require.NoError(t, g.AddNode(node))

	node.Parameters["message"] = "changed"

	stored, ok := g.Node("a1")
	require.True(t, ok)
	assert.Equal(t, "hi", stored.Parameters["message"])
}

func TestGraph_ReadsReturnCopies(t *testing.T) {
	g := graph.New("wf-1", "First")
	require.NoError(t, g.AddNode(testutil.Action("a1",
		testutil.WithParam("message", "hi"),
		models.WithOutputs(testutil.Out("txId", models.VariableTypeString)),
	)))

	version := g.Version()

	node, ok := g.Node("a1")
	require.True(t, ok)
	node.Parameters["message"] = "changed"
	node.DeclaredOutputs[0].Name = "other"

	listed := g.Nodes()
	require.Len(t, listed, 1)
	listed[0].Parameters["message"] = "changed again"

	stored, ok := g.Node("a1")
	require.True(t, ok)
	assert.Equal(t, "hi", stored.Parameters["message"])
	assert.Equal(t, "txId", stored.DeclaredOutputs[0].Name)
	assert.Equal(t, version, g.Version())

	_, ok = g.Node("missing")
	assert.False(t, ok)
}

func TestGraph_UpdateNode(t *testing.T) {
	g := testutil.LinearWorkflow(t)

	err := g.UpdateNode(testutil.Action("ghost"))
	require.ErrorIs(t, err, graph.ErrNodeNotFound)

	require.NoError(t, g.UpdateNode(testutil.Action("action1", testutil.WithParam("message", "new"))))

	node, _ := g.Node("action1")
	assert.Equal(t, "new", node.Parameters["message"])
	assert.Equal(t, []string{"output1"}, g.Successors("action1"))
}

func TestGraph_Connect(t *testing.T) {
	g := testutil.BuildGraph(t, []*models.Node{testutil.Trigger("t1"), testutil.Action("a1"), testutil.Action("a2")})

	conn, err := g.Connect(models.Connection{From: "t1", To: "a2"})
	require.NoError(t, err)
	assert.NotEmpty(t, conn.ID)

	_, err = g.Connect(models.Connection{ID: "c-2", From: "t1", To: "a1"})
	require.NoError(t, err)

	_, err = g.Connect(models.Connection{From: "t1", To: "a1"})
	require.ErrorIs(t, err, graph.ErrDuplicateConnection)

	_, err = g.Connect(models.Connection{ID: "c-2", From: "a1", To: "a2"})
	require.ErrorIs(t, err, graph.ErrConnectionExists)

	assert.Equal(t, []string{"a1", "a2"}, g.Successors("t1"))
	assert.Equal(t, []string{"t1"}, g.Predecessors("a1"))
	assert.Len(t, g.Connections(), 2)
}

func TestGraph_ConnectAcceptsDanglingEdges(t *testing.T) {
	g := graph.New("wf-1", "First")

	_, err := g.Connect(models.Connection{ID: "c-1", From: "missing", To: "also-missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"also-missing"}, g.Successors("missing"))
}

func TestGraph_DisconnectAndRemove(t *testing.T) {
	g := testutil.LinearWorkflow(t)

	require.ErrorIs(t, g.Disconnect("nope"), graph.ErrConnectionNotFound)

	require.NoError(t, g.Disconnect("action1-output1"))
	assert.Empty(t, g.Successors("action1"))
	assert.Empty(t, g.Predecessors("output1"))

	require.NoError(t, g.RemoveNode("trigger1"))
	assert.Empty(t, g.Connections())
	assert.Empty(t, g.Predecessors("action1"))

	require.ErrorIs(t, g.RemoveNode("trigger1"), graph.ErrNodeNotFound)
}

func TestGraph_Variables(t *testing.T) {
	g := graph.New("wf-1", "First")

	g.SetVariable("limit", 10)
	vars := g.Variables()
	vars["limit"] = 99

	assert.Equal(t, map[string]any{"limit": 10}, g.Variables())

	g.DeleteVariable("limit")
	assert.Empty(t, g.Variables())
	assert.Equal(t, uint64(2), g.Version())
}

func TestGraph_RenameDescribe(t *testing.T) {
	g := graph.New("wf-1", "First")

	g.Rename("Second")
	g.Describe("Does things")

	assert.Equal(t, "Second", g.Name())
	assert.Equal(t, "Does things", g.Description())
	assert.Equal(t, uint64(2), g.Version())
}

func TestGraph_SnapshotIsIndependent(t *testing.T) {
	g := testutil.LinearWorkflow(t)
	g.SetVariable("limit", 10)

	snap := g.Snapshot()

	require.NoError(t, g.RemoveNode("output1"))
	g.SetVariable("limit", 20)

	assert.True(t, snap.HasNode("output1"))
	assert.Equal(t, []string{"output1"}, snap.Successors("action1"))
	assert.Equal(t, 10, snap.Variables()["limit"])
	assert.Less(t, snap.Version(), g.Version())
}

func TestGraph_Traversal(t *testing.T) {
	g := testutil.BuildGraph(t,
		[]*models.Node{
			testutil.Trigger("t1"),
			testutil.Action("a1"),
			testutil.Action("a2"),
			testutil.Output("o1"),
			testutil.Action("orphan"),
		},
		"t1->a1", "a1->a2", "a2->o1", "orphan->o1",
	)

	assert.Equal(t, []string{"t1"}, g.Triggers())
	assert.Equal(t, []string{"a1", "a2", "o1"}, graph.SortedIDs(g.Descendants("t1")))
	assert.Equal(t, []string{"a1", "a2", "orphan", "t1"}, graph.SortedIDs(g.Ancestors("o1")))
	assert.Equal(t, []string{"a1", "a2", "o1", "t1"}, graph.SortedIDs(g.Reachable()))

	assert.True(t, g.IsAncestor("t1", "o1"))
	assert.False(t, g.IsAncestor("o1", "t1"))
	assert.False(t, g.IsAncestor("a1", "a1"))
}

func TestGraph_AncestorsOnCycleIncludesSelf(t *testing.T) {
	g := testutil.BuildGraph(t,
		[]*models.Node{testutil.Action("a"), testutil.Action("b")},
		"a->b", "b->a",
	)

	assert.Equal(t, []string{"a", "b"}, graph.SortedIDs(g.Ancestors("a")))
}
