// Package graph holds the in-memory workflow graph: nodes, a canonical edge list
// and read-only forward/reverse adjacency indices derived from it.
package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrNodeExists          = errors.New("node already exists")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrConnectionExists    = errors.New("connection already exists")
	ErrDuplicateConnection = errors.New("nodes are already connected")
)

// Graph is a workflow graph. Mutations are expected from a single owner; reads
// may happen concurrently from observers.
//
// Edges are not checked against node existence or acyclicity on insertion: graphs
// are edited incrementally and may be transiently invalid. The validation package
// reports those problems.
type Graph struct {
	mu sync.RWMutex

	id          string
	name        string
	description string
	nodes       map[string]*models.Node
	edges       []models.Connection
	variables   map[string]any

	forward map[string][]string
	reverse map[string][]string
	version uint64
}

// New creates an empty graph.
func New(id, name string) *Graph {
	return &Graph{
		id:        id,
		name:      name,
		nodes:     make(map[string]*models.Node),
		variables: make(map[string]any),
		forward:   make(map[string][]string),
		reverse:   make(map[string][]string),
	}
}

func (g *Graph) ID() string {
	return g.id
}

func (g *Graph) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.name
}

// Rename changes the workflow name.
func (g *Graph) Rename(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.name = name
	g.version++
}

func (g *Graph) Description() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.description
}

// Describe changes the workflow description.
func (g *Graph) Describe(description string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.description = description
	g.version++
}

// Version is incremented on every mutation.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.version
}

// AddNode inserts a validated node.
func (g *Graph) AddNode(node *models.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[node.ID]; ok {
		return fmt.Errorf("%w: %s", ErrNodeExists, node.ID)
	}

	g.nodes[node.ID] = node.Clone()
	g.version++

	return nil
}

// UpdateNode replaces an existing node definition, keeping its edges.
func (g *Graph) UpdateNode(node *models.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[node.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, node.ID)
	}

	g.nodes[node.ID] = node.Clone()
	g.version++

	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	delete(g.nodes, id)
	g.edges = slices.DeleteFunc(g.edges, func(c models.Connection) bool {
		return c.From == id || c.To == id
	})
	g.reindex()
	g.version++

	return nil
}

// Connect adds a directed edge. An empty id is replaced by a generated one.
func (g *Graph) Connect(conn models.Connection) (models.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	for _, existing := range g.edges {
		if existing.ID == conn.ID {
			return models.Connection{}, fmt.Errorf("%w: %s", ErrConnectionExists, conn.ID)
		}

		if existing.From == conn.From && existing.To == conn.To {
			return models.Connection{}, fmt.Errorf("%w: %s -> %s", ErrDuplicateConnection, conn.From, conn.To)
		}
	}

	g.edges = append(g.edges, conn)
	g.forward[conn.From] = insertSorted(g.forward[conn.From], conn.To)
	g.reverse[conn.To] = insertSorted(g.reverse[conn.To], conn.From)
	g.version++

	return conn, nil
}

// Disconnect removes an edge by id.
func (g *Graph) Disconnect(connectionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := slices.IndexFunc(g.edges, func(c models.Connection) bool {
		return c.ID == connectionID
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}

	g.edges = slices.Delete(g.edges, idx, idx+1)
	g.reindex()
	g.version++

	return nil
}

// SetVariable sets a workflow-level variable visible to every node.
func (g *Graph) SetVariable(name string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.variables[name] = value
	g.version++
}

// DeleteVariable removes a workflow-level variable.
func (g *Graph) DeleteVariable(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.variables, name)
	g.version++
}

// Node returns a copy of a node by id. Edits go through UpdateNode.
func (g *Graph) Node(id string) (*models.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, false
	}

	return node.Clone(), true
}

// HasNode reports whether a node exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[id]

	return ok
}

// NodeIDs returns all node ids sorted ascending.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := slices.Collect(maps.Keys(g.nodes))
	sort.Strings(ids)

	return ids
}

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []*models.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := slices.Collect(maps.Keys(g.nodes))
	sort.Strings(ids)

	nodes := make([]*models.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, g.nodes[id].Clone())
	}

	return nodes
}

// Connections returns a copy of the canonical edge list in insertion order.
func (g *Graph) Connections() []models.Connection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.edges)
}

// Variables returns a copy of the workflow-level variables.
func (g *Graph) Variables() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return maps.Clone(g.variables)
}

// Successors returns the sorted direct successors of a node.
func (g *Graph) Successors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.forward[id])
}

// Predecessors returns the sorted direct predecessors of a node.
func (g *Graph) Predecessors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.reverse[id])
}

// Snapshot returns a deep copy that can be read without further locking by the owner.
func (g *Graph) Snapshot() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := New(g.id, g.name)
	snap.description = g.description
	for id, node := range g.nodes {
		snap.nodes[id] = node.Clone()
	}

	snap.edges = slices.Clone(g.edges)
	snap.variables = maps.Clone(g.variables)
	snap.version = g.version
	snap.reindex()

	return snap
}

func (g *Graph) reindex() {
	g.forward = make(map[string][]string, len(g.nodes))
	g.reverse = make(map[string][]string, len(g.nodes))

	for _, conn := range g.edges {
		g.forward[conn.From] = insertSorted(g.forward[conn.From], conn.To)
		g.reverse[conn.To] = insertSorted(g.reverse[conn.To], conn.From)
	}
}

func insertSorted(list []string, id string) []string {
	idx, found := slices.BinarySearch(list, id)
	if found {
		return list
	}

	return slices.Insert(list, idx, id)
}
