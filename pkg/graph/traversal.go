package graph

import "sort"

// Triggers returns the ids of trigger nodes sorted ascending.
func (g *Graph) Triggers() []string {
	triggers := make([]string, 0)

	for _, node := range g.Nodes() {
		if node.IsTrigger() {
			triggers = append(triggers, node.ID)
		}
	}

	return triggers
}

// Ancestors returns every node that can reach id through directed edges.
// The node itself is included only when it lies on a cycle.
func (g *Graph) Ancestors(id string) map[string]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return walk(g.reverse, []string{id})
}

// Descendants returns every node reachable from id through directed edges.
func (g *Graph) Descendants(id string) map[string]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return walk(g.forward, []string{id})
}

// Reachable returns the trigger nodes plus every node reachable from one of them.
func (g *Graph) Reachable() map[string]struct{} {
	triggers := g.Triggers()

	g.mu.RLock()
	defer g.mu.RUnlock()

	reached := walk(g.forward, triggers)
	for _, id := range triggers {
		reached[id] = struct{}{}
	}

	return reached
}

// IsAncestor reports whether a reaches b.
func (g *Graph) IsAncestor(a, b string) bool {
	_, ok := g.Descendants(a)[b]

	return ok
}

// walk runs an iterative breadth-first search from the start ids, excluding them
// unless they are reached again through an edge.
func walk(adjacency map[string][]string, start []string) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := make([]string, 0, len(start))

	for _, id := range start {
		queue = append(queue, adjacency[id]...)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		queue = append(queue, adjacency[id]...)
	}

	return seen
}

// SortedIDs returns the keys of a set sorted ascending.
func SortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
