package validation

import (
	"slices"
	"strings"
)

const (
	white = iota
	gray
	black
)

type frame struct {
	id   string
	next int
}

// FindCycles runs an iterative three-color depth-first search over ids (visited
// in the given order) and returns every distinct cycle closed by a back edge.
// Each cycle is rotated to start at its lowest id.
func FindCycles(ids []string, successors func(string) []string) [][]string {
	color := make(map[string]int, len(ids))
	seen := make(map[string]struct{})

	var cycles [][]string

	for _, root := range ids {
		if color[root] != white {
			continue
		}

		color[root] = gray
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := len(stack) - 1
			next := successors(stack[top].id)

			if stack[top].next >= len(next) {
				color[stack[top].id] = black
				stack = stack[:top]

				continue
			}

			w := next[stack[top].next]
			stack[top].next++

			switch color[w] {
			case white:
				color[w] = gray
				stack = append(stack, frame{id: w})
			case gray:
				cycle := cycleFromStack(stack, w)

				key := strings.Join(cycle, "\x00")
				if _, ok := seen[key]; !ok {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}
	}

	return cycles
}

// cycleFromStack extracts the path from w to the top of the stack and rotates it
// so the lowest id comes first.
func cycleFromStack(stack []frame, w string) []string {
	start := slices.IndexFunc(stack, func(f frame) bool {
		return f.id == w
	})

	cycle := make([]string, 0, len(stack)-start)
	for _, f := range stack[start:] {
		cycle = append(cycle, f.id)
	}

	lowest := 0
	for i, id := range cycle {
		if id < cycle[lowest] {
			lowest = i
		}
	}

	rotated := make([]string, 0, len(cycle))
	rotated = append(rotated, cycle[lowest:]...)

	return append(rotated, cycle[:lowest]...)
}
