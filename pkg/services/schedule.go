package services

import (
	"fmt"
	"time"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/robfig/cron/v3"
)

const scheduledPreviewCount = 3

var nowUTC = func() time.Time { return time.Now().UTC() }

// NextFireTimes returns the next n fire times, RFC 3339 formatted, of every
// trigger with a schedule parameter, keyed by trigger id.
func NextFireTimes(g *graph.Graph, from time.Time, n int) (map[string][]string, error) {
	out := make(map[string][]string)

	for _, id := range g.Triggers() {
		node, ok := g.Node(id)
		if !ok {
			continue
		}

		expr, _ := node.Parameters["schedule"].(string)
		if expr == "" {
			continue
		}

		schedule, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("trigger %s: %w", id, err)
		}

		next := from
		times := make([]string, 0, n)

		for range n {
			next = schedule.Next(next)
			times = append(times, next.Format(time.RFC3339))
		}

		out[id] = times
	}

	return out, nil
}
