package validate

import (
	"fmt"
	"strings"

	"crewplan/internal/coerce"
	"crewplan/internal/domain"
	"crewplan/internal/graph"
)

// BuildCoRunGraph builds the task-dependency graph induced by active coRun
// rules: task records become nodes, and every unordered pair inside one
// rule's task list gets a bidirectional edge. Edge insertion follows rule
// order, so traversal over the graph is deterministic.
func BuildCoRunGraph(tasks []domain.Record, rules []domain.Rule) *graph.Graph {
	g := graph.New()
	for _, rec := range tasks {
		if id := coerce.String(rec[domain.TaskIDField]); id != "" {
			g.AddNode(id)
		}
	}
	for _, r := range rules {
		if !r.IsActive || r.CoRun == nil {
			continue
		}
		list := r.CoRun.Tasks
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if list[i] != list[j] {
					g.AddBidirectionalEdge(list[i], list[j])
				}
			}
		}
	}
	return g
}

// CircularCoRuns reports the first circular co-run chain found, or nil.
// Because co-run edges are symmetric, the two-node back-and-forth cycles the
// directed traversal produces are not real chains; only cycles through three
// or more distinct tasks count. Only the first qualifying cycle is reported,
// in traversal order, so the output stays bounded and reproducible.
func CircularCoRuns(tasks []domain.Record, rules []domain.Rule) *domain.Finding {
	g := BuildCoRunGraph(tasks, rules)
	for _, cyc := range g.DetectCycles() {
		// cyc closes with a repeat of its first node, so a triangle has len 4.
		if len(cyc) < 4 {
			continue
		}
		members := cyc[:len(cyc)-1]
		return &domain.Finding{
			Type:            domain.FindingCircularCoRun,
			Severity:        domain.SeverityError,
			Entity:          domain.EntityTask,
			Field:           "tasks",
			Message:         fmt.Sprintf("co-run rules form a circular chain: %s", strings.Join(cyc, " -> ")),
			SuggestedFix:    "break the chain by removing one co-run pairing",
			AffectedRecords: members,
		}
	}
	return nil
}
