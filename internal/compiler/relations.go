package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dynquery/internal/schema"
)

// RelationWarning represents a cycle in the entity relation graph.
//
// Cycles are warnings, not errors: parent/child back-references are
// common. They matter only for derived paths that walk the cycle, which
// join the same table repeatedly.
type RelationWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["UserEntity", "UserProfile", "UserEntity"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeRelations reports cycles in the relation graph of cat.
//
// The algorithm:
//  1. Build entity → related entity graph from declared relations
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// An acyclic graph returns an empty warning list.
func AnalyzeRelations(cat *schema.Catalog) []RelationWarning {
	graph := buildRelationGraph(cat)
	if len(graph) == 0 {
		return []RelationWarning{}
	}

	warnings := []RelationWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleToWarning(scc, graph))
		}
	}

	// Tarjan emits components in discovery order; sort for stable output.
	slices.SortFunc(warnings, func(a, b RelationWarning) int {
		return strings.Compare(strings.Join(a.Path, ","), strings.Join(b.Path, ","))
	})
	return warnings
}

// relationGraph maps entity name → entity names reachable by one relation.
type relationGraph map[string][]string

func buildRelationGraph(cat *schema.Catalog) relationGraph {
	graph := make(relationGraph)
	for _, name := range cat.EntityNames() {
		e := cat.Entities[name]
		graph[name] = []string{}
		for _, r := range e.Relations {
			if _, ok := cat.Entity(r.Entity); ok {
				graph[name] = append(graph[name], r.Entity)
			}
		}
		slices.Sort(graph[name])
	}
	return graph
}

func hasSelfLoop(node string, graph relationGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph relationGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleToWarning(scc []string, graph relationGraph) RelationWarning {
	if len(scc) == 1 {
		name := scc[0]
		return RelationWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing entity: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return RelationWarning{
		Path:    path,
		Message: fmt.Sprintf("Relation cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its smallest member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph relationGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
