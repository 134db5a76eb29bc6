package compiler

import (
	"fmt"
	"strings"

	"github.com/driftd/driftd/internal/models"
)

// dfs marker states
const (
	unvisited = 0
	visiting  = 1
	visited   = 2
)

// topoSort orders rules so every dependency precedes its dependents.
// Rules with no dependency relationship keep declaration order, making
// the evaluation order deterministic. A back-edge to a node marked
// visiting signals a cycle.
func topoSort(rules []models.Rule, byID map[string]int) ([]models.Rule, error) {
	if err := detectCycles(rules, byID); err != nil {
		return nil, err
	}

	// Kahn's algorithm with a declaration-order scan for the next ready
	// rule. Policies are small; the quadratic scan keeps the tie-break
	// obvious.
	remaining := make(map[string]int, len(rules)) // unsatisfied dep count
	for _, r := range rules {
		remaining[r.ID] = len(r.DependsOn)
	}

	ordered := make([]models.Rule, 0, len(rules))
	done := make(map[string]bool, len(rules))

	for len(ordered) < len(rules) {
		picked := false
		for _, r := range rules { // declaration order
			if done[r.ID] || remaining[r.ID] > 0 {
				continue
			}
			ordered = append(ordered, r)
			done[r.ID] = true
			for _, other := range rules {
				for _, dep := range other.DependsOn {
					if dep == r.ID {
						remaining[other.ID]--
					}
				}
			}
			picked = true
			break
		}
		if !picked {
			// unreachable after detectCycles, kept as a guard
			return nil, &CompileError{Kind: KindCyclicDependency, Detail: "dependency graph has no valid order"}
		}
	}

	return ordered, nil
}

// detectCycles runs a depth-first traversal with visiting/visited marks
func detectCycles(rules []models.Rule, byID map[string]int) error {
	state := make(map[string]int, len(rules))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			// back-edge: report the cycle path for the error detail
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), stack[start:]...), id)
			return &CompileError{
				Kind:   KindCyclicDependency,
				RuleID: id,
				Detail: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
			}
		}

		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range rules[byID[id]].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	for _, r := range rules {
		if err := visit(r.ID); err != nil {
			return err
		}
	}
	return nil
}
