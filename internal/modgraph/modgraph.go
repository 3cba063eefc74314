// Copyright 2026 The optlang Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package modgraph computes the module ordering that devirtualize's
// ModuleOrder precondition (§4.9) needs: a deterministic linearization of the
// whole-program module dependency graph, require(...)/import edges pointing
// from a dependent module to its dependency.
//
// The sort itself is a generalization of the teacher's feature-ordering
// graph (internal/core/toposort): strongly connected components are
// processed in dependency order, nodes within a component are released as
// soon as every non-cyclic predecessor has been placed, and whenever more
// than one node is releasable at once, or a component has no releasable
// node at all (a genuine import cycle), ties are broken lexicographically by
// module name so the same input graph always linearizes to the same output.
// The original's edge-count-minimizing cycle-entry heuristic is dropped:
// module cycles in practice are rare and small enough that "enter at the
// lexicographically smallest name" is a fine, much simpler, deterministic
// rule.
package modgraph

import "sort"

// Builder accumulates dependency edges before Build produces an immutable
// Graph, mirroring the teacher's GraphBuilder/Graph split.
type Builder struct {
	nodes map[string]bool
	edges map[string]map[string]bool // from -> set of to (from depends on to)
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: map[string]bool{},
		edges: map[string]map[string]bool{},
	}
}

// EnsureNode registers a module with no known dependencies, so that modules
// without any require/import still appear in the sorted output.
func (b *Builder) EnsureNode(module string) {
	b.nodes[module] = true
}

// AddEdge records that module from depends on module to: to must be
// ordered before from in the result whenever the graph is acyclic at that
// point. Idempotent, like the teacher's AddEdge.
func (b *Builder) AddEdge(from, to string) {
	b.EnsureNode(from)
	b.EnsureNode(to)
	if b.edges[from] == nil {
		b.edges[from] = map[string]bool{}
	}
	b.edges[from][to] = true
}

// Graph is the built, immutable dependency graph.
type Graph struct {
	nodes []string
	// dependsOn[m] is the set of modules m directly depends on.
	dependsOn map[string]map[string]bool
}

// Build freezes the accumulated edges into a Graph.
func (b *Builder) Build() *Graph {
	nodes := make([]string, 0, len(b.nodes))
	for n := range b.nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return &Graph{nodes: nodes, dependsOn: b.edges}
}

// Sort linearizes the graph so that, as far as the dependency edges allow, a
// module is preceded by everything it depends on. Ties, and genuine cycles,
// resolve lexicographically by module name so the result is a pure function
// of the edge set.
func (g *Graph) Sort() []string {
	sccs := g.stronglyConnectedComponents()

	// componentOf maps a module name to the index of its SCC.
	componentOf := map[string]int{}
	for i, scc := range sccs {
		for _, n := range scc {
			componentOf[n] = i
		}
	}

	// Condensation: componentDeps[i] is the set of component indices that
	// component i depends on (excluding itself).
	componentDeps := make([]map[int]bool, len(sccs))
	for i := range componentDeps {
		componentDeps[i] = map[int]bool{}
	}
	for from, tos := range g.dependsOn {
		ci := componentOf[from]
		for to := range tos {
			cj := componentOf[to]
			if cj != ci {
				componentDeps[ci][cj] = true
			}
		}
	}

	placed := make([]bool, len(sccs))
	var order []string
	for placedCount := 0; placedCount < len(sccs); {
		// Among not-yet-placed components whose dependencies are all
		// placed, pick the one whose sorted node list is lexicographically
		// smallest, for determinism.
		best := -1
		for i, scc := range sccs {
			if placed[i] {
				continue
			}
			ready := true
			for dep := range componentDeps[i] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if best == -1 || lessStrings(scc, sccs[best]) {
				best = i
			}
		}
		if best == -1 {
			// A cycle spans every remaining component's remaining
			// dependencies; nothing is strictly ready. Break the deadlock by
			// taking the lexicographically smallest unplaced component as a
			// whole, entering its cycle (if it has one) at its smallest
			// name.
			for i, scc := range sccs {
				if placed[i] {
					continue
				}
				if best == -1 || lessStrings(scc, sccs[best]) {
					best = i
				}
			}
		}
		placed[best] = true
		placedCount++
		order = append(order, sccs[best]...)
	}
	return order
}

func lessStrings(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// stronglyConnectedComponents runs Tarjan's algorithm over the graph,
// returning components in reverse-topological discovery order (a dependency
// always appears in a component found no later than the components of the
// modules that depend on it), with each component's members sorted by name.
func (g *Graph) stronglyConnectedComponents() [][]string {
	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var components [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		deps := make([]string, 0, len(g.dependsOn[v]))
		for to := range g.dependsOn[v] {
			deps = append(deps, to)
		}
		sort.Strings(deps)

		for _, w := range deps {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			sort.Strings(component)
			components = append(components, component)
		}
	}

	for _, n := range g.nodes {
		if _, seen := indices[n]; !seen {
			strongconnect(n)
		}
	}
	return components
}
