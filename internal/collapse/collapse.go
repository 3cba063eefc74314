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

// Package collapse is C9, the name collapser: it rewrites each collapsible
// QName a.b.c into a fresh top-level binding a$b$c, per §4.8.
package collapse

import (
	"fmt"
	"sort"
	"strings"

	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/ir"
	"optlang.dev/core/internal/namegraph"
)

// Separator joins a collapsed QName's segments into its fresh top-level
// binding name, per §4.8.
const Separator = "$"

// Result reports what Run did, for tests and for the caller's own
// diagnostics (the collapser's own warnings go through bus, this is just
// a summary).
type Result struct {
	Collapsed map[string]string // original QName path -> fresh binding name
}

// Run collapses every Collapsible QName in g, processing parents before
// descendants per §4.8's ordering discipline, and reports every rewrite
// to tracker at the enclosing change scope.
//
// Every read site is located by a single walk of the untouched tree
// before any rewriting begins. Processing a parent QName (e.g. a.b)
// mutates the receiver of nodes that denote a descendant path (e.g. the
// a.b.c GETPROP's own receiver child), so re-deriving a node's dotted
// path from its current shape after earlier rewrites have happened would
// silently stop matching; captured NodeIds are immune to this because
// Replace only ever touches the specific node passed to it, not other
// captured ids that merely sit nearby in the tree.
func Run(a *ir.Arena, root ir.NodeId, g *namegraph.Graph, tracker *change.Tracker, bus *diag.Bus) *Result {
	return RunWithMaxDots(a, root, g, 0, tracker, bus)
}

// RunWithMaxDots behaves like Run but skips any QName whose path has more
// than maxDots dots, when maxDots is positive. This backs §6's
// property_collapse_level: module_export_only corresponds to maxDots=1 (one
// level of namespacing directly off a module-level export object only),
// while all is Run's unrestricted maxDots=0.
func RunWithMaxDots(a *ir.Arena, root ir.NodeId, g *namegraph.Graph, maxDots int, tracker *change.Tracker, bus *diag.Bus) *Result {
	res := &Result{Collapsed: map[string]string{}}
	taken := map[string]bool{}
	// Every identifier already in the program counts as taken, so a fresh
	// name that collides with one gets a numeric suffix.
	ir.Walk(a, root, ir.Visitor{Before: func(a *ir.Arena, n ir.NodeId) bool {
		if a.Kind(n) == ir.IDENTIFIER {
			taken[a.Node(n).Payload.Str] = true
		}
		return true
	}})
	reads := allReadsByPath(a, root)

	warnUnsafeNamespaces(g, bus)
	warnDuplicateDeclarations(g, bus)

	order := collapsibleInParentFirstOrder(g)
	if maxDots > 0 {
		filtered := order[:0:0]
		for _, id := range order {
			if strings.Count(g.QName(id).Path, ".") <= maxDots {
				filtered = append(filtered, id)
			}
		}
		order = filtered
	}
	for _, id := range order {
		qn := g.QName(id)
		if !strings.Contains(qn.Path, ".") {
			continue // a single-segment name is already a top-level binding
		}

		fresh := freshName(qn.Path, taken)
		taken[fresh] = true
		res.Collapsed[qn.Path] = fresh

		// Rewrite the declaring assignment's LHS identifier-in-place: the
		// outermost GETPROP of the declaration's LHS is replaced by a bare
		// IDENTIFIER carrying the fresh name, preserving the RHS untouched.
		declAssign := qn.Declarations[0]
		assignView := a.Node(declAssign)
		if len(assignView.Children) != 2 {
			continue
		}
		lhs := assignView.Children[0]
		freshIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: fresh})
		a.Replace(lhs, freshIdent)
		tracker.ReportChangeTo(declAssign)

		for _, readNode := range reads[qn.Path] {
			if readNode == lhs {
				continue // the declaration's own LHS, already rewritten above
			}
			parent := a.Parent(readNode)
			if parent == ir.NoNode {
				continue // already spliced elsewhere by an earlier iteration
			}
			repl := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: fresh})
			a.Replace(readNode, repl)
			tracker.ReportChangeTo(parent)
		}

		for _, extra := range qn.Declarations[1:] {
			parent := a.Parent(extra)
			a.Detach(extra)
			if parent != ir.NoNode {
				tracker.ReportChangeTo(parent)
			}
		}
	}
	return res
}

// warnUnsafeNamespaces emits unsafe_namespace for every declared QName an
// aliasing reference (a read passed as a call/new argument, stored into a
// literal, spread, returned, or used as a tagged-template substitution —
// namegraph.Build's escaping positions) disqualifies from collapsing, per
// §4.8: such a read must be resolved by an inlining pass ahead of this
// one, and until it is, C9 leaves the namespace alone rather than
// collapsing it underneath a still-live alias.
func warnUnsafeNamespaces(g *namegraph.Graph, bus *diag.Bus) {
	all := g.All()
	for i := range all {
		qn := all[i]
		if len(qn.Declarations) == 0 || len(qn.AliasingRefs) == 0 {
			continue
		}
		bus.Warnf("collapse", ir.NoSourceRef, diag.UnsafeNamespace,
			"%s is aliased by a reference that escapes to an unknown receiver; leaving it uncollapsed", qn.Path)
	}
}

// warnDuplicateDeclarations emits namespace_redefined for every declared
// QName assigned more than once at top level, independent of whether
// Collapsible goes on to accept it (identical-shape duplicates, which are
// still collapsed using the first definition) or reject it (divergent
// shapes, left untouched per §4.7 rule 1) — either way a second top-level
// assignment to the same path is worth flagging.
func warnDuplicateDeclarations(g *namegraph.Graph, bus *diag.Bus) {
	all := g.All()
	for i := range all {
		qn := all[i]
		if len(qn.Declarations) <= 1 {
			continue
		}
		bus.Warnf("collapse", ir.NoSourceRef, diag.NamespaceRedefined,
			"%s is assigned more than once at top level", qn.Path)
	}
}

// collapsibleInParentFirstOrder returns every Collapsible QName, ordered
// so that a.b is processed before a.b.c, per §4.8.
func collapsibleInParentFirstOrder(g *namegraph.Graph) []namegraph.Id {
	all := g.All()
	var ids []namegraph.Id
	for i := range all {
		id := namegraph.Id(i + 1)
		if namegraph.Collapsible(g, id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := g.QName(ids[i]).Path, g.QName(ids[j]).Path
		if strings.Count(pi, ".") != strings.Count(pj, ".") {
			return strings.Count(pi, ".") < strings.Count(pj, ".")
		}
		return pi < pj
	})
	return ids
}

func freshName(path string, taken map[string]bool) string {
	base := strings.ReplaceAll(path, ".", Separator)
	name := base
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s%s%d", base, Separator, i)
	}
	return name
}

// allReadsByPath finds every GETPROP node reachable from root and groups
// their NodeIds by the dotted path they denote, in one pass over the
// untouched tree. C9 must rewrite every read of a collapsed path
// regardless of whether it escapes (unlike C8's AliasingRefs, which only
// retains escaping reads), so this is a dedicated walk rather than reuse
// of the namegraph.
func allReadsByPath(a *ir.Arena, root ir.NodeId) map[string][]ir.NodeId {
	out := map[string][]ir.NodeId{}
	var walk func(n ir.NodeId)
	walk = func(n ir.NodeId) {
		v := a.Node(n)
		if v.Kind == ir.GETPROP {
			if path, ok := fullPath(a, n); ok {
				out[path] = append(out[path], n)
			}
		}
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

func fullPath(a *ir.Arena, n ir.NodeId) (string, bool) {
	v := a.Node(n)
	switch v.Kind {
	case ir.IDENTIFIER:
		return v.Payload.Str, true
	case ir.GETPROP:
		if len(v.Children) != 1 {
			return "", false
		}
		base, ok := fullPath(a, v.Children[0])
		if !ok {
			return "", false
		}
		return base + "." + v.Payload.Str, true
	default:
		return "", false
	}
}
