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

// Package namegraph is C8, the global name graph: every dotted qualified
// name ever assigned at statement position, and every read of one,
// assembled into the QName graph §3 and §4.7 describe. Build walks the
// whole program once; the safety predicate Collapsible is then a pure
// function of one QName's accumulated flags. C9's collapse.Run calls it
// directly; C10's devirtualizer never imports this package, since its
// eligibility check is call-site driven rather than path driven — see
// devirtualize.go's eligible/shapeKey for its independent equivalent.
package namegraph

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/mpvl/unique"

	"optlang.dev/core/internal/ir"
)

// Id addresses a QName within a Graph.
type Id int32

const NoQName Id = 0

// QName is one dotted path (e.g. "a.b.c"), per §3.
type QName struct {
	Path string

	Declarations  []ir.NodeId // assignment nodes whose LHS is exactly this path
	AliasingRefs  []ir.NodeId // reads that escape to an unknown receiver
	ChildNames    []Id        // QNames one segment longer, sharing this as a prefix

	IsConstructor             bool
	IsInterface               bool
	IsRecord                  bool
	IsEnum                    bool
	IsNamespace               bool
	HasNoCollapseAnnotation   bool
	HasExportedAnnotation     bool
	IsDefinedInExterns        bool
	IsConditionallyDefined    bool
	HasDivergentDeclarations  bool // Declarations' RHS values are not all structurally identical
	HasUnknownChildren        bool
	ReachedViaComputedAccess  bool
	DeclarationHasAccessor    bool // an object-literal declaration whose body has a getter/setter
	IsSuperReceiver           bool
}

// Graph is the full name graph for one compilation, per §3.
type Graph struct {
	byPath map[string]Id
	names  []QName // index 0 unused, matches Id's NoQName convention
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{byPath: map[string]Id{}, names: make([]QName, 1)}
}

func (g *Graph) intern(path string) Id {
	if id, ok := g.byPath[path]; ok {
		return id
	}
	id := Id(len(g.names))
	g.names = append(g.names, QName{Path: path})
	g.byPath[path] = id
	if parent, ok := splitParent(path); ok {
		pid := g.intern(parent)
		g.names[pid].ChildNames = append(g.names[pid].ChildNames, id)
	}
	return id
}

func splitParent(path string) (string, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[:i], true
		}
	}
	return "", false
}

// Lookup returns the Id of path if it has been observed, and whether it
// was found.
func (g *Graph) Lookup(path string) (Id, bool) {
	id, ok := g.byPath[path]
	return id, ok
}

// QName returns the current state of id. Graph retains ownership; callers
// needing to mutate flags use the Mark* methods.
func (g *Graph) QName(id Id) QName {
	if id == NoQName {
		return QName{}
	}
	return g.names[id]
}

// All returns every QName observed, in Id order (declaration order of
// first observation, stable across runs for a given tree).
func (g *Graph) All() []QName { return g.names[1:] }

// context carries the nesting state Build threads through the walk: the
// syntactic contexts described in §4.7's classification rules.
type context struct {
	conditional bool // inside if/loop/switch/function/catch/arrow/block-scope
}

// Build assembles the full QName graph for the subtree rooted at root. A
// read of a pure path is only recorded as an AliasingRef when it sits in
// a syntactic position that escapes to an unknown receiver (a call
// argument, an array/object literal value, a return value, a spread
// operand, a tagged-template substitution, …); plain reads used only to
// immediately re-dot further (the receiver of another GETPROP, or the
// callee of a CALL), or stored as the RHS of a plain assignment to an
// already-declared binding, are not escapes — collapsing only changes how
// the value is reached, not its identity, so a direct assignment read
// stays exactly as safe to rewrite as the declaration itself.
func Build(a *ir.Arena, root ir.NodeId) *Graph {
	g := NewGraph()

	var walkStmt func(n ir.NodeId, ctx context)
	var walkExpr func(n ir.NodeId, ctx context, aliasing bool)

	recordRead := func(n ir.NodeId, aliasing bool) {
		path, ok := purePath(a, n)
		if !ok {
			return
		}
		id := g.intern(path)
		if aliasing {
			g.names[id].AliasingRefs = append(g.names[id].AliasingRefs, n)
		}
	}

	walkExpr = func(n ir.NodeId, ctx context, aliasing bool) {
		v := a.Node(n)
		switch v.Kind {
		case ir.GETPROP:
			recordRead(n, aliasing)
			if len(v.Children) == 1 {
				walkExpr(v.Children[0], ctx, false)
			}
			return

		case ir.GETELEM:
			if len(v.Children) == 2 {
				if path, ok := purePath(a, v.Children[0]); ok {
					id := g.intern(path)
					g.names[id].HasUnknownChildren = true
				}
				walkExpr(v.Children[0], ctx, false)
				walkExpr(v.Children[1], ctx, true)
			}
			return

		case ir.CALL, ir.NEW:
			if len(v.Children) > 0 {
				walkExpr(v.Children[0], ctx, false)
			}
			for _, arg := range v.Children[1:] {
				walkExpr(arg, ctx, true)
			}
			return

		case ir.ASSIGN:
			if len(v.Children) == 2 {
				lhs, rhs := v.Children[0], v.Children[1]
				if path, ok := purePath(a, lhs); ok {
					g.recordDeclaration(a, path, n, ctx)
					if a.Node(rhs).Kind == ir.OBJECT_LIT && hasAccessor(a, rhs) {
						id := g.intern(path)
						g.names[id].DeclarationHasAccessor = true
					}
				} else {
					walkExpr(lhs, ctx, false)
				}
				// Storing a read into an already-declared binding (d = a.b.c)
				// is not itself an escape — unlike C5's is_escaped, which
				// tracks identifier capture, C8 only cares whether a's
				// eventual collapse can still rewrite every read, and a
				// plain assignment's RHS is one such statically-visible
				// read.
				walkExpr(rhs, ctx, false)
				return
			}

		case ir.ARRAY_LIT, ir.OBJECT_LIT, ir.SPREAD, ir.RETURN, ir.TAGGED_TEMPLATE:
			for _, c := range v.Children {
				walkExpr(c, ctx, true)
			}
			return

		case ir.FUNCTION, ir.ARROW_FUNCTION, ir.CLASS:
			childCtx := ctx
			childCtx.conditional = true
			for _, c := range v.Children {
				walkStmt(c, childCtx)
			}
			return

		case ir.SUPER:
			return
		}
		for _, c := range v.Children {
			walkExpr(c, ctx, aliasing)
		}
	}

	walkStmt = func(n ir.NodeId, ctx context) {
		v := a.Node(n)
		childCtx := ctx
		switch v.Kind {
		case ir.IF, ir.FOR, ir.FOR_IN, ir.FOR_OF, ir.WHILE, ir.DO_WHILE,
			ir.SWITCH, ir.CATCH, ir.BLOCK:
			childCtx.conditional = true
		case ir.FUNCTION, ir.ARROW_FUNCTION, ir.CLASS:
			walkExpr(n, ctx, false)
			return
		case ir.EXPR_RESULT, ir.RETURN, ir.THROW:
			for _, c := range v.Children {
				walkExpr(c, ctx, v.Kind == ir.RETURN)
			}
			return
		}
		for _, c := range v.Children {
			walkStmt(c, childCtx)
		}
	}

	walkStmt(root, context{})
	g.dedupEverything()
	return g
}

// purePath reports the dotted path n denotes if n is built entirely from
// GETPROP links over an IDENTIFIER receiver (no calls, no computed
// access, no optional-chain links), per §4.7's "pure qualified name".
func purePath(a *ir.Arena, n ir.NodeId) (string, bool) {
	v := a.Node(n)
	switch v.Kind {
	case ir.IDENTIFIER:
		return v.Payload.Str, true
	case ir.GETPROP:
		if len(v.Children) != 1 {
			return "", false
		}
		base, ok := purePath(a, v.Children[0])
		if !ok {
			return "", false
		}
		return base + "." + v.Payload.Str, true
	default:
		return "", false
	}
}

func (g *Graph) recordDeclaration(a *ir.Arena, path string, assign ir.NodeId, ctx context) {
	id := g.intern(path)
	qn := &g.names[id]
	if len(qn.Declarations) > 0 && declarationShapeKey(a, qn.Declarations[0]) != declarationShapeKey(a, assign) {
		qn.HasDivergentDeclarations = true
	}
	qn.Declarations = append(qn.Declarations, assign)
	if ctx.conditional {
		qn.IsConditionallyDefined = true
	}
}

// hasAccessor reports whether n's subtree contains a getter or setter,
// per §4.7 rule 5: an object-literal declaration with an accessor body is
// never collapsible, since the accessor is only reachable through the
// declaration's original path.
func hasAccessor(a *ir.Arena, n ir.NodeId) bool {
	v := a.Node(n)
	if v.Kind == ir.GETTER || v.Kind == ir.SETTER {
		return true
	}
	for _, c := range v.Children {
		if hasAccessor(a, c) {
			return true
		}
	}
	return false
}

// declarationShapeKey computes a deterministic structural encoding of
// assign's right-hand side, mirroring devirtualize.go's shapeKey, used to
// decide whether two declarations of the same QName are "identical
// definitions" per §4.7 rule 1.
func declarationShapeKey(a *ir.Arena, assign ir.NodeId) string {
	v := a.Node(assign)
	if len(v.Children) != 2 {
		return ""
	}
	var buf bytes.Buffer
	var enc func(id ir.NodeId)
	enc = func(id ir.NodeId) {
		nv := a.Node(id)
		fmt.Fprintf(&buf, "(%d", nv.Kind)
		if nv.Payload.Str != "" {
			fmt.Fprintf(&buf, ":s=%q", nv.Payload.Str)
		}
		if nv.Payload.Num != nil {
			fmt.Fprintf(&buf, ":n=%s", nv.Payload.Num.String())
		}
		fmt.Fprintf(&buf, ":f=%d", nv.Flags)
		for _, c := range nv.Children {
			enc(c)
		}
		buf.WriteByte(')')
	}
	enc(v.Children[1])
	return buf.String()
}

// MarkAnnotation applies the flags a structured-comment annotation
// declares for id's declaration, per §4.7.
func (g *Graph) MarkAnnotation(id Id, ann ir.Annotation) {
	qn := &g.names[id]
	qn.HasNoCollapseAnnotation = qn.HasNoCollapseAnnotation || ann.NoCollapse
	qn.HasExportedAnnotation = qn.HasExportedAnnotation || ann.Exported
	qn.IsConstructor = qn.IsConstructor || ann.IsConstructor
	qn.IsInterface = qn.IsInterface || ann.IsInterface
	qn.IsRecord = qn.IsRecord || ann.IsRecord
	qn.IsEnum = qn.IsEnum || ann.IsEnum
}

// MarkDeclarationHasAccessor records that id's declaration assigns an
// object literal whose body contains a getter or setter.
func (g *Graph) MarkDeclarationHasAccessor(id Id) { g.names[id].DeclarationHasAccessor = true }

// MarkSuperReceiver records that id is the receiver of a `super.`
// expression somewhere in the program.
func (g *Graph) MarkSuperReceiver(id Id) { g.names[id].IsSuperReceiver = true }

// MarkDefinedInExterns records that id is bound by an externs file rather
// than program source.
func (g *Graph) MarkDefinedInExterns(id Id) { g.names[id].IsDefinedInExterns = true }

// MarkReachedViaComputedAccess records that some reference to id itself
// (not merely to a child) went through a computed-property link.
func (g *Graph) MarkReachedViaComputedAccess(id Id) { g.names[id].ReachedViaComputedAccess = true }

// dedupEverything removes duplicate NodeIds from each QName's
// Declarations/AliasingRefs/ChildNames slices — the same walk can observe
// a node more than once only in pathological hand-built trees, but a
// production parser's comprehension/import expansion can legitimately
// produce repeated GETPROP reads of the same path, and the graph's
// consumers assume a set, not a multiset.
func (g *Graph) dedupEverything() {
	for i := range g.names {
		qn := &g.names[i]
		qn.Declarations = dedupNodeIds(qn.Declarations)
		qn.AliasingRefs = dedupNodeIds(qn.AliasingRefs)
		qn.ChildNames = dedupIds(qn.ChildNames)
	}
}

type nodeIdSlice []ir.NodeId

func (s nodeIdSlice) Len() int           { return len(s) }
func (s nodeIdSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s nodeIdSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func dedupNodeIds(ids []ir.NodeId) []ir.NodeId {
	if len(ids) < 2 {
		return ids
	}
	cp := append([]ir.NodeId(nil), ids...)
	s := nodeIdSlice(cp)
	sort.Sort(s)
	n := unique.Sort(s)
	return cp[:n]
}

type idSlice []Id

func (s idSlice) Len() int           { return len(s) }
func (s idSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s idSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func dedupIds(ids []Id) []Id {
	if len(ids) < 2 {
		return ids
	}
	cp := append([]Id(nil), ids...)
	s := idSlice(cp)
	sort.Sort(s)
	n := unique.Sort(s)
	return cp[:n]
}

// Collapsible implements §4.7's safety predicate. C9's collapse.Run calls
// it directly; C10's devirtualizer implements an independent, call-site
// driven eligibility check instead (see devirtualize.go's eligible),
// since it is not concerned with dotted-path QNames at all.
func Collapsible(g *Graph, id Id) bool {
	qn := g.QName(id)
	if len(qn.Declarations) == 0 {
		return false
	}
	if qn.IsConditionallyDefined {
		return false
	}
	if len(qn.Declarations) > 1 && qn.HasDivergentDeclarations {
		return false
	}
	if len(qn.AliasingRefs) > 0 {
		return false
	}
	if qn.HasNoCollapseAnnotation || qn.HasExportedAnnotation || qn.IsDefinedInExterns {
		return false
	}
	if qn.ReachedViaComputedAccess || qn.HasUnknownChildren {
		return false
	}
	if qn.DeclarationHasAccessor {
		return false
	}
	if qn.IsSuperReceiver {
		return false
	}
	return true
}
