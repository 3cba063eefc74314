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

// Package devirtualize is C10: it rewrites a single-definition prototype
// method `T.prototype.m = function(args) { body }` into a free function
// `m$T(self, args) { body[this ↦ self] }`, and every ordinary call site
// `receiver.m(args)` into `m$T(receiver, args)`, per §4.9.
package devirtualize

import (
	"bytes"
	"fmt"
	"strings"

	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/ir"
)

// Separator joins a devirtualized method name with its receiver type, per
// §4.9's m$T naming.
const Separator = "$"

// ModuleOrder is the module-graph topological order the outer collaborator
// computes from import edges (out of the core's scope per §1); Run treats
// a nil ModuleOrder as "no ordering constraint known", since a tree built
// directly from test fixtures or a single-file program has no module graph
// to violate.
type ModuleOrder struct {
	index map[string]int
}

// NewModuleOrder returns a ModuleOrder where modules earlier in sorted
// precedes those later, per a topological sort the caller has already
// performed (a Kahn's-algorithm pass over the import graph, same technique
// CUE's internal/core/export uses to order struct fields by dependency).
func NewModuleOrder(sorted []string) *ModuleOrder {
	o := &ModuleOrder{index: make(map[string]int, len(sorted))}
	for i, m := range sorted {
		o.index[m] = i
	}
	return o
}

// Precedes reports whether module a must come before module b. Unknown
// modules never block a rewrite: the predicate is "no evidence a is after
// b", not "proof a is before b".
func (o *ModuleOrder) Precedes(a, b string) bool {
	if o == nil || a == b {
		return true
	}
	ia, aok := o.index[a]
	ib, bok := o.index[b]
	if !aok || !bok {
		return true
	}
	return ia <= ib
}

// Result reports what Run did.
type Result struct {
	Rewritten map[string]string // property name -> fresh free-function name
}

type definition struct {
	assign   ir.NodeId // the T.prototype.m = ... ASSIGN node
	fn       ir.NodeId // the FUNCTION node
	receiver string    // T
	module   string
	shape    string
}

type callSite struct {
	call     ir.NodeId
	getprop  ir.NodeId // the receiver.m GETPROP, callee of call
	receiver ir.NodeId
	module   string
}

type methodState struct {
	defs         []definition
	callSites    []callSite
	disqualified bool
}

// Run finds every property name eligible for devirtualization under §4.9's
// preconditions and rewrites it. sm may be nil when the tree carries no
// real source positions (unit tests, single-file programs); in that case
// the module-ordering precondition is vacuously satisfied for every site.
func Run(a *ir.Arena, root ir.NodeId, sm *ir.SourceMap, order *ModuleOrder, tracker *change.Tracker, bus *diag.Bus) *Result {
	res := &Result{Rewritten: map[string]string{}}

	accessors := collectAccessorNames(a, root)
	states := map[string]*methodState{}

	collectDefinitions(a, root, sm, states)
	collectUsages(a, root, sm, states)

	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sortStrings(names)

	for _, name := range names {
		st := states[name]
		if !eligible(name, st, accessors, bus) {
			continue
		}
		rewrite(a, name, st, order, tracker, bus, res)
	}
	return res
}

func eligible(name string, st *methodState, accessors map[string]bool, bus *diag.Bus) bool {
	if st.disqualified {
		return false
	}
	if len(st.defs) == 0 {
		return false
	}
	if accessors[name] {
		return false
	}
	if strings.HasPrefix(name, "_") {
		return false
	}
	if len(st.callSites) == 0 {
		return false
	}

	unique := uniqueDefinitions(st.defs)
	if len(unique) > 1 {
		bus.Warnf("devirtualize", ir.NoSourceRef, diag.NamespaceRedefined,
			"%s has more than one distinct prototype definition; leaving calls in place", name)
		return false
	}
	return true
}

func uniqueDefinitions(defs []definition) []definition {
	var out []definition
	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.shape] {
			continue
		}
		seen[d.shape] = true
		out = append(out, d)
	}
	return out
}

func rewrite(a *ir.Arena, name string, st *methodState, order *ModuleOrder, tracker *change.Tracker, bus *diag.Bus, res *Result) {
	kept := st.defs[0]

	for _, cs := range st.callSites {
		if !order.Precedes(kept.module, cs.module) {
			bus.Warnf("devirtualize", ir.NoSourceRef, diag.UnsafeThis,
				"%s is defined after a call site in module order; leaving calls in place", name)
			return
		}
	}

	hasThis := usesThis(a, kept.fn)
	if hasThis && usesSuper(a, kept.fn) {
		bus.Warnf("devirtualize", ir.NoSourceRef, diag.UnsafeThis,
			"%s's body uses super, which cannot be rewritten to a free function", name)
		return
	}

	fresh := name + Separator + kept.receiver
	res.Rewritten[name] = fresh

	if hasThis {
		rewriteThisToSelf(a, kept.fn, "self")
	}
	paramList := functionParamList(a, kept.fn)
	if paramList != ir.NoNode {
		selfParam := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "self"})
		a.AddChildToFront(paramList, selfParam)
	}
	if hasThis || paramList != ir.NoNode {
		tracker.ReportChangeTo(kept.fn)
	}

	freshIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: fresh})
	assignNode := kept.assign
	av := a.Node(assignNode)
	if len(av.Children) == 2 {
		a.Replace(av.Children[0], freshIdent)
		tracker.ReportChangeTo(assignNode)
	}

	for _, extra := range st.defs[1:] {
		parent := a.Parent(extra.assign)
		a.Detach(extra.assign)
		tracker.ReportDeletion(extra.fn)
		if parent != ir.NoNode {
			tracker.ReportChangeTo(parent)
		}
	}

	for _, cs := range st.callSites {
		a.Detach(cs.receiver)
		callee := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: fresh})
		a.Replace(cs.getprop, callee)
		a.InsertAfter(callee, cs.receiver)
		parent := a.Parent(cs.call)
		if parent != ir.NoNode {
			tracker.ReportChangeTo(parent)
		} else {
			tracker.ReportChangeTo(cs.call)
		}
	}
}

// collectDefinitions finds every top-level `T.prototype.m = function(){}`
// assignment reachable from root, per §4.9's "only a top-level statement
// position" precondition: the EXPR_RESULT must be a direct child of a
// SCRIPT, never nested in a block, conditional, loop, function, or arrow.
func collectDefinitions(a *ir.Arena, root ir.NodeId, sm *ir.SourceMap, states map[string]*methodState) {
	var walk func(n ir.NodeId)
	walk = func(n ir.NodeId) {
		v := a.Node(n)
		if v.Kind == ir.SCRIPT {
			for _, stmt := range v.Children {
				tryDefinition(a, stmt, sm, states)
			}
		}
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(root)
}

func tryDefinition(a *ir.Arena, stmt ir.NodeId, sm *ir.SourceMap, states map[string]*methodState) {
	if a.Kind(stmt) != ir.EXPR_RESULT {
		return
	}
	ev := a.Node(stmt)
	if len(ev.Children) != 1 || a.Kind(ev.Children[0]) != ir.ASSIGN {
		return
	}
	assign := ev.Children[0]
	av := a.Node(assign)
	if len(av.Children) != 2 {
		return
	}
	lhs, rhs := av.Children[0], av.Children[1]
	receiver, m, ok := matchPrototypeMember(a, lhs)
	if !ok {
		return
	}
	if a.Kind(rhs) != ir.FUNCTION {
		return // arrow functions carry lexical `this` and are never devirtualizable
	}

	st := states[m]
	if st == nil {
		st = &methodState{}
		states[m] = st
	}
	st.defs = append(st.defs, definition{
		assign:   assign,
		fn:       rhs,
		receiver: receiver,
		module:   moduleOf(a, sm, stmt),
		shape:    shapeKey(a, rhs),
	})
}

// matchPrototypeMember reports the (T, m) pair n denotes if n is exactly
// `T.prototype.m`, i.e. GETPROP(m) over GETPROP("prototype") over a bare
// IDENTIFIER receiver.
func matchPrototypeMember(a *ir.Arena, n ir.NodeId) (receiver, member string, ok bool) {
	if a.Kind(n) != ir.GETPROP {
		return "", "", false
	}
	mv := a.Node(n)
	if len(mv.Children) != 1 {
		return "", "", false
	}
	member = mv.Payload.Str

	proto := mv.Children[0]
	if a.Kind(proto) != ir.GETPROP || a.Node(proto).Payload.Str != "prototype" {
		return "", "", false
	}
	pv := a.Node(proto)
	if len(pv.Children) != 1 || a.Kind(pv.Children[0]) != ir.IDENTIFIER {
		return "", "", false
	}
	receiver = a.Node(pv.Children[0]).Payload.Str
	return receiver, member, true
}

// collectUsages walks the whole tree once, finding every GETPROP/GETELEM
// occurrence of any name currently tracked in states and classifying it as
// an ordinary call site or a disqualifying read, per §4.9's exhaustive list
// of escaping forms.
func collectUsages(a *ir.Arena, root ir.NodeId, sm *ir.SourceMap, states map[string]*methodState) {
	var walk func(n ir.NodeId)
	walk = func(n ir.NodeId) {
		v := a.Node(n)
		switch v.Kind {
		case ir.GETPROP, ir.OPTCHAIN_GETPROP:
			name := v.Payload.Str
			if st, ok := states[name]; ok {
				classifyPropertyUse(a, n, sm, st)
			}
		case ir.GETELEM:
			if len(v.Children) == 2 && a.Kind(v.Children[1]) == ir.STRING {
				name := a.Node(v.Children[1]).Payload.Str
				if st, ok := states[name]; ok {
					st.disqualified = true // obj['m'] is always disqualifying, per §4.9
				}
			}
		}
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(root)
}

func classifyPropertyUse(a *ir.Arena, n ir.NodeId, sm *ir.SourceMap, st *methodState) {
	if a.Kind(n) == ir.OPTCHAIN_GETPROP {
		st.disqualified = true
		return
	}
	parent := a.Parent(n)
	if parent == ir.NoNode {
		return // the LHS of the defining assignment itself; handled by collectDefinitions
	}
	pv := a.Node(parent)
	if pv.Kind == ir.CALL && len(pv.Children) > 0 && pv.Children[0] == n {
		getpropChildren := a.Node(n).Children
		if len(getpropChildren) != 1 {
			st.disqualified = true
			return
		}
		st.callSites = append(st.callSites, callSite{
			call:     parent,
			getprop:  n,
			receiver: getpropChildren[0],
			module:   moduleOf(a, sm, parent),
		})
		return
	}
	// GETPROP that is itself the defining assignment's LHS is reached with
	// parent == the ASSIGN node and n == the LHS; that is a declaration,
	// not a read, and must not disqualify.
	if pv.Kind == ir.ASSIGN && len(pv.Children) == 2 && pv.Children[0] == n {
		return
	}
	st.disqualified = true
}

func collectAccessorNames(a *ir.Arena, root ir.NodeId) map[string]bool {
	names := map[string]bool{}
	var walk func(n ir.NodeId)
	walk = func(n ir.NodeId) {
		v := a.Node(n)
		if v.Kind == ir.GETTER || v.Kind == ir.SETTER {
			names[v.Payload.Str] = true
		}
		for _, c := range v.Children {
			walk(c)
		}
	}
	walk(root)
	return names
}

func functionParamList(a *ir.Arena, fn ir.NodeId) ir.NodeId {
	for _, c := range a.Children(fn) {
		if a.Kind(c) == ir.PARAM_LIST {
			return c
		}
	}
	return ir.NoNode
}

// usesThis and usesSuper, and rewriteThisToSelf, all stay within fn's own
// `this`-scope: they recurse through ARROW_FUNCTION bodies (arrows share
// the enclosing `this`) but stop at any nested FUNCTION/CLASS boundary
// (those rebind `this` to something else).
func usesThis(a *ir.Arena, fn ir.NodeId) bool {
	found := false
	walkThisScope(a, fn, true, func(n ir.NodeId) {
		if a.Kind(n) == ir.THIS {
			found = true
		}
	})
	return found
}

func usesSuper(a *ir.Arena, fn ir.NodeId) bool {
	found := false
	walkThisScope(a, fn, true, func(n ir.NodeId) {
		if a.Kind(n) == ir.SUPER {
			found = true
		}
	})
	return found
}

func rewriteThisToSelf(a *ir.Arena, fn ir.NodeId, selfName string) {
	var thisNodes []ir.NodeId
	walkThisScope(a, fn, true, func(n ir.NodeId) {
		if a.Kind(n) == ir.THIS {
			thisNodes = append(thisNodes, n)
		}
	})
	for _, n := range thisNodes {
		repl := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: selfName})
		a.Replace(n, repl)
	}
}

func walkThisScope(a *ir.Arena, n ir.NodeId, isRoot bool, visit func(ir.NodeId)) {
	v := a.Node(n)
	if !isRoot {
		switch v.Kind {
		case ir.FUNCTION, ir.CLASS:
			return
		}
	}
	visit(n)
	for _, c := range v.Children {
		walkThisScope(a, c, false, visit)
	}
}

func moduleOf(a *ir.Arena, sm *ir.SourceMap, n ir.NodeId) string {
	if sm == nil {
		return ""
	}
	ref := a.Node(n).SourceRef
	return sm.File(ref)
}

// shapeKey computes a deterministic structural encoding of n, used to
// decide whether two candidate definitions are "identical RHS structure"
// per §4.9 (byte-identical definitions are acceptable; the first is kept).
func shapeKey(a *ir.Arena, n ir.NodeId) string {
	var buf bytes.Buffer
	var enc func(id ir.NodeId)
	enc = func(id ir.NodeId) {
		v := a.Node(id)
		fmt.Fprintf(&buf, "(%d", v.Kind)
		if v.Payload.Str != "" {
			fmt.Fprintf(&buf, ":s=%q", v.Payload.Str)
		}
		if v.Payload.Num != nil {
			fmt.Fprintf(&buf, ":n=%s", v.Payload.Num.String())
		}
		fmt.Fprintf(&buf, ":f=%d", v.Flags)
		for _, c := range v.Children {
			enc(c)
		}
		buf.WriteByte(')')
	}
	enc(n)
	return buf.String()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
