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

// Package scope is C5, the scope & reference collector. It follows the
// recursive-descent, explicit-stack shape of internal/core/compile's
// compiler: a slice of frames pushed/popped as the walk enters and leaves
// each construct, rather than a generic visitor, because resolving a name
// and classifying a reference both need to know the exact syntactic
// position (which child, of which kind of parent) the identifier sits in.
package scope

import "optlang.dev/core/internal/ir"

// Id addresses a Scope within a Result. NoScope is the zero value.
type Id int32

const NoScope Id = 0

// BindingId addresses a Binding within a Result. NoBinding is the zero
// value, used for free (global) names that resolve to nothing declared in
// the program.
type BindingId int32

const NoBinding BindingId = 0

// Kind is the closed set of binding kinds §4.3 lists.
type Kind int

const (
	Var Kind = iota
	Let
	Const
	FunctionDecl
	ClassDecl
	Param
	CatchParam
	Imported
)

// ScopeKind distinguishes why a Scope was created, for diagnostics only;
// resolution itself only cares about the parent chain.
type ScopeKind int

const (
	GlobalScope ScopeKind = iota
	FunctionScope
	BlockScope
	CatchScope
)

// Scope is a single lexical scope, per §4.3.
type Scope struct {
	Kind   ScopeKind
	Owner  ir.NodeId // the node that created the scope (the Collect root, FUNCTION/ARROW_FUNCTION/STATIC_BLOCK, BLOCK, CATCH)
	Parent Id
}

// RefKind is the closed set of reference kinds §3 lists.
type RefKind int

const (
	Declaration RefKind = iota
	Read
	Write
	ReadWrite
)

// Reference is one use or declaration of a Binding, per §3.
type Reference struct {
	Node        ir.NodeId
	Binding     BindingId // NoBinding for a free (global) reference
	BasicBlock  ir.NodeId
	Kind        RefKind
	ModuleScope bool // true if this reference resolved to no Binding (a free name)
	Aliasing    bool // true if the identifier escapes to an unknown receiver here

	order int // preorder visitation index, used only to approximate control flow
}

// Binding is immutable once Collect returns, per §4.3: a fresh Collect
// call is required to see any update, never a mutation of an existing one.
type Binding struct {
	Name       string
	Kind       Kind
	DeclNode   ir.NodeId
	Scope      Id
	References []Reference
}

// IsAssignedOnceInLifetime reports whether the binding has exactly one
// write (counting its declaring initializer, if any, or a parameter's
// binding on entry, as the first write) and that write cannot re-execute:
// it is not nested in a loop, and not nested in a function/arrow/static-block
// other than the one that declared the binding.
func (b Binding) IsAssignedOnceInLifetime(r *Result) bool {
	writes := 0
	if b.Kind == Param {
		writes++ // bound on entry by the call
	}
	for _, ref := range b.References {
		if ref.Kind == Write || ref.Kind == ReadWrite || (ref.Kind == Declaration && hasInit(r, ref)) {
			writes++
		}
	}
	if writes != 1 {
		return false
	}
	if b.Kind == Param {
		return true // the only write is the binding on entry
	}
	for _, ref := range b.References {
		if ref.Kind == Write || ref.Kind == ReadWrite || ref.Kind == Declaration {
			return !r.mayReexecute(b.DeclNode, ref.Node)
		}
	}
	return false
}

// IsWellDefined reports that no read of the binding precedes its first
// write in document order (a parameter counts as written on entry, before
// any reference) — an approximation of "no read precedes the
// write on any control-flow path from scope entry" (§4.3) that is sound
// for straight-line and single-assignment code but does not model
// path-sensitive control flow precisely; a pass relying on this for a
// safety-critical rewrite should additionally check IsAssignedOnceInLifetime.
func (b Binding) IsWellDefined(r *Result) bool {
	firstWrite := -1
	if b.Kind == Param {
		firstWrite = 0 // reference orders start at 1
	}
	for _, ref := range b.References {
		if ref.Kind == Write || ref.Kind == ReadWrite || ref.Kind == Declaration {
			if firstWrite == -1 || ref.order < firstWrite {
				firstWrite = ref.order
			}
		}
	}
	if firstWrite == -1 {
		return false
	}
	for _, ref := range b.References {
		if ref.Kind == Read && ref.order < firstWrite {
			return false
		}
	}
	return true
}

// IsEscaped reports whether any reference to the binding aliases it to an
// unknown receiver (passed as an argument, stored, returned, …).
func (b Binding) IsEscaped() bool {
	for _, ref := range b.References {
		if ref.Aliasing {
			return true
		}
	}
	return false
}

func hasInit(r *Result, ref Reference) bool {
	v := r.arena.Node(ref.Node)
	return len(v.Children) > 0
}

// mayReexecute reports whether writeNode is nested, between declScope and
// writeNode, in a loop or in a change scope other than declScope.
func (r *Result) mayReexecute(declNode, writeNode ir.NodeId) bool {
	declScope := r.arena.ChangeScopeOf(declNode)
	cur := r.arena.Parent(writeNode)
	for cur != ir.NoNode {
		k := r.arena.Kind(cur)
		switch k {
		case ir.FOR, ir.FOR_IN, ir.FOR_OF, ir.WHILE, ir.DO_WHILE:
			return true
		}
		if k.IsChangeScope() && cur != declScope {
			return true
		}
		if cur == declScope {
			return false
		}
		cur = r.arena.Parent(cur)
	}
	return false
}

// Result is the output of one Collect call: a full scope/binding/reference
// map for the subtree rooted wherever Collect was asked to start.
type Result struct {
	arena *ir.Arena

	scopes   []Scope
	bindings []Binding

	// resolved maps an IDENTIFIER node used in a read/write position to the
	// binding it resolved to, for rewriting passes that need "what does this
	// name refer to" without re-walking References.
	resolved map[ir.NodeId]BindingId

	globals []Reference
}

// Scopes and Bindings are indexed by Id and BindingId; index 0 of each is
// an empty placeholder standing for NoScope and NoBinding.
func (r *Result) Scopes() []Scope       { return r.scopes }
func (r *Result) Bindings() []Binding   { return r.bindings }
func (r *Result) Globals() []Reference  { return r.globals }
func (r *Result) Binding(id BindingId) Binding {
	if id == NoBinding {
		return Binding{}
	}
	return r.bindings[id]
}
func (r *Result) ResolvedBinding(identifierNode ir.NodeId) (BindingId, bool) {
	id, ok := r.resolved[identifierNode]
	return id, ok
}
