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

package ir

import "fmt"

// FatalError reports arena misuse (C1 §4.1): inserting an already-parented
// node, addressing a freed NodeId, and similar programmer errors in pass
// authorship. These are tier-1 programmatic faults per §7: the pass
// manager recovers them at the pass boundary and aborts compilation naming
// the offending pass.
type FatalError struct {
	Op      string
	NodeId  NodeId
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ir: %s(n%d): %s", e.Op, e.NodeId, e.Message)
}

func fatalf(op string, n NodeId, format string, args ...any) {
	panic(&FatalError{Op: op, NodeId: n, Message: fmt.Sprintf(format, args...)})
}

// Arena owns every Node of one compilation. Every other component in the
// compiler holds NodeIds, never node handles; the arena is the sole owner
// (see §3 "Ownership").
type Arena struct {
	nodes []node // index 0 is the unused NoNode sentinel
}

// NewArena returns an empty arena. Node id 0 (NoNode) is reserved.
func NewArena() *Arena {
	return &Arena{nodes: make([]node, 1)}
}

func (a *Arena) mustLive(op string, id NodeId) *node {
	if id == NoNode {
		fatalf(op, id, "NoNode is not a live node")
	}
	if int(id) < 0 || int(id) >= len(a.nodes) {
		fatalf(op, id, "id out of range")
	}
	n := &a.nodes[id]
	if n.freed {
		fatalf(op, id, "use of freed NodeId")
	}
	return n
}

// Node returns a read-only snapshot of the current shape of id.
func (a *Arena) Node(id NodeId) View {
	n := a.mustLive("Node", id)
	return View{
		Id:            id,
		Kind:          n.kind,
		Payload:       n.payload,
		Children:      append([]NodeId(nil), n.children...),
		Parent:        n.parent,
		SourceRef:     n.sourceRef,
		AnnotationRef: n.annotationRef,
		ColorRef:      n.colorRef,
		Flags:         n.flags,
	}
}

// Kind, Parent and Children are convenience single-field accessors that
// avoid building a full View in hot traversal loops.
func (a *Arena) Kind(id NodeId) Kind        { return a.mustLive("Kind", id).kind }
func (a *Arena) Parent(id NodeId) NodeId    { return a.mustLive("Parent", id).parent }
func (a *Arena) Children(id NodeId) []NodeId { return a.mustLive("Children", id).children }
func (a *Arena) Flags(id NodeId) Flags      { return a.mustLive("Flags", id).flags }
func (a *Arena) Payload(id NodeId) Payload  { return a.mustLive("Payload", id).payload }

// SetFlags replaces the boolean-bit set of id. Flags do not participate in
// parent/child invariants and may be set freely by the allocating pass.
func (a *Arena) SetFlags(id NodeId, f Flags) { a.mustLive("SetFlags", id).flags = f }

// SetRefs copies the source/annotation/color refs of id. Passes that
// synthesize nodes SHOULD use this to carry over the refs of the node they
// are replacing (§4.2), so downstream source maps and diagnostics remain
// usable.
func (a *Arena) SetRefs(id NodeId, source SourceRef, annotation AnnotationId, color ColorId) {
	n := a.mustLive("SetRefs", id)
	n.sourceRef = source
	n.annotationRef = annotation
	n.colorRef = color
}

func (a *Arena) SetColor(id NodeId, c ColorId) { a.mustLive("SetColor", id).colorRef = c }

// Alloc creates a new node of the given kind with the given children,
// appending it to the arena. Every child must currently be parentless (a
// detached root or a node fresh from Alloc); violating this is a fatal
// arena-misuse error (§4.1).
func (a *Arena) Alloc(kind Kind, payload Payload, children ...NodeId) NodeId {
	for _, c := range children {
		cn := a.mustLive("Alloc", c)
		if cn.parent != NoNode {
			fatalf("Alloc", c, "child already has a parent (n%d)", cn.parent)
		}
	}
	id := NodeId(len(a.nodes))
	a.nodes = append(a.nodes, node{
		kind:     kind,
		payload:  payload,
		children: append([]NodeId(nil), children...),
	})
	for _, c := range children {
		a.nodes[c].parent = id
	}
	return id
}

// AllocLeaf is a convenience for childless nodes (literals, identifiers).
func (a *Arena) AllocLeaf(kind Kind, payload Payload) NodeId {
	return a.Alloc(kind, payload)
}

// Detach removes n from its parent's child list, leaving n a root of a
// detached subtree. Detaching a node with no parent is a no-op (it is
// already a root); detaching NoNode or ROOT is fatal.
func (a *Arena) Detach(n NodeId) {
	nn := a.mustLive("Detach", n)
	if nn.kind == ROOT {
		fatalf("Detach", n, "cannot detach ROOT")
	}
	p := nn.parent
	if p == NoNode {
		return
	}
	pn := a.mustLive("Detach", p)
	idx := indexOf(pn.children, n)
	if idx < 0 {
		fatalf("Detach", n, "parent n%d does not list n%d as a child", p, n)
	}
	pn.children = append(pn.children[:idx], pn.children[idx+1:]...)
	nn.parent = NoNode
}

// Replace splices newId where oldId used to sit: same parent, same child
// index. oldId becomes detached (parent cleared) but is not freed. newId
// must currently be parentless.
func (a *Arena) Replace(oldId, newId NodeId) {
	on := a.mustLive("Replace", oldId)
	nn := a.mustLive("Replace", newId)
	if nn.parent != NoNode {
		fatalf("Replace", newId, "replacement already has a parent (n%d)", nn.parent)
	}
	p := on.parent
	if p == NoNode {
		fatalf("Replace", oldId, "node has no parent to splice into")
	}
	pn := a.mustLive("Replace", p)
	idx := indexOf(pn.children, oldId)
	if idx < 0 {
		fatalf("Replace", oldId, "parent n%d does not list n%d as a child", p, oldId)
	}
	pn.children[idx] = newId
	nn.parent = p
	on.parent = NoNode
}

// AddChildToBack appends child to the end of parent's child list.
func (a *Arena) AddChildToBack(parent, child NodeId) {
	a.insertAt("AddChildToBack", parent, child, -1)
}

// AddChildToFront prepends child to parent's child list.
func (a *Arena) AddChildToFront(parent, child NodeId) {
	a.insertAt("AddChildToFront", parent, child, 0)
}

// InsertBefore inserts newId as sibling directly before anchor.
func (a *Arena) InsertBefore(anchor, newId NodeId) {
	an := a.mustLive("InsertBefore", anchor)
	p := an.parent
	if p == NoNode {
		fatalf("InsertBefore", anchor, "anchor has no parent")
	}
	pn := a.mustLive("InsertBefore", p)
	idx := indexOf(pn.children, anchor)
	if idx < 0 {
		fatalf("InsertBefore", anchor, "parent n%d does not list n%d as a child", p, anchor)
	}
	a.insertAt("InsertBefore", p, newId, idx)
}

// InsertAfter inserts newId as sibling directly after anchor.
func (a *Arena) InsertAfter(anchor, newId NodeId) {
	an := a.mustLive("InsertAfter", anchor)
	p := an.parent
	if p == NoNode {
		fatalf("InsertAfter", anchor, "anchor has no parent")
	}
	pn := a.mustLive("InsertAfter", p)
	idx := indexOf(pn.children, anchor)
	if idx < 0 {
		fatalf("InsertAfter", anchor, "parent n%d does not list n%d as a child", p, anchor)
	}
	a.insertAt("InsertAfter", p, newId, idx+1)
}

// insertAt inserts child into parent's child list at position idx (idx<0
// means append).
func (a *Arena) insertAt(op string, parent, child NodeId, idx int) {
	pn := a.mustLive(op, parent)
	cn := a.mustLive(op, child)
	if cn.parent != NoNode {
		fatalf(op, child, "child already has a parent (n%d)", cn.parent)
	}
	if idx < 0 || idx > len(pn.children) {
		idx = len(pn.children)
	}
	pn.children = append(pn.children, NoNode)
	copy(pn.children[idx+1:], pn.children[idx:])
	pn.children[idx] = child
	cn.parent = parent
}

func indexOf(ids []NodeId, target NodeId) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

// ChangeScopeOf returns the nearest ancestor of n (including n itself) that
// is a change scope, per §3 "Change scope". Every reachable node other than
// ROOT has one, since SCRIPT is always an ancestor.
func (a *Arena) ChangeScopeOf(n NodeId) NodeId {
	cur := n
	for cur != NoNode {
		if a.mustLive("ChangeScopeOf", cur).kind.IsChangeScope() {
			return cur
		}
		cur = a.nodes[cur].parent
	}
	fatalf("ChangeScopeOf", n, "no enclosing change scope found")
	return NoNode
}
