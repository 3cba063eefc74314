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

package ir_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"optlang.dev/core/internal/ir"
)

func TestAllocSetsParentLinks(t *testing.T) {
	a := ir.NewArena()
	lhs := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	rhs := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	assign := a.Alloc(ir.ASSIGN, ir.Payload{}, lhs, rhs)

	qt.Assert(t, qt.Equals(a.Parent(lhs), assign))
	qt.Assert(t, qt.Equals(a.Parent(rhs), assign))
	qt.Assert(t, qt.DeepEquals(a.Children(assign), []ir.NodeId{lhs, rhs}))
}

func TestAllocRejectsParentedChild(t *testing.T) {
	a := ir.NewArena()
	lhs := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	_ = a.Alloc(ir.EXPR_RESULT, ir.Payload{}, lhs)

	defer func() {
		r := recover()
		qt.Assert(t, qt.IsTrue(r != nil))
		_, ok := r.(*ir.FatalError)
		qt.Assert(t, qt.IsTrue(ok))
	}()
	a.Alloc(ir.EXPR_RESULT, ir.Payload{}, lhs)
}

func TestDetachClearsParent(t *testing.T) {
	a := ir.NewArena()
	call := a.AllocLeaf(ir.CALL, ir.Payload{})
	block := a.Alloc(ir.BLOCK, ir.Payload{}, call)

	a.Detach(call)

	qt.Assert(t, qt.Equals(a.Parent(call), ir.NoNode))
	qt.Assert(t, qt.DeepEquals(a.Children(block), []ir.NodeId{}))
}

func TestReplaceSplicesIntoSamePosition(t *testing.T) {
	a := ir.NewArena()
	oldCall := a.AllocLeaf(ir.CALL, ir.Payload{})
	other := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	block := a.Alloc(ir.BLOCK, ir.Payload{}, oldCall, other)

	newCall := a.AllocLeaf(ir.CALL, ir.Payload{})
	a.Replace(oldCall, newCall)

	qt.Assert(t, qt.DeepEquals(a.Children(block), []ir.NodeId{newCall, other}))
	qt.Assert(t, qt.Equals(a.Parent(oldCall), ir.NoNode))
	qt.Assert(t, qt.Equals(a.Parent(newCall), block))
}

func TestInsertBeforeAndAfter(t *testing.T) {
	a := ir.NewArena()
	mid := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	block := a.Alloc(ir.BLOCK, ir.Payload{}, mid)

	before := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	after := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	a.InsertBefore(mid, before)
	a.InsertAfter(mid, after)

	qt.Assert(t, qt.DeepEquals(a.Children(block), []ir.NodeId{before, mid, after}))
}

func TestChangeScopeOf(t *testing.T) {
	a := ir.NewArena()
	ret := a.Alloc(ir.RETURN, ir.Payload{})
	body := a.Alloc(ir.BLOCK, ir.Payload{}, ret)
	fn := a.Alloc(ir.FUNCTION, ir.Payload{}, body)
	script := a.Alloc(ir.SCRIPT, ir.Payload{}, fn)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)

	qt.Assert(t, qt.Equals(a.ChangeScopeOf(ret), fn))
	qt.Assert(t, qt.Equals(a.ChangeScopeOf(fn), fn))
	qt.Assert(t, qt.Equals(a.ChangeScopeOf(script), script))
}

func TestWalkVisitsInDocumentOrderAndCanAbort(t *testing.T) {
	a := ir.NewArena()
	l1 := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	l2 := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	skipped := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	inner := a.Alloc(ir.ARRAY_LIT, ir.Payload{}, skipped)
	root := a.Alloc(ir.ARRAY_LIT, ir.Payload{}, l1, inner, l2)

	var visited []ir.NodeId
	ir.Walk(a, root, ir.Visitor{
		Before: func(a *ir.Arena, n ir.NodeId) bool {
			visited = append(visited, n)
			return n != inner // abort descent into inner
		},
	})

	qt.Assert(t, qt.DeepEquals(visited, []ir.NodeId{root, l1, inner, l2}))
}
