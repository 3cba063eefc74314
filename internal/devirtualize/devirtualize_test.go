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

package devirtualize_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/devirtualize"
	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/ir"
)

// buildFixture builds:
//
//	function A() {}
//	A.prototype.foo = function() { return this.x; };
//	var o = new A();
//	o.foo();
func buildFixture(a *ir.Arena) (script, defAssign, methodFn, call ir.NodeId, receiverIdent ir.NodeId) {
	aBody := a.Alloc(ir.BLOCK, ir.Payload{})
	aFn := a.Alloc(ir.FUNCTION, ir.Payload{Str: "A"}, aBody)
	aFnStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, aFn)

	aIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "A"})
	protoProp := a.Alloc(ir.GETPROP, ir.Payload{Str: "prototype"}, aIdent)
	fooProp := a.Alloc(ir.GETPROP, ir.Payload{Str: "foo"}, protoProp)

	this := a.AllocLeaf(ir.THIS, ir.Payload{})
	thisX := a.Alloc(ir.GETPROP, ir.Payload{Str: "x"}, this)
	ret := a.Alloc(ir.RETURN, ir.Payload{}, thisX)
	methodBody := a.Alloc(ir.BLOCK, ir.Payload{}, ret)
	paramList := a.Alloc(ir.PARAM_LIST, ir.Payload{})
	methodFn = a.Alloc(ir.FUNCTION, ir.Payload{}, paramList, methodBody)

	defAssign = a.Alloc(ir.ASSIGN, ir.Payload{}, fooProp, methodFn)
	defStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, defAssign)

	oName := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "o"})
	aIdent2 := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "A"})
	newA := a.Alloc(ir.NEW, ir.Payload{}, aIdent2)
	oDecl := a.Alloc(ir.NAME_DECL, ir.Payload{}, oName, newA)
	varO := a.Alloc(ir.VAR_DECL, ir.Payload{}, oDecl)

	receiverIdent = a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "o"})
	calleeGetprop := a.Alloc(ir.GETPROP, ir.Payload{Str: "foo"}, receiverIdent)
	call = a.Alloc(ir.CALL, ir.Payload{}, calleeGetprop)
	callStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, call)

	script = a.Alloc(ir.SCRIPT, ir.Payload{}, aFnStmt, defStmt, varO, callStmt)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)
	return script, defAssign, methodFn, call, receiverIdent
}

func TestRunDevirtualizesSingleDefinitionWithOrdinaryCallSite(t *testing.T) {
	a := ir.NewArena()
	script, defAssign, methodFn, call, receiverIdent := buildFixture(a)
	tracker := change.NewTracker(a)
	bus := diag.NewBus()

	res := devirtualize.Run(a, script, nil, nil, tracker, bus)
	qt.Assert(t, qt.Equals(res.Rewritten["foo"], "foo$A"))
	qt.Assert(t, qt.HasLen(bus.All(), 0))

	lhs := a.Node(defAssign).Children[0]
	qt.Assert(t, qt.Equals(a.Node(lhs).Kind, ir.IDENTIFIER))
	qt.Assert(t, qt.Equals(a.Node(lhs).Payload.Str, "foo$A"))

	params := a.Node(methodFn).Children[0]
	paramNames := a.Node(params).Children
	qt.Assert(t, qt.HasLen(paramNames, 1))
	qt.Assert(t, qt.Equals(a.Node(paramNames[0]).Payload.Str, "self"))

	callChildren := a.Node(call).Children
	qt.Assert(t, qt.HasLen(callChildren, 2))
	qt.Assert(t, qt.Equals(a.Node(callChildren[0]).Payload.Str, "foo$A"))
	qt.Assert(t, qt.Equals(callChildren[1], receiverIdent))
}

func TestRunRewritesThisInsideBody(t *testing.T) {
	a := ir.NewArena()
	script, _, methodFn, _, _ := buildFixture(a)
	tracker := change.NewTracker(a)
	bus := diag.NewBus()

	devirtualize.Run(a, script, nil, nil, tracker, bus)

	body := a.Node(methodFn).Children[1]
	ret := a.Node(body).Children[0]
	thisX := a.Node(ret).Children[0]
	receiver := a.Node(thisX).Children[0]
	qt.Assert(t, qt.Equals(a.Node(receiver).Kind, ir.IDENTIFIER))
	qt.Assert(t, qt.Equals(a.Node(receiver).Payload.Str, "self"))
}

func TestRunLeavesProgramUnchangedWhenAliasEscapes(t *testing.T) {
	a := ir.NewArena()
	aBody := a.Alloc(ir.BLOCK, ir.Payload{})
	aFn := a.Alloc(ir.FUNCTION, ir.Payload{Str: "A"}, aBody)
	aFnStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, aFn)

	aIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "A"})
	protoProp := a.Alloc(ir.GETPROP, ir.Payload{Str: "prototype"}, aIdent)
	fooProp := a.Alloc(ir.GETPROP, ir.Payload{Str: "foo"}, protoProp)
	this := a.AllocLeaf(ir.THIS, ir.Payload{})
	thisX := a.Alloc(ir.GETPROP, ir.Payload{Str: "x"}, this)
	ret := a.Alloc(ir.RETURN, ir.Payload{}, thisX)
	methodBody := a.Alloc(ir.BLOCK, ir.Payload{}, ret)
	paramList := a.Alloc(ir.PARAM_LIST, ir.Payload{})
	methodFn := a.Alloc(ir.FUNCTION, ir.Payload{}, paramList, methodBody)
	defAssign := a.Alloc(ir.ASSIGN, ir.Payload{}, fooProp, methodFn)
	defStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, defAssign)

	oName := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "o"})
	aIdent2 := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "A"})
	newA := a.Alloc(ir.NEW, ir.Payload{}, aIdent2)
	oDecl := a.Alloc(ir.NAME_DECL, ir.Payload{}, oName, newA)
	varO := a.Alloc(ir.VAR_DECL, ir.Payload{}, oDecl)

	// var g = o.foo; -- an escaping alias read, not a call.
	gName := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "g"})
	oRef := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "o"})
	aliasGetprop := a.Alloc(ir.GETPROP, ir.Payload{Str: "foo"}, oRef)
	gDecl := a.Alloc(ir.NAME_DECL, ir.Payload{}, gName, aliasGetprop)
	varG := a.Alloc(ir.VAR_DECL, ir.Payload{}, gDecl)

	receiverIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "o"})
	calleeGetprop := a.Alloc(ir.GETPROP, ir.Payload{Str: "foo"}, receiverIdent)
	call := a.Alloc(ir.CALL, ir.Payload{}, calleeGetprop)
	callStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, call)

	script := a.Alloc(ir.SCRIPT, ir.Payload{}, aFnStmt, defStmt, varO, varG, callStmt)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)

	tracker := change.NewTracker(a)
	bus := diag.NewBus()
	res := devirtualize.Run(a, script, nil, nil, tracker, bus)

	qt.Assert(t, qt.HasLen(res.Rewritten, 0))

	lhs := a.Node(defAssign).Children[0]
	qt.Assert(t, qt.Equals(a.Node(lhs).Kind, ir.GETPROP))
	qt.Assert(t, qt.Equals(a.Node(lhs).Payload.Str, "foo"))

	callChildren := a.Node(call).Children
	qt.Assert(t, qt.HasLen(callChildren, 1))
	qt.Assert(t, qt.Equals(a.Node(callChildren[0]).Kind, ir.GETPROP))
}
