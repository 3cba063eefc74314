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

package scope_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"optlang.dev/core/internal/ir"
	"optlang.dev/core/internal/scope"
)

// buildFixture builds:
//
//	function A() {
//	  var x = 1;
//	  if (x) {
//	    A(x);
//	  }
//	  x = 2;
//	}
//	A();
//
// returning the arena and the script root.
func buildFixture(a *ir.Arena) (script ir.NodeId, xDecl, xRead, xWrite, outerCall ir.NodeId) {
	xName := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	one := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	xDeclNode := a.Alloc(ir.NAME_DECL, ir.Payload{}, xName, one)
	varDecl := a.Alloc(ir.VAR_DECL, ir.Payload{}, xDeclNode)

	condRef := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	calleeA := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "A"})
	argX := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	innerCall := a.Alloc(ir.CALL, ir.Payload{}, calleeA, argX)
	innerStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, innerCall)
	ifBody := a.Alloc(ir.BLOCK, ir.Payload{}, innerStmt)
	ifStmt := a.Alloc(ir.IF, ir.Payload{}, condRef, ifBody)

	xWriteTarget := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	two := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	assign := a.Alloc(ir.ASSIGN, ir.Payload{}, xWriteTarget, two)
	assignStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, assign)

	fnBody := a.Alloc(ir.BLOCK, ir.Payload{}, varDecl, ifStmt, assignStmt)
	fn := a.Alloc(ir.FUNCTION, ir.Payload{Str: "A"}, fnBody)

	outerCallee := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "A"})
	outerCallNode := a.Alloc(ir.CALL, ir.Payload{}, outerCallee)
	outerStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, outerCallNode)

	script = a.Alloc(ir.SCRIPT, ir.Payload{}, fn, outerStmt)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)

	return script, xDeclNode, condRef, xWriteTarget, outerCallNode
}

func findBinding(r *scope.Result, name string) (scope.Binding, bool) {
	for _, b := range r.Bindings() {
		if b.Name == name {
			return b, true
		}
	}
	return scope.Binding{}, false
}

func TestCollectResolvesLexicalReferences(t *testing.T) {
	a := ir.NewArena()
	script, _, _, _, _ := buildFixture(a)

	r := scope.Collect(a, script)

	fnBinding, ok := findBinding(r, "A")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(fnBinding.Kind, scope.FunctionDecl))

	xBinding, ok := findBinding(r, "x")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(xBinding.Kind, scope.Var))
	qt.Assert(t, qt.Equals(len(xBinding.References), 4)) // decl init, if-cond read, call-arg read, trailing write

	qt.Assert(t, qt.Equals(len(r.Globals()), 0))
}

func TestCollectClassifiesWritesAndAliasingCalls(t *testing.T) {
	a := ir.NewArena()
	script, _, _, _, _ := buildFixture(a)

	r := scope.Collect(a, script)

	xBinding, ok := findBinding(r, "x")
	qt.Assert(t, qt.IsTrue(ok))

	var reads, writes, aliasing int
	for _, ref := range xBinding.References {
		switch ref.Kind {
		case scope.Read:
			reads++
		case scope.Write:
			writes++
		}
		if ref.Aliasing {
			aliasing++
		}
	}
	// x is read in the if-condition and passed as a call argument (aliasing),
	// and written once by the trailing assignment.
	qt.Assert(t, qt.Equals(reads, 2))
	qt.Assert(t, qt.Equals(writes, 1))
	qt.Assert(t, qt.Equals(aliasing, 1))
	qt.Assert(t, qt.IsTrue(xBinding.IsEscaped()))
}

func TestCollectIsDeterministicAcrossRuns(t *testing.T) {
	a := ir.NewArena()
	script, _, _, _, _ := buildFixture(a)

	r1 := scope.Collect(a, script)
	r2 := scope.Collect(a, script)

	qt.Assert(t, qt.Equals(len(r1.Bindings()), len(r2.Bindings())))
	qt.Assert(t, qt.Equals(len(r1.Scopes()), len(r2.Scopes())))
	for i := range r1.Bindings() {
		b1, b2 := r1.Bindings()[i], r2.Bindings()[i]
		qt.Assert(t, qt.Equals(b1.Name, b2.Name))
		qt.Assert(t, qt.Equals(len(b1.References), len(b2.References)))
	}
}

func TestParamIsWellDefinedButNotAssignedOnceWhenReassigned(t *testing.T) {
	a := ir.NewArena()
	pName := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "p"})
	params := a.Alloc(ir.PARAM_LIST, ir.Payload{}, pName)

	pRead := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "p"})
	readStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, pRead)

	pWriteTarget := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "p"})
	lit := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	assign := a.Alloc(ir.ASSIGN, ir.Payload{}, pWriteTarget, lit)
	assignStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, assign)

	body := a.Alloc(ir.BLOCK, ir.Payload{}, readStmt, assignStmt)
	fn := a.Alloc(ir.FUNCTION, ir.Payload{Str: "f"}, params, body)
	script := a.Alloc(ir.SCRIPT, ir.Payload{}, fn)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)

	r := scope.Collect(a, script)

	pBinding, ok := findBinding(r, "p")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(pBinding.Kind, scope.Param))
	// p is bound on entry, so the read does not precede its first write and
	// p is well-defined; the later reassignment is a second write, so p is
	// not assigned exactly once.
	qt.Assert(t, qt.IsTrue(pBinding.IsWellDefined(r)))
	qt.Assert(t, qt.IsTrue(!pBinding.IsAssignedOnceInLifetime(r)))
}

func TestBlockScopedLetIsNotVisibleOutsideItsBlock(t *testing.T) {
	a := ir.NewArena()
	yName := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "y"})
	init := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	yDecl := a.Alloc(ir.NAME_DECL, ir.Payload{}, yName, init)
	letDecl := a.Alloc(ir.LET_DECL, ir.Payload{}, yDecl)
	inner := a.Alloc(ir.BLOCK, ir.Payload{}, letDecl)

	cond := a.AllocLeaf(ir.NUMBER, ir.Payload{})
	ifStmt := a.Alloc(ir.IF, ir.Payload{}, cond, inner)

	yFree := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "y"})
	freeStmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, yFree)

	script := a.Alloc(ir.SCRIPT, ir.Payload{}, ifStmt, freeStmt)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)

	r := scope.Collect(a, script)

	qt.Assert(t, qt.Equals(len(r.Globals()), 1))
	qt.Assert(t, qt.Equals(r.Globals()[0].Node, yFree))
}
