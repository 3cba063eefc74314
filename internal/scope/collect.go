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

package scope

import "optlang.dev/core/internal/ir"

type frame struct {
	scope    Id
	varScope Id
	names    map[string]BindingId
}

type collector struct {
	arena   *ir.Arena
	result  *Result
	stack   []frame
	block   ir.NodeId
	order   int
}

// Collect produces a fresh scope/binding/reference map for the subtree
// rooted at root, per §4.3. Two Collect calls over an unmodified tree
// produce byte-identical results (P4): traversal order, scope creation
// order and reference order are all deterministic functions of the tree
// shape alone.
func Collect(arena *ir.Arena, root ir.NodeId) *Result {
	c := &collector{
		arena: arena,
		result: &Result{
			arena: arena,
			// Index 0 of each table is reserved, so no real scope or binding
			// gets the id NoScope or NoBinding.
			scopes:   make([]Scope, 1),
			bindings: make([]Binding, 1),
			resolved: map[ir.NodeId]BindingId{},
		},
		block: root,
	}
	c.pushScope(GlobalScope, root, true)
	c.visitStmt(root)
	c.popScope()
	return c.result
}

func (c *collector) pushScope(kind ScopeKind, owner ir.NodeId, isVarScope bool) {
	parent := NoScope
	parentVar := NoScope
	if len(c.stack) > 0 {
		top := c.stack[len(c.stack)-1]
		parent = top.scope
		parentVar = top.varScope
	}
	id := Id(len(c.result.scopes))
	c.result.scopes = append(c.result.scopes, Scope{Kind: kind, Owner: owner, Parent: parent})
	varScope := parentVar
	if isVarScope {
		varScope = id
	}
	c.stack = append(c.stack, frame{scope: id, varScope: varScope, names: map[string]BindingId{}})
}

func (c *collector) popScope() {
	c.stack = c.stack[:len(c.stack)-1]
}

func (c *collector) top() *frame { return &c.stack[len(c.stack)-1] }

func (c *collector) declare(name string, kind Kind, declNode ir.NodeId) BindingId {
	targetScope := c.top().scope
	if kind == Var {
		targetScope = c.top().varScope
	}
	id := BindingId(len(c.result.bindings))
	c.result.bindings = append(c.result.bindings, Binding{
		Name: name, Kind: kind, DeclNode: declNode, Scope: targetScope,
	})
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].scope == targetScope {
			c.stack[i].names[name] = id
			break
		}
	}
	return id
}

func (c *collector) resolve(name string) BindingId {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if id, ok := c.stack[i].names[name]; ok {
			return id
		}
	}
	return NoBinding
}

func (c *collector) addRef(binding BindingId, node ir.NodeId, kind RefKind, aliasing bool) {
	c.order++
	ref := Reference{
		Node: node, Binding: binding, BasicBlock: c.block, Kind: kind,
		ModuleScope: binding == NoBinding, Aliasing: aliasing, order: c.order,
	}
	if binding == NoBinding {
		c.result.globals = append(c.result.globals, ref)
	} else {
		c.result.bindings[binding].References = append(c.result.bindings[binding].References, ref)
	}
	if kind != Declaration {
		c.result.resolved[node] = binding
	}
}

// visitStmt visits n in statement position: declarations here create
// bindings, and blocks/control flow may introduce scopes or basic-block
// boundaries.
func (c *collector) visitStmt(n ir.NodeId) {
	k := c.arena.Kind(n)
	switch k {
	case ir.ROOT, ir.CHANGE_SCOPE_ROOT:
		for _, stmt := range c.arena.Children(n) {
			c.visitStmt(stmt)
		}
	case ir.SCRIPT:
		for _, stmt := range c.arena.Children(n) {
			c.visitStmt(stmt)
		}

	case ir.VAR_DECL, ir.LET_DECL, ir.CONST_DECL:
		bk := Var
		if k == ir.LET_DECL {
			bk = Let
		} else if k == ir.CONST_DECL {
			bk = Const
		}
		for _, decl := range c.arena.Children(n) {
			c.visitNameDecl(decl, bk)
		}

	case ir.FUNCTION:
		if name := c.arena.Node(n).Payload.Str; name != "" {
			c.declare(name, FunctionDecl, n)
		}
		c.visitFunction(n)

	case ir.ARROW_FUNCTION:
		c.visitFunction(n)

	case ir.CLASS:
		if name := c.arena.Node(n).Payload.Str; name != "" {
			c.declare(name, ClassDecl, n)
		}
		c.visitClass(n)

	case ir.BLOCK:
		c.visitBlock(n)

	case ir.IF:
		ch := c.arena.Children(n)
		c.visitExpr(ch[0], false)
		if len(ch) > 1 {
			c.withBlock(ch[1], func() { c.visitStmt(ch[1]) })
		}
		if len(ch) > 2 {
			c.withBlock(ch[2], func() { c.visitStmt(ch[2]) })
		}

	case ir.FOR, ir.FOR_IN, ir.FOR_OF:
		ch := c.arena.Children(n)
		for _, sub := range ch[:len(ch)-1] {
			c.visitExpr(sub, false)
		}
		body := ch[len(ch)-1]
		c.withBlock(body, func() { c.visitStmt(body) })

	case ir.WHILE, ir.DO_WHILE:
		ch := c.arena.Children(n)
		c.visitExpr(ch[0], false)
		body := ch[1]
		c.withBlock(body, func() { c.visitStmt(body) })

	case ir.SWITCH:
		ch := c.arena.Children(n)
		c.visitExpr(ch[0], false)
		for _, cs := range ch[1:] {
			c.withBlock(cs, func() { c.visitStmt(cs) })
		}

	case ir.CASE, ir.DEFAULT_CASE:
		for _, stmt := range c.arena.Children(n) {
			c.visitStmt(stmt)
		}

	case ir.TRY:
		for _, sub := range c.arena.Children(n) {
			c.visitStmt(sub)
		}

	case ir.CATCH:
		c.pushScope(CatchScope, n, false)
		ch := c.arena.Children(n)
		if len(ch) > 0 {
			param := c.arena.Node(ch[0])
			if param.Kind == ir.IDENTIFIER {
				c.declare(param.Payload.Str, CatchParam, ch[0])
			}
		}
		if len(ch) > 1 {
			c.visitStmt(ch[1])
		}
		c.popScope()

	case ir.STATIC_BLOCK:
		c.pushScope(FunctionScope, n, true)
		for _, stmt := range c.arena.Children(n) {
			c.visitStmt(stmt)
		}
		c.popScope()

	case ir.EXPR_RESULT, ir.RETURN, ir.THROW:
		for _, sub := range c.arena.Children(n) {
			c.visitExpr(sub, k == ir.RETURN)
		}

	case ir.LABEL:
		for _, sub := range c.arena.Children(n) {
			c.visitStmt(sub)
		}

	case ir.BREAK, ir.CONTINUE, ir.EMPTY, ir.IMPORT, ir.EXPORT:
		// no bindings, no expressions.

	default:
		// Anything else reachable in statement position (e.g. a bare
		// expression wrapped without EXPR_RESULT in synthetic trees) is
		// visited as an expression.
		c.visitExpr(n, false)
	}
}

func (c *collector) withBlock(blockOwner ir.NodeId, f func()) {
	prev := c.block
	c.block = blockOwner
	f()
	c.block = prev
}

func (c *collector) visitBlock(n ir.NodeId) {
	declares := false
	for _, stmt := range c.arena.Children(n) {
		switch c.arena.Kind(stmt) {
		case ir.LET_DECL, ir.CONST_DECL, ir.CLASS:
			declares = true
		}
	}
	if declares {
		c.pushScope(BlockScope, n, false)
	}
	for _, stmt := range c.arena.Children(n) {
		c.visitStmt(stmt)
	}
	if declares {
		c.popScope()
	}
}

func (c *collector) visitNameDecl(n ir.NodeId, kind Kind) {
	v := c.arena.Node(n)
	if v.Kind != ir.NAME_DECL || len(v.Children) == 0 {
		return
	}
	nameNode := v.Children[0]
	name := c.arena.Node(nameNode).Payload.Str
	id := c.declare(name, kind, n)
	if len(v.Children) > 1 {
		c.addRef(id, n, Declaration, false)
		c.visitExpr(v.Children[1], false)
	}
}

func (c *collector) visitFunction(n ir.NodeId) {
	v := c.arena.Node(n)
	// A named function expression/declaration's own name is visible inside
	// its own body; declare it in the enclosing scope only when it is a
	// statement-position declaration (has a name payload and a parent
	// SCRIPT/BLOCK), which callers arrange by declaring it before calling
	// visitFunction when appropriate. Here we only set up the body scope.
	c.pushScope(FunctionScope, n, true)
	for _, child := range v.Children {
		switch c.arena.Kind(child) {
		case ir.PARAM_LIST:
			c.visitParamList(child)
		case ir.BLOCK:
			c.withBlock(child, func() { c.visitBlock(child) })
		}
	}
	c.popScope()
}

func (c *collector) visitParamList(n ir.NodeId) {
	for _, p := range c.arena.Children(n) {
		switch c.arena.Kind(p) {
		case ir.IDENTIFIER:
			c.declare(c.arena.Node(p).Payload.Str, Param, p)
		case ir.DEFAULT_PARAM:
			ch := c.arena.Children(p)
			if len(ch) > 0 && c.arena.Kind(ch[0]) == ir.IDENTIFIER {
				c.declare(c.arena.Node(ch[0]).Payload.Str, Param, ch[0])
			}
			if len(ch) > 1 {
				c.visitExpr(ch[1], false)
			}
		case ir.REST_PARAM:
			ch := c.arena.Children(p)
			if len(ch) > 0 && c.arena.Kind(ch[0]) == ir.IDENTIFIER {
				c.declare(c.arena.Node(ch[0]).Payload.Str, Param, ch[0])
			}
		}
	}
}

func (c *collector) visitClass(n ir.NodeId) {
	for _, child := range c.arena.Children(n) {
		switch c.arena.Kind(child) {
		case ir.IDENTIFIER:
			// the extends-target or the class's own name; treat as a read.
			c.visitExpr(child, false)
		case ir.CLASS_MEMBERS:
			for _, member := range c.arena.Children(child) {
				switch c.arena.Kind(member) {
				case ir.METHOD, ir.GETTER, ir.SETTER:
					for _, mc := range c.arena.Children(member) {
						if c.arena.Kind(mc) == ir.FUNCTION {
							c.visitFunction(mc)
						}
					}
				case ir.CLASS_FIELD, ir.STATIC_BLOCK:
					c.visitStmt(member)
				}
			}
		}
	}
}

// visitExpr visits n in expression position. aliasing reports whether this
// syntactic position, if n is (or contains at top level) an identifier
// read, counts as an aliasing escape of that identifier per §4.3's
// is_escaped predicate.
func (c *collector) visitExpr(n ir.NodeId, aliasing bool) {
	v := c.arena.Node(n)
	switch v.Kind {
	case ir.IDENTIFIER:
		b := c.resolve(v.Payload.Str)
		c.addRef(b, n, Read, aliasing)

	case ir.ASSIGN, ir.ASSIGN_OP:
		ch := v.Children
		if len(ch) != 2 {
			return
		}
		lhs, rhs := ch[0], ch[1]
		if c.arena.Kind(lhs) == ir.IDENTIFIER {
			kind := Write
			if v.Kind == ir.ASSIGN_OP {
				kind = ReadWrite
			}
			b := c.resolve(c.arena.Node(lhs).Payload.Str)
			c.addRef(b, lhs, kind, false)
		} else {
			c.visitExpr(lhs, false)
		}
		c.visitExpr(rhs, false)

	case ir.CALL, ir.NEW:
		ch := v.Children
		if len(ch) > 0 {
			c.visitExpr(ch[0], false) // callee/constructor is not an alias site
		}
		for _, arg := range ch[1:] {
			c.visitExpr(arg, true)
		}

	case ir.GETPROP:
		if len(v.Children) > 0 {
			c.visitExpr(v.Children[0], false)
		}

	case ir.GETELEM:
		for i, ch := range v.Children {
			c.visitExpr(ch, i > 0 && aliasing)
		}

	case ir.OPTCHAIN_GETPROP, ir.OPTCHAIN_CALL:
		ch := v.Children
		if len(ch) > 0 {
			c.visitExpr(ch[0], false)
		}
		if len(ch) > 1 {
			c.withBlock(n, func() {
				for _, rest := range ch[1:] {
					c.visitExpr(rest, aliasing)
				}
			})
		}

	case ir.AND, ir.OR, ir.COALESCE:
		ch := v.Children
		if len(ch) > 0 {
			c.visitExpr(ch[0], false)
		}
		if len(ch) > 1 {
			c.withBlock(n, func() { c.visitExpr(ch[1], aliasing) })
		}

	case ir.HOOK:
		ch := v.Children
		if len(ch) > 0 {
			c.visitExpr(ch[0], false)
		}
		if len(ch) > 1 {
			c.withBlock(ch[1], func() { c.visitExpr(ch[1], aliasing) })
		}
		if len(ch) > 2 {
			c.withBlock(ch[2], func() { c.visitExpr(ch[2], aliasing) })
		}

	case ir.ARRAY_LIT, ir.OBJECT_LIT, ir.SPREAD, ir.TAGGED_TEMPLATE:
		for _, ch := range v.Children {
			c.visitExpr(ch, true)
		}

	case ir.OBJECT_PROPERTY:
		ch := v.Children
		for i, e := range ch {
			c.visitExpr(e, i > 0)
		}

	case ir.FUNCTION, ir.ARROW_FUNCTION:
		c.visitFunction(n)

	case ir.CLASS:
		c.visitClass(n)

	default:
		for _, ch := range v.Children {
			c.visitExpr(ch, aliasing)
		}
	}
}
