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

// Package runtimelib is C13, the runtime-library injector: a pass that
// needs a helper records a tag, and at the end of its run the injector
// ensures exactly one copy of that helper's pre-built subtree sits in the
// top-level prelude, in a fixed deterministic order, per §4.10. The
// catalog itself is closed and small, the way closure-compiler ships a
// fixed js/*.js runtime rather than an open plugin set.
package runtimelib

import (
	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/ir"
)

// Tag names one helper in the catalog.
type Tag string

const (
	IteratorBridge    Tag = "iterator_bridge"
	InheritHelper     Tag = "inherit_helper"
	ArraySpreadHelper Tag = "array_spread_helper"
)

// catalogOrder is the deterministic splice order, independent of the order
// passes happen to request helpers in.
var catalogOrder = []Tag{IteratorBridge, InheritHelper, ArraySpreadHelper}

// helperName is the synthetic top-level binding each helper occupies; the
// $ prefix mirrors the collapse/devirtualize fresh-name convention and
// keeps helpers out of the way of any user-level identifier.
func helperName(tag Tag) string {
	switch tag {
	case IteratorBridge:
		return "$iteratorBridge"
	case InheritHelper:
		return "$inheritHelper"
	case ArraySpreadHelper:
		return "$arraySpreadHelper"
	default:
		return ""
	}
}

// Injector accumulates helper requests across a pipeline run and splices
// them in once, at the point the pipeline decides to flush the prelude
// (normally once, near the end of the pass sequence).
type Injector struct {
	requested map[Tag]bool
}

// NewInjector returns an empty Injector.
func NewInjector() *Injector {
	return &Injector{requested: map[Tag]bool{}}
}

// Request records that some pass needs tag's helper available at runtime.
// Calling Request more than once for the same tag, including across
// separate passes, is fine: Inject only ever splices one copy.
func (inj *Injector) Request(tag Tag) {
	inj.requested[tag] = true
}

// Requested reports whether tag has been requested at least once.
func (inj *Injector) Requested(tag Tag) bool {
	return inj.requested[tag]
}

// Inject splices every requested helper not yet present into script's
// child list, at the front, in catalog order, and reports each new
// function to tracker as a new change scope and script itself as changed.
// script must be a SCRIPT node
// (the prelude always lives at the top of the main script). Inject is
// idempotent: calling it again after a previous call (even with new
// requests mixed in) never duplicates a helper already spliced in.
func Inject(a *ir.Arena, script ir.NodeId, inj *Injector, tracker *change.Tracker) []Tag {
	existing := existingHelperNames(a, script)

	var toInject []Tag
	for _, tag := range catalogOrder {
		if !inj.requested[tag] {
			continue
		}
		if existing[helperName(tag)] {
			continue
		}
		toInject = append(toInject, tag)
	}

	// Insert in reverse catalog order via AddChildToFront so the final
	// front-to-back order of newly spliced helpers matches catalogOrder.
	for i := len(toInject) - 1; i >= 0; i-- {
		tag := toInject[i]
		fn := build(a, tag)
		a.AddChildToFront(script, fn)
		tracker.ReportNewScope(fn)
	}
	if len(toInject) > 0 {
		tracker.ReportChangeTo(script)
	}
	return toInject
}

func existingHelperNames(a *ir.Arena, script ir.NodeId) map[string]bool {
	names := map[string]bool{}
	for _, stmt := range a.Children(script) {
		if a.Kind(stmt) == ir.FUNCTION {
			if name := a.Node(stmt).Payload.Str; name != "" {
				names[name] = true
			}
		}
	}
	return names
}

// build returns a freshly allocated, parentless subtree for tag, named per
// helperName and shaped as a plain top-level named function declaration.
func build(a *ir.Arena, tag Tag) ir.NodeId {
	switch tag {
	case IteratorBridge:
		return buildIteratorBridge(a)
	case InheritHelper:
		return buildInheritHelper(a)
	case ArraySpreadHelper:
		return buildArraySpreadHelper(a)
	default:
		panic("runtimelib: unknown tag " + string(tag))
	}
}

// buildIteratorBridge builds a minimal `function $iteratorBridge(iterable)
// { return iterable[Symbol.iterator](); }`-shaped helper: a bridge from a
// for-of target to whatever protocol the output level actually supports.
func buildIteratorBridge(a *ir.Arena) ir.NodeId {
	param := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "iterable"})
	params := a.Alloc(ir.PARAM_LIST, ir.Payload{}, param)

	recv := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "iterable"})
	symbolIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "Symbol"})
	symbolIterator := a.Alloc(ir.GETPROP, ir.Payload{Str: "iterator"}, symbolIdent)
	protocolMethod := a.Alloc(ir.GETELEM, ir.Payload{}, recv, symbolIterator)
	call := a.Alloc(ir.CALL, ir.Payload{}, protocolMethod)
	ret := a.Alloc(ir.RETURN, ir.Payload{}, call)
	body := a.Alloc(ir.BLOCK, ir.Payload{}, ret)

	return a.Alloc(ir.FUNCTION, ir.Payload{Str: helperName(IteratorBridge)}, params, body)
}

// buildInheritHelper builds a minimal `function $inheritHelper(child,
// parent) { child.prototype = Object.create(parent.prototype); }` helper,
// the same shape transpilers use to desugar `class C extends P`.
func buildInheritHelper(a *ir.Arena) ir.NodeId {
	childParam := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "child"})
	parentParam := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "parent"})
	params := a.Alloc(ir.PARAM_LIST, ir.Payload{}, childParam, parentParam)

	childIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "child"})
	childProto := a.Alloc(ir.GETPROP, ir.Payload{Str: "prototype"}, childIdent)

	objectIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "Object"})
	createMethod := a.Alloc(ir.GETPROP, ir.Payload{Str: "create"}, objectIdent)
	parentIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "parent"})
	parentProto := a.Alloc(ir.GETPROP, ir.Payload{Str: "prototype"}, parentIdent)
	createCall := a.Alloc(ir.CALL, ir.Payload{}, createMethod, parentProto)

	assign := a.Alloc(ir.ASSIGN, ir.Payload{}, childProto, createCall)
	stmt := a.Alloc(ir.EXPR_RESULT, ir.Payload{}, assign)
	body := a.Alloc(ir.BLOCK, ir.Payload{}, stmt)

	return a.Alloc(ir.FUNCTION, ir.Payload{Str: helperName(InheritHelper)}, params, body)
}

// buildArraySpreadHelper builds a minimal `function $arraySpreadHelper() {
// return Array.prototype.concat.apply([], arguments); }` helper, the
// lowest-common-denominator desugaring of `[...a, ...b]` for an output
// level without native spread.
func buildArraySpreadHelper(a *ir.Arena) ir.NodeId {
	params := a.Alloc(ir.PARAM_LIST, ir.Payload{})

	arrayIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "Array"})
	arrayProto := a.Alloc(ir.GETPROP, ir.Payload{Str: "prototype"}, arrayIdent)
	concatMethod := a.Alloc(ir.GETPROP, ir.Payload{Str: "concat"}, arrayProto)
	applyMethod := a.Alloc(ir.GETPROP, ir.Payload{Str: "apply"}, concatMethod)

	emptyArray := a.Alloc(ir.ARRAY_LIT, ir.Payload{})
	argsIdent := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "arguments"})
	applyCall := a.Alloc(ir.CALL, ir.Payload{}, applyMethod, emptyArray, argsIdent)
	ret := a.Alloc(ir.RETURN, ir.Payload{}, applyCall)
	body := a.Alloc(ir.BLOCK, ir.Payload{}, ret)

	return a.Alloc(ir.FUNCTION, ir.Payload{Str: helperName(ArraySpreadHelper)}, params, body)
}
