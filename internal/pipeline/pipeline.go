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

// Package pipeline is the single state object §9 calls for: one struct
// carrying the arena, side tables, name graph, feature set, and diagnostic
// bus, handed to each pass as a borrow, exactly as internal/core/compile's
// compiler holds one mutable state value per compilation rather than
// relying on anything at module scope. Compile is the whole of §6's
// external interface: sources are handed in already parsed (the parser is
// a collaborator, out of scope per §1), and Compile's Result is the ordered
// diagnostic list plus whatever the outer collaborator needs to serialize
// an optimized AST or source map.
package pipeline

import (
	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/collapse"
	"optlang.dev/core/internal/devirtualize"
	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/ir"
	"optlang.dev/core/internal/namegraph"
	"optlang.dev/core/internal/optsconfig"
	"optlang.dev/core/internal/pass"
	"optlang.dev/core/internal/runtimelib"
	"optlang.dev/core/internal/scope"
)

// Input is one compilation's already-parsed program: the arena and its
// root SCRIPT node, the source map the parser populated (Compile uses an
// empty ir.NewSourceMap() when it is nil, as for programs built directly in
// memory), and the module
// ordering devirtualize's cross-module precondition needs (nil is a valid,
// conservative "no ordering known" value, per devirtualize.NewModuleOrder).
type Input struct {
	Arena       *ir.Arena
	Root        ir.NodeId
	SourceMap   *ir.SourceMap
	ModuleOrder *devirtualize.ModuleOrder

	// RuntimeHelpers lists helpers a collaborator upstream of this core
	// (e.g. a class or spread-syntax lowering stage) already determined it
	// needs spliced into the prelude. Compile requests each of these from
	// its own runtimelib.Injector before running the injection pass.
	RuntimeHelpers []runtimelib.Tag
}

// Result is what the outer collaborator gets back: the ordered diagnostic
// stream, the scope/name-graph analyses (useful to a follow-on tool, e.g. a
// linter built on this core), and a record of which runtime helpers ended
// up injected.
type Result struct {
	Diagnostics       []diag.Diagnostic
	Scope             *scope.Result
	NameGraph         *namegraph.Graph
	Collapsed         map[string]string
	Devirtualized     map[string]string
	InjectedRuntime   []runtimelib.Tag
	HasErrors         bool
}

// Compile runs C5 (informational only), C8, C9, C10 and C13 over in.Root in
// the order §9 fixes (name graph before collapse, which reads its
// Collapsible predicate, then devirtualize; runtime-library injection
// last, since it only ever adds new top-level helpers and never needs to
// see anything collapse/devirtualize produced). C9, C10 and C13 each run as
// a one-time pass of a single pass.Manager borrowing in.Arena; C5 and C8
// are plain calls made outside the manager.
func Compile(in Input, opts optsconfig.CompilerOptions) (*Result, error) {
	sm := in.SourceMap
	if sm == nil {
		sm = ir.NewSourceMap()
	}

	bus := diag.NewBus()
	mgr := pass.NewManager(in.Arena, bus, opts.LanguageIn)
	if opts.IterationCap > 0 {
		mgr.IterationCap = opts.IterationCap
	}

	scopeResult := scope.Collect(in.Arena, in.Root)

	var (
		graph           *namegraph.Graph
		collapseResult  *collapse.Result
		devirtResult    *devirtualize.Result
	)

	if opts.PropertyCollapseLevel != optsconfig.CollapseNone {
		graph = namegraph.Build(in.Arena, in.Root)

		maxDots := 0
		if opts.PropertyCollapseLevel == optsconfig.CollapseModuleExportOnly {
			maxDots = 1
		}

		collapsePass := pass.Pass{
			Name: "collapse",
			Run: func(a *ir.Arena, root ir.NodeId, tracker *change.Tracker, bus *diag.Bus) error {
				collapseResult = collapse.RunWithMaxDots(a, root, graph, maxDots, tracker, bus)
				return nil
			},
		}
		if err := mgr.RunOncePasses(in.Root, []pass.Pass{collapsePass}); err != nil {
			return nil, err
		}
	}

	devirtPass := pass.Pass{
		Name: "devirtualize",
		Run: func(a *ir.Arena, root ir.NodeId, tracker *change.Tracker, bus *diag.Bus) error {
			devirtResult = devirtualize.Run(a, root, sm, in.ModuleOrder, tracker, bus)
			return nil
		},
	}
	if err := mgr.RunOncePasses(in.Root, []pass.Pass{devirtPass}); err != nil {
		return nil, err
	}

	// Runtime-helper requests: devirtualizing a method onto a fresh
	// top-level function never itself needs a helper, but a host that also
	// lowers classes/spread syntax ahead of this core would request
	// helpers through in.RuntimeHelpers. Compile owns injection so it
	// happens as one more pass.Manager step, even when nothing was
	// requested (Inject is then a no-op).
	injector := runtimelib.NewInjector()
	for _, tag := range in.RuntimeHelpers {
		injector.Request(tag)
	}
	var injected []runtimelib.Tag
	injectPass := pass.Pass{
		Name: "inject-runtime-helpers",
		Run: func(a *ir.Arena, root ir.NodeId, tracker *change.Tracker, bus *diag.Bus) error {
			injected = runtimelib.Inject(a, root, injector, tracker)
			return nil
		},
	}
	if err := mgr.RunOncePasses(in.Root, []pass.Pass{injectPass}); err != nil {
		return nil, err
	}

	res := &Result{
		Diagnostics:     bus.Sorted(sm),
		Scope:           scopeResult,
		NameGraph:       graph,
		InjectedRuntime: injected,
		HasErrors:       bus.HasErrors(),
	}
	if collapseResult != nil {
		res.Collapsed = collapseResult.Collapsed
	}
	if devirtResult != nil {
		res.Devirtualized = devirtResult.Rewritten
	}
	return res, nil
}
