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

package pass_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/feature"
	"optlang.dev/core/internal/ir"
	"optlang.dev/core/internal/pass"
)

func buildScript(a *ir.Arena) ir.NodeId {
	body := a.Alloc(ir.BLOCK, ir.Payload{})
	fn := a.Alloc(ir.FUNCTION, ir.Payload{Str: "A"}, body)
	script := a.Alloc(ir.SCRIPT, ir.Payload{}, fn)
	_ = a.Alloc(ir.ROOT, ir.Payload{}, script)
	return script
}

func TestRunOnceRefusesPassMissingConsumedFeatures(t *testing.T) {
	a := ir.NewArena()
	root := buildScript(a)
	bus := diag.NewBus()
	m := pass.NewManager(a, bus, feature.None)

	p := pass.Pass{
		Name:     "lower-classes",
		Consumes: feature.Of(feature.Classes),
		Run: func(a *ir.Arena, root ir.NodeId, tr *change.Tracker, bus *diag.Bus) error {
			t.Fatal("should not run: missing consumed feature")
			return nil
		},
	}

	_, err := m.RunOnce(root, p)
	qt.Assert(t, qt.IsNotNil(err))
	var aerr *pass.AbortError
	qt.Assert(t, qt.IsTrue(asAbortError(err, &aerr)))
	qt.Assert(t, qt.Equals(aerr.Pass, "lower-classes"))
}

func TestRunOnceUpdatesFeatureSetFromProduces(t *testing.T) {
	a := ir.NewArena()
	root := buildScript(a)
	bus := diag.NewBus()
	m := pass.NewManager(a, bus, feature.None)

	p := pass.Pass{
		Name:     "mark-arrow-lowered",
		Produces: feature.Of(feature.ArrowFunctions),
		Run: func(a *ir.Arena, root ir.NodeId, tr *change.Tracker, bus *diag.Bus) error {
			return nil
		},
	}
	_, err := m.RunOnce(root, p)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(m.Features.HasBit(feature.ArrowFunctions)))
}

func TestRunOnceAbortsWhenChangeGoesUnreported(t *testing.T) {
	a := ir.NewArena()
	root := buildScript(a)
	bus := diag.NewBus()
	m := pass.NewManager(a, bus, feature.None)

	fn := a.Children(root)[0]
	p := pass.Pass{
		Name: "sneaky-mutation",
		Run: func(a *ir.Arena, root ir.NodeId, tr *change.Tracker, bus *diag.Bus) error {
			a.Detach(fn) // mutate without reporting
			return nil
		},
	}
	_, err := m.RunOnce(root, p)
	qt.Assert(t, qt.IsNotNil(err))
}

func TestRunLoopableStopsAtFixedPoint(t *testing.T) {
	a := ir.NewArena()
	root := buildScript(a)
	bus := diag.NewBus()
	m := pass.NewManager(a, bus, feature.None)
	m.IterationCap = 5

	runs := 0
	p := pass.Pass{
		Name: "idempotent",
		Run: func(a *ir.Arena, root ir.NodeId, tr *change.Tracker, bus *diag.Bus) error {
			runs++
			return nil
		},
	}
	err := m.RunLoopable(root, []pass.Pass{p})
	qt.Assert(t, qt.IsNil(err))
	// A pass reporting no change every cycle should stop after one cycle.
	qt.Assert(t, qt.Equals(runs, 1))
}

func TestRunLoopableRespectsIterationCap(t *testing.T) {
	a := ir.NewArena()
	root := buildScript(a)
	bus := diag.NewBus()
	m := pass.NewManager(a, bus, feature.None)
	m.IterationCap = 3

	toggle := a.Children(root)[0]
	runs := 0
	p := pass.Pass{
		Name: "oscillate",
		Run: func(a *ir.Arena, root ir.NodeId, tr *change.Tracker, bus *diag.Bus) error {
			runs++
			// Alternate adding and removing a marker child so every cycle
			// reports a real, verifiable change and the loop never reaches
			// a fixed point on its own.
			kids := a.Children(toggle)
			if len(kids) == 0 {
				marker := a.AllocLeaf(ir.EMPTY, ir.Payload{})
				a.AddChildToBack(toggle, marker)
			} else {
				a.Detach(kids[0])
			}
			tr.ReportChangeTo(toggle)
			return nil
		},
	}
	err := m.RunLoopable(root, []pass.Pass{p})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(runs, 3))
}

func asAbortError(err error, target **pass.AbortError) bool {
	if e, ok := err.(*pass.AbortError); ok {
		*target = e
		return true
	}
	return false
}
