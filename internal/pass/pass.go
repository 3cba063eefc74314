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

// Package pass is C7, the pass manager. It is the sole driver of a
// compilation: it holds the arena for the duration of each pass and
// releases it between passes (§5), snapshotting the tree before a pass
// runs and verifying the pass's change reports against the tree's actual
// shape afterward (§4.6), exactly the one-snapshot-one-pass discipline
// internal/core/compile's frame stack uses around a single scope's
// worth of work.
package pass

import (
	"fmt"

	"optlang.dev/core/internal/change"
	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/feature"
	"optlang.dev/core/internal/ir"
)

// Run is a pass's transform function. It may mutate the arena rooted at
// root freely, provided every structural edit is reported to tracker per
// internal/change's contract, and should record diagnostics on bus
// regardless of whether it ends up changing anything.
type Run func(a *ir.Arena, root ir.NodeId, tracker *change.Tracker, bus *diag.Bus) error

// Pass is one named transform: the triple §4.6 describes.
type Pass struct {
	Name     string
	Consumes feature.Set
	Produces feature.Set
	Run      Run
}

// AbortError is returned by Manager.RunOnce/RunLoopable when a pass cannot
// run (its Consumes is not a subset of the live feature set) or when its
// change reports fail C6 verification. Both are the "abort compilation,
// name the offending pass" outcome §7 requires for programmatic faults.
type AbortError struct {
	Pass   string
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("pass %q aborted: %s: %v", e.Pass, e.Reason, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// DefaultIterationCap bounds a loopable group's fixed-point iteration, per
// SPEC_FULL.md's supplemented-features note: no pass group may spin forever on a
// pair of passes that keep re-triggering each other.
const DefaultIterationCap = 100

// Manager drives passes over one compilation's arena, per §4.6 and §5: it
// is the only component that mutates the feature set, and the only one
// that calls change.Tracker.CheckRecordedChanges.
type Manager struct {
	Arena         *ir.Arena
	Tracker       *change.Tracker
	Bus           *diag.Bus
	Features      feature.Set
	IterationCap  int
	Cancel        func() bool // polled between passes and, ideally, between change-scope visits; nil means never cancel
}

// NewManager returns a Manager ready to drive passes over a, starting from
// the given initial feature set (typically derived from language_in).
func NewManager(a *ir.Arena, bus *diag.Bus, initial feature.Set) *Manager {
	return &Manager{
		Arena:        a,
		Tracker:      change.NewTracker(a),
		Bus:          bus,
		Features:     initial,
		IterationCap: DefaultIterationCap,
	}
}

// RunOnce runs p a single time: snapshot, run, verify, update features.
// It is the building block both RunOncePasses and RunLoopable use. An
// *ir.FatalError panic raised while p runs is recovered and returned as an
// AbortError naming p; any other panic propagates.
func (m *Manager) RunOnce(root ir.NodeId, p Pass) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*ir.FatalError)
			if !ok {
				panic(r)
			}
			changed, err = false, &AbortError{Pass: p.Name, Reason: "arena misuse", Err: fe}
		}
	}()
	if !m.Features.Has(p.Consumes) {
		return false, &AbortError{
			Pass:   p.Name,
			Reason: fmt.Sprintf("missing consumed features: %s", p.Consumes.Remove(m.Features)),
		}
	}
	snap := m.Tracker.Snapshot(root)
	if runErr := p.Run(m.Arena, root, m.Tracker, m.Bus); runErr != nil {
		return false, &AbortError{Pass: p.Name, Reason: "pass returned an error", Err: runErr}
	}
	if verr := m.Tracker.CheckRecordedChanges(p.Name, root, snap); verr != nil {
		return false, &AbortError{Pass: p.Name, Reason: "change verification failed", Err: verr}
	}
	after := m.Tracker.Snapshot(root)
	changed = !sameShape(snap, after)
	m.Features = m.Features.Union(p.Produces)
	return changed, nil
}

// RunOncePasses runs each pass in order, exactly once, per §4.6's
// "one-time passes".
func (m *Manager) RunOncePasses(root ir.NodeId, passes []Pass) error {
	for _, p := range passes {
		if m.cancelled() {
			return nil
		}
		if _, err := m.RunOnce(root, p); err != nil {
			return err
		}
	}
	return nil
}

// RunLoopable runs passes in order, repeatedly, until a full cycle
// produces no reported change or the iteration cap is reached, per
// §4.6's "loopable passes". Reaching the cap is not itself an error: it
// simply stops iterating, on the assumption no further progress is
// possible (or desired) within one compilation.
func (m *Manager) RunLoopable(root ir.NodeId, passes []Pass) error {
	cap := m.IterationCap
	if cap <= 0 {
		cap = DefaultIterationCap
	}
	for i := 0; i < cap; i++ {
		anyChange := false
		for _, p := range passes {
			if m.cancelled() {
				return nil
			}
			changed, err := m.RunOnce(root, p)
			if err != nil {
				return err
			}
			anyChange = anyChange || changed
		}
		if !anyChange {
			return nil
		}
	}
	return nil
}

func (m *Manager) cancelled() bool {
	return m.Cancel != nil && m.Cancel()
}

// sameShape compares two snapshots of the same root by digest and
// change-scope set: if both agree, the pass reported truthfully that it
// changed nothing observable.
func sameShape(before, after *change.Snapshot) bool {
	return before.Equal(after)
}
