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

// Package change is C6, the change tracker & verifier. It exists to catch
// pass-authorship bugs: a pass that mutates the tree is required to report
// every structural edit, at the granularity of the enclosing change scope,
// and Snapshot/CheckRecordedChanges cross-reference the tree's actual
// shape against those reports.
//
// Structural fingerprints are content-addressed the way an OCI registry
// addresses blobs: opencontainers/go-digest computes a stable digest over
// a deterministic byte encoding of a change scope's body, so two
// structurally identical scopes always fingerprint identically regardless
// of NodeId numbering.
package change

import (
	"bytes"
	"fmt"

	digest "github.com/opencontainers/go-digest"

	"optlang.dev/core/internal/ir"
)

// Fingerprint is one entry of a Snapshot: a change scope's identity is
// implicit in the map key it's stored under.
type Fingerprint struct {
	BodyHash   digest.Digest
	ChangeTime uint64
	Children   []ir.NodeId
}

// Snapshot is the structural fingerprint taken by Tracker.Snapshot, per
// §4.4.
type Snapshot struct {
	root    ir.NodeId
	entries map[ir.NodeId]Fingerprint
}

// Tracker is C6: it owns the monotonic change_time of every change scope
// and the bookkeeping of explicit new/deletion reports between a Snapshot
// and its paired CheckRecordedChanges.
type Tracker struct {
	a     *ir.Arena
	clock uint64

	changeTime map[ir.NodeId]uint64
	reportNew  map[ir.NodeId]bool
	reportDel  map[ir.NodeId]bool
}

// NewTracker returns a Tracker bound to the arena a pipeline mutates.
func NewTracker(a *ir.Arena) *Tracker {
	return &Tracker{
		a:          a,
		changeTime: map[ir.NodeId]uint64{},
		reportNew:  map[ir.NodeId]bool{},
		reportDel:  map[ir.NodeId]bool{},
	}
}

// ReportChangeTo marks the change scope containing n as modified since the
// last Snapshot, advancing its change_time. n must currently be reachable
// from ROOT (or be a change scope itself) — report using a node still in
// the tree, such as the node's new parent, not a node you have already
// detached.
func (t *Tracker) ReportChangeTo(n ir.NodeId) {
	scope := t.a.ChangeScopeOf(n)
	t.clock++
	t.changeTime[scope] = t.clock
}

// ReportNewScope marks scope (a freshly allocated change scope now spliced
// into the tree) as explicitly new, so CheckRecordedChanges does not flag
// it as an unreported addition.
func (t *Tracker) ReportNewScope(scope ir.NodeId) {
	t.clock++
	t.changeTime[scope] = t.clock
	t.reportNew[scope] = true
}

// ReportDeletion marks fnNode's change scope as deleted since the last
// Snapshot, per §4.4.
func (t *Tracker) ReportDeletion(fnNode ir.NodeId) {
	scope := fnNode
	if !t.a.Kind(fnNode).IsChangeScope() {
		scope = t.a.ChangeScopeOf(fnNode)
	}
	t.reportDel[scope] = true
}

// Snapshot fingerprints every change scope reachable from root at the
// current change_time, per §4.4, and starts a fresh reporting window: new
// calls to ReportNewScope/ReportDeletion apply to the period between this
// Snapshot and the CheckRecordedChanges that consumes it.
func (t *Tracker) Snapshot(root ir.NodeId) *Snapshot {
	scopes := collectScopes(t.a, root)
	entries := make(map[ir.NodeId]Fingerprint, len(scopes))
	for id, children := range scopes {
		entries[id] = Fingerprint{
			BodyHash:   bodyHash(t.a, id),
			ChangeTime: t.changeTime[id],
			Children:   children,
		}
	}
	t.reportNew = map[ir.NodeId]bool{}
	t.reportDel = map[ir.NodeId]bool{}
	return &Snapshot{root: root, entries: entries}
}

// Equal reports whether two snapshots of the same tree (normally a
// before/after pair bracketing one pass run) describe the same set of
// change scopes with the same body hashes — i.e. nothing observable
// changed. It does not consult change_time, since that is the tracker's
// own bookkeeping, not part of the tree's shape.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if len(s.entries) != len(other.entries) {
		return false
	}
	for id, fp := range s.entries {
		ofp, ok := other.entries[id]
		if !ok || ofp.BodyHash != fp.BodyHash {
			return false
		}
	}
	return true
}

// VerifyError is returned by CheckRecordedChanges when the tree's actual
// shape disagrees with what was reported, naming every offending scope and
// the diagnostic code §6 assigns to that kind of disagreement.
type VerifyError struct {
	Label    string
	Problems []Problem
}

type Problem struct {
	Code  string
	Scope ir.NodeId
}

func (e *VerifyError) Error() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "check_recorded_changes(%s): %d problem(s)", e.Label, len(e.Problems))
	for _, p := range e.Problems {
		fmt.Fprintf(&b, "\n  %s: scope n%d", p.Code, p.Scope)
	}
	return b.String()
}

// CheckRecordedChanges walks the current tree rooted at root and
// cross-references it against snap, per §4.4's four failure modes. It is
// read-only with respect to both the tree and the tracker's bookkeeping.
func (t *Tracker) CheckRecordedChanges(label string, root ir.NodeId, snap *Snapshot) error {
	current := collectScopes(t.a, root)
	var problems []Problem

	for id, old := range snap.entries {
		children, stillExists := current[id]
		if !stillExists {
			if !t.reportDel[id] {
				problems = append(problems, Problem{Code: "deleted_scope_was_not_reported", Scope: id})
			}
			continue
		}
		if t.reportDel[id] {
			problems = append(problems, Problem{Code: "existing_scope_improperly_marked_as_deleted", Scope: id})
			continue
		}
		_ = children
		newHash := bodyHash(t.a, id)
		if newHash != old.BodyHash && t.changeTime[id] == old.ChangeTime {
			problems = append(problems, Problem{Code: "changed_scope_not_marked_as_changed", Scope: id})
		}
	}
	for id := range current {
		if _, existed := snap.entries[id]; !existed && !t.reportNew[id] {
			problems = append(problems, Problem{Code: "new_scope_not_explicitly_marked_as_changed", Scope: id})
		}
	}

	if len(problems) > 0 {
		return &VerifyError{Label: label, Problems: problems}
	}
	return nil
}

// collectScopes finds every change scope reachable from root and, for
// each, the list of change scopes immediately nested within it (crossing
// no other change-scope boundary), per §4.4's "set of descendant change
// scopes".
func collectScopes(a *ir.Arena, root ir.NodeId) map[ir.NodeId][]ir.NodeId {
	scopes := map[ir.NodeId][]ir.NodeId{}
	var visit func(n ir.NodeId)
	visit = func(n ir.NodeId) {
		if a.Kind(n).IsChangeScope() {
			scopes[n] = directChildScopes(a, n)
		}
		for _, c := range a.Children(n) {
			visit(c)
		}
	}
	visit(root)
	return scopes
}

func directChildScopes(a *ir.Arena, scope ir.NodeId) []ir.NodeId {
	var kids []ir.NodeId
	var visit func(n ir.NodeId, isRoot bool)
	visit = func(n ir.NodeId, isRoot bool) {
		if !isRoot && a.Kind(n).IsChangeScope() {
			kids = append(kids, n)
			return
		}
		for _, c := range a.Children(n) {
			visit(c, false)
		}
	}
	visit(scope, true)
	return kids
}

// bodyHash computes a deterministic digest of scope's body: kind tag,
// children shape and payloads, per §4.4. Recursion stops at the boundary
// of any nested change scope — only its presence is hashed, not its
// contents — so that moving an intact nested scope changes the parent's
// hash (requiring a report on the parent) without requiring a report on
// the untouched child, per §4.4's invariant.
func bodyHash(a *ir.Arena, scope ir.NodeId) digest.Digest {
	var buf bytes.Buffer
	var enc func(n ir.NodeId, isRoot bool)
	enc = func(n ir.NodeId, isRoot bool) {
		v := a.Node(n)
		fmt.Fprintf(&buf, "(%d", v.Kind)
		if !isRoot && v.Kind.IsChangeScope() {
			buf.WriteString(":scope)")
			return
		}
		if v.Payload.Str != "" {
			fmt.Fprintf(&buf, ":s=%q", v.Payload.Str)
		}
		if v.Payload.Num != nil {
			fmt.Fprintf(&buf, ":n=%s", v.Payload.Num.String())
		}
		fmt.Fprintf(&buf, ":f=%d", v.Flags)
		for _, c := range v.Children {
			enc(c, false)
		}
		buf.WriteByte(')')
	}
	enc(scope, true)
	return digest.FromBytes(buf.Bytes())
}
