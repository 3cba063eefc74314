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

// Visitor receives pre/post hooks during a depth-first traversal, in the
// shape of cue/ast's Walk: Before returns false to abort descent into a
// node's children (the "abort descent" reply from §4.1); After always runs
// for a node whose Before returned true, even if Before returned false for
// one of its children.
type Visitor struct {
	// Before is called before visiting n's children. If it returns false,
	// n's children are not visited and After is not called for n.
	Before func(a *Arena, n NodeId) bool
	// After is called after all of n's children (and their subtrees) have
	// been visited.
	After func(a *Arena, n NodeId)
}

// Walk performs a depth-first pre/post traversal of the subtree rooted at
// root. Order of children is visited in document order (§3 invariant 5).
func Walk(a *Arena, root NodeId, v Visitor) {
	if v.Before != nil && !v.Before(a, root) {
		return
	}
	for _, c := range a.Children(root) {
		Walk(a, c, v)
	}
	if v.After != nil {
		v.After(a, root)
	}
}

// WalkChildren visits only the subtrees rooted at n's current children,
// useful when a pass wants to process a node's descendants without
// re-entering n itself (e.g. after already having handled n specially).
func WalkChildren(a *Arena, n NodeId, v Visitor) {
	for _, c := range a.Children(n) {
		Walk(a, c, v)
	}
}
