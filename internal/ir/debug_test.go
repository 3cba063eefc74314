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
	"strings"
	"testing"

	"github.com/go-quicktest/qt"

	"optlang.dev/core/internal/ir"
)

func TestSprintRendersKindsAndPayloads(t *testing.T) {
	a := ir.NewArena()
	id := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "x"})
	root := a.Alloc(ir.RETURN, ir.Payload{}, id)

	out := ir.Sprint(a, root, ir.DebugConfig{})
	qt.Assert(t, qt.IsTrue(strings.Contains(out, "RETURN(n")))
	qt.Assert(t, qt.IsTrue(strings.Contains(out, `IDENTIFIER(n`)))
	qt.Assert(t, qt.IsTrue(strings.Contains(out, `"x"`)))
}

func TestSprintRendersFlags(t *testing.T) {
	a := ir.NewArena()
	id := a.AllocLeaf(ir.IDENTIFIER, ir.Payload{Str: "f"})
	a.SetFlags(id, ir.IsSynthetic|ir.IsConstName)

	out := ir.Sprint(a, id, ir.DebugConfig{})
	qt.Assert(t, qt.IsTrue(strings.Contains(out, "flags=Synthetic|ConstName")))
}

func TestSprintOfNoNodeRendersNil(t *testing.T) {
	a := ir.NewArena()
	out := ir.Sprint(a, ir.NoNode, ir.DebugConfig{})
	qt.Assert(t, qt.IsTrue(strings.Contains(out, "nil")))
}
