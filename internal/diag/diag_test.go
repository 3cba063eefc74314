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

package diag_test

import (
	"testing"

	"github.com/go-quicktest/qt"

	"optlang.dev/core/internal/diag"
	"optlang.dev/core/internal/ir"
)

func TestHasErrorsOnlyTrueForErrorSeverity(t *testing.T) {
	b := diag.NewBus()
	b.Warnf("devirtualize", ir.NoSourceRef, diag.UnsafeThis, "method %s references this", "foo")
	qt.Assert(t, qt.IsTrue(!b.HasErrors()))

	b.Errorf("collapse", ir.NoSourceRef, diag.UnsafeNamespace, "alias escapes")
	qt.Assert(t, qt.IsTrue(b.HasErrors()))
}

func TestSortedIsDeterministicByOffsetThenCode(t *testing.T) {
	sm := ir.NewSourceMap()
	late := sm.Add("a.js", 50, 1)
	early := sm.Add("a.js", 10, 1)

	b := diag.NewBus()
	b.Warnf("p", late, diag.UselessCode, "x")
	b.Warnf("p", early, diag.NamespaceRedefined, "y")

	sorted := b.Sorted(sm)
	qt.Assert(t, qt.Equals(sorted[0].Code, diag.NamespaceRedefined))
	qt.Assert(t, qt.Equals(sorted[1].Code, diag.UselessCode))
}

func TestRunIDIsUniquePerBus(t *testing.T) {
	a := diag.NewBus()
	b := diag.NewBus()
	qt.Assert(t, qt.IsTrue(a.RunID != b.RunID))
}
