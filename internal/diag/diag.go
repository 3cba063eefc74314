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

// Package diag is C12, the diagnostic bus: an append-only stream of typed
// diagnostics consumed by the outer collaborator. The Diagnostic shape and
// the code list mirror cue/errors's Error interface (Position/Path/Msg),
// simplified to the closed record §6 describes rather than an open
// interface hierarchy, since the core never needs to wrap arbitrary Go
// errors the way the CUE evaluator does.
package diag

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"optlang.dev/core/internal/ir"
)

// Severity is one of the three levels §6 enumerates.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Code is one of the identifiers §6 lists. It is a plain string, not a
// closed Go enum, so the outer collaborator (the surface diagnostic
// formatter, out of scope per §1) can extend the catalog without the core
// changing.
type Code string

const (
	NamespaceRedefined              Code = "namespace_redefined"
	UnsafeNamespace                 Code = "unsafe_namespace"
	UnsafeThis                      Code = "unsafe_this"
	UselessCode                     Code = "useless_code"
	MalformedRegexp                 Code = "malformed_regexp"
	InvalidDynamicExtends           Code = "invalid_dynamic_extends"
	UntranspilableFeaturePresent    Code = "untranspilable_feature_present"
	InstantiateAbstractClass        Code = "instantiate_abstract_class"
	ChangedScopeNotMarkedAsChanged  Code = "changed_scope_not_marked_as_changed"
	NewScopeNotExplicitlyMarked     Code = "new_scope_not_explicitly_marked_as_changed"
	DeletedScopeWasNotReported      Code = "deleted_scope_was_not_reported"
	ExistingScopeImproperlyDeleted  Code = "existing_scope_improperly_marked_as_deleted"
)

// Diagnostic is one entry of C12's append-only stream.
type Diagnostic struct {
	Code      Code
	Severity  Severity
	Source    ir.SourceRef
	Pass      string // name of the pass that emitted it, "" for framework-level diagnostics
	Args      []any
	formatted string
}

// Format returns the diagnostic's formatted message or, when none was
// stored, its code followed by its raw arguments; the core itself never needs to print
// diagnostics (§1 Non-goals), so this only supports tests and debug dumps.
func (d Diagnostic) Format() string {
	if d.formatted != "" {
		return d.formatted
	}
	return fmt.Sprintf("%s: %v", d.Code, d.Args)
}

// Bus is C12: an append-only stream of Diagnostics, one per compilation
// run. RunID disambiguates diagnostics from concurrent host-side
// compilations if they end up logged together.
type Bus struct {
	RunID   uuid.UUID
	entries []Diagnostic
}

// NewBus returns an empty bus stamped with a fresh RunID.
func NewBus() *Bus {
	return &Bus{RunID: uuid.New()}
}

// Add appends a diagnostic. It is never removed or reordered in place;
// ordering for presentation is a query-time concern (see Sorted).
func (b *Bus) Add(d Diagnostic) {
	if d.formatted == "" {
		d.formatted = fmt.Sprintf("%s: %v", d.Code, d.Args)
	}
	b.entries = append(b.entries, d)
}

// Errorf, Warnf and Infof are convenience constructors matching the shape
// of cue/errors.Newf.
func (b *Bus) Errorf(pass string, src ir.SourceRef, code Code, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Severity: Error, Source: src, Pass: pass, Args: args, formatted: fmt.Sprintf(format, args...)})
}

func (b *Bus) Warnf(pass string, src ir.SourceRef, code Code, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Severity: Warning, Source: src, Pass: pass, Args: args, formatted: fmt.Sprintf(format, args...)})
}

func (b *Bus) Infof(pass string, src ir.SourceRef, code Code, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Severity: Info, Source: src, Pass: pass, Args: args, formatted: fmt.Sprintf(format, args...)})
}

// All returns every diagnostic added so far, in emission order.
func (b *Bus) All() []Diagnostic { return append([]Diagnostic(nil), b.entries...) }

// HasErrors reports whether any Error-severity diagnostic was emitted; per
// §7 tier 2, this is what decides whether the final artifact is valid.
func (b *Bus) HasErrors() bool {
	for _, d := range b.entries {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Sorted returns every diagnostic stably sorted by (source offset, code),
// guaranteeing the same order across two runs over byte-identical input as
// §5 requires, independent of incidental pass-internal iteration order.
func (b *Bus) Sorted(sm *ir.SourceMap) []Diagnostic {
	out := append([]Diagnostic(nil), b.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := sm.Offset(out[i].Source), sm.Offset(out[j].Source)
		if oi != oj {
			return oi < oj
		}
		return out[i].Code < out[j].Code
	})
	return out
}
