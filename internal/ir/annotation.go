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

import "golang.org/x/text/unicode/norm"

// AnnotationId addresses a parsed structured-comment record in an
// AnnotationTable. NoAnnotation means no comment was attached to the node.
type AnnotationId int32

const NoAnnotation AnnotationId = 0

// Annotation is the closed record the core consumes from the (out of
// scope, per §1) structured-comment parser: a set of flags plus a single
// declared type, represented as an already-resolved Color. The exact
// grammar the collaborator parses to produce DeclaredType is not the
// core's concern (§9 "Annotation pipeline").
type Annotation struct {
	NoCollapse    bool
	Exported      bool
	IsConstructor bool
	IsInterface   bool
	IsRecord      bool
	IsEnum        bool
	DeclaredType  ColorId
	// RawText is the normalized (NFC) source text of the comment, kept only
	// for diagnostics; the core never parses it itself.
	RawText string
}

// AnnotationTable is C3: a passive NodeId -> Annotation side table.
type AnnotationTable struct {
	entries []Annotation // index 0 unused, mirrors NoAnnotation
}

func NewAnnotationTable() *AnnotationTable {
	return &AnnotationTable{entries: make([]Annotation, 1)}
}

// Add registers ann (normalizing RawText to NFC so annotation text compares
// stably regardless of source encoding) and returns its id.
func (t *AnnotationTable) Add(ann Annotation) AnnotationId {
	ann.RawText = norm.NFC.String(ann.RawText)
	t.entries = append(t.entries, ann)
	return AnnotationId(len(t.entries) - 1)
}

// Get looks up a previously added annotation. Looking up NoAnnotation
// returns the zero Annotation.
func (t *AnnotationTable) Get(id AnnotationId) Annotation {
	if int(id) <= 0 || int(id) >= len(t.entries) {
		return Annotation{}
	}
	return t.entries[id]
}
