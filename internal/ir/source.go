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

import "fmt"

// SourceRef addresses a (file, offset, length) triple registered in a
// SourceMap. It is the C2 counterpart of cue/token.Pos: a small value type
// cheap enough to store per-Node, but here held in a side table keyed by
// NodeId rather than embedded in the node itself, per §3.
type SourceRef int32

// NoSourceRef is the zero value, meaning "no recorded position" (used for
// fully synthetic nodes that never existed in source).
const NoSourceRef SourceRef = 0

type sourceSpan struct {
	file   string
	offset int
	length int
}

// SourceMap is C2: a passive table mapping NodeId (indirectly, via
// SourceRef) to a source position. It is populated by the external parser
// and copied forward by passes that synthesize nodes (§4.2).
type SourceMap struct {
	spans []sourceSpan // index 0 unused, mirrors NoSourceRef
}

// NewSourceMap returns an empty map with NoSourceRef reserved.
func NewSourceMap() *SourceMap {
	return &SourceMap{spans: make([]sourceSpan, 1)}
}

// Add registers a new (file, offset, length) span and returns its ref.
func (m *SourceMap) Add(file string, offset, length int) SourceRef {
	m.spans = append(m.spans, sourceSpan{file: file, offset: offset, length: length})
	return SourceRef(len(m.spans) - 1)
}

// File, Offset and Length look up the fields of a previously added ref.
// Looking up NoSourceRef returns the zero values.
func (m *SourceMap) File(ref SourceRef) string {
	if int(ref) <= 0 || int(ref) >= len(m.spans) {
		return ""
	}
	return m.spans[ref].file
}

func (m *SourceMap) Offset(ref SourceRef) int {
	if int(ref) <= 0 || int(ref) >= len(m.spans) {
		return 0
	}
	return m.spans[ref].offset
}

func (m *SourceMap) Length(ref SourceRef) int {
	if int(ref) <= 0 || int(ref) >= len(m.spans) {
		return 0
	}
	return m.spans[ref].length
}

// String renders a ref as "file:offset" for diagnostics and debug dumps.
func (m *SourceMap) String(ref SourceRef) string {
	if ref == NoSourceRef {
		return "<synthetic>"
	}
	return fmt.Sprintf("%s:%d", m.File(ref), m.Offset(ref))
}
