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

import (
	"sort"
	"strings"
)

// ColorId addresses an interned Color in a ColorTable. The lattice mirrors
// the bitmask-union style of cue's types.Kind: a color is either the top
// element Unknown, or a (possibly empty) union of nominal object colors,
// optionally including Void (nullish). Colors are erased: they exist only
// to gate rewrites (§4's C4), never to drive execution.
type ColorId int32

// NoColor means "no color has been attached to this Node" — distinct from
// Unknown, which means "a color was computed and it is the unconstrained
// top element".
const NoColor ColorId = 0

// Unknown is the top of the lattice: joining anything with Unknown yields
// Unknown.
const Unknown ColorId = 1

// Void represents the nullish bottom-ish singleton (null/undefined).
const Void ColorId = 2

type color struct {
	unknown  bool
	void     bool
	nominals []uint32 // sorted, deduplicated nominal type ids
}

// ColorTable interns Colors and the nominal names they're built from.
type ColorTable struct {
	names   []string // nominal id -> name, index 0 unused
	nameIds map[string]uint32

	colors []color // ColorId -> color, indices 0,1,2 reserved
	intern map[string]ColorId
}

// NewColorTable returns a table with NoColor, Unknown and Void pre-interned.
func NewColorTable() *ColorTable {
	t := &ColorTable{
		names:   make([]string, 1),
		nameIds: map[string]uint32{},
		colors:  make([]color, 3),
		intern:  map[string]ColorId{},
	}
	t.colors[NoColor] = color{}
	t.colors[Unknown] = color{unknown: true}
	t.colors[Void] = color{void: true}
	t.intern[t.key(t.colors[Unknown])] = Unknown
	t.intern[t.key(t.colors[Void])] = Void
	return t
}

// Nominal interns a nominal object color by name (e.g. a class name) and
// returns the single-member union color for it.
func (t *ColorTable) Nominal(name string) ColorId {
	id, ok := t.nameIds[name]
	if !ok {
		t.names = append(t.names, name)
		id = uint32(len(t.names) - 1)
		t.nameIds[name] = id
	}
	return t.internColor(color{nominals: []uint32{id}})
}

// Name returns the nominal name a single-member nominal color was built
// from, or "" if c is not exactly one nominal (Unknown, Void, unions, and
// NoColor all return "").
func (t *ColorTable) Name(c ColorId) string {
	col := t.lookup(c)
	if col.unknown || col.void || len(col.nominals) != 1 {
		return ""
	}
	return t.names[col.nominals[0]]
}

// Join computes the least upper bound of a and b: Unknown absorbs
// everything, Void unions in as a flag, and nominal sets union, matching
// the "union-of-nominal-colors with a join" requirement of §9.
func (t *ColorTable) Join(a, b ColorId) ColorId {
	ca, cb := t.lookup(a), t.lookup(b)
	if ca.unknown || cb.unknown {
		return Unknown
	}
	merged := color{
		void:     ca.void || cb.void,
		nominals: unionSorted(ca.nominals, cb.nominals),
	}
	return t.internColor(merged)
}

// IsUnknown, IsVoid and Nominals expose the shape of a color for gating
// rewrites (C4's only sanctioned use).
func (t *ColorTable) IsUnknown(c ColorId) bool { return t.lookup(c).unknown }
func (t *ColorTable) IsVoid(c ColorId) bool     { return t.lookup(c).void }
func (t *ColorTable) Nominals(c ColorId) []string {
	col := t.lookup(c)
	out := make([]string, len(col.nominals))
	for i, id := range col.nominals {
		out[i] = t.names[id]
	}
	return out
}

func (t *ColorTable) lookup(c ColorId) color {
	if int(c) < 0 || int(c) >= len(t.colors) {
		return color{}
	}
	return t.colors[c]
}

func (t *ColorTable) internColor(c color) ColorId {
	sort.Slice(c.nominals, func(i, j int) bool { return c.nominals[i] < c.nominals[j] })
	key := t.key(c)
	if id, ok := t.intern[key]; ok {
		return id
	}
	t.colors = append(t.colors, c)
	id := ColorId(len(t.colors) - 1)
	t.intern[key] = id
	return id
}

func (t *ColorTable) key(c color) string {
	var b strings.Builder
	if c.unknown {
		b.WriteString("U")
	}
	if c.void {
		b.WriteString("V")
	}
	for _, n := range c.nominals {
		b.WriteByte('#')
		b.WriteString(t.names[n])
	}
	return b.String()
}

func unionSorted(a, b []uint32) []uint32 {
	seen := make(map[uint32]bool, len(a)+len(b))
	out := make([]uint32, 0, len(a)+len(b))
	for _, ids := range [][]uint32{a, b} {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
