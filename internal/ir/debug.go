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
	"fmt"
	"io"
	"strings"
)

// DebugConfig configures Sprint/Fprint/AppendDebug, the arena counterpart of
// the teacher's reflection-based ast debug printer: same indented,
// Go-literal-like shape, but walked directly over Arena/NodeId since every
// Node field is already known without reflection.
type DebugConfig struct {
	// OmitEmpty suppresses the empty "{}" of a childless node instead of
	// printing it. Empty payloads and zero flags are never printed,
	// whatever this setting.
	OmitEmpty bool
}

// Sprint renders the subtree rooted at root as a multi-line, indented
// string, in source order.
func Sprint(a *Arena, root NodeId, cfg DebugConfig) string {
	var sb strings.Builder
	Fprint(&sb, a, root, cfg)
	return sb.String()
}

// Fprint writes the subtree rooted at root to w.
func Fprint(w io.Writer, a *Arena, root NodeId, cfg DebugConfig) {
	d := &debugPrinter{w: w, a: a, cfg: cfg}
	d.node(root)
	fmt.Fprintln(w)
}

type debugPrinter struct {
	w     io.Writer
	a     *Arena
	cfg   DebugConfig
	level int
}

func (d *debugPrinter) printf(format string, args ...any) {
	fmt.Fprintf(d.w, format, args...)
}

func (d *debugPrinter) newline() {
	fmt.Fprintf(d.w, "\n%s", strings.Repeat("\t", d.level))
}

func (d *debugPrinter) node(n NodeId) {
	if n == NoNode {
		d.printf("nil")
		return
	}
	v := d.arenaNode(n)
	d.printf("%s(n%d)", v.Kind, v.Id)

	hasPayload := v.Payload.Str != "" || v.Payload.Num != nil
	if hasPayload {
		d.printf(" ")
		if v.Payload.Str != "" {
			d.printf("%q", v.Payload.Str)
		}
		if v.Payload.Num != nil {
			d.printf("%s", v.Payload.Num.String())
		}
	}
	if v.Flags != 0 {
		d.printf(" flags=%s", flagNames(v.Flags))
	}
	if !d.cfg.OmitEmpty || len(v.Children) > 0 {
		d.printf(" {")
		d.level++
		for _, c := range v.Children {
			d.newline()
			d.node(c)
		}
		d.level--
		if len(v.Children) > 0 {
			d.newline()
		}
		d.printf("}")
	}
}

// arenaNode is a thin indirection so the printer reads through the same
// public View accessor every other package uses.
func (d *debugPrinter) arenaNode(n NodeId) View {
	return d.a.Node(n)
}

var flagBits = []struct {
	bit  Flags
	name string
}{
	{IsSynthetic, "Synthetic"},
	{IsConstName, "ConstName"},
	{IsArrow, "Arrow"},
	{IsStaticMember, "StaticMember"},
	{IsGenerator, "Generator"},
	{IsAsync, "Async"},
	{IsComputedKey, "ComputedKey"},
	{IsOptionalChainLink, "OptionalChainLink"},
	{IsClassField, "ClassField"},
}

func flagNames(f Flags) string {
	var parts []string
	for _, b := range flagBits {
		if f.Has(b.bit) {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}
