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

import "github.com/cockroachdb/apd/v3"

// NodeId addresses a Node within an Arena. The zero value, NoNode, never
// addresses a live node. NodeIds are never reused once freed (freeing only
// happens at the very end of compilation), so a stale NodeId is always
// detectable rather than silently aliasing a new node.
type NodeId int32

// NoNode is the distinguished "no id" value, used for absent parents,
// absent annotation/color refs, and absent optional children.
const NoNode NodeId = 0

// Flags is the closed set of boolean bits a Node may carry.
type Flags uint16

const (
	IsSynthetic Flags = 1 << iota
	IsConstName
	IsArrow
	IsStaticMember
	IsGenerator
	IsAsync
	IsComputedKey
	IsOptionalChainLink
	IsClassField
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Payload is the value a leaf Node carries. Only NUMBER and the
// string-bearing kinds (IDENTIFIER, STRING, template pieces, regex, labels)
// have a non-nil payload; every other kind carries none, per §3.
type Payload struct {
	Str string
	Num *apd.Decimal
}

// node is the arena's internal representation. Nothing outside package ir
// ever holds a *node; all other packages address nodes by NodeId.
type node struct {
	kind     Kind
	payload  Payload
	children []NodeId
	parent   NodeId

	sourceRef     SourceRef
	annotationRef AnnotationId
	colorRef      ColorId

	flags Flags

	freed bool
}

// View is a read-only snapshot of a Node's shape, returned by Arena.Node.
// It is safe to hold across a single read but, per §5, must be re-fetched
// by NodeId after any mutating arena operation.
type View struct {
	Id       NodeId
	Kind     Kind
	Payload  Payload
	Children []NodeId
	Parent   NodeId

	SourceRef     SourceRef
	AnnotationRef AnnotationId
	ColorRef      ColorId

	Flags Flags
}

func (v View) HasFlag(bit Flags) bool { return v.Flags.Has(bit) }
