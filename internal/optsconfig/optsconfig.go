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

// Package optsconfig holds CompilerOptions (§6): the closed set of
// compiler-level knobs the core consumes. The core itself never reads a
// file or an environment variable (§6's "Environment variables / CLI: none
// at the core layer"); Load exists only for tests and tooling, the way the
// teacher's CUE_EXPERIMENT handling in internal/cueexperiment stays outside
// the evaluator proper and is parsed once, up front, into a plain struct.
package optsconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"optlang.dev/core/internal/feature"
)

// CollapseLevel is one of §6's property_collapse_level enumeration.
type CollapseLevel string

const (
	CollapseNone             CollapseLevel = "none"
	CollapseModuleExportOnly CollapseLevel = "module_export_only"
	CollapseAll              CollapseLevel = "all"
)

// CompilerOptions is the enumerated set of options §6 lists.
type CompilerOptions struct {
	LanguageIn  feature.Set
	LanguageOut feature.Set

	PropertyCollapseLevel CollapseLevel

	GenerateSourceMap bool
	AcceptPseudoNames bool

	// IterationCap overrides internal/pass's default loopable-group cap
	// (100, per §4.6); zero means "use the default".
	IterationCap int
}

// Default returns the zero-friendly baseline: no input features assumed,
// every feature eligible for output, no collapsing, no source map, real
// (minified) collapsed names, and the pass manager's built-in iteration
// cap.
func Default() CompilerOptions {
	return CompilerOptions{
		LanguageIn:            feature.None,
		LanguageOut:           feature.All,
		PropertyCollapseLevel: CollapseNone,
	}
}

// document is the YAML wire shape Load parses, kept separate from
// CompilerOptions because language_in/language_out are lists of feature
// names on the wire but a bitmask in memory, and because yaml.v3 tags read
// more naturally on a dedicated struct than on feature.Set directly.
type document struct {
	LanguageIn            []string `yaml:"language_in"`
	LanguageOut           []string `yaml:"language_out"`
	PropertyCollapseLevel string   `yaml:"property_collapse_level"`
	GenerateSourceMap     bool     `yaml:"generate_source_map"`
	AcceptPseudoNames     bool     `yaml:"accept_pseudo_names"`
	IterationCap          int      `yaml:"iteration_cap"`
}

// Load parses a YAML fixture into CompilerOptions, per the shape §6
// enumerates. Unset fields keep Default's values: the document only ever
// overrides what it mentions; an empty document load equals Default() with
// PropertyCollapseLevel explicitly set from the "" zero value (treated as
// CollapseNone).
func Load(data []byte) (CompilerOptions, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return CompilerOptions{}, fmt.Errorf("optsconfig: %w", err)
	}

	opts := Default()
	if len(doc.LanguageIn) > 0 {
		in, err := parseFeatureList(doc.LanguageIn)
		if err != nil {
			return CompilerOptions{}, fmt.Errorf("optsconfig: language_in: %w", err)
		}
		opts.LanguageIn = in
	}
	if len(doc.LanguageOut) > 0 {
		out, err := parseFeatureList(doc.LanguageOut)
		if err != nil {
			return CompilerOptions{}, fmt.Errorf("optsconfig: language_out: %w", err)
		}
		opts.LanguageOut = out
	}
	if doc.PropertyCollapseLevel != "" {
		lvl := CollapseLevel(doc.PropertyCollapseLevel)
		switch lvl {
		case CollapseNone, CollapseModuleExportOnly, CollapseAll:
			opts.PropertyCollapseLevel = lvl
		default:
			return CompilerOptions{}, fmt.Errorf("optsconfig: property_collapse_level: unknown value %q", doc.PropertyCollapseLevel)
		}
	}
	opts.GenerateSourceMap = doc.GenerateSourceMap
	opts.AcceptPseudoNames = doc.AcceptPseudoNames
	opts.IterationCap = doc.IterationCap

	return opts, nil
}

func parseFeatureList(names []string) (feature.Set, error) {
	var s feature.Set
	for _, name := range names {
		b, ok := feature.ParseBit(name)
		if !ok {
			return 0, fmt.Errorf("unknown feature %q", name)
		}
		s = s.Union(feature.Of(b))
	}
	return s, nil
}
