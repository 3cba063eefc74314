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

// Package dbgflag holds the OPTLANG_DEBUG developer flags: the comma
// separated, name=value environment variable the teacher's CUE_DEBUG
// (internal/cuedebug) uses for the same purpose, naming developer-only
// tracing switches that have no place in CompilerOptions (optsconfig)
// because they concern stderr output, never what the compiler produces.
package dbgflag

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config is the set of known OPTLANG_DEBUG flags. Parse and Init only
// record them: no package in this module reads Flags, so setting a flag
// prints nothing.
type Config struct {
	// IRDump is the irdump flag, named for a dump of the tree after each pass.
	IRDump bool

	// PassTrace is the passtrace flag, named for a trace of each pass's name
	// and feature.Set delta.
	PassTrace bool

	// NamegraphDump is the namegraphdump flag, named for a dump of the
	// namegraph.Graph before collapse.
	NamegraphDump bool
}

// Flags holds the process-wide Config, populated by Init from
// OPTLANG_DEBUG. Unlike the teacher's envflag, which uses reflection over
// struct tags to support an open-ended flag set, Config here is three fixed
// booleans: a small hand-written switch is clearer than reflection for a
// set this size, so Init does not pull in a generalized env-flag parser.
var Flags Config

var initOnce = sync.OnceFunc(func() {
	Flags = Parse(getenv("OPTLANG_DEBUG"))
})

// Init populates Flags from the OPTLANG_DEBUG environment variable exactly
// once per process.
func Init() {
	initOnce()
}

// Parse parses a raw OPTLANG_DEBUG value, a comma-separated list of
// name or name=bool pairs (a bare name means true), into a Config. Unknown
// names are ignored rather than rejected, matching the teacher's tolerance
// for flags introduced by a newer binary than the one reading them.
func Parse(raw string) Config {
	var cfg Config
	if raw == "" {
		return cfg
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value := part, "true"
		if i := strings.IndexByte(part, '='); i >= 0 {
			name, value = part[:i], part[i+1:]
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			continue
		}
		switch name {
		case "irdump":
			cfg.IRDump = b
		case "passtrace":
			cfg.PassTrace = b
		case "namegraphdump":
			cfg.NamegraphDump = b
		}
	}
	return cfg
}

// getenv is a var, not a direct os.Getenv call, so tests can override it
// without touching process environment.
var getenv = os.Getenv
