// Copyright 2024 The pyrt Authors.
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

// Package config resolves the environment variables and command-line flags
// spec.md §6 lists ("Environment variables recognised" / "Command-line
// surface") into one place, rather than scattering os.Getenv calls through
// cmd/pygo the way an ad-hoc CLI would.
package config

import (
	"github.com/caarlos0/env/v6"
)

// Env mirrors spec.md §6's recognised environment variables. Fields left at
// their zero value behave as CPython's corresponding flag does when unset.
type Env struct {
	Path               string `env:"PYTHONPATH"`
	Home               string `env:"PYTHONHOME"`
	DontWriteBytecode  bool   `env:"PYTHONDONTWRITEBYTECODE"`
	Unbuffered         bool   `env:"PYTHONUNBUFFERED"`
	Verbose            bool   `env:"PYTHONVERBOSE"`
	HashSeed           string `env:"PYTHONHASHSEED"`
	Warnings           string `env:"PYTHONWARNINGS"`
	Optimize           int    `env:"PYTHONOPTIMIZE"`
	Inspect            bool   `env:"PYTHONINSPECT"`
	NoUserSite         bool   `env:"PYTHONNOUSERSITE"`
	Breakpoint         string `env:"PYTHONBREAKPOINT"`
}

// Load parses the process environment into an Env, the caarlos0/env
// pattern the mna-nenuphar-style CLI manifests in the retrieved corpus
// standardize on in place of scattered os.Getenv calls.
func Load() (*Env, error) {
	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Flags mirrors spec.md §6's recognised command-line options. cmd/pygo
// binds these with cobra/pflag and then layers them over Env (see Resolve):
// a boolean flag that is set turns its setting on whatever the environment
// says (e.g. -u wins over PYTHONUNBUFFERED=0), while -O adds to
// PYTHONOPTIMIZE and -W filters are kept ahead of PYTHONWARNINGS.
type Flags struct {
	OptimizeLevel     int    // -O, repeatable; stacks with PYTHONOPTIMIZE
	NoBytecodeCache   bool   // -B
	IgnoreEnvironment bool   // -E: skip binding Env entirely
	Isolated          bool   // -I: implies -E and -s
	NoUserSite        bool   // -s
	NoSiteImport      bool   // -S
	Unbuffered        bool   // -u
	Verbose           bool   // -v
	WarningFilters    []string // -W, repeatable
	ImplOptions       []string // -X, repeatable
}

// Resolved is the merged view cmd/pygo actually runs with. Unless -E or -I
// is set, each boolean is on when either its flag or its environment
// variable turns it on, OptimizeLevel is the -O count plus PYTHONOPTIMIZE,
// PYTHONWARNINGS is appended after the -W filters, and Inspect/SearchPath
// come from the environment alone (spec.md §6 treats flags and environment
// variables as two views onto the same settings, not independent ones).
type Resolved struct {
	OptimizeLevel    int
	NoBytecodeCache  bool
	NoUserSite       bool
	NoSiteImport     bool
	Unbuffered       bool
	Verbose          bool
	Inspect          bool
	SearchPath       string
	WarningFilters   []string
	ImplOptions      []string
}

// Resolve merges flags over env following -E/-I's "ignore environment"
// semantics: when either is set, env is never consulted at all.
func Resolve(flags Flags, env *Env) Resolved {
	r := Resolved{
		OptimizeLevel:   flags.OptimizeLevel,
		NoBytecodeCache: flags.NoBytecodeCache,
		NoUserSite:      flags.NoUserSite || flags.Isolated,
		NoSiteImport:    flags.NoSiteImport || flags.Isolated,
		Unbuffered:      flags.Unbuffered,
		Verbose:         flags.Verbose,
		WarningFilters:  flags.WarningFilters,
		ImplOptions:     flags.ImplOptions,
	}
	if flags.IgnoreEnvironment || flags.Isolated || env == nil {
		return r
	}
	r.OptimizeLevel += env.Optimize
	r.NoBytecodeCache = r.NoBytecodeCache || env.DontWriteBytecode
	r.NoUserSite = r.NoUserSite || env.NoUserSite
	r.Unbuffered = r.Unbuffered || env.Unbuffered
	r.Verbose = r.Verbose || env.Verbose
	r.Inspect = env.Inspect
	r.SearchPath = env.Path
	if env.Warnings != "" {
		r.WarningFilters = append(r.WarningFilters, env.Warnings)
	}
	return r
}
