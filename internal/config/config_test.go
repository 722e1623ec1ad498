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

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveStacksFlagAndEnvOptimize(t *testing.T) {
	env := &Env{Optimize: 1, Unbuffered: true}
	flags := Flags{OptimizeLevel: 1}

	r := Resolve(flags, env)

	require.Equal(t, 2, r.OptimizeLevel)
	require.True(t, r.Unbuffered)
}

func TestResolveIgnoreEnvironmentSkipsEnv(t *testing.T) {
	env := &Env{Optimize: 5, Verbose: true, NoUserSite: true}
	flags := Flags{IgnoreEnvironment: true}

	r := Resolve(flags, env)

	require.Equal(t, 0, r.OptimizeLevel)
	require.False(t, r.Verbose)
	require.False(t, r.NoUserSite)
}

func TestResolveIsolatedImpliesNoUserSiteAndNoSiteImport(t *testing.T) {
	flags := Flags{Isolated: true}

	r := Resolve(flags, &Env{NoUserSite: false})

	require.True(t, r.NoUserSite)
	require.True(t, r.NoSiteImport)
	require.Equal(t, 0, r.OptimizeLevel, "isolated mode ignores environment entirely")
}

func TestResolveAppendsPythonWarningsToFilters(t *testing.T) {
	env := &Env{Warnings: "ignore"}
	flags := Flags{WarningFilters: []string{"error::DeprecationWarning"}}

	r := Resolve(flags, env)

	require.Equal(t, []string{"error::DeprecationWarning", "ignore"}, r.WarningFilters)
}

func TestResolveNilEnvUsesFlagsOnly(t *testing.T) {
	flags := Flags{Verbose: true, OptimizeLevel: 2}

	r := Resolve(flags, nil)

	require.True(t, r.Verbose)
	require.Equal(t, 2, r.OptimizeLevel)
}
