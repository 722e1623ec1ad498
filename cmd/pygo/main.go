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

// Command pygo is the CLI front end spec.md §6 describes only the
// interface of ("Command-line surface", "for hosts that expose one"):
// flag/environment binding, running a compiled module, and a REPL. The
// source-to-AST parser stays out of scope (spec.md §1), so pygo runs
// marshalled code objects (runtime.Dump's format, spec.md §6 "marshal")
// rather than .py source text directly — exactly the "frozen... precompiled
// and bundled" path spec.md §4.5 step 2 already describes for a host that
// ships compiled modules instead of source.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pyrt-dev/pyrt/compiler"
	"github.com/pyrt-dev/pyrt/internal/config"
	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

var flags config.Flags

func init() {
	// Wires the compiler package into runtime/import.go's CompileSource
	// seam (see compiler/source.go's doc comment). Until a parser package
	// is registered into compiler.ParseSource, this reports SyntaxError
	// for any import that falls through to source compilation rather than
	// hitting a frozen module or the LRU cache.
	pyrt.CompileSource = compiler.CompileSource
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pygo [script]",
		Short:         "pygo runs compiled Python code objects",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
	pf := cmd.Flags()
	pf.CountVarP(&flags.OptimizeLevel, "optimize", "O", "increase optimization level")
	pf.BoolVarP(&flags.NoBytecodeCache, "no-bytecode-cache", "B", false, "don't write/read the compiled-code cache")
	pf.BoolVarP(&flags.IgnoreEnvironment, "ignore-environment", "E", false, "ignore PYTHON* environment variables")
	pf.BoolVarP(&flags.Isolated, "isolated", "I", false, "isolated mode: implies -E and -s")
	pf.BoolVarP(&flags.NoUserSite, "no-user-site", "s", false, "don't add the user site directory")
	pf.BoolVarP(&flags.NoSiteImport, "no-site-import", "S", false, "don't imply 'import site' on startup")
	pf.BoolVarP(&flags.Unbuffered, "unbuffered", "u", false, "force stdout/stderr unbuffered")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "trace import and finalization activity")
	pf.StringArrayVarP(&flags.WarningFilters, "warning-filter", "W", nil, "warning filter action")
	pf.StringArrayVarP(&flags.ImplOptions, "impl-option", "X", nil, "implementation-defined option")
	return cmd
}

func run(args []string) error {
	env, err := config.Load()
	if err != nil {
		return err
	}
	r := config.Resolve(flags, env)

	if r.Verbose {
		pyrt.Log.SetLevel(logrus.TraceLevel)
	}
	pyrt.DisableCodeCache = r.NoBytecodeCache
	if r.SearchPath != "" {
		pyrt.SearchPaths = append(strings.Split(r.SearchPath, string(filepath.ListSeparator)), pyrt.SearchPaths...)
	}

	f := pyrt.NewRootFrame()

	if len(args) == 1 {
		if err := runFile(f, args[0]); err != nil {
			return err
		}
		if !r.Inspect {
			return nil
		}
	}
	return runREPL(f)
}

// runFile loads a marshalled code object (runtime.Dump's format) from path
// and executes it as __main__'s body.
func runFile(f *pyrt.Frame, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	code, raised := pyrt.Load(f, data)
	if raised != nil {
		printException(raised)
		return fmt.Errorf("pygo: failed to load %s", path)
	}
	globals := pyrt.NewDict()
	globals.SetItemString(f, "__name__", pyrt.NewStr("__main__").ToObject())
	globals.SetItemString(f, "__file__", pyrt.NewStr(path).ToObject())
	if _, raised := code.EvalModule(f, globals); raised != nil {
		printException(raised)
		return fmt.Errorf("pygo: unhandled exception running %s", path)
	}
	return nil
}

// runREPL drives an interactive loop over marshalled single-expression code
// objects read line by line, using peterh/liner for history/editing and
// golang.org/x/term to decide whether a prompt makes sense at all (piped
// stdin gets no prompt, matching CPython's own behavior).
//
// Each line is expected to already be in runtime.Dump's marshal format
// rather than raw Python source, since no parser is wired in by default
// (see compiler/source.go) — this loop exercises the REPL's line-editing,
// history, and frame-reuse machinery against whatever an embedding host
// feeds it (compiled snippets from its own tooling, or a parser plugged
// into compiler.ParseSource), which is the part of the REPL this repo owns.
func runREPL(f *pyrt.Frame) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	globals := pyrt.NewDict()
	globals.SetItemString(f, "__name__", pyrt.NewStr("__main__").ToObject())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		prompt := ""
		if interactive {
			prompt = ">>> "
		}
		input, err := line.Prompt(prompt)
		if err == io.EOF || err == liner.ErrPromptAborted {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		code, raised := pyrt.Load(f, []byte(input))
		if raised != nil {
			printException(raised)
			continue
		}
		if _, raised := code.EvalModule(f, globals); raised != nil {
			printException(raised)
		}
	}
}

// printException renders an unhandled exception the way spec.md §4.5's
// failure semantics imply a host must ("execution error -> original
// exception annotated with the module name"): walk the accumulated
// traceback outermost-first, then the exception's own str().
func printException(e *pyrt.BaseException) {
	f := pyrt.NewRootFrame()
	tb := e.Traceback
	var frames []*pyrt.Traceback
	for t := tb; t != nil; t = t.Next() {
		frames = append(frames, t)
	}
	if len(frames) > 0 {
		fmt.Fprintln(os.Stderr, "Traceback (most recent call last):")
		for i := len(frames) - 1; i >= 0; i-- {
			fmt.Fprintf(os.Stderr, "  line %d\n", frames[i].Lineno())
		}
	}
	name, _ := e.Object.Type().FullName(f)
	msg, raised := pyrt.Str(f, e.ToObject())
	if raised != nil {
		fmt.Fprintln(os.Stderr, name)
		return
	}
	if msg.Value() == "" {
		fmt.Fprintln(os.Stderr, name)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", name, msg.Value())
}
