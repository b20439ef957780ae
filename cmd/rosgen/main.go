// Program rosgen is the CLI surface described in spec §6: a single
// utility command, generate-messages, that invokes the (out-of-scope)
// message/service code generator on a named package or on every
// discovered package.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
)

// A Generator turns a package's ".msg"/".srv" schema files into the
// typed-message Go sources the core consumes (spec §1's "deliberately
// out of scope" list: the generator itself, and package discovery on
// disk). rosgen only depends on this interface; package discovery and
// file generation are supplied by an external collaborator at wiring
// time.
type Generator interface {
	// Generate emits sources for pkg, or for every discovered package
	// if pkg is "".
	Generate(pkg string) error
}

// generator is the injected collaborator; nil until a real build
// wires one in, since the generator itself is out of this core's
// scope.
var generator Generator

type genFlags struct {
	OutDir string `flag:"out,default=.,Directory to write generated sources into"`
	DryRun bool   `flag:"dry-run,Report what would be generated without writing files"`
}

func main() {
	root := &command.C{
		Name: filepath.Base(os.Args[0]),
		Help: "Generate typed-message bindings for middleware message and service packages.",
		Commands: []*command.C{
			{
				Name:  "generate-messages",
				Usage: "[package]",
				Help: `Generate typed-message bindings for a package.

With no argument, generate bindings for every package discovered on
the configured search path. With a package name, generate bindings
for that package only.`,
				SetFlags: func(env *command.Env, fs *flag.FlagSet) {
					flax.MustBind(fs, &genFlags{})
				},
				Run: func(env *command.Env) error {
					pkg := ""
					if len(env.Args) > 1 {
						return env.Usagef("too many arguments")
					}
					if len(env.Args) == 1 {
						pkg = env.Args[0]
					}
					if generator == nil {
						return fmt.Errorf("rosgen: no generator wired in")
					}
					if err := generator.Generate(pkg); err != nil {
						return fmt.Errorf("rosgen: generation failed: %w", err)
					}
					return nil
				},
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}
