// Copyright 2024 The clrmeta Authors. All rights reserved.
// Use of this source code is governed by a MIT-style license
// that can be found in the LICENSE file.

// Command clrbuild emits canned CLI metadata directories for manual
// inspection and fuzzing corpora, driving the clrmeta package the way a
// real compiler backend would.
package main

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"

	"github.com/dotnetmd/clrmeta"
	"github.com/dotnetmd/clrmeta/clrmdlog"
)

var (
	outPath   string
	useMmap   bool
	verbosity string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clrbuild",
		Short: "Build sample CLI metadata directories",
	}
	root.PersistentFlags().StringVarP(&outPath, "out", "o", "out.bin", "output file path")
	root.PersistentFlags().BoolVar(&useMmap, "mmap", false, "map the output file instead of a plain write")
	root.PersistentFlags().StringVar(&verbosity, "log-level", "info", "debug, info, warn, or error")

	root.AddCommand(
		newScenarioCmd("empty", "A module with no types", buildEmpty),
		newScenarioCmd("helloworld", "A module with a Main entry point", buildHelloWorld),
		newScenarioCmd("generic", "A generic type with a self-referential constraint", buildGeneric),
	)
	return root
}

func newScenarioCmd(name, short string, build func(log clrmdlog.Logger) (*clrmeta.Directory, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := clrmdlog.NewStdLogger(os.Stderr)
			logger.SetLevel(parseLevel(verbosity))
			dir, err := build(logger)
			if err != nil {
				return err
			}
			return writeDirectory(dir)
		},
	}
}

func parseLevel(s string) clrmdlog.Level {
	switch s {
	case "debug":
		return clrmdlog.LevelDebug
	case "warn":
		return clrmdlog.LevelWarn
	case "error":
		return clrmdlog.LevelError
	default:
		return clrmdlog.LevelInfo
	}
}

func writeDirectory(dir *clrmeta.Directory) error {
	if !useMmap {
		return os.WriteFile(outPath, dir.Bytes, 0o644)
	}

	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(int64(len(dir.Bytes))); err != nil {
		return err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return err
	}
	defer m.Unmap()
	copy(m, dir.Bytes)
	return m.Flush()
}

func buildEmpty(log clrmdlog.Logger) (*clrmeta.Directory, error) {
	module := &clrmeta.ModuleDefinition{
		Name: "Empty.dll",
		Mvid: newMvid(1),
	}
	b := clrmeta.NewBuilder(module, log)
	return b.CreateDirectory()
}

func buildHelloWorld(log clrmdlog.Logger) (*clrmeta.Directory, error) {
	module := &clrmeta.ModuleDefinition{
		Name: "HelloWorld.dll",
		Mvid: newMvid(2),
		Assembly: &clrmeta.AssemblyDefinition{
			Name:    "HelloWorld",
			Version: [4]uint16{1, 0, 0, 0},
		},
	}

	program := &clrmeta.TypeDefinition{
		Namespace: "HelloWorld",
		Name:      "Program",
		Flags:     0x00100001, // Public, AutoLayout, Class, BeforeFieldInit
	}

	main := &clrmeta.MethodDefinition{
		DeclaringType: program,
		Name:          "Main",
		Flags:         0x0096, // Public, Static, HideBySig
		Signature:     []byte{0x00, 0x00, 0x01},
		Body: &clrmeta.MethodBody{
			MaxStack: 1,
			Code:     []byte{0x2a}, // ret
		},
	}
	program.Methods = []*clrmeta.MethodDefinition{main}
	module.Types = []*clrmeta.TypeDefinition{program}
	module.EntryPoint = main

	b := clrmeta.NewBuilder(module, log)
	return b.CreateDirectory()
}

func buildGeneric(log clrmdlog.Logger) (*clrmeta.Directory, error) {
	module := &clrmeta.ModuleDefinition{
		Name: "Generic.dll",
		Mvid: newMvid(3),
	}

	box := &clrmeta.TypeDefinition{
		Namespace: "Generic",
		Name:      "Box`1",
		Flags:     0x00100001,
	}
	t := &clrmeta.GenericParameter{Owner: box, Number: 0, Name: "T"}
	t.Constraints = []*clrmeta.GenericParamConstraint{
		{Owner: t, Constraint: box},
	}
	box.GenericParams = []*clrmeta.GenericParameter{t}
	module.Types = []*clrmeta.TypeDefinition{box}

	b := clrmeta.NewBuilder(module, log)
	return b.CreateDirectory()
}

func newMvid(seed byte) clrmeta.GUID {
	var g clrmeta.GUID
	g[0] = seed
	return g
}
