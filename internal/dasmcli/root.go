// Package dasmcli is dasm's command-line surface: a thin cobra/fang
// command tree wiring the decode tree, the trace engine, and the listing
// formatter together (SPEC_FULL.md §4.J). It is a consumer of the control
// surface spec.md §6 defines, not part of it — spec.md §6 is explicit that
// "no CLI is part of the core".
//
// Grounded on _examples/Dhruvchaudhary255-reverse/internal/reverse/cmd/root.go
// (fang-vs-cobra TTY dispatch, --cpuprofile/--memprofile via runtime/pprof).
package dasmcli

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cpuProfile string
	memProfile string

	cpuProfileFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "dasm",
	Short: "x86 decode-tree disassembler",
	Long: `dasm decodes and traces x86 executables: a prefix-trie opcode
decoder feeding a priority-queue disassembly engine that discovers
functions, data, and cross-references starting from an image's entry
point and its discovered references.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cpuProfile == "" {
			return nil
		}
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("dasmcli: creating cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("dasmcli: starting cpu profile: %w", err)
		}
		cpuProfileFile = f
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cpuProfileFile != nil {
			pprof.StopCPUProfile()
			cpuProfileFile.Close()
			cpuProfileFile = nil
		}
		if memProfile == "" {
			return nil
		}
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("dasmcli: creating memory profile: %w", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("dasmcli: writing memory profile: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	rootCmd.PersistentFlags().StringVar(&memProfile, "memprofile", "", "write a memory profile to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(logsCmd)
}

// Execute runs the root command, using fang's enhanced rendering when
// attached to a terminal and plain cobra otherwise — the teacher's exact
// dispatch rule, so piped output (CI, `dasm run ... | less`) isn't garbled
// by markdown rendering.
func Execute() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt)); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
