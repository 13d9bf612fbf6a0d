package dasmcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dasm/internal/decoder"
	"dasm/internal/engine"
	"dasm/internal/image"
	"dasm/internal/listing"
	"dasm/internal/x86table"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Disassemble a PE image starting from its entry point",
	Long: `run opens a PE image, builds the decode tree from the builtin
opcode table, and runs the trace engine to completion, printing each
decoded instruction as it is discovered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := image.OpenPE(args[0])
		if err != nil {
			return fmt.Errorf("dasmcli: opening image: %w", err)
		}
		defer img.Close()

		tree := decoder.BuildTree(x86table.New())
		d := engine.New(img, tree)
		d.AddListener(listing.NewPrinter(img, cmd.OutOrStdout()))

		if err := d.Start(); err != nil {
			return fmt.Errorf("dasmcli: starting engine: %w", err)
		}
		d.Wait()

		store := d.Store()
		fmt.Fprintf(cmd.OutOrStdout(), "; functions=%d entities=%d references=%d\n",
			store.FunctionCount(), store.EntityCount(), store.ReferenceCount())
		return nil
	},
}
