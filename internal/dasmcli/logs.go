package dasmcli

import (
	"fmt"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

// logsCmd tails a log file written by internal/dlog with
// DASM_LOG_TO_FILE=1, for live monitoring of a long-running `dasm run`
// redirected to a file — the teacher's stack carries nxadm/tail but never
// wires it to a command; this is that missing consumer.
var logsCmd = &cobra.Command{
	Use:   "logs <path>",
	Short: "Tail a dasm log file written with DASM_LOG_TO_FILE=1",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := tail.TailFile(args[0], tail.Config{
			Follow:    true,
			ReOpen:    true,
			Poll:      true,
			MustExist: true,
		})
		if err != nil {
			return fmt.Errorf("dasmcli: tailing log file: %w", err)
		}
		for line := range t.Lines {
			if line.Err != nil {
				return fmt.Errorf("dasmcli: reading log line: %w", line.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line.Text)
		}
		return t.Err()
	},
}
