package dasmcli

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// Config is dasm's own environment-driven configuration, documented so the
// schema command has something real to reflect — grounded directly on the
// teacher's ReverseConfig/schema pattern in
// _examples/Dhruvchaudhary255-reverse/internal/reverse/cmd/schema.go.
type Config struct {
	LogLevel   string `json:"logLevel" jsonschema:"title=Log Level,description=DASM_LOG_LEVEL: debug/warn/error/info,enum=debug,enum=warn,enum=error,enum=info"`
	LogPrefix  string `json:"logPrefix" jsonschema:"title=Log Prefix,description=DASM_LOG_PREFIX override"`
	LogToFile  bool   `json:"logToFile" jsonschema:"title=Log To File,description=DASM_LOG_TO_FILE=1 redirects logging to a timestamped file"`
	CPUProfile string `json:"cpuProfile" jsonschema:"title=CPU Profile Path,description=--cpuprofile output path"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Print the JSON Schema for dasm's configuration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		bts, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
		if err != nil {
			return fmt.Errorf("dasmcli: marshaling schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(bts))
		return nil
	},
}
