// Command dasm is the thin, non-core driver for the decode tree and trace
// engine: it wires the CLI (internal/dasmcli) to the rest of the module.
// Grounded on _examples/Dhruvchaudhary255-reverse/cmd/reverse/main.go's
// panic-recovery and env-gated pprof server pattern.
package main

import (
	"net/http"
	_ "net/http/pprof"
	"os"

	"dasm/internal/dasmcli"
	"dasm/internal/dlog"
)

func main() {
	defer dlog.RecoverPanic("main", func() {
		dlog.Default().Error("dasm terminated due to unhandled panic")
	})

	if os.Getenv("DASM_PROFILE") != "" {
		go func() {
			dlog.Default().Info("serving pprof", "addr", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				dlog.Default().Error("pprof server failed", "err", err)
			}
		}()
	}

	dasmcli.Execute()
}
