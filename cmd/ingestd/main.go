// Command ingestd runs the multi-tenant SCADA ingestion runtime: it loads
// the tenant catalog, starts one protocol adapter per enabled connection,
// and serves metrics and control-plane gRPC until told to stop.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
