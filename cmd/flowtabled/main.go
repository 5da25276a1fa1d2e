// Command flowtabled hosts a flow-table engine and exposes it to
// operators through a small command tree: add/delete/query flows and
// print engine status. It wires together the same ambient stack the
// engine package itself is built on (zap logging, viper/pflag
// configuration, Prometheus metrics) rather than introducing its own.
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
