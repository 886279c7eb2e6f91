// Mbproxy is a Modbus/TCP interception proxy for SCADA lab environments.
//
// It sits between an HMI and a Modbus/TCP server and relays traffic in one
// of three modes: passthrough, record (capture live register values) and
// replay (answer register reads with previously recorded values).
//
// Usage:
//
//	mbproxy serve [flags]
//	mbproxy inspect <recording.json>
//	mbproxy init-config [path]
//	mbproxy discover
//
// See 'mbproxy <command> --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mbproxy/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mbproxy",
	Short: "Modbus/TCP record and replay proxy",
	Long: `A man-in-the-middle proxy for Modbus/TCP.

Clients connect to mbproxy instead of the Modbus server. Every connection is
relayed to the configured target. Responses to read holding registers (0x03)
and read input registers (0x04) can be recorded to a JSON file and later
replayed in place of live values. All other traffic passes through untouched.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mbproxy %s\n", version.Full())
	},
}
