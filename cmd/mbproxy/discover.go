package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/mbproxy/internal/discovery"
	"github.com/muurk/mbproxy/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find proxies advertising a control endpoint",
	Long: `Browse the local network over mDNS for mbproxy instances started
with --advertise and print their control URLs.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to wait for answers")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	instances, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.PrintError("Discovery failed", err, []string{
			"Multicast must be allowed on the interface",
			"Firewall must allow mDNS (UDP port 5353)",
		})
		return err
	}

	if len(instances) == 0 {
		p.PrintWarning("No proxies found", []ui.Field{
			{Key: "Waited", Value: discoverTimeout.String()},
		})
		return nil
	}

	fields := make([]ui.Field, 0, len(instances))
	for _, inst := range instances {
		value := inst.ControlURL()
		if target := inst.Target(); target != "" {
			value += " -> " + target
		}
		fields = append(fields, ui.Field{Key: inst.Name, Value: value})
	}
	p.PrintSuccess(fmt.Sprintf("Found %d proxies", len(instances)), fields)
	return nil
}
