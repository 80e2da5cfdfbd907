package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "kartta",
		Short: "Application-resource mapping reports",
		Long: `Kartta - Application-Resource Mapping Reports

Kartta joins application, service, and resource data from the
application-resource-mapping service, enriches resources with their
New Relic account classification, and writes per-run CSV reports for
cost and ownership analysis.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Kartta {{.Version}} - Application-Resource Mapping Reports
`)
}
