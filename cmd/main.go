// Command healthgw runs the health data gateway.
//
// The gateway reads height, weight, blood pressure, heart rate and blood
// glucose from the platform health service, stores every published dataset
// in TimescaleDB and serves the results over gRPC.
//
// Usage:
//
//	healthgw [command] [flags]
//
// The commands are:
//
//	serve    run the gRPC server and the refresh schedule (default)
//	refresh  run a single read cycle and print the dataset as JSON
//	version  print the build version
//
// The flags are:
//
//	-c, --config string
//	      path to config file (default "config.yaml")
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "healthgw",
		Short:         "Health data gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the gRPC server and the refresh schedule",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Run one read cycle and print the dataset as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRefresh(cmd.Context(), configPath, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println("healthgw " + version)
			},
		},
	)
	return root
}
