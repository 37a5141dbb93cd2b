package main

import (
	"fmt"
	"os"

	"github.com/LogiStackDev/access-onboard-flow/internal/cli"
	"github.com/LogiStackDev/access-onboard-flow/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tendersyncd",
		Short: "tendersync API server and operator CLI",
		Long:  "tendersync daemon for running the API server, applying migrations and loading the CPV reference data",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.CPVCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
