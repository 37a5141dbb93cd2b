package main

import (
	"fmt"
	"os"

	"github.com/LogiStackDev/access-onboard-flow/internal/cli"
	"github.com/LogiStackDev/access-onboard-flow/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tendersync",
		Short: "tendersync CLI - tender matching from the terminal",
		Long: `tendersync CLI signs you in, searches CPV codes and manages the codes on your profile.

Environment variables:
  TENDERSYNC_ACCESS_TOKEN        Access token (overrides the stored session)
  TENDERSYNC_API_URL             API base URL (default: http://localhost:8080)
  TENDERSYNC_IDENTITY_URL        Identity provider URL used by 'auth login'
  TENDERSYNC_IDENTITY_ANON_KEY   Identity provider public key used by 'auth login'`,
		Version:       version,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.CPVCmd())
	rootCmd.AddCommand(client.ProfileCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
