package main

import (
	"context"
	"os"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/spf13/cobra"

	clientconfig "github.com/relieftoken/drt-client/cmd/drt-client/config"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	configPath string
	jsonOutput bool

	cfg *clientconfig.Config
)

var rootCmd = &cobra.Command{
	Use:           "drt-client <command>",
	Short:         "Wallet session and contract client for the Disaster Relief Token",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := clientconfig.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search ~/.config/drt-client and .)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd, historyCmd, rolesCmd, tokenCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("drt-client %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error("drt-client failed", "error", err)
		os.Exit(1)
	}
}
