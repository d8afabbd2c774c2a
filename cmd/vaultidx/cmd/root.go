// Package cmd provides the CLI commands for vaultidx.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultidx/vaultidx/pkg/version"
)

var (
	flagVault    string
	flagConfig   string
	flagLogLevel string
)

// NewRootCmd creates the root command for the vaultidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultidx",
		Short: "Semantic index and agent gateway for a markdown notes vault",
		Long: `vaultidx keeps a searchable index over a directory of markdown notes.

It combines full-text and semantic search, watches the vault for
changes, and exposes the notes to AI agents over MCP and to humans
over a local HTTP API. The notes themselves are the only source of
truth; the index can always be deleted and rebuilt.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("vaultidx version {{.Version}}\n")

	wd, _ := os.Getwd()
	cmd.PersistentFlags().StringVar(&flagVault, "vault", wd, "Vault root directory")
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default <vault>/vaultidx.yaml)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newStatusCmd(),
		newRebuildCmd(),
	)
	return cmd
}
