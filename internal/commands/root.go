package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlets/openlets/internal/buildinfo"
	"github.com/openlets/openlets/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "openlets",
		Short:   "Mutual credit ledger for local exchange trading systems",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "path to the config file")

	rootCmd.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newExportCommand(&configPath),
		newInitConfigCommand(),
	)

	return rootCmd
}
