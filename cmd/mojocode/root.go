package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/martinemde/mojocode/config"
	"github.com/martinemde/mojocode/internal/appversion"
	"github.com/martinemde/mojocode/internal/observability"
)

// newRootCmd creates the root mojocode command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mojocode",
		Short:         "Coding agent service",
		Long:          "mojocode serves coding-agent sessions over websockets.\nIt plans edits with a language model and applies them to a remote sandbox through MCP tool servers.",
		Version:       fmt.Sprintf("mojocode %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().String("config", os.Getenv("MOJOCODE_CONFIG"), "path to a YAML config file")

	cmd.AddCommand(
		newServeCmd(),
		newToolsCmd(),
		newCallCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the --config file and environment and installs the
// process logger at the configured level, writing to logOut.
func loadConfig(cmd *cobra.Command, logOut io.Writer) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	level, err := observability.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	observability.Init(logOut, level)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "mojocode %s\n", appversion.String())
			return nil
		},
	}
}
