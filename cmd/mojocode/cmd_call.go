package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/martinemde/mojocode/mcpclient"
)

// newCallCmd creates the "mojocode call" subcommand.
func newCallCmd() *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Invoke a tool on a configured server",
		Long:  "Call one tool and print its text result. <server> is \"main\" for the primary server or the name of an auxiliary server.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, os.Stderr)
			if err != nil {
				return err
			}

			var toolArgs map[string]any
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					return fmt.Errorf("call: --args must be a JSON object: %w", err)
				}
			}

			res, err := cfg.Endpoints().Call(cmd.Context(), args[0], args[1], toolArgs)
			var remote *mcpclient.RemoteError
			if err != nil && !errors.As(err, &remote) {
				return fmt.Errorf("call: %w", err)
			}
			switch {
			case res != nil:
				for _, text := range res.Texts {
					fmt.Fprintln(cmd.OutOrStdout(), text)
				}
			case remote != nil:
				fmt.Fprintln(cmd.OutOrStdout(), remote.Message)
			}
			if remote != nil {
				return fmt.Errorf("call: %s reported an error", args[1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	return cmd
}
