package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/martinemde/mojocode/internal/observability"
	"github.com/martinemde/mojocode/realtime"
)

// newWatchCmd creates the "mojocode watch" subcommand.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow the envelopes a session emits",
		Long:  "Subscribe to a session's relay channel and print each envelope as a JSON line.\nRequires redis_url.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, os.Stderr)
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return errors.New("watch: redis_url is not configured")
			}
			relay, err := realtime.NewRedisRelay(cfg.RedisURL, cfg.RelayChannelPrefix)
			if err != nil {
				return err
			}
			defer relay.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			msgs, err := relay.Subscribe(ctx, args[0], observability.WithFields("command", "watch"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for msg := range msgs {
				if err := enc.Encode(msg); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
