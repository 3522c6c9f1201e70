package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultListen = "127.0.0.1:8089"

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run only the WebSocket bridge",
		Long: `Run the WebSocket bridge without a terminal front end. Clients connect to
ws://<listen>/api/v1/events, receive every link event as JSON and send
{"op":"connect","peer":"..."}, {"op":"send","text":"..."} or
{"op":"disconnect"} commands. GET /api/v1/state returns the current state.
A configured peer is connected at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if opts.cfg.Listen == "" {
				opts.cfg.Listen = defaultListen
			}
			ctx := cmd.Context()
			a, log, err := opts.setup(ctx, false)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, a.close())
				_ = log.Sync()
			}()

			if peer := opts.cfg.Peer; peer != "" {
				if err := a.Connect(peer); err != nil {
					log.Warn("connect", zap.String("peer", peer), zap.Error(err))
				}
			}

			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		},
	}
}
