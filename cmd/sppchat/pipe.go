package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sppchat/internal/link"
)

// pipeWait bounds how long event delivery stalls on a slow stdout
// before a message is dropped.
const pipeWait = 5 * time.Second

func newPipeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pipe [peer]",
		Short: "Send stdin lines to the peer and print received messages",
		Long: `Connect to the peer, send every non-blank line read from stdin as one
message and print each received message on its own line. The command ends
when stdin is exhausted, the connection is lost or on Ctrl-C. If stdout
stays blocked for more than 5s, received messages are dropped and logged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			peer := opts.peerArg(args)
			if peer == "" {
				return errors.New("no peer given and none configured")
			}
			a, log, err := opts.setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, a.close())
				_ = log.Sync()
			}()
			return runPipe(cmd.Context(), a, peer, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runPipe connects to peer and relays lines until in ends, the connection
// ends or ctx is done.
func runPipe(ctx context.Context, a *app, peer string, in io.Reader, out io.Writer) error {
	events, unsub := a.hub.SubscribeWait("pipe", pipeWait)
	defer unsub()

	if err := a.Connect(peer); err != nil {
		return errors.New(link.Describe(err))
	}
	if err := waitConnected(ctx, events); err != nil {
		return err
	}
	a.log.Info("pipe ready", zap.String("peer", a.Peer()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			a.log.Warn("pipe: read stdin", zap.Error(err))
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return link.ErrClosed
			}
			switch e.Kind {
			case link.EventMessage:
				if _, err := fmt.Fprintln(out, e.Text); err != nil {
					_ = a.Disconnect()
					return err
				}
			case link.EventConnectionLost, link.EventSendFailed:
				return errors.New(e.String())
			case link.EventDisconnected:
				return nil
			}

		case line, ok := <-lines:
			if !ok {
				return a.Disconnect()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := a.Send(line); err != nil {
				return errors.New(link.Describe(err))
			}

		case <-ctx.Done():
			return a.Disconnect()
		}
	}
}

// waitConnected blocks until the pending attempt succeeds or fails.
func waitConnected(ctx context.Context, events <-chan link.Event) error {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return link.ErrClosed
			}
			switch e.Kind {
			case link.EventConnected:
				return nil
			case link.EventConnectFailed:
				return fmt.Errorf("%s: %w", e.String(), e.Err)
			case link.EventDisconnected:
				return errors.New("connection attempt abandoned")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
