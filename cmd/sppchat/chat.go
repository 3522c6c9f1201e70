package main

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sppchat/internal/tui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [peer]",
		Short: "Open the interactive chat screen",
		Long: `Open the interactive chat screen. With a peer argument (or "peer" in the
config file) the connection starts immediately; otherwise type the address
at the prompt. Logs go to --log-file, or sppchat.log in the temp directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, log, err := opts.setup(ctx, true)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, a.close())
				_ = log.Sync()
			}()

			events, unsub := a.hub.Subscribe("tui")
			defer unsub()

			peer := opts.peerArg(args)
			if peer != "" {
				if err := a.Connect(peer); err != nil {
					log.Warn("connect", zap.String("peer", peer), zap.Error(err))
				}
			}

			p := tea.NewProgram(tui.New(a, events, peer), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
}
