package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blackvienna/internal/channel"
	"blackvienna/internal/controller"
	"blackvienna/internal/notify"
	"blackvienna/internal/ui"
)

var playServerURL string

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Connect to a server and play in the terminal",
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playServerURL, "server", "", "websocket endpoint (overrides BV_SERVER_URL)")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	url := cfg.ServerURL
	if playServerURL != "" {
		url = playServerURL
	}

	log, err := clientLogger(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ch, err := channel.Dial(ctx, url, log)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer ch.Close()

	msgCh := make(chan tea.Msg, 8)
	poke := ui.Poke(msgCh)
	notes := notify.New(notify.DefaultTTL, poke)
	ctrl := controller.New(ctx, ch, notes, log, poke)

	program := tea.NewProgram(
		ui.New(ctrl, msgCh, cancel, cfg.PlayerName),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// clientLogger writes to the configured file, or discards everything: the
// terminal belongs to the UI while playing.
func clientLogger(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	c := zap.NewProductionConfig()
	c.OutputPaths = []string{path}
	c.ErrorOutputPaths = []string{path}
	return c.Build()
}
