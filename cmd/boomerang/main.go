package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boomerangbot/boomerang/internal/bot"
	"github.com/boomerangbot/boomerang/internal/config"
	"github.com/boomerangbot/boomerang/internal/dispatch"
	"github.com/boomerangbot/boomerang/internal/events"
	"github.com/boomerangbot/boomerang/internal/messages"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "boomerang",
		Short: "Messenger webhook gateway",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo bot against the configured page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "boomerang.json", "path to config file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serve runs the classic echo bot: acknowledge, then send the received
// text back.
func serve(cfg *config.Config) error {
	b, err := bot.New(cfg)
	if err != nil {
		return err
	}

	b.On(events.TypeMessageReceived, func(ctx context.Context, r *dispatch.Responder, u events.Update) (*messages.Message, error) {
		slog.Info("received message", "sender", u.SenderID, "text", u.Message.Text)
		r.Acknowledge(ctx)
		return messages.NewText(u.Message.Text), nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.Run(ctx)
}
