package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kasymbek/spendbot/internal/bot"
	"github.com/kasymbek/spendbot/internal/telegram"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the expense tracking bot",
		Long: `Connect to Telegram and process expense messages until interrupted.

Each message goes through category, amount and date extraction; ambiguous
results trigger a clarification dialogue before the expense is appended to
the configured spreadsheet.`,
		RunE: runServe,
	}

	cmd.Flags().String("token", "", "Telegram bot token (overrides config)")
	_ = viper.BindPFlag("telegram.token", cmd.Flags().Lookup("token"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	token := viper.GetString("telegram.token")
	if token == "" {
		return fmt.Errorf("telegram token is required (set telegram.token or SPENDBOT_TELEGRAM_TOKEN)")
	}

	extractor, closeExtractor, err := buildExtractor(logger)
	if err != nil {
		return err
	}
	defer closeExtractor()

	sink, err := buildSink(ctx, logger)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	transport, err := telegram.New(token, logger)
	if err != nil {
		return err
	}

	engine := bot.New(extractor, transport, sink, store, logger)

	slog.Info("Starting expense bot")

	if err := transport.Run(ctx, engine); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}

	slog.Info("Bot stopped", "pending_clarifications_abandoned", engine.PendingCount())

	return nil
}
