package main

import (
	"fmt"
	"log/slog"

	"github.com/kasymbek/spendbot/internal/cli"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Re-append locally logged expenses to the spreadsheet",
		Long: `Append every locally logged expense in the period to the configured
spreadsheet. Useful after switching spreadsheets or when rows were lost to
append failures.

Example:
  spendbot export --chat 123456 --days 90`,
		RunE: runExport,
	}

	cmd.Flags().Int64("chat", 0, "chat id to export")
	cmd.Flags().Int("days", 30, "how many days back to include")
	_ = viper.BindPFlag("export.chat", cmd.Flags().Lookup("chat"))
	_ = viper.BindPFlag("export.days", cmd.Flags().Lookup("days"))

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	chatID := viper.GetInt64("export.chat")
	if chatID == 0 {
		return fmt.Errorf("--chat is required")
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

	sink, err := buildSink(ctx, logger)
	if err != nil {
		return err
	}

	from, to := reportPeriod(viper.GetInt("export.days"))

	expenses, err := store.ListByPeriod(ctx, chatID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list expenses: %w", err)
	}

	if len(expenses) == 0 {
		fmt.Println(cli.SubtleStyle.Render("Nothing to export."))
		return nil
	}

	bar := progressbar.Default(int64(len(expenses)), "exporting")

	var failed int
	for _, expense := range expenses {
		if err := sink.Append(ctx, expense); err != nil {
			failed++
			slog.Warn("Failed to export expense", "expense_id", expense.ID, "error", err)
		}
		_ = bar.Add(1)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d expenses failed to export", failed, len(expenses))
	}

	fmt.Printf("Exported %d expenses.\n", len(expenses))

	return nil
}
