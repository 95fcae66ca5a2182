package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/kasymbek/spendbot/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize logged expenses",
		Long: `Print a per-category summary of locally logged expenses for a chat.

Example:
  spendbot report --chat 123456 --days 30`,
		RunE: runReport,
	}

	cmd.Flags().Int64("chat", 0, "chat id to report on")
	cmd.Flags().Int("days", 30, "how many days back to include")
	_ = viper.BindPFlag("report.chat", cmd.Flags().Lookup("chat"))
	_ = viper.BindPFlag("report.days", cmd.Flags().Lookup("days"))

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	chatID := viper.GetInt64("report.chat")
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

	from, to := reportPeriod(viper.GetInt("report.days"))

	summary, err := store.Summarize(ctx, chatID, from, to)
	if err != nil {
		return fmt.Errorf("failed to summarize expenses: %w", err)
	}

	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Expenses %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006"))))

	if len(summary.ByCategory) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No expenses logged for this period."))
		return nil
	}

	categories := make([]string, 0, len(summary.ByCategory))
	for category := range summary.ByCategory {
		categories = append(categories, category)
	}
	// Most spent first; expense amounts are negative
	sort.Slice(categories, func(i, j int) bool {
		return summary.ByCategory[categories[i]].Amount.LessThan(summary.ByCategory[categories[j]].Amount)
	})

	for _, category := range categories {
		total := summary.ByCategory[category]
		fmt.Printf("%-20s %s  %s\n",
			category,
			cli.AmountStyle.Render(total.Amount.String()),
			cli.SubtleStyle.Render(fmt.Sprintf("(%d)", total.Count)))
	}

	fmt.Printf("\nTotal: %s\n", cli.AmountStyle.Render(summary.Total.String()))

	return nil
}
