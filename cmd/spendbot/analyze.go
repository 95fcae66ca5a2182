package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kasymbek/spendbot/internal/cli"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Run the extraction pipeline over a text",
		Long: `Run category, amount and date extraction over the given text and print
the result, without touching the spreadsheet. Useful for checking that the
providers are reachable and behave sensibly.

Example:
  spendbot analyze "I spent 500 on groceries yesterday"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()
	text := strings.Join(args, " ")

	extractor, closeExtractor, err := buildExtractor(logger)
	if err != nil {
		return err
	}
	defer closeExtractor()

	result, err := extractor.Analyze(ctx, text, time.Now())
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Println(cli.TitleStyle.Render("Extraction result"))
	fmt.Printf("Categories: %s\n", strings.Join(result.Categories, ", "))
	fmt.Printf("Amount:     %s\n", cli.AmountStyle.Render(result.Amount.String()))
	fmt.Printf("Direction:  %s\n", result.Direction)
	fmt.Printf("Date:       %s\n", result.Date)
	if result.Ambiguous() {
		fmt.Println(cli.SubtleStyle.Render("This message would trigger a clarification dialogue."))
	}

	return nil
}
