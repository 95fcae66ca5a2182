package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kasymbek/spendbot/internal/duckling"
	"github.com/kasymbek/spendbot/internal/extract"
	"github.com/kasymbek/spendbot/internal/service"
	"github.com/kasymbek/spendbot/internal/sheets"
	"github.com/kasymbek/spendbot/internal/storage"
	"github.com/kasymbek/spendbot/internal/zeroshot"
	"github.com/spf13/viper"
)

// buildExtractor wires the provider clients into the extraction pipeline.
// The returned closer must be called on shutdown.
func buildExtractor(logger *slog.Logger) (*extract.Extractor, func(), error) {
	classifier, err := zeroshot.NewClient(zeroshot.Config{
		Endpoint:   viper.GetString("classifier.endpoint"),
		APIKey:     viper.GetString("classifier.api_key"),
		MaxRetries: viper.GetInt("classifier.max_retries"),
		RateLimit:  viper.GetInt("classifier.rate_limit"),
		Timeout:    viper.GetDuration("classifier.timeout"),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	parser, err := duckling.NewClient(duckling.Config{
		Endpoint: viper.GetString("parser.endpoint"),
		Locale:   viper.GetString("parser.locale"),
		Timeout:  viper.GetDuration("parser.timeout"),
	}, logger)
	if err != nil {
		classifier.Close()
		return nil, nil, fmt.Errorf("failed to create parser client: %w", err)
	}

	extractor := extract.New(
		classifier,
		parser,
		viper.GetStringSlice("categories"),
		viper.GetString("default_unit"),
		logger,
	)

	closer := func() {
		if err := classifier.Close(); err != nil {
			slog.Error("Failed to close classifier", "error", err)
		}
	}

	return extractor, closer, nil
}

// buildSink creates the Google Sheets record sink from config.
func buildSink(ctx context.Context, logger *slog.Logger) (service.RecordSink, error) {
	cfg := sheets.DefaultConfig()
	cfg.ClientID = viper.GetString("sheets.client_id")
	cfg.ClientSecret = viper.GetString("sheets.client_secret")
	cfg.RefreshToken = viper.GetString("sheets.refresh_token")
	cfg.ServiceAccountPath = viper.GetString("sheets.service_account_path")
	cfg.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")
	if r := viper.GetString("sheets.range"); r != "" {
		cfg.SheetRange = r
	}

	writer, err := sheets.NewWriter(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets sink: %w", err)
	}
	return writer, nil
}

// openStore opens the local expense log and runs migrations.
func openStore(ctx context.Context, logger *slog.Logger) (*storage.Store, error) {
	path := viper.GetString("database.path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".local", "share", "spendbot", "spendbot.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.New(path, logger)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// reportPeriod resolves the --days flag into a concrete date range.
func reportPeriod(days int) (time.Time, time.Time) {
	to := time.Now()
	if days <= 0 {
		days = 30
	}
	return to.AddDate(0, 0, -days), to
}
