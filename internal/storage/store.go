// Package storage keeps a local append-only log of finalized expenses in
// SQLite, backing the report and export commands. The spreadsheet remains
// the system of record; this log only serves summaries.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/kasymbek/spendbot/internal/model"
	"github.com/kasymbek/spendbot/internal/service"
	"github.com/shopspring/decimal"
)

// Store is a SQLite-backed implementation of service.ExpenseStore.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db, s.logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Save implements the ExpenseStore interface.
func (s *Store) Save(ctx context.Context, expense model.Expense) error {
	if err := expense.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, category, amount, unit, date, chat_id, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID,
		expense.Category,
		expense.Amount.String(),
		expense.Unit,
		expense.Date,
		expense.ChatID,
		expense.LoggedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}

	return nil
}

// ListByPeriod implements the ExpenseStore interface. Expenses are returned
// oldest first.
func (s *Store) ListByPeriod(ctx context.Context, chatID int64, from, to time.Time) ([]model.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, amount, unit, date, chat_id, logged_at
		 FROM expenses
		 WHERE chat_id = ? AND logged_at >= ? AND logged_at <= ?
		 ORDER BY logged_at`,
		chatID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expenses []model.Expense
	for rows.Next() {
		var e model.Expense
		var amount string
		if err := rows.Scan(&e.ID, &e.Category, &amount, &e.Unit, &e.Date, &e.ChatID, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for expense %s: %w", e.ID, err)
		}
		expenses = append(expenses, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return expenses, nil
}

// Summarize implements the ExpenseStore interface.
func (s *Store) Summarize(ctx context.Context, chatID int64, from, to time.Time) (*service.PeriodSummary, error) {
	expenses, err := s.ListByPeriod(ctx, chatID, from, to)
	if err != nil {
		return nil, err
	}

	summary := &service.PeriodSummary{
		From:       from,
		To:         to,
		ByCategory: make(map[string]service.CategoryTotal),
	}

	for _, e := range expenses {
		total := summary.ByCategory[e.Category]
		total.Count++
		total.Amount = total.Amount.Add(e.Amount)
		summary.ByCategory[e.Category] = total
		summary.Total = summary.Total.Add(e.Amount)
	}

	return summary, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
