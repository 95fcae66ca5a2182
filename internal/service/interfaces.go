// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kasymbek/spendbot/internal/model"
	"github.com/shopspring/decimal"
)

// Classifier scores a text against a set of candidate labels. Scores are
// sum-normalized and returned in descending order. Implementations must not
// cache results: every request gets fresh scores.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (model.LabelScores, error)
}

// Entity is one structured mention the time/amount service found in a text.
type Entity struct {
	Dim    string // "time", "amount-of-money" or "number"
	Latent bool   // inferred background mention rather than explicitly stated
	Value  EntityValue
}

// EntityValue is the payload of an extracted entity. For time entities it is
// either a single instant or a from/to interval; for money and number
// entities it is a value with an optional unit.
type EntityValue struct {
	Instant time.Time
	From    time.Time
	To      time.Time
	Grain   string // e.g. "day", "hour", "minute"
	Number  decimal.Decimal
	Unit    string
}

// Interval reports whether the value is a from/to range.
func (v EntityValue) Interval() bool {
	return !v.From.IsZero() && !v.To.IsZero()
}

// EntityParser extracts dates, money amounts and bare numbers from free text.
type EntityParser interface {
	Parse(ctx context.Context, text string) ([]Entity, error)
}

// RecordSink appends one finalized expense to the external spreadsheet.
// Appends are not retried by callers beyond what the sink does internally;
// a failed append is reported and the record is considered lost.
type RecordSink interface {
	Append(ctx context.Context, expense model.Expense) error
}

// PeriodSummary aggregates logged expenses per category over a date range.
type PeriodSummary struct {
	From       time.Time
	To         time.Time
	ByCategory map[string]CategoryTotal
	Total      decimal.Decimal
}

// CategoryTotal is the per-category rollup inside a PeriodSummary.
type CategoryTotal struct {
	Count  int
	Amount decimal.Decimal
}

// ExpenseStore is the local append-only log of finalized expenses, backing
// the report and export commands.
type ExpenseStore interface {
	Save(ctx context.Context, expense model.Expense) error
	ListByPeriod(ctx context.Context, chatID int64, from, to time.Time) ([]model.Expense, error)
	Summarize(ctx context.Context, chatID int64, from, to time.Time) (*PeriodSummary, error)
	Close() error
}

// ChoiceMenu is an inline set of selectable options attached to a reply.
// Each option's Data is the opaque payload delivered back as a Selection.
type ChoiceMenu struct {
	Options []Choice
}

// Choice is a single selectable option.
type Choice struct {
	Label string
	Data  string
}

// Transport is the chat surface the bot speaks through.
type Transport interface {
	// Reply sends text in reply to a message and returns the sent message id.
	Reply(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	// ReplyWithChoices sends text with an inline choice menu attached.
	ReplyWithChoices(ctx context.Context, chatID int64, replyTo int, text string, menu ChoiceMenu) (int, error)
	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	// AwaitReply registers a continuation for the next message in the chat.
	AwaitReply(chatID int64, handler func(ctx context.Context, msg model.IncomingMessage))
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
