// Package bot implements the conversation state machine around the
// extraction pipeline: a new message either finalizes immediately or walks
// through AwaitingAmount and AwaitingCategory before the expense is
// persisted and confirmed.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kasymbek/spendbot/internal/common"
	"github.com/kasymbek/spendbot/internal/extract"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/kasymbek/spendbot/internal/service"
	"github.com/shopspring/decimal"
)

// Analyzer runs the extraction pipeline over a message text.
type Analyzer interface {
	Analyze(ctx context.Context, text string, now time.Time) (extract.Result, error)
}

// reportWindow is how far back the /report chat command looks.
const reportWindow = 30 * 24 * time.Hour

// Engine routes incoming chat events through the state machine.
type Engine struct {
	analyzer  Analyzer
	transport service.Transport
	sink      service.RecordSink
	store     service.ExpenseStore
	pending   *pendingStore
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine. The store may be nil, in which case /report is
// unavailable and finalized expenses only go to the sink.
func New(analyzer Analyzer, transport service.Transport, sink service.RecordSink, store service.ExpenseStore, logger *slog.Logger) *Engine {
	return &Engine{
		analyzer:  analyzer,
		transport: transport,
		sink:      sink,
		store:     store,
		pending:   newPendingStore(),
		logger:    logger,
		now:       time.Now,
	}
}

// HandleMessage processes one incoming text message.
func (e *Engine) HandleMessage(ctx context.Context, msg model.IncomingMessage) {
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start" || text == "/help":
		e.reply(ctx, msg.ChatID, msg.MessageID, msgWelcome)
	case text == "/report":
		e.handleReport(ctx, msg)
	default:
		e.handleExpense(ctx, msg)
	}
}

// handleExpense runs the pipeline over a new message and dispatches on the
// result: missing amount asks for a number, close category scores ask for a
// choice, anything else finalizes immediately.
func (e *Engine) handleExpense(ctx context.Context, msg model.IncomingMessage) {
	result, err := e.analyzer.Analyze(ctx, msg.Text, e.now())
	if err != nil {
		e.logger.Error("extraction failed",
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
			"error", err)
		e.reply(ctx, msg.ChatID, msg.MessageID, msgTryAgain)
		return
	}

	if !result.Amount.Present {
		e.askAmount(ctx, msg, result)
		return
	}

	if len(result.Categories) > 1 {
		e.askCategory(ctx, msg, result)
		return
	}

	e.finalize(ctx, msg.ChatID, msg.MessageID, result.Categories[0], result.Amount, result.Direction, result.Date)
}

// askAmount prompts for the amount and registers a continuation for the
// next message in the chat. The partially resolved extraction rides along
// in the closure; retries are unbounded.
func (e *Engine) askAmount(ctx context.Context, msg model.IncomingMessage, result extract.Result) {
	e.reply(ctx, msg.ChatID, msg.MessageID, msgAskAmount)

	e.transport.AwaitReply(msg.ChatID, func(replyCtx context.Context, reply model.IncomingMessage) {
		e.handleAmountReply(replyCtx, msg, result, reply)
	})

	e.logger.Info("awaiting amount",
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID)
}

// handleAmountReply parses the follow-up message as a plain decimal number.
// On failure it re-prompts and stays in AwaitingAmount.
func (e *Engine) handleAmountReply(ctx context.Context, origin model.IncomingMessage, result extract.Result, reply model.IncomingMessage) {
	magnitude, err := decimal.NewFromString(strings.TrimSpace(reply.Text))
	if err != nil {
		e.logger.Debug("amount reply not a number",
			"chat_id", origin.ChatID,
			"error", fmt.Errorf("%w: %v", common.ErrInvalidUserInput, err))
		e.reply(ctx, reply.ChatID, reply.MessageID, msgInvalidAmount)
		e.transport.AwaitReply(origin.ChatID, func(replyCtx context.Context, next model.IncomingMessage) {
			e.handleAmountReply(replyCtx, origin, result, next)
		})
		return
	}

	result.Amount = model.NewAmount(magnitude, result.Amount.Unit)

	if len(result.Categories) > 1 {
		e.askCategory(ctx, origin, result)
		return
	}

	e.finalize(ctx, origin.ChatID, origin.MessageID, result.Categories[0], result.Amount, result.Direction, result.Date)
}

// askCategory presents each candidate as a selectable choice and records
// the pending clarification before the prompt goes out, keyed by the
// originating message.
func (e *Engine) askCategory(ctx context.Context, msg model.IncomingMessage, result extract.Result) {
	menu := service.ChoiceMenu{Options: make([]service.Choice, len(result.Categories))}
	for i, category := range result.Categories {
		menu.Options[i] = service.Choice{
			Label: category,
			Data:  SelectionData(msg.MessageID, i),
		}
	}

	e.pending.put(msg.MessageID, model.PendingClarification{
		Categories: result.Categories,
		Amount:     result.Amount,
		Direction:  result.Direction,
		Date:       result.Date,
		OwnerID:    msg.SenderID,
		ChatID:     msg.ChatID,
		CreatedAt:  e.now(),
	})

	if _, err := e.transport.ReplyWithChoices(ctx, msg.ChatID, msg.MessageID, msgAskCategory, menu); err != nil {
		e.logger.Error("failed to send category prompt",
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
			"error", err)
		return
	}

	e.logger.Info("awaiting category",
		"chat_id", msg.ChatID,
		"message_id", msg.MessageID,
		"candidates", len(result.Categories))
}

// HandleSelection resolves a category button press. The pending entry is
// removed atomically: a duplicate press and a press by anyone but the
// request owner are both rejected without touching state twice.
func (e *Engine) HandleSelection(ctx context.Context, sel model.Selection) {
	entry, err := e.pending.take(sel.MessageID, sel.SenderID)
	switch {
	case errors.Is(err, common.ErrStaleSelection):
		e.reply(ctx, sel.ChatID, sel.PromptMessageID, msgStaleSelection)
		return
	case errors.Is(err, common.ErrUnauthorizedSelection):
		e.reply(ctx, sel.ChatID, sel.PromptMessageID, msgNotYourChoice)
		return
	}

	if sel.Index < 0 || sel.Index >= len(entry.Categories) {
		// A malformed payload must not consume the clarification; the
		// owner's real press still has to resolve it.
		e.pending.put(sel.MessageID, entry)
		e.logger.Warn("selection index out of range",
			"message_id", sel.MessageID,
			"index", sel.Index)
		e.reply(ctx, sel.ChatID, sel.PromptMessageID, msgStaleSelection)
		return
	}

	category := entry.Categories[sel.Index]

	if err := e.transport.Edit(ctx, sel.ChatID, sel.PromptMessageID, fmt.Sprintf("Clarification. Category chosen: %s", category)); err != nil {
		e.logger.Warn("failed to edit clarification prompt",
			"chat_id", sel.ChatID,
			"message_id", sel.PromptMessageID,
			"error", err)
	}

	e.finalize(ctx, entry.ChatID, sel.MessageID, category, entry.Amount, entry.Direction, entry.Date)
}

// finalize persists the resolved expense and confirms to the user. A failed
// sink append is reported and the record is considered lost for this
// request; there is no durable retry queue.
func (e *Engine) finalize(ctx context.Context, chatID int64, replyTo int, category string, amount model.Amount, direction model.Direction, date string) {
	expense := model.Expense{
		ID:       uuid.NewString(),
		Category: category,
		Amount:   amount.Signed(direction),
		Unit:     amount.Unit,
		Date:     date,
		ChatID:   chatID,
		LoggedAt: e.now(),
	}

	if err := expense.Validate(); err != nil {
		e.logger.Error("refusing to persist incomplete expense", "error", err)
		e.reply(ctx, chatID, replyTo, msgTryAgain)
		return
	}

	if err := e.sink.Append(ctx, expense); err != nil {
		e.logger.Error("sink append failed",
			"expense_id", expense.ID,
			"error", fmt.Errorf("%w: %v", common.ErrPersistenceFailure, err))
		e.reply(ctx, chatID, replyTo, msgSaveFailed)
		return
	}

	if e.store != nil {
		// The sheet row is already written; a local log failure only
		// degrades /report.
		if err := e.store.Save(ctx, expense); err != nil {
			e.logger.Warn("local expense log failed",
				"expense_id", expense.ID,
				"error", err)
		}
	}

	e.logger.Info("expense finalized",
		"expense_id", expense.ID,
		"category", category,
		"amount", expense.Amount.String(),
		"unit", expense.Unit,
		"date", date)

	e.reply(ctx, chatID, replyTo, fmt.Sprintf("✅ Noted:\n%s: %s%s.\nDate: %s", category, expense.Amount.String(), expense.Unit, date))
}

// handleReport answers the /report chat command with a per-category rollup
// of the last thirty days.
func (e *Engine) handleReport(ctx context.Context, msg model.IncomingMessage) {
	if e.store == nil {
		e.reply(ctx, msg.ChatID, msg.MessageID, msgNothingLogged)
		return
	}

	to := e.now()
	summary, err := e.store.Summarize(ctx, msg.ChatID, to.Add(-reportWindow), to)
	if err != nil {
		e.logger.Error("report query failed", "chat_id", msg.ChatID, "error", err)
		e.reply(ctx, msg.ChatID, msg.MessageID, msgTryAgain)
		return
	}

	if len(summary.ByCategory) == 0 {
		e.reply(ctx, msg.ChatID, msg.MessageID, msgNothingLogged)
		return
	}

	e.reply(ctx, msg.ChatID, msg.MessageID, formatReport(summary))
}

func formatReport(summary *service.PeriodSummary) string {
	categories := make([]string, 0, len(summary.ByCategory))
	for category := range summary.ByCategory {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		return summary.ByCategory[categories[i]].Amount.LessThan(summary.ByCategory[categories[j]].Amount)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Expenses %s - %s\n",
		summary.From.Format("02.01.2006"), summary.To.Format("02.01.2006"))
	for _, category := range categories {
		total := summary.ByCategory[category]
		fmt.Fprintf(&b, "• %s: %s (%d)\n", category, total.Amount.String(), total.Count)
	}
	fmt.Fprintf(&b, "Total: %s", summary.Total.String())

	return b.String()
}

// PendingCount reports how many clarifications are unresolved.
func (e *Engine) PendingCount() int {
	return e.pending.len()
}

// reply sends a fixed message, logging delivery failures.
func (e *Engine) reply(ctx context.Context, chatID int64, replyTo int, text string) {
	if _, err := e.transport.Reply(ctx, chatID, replyTo, text); err != nil {
		e.logger.Error("failed to send reply",
			"chat_id", chatID,
			"error", err)
	}
}

// SelectionData encodes the opaque callback payload for one category button.
func SelectionData(messageID, index int) string {
	return fmt.Sprintf("cat_%d_%d", messageID, index)
}

// ParseSelectionData decodes a callback payload produced by SelectionData.
func ParseSelectionData(data string) (messageID, index int, err error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 || parts[0] != "cat" {
		return 0, 0, fmt.Errorf("malformed selection data %q", data)
	}

	messageID, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed selection data %q: %w", data, err)
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed selection data %q: %w", data, err)
	}

	return messageID, index, nil
}
