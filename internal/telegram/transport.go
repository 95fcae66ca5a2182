// Package telegram adapts the Telegram Bot API to the narrow Transport
// interface the conversation engine speaks.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kasymbek/spendbot/internal/bot"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/kasymbek/spendbot/internal/service"
)

// Handler receives the events the transport translates out of Telegram
// updates.
type Handler interface {
	HandleMessage(ctx context.Context, msg model.IncomingMessage)
	HandleSelection(ctx context.Context, sel model.Selection)
}

// Transport drives a Telegram bot and implements service.Transport.
type Transport struct {
	api           *tgbotapi.BotAPI
	logger        *slog.Logger
	continuations map[int64]func(ctx context.Context, msg model.IncomingMessage)
	mu            sync.Mutex
}

// New creates a Transport for the given bot token.
func New(token string, logger *slog.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	return &Transport{
		api:           api,
		logger:        logger,
		continuations: make(map[int64]func(ctx context.Context, msg model.IncomingMessage)),
	}, nil
}

// Run polls for updates and dispatches them to the handler until the
// context is canceled. Updates for different chats are handled
// concurrently; the engine's pending store keeps them independent.
func (t *Transport) Run(ctx context.Context, handler Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := t.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go t.dispatch(ctx, handler, update)
		}
	}
}

func (t *Transport) dispatch(ctx context.Context, handler Handler, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		t.dispatchCallback(ctx, handler, update.CallbackQuery)
	case update.Message != nil:
		t.dispatchMessage(ctx, handler, update.Message)
	}
}

func (t *Transport) dispatchMessage(ctx context.Context, handler Handler, msg *tgbotapi.Message) {
	incoming := model.IncomingMessage{
		Text:      msg.Text,
		SenderID:  msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	// A registered continuation claims the next message in the chat.
	t.mu.Lock()
	continuation, ok := t.continuations[incoming.ChatID]
	if ok {
		delete(t.continuations, incoming.ChatID)
	}
	t.mu.Unlock()

	if ok {
		continuation(ctx, incoming)
		return
	}

	handler.HandleMessage(ctx, incoming)
}

func (t *Transport) dispatchCallback(ctx context.Context, handler Handler, query *tgbotapi.CallbackQuery) {
	// Acknowledge the button press so the client stops its spinner.
	if _, err := t.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		t.logger.Warn("failed to acknowledge callback", "error", err)
	}

	if query.Message == nil {
		return
	}

	messageID, index, err := bot.ParseSelectionData(query.Data)
	if err != nil {
		t.logger.Warn("ignoring malformed callback", "data", query.Data, "error", err)
		return
	}

	handler.HandleSelection(ctx, model.Selection{
		MessageID:       messageID,
		Index:           index,
		SenderID:        query.From.ID,
		ChatID:          query.Message.Chat.ID,
		PromptMessageID: query.Message.MessageID,
	})
}

// Reply implements the Transport interface.
func (t *Transport) Reply(_ context.Context, chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// ReplyWithChoices implements the Transport interface.
func (t *Transport) ReplyWithChoices(_ context.Context, chatID int64, replyTo int, text string, menu service.ChoiceMenu) (int, error) {
	rows := make([][]tgbotapi.InlineKeyboardButton, len(menu.Options))
	for i, option := range menu.Options {
		rows[i] = tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(option.Label, option.Data))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send choice prompt: %w", err)
	}
	return sent.MessageID, nil
}

// Edit implements the Transport interface.
func (t *Transport) Edit(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// AwaitReply implements the Transport interface.
func (t *Transport) AwaitReply(chatID int64, handler func(ctx context.Context, msg model.IncomingMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.continuations[chatID] = handler
}
