package bot

import (
	"context"
	"sync"
	"time"

	"github.com/kasymbek/spendbot/internal/extract"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/kasymbek/spendbot/internal/service"
)

// MockAnalyzer is a mock implementation of Analyzer for testing.
type MockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, text string, now time.Time) (extract.Result, error)
	Calls       []string
	mu          sync.Mutex
}

// Analyze implements the Analyzer interface.
func (m *MockAnalyzer) Analyze(ctx context.Context, text string, now time.Time) (extract.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, text, now)
	}
	return extract.Result{}, nil
}

// SentMessage records one outgoing transport call.
type SentMessage struct {
	ChatID    int64
	ReplyTo   int
	Text      string
	Menu      *service.ChoiceMenu
	MessageID int
}

// MockTransport is an in-memory implementation of service.Transport.
type MockTransport struct {
	Sent          []SentMessage
	Edits         []SentMessage
	continuations map[int64]func(ctx context.Context, msg model.IncomingMessage)
	nextID        int
	mu            sync.Mutex
}

// NewMockTransport creates a new mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		continuations: make(map[int64]func(ctx context.Context, msg model.IncomingMessage)),
	}
}

// Reply implements the Transport interface.
func (m *MockTransport) Reply(_ context.Context, chatID int64, replyTo int, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, ReplyTo: replyTo, Text: text, MessageID: m.nextID})
	return m.nextID, nil
}

// ReplyWithChoices implements the Transport interface.
func (m *MockTransport) ReplyWithChoices(_ context.Context, chatID int64, replyTo int, text string, menu service.ChoiceMenu) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, ReplyTo: replyTo, Text: text, Menu: &menu, MessageID: m.nextID})
	return m.nextID, nil
}

// Edit implements the Transport interface.
func (m *MockTransport) Edit(_ context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Edits = append(m.Edits, SentMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

// AwaitReply implements the Transport interface.
func (m *MockTransport) AwaitReply(chatID int64, handler func(ctx context.Context, msg model.IncomingMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.continuations[chatID] = handler
}

// DeliverReply feeds the registered continuation for a chat, simulating the
// next message arriving. It reports whether a continuation was waiting.
func (m *MockTransport) DeliverReply(ctx context.Context, msg model.IncomingMessage) bool {
	m.mu.Lock()
	handler, ok := m.continuations[msg.ChatID]
	delete(m.continuations, msg.ChatID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	handler(ctx, msg)
	return true
}

// LastSent returns the most recent outgoing message.
func (m *MockTransport) LastSent() *SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// MockSink is an in-memory implementation of service.RecordSink.
type MockSink struct {
	AppendFunc func(ctx context.Context, expense model.Expense) error
	Appended   []model.Expense
	mu         sync.Mutex
}

// Append implements the RecordSink interface.
func (m *MockSink) Append(ctx context.Context, expense model.Expense) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(ctx, expense); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Appended = append(m.Appended, expense)
	return nil
}
