package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kasymbek/spendbot/internal/extract"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(analyzer Analyzer) (*Engine, *MockTransport, *MockSink) {
	transport := NewMockTransport()
	sink := &MockSink{}
	engine := New(analyzer, transport, sink, nil, slog.Default())
	return engine, transport, sink
}

func incoming(text string, senderID int64, messageID int) model.IncomingMessage {
	return model.IncomingMessage{
		Text:      text,
		SenderID:  senderID,
		ChatID:    senderID,
		MessageID: messageID,
		Timestamp: time.Now(),
	}
}

func resolvedResult(category string, magnitude int64) extract.Result {
	return extract.Result{
		Categories: []string{category},
		Amount:     model.NewAmount(decimal.NewFromInt(magnitude), "EUR"),
		Direction:  model.DirectionExpense,
		Date:       "28.08.2026",
	}
}

func TestEngine_FinalizesImmediately(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return resolvedResult("Food", 500), nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)

	engine.HandleMessage(context.Background(), incoming("I spent 500 on groceries yesterday", 10, 1))

	require.Len(t, sink.Appended, 1)
	expense := sink.Appended[0]
	assert.Equal(t, "Food", expense.Category)
	assert.True(t, expense.Amount.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, "EUR", expense.Unit)
	assert.Equal(t, "28.08.2026", expense.Date)
	assert.NotEmpty(t, expense.ID)

	require.NotNil(t, transport.LastSent())
	assert.Contains(t, transport.LastSent().Text, "✅ Noted")
	assert.Equal(t, 0, engine.PendingCount())
}

func TestEngine_MissingAmountAsksAndMergesReply(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Other"},
				Amount:     model.MissingAmount("EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)
	ctx := context.Background()

	engine.HandleMessage(ctx, incoming("spent money", 10, 1))

	assert.Empty(t, sink.Appended)
	require.NotNil(t, transport.LastSent())
	assert.Equal(t, msgAskAmount, transport.LastSent().Text)

	delivered := transport.DeliverReply(ctx, incoming("75.50", 10, 2))
	require.True(t, delivered)

	require.Len(t, sink.Appended, 1)
	want, _ := decimal.NewFromString("-75.50")
	assert.True(t, sink.Appended[0].Amount.Equal(want))
}

func TestEngine_InvalidAmountRepromptsUnbounded(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Other"},
				Amount:     model.MissingAmount("EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)
	ctx := context.Background()

	engine.HandleMessage(ctx, incoming("spent money", 10, 1))

	for i := 0; i < 3; i++ {
		delivered := transport.DeliverReply(ctx, incoming("not a number", 10, 2+i))
		require.True(t, delivered, "re-prompt %d should register a new continuation", i)
		assert.Equal(t, msgInvalidAmount, transport.LastSent().Text)
	}
	assert.Empty(t, sink.Appended)

	require.True(t, transport.DeliverReply(ctx, incoming("12", 10, 9)))
	require.Len(t, sink.Appended, 1)
	assert.True(t, sink.Appended[0].Amount.Equal(decimal.NewFromInt(-12)))
}

func TestEngine_AmbiguousCategoryPromptsChoices(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Food", "Tech"},
				Amount:     model.NewAmount(decimal.NewFromInt(100), "EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)
	ctx := context.Background()

	engine.HandleMessage(ctx, incoming("bought a thing", 10, 7))

	assert.Empty(t, sink.Appended)
	assert.Equal(t, 1, engine.PendingCount())

	prompt := transport.LastSent()
	require.NotNil(t, prompt)
	require.NotNil(t, prompt.Menu)
	require.Len(t, prompt.Menu.Options, 2)
	assert.Equal(t, "Food", prompt.Menu.Options[0].Label)
	assert.Equal(t, "Tech", prompt.Menu.Options[1].Label)
	assert.Equal(t, SelectionData(7, 1), prompt.Menu.Options[1].Data)

	// Selecting index 1 finalizes with Tech
	engine.HandleSelection(ctx, model.Selection{
		MessageID:       7,
		Index:           1,
		SenderID:        10,
		ChatID:          10,
		PromptMessageID: prompt.MessageID,
	})

	require.Len(t, sink.Appended, 1)
	assert.Equal(t, "Tech", sink.Appended[0].Category)
	assert.Equal(t, 0, engine.PendingCount())

	require.Len(t, transport.Edits, 1)
	assert.Contains(t, transport.Edits[0].Text, "Tech")
}

func TestEngine_DuplicateSelectionIsStale(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Food", "Tech"},
				Amount:     model.NewAmount(decimal.NewFromInt(100), "EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)
	ctx := context.Background()

	engine.HandleMessage(ctx, incoming("bought a thing", 10, 7))
	sel := model.Selection{MessageID: 7, Index: 0, SenderID: 10, ChatID: 10, PromptMessageID: 1}

	engine.HandleSelection(ctx, sel)
	require.Len(t, sink.Appended, 1)

	engine.HandleSelection(ctx, sel)
	assert.Len(t, sink.Appended, 1, "duplicate selection must not finalize twice")
	assert.Equal(t, msgStaleSelection, transport.LastSent().Text)
}

func TestEngine_OutOfRangeSelectionKeepsPending(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Food", "Tech"},
				Amount:     model.NewAmount(decimal.NewFromInt(100), "EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)
	ctx := context.Background()

	engine.HandleMessage(ctx, incoming("bought a thing", 10, 7))

	// A forged payload with an index past the candidate list
	engine.HandleSelection(ctx, model.Selection{MessageID: 7, Index: 5, SenderID: 10, ChatID: 10, PromptMessageID: 1})

	assert.Empty(t, sink.Appended)
	assert.Equal(t, 1, engine.PendingCount(), "clarification must survive a malformed press")
	assert.Equal(t, msgStaleSelection, transport.LastSent().Text)

	// The owner's real press still resolves it
	engine.HandleSelection(ctx, model.Selection{MessageID: 7, Index: 0, SenderID: 10, ChatID: 10, PromptMessageID: 1})

	require.Len(t, sink.Appended, 1)
	assert.Equal(t, "Food", sink.Appended[0].Category)
	assert.Equal(t, 0, engine.PendingCount())
}

func TestEngine_CrossUserSelectionRejected(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Food", "Tech"},
				Amount:     model.NewAmount(decimal.NewFromInt(100), "EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, transport, sink := newTestEngine(analyzer)
	ctx := context.Background()

	engine.HandleMessage(ctx, incoming("bought a thing", 10, 7))

	// Another user presses the owner's button
	engine.HandleSelection(ctx, model.Selection{MessageID: 7, Index: 0, SenderID: 99, ChatID: 10, PromptMessageID: 1})

	assert.Empty(t, sink.Appended)
	assert.Equal(t, 1, engine.PendingCount(), "pending state must be left untouched")
	assert.Equal(t, msgNotYourChoice, transport.LastSent().Text)

	// The owner can still resolve it
	engine.HandleSelection(ctx, model.Selection{MessageID: 7, Index: 0, SenderID: 10, ChatID: 10, PromptMessageID: 1})
	require.Len(t, sink.Appended, 1)
}

func TestEngine_ConcurrentUsersStayIndependent(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{
				Categories: []string{"Food", "Tech"},
				Amount:     model.NewAmount(decimal.NewFromInt(100), "EUR"),
				Direction:  model.DirectionExpense,
				Date:       "28.08.2026",
			}, nil
		},
	}
	engine, _, sink := newTestEngine(analyzer)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, user := range []int64{10, 20} {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			engine.HandleMessage(ctx, incoming("bought a thing", user, int(user)))
		}(user)
	}
	wg.Wait()

	assert.Equal(t, 2, engine.PendingCount())

	// Each user tries the other's request first, then their own
	engine.HandleSelection(ctx, model.Selection{MessageID: 20, Index: 0, SenderID: 10, ChatID: 20, PromptMessageID: 1})
	engine.HandleSelection(ctx, model.Selection{MessageID: 10, Index: 0, SenderID: 20, ChatID: 10, PromptMessageID: 1})
	assert.Empty(t, sink.Appended)
	assert.Equal(t, 2, engine.PendingCount())

	engine.HandleSelection(ctx, model.Selection{MessageID: 10, Index: 0, SenderID: 10, ChatID: 10, PromptMessageID: 1})
	engine.HandleSelection(ctx, model.Selection{MessageID: 20, Index: 0, SenderID: 20, ChatID: 20, PromptMessageID: 1})
	assert.Len(t, sink.Appended, 2)
	assert.Equal(t, 0, engine.PendingCount())
}

func TestEngine_ExtractionFailureAsksToRetry(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return extract.Result{}, errors.New("provider down")
		},
	}
	engine, transport, sink := newTestEngine(analyzer)

	engine.HandleMessage(context.Background(), incoming("spent 500", 10, 1))

	assert.Empty(t, sink.Appended)
	assert.Equal(t, msgTryAgain, transport.LastSent().Text)
}

func TestEngine_SinkFailureReportedOnce(t *testing.T) {
	analyzer := &MockAnalyzer{
		AnalyzeFunc: func(_ context.Context, _ string, _ time.Time) (extract.Result, error) {
			return resolvedResult("Food", 500), nil
		},
	}
	engine, transport, _ := newTestEngine(analyzer)
	failing := &MockSink{AppendFunc: func(_ context.Context, _ model.Expense) error {
		return fmt.Errorf("spreadsheet unreachable")
	}}
	engine.sink = failing

	engine.HandleMessage(context.Background(), incoming("I spent 500", 10, 1))

	// The record is lost for this request: no queue, no retry
	assert.Empty(t, failing.Appended)
	assert.Equal(t, msgSaveFailed, transport.LastSent().Text)
}

func TestEngine_StartSendsWelcome(t *testing.T) {
	engine, transport, _ := newTestEngine(&MockAnalyzer{})

	engine.HandleMessage(context.Background(), incoming("/start", 10, 1))

	require.NotNil(t, transport.LastSent())
	assert.Contains(t, transport.LastSent().Text, "Welcome to Expense Tracker Bot")
}

func TestEngine_ReportWithoutStore(t *testing.T) {
	engine, transport, _ := newTestEngine(&MockAnalyzer{})

	engine.HandleMessage(context.Background(), incoming("/report", 10, 1))

	assert.Equal(t, msgNothingLogged, transport.LastSent().Text)
}

func TestSelectionDataRoundTrip(t *testing.T) {
	data := SelectionData(1234, 2)
	assert.Equal(t, "cat_1234_2", data)

	messageID, index, err := ParseSelectionData(data)
	require.NoError(t, err)
	assert.Equal(t, 1234, messageID)
	assert.Equal(t, 2, index)

	for _, bad := range []string{"", "cat_", "cat_x_1", "cat_1_x", "vendor_1_2", "cat_1"} {
		_, _, err := ParseSelectionData(bad)
		assert.Error(t, err, "payload %q should not parse", bad)
	}
}
