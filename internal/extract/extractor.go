// Package extract turns free-form expense text into a structured
// (categories, amount, date) tuple using the classification and entity
// extraction providers, and decides when the result is too ambiguous to
// finalize without asking the user.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kasymbek/spendbot/internal/common"
	"github.com/kasymbek/spendbot/internal/duckling"
	"github.com/kasymbek/spendbot/internal/model"
	"github.com/kasymbek/spendbot/internal/service"
)

// GapThreshold is the confidence margin below which two neighboring
// candidates are considered indistinguishable and the user gets to choose.
const GapThreshold = 0.05

// DefaultLabels is the fixed category set presented to the classifier.
var DefaultLabels = []string{
	"Entertainment", "Work", "Daily Expenses", "Family", "Shopping",
	"Health & Fitness", "Food", "Education", "Other", "Hobbies",
	"Gifts & Social", "Tech", "Sports", "Transport", "Bills",
}

// directionLabels is the binary label set for income/expense detection.
var directionLabels = []string{string(model.DirectionIncome), string(model.DirectionExpense)}

// Result is the pipeline's output for one message.
type Result struct {
	// Categories holds one to three candidate labels, best first. More
	// than one means the classifier couldn't separate them.
	Categories []string
	Amount     model.Amount
	Direction  model.Direction
	Date       string
}

// Ambiguous reports whether the result needs user input before finalization.
func (r Result) Ambiguous() bool {
	return !r.Amount.Present || len(r.Categories) > 1
}

// Extractor runs the extraction pipeline over the capability providers.
type Extractor struct {
	classifier  service.Classifier
	parser      service.EntityParser
	logger      *slog.Logger
	labels      []string
	defaultUnit string
}

// New creates an Extractor. Labels defaults to DefaultLabels when empty.
func New(classifier service.Classifier, parser service.EntityParser, labels []string, defaultUnit string, logger *slog.Logger) *Extractor {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	if defaultUnit == "" {
		defaultUnit = "EUR"
	}
	return &Extractor{
		classifier:  classifier,
		parser:      parser,
		labels:      labels,
		defaultUnit: defaultUnit,
		logger:      logger,
	}
}

// Analyze runs category, amount and date extraction over the text.
// Any provider failure surfaces as ErrProviderUnavailable; there are no
// partial retries here beyond what the provider clients do themselves.
func (e *Extractor) Analyze(ctx context.Context, text string, now time.Time) (Result, error) {
	categories, err := e.Categories(ctx, text)
	if err != nil {
		return Result{}, err
	}

	entities, err := e.parser.Parse(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	amount := e.amountFrom(entities)

	direction, err := e.Direction(ctx, text)
	if err != nil {
		return Result{}, err
	}

	date := e.dateFrom(entities, now)

	e.logger.Info("message analyzed",
		"candidates", len(categories),
		"amount", amount.String(),
		"direction", direction,
		"date", date)

	return Result{
		Categories: categories,
		Amount:     amount,
		Direction:  direction,
		Date:       date,
	}, nil
}

// Categories classifies the text against the label set and applies the gap
// policy to the top three scores: both gaps narrow returns three candidates,
// only the first gap narrow returns two, otherwise the winner alone.
func (e *Extractor) Categories(ctx context.Context, text string) ([]string, error) {
	scores, err := e.classifier.Classify(ctx, text, e.labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: classifier returned no scores", common.ErrProviderUnavailable)
	}

	scores.Sort()

	return pickCandidates(scores), nil
}

// pickCandidates applies the gap policy. It never returns zero or more than
// three labels and is a deterministic function of the three leading scores.
func pickCandidates(scores model.LabelScores) []string {
	if len(scores) == 1 {
		return scores.Labels()[:1]
	}

	gap1 := scores[0].Score - scores[1].Score
	if gap1 >= GapThreshold {
		return scores.Labels()[:1]
	}

	if len(scores) == 2 {
		return scores.Labels()[:2]
	}

	gap2 := scores[1].Score - scores[2].Score
	if gap2 >= GapThreshold {
		return scores.Labels()[:2]
	}

	return scores.Labels()[:3]
}

// Direction classifies the text as income or expense. The binary split is
// always decisive: whichever label scores higher wins.
func (e *Extractor) Direction(ctx context.Context, text string) (model.Direction, error) {
	scores, err := e.classifier.Classify(ctx, text, directionLabels)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}
	top := scores.Top()
	if top == nil {
		return "", fmt.Errorf("%w: classifier returned no scores", common.ErrProviderUnavailable)
	}

	if top.Label == string(model.DirectionIncome) {
		return model.DirectionIncome, nil
	}
	return model.DirectionExpense, nil
}

// amountFrom picks the monetary amount out of the extracted entities. A
// money entity wins; a bare number falls back to the default unit; with
// neither, the amount is absent and a clarification is required.
func (e *Extractor) amountFrom(entities []service.Entity) model.Amount {
	for _, entity := range entities {
		if entity.Dim == duckling.DimMoney {
			unit := entity.Value.Unit
			if unit == "" {
				unit = e.defaultUnit
			}
			return model.NewAmount(entity.Value.Number, unit)
		}
	}

	for _, entity := range entities {
		if entity.Dim == duckling.DimNum {
			return model.NewAmount(entity.Value.Number, e.defaultUnit)
		}
	}

	return model.MissingAmount(e.defaultUnit)
}

// dateFrom resolves the expense date from the first explicitly stated time
// entity. Intervals resolve to their midpoint. Instants in the future are
// walked back a year at a time: expense logs are retrospective. With no
// usable entity the date falls back to now.
func (e *Extractor) dateFrom(entities []service.Entity, now time.Time) string {
	for _, entity := range entities {
		if entity.Dim != duckling.DimTime || entity.Latent {
			continue
		}

		instant := entity.Value.Instant
		if entity.Value.Interval() {
			instant = midpoint(entity.Value.From, entity.Value.To)
		}
		if instant.IsZero() {
			continue
		}

		for instant.After(now) {
			instant = instant.AddDate(-1, 0, 0)
		}

		return formatDate(instant, entity.Value.Grain)
	}

	return formatDate(now, "day")
}

func midpoint(from, to time.Time) time.Time {
	return from.Add(to.Sub(from) / 2)
}

// formatDate renders day.month.year, appending hour:minute when the entity
// was stated with sub-day precision.
func formatDate(t time.Time, grain string) string {
	switch grain {
	case "hour", "minute", "second":
		return t.Format("02.01.2006 15:04")
	default:
		return t.Format("02.01.2006")
	}
}
