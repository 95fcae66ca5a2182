package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether money entered or left the user's pocket.
type Direction string

// Transaction directions.
const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Sign returns +1 for income and -1 for expense.
func (d Direction) Sign() int {
	if d == DirectionIncome {
		return 1
	}
	return -1
}

// Amount is a monetary magnitude with its currency or unit. The magnitude
// may be absent, in which case the conversation must ask the user for it
// before the expense can be finalized.
type Amount struct {
	Magnitude decimal.Decimal
	Unit      string
	Present   bool
}

// NewAmount creates a present amount.
func NewAmount(magnitude decimal.Decimal, unit string) Amount {
	return Amount{Magnitude: magnitude, Unit: unit, Present: true}
}

// MissingAmount creates an absent amount carrying only the unit.
func MissingAmount(unit string) Amount {
	return Amount{Unit: unit}
}

// Signed applies the direction's sign to the magnitude.
func (a Amount) Signed(d Direction) decimal.Decimal {
	if d.Sign() < 0 {
		return a.Magnitude.Neg()
	}
	return a.Magnitude
}

func (a Amount) String() string {
	if !a.Present {
		return "?" + a.Unit
	}
	return a.Magnitude.String() + a.Unit
}

// Expense is a fully resolved record ready for persistence. Records are
// append-only: once written they are never mutated or deleted.
type Expense struct {
	ID       string
	Category string
	Amount   decimal.Decimal // signed: negative for expenses, positive for income
	Unit     string
	Date     string // display format, 02.01.2006 with optional 15:04
	ChatID   int64
	LoggedAt time.Time
}

// Validate ensures the expense is complete enough to persist.
func (e *Expense) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("expense id is required")
	}
	if e.Category == "" {
		return fmt.Errorf("category is required")
	}
	if e.Date == "" {
		return fmt.Errorf("date is required")
	}
	return nil
}
