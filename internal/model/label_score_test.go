package model

import (
	"testing"
)

func TestLabelScore_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		score   LabelScore
		wantErr bool
	}{
		{
			name:  "valid score",
			score: LabelScore{Label: "Food", Score: 0.85},
		},
		{
			name:    "empty label",
			score:   LabelScore{Score: 0.5},
			wantErr: true,
			errMsg:  "label is required",
		},
		{
			name:    "score too low",
			score:   LabelScore{Label: "Shopping", Score: -0.1},
			wantErr: true,
			errMsg:  "score must be between 0.0 and 1.0, got -0.10",
		},
		{
			name:    "score too high",
			score:   LabelScore{Label: "Shopping", Score: 1.1},
			wantErr: true,
			errMsg:  "score must be between 0.0 and 1.0, got 1.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.score.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLabelScores_Sort(t *testing.T) {
	scores := LabelScores{
		{Label: "Tech", Score: 0.48},
		{Label: "Food", Score: 0.5},
		{Label: "Shopping", Score: 0.1},
	}

	scores.Sort()

	want := []string{"Food", "Tech", "Shopping"}
	for i, label := range scores.Labels() {
		if label != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], label)
		}
	}
}

func TestLabelScores_SortEqualScores(t *testing.T) {
	scores := LabelScores{
		{Label: "Work", Score: 0.3},
		{Label: "Bills", Score: 0.3},
	}

	scores.Sort()

	// Equal scores fall back to label order for determinism
	if scores[0].Label != "Bills" {
		t.Errorf("expected Bills first, got %s", scores[0].Label)
	}
}

func TestLabelScores_Top(t *testing.T) {
	var empty LabelScores
	if empty.Top() != nil {
		t.Error("expected nil top for empty scores")
	}

	scores := LabelScores{
		{Label: "Food", Score: 0.2},
		{Label: "Tech", Score: 0.9},
	}
	top := scores.Top()
	if top == nil || top.Label != "Tech" {
		t.Errorf("expected Tech, got %+v", top)
	}
}

func TestLabelScores_ValidateDuplicates(t *testing.T) {
	scores := LabelScores{
		{Label: "Food", Score: 0.5},
		{Label: "Food", Score: 0.3},
	}

	if err := scores.Validate(); err == nil {
		t.Error("expected duplicate label error")
	}
}
