package model

import (
	"fmt"
	"sort"
)

// LabelScore represents how confidently the classifier assigned a label to a text.
type LabelScore struct {
	Label string
	Score float64
}

// Validate ensures the LabelScore has valid data.
func (s *LabelScore) Validate() error {
	if s.Label == "" {
		return fmt.Errorf("label is required")
	}

	if s.Score < 0.0 || s.Score > 1.0 {
		return fmt.Errorf("score must be between 0.0 and 1.0, got %.2f", s.Score)
	}

	return nil
}

// LabelScores is a slice of LabelScore that supports sorting and utility methods.
type LabelScores []LabelScore

// Len implements sort.Interface.
func (s LabelScores) Len() int {
	return len(s)
}

// Less implements sort.Interface - higher scores come first.
func (s LabelScores) Less(i, j int) bool {
	if s[i].Score != s[j].Score {
		return s[i].Score > s[j].Score
	}
	// If scores are equal, sort by label for consistency
	return s[i].Label < s[j].Label
}

// Swap implements sort.Interface.
func (s LabelScores) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Sort sorts the scores in descending order.
func (s LabelScores) Sort() {
	sort.Sort(s)
}

// Top returns the highest-scoring label, or nil if empty.
func (s LabelScores) Top() *LabelScore {
	if len(s) == 0 {
		return nil
	}
	s.Sort()
	return &s[0]
}

// Labels returns just the label names, in the current order.
func (s LabelScores) Labels() []string {
	labels := make([]string, len(s))
	for i, score := range s {
		labels[i] = score.Label
	}
	return labels
}

// Validate ensures all scores in the slice are valid.
func (s LabelScores) Validate() error {
	seen := make(map[string]bool)

	for i, score := range s {
		if err := score.Validate(); err != nil {
			return fmt.Errorf("invalid score at index %d: %w", i, err)
		}

		if seen[score.Label] {
			return fmt.Errorf("duplicate label %q in scores", score.Label)
		}
		seen[score.Label] = true
	}

	return nil
}
