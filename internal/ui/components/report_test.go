package components

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/fractiz/internal/mastery"
)

func TestProgressBar_Clamps(t *testing.T) {
	for _, pct := range []float64{-0.5, 0, 0.5, 1, 1.5} {
		view := NewProgressBar("", pct, false, 20).View()
		if w := lipgloss.Width(view); w != 20 {
			t.Errorf("percent %v: width = %d, want 20", pct, w)
		}
	}
}

func TestStarRating(t *testing.T) {
	tests := []struct {
		stars  int
		filled int
	}{
		{0, 0}, {3, 3}, {5, 5}, {9, 5}, {-1, 0},
	}
	for _, tt := range tests {
		view := StarRating{Stars: tt.stars, Max: 5}.View()
		if got := strings.Count(view, "★"); got != tt.filled {
			t.Errorf("stars %d: filled = %d, want %d", tt.stars, got, tt.filled)
		}
		if got := strings.Count(view, "☆"); got != 5-tt.filled {
			t.Errorf("stars %d: empty = %d, want %d", tt.stars, got, 5-tt.filled)
		}
	}
}

func TestProgressReport(t *testing.T) {
	p := &mastery.Progress{
		StudentID:    "alice",
		Vector:       mastery.Vector{"addition": 0.97, "comparison": 0.1},
		Stars:        map[string]int{"addition": 5, "comparison": 0},
		States:       map[string]mastery.MasteryState{"addition": mastery.StateMastered, "comparison": mastery.StateNew},
		TotalStars:   5,
		Title:        "explorer",
		Interactions: 4,
	}
	view := ProgressReport{Progress: p, Width: 60}.View()

	for _, want := range []string{"alice", "addition", "comparison", "mastered", "Total stars: 5", "explorer", "4 answers recorded"} {
		if !strings.Contains(view, want) {
			t.Errorf("report missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "addition") > strings.Index(view, "comparison") {
		t.Error("KC rows are not sorted")
	}
}

func TestAnswerFeedback(t *testing.T) {
	if got := AnswerFeedback(false, "1/2", 0.1, 0.211); !strings.Contains(got, "1/2") || !strings.Contains(got, "21.1%") {
		t.Errorf("feedback = %q", got)
	}
	if got := AnswerFeedback(true, "1/2", 0.1, 0.4667); strings.Contains(got, "Answer:") {
		t.Errorf("correct feedback shows answer: %q", got)
	}
}
