package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/rating"
	"github.com/abhisek/fractiz/internal/ui/theme"
)

// ProgressReport renders a student's mastery progress as a card: one row per
// KC with a probability bar, stars, and lifecycle state, then the total and
// title.
type ProgressReport struct {
	Progress *mastery.Progress
	Width    int
}

// View renders the report.
func (r ProgressReport) View() string {
	p := r.Progress
	kcs := p.Vector.KCs()

	nameWidth := 0
	for _, kc := range kcs {
		nameWidth = max(nameWidth, lipgloss.Width(kc))
	}

	var rows []string
	rows = append(rows, theme.Title.Render("Progress for "+p.StudentID), "")
	for _, kc := range kcs {
		label := kc + strings.Repeat(" ", nameWidth-lipgloss.Width(kc))
		bar := NewProgressBar(label, p.Vector[kc], true, r.Width-nameWidth).View()
		stars := StarRating{Stars: p.Stars[kc], Max: rating.MaxStars}.View()
		rows = append(rows, fmt.Sprintf("%s  %s  %s", bar, stars, stateLabel(p.States[kc])))
	}
	rows = append(rows, "",
		theme.Body.Render(fmt.Sprintf("Total stars: %d", p.TotalStars)),
		theme.Body.Render("Title: ")+theme.Title.Render(p.Title),
		theme.Hint.Render(fmt.Sprintf("%d answers recorded", p.Interactions)),
	)
	return theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func stateLabel(s mastery.MasteryState) string {
	switch s {
	case mastery.StateMastered:
		return theme.Mastered.Render(string(s))
	case mastery.StateLearning:
		return theme.Learning.Render(string(s))
	default:
		return theme.New.Render(string(s))
	}
}

// AnswerFeedback renders the outcome of one submitted answer.
func AnswerFeedback(correct bool, correctAnswer string, before, after float64) string {
	var head string
	if correct {
		head = theme.Correct.Render("Correct!")
	} else {
		head = theme.Incorrect.Render("Incorrect.") + theme.Hint.Render(" Answer: "+correctAnswer)
	}
	return head + "\n" + theme.Subtitle.Render(fmt.Sprintf("mastery %.1f%% → %.1f%%", before*100, after*100))
}
