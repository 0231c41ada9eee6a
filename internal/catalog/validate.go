package catalog

import (
	"fmt"
	"strings"
)

// validateQuestions performs the structural checks the schema cannot express.
// Returns a combined error describing all problems found, or nil if valid.
func validateQuestions(questions []Question) error {
	var errs []string

	if len(questions) == 0 {
		errs = append(errs, "catalog has no questions")
	}

	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		prefix := fmt.Sprintf("question %d (%q)", i, q.ID)
		if strings.TrimSpace(q.ID) == "" {
			errs = append(errs, fmt.Sprintf("question %d: empty question_id", i))
		} else if seen[q.ID] {
			errs = append(errs, fmt.Sprintf("duplicate question_id: %q", q.ID))
		}
		seen[q.ID] = true

		if strings.TrimSpace(q.KC) == "" {
			errs = append(errs, fmt.Sprintf("%s: empty knowledge_component", prefix))
		}
		if q.Difficulty < 1 {
			errs = append(errs, fmt.Sprintf("%s: difficulty_level must be >= 1, got %d", prefix, q.Difficulty))
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			errs = append(errs, fmt.Sprintf("%s: empty correct_answer", prefix))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
