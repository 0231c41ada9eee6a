package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownItem means a question id is not in the catalog.
	ErrUnknownItem = errors.New("catalog: unknown item")

	// ErrNoQuestionAvailable matches every *NoQuestionError.
	ErrNoQuestionAvailable = errors.New("catalog: no question available")

	// ErrInvalidCatalog wraps every load-time validation failure.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
)

// NoQuestionError reports a KC with no questions at all, even after relaxing
// the difficulty. This is a data problem, not learner success.
type NoQuestionError struct {
	KC         string
	Difficulty int
}

func (e *NoQuestionError) Error() string {
	return fmt.Sprintf("no question available for knowledge component %q (requested difficulty %d)", e.KC, e.Difficulty)
}

func (e *NoQuestionError) Is(target error) bool { return target == ErrNoQuestionAvailable }
