package session

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportHeader is the column row of the interaction CSV.
var ExportHeader = []string{
	"ordinal", "student_id", "knowledge_component", "correct",
	"probability_before", "probability_after", "timestamp",
}

// ExportFilename is the suggested download name for a student's export.
func ExportFilename(studentID string) string {
	return fmt.Sprintf("results_%s.csv", studentID)
}

// Export writes the student's interaction log to w as CSV.
func (s *Service) Export(ctx context.Context, studentID string, w io.Writer) error {
	if err := checkStudentID(studentID); err != nil {
		return err
	}
	log, err := s.model.Interactions(ctx, studentID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range log {
		row := []string{
			strconv.FormatInt(rec.Ordinal, 10),
			rec.StudentID,
			rec.KC,
			strconv.FormatBool(rec.Correct),
			strconv.FormatFloat(rec.ProbabilityBefore, 'f', 6, 64),
			strconv.FormatFloat(rec.ProbabilityAfter, 'f', 6, 64),
			rec.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", rec.Ordinal, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
