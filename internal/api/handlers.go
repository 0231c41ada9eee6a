package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/session"
)

// AnswerRequest is the body of POST /answers.
type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Correct    *bool  `json:"correct"`
}

// ProgressResponse combines the mastery view with the answer tally.
type ProgressResponse struct {
	*mastery.Progress
	Summary *session.Summary `json:"summary"`
}

const maxBodyBytes = 1 << 16

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"message": "fractiz adaptive practice API",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API router is running",
		"version": s.cfg.Version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Begin(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if sess.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, sess)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Next(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "request body must be JSON {question_id, correct}")
		return
	}
	if req.QuestionID == "" || req.Correct == nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "question_id and correct are required")
		return
	}

	res, err := s.svc.Submit(r.Context(), r.PathValue("id"), req.QuestionID, *req.Correct)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	progress, err := s.svc.Progress(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	summary, err := s.svc.Summary(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ProgressResponse{Progress: progress, Summary: summary})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Buffer so a mid-stream failure can still be reported as an error status.
	var buf bytes.Buffer
	if err := s.svc.Export(r.Context(), id, &buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition(session.ExportFilename(id)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	writeAPIError(w, r, status, apiErr)
}
