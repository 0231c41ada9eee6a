// Package session implements the learner-facing operations on top of the
// mastery model, the adaptation engine, and the question catalog: begin a
// session, fetch the next item, submit an answer, and report progress.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/fractiz/internal/adaptation"
	"github.com/abhisek/fractiz/internal/catalog"
	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/metrics"
	"github.com/abhisek/fractiz/internal/rating"
)

// MaxStudentIDLength bounds student ids accepted from callers.
const MaxStudentIDLength = 128

// Options configure a Service.
type Options struct {
	Model   *mastery.Model
	Engine  *adaptation.Engine
	Catalog *catalog.Catalog
	// RequireSession makes Next and Submit fail with ErrUnknownStudent for
	// students that have not called Begin in this process.
	RequireSession bool
	// Rand drives random choice among matching questions. Nil uses the
	// process-wide source.
	Rand   catalog.Rand
	Logger *zap.Logger
	Now    func() time.Time
}

// Service orchestrates the answer-submission cycle. It is safe for
// concurrent use.
type Service struct {
	model          *mastery.Model
	engine         *adaptation.Engine
	catalog        *catalog.Catalog
	requireSession bool
	rng            catalog.Rand
	log            *zap.Logger
	now            func() time.Time

	mu       sync.Mutex
	rngMu    sync.Mutex
	sessions map[string]*Session
}

// Session is a begun practice session.
type Session struct {
	ID        string            `json:"session_id"`
	StudentID string            `json:"student_id"`
	StartedAt time.Time         `json:"started_at"`
	Created   bool              `json:"created"`
	Progress  *mastery.Progress `json:"progress"`
}

// NextItem is the result of Next: a question to serve, or completion.
type NextItem struct {
	Complete    bool               `json:"complete"`
	Target      *adaptation.Target `json:"target,omitempty"`
	Question    *catalog.Question  `json:"question,omitempty"`
	Relaxed     bool               `json:"relaxed"`
	Probability float64            `json:"probability"`
}

// SubmitResult is the result of Submit.
type SubmitResult struct {
	Message       string  `json:"message"`
	QuestionID    string  `json:"question_id"`
	KC            string  `json:"kc"`
	Correct       bool    `json:"correct"`
	CorrectAnswer string  `json:"correct_answer"`
	Before        float64 `json:"probability_before"`
	After         float64 `json:"probability_after"`
	Ordinal       int64   `json:"ordinal"`
	Stars         int     `json:"stars"`
	TotalStars    int     `json:"total_stars"`
	Title         string  `json:"title"`
}

// NewService creates a Service. Model, Engine, and Catalog are required.
func NewService(opts Options) (*Service, error) {
	if opts.Model == nil || opts.Engine == nil || opts.Catalog == nil {
		return nil, errors.New("session: model, engine, and catalog are required")
	}
	s := &Service{
		model:          opts.Model,
		engine:         opts.Engine,
		catalog:        opts.Catalog,
		requireSession: opts.RequireSession,
		rng:            opts.Rand,
		log:            opts.Logger,
		now:            opts.Now,
		sessions:       make(map[string]*Session),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Begin starts a session for studentID, creating the student's profile with
// the prior if this is their first contact.
func (s *Service) Begin(ctx context.Context, studentID string) (*Session, error) {
	if err := checkStudentID(studentID); err != nil {
		return nil, err
	}
	created, err := s.model.Ensure(ctx, studentID)
	if err != nil {
		return nil, err
	}
	progress, err := s.model.Progress(ctx, studentID)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.New().String(),
		StudentID: studentID,
		StartedAt: s.now(),
		Created:   created,
		Progress:  progress,
	}

	s.mu.Lock()
	s.sessions[studentID] = sess
	active := len(s.sessions)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(active))

	s.log.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("student_id", studentID),
		zap.Bool("new_student", created),
	)
	return sess, nil
}

// Current returns the student's session begun in this process, if any.
func (s *Service) Current(studentID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[studentID]
	return sess, ok
}

// Next selects the KC and difficulty to practice and resolves it to a
// question. When every KC is mastered it returns a completed NextItem. A KC
// with no questions at all fails with catalog.ErrNoQuestionAvailable.
func (s *Service) Next(ctx context.Context, studentID string) (*NextItem, error) {
	if err := s.checkSession(studentID); err != nil {
		return nil, err
	}
	vec, err := s.model.Vector(ctx, studentID)
	if err != nil {
		return nil, err
	}

	sel := s.engine.SelectTarget(vec, s.model.KCs())
	if sel.Complete {
		metrics.Selections.WithLabelValues(metrics.OutcomeComplete).Inc()
		return &NextItem{Complete: true}, nil
	}

	res, err := s.resolve(sel.Target)
	if err != nil {
		metrics.Selections.WithLabelValues(metrics.OutcomeNoQuestion).Inc()
		s.log.Warn("no question available",
			zap.String("student_id", studentID),
			zap.String("kc", sel.Target.KC),
			zap.Int("difficulty", sel.Target.Difficulty),
		)
		return nil, err
	}

	outcome := metrics.OutcomeExact
	if res.Relaxed {
		outcome = metrics.OutcomeRelaxed
		s.log.Info("difficulty relaxed",
			zap.String("student_id", studentID),
			zap.String("kc", sel.Target.KC),
			zap.Int("requested", sel.Target.Difficulty),
			zap.Int("served", res.Question.Difficulty),
		)
	}
	metrics.Selections.WithLabelValues(outcome).Inc()

	q := res.Question.Public()
	target := sel.Target
	return &NextItem{
		Target:      &target,
		Question:    &q,
		Relaxed:     res.Relaxed,
		Probability: sel.Probability,
	}, nil
}

// Submit records the correctness of an answer to itemID. An unknown item is
// rejected with catalog.ErrUnknownItem before any state is touched.
func (s *Service) Submit(ctx context.Context, studentID, itemID string, correct bool) (*SubmitResult, error) {
	if err := s.checkSession(studentID); err != nil {
		return nil, err
	}
	q, err := s.catalog.Lookup(itemID)
	if err != nil {
		return nil, err
	}

	res, err := s.model.Update(ctx, studentID, q.KC, correct)
	if err != nil {
		return nil, err
	}
	progress, err := s.model.Progress(ctx, studentID)
	if err != nil {
		return nil, err
	}

	msg := "Incorrect."
	if correct {
		msg = "Correct!"
	}
	return &SubmitResult{
		Message:       msg,
		QuestionID:    q.ID,
		KC:            q.KC,
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Before:        res.Before,
		After:         res.After,
		Ordinal:       res.Ordinal,
		Stars:         rating.Stars(res.After),
		TotalStars:    progress.TotalStars,
		Title:         progress.Title,
	}, nil
}

// Progress returns the student's mastery vector, stars, and title.
func (s *Service) Progress(ctx context.Context, studentID string) (*mastery.Progress, error) {
	if err := checkStudentID(studentID); err != nil {
		return nil, err
	}
	return s.model.Progress(ctx, studentID)
}

// Summary tallies the student's answers per KC.
func (s *Service) Summary(ctx context.Context, studentID string) (*Summary, error) {
	if err := checkStudentID(studentID); err != nil {
		return nil, err
	}
	log, err := s.model.Interactions(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return BuildSummary(log), nil
}

func (s *Service) resolve(t adaptation.Target) (catalog.Resolution, error) {
	if s.rng == nil {
		return s.catalog.Resolve(t.KC, t.Difficulty, nil)
	}
	// Caller-supplied sources such as *rand.Rand are not safe for
	// concurrent use.
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.catalog.Resolve(t.KC, t.Difficulty, s.rng)
}

func (s *Service) checkSession(studentID string) error {
	if err := checkStudentID(studentID); err != nil {
		return err
	}
	if !s.requireSession {
		return nil
	}
	if _, ok := s.Current(studentID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStudent, studentID)
	}
	return nil
}

func checkStudentID(id string) error {
	if id == "" || len(id) > MaxStudentIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidStudentID, id)
	}
	return nil
}
