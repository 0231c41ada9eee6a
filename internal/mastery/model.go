// Package mastery tracks, per student and knowledge component, the
// probability that the student has mastered the KC, and derives star ratings
// and titles from it.
//
// State lives behind a store.Repository. Updates for one student are
// serialized by a lock.Locker held across load, compute, and persist; reads
// take no lock and rely on the repository returning a consistent snapshot.
package mastery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/fractiz/internal/lock"
	"github.com/abhisek/fractiz/internal/metrics"
	"github.com/abhisek/fractiz/internal/rating"
	"github.com/abhisek/fractiz/internal/store"
)

// DefaultMasteryThreshold is the probability at which a KC counts as mastered.
const DefaultMasteryThreshold = 0.95

// Options configure a Model.
type Options struct {
	Repo     store.Repository
	Locker   lock.Locker
	Strategy Strategy
	// KCs is the fixed KC set for the run.
	KCs    []string
	Ladder rating.Ladder
	// MasteryThreshold classifies KCs as mastered in Progress.
	MasteryThreshold float64
	Logger           *zap.Logger
	// Now overrides the clock for interaction timestamps.
	Now func() time.Time
}

// Model is the mastery estimation model. It is safe for concurrent use.
type Model struct {
	repo      store.Repository
	locker    lock.Locker
	strategy  Strategy
	kcs       []string
	known     map[string]bool
	ladder    rating.Ladder
	threshold float64
	log       *zap.Logger
	now       func() time.Time
}

// Result describes one applied update.
type Result struct {
	StudentID string  `json:"student_id"`
	KC        string  `json:"kc"`
	Correct   bool    `json:"correct"`
	Before    float64 `json:"probability_before"`
	After     float64 `json:"probability_after"`
	Ordinal   int64   `json:"ordinal"`
}

// NewModel creates a model. Repo, Strategy, and a non-empty KC set are
// required; a nil Locker defaults to an in-process KeyedMutex.
func NewModel(opts Options) (*Model, error) {
	if opts.Repo == nil {
		return nil, errors.New("mastery: repository is required")
	}
	if opts.Strategy == nil {
		return nil, errors.New("mastery: strategy is required")
	}
	if len(opts.KCs) == 0 {
		return nil, errors.New("mastery: KC set is empty")
	}

	m := &Model{
		repo:      opts.Repo,
		locker:    opts.Locker,
		strategy:  opts.Strategy,
		kcs:       slices.Clone(opts.KCs),
		known:     make(map[string]bool, len(opts.KCs)),
		ladder:    opts.Ladder,
		threshold: opts.MasteryThreshold,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if m.locker == nil {
		m.locker = lock.NewKeyedMutex()
	}
	if len(m.ladder.Rungs) == 0 && m.ladder.Top == "" {
		m.ladder = rating.DefaultLadder()
	}
	if m.threshold <= 0 {
		m.threshold = DefaultMasteryThreshold
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	for _, kc := range m.kcs {
		m.known[kc] = true
	}
	return m, nil
}

// Strategy returns the configured update strategy.
func (m *Model) Strategy() Strategy { return m.strategy }

// KCs returns the model's KC set in its fixed order.
func (m *Model) KCs() []string { return slices.Clone(m.kcs) }

// Update applies one correctness observation for kc and persists the new
// probability together with its interaction record. It returns only after
// the store has committed both. On a store failure nothing is applied and the
// error matches store.ErrPersistence, as does a failure to take the
// student's lock.
func (m *Model) Update(ctx context.Context, studentID, kc string, correct bool) (Result, error) {
	if !m.known[kc] {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownKC, kc)
	}

	waitStart := time.Now()
	unlock, err := m.locker.Lock(ctx, studentID)
	if err != nil {
		metrics.MasteryUpdateFailures.Inc()
		return Result{}, fmt.Errorf("lock student %q: %w", studentID, store.Fail("lock", err))
	}
	defer unlock()
	metrics.LockWait.Observe(time.Since(waitStart).Seconds())

	st, err := m.loadForWrite(ctx, studentID)
	if err != nil {
		metrics.MasteryUpdateFailures.Inc()
		return Result{}, err
	}

	before := m.probability(st, kc)
	after := m.strategy.Next(before, correct)
	now := m.now()

	next := st.Clone()
	next.StudentID = studentID
	next.Probabilities[kc] = after
	next.LastOrdinal = st.LastOrdinal + 1
	next.UpdatedAt = now

	rec := store.Interaction{
		Ordinal:           next.LastOrdinal,
		StudentID:         studentID,
		KC:                kc,
		Correct:           correct,
		ProbabilityBefore: before,
		ProbabilityAfter:  after,
		Timestamp:         now,
	}
	if err := m.repo.RecordUpdate(ctx, studentID, next, rec); err != nil {
		metrics.MasteryUpdateFailures.Inc()
		return Result{}, fmt.Errorf("record update for student %q: %w", studentID, err)
	}

	metrics.MasteryUpdates.WithLabelValues(m.strategy.Name(), strconv.FormatBool(correct)).Inc()
	m.log.Debug("mastery updated",
		zap.String("student_id", studentID),
		zap.String("kc", kc),
		zap.Bool("correct", correct),
		zap.Float64("before", before),
		zap.Float64("after", after),
		zap.Int64("ordinal", rec.Ordinal),
	)

	return Result{
		StudentID: studentID,
		KC:        kc,
		Correct:   correct,
		Before:    before,
		After:     after,
		Ordinal:   rec.Ordinal,
	}, nil
}

// Ensure creates the student's profile if it does not exist yet, persisting
// the prior. It reports whether a profile was created. A corrupt record is
// reset to the prior.
func (m *Model) Ensure(ctx context.Context, studentID string) (bool, error) {
	unlock, err := m.locker.Lock(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("lock student %q: %w", studentID, store.Fail("lock", err))
	}
	defer unlock()

	st, err := m.repo.LoadState(ctx, studentID)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		st = &store.State{StudentID: studentID, Probabilities: map[string]float64{}, UpdatedAt: m.now()}
		if err := m.repo.SaveState(ctx, studentID, st); err != nil {
			return false, fmt.Errorf("create profile for student %q: %w", studentID, err)
		}
		return true, nil
	case errors.Is(err, store.ErrCorruptState):
		st, err := m.resetCorrupt(ctx, studentID, err)
		if err != nil {
			return false, err
		}
		if err := m.repo.SaveState(ctx, studentID, st); err != nil {
			return false, fmt.Errorf("reset profile for student %q: %w", studentID, err)
		}
		return false, nil
	default:
		return false, err
	}
}

// Vector returns the probability of every KC, using the prior for KCs the
// student has never answered. It has no side effects.
func (m *Model) Vector(ctx context.Context, studentID string) (Vector, error) {
	st, err := m.snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return m.vector(st), nil
}

// TopicStars returns the star rating of every KC.
func (m *Model) TopicStars(ctx context.Context, studentID string) (map[string]int, error) {
	vec, err := m.Vector(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return rating.TopicStars(vec), nil
}

// TotalStars returns the sum of the per-KC star ratings.
func (m *Model) TotalStars(ctx context.Context, studentID string) (int, error) {
	stars, err := m.TopicStars(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return rating.Total(stars), nil
}

// Title returns the label for the student's total stars.
func (m *Model) Title(ctx context.Context, studentID string) (string, error) {
	total, err := m.TotalStars(ctx, studentID)
	if err != nil {
		return "", err
	}
	return m.ladder.Title(total), nil
}

// Progress returns vector, stars, title, and lifecycle states from one
// snapshot.
func (m *Model) Progress(ctx context.Context, studentID string) (*Progress, error) {
	st, err := m.snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	observed := make(map[string]bool, len(st.Probabilities))
	for kc := range st.Probabilities {
		observed[kc] = true
	}
	return buildProgress(studentID, m.vector(st), observed, st.LastOrdinal, m.threshold, m.ladder), nil
}

// Interactions returns the student's interaction log ordered by ordinal.
func (m *Model) Interactions(ctx context.Context, studentID string) ([]store.Interaction, error) {
	log, err := m.repo.LoadInteractions(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load interactions for student %q: %w", studentID, err)
	}
	return log, nil
}

// snapshot loads state for reading. A missing student reads as the prior;
// a corrupt record also reads as the prior and is repaired on the next write.
func (m *Model) snapshot(ctx context.Context, studentID string) (*store.State, error) {
	st, err := m.repo.LoadState(ctx, studentID)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, store.ErrNotFound):
		return &store.State{StudentID: studentID, Probabilities: map[string]float64{}}, nil
	case errors.Is(err, store.ErrCorruptState):
		m.log.Warn("corrupt mastery state read as prior",
			zap.String("student_id", studentID),
			zap.Error(err),
		)
		return &store.State{StudentID: studentID, Probabilities: map[string]float64{}}, nil
	default:
		return nil, fmt.Errorf("load state for student %q: %w", studentID, err)
	}
}

// loadForWrite loads state under the student's lock, creating it lazily and
// resetting a corrupt record to the prior.
func (m *Model) loadForWrite(ctx context.Context, studentID string) (*store.State, error) {
	st, err := m.repo.LoadState(ctx, studentID)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, store.ErrNotFound):
		return &store.State{StudentID: studentID, Probabilities: map[string]float64{}}, nil
	case errors.Is(err, store.ErrCorruptState):
		return m.resetCorrupt(ctx, studentID, err)
	default:
		return nil, fmt.Errorf("load state for student %q: %w", studentID, err)
	}
}

// resetCorrupt builds a prior state for a student whose record failed
// validation. The ordinal continues from the interaction log so that the
// next append does not collide with existing records.
func (m *Model) resetCorrupt(ctx context.Context, studentID string, cause error) (*store.State, error) {
	log, err := m.repo.LoadInteractions(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load interactions for student %q: %w", studentID, err)
	}
	var last int64
	for _, rec := range log {
		last = max(last, rec.Ordinal)
	}

	metrics.CorruptStateResets.Inc()
	m.log.Warn("corrupt mastery state reset to prior",
		zap.String("student_id", studentID),
		zap.Int64("last_ordinal", last),
		zap.Error(cause),
	)
	return &store.State{
		StudentID:     studentID,
		Probabilities: map[string]float64{},
		LastOrdinal:   last,
		UpdatedAt:     m.now(),
	}, nil
}

func (m *Model) probability(st *store.State, kc string) float64 {
	if p, ok := st.Probabilities[kc]; ok {
		return p
	}
	return m.strategy.Prior()
}

func (m *Model) vector(st *store.State) Vector {
	vec := make(Vector, len(m.kcs))
	for _, kc := range m.kcs {
		vec[kc] = m.probability(st, kc)
	}
	return vec
}
