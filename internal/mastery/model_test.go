package mastery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abhisek/fractiz/internal/lock"
	"github.com/abhisek/fractiz/internal/store"
)

var testKCs = []string{"addition", "comparison", "equivalence"}

func newTestModel(t *testing.T, repo store.Repository, locker lock.Locker) *Model {
	t.Helper()
	m, err := NewModel(Options{
		Repo:     repo,
		Locker:   locker,
		Strategy: Bayesian{Params: DefaultBayesianParams()},
		KCs:      testKCs,
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

// interleavingRepo yields between reading and writing so that unserialized
// updates would overlap.
type interleavingRepo struct {
	store.Repository
	delay time.Duration
}

func (r *interleavingRepo) LoadState(ctx context.Context, id string) (*store.State, error) {
	st, err := r.Repository.LoadState(ctx, id)
	time.Sleep(r.delay)
	return st, err
}

// barrierRepo blocks LoadState until n callers have read.
type barrierRepo struct {
	store.Repository
	wg *sync.WaitGroup
}

func (r *barrierRepo) LoadState(ctx context.Context, id string) (*store.State, error) {
	st, err := r.Repository.LoadState(ctx, id)
	r.wg.Done()
	r.wg.Wait()
	return st, err
}

// noLock is a Locker that provides no exclusion.
type noLock struct{}

func (noLock) Lock(context.Context, string) (lock.Unlock, error) { return func() {}, nil }

// failingRepo fails every write.
type failingRepo struct {
	store.Repository
}

func (failingRepo) RecordUpdate(context.Context, string, *store.State, store.Interaction) error {
	return store.Fail("record update", errors.New("disk full"))
}

func TestNewModel_Validation(t *testing.T) {
	if _, err := NewModel(Options{Strategy: Bayesian{}, KCs: testKCs}); err == nil {
		t.Error("expected error without repository")
	}
	if _, err := NewModel(Options{Repo: store.NewMemory(), KCs: testKCs}); err == nil {
		t.Error("expected error without strategy")
	}
	if _, err := NewModel(Options{Repo: store.NewMemory(), Strategy: Bayesian{}}); err == nil {
		t.Error("expected error without KCs")
	}
}

func TestModel_VectorLazyPrior(t *testing.T) {
	m := newTestModel(t, store.NewMemory(), nil)

	vec, err := m.Vector(context.Background(), "new-student")
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if len(vec) != len(testKCs) {
		t.Fatalf("len(vector) = %d, want %d", len(vec), len(testKCs))
	}
	for _, kc := range testKCs {
		if vec[kc] != 0.1 {
			t.Errorf("vector[%s] = %v, want prior 0.1", kc, vec[kc])
		}
	}
}

func TestModel_UpdateNumericScenario(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, store.NewMemory(), nil)

	res, err := m.Update(ctx, "alice", "addition", true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Before != 0.1 || math.Abs(res.After-0.4667) > 1e-3 || res.Ordinal != 1 {
		t.Errorf("result = %+v, want before 0.1 after 0.4667 ordinal 1", res)
	}

	res, err = m.Update(ctx, "bob", "addition", false)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if math.Abs(res.After-0.2110) > 1e-3 {
		t.Errorf("incorrect after = %v, want 0.2110", res.After)
	}

	vec, err := m.Vector(ctx, "alice")
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if math.Abs(vec["addition"]-0.4667) > 1e-3 || vec["comparison"] != 0.1 {
		t.Errorf("vector = %v", vec)
	}
}

func TestModel_UpdateUnknownKC(t *testing.T) {
	repo := store.NewMemory()
	m := newTestModel(t, repo, nil)

	_, err := m.Update(context.Background(), "alice", "calculus", true)
	if !errors.Is(err, ErrUnknownKC) {
		t.Fatalf("err = %v, want ErrUnknownKC", err)
	}
	if _, err := repo.LoadState(context.Background(), "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("state touched by rejected update: %v", err)
	}
}

func TestModel_OrdinalMonotonicity(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	m := newTestModel(t, repo, nil)

	const n = 25
	for i := range n {
		if _, err := m.Update(ctx, "alice", testKCs[i%len(testKCs)], i%3 != 0); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	log, err := m.Interactions(ctx, "alice")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(log) != n {
		t.Fatalf("len(log) = %d, want %d", len(log), n)
	}
	for i, rec := range log {
		if rec.Ordinal != int64(i+1) {
			t.Errorf("log[%d].Ordinal = %d, want %d", i, rec.Ordinal, i+1)
		}
		if i > 0 && log[i-1].KC == rec.KC {
			t.Errorf("log[%d] KC repeated unexpectedly", i)
		}
	}
}

func TestModel_ConcurrentUpdatesSerialized(t *testing.T) {
	ctx := context.Background()
	repo := &interleavingRepo{Repository: store.NewMemory(), delay: time.Millisecond}
	m := newTestModel(t, repo, lock.NewKeyedMutex())

	const workers = 20
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Update(ctx, "alice", "addition", i%2 == 0); err != nil {
				t.Errorf("update: %v", err)
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	if failures.Load() > 0 {
		t.FailNow()
	}

	log, err := m.Interactions(ctx, "alice")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(log) != workers {
		t.Fatalf("len(log) = %d, want %d", len(log), workers)
	}
	seen := make(map[int64]bool)
	for _, rec := range log {
		if seen[rec.Ordinal] {
			t.Errorf("duplicate ordinal %d", rec.Ordinal)
		}
		seen[rec.Ordinal] = true
	}
	for i := int64(1); i <= workers; i++ {
		if !seen[i] {
			t.Errorf("missing ordinal %d", i)
		}
	}

	// Each record's before must equal the previous record's after.
	for i := 1; i < len(log); i++ {
		if log[i].ProbabilityBefore != log[i-1].ProbabilityAfter {
			t.Errorf("record %d starts from %v, previous ended at %v", log[i].Ordinal, log[i].ProbabilityBefore, log[i-1].ProbabilityAfter)
		}
	}
}

func TestModel_UnserializedUpdatesCollide(t *testing.T) {
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	repo := &barrierRepo{Repository: store.NewMemory(), wg: &wg}
	m := newTestModel(t, repo, noLock{})

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := m.Update(ctx, "alice", "addition", true)
			errs <- err
		}()
	}

	var dup int
	for range 2 {
		if err := <-errs; errors.Is(err, store.ErrDuplicateOrdinal) {
			dup++
		}
	}
	if dup != 1 {
		t.Errorf("duplicate ordinal rejections = %d, want 1", dup)
	}
}

func TestModel_DistinctStudentsIndependent(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, store.NewMemory(), nil)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				if _, err := m.Update(ctx, id, "comparison", true); err != nil {
					t.Errorf("update %s: %v", id, err)
				}
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		log, err := m.Interactions(ctx, id)
		if err != nil {
			t.Fatalf("Interactions(%s): %v", id, err)
		}
		if len(log) != 5 {
			t.Errorf("student %s has %d records, want 5", id, len(log))
		}
	}
}

func TestModel_ParallelStudentsOnSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "parallel.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	m := newTestModel(t, s, nil)

	const students, perStudent = 32, 10
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for i := range students {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for range perStudent {
				if _, err := m.Update(ctx, id, "addition", i%2 == 0); err != nil {
					if failed.Add(1) == 1 {
						t.Errorf("update %s: %v", id, err)
					}
				}
			}
		}()
	}
	wg.Wait()
	if n := failed.Load(); n != 0 {
		t.Fatalf("%d of %d updates failed", n, students*perStudent)
	}

	for i := range students {
		log, err := m.Interactions(ctx, fmt.Sprintf("s%d", i))
		if err != nil {
			t.Fatalf("Interactions: %v", err)
		}
		if len(log) != perStudent {
			t.Errorf("student s%d has %d records, want %d", i, len(log), perStudent)
		}
	}
}

// brokenLock fails every acquisition, as an unreachable Redis would.
type brokenLock struct{}

func (brokenLock) Lock(context.Context, string) (lock.Unlock, error) {
	return nil, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func TestModel_LockFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, store.NewMemory(), brokenLock{})

	_, err := m.Update(ctx, "alice", "addition", true)
	var pe *store.PersistenceError
	if !errors.As(err, &pe) || !pe.Retryable() {
		t.Fatalf("Update err = %v, want retryable *PersistenceError", err)
	}

	if _, err := m.Ensure(ctx, "alice"); !errors.Is(err, store.ErrPersistence) {
		t.Errorf("Ensure err = %v, want ErrPersistence", err)
	}
}

func TestModel_PersistenceFailureAborts(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	m := newTestModel(t, failingRepo{Repository: mem}, nil)

	_, err := m.Update(ctx, "alice", "addition", true)
	if !errors.Is(err, store.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	var pe *store.PersistenceError
	if !errors.As(err, &pe) || !pe.Retryable() {
		t.Errorf("expected retryable *PersistenceError, got %T", err)
	}

	vec, err := m.Vector(ctx, "alice")
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if vec["addition"] != 0.1 {
		t.Errorf("failed update leaked: addition = %v", vec["addition"])
	}
}

func TestModel_CorruptStateReset(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	m := newTestModel(t, repo, nil)

	for range 3 {
		if _, err := m.Update(ctx, "alice", "addition", true); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	// Corrupt the stored record behind the model's back.
	if err := repo.SaveState(ctx, "alice", &store.State{Probabilities: map[string]float64{"addition": 4.2}, LastOrdinal: 3}); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	vec, err := m.Vector(ctx, "alice")
	if err != nil {
		t.Fatalf("Vector on corrupt state: %v", err)
	}
	if vec["addition"] != 0.1 {
		t.Errorf("corrupt state read as %v, want prior", vec["addition"])
	}

	res, err := m.Update(ctx, "alice", "addition", true)
	if err != nil {
		t.Fatalf("Update after corruption: %v", err)
	}
	if res.Before != 0.1 {
		t.Errorf("before = %v, want prior 0.1", res.Before)
	}
	if res.Ordinal != 4 {
		t.Errorf("ordinal = %d, want 4 (continues the log)", res.Ordinal)
	}

	if _, err := repo.LoadState(ctx, "alice"); err != nil {
		t.Errorf("state still corrupt after update: %v", err)
	}
}

func TestModel_Ensure(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	m := newTestModel(t, repo, nil)

	created, err := m.Ensure(ctx, "alice")
	if err != nil || !created {
		t.Fatalf("Ensure = %v, %v; want created", created, err)
	}
	created, err = m.Ensure(ctx, "alice")
	if err != nil || created {
		t.Fatalf("second Ensure = %v, %v; want existing", created, err)
	}

	st, err := repo.LoadState(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.LastOrdinal != 0 || len(st.Probabilities) != 0 {
		t.Errorf("fresh profile = %+v, want empty prior state", st)
	}
}

func TestModel_StarsTitleProgress(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t, store.NewMemory(), nil)

	stars, err := m.TopicStars(ctx, "alice")
	if err != nil {
		t.Fatalf("TopicStars: %v", err)
	}
	for kc, s := range stars {
		if s != 0 {
			t.Errorf("stars[%s] = %d, want 0 at prior", kc, s)
		}
	}

	// Drive addition to a high probability.
	for range 10 {
		if _, err := m.Update(ctx, "alice", "addition", true); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	total, err := m.TotalStars(ctx, "alice")
	if err != nil {
		t.Fatalf("TotalStars: %v", err)
	}
	if total != 5 {
		t.Errorf("total stars = %d, want 5", total)
	}
	title, err := m.Title(ctx, "alice")
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "explorer" {
		t.Errorf("title = %q, want explorer", title)
	}

	p, err := m.Progress(ctx, "alice")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.TotalStars != 5 || p.Title != "explorer" || p.Interactions != 10 {
		t.Errorf("progress = %+v", p)
	}
	if p.States["addition"] != StateMastered || p.States["comparison"] != StateNew {
		t.Errorf("states = %v", p.States)
	}
}

func TestModel_ReadsDoNotWrite(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	m := newTestModel(t, repo, nil)

	for range 5 {
		if _, err := m.Progress(ctx, "ghost"); err != nil {
			t.Fatalf("Progress: %v", err)
		}
	}
	if _, err := repo.LoadState(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("read created state: %v", err)
	}
}

func TestModel_DurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mastery.db")

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := newTestModel(t, s, nil)
	res, err := m.Update(ctx, "alice", "equivalence", true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	m = newTestModel(t, s, nil)

	vec, err := m.Vector(ctx, "alice")
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if vec["equivalence"] != res.After {
		t.Errorf("after reopen = %v, want %v", vec["equivalence"], res.After)
	}

	res2, err := m.Update(ctx, "alice", "equivalence", false)
	if err != nil {
		t.Fatalf("Update after reopen: %v", err)
	}
	if res2.Ordinal != 2 || res2.Before != res.After {
		t.Errorf("second update = %+v, want ordinal 2 starting at %v", res2, res.After)
	}
}

func TestModel_HeuristicStrategy(t *testing.T) {
	ctx := context.Background()
	m, err := NewModel(Options{
		Repo:     store.NewMemory(),
		Strategy: Heuristic{Params: DefaultHeuristicParams()},
		KCs:      testKCs,
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	for range 30 {
		res, err := m.Update(ctx, "alice", "addition", false)
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if res.After < HeuristicFloor || res.After > HeuristicCeiling {
			t.Fatalf("after = %v outside heuristic band", res.After)
		}
	}
	vec, _ := m.Vector(ctx, "alice")
	if vec["addition"] != HeuristicFloor {
		t.Errorf("addition = %v, want floor %v", vec["addition"], HeuristicFloor)
	}
}
