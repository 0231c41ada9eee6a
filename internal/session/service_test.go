package session

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/fractiz/internal/adaptation"
	"github.com/abhisek/fractiz/internal/catalog"
	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/store"
)

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Question{
		{ID: "add-1", KC: "addition", Difficulty: 1, CorrectAnswer: "1/2"},
		{ID: "add-3", KC: "addition", Difficulty: 3, CorrectAnswer: "5/6"},
		{ID: "cmp-2", KC: "comparison", Difficulty: 2, CorrectAnswer: ">"},
	})
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc   *Service
	repo  *store.Memory
	model *mastery.Model
}

func newFixture(t *testing.T, requireSession bool) *fixture {
	t.Helper()
	cat := testCatalog(t)
	repo := store.NewMemory()
	model, err := mastery.NewModel(mastery.Options{
		Repo:     repo,
		Strategy: mastery.Bayesian{Params: mastery.DefaultBayesianParams()},
		KCs:      cat.KCs(),
	})
	require.NoError(t, err)
	engine, err := adaptation.New(adaptation.DefaultConfig())
	require.NoError(t, err)

	svc, err := NewService(Options{
		Model:          model,
		Engine:         engine,
		Catalog:        cat,
		RequireSession: requireSession,
		Rand:           firstRand{},
		Now:            func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return &fixture{svc: svc, repo: repo, model: model}
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestBegin_CreatesProfileOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	sess, err := f.svc.Begin(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, sess.Created)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "novice", sess.Progress.Title)
	assert.InDelta(t, 0.1, sess.Progress.Vector["addition"], 1e-12)

	_, err = f.repo.LoadState(ctx, "alice")
	require.NoError(t, err, "Begin should persist the profile")

	again, err := f.svc.Begin(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.NotEqual(t, sess.ID, again.ID)

	cur, ok := f.svc.Current("alice")
	require.True(t, ok)
	assert.Equal(t, again.ID, cur.ID)
}

func TestBegin_InvalidStudentID(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Begin(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidStudentID)

	_, err = f.svc.Begin(context.Background(), strings.Repeat("x", MaxStudentIDLength+1))
	assert.ErrorIs(t, err, ErrInvalidStudentID)
}

func TestNext_SelectsWeakestKC(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// Both KCs start at the prior; the tie goes to the first in sorted order.
	item, err := f.svc.Next(ctx, "alice")
	require.NoError(t, err)
	require.False(t, item.Complete)
	assert.Equal(t, adaptation.Target{KC: "addition", Difficulty: 1}, *item.Target)
	assert.Equal(t, "add-1", item.Question.ID)
	assert.False(t, item.Relaxed)
	assert.Empty(t, item.Question.CorrectAnswer, "answer must not be served")
}

func TestNext_RelaxesDifficulty(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// Push addition out of the way so comparison (only difficulty 2) is
	// chosen at tier 1.
	for range 10 {
		_, err := f.svc.Submit(ctx, "alice", "add-1", true)
		require.NoError(t, err)
	}

	item, err := f.svc.Next(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "comparison", item.Target.KC)
	assert.Equal(t, 1, item.Target.Difficulty)
	assert.True(t, item.Relaxed)
	assert.Equal(t, "cmp-2", item.Question.ID)
}

func TestNext_Completion(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for range 10 {
		_, err := f.svc.Submit(ctx, "alice", "add-1", true)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, "alice", "cmp-2", true)
		require.NoError(t, err)
	}

	item, err := f.svc.Next(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, item.Complete)
	assert.Nil(t, item.Target)
	assert.Nil(t, item.Question)
}

func TestNext_DoesNotChangeMastery(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "alice", "cmp-2", false)
	require.NoError(t, err)
	before, err := f.model.Vector(ctx, "alice")
	require.NoError(t, err)

	for range 10 {
		_, err := f.svc.Next(ctx, "alice")
		require.NoError(t, err)
	}
	after, err := f.model.Vector(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSubmit_UnknownItemLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "alice", "nope", true)
	assert.ErrorIs(t, err, catalog.ErrUnknownItem)

	_, err = f.repo.LoadState(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_Result(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.svc.Submit(context.Background(), "alice", "add-3", true)
	require.NoError(t, err)
	assert.Equal(t, "Correct!", res.Message)
	assert.Equal(t, "5/6", res.CorrectAnswer)
	assert.Equal(t, "addition", res.KC)
	assert.InDelta(t, 0.1, res.Before, 1e-12)
	assert.InDelta(t, 0.4667, res.After, 1e-3)
	assert.Equal(t, int64(1), res.Ordinal)
	assert.Equal(t, 2, res.Stars)
	assert.Equal(t, 2, res.TotalStars)
	assert.Equal(t, "novice", res.Title)
}

func TestRequireSession(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Next(ctx, "alice")
	assert.ErrorIs(t, err, ErrUnknownStudent)
	_, err = f.svc.Submit(ctx, "alice", "add-1", true)
	assert.ErrorIs(t, err, ErrUnknownStudent)

	_, err = f.svc.Begin(ctx, "alice")
	require.NoError(t, err)

	_, err = f.svc.Next(ctx, "alice")
	assert.NoError(t, err)
	_, err = f.svc.Submit(ctx, "alice", "add-1", true)
	assert.NoError(t, err)
}

func TestExport_CSV(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, "alice", "add-1", true)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "alice", "cmp-2", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, "alice", &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ExportHeader, rows[0])
	assert.Equal(t, []string{"1", "alice", "addition", "true"}, rows[1][:4])
	assert.Equal(t, "0.100000", rows[1][4])
	assert.Equal(t, []string{"2", "alice", "comparison", "false"}, rows[2][:4])
}

func TestExport_EmptyLog(t *testing.T) {
	f := newFixture(t, false)
	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), "ghost", &buf))
	assert.Equal(t, strings.Join(ExportHeader, ",")+"\n", buf.String())
}

func TestSummary(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, a := range []struct {
		id      string
		correct bool
	}{
		{"cmp-2", true}, {"add-1", false}, {"add-1", true}, {"cmp-2", true},
	} {
		_, err := f.svc.Submit(ctx, "alice", a.id, a.correct)
		require.NoError(t, err)
	}

	sum, err := f.svc.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, sum.TotalQuestions)
	assert.Equal(t, 3, sum.TotalCorrect)
	assert.InDelta(t, 0.75, sum.Accuracy, 1e-12)
	require.Len(t, sum.KCResults, 2)
	assert.Equal(t, "comparison", sum.KCResults[0].KC)

	sorted := sum.SortedByKC()
	assert.Equal(t, "addition", sorted[0].KC)
	assert.InDelta(t, 0.5, sorted[0].Accuracy, 1e-12)
}

func TestBuildSummary_Empty(t *testing.T) {
	sum := BuildSummary(nil)
	assert.Zero(t, sum.TotalQuestions)
	assert.Zero(t, sum.Accuracy)
	assert.Empty(t, sum.KCResults)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "results_alice.csv", ExportFilename("alice"))
}
