package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/existflow/learnportal/internal/model"
	"github.com/existflow/learnportal/internal/progress"
	"github.com/existflow/learnportal/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTracker(t *testing.T) (*progress.Tracker, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	clock := &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return progress.New(st, progress.DefaultTotalTopics, progress.WithClock(clock.now)), st
}

func TestMarkLessonCompleteIsIdempotent(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	tr.Observe(ctx, &model.User{Email: "a@x.com"})

	require.NoError(t, tr.MarkLessonComplete(ctx, "5"))
	first := tr.Snapshot()
	require.NoError(t, tr.MarkLessonComplete(ctx, "5"))
	second := tr.Snapshot()

	assert.Equal(t, first.Lessons(), second.Lessons())
	assert.Equal(t, []string{"5"}, second.Lessons())
	require.NotNil(t, first.LastActivity)
	require.NotNil(t, second.LastActivity)
	assert.True(t, second.LastActivity.After(*first.LastActivity))
}

func TestCompletionPercentage(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	assert.Equal(t, 0, tr.CompletionPercentage())

	for _, id := range []string{"oop", "linq", "async"} {
		require.NoError(t, tr.MarkTopicComplete(ctx, id))
	}
	assert.Equal(t, 50, tr.CompletionPercentage())

	require.NoError(t, tr.MarkTopicComplete(ctx, "collections"))
	assert.Equal(t, 67, tr.CompletionPercentage())
}

func TestCompletionPercentageIsNotClamped(t *testing.T) {
	tr := progress.New(store.NewMemory(), 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, tr.MarkTopicComplete(ctx, id))
	}
	assert.Equal(t, 150, tr.CompletionPercentage())
}

func TestSnapshotsAreIsolatedPerUser(t *testing.T) {
	tr, st := newTracker(t)
	ctx := context.Background()
	alice := &model.User{Email: "a@x.com"}
	bob := &model.User{Email: "b@x.com"}

	tr.Observe(ctx, alice)
	require.NoError(t, tr.MarkLessonComplete(ctx, "5"))

	tr.Observe(ctx, nil)
	assert.False(t, tr.IsLessonComplete("5"))
	assert.Empty(t, tr.Email())
	_, ok, err := st.Get(ctx, store.ProgressKey("a@x.com"))
	require.NoError(t, err)
	assert.True(t, ok, "logout must not delete stored progress")

	tr.Observe(ctx, bob)
	assert.False(t, tr.IsLessonComplete("5"))

	tr.Observe(ctx, nil)
	tr.Observe(ctx, alice)
	assert.True(t, tr.IsLessonComplete("5"))
}

func TestPersistedFormAndRevival(t *testing.T) {
	tr, st := newTracker(t)
	ctx := context.Background()
	tr.Observe(ctx, &model.User{Email: "a@x.com"})

	require.NoError(t, tr.MarkTopicComplete(ctx, "oop"))
	require.NoError(t, tr.MarkLessonComplete(ctx, "2"))
	require.NoError(t, tr.MarkLessonComplete(ctx, "1"))
	require.NoError(t, tr.AddTimeSpent(ctx, 25))

	raw, ok, err := st.Get(ctx, store.ProgressKey("a@x.com"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"completedLessons": ["1", "2"],
		"completedTopics": ["oop"],
		"totalTimeSpent": 25,
		"lastActivity": "2026-03-01T09:00:04Z"
	}`, raw)

	fresh := progress.New(st, progress.DefaultTotalTopics)
	fresh.Observe(ctx, &model.User{Email: "a@x.com"})
	snap := fresh.Snapshot()
	assert.Equal(t, 25, snap.TotalTimeSpent)
	require.NotNil(t, snap.LastActivity)
	assert.True(t, snap.LastActivity.Equal(time.Date(2026, 3, 1, 9, 0, 4, 0, time.UTC)))
	assert.True(t, fresh.IsTopicComplete("oop"))
}

func TestAddTimeSpentRejectsNegative(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	assert.ErrorIs(t, tr.AddTimeSpent(ctx, -1), progress.ErrNegativeTime)
	require.NoError(t, tr.AddTimeSpent(ctx, 0))
	assert.Equal(t, 0, tr.Snapshot().TotalTimeSpent)
}

func TestMutationsWithoutUserStayInMemory(t *testing.T) {
	tr, st := newTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.MarkLessonComplete(ctx, "1"))
	assert.True(t, tr.IsLessonComplete("1"))

	keys, err := st.Keys(ctx, store.ProgressPrefix())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCorruptSnapshotLoadsEmpty(t *testing.T) {
	tr, st := newTracker(t)
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.ProgressKey("a@x.com"), "{broken"))

	tr.Observe(ctx, &model.User{Email: "a@x.com"})
	assert.Equal(t, "a@x.com", tr.Email())
	assert.Empty(t, tr.Snapshot().CompletedLessons)
}

// failingStore rejects writes while broken is set
type failingStore struct {
	*store.Memory
	broken bool
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.broken {
		return errors.New("disk full")
	}
	return s.Memory.Set(ctx, key, value)
}

func TestFailedSaveLeavesSnapshotUnchanged(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{Memory: store.NewMemory()}
	tr := progress.New(st, progress.DefaultTotalTopics)
	tr.Observe(ctx, &model.User{Email: "a@x.com"})

	require.NoError(t, tr.MarkTopicComplete(ctx, "linq"))
	before := tr.Snapshot()

	st.broken = true
	assert.Error(t, tr.MarkLessonComplete(ctx, "5"))
	assert.Error(t, tr.MarkTopicComplete(ctx, "oop"))
	assert.Error(t, tr.AddTimeSpent(ctx, 30))

	after := tr.Snapshot()
	assert.False(t, tr.IsLessonComplete("5"))
	assert.False(t, tr.IsTopicComplete("oop"))
	assert.Equal(t, before.TotalTimeSpent, after.TotalTimeSpent)
	assert.Equal(t, before.LastActivity, after.LastActivity)
	assert.Equal(t, 17, tr.CompletionPercentage())

	st.broken = false
	require.NoError(t, tr.MarkLessonComplete(ctx, "5"))
	raw, ok, err := st.Get(ctx, store.ProgressKey("a@x.com"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"completedLessons":["5"]`)
	assert.Contains(t, raw, `"completedTopics":["linq"]`)
}
