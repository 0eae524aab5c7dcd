// Package progress tracks lesson and topic completion for the logged in user.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
	"github.com/existflow/learnportal/internal/store"
)

// DefaultTotalTopics is the number of top-level curriculum topics
const DefaultTotalTopics = 6

// ErrNegativeTime is returned by AddTimeSpent for negative minutes
var ErrNegativeTime = errors.New("minutes must not be negative")

// Tracker holds the active user's progress snapshot and persists every
// mutation under store.ProgressKey(email).
type Tracker struct {
	store       store.Store
	totalTopics int
	now         func() time.Time

	// writeMu serializes mutations so each one starts from the last saved snapshot
	writeMu sync.Mutex

	mu       sync.RWMutex
	email    string
	progress model.Progress
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New creates a tracker with an empty snapshot and no active user
func New(st store.Store, totalTopics int, opts ...Option) *Tracker {
	t := &Tracker{
		store:       st,
		totalTopics: totalTopics,
		now:         time.Now,
		progress:    model.NewProgress(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe switches the tracker to user's snapshot, or resets it when user is
// nil. Stored data of the previous user is left untouched.
func (t *Tracker) Observe(ctx context.Context, user *model.User) {
	if user == nil {
		t.mu.Lock()
		t.email = ""
		t.progress = model.NewProgress()
		t.mu.Unlock()
		logger.Debug("Progress reset")
		return
	}

	p, err := t.load(ctx, user.Email)
	if err != nil {
		logger.Warn("Failed to load progress, starting empty",
			logger.F("email", user.Email), logger.Err(err))
		p = model.NewProgress()
	}

	t.mu.Lock()
	t.email = user.Email
	t.progress = p
	t.mu.Unlock()
	logger.Debug("Progress loaded", logger.F("email", user.Email),
		logger.F("lessons", len(p.CompletedLessons)), logger.F("topics", len(p.CompletedTopics)))
}

func (t *Tracker) load(ctx context.Context, email string) (model.Progress, error) {
	raw, ok, err := t.store.Get(ctx, store.ProgressKey(email))
	if err != nil {
		return model.Progress{}, err
	}
	if !ok {
		return model.NewProgress(), nil
	}
	var p model.Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.Progress{}, fmt.Errorf("corrupt progress snapshot: %w", err)
	}
	return p, nil
}

// MarkLessonComplete adds id to the completed lessons
func (t *Tracker) MarkLessonComplete(ctx context.Context, id string) error {
	return t.mutate(ctx, func(p *model.Progress) {
		p.CompletedLessons[id] = struct{}{}
	})
}

// MarkTopicComplete adds id to the completed topics
func (t *Tracker) MarkTopicComplete(ctx context.Context, id string) error {
	return t.mutate(ctx, func(p *model.Progress) {
		p.CompletedTopics[id] = struct{}{}
	})
}

// AddTimeSpent adds minutes of study time
func (t *Tracker) AddTimeSpent(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return ErrNegativeTime
	}
	return t.mutate(ctx, func(p *model.Progress) {
		p.TotalTimeSpent += minutes
	})
}

// mutate applies fn to a copy of the snapshot, refreshes lastActivity and
// persists it. The copy replaces the in-memory snapshot only once the store
// accepted it. Without an active user the change stays in memory.
func (t *Tracker) mutate(ctx context.Context, fn func(p *model.Progress)) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.RLock()
	next := t.progress.Clone()
	email := t.email
	t.mu.RUnlock()

	fn(&next)
	now := t.now()
	next.LastActivity = &now

	if email != "" {
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode progress: %w", err)
		}
		if err := t.store.Set(ctx, store.ProgressKey(email), string(data)); err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// the user may have changed while the snapshot was being written
	if t.email == email {
		t.progress = next
	}
	return nil
}

// CompletionPercentage is round(100 * completed topics / total topics). It is
// not clamped, so it exceeds 100 if more topics than the total are marked.
func (t *Tracker) CompletionPercentage() int {
	if t.totalTopics <= 0 {
		return 0
	}
	t.mu.RLock()
	n := len(t.progress.CompletedTopics)
	t.mu.RUnlock()
	return int(math.Round(100 * float64(n) / float64(t.totalTopics)))
}

// TotalTopics returns the configured topic count
func (t *Tracker) TotalTopics() int { return t.totalTopics }

// IsLessonComplete reports whether lesson id is complete
func (t *Tracker) IsLessonComplete(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.progress.CompletedLessons[id]
	return ok
}

// IsTopicComplete reports whether topic id is complete
func (t *Tracker) IsTopicComplete(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.progress.CompletedTopics[id]
	return ok
}

// Snapshot returns a deep copy of the current progress
func (t *Tracker) Snapshot() model.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.Clone()
}

// Email returns the active user's email, empty when logged out
func (t *Tracker) Email() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.email
}

// Stored returns the persisted snapshot of any user without switching to it
func (t *Tracker) Stored(ctx context.Context, email string) (model.Progress, error) {
	return t.load(ctx, email)
}
