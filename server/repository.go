package server

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/existflow/learnportal/internal/model"
	"github.com/google/uuid"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrFeedbackNotFound = errors.New("feedback not found")
)

// User is an account as stored by the backend
type User struct {
	ID               uuid.UUID
	Email            string
	FirstName        string
	LastName         string
	PasswordHash     string // empty for Google-only accounts
	Confirmed        bool
	VerificationCode string
	CreatedAt        time.Time
}

// Repository persists accounts and feedback
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	CreateFeedback(ctx context.Context, fb *model.Feedback) error
	GetFeedback(ctx context.Context, id string) (*model.Feedback, error)
	ListFeedback(ctx context.Context) ([]model.Feedback, error)

	Close() error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryRepository keeps everything in process memory
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]User
	feedback map[string]model.Feedback
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]User),
		feedback: make(map[string]model.Feedback),
	}
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeEmail(u.Email)
	if _, ok := r.users[key]; ok {
		return ErrUserExists
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users[key] = *u
	return nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) UpdateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeEmail(u.Email)
	if _, ok := r.users[key]; !ok {
		return ErrUserNotFound
	}
	r.users[key] = *u
	return nil
}

func (r *MemoryRepository) CreateFeedback(_ context.Context, fb *model.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback[fb.ID] = *fb
	return nil
}

func (r *MemoryRepository) GetFeedback(_ context.Context, id string) (*model.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fb, ok := r.feedback[id]
	if !ok {
		return nil, ErrFeedbackNotFound
	}
	return &fb, nil
}

func (r *MemoryRepository) ListFeedback(_ context.Context) ([]model.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Feedback, 0, len(r.feedback))
	for _, fb := range r.feedback {
		out = append(out, fb)
	}
	// ksuid ids sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }
