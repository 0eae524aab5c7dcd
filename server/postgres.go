package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/learnportal/internal/model"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository stores accounts and feedback in PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository connects to dbURL and runs migrations
func NewPostgresRepository(ctx context.Context, dbURL string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	r := &PostgresRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return r, nil
}

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

func (r *PostgresRepository) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = normalizeEmail(u.Email)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, password_hash, confirmed, verification_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Confirmed, u.VerificationCode, u.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrUserExists
	}
	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, password_hash, confirmed, verification_code, created_at
		FROM users WHERE email = $1`,
		normalizeEmail(email),
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Confirmed, &u.VerificationCode, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) UpdateUser(ctx context.Context, u *User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, password_hash = $4, confirmed = $5, verification_code = $6
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.PasswordHash, u.Confirmed, u.VerificationCode,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateFeedback(ctx context.Context, fb *model.Feedback) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback (id, message, user_id, user_email, page_context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.Message, fb.UserID, fb.UserEmail, fb.PageContext, fb.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) GetFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	var fb model.Feedback
	err := r.db.QueryRowContext(ctx, `
		SELECT id, message, user_id, user_email, page_context, created_at
		FROM feedback WHERE id = $1`, id,
	).Scan(&fb.ID, &fb.Message, &fb.UserID, &fb.UserEmail, &fb.PageContext, &fb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

func (r *PostgresRepository) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message, user_id, user_email, page_context, created_at
		FROM feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Feedback
	for rows.Next() {
		var fb model.Feedback
		if err := rows.Scan(&fb.ID, &fb.Message, &fb.UserID, &fb.UserEmail, &fb.PageContext, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
