package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCodeStoreRedeemsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCodeStore()

	require.NoError(t, s.Put(ctx, "code:1", "a@x.com", time.Minute))

	v, err := s.Redeem(ctx, "code:1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", v)

	_, err = s.Redeem(ctx, "code:1")
	assert.True(t, errors.Is(err, ErrCodeNotFound))
}

func TestMemoryCodeStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCodeStore()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "state:x", "http://127.0.0.1:8089/", time.Minute))
	now = now.Add(2 * time.Minute)

	_, err := s.Redeem(ctx, "state:x")
	assert.True(t, errors.Is(err, ErrCodeNotFound))
}

func TestCurriculumLoads(t *testing.T) {
	c, err := LoadCurriculum()
	require.NoError(t, err)

	l, ok := findLesson(c.Core, "5")
	require.True(t, ok)
	assert.Equal(t, "Inheritance and Interfaces", l.Title)

	_, ok = findLesson(c.ASPNETCore, "middleware")
	assert.True(t, ok)
}
