package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/existflow/learnportal/internal/logger"
	"github.com/existflow/learnportal/internal/model"
)

// ErrLessonNotFound matches a LessonNotFoundError
var ErrLessonNotFound = errors.New("lesson not found")

// LessonNotFoundError is returned when no track has the requested lesson
type LessonNotFoundError struct {
	ID  string
	Err error // last lookup failure
}

func (e *LessonNotFoundError) Error() string {
	return fmt.Sprintf("lesson %s not found", e.ID)
}

func (e *LessonNotFoundError) Is(target error) bool { return target == ErrLessonNotFound }

func (e *LessonNotFoundError) Unwrap() error { return e.Err }

func trackPath(track model.Track) string {
	if track == model.TrackCore {
		return "/lessons"
	}
	return "/lessons/" + string(track)
}

// ListLessons returns the lessons of a track
func (c *Client) ListLessons(ctx context.Context, track model.Track) ([]model.Lesson, error) {
	var lessons []model.Lesson
	if err := c.do(ctx, http.MethodGet, trackPath(track), nil, &lessons); err != nil {
		return nil, err
	}
	for i := range lessons {
		lessons[i].Track = track
	}
	return lessons, nil
}

// GetLesson returns one lesson of a track
func (c *Client) GetLesson(ctx context.Context, track model.Track, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := c.do(ctx, http.MethodGet, trackPath(track)+"/"+url.PathEscape(id), nil, &lesson); err != nil {
		return nil, err
	}
	lesson.Track = track
	return &lesson, nil
}

// GetLessonAnyTrack looks the id up in the core track, then in the
// ASP.NET Core track. Both failing yields a LessonNotFoundError.
func (c *Client) GetLessonAnyTrack(ctx context.Context, id string) (*model.Lesson, error) {
	lesson, err := c.GetLesson(ctx, model.TrackCore, id)
	if err == nil {
		return lesson, nil
	}
	logger.Debug("Primary lesson lookup failed, trying fallback", logger.F("id", id), logger.Err(err))

	lesson, err = c.GetLesson(ctx, model.TrackASPNETCore, id)
	if err == nil {
		return lesson, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &LessonNotFoundError{ID: id, Err: err}
}
