package server

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/existflow/learnportal/internal/model"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

//go:embed curriculum.yaml
var curriculumYAML []byte

// Curriculum holds the lessons of both tracks
type Curriculum struct {
	Core       []model.Lesson `yaml:"core"`
	ASPNETCore []model.Lesson `yaml:"aspnetcore"`
}

// LoadCurriculum parses the embedded lesson catalogue
func LoadCurriculum() (*Curriculum, error) {
	var c Curriculum
	if err := yaml.Unmarshal(curriculumYAML, &c); err != nil {
		return nil, err
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Curriculum) check() error {
	for name, lessons := range map[string][]model.Lesson{"core": c.Core, "aspnetcore": c.ASPNETCore} {
		seen := make(map[string]bool, len(lessons))
		for _, l := range lessons {
			if l.ID == "" {
				return fmt.Errorf("%s: lesson without id", name)
			}
			if seen[l.ID] {
				return fmt.Errorf("%s: duplicate lesson id %q", name, l.ID)
			}
			seen[l.ID] = true
		}
	}
	return nil
}

func findLesson(lessons []model.Lesson, id string) (model.Lesson, bool) {
	for _, l := range lessons {
		if l.ID == id {
			return l, true
		}
	}
	return model.Lesson{}, false
}

func (s *Server) handleListLessons(c echo.Context) error {
	return c.JSON(http.StatusOK, s.lessons.Core)
}

func (s *Server) handleListASPNETLessons(c echo.Context) error {
	return c.JSON(http.StatusOK, s.lessons.ASPNETCore)
}

func (s *Server) handleGetLesson(c echo.Context) error {
	return lessonResponse(c, s.lessons.Core)
}

func (s *Server) handleGetASPNETLesson(c echo.Context) error {
	return lessonResponse(c, s.lessons.ASPNETCore)
}

func lessonResponse(c echo.Context, lessons []model.Lesson) error {
	l, ok := findLesson(lessons, c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "lesson not found"})
	}
	return c.JSON(http.StatusOK, l)
}
