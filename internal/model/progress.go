package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Progress is one user's learning state. Lessons and topics are sets.
type Progress struct {
	CompletedLessons map[string]struct{}
	CompletedTopics  map[string]struct{}
	TotalTimeSpent   int // minutes
	LastActivity     *time.Time
}

// NewProgress returns the empty snapshot
func NewProgress() Progress {
	return Progress{
		CompletedLessons: make(map[string]struct{}),
		CompletedTopics:  make(map[string]struct{}),
	}
}

// Clone returns a deep copy
func (p Progress) Clone() Progress {
	c := NewProgress()
	for id := range p.CompletedLessons {
		c.CompletedLessons[id] = struct{}{}
	}
	for id := range p.CompletedTopics {
		c.CompletedTopics[id] = struct{}{}
	}
	c.TotalTimeSpent = p.TotalTimeSpent
	if p.LastActivity != nil {
		t := *p.LastActivity
		c.LastActivity = &t
	}
	return c
}

// Lessons returns completed lesson ids sorted
func (p Progress) Lessons() []string { return sortedKeys(p.CompletedLessons) }

// Topics returns completed topic ids sorted
func (p Progress) Topics() []string { return sortedKeys(p.CompletedTopics) }

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type progressJSON struct {
	CompletedLessons []string   `json:"completedLessons"`
	CompletedTopics  []string   `json:"completedTopics"`
	TotalTimeSpent   int        `json:"totalTimeSpent"`
	LastActivity     *time.Time `json:"lastActivity"`
}

// MarshalJSON writes the sets as sorted arrays and lastActivity as RFC 3339 or null
func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		CompletedLessons: p.Lessons(),
		CompletedTopics:  p.Topics(),
		TotalTimeSpent:   p.TotalTimeSpent,
		LastActivity:     p.LastActivity,
	})
}

// UnmarshalJSON revives the sets and the lastActivity timestamp
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw progressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewProgress()
	for _, id := range raw.CompletedLessons {
		p.CompletedLessons[id] = struct{}{}
	}
	for _, id := range raw.CompletedTopics {
		p.CompletedTopics[id] = struct{}{}
	}
	p.TotalTimeSpent = raw.TotalTimeSpent
	p.LastActivity = raw.LastActivity
	return nil
}
