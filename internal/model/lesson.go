package model

// Track identifies a lesson collection on the backend
type Track string

const (
	TrackCore       Track = ""
	TrackASPNETCore Track = "aspnetcore"
)

// Lesson is a single tutorial page
type Lesson struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Track       Track  `json:"-"`
}

// Topic is one of the top-level curriculum sections counted by progress
type Topic struct {
	ID    string
	Title string
}

// Curriculum lists the top-level topics in display order
var Curriculum = []Topic{
	{ID: "csharp-basics", Title: "C# Basics"},
	{ID: "oop", Title: "Object-Oriented Programming"},
	{ID: "collections", Title: "Collections & Generics"},
	{ID: "linq", Title: "LINQ"},
	{ID: "async", Title: "Async & Await"},
	{ID: "aspnetcore", Title: "ASP.NET Core"},
}

// FindTopic returns the curriculum topic with the given id
func FindTopic(id string) (Topic, bool) {
	for _, t := range Curriculum {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}
