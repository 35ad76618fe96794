package repo

import "time"

// Project status vocabulary.
const (
	ProjectInProgress = "In Progress"
	ProjectCompleted  = "Completed"
)

// Task status vocabulary.
const (
	TaskPending    = "pending"
	TaskInProgress = "inprogress"
	TaskCompleted  = "completed"
)

// Task priority vocabulary.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Gallery entry types.
const (
	GalleryManual  = "manual"
	GalleryTask    = "task"
	GalleryProject = "project"
)

// ProjectTypes is the allowed project type vocabulary.
var ProjectTypes = map[string]struct{}{
	"Web": {}, "Mobile": {}, "Desktop": {}, "Game": {}, "IoT": {}, "AI": {},
}

type Subproject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type Project struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Type        string       `json:"type"`
	Tech        string       `json:"tech"`
	Status      string       `json:"status"`
	Subprojects []Subproject `json:"subprojects"`
	Deadline    string       `json:"deadline"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Progress derives completion percent from subprojects, or falls back to
// the project's own status when there are none. Never stored.
func (p Project) Progress() int {
	if len(p.Subprojects) == 0 {
		if p.Status == ProjectCompleted {
			return 100
		}
		return 0
	}
	done := 0
	for _, sp := range p.Subprojects {
		if sp.Status == ProjectCompleted {
			done++
		}
	}
	return done * 100 / len(p.Subprojects)
}

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    string    `json:"deadline"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	ProjectID   string    `json:"projectId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GalleryEntry is one documentation record. Image holds either an inline
// data URI or an "obj:<id>" reference into the image store. RefID may
// point at a task or project that has since been deleted; dangling
// references are tolerated.
type GalleryEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	RefID       string    `json:"refId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Settings struct {
	Theme        string `json:"theme"`
	AccentColor  string `json:"accentColor"`
	CustomAccent string `json:"customAccent"`
	Font         string `json:"font"`
	FontSize     int    `json:"fontSize"`
}

// DefaultSettings is what a scope sees before it ever saves.
func DefaultSettings() Settings {
	return Settings{
		Theme:        "system",
		AccentColor:  "blue",
		CustomAccent: "",
		Font:         "inter",
		FontSize:     14,
	}
}

type SocialLinks struct {
	GitHub    string `json:"github"`
	Instagram string `json:"instagram"`
	LinkedIn  string `json:"linkedin"`
}

type ProfileStats struct {
	TotalTasks int `json:"totalTasks"`
	Completed  int `json:"completed"`
	Streak     int `json:"streak"`
}

type Profile struct {
	Username string       `json:"username"`
	Name     string       `json:"name"`
	Handle   string       `json:"handle"`
	Bio      string       `json:"bio"`
	Email    string       `json:"email"`
	Avatar   string       `json:"avatar"`
	Cover    string       `json:"cover"`
	Theme    string       `json:"theme"`
	Accent   string       `json:"accent"`
	Joined   time.Time    `json:"joined"`
	Level    int          `json:"level"`
	XP       int          `json:"xp"`
	Social   SocialLinks  `json:"social"`
	Stats    ProfileStats `json:"stats"`
}

// DefaultProfile seeds a fresh profile for a user that has never saved one.
func DefaultProfile() Profile {
	return Profile{
		Theme:  "system",
		Accent: "blue",
		Joined: time.Now().UTC(),
		Level:  1,
	}
}
