// Package specs holds the domain model for generated project specifications:
// stories, tasks, the generation input, and the template generator that maps
// one to the other.
//
// Everything in this package is pure. Persistence lives in internal/store and
// orchestration in internal/service.
package specs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a specification id does not exist.
var ErrNotFound = errors.New("spec not found")

// --- Template enum ---

// Template selects the project flavour used in the setup task.
type Template string

const (
	TemplateWeb    Template = "web"
	TemplateMobile Template = "mobile"
	TemplateTool   Template = "tool"
)

// DefaultTemplate is used when the input omits a template.
const DefaultTemplate = TemplateWeb

var validTemplates = map[Template]bool{
	TemplateWeb:    true,
	TemplateMobile: true,
	TemplateTool:   true,
}

// ValidateTemplate returns an error if the template is not recognized.
// The empty template is valid and means DefaultTemplate.
func ValidateTemplate(t Template) error {
	if t == "" || validTemplates[t] {
		return nil
	}
	return fmt.Errorf("invalid template %q: must be one of: web, mobile, tool", t)
}

// --- Group names ---

const (
	// GroupUngrouped is the label for tasks whose group is blank.
	GroupUngrouped = "ungrouped"
	// GroupPlanning is the default group for hand-added tasks.
	GroupPlanning = "planning"
)

// --- Core data structures ---

// Story is a short "As a ... I want ..." statement.
type Story struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Task is an actionable item with a free-text group label.
type Task struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Group     string `json:"group"`
	Completed bool   `json:"completed"`
}

// Input is what the user submitted for a generation.
// Constraints is nil when the user left it blank.
type Input struct {
	Goal        string   `json:"goal"`
	Users       string   `json:"users"`
	Constraints *string  `json:"constraints"`
	Template    Template `json:"template"`
}

// Output is the ordered stories and tasks of a specification.
type Output struct {
	Stories []Story `json:"stories"`
	Tasks   []Task  `json:"tasks"`
}

// Specification is one persisted generation session.
// Slice order is display order; it must round-trip through storage unchanged.
type Specification struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Input     Input     `json:"input"`
	Output    Output    `json:"output"`
}

// GenerateInput is a validated, trimmed generate request.
// Empty Users/Constraints mean "not provided".
type GenerateInput struct {
	Goal        string   `json:"goal"`
	Users       string   `json:"users,omitempty"`
	Constraints string   `json:"constraints,omitempty"`
	Template    Template `json:"template,omitempty"`
}

// UpdatePayload replaces whole collections of a specification.
// A nil slice leaves the collection untouched; an empty non-nil slice clears it.
type UpdatePayload struct {
	Tasks   []Task  `json:"tasks,omitempty"`
	Stories []Story `json:"stories,omitempty"`
}

// IsEmpty reports whether neither collection is present.
func (p UpdatePayload) IsEmpty() bool {
	return p.Tasks == nil && p.Stories == nil
}

// MarshalJSON keeps an empty non-nil collection on the wire as [] so the
// server clears it, and drops nil collections entirely.
func (p UpdatePayload) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, 2)
	if p.Tasks != nil {
		body["tasks"] = p.Tasks
	}
	if p.Stories != nil {
		body["stories"] = p.Stories
	}
	return json.Marshal(body)
}

// CloneTasks returns a copy of tasks that shares no backing array.
// A nil input stays nil.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// CloneStories returns a copy of stories that shares no backing array.
func CloneStories(stories []Story) []Story {
	if stories == nil {
		return nil
	}
	out := make([]Story, len(stories))
	copy(out, stories)
	return out
}
