package specs

import (
	"fmt"
	"strings"
)

// Task groups produced by the generator.
const (
	GroupSetup      = "setup"
	GroupBackend    = "backend"
	GroupFrontend   = "frontend"
	GroupCompliance = "compliance"
)

// Generate maps a generation input to its fixed set of stories and tasks.
//
// It always yields two stories and three baseline tasks (setup, backend,
// frontend), plus a compliance task when constraints are non-blank. The only
// non-determinism is whatever newID returns; a nil newID uses NewID.
func Generate(in GenerateInput, newID IDFunc) Output {
	if newID == nil {
		newID = NewID
	}

	goal := strings.TrimSpace(in.Goal)
	users := strings.TrimSpace(in.Users)
	constraints := strings.TrimSpace(in.Constraints)
	template := in.Template
	if template == "" {
		template = DefaultTemplate
	}

	persona := users
	if persona == "" {
		persona = "user"
	}
	audience := users
	if audience == "" {
		audience = "users"
	}

	stories := []Story{
		{
			ID:      newID(StoryIDPrefix),
			Content: fmt.Sprintf("As a %s, I want to achieve %s so that I can be productive.", persona, goal),
		},
		{
			ID:      newID(StoryIDPrefix),
			Content: fmt.Sprintf("As an admin, I want to manage %s configurations.", goal),
		},
	}

	tasks := []Task{
		{
			ID:      newID(TaskIDPrefix),
			Content: fmt.Sprintf("Setup project repository for %s app", template),
			Group:   GroupSetup,
		},
		{
			ID:      newID(TaskIDPrefix),
			Content: fmt.Sprintf("Implement authentication for %s", audience),
			Group:   GroupBackend,
		},
		{
			ID:      newID(TaskIDPrefix),
			Content: fmt.Sprintf("Create UI for %s", goal),
			Group:   GroupFrontend,
		},
	}

	if constraints != "" {
		tasks = append(tasks, Task{
			ID:      newID(TaskIDPrefix),
			Content: fmt.Sprintf("Ensure compliance with: %s", constraints),
			Group:   GroupCompliance,
		})
	}

	return Output{Stories: stories, Tasks: tasks}
}

// InputFor builds the persisted Input record for a generate request:
// blank users become "", blank constraints become nil, and the template
// falls back to DefaultTemplate.
func InputFor(in GenerateInput) Input {
	template := in.Template
	if template == "" {
		template = DefaultTemplate
	}
	var constraints *string
	if c := strings.TrimSpace(in.Constraints); c != "" {
		constraints = &c
	}
	return Input{
		Goal:        strings.TrimSpace(in.Goal),
		Users:       strings.TrimSpace(in.Users),
		Constraints: constraints,
		Template:    template,
	}
}
