// Package organizer holds the task list editing logic: reorder, edit,
// select, group, combine and add.
//
// The functions in this file are pure transitions. They take a task list
// and return a new one, never modifying the input's backing array. Board
// layers selection and view mode on top; Session adds background
// persistence.
package organizer

import (
	"sort"
	"strings"

	"github.com/omjikush09/aggroso/internal/specs"
)

// CombineSeparator joins task contents in the default combined content.
const CombineSeparator = " + "

// IndexOf returns the index of the task with id, or -1.
func IndexOf(tasks []specs.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Reorder moves the task at from to index to, shifting the tasks between
// them by one. Out-of-range or equal indices return the input unchanged.
func Reorder(tasks []specs.Task, from, to int) ([]specs.Task, bool) {
	n := len(tasks)
	if from == to || from < 0 || to < 0 || from >= n || to >= n {
		return tasks, false
	}

	out := make([]specs.Task, 0, n)
	moved := tasks[from]
	for i, t := range tasks {
		if i == from {
			continue
		}
		if i == to && to < from {
			out = append(out, moved)
		}
		out = append(out, t)
		if i == to && to > from {
			out = append(out, moved)
		}
	}
	return out, true
}

// Move is Reorder addressed by ids: the dragged task takes the slot of the
// task it was dropped on.
func Move(tasks []specs.Task, activeID, overID string) ([]specs.Task, bool) {
	if activeID == overID {
		return tasks, false
	}
	return Reorder(tasks, IndexOf(tasks, activeID), IndexOf(tasks, overID))
}

// EditContent replaces one task's content with the trimmed value. A blank
// value keeps the prior content.
func EditContent(tasks []specs.Task, id, content string) ([]specs.Task, bool) {
	value := strings.TrimSpace(content)
	idx := IndexOf(tasks, id)
	if value == "" || idx < 0 || tasks[idx].Content == value {
		return tasks, false
	}
	out := specs.CloneTasks(tasks)
	out[idx].Content = value
	return out, true
}

// SetCompleted sets the completion flag of one task.
func SetCompleted(tasks []specs.Task, id string, done bool) ([]specs.Task, bool) {
	idx := IndexOf(tasks, id)
	if idx < 0 || tasks[idx].Completed == done {
		return tasks, false
	}
	out := specs.CloneTasks(tasks)
	out[idx].Completed = done
	return out, true
}

// NormalizeGroup trims name and maps blank to "ungrouped".
func NormalizeGroup(name string) string {
	if g := strings.TrimSpace(name); g != "" {
		return g
	}
	return specs.GroupUngrouped
}

// AssignGroup sets the group of every selected task. Other tasks are
// copied unchanged.
func AssignGroup(tasks []specs.Task, selected map[string]bool, name string) ([]specs.Task, bool) {
	if len(selected) == 0 {
		return tasks, false
	}
	group := NormalizeGroup(name)
	out := specs.CloneTasks(tasks)
	changed := false
	for i := range out {
		if selected[out[i].ID] && out[i].Group != group {
			out[i].Group = group
			changed = true
		}
	}
	if !changed {
		return tasks, false
	}
	return out, true
}

// SelectedInOrder returns the selected tasks in list order.
func SelectedInOrder(tasks []specs.Task, selected map[string]bool) []specs.Task {
	var out []specs.Task
	for _, t := range tasks {
		if selected[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// DefaultCombinedContent joins the selected contents in list order.
func DefaultCombinedContent(tasks []specs.Task, selected map[string]bool) string {
	sel := SelectedInOrder(tasks, selected)
	parts := make([]string, len(sel))
	for i, t := range sel {
		parts[i] = t.Content
	}
	return strings.Join(parts, CombineSeparator)
}

// Combine merges two or more selected tasks into one. The merged task takes
// the slot of the first selected task in list order and inherits its group
// and completion flag; the other selected tasks are dropped. A blank
// content uses DefaultCombinedContent.
func Combine(tasks []specs.Task, selected map[string]bool, content string, newID specs.IDFunc) ([]specs.Task, bool) {
	sel := SelectedInOrder(tasks, selected)
	if len(sel) < 2 {
		return tasks, false
	}

	value := strings.TrimSpace(content)
	if value == "" {
		value = DefaultCombinedContent(tasks, selected)
	}
	if newID == nil {
		newID = specs.NewID
	}

	first := sel[0]
	merged := specs.Task{
		ID:        newID(specs.TaskIDPrefix),
		Content:   value,
		Group:     first.Group,
		Completed: first.Completed,
	}

	out := make([]specs.Task, 0, len(tasks)-len(sel)+1)
	inserted := false
	for _, t := range tasks {
		if !selected[t.ID] {
			out = append(out, t)
			continue
		}
		if !inserted {
			out = append(out, merged)
			inserted = true
		}
	}
	return out, true
}

// Add appends a new incomplete task. Blank content is rejected; a blank
// group becomes "planning".
func Add(tasks []specs.Task, content, group string, newID specs.IDFunc) ([]specs.Task, bool) {
	value := strings.TrimSpace(content)
	if value == "" {
		return tasks, false
	}
	g := strings.TrimSpace(group)
	if g == "" {
		g = specs.GroupPlanning
	}
	if newID == nil {
		newID = specs.NewID
	}

	out := make([]specs.Task, len(tasks), len(tasks)+1)
	copy(out, tasks)
	out = append(out, specs.Task{ID: newID(specs.TaskIDPrefix), Content: value, Group: g})
	return out, true
}

// Group is one partition of the grouped projection.
type Group struct {
	Name  string       `json:"name"`
	Tasks []specs.Task `json:"tasks"`
}

// Grouped partitions tasks by normalized group name. Groups are sorted by
// name; tasks keep list order within a group.
func Grouped(tasks []specs.Task) []Group {
	index := map[string]int{}
	var groups []Group
	for _, t := range tasks {
		name := NormalizeGroup(t.Group)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
