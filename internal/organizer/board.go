package organizer

import (
	"errors"
	"fmt"

	"github.com/omjikush09/aggroso/internal/specs"
)

// ViewMode selects how the board is presented.
type ViewMode string

const (
	ViewFlat    ViewMode = "flat"
	ViewGrouped ViewMode = "grouped"
)

// ValidateViewMode checks that m is a known view mode.
func ValidateViewMode(m ViewMode) error {
	switch m {
	case ViewFlat, ViewGrouped:
		return nil
	default:
		return fmt.Errorf("invalid view mode %q: must be one of flat, grouped", m)
	}
}

// ErrReorderInGroupedView is returned by reorder operations while the board
// shows the grouped projection, which is read-only for ordering.
var ErrReorderInGroupedView = errors.New("reordering is only available in flat view")

// Board is the editable state of one task list: ordered tasks, a transient
// selection and the view mode. Board is not safe for concurrent use;
// Session serializes access.
type Board struct {
	tasks    []specs.Task
	selected map[string]bool
	view     ViewMode
	newID    specs.IDFunc
}

// NewBoard starts a flat board over a copy of tasks. A nil newID uses
// specs.NewID.
func NewBoard(tasks []specs.Task, newID specs.IDFunc) *Board {
	if newID == nil {
		newID = specs.NewID
	}
	return &Board{
		tasks:    specs.CloneTasks(tasks),
		selected: map[string]bool{},
		view:     ViewFlat,
		newID:    newID,
	}
}

// Tasks returns a copy of the current task list.
func (b *Board) Tasks() []specs.Task {
	out := specs.CloneTasks(b.tasks)
	if out == nil {
		out = []specs.Task{}
	}
	return out
}

// View returns the current view mode.
func (b *Board) View() ViewMode { return b.view }

// SetView switches between flat and grouped.
func (b *Board) SetView(m ViewMode) error {
	if err := ValidateViewMode(m); err != nil {
		return err
	}
	b.view = m
	return nil
}

// Selected returns the selected ids in list order.
func (b *Board) Selected() []string {
	sel := SelectedInOrder(b.tasks, b.selected)
	ids := make([]string, len(sel))
	for i, t := range sel {
		ids[i] = t.ID
	}
	return ids
}

// IsSelected reports whether id is selected.
func (b *Board) IsSelected(id string) bool { return b.selected[id] }

// Toggle adds or removes id from the selection. Unknown ids are ignored.
func (b *Board) Toggle(id string, selected bool) bool {
	if IndexOf(b.tasks, id) < 0 {
		return false
	}
	if selected == b.selected[id] {
		return false
	}
	if selected {
		b.selected[id] = true
	} else {
		delete(b.selected, id)
	}
	return true
}

// ClearSelection empties the selection.
func (b *Board) ClearSelection() { b.selected = map[string]bool{} }

// Reorder moves the task at index from to index to.
func (b *Board) Reorder(from, to int) (bool, error) {
	if b.view != ViewFlat {
		return false, ErrReorderInGroupedView
	}
	return b.apply(Reorder(b.tasks, from, to)), nil
}

// Move drops activeID onto overID's slot.
func (b *Board) Move(activeID, overID string) (bool, error) {
	if b.view != ViewFlat {
		return false, ErrReorderInGroupedView
	}
	return b.apply(Move(b.tasks, activeID, overID)), nil
}

// EditContent replaces one task's content. Blank input is a no-op.
func (b *Board) EditContent(id, content string) bool {
	return b.apply(EditContent(b.tasks, id, content))
}

// SetCompleted sets one task's completion flag.
func (b *Board) SetCompleted(id string, done bool) bool {
	return b.apply(SetCompleted(b.tasks, id, done))
}

// SuggestedGroupName is the group of the first selected task, or
// "planning" when that is blank or nothing is selected.
func (b *Board) SuggestedGroupName() string {
	sel := SelectedInOrder(b.tasks, b.selected)
	if len(sel) > 0 && sel[0].Group != "" {
		return sel[0].Group
	}
	return specs.GroupPlanning
}

// AssignGroup sets the normalized name on every selected task and clears
// the selection. It returns the applied name and whether the list changed.
// An empty selection does nothing.
func (b *Board) AssignGroup(name string) (string, bool) {
	if len(b.selected) == 0 {
		return "", false
	}
	group := NormalizeGroup(name)
	changed := b.apply(AssignGroup(b.tasks, b.selected, group))
	b.ClearSelection()
	return group, changed
}

// DefaultCombinedContent prefills the combine dialog.
func (b *Board) DefaultCombinedContent() string {
	return DefaultCombinedContent(b.tasks, b.selected)
}

// Combine merges the selected tasks. Fewer than two selected is a no-op
// that keeps the selection.
func (b *Board) Combine(content string) bool {
	if !b.apply(Combine(b.tasks, b.selected, content, b.newID)) {
		return false
	}
	b.ClearSelection()
	return true
}

// Add appends a new task.
func (b *Board) Add(content, group string) bool {
	return b.apply(Add(b.tasks, content, group, b.newID))
}

// Grouped returns the grouped projection of the current list.
func (b *Board) Grouped() []Group {
	return Grouped(b.tasks)
}

func (b *Board) apply(next []specs.Task, changed bool) bool {
	if !changed {
		return false
	}
	b.tasks = next
	return true
}
