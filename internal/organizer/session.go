package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/specs"
)

// Notification messages.
const (
	MsgSaveFailed    = "Failed to save task updates."
	MsgTasksCombined = "Tasks combined."
	MsgTaskAdded     = "Task added."
)

// MsgGroupAssigned formats the group assignment confirmation.
func MsgGroupAssigned(group string) string {
	return fmt.Sprintf("Assigned %s to selected tasks.", group)
}

// Level classifies a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message about an edit or its persistence.
type Notification struct {
	Level   Level
	Message string
	// Err is set on persistence failures.
	Err error
}

// Notifier receives notifications. Notify may be called from background
// goroutines.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// TaskWriter persists a whole task list for a spec.
type TaskWriter interface {
	ReplaceTasks(ctx context.Context, specID string, tasks []specs.Task) error
}

// Session owns the active spec and its Board. Every edit that changes the
// task list updates local state first, then writes the full list in the
// background. Failed writes are reported through the Notifier and never
// undo the local change. Writes are not retried; they are applied one at a
// time in the order the edits were made.
type Session struct {
	mu      sync.Mutex
	specID  string
	stories []specs.Story
	board   *Board

	writer   TaskWriter
	notifier Notifier
	logger   *slog.Logger
	newID    specs.IDFunc
	ctx      context.Context
	wg       sync.WaitGroup
	// lastWrite closes when the most recently queued write finishes.
	lastWrite chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNotifier sets where notifications go.
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTaskIDs overrides id generation for added and combined tasks.
func WithTaskIDs(fn specs.IDFunc) SessionOption {
	return func(s *Session) { s.newID = fn }
}

// WithContext sets the base context for background writes.
func WithContext(ctx context.Context) SessionOption {
	return func(s *Session) { s.ctx = ctx }
}

// NewSession creates an empty session writing through w.
func NewSession(w TaskWriter, opts ...SessionOption) *Session {
	s := &Session{
		writer:   w,
		notifier: NotifierFunc(func(Notification) {}),
		logger:   logging.Discard(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.board = NewBoard(nil, s.newID)
	return s
}

// Load makes spec the active one. Selection and view mode reset.
func (s *Session) Load(spec specs.Specification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specID = spec.ID
	s.stories = specs.CloneStories(spec.Output.Stories)
	s.board = NewBoard(spec.Output.Tasks, s.newID)
}

// SpecID returns the active spec id, or "" when none is loaded.
func (s *Session) SpecID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.specID
}

// Stories returns a copy of the active stories.
func (s *Session) Stories() []specs.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return specs.CloneStories(s.stories)
}

// Tasks returns a copy of the local task list.
func (s *Session) Tasks() []specs.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Tasks()
}

// Selected returns the selected task ids in list order.
func (s *Session) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Selected()
}

// View returns the current view mode.
func (s *Session) View() ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.View()
}

// SetView switches view mode.
func (s *Session) SetView(m ViewMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.SetView(m)
}

// Grouped returns the grouped projection.
func (s *Session) Grouped() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Grouped()
}

// Toggle changes selection membership. Selection is never persisted.
func (s *Session) Toggle(id string, selected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Toggle(id, selected)
}

// SuggestedGroupName prefills the group dialog.
func (s *Session) SuggestedGroupName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.SuggestedGroupName()
}

// DefaultCombinedContent prefills the combine dialog.
func (s *Session) DefaultCombinedContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.DefaultCombinedContent()
}

// Reorder moves the task at from to to.
func (s *Session) Reorder(from, to int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.board.Reorder(from, to)
	if changed {
		s.persistLocked()
	}
	return changed, err
}

// Move drops activeID onto overID.
func (s *Session) Move(activeID, overID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.board.Move(activeID, overID)
	if changed {
		s.persistLocked()
	}
	return changed, err
}

// EditContent replaces a task's content.
func (s *Session) EditContent(id, content string) bool {
	return s.mutate(func(b *Board) bool { return b.EditContent(id, content) }, "")
}

// SetCompleted sets a task's completion flag.
func (s *Session) SetCompleted(id string, done bool) bool {
	return s.mutate(func(b *Board) bool { return b.SetCompleted(id, done) }, "")
}

// Edit applies a content change and, when done is non-nil, a completion
// change to one task, then saves once.
func (s *Session) Edit(id, content string, done *bool) bool {
	return s.mutate(func(b *Board) bool {
		changed := b.EditContent(id, content)
		if done != nil && b.SetCompleted(id, *done) {
			changed = true
		}
		return changed
	}, "")
}

// AssignGroup groups the selection. The confirmation is sent whenever a
// selection existed, even if every task already had that group.
func (s *Session) AssignGroup(name string) bool {
	s.mu.Lock()
	if len(s.board.Selected()) == 0 {
		s.mu.Unlock()
		return false
	}
	group, changed := s.board.AssignGroup(name)
	if changed {
		s.persistLocked()
	}
	s.mu.Unlock()

	s.notifier.Notify(Notification{Level: LevelSuccess, Message: MsgGroupAssigned(group)})
	return changed
}

// Combine merges the selection.
func (s *Session) Combine(content string) bool {
	return s.mutate(func(b *Board) bool { return b.Combine(content) }, MsgTasksCombined)
}

// Add appends a task.
func (s *Session) Add(content, group string) bool {
	return s.mutate(func(b *Board) bool { return b.Add(content, group) }, MsgTaskAdded)
}

// Wait blocks until every background write has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) mutate(fn func(b *Board) bool, success string) bool {
	s.mu.Lock()
	changed := fn(s.board)
	if changed {
		s.persistLocked()
	}
	s.mu.Unlock()

	if changed && success != "" {
		s.notifier.Notify(Notification{Level: LevelSuccess, Message: success})
	}
	return changed
}

// persistLocked snapshots the task list and queues a background write
// behind the previous one. A session without a spec id has nothing to
// write to.
func (s *Session) persistLocked() {
	if s.specID == "" || s.writer == nil {
		return
	}
	specID := s.specID
	tasks := s.board.Tasks()
	prev, done := s.lastWrite, make(chan struct{})
	s.lastWrite = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		if err := s.writer.ReplaceTasks(s.ctx, specID, tasks); err != nil {
			s.logger.Error("persist tasks failed", "spec", specID, "error", err)
			s.notifier.Notify(Notification{Level: LevelError, Message: MsgSaveFailed, Err: err})
		}
	}()
}
