package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/omjikush09/aggroso/internal/logging"
	"github.com/omjikush09/aggroso/internal/organizer"
	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/validate"
)

// taskRunner loads a spec into a fresh organizer.Session, applies one edit,
// and waits for the background write so the tool can report its outcome.
type taskRunner struct {
	svc       SpecService
	validator *validate.Validator
	logger    *slog.Logger
	newID     specs.IDFunc
}

// TaskOption configures the task tools.
type TaskOption func(*taskRunner)

// WithTaskLogger sets the logger used by sessions.
func WithTaskLogger(l *slog.Logger) TaskOption {
	return func(r *taskRunner) { r.logger = l }
}

// WithTaskIDFunc overrides id generation for added and combined tasks.
func WithTaskIDFunc(fn specs.IDFunc) TaskOption {
	return func(r *taskRunner) { r.newID = fn }
}

func newTaskRunner(svc SpecService, v *validate.Validator, opts []TaskOption) taskRunner {
	r := taskRunner{svc: svc, validator: v, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// edit applies one change to sess. A non-nil error is reported to the caller
// as a tool error.
type edit func(sess *organizer.Session) (bool, error)

func (r taskRunner) run(ctx context.Context, req mcp.CallToolRequest, fn edit) (*mcp.CallToolResult, error) {
	id, err := r.validator.SpecID(req.GetString("id", ""))
	if err != nil {
		return errorResult(err, msgFetchFailed), nil
	}
	spec, err := r.svc.Get(ctx, id)
	if err != nil {
		return errorResult(err, msgFetchFailed), nil
	}

	var (
		mu    sync.Mutex
		notes []organizer.Notification
	)
	sess := organizer.NewSession(r.svc,
		organizer.WithContext(ctx),
		organizer.WithSessionLogger(r.logger),
		organizer.WithTaskIDs(r.newID),
		organizer.WithNotifier(organizer.NotifierFunc(func(n organizer.Notification) {
			mu.Lock()
			notes = append(notes, n)
			mu.Unlock()
		})),
	)
	sess.Load(*spec)

	changed, err := fn(sess)
	sess.Wait()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mu.Lock()
	defer mu.Unlock()
	var lines []string
	for _, n := range notes {
		if n.Level == organizer.LevelError {
			return mcp.NewToolResultError(fmt.Sprintf("%s %v", n.Message, n.Err)), nil
		}
		lines = append(lines, n.Message)
	}
	switch {
	case !changed:
		lines = append(lines, "No changes.")
	case len(lines) == 0:
		lines = append(lines, "Tasks updated.")
	}
	return jsonResult(strings.Join(lines, "\n"), sess.Tasks())
}

// selectAll toggles ids on in sess, failing on the first unknown id.
func selectAll(sess *organizer.Session, ids []string) error {
	tasks := sess.Tasks()
	for _, id := range ids {
		if organizer.IndexOf(tasks, id) < 0 {
			return fmt.Errorf("unknown task id %q", id)
		}
		sess.Toggle(id, true)
	}
	return nil
}

// ─── AddTaskTool ────────────────────────────────────────────────────────────

// AddTaskTool handles the task_add MCP tool.
type AddTaskTool struct {
	runner taskRunner
}

// NewAddTaskTool creates an AddTaskTool.
func NewAddTaskTool(svc SpecService, v *validate.Validator, opts ...TaskOption) *AddTaskTool {
	return &AddTaskTool{runner: newTaskRunner(svc, v, opts)}
}

// Definition returns the MCP tool definition for task_add.
func (t *AddTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("task_add",
		mcp.WithDescription("Append a new task to a specification's task list."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Task text"),
		),
		mcp.WithString("group",
			mcp.Description("Group label (default: planning)"),
		),
	)
}

// Handle processes the task_add tool call.
func (t *AddTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := strings.TrimSpace(req.GetString("content", ""))
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	group := req.GetString("group", "")
	return t.runner.run(ctx, req, func(sess *organizer.Session) (bool, error) {
		return sess.Add(content, group), nil
	})
}

// ─── EditTaskTool ───────────────────────────────────────────────────────────

// EditTaskTool handles the task_edit MCP tool.
type EditTaskTool struct {
	runner taskRunner
}

// NewEditTaskTool creates an EditTaskTool.
func NewEditTaskTool(svc SpecService, v *validate.Validator, opts ...TaskOption) *EditTaskTool {
	return &EditTaskTool{runner: newTaskRunner(svc, v, opts)}
}

// Definition returns the MCP tool definition for task_edit.
func (t *EditTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("task_edit",
		mcp.WithDescription(
			"Edit one task: replace its text and/or mark it completed. A blank content keeps the current text.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id"),
		),
		mcp.WithString("content",
			mcp.Description("New task text"),
		),
		mcp.WithBoolean("completed",
			mcp.Description("New completion state"),
		),
	)
}

// Handle processes the task_edit tool call.
func (t *EditTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := strings.TrimSpace(req.GetString("task_id", ""))
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}
	content := req.GetString("content", "")
	var done *bool
	if v, ok := req.GetArguments()["completed"].(bool); ok {
		done = &v
	}

	return t.runner.run(ctx, req, func(sess *organizer.Session) (bool, error) {
		if organizer.IndexOf(sess.Tasks(), taskID) < 0 {
			return false, fmt.Errorf("unknown task id %q", taskID)
		}
		return sess.Edit(taskID, content, done), nil
	})
}

// ─── ReorderTaskTool ────────────────────────────────────────────────────────

// ReorderTaskTool handles the task_reorder MCP tool.
type ReorderTaskTool struct {
	runner taskRunner
}

// NewReorderTaskTool creates a ReorderTaskTool.
func NewReorderTaskTool(svc SpecService, v *validate.Validator, opts ...TaskOption) *ReorderTaskTool {
	return &ReorderTaskTool{runner: newTaskRunner(svc, v, opts)}
}

// Definition returns the MCP tool definition for task_reorder.
func (t *ReorderTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("task_reorder",
		mcp.WithDescription(
			"Move a task to a new position. Address it either by ids (task_id dropped onto over_id) "+
				"or by zero-based indices (from, to).",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
		mcp.WithString("task_id",
			mcp.Description("Task being moved"),
		),
		mcp.WithString("over_id",
			mcp.Description("Task whose slot the moved task takes"),
		),
		mcp.WithNumber("from",
			mcp.Description("Current index of the task"),
		),
		mcp.WithNumber("to",
			mcp.Description("Target index"),
		),
	)
}

// Handle processes the task_reorder tool call.
func (t *ReorderTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeID := strings.TrimSpace(req.GetString("task_id", ""))
	overID := strings.TrimSpace(req.GetString("over_id", ""))
	from := intArg(req, "from", -1)
	to := intArg(req, "to", -1)

	byID := activeID != "" || overID != ""
	if byID && (activeID == "" || overID == "") {
		return mcp.NewToolResultError("'task_id' and 'over_id' must be given together"), nil
	}
	if !byID && (from < 0 || to < 0) {
		return mcp.NewToolResultError("give either 'task_id' and 'over_id' or 'from' and 'to'"), nil
	}

	return t.runner.run(ctx, req, func(sess *organizer.Session) (bool, error) {
		if byID {
			changed, err := sess.Move(activeID, overID)
			return changed, err
		}
		changed, err := sess.Reorder(from, to)
		return changed, err
	})
}

// ─── GroupTasksTool ─────────────────────────────────────────────────────────

// GroupTasksTool handles the task_group MCP tool.
type GroupTasksTool struct {
	runner taskRunner
}

// NewGroupTasksTool creates a GroupTasksTool.
func NewGroupTasksTool(svc SpecService, v *validate.Validator, opts ...TaskOption) *GroupTasksTool {
	return &GroupTasksTool{runner: newTaskRunner(svc, v, opts)}
}

// Definition returns the MCP tool definition for task_group.
func (t *GroupTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("task_group",
		mcp.WithDescription(
			"Assign a group label to the given tasks. When group is omitted the first task's current group is used; "+
				"a blank group means ungrouped.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
		mcp.WithArray("task_ids",
			mcp.Required(),
			mcp.Description("Tasks to label"),
			mcp.WithStringItems(),
		),
		mcp.WithString("group",
			mcp.Description("Group label"),
		),
	)
}

// Handle processes the task_group tool call.
func (t *GroupTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := stringsArg(req, "task_ids")
	if len(ids) == 0 {
		return mcp.NewToolResultError("'task_ids' must name at least one task"), nil
	}
	group, hasGroup := req.GetArguments()["group"].(string)

	return t.runner.run(ctx, req, func(sess *organizer.Session) (bool, error) {
		if err := selectAll(sess, ids); err != nil {
			return false, err
		}
		if !hasGroup {
			group = sess.SuggestedGroupName()
		}
		return sess.AssignGroup(group), nil
	})
}

// ─── CombineTasksTool ───────────────────────────────────────────────────────

// CombineTasksTool handles the task_combine MCP tool.
type CombineTasksTool struct {
	runner taskRunner
}

// NewCombineTasksTool creates a CombineTasksTool.
func NewCombineTasksTool(svc SpecService, v *validate.Validator, opts ...TaskOption) *CombineTasksTool {
	return &CombineTasksTool{runner: newTaskRunner(svc, v, opts)}
}

// Definition returns the MCP tool definition for task_combine.
func (t *CombineTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("task_combine",
		mcp.WithDescription(
			"Merge two or more tasks into one, placed where the first of them (in list order) was. "+
				"Without content the texts are joined with ' + '.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Spec id"),
		),
		mcp.WithArray("task_ids",
			mcp.Required(),
			mcp.Description("Tasks to merge (at least two)"),
			mcp.WithStringItems(),
		),
		mcp.WithString("content",
			mcp.Description("Text of the merged task"),
		),
	)
}

// Handle processes the task_combine tool call.
func (t *CombineTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := stringsArg(req, "task_ids")
	if len(ids) < 2 {
		return mcp.NewToolResultError("'task_ids' must name at least two tasks"), nil
	}
	content := req.GetString("content", "")

	return t.runner.run(ctx, req, func(sess *organizer.Session) (bool, error) {
		if err := selectAll(sess, ids); err != nil {
			return false, err
		}
		if len(sess.Selected()) < 2 {
			return false, fmt.Errorf("'task_ids' must name at least two distinct tasks")
		}
		return sess.Combine(content), nil
	})
}
