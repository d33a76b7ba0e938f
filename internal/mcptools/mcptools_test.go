package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omjikush09/aggroso/internal/organizer"
	"github.com/omjikush09/aggroso/internal/service"
	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/store"
	"github.com/omjikush09/aggroso/internal/templates"
	"github.com/omjikush09/aggroso/internal/validate"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// newTestService creates a service over a SQLite store in a temp directory.
func newTestService(t *testing.T) *service.Service {
	t.Helper()
	st, err := store.NewSQLite(store.SQLiteConfig{DataDir: t.TempDir()})
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { _ = st.Close() })
	return service.New(st)
}

// seqIDs returns an IDFunc producing prefix-1, prefix-2, ...
func seqIDs() specs.IDFunc {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// resultJSON decodes the JSON document following the headline of a result.
func resultJSON(t *testing.T, r *mcp.CallToolResult, v any) {
	t.Helper()
	text := resultText(r)
	start := strings.IndexAny(text, "[{")
	require.GreaterOrEqual(t, start, 0, "no JSON in result: %q", text)
	require.NoError(t, json.Unmarshal([]byte(text[start:]), v), "decoding result JSON:\n%s", text)
}

func mustCall(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeReq(args))
	require.NoError(t, err)
	return result
}

// mustSucceed calls h and fails the test on a tool error result.
func mustSucceed(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result := mustCall(t, h, args)
	require.False(t, result.IsError, "unexpected tool error: %s", resultText(result))
	return result
}

func seedSpec(t *testing.T, svc *service.Service) *specs.Specification {
	t.Helper()
	spec, err := svc.Generate(context.Background(), specs.GenerateInput{Goal: "Expense tracker", Constraints: "GDPR"})
	require.NoError(t, err, "seeding spec")
	return spec
}

func mustGet(t *testing.T, svc *service.Service, id string) *specs.Specification {
	t.Helper()
	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

func taskIDs(tasks []specs.Task) []string {
	ids := make([]string, len(tasks))
	for i, tk := range tasks {
		ids[i] = tk.ID
	}
	return ids
}

// failingWriter wraps a service and fails every task write.
type failingWriter struct {
	*service.Service
}

func (failingWriter) ReplaceTasks(context.Context, string, []specs.Task) error {
	return errors.New("disk full")
}

// countingWriter wraps a service and counts task writes.
type countingWriter struct {
	*service.Service
	writes atomic.Int32
}

func (w *countingWriter) ReplaceTasks(ctx context.Context, specID string, tasks []specs.Task) error {
	w.writes.Add(1)
	return w.Service.ReplaceTasks(ctx, specID, tasks)
}

// ─── Spec tools ─────────────────────────────────────────────────────────────

func TestGenerateTool_Definition(t *testing.T) {
	tool := NewGenerateTool(newTestService(t), validate.MustNew())
	def := tool.Definition()

	assert.Equal(t, "spec_generate", def.Name)
	for _, p := range []string{"goal", "users", "constraints", "template"} {
		assert.Contains(t, def.InputSchema.Properties, p)
	}
	assert.Equal(t, []string{"goal"}, def.InputSchema.Required)
}

func TestGenerateTool_SavesSpec(t *testing.T) {
	svc := newTestService(t)
	tool := NewGenerateTool(svc, validate.MustNew())

	result := mustSucceed(t, tool.Handle, map[string]interface{}{
		"goal":        "  Expense tracker  ",
		"users":       "freelancers",
		"constraints": "GDPR",
		"template":    "mobile",
	})
	assert.True(t, strings.HasPrefix(resultText(result), "Spec saved: "), "headline = %q", resultText(result))

	var spec specs.Specification
	resultJSON(t, result, &spec)
	assert.Equal(t, "Expense tracker", spec.Input.Goal)
	assert.Len(t, spec.Output.Tasks, 4, "compliance task expected")

	history, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, spec.ID, history[0].ID)
}

func TestGenerateTool_BlankGoal(t *testing.T) {
	tool := NewGenerateTool(newTestService(t), validate.MustNew())

	result := mustCall(t, tool.Handle, map[string]interface{}{"goal": "   "})
	require.True(t, result.IsError)
	assert.Contains(t, resultText(result), "Goal is required")
}

func TestGenerateTool_BadTemplate(t *testing.T) {
	tool := NewGenerateTool(newTestService(t), validate.MustNew())

	result := mustCall(t, tool.Handle, map[string]interface{}{"goal": "x", "template": "desktop"})
	assert.True(t, result.IsError)
}

func TestHistoryTool_EmptyAndSummary(t *testing.T) {
	svc := newTestService(t)
	tool := NewHistoryTool(svc)

	result := mustCall(t, tool.Handle, nil)
	assert.Equal(t, "No specs yet.", resultText(result))

	spec := seedSpec(t, svc)
	result = mustCall(t, tool.Handle, nil)
	text := resultText(result)
	assert.Contains(t, text, spec.ID)
	assert.Contains(t, text, "Expense tracker")

	result = mustCall(t, tool.Handle, map[string]interface{}{"full": true})
	var list []specs.Specification
	resultJSON(t, result, &list)
	require.Len(t, list, 1)
	assert.Equal(t, spec.ID, list[0].ID)
}

func TestExportTool_Markdown(t *testing.T) {
	svc := newTestService(t)
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	tool := NewExportTool(svc, validate.MustNew(), renderer)
	spec := seedSpec(t, svc)

	result := mustSucceed(t, tool.Handle, map[string]interface{}{"id": spec.ID})
	text := resultText(result)
	for _, want := range []string{"# Project Specification", "## User Stories", "## Engineering Tasks", "### Compliance"} {
		assert.Contains(t, text, want)
	}
}

func TestExportTool_NotFound(t *testing.T) {
	svc := newTestService(t)
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	tool := NewExportTool(svc, validate.MustNew(), renderer)

	result := mustCall(t, tool.Handle, map[string]interface{}{"id": "missing"})
	assert.True(t, result.IsError)
	assert.Equal(t, msgNotFound, resultText(result))
}

func TestUpdateTool_ReplacesTasks(t *testing.T) {
	svc := newTestService(t)
	tool := NewUpdateTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID,
		"tasks": []interface{}{
			map[string]interface{}{"id": "t1", "content": "Only task", "group": "misc", "completed": true},
		},
	})

	got := mustGet(t, svc, spec.ID)
	require.Len(t, got.Output.Tasks, 1)
	assert.Equal(t, "Only task", got.Output.Tasks[0].Content)
	assert.True(t, got.Output.Tasks[0].Completed)
	assert.Len(t, got.Output.Stories, 2, "stories untouched")
}

func TestUpdateTool_EmptyPayload(t *testing.T) {
	svc := newTestService(t)
	tool := NewUpdateTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	result := mustCall(t, tool.Handle, map[string]interface{}{"id": spec.ID})
	require.True(t, result.IsError)
	assert.Contains(t, resultText(result), "At least one of tasks or stories must be provided")
}

func TestUpdateTool_DuplicateTaskIDs(t *testing.T) {
	svc := newTestService(t)
	tool := NewUpdateTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	result := mustCall(t, tool.Handle, map[string]interface{}{
		"id": spec.ID,
		"tasks": []interface{}{
			map[string]interface{}{"id": "t1", "content": "A", "group": "g"},
			map[string]interface{}{"id": "t1", "content": "B", "group": "g"},
		},
	})
	require.True(t, result.IsError)
	assert.Len(t, mustGet(t, svc, spec.ID).Output.Tasks, 4, "stored tasks unchanged")
}

func TestUpdateTool_ClearsStories(t *testing.T) {
	svc := newTestService(t)
	tool := NewUpdateTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	mustSucceed(t, tool.Handle, map[string]interface{}{"id": spec.ID, "stories": []interface{}{}})

	got := mustGet(t, svc, spec.ID)
	assert.Empty(t, got.Output.Stories)
	assert.Len(t, got.Output.Tasks, 4)
}

func TestHealthTool_ReportsOK(t *testing.T) {
	tool := NewHealthTool(newTestService(t))

	result := mustSucceed(t, tool.Handle, nil)
	var report service.HealthReport
	resultJSON(t, result, &report)
	assert.True(t, report.OK(), "report = %+v", report)
}

// ─── Task tools ─────────────────────────────────────────────────────────────

func TestAddTaskTool_AppendsPlanningTask(t *testing.T) {
	svc := newTestService(t)
	tool := NewAddTaskTool(svc, validate.MustNew(), WithTaskIDFunc(seqIDs()))
	spec := seedSpec(t, svc)

	result := mustSucceed(t, tool.Handle, map[string]interface{}{"id": spec.ID, "content": "Write docs"})
	assert.True(t, strings.HasPrefix(resultText(result), organizer.MsgTaskAdded), "headline = %q", resultText(result))

	got := mustGet(t, svc, spec.ID)
	last := got.Output.Tasks[len(got.Output.Tasks)-1]
	assert.Equal(t, specs.Task{ID: "task-1", Content: "Write docs", Group: specs.GroupPlanning}, last)
}

func TestAddTaskTool_BlankContent(t *testing.T) {
	tool := NewAddTaskTool(newTestService(t), validate.MustNew())

	result := mustCall(t, tool.Handle, map[string]interface{}{"id": "x", "content": "  "})
	assert.True(t, result.IsError)
}

func TestAddTaskTool_UnknownSpec(t *testing.T) {
	tool := NewAddTaskTool(newTestService(t), validate.MustNew())

	result := mustCall(t, tool.Handle, map[string]interface{}{"id": "missing", "content": "x"})
	assert.True(t, result.IsError)
	assert.Equal(t, msgNotFound, resultText(result))
}

func TestAddTaskTool_SaveFailureReported(t *testing.T) {
	svc := newTestService(t)
	spec := seedSpec(t, svc)
	tool := NewAddTaskTool(failingWriter{svc}, validate.MustNew())

	result := mustCall(t, tool.Handle, map[string]interface{}{"id": spec.ID, "content": "x"})
	require.True(t, result.IsError)
	assert.Contains(t, resultText(result), organizer.MsgSaveFailed)
	assert.Contains(t, resultText(result), "disk full")
}

func TestEditTaskTool_ContentAndCompleted(t *testing.T) {
	svc := newTestService(t)
	tool := NewEditTaskTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)
	target := spec.Output.Tasks[1].ID

	mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_id": target, "content": "  Add OAuth  ", "completed": true,
	})

	tk := mustGet(t, svc, spec.ID).Output.Tasks[1]
	assert.Equal(t, "Add OAuth", tk.Content)
	assert.True(t, tk.Completed)
}

func TestEditTaskTool_ContentAndCompletedSingleWrite(t *testing.T) {
	svc := newTestService(t)
	w := &countingWriter{Service: svc}
	tool := NewEditTaskTool(w, validate.MustNew())
	spec := seedSpec(t, svc)
	target := spec.Output.Tasks[2].ID

	mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_id": target, "content": "Build dashboard", "completed": true,
	})
	assert.EqualValues(t, 1, w.writes.Load())

	tk := mustGet(t, svc, spec.ID).Output.Tasks[2]
	assert.Equal(t, "Build dashboard", tk.Content)
	assert.True(t, tk.Completed)
}

func TestEditTaskTool_RepeatedEditsKeepLatest(t *testing.T) {
	svc := newTestService(t)
	tool := NewEditTaskTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)
	target := spec.Output.Tasks[0].ID

	for i := range 5 {
		mustSucceed(t, tool.Handle, map[string]interface{}{
			"id": spec.ID, "task_id": target, "content": fmt.Sprintf("rev %d", i), "completed": i%2 == 0,
		})
	}

	tk := mustGet(t, svc, spec.ID).Output.Tasks[0]
	assert.Equal(t, "rev 4", tk.Content)
	assert.True(t, tk.Completed)
}

func TestEditTaskTool_BlankContentKeepsText(t *testing.T) {
	svc := newTestService(t)
	tool := NewEditTaskTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	result := mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_id": spec.Output.Tasks[0].ID, "content": "   ",
	})
	assert.True(t, strings.HasPrefix(resultText(result), "No changes."), "headline = %q", resultText(result))
}

func TestEditTaskTool_UnknownTask(t *testing.T) {
	svc := newTestService(t)
	tool := NewEditTaskTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	result := mustCall(t, tool.Handle, map[string]interface{}{"id": spec.ID, "task_id": "nope", "content": "x"})
	assert.True(t, result.IsError)
}

func TestReorderTaskTool_ByIndexAndByID(t *testing.T) {
	svc := newTestService(t)
	tool := NewReorderTaskTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)
	orig := taskIDs(spec.Output.Tasks)

	mustSucceed(t, tool.Handle, map[string]interface{}{"id": spec.ID, "from": float64(0), "to": float64(2)})
	assert.Equal(t, []string{orig[1], orig[2], orig[0], orig[3]}, taskIDs(mustGet(t, svc, spec.ID).Output.Tasks))

	mustSucceed(t, tool.Handle, map[string]interface{}{"id": spec.ID, "task_id": orig[3], "over_id": orig[1]})
	assert.Equal(t, []string{orig[3], orig[1], orig[2], orig[0]}, taskIDs(mustGet(t, svc, spec.ID).Output.Tasks))
}

func TestReorderTaskTool_MissingArgs(t *testing.T) {
	tool := NewReorderTaskTool(newTestService(t), validate.MustNew())

	for name, args := range map[string]map[string]interface{}{
		"nothing":       {"id": "x"},
		"only task_id":  {"id": "x", "task_id": "a"},
		"only from":     {"id": "x", "from": float64(1)},
		"negative from": {"id": "x", "from": float64(-1), "to": float64(0)},
	} {
		t.Run(name, func(t *testing.T) {
			result := mustCall(t, tool.Handle, args)
			assert.True(t, result.IsError, "got %q", resultText(result))
		})
	}
}

func TestGroupTasksTool_AssignsAndNotifies(t *testing.T) {
	svc := newTestService(t)
	tool := NewGroupTasksTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)
	ids := taskIDs(spec.Output.Tasks)

	result := mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_ids": []interface{}{ids[0], ids[2]}, "group": " sprint-1 ",
	})
	assert.True(t, strings.HasPrefix(resultText(result), organizer.MsgGroupAssigned("sprint-1")), "headline = %q", resultText(result))

	got := mustGet(t, svc, spec.ID)
	groups := []string{got.Output.Tasks[0].Group, got.Output.Tasks[1].Group, got.Output.Tasks[2].Group}
	assert.Equal(t, []string{"sprint-1", specs.GroupBackend, "sprint-1"}, groups)
}

func TestGroupTasksTool_BlankGroupIsUngrouped(t *testing.T) {
	svc := newTestService(t)
	tool := NewGroupTasksTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_ids": []interface{}{spec.Output.Tasks[0].ID}, "group": "",
	})
	assert.Equal(t, specs.GroupUngrouped, mustGet(t, svc, spec.ID).Output.Tasks[0].Group)
}

func TestGroupTasksTool_UnknownTask(t *testing.T) {
	svc := newTestService(t)
	tool := NewGroupTasksTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)

	result := mustCall(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_ids": []interface{}{"nope"}, "group": "g",
	})
	assert.True(t, result.IsError)
}

func TestCombineTasksTool_MergesInFirstSlot(t *testing.T) {
	svc := newTestService(t)
	tool := NewCombineTasksTool(svc, validate.MustNew(), WithTaskIDFunc(seqIDs()))
	spec := seedSpec(t, svc)
	orig := spec.Output.Tasks

	// Selection order does not matter; list order decides the slot and text.
	result := mustSucceed(t, tool.Handle, map[string]interface{}{
		"id": spec.ID, "task_ids": []interface{}{orig[2].ID, orig[1].ID},
	})
	assert.True(t, strings.HasPrefix(resultText(result), organizer.MsgTasksCombined), "headline = %q", resultText(result))

	got := mustGet(t, svc, spec.ID)
	require.Len(t, got.Output.Tasks, 3)
	merged := got.Output.Tasks[1]
	assert.Equal(t, "task-1", merged.ID)
	assert.Equal(t, orig[1].Content+" + "+orig[2].Content, merged.Content)
	assert.Equal(t, orig[1].Group, merged.Group)
	assert.Equal(t, []string{orig[0].ID, "task-1", orig[3].ID}, taskIDs(got.Output.Tasks), "neighbours moved")
}

func TestCombineTasksTool_NeedsTwo(t *testing.T) {
	svc := newTestService(t)
	tool := NewCombineTasksTool(svc, validate.MustNew())
	spec := seedSpec(t, svc)
	id := spec.Output.Tasks[0].ID

	for name, ids := range map[string][]interface{}{
		"one":       {id},
		"duplicate": {id, id},
	} {
		t.Run(name, func(t *testing.T) {
			result := mustCall(t, tool.Handle, map[string]interface{}{"id": spec.ID, "task_ids": ids})
			assert.True(t, result.IsError, "got %q", resultText(result))
		})
	}
}
