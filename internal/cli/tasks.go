package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/omjikush09/aggroso/internal/client"
	"github.com/omjikush09/aggroso/internal/organizer"
	"github.com/omjikush09/aggroso/internal/specs"
)

// latestRef selects the newest spec in history.
const latestRef = "latest"

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Organize the tasks of a spec",
		Long: `Organize the task list of a saved spec. Every change is applied locally, then the
whole task list is saved through the API. A spec id of "latest" selects the
newest spec.`,
	}
	cmd.AddCommand(
		newTasksListCmd(a),
		newTasksAddCmd(a),
		newTasksEditCmd(a),
		newTasksDoneCmd(a),
		newTasksMoveCmd(a),
		newTasksGroupCmd(a),
		newTasksCombineCmd(a),
	)
	return cmd
}

// ─── Session plumbing ───────────────────────────────────────────────────────

// taskSession is an organizer.Session bound to the API, plus the
// notifications it produced.
type taskSession struct {
	*organizer.Session

	mu     sync.Mutex
	out    io.Writer
	failed error
}

func (ts *taskSession) notify(n organizer.Notification) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if n.Level == organizer.LevelError {
		fmt.Fprintf(ts.out, "error: %s %v\n", n.Message, n.Err)
		ts.failed = errors.Join(ts.failed, fmt.Errorf("%s %w", n.Message, n.Err))
		return
	}
	fmt.Fprintln(ts.out, n.Message)
}

// finish waits for in-flight saves and reports any that failed.
func (ts *taskSession) finish() error {
	ts.Wait()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.failed
}

// openSession loads ref into a new session writing through the API.
// Specs outside the recent history are fetched directly.
func (a *app) openSession(ctx context.Context, cmd *cobra.Command, ref string) (*taskSession, error) {
	c, err := a.client()
	if err != nil {
		return nil, err
	}

	ts := &taskSession{out: cmd.ErrOrStderr()}
	ts.Session = organizer.NewSession(c,
		organizer.WithContext(ctx),
		organizer.WithSessionLogger(a.logger),
		organizer.WithNotifier(organizer.NotifierFunc(ts.notify)),
	)

	history := organizer.NewHistory(c)
	if ref == latestRef {
		list, err := history.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, errors.New("no specs yet")
		}
		ref = list[0].ID
	}

	_, err = history.Open(ctx, ts.Session, ref)
	if errors.Is(err, specs.ErrNotFound) {
		err = loadDirect(ctx, c, ts.Session, ref)
	}
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func loadDirect(ctx context.Context, c *client.Client, sess *organizer.Session, id string) error {
	spec, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Load(*spec)
	return nil
}

// runEdit opens the session, applies fn, waits for the save, and prints the
// resulting task list.
func (a *app) runEdit(cmd *cobra.Command, ref string, fn func(sess *organizer.Session) (bool, error)) error {
	ctx := cmd.Context()
	ts, err := a.openSession(ctx, cmd, ref)
	if err != nil {
		return err
	}

	changed, err := fn(ts.Session)
	if ferr := ts.finish(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes.")
	}
	printTasks(cmd.OutOrStdout(), ts.Tasks())
	return nil
}

func selectTasks(sess *organizer.Session, ids []string) error {
	tasks := sess.Tasks()
	for _, id := range ids {
		if organizer.IndexOf(tasks, id) < 0 {
			return fmt.Errorf("unknown task id %q", id)
		}
		sess.Toggle(id, true)
	}
	return nil
}

// ─── Subcommands ────────────────────────────────────────────────────────────

func newTasksListCmd(a *app) *cobra.Command {
	var grouped bool

	cmd := &cobra.Command{
		Use:   "list <spec-id>",
		Short: "Show the tasks of a spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := a.openSession(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			if grouped {
				if err := ts.SetView(organizer.ViewGrouped); err != nil {
					return err
				}
				printGrouped(cmd.OutOrStdout(), ts.Grouped())
				return nil
			}
			printTasks(cmd.OutOrStdout(), ts.Tasks())
			return nil
		},
	}
	cmd.Flags().BoolVar(&grouped, "grouped", false, "show tasks by group")
	return cmd
}

func newTasksAddCmd(a *app) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "add <spec-id> <content>",
		Short: "Append a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args[1:], " ")
			return a.runEdit(cmd, args[0], func(sess *organizer.Session) (bool, error) {
				return sess.Add(content, group), nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", specs.GroupPlanning, "group label")
	return cmd
}

func newTasksEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <spec-id> <task-id> <content>",
		Short: "Replace a task's text",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, content := args[1], strings.Join(args[2:], " ")
			return a.runEdit(cmd, args[0], func(sess *organizer.Session) (bool, error) {
				if organizer.IndexOf(sess.Tasks(), taskID) < 0 {
					return false, fmt.Errorf("unknown task id %q", taskID)
				}
				return sess.EditContent(taskID, content), nil
			})
		},
	}
}

func newTasksDoneCmd(a *app) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <spec-id> <task-id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[1]
			return a.runEdit(cmd, args[0], func(sess *organizer.Session) (bool, error) {
				if organizer.IndexOf(sess.Tasks(), taskID) < 0 {
					return false, fmt.Errorf("unknown task id %q", taskID)
				}
				return sess.SetCompleted(taskID, !undo), nil
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task not completed")
	return cmd
}

func newTasksMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <spec-id> <task> <target>",
		Short: "Move a task into another task's slot",
		Long: `Move a task into the slot of another. Both may be given as task ids or as
zero-based positions from "tasks list".`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, fromErr := strconv.Atoi(args[1])
			to, toErr := strconv.Atoi(args[2])
			return a.runEdit(cmd, args[0], func(sess *organizer.Session) (bool, error) {
				if fromErr == nil && toErr == nil {
					return sess.Reorder(from, to)
				}
				return sess.Move(args[1], args[2])
			})
		},
	}
}

func newTasksGroupCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "group <spec-id> <task-id>...",
		Short: "Assign a group to tasks",
		Long: `Assign a group label to the given tasks. Without --name the first task's current
group is kept for all of them; an empty --name means ungrouped.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			named := cmd.Flags().Changed("name")
			return a.runEdit(cmd, args[0], func(sess *organizer.Session) (bool, error) {
				if err := selectTasks(sess, args[1:]); err != nil {
					return false, err
				}
				group := name
				if !named {
					group = sess.SuggestedGroupName()
				}
				return sess.AssignGroup(group), nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "group label")
	return cmd
}

func newTasksCombineCmd(a *app) *cobra.Command {
	var content string

	cmd := &cobra.Command{
		Use:   "combine <spec-id> <task-id> <task-id>...",
		Short: "Merge tasks into one",
		Long: `Merge two or more tasks into one task placed where the first of them was.
Without --content their texts are joined with " + ".`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEdit(cmd, args[0], func(sess *organizer.Session) (bool, error) {
				if err := selectTasks(sess, args[1:]); err != nil {
					return false, err
				}
				if len(sess.Selected()) < 2 {
					return false, errors.New("combine needs at least two distinct tasks")
				}
				return sess.Combine(content), nil
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "text of the merged task")
	return cmd
}
