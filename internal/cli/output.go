package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/omjikush09/aggroso/internal/organizer"
	"github.com/omjikush09/aggroso/internal/specs"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSpec writes a spec's stories followed by its tasks.
func printSpec(w io.Writer, spec *specs.Specification) {
	fmt.Fprintf(w, "Spec %s  %s\n", spec.ID, spec.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Goal: %s (%s)\n\n", spec.Input.Goal, spec.Input.Template)

	fmt.Fprintln(w, "User stories:")
	for _, s := range spec.Output.Stories {
		fmt.Fprintf(w, "  - %s\n", s.Content)
	}
	fmt.Fprintln(w)
	printTasks(w, spec.Output.Tasks)
}

// printTasks writes the flat list with positions, ids and groups.
func printTasks(w io.Writer, tasks []specs.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDONE\tID\tGROUP\tTASK")
	for i, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, checkbox(t.Completed), t.ID, t.Group, t.Content)
	}
	_ = tw.Flush()
}

// printGrouped writes one section per group.
func printGrouped(w io.Writer, groups []organizer.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", g.Name, len(g.Tasks))
		for _, t := range g.Tasks {
			fmt.Fprintf(w, "  %s %s  %s\n", checkbox(t.Completed), t.ID, t.Content)
		}
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
