package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/omjikush09/aggroso/internal/organizer"
	"github.com/omjikush09/aggroso/internal/server"
	"github.com/omjikush09/aggroso/internal/specs"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		in     specs.GenerateInput
		tmpl   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate <goal>",
		Short: "Generate and save a spec from a goal",
		Example: `  specgen generate "Expense tracker" --users freelancers --constraints GDPR
  specgen generate "Release notes bot" --template tool --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Goal = strings.Join(args, " ")
			in.Template = specs.Template(tmpl)
			if err := specs.ValidateTemplate(in.Template); err != nil {
				return err
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			spec, err := c.Generate(cmd.Context(), in)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), spec)
			}
			printSpec(cmd.OutOrStdout(), spec)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Users, "users", "", "who the project is for")
	f.StringVar(&in.Constraints, "constraints", "", "constraints to comply with (adds a compliance task)")
	f.StringVar(&tmpl, "template", "", "project flavour: web, mobile or tool (default web)")
	f.BoolVar(&asJSON, "json", false, "print the spec as JSON")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			list, err := organizer.NewHistory(c).Refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No specs yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTEMPLATE\tTASKS\tGOAL")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Input.Template, len(s.Output.Tasks), s.Input.Goal)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the specs as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <spec-id>",
		Short: "Export a spec as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			doc, err := c.Markdown(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
				return err
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// errDegraded makes `specgen health` exit non-zero when the database is down.
var errDegraded = errors.New("service degraded")

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the API and its database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			report, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return errDegraded
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "specgen %s\n", server.Version)
			return err
		},
	}
}
