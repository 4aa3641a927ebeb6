package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"npitrack/internal/report"
	"npitrack/internal/validation"
)

var (
	clDone      bool
	clPerson    string
	clReference string
	clOutput    string
)

func init() {
	rootCmd.AddCommand(checklistCmd)
	checklistCmd.AddCommand(checklistTemplateCmd, checklistInitCmd, checklistShowCmd, checklistMarkCmd, checklistPDFCmd)

	checklistMarkCmd.Flags().BoolVar(&clDone, "done", true, "mark the item completed (--done=false to reopen)")
	checklistMarkCmd.Flags().StringVar(&clPerson, "person", "", "responsible person")
	checklistMarkCmd.Flags().StringVar(&clReference, "ref", "", "reference document")
	checklistPDFCmd.Flags().StringVarP(&clOutput, "output", "o", "", "output file (default <project>_Checklist.pdf in the project directory)")
}

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Work with the handover checklist",
}

var checklistTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print the checklist template new projects are seeded from",
	Args:  cobra.NoArgs,
	RunE: withDeps(func(cmd *cobra.Command, _ []string, d *deps) error {
		entries := d.checklist.Template().Entries()
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tItem\tPerson")
		for i, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, e.Name, e.Person)
		}
		return w.Flush()
	}),
}

var checklistInitCmd = &cobra.Command{
	Use:   "init <project>",
	Short: "Seed the checklist from the template (no-op when already seeded)",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		seeded, err := d.checklist.Initialize(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintf(cmd.OutOrStdout(), "checklist of %s seeded with %d items\n", p.Name, d.checklist.Template().Len())
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "checklist of %s already present\n", p.Name)
		}
		return nil
	}),
}

var checklistShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show checklist items with their ids and state",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		items, err := d.checklist.Items(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), items)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tState\tItem\tPerson\tReference")
		for _, it := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.State(), it.Name, it.Person, it.Reference)
		}
		return w.Flush()
	}),
}

var checklistMarkCmd = &cobra.Command{
	Use:   "mark <item-id>",
	Short: "Set an item's completion, person and reference",
	Long: `Overwrite an item's completed flag, person and reference. Item ids are shown
by "checklist show". An unknown id is reported and ignored.

Example:
  npitrack checklist mark 17 --person QA --ref doc1.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[0])
		}
		ve := &validation.ValidationErrors{}
		validation.ValidateMaxLength(ve, "person", clPerson, validation.MaxNameLength)
		validation.ValidateMaxLength(ve, "ref", clReference, validation.MaxStringLength)
		if err := ve.Err(); err != nil {
			return err
		}
		return d.checklist.UpdateItem(cmd.Context(), id, clDone, clPerson, clReference)
	}),
}

var checklistPDFCmd = &cobra.Command{
	Use:   "pdf <project>",
	Short: "Export the checklist as a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		p, dir, err := d.onboarding.ProjectDir(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		items, err := d.checklist.Items(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		out := clOutput
		if out == "" {
			out = filepath.Join(dir, p.Name+"_Checklist.pdf")
		}
		if err := report.WriteFile(report.Checklist(*p, items, time.Now()), out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checklist written to %s\n", out)
		return nil
	}),
}
