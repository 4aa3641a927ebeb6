package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"npitrack/internal/apperr"
	"npitrack/internal/checklist"
	"npitrack/internal/models"
	"npitrack/internal/onboarding"
	"npitrack/internal/validation"
)

var (
	pjFields models.ProjectFields
	pjFrom   string
)

func init() {
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(productsCmd)
	projectCmd.AddCommand(projectAddCmd, projectUpdateCmd, projectShowCmd, projectListCmd, projectDeleteCmd)

	for _, c := range []*cobra.Command{projectAddCmd, projectUpdateCmd} {
		c.Flags().StringVar(&pjFields.FGPartNumber, "fg", "", "FG part number")
		c.Flags().StringVar(&pjFields.PCBAPartNumber, "pcba", "", "PCBA part number")
		c.Flags().StringVar(&pjFields.StartDate, "start", "", "start date (YYYY-MM-DD)")
		c.Flags().StringVar(&pjFields.EndDate, "end", "", "end date (YYYY-MM-DD)")
		c.Flags().StringVar(&pjFields.BOMFile, "bom", "", "BOM file or sheet")
		c.Flags().StringVar(&pjFields.NPIEngineer, "engineer", "", "NPI engineer")
	}
	projectAddCmd.Flags().StringVar(&pjFrom, "from", "", "YAML file with the full project (fields, workflow, matrices)")
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, edit, inspect and delete projects",
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List products (falls back to the workbook's product sheet)",
	Args:  cobra.NoArgs,
	RunE: withDeps(func(cmd *cobra.Command, _ []string, d *deps) error {
		names, err := d.store.ListProducts(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 && d.workbook != nil {
			if wb, err := d.workbook.ProductNames(); err == nil {
				names = wb
			}
		}
		return printNames(cmd, names)
	}),
}

var projectAddCmd = &cobra.Command{
	Use:   "add <product> <name>",
	Short: "Create a project and seed its workflow, matrices and checklist",
	Long: `Create a project and run the seeding sequence: project directory, MES
workflow, assembly/build/machine matrices and the checklist. Running it again
for an existing project leaves its fields alone and re-applies the seeding.

Examples:
  npitrack project add Widgets Widget-A --fg FG-100 --engineer "R. Kumar"
  npitrack project add --from widget-a.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if pjFrom != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		var np onboarding.NewProject
		if pjFrom != "" {
			data, err := os.ReadFile(pjFrom)
			if err != nil {
				return err
			}
			if err := yaml.Unmarshal(data, &np); err != nil {
				return fmt.Errorf("parse %s: %w", pjFrom, err)
			}
		} else {
			np = onboarding.NewProject{Product: args[0], Name: args[1], Fields: pjFields}
		}
		out, err := d.onboarding.Onboard(cmd.Context(), np)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), out)
		}
		verb := "created"
		if !out.Created {
			verb = "already exists, re-seeded"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s %s (id %d)\ndirectory: %s\n", np.Name, verb, out.ProjectID, out.Dir)
		return nil
	}),
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Update project fields (requires --unlock)",
	Long: `Update the fields given as flags; other fields keep their values.

Example:
  npitrack project update Widget-A --end 2026-06-30 --unlock "$TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if err := d.requireUnlock(); err != nil {
			return err
		}
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		f := p.ProjectFields
		flags := cmd.Flags()
		for name, dst := range map[string]*string{
			"fg": &f.FGPartNumber, "pcba": &f.PCBAPartNumber, "start": &f.StartDate,
			"end": &f.EndDate, "bom": &f.BOMFile, "engineer": &f.NPIEngineer,
		} {
			if flags.Changed(name) {
				*dst, _ = flags.GetString(name)
			}
		}
		ve := &validation.ValidationErrors{}
		validation.ValidateProjectFields(ve, f)
		if err := ve.Err(); err != nil {
			return err
		}
		if err := d.store.UpdateProjectFields(cmd.Context(), p.Name, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s updated\n", p.Name)
		return nil
	}),
}

type projectSummary struct {
	Project   *models.Project           `json:"project"`
	Workflow  *models.Workflow          `json:"workflow,omitempty"`
	Matrices  map[models.MatrixKind]int `json:"matrix_rows"`
	Checklist checklistProgress         `json:"checklist"`
	Documents int                       `json:"documents"`
}

type checklistProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

var projectShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a project with its workflow and collection sizes",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		ctx := cmd.Context()
		p, err := d.store.GetProject(ctx, args[0])
		if err != nil {
			return err
		}
		s := projectSummary{Project: p, Matrices: map[models.MatrixKind]int{}}
		if s.Workflow, err = d.store.Workflow(ctx, p.ID); err != nil && !apperr.IsNotFound(err) {
			return err
		}
		for _, k := range models.MatrixKinds {
			rows, err := d.store.Matrix(ctx, p.ID, k)
			if err != nil {
				return err
			}
			s.Matrices[k] = len(rows)
		}
		items, err := d.checklist.Items(ctx, p.ID)
		if err != nil {
			return err
		}
		s.Checklist.Done, s.Checklist.Total = checklist.Progress(items)
		docs, err := d.catalog.List(ctx, p.ID, "")
		if err != nil {
			return err
		}
		s.Documents = len(docs)

		if outputJSON {
			return printJSON(cmd.OutOrStdout(), s)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Product:\t%s\n", p.Product)
		fmt.Fprintf(w, "Project:\t%s\n", p.Name)
		fmt.Fprintf(w, "FG Part Number:\t%s\n", p.FGPartNumber)
		fmt.Fprintf(w, "PCBA Part Number:\t%s\n", p.PCBAPartNumber)
		fmt.Fprintf(w, "Start / End:\t%s / %s\n", p.StartDate, p.EndDate)
		fmt.Fprintf(w, "BOM:\t%s\n", p.BOMFile)
		fmt.Fprintf(w, "NPI Engineer:\t%s\n", p.NPIEngineer)
		if s.Workflow != nil {
			fmt.Fprintf(w, "Lot ID:\t%s\n", s.Workflow.LotID)
		}
		for _, k := range models.MatrixKinds {
			fmt.Fprintf(w, "%s matrix:\t%d rows\n", k, s.Matrices[k])
		}
		fmt.Fprintf(w, "Checklist:\t%d/%d done\n", s.Checklist.Done, s.Checklist.Total)
		fmt.Fprintf(w, "Documents:\t%d\n", s.Documents)
		return w.Flush()
	}),
}

var projectListCmd = &cobra.Command{
	Use:   "list <product>",
	Short: "List a product's projects (falls back to the workbook)",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		names, err := d.store.ListProjects(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(names) == 0 && d.workbook != nil {
			if wb, err := d.workbook.ProjectNames(args[0]); err == nil {
				names = wb
			}
		}
		return printNames(cmd, names)
	}),
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project and all its records (requires --unlock)",
	Long: `Delete the project row with its workflow, matrices, documents and checklist
in one transaction. The project directory on disk is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if err := d.requireUnlock(); err != nil {
			return err
		}
		if err := d.store.DeleteProject(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "project %s deleted\n", args[0])
		return nil
	}),
}

func printNames(cmd *cobra.Command, names []string) error {
	if names == nil {
		names = []string{}
	}
	if outputJSON {
		return printJSON(cmd.OutOrStdout(), names)
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}
