package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"npitrack/internal/apperr"
	"npitrack/internal/models"
	"npitrack/internal/validation"
)

var (
	wfInput     models.Workflow
	wfWOQty     string
	wfPOQty     string
	mxRows      []string
	mxFrom      string
	mxSeparator string
)

func init() {
	rootCmd.AddCommand(workflowCmd, matrixCmd)
	workflowCmd.AddCommand(workflowSetCmd, workflowShowCmd)
	matrixCmd.AddCommand(matrixSetCmd, matrixShowCmd, matrixAddDrawingsCmd)

	f := workflowSetCmd.Flags()
	f.StringVar(&wfInput.LotID, "lot", "", "lot ID")
	f.StringVar(&wfInput.WorkflowSMT, "smt-workflow", "", "SMT workflow")
	f.StringVar(&wfInput.WorkflowTLA, "tla-workflow", "", "TLA workflow")
	f.StringVar(&wfInput.SMTWorkOrder, "smt-wo", "", "SMT work order")
	f.StringVar(&wfInput.TLAWorkOrder, "tla-wo", "", "TLA work order")
	f.StringVar(&wfWOQty, "wo-qty", "", "work order quantity")
	f.StringVar(&wfInput.PONumber, "po", "", "PO number")
	f.StringVar(&wfPOQty, "po-qty", "", "PO quantity")

	matrixSetCmd.Flags().StringArrayVar(&mxRows, "row", nil, `one row as "A|B"; repeat in order`)
	matrixSetCmd.Flags().StringVar(&mxFrom, "from", "", "YAML file with a list of {a, b} rows")
	matrixSetCmd.Flags().StringVar(&mxSeparator, "sep", "|", "separator between the two columns of --row")
}

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Show or replace a project's MES workflow",
}

var workflowSetCmd = &cobra.Command{
	Use:   "set <project>",
	Short: "Replace the MES workflow record (requires --unlock)",
	Long: `Replace the project's MES workflow with the values given. Fields left out
are stored empty; quantities left out are stored as unset.

Example:
  npitrack workflow set Widget-A --lot LOT-7 --wo-qty 120 --po PO-1 --unlock "$TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if err := d.requireUnlock(); err != nil {
			return err
		}
		wf := wfInput
		ve := &validation.ValidationErrors{}
		wf.WorkOrderQty = parseQty(ve, "wo-qty", wfWOQty)
		wf.POQty = parseQty(ve, "po-qty", wfPOQty)
		validation.ValidateWorkflow(ve, wf)
		if err := ve.Err(); err != nil {
			return err
		}
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		wf.ProjectID = p.ID
		if err := d.store.SaveWorkflow(cmd.Context(), wf); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "workflow of %s saved\n", p.Name)
		return nil
	}),
}

func parseQty(ve *validation.ValidationErrors, field, s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		ve.Add(field, "must be a whole number")
		return nil
	}
	return &n
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show the MES workflow record",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		wf, err := d.store.Workflow(cmd.Context(), p.ID)
		if apperr.IsNotFound(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "no workflow recorded for %s\n", p.Name)
			return nil
		}
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), wf)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Lot ID:\t%s\n", wf.LotID)
		fmt.Fprintf(w, "SMT Workflow:\t%s\n", wf.WorkflowSMT)
		fmt.Fprintf(w, "TLA Workflow:\t%s\n", wf.WorkflowTLA)
		fmt.Fprintf(w, "SMT Work Order:\t%s\n", wf.SMTWorkOrder)
		fmt.Fprintf(w, "TLA Work Order:\t%s\n", wf.TLAWorkOrder)
		fmt.Fprintf(w, "Work Order Qty:\t%s\n", qtyString(wf.WorkOrderQty))
		fmt.Fprintf(w, "PO Number:\t%s\n", wf.PONumber)
		fmt.Fprintf(w, "PO Qty:\t%s\n", qtyString(wf.POQty))
		return w.Flush()
	}),
}

func qtyString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Show or replace the assembly, build and machine matrices",
}

var matrixSetCmd = &cobra.Command{
	Use:   "set <project> <assembly|build|machine>",
	Short: "Replace every row of a matrix (requires --unlock)",
	Long: `Replace the matrix with the given rows, in order. With no rows the matrix
is cleared.

Examples:
  npitrack matrix set Widget-A build --row "Resistor|ACME" --row "Capacitor|Beta"
  npitrack matrix set Widget-A machine --from programs.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if err := d.requireUnlock(); err != nil {
			return err
		}
		kind, err := models.ParseMatrixKind(args[1])
		if err != nil {
			return err
		}
		rows, err := matrixRows()
		if err != nil {
			return err
		}
		ve := &validation.ValidationErrors{}
		validation.ValidateMatrix(ve, string(kind), rows)
		if err := ve.Err(); err != nil {
			return err
		}
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := d.store.ReplaceMatrix(cmd.Context(), p.ID, kind, rows); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s matrix of %s: %d rows\n", kind, p.Name, len(rows))
		return nil
	}),
}

func matrixRows() ([]models.MatrixPair, error) {
	var rows []models.MatrixPair
	if mxFrom != "" {
		data, err := os.ReadFile(mxFrom)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("parse %s: %w", mxFrom, err)
		}
	}
	for _, r := range mxRows {
		a, b, _ := strings.Cut(r, mxSeparator)
		rows = append(rows, models.MatrixPair{A: strings.TrimSpace(a), B: strings.TrimSpace(b)})
	}
	return rows, nil
}

var matrixShowCmd = &cobra.Command{
	Use:   "show <project> <assembly|build|machine>",
	Short: "Show a matrix in order",
	Args:  cobra.ExactArgs(2),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		kind, err := models.ParseMatrixKind(args[1])
		if err != nil {
			return err
		}
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rows, err := d.store.Matrix(cmd.Context(), p.ID, kind)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), rows)
		}
		a, b := kind.Columns()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "No.\t%s\t%s\n", a, b)
		for i, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, r.A, r.B)
		}
		return w.Flush()
	}),
}

var matrixAddDrawingsCmd = &cobra.Command{
	Use:   "add-drawings <project> <file>...",
	Short: "Copy assembly drawings into the project and append them to the assembly matrix (requires --unlock)",
	Args:  cobra.MinimumNArgs(2),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if err := d.requireUnlock(); err != nil {
			return err
		}
		added, failed, err := d.onboarding.AddDrawings(cmd.Context(), args[0], args[1:], progressPrinter(cmd))
		if err != nil {
			return err
		}
		for _, r := range added {
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", r.A)
		}
		return copyFailures(cmd, failed)
	}),
}

// copyFailures prints each failed copy and returns an error when any failed.
func copyFailures(cmd *cobra.Command, failed []*apperr.FileCopyError) error {
	for _, f := range failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", f)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d file(s) could not be copied", len(failed))
	}
	return nil
}
