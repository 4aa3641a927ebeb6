package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"npitrack/internal/apperr"
	"npitrack/internal/handover"
	"npitrack/internal/report"
)

var (
	hoBOMSheet string
	hoOutput   string

	bomFilter string
	bomSort   string
	bomDesc   bool
	bomPDF    string
)

var errNoWorkbook = errors.New("no workbook configured (workbook.path)")

func init() {
	rootCmd.AddCommand(handoverCmd, bomCmd)
	bomCmd.AddCommand(bomSheetsCmd, bomShowCmd, bomImportCmd)

	handoverCmd.Flags().StringVar(&hoBOMSheet, "bom", "", "workbook sheet to export into the project directory first")
	handoverCmd.Flags().StringVarP(&hoOutput, "output", "o", "", "archive path (default Handover_<dir>_<timestamp>.zip next to the project directory)")

	bomShowCmd.Flags().StringVar(&bomFilter, "filter", "", "only rows with a cell containing this text (case-insensitive)")
	bomShowCmd.Flags().StringVar(&bomSort, "sort", "", "sort rows by this column")
	bomShowCmd.Flags().BoolVar(&bomDesc, "desc", false, "sort in descending order")
	bomShowCmd.Flags().StringVar(&bomPDF, "pdf", "", "write the shown rows to this PDF instead of printing them")
}

var handoverCmd = &cobra.Command{
	Use:   "handover <project>",
	Short: "Export the BOM, render the handover report and zip the project directory",
	Long: `Assemble the handover package: optionally export a BOM sheet, render the
handover report PDF into the project directory and zip the whole directory.
BOM export and report failures are printed as warnings; only a failed archive
ends the run with an error.

Example:
  npitrack handover Widget-A --bom Widget-A_BOM -o /tmp/widget-a.zip`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		req := handover.Request{
			Project:     args[0],
			BOMSheet:    hoBOMSheet,
			ArchivePath: hoOutput,
			Progress:    progressPrinter(cmd),
		}
		if snap, docs, err := handover.LocalView(d.layout, args[0]); err == nil {
			req.Snapshot, req.Documents = snap, docs
		}
		res, err := d.assembler.Assemble(cmd.Context(), req)
		if res != nil {
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
			}
		}
		if err != nil {
			return err
		}
		if outputJSON {
			warnings := make([]string, 0, len(res.Warnings))
			for _, w := range res.Warnings {
				warnings = append(warnings, w.Error())
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"run_id":       res.RunID,
				"bom_path":     res.BOMPath,
				"report_path":  res.ReportPath,
				"archive_path": res.ArchivePath,
				"files":        res.Archive.Files,
				"bytes":        res.Archive.Bytes,
				"warnings":     warnings,
			})
		}
		out := cmd.OutOrStdout()
		if res.BOMPath != "" {
			fmt.Fprintf(out, "BOM:     %s\n", res.BOMPath)
		}
		if res.ReportPath != "" {
			fmt.Fprintf(out, "Report:  %s\n", res.ReportPath)
		}
		fmt.Fprintf(out, "Archive: %s (%d files, %s)\n", res.ArchivePath, res.Archive.Files, res.ArchiveSize)
		return nil
	}),
}

var bomCmd = &cobra.Command{
	Use:   "bom",
	Short: "List, view or replace BOM sheets of the master workbook",
}

var bomSheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "List the workbook's BOM sheets",
	Args:  cobra.NoArgs,
	RunE: withDeps(func(cmd *cobra.Command, _ []string, d *deps) error {
		if d.workbook == nil {
			return &apperr.ExternalSourceError{Source: "workbook", Err: errNoWorkbook}
		}
		sheets, err := d.workbook.BOMSheets()
		if err != nil {
			return err
		}
		return printNames(cmd, sheets)
	}),
}

var bomShowCmd = &cobra.Command{
	Use:   "show <sheet>",
	Short: "Show one BOM sheet, optionally filtered, sorted or exported to PDF",
	Long: `Print a workbook sheet as a table. --filter keeps rows where any cell
contains the text, --sort orders by a column (numbers numerically) and --pdf
writes the resulting rows to a PDF.

Example:
  npitrack bom show Widget-A_BOM --filter resistor --sort Qty --desc --pdf bom.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if d.workbook == nil {
			return &apperr.ExternalSourceError{Source: "workbook", Sheet: args[0], Err: errNoWorkbook}
		}
		t, err := d.workbook.ReadTable(args[0])
		if err != nil {
			return err
		}
		t.Filter(bomFilter)
		if bomSort != "" {
			if err := t.SortBy(bomSort, bomDesc); err != nil {
				return err
			}
		}
		rows := t.Records()
		if bomPDF != "" {
			if err := report.WriteFile(report.BOM(args[0], t.Columns, rows, time.Now()), bomPDF); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", len(rows), bomPDF)
			return nil
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), t.Rows)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(t.Columns, "\t"))
		for _, r := range rows {
			fmt.Fprintln(w, strings.Join(r, "\t"))
		}
		return w.Flush()
	}),
}

var bomImportCmd = &cobra.Command{
	Use:   "import <file.xlsx> <sheet>",
	Short: "Replace a workbook sheet with the first sheet of file.xlsx",
	Args:  cobra.ExactArgs(2),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		if d.workbook == nil {
			return &apperr.ExternalSourceError{Source: "workbook", Sheet: args[1], Err: errNoWorkbook}
		}
		rows, err := d.workbook.ImportSheet(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sheet %s replaced with %d rows\n", args[1], rows)
		return nil
	}),
}
