package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"npitrack/internal/catalog"
	"npitrack/internal/report"
)

var (
	docsCategory string
	docsGrouped  bool
	docsProject  string
	docsPath     string
	docsOutput   string
)

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsAddCmd, docsListCmd, docsRmCmd, docsPDFCmd)

	docsListCmd.Flags().StringVar(&docsCategory, "category", "", "only list this category")
	docsListCmd.Flags().BoolVar(&docsGrouped, "grouped", false, "group files by category")
	docsRmCmd.Flags().StringVar(&docsProject, "project", "", "project whose rows are removed by --path")
	docsRmCmd.Flags().StringVar(&docsPath, "path", "", "remove every row of --project with exactly this path")
	docsPDFCmd.Flags().StringVarP(&docsOutput, "output", "o", "", "output file (default <project>_Documents.pdf in the project directory)")
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Import, list and remove handover documents",
}

var docsAddCmd = &cobra.Command{
	Use:   "add <project> <category> <file>...",
	Short: "Copy files into the project's category folder and catalog them",
	Long: `Copy each file into <project dir>/<Category_Folder>/ and record it in the
catalog. A file that cannot be copied is reported and the rest are imported.

Example:
  npitrack docs add Widget-A "Stencil, Tools & Fixtures" stencil.pdf fixture.step`,
	Args: cobra.MinimumNArgs(3),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		res, err := d.onboarding.ImportDocuments(cmd.Context(), args[0], args[1], args[2:], progressPrinter(cmd))
		if err != nil {
			return err
		}
		if outputJSON {
			if err := printJSON(cmd.OutOrStdout(), res.Added); err != nil {
				return err
			}
		} else {
			for _, doc := range res.Added {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", doc.ID, doc.Path)
			}
		}
		return copyFailures(cmd, res.Failed)
	}),
}

var docsListCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "List the project's catalogued documents",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		p, err := d.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		docs, err := d.catalog.List(cmd.Context(), p.ID, docsCategory)
		if err != nil {
			return err
		}
		if docsGrouped {
			groups := catalog.GroupByCategory(docs)
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), groups)
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", g.Category)
				for _, f := range g.Files {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
				}
			}
			return nil
		}
		if outputJSON {
			return printJSON(cmd.OutOrStdout(), docs)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCategory\tPath")
		for _, doc := range docs {
			fmt.Fprintf(w, "%d\t%s\t%s\n", doc.ID, doc.Category, doc.Path)
		}
		return w.Flush()
	}),
}

var docsRmCmd = &cobra.Command{
	Use:   "rm [doc-id]",
	Short: "Remove catalog rows by id, or by --project and --path",
	Long: `Remove catalog rows. Files on disk are left in place.

Examples:
  npitrack docs rm 42
  npitrack docs rm --project Widget-A --path Quality_Documents/ppap.pdf`,
	Args: cobra.MaximumNArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			removed, err := d.catalog.Remove(ctx, id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("document %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d removed\n", id)
			return nil
		}
		if docsProject == "" || docsPath == "" {
			return errors.New("give a document id, or both --project and --path")
		}
		p, err := d.store.GetProject(ctx, docsProject)
		if err != nil {
			return err
		}
		n, err := d.catalog.RemoveByPath(ctx, p.ID, docsPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) removed\n", n)
		return nil
	}),
}

var docsPDFCmd = &cobra.Command{
	Use:   "pdf <project>",
	Short: "Export the catalogued documents, one row per category, as a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: withDeps(func(cmd *cobra.Command, args []string, d *deps) error {
		p, dir, err := d.onboarding.ProjectDir(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		docs, err := d.catalog.List(cmd.Context(), p.ID, "")
		if err != nil {
			return err
		}
		groups := catalog.GroupByCategory(docs)
		view := make([]report.DocumentGroup, len(groups))
		for i, g := range groups {
			view[i] = report.DocumentGroup{Category: g.Category, Files: g.Files}
		}
		out := docsOutput
		if out == "" {
			out = filepath.Join(dir, p.Name+"_Documents.pdf")
		}
		if err := report.WriteFile(report.DocumentList(filepath.Base(dir), view, time.Now()), out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "document list written to %s\n", out)
		return nil
	}),
}
