// Command npitrack tracks NPI projects: metadata, MES workflow, configuration
// matrices, the handover checklist and supporting documents, and assembles the
// handover package.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"npitrack/internal/models"
)

var (
	// configPath is the YAML config file; a missing file means defaults.
	configPath string
	// unlockToken authorizes edits to metadata, workflow and matrices.
	unlockToken string
	outputJSON  bool
	version     = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "npitrack",
	Short: "Track NPI projects and assemble handover packages",
	Long: `npitrack keeps the record of new product introduction projects: project
metadata, the MES workflow, assembly/build/machine matrices, the handover
checklist and categorized documents. It renders the project report and
archives the project directory into a handover package.

Configuration is read from npitrack.yaml (see --config) and NPI_* environment
variables, e.g. NPI_DATABASE_PATH or NPI_SECURITY_UNLOCK_HASH.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "npitrack.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&unlockToken, "unlock", os.Getenv("NPI_UNLOCK"), "edit unlock token (default $NPI_UNLOCK)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressPrinter reports long-running steps on stderr.
func progressPrinter(cmd *cobra.Command) models.ProgressFunc {
	return func(ev models.ProgressEvent) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s %s\n", ev.Done, ev.Total, ev.Op, ev.Step)
	}
}
