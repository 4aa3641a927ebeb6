package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"npitrack/internal/auth"
)

func init() {
	rootCmd.AddCommand(unlockCmd)
	unlockCmd.AddCommand(unlockHashCmd)
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Manage the edit-unlock token",
}

var unlockHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Read a token from stdin and print its bcrypt hash for security.unlock_hash",
	Long: `Read the unlock token from the first line of stdin and print the hash to put
in npitrack.yaml (security.unlock_hash) or NPI_SECURITY_UNLOCK_HASH.

Example:
  printf '%s\n' "$TOKEN" | npitrack unlock hash`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		token := strings.TrimRight(line, "\r\n")
		if token == "" {
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			return errors.New("empty token")
		}
		if err := auth.ValidateTokenStrength(token); err != nil {
			return err
		}
		hash, err := auth.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
