package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the stored session and verification clearance",
	Long: `Remove the stored session credential and verification clearance from
the configured storage backend. The next request is sent signed out and
may require a fresh verification.

Examples:
  # Interactive confirmation
  reelgate reset

  # No prompt
  reelgate reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	where := a.cfg.Storage.Backend
	if a.cfg.Storage.Path != "" {
		where += " " + a.cfg.Storage.Path
	}

	if !resetForce {
		fmt.Fprintf(os.Stderr, "Forget the session and clearance stored in %s? [y/N] ", where)
		var answer string
		fmt.Scanln(&answer) //nolint:errcheck // interactive prompt, error irrelevant
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	if err := a.engine.Forget(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Reset complete.")
	return nil
}
