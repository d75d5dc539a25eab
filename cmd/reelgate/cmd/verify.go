package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Solve a verification challenge now",
	Long: `Fetch a verification challenge and answer it on the terminal. A
solved challenge grants a clearance valid for 24 hours, so later requests
are not held.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		return newPrompter(os.Stdin, os.Stderr).solve(cmd.Context(), a.engine)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
