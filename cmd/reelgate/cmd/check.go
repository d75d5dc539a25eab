package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether the directory currently requires verification",
	Long: `Check the stored verification clearance and, if there is none, ask
the directory whether verification is currently required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		required, err := a.engine.Bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		if required {
			fmt.Println("verification required")
		} else {
			fmt.Println("no verification required")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
