package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session and verification clearance",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.engine.Status(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if st.Session != nil {
			fmt.Fprintf(w, "Session:\t%s (%s)\n", st.Session.Principal.ID, st.Session.Principal.Role)
			fmt.Fprintf(w, "  expires:\t%s\n", formatExpiry(st.Session.ExpiresAt))
		} else {
			fmt.Fprintln(w, "Session:\tnone")
		}
		if !st.ClearanceExpiresAt.IsZero() {
			fmt.Fprintf(w, "Verification:\tcleared until %s\n", formatExpiry(st.ClearanceExpiresAt))
		} else {
			fmt.Fprintln(w, "Verification:\tnot cleared")
		}
		fmt.Fprintf(w, "Storage:\t%s\n", a.cfg.Storage.Backend)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func formatExpiry(t time.Time) string {
	return fmt.Sprintf("%s (in %s)", t.Local().Format("2006-01-02 15:04"), time.Until(t).Round(time.Minute))
}
