package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelgate/reelgate/internal/domain/session"
)

var (
	username string
	password string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in to the directory. The session credential is stored in the
configured storage backend and attached to every later request.

If --password is omitted it is read from the first line of stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSignIn(cmd.Context(), false)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSignIn(cmd.Context(), true)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.engine.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Signed out.")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&username, "username", "u", "", "account name")
		c.Flags().StringVarP(&password, "password", "p", "", "password (default: read from stdin)")
		_ = c.MarkFlagRequired("username")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(logoutCmd)
}

func runSignIn(ctx context.Context, register bool) error {
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	pw := password
	if pw == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		if pw, err = newPrompter(os.Stdin, os.Stderr).readLine(); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	var s *session.Session
	if register {
		s, err = a.engine.Register(ctx, username, pw)
	} else {
		s, err = a.engine.Login(ctx, username, pw)
	}
	if err != nil {
		return err
	}

	name := s.Principal.DisplayName
	if name == "" {
		name = username
	}
	fmt.Fprintf(os.Stderr, "Signed in as %s until %s.\n", name, s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}
