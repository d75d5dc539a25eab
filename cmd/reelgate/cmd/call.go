package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelgate/reelgate/internal/domain/gate"
)

var callHeaders []string

var callCmd = &cobra.Command{
	Use:   "call METHOD PATH [BODY]",
	Short: "Send a raw request through the gates",
	Long: `Send an arbitrary request to the directory API with the stored
session attached. If the directory asks for verification the request is
held and a challenge is shown; the request is sent again once it is
solved.

Examples:
  reelgate call GET /videos?q=lecture
  reelgate call POST /collections/c1/videos '{"videoId":"v1"}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringArrayVarP(&callHeaders, "header", "H", nil, "extra request header, 'Name: value'")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	call := &gate.Call{
		Method: strings.ToUpper(args[0]),
		Path:   args[1],
		Header: http.Header{},
	}
	if !strings.HasPrefix(call.Path, "/") {
		return fmt.Errorf("path %q must start with /", call.Path)
	}
	if len(args) == 3 {
		call.Body = []byte(args[2])
		call.Header.Set("Content-Type", "application/json")
	}
	for _, h := range callHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("header %q: want 'Name: value'", h)
		}
		call.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	a, err := openApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	var resp *gate.Response
	err = a.run(cmd.Context(), func(ctx context.Context) error {
		var err error
		resp, err = a.engine.Do(ctx, call)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	_, _ = os.Stdout.Write(resp.Body)
	if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		fmt.Println()
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
