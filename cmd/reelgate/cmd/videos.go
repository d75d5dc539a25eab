package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reelgate/reelgate/internal/adapter/outbound/api"
)

var videosPage int

var videosCmd = &cobra.Command{
	Use:   "videos [QUERY]",
	Short: "List or search videos",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			page, err := a.engine.Directory().ListVideos(ctx, query, videosPage)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tURL")
			for _, v := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Title, v.URL)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "page %d, %d total\n", page.Page, page.Total)
			return nil
		})
	},
}

var videoCmd = &cobra.Command{
	Use:   "video ID",
	Short: "Show one video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			v, err := a.engine.Directory().GetVideo(ctx, args[0])
			if err != nil {
				return err
			}
			printVideo(v)
			return nil
		})
	},
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List your collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			cols, err := a.engine.Directory().ListCollections(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVIDEOS")
			for _, c := range cols {
				fmt.Fprintf(w, "%s\t%s\t%d\n", c.ID, c.Name, len(c.VideoIDs))
			}
			return w.Flush()
		})
	},
}

var collectionsAddCmd = &cobra.Command{
	Use:   "add COLLECTION_ID VIDEO_ID",
	Short: "Add a video to a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if err := a.engine.Directory().AddToCollection(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Added %s to %s.\n", args[1], args[0])
			return nil
		})
	},
}

func init() {
	videosCmd.Flags().IntVar(&videosPage, "page", 0, "page number (default: first)")
	collectionsCmd.AddCommand(collectionsAddCmd)
	rootCmd.AddCommand(videosCmd, videoCmd, collectionsCmd)
}

// withApp opens a bootstrapped app and runs fn with interactive
// verification.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.run(ctx, func(ctx context.Context) error { return fn(ctx, a) })
}

func printVideo(v *api.Video) {
	fmt.Printf("%s\n  %s\n", v.Title, v.URL)
	if v.Description != "" {
		fmt.Printf("  %s\n", v.Description)
	}
	if len(v.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(v.Tags, ", "))
	}
	if !v.SubmittedAt.IsZero() {
		fmt.Printf("  submitted %s\n", v.SubmittedAt.Local().Format("2006-01-02"))
	}
}
