package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koustreak/bucketview/internal/hierarchy"
	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List one folder level of the bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			level, err := a.svc.Browse(cmd.Context(), path)
			if err != nil {
				return err
			}
			printLevel(cmd.OutOrStdout(), a.svc.Bucket(), level, time.Now())
			return nil
		}),
	}
}

func newFindCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Find files whose key contains query",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			files, err := a.svc.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files, time.Now())
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum results (0 uses browser.search_limit)")
	return cmd
}

// printLevel writes a breadcrumb line followed by one row per entry.
func printLevel(w io.Writer, bucket string, level hierarchy.Level, now time.Time) {
	crumbs := []string{bucket}
	for _, b := range level.Breadcrumbs {
		crumbs = append(crumbs, b.Name)
	}
	fmt.Fprintln(w, strings.Join(crumbs, " / "))

	if len(level.Entries) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range level.Entries {
		switch v := e.(type) {
		case hierarchy.Folder:
			fmt.Fprintf(tw, "  %s/\t-\t-\n", v.Name)
		case hierarchy.File:
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", v.Name, v.SizeHuman(), modified(v.LastModified, now))
		}
	}
	_ = tw.Flush()

	s := level.Summary()
	fmt.Fprintf(w, "%d folders, %d files, %s\n", s.Folders, s.Files, humanize.Bytes(uint64(s.Bytes)))
}

func printFiles(w io.Writer, files []hierarchy.File, now time.Time) {
	if len(files) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Key, f.SizeHuman(), modified(f.LastModified, now))
	}
	_ = tw.Flush()
}

func modified(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
