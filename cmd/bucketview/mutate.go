package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koustreak/bucketview/internal/activity"
	"github.com/koustreak/bucketview/internal/browser"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/spf13/cobra"
)

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <file> [folder]",
		Short: "Upload a local file into a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errs.Wrap(errs.ErrKindInvalidInput, "open local file", err)
			}
			defer f.Close()

			st, err := f.Stat()
			if err != nil {
				return errs.Wrap(errs.ErrKindInvalidInput, "stat local file", err)
			}

			var folder string
			if len(args) == 2 {
				folder = args[1]
			}
			key, err := a.svc.Upload(cmd.Context(), browser.UploadRequest{
				Folder:      folder,
				Filename:    filepath.Base(args[0]),
				Body:        f,
				Size:        st.Size(),
				ContentType: mime.TypeByExtension(filepath.Ext(args[0])),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s)\n", key, humanize.Bytes(uint64(st.Size())))
			return nil
		}),
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete an object",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := a.svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}
}

func newPresignCmd() *cobra.Command {
	var expires time.Duration
	cmd := &cobra.Command{
		Use:   "presign <key>",
		Short: "Print a time-limited download URL",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			p, err := a.svc.Presign(cmd.Context(), args[0], expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.URL)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s (%s)\n", p.ExpiresAt.Format(time.RFC3339), p.ExpiresIn)
			return nil
		}),
	}
	cmd.Flags().DurationVarP(&expires, "expires", "e", time.Hour, "Link lifetime, at most 168h")
	return cmd
}

func newActivityCmd() *cobra.Command {
	var (
		limit  int
		key    string
		action string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent uploads, deletes and presigns",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			events, err := a.svc.Activity(cmd.Context(), activity.Query{
				Key:    key,
				Action: activity.Action(action),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(w, "no activity recorded")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.At.Format(time.RFC3339), e.Action, e.Key, e.Detail)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Only events for this object key")
	cmd.Flags().StringVarP(&action, "action", "a", "", "Only upload, delete or presign events")
	return cmd
}
