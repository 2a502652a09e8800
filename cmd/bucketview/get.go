package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koustreak/bucketview/internal/browser"
	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/keypath"
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key> [dest]",
		Short: "Download an object; dest defaults to its name, - writes to stdout",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			dest := keypath.Base(args[0])
			if len(args) == 2 {
				dest = args[1]
			}
			n, err := download(cmd.Context(), a.svc, args[0], dest, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if dest != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "downloaded %s to %s (%s)\n", args[0], dest, humanize.Bytes(uint64(n)))
			}
			return nil
		}),
	}
}

// download copies the object at key into dest, or into stdout when dest
// is "-". A partially written file is removed.
func download(ctx context.Context, svc *browser.Service, key, dest string, stdout io.Writer) (int64, error) {
	obj, err := svc.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	if dest == "-" {
		return io.Copy(stdout, obj)
	}
	if dest == "" {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "key %q has no file name; pass a destination", key)
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindInvalidInput, "create local file", err)
	}
	n, err := io.Copy(f, obj)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return 0, errs.Wrap(errs.ErrKindOperationFailed, "write local file", err)
	}
	return n, nil
}

func newBucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List the buckets the credentials can see",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			buckets, err := a.svc.Buckets(cmd.Context())
			if err != nil {
				return err
			}
			printBuckets(cmd.OutOrStdout(), a.svc.Bucket(), buckets, time.Now())
			return nil
		}),
	}
}

// printBuckets marks the configured bucket with "*".
func printBuckets(w io.Writer, current string, buckets []filestore.BucketInfo, now time.Time) {
	if len(buckets) == 0 {
		fmt.Fprintln(w, "no buckets visible")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range buckets {
		mark := " "
		if b.Name == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\n", mark, b.Name, modified(b.CreatedAt, now))
	}
	_ = tw.Flush()
}
