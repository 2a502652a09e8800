// Command bucketview browses an S3-compatible bucket as a folder tree, from
// the terminal or over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/bucketview/internal/activity"
	"github.com/koustreak/bucketview/internal/browser"
	"github.com/koustreak/bucketview/internal/config"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/koustreak/bucketview/internal/filestore/factory"
	"github.com/koustreak/bucketview/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bucketview",
		Short:         "bucketview - browse an object store bucket as folders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or console")

	root.AddCommand(
		newServeCmd(),
		newLsCmd(),
		newFindCmd(),
		newGetCmd(),
		newPutCmd(),
		newRmCmd(),
		newPresignCmd(),
		newActivityCmd(),
		newBucketsCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store filestore.Store
	svc   *browser.Service
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	log := logger.New(&cfg.Log)

	store, err := factory.Open(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}

	rec, err := activity.Open(ctx, &cfg.Activity)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	svc := browser.New(store, browser.Options{
		Bucket:         cfg.Store.DefaultBucket,
		ListingTTL:     cfg.Browser.ListingTTL,
		PresignDefault: cfg.Browser.PresignDefault,
		PresignMax:     cfg.Browser.PresignMax,
		SearchLimit:    cfg.Browser.SearchLimit,
		Recorder:       rec,
		Logger:         log,
	})

	return &app{cfg: cfg, log: log, store: store, svc: svc}, nil
}

func (a *app) Close() {
	a.svc.Close()
	if err := a.store.Close(); err != nil {
		a.log.ErrorWith("closing store", err, nil)
	}
}

// withApp adapts a command body that needs an app.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}
