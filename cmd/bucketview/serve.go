package main

import (
	"github.com/koustreak/bucketview/internal/api"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			h := api.NewHandler(a.svc, a.cfg, a.log)
			a.log.With().
				Str("provider", string(a.cfg.Store.Provider)).
				Str("bucket", a.cfg.Store.DefaultBucket).
				Logger().
				Info("starting bucketview")
			return api.NewServer(h, a.cfg.Server, a.log).Run(cmd.Context())
		}),
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")
	return cmd
}
