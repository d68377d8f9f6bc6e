package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/gomarketplace/pkg/cart"
	"github.com/vango-dev/gomarketplace/pkg/httpapi"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cart over HTTP",
		Long: `Serve the cart over HTTP.

The cart is loaded from storage in the background; requests made before
loading finishes act on an empty cart.

Examples:
  marketplace serve
  marketplace serve --addr=:9090
  marketplace serve --config=prod.json --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from marketplace.json)")

	return cmd
}

func runServe(ctx context.Context, flags *globalFlags, addr string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	if addr == "" {
		addr = cfg.Address()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := cart.NewMetrics(cart.WithRegistry(reg))

	store, closeStore, err := openStore(ctx, cfg, logger, cart.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer closeStore()

	logger.Info("cart store started",
		"backend", cfg.Storage.Backend,
		"key", store.Key(),
	)

	srv := httpapi.New(store, httpapi.Config{
		Address:  addr,
		Logger:   logger.With("component", "httpapi"),
		Gatherer: reg,
	})
	return srv.Run(ctx)
}
