package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scope/pkg/api"
	"scope/pkg/notify"
	tracing "scope/pkg/observability"
)

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the helpers over a local HTTP API",
	Long: `Serve the helpers over HTTP on 127.0.0.1:$SCOPE_API_PORT.

Failed builds post their advisory to /api/v1/notifications, where it stays for
$SCOPE_ADVISORY_SECONDS or until dismissed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traceCfg := tracing.DefaultConfig("scope")
	traceCfg.Enabled = cfg.TracingEnabled
	traceCfg.Endpoint = cfg.OTLPEndpoint
	traceCfg.Environment = cfg.Environment
	tp, err := tracing.Init(ctx, traceCfg)
	if err != nil {
		return err
	}

	shells := newShellManager(cmd)
	feed := notify.NewFeed(log)
	server := api.NewServer(api.Config{
		Port:          cfg.APIPort,
		Workspace:     currentWorkspace(),
		Locator:       newLocator(),
		Builds:        newBuildRunner(shells, feed),
		Notifications: feed,
		Theme:         newThemeReader(),
		BuildCommand:  cfg.BuildCommand,
		APIToken:      cfg.APIToken,
		ServiceName:   "scope",
		Logger:        log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if cerr := shells.Close(shutdownCtx); cerr != nil {
			log.Warn("Failed to close terminals", zap.Error(cerr))
		}
		if terr := tp.Shutdown(shutdownCtx); terr != nil {
			log.Warn("Failed to flush traces", zap.Error(terr))
		}
		return err
	})

	log.Info("Serving",
		zap.String("workspace", cfg.Workspace),
		zap.String("port", cfg.APIPort),
		zap.Bool("auth", cfg.APIToken != ""),
	)
	return g.Wait()
}
