package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/metrics"
	"github.com/abdul-hamid-achik/hitcron/packages/scheduler"
	"github.com/abdul-hamid-achik/hitcron/packages/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	// ShutdownTimeout bounds how long in-flight requests and firings may take to finish
	ShutdownTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP API",
	Long: `Register every active scheduled test from the store, fire them on
their cron expressions and serve the HTTP API until SIGINT or SIGTERM.

Examples:
  hitcron serve
  hitcron serve --addr :9090 --workspace workspace.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

var (
	addrFlag           string
	serveWorkspaceFlag string
	watchFlag          bool
)

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address, overrides http.addr")
	serveCmd.Flags().StringVarP(&serveWorkspaceFlag, "workspace", "w", "", "Import this workspace file on start")
	serveCmd.Flags().BoolVar(&watchFlag, "watch", false, "Re-import the workspace and reload schedules when it changes")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	if watchFlag && serveWorkspaceFlag == "" {
		return withExitCode(ExitUsageError, errors.New("--watch requires --workspace"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if serveWorkspaceFlag != "" {
		if _, err := importWorkspace(ctx, st, serveWorkspaceFlag); err != nil {
			return err
		}
	}

	loc, err := appConfig.Location()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	notifier, err := newNotifier()
	if err != nil {
		return err
	}
	locker, rdb, err := newLocker(ctx)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	collector := metrics.NewCollector()
	r := newRunner(st, collector)
	sched := scheduler.New(st, r, notifier, &scheduler.Config{
		Location: loc,
		Locker:   locker,
		LockTTL:  appConfig.Redis.LockTTL,
		Logger:   logger,
	})
	sched.Start()

	if _, err := sched.InitializeAllTasks(ctx); err != nil {
		_ = sched.Shutdown(context.Background())
		return withExitCode(ExitStoreError, err)
	}

	addr := appConfig.HTTP.Addr
	if addrFlag != "" {
		addr = addrFlag
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(r, st, sched, logger, server.WithMetrics(collector)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", addr).Info("http api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		httpErr := httpServer.Shutdown(shutdownCtx)
		schedErr := sched.Shutdown(shutdownCtx)
		return errors.Join(httpErr, schedErr)
	})

	if watchFlag {
		g.Go(func() error {
			return watchWorkspace(gctx, serveWorkspaceFlag, func() {
				if _, err := importWorkspace(gctx, st, serveWorkspaceFlag); err != nil {
					logger.WithError(err).Error("workspace reload failed")
					return
				}
				if _, err := sched.InitializeAllTasks(gctx); err != nil {
					logger.WithError(err).Error("schedule reload failed")
				}
			})
		})
	}

	return g.Wait()
}
