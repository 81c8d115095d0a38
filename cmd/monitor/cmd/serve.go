package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ntp-monitor/internal/database"
	"ntp-monitor/internal/monitor"
	"ntp-monitor/internal/ntpclient"
	"ntp-monitor/internal/stats"
	"ntp-monitor/internal/web"
)

const shutdownTimeout = 10 * time.Second

func init() {
	RootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the probe scheduler and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}

		db, err := database.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		if err := db.InitSchema(); err != nil {
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}

		prober, err := ntpclient.New(cfg.Client)
		if err != nil {
			return err
		}

		st := stats.New()
		mon := monitor.New(cfg, db, prober, monitor.WithStats(st))
		webServer, err := web.New(db, cfg, st.Handler())
		if err != nil {
			return err
		}

		webErr := make(chan error, 1)
		go func() {
			webErr <- webServer.Start()
		}()

		if err := mon.Start(); err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}

		if _, err := daemon.SdNotify(false, "READY=1"); err != nil {
			log.Warningf("Failed to notify systemd: %v", err)
		}
		log.Infof("Web interface available at http://localhost:%d", cfg.Port)

		// Handle interrupt for graceful shutdown
		sigStop := make(chan os.Signal, 1)
		signal.Notify(sigStop, syscall.SIGINT, syscall.SIGTERM)

		var runErr error
		select {
		case sig := <-sigStop:
			log.Warningf("Received %v, shutting down", sig)
		case err := <-webErr:
			runErr = fmt.Errorf("web server stopped: %w", err)
			log.Error(runErr)
		}

		_, _ = daemon.SdNotify(false, "STOPPING=1")
		mon.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := webServer.Shutdown(ctx); err != nil {
			log.Warningf("Web server shutdown: %v", err)
		}

		mon.Wait()
		return runErr
	},
}
