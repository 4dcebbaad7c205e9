package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/mortality-audit/internal/dashboard"
	"github.com/KaramelBytes/mortality-audit/internal/metrics"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mortality audit dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			c.ServerHost = serveHost
		}
		if cmd.Flags().Changed("port") {
			c.ServerPort = servePort
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		log, err := newLogger(c)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if c.LogLevel == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := dashboard.NewServer(c, log, metrics.NewCollector("mortaudit"))
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("starting dashboard",
			zap.String("addr", c.Addr()),
			zap.Duration("session_ttl", c.SessionTTL()),
			zap.Int64("upload_max_bytes", c.UploadMaxBytes))
		fmt.Printf("✓ Dashboard on http://%s (Ctrl+C to stop)\n", c.Addr())
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server_host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "P", 0, "listen port (overrides server_port)")
}
