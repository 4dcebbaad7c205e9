package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/mortality-audit/internal/config"
	"github.com/KaramelBytes/mortality-audit/internal/logger"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "mortaudit",
	Short: "Mortality audit: monthly pediatric mortality dashboard and reports",
	Long: `mortaudit validates monthly admission/outcome exports (CSV, TSV, XLSX), derives
canonical fields and produces mortality audit reports, either from the command line
or through the browser dashboard started with 'mortaudit serve'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.mortaudit/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to defaults via effectiveConfig
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	if debug {
		c.LogLevel = "debug"
	}
	cfg = c
}

// effectiveConfig returns the loaded configuration, loading it on demand when
// the command runs outside Execute (tests) or the config file was unreadable.
func effectiveConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		c.LogLevel = "debug"
	}
	cfg = c
	return cfg, nil
}

// newLogger builds the process logger from configuration.
func newLogger(c *cfgpkg.Global) (*zap.Logger, error) {
	log, err := logger.New(c.Log())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
