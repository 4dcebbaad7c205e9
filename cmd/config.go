package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/mortality-audit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set mortaudit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "server_host: %s\n", c.ServerHost)
		fmt.Fprintf(w, "server_port: %d\n", c.ServerPort)
		fmt.Fprintf(w, "read_timeout_sec: %d\n", c.ReadTimeoutSec)
		fmt.Fprintf(w, "write_timeout_sec: %d\n", c.WriteTimeoutSec)
		fmt.Fprintf(w, "shutdown_timeout_sec: %d\n", c.ShutdownTimeoutSec)
		fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(w, "log_format: %s\n", c.LogFormat)
		fmt.Fprintf(w, "session_ttl_min: %d\n", c.SessionTTLMin)
		fmt.Fprintf(w, "session_max: %d\n", c.SessionMax)
		fmt.Fprintf(w, "upload_max_bytes: %d\n", c.UploadMaxBytes)
		fmt.Fprintf(w, "max_rows: %d\n", c.MaxRows)
		fmt.Fprintf(w, "preview_rows: %d\n", c.PreviewRows)
		fmt.Fprintf(w, "rate_limit_rps: %.3f\n", c.RateLimitRPS)
		fmt.Fprintf(w, "rate_limit_burst: %d\n", c.RateLimitBurst)
		fmt.Fprintf(w, "histogram_bins: %d\n", c.HistogramBins)
		fmt.Fprintf(w, "duration_bins: %d\n", c.DurationBins)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		if err := applySetting(c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func applySetting(c *cfgpkg.Global, key, val string) error {
	intVal := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "server_host":
		c.ServerHost = val
	case "server_port":
		c.ServerPort, err = intVal(1)
	case "read_timeout_sec":
		c.ReadTimeoutSec, err = intVal(0)
	case "write_timeout_sec":
		c.WriteTimeoutSec, err = intVal(0)
	case "shutdown_timeout_sec":
		c.ShutdownTimeoutSec, err = intVal(0)
	case "log_level":
		switch val {
		case "debug", "info", "warn", "error":
			c.LogLevel = val
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		c.LogFormat = val
	case "session_ttl_min":
		c.SessionTTLMin, err = intVal(1)
	case "session_max":
		c.SessionMax, err = intVal(1)
	case "upload_max_bytes":
		n, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil || n <= 0 {
			return fmt.Errorf("invalid int for upload_max_bytes: %v", val)
		}
		c.UploadMaxBytes = n
	case "max_rows":
		c.MaxRows, err = intVal(0)
	case "preview_rows":
		c.PreviewRows, err = intVal(0)
	case "rate_limit_rps":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 {
			return fmt.Errorf("invalid float for rate_limit_rps: %v", val)
		}
		c.RateLimitRPS = f
	case "rate_limit_burst":
		c.RateLimitBurst, err = intVal(1)
	case "histogram_bins":
		c.HistogramBins, err = intVal(1)
	case "duration_bins":
		c.DurationBins, err = intVal(1)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}
