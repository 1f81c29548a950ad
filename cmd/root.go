package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zignal/zignalapi/cmd/sessions"
	"github.com/zignal/zignalapi/cmd/users"
	"github.com/zignal/zignalapi/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "zignalapi",
	Short: "Zignal API server for trading signals and payments",
	Long: `Zignal API serves the trading-signals dashboard: sessions and profiles,
market data, deposits and withdrawals, payment links and the admin console.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		setupLogger(cfg)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	flags.String("site-url", "", "Public site URL (env: SITE_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: DEBUG)")

	_ = viper.BindPFlag(config.KeyDatabaseURL, flags.Lookup("db-url"))
	_ = viper.BindPFlag(config.KeyServerAddr, flags.Lookup("server-addr"))
	_ = viper.BindPFlag(config.KeySiteURL, flags.Lookup("site-url"))
	_ = viper.BindPFlag(config.KeyDebug, flags.Lookup("debug"))

	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(sessions.SessionsCmd)
}

func readConfigFile() error {
	if configFile == "" {
		return nil
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return nil
}

// setupLogger installs the process-wide slog handler. Debug runs get text
// output, everything else JSON.
func setupLogger(c *config.Config) {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if c.Debug {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("service", "zignalapi"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
