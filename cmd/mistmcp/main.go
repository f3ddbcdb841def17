package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mistmcp/internal/app"
)

const envPrefix = "MISTMCP"

type serveOptions struct {
	envFile    string
	configFile string
	cfg        app.ServeConfig
	logger     *zap.Logger
	cleanup    func()
}

func main() {
	opts := serveOptions{
		cfg:     app.DefaultServeConfig(),
		logger:  zap.NewNop(),
		cleanup: func() {},
	}

	root := &cobra.Command{
		Use:           "mistmcp",
		Short:         "MCP server for the Mist API with per-session tool visibility",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       app.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			cfg, err := resolveConfig(cmd.Flags(), opts.configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, cleanup, err := app.NewLogger(app.LoggingConfig{Debug: cfg.Debug, LogFile: cfg.LogFile})
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			opts.cfg = cfg
			opts.logger = logger
			opts.cleanup = cleanup
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			opts.cleanup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			application, err := app.InitializeApplication(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			err = application.Run()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	defaults := app.DefaultServeConfig()
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "optional config file (YAML, JSON or TOML) using the flag names as keys")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file with MIST_APITOKEN and MIST_HOST (defaults to MIST_ENV_FILE or ./.env)")
	flags.String("transport", defaults.Transport, "MCP transport (stdio or http)")
	flags.String("host", defaults.Host, "HTTP listen host")
	flags.Int("port", defaults.Port, "HTTP listen port")
	flags.String("path", defaults.Path, "HTTP endpoint path")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-file", "", "also write JSON logs to this file")
	flags.String("mode", defaults.Mode, "tool loading mode (managed, all or custom)")
	flags.String("catalog", "", "tool category catalog (YAML or JSON); empty uses the built-in catalog")
	flags.String("operations", "", "operation manifest (YAML or JSON); empty uses the built-in manifest")
	flags.String("response-format", defaults.ResponseFormat, "tool response format (json or string)")
	flags.Duration("session-timeout", defaults.SessionTimeout, "idle time after which a session expires")
	flags.Duration("sweep-interval", defaults.SweepInterval, "interval between expired session sweeps")
	flags.Bool("enable-write-tools", false, "allow enabling write tool categories")
	flags.Bool("disable-elicitation", false, "enable write categories without asking the user for confirmation (unsafe)")
	flags.String("metrics-addr", "", "listen address for /metrics, /healthz and /sessions (empty disables)")
	flags.String("mist-host", "", "Mist API host (env MIST_HOST)")
	flags.String("mist-apitoken", "", "Mist API token (env MIST_APITOKEN)")
	flags.Duration("mist-timeout", defaults.MistTimeout, "Mist API request timeout")

	if err := root.Execute(); err != nil {
		opts.logger.Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig merges defaults, the config file, MISTMCP_* environment
// variables and flags, in increasing precedence.
func resolveConfig(flags *pflag.FlagSet, configFile string) (app.ServeConfig, error) {
	v := viper.New()
	if configFile != "" {
		path, err := expandHome(configFile)
		if err != nil {
			return app.ServeConfig{}, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return app.ServeConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := app.DefaultServeConfig()
	v.SetDefault("transport", defaults.Transport)
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("path", defaults.Path)
	v.SetDefault("mode", defaults.Mode)
	v.SetDefault("response-format", defaults.ResponseFormat)
	v.SetDefault("session-timeout", defaults.SessionTimeout)
	v.SetDefault("sweep-interval", defaults.SweepInterval)
	v.SetDefault("mist-timeout", defaults.MistTimeout)

	if err := v.BindEnv("transport", envPrefix+"_TRANSPORT", envPrefix+"_TRANSPORT_MODE"); err != nil {
		return app.ServeConfig{}, err
	}
	if err := v.BindEnv("mist-host", envPrefix+"_MIST_HOST", "MIST_HOST"); err != nil {
		return app.ServeConfig{}, err
	}
	if err := v.BindEnv("mist-apitoken", envPrefix+"_MIST_APITOKEN", "MIST_APITOKEN"); err != nil {
		return app.ServeConfig{}, err
	}
	if err := v.BindPFlags(flags); err != nil {
		return app.ServeConfig{}, fmt.Errorf("bind flags: %w", err)
	}

	var cfg app.ServeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return app.ServeConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Normalize(), nil
}

// loadEnvFile loads dotenv values without overriding the process environment.
// An explicit file must exist; the implicit ./.env is optional.
func loadEnvFile(path string) error {
	if path == "" {
		path = os.Getenv("MIST_ENV_FILE")
	}
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	expanded, err := expandHome(path)
	if err != nil {
		return err
	}
	if err := godotenv.Load(expanded); err != nil {
		return fmt.Errorf("load env file %s: %w", expanded, err)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
