package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mistmcp/internal/domain"
	"mistmcp/internal/infra/operations"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ServeConfig is the fully resolved runtime configuration.
type ServeConfig struct {
	Transport string `mapstructure:"transport"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`

	Debug   bool   `mapstructure:"debug"`
	LogFile string `mapstructure:"log-file"`

	Mode           string `mapstructure:"mode"`
	CatalogPath    string `mapstructure:"catalog"`
	OperationsPath string `mapstructure:"operations"`
	ResponseFormat string `mapstructure:"response-format"`

	SessionTimeout   time.Duration `mapstructure:"session-timeout"`
	SweepInterval    time.Duration `mapstructure:"sweep-interval"`
	EnableWriteTools bool          `mapstructure:"enable-write-tools"`

	// DisableElicitation approves write categories without asking the user.
	DisableElicitation bool `mapstructure:"disable-elicitation"`

	MetricsAddr string `mapstructure:"metrics-addr"`

	MistHost    string        `mapstructure:"mist-host"`
	MistToken   string        `mapstructure:"mist-apitoken"`
	MistTimeout time.Duration `mapstructure:"mist-timeout"`
}

// DefaultServeConfig returns the configuration used when nothing is overridden.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{
		Transport:      domain.DefaultTransport,
		Host:           domain.DefaultHTTPHost,
		Port:           domain.DefaultHTTPPort,
		Path:           domain.DefaultHTTPPath,
		Mode:           string(domain.DefaultToolMode),
		ResponseFormat: domain.DefaultResponseFormat,
		SessionTimeout: domain.DefaultSessionTimeout,
		SweepInterval:  domain.DefaultSessionSweepInterval,
		MistTimeout:    domain.DefaultMistRequestTimeout,
	}
}

// Normalize lower-cases the enum-like settings.
func (c ServeConfig) Normalize() ServeConfig {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.ResponseFormat = strings.ToLower(strings.TrimSpace(c.ResponseFormat))
	return c
}

// ToolMode returns the parsed process default mode. Call Validate first.
func (c ServeConfig) ToolMode() domain.ToolMode {
	mode, err := domain.ParseToolMode(c.Mode)
	if err != nil {
		return domain.DefaultToolMode
	}
	return mode
}

func (c ServeConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects settings the server cannot run with.
func (c ServeConfig) Validate() error {
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Transport)) {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("transport %q is not supported (want stdio or http)", c.Transport))
	}
	if _, err := domain.ParseToolMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := operations.ParseResponseFormat(c.ResponseFormat); err != nil {
		errs = append(errs, err)
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, errors.New("session-timeout must be > 0"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep-interval must be > 0"))
	}
	if strings.EqualFold(strings.TrimSpace(c.Transport), TransportHTTP) {
		if c.Port <= 0 || c.Port > 65535 {
			errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
		}
		if !strings.HasPrefix(c.Path, "/") {
			errs = append(errs, fmt.Errorf("path %q must start with /", c.Path))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return domain.E(domain.CodeInvalidArgument, "validate config", "", err)
	}
	return nil
}
