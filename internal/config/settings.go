// Package config loads, defaults, and persists the daemon's TOML settings.
// Missing files and missing keys are filled with working defaults and
// written back, so a first run leaves a complete config on disk.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	defaultDaemonAddr         = ":9320"
	defaultClientMaxIdle      = 30 * time.Minute
	defaultFrontendTimeout    = 30 * time.Second
	defaultRefreshInterval    = 2 * time.Second
	defaultHistoryLimit       = 10
	defaultInstructionPacing  = 100 * time.Millisecond
	defaultScreenshotFormat   = "png"
	defaultScreenshotQuality  = 0.8
	defaultInstructionLogName = "instructions.json"
	defaultConfigDirName      = "bridged"
	defaultConfigFileName     = "config.toml"
)

// Settings is the parsed, validated runtime configuration.
type Settings struct {
	Path string

	DaemonAddr    string
	AgentToken    string
	AdminToken    string
	ClientMaxIdle time.Duration

	FrontendBaseURL string
	FrontendToken   string
	FrontendTimeout time.Duration

	ScreenshotsEnabled  bool
	ScreenshotWhitelist []string
	ScreenshotFormat    string
	ScreenshotQuality   float64
	ScreenshotFullPage  bool

	HistoryLimit       int
	InstructionPacing  time.Duration
	InstructionLogPath string

	LogLevel  string
	LogFormat string
	LogFile   string

	AdminBaseURL       string
	TUIRefreshInterval time.Duration
}

type fileConfig struct {
	Daemon      daemonConfig      `toml:"daemon"`
	Auth        authConfig        `toml:"auth"`
	Frontend    frontendConfig    `toml:"frontend"`
	Screenshots screenshotsConfig `toml:"screenshots"`
	Session     sessionConfig     `toml:"session"`
	Log         logConfig         `toml:"log"`
	TUI         tuiConfig         `toml:"tui"`
}

type daemonConfig struct {
	Addr          string `toml:"addr"`
	ClientMaxIdle string `toml:"client_max_idle"`
}

type authConfig struct {
	AgentToken string `toml:"agent_token"`
	AdminToken string `toml:"admin_token"`
}

type frontendConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	Timeout string `toml:"timeout"`
}

type screenshotsConfig struct {
	Enabled   bool     `toml:"enabled"`
	Whitelist []string `toml:"whitelist"`
	Format    string   `toml:"format"`
	Quality   float64  `toml:"quality"`
	FullPage  bool     `toml:"full_page"`
}

type sessionConfig struct {
	HistoryLimit      int    `toml:"history_limit"`
	InstructionPacing string `toml:"instruction_pacing"`
	InstructionLog    string `toml:"instruction_log"`
}

type logConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type tuiConfig struct {
	AdminBaseURL    string `toml:"admin_base_url"`
	RefreshInterval string `toml:"refresh_interval"`
}

// LoadOrCreate reads path (or the default location), merges it over
// defaults, generates any missing tokens, and writes the result back when
// anything changed.
func LoadOrCreate(path string) (Settings, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return Settings{}, err
		}
	}

	cfg := defaultFileConfig()
	exists := false
	if _, err := os.Stat(path); err == nil {
		exists = true
		var onDisk fileConfig
		if _, err := toml.DecodeFile(path, &onDisk); err != nil {
			return Settings{}, fmt.Errorf("decode config %s: %w", path, err)
		}
		mergeFileConfig(&cfg, onDisk)
	} else if !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("stat config %s: %w", path, err)
	}

	changed := false
	if strings.TrimSpace(cfg.Auth.AgentToken) == "" {
		cfg.Auth.AgentToken = randomToken()
		changed = true
	}
	if strings.TrimSpace(cfg.Auth.AdminToken) == "" {
		cfg.Auth.AdminToken = randomToken()
		changed = true
	}
	if strings.TrimSpace(cfg.TUI.AdminBaseURL) == "" {
		cfg.TUI.AdminBaseURL = deriveAdminBaseURL(cfg.Daemon.Addr)
		changed = true
	}
	if strings.TrimSpace(cfg.Session.InstructionLog) == "" {
		cfg.Session.InstructionLog = filepath.Join(filepath.Dir(path), defaultInstructionLogName)
		changed = true
	}

	if !exists || changed {
		if err := writeConfig(path, cfg); err != nil {
			return Settings{}, err
		}
	}

	return toSettings(path, cfg)
}

// Save persists settings and returns the normalized values read back from
// disk, including any tokens generated on the way.
func Save(settings Settings) (Settings, error) {
	path := strings.TrimSpace(settings.Path)
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return Settings{}, err
		}
	}

	cfg := defaultFileConfig()
	mergeFileConfig(&cfg, fileConfig{
		Daemon: daemonConfig{
			Addr:          settings.DaemonAddr,
			ClientMaxIdle: durationString(settings.ClientMaxIdle),
		},
		Auth: authConfig{
			AgentToken: settings.AgentToken,
			AdminToken: settings.AdminToken,
		},
		Frontend: frontendConfig{
			BaseURL: settings.FrontendBaseURL,
			Token:   settings.FrontendToken,
			Timeout: durationString(settings.FrontendTimeout),
		},
		Screenshots: screenshotsConfig{
			Enabled:   settings.ScreenshotsEnabled,
			Whitelist: settings.ScreenshotWhitelist,
			Format:    settings.ScreenshotFormat,
			Quality:   settings.ScreenshotQuality,
			FullPage:  settings.ScreenshotFullPage,
		},
		Session: sessionConfig{
			HistoryLimit:      settings.HistoryLimit,
			InstructionPacing: durationString(settings.InstructionPacing),
			InstructionLog:    settings.InstructionLogPath,
		},
		Log: logConfig{
			Level:  settings.LogLevel,
			Format: settings.LogFormat,
			File:   settings.LogFile,
		},
		TUI: tuiConfig{
			AdminBaseURL:    settings.AdminBaseURL,
			RefreshInterval: durationString(settings.TUIRefreshInterval),
		},
	})
	cfg.Screenshots.Enabled = settings.ScreenshotsEnabled
	cfg.Screenshots.FullPage = settings.ScreenshotFullPage

	if err := writeConfig(path, cfg); err != nil {
		return Settings{}, err
	}
	return LoadOrCreate(path)
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", defaultConfigDirName, defaultConfigFileName), nil
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Daemon: daemonConfig{
			Addr:          defaultDaemonAddr,
			ClientMaxIdle: defaultClientMaxIdle.String(),
		},
		Frontend: frontendConfig{
			Timeout: defaultFrontendTimeout.String(),
		},
		Screenshots: screenshotsConfig{
			Format:  defaultScreenshotFormat,
			Quality: defaultScreenshotQuality,
		},
		Session: sessionConfig{
			HistoryLimit:      defaultHistoryLimit,
			InstructionPacing: defaultInstructionPacing.String(),
		},
		Log: logConfig{
			Level:  "info",
			Format: "console",
		},
		TUI: tuiConfig{
			RefreshInterval: defaultRefreshInterval.String(),
		},
	}
}

func mergeFileConfig(dst *fileConfig, src fileConfig) {
	if v := strings.TrimSpace(src.Daemon.Addr); v != "" {
		dst.Daemon.Addr = v
	}
	if v := strings.TrimSpace(src.Daemon.ClientMaxIdle); v != "" {
		dst.Daemon.ClientMaxIdle = v
	}
	if v := strings.TrimSpace(src.Auth.AgentToken); v != "" {
		dst.Auth.AgentToken = v
	}
	if v := strings.TrimSpace(src.Auth.AdminToken); v != "" {
		dst.Auth.AdminToken = v
	}
	if v := strings.TrimSpace(src.Frontend.BaseURL); v != "" {
		dst.Frontend.BaseURL = v
	}
	if v := strings.TrimSpace(src.Frontend.Token); v != "" {
		dst.Frontend.Token = v
	}
	if v := strings.TrimSpace(src.Frontend.Timeout); v != "" {
		dst.Frontend.Timeout = v
	}
	if src.Screenshots.Enabled {
		dst.Screenshots.Enabled = true
	}
	if len(src.Screenshots.Whitelist) > 0 {
		dst.Screenshots.Whitelist = src.Screenshots.Whitelist
	}
	if v := strings.TrimSpace(src.Screenshots.Format); v != "" {
		dst.Screenshots.Format = v
	}
	if src.Screenshots.Quality > 0 {
		dst.Screenshots.Quality = src.Screenshots.Quality
	}
	if src.Screenshots.FullPage {
		dst.Screenshots.FullPage = true
	}
	if src.Session.HistoryLimit > 0 {
		dst.Session.HistoryLimit = src.Session.HistoryLimit
	}
	if v := strings.TrimSpace(src.Session.InstructionPacing); v != "" {
		dst.Session.InstructionPacing = v
	}
	if v := strings.TrimSpace(src.Session.InstructionLog); v != "" {
		dst.Session.InstructionLog = v
	}
	if v := strings.TrimSpace(src.Log.Level); v != "" {
		dst.Log.Level = v
	}
	if v := strings.TrimSpace(src.Log.Format); v != "" {
		dst.Log.Format = v
	}
	if v := strings.TrimSpace(src.Log.File); v != "" {
		dst.Log.File = v
	}
	if v := strings.TrimSpace(src.TUI.AdminBaseURL); v != "" {
		dst.TUI.AdminBaseURL = v
	}
	if v := strings.TrimSpace(src.TUI.RefreshInterval); v != "" {
		dst.TUI.RefreshInterval = v
	}
}

func toSettings(path string, cfg fileConfig) (Settings, error) {
	maxIdle, err := time.ParseDuration(cfg.Daemon.ClientMaxIdle)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid daemon.client_max_idle duration: %w", err)
	}
	frontendTimeout, err := time.ParseDuration(cfg.Frontend.Timeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid frontend.timeout duration: %w", err)
	}
	pacing, err := time.ParseDuration(cfg.Session.InstructionPacing)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid session.instruction_pacing duration: %w", err)
	}
	refresh, err := time.ParseDuration(cfg.TUI.RefreshInterval)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid tui.refresh_interval duration: %w", err)
	}
	if cfg.Screenshots.Quality < 0 || cfg.Screenshots.Quality > 1 {
		return Settings{}, fmt.Errorf("screenshots.quality %v outside [0,1]", cfg.Screenshots.Quality)
	}

	return Settings{
		Path:                path,
		DaemonAddr:          cfg.Daemon.Addr,
		AgentToken:          cfg.Auth.AgentToken,
		AdminToken:          cfg.Auth.AdminToken,
		ClientMaxIdle:       maxIdle,
		FrontendBaseURL:     cfg.Frontend.BaseURL,
		FrontendToken:       cfg.Frontend.Token,
		FrontendTimeout:     frontendTimeout,
		ScreenshotsEnabled:  cfg.Screenshots.Enabled,
		ScreenshotWhitelist: cfg.Screenshots.Whitelist,
		ScreenshotFormat:    cfg.Screenshots.Format,
		ScreenshotQuality:   cfg.Screenshots.Quality,
		ScreenshotFullPage:  cfg.Screenshots.FullPage,
		HistoryLimit:        cfg.Session.HistoryLimit,
		InstructionPacing:   pacing,
		InstructionLogPath:  cfg.Session.InstructionLog,
		LogLevel:            cfg.Log.Level,
		LogFormat:           cfg.Log.Format,
		LogFile:             cfg.Log.File,
		AdminBaseURL:        cfg.TUI.AdminBaseURL,
		TUIRefreshInterval:  refresh,
	}, nil
}

func writeConfig(path string, cfg fileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString("# bridged daemon and bridge-tui config\n\n"); err != nil {
		return fmt.Errorf("write config header: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func deriveAdminBaseURL(addr string) string {
	host := strings.TrimSpace(addr)
	if host == "" {
		host = defaultDaemonAddr
	}
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	if strings.HasPrefix(host, ":") {
		return "http://127.0.0.1" + host
	}
	h, p, err := net.SplitHostPort(host)
	if err == nil {
		if h == "" || h == "0.0.0.0" || h == "::" || h == "[::]" {
			h = "127.0.0.1"
		}
		return "http://" + net.JoinHostPort(h, p)
	}
	if strings.Contains(host, ":") {
		return "http://" + host
	}
	return "http://" + net.JoinHostPort(host, "9320")
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
