package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/morning-glow/internal/logger"
)

// Config holds the settings shared by glow-server and glowctl.
type Config struct {
	// ServerAddress is the gRPC address of the alarm daemon.
	ServerAddress string `yaml:"server_addr"`
	// MetricsAddress is the optional HTTP listen address for /metrics and /healthz.
	MetricsAddress string `yaml:"metrics_addr"`
	// AlarmsFile is the path to the JSON file storing the alarm list.
	AlarmsFile string `yaml:"alarms_file"`
	// DataDir holds the blob store (uploaded sounds, cached quote).
	DataDir string `yaml:"data_dir"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// Timezone is the IANA zone alarms are scheduled in. Empty means the local zone.
	Timezone string `yaml:"timezone"`
	// TickInterval is how often the scheduler checks for due alarms.
	TickInterval time.Duration `yaml:"tick_interval"`
	// Volume is the playback volume in [0, 1].
	Volume float64 `yaml:"volume"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format"`
	// Player configures the audio backend.
	Player PlayerConfig `yaml:"player"`
	// Quote configures the inspirational quote source.
	Quote QuoteConfig `yaml:"quote"`
}

// PlayerConfig configures the audio backend.
type PlayerConfig struct {
	// Kind is "mpv" or "none".
	Kind string `yaml:"kind"`
	// Binary is the player executable.
	Binary string `yaml:"binary"`
	// TempDir receives temporary files for uploaded sounds and IPC sockets.
	TempDir string `yaml:"temp_dir"`
}

// QuoteConfig configures the quote generator.
type QuoteConfig struct {
	// Endpoint is the base URL of the generative language API.
	Endpoint string `yaml:"endpoint"`
	// Model is the model name used for generation.
	Model string `yaml:"model"`
	// APIKeyEnv names the environment variable that holds the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// RefreshInterval is the minimum delay between opportunistic refreshes.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// Timeout bounds a single generation request.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "morning-glow-settings.yaml"

	// DefaultAlarmsFilename is the default filename for the alarm list.
	DefaultAlarmsFilename = "morning-glow-alarms.json"

	// DefaultDataDir is the default blob store directory.
	DefaultDataDir = "morning-glow-data"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultTickInterval is the scheduler resolution.
	DefaultTickInterval = time.Second

	// DefaultVolume is the playback volume used when none is configured.
	DefaultVolume = 0.7

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// PlayerMPV spawns mpv for playback.
	PlayerMPV = "mpv"
	// PlayerNone logs instead of playing.
	PlayerNone = "none"

	// DefaultQuoteEndpoint is the public Gemini API base URL.
	DefaultQuoteEndpoint = "https://generativelanguage.googleapis.com"
	// DefaultQuoteModel is the model used for quotes.
	DefaultQuoteModel = "gemini-3-flash-preview"
	// DefaultQuoteAPIKeyEnv is the variable holding the API key.
	DefaultQuoteAPIKeyEnv = "API_KEY"
	// DefaultQuoteRefreshInterval limits opportunistic refreshes.
	DefaultQuoteRefreshInterval = time.Hour
	// DefaultQuoteTimeout bounds a single quote request.
	DefaultQuoteTimeout = 15 * time.Second
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errVolumeOutOfRange is returned when volume is outside [0, 1].
	errVolumeOutOfRange = errors.New("volume must be between 0 and 1")
	// errUnknownPlayer is returned for an unsupported player kind.
	errUnknownPlayer = errors.New("unknown player kind")
	// errUnknownLogLevel is returned for an unsupported log level.
	errUnknownLogLevel = errors.New("unknown log level")
	// errUnknownLogFormat is returned for an unsupported log format.
	errUnknownLogFormat = errors.New("unknown log format")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	// Zero is a valid volume, so only a missing key gets the default.
	var explicit struct {
		Volume *float64 `yaml:"volume"`
	}

	if err := yaml.Unmarshal(contents, &explicit); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if explicit.Volume == nil {
		cfg.Volume = DefaultVolume
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
//
//nolint:cyclop // Flat list of field checks.
func Validate(settings *Config) error {
	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics socket: %w", err)
		}
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.TickInterval <= 0 {
		settings.TickInterval = DefaultTickInterval
	}

	if settings.AlarmsFile == "" {
		settings.AlarmsFile = DefaultAlarmsFilename
	}

	if settings.DataDir == "" {
		settings.DataDir = DefaultDataDir
	}

	if settings.Volume < 0 || settings.Volume > 1 {
		return fmt.Errorf("%w: %v", errVolumeOutOfRange, settings.Volume)
	}

	if _, err := settings.Location(); err != nil {
		return err
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	if _, ok := logger.ParseFormat(settings.LogFormat); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogFormat, settings.LogFormat)
	}

	if err := validatePlayer(&settings.Player); err != nil {
		return err
	}

	return validateQuote(&settings.Quote)
}

// Location resolves the scheduling time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

func validatePlayer(player *PlayerConfig) error {
	switch player.Kind {
	case "":
		player.Kind = PlayerMPV
	case PlayerMPV, PlayerNone:
	default:
		return fmt.Errorf("%w: %q", errUnknownPlayer, player.Kind)
	}

	if player.Binary == "" {
		player.Binary = PlayerMPV
	}

	if player.TempDir == "" {
		player.TempDir = os.TempDir()
	}

	return nil
}

func validateQuote(quote *QuoteConfig) error {
	if quote.Endpoint == "" {
		quote.Endpoint = DefaultQuoteEndpoint
	}

	if _, err := url.ParseRequestURI(quote.Endpoint); err != nil {
		return fmt.Errorf("invalid quote endpoint: %w", err)
	}

	if quote.Model == "" {
		quote.Model = DefaultQuoteModel
	}

	if quote.APIKeyEnv == "" {
		quote.APIKeyEnv = DefaultQuoteAPIKeyEnv
	}

	if quote.RefreshInterval <= 0 {
		quote.RefreshInterval = DefaultQuoteRefreshInterval
	}

	if quote.Timeout <= 0 {
		quote.Timeout = DefaultQuoteTimeout
	}

	return nil
}
