package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/genricoloni/marquee/internal/domain"
	"go.uber.org/multierr"
)

const (
	defaultSeparator      = ", "
	defaultFamily         = "Go"
	defaultMinSize        = 8
	defaultMaxSize        = 18
	defaultPollInterval   = 1000
	defaultRepaint        = 500
	defaultBoxWidth       = 320
	defaultBoxHeight      = 64
	defaultPadding        = 6
	defaultIdleText       = "Nothing playing"
	defaultLogLevel       = "info"
	defaultHookTimeout    = 2000
	minPollIntervalMillis = 50
)

// Config holds application configuration. It is passed around by value and
// never mutated after Load returns.
type Config struct {
	ArtistSeparator string     `toml:"artist_separator"`
	Font            FontConfig `toml:"font"`
	// PollInterval between two bus reads, in milliseconds
	PollInterval int `toml:"poll_interval_ms"`
	// RepaintInterval of the render driver, in milliseconds
	RepaintInterval int       `toml:"repaint_interval_ms"`
	Box             BoxConfig `toml:"box"`
	// Players restricts which players are followed, empty means all
	Players  []string   `toml:"players"`
	IdleText *string    `toml:"idle_text"`
	Log      LogConfig  `toml:"log"`
	Hook     HookConfig `toml:"hook"`

	// Path the configuration was read from, empty when defaults only
	Path string `toml:"-"`
}

// FontConfig selects the font and its size range
type FontConfig struct {
	Family  string `toml:"family"`
	Bold    bool   `toml:"bold"`
	Italic  bool   `toml:"italic"`
	MinSize int    `toml:"min_size"`
	MaxSize int    `toml:"max_size"`
}

// BoxConfig is the widget size in pixels
type BoxConfig struct {
	Width   int `toml:"width"`
	Height  int `toml:"height"`
	Padding int `toml:"padding"`
}

// LogConfig controls logging output
type LogConfig struct {
	Level string `toml:"level"`
	// File enables rotated file output when set
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// HookConfig runs a command whenever the displayed track changes.
// Arguments may contain {title}, {artist}, {album}, {status} and {player}.
type HookConfig struct {
	Command   []string `toml:"command"`
	TimeoutMs int      `toml:"timeout_ms"`
}

// Load reads configuration from path, or from the standard location when
// path is empty, applies defaults and environment overrides and validates it.
// A missing file at the standard location is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("MARQUEE_CONFIG")
	}
	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		path = expandHome(path)
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		cfg.Path = path
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields
func (c *Config) ApplyDefaults() {
	if c.ArtistSeparator == "" {
		c.ArtistSeparator = defaultSeparator
	}
	if c.Font.Family == "" {
		c.Font.Family = defaultFamily
	}
	if c.Font.MinSize == 0 {
		c.Font.MinSize = defaultMinSize
	}
	if c.Font.MaxSize == 0 {
		c.Font.MaxSize = max(defaultMaxSize, c.Font.MinSize)
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RepaintInterval == 0 {
		c.RepaintInterval = defaultRepaint
	}
	if c.Box.Width == 0 {
		c.Box.Width = defaultBoxWidth
	}
	if c.Box.Height == 0 {
		c.Box.Height = defaultBoxHeight
	}
	if c.Box.Padding == 0 {
		c.Box.Padding = defaultPadding
	}
	if c.IdleText == nil {
		idle := defaultIdleText
		c.IdleText = &idle
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Hook.TimeoutMs == 0 {
		c.Hook.TimeoutMs = defaultHookTimeout
	}
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var err error
	if c.Font.MinSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("font.min_size must be positive, got %d", c.Font.MinSize))
	}
	if c.Font.MaxSize < c.Font.MinSize {
		err = multierr.Append(err, fmt.Errorf("font.max_size (%d) is below font.min_size (%d)", c.Font.MaxSize, c.Font.MinSize))
	}
	if c.PollInterval < minPollIntervalMillis {
		err = multierr.Append(err, fmt.Errorf("poll_interval_ms must be at least %d, got %d", minPollIntervalMillis, c.PollInterval))
	}
	if c.RepaintInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("repaint_interval_ms must be positive, got %d", c.RepaintInterval))
	}
	if c.Box.Width <= 0 || c.Box.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("box must have a positive size, got %dx%d", c.Box.Width, c.Box.Height))
	}
	if c.Box.Padding < 0 {
		err = multierr.Append(err, fmt.Errorf("box.padding must not be negative, got %d", c.Box.Padding))
	}
	if c.Hook.TimeoutMs < 0 {
		err = multierr.Append(err, fmt.Errorf("hook.timeout_ms must not be negative, got %d", c.Hook.TimeoutMs))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FontSpec returns the configured font
func (c Config) FontSpec() domain.FontSpec {
	var style domain.FontStyle
	if c.Font.Bold {
		style |= domain.StyleBold
	}
	if c.Font.Italic {
		style |= domain.StyleItalic
	}
	return domain.FontSpec{Family: c.Font.Family, Style: style}
}

// BoxSize returns the configured widget size
func (c Config) BoxSize() domain.Box {
	return domain.Box{Width: c.Box.Width, Height: c.Box.Height}
}

// PollEvery returns the poll interval as a duration
func (c Config) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// RepaintEvery returns the repaint interval as a duration
func (c Config) RepaintEvery() time.Duration {
	return time.Duration(c.RepaintInterval) * time.Millisecond
}

// HookTimeout returns the hook command timeout as a duration
func (c Config) HookTimeout() time.Duration {
	return time.Duration(c.Hook.TimeoutMs) * time.Millisecond
}

// Idle returns the text shown when no player is selected
func (c Config) Idle() string {
	if c.IdleText == nil {
		return ""
	}
	return *c.IdleText
}

// findConfigFile returns the first existing config file path.
// Search order: $XDG_CONFIG_HOME/marquee/config.toml, ~/.config/marquee/config.toml
func findConfigFile() string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "marquee", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "marquee", "config.toml"))
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Expand path if it contains ~ or environment variables
func expandHome(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARQUEE_ARTIST_SEPARATOR"); v != "" {
		cfg.ArtistSeparator = v
	}
	if v := os.Getenv("MARQUEE_FONT_FAMILY"); v != "" {
		cfg.Font.Family = v
	}
	if v, ok := envInt("MARQUEE_FONT_MIN_SIZE"); ok {
		cfg.Font.MinSize = v
	}
	if v, ok := envInt("MARQUEE_FONT_MAX_SIZE"); ok {
		cfg.Font.MaxSize = v
	}
	if v, ok := envInt("MARQUEE_POLL_INTERVAL_MS"); ok {
		cfg.PollInterval = v
	}
	if v := os.Getenv("MARQUEE_PLAYERS"); v != "" {
		cfg.Players = strings.Split(v, ",")
	}
	if v := os.Getenv("MARQUEE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MARQUEE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
