// Package config loads the daemon configuration: TOML files with
// environment-variable overrides for deployment-sensitive values.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full daemon configuration.
type Config struct {
	HTTPAddr string `koanf:"http_addr"` // default ":4680"
	Debug    bool   `koanf:"debug"`

	Engine    EngineConfig    `koanf:"engine"`
	Paths     PathsConfig     `koanf:"paths"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Restore   RestoreConfig   `koanf:"restore"`
	Lastfm    LastfmConfig    `koanf:"lastfm"`
	Transport TransportConfig `koanf:"transport"`
}

// EngineConfig configures the MPD link.
type EngineConfig struct {
	Addr     string `koanf:"addr"`     // default "localhost:6600"
	Password string `koanf:"password"` // optional
}

// PathsConfig configures on-disk locations. Empty values fall back to XDG
// defaults under the reelback app directory.
type PathsConfig struct {
	DataDir      string `koanf:"data_dir"`      // app db, catalog db
	DownloadsDir string `koanf:"downloads_dir"` // <downloads>/<recordingID>/<filename>
	ArtworkCache string `koanf:"artwork_cache"` // posters and thumbnails
}

// ArchiveConfig configures the remote archive endpoints.
type ArchiveConfig struct {
	DownloadBase string `koanf:"download_base"` // stream URL base
	ImageBase    string `koanf:"image_base"`    // poster URL base
}

// RestoreConfig configures session restoration at startup.
type RestoreConfig struct {
	Enabled        bool `koanf:"enabled"`
	Autoplay       bool `koanf:"autoplay"`        // start audio instead of pausing at position
	SampleInterval int  `koanf:"sample_interval"` // seconds between last-played samples
}

// LastfmConfig enables scrobbling when all credentials are present.
type LastfmConfig struct {
	APIKey     string `koanf:"api_key"`
	APISecret  string `koanf:"api_secret"`
	SessionKey string `koanf:"session_key"`
	Artist     string `koanf:"artist"` // artist attributed to scrobbles
}

// TransportConfig configures observer-facing limits.
type TransportConfig struct {
	MaxClients     int `koanf:"max_clients"`      // socket.io connection cap, 0 = unlimited
	DebounceMs     int `koanf:"debounce_ms"`      // broadcast debounce window
	PositionTickMs int `koanf:"position_tick_ms"` // engine position sampling
}

// Enabled reports whether scrobbling is fully configured.
func (c LastfmConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != "" && c.SessionKey != ""
}

// Load reads config files in priority order (XDG config dir, then working
// directory, last wins), applies defaults and environment overrides.
func Load() (*Config, error) {
	return LoadFrom(configPaths()...)
}

// LoadFrom loads from an explicit list of config files, later files winning.
// Missing files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	fillPathDefaults(cfg)

	cfg.Archive.DownloadBase = strings.TrimSuffix(cfg.Archive.DownloadBase, "/")
	cfg.Archive.ImageBase = strings.TrimSuffix(cfg.Archive.ImageBase, "/")
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPAddr: ":4680",
		Engine: EngineConfig{
			Addr: "localhost:6600",
		},
		Archive: ArchiveConfig{
			DownloadBase: "https://archive.org/download",
			ImageBase:    "https://archive.org/services/img",
		},
		Restore: RestoreConfig{
			Enabled:        true,
			SampleInterval: 5,
		},
		Transport: TransportConfig{
			MaxClients:     32,
			DebounceMs:     100,
			PositionTickMs: 1000,
		},
	}
}

func configPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, "reelback", "config.toml"),
		"config.toml",
	}
}

// applyEnvOverrides maps deployment environment variables over the file
// config, so containers can run without one.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REELBACK_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("REELBACK_MPD_ADDR"); v != "" {
		cfg.Engine.Addr = v
	}
	if v := os.Getenv("REELBACK_MPD_PASSWORD"); v != "" {
		cfg.Engine.Password = v
	}
	if v := os.Getenv("REELBACK_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("REELBACK_DOWNLOADS_DIR"); v != "" {
		cfg.Paths.DownloadsDir = v
	}
	if v := os.Getenv("REELBACK_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		cfg.Lastfm.APIKey = v
	}
	if v := os.Getenv("LASTFM_API_SECRET"); v != "" {
		cfg.Lastfm.APISecret = v
	}
	if v := os.Getenv("LASTFM_SESSION_KEY"); v != "" {
		cfg.Lastfm.SessionKey = v
	}
}

func fillPathDefaults(cfg *Config) {
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = filepath.Join(xdg.DataHome, "reelback")
	}
	if cfg.Paths.DownloadsDir == "" {
		cfg.Paths.DownloadsDir = filepath.Join(xdg.DataHome, "reelback", "downloads")
	}
	if cfg.Paths.ArtworkCache == "" {
		cfg.Paths.ArtworkCache = filepath.Join(xdg.CacheHome, "reelback", "artwork")
	}
}

// AppDBPath returns the app database location.
func (c *Config) AppDBPath() string {
	return filepath.Join(c.Paths.DataDir, "reelback.db")
}

// CatalogDBPath returns the catalog database location.
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}
