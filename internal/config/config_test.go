package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reelback/reelback/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REELBACK_HTTP_ADDR", "REELBACK_MPD_ADDR", "REELBACK_MPD_PASSWORD",
		"REELBACK_DATA_DIR", "REELBACK_DOWNLOADS_DIR", "REELBACK_DEBUG",
		"LASTFM_API_KEY", "LASTFM_API_SECRET", "LASTFM_SESSION_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadFrom()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":4680" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Engine.Addr != "localhost:6600" {
		t.Errorf("Engine.Addr = %q", cfg.Engine.Addr)
	}
	if cfg.Archive.DownloadBase != "https://archive.org/download" {
		t.Errorf("Archive.DownloadBase = %q", cfg.Archive.DownloadBase)
	}
	if !cfg.Restore.Enabled || cfg.Restore.Autoplay {
		t.Errorf("Restore = %+v, want enabled without autoplay", cfg.Restore)
	}
	if cfg.Restore.SampleInterval != 5 {
		t.Errorf("SampleInterval = %d", cfg.Restore.SampleInterval)
	}
	if cfg.Paths.DataDir == "" || cfg.Paths.DownloadsDir == "" || cfg.Paths.ArtworkCache == "" {
		t.Errorf("paths not defaulted: %+v", cfg.Paths)
	}
	if cfg.Lastfm.Enabled() {
		t.Error("lastfm enabled without credentials")
	}
}

func TestLoadFrom_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
http_addr = ":9000"
debug = true

[engine]
addr = "music-host:6600"
password = "hunter2"

[paths]
data_dir = "/var/lib/reelback"

[archive]
download_base = "https://mirror.example.org/download/"

[restore]
autoplay = true
sample_interval = 30
`)

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || !cfg.Debug {
		t.Errorf("root = %q debug=%v", cfg.HTTPAddr, cfg.Debug)
	}
	if cfg.Engine.Addr != "music-host:6600" || cfg.Engine.Password != "hunter2" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Paths.DataDir != "/var/lib/reelback" {
		t.Errorf("data dir = %q", cfg.Paths.DataDir)
	}
	if cfg.Archive.DownloadBase != "https://mirror.example.org/download" {
		t.Errorf("download base = %q, want trailing slash trimmed", cfg.Archive.DownloadBase)
	}
	if !cfg.Restore.Autoplay || cfg.Restore.SampleInterval != 30 {
		t.Errorf("restore = %+v", cfg.Restore)
	}
	if cfg.AppDBPath() != "/var/lib/reelback/reelback.db" {
		t.Errorf("app db path = %q", cfg.AppDBPath())
	}
}

func TestLoadFrom_LaterFileWins(t *testing.T) {
	clearEnv(t)

	base := writeConfig(t, `http_addr = ":9000"`)
	local := writeConfig(t, `http_addr = ":9001"`)

	cfg, err := config.LoadFrom(base, local)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9001" {
		t.Errorf("HTTPAddr = %q, want later file to win", cfg.HTTPAddr)
	}
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("REELBACK_MPD_ADDR", "env-host:6600")
	t.Setenv("REELBACK_DEBUG", "true")
	t.Setenv("LASTFM_API_KEY", "k")
	t.Setenv("LASTFM_API_SECRET", "s")
	t.Setenv("LASTFM_SESSION_KEY", "sess")

	path := writeConfig(t, `
[engine]
addr = "file-host:6600"
`)

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Addr != "env-host:6600" {
		t.Errorf("Engine.Addr = %q, want env override", cfg.Engine.Addr)
	}
	if !cfg.Debug {
		t.Error("REELBACK_DEBUG=true not applied")
	}
	if !cfg.Lastfm.Enabled() {
		t.Error("lastfm credentials from env not applied")
	}
}

func TestLoadFrom_MissingFileSkipped(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":4680" {
		t.Errorf("HTTPAddr = %q, want defaults", cfg.HTTPAddr)
	}
}
