package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chtmp switches the working directory to an empty temp dir so Load sees no
// stray .env or config/ files, restoring it afterwards.
func chtmp(t *testing.T) string {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	chtmp(t)
	t.Setenv("WEATHER_API_KEY", "")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when WEATHER_API_KEY unset, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("Load() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chtmp(t)
	t.Setenv("WEATHER_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WeatherAPIKey != "test-key" {
		t.Errorf("WeatherAPIKey = %q, want %q", cfg.WeatherAPIKey, "test-key")
	}
	if cfg.WeatherBaseURL != "https://api.weatherapi.com/v1" {
		t.Errorf("WeatherBaseURL = %q, want default", cfg.WeatherBaseURL)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 100 {
		t.Errorf("CacheMaxEntries = %d, want 100", cfg.CacheMaxEntries)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CORSAllowedOrigin != "*" {
		t.Errorf("CORSAllowedOrigin = %q, want *", cfg.CORSAllowedOrigin)
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		t.Errorf("RequestTimeout = %v, want > UpstreamTimeout %v", cfg.RequestTimeout, cfg.UpstreamTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chtmp(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("WEATHER_BASE_URL", "http://localhost:9999/v1")
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_MAX_ENTRIES", "25")
	t.Setenv("WARM_LOCATIONS", "london, oslo ,tokyo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WeatherBaseURL != "http://localhost:9999/v1" {
		t.Errorf("WeatherBaseURL = %q, want override", cfg.WeatherBaseURL)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 25 {
		t.Errorf("CacheMaxEntries = %d, want 25", cfg.CacheMaxEntries)
	}
	want := []string{"london", "oslo", "tokyo"}
	if len(cfg.WarmLocations) != len(want) {
		t.Fatalf("WarmLocations = %v, want %v", cfg.WarmLocations, want)
	}
	for i := range want {
		if cfg.WarmLocations[i] != want[i] {
			t.Errorf("WarmLocations[%d] = %q, want %q", i, cfg.WarmLocations[i], want[i])
		}
	}
}

func TestLoad_YAMLFileWithEnvPrecedence(t *testing.T) {
	dir := chtmp(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("ENV_NAME", "test")
	t.Setenv("PORT", "7070")

	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	yaml := "server:\n  port: \"6060\"\ncache:\n  ttl: 3m\n  max_entries: 50\n"
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// env wins over file
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want env override 7070", cfg.ServerPort)
	}
	// file wins over defaults
	if cfg.CacheTTL != 3*time.Minute {
		t.Errorf("CacheTTL = %v, want 3m from file", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 50 {
		t.Errorf("CacheMaxEntries = %d, want 50 from file", cfg.CacheMaxEntries)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := chtmp(t)
	// godotenv does not override variables already present in the
	// environment, so the key must be truly unset (t.Setenv registers the
	// restore).
	t.Setenv("WEATHER_API_KEY", "placeholder")
	os.Unsetenv("WEATHER_API_KEY")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WEATHER_API_KEY=key-from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-dotenv" {
		t.Errorf("WeatherAPIKey = %q, want key-from-dotenv", cfg.WeatherAPIKey)
	}
}

func TestLoad_RejectsUnknownCacheBackend(t *testing.T) {
	chtmp(t)
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("CACHE_BACKEND", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for unknown cache backend, got nil")
	}
}
