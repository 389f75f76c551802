package syncconfig

import (
	"testing"
	"time"
)

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CARDBOX_SYNC_URL", "")
	t.Setenv("CARDBOX_API_KEY", "")
	t.Setenv("CARDBOX_SYNC_AUTO", "")
	t.Setenv("CARDBOX_SYNC_DEBOUNCE", "")
	t.Setenv("CARDBOX_SYNC_INTERVAL", "")
}

func TestConfigRoundTrip(t *testing.T) {
	isolateHome(t)

	enabled := false
	in := &Config{Sync: SyncConfig{
		URL:     "https://sync.example.net",
		Enabled: true,
		Auto:    AutoSyncConfig{Enabled: &enabled, Debounce: "5s", Interval: "1m"},
	}}
	if err := SaveConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.Sync.URL != in.Sync.URL || !out.Sync.Enabled {
		t.Errorf("loaded %+v, want %+v", out.Sync, in.Sync)
	}
	if out.Sync.Auto.Enabled == nil || *out.Sync.Auto.Enabled {
		t.Error("auto.enabled not preserved")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	isolateHome(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sync.URL != "" || cfg.Sync.Enabled {
		t.Errorf("missing file should give zero config, got %+v", cfg.Sync)
	}
}

func TestAuthRoundTripAndClear(t *testing.T) {
	isolateHome(t)

	creds, err := LoadAuth()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if creds != nil {
		t.Fatal("expected nil credentials before save")
	}

	if err := SaveAuth(&AuthCredentials{APIKey: "k", ServerURL: "https://s", DeviceID: "d"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	creds, err = LoadAuth()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if creds == nil || creds.APIKey != "k" || creds.DeviceID != "d" {
		t.Fatalf("loaded %+v", creds)
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := ClearAuth(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestServerURLPriority(t *testing.T) {
	isolateHome(t)

	if got := GetServerURL(); got != defaultServerURL {
		t.Errorf("default url = %q", got)
	}

	if err := SaveConfig(&Config{Sync: SyncConfig{URL: "https://from-config"}}); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if got := GetServerURL(); got != "https://from-config" {
		t.Errorf("config url = %q", got)
	}

	if err := SaveAuth(&AuthCredentials{ServerURL: "https://from-auth"}); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	if got := GetServerURL(); got != "https://from-auth" {
		t.Errorf("auth url = %q", got)
	}

	t.Setenv("CARDBOX_SYNC_URL", "https://from-env")
	if got := GetServerURL(); got != "https://from-env" {
		t.Errorf("env url = %q", got)
	}
}

func TestIsLinked(t *testing.T) {
	isolateHome(t)

	if IsLinked() {
		t.Fatal("fresh home should not be linked")
	}

	// Linking to a keyless dev server stores only the URL and device id.
	if err := SaveAuth(&AuthCredentials{ServerURL: "http://dev:8787", DeviceID: "dev-1"}); err != nil {
		t.Fatalf("save auth: %v", err)
	}
	if !IsLinked() {
		t.Error("stored server URL without a key should count as linked")
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if IsLinked() {
		t.Error("cleared auth should unlink")
	}

	// A configured URL in config.json also counts.
	if err := SaveConfig(&Config{Sync: SyncConfig{URL: "https://from-config"}}); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if !IsLinked() {
		t.Error("config.json sync URL should count as linked")
	}
}

func TestDeviceIDPersists(t *testing.T) {
	isolateHome(t)

	first, err := GetDeviceID()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(first) != 32 {
		t.Errorf("device id %q, want 16-byte hex", first)
	}

	second, err := GetDeviceID()
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if second != first {
		t.Errorf("device id changed between calls: %q then %q", first, second)
	}
}

func TestAutoSyncTimings(t *testing.T) {
	isolateHome(t)

	if d := GetAutoSyncDebounce(); d != defaultDebounce {
		t.Errorf("default debounce = %v", d)
	}
	if d := GetAutoSyncInterval(); d != defaultInterval {
		t.Errorf("default interval = %v", d)
	}

	t.Setenv("CARDBOX_SYNC_DEBOUNCE", "250ms")
	t.Setenv("CARDBOX_SYNC_INTERVAL", "42s")
	if d := GetAutoSyncDebounce(); d != 250*time.Millisecond {
		t.Errorf("env debounce = %v", d)
	}
	if d := GetAutoSyncInterval(); d != 42*time.Second {
		t.Errorf("env interval = %v", d)
	}

	t.Setenv("CARDBOX_SYNC_AUTO", "false")
	if GetAutoSyncEnabled() {
		t.Error("auto sync should be disabled by env")
	}
}
