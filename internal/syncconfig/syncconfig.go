// Package syncconfig manages the global cardbox configuration under
// ~/.config/cardbox: sync settings in config.json and the server
// credential in auth.json.
package syncconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AutoSyncConfig holds background sync settings.
type AutoSyncConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`  // nil = default true
	Debounce string `json:"debounce,omitempty"` // duration string, default "3s"
	Interval string `json:"interval,omitempty"` // duration string, default "10m"
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	URL     string         `json:"url"`
	Enabled bool           `json:"enabled"`
	Auto    AutoSyncConfig `json:"auto"`
}

// Config is the global cardbox config stored at ~/.config/cardbox/config.json.
type Config struct {
	Sync SyncConfig `json:"sync"`
}

// AuthCredentials stores the server credential at ~/.config/cardbox/auth.json.
type AuthCredentials struct {
	APIKey    string `json:"api_key"`
	ServerURL string `json:"server_url"`
	DeviceID  string `json:"device_id"`
}

const (
	defaultServerURL = "http://localhost:8787"
	defaultDebounce  = 3 * time.Second
	defaultInterval  = 10 * time.Minute
)

// ConfigDir returns ~/.config/cardbox, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "cardbox")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadConfig reads the global config from ~/.config/cardbox/config.json.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the global config to ~/.config/cardbox/config.json.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// LoadAuth reads the credential from ~/.config/cardbox/auth.json. Returns
// (nil, nil) when no credential is stored.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveAuth writes the credential to ~/.config/cardbox/auth.json (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "auth.json"), data, 0600)
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetServerURL returns the sync server URL.
// Priority: CARDBOX_SYNC_URL env > auth.json > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("CARDBOX_SYNC_URL"); v != "" {
		return v
	}
	if creds, err := LoadAuth(); err == nil && creds != nil && creds.ServerURL != "" {
		return creds.ServerURL
	}
	if cfg, err := LoadConfig(); err == nil && cfg.Sync.URL != "" {
		return cfg.Sync.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: CARDBOX_API_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("CARDBOX_API_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsLinked reports whether a sync server is configured. A stored URL
// counts on its own; servers running without an API key accept
// keyless clients.
func IsLinked() bool {
	if GetAPIKey() != "" || os.Getenv("CARDBOX_SYNC_URL") != "" {
		return true
	}
	if creds, err := LoadAuth(); err == nil && creds != nil && creds.ServerURL != "" {
		return true
	}
	if cfg, err := LoadConfig(); err == nil && cfg.Sync.URL != "" {
		return true
	}
	return false
}

// GetDeviceID returns the device ID from auth.json, generating and
// persisting one on first use.
func GetDeviceID() (string, error) {
	creds, err := LoadAuth()
	if err != nil {
		return "", err
	}
	if creds != nil && creds.DeviceID != "" {
		return creds.DeviceID, nil
	}
	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}
	if creds == nil {
		creds = &AuthCredentials{}
	}
	creds.DeviceID = id
	if err := SaveAuth(creds); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateDeviceID creates a new random device ID (16 bytes hex).
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	switch v {
	case "1", "true":
		b := true
		return &b
	case "0", "false":
		b := false
		return &b
	}
	return nil
}

// GetAutoSyncEnabled returns whether background sync is enabled.
// Priority: CARDBOX_SYNC_AUTO env > config.json sync.auto.enabled > true.
func GetAutoSyncEnabled() bool {
	if v := parseBoolEnv("CARDBOX_SYNC_AUTO"); v != nil {
		return *v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Enabled != nil {
		return *cfg.Sync.Auto.Enabled
	}
	return true
}

// GetAutoSyncDebounce returns the delay between a local edit and the
// cycle it triggers.
// Priority: CARDBOX_SYNC_DEBOUNCE env > config.json sync.auto.debounce > 3s.
func GetAutoSyncDebounce() time.Duration {
	if v := os.Getenv("CARDBOX_SYNC_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Debounce != "" {
		if d, perr := time.ParseDuration(cfg.Sync.Auto.Debounce); perr == nil {
			return d
		}
	}
	return defaultDebounce
}

// GetAutoSyncInterval returns the spacing of periodic background cycles.
// Priority: CARDBOX_SYNC_INTERVAL env > config.json sync.auto.interval > 10m.
func GetAutoSyncInterval() time.Duration {
	if v := os.Getenv("CARDBOX_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.Sync.Auto.Interval != "" {
		if d, perr := time.ParseDuration(cfg.Sync.Auto.Interval); perr == nil {
			return d
		}
	}
	return defaultInterval
}
