package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/justyntemme/duopane/internal/debug"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Remote     RemoteConfig     `json:"remote"`
	Navigation NavigationConfig `json:"navigation"`
	Favorites  FavoritesConfig  `json:"favorites"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
}

// RemoteConfig describes how remotes are discovered and listed
type RemoteConfig struct {
	RCURL          string `json:"rcUrl"` // rclone rc endpoint, "" disables rc
	User           string `json:"user,omitempty"`
	Pass           string `json:"pass,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	RcloneConfig   string `json:"rcloneConfig"` // INI file listing remotes
	DiscoverFromRC bool   `json:"discoverFromRc"`
}

// NavigationConfig holds pane and cache behavior
type NavigationConfig struct {
	LoadingDelayMs      int    `json:"loadingDelayMs"`
	RevalidateMs        int    `json:"revalidateMs"` // negative revalidates every cache hit
	FetchTimeoutSeconds int    `json:"fetchTimeoutSeconds"`
	PaddingRows         int    `json:"paddingRows"`
	ShowHidden          bool   `json:"showHidden"`
	WatchLocal          bool   `json:"watchLocal"`
	StartLeft           string `json:"startLeft"` // location typed as in the path bar
	StartRight          string `json:"startRight"`
	RestoreLastLocation bool   `json:"restoreLastLocation"`
}

// FavoritesConfig holds the favorites database settings
type FavoritesConfig struct {
	Database string   `json:"database"`
	Seed     []string `json:"seed"` // added to an empty database on first start
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `json:"format"` // "console" | "json"
	// Categories switches debug categories on or off, e.g. {"FS_ENTRY": true}
	Categories map[string]bool `json:"categories,omitempty"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Listen string `json:"listen"` // "" disables the endpoint
}

// LoadingDelay returns the loading indicator delay.
func (n NavigationConfig) LoadingDelay() time.Duration {
	return time.Duration(n.LoadingDelayMs) * time.Millisecond
}

// Revalidate returns the cache revalidation window.
func (n NavigationConfig) Revalidate() time.Duration {
	return time.Duration(n.RevalidateMs) * time.Millisecond
}

// FetchTimeout returns the per-listing timeout.
func (n NavigationConfig) FetchTimeout() time.Duration {
	return time.Duration(n.FetchTimeoutSeconds) * time.Second
}

// Timeout returns the rc request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Remote: RemoteConfig{
			RCURL:          "http://localhost:5572",
			TimeoutSeconds: 30,
			RcloneConfig:   filepath.Join(home, ".config", "rclone", "rclone.conf"),
			DiscoverFromRC: true,
		},
		Navigation: NavigationConfig{
			LoadingDelayMs:      200,
			RevalidateMs:        5000,
			FetchTimeoutSeconds: 30,
			PaddingRows:         2,
			ShowHidden:          false,
			WatchLocal:          true,
			StartLeft:           "~",
			StartRight:          "favorites:",
			RestoreLastLocation: true,
		},
		Favorites: FavoritesConfig{
			Database: filepath.Join(home, ".config", "duopane", "duopane.db"),
			Seed:     []string{"~/Documents", "~/Downloads"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ConfigPath returns the config file path: ~/.config/duopane/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "duopane", "config.json")
}

// Load reads the configuration from path, or ConfigPath when path is empty.
// If the file doesn't exist, creates it with defaults.
// If parsing fails, stores the error and returns defaults.
func (m *Manager) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if path == "" {
		path = ConfigPath()
	}
	m.path = path
	m.parseErr = nil

	// Ensure config directory exists
	configDir := filepath.Dir(m.path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		debug.Error(debug.APP, "config: failed to create directory %s: %v", configDir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		debug.Log(debug.APP, "config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			debug.Error(debug.APP, "config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		debug.Error(debug.APP, "config: failed to read %s: %v", m.path, err)
		return err
	}

	// Missing keys keep their defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		debug.Warn(debug.APP, "config: JSON parse error in %s: %v", m.path, err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}

	debug.Log(debug.APP, "config: loaded from %s", m.path)
	m.config = cfg
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.path == "" {
		m.path = ConfigPath()
	}
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	cfg := *m.config
	cfg.Favorites.Seed = append([]string(nil), m.config.Favorites.Seed...)
	return cfg
}

// Path returns the file the configuration was loaded from
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetShowHidden updates the show hidden setting
func (m *Manager) SetShowHidden(show bool) error {
	m.mu.Lock()
	m.config.Navigation.ShowHidden = show
	m.mu.Unlock()
	return m.Save()
}

// SetRCURL updates the rc endpoint
func (m *Manager) SetRCURL(url string) error {
	m.mu.Lock()
	m.config.Remote.RCURL = url
	m.mu.Unlock()
	return m.Save()
}
