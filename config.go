package caravel

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the worker configuration. It is persisted as a YAML file in the
// config directory when one is configured, and falls back to defaults otherwise.
type Config struct {
	viper                *viper.Viper
	ConfigDir            string   `mapstructure:"config_dir"`             // Current config dir
	Origin               string   `mapstructure:"origin"`                 // Application origin; cross-origin requests pass through
	APIPrefixes          []string `mapstructure:"api_prefixes"`           // Path prefixes classified as data endpoints
	Precache             []string `mapstructure:"precache"`               // Asset paths warmed opportunistically at install
	OfflineDocPath       string   `mapstructure:"offline_doc_path"`       // Well-known offline fallback document
	PlaceholderImagePath string   `mapstructure:"placeholder_image_path"` // Well-known offline placeholder image
	PreferencesEndpoint  string   `mapstructure:"preferences_endpoint"`   // Endpoint the preference record replays against
	NotificationIcon     string   `mapstructure:"notification_icon"`      // Icon reference attached to rendered notifications
	NotificationBadge    string   `mapstructure:"notification_badge"`     // Badge reference attached to rendered notifications
	DatabaseFile         string   `mapstructure:"database_file"`          // SQLite database file name inside the config dir
	DefaultAddress       string   `mapstructure:"default_address"`        // Listen address for proxy mode
	DefaultPort          string   `mapstructure:"default_port"`           // Listen port for proxy mode
}

// defaultConfig returns the configuration used before (or without) a config
// directory being set up. The offline fallback paths are fixed, well-known
// paths resolved against the origin at install time.
func defaultConfig() *Config {
	return &Config{
		Origin:               "http://localhost:3000",
		APIPrefixes:          []string{"/api/"},
		Precache:             []string{},
		OfflineDocPath:       "/offline.html",
		PlaceholderImagePath: "/static/img/offline-placeholder.svg",
		PreferencesEndpoint:  "/api/preferences",
		NotificationIcon:     "/static/img/icon-192.png",
		NotificationBadge:    "/static/img/badge-72.png",
		DatabaseFile:         "caravel.db",
		DefaultAddress:       "127.0.0.1",
		DefaultPort:          "8080",
	}
}

// AddPrecachePath appends a path to the precache manifest and persists the
// configuration when it is file-backed.
func (cfg *Config) AddPrecachePath(path string) error {
	for _, existing := range cfg.Precache {
		if existing == path {
			return nil
		}
	}
	cfg.Precache = append(cfg.Precache, path)
	if cfg.viper == nil {
		return nil
	}
	cfg.viper.Set("precache", cfg.Precache)
	if err := cfg.viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := cfg.viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	return nil
}
