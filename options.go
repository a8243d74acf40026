package caravel

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/spf13/viper"

	"github.com/caravel-app/caravel/cache"
	"github.com/caravel-app/caravel/db"
)

// WithConfigDir configures the worker to use the specified configuration directory.
// It creates the directory if it doesn't exist and initializes the configuration
// file using Viper.
func WithConfigDir(appConfigDir string) func(*Worker) error {
	return func(worker *Worker) error {
		_, err := os.ReadDir(appConfigDir)
		if err != nil {
			if os.IsNotExist(err) {
				log.Println("[*] creating config dir")
				err := os.MkdirAll(appConfigDir, 0700)
				if err != nil {
					return fmt.Errorf("creating config dir %s: %w", appConfigDir, err)
				}
			} else {
				return fmt.Errorf("checking if directory exists %s: %w", appConfigDir, err)
			}
		}
		// At this point, the directory exists or was created successfully
		worker.ConfigDir = appConfigDir

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(appConfigDir)
		defaults := defaultConfig()
		v.SetDefault("origin", defaults.Origin)
		v.SetDefault("api_prefixes", defaults.APIPrefixes)
		v.SetDefault("precache", defaults.Precache)
		v.SetDefault("offline_doc_path", defaults.OfflineDocPath)
		v.SetDefault("placeholder_image_path", defaults.PlaceholderImagePath)
		v.SetDefault("preferences_endpoint", defaults.PreferencesEndpoint)
		v.SetDefault("notification_icon", defaults.NotificationIcon)
		v.SetDefault("notification_badge", defaults.NotificationBadge)
		v.SetDefault("database_file", defaults.DatabaseFile)
		v.SetDefault("default_address", defaults.DefaultAddress)
		v.SetDefault("default_port", defaults.DefaultPort)
		err = v.ReadInConfig()
		if err != nil {
			// need to check if the error is config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				// Config file is not found
				err = v.SafeWriteConfig()
				if err != nil {
					return fmt.Errorf("writing config file : %w", err)
				}
			} else {
				return fmt.Errorf("reading config file : %w", err)
			}
		}
		if err := v.Unmarshal(&worker.Config); err != nil {
			return fmt.Errorf("unmarshalling config to struct : %w", err)
		}
		worker.Config.viper = v
		worker.Config.ConfigDir = appConfigDir

		origin, err := url.Parse(worker.Config.Origin)
		if err != nil {
			return fmt.Errorf("parsing origin %s : %w", worker.Config.Origin, err)
		}
		worker.setOrigin(origin)

		// Rewrite entire file from struct
		err = v.WriteConfig()
		if err != nil {
			return fmt.Errorf("writing config after unmarshalling : %w", err)
		}
		return nil
	}
}

// WithDatabase opens (or creates) the SQLite database at the given path and
// installs it as both the repository and the cache store, giving the worker a
// single durable backend that survives process restarts.
func WithDatabase(dbPath string) func(*Worker) error {
	return func(worker *Worker) error {
		conn, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("opening database %s : %w", dbPath, err)
		}
		repo := db.NewRepository(conn)
		worker.Repo = repo
		worker.Cache = repo
		return nil
	}
}

// WithDefaultDatabase opens the database file named in the configuration inside
// the config directory. It requires WithConfigDir to have been applied first.
func WithDefaultDatabase() func(*Worker) error {
	return func(worker *Worker) error {
		if worker.ConfigDir == "" {
			return fmt.Errorf("config dir not set, apply WithConfigDir first")
		}
		return WithDatabase(path.Join(worker.ConfigDir, worker.Config.DatabaseFile))(worker)
	}
}

// WithRepo installs a custom repository implementation.
func WithRepo(repo Repository) func(*Worker) error {
	return func(worker *Worker) error {
		worker.Repo = repo
		return nil
	}
}

// WithCache installs a custom cache store backend.
func WithCache(store cache.Store) func(*Worker) error {
	return func(worker *Worker) error {
		worker.Cache = store
		return nil
	}
}

// WithClient installs the HTTP client used for network fetches and queue replays.
func WithClient(client *http.Client) func(*Worker) error {
	return func(worker *Worker) error {
		worker.Client = client
		return nil
	}
}

// WithBaseTransport installs the round tripper the dispatcher forwards to for
// network fetches and cross-origin passthrough. Defaults to http.DefaultTransport.
func WithBaseTransport(base http.RoundTripper) func(*Worker) error {
	return func(worker *Worker) error {
		worker.transport.Wrapped = base
		return nil
	}
}

// WithOrigin sets the application origin intercepted traffic must match.
func WithOrigin(origin string) func(*Worker) error {
	return func(worker *Worker) error {
		parsed, err := url.Parse(origin)
		if err != nil {
			return fmt.Errorf("parsing origin %s : %w", origin, err)
		}
		worker.Config.Origin = origin
		worker.setOrigin(parsed)
		return nil
	}
}

// WithNotifier installs the notification renderer provided by the hosting application.
func WithNotifier(notifier Notifier) func(*Worker) error {
	return func(worker *Worker) error {
		worker.Notifier = notifier
		return nil
	}
}

// WithWindows installs the window registry provided by the hosting application.
func WithWindows(windows WindowRegistry) func(*Worker) error {
	return func(worker *Worker) error {
		worker.Windows = windows
		return nil
	}
}
