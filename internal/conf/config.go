// Package conf loads and validates the application configuration from
// a YAML config file and environment variables via viper.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings holds the full application configuration.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this semquery node
		Log  LogConfig // logging configuration
	}

	WebServer struct {
		Debug   bool   // true to enable web server debug mode
		Enabled bool   // true to enable web server
		Port    string // port for web server
	}

	Ontology  OntologyConfig  // concept store configuration
	Search    SearchConfig    // query expansion and fusion configuration
	Embedding EmbeddingConfig // embedding backend configuration
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled    bool   // true to enable this log
	Path       string // path to the log file
	MaxSize    int    // max size in megabytes before rotation
	MaxBackups int    // max number of rotated files to keep
	MaxAge     int    // max age in days of a rotated file
}

// OntologyConfig selects and configures the concept store backends.
type OntologyConfig struct {
	Storage      string // active backend: "flatfile" or "relational"
	FlatFilePath string // path to the concepts JSON document
	SQLitePath   string // path to the sqlite database
}

// Storage type values for OntologyConfig.Storage.
const (
	StorageFlatFile   = "flatfile"
	StorageRelational = "relational"
)

// SearchConfig configures query expansion and result fusion.
type SearchConfig struct {
	DefaultModel   string  // embedding model used when a request names none
	DefaultLimit   int     // result limit when a request names none, 0 for unlimited
	Threshold      float64 // minimum similarity passed to the search backend
	CacheTTLSecs   int     // search response cache TTL in seconds, 0 disables
	MaxConcurrency int     // max parallel expansion-term searches, 0 for one per term
}

// EmbeddingConfig configures the embedding endpoint used by the semantic index.
type EmbeddingConfig struct {
	Host       string // base URL of an OpenAI-compatible embeddings endpoint
	Model      string // embedding model identifier
	CorpusPath string // path to the verse corpus JSON document
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("SEMQUERY")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asConfigNotFound(err, &notFound) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file found, run on defaults.
	}

	return nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	settingsMutex.RLock()
	if settingsInstance != nil {
		defer settingsMutex.RUnlock()
		return settingsInstance
	}
	settingsMutex.RUnlock()

	if _, err := Load(); err != nil {
		return nil
	}
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the current settings instance. Intended for tests.
func SetSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = settings
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in precedence order: working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	configDir, err := os.UserConfigDir()
	if err != nil {
		// Home resolution can fail in minimal containers; working directory only.
		return paths, nil
	}
	paths = append(paths, filepath.Join(configDir, "semquery"))
	return paths, nil
}

// SaveYAML writes the settings to the given path as YAML, creating parent
// directories as needed.
func SaveYAML(settings *Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// GetBasePath expands a possibly relative path against the working directory
// and ensures the directory exists.
func GetBasePath(path string) string {
	if path == "" {
		return "."
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "."
	}
	return path
}
