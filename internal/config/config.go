package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. CLIPKEEP_LOG_LEVEL
	EnvPrefix = "CLIPKEEP"

	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"

	DefaultMaxImageArea = 4 * 1024 * 1024
	DefaultSocketName   = "clipkeep.sock"
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir      string // Base directory for config files
	ConfigFile   string // Path to config.yaml
	SettingsFile string // Path to settings.yaml
	DataDir      string // Directory for application data
	DBFile       string // Default database path
	LogDir       string // Directory for log files
	TempDir      string // Root of per-session temp directories
	RunDir       string // PID file and socket
}

// Config holds all daemon configuration
type Config struct {
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	Storage StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	Capture CaptureConfig `json:"capture" yaml:"capture" mapstructure:"capture"`
	Workers WorkerConfig  `json:"workers" yaml:"workers" mapstructure:"workers"`
	IPC     IPCConfig     `json:"ipc" yaml:"ipc" mapstructure:"ipc"`
	Temp    TempConfig    `json:"temp" yaml:"temp" mapstructure:"temp"`

	// Resolved at load time, never persisted
	SystemPaths ConfigPaths `json:"-" yaml:"-" mapstructure:"-"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level             string `json:"level" yaml:"level" mapstructure:"level"`
	Format            string `json:"format" yaml:"format" mapstructure:"format"` // "auto", "text" or "json"
	EnableFileLogging bool   `json:"enable_file_logging" yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
	File              string `json:"file" yaml:"file" mapstructure:"file"`
}

// StorageConfig selects and locates the history database
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// CaptureConfig tunes the capture pipeline
type CaptureConfig struct {
	MaxImageArea  int           `json:"max_image_area" yaml:"max_image_area" mapstructure:"max_image_area"`
	PollInterval  time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval"`
	ExternalTools bool          `json:"external_tools" yaml:"external_tools" mapstructure:"external_tools"` // read html/uri-list targets via xclip or wl-paste
}

// WorkerConfig sizes the background task runner
type WorkerConfig struct {
	PoolSize  int `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	QueueSize int `json:"queue_size" yaml:"queue_size" mapstructure:"queue_size"`
}

// IPCConfig locates the control socket
type IPCConfig struct {
	SocketPath string `json:"socket_path" yaml:"socket_path" mapstructure:"socket_path"`
}

// TempConfig controls session temp directory cleanup
type TempConfig struct {
	CleanupAge time.Duration `json:"cleanup_age" yaml:"cleanup_age" mapstructure:"cleanup_age"`
}

// GetConfigPaths returns the platform-specific configuration paths
func GetConfigPaths() (*ConfigPaths, error) {
	baseDir := os.Getenv(EnvPrefix + "_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "ClipKeep")
		case "darwin":
			baseDir = filepath.Join(configDir, "com.berrythewa.clipkeep")
		default:
			baseDir = filepath.Join(configDir, "clipkeep")
		}
	}

	dataDir := os.Getenv(EnvPrefix + "_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			if appData, err := os.UserConfigDir(); err == nil {
				dataDir = filepath.Join(appData, "ClipKeep", "Data")
			} else {
				dataDir = filepath.Join(homeDir, "AppData", "Local", "ClipKeep")
			}
		case "darwin":
			dataDir = filepath.Join(homeDir, "Library", "Application Support", "ClipKeep")
		default:
			if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
				dataDir = filepath.Join(xdgDataHome, "clipkeep")
			} else {
				dataDir = filepath.Join(homeDir, ".local", "share", "clipkeep")
			}
		}
	}

	paths := &ConfigPaths{
		BaseDir:      baseDir,
		ConfigFile:   filepath.Join(baseDir, "config.yaml"),
		SettingsFile: filepath.Join(baseDir, "settings.yaml"),
		DataDir:      dataDir,
		DBFile:       filepath.Join(dataDir, "clipkeep.db"),
		LogDir:       filepath.Join(dataDir, "logs"),
		TempDir:      filepath.Join(dataDir, "temp"),
		RunDir:       filepath.Join(dataDir, "run"),
	}

	for _, dir := range []string{
		paths.BaseDir,
		paths.DataDir,
		paths.LogDir,
		paths.TempDir,
		paths.RunDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

// DefaultConfig returns a new Config with default values for the given paths
func DefaultConfig(paths ConfigPaths) *Config {
	return &Config{
		Log: LogConfig{
			Level:             "info",
			Format:            "auto",
			EnableFileLogging: false,
			File:              filepath.Join(paths.LogDir, "clipkeep.log"),
		},
		Storage: StorageConfig{
			Driver: DriverBolt,
			DBPath: paths.DBFile,
		},
		Capture: CaptureConfig{
			MaxImageArea:  DefaultMaxImageArea,
			PollInterval:  250 * time.Millisecond,
			ExternalTools: true,
		},
		Workers: WorkerConfig{
			PoolSize:  4,
			QueueSize: 64,
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(paths.RunDir, DefaultSocketName),
		},
		Temp: TempConfig{
			CleanupAge: 24 * time.Hour,
		},
		SystemPaths: paths,
	}
}

// setDefaults registers every key with viper so env overrides apply on Unmarshal
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.enable_file_logging", def.Log.EnableFileLogging)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("storage.driver", def.Storage.Driver)
	v.SetDefault("storage.db_path", def.Storage.DBPath)
	v.SetDefault("capture.max_image_area", def.Capture.MaxImageArea)
	v.SetDefault("capture.poll_interval", def.Capture.PollInterval)
	v.SetDefault("capture.external_tools", def.Capture.ExternalTools)
	v.SetDefault("workers.pool_size", def.Workers.PoolSize)
	v.SetDefault("workers.queue_size", def.Workers.QueueSize)
	v.SetDefault("ipc.socket_path", def.IPC.SocketPath)
	v.SetDefault("temp.cleanup_age", def.Temp.CleanupAge)
}

// Load layers defaults, the config file, CLIPKEEP_* env vars and any flags
// already bound on v, in increasing precedence. An explicit configPath must
// exist; without one, config.yaml in the config dir is used if present.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	paths, err := GetConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config paths: %w", err)
	}

	setDefaults(v, DefaultConfig(*paths))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(paths.BaseDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SystemPaths = *paths

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the daemon cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverBolt, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q (want %q or %q)", c.Storage.Driver, DriverBolt, DriverSQLite)
	}
	if c.Storage.DBPath == "" {
		return errors.New("storage.db_path must not be empty")
	}
	if c.Capture.MaxImageArea <= 0 {
		return fmt.Errorf("capture.max_image_area must be positive, got %d", c.Capture.MaxImageArea)
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("capture.poll_interval must be positive, got %s", c.Capture.PollInterval)
	}
	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("workers.pool_size must be positive, got %d", c.Workers.PoolSize)
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("workers.queue_size must not be negative, got %d", c.Workers.QueueSize)
	}
	return nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
