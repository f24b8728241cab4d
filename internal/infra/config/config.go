// Package config loads service configuration.
//
// Precedence, lowest first: built-in defaults, the optional config file named
// by CONFIG_FILE (YAML or TOML, chosen by extension), environment variables.
// Every field has a default so the binary runs locally without any setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	ConverterNative  = "native"
	ConverterBuiltin = "builtin"
)

// Config holds runtime configuration. Environment variable names and
// defaults are listed per field.
type Config struct {
	// HOST, default: "0.0.0.0"
	Host string `yaml:"host" toml:"host"`
	// PORT, default: 8080
	Port int `yaml:"port" toml:"port"`

	// DATA_DIR, default: "/data"
	DataDir string `yaml:"data_dir" toml:"data_dir"`
	// IN_DIR, default: DATA_DIR/in
	InDir string `yaml:"in_dir" toml:"in_dir"`
	// OUT_DIR, default: DATA_DIR/out
	OutDir string `yaml:"out_dir" toml:"out_dir"`
	// DB_PATH, default: DATA_DIR/ifcglb.db
	DBPath string `yaml:"db_path" toml:"db_path"`

	// MAX_UPLOAD_MB, default: 1024
	MaxUploadMB int64 `yaml:"max_upload_mb" toml:"max_upload_mb"`
	// RETAIN_INPUTS, default: true; false deletes uploads once converted
	RetainInputs bool `yaml:"retain_inputs" toml:"retain_inputs"`

	// LOG_LEVEL, default: "info"
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// LOG_FORMAT, default: "json"; "console" for humans
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// CONVERTER, default: "native"
	Converter string `yaml:"converter" toml:"converter"`
	// IFCGLB_LIB_PATH, default: library search
	LibraryPath string `yaml:"library_path" toml:"library_path"`
	// MAX_CONCURRENT_CONVERSIONS, default: 1 for native, NumCPU for builtin
	MaxConcurrent int `yaml:"max_concurrent_conversions" toml:"max_concurrent_conversions"`
	// CONVERSION_QUEUE_TIMEOUT, default: 0 (wait for the request context)
	QueueTimeout Duration `yaml:"queue_timeout" toml:"queue_timeout"`

	// READ_TIMEOUT, default: 5m
	ReadTimeout Duration `yaml:"read_timeout" toml:"read_timeout"`
	// WRITE_TIMEOUT, default: 30m
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout"`

	// JWT_SECRET, default: "" (bearer auth disabled)
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	// API_KEY_HASHES: comma separated bcrypt hashes
	APIKeyHashes []string `yaml:"api_key_hashes" toml:"api_key_hashes"`
}

// Duration is a time.Duration that decodes from strings like "90s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for YAML and TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

const (
	envKeyConfigFile    = "CONFIG_FILE"
	envKeyHost          = "HOST"
	envKeyPort          = "PORT"
	envKeyDataDir       = "DATA_DIR"
	envKeyInDir         = "IN_DIR"
	envKeyOutDir        = "OUT_DIR"
	envKeyDBPath        = "DB_PATH"
	envKeyMaxUploadMB   = "MAX_UPLOAD_MB"
	envKeyRetainInputs  = "RETAIN_INPUTS"
	envKeyLogLevel      = "LOG_LEVEL"
	envKeyLogFormat     = "LOG_FORMAT"
	envKeyConverter     = "CONVERTER"
	envKeyLibraryPath   = "IFCGLB_LIB_PATH"
	envKeyMaxConcurrent = "MAX_CONCURRENT_CONVERSIONS"
	envKeyQueueTimeout  = "CONVERSION_QUEUE_TIMEOUT"
	envKeyReadTimeout   = "READ_TIMEOUT"
	envKeyWriteTimeout  = "WRITE_TIMEOUT"
	envKeyJWTSecret     = "JWT_SECRET"
	envKeyAPIKeyHashes  = "API_KEY_HASHES"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		DataDir:      "/data",
		MaxUploadMB:  1024,
		RetainInputs: true,
		LogLevel:     "info",
		LogFormat:    "json",
		Converter:    ConverterNative,
		ReadTimeout:  Duration(5 * time.Minute),
		WriteTimeout: Duration(30 * time.Minute),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then fills derived values.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envKeyConfigFile); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes a YAML (.yaml, .yml) or TOML (.toml) file over cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config: unsupported config file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Host = envOr(envKeyHost, cfg.Host)
	cfg.DataDir = envOr(envKeyDataDir, cfg.DataDir)
	cfg.InDir = envOr(envKeyInDir, cfg.InDir)
	cfg.OutDir = envOr(envKeyOutDir, cfg.OutDir)
	cfg.DBPath = envOr(envKeyDBPath, cfg.DBPath)
	cfg.LogLevel = envOr(envKeyLogLevel, cfg.LogLevel)
	cfg.LogFormat = envOr(envKeyLogFormat, cfg.LogFormat)
	cfg.Converter = strings.ToLower(envOr(envKeyConverter, cfg.Converter))
	cfg.LibraryPath = envOr(envKeyLibraryPath, cfg.LibraryPath)
	cfg.JWTSecret = envOr(envKeyJWTSecret, cfg.JWTSecret)
	if v := os.Getenv(envKeyAPIKeyHashes); v != "" {
		cfg.APIKeyHashes = splitList(v)
	}

	var err error
	if cfg.Port, err = envInt(envKeyPort, cfg.Port); err != nil {
		return err
	}
	if cfg.MaxConcurrent, err = envInt(envKeyMaxConcurrent, cfg.MaxConcurrent); err != nil {
		return err
	}
	if v := os.Getenv(envKeyMaxUploadMB); v != "" {
		n, parseErr := strconv.ParseInt(v, 10, 64)
		if parseErr != nil {
			return fmt.Errorf("config: %s: %w", envKeyMaxUploadMB, parseErr)
		}
		cfg.MaxUploadMB = n
	}
	if v := os.Getenv(envKeyRetainInputs); v != "" {
		b, parseErr := strconv.ParseBool(v)
		if parseErr != nil {
			return fmt.Errorf("config: %s: %w", envKeyRetainInputs, parseErr)
		}
		cfg.RetainInputs = b
	}
	for key, dst := range map[string]*Duration{
		envKeyQueueTimeout: &cfg.QueueTimeout,
		envKeyReadTimeout:  &cfg.ReadTimeout,
		envKeyWriteTimeout: &cfg.WriteTimeout,
	} {
		if v := os.Getenv(key); v != "" {
			if parseErr := dst.UnmarshalText([]byte(v)); parseErr != nil {
				return fmt.Errorf("config: %s: %w", key, parseErr)
			}
		}
	}
	return nil
}

func (c *Config) fillDerived() {
	if c.InDir == "" {
		c.InDir = filepath.Join(c.DataDir, "in")
	}
	if c.OutDir == "" {
		c.OutDir = filepath.Join(c.DataDir, "out")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "ifcglb.db")
	}
	if c.MaxConcurrent <= 0 {
		// the native library makes no thread-safety promise
		if c.Converter == ConverterNative {
			c.MaxConcurrent = 1
		} else {
			c.MaxConcurrent = runtime.NumCPU()
		}
	}
}

// Validate rejects values the service cannot start with.
func (c Config) Validate() error {
	if c.Converter != ConverterNative && c.Converter != ConverterBuiltin {
		return fmt.Errorf("config: converter must be %q or %q, got %q", ConverterNative, ConverterBuiltin, c.Converter)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("config: max upload must be positive, got %d MB", c.MaxUploadMB)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// AuthEnabled reports whether API requests must authenticate.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != "" || len(c.APIKeyHashes) > 0
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
