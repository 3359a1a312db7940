package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"mealog/internal/imaging"
	"mealog/internal/media"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7480"
	DefaultDBFileName = "mealog.db"
	DefaultLogLevel   = "info"

	DefaultPublicRoot = "public"

	StorageBackendLocal = "local"
	StorageBackendMinIO = "minio"

	configFileName = ".mealog.toml"

	configDirEnvKey      = "MEALOG_CONFIG_DIR"
	apiURLEnvKey         = "MEALOG_API_URL"
	dbPathEnvKey         = "MEALOG_DB"
	publicRootEnvKey     = "MEALOG_PUBLIC_ROOT"
	sessionSecretEnvKey  = "MEALOG_SESSION_SECRET"
	minioAccessKeyEnvKey = "MEALOG_MINIO_ACCESS_KEY"
	minioSecretKeyEnvKey = "MEALOG_MINIO_SECRET_KEY"
)

// ImagesConfig bounds upload ingestion and transcoding.
type ImagesConfig struct {
	MaxWidth        int   `toml:"max_width" json:"max_width" yaml:"max_width"`
	MaxHeight       int   `toml:"max_height" json:"max_height" yaml:"max_height"`
	MaxSizeBytes    int   `toml:"max_size_bytes" json:"max_size_bytes" yaml:"max_size_bytes"`
	InitialQuality  int   `toml:"initial_quality" json:"initial_quality" yaml:"initial_quality"`
	QualityFloor    int   `toml:"quality_floor" json:"quality_floor" yaml:"quality_floor"`
	QualityStep     int   `toml:"quality_step" json:"quality_step" yaml:"quality_step"`
	MaxSourcePixels int   `toml:"max_source_pixels" json:"max_source_pixels" yaml:"max_source_pixels"`
	MaxUploadBytes  int64 `toml:"max_upload_bytes" json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// StorageConfig selects where stored images live.
type StorageConfig struct {
	Backend      string `toml:"backend" json:"backend" yaml:"backend"`
	PublicRoot   string `toml:"public_root" json:"public_root" yaml:"public_root"`
	PublicPrefix string `toml:"public_prefix" json:"public_prefix" yaml:"public_prefix"`

	MinIOEndpoint  string `toml:"minio_endpoint" json:"minio_endpoint,omitempty" yaml:"minio_endpoint,omitempty"`
	MinIOBucket    string `toml:"minio_bucket" json:"minio_bucket,omitempty" yaml:"minio_bucket,omitempty"`
	MinIOPrefix    string `toml:"minio_prefix" json:"minio_prefix,omitempty" yaml:"minio_prefix,omitempty"`
	MinIORegion    string `toml:"minio_region" json:"minio_region,omitempty" yaml:"minio_region,omitempty"`
	MinIOUseSSL    bool   `toml:"minio_use_ssl" json:"minio_use_ssl" yaml:"minio_use_ssl"`
	MinIOAccessKey string `toml:"minio_access_key" json:"-" yaml:"-"`
	MinIOSecretKey string `toml:"minio_secret_key" json:"-" yaml:"-"`
}

// Config defines runtime configuration for mealog.
type Config struct {
	APIURL        string        `toml:"api_url" json:"api_url" yaml:"api_url"`
	DBPath        string        `toml:"db_path" json:"db_path" yaml:"db_path"`
	LogLevel      string        `toml:"log_level" json:"log_level" yaml:"log_level"`
	SessionSecret string        `toml:"session_secret" json:"-" yaml:"-"`
	SecureCookies bool          `toml:"secure_cookies" json:"secure_cookies" yaml:"secure_cookies"`
	// AllowRegister gates self-service sign-up; admins can still provision accounts.
	AllowRegister bool          `toml:"allow_register" json:"allow_register" yaml:"allow_register"`
	Images        ImagesConfig  `toml:"images" json:"images" yaml:"images"`
	Storage       StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
}

// Default returns default configuration values.
func Default() Config {
	opts := imaging.DefaultOptions()
	return Config{
		APIURL:        DefaultAPIURL,
		LogLevel:      DefaultLogLevel,
		AllowRegister: true,
		Images: ImagesConfig{
			MaxWidth:        opts.MaxWidth,
			MaxHeight:       opts.MaxHeight,
			MaxSizeBytes:    opts.MaxSizeBytes,
			InitialQuality:  opts.InitialQuality,
			QualityFloor:    opts.QualityFloor,
			QualityStep:     opts.QualityStep,
			MaxSourcePixels: opts.MaxSourcePixels,
			MaxUploadBytes:  media.DefaultMaxUploadBytes,
		},
		Storage: StorageConfig{
			Backend:      StorageBackendLocal,
			PublicRoot:   DefaultPublicRoot,
			PublicPrefix: media.DefaultPublicPrefix,
		},
	}
}

// TranscoderOptions converts the images section to transcoder bounds.
func (c ImagesConfig) TranscoderOptions() imaging.Options {
	return imaging.Options{
		MaxWidth:        c.MaxWidth,
		MaxHeight:       c.MaxHeight,
		MaxSizeBytes:    c.MaxSizeBytes,
		InitialQuality:  c.InitialQuality,
		QualityFloor:    c.QualityFloor,
		QualityStep:     c.QualityStep,
		MaxSourcePixels: c.MaxSourcePixels,
	}
}

// LocalImageDir is the directory the local backend writes to: <public_root>/<public_prefix>.
func (c StorageConfig) LocalImageDir() string {
	prefix := media.NewPaths(c.PublicPrefix).Prefix()
	return filepath.Join(c.PublicRoot, filepath.FromSlash(prefix))
}

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	if err := c.Images.TranscoderOptions().Validate(); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	switch c.Storage.Backend {
	case StorageBackendLocal:
		if strings.TrimSpace(c.Storage.PublicRoot) == "" {
			return fmt.Errorf("storage.public_root is required for the local backend")
		}
	case StorageBackendMinIO:
		if c.Storage.MinIOEndpoint == "" || c.Storage.MinIOBucket == "" {
			return fmt.Errorf("storage.minio_endpoint and storage.minio_bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q (want %s or %s)", c.Storage.Backend, StorageBackendLocal, StorageBackendMinIO)
	}
	return nil
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"session_secret",
	"secure_cookies",
	"allow_register",
	"images.max_width",
	"images.max_height",
	"images.max_size_bytes",
	"images.initial_quality",
	"images.quality_floor",
	"images.quality_step",
	"images.max_source_pixels",
	"images.max_upload_bytes",
	"storage.backend",
	"storage.public_root",
	"storage.public_prefix",
	"storage.minio_endpoint",
	"storage.minio_bucket",
	"storage.minio_prefix",
	"storage.minio_region",
	"storage.minio_use_ssl",
	"storage.minio_access_key",
	"storage.minio_secret_key",
}

var secretKeys = map[string]struct{}{
	"session_secret":           {},
	"storage.minio_access_key": {},
	"storage.minio_secret_key": {},
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IsSecretKey reports keys whose values are never printed.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[key]
	return ok
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "session_secret":
		return c.SessionSecret, nil
	case "secure_cookies":
		return strconv.FormatBool(c.SecureCookies), nil
	case "allow_register":
		return strconv.FormatBool(c.AllowRegister), nil
	case "images.max_width":
		return strconv.Itoa(c.Images.MaxWidth), nil
	case "images.max_height":
		return strconv.Itoa(c.Images.MaxHeight), nil
	case "images.max_size_bytes":
		return strconv.Itoa(c.Images.MaxSizeBytes), nil
	case "images.initial_quality":
		return strconv.Itoa(c.Images.InitialQuality), nil
	case "images.quality_floor":
		return strconv.Itoa(c.Images.QualityFloor), nil
	case "images.quality_step":
		return strconv.Itoa(c.Images.QualityStep), nil
	case "images.max_source_pixels":
		return strconv.Itoa(c.Images.MaxSourcePixels), nil
	case "images.max_upload_bytes":
		return strconv.FormatInt(c.Images.MaxUploadBytes, 10), nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.public_root":
		return c.Storage.PublicRoot, nil
	case "storage.public_prefix":
		return c.Storage.PublicPrefix, nil
	case "storage.minio_endpoint":
		return c.Storage.MinIOEndpoint, nil
	case "storage.minio_bucket":
		return c.Storage.MinIOBucket, nil
	case "storage.minio_prefix":
		return c.Storage.MinIOPrefix, nil
	case "storage.minio_region":
		return c.Storage.MinIORegion, nil
	case "storage.minio_use_ssl":
		return strconv.FormatBool(c.Storage.MinIOUseSSL), nil
	case "storage.minio_access_key":
		return c.Storage.MinIOAccessKey, nil
	case "storage.minio_secret_key":
		return c.Storage.MinIOSecretKey, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if IsSecretKey(key) {
		perm = 0o600
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err == nil {
		if _, err := loadFileIfExists(path, &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if root := os.Getenv(publicRootEnvKey); root != "" {
		cfg.Storage.PublicRoot = root
	}
	if secret := os.Getenv(sessionSecretEnvKey); secret != "" {
		cfg.SessionSecret = secret
	}
	if key := os.Getenv(minioAccessKeyEnvKey); key != "" {
		cfg.Storage.MinIOAccessKey = key
	}
	if key := os.Getenv(minioSecretKeyEnvKey); key != "" {
		cfg.Storage.MinIOSecretKey = key
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "images.max_width", "images.max_height", "images.max_size_bytes",
		"images.initial_quality", "images.quality_floor", "images.quality_step":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return int64(parsed), nil
	case "images.max_source_pixels":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return int64(parsed), nil
	case "images.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "secure_cookies", "allow_register", "storage.minio_use_ssl":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "storage.backend":
		lowered := strings.ToLower(value)
		if lowered != StorageBackendLocal && lowered != StorageBackendMinIO {
			return nil, fmt.Errorf("%s must be %s or %s", key, StorageBackendLocal, StorageBackendMinIO)
		}
		return lowered, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Images.MaxUploadBytes <= 0 {
		c.Images.MaxUploadBytes = defaults.Images.MaxUploadBytes
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if strings.TrimSpace(c.Storage.PublicPrefix) == "" {
		c.Storage.PublicPrefix = defaults.Storage.PublicPrefix
	}
}
