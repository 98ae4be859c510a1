package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/lookout/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// ErrInvalidThreshold is returned when the match threshold is outside [0, 1].
var ErrInvalidThreshold = errors.New("match threshold must be between 0 and 1")

type Config struct {
	Database  DatabaseConfig
	Matching  MatchingConfig
	Photos    PhotoStoreConfig
	Channels  ChannelConfig
	Web       WebConfig
	Log       LogConfig
	Templates TemplatesConfig
}

type DatabaseConfig struct {
	Driver        string // postgres (default) or mysql
	URL           string // connection URL / DSN
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the operator lookup index (optional)
}

// MatchingConfig holds the knobs of a cross-reference run.
type MatchingConfig struct {
	Threshold   float64       // minimum similarity for a match, in [0, 1]
	Concurrency int           // concurrent photo reads per run
	Timeout     time.Duration // overall bound of one run
	CacheTTL    time.Duration // in-process feature cache TTL
	// PersistFeatures stores extracted vectors in the database (postgres or mariadb)
	PersistFeatures bool
}

type PhotoStoreConfig struct {
	Backend        string // local (default) or minio
	Dir            string // root directory for the local backend
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

type ChannelConfig struct {
	NtfyURL         string // ntfy topic URL, empty disables ntfy
	SMSWebhookURL   string // SMS gateway webhook, empty disables SMS
	SMSWebhookToken string
	RatePerSecond   int
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS origins in addition to localhost
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// TemplatesConfig holds notification texts per notification type.
type TemplatesConfig struct {
	FaceMatch MessageTemplate `yaml:"face_match"`
	Sighting  MessageTemplate `yaml:"sighting"`
}

// MessageTemplate is a title/message pair with {name}, {percent} and {location} placeholders.
// Location is appended to the message only when a location is known.
type MessageTemplate struct {
	Title    string `yaml:"title"`
	Message  string `yaml:"message"`
	Location string `yaml:"location"`
}

// fileOverlay mirrors the optional LOOKOUT_CONFIG YAML file.
type fileOverlay struct {
	Matching struct {
		Threshold       *float64 `yaml:"threshold"`
		Concurrency     *int     `yaml:"concurrency"`
		TimeoutSeconds  *int     `yaml:"timeout_seconds"`
		PersistFeatures *bool    `yaml:"persist_features"`
	} `yaml:"matching"`
	Templates *TemplatesConfig `yaml:"templates"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float. Unlike envInt it fails
// on unparseable input; range checks are left to Validate.
func envFloat(key string, defaultVal float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from defaults, the optional YAML file named by
// LOOKOUT_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	var templates TemplatesConfig
	if err := yaml.Unmarshal(templatesYAML, &templates); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded templates.yaml: " + err.Error())
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Matching: MatchingConfig{
			Threshold:   constants.DefaultMatchThreshold,
			Concurrency: constants.DefaultScanConcurrency,
			Timeout:     constants.DefaultScanTimeout,
			CacheTTL:    constants.DefaultFeatureCacheTTL,
		},
		Photos: PhotoStoreConfig{
			Backend: "local",
			Dir:     "./photos",
		},
		Channels: ChannelConfig{
			RatePerSecond: constants.DefaultChannelRatePerSecond,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Templates: templates,
	}

	if path := os.Getenv("LOOKOUT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	m := overlay.Matching
	if m.Threshold != nil {
		c.Matching.Threshold = *m.Threshold
	}
	if m.Concurrency != nil {
		c.Matching.Concurrency = *m.Concurrency
	}
	if m.TimeoutSeconds != nil {
		c.Matching.Timeout = time.Duration(*m.TimeoutSeconds) * time.Second
	}
	if m.PersistFeatures != nil {
		c.Matching.PersistFeatures = *m.PersistFeatures
	}
	if t := overlay.Templates; t != nil {
		c.Templates.FaceMatch = mergeTemplate(c.Templates.FaceMatch, t.FaceMatch)
		c.Templates.Sighting = mergeTemplate(c.Templates.Sighting, t.Sighting)
	}
	return nil
}

// mergeTemplate overrides only the non-empty fields of base.
func mergeTemplate(base, override MessageTemplate) MessageTemplate {
	if override.Title != "" {
		base.Title = override.Title
	}
	if override.Message != "" {
		base.Message = override.Message
	}
	if override.Location != "" {
		base.Location = override.Location
	}
	return base
}

func (c *Config) applyEnv() error {
	c.Database.Driver = envString("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.HNSWIndexPath = envString("HNSW_INDEX_PATH", c.Database.HNSWIndexPath)

	threshold, err := envFloat("MATCH_THRESHOLD", c.Matching.Threshold)
	if err != nil {
		return err
	}
	c.Matching.Threshold = threshold
	c.Matching.Concurrency = envInt("MATCH_CONCURRENCY", c.Matching.Concurrency)
	c.Matching.Timeout = time.Duration(envInt("MATCH_TIMEOUT_SECONDS", int(c.Matching.Timeout/time.Second))) * time.Second
	c.Matching.CacheTTL = time.Duration(envInt("FEATURE_CACHE_TTL_MINUTES", int(c.Matching.CacheTTL/time.Minute))) * time.Minute
	c.Matching.PersistFeatures = envBool("PERSIST_FEATURES", c.Matching.PersistFeatures)

	c.Photos.Backend = envString("PHOTO_STORE", c.Photos.Backend)
	c.Photos.Dir = envString("PHOTO_DIR", c.Photos.Dir)
	c.Photos.MinioEndpoint = envString("MINIO_ENDPOINT", c.Photos.MinioEndpoint)
	c.Photos.MinioAccessKey = envString("MINIO_ACCESS_KEY", c.Photos.MinioAccessKey)
	c.Photos.MinioSecretKey = envString("MINIO_SECRET_KEY", c.Photos.MinioSecretKey)
	c.Photos.MinioBucket = envString("MINIO_BUCKET", c.Photos.MinioBucket)
	c.Photos.MinioUseSSL = envBool("MINIO_USE_SSL", c.Photos.MinioUseSSL)

	c.Channels.NtfyURL = envString("NTFY_URL", c.Channels.NtfyURL)
	c.Channels.SMSWebhookURL = envString("SMS_WEBHOOK_URL", c.Channels.SMSWebhookURL)
	c.Channels.SMSWebhookToken = envString("SMS_WEBHOOK_TOKEN", c.Channels.SMSWebhookToken)
	c.Channels.RatePerSecond = envInt("CHANNEL_RATE_PER_SECOND", c.Channels.RatePerSecond)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	if env := os.Getenv("WEB_ALLOWED_ORIGINS"); env != "" {
		c.Web.AllowedOrigins = nil
		for o := range strings.SplitSeq(env, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Web.AllowedOrigins = append(c.Web.AllowedOrigins, o)
			}
		}
	}

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
	return nil
}

// Validate reports configuration values that would make matching misbehave.
func (c *Config) Validate() error {
	if !(c.Matching.Threshold >= 0 && c.Matching.Threshold <= 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, c.Matching.Threshold)
	}
	if c.Matching.Concurrency <= 0 {
		return fmt.Errorf("match concurrency must be positive, got %d", c.Matching.Concurrency)
	}
	if c.Matching.Timeout <= 0 {
		return fmt.Errorf("match timeout must be positive, got %s", c.Matching.Timeout)
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (want postgres or mysql)", c.Database.Driver)
	}
	switch c.Photos.Backend {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported PHOTO_STORE %q (want local or minio)", c.Photos.Backend)
	}
	return nil
}
