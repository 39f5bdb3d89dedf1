package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings, populated from environment variables
// and an optional sources file.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Push feed listener.
	PushHost string
	PushPort int

	// AutoStart starts every enabled source at boot.
	AutoStart bool

	// Spots older than SpotLifetime are hidden; older than MaxSpotLifetime are deleted.
	SpotLifetime    time.Duration
	MaxSpotLifetime time.Duration

	// Polling sources.
	PollInterval time.Duration
	PollTimeout  time.Duration
	PollRetry    bool

	// TimeZone is the zone wall-clock wire timestamps are interpreted in.
	TimeZone *time.Location

	MaxLanes int

	// Kafka is enabled when KafkaBrokers is non-empty.
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	// Sources holds per-source overrides keyed by source name.
	Sources map[string]SourceSettings
}

// SourceSettings overrides a source's defaults. Nil/empty fields keep the default.
type SourceSettings struct {
	Enabled *bool  `yaml:"enabled"`
	Color   string `yaml:"color"`
}

// sourcesFile is the on-disk layout of SOURCES_FILE.
type sourcesFile struct {
	Sources map[string]SourceSettings `yaml:"sources"`
}

// PushAddr returns the host:port the push listener binds to.
func (c *Config) PushAddr() string {
	return net.JoinHostPort(c.PushHost, strconv.Itoa(c.PushPort))
}

// KafkaEnabled reports whether Kafka brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	spotLifetime, err := parsePositiveDuration("SPOT_LIFETIME", "30m")
	if err != nil {
		return nil, err
	}
	maxSpotLifetime, err := parsePositiveDuration("MAX_SPOT_LIFETIME", "240m")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "15s")
	if err != nil {
		return nil, err
	}
	pollTimeout, err := parsePositiveDuration("POLL_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pushPort, err := strconv.Atoi(sharedcfg.EnvOrDefault("PUSH_PORT", "6214"))
	if err != nil || pushPort < 1 || pushPort > 65535 {
		return nil, errors.New("invalid PUSH_PORT")
	}

	maxLanes, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAX_LANES", "8"))
	if err != nil || maxLanes < 1 {
		return nil, errors.New("invalid MAX_LANES")
	}

	autoStart, err := parseBool("AUTO_START", false)
	if err != nil {
		return nil, err
	}
	pollRetry, err := parseBool("POLL_RETRY", false)
	if err != nil {
		return nil, err
	}

	tz, err := time.LoadLocation(sharedcfg.EnvOrDefault("SPOT_TIME_ZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid SPOT_TIME_ZONE: %w", err)
	}

	var brokers []string
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	sources, err := loadSourcesFile(os.Getenv("SOURCES_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		PushHost:         sharedcfg.EnvOrDefault("PUSH_HOST", "localhost"),
		PushPort:         pushPort,
		AutoStart:        autoStart,
		SpotLifetime:     spotLifetime,
		MaxSpotLifetime:  maxSpotLifetime,
		PollInterval:     pollInterval,
		PollTimeout:      pollTimeout,
		PollRetry:        pollRetry,
		TimeZone:         tz,
		MaxLanes:         maxLanes,
		KafkaBrokers:     brokers,
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "spots-inbound"),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "spots-accepted"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "spotlane"),
		Sources:          sources,
	}

	if cfg.SpotLifetime > cfg.MaxSpotLifetime {
		return nil, errors.New("SPOT_LIFETIME must not exceed MAX_SPOT_LIFETIME")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func loadSourcesFile(path string) (map[string]SourceSettings, error) {
	if path == "" {
		return map[string]SourceSettings{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SOURCES_FILE: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse SOURCES_FILE: %w", err)
	}
	if f.Sources == nil {
		f.Sources = map[string]SourceSettings{}
	}
	return f.Sources, nil
}
