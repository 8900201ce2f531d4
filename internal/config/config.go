// Package config loads the emitter configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"changelog_emitter/internal/codec"
	"changelog_emitter/internal/pipeline"
	"changelog_emitter/internal/sink"

	"github.com/joho/godotenv"
)

const (
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultRedisChannel   = "binlog:all"
	defaultDBPort         = "3306"
	defaultServerID       = uint32(100)
	defaultServerName     = "mysql"
	defaultReconnectDelay = 5 * time.Second
	defaultTimezone       = "Asia/Kolkata"
)

type Config struct {
	Addr       string
	DBUser     string
	DBPass     string
	DBHost     string
	DBPort     string
	DBName     string
	ServerID   uint32
	ServerName string
	UseGTID    bool

	Sink         string
	Format       string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	RedisChannel string
	KafkaBrokers []string
	NatsURL      string
	TopicPrefix  string
	Tombstones   bool

	FilterDBs    []string
	FilterTables []string

	Workers        int
	Policy         pipeline.Policy
	TableCacheSize int
	Location       *time.Location
	ReconnectDelay time.Duration
	LogFile        string
	MetricsAddr    string
	LogFormat      string
	LogVerbose     bool
}

type EnvLookup func(string) (string, bool)

// Load reads the configuration through lookup.
func Load(lookup EnvLookup) (*Config, error) {
	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}

	cfg := &Config{
		DBUser:       get("DB_USER"),
		DBPass:       get("DB_PASS"),
		DBHost:       get("DB_HOST"),
		DBPort:       envDefault(get("DB_PORT"), defaultDBPort),
		DBName:       get("DB_NAME"),
		ServerName:   envDefault(get("SERVER_NAME"), defaultServerName),
		UseGTID:      envBool(get("USE_GTID"), false),
		Sink:         envDefault(get("SINK"), sink.TypeRedis),
		Format:       envDefault(get("FORMAT"), codec.FormatNative),
		RedisAddr:    envDefault(get("REDIS_ADDR"), defaultRedisAddr),
		RedisPass:    get("REDIS_PASS"),
		RedisChannel: get("REDIS_CHANNEL"),
		KafkaBrokers: ParseCSV(get("KAFKA_BROKERS")),
		NatsURL:      get("NATS_URL"),
		TopicPrefix:  get("TOPIC_PREFIX"),
		Tombstones:   envBool(get("TOMBSTONES_ON_DELETE"), false),
		FilterDBs:    ParseCSV(get("FILTER_DBS")),
		FilterTables: ParseCSV(get("FILTER_TABLES")),
		LogFile:      get("MESSAGE_LOG_FILE"),
		MetricsAddr:  get("METRICS_ADDR"),
		LogFormat:    get("LOG_FORMAT"),
		LogVerbose:   envBool(get("LOG_VERBOSE"), false),
	}

	if cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.DBHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}

	cfg.Addr = envDefault(get("ADDR"), fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort))

	if s := get("SERVER_ID"); s == "" {
		cfg.ServerID = defaultServerID
	} else {
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_ID: %w", err)
		}
		cfg.ServerID = uint32(id)
	}

	if s := get("REDIS_DB"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = v
	}
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = get("REDIS_STREAM")
	}
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = defaultRedisChannel
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = cfg.ServerName
	}

	switch cfg.Sink {
	case sink.TypeRedis, sink.TypeRedisStream:
	case sink.TypeKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS is required for the kafka sink")
		}
	case sink.TypeNats:
		if cfg.NatsURL == "" {
			return nil, fmt.Errorf("NATS_URL is required for the nats sink")
		}
	default:
		return nil, fmt.Errorf("invalid SINK: %s", cfg.Sink)
	}

	switch cfg.Format {
	case codec.FormatNative, codec.FormatDebezium, codec.FormatMsgpack:
	default:
		return nil, fmt.Errorf("invalid FORMAT: %s", cfg.Format)
	}

	workers, err := envInt(get("WORKERS"), 1)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKERS: %w", err)
	}
	cfg.Workers = workers

	if cfg.TableCacheSize, err = envInt(get("TABLE_CACHE_SIZE"), 1024); err != nil {
		return nil, fmt.Errorf("invalid TABLE_CACHE_SIZE: %w", err)
	}

	if cfg.Policy, err = pipeline.ParsePolicy(get("UNSUPPORTED_KIND_POLICY")); err != nil {
		return nil, err
	}

	if cfg.Location, err = time.LoadLocation(envDefault(get("TIMEZONE"), defaultTimezone)); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if s := get("RECONNECT_DELAY"); s == "" {
		cfg.ReconnectDelay = defaultReconnectDelay
	} else {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid RECONNECT_DELAY: %w", err)
		}
		cfg.ReconnectDelay = d
	}

	return cfg, nil
}

// LoadFromMap is Load over a fixed map, as read from an env file.
func LoadFromMap(env map[string]string) (*Config, error) {
	return Load(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Variables already set are kept.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

// SinkOptions selects the sink described by the configuration.
func (c Config) SinkOptions() sink.Options {
	return sink.Options{
		Type:         c.Sink,
		RedisAddr:    c.RedisAddr,
		RedisPass:    c.RedisPass,
		RedisDB:      c.RedisDB,
		KafkaBrokers: c.KafkaBrokers,
		NatsURL:      c.NatsURL,
	}
}

// Topic is the fixed destination for Redis sinks; Kafka and NATS publish
// per table under TopicPrefix.
func (c Config) Topic() string {
	if c.Sink == sink.TypeRedis || c.Sink == sink.TypeRedisStream {
		return c.RedisChannel
	}
	return ""
}

func envDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func envBool(val string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envInt(val string, def int) (int, error) {
	if val == "" {
		return def, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", v)
	}
	return v, nil
}

// ParseCSV splits a comma separated list, dropping blanks. It never returns
// nil.
func ParseCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
