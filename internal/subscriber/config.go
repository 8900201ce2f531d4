package subscriber

import (
	"strconv"
	"strings"

	"changelog_emitter/internal/config"
)

const (
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultRedisChannel = "binlog:all"

	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

type Config struct {
	Name         string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	RedisChannel string
	Format       string
	PrettyPrint  bool
	LogFormat    string
	LogVerbose   bool

	// FilterDBs and FilterTables take glob patterns.
	FilterDBs       []string
	FilterTables    []string
	FilterIDs       []string
	FilterOps       []string
	FilterChangeAny []string
	FilterChangeAll []string

	// Glob patterns, applied after the include filters.
	ExcludeDBs    []string
	ExcludeTables []string
}

type EnvLookup func(string) (string, bool)

func LoadConfigFromLookup(lookup EnvLookup) *Config {
	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return ""
	}

	cfg := &Config{
		Name:            get("SUBSCRIBER_NAME"),
		RedisAddr:       envDefault(get("REDIS_ADDR"), DefaultRedisAddr),
		RedisPass:       get("REDIS_PASS"),
		RedisChannel:    envDefault(get("REDIS_CHANNEL"), ""),
		Format:          strings.ToLower(envDefault(get("FORMAT"), FormatJSON)),
		PrettyPrint:     envBool(get("PRETTY_PRINT"), false),
		LogFormat:       get("LOG_FORMAT"),
		LogVerbose:      envBool(get("LOG_VERBOSE"), false),
		FilterDBs:       config.ParseCSV(get("FILTER_DBS")),
		FilterTables:    config.ParseCSV(get("FILTER_TABLES")),
		FilterIDs:       config.ParseCSV(get("FILTER_IDS")),
		FilterOps:       config.ParseCSV(get("FILTER_OPS")),
		FilterChangeAny: config.ParseCSV(get("FILTER_CHANGE_ANY")),
		FilterChangeAll: config.ParseCSV(get("FILTER_CHANGE_ALL")),
		ExcludeDBs:      config.ParseCSV(get("EXCLUDE_DBS")),
		ExcludeTables:   config.ParseCSV(get("EXCLUDE_TABLES")),
	}

	if cfg.RedisChannel == "" {
		cfg.RedisChannel = envDefault(get("REDIS_STREAM"), "")
	}
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = DefaultRedisChannel
	}

	if dbStr := strings.TrimSpace(get("REDIS_DB")); dbStr != "" {
		if v, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = v
		}
	}

	return cfg
}

func LoadConfigFromMap(env map[string]string) *Config {
	return LoadConfigFromLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

func envDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func envBool(val string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(val))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
