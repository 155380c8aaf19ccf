package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/skeleton/internal/common/configtypes"
	"github.com/edgecomet/skeleton/internal/common/yamlutil"
)

// ErrCapability marks a configuration that enables a feature without the
// integration it depends on.
var ErrCapability = errors.New("required capability is not configured")

const (
	DefaultListen          = ":8888"
	DefaultServerName      = "LOCAL"
	DefaultServerTimeout   = 30 * time.Second
	DefaultPingPath        = "/service/ping"
	DefaultCollection      = "user_events"
	DefaultFlushPeriod     = 10 * time.Second
	DefaultBatchSize       = 10
	DefaultHTTPMaxConns    = 100
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultXMLRPCClients   = 10
	DefaultRedisAddr       = "127.0.0.1:6379"
	DefaultMongoPort       = 27017
	DefaultLanguage        = "en"
	DefaultJWTAlgorithm    = "HS256"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNS       = "skeleton"
	DefaultClickHouseDial  = 5 * time.Second
	defaultMongoMinPool    = 5
	defaultMongoMaxPool    = 10
	defaultRedisMinIdle    = 5
	defaultRedisPoolSize   = 10
	defaultMySQLMaxOpen    = 10
	defaultMySQLMaxIdle    = 5
	defaultClientIPHeader  = "X-Real-IP"

	defaultPostgresMaxConns = 10
	defaultPostgresMinConns = 1
	defaultPostgresConnect  = 10 * time.Second

	defaultEventFileMaxSize    = 100 // MB
	defaultEventFileMaxAge     = 30  // days
	defaultEventFileMaxBackups = 10
	defaultRedisDBSelector = -1
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is usable as a collection or table name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Load reads, defaults and validates the service configuration at path.
func Load(path string, logger *zap.Logger) (*configtypes.AppConfig, error) {
	logger.Info("Loading configuration", zap.String("path", path))

	var cfg configtypes.AppConfig
	if err := yamlutil.LoadFileStrict(path, &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Info("Configuration loaded successfully",
		zap.String("server_name", cfg.Server.Name),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("event_writer", cfg.EventWriter.Enabled),
		zap.String("event_sink", cfg.EventWriter.Sink))

	return &cfg, nil
}

// ApplyDefaults fills every unset option with its default value.
func ApplyDefaults(cfg *configtypes.AppConfig) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = DefaultServerName
	}
	if cfg.Server.Listen == "" && cfg.Server.UnixSocket == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = configtypes.Duration(DefaultServerTimeout)
	}

	// If both outputs are disabled, enable console
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = configtypes.LogLevelInfo
		if cfg.Server.Debug {
			cfg.Log.Level = configtypes.LogLevelDebug
		}
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = configtypes.LogFormatConsole
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = configtypes.LogFormatText
	}

	if cfg.Redis.Addr == "" && cfg.Redis.UnixSocket == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.MinIdle == 0 {
		cfg.Redis.MinIdle = defaultRedisMinIdle
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = defaultRedisPoolSize
	}
	if cfg.Redis.Compression == "" {
		cfg.Redis.Compression = configtypes.CompressionNone
	}

	if cfg.Mongo.Server == "" {
		cfg.Mongo.Server = "localhost"
	}
	if cfg.Mongo.Port == 0 {
		cfg.Mongo.Port = DefaultMongoPort
	}
	if cfg.Mongo.AuthDB == "" {
		cfg.Mongo.AuthDB = cfg.Mongo.Database
	}
	if cfg.Mongo.MinPoolSize == 0 {
		cfg.Mongo.MinPoolSize = defaultMongoMinPool
	}
	if cfg.Mongo.MaxPoolSize == 0 {
		cfg.Mongo.MaxPoolSize = defaultMongoMaxPool
	}

	if cfg.ClickHouse.Timeout == 0 {
		cfg.ClickHouse.Timeout = configtypes.Duration(DefaultClickHouseDial)
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = defaultMySQLMaxOpen
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = defaultMySQLMaxIdle
	}

	if cfg.Postgres.MaxConns == 0 {
		cfg.Postgres.MaxConns = defaultPostgresMaxConns
	}
	if cfg.Postgres.MinConns == 0 {
		cfg.Postgres.MinConns = defaultPostgresMinConns
	}
	if cfg.Postgres.ConnectTimeout == 0 {
		cfg.Postgres.ConnectTimeout = configtypes.Duration(defaultPostgresConnect)
	}

	if cfg.EventFile.Rotation.MaxSize == 0 {
		cfg.EventFile.Rotation.MaxSize = defaultEventFileMaxSize
	}
	if cfg.EventFile.Rotation.MaxAge == 0 {
		cfg.EventFile.Rotation.MaxAge = defaultEventFileMaxAge
	}
	if cfg.EventFile.Rotation.MaxBackups == 0 {
		cfg.EventFile.Rotation.MaxBackups = defaultEventFileMaxBackups
	}

	if cfg.EventWriter.Sink == "" {
		cfg.EventWriter.Sink = configtypes.SinkMongo
	}
	if cfg.EventWriter.Collection == "" {
		cfg.EventWriter.Collection = DefaultCollection
	}
	if cfg.EventWriter.FlushPeriod == 0 {
		cfg.EventWriter.FlushPeriod = configtypes.Duration(DefaultFlushPeriod)
	}
	if cfg.EventWriter.BatchSize == 0 {
		cfg.EventWriter.BatchSize = DefaultBatchSize
	}

	if cfg.Auth.Algorithm == "" {
		cfg.Auth.Algorithm = DefaultJWTAlgorithm
	}
	if cfg.Ping.Path == "" {
		cfg.Ping.Path = DefaultPingPath
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.HTTPClient.MaxConns == 0 {
		cfg.HTTPClient.MaxConns = DefaultHTTPMaxConns
	}
	if cfg.HTTPClient.Timeout == 0 {
		cfg.HTTPClient.Timeout = configtypes.Duration(DefaultHTTPTimeout)
	}
	if cfg.XMLRPC.MaxClients == 0 {
		cfg.XMLRPC.MaxClients = DefaultXMLRPCClients
	}
	if len(cfg.ClientIP.Headers) == 0 {
		cfg.ClientIP.Headers = []string{defaultClientIPHeader}
	}
	if cfg.Languages.DefaultLocal == "" {
		cfg.Languages.DefaultLocal = DefaultLanguage
	}
	if cfg.Languages.DefaultInternational == "" {
		cfg.Languages.DefaultInternational = DefaultLanguage
	}
}

// Validate checks cfg and returns every problem found, joined. Problems with
// integration dependencies wrap ErrCapability.
func Validate(cfg *configtypes.AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	missing := func(feature, capability string) {
		errs = append(errs, fmt.Errorf("%s requires %s: %w", feature, capability, ErrCapability))
	}

	if cfg.Server.UnixSocket == "" {
		if err := configtypes.ValidateListenAddress(cfg.Server.Listen); err != nil {
			add("server.listen: %w", err)
		}
	}
	if cfg.Server.Timeout < 0 {
		add("server.timeout must not be negative")
	}

	if cfg.Redis.Enabled {
		if cfg.Redis.DB < defaultRedisDBSelector {
			add("redis.db must be -1 or a database index, got %d", cfg.Redis.DB)
		}
		if cfg.Redis.MinIdle > cfg.Redis.PoolSize {
			add("redis.min_idle (%d) exceeds redis.pool_size (%d)", cfg.Redis.MinIdle, cfg.Redis.PoolSize)
		}
		switch cfg.Redis.Compression {
		case configtypes.CompressionNone, configtypes.CompressionSnappy, configtypes.CompressionLZ4:
		default:
			add("redis.compression must be one of none, snappy, lz4, got %q", cfg.Redis.Compression)
		}
	}

	if cfg.Mongo.Enabled {
		if cfg.Mongo.URI == "" && cfg.Mongo.Database == "" {
			add("mongo.database is required when mongo.uri is not set")
		}
		if cfg.Mongo.MinPoolSize > cfg.Mongo.MaxPoolSize {
			add("mongo.min_pool_size (%d) exceeds mongo.max_pool_size (%d)", cfg.Mongo.MinPoolSize, cfg.Mongo.MaxPoolSize)
		}
	}
	if cfg.ClickHouse.Enabled && len(cfg.ClickHouse.Addr) == 0 {
		add("clickhouse.addr must list at least one server")
	}
	if cfg.MySQL.Enabled && cfg.MySQL.DSN == "" {
		add("mysql.dsn is required when mysql is enabled")
	}
	if cfg.Postgres.Enabled {
		if cfg.Postgres.DSN == "" {
			add("postgres.dsn is required when postgres is enabled")
		}
		if cfg.Postgres.MinConns > cfg.Postgres.MaxConns {
			add("postgres.min_conns (%d) exceeds postgres.max_conns (%d)", cfg.Postgres.MinConns, cfg.Postgres.MaxConns)
		}
	}
	if cfg.EventFile.Enabled && cfg.EventFile.Path == "" {
		add("event_file.path is required when event_file is enabled")
	}

	ew := cfg.EventWriter
	if ew.Enabled {
		switch ew.Sink {
		case configtypes.SinkMongo:
			if !cfg.Mongo.Enabled {
				missing("event_writer with sink mongo", "mongo.enabled")
			}
		case configtypes.SinkClickHouse:
			if !cfg.ClickHouse.Enabled {
				missing("event_writer with sink clickhouse", "clickhouse.enabled")
			}
		case configtypes.SinkMySQL:
			if !cfg.MySQL.Enabled {
				missing("event_writer with sink mysql", "mysql.enabled")
			}
		case configtypes.SinkPostgres:
			if !cfg.Postgres.Enabled {
				missing("event_writer with sink postgres", "postgres.enabled")
			}
		case configtypes.SinkFile:
			if !cfg.EventFile.Enabled {
				missing("event_writer with sink file", "event_file.enabled")
			}
		default:
			add("event_writer.sink must be one of mongo, clickhouse, mysql, postgres, file, got %q", ew.Sink)
		}
		if !ValidIdentifier(ew.Collection) {
			add("event_writer.collection %q is not a valid identifier", ew.Collection)
		}
		if ew.FlushPeriod.ToDuration() <= 0 {
			add("event_writer.flush_period must be positive")
		}
		if ew.BatchSize <= 0 {
			add("event_writer.batch_size must be positive, got %d", ew.BatchSize)
		}
	}

	if cfg.XMLRPC.Enabled && cfg.XMLRPC.MaxClients < 0 {
		add("xmlrpc.max_clients must be positive, got %d", cfg.XMLRPC.MaxClients)
	}

	if cfg.Metrics.Enabled {
		if err := configtypes.ValidateListenAddress(cfg.Metrics.Listen); err != nil {
			add("metrics.listen: %w", err)
		}
	}
	if cfg.Log.Mail.Enabled && (cfg.Log.Mail.Host == "" || cfg.Log.Mail.From == "" || len(cfg.Log.Mail.To) == 0) {
		add("log.mail requires host, from and to")
	}

	return errors.Join(errs...)
}
