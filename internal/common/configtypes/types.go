package configtypes

// Log level constants
const (
	LogLevelDebug  = "debug"
	LogLevelInfo   = "info"
	LogLevelWarn   = "warn"
	LogLevelError  = "error"
	LogLevelDPanic = "dpanic"
	LogLevelPanic  = "panic"
	LogLevelFatal  = "fatal"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Event sink kinds
const (
	SinkMongo      = "mongo"
	SinkClickHouse = "clickhouse"
	SinkMySQL      = "mysql"
	SinkPostgres   = "postgres"
	SinkFile       = "file"
)

// Redis value compression algorithms
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// AppConfig is the complete service configuration. It is loaded once at
// startup and passed by pointer into the application host.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Redis       RedisConfig       `yaml:"redis"`
	Mongo       MongoConfig       `yaml:"mongo"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	MySQL       MySQLConfig       `yaml:"mysql"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	EventFile   EventFileConfig   `yaml:"event_file"`
	EventWriter EventWriterConfig `yaml:"event_writer"`
	Auth        AuthConfig        `yaml:"auth"`
	Ping        PingConfig        `yaml:"ping"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	HTTPClient  HTTPClientConfig  `yaml:"http_client"`
	XMLRPC      XMLRPCConfig      `yaml:"xmlrpc"`
	ClientIP    ClientIPConfig    `yaml:"client_ip"`
	Languages   LanguagesConfig   `yaml:"languages"`
}

type ServerConfig struct {
	Name       string   `yaml:"name"`
	Version    string   `yaml:"version"`
	Listen     string   `yaml:"listen"`
	UnixSocket string   `yaml:"unix_socket,omitempty"`
	Timeout    Duration `yaml:"timeout"`
	Debug      bool     `yaml:"debug"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
	Mail    MailLogConfig    `yaml:"mail"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// MailLogConfig sends error-level log entries by SMTP.
type MailLogConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"` // host:port
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Subject  string   `yaml:"subject"`
	User     string   `yaml:"user,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

type RedisConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	UnixSocket  string `yaml:"unix_socket,omitempty"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"` // -1 selects the server default
	MinIdle     int    `yaml:"min_idle"`
	PoolSize    int    `yaml:"pool_size"`
	Compression string `yaml:"compression,omitempty"`
}

type MongoConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URI         string `yaml:"uri,omitempty"` // overrides the discrete fields below
	Server      string `yaml:"server"`
	Port        int    `yaml:"port"`
	Database    string `yaml:"database"`
	AuthDB      string `yaml:"auth_database"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	MinPoolSize int    `yaml:"min_pool_size"`
	MaxPoolSize int    `yaml:"max_pool_size"`
}

type ClickHouseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"dial_timeout"`
}

type MySQLConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type PostgresConfig struct {
	Enabled        bool     `yaml:"enabled"`
	DSN            string   `yaml:"dsn"`
	MaxConns       int32    `yaml:"max_conns"`
	MinConns       int32    `yaml:"min_conns"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// EventFileConfig is the rotating JSON-lines event sink.
type EventFileConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Rotation RotationConfig `yaml:"rotation"`
}

// EventWriterConfig configures the buffered event log and its periodic flush.
type EventWriterConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Sink            string   `yaml:"sink"`
	Collection      string   `yaml:"collection"`
	FlushPeriod     Duration `yaml:"flush_period"`
	BatchSize       int      `yaml:"batch_size"`
	Verbose         bool     `yaml:"verbose"`
	LiteEvents      bool     `yaml:"lite_events"`
	FlushOnShutdown bool     `yaml:"flush_on_shutdown"`
}

type AuthConfig struct {
	SecretKey string `yaml:"secret_key"`
	Algorithm string `yaml:"algorithm"`
}

type PingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	SystemStats bool   `yaml:"system_stats"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

type HTTPClientConfig struct {
	MaxConns int      `yaml:"max_conns"`
	Timeout  Duration `yaml:"timeout"`
}

// XMLRPCConfig enables XML-RPC calls. MaxClients caps connections per server.
type XMLRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxClients int  `yaml:"max_clients"`
}

// ClientIPConfig lists headers checked, in order, for the real client address.
type ClientIPConfig struct {
	Headers []string `yaml:"headers,omitempty"`
}

type LanguagesConfig struct {
	DefaultLocal         string `yaml:"default_local"`
	DefaultInternational string `yaml:"default_international"`
}
