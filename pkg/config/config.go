package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Notification NotificationConfig `mapstructure:"notification"`
	Snowflake    SnowflakeConfig    `mapstructure:"snowflake"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig OpenTelemetry配置
type TelemetryConfig struct {
	Exporter   string  `mapstructure:"exporter"` // stdout/none
	SampleRate float64 `mapstructure:"sample_rate"`
}

// StorageConfig 选择持久化后端
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres/mongo/memory
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgresql"`
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"db_name"`
}

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	DSN          string        `mapstructure:"dsn"`
	DBName       string        `mapstructure:"db_name"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
	LogLevel     string        `mapstructure:"log_level"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig 关系缓存配置
type CacheConfig struct {
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"` // 0 表示只依赖显式失效和后端淘汰
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	EventTopic        string   `mapstructure:"event_topic"`
	NotificationTopic string   `mapstructure:"notification_topic"`
}

// NATSConfig NATS配置
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Enabled                       bool `mapstructure:"enabled"`
	NotifyAboutNewFriendsOfFriend bool `mapstructure:"notify_about_new_friends_of_friend"`
	NotifyAboutFriendsRemoval     bool `mapstructure:"notify_about_friends_removal"`
}

// SnowflakeConfig ID生成配置
type SnowflakeConfig struct {
	MachineID int64 `mapstructure:"machine_id"`
}

// envPrefix 环境变量前缀，例如 RELATION_REDIS_ADDR
const envPrefix = "RELATION"

// Load 加载配置：默认值 < config.yaml < 环境变量
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "..", "../..", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 仅使用默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate 检查配置是否自洽
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q, supported: postgres, mongo, memory", c.Storage.Driver)
	}
	if c.Snowflake.MachineID < 0 || c.Snowflake.MachineID > 1023 {
		return fmt.Errorf("snowflake.machine_id must be within 0-1023, got %d", c.Snowflake.MachineID)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.enabled requires at least one broker")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "relation-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.addr", ":21013")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("database.postgresql.dsn", "host=localhost user=postgres password=postgres dbname=relation_service port=5432 sslmode=disable TimeZone=Asia/Shanghai")
	v.SetDefault("database.postgresql.db_name", "relation_service")
	v.SetDefault("database.postgresql.max_idle_conns", 10)
	v.SetDefault("database.postgresql.max_open_conns", 100)
	v.SetDefault("database.postgresql.conn_max_life", time.Hour)
	v.SetDefault("database.postgresql.log_level", "warn")
	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.db_name", "relation_service")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.prefix", "relation:")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.event_topic", "relation_events")
	v.SetDefault("kafka.notification_topic", "notifications")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "relation")

	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.notify_about_new_friends_of_friend", false)
	v.SetDefault("notification.notify_about_friends_removal", false)

	v.SetDefault("snowflake.machine_id", 1)
}
