package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Bidding  BiddingConfig  `mapstructure:"bidding"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
	Log      LogConfig      `mapstructure:"log"`
	Identity IdentityConfig `mapstructure:"identity"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// StorageConfig selects the authoritative auction store: "mysql" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type KafkaConfig struct {
	Brokers             []string `mapstructure:"brokers"`
	EventsTopic         string   `mapstructure:"events_topic"`
	PurchaseOrdersTopic string   `mapstructure:"purchase_orders_topic"`
}

type LeaderConfig struct {
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type BiddingConfig struct {
	IncrementPercent string `mapstructure:"increment_percent"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RecordRejected   bool   `mapstructure:"record_rejected"`
}

type SweeperConfig struct {
	Spec      string `mapstructure:"spec"`
	BatchSize int    `mapstructure:"batch_size"`
}

type FanoutConfig struct {
	Channel        string        `mapstructure:"channel"`
	GapTimeout     time.Duration `mapstructure:"gap_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// IdentityConfig seeds the in-process identity directory used with the
// memory storage driver. The mysql driver reads the users table instead.
type IdentityConfig struct {
	Actors []ActorSeed `mapstructure:"actors"`
}

type ActorSeed struct {
	ID       string `mapstructure:"id"`
	Role     string `mapstructure:"role"`
	Verified bool   `mapstructure:"verified"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", 24*time.Hour)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.events_topic", "auction-events")
	v.SetDefault("kafka.purchase_orders_topic", "purchase-orders")
	v.SetDefault("leader.key", "auction_engine_leader")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-engine-1")
	v.SetDefault("bidding.increment_percent", "2")
	v.SetDefault("bidding.max_retries", 3)
	v.SetDefault("bidding.record_rejected", true)
	v.SetDefault("sweeper.spec", "@every 5s")
	v.SetDefault("sweeper.batch_size", 100)
	v.SetDefault("fanout.channel", "auction_events")
	v.SetDefault("fanout.gap_timeout", 2*time.Second)
	v.SetDefault("fanout.publish_timeout", 2*time.Second)
	v.SetDefault("log.level", "info")
}

var envBindings = map[string]string{
	"server.port":                 "SERVER_PORT",
	"server.host":                 "SERVER_HOST",
	"storage.driver":              "STORAGE_DRIVER",
	"redis.address":               "REDIS_ADDRESS",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"mysql.dsn":                   "MYSQL_DSN",
	"mysql.max_open_conns":        "MYSQL_MAX_OPEN_CONNS",
	"mysql.max_idle_conns":        "MYSQL_MAX_IDLE_CONNS",
	"mysql.conn_max_lifetime":     "MYSQL_CONN_MAX_LIFETIME",
	"mysql.migrate":               "MYSQL_MIGRATE",
	"kafka.brokers":               "KAFKA_BROKERS",
	"kafka.events_topic":          "KAFKA_EVENTS_TOPIC",
	"kafka.purchase_orders_topic": "KAFKA_PURCHASE_ORDERS_TOPIC",
	"leader.ttl":                  "LEADER_TTL",
	"instance.id":                 "INSTANCE_ID",
	"bidding.increment_percent":   "BIDDING_INCREMENT_PERCENT",
	"bidding.max_retries":         "BIDDING_MAX_RETRIES",
	"bidding.record_rejected":     "BIDDING_RECORD_REJECTED",
	"sweeper.spec":                "SWEEPER_SPEC",
	"fanout.gap_timeout":          "FANOUT_GAP_TIMEOUT",
	"log.level":                   "LOG_LEVEL",
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-engine/")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Bidding.MaxRetries < 1 {
		return fmt.Errorf("config: bidding.max_retries must be at least 1")
	}
	if c.Sweeper.BatchSize < 1 {
		return fmt.Errorf("config: sweeper.batch_size must be at least 1")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Storage: %s, Redis: %s, Kafka: %v, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Storage.Driver,
		c.Redis.Address,
		c.Kafka.Brokers,
		c.Instance.ID,
	)
}
