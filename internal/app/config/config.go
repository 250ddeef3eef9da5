package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Store   StoreConfig   `mapstructure:"store"`
	API     APIConfig     `mapstructure:"api"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
	Plugins PluginsConfig `mapstructure:"plugins"`
}

type AppConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type StoreConfig struct {
	Driver      string         `mapstructure:"driver"`
	Path        string         `mapstructure:"path"`
	AtomicWrite bool           `mapstructure:"atomicWrite"`
	Watch       bool           `mapstructure:"watch"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	Key  string `mapstructure:"key"`
}

type PostgresConfig struct {
	DSN  string `mapstructure:"dsn"`
	Name string `mapstructure:"name"`
}

type APIConfig struct {
	Prefix       string `mapstructure:"prefix"`
	Serialize    bool   `mapstructure:"serialize"`
	StrictUpdate bool   `mapstructure:"strictUpdate"`
	TimeoutSec   int    `mapstructure:"timeoutSec"`
}

type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PluginsConfig struct {
	Enabled []string                          `mapstructure:"enabled"`
	Config  map[string]map[string]interface{} `mapstructure:"config"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("usersd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/usersd")
	}

	v.SetEnvPrefix("USERSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("app.port", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding PORT: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if envPath := os.Getenv("USERSD_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading env config: %w", err)
		}
	}

	if brokers := os.Getenv("USERSD_EVENTS_KAFKA_BROKERS"); brokers != "" {
		v.Set("events.kafka.brokers", strings.Split(brokers, ","))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 3001)
	v.SetDefault("app.host", "0.0.0.0")

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "./data/db.json")
	v.SetDefault("store.atomicWrite", false)
	v.SetDefault("store.watch", false)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.key", "usersd:document")
	v.SetDefault("store.postgres.dsn", "postgres://localhost:5432/usersd")
	v.SetDefault("store.postgres.name", "default")

	v.SetDefault("api.prefix", "/api")
	v.SetDefault("api.serialize", true)
	v.SetDefault("api.strictUpdate", false)
	v.SetDefault("api.timeoutSec", 60)

	v.SetDefault("events.driver", "none")
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "users")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("plugins.enabled", []string{})
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}
