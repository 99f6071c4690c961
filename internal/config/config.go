package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	TopicMessages     string   `mapstructure:"topic_messages"`
	NotificationGroup string   `mapstructure:"notification_group"`
}

type JWTConfig struct {
	Alg           string `mapstructure:"alg"`
	HSSecret      string `mapstructure:"hs_secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type RealtimeConfig struct {
	DeliverDebounceMS      int `mapstructure:"deliver_debounce_ms"`
	ReadSettleMS           int `mapstructure:"read_settle_ms"`
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds"`
	RetainLimit            int `mapstructure:"retain_limit"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Realtime RealtimeConfig `mapstructure:"realtime"`

	// Derived
	DeliverDebounce time.Duration
	ReadSettle      time.Duration
	RefreshInterval time.Duration
}

// Load reads the yaml config at path with env overrides (APP_* keys
// take precedence over file values) and applies defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.DB == "" {
		c.Mongo.DB = "mindwellness"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.TopicMessages == "" {
		c.Kafka.TopicMessages = "message.created"
	}
	if c.Kafka.NotificationGroup == "" {
		c.Kafka.NotificationGroup = "notifications"
	}
	if c.JWT.Alg == "" {
		c.JWT.Alg = "HS256"
	}

	if c.Realtime.DeliverDebounceMS == 0 {
		c.Realtime.DeliverDebounceMS = 500
	}
	if c.Realtime.ReadSettleMS == 0 {
		c.Realtime.ReadSettleMS = 1000
	}
	if c.Realtime.RefreshIntervalSeconds == 0 {
		c.Realtime.RefreshIntervalSeconds = 5
	}
	c.DeliverDebounce = time.Duration(c.Realtime.DeliverDebounceMS) * time.Millisecond
	c.ReadSettle = time.Duration(c.Realtime.ReadSettleMS) * time.Millisecond
	c.RefreshInterval = time.Duration(c.Realtime.RefreshIntervalSeconds) * time.Second

	return &c, nil
}
