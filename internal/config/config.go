package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Thermostat drivers.
const (
	DriverHTTP      = "http"
	DriverMQTT      = "mqtt"
	DriverSimulated = "simulated"
)

type Config struct {
	Port       string           `mapstructure:"port"`
	LogLevel   string           `mapstructure:"log_level"`
	Timezone   string           `mapstructure:"timezone"`
	DB         DBConfig         `mapstructure:"db"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Thermostat ThermostatConfig `mapstructure:"thermostat"`
	Feed       FeedConfig       `mapstructure:"feed"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// ExecutorConfig controls the built-in triggers of the due-schedule pass.
// An empty Cron disables the cron trigger; a zero Interval disables the ticker.
type ExecutorConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Cron         string        `mapstructure:"cron"`
	TriggerToken string        `mapstructure:"trigger_token"`
}

type ThermostatConfig struct {
	Driver string     `mapstructure:"driver"`
	HTTP   HTTPDriver `mapstructure:"http"`
	MQTT   MQTTDriver `mapstructure:"mqtt"`
	Rooms  []Room     `mapstructure:"rooms"`
}

type HTTPDriver struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

type MQTTDriver struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

// Room is a statically configured device room, used by drivers that cannot
// list rooms themselves.
type Room struct {
	HomeID string `mapstructure:"home_id"`
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
}

type FeedConfig struct {
	WindowDays int           `mapstructure:"window_days"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Sources    []FeedSource  `mapstructure:"sources"`
}

// FeedSource is one channel-manager iCal export for a logical room.
type FeedSource struct {
	UserRoomID   string `mapstructure:"user_room_id"`
	PropertyName string `mapstructure:"property_name"`
	URL          string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("executor.interval", time.Minute)
	v.SetDefault("executor.cron", "")
	v.SetDefault("thermostat.driver", DriverSimulated)
	v.SetDefault("thermostat.http.timeout", 10*time.Second)
	v.SetDefault("thermostat.http.retry_count", 2)
	v.SetDefault("thermostat.mqtt.client_id", "preheat-scheduler")
	v.SetDefault("thermostat.mqtt.topic_prefix", "thermostat")
	v.SetDefault("thermostat.mqtt.qos", 1)
	v.SetDefault("feed.window_days", 60)
	v.SetDefault("feed.cache_ttl", 10*time.Minute)
	v.SetDefault("feed.timeout", 15*time.Second)
}

// Load reads config.yml from the given directories (first match wins) and
// applies PREHEAT_* environment overrides. A missing file is not an error.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("preheat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints viper cannot express.
func (c Config) Validate() error {
	switch c.Thermostat.Driver {
	case DriverSimulated:
	case DriverHTTP:
		if c.Thermostat.HTTP.BaseURL == "" {
			return errors.New("thermostat.http.base_url is required for the http driver")
		}
	case DriverMQTT:
		if c.Thermostat.MQTT.Broker == "" {
			return errors.New("thermostat.mqtt.broker is required for the mqtt driver")
		}
	default:
		return fmt.Errorf("unknown thermostat.driver %q", c.Thermostat.Driver)
	}
	if c.Thermostat.MQTT.QoS > 2 {
		return fmt.Errorf("thermostat.mqtt.qos must be 0, 1 or 2, got %d", c.Thermostat.MQTT.QoS)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("auth.signing_key is required")
	}
	if c.Feed.WindowDays <= 0 {
		return errors.New("feed.window_days must be positive")
	}
	if c.Feed.CacheTTL <= 0 {
		return errors.New("feed.cache_ttl must be positive")
	}
	return nil
}

// Location returns the property time zone used to place times of day on dates.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
