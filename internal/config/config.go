package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Relay    RelayConfig    `yaml:"relay"`
	SMS      SMSConfig      `yaml:"sms"`
}

type HTTPConfig struct {
	Address      string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowOrigins []string `yaml:"allow_origins" env:"HTTP_ALLOW_ORIGINS"`
}

// DatabaseConfig selects the directory store. An empty DSN keeps the
// directory in memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

// RedisConfig enables cross-instance fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Channel  string `yaml:"channel" env:"REDIS_CHANNEL" env-default:""`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"AUTH_SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"24h"`
}

// RelayConfig.OpenRooms lets any authenticated connection join any known
// code. When false a connection may only join the code its identity is
// linked to.
type RelayConfig struct {
	OpenRooms    bool          `yaml:"open_rooms" env:"RELAY_OPEN_ROOMS"`
	OutboxSize   int           `yaml:"outbox_size" env:"RELAY_OUTBOX_SIZE" env-default:"16"`
	PingInterval time.Duration `yaml:"ping_interval" env:"RELAY_PING_INTERVAL" env-default:"30s"`
}

// SMSConfig holds the gateway credentials. Any empty field disables the
// SMS leg of /api/sos/alert.
type SMSConfig struct {
	BaseURL       string `yaml:"base_url" env:"TWILIO_BASE_URL" env-default:""`
	AccountSID    string `yaml:"account_sid" env:"TWILIO_SID"`
	AuthToken     string `yaml:"auth_token" env:"TWILIO_TOKEN"`
	From          string `yaml:"from" env:"TWILIO_NUMBER"`
	CountryPrefix string `yaml:"country_prefix" env:"SMS_COUNTRY_PREFIX" env-default:""`
}

func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func LoadPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, &MissingFileError{Path: configPath}
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	return &cfg, nil
}

type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return "config file does not exist: " + e.Path
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowOrigins) == 0 {
		c.HTTP.AllowOrigins = []string{"http://localhost:3000"}
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "safewatch:relay"
	}
	if c.Auth.Secret == "" && c.Env == "local" {
		c.Auth.Secret = "local-dev-secret"
	}
	if c.Relay.OutboxSize <= 0 {
		c.Relay.OutboxSize = 16
	}
	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://api.twilio.com"
	}
	if c.SMS.CountryPrefix == "" {
		c.SMS.CountryPrefix = "+91"
	}
}
