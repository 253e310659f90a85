package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ProviderTelegram = "telegram"
	ProviderS3       = "s3"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Storage  StorageConfig  `mapstructure:"Storage"`
	Telegram TelegramConfig `mapstructure:"Telegram"`
	S3       S3Config       `mapstructure:"S3"`
	Redis    RedisConfig    `mapstructure:"Redis"`
	Auth     AuthConfig     `mapstructure:"Auth"`
	Log      LogConfig      `mapstructure:"Log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"Port"`
	GRPCPort        string        `mapstructure:"GRPCPort"`
	BaseURL         string        `mapstructure:"BaseURL"`
	ShutdownTimeout time.Duration `mapstructure:"ShutdownTimeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type StorageConfig struct {
	Provider        string        `mapstructure:"Provider"`
	UpstreamTimeout time.Duration `mapstructure:"UpstreamTimeout"`
	PresignTTL      time.Duration `mapstructure:"PresignTTL"`
}

// TelegramConfig endpoints are URL patterns taking the bot token and then the
// method or file path, e.g. "http://localhost:8081/bot%s/%s". Empty means the
// public Telegram servers.
type TelegramConfig struct {
	BotToken     string `mapstructure:"BotToken"`
	Ingest       bool   `mapstructure:"Ingest"`
	APIEndpoint  string `mapstructure:"APIEndpoint"`
	FileEndpoint string `mapstructure:"FileEndpoint"`
}

type S3Config struct {
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	Region          string `mapstructure:"Region"`
	Endpoint        string `mapstructure:"Endpoint"`
	UsePathStyle    bool   `mapstructure:"UsePathStyle"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"Addr"`
	Password      string        `mapstructure:"Password"`
	DB            int           `mapstructure:"DB"`
	ResolveLimit  int           `mapstructure:"ResolveLimit"`
	ResolveWindow time.Duration `mapstructure:"ResolveWindow"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"JWTSecret"`
	Issuer    string `mapstructure:"Issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"Level"`
	Pretty bool   `mapstructure:"Pretty"`
}

var envBindings = map[string]string{
	"Server.Port":             "HTTP_PORT",
	"Server.GRPCPort":         "GRPC_PORT",
	"Server.BaseURL":          "BASE_URL",
	"Server.ShutdownTimeout":  "SHUTDOWN_TIMEOUT",
	"Database.Host":           "DATABASE_HOST",
	"Database.Port":           "DATABASE_PORT",
	"Database.User":           "DATABASE_USER",
	"Database.Password":       "DATABASE_PASSWORD",
	"Database.Name":           "DATABASE_NAME",
	"Database.SSLMode":        "DATABASE_SSLMODE",
	"Storage.Provider":        "STORAGE_PROVIDER",
	"Storage.UpstreamTimeout": "STORAGE_UPSTREAM_TIMEOUT",
	"Storage.PresignTTL":      "STORAGE_PRESIGN_TTL",
	"Telegram.BotToken":       "TELEGRAM_BOT_TOKEN",
	"Telegram.Ingest":         "TELEGRAM_INGEST",
	"Telegram.APIEndpoint":    "TELEGRAM_API_ENDPOINT",
	"Telegram.FileEndpoint":   "TELEGRAM_FILE_ENDPOINT",
	"S3.AccessKeyID":          "S3_ACCESS_KEY_ID",
	"S3.SecretAccessKey":      "S3_SECRET_ACCESS_KEY",
	"S3.Bucket":               "S3_BUCKET",
	"S3.Region":               "S3_REGION",
	"S3.Endpoint":             "S3_ENDPOINT",
	"S3.UsePathStyle":         "S3_USE_PATH_STYLE",
	"Redis.Addr":              "REDIS_ADDR",
	"Redis.Password":          "REDIS_PASSWORD",
	"Redis.DB":                "REDIS_DB",
	"Redis.ResolveLimit":      "REDIS_RESOLVE_LIMIT",
	"Redis.ResolveWindow":     "REDIS_RESOLVE_WINDOW",
	"Auth.JWTSecret":          "AUTH_JWT_SECRET",
	"Auth.Issuer":             "AUTH_ISSUER",
	"Log.Level":               "LOG_LEVEL",
	"Log.Pretty":              "LOG_PRETTY",
}

// NewConfig reads the optional config file at path and overlays environment
// variables on top of it. An empty path means environment only.
func NewConfig(path string) (*Config, error) {
	v := viper.New()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("using only environment variables")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "2525"
	}
	if c.Server.GRPCPort == "" {
		c.Server.GRPCPort = "50051"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Provider == "" {
		c.Storage.Provider = ProviderTelegram
	}
	if c.Storage.UpstreamTimeout == 0 {
		c.Storage.UpstreamTimeout = 15 * time.Second
	}
	if c.Storage.PresignTTL == 0 {
		c.Storage.PresignTTL = 5 * time.Minute
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.Redis.ResolveLimit == 0 {
		c.Redis.ResolveLimit = 30
	}
	if c.Redis.ResolveWindow == 0 {
		c.Redis.ResolveWindow = time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}

	switch c.Storage.Provider {
	case ProviderTelegram:
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram provider requires TELEGRAM_BOT_TOKEN")
		}
		if err := checkEndpoint("TELEGRAM_API_ENDPOINT", c.Telegram.APIEndpoint); err != nil {
			return err
		}
		if err := checkEndpoint("TELEGRAM_FILE_ENDPOINT", c.Telegram.FileEndpoint); err != nil {
			return err
		}
	case ProviderS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 provider requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	return nil
}

func checkEndpoint(name, pattern string) error {
	if pattern != "" && strings.Count(pattern, "%s") != 2 {
		return fmt.Errorf("%s must contain two %%s verbs, got %q", name, pattern)
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// MigrationURL is the postgres URL form golang-migrate expects.
func (c *DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}
