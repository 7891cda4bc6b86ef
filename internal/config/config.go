package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: server.addr -> FORMPULSE_SERVER_ADDR.
const EnvPrefix = "FORMPULSE"

// DevJWTSecret is only acceptable outside release mode.
const DevJWTSecret = "formpulse-dev-secret"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// FrontendURL is a comma-separated list of allowed CORS origins.
	FrontendURL string `mapstructure:"frontend_url"`
}

// Origins splits FrontendURL.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	SeedSnapshot    string        `mapstructure:"seed_snapshot"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	ReportTTL time.Duration `mapstructure:"report_ttl"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type MinIOConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	Bucket    string        `mapstructure:"bucket"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"server.addr":                ":8080",
	"server.mode":                "debug",
	"server.read_timeout":        "15s",
	"server.write_timeout":       "60s",
	"server.shutdown_timeout":    "10s",
	"server.frontend_url":        "",
	"database.driver":            "memory",
	"database.sqlite_path":       "./data/formpulse.db",
	"database.migrations_dir":    "",
	"database.seed_snapshot":     "",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "formpulse",
	"database.password":          "",
	"database.dbname":            "formpulse",
	"database.sslmode":           "disable",
	"database.max_open_conns":    20,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": "30m",
	"redis.addr":                 "",
	"redis.password":             "",
	"redis.db":                   0,
	"redis.report_ttl":           "5m",
	"minio.endpoint":             "",
	"minio.access_key":           "",
	"minio.secret_key":           "",
	"minio.bucket":               "formpulse-exports",
	"minio.use_ssl":              false,
	"minio.url_expiry":           "1h",
	"jwt.secret":                 DevJWTSecret,
	"jwt.issuer":                 "",
	"log.level":                  "info",
	"log.format":                 "console",
}

// Load reads .env (if present), then defaults, the optional YAML file at
// path, and FORMPULSE_* environment variables, later sources winning.
func Load(path string) (*Config, error) {
	envFile := os.Getenv(EnvPrefix + "_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.Database.Driver)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode: unsupported %q", c.Server.Mode)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Server.Mode == "release" && c.JWT.Secret == DevJWTSecret {
		return errors.New("jwt.secret must be set in release mode")
	}
	if c.MinIO.Enabled() && c.MinIO.Bucket == "" {
		return errors.New("minio.bucket is required when minio.endpoint is set")
	}
	return nil
}
