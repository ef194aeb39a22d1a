package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string        `mapstructure:"addr"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
		CORSOrigin     string        `mapstructure:"cors_origin"`
		// TrustedProxies may set X-Forwarded-For; empty trusts none.
		TrustedProxies []string      `mapstructure:"trusted_proxies"`
		ClientIPHeader string        `mapstructure:"client_ip_header"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Database struct {
		// Driver is one of memory, sqlite, mongo or dynamodb.
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
	} `mapstructure:"database"`
	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mongo"`
	DynamoDB struct {
		TablePrefix string `mapstructure:"table_prefix"`
		Endpoint    string `mapstructure:"endpoint"`
	} `mapstructure:"dynamodb"`
	AWS struct {
		Region  string `mapstructure:"region"`
		Profile string `mapstructure:"profile"`
	} `mapstructure:"aws"`
	Auth struct {
		JWTSecret          string        `mapstructure:"jwt_secret"`
		TokenTTL           time.Duration `mapstructure:"token_ttl"`
		SharedPassword     string        `mapstructure:"shared_password"`
		SharedPasswordHash string        `mapstructure:"shared_password_hash"`
	} `mapstructure:"auth"`
	GraphQL struct {
		BatchLoading   bool `mapstructure:"batch_loading"`
		MaxParallelism int  `mapstructure:"max_parallelism"`
	} `mapstructure:"graphql"`
	RateLimit struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"ratelimit"`
	Storage struct {
		Bucket    string `mapstructure:"bucket"`
		KeyPrefix string `mapstructure:"key_prefix"`
		Endpoint  string `mapstructure:"endpoint"`
	} `mapstructure:"storage"`
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("LIBRARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:4001")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.client_ip_header", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/library.db")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "library")
	v.SetDefault("dynamodb.table_prefix", "library")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.shared_password", "secret")
	v.SetDefault("auth.shared_password_hash", "")
	v.SetDefault("graphql.batch_loading", true)
	v.SetDefault("graphql.max_parallelism", 10)
	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.key_prefix", "library-backups")
	v.SetDefault("storage.endpoint", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	switch c.Database.Driver {
	case "memory", "sqlite", "mongo", "dynamodb":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Auth.SharedPassword == "" && c.Auth.SharedPasswordHash == "" {
		return errors.New("auth shared password or password hash is required")
	}
	return nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
