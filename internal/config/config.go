// Package config gathers settings from a .env file, an optional YAML file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ukydev/garage/internal/models"
)

// StoreKind selects the key-value backend.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreFile   StoreKind = "file"
	StoreMongo  StoreKind = "mongo"
	StoreRedis  StoreKind = "redis"
)

const defaultJWTSecret = "default-secret-key-change-in-production"

var ErrInvalidConfig = errors.New("invalid configuration")

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type RedisConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type AuthConfig struct {
	Enabled   bool              `yaml:"enabled"`
	JWTSecret string            `yaml:"jwt_secret"`
	JWTExpiry time.Duration     `yaml:"jwt_expiry"`
	Operators []models.Operator `yaml:"operators"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds every setting the binaries read.
type Config struct {
	GarageName string      `yaml:"garage_name"`
	Store      StoreKind   `yaml:"store"`
	DataDir    string      `yaml:"data_dir"`
	Mongo      MongoConfig `yaml:"mongo"`
	Redis      RedisConfig `yaml:"redis"`
	MQTT       MQTTConfig  `yaml:"mqtt"`
	Port       string      `yaml:"port"`
	Auth       AuthConfig  `yaml:"auth"`
	Log        LogConfig   `yaml:"log"`
	// RateLimit is the number of requests a client may make per minute; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
	// TrustedProxies lists the addresses or CIDR ranges whose X-Forwarded-For
	// header names the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Store:   StoreFile,
		DataDir: "data",
		Mongo: MongoConfig{
			Database:   "garage",
			Collection: "kv",
		},
		Redis: RedisConfig{Prefix: "garage:"},
		MQTT:  MQTTConfig{Topic: "garage"},
		Port:  "8080",
		Auth: AuthConfig{
			JWTSecret: defaultJWTSecret,
			JWTExpiry: 24 * time.Hour,
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		RateLimit: 120,
	}
}

// Load reads .env (if present), the YAML file named by GARAGE_CONFIG (if set)
// and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("GARAGE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.GarageName, "GARAGE_NAME")
	if v, ok := lookup("GARAGE_STORE"); ok {
		c.Store = StoreKind(strings.ToLower(v))
	}
	setString(&c.DataDir, "GARAGE_DATA_DIR")
	setString(&c.Mongo.URI, "MONGO_URI")
	setString(&c.Mongo.Database, "MONGO_DB")
	setString(&c.Mongo.Collection, "MONGO_COLLECTION")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Prefix, "REDIS_PREFIX")
	setString(&c.MQTT.Broker, "MQTT_BROKER")
	setString(&c.MQTT.Topic, "MQTT_TOPIC")
	setString(&c.Port, "PORT")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v, ok := lookup("AUTH_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: AUTH_ENABLED=%q", ErrInvalidConfig, v)
		}
		c.Auth.Enabled = enabled
	}
	if v, ok := lookup("JWT_EXPIRY"); ok {
		exp, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: JWT_EXPIRY=%q", ErrInvalidConfig, v)
		}
		c.Auth.JWTExpiry = exp
	}
	if v, ok := lookup("RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: RATE_LIMIT=%q", ErrInvalidConfig, v)
		}
		c.RateLimit = n
	}

	if v, ok := lookup("TRUSTED_PROXIES"); ok {
		c.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.TrustedProxies = append(c.TrustedProxies, p)
			}
		}
	}

	username, hasUser := lookup("ADMIN_USERNAME")
	hash, hasHash := lookup("ADMIN_PASSWORD_HASH")
	if hasUser && hasHash {
		c.Auth.Operators = append(c.Auth.Operators, models.Operator{
			Username:     username,
			PasswordHash: hash,
			Role:         models.RoleOwner,
		})
	}
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreMongo, StoreRedis:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if c.Store == StoreRedis && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis store needs REDIS_ADDR", ErrInvalidConfig)
	}
	if c.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("%w: jwt expiry must be positive", ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	if _, err := c.ProxyPrefixes(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, op := range c.Auth.Operators {
		if op.Username == "" || op.PasswordHash == "" {
			return fmt.Errorf("%w: operator needs a username and a password hash", ErrInvalidConfig)
		}
		if !models.IsValidRole(op.Role) {
			return fmt.Errorf("%w: operator %s has unknown role %q", ErrInvalidConfig, op.Username, op.Role)
		}
		if seen[op.Username] {
			return fmt.Errorf("%w: operator %s is listed twice", ErrInvalidConfig, op.Username)
		}
		seen[op.Username] = true
	}
	if c.Auth.Enabled && len(c.Auth.Operators) == 0 {
		return fmt.Errorf("%w: auth is enabled but no operators are configured", ErrInvalidConfig)
	}
	return nil
}

// ProxyPrefixes parses TrustedProxies. A bare address stands for itself.
func (c *Config) ProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("%w: trusted proxy %q", ErrInvalidConfig, p)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("%w: trusted proxy %q", ErrInvalidConfig, p)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// DefaultSecret reports whether the JWT secret was left at its built-in value.
func (c *Config) DefaultSecret() bool {
	return c.Auth.JWTSecret == defaultJWTSecret
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
