// Package config loads service configuration from an optional TOML file with
// environment variable overrides, so main stays lean and deployments can use
// either mechanism.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Engine   EngineConfig   `toml:"engine"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Caller   CallerConfig   `toml:"caller"`
	Limits   LimitsConfig   `toml:"limits"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// AuthConfig configures relay authentication for the direct path.
type AuthConfig struct {
	JWTSigningKey string `toml:"jwt_signing_key"`
	Issuer        string `toml:"issuer"`
	Audience      string `toml:"audience"`
}

// EngineConfig tunes the proposal engine.
type EngineConfig struct {
	// OverTimeLimit is how long a transaction stays confirmable after
	// submission before its computed status reads OVERTIME.
	OverTimeLimit duration `toml:"overtime_limit"`
	// SignedRequestMaxAge caps how far in the future a signed request's
	// expiry may lie; zero disables the cap.
	SignedRequestMaxAge duration `toml:"signed_request_max_age"`
}

// PostgresConfig configures the optional postgres store twin.
type PostgresConfig struct {
	URL string `toml:"url"`
}

// RedisConfig configures the optional replay-counter read view.
type RedisConfig struct {
	URL          string   `toml:"url"`
	PoolSize     int      `toml:"pool_size"`
	MinIdleConns int      `toml:"min_idle_conns"`
	DialTimeout  duration `toml:"dial_timeout"`
	ReadTimeout  duration `toml:"read_timeout"`
	WriteTimeout duration `toml:"write_timeout"`
}

// KafkaConfig configures the event sink.
type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// CallerConfig configures the outbound dispatcher used by execute.
type CallerConfig struct {
	DispatcherURL string   `toml:"dispatcher_url"`
	Timeout       duration `toml:"timeout"`
}

// LimitsConfig throttles relay clients. Zero disables limiting.
type LimitsConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// duration lets TOML files write "24h" instead of nanosecond integers.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

func (d duration) Std() time.Duration {
	return time.Duration(d)
}

// Defaults returns the configuration used when neither file nor environment
// override a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: duration(10 * time.Second),
		},
		Auth: AuthConfig{
			// Development fallback; override in production.
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "acctgate",
			Audience:      "acctgate-relay",
		},
		Engine: EngineConfig{
			OverTimeLimit:       duration(24 * time.Hour),
			SignedRequestMaxAge: duration(24 * time.Hour),
		},
		Kafka: KafkaConfig{
			Topic: "acctgate.events",
		},
		Caller: CallerConfig{
			Timeout: duration(15 * time.Second),
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// FromEnv builds the configuration from defaults and environment only.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "ACCTGATE_ADDR")
	setString(&cfg.Auth.JWTSigningKey, "ACCTGATE_JWT_SIGNING_KEY")
	setString(&cfg.Auth.Issuer, "ACCTGATE_JWT_ISSUER")
	setString(&cfg.Auth.Audience, "ACCTGATE_JWT_AUDIENCE")
	setString(&cfg.Postgres.URL, "ACCTGATE_POSTGRES_URL")
	setString(&cfg.Redis.URL, "ACCTGATE_REDIS_URL")
	setString(&cfg.Kafka.Topic, "ACCTGATE_KAFKA_TOPIC")
	setString(&cfg.Caller.DispatcherURL, "ACCTGATE_DISPATCHER_URL")

	if v := os.Getenv("ACCTGATE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("ACCTGATE_OVERTIME_LIMIT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Engine.OverTimeLimit = duration(parsed)
		}
	}
	if v := os.Getenv("ACCTGATE_REQUESTS_PER_MINUTE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Limits.RequestsPerMinute = parsed
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
