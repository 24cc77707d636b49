package config

import (
	"fmt"
	"strings"
)

// StorageDriver selects the durable session backend.
type StorageDriver string

const (
	// StorageDriverBolt keeps the session in a local single-file database.
	StorageDriverBolt StorageDriver = "bolt"
	// StorageDriverRedis keeps the session in Redis.
	StorageDriverRedis StorageDriver = "redis"
	// StorageDriverPostgres keeps the session in Postgres.
	StorageDriverPostgres StorageDriver = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageDriver.
func (d *StorageDriver) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "bolt", "redis", "postgres":
		*d = StorageDriver(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageDriver: %q (valid options: bolt, redis, postgres)", v)
	}
}

// RedisConfig configures the Redis durable backend.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
	// KeyPrefix namespaces sessionkit keys in a shared Redis.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"sessionkit:"`
}

// PostgresConfig configures the Postgres durable backend.
type PostgresConfig struct {
	DSN string `env:"DSN"`
}

// StorageConfig groups durable-backend configuration. The ephemeral
// backend is always in-process memory and needs no configuration.
type StorageConfig struct {
	// Driver selects the durable backend implementation.
	Driver StorageDriver `env:"DRIVER" envDefault:"bolt"`

	// BoltPath is the database file used by the bolt driver.
	BoltPath string `env:"BOLT_PATH" envDefault:"sessionkit.db"`

	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
}

// Sanitize applies guardrails to storage configuration.
func (c *StorageConfig) Sanitize() {
	if c.Driver == "" {
		c.Driver = StorageDriverBolt
	}
	c.BoltPath = strings.TrimSpace(c.BoltPath)
	if c.BoltPath == "" {
		c.BoltPath = "sessionkit.db"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "sessionkit:"
	}
}
