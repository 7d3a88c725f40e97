package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CARTAPI_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		RequestTimeout  time.Duration `koanf:"request_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Catalog struct {
		ProductsFile string `koanf:"products_file"`
		UsersFile    string `koanf:"users_file"`
	} `koanf:"catalog"`

	Store struct {
		Driver   string `koanf:"driver"` // file | redis | mysql
		FilePath string `koanf:"file_path"`
		RedisKey string `koanf:"redis_key"`
		Name     string `koanf:"name"` // row name in cart_snapshots
	} `koanf:"store"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Idempotency struct {
		Enabled bool          `koanf:"enabled"`
		TTL     time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Events struct {
		Driver string `koanf:"driver"` // none | rabbitmq | kafka | outbox
	} `koanf:"events"`

	Rabbit struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		TopicEvents string   `koanf:"topic_events"`
		ClientID    string   `koanf:"client_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	CORS struct {
		AllowOrigins []string `koanf:"allow_origins"`
	} `koanf:"cors"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix CARTAPI_, nested with __)
	// e.g. CARTAPI_STORE__DRIVER, CARTAPI_SECURITY__JWT_SECRET
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Catalog.ProductsFile == "" {
		return fmt.Errorf("catalog.products_file required")
	}
	if c.Catalog.UsersFile == "" {
		return fmt.Errorf("catalog.users_file required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}

	switch c.Store.Driver {
	case "", "file":
		if c.Store.FilePath == "" {
			return fmt.Errorf("store.file_path required for the file driver")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr required for the redis store")
		}
	case "mysql":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql.dsn required for the mysql store")
		}
	default:
		return fmt.Errorf("store.driver %q: want file, redis or mysql", c.Store.Driver)
	}

	if c.Idempotency.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required when idempotency is enabled")
	}

	switch c.Events.Driver {
	case "", "none":
	case "rabbitmq":
		if c.Rabbit.URL == "" {
			return fmt.Errorf("rabbitmq.url required for rabbitmq events")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.TopicEvents == "" {
			return fmt.Errorf("kafka.brokers and kafka.topic_events required for kafka events")
		}
	case "outbox":
		if c.MySQL.DSN == "" {
			return fmt.Errorf("mysql.dsn required for outbox events")
		}
	default:
		return fmt.Errorf("events.driver %q: want none, rabbitmq, kafka or outbox", c.Events.Driver)
	}
	return nil
}

// NeedsRedis reports whether any enabled component talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.Store.Driver == "redis" || c.Idempotency.Enabled
}

// NeedsMySQL reports whether any enabled component talks to MySQL.
func (c Config) NeedsMySQL() bool {
	return c.Store.Driver == "mysql" || c.Events.Driver == "outbox"
}
