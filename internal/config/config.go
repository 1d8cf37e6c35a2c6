package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultBaseURL       = "https://api.coingecko.com/api/v3"
	defaultInterval      = 120 * time.Second
	defaultHTTPTimeout   = 30 * time.Second
	defaultPostgresHost  = "localhost"
	defaultPostgresPort  = 5432
	defaultSSLMode       = "disable"
	defaultSQLitePath    = "crypto_prices.db"
	defaultLogLevel      = "info"
	defaultVsCurrency    = "brl"
	defaultOrder         = "market_cap_desc"
	defaultPerPage       = 250
	defaultPage          = 1
	defaultStatusLimit   = 50
	defaultMaxOpenConns  = 5
	defaultConnectionTTL = time.Hour
)

type Config struct {
	API struct {
		BaseURL    string        `yaml:"base_url"`
		VsCurrency string        `yaml:"vs_currency"`
		Order      string        `yaml:"order"`
		PerPage    int           `yaml:"per_page"`
		Page       int           `yaml:"page"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"api"`
	Database struct {
		Driver       string        `yaml:"driver"`
		SQLitePath   string        `yaml:"sqlite_path"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		Name         string        `yaml:"name"`
		SSLMode      string        `yaml:"sslmode"`
		MaxOpenConns int           `yaml:"max_open_conns"`
		ConnMaxLife  time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`
	Polling struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"polling"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port         int `yaml:"port"` // 0 disables the status server
		DefaultLimit int `yaml:"default_limit"`
	} `yaml:"server"`
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config %s: %w", path, err)
		default:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.User, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.Host, "POSTGRES_HOST")
	setString(&c.Database.Name, "POSTGRES_DB")
	setString(&c.Database.SSLMode, "POSTGRES_SSLMODE")
	setString(&c.Database.Driver, "ETL_DB_DRIVER")
	setString(&c.Database.SQLitePath, "ETL_SQLITE_PATH")
	setString(&c.Logging.Level, "ETL_LOG_LEVEL")
	setString(&c.Logging.File, "ETL_LOG_FILE")
	setString(&c.API.BaseURL, "COINGECKO_BASE_URL")

	if err := setInt(&c.Database.Port, "POSTGRES_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Server.Port, "ETL_SERVER_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("ETL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ETL_INTERVAL %q: %w", v, err)
		}
		c.Polling.Interval = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.VsCurrency == "" {
		c.API.VsCurrency = defaultVsCurrency
	}
	if c.API.Order == "" {
		c.API.Order = defaultOrder
	}
	if c.API.PerPage == 0 {
		c.API.PerPage = defaultPerPage
	}
	if c.API.Page == 0 {
		c.API.Page = defaultPage
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaultHTTPTimeout
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = defaultSQLitePath
	}
	if c.Database.Host == "" {
		c.Database.Host = defaultPostgresHost
	}
	if c.Database.Port == 0 {
		c.Database.Port = defaultPostgresPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = defaultSSLMode
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if c.Database.ConnMaxLife == 0 {
		c.Database.ConnMaxLife = defaultConnectionTTL
	}

	if c.Polling.Interval <= 0 {
		c.Polling.Interval = defaultInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Server.DefaultLimit <= 0 {
		c.Server.DefaultLimit = defaultStatusLimit
	}
}

// Validate reports settings the selected driver cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		var missing []string
		if c.Database.User == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if c.Database.Password == "" {
			missing = append(missing, "POSTGRES_PASSWORD")
		}
		if c.Database.Name == "" {
			missing = append(missing, "POSTGRES_DB")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing database settings: %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
}

// DSN composes the Postgres connection string.
func (c *Config) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
	}
	if c.Database.User != "" {
		if c.Database.Password != "" {
			u.User = url.UserPassword(c.Database.User, c.Database.Password)
		} else {
			u.User = url.User(c.Database.User)
		}
	}
	if c.Database.Name != "" {
		u.Path = "/" + c.Database.Name
	}
	q := url.Values{}
	q.Set("sslmode", c.Database.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
