package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"log"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type Config struct {
	Log        Log        `yaml:"log"`
	Storage    Storage    `yaml:"storage"`
	Redis      Redis      `yaml:"redis"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Fetcher    Fetcher    `yaml:"fetcher"`
	Cache      Cache      `yaml:"cache"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Storage struct {
	Timeout  time.Duration `yaml:"timeout" env:"BD_TIMEOUT" env-default:"10s"`
	Host     string        `yaml:"host" env:"BD_HOST" env-default:"localhost"`
	Port     int           `yaml:"port" env:"BD_PORT" env-default:"5432"`
	User     string        `yaml:"user" env:"BD_USER"`
	Password string        `yaml:"password" env:"BD_PASSWORD"`
	DBName   string        `yaml:"dbname" env:"BD_DBNAME"`
	SSLMode  string        `yaml:"ssl_mode" env:"BD_SSL_MODE" env-default:"disable"`
	Schema   string        `yaml:"schema" env:"BD_SCHEMA" env-default:"public"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type HTTPServer struct {
	Port        string        `yaml:"port" env:"HTTP_PORT" env-default:"8082"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"2m"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type Fetcher struct {
	URL             string        `yaml:"url" env:"FETCHER_URL" env-default:"https://openexchangerates.org/api/"`
	AppID           string        `yaml:"app_id" env:"FETCHER_APP_ID"`
	Source          string        `yaml:"source" env:"FETCHER_SOURCE" env-default:"USD"`
	Symbols         string        `yaml:"symbols" env:"FETCHER_SYMBOLS"`
	Date            string        `yaml:"date" env:"FETCHER_DATE"`
	ShowAlternative bool          `yaml:"show_alternative" env:"FETCHER_SHOW_ALTERNATIVE" env-default:"false"`
	PrettyPrint     bool          `yaml:"prettyprint" env:"FETCHER_PRETTYPRINT" env-default:"true"`
	BidAsk          bool          `yaml:"bid_ask" env:"FETCHER_BID_ASK" env-default:"false"`
	TTL             time.Duration `yaml:"ttl" env:"FETCHER_TTL" env-default:"1h"`
	ForceRefresh    bool          `yaml:"force_refresh" env:"FETCHER_FORCE_REFRESH" env-default:"false"`
	Timeout         time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT" env-default:"10s"`
	TimeTickers     time.Duration `yaml:"time_tickers" env:"FETCHER_TIME_TICKERS" env-default:"30m"`
	RPS             float64       `yaml:"rps" env:"FETCHER_RPS" env-default:"1"`
	Burst           int           `yaml:"burst" env:"FETCHER_BURST" env-default:"10"`
	Retries         int           `yaml:"retries" env:"FETCHER_RETRIES" env-default:"2"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" env:"FETCHER_RETRY_BACKOFF" env-default:"200ms"`
}

// Cache selects where the raw rates document is kept: file, redis, postgres
// or none.
type Cache struct {
	Backend string `yaml:"backend" env:"CACHE_BACKEND" env-default:"file"`
	Path    string `yaml:"path" env:"CACHE_PATH" env-default:"./rates.json"`
	Key     string `yaml:"key" env:"CACHE_KEY" env-default:"oxr:rates:latest"`
}

func NewConfig() *Config {
	_ = godotenv.Load(".env")

	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Error reading config: ", err)
	}

	return cfg
}

// Load reads the YAML file at path, when given, and then the environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := &Config{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := cfg.Fetcher.ParseDate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

// Split returns a comma separated Fetcher field as a list.
func (c *Config) Split(fieldName string) []string {
	v := reflect.ValueOf(&c.Fetcher).Elem()
	f := v.FieldByName(fieldName)
	if !f.IsValid() || f.Kind() != reflect.String {
		return nil
	}
	str := f.String()
	if str == "" {
		return nil
	}

	parts := strings.Split(str, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseDate returns the historical date, or the zero time for latest rates.
func (f Fetcher) ParseDate() (time.Time, error) {
	if f.Date == "" {
		return time.Time{}, nil
	}

	date, err := time.Parse(dateLayout, f.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid FETCHER_DATE %q: %w", f.Date, err)
	}

	return date, nil
}

func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (s Storage) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		s.Host,
		s.Port,
		s.User,
		s.Password,
		s.DBName,
		s.SSLMode,
		s.Schema,
	)
}
