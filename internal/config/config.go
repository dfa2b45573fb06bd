package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken       string        `envconfig:"BOT_TOKEN" required:"true" validate:"required"`
	GeoapifyKey    string        `envconfig:"GEOAPIFY_API_KEY" required:"true" validate:"required"`
	OpenWeatherKey string        `envconfig:"OPENWEATHER_API_KEY" required:"true" validate:"required"`
	DBDriver       string        `envconfig:"DB_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	DBDSN          string        `envconfig:"DB_DSN" default:"./data/weatherbot.db" validate:"required"` // file path for sqlite
	ChartDir       string        `envconfig:"CHART_DIR" default:"./graphs" validate:"required"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
	HTTPRetries    int           `envconfig:"HTTP_RETRIES" default:"2" validate:"min=0,max=5"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"30m" validate:"min=0"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogEncoding    string        `envconfig:"LOG_ENCODING" default:"json" validate:"oneof=json console"`
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8080"` // empty disables the status server
}

var validate = validator.New()

// Load reads environment variables into Config and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotenv loads variables from the given files (".env" when none) without
// overriding the environment. It reports whether anything was loaded.
func LoadDotenv(files ...string) bool {
	return godotenv.Load(files...) == nil
}
