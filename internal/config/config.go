package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DBDSN       string  `envconfig:"DB_DSN" required:"true"`
	HTTPAddr    string  `envconfig:"HTTP_ADDR" default:":8080"`
	Environment string  `envconfig:"ENV" default:"development"`
	Timezone    string  `envconfig:"TIMEZONE" default:"Asia/Taipei"`
	RunMigrator bool    `envconfig:"MIGRATIONS" default:"true"`
	RateRPS     float64 `envconfig:"RATE_RPS" default:"10"`
	RateBurst   int     `envconfig:"RATE_BURST" default:"20"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	return &cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}
