// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	Expirer                 `yaml:"expirer"`
	Seed                    `yaml:"seed"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP    string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP    time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" env-default:"50"`
	RateLimitBurst int           `yaml:"rate_limit_burst" env-default:"100"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеширование.
type RedisConnection struct {
	AddressRedis string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeout" env-default:"3s"`
	CacheTTL     time.Duration `yaml:"ttl" env-default:"1h"`
}

// RabbitMQ структура для настройки публикации событий.
// Пустой URL отключает публикацию.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange           string        `yaml:"exchange" env-default:"subscriptions"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Expirer структура для настройки фонового перевода подписок в EXPIRED
type Expirer struct {
	Interval time.Duration `yaml:"interval" env:"EXPIRER_INTERVAL" env-default:"1h"`
}

// Seed структура для генератора тестовых данных
type Seed struct {
	Users int `yaml:"users" env-default:"50"`
}

// MustLoad функция для загрузки конфига из файла, путь к которому лежит в CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"  RateLimit: %.2f rps, burst %d\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"  DB: %d\n"+
			"  TTL: %s\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"  Exchange: %s\n"+
			"Expirer:\n"+
			"  Interval: %s\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.MigrationsPath,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RateLimitRPS,
		c.RateLimitBurst,
		c.AddressRedis,
		mask(c.Password),
		c.DB,
		c.CacheTTL,
		mask(c.RabbitMQURL),
		c.Exchange,
		c.Interval,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "******"
}
