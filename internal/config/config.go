package config

import (
	"errors"
	"fmt"
	"os"

	"turfbook/internal/gateway"
	"turfbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Bookings   BookingsConfig   `yaml:"bookings"`
	Reminders  RemindersConfig  `yaml:"reminders"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PaymentsConfig struct {
	// ActiveGateway выбирает шлюз для новых заказов; вебхуки принимаются от обоих
	ActiveGateway string                 `yaml:"active_gateway"`
	Currency      string                 `yaml:"currency"`
	TimeoutSec    int                    `yaml:"timeout_sec"`
	SweepGraceMin int                    `yaml:"sweep_grace_min"`
	SweepEverySec int                    `yaml:"sweep_every_sec"`
	Razorpay      gateway.RazorpayConfig `yaml:"razorpay"`
	Cashfree      gateway.CashfreeConfig `yaml:"cashfree"`
}

type BookingsConfig struct {
	// MaxDays горизонт бронирования от сегодняшнего дня
	MaxDays int `yaml:"max_days"`
	// Timezone определяет границы дня и время начала слотов
	Timezone string `yaml:"timezone"`
}

type RemindersConfig struct {
	Enabled       bool `yaml:"enabled"`
	ToleranceMin  int  `yaml:"tolerance_min"`
	SweepEverySec int  `yaml:"sweep_every_sec"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен; переменные могут прийти из окружения
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Payments.ActiveGateway {
	case models.GatewayRazorpay, models.GatewayCashfree:
	default:
		return fmt.Errorf("payments.active_gateway must be %q or %q, got %q",
			models.GatewayRazorpay, models.GatewayCashfree, c.Payments.ActiveGateway)
	}

	if c.Reminders.ToleranceMin < 0 {
		return errors.New("reminders.tolerance_min must not be negative")
	}

	return nil
}

// ValidateTurfs проверяет справочник площадок перед загрузкой в базу.
func ValidateTurfs(turfs []models.Turf, prices []models.HourlyPrice) error {
	turfIDs := make(map[int64]bool)
	for _, turf := range turfs {
		if turf.ID == 0 {
			return fmt.Errorf("turf %q has invalid ID 0", turf.Name)
		}
		if turfIDs[turf.ID] {
			return fmt.Errorf("duplicate turf ID found: %d", turf.ID)
		}
		turfIDs[turf.ID] = true
	}

	seen := make(map[[2]int64]bool)
	for _, price := range prices {
		if !turfIDs[price.TurfID] {
			return fmt.Errorf("price references unknown turf ID %d", price.TurfID)
		}
		if price.Hour < 0 || price.Hour > 23 {
			return fmt.Errorf("turf %d has out-of-range hour %d", price.TurfID, price.Hour)
		}
		key := [2]int64{price.TurfID, int64(price.Hour)}
		if seen[key] {
			return fmt.Errorf("duplicate price for turf %d hour %d", price.TurfID, price.Hour)
		}
		seen[key] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Payments.ActiveGateway == "" {
		c.Payments.ActiveGateway = models.GatewayRazorpay
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "INR"
	}
	if c.Payments.TimeoutSec == 0 {
		c.Payments.TimeoutSec = models.DefaultGatewayTimeoutSec
	}
	if c.Payments.SweepGraceMin == 0 {
		c.Payments.SweepGraceMin = models.DefaultSweepGraceMinutes
	}
	if c.Payments.SweepEverySec == 0 {
		c.Payments.SweepEverySec = 300
	}

	if c.Bookings.MaxDays == 0 {
		c.Bookings.MaxDays = models.DefaultMaxBookingDays
	}
	if c.Bookings.Timezone == "" {
		c.Bookings.Timezone = "Asia/Kolkata"
	}

	if c.Reminders.ToleranceMin == 0 {
		c.Reminders.ToleranceMin = models.DefaultReminderToleranceMin
	}
	if c.Reminders.SweepEverySec == 0 {
		c.Reminders.SweepEverySec = 60
	}
}
