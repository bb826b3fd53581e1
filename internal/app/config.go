package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (WHOLESALE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (WHOLESALE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (WHOLESALE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	// RequestTimeout bounds each API request, report downloads included.
	RequestTimeout time.Duration `default:"30s" usage:"Per-request timeout" flag:"request-timeout"`
	Redis          RedisConfig
	Kafka          KafkaConfig
	Orders         OrdersConfig
	Statistics     StatisticsConfig
	Notification   NotificationConfig
	Company        CompanyConfig
	RateLimit      RateLimitConfig
	Graceful       GracefulConfig
}

// RedisConfig locates the statistics cache. An empty address disables it.
type RedisConfig struct {
	Addr string `usage:"Redis host:port or redis:// URL (WHOLESALE_REDIS_ADDR or REDIS_URL)"`
}

// KafkaConfig lists the brokers notification topics live on.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
}

// OrdersConfig controls order number generation.
type OrdersConfig struct {
	NumberPrefix      string `default:"ORD" usage:"Order number prefix"`
	NumberDigits      int    `default:"4"   usage:"Random digits after the date in an order number"`
	MaxCreateAttempts int    `default:"5"   usage:"Attempts before giving up on order number collisions"`
}

// StatisticsConfig tunes the statistics engine.
type StatisticsConfig struct {
	TimeZone        string        `default:"UTC"  usage:"IANA zone that defines calendar days"`
	SlowMovingAfter time.Duration `default:"720h" usage:"Idle period after which a product is slow moving"`
	MonthlyTopN     int           `default:"10"   usage:"Ranking size inside monthly reports"`
	CacheTTL        time.Duration `default:"0s"   usage:"Redis cache TTL for statistics, 0 disables"`
	QueryTimeout    time.Duration `default:"15s"  usage:"Timeout of one statistics operation"`
}

// ChannelConfig configures one notification channel.
type ChannelConfig struct {
	Enabled    bool     `default:"false" usage:"Enable the channel"`
	Recipients []string `usage:"Administrator addresses or phone numbers"`
	// Transport is "log" or "kafka".
	Transport string `default:"log" usage:"Delivery transport: log or kafka"`
	Topic     string `usage:"Kafka topic for the kafka transport"`
}

// NotificationConfig controls the asynchronous notification dispatcher.
type NotificationConfig struct {
	Workers   int           `default:"2"   usage:"Notification workers"`
	QueueSize int           `default:"256" usage:"Pending notification queue size"`
	Timeout   time.Duration `default:"10s" usage:"Timeout of one order notification"`
	Email     ChannelConfig
	SMS       ChannelConfig
}

// CompanyConfig identifies the seller in notifications.
type CompanyConfig struct {
	Name    string `default:"Wholesale" usage:"Company name"`
	Phone   string
	Email   string
	Address string
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Rate  float64 `default:"10" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "WHOLESALE",
		Files:     []string{"config.yaml", "/etc/wholesale/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set WHOLESALE_DATABASE_URL or DATABASE_URL")
	}
	if d := c.Orders.NumberDigits; d < 1 || d > order.MaxNumberDigits {
		return errors.Errorf("order number digits must be between 1 and %d, got %d", order.MaxNumberDigits, d)
	}
	if _, err := time.LoadLocation(c.Statistics.TimeZone); err != nil {
		return errors.Wrapf(err, "statistics time zone %q", c.Statistics.TimeZone)
	}
	for name, ch := range map[string]ChannelConfig{"email": c.Notification.Email, "sms": c.Notification.SMS} {
		if !ch.Enabled {
			continue
		}
		switch ch.Transport {
		case "log":
		case "kafka":
			if len(c.Kafka.Brokers) == 0 || ch.Topic == "" {
				return errors.Errorf("%s notifications over kafka need brokers and a topic", name)
			}
		default:
			return errors.Errorf("unknown %s transport %q", name, ch.Transport)
		}
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's WHOLESALE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
