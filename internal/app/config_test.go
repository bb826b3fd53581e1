package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/wholesale-orders/internal/notify"
)

func validConfig() Config {
	return Config{
		Addr:        defaultAddr,
		DatabaseURL: "postgres://localhost/wholesale",
		Orders:      OrdersConfig{NumberDigits: 4},
		Statistics:  StatisticsConfig{TimeZone: "UTC"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "too many digits", mutate: func(c *Config) { c.Orders.NumberDigits = 19 }, wantErr: "order number digits must be between 1 and 9"},
		{name: "no digits", mutate: func(c *Config) { c.Orders.NumberDigits = 0 }, wantErr: "order number digits"},
		{name: "bad zone", mutate: func(c *Config) { c.Statistics.TimeZone = "Mars/Olympus" }, wantErr: "statistics time zone"},
		{
			name: "kafka without brokers",
			mutate: func(c *Config) {
				c.Notification.Email = ChannelConfig{Enabled: true, Transport: "kafka", Topic: "mail"}
			},
			wantErr: "email notifications over kafka",
		},
		{
			name: "unknown transport",
			mutate: func(c *Config) {
				c.Notification.SMS = ChannelConfig{Enabled: true, Transport: "pigeon"}
			},
			wantErr: `unknown sms transport "pigeon"`,
		},
		{
			name: "disabled channel ignored",
			mutate: func(c *Config) {
				c.Notification.SMS = ChannelConfig{Transport: "pigeon"}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.Addr)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/db"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestNewSender(t *testing.T) {
	cfg := validConfig()

	s, closeFn := newSender(&cfg, ChannelConfig{})
	assert.Nil(t, s)
	closeFn()

	s, closeFn = newSender(&cfg, ChannelConfig{Enabled: true, Transport: "log"})
	assert.IsType(t, notify.LogSender{}, s)
	closeFn()

	cfg.Kafka.Brokers = []string{"localhost:9092"}
	s, closeFn = newSender(&cfg, ChannelConfig{Enabled: true, Transport: "kafka", Topic: "sms"})
	assert.IsType(t, &notify.KafkaSender{}, s)
	closeFn()
}
