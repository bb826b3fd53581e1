package app

import (
	"github.com/xenking/wholesale-orders/internal/notify"
)

// newSender builds the transport of one notification channel. A disabled
// channel yields a nil sender, which the dispatcher skips.
func newSender(cfg *Config, ch ChannelConfig) (notify.Sender, func()) {
	if !ch.Enabled {
		return nil, func() {}
	}
	if ch.Transport == "kafka" {
		s := notify.NewKafkaSender(notify.NewKafkaWriter(cfg.Kafka.Brokers, ch.Topic))
		return s, func() { _ = s.Close() }
	}
	return notify.LogSender{}, func() {}
}
