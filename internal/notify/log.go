package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogSender writes notifications to the request logger instead of a real
// gateway.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, m Message) error {
	zctx.From(ctx).Info("Notification",
		zap.String("channel", string(m.Channel)),
		zap.Strings("recipients", m.Recipients),
		zap.String("order_no", m.OrderNo),
		zap.String("subject", m.Subject),
		zap.Int("body_bytes", len(m.Body)),
	)
	return nil
}
