package notify

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/wholesale-orders/internal/domain/order"
)

// Marker records that an order's notification went out.
type Marker interface {
	MarkNotified(ctx context.Context, id int64) error
}

// DispatcherConfig tunes the worker pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds the delivery of one order over all channels.
	Timeout time.Duration
}

// Dispatcher queues committed orders and delivers them in the background.
// It implements order.Notifier.
type Dispatcher struct {
	settings Settings
	email    Sender
	sms      Sender
	marker   Marker
	cfg      DispatcherConfig
	lg       *zap.Logger

	inbox chan *order.Order

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

// NewDispatcher creates a Dispatcher. Nil senders disable their channel.
func NewDispatcher(settings Settings, email, sms Sender, marker Marker, cfg DispatcherConfig, lg *zap.Logger, mp metric.MeterProvider) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("github.com/xenking/wholesale-orders/internal/notify")
	d := &Dispatcher{
		settings: settings,
		email:    email,
		sms:      sms,
		marker:   marker,
		cfg:      cfg,
		lg:       lg,
		inbox:    make(chan *order.Order, cfg.QueueSize),
	}
	d.delivered = counter(meter, "notifications.delivered", "Notifications accepted by a transport")
	d.failed = counter(meter, "notifications.failed", "Notifications rejected by a transport")
	d.dropped = counter(meter, "notifications.dropped", "Orders not queued because the queue was full")
	return d
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		c, _ = noop.NewMeterProvider().Meter("").Int64Counter(name)
	}
	return c
}

// Notify queues o for delivery. It never blocks: when the queue is full the
// order is dropped and logged.
func (d *Dispatcher) Notify(ctx context.Context, o *order.Order) {
	select {
	case d.inbox <- o:
	default:
		d.dropped.Add(ctx, 1)
		zctx.From(ctx).Warn("Notification queue full, dropping",
			zap.Int64("order_id", o.ID),
			zap.String("order_no", o.OrderNo),
		)
	}
}

// Run delivers queued orders until ctx is done, then drains what is left in
// the queue and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range d.cfg.Workers {
		lg := d.lg.With(zap.Int("worker", i))
		g.Go(func() error {
			d.work(zctx.Base(gctx, lg))
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case o := <-d.inbox:
			d.Deliver(ctx, o)
		case <-ctx.Done():
			drain := context.WithoutCancel(ctx)
			for {
				select {
				case o := <-d.inbox:
					d.Deliver(drain, o)
				default:
					return
				}
			}
		}
	}
}

// Deliver sends o over every enabled channel and marks it notified when at
// least one channel accepted it. It reports whether any channel succeeded.
func (d *Dispatcher) Deliver(ctx context.Context, o *order.Order) bool {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	lg := zctx.From(ctx).With(zap.Int64("order_id", o.ID), zap.String("order_no", o.OrderNo))
	ok := false

	if d.email != nil && d.settings.EmailEnabled && len(d.settings.AdminEmails) > 0 {
		msg, err := EmailMessage(d.settings, o)
		if err == nil {
			err = d.email.Send(ctx, msg)
		}
		ok = d.record(ctx, lg, ChannelEmail, err) || ok
	}
	if d.sms != nil && d.settings.SMSEnabled && len(d.settings.AdminPhones) > 0 {
		err := d.sms.Send(ctx, SMSMessage(d.settings, o))
		ok = d.record(ctx, lg, ChannelSMS, err) || ok
	}

	if !ok {
		lg.Debug("Order not notified on any channel")
		return false
	}
	if d.marker != nil {
		if err := d.marker.MarkNotified(ctx, o.ID); err != nil {
			lg.Warn("Mark order notified", zap.Error(err))
		}
	}
	return true
}

func (d *Dispatcher) record(ctx context.Context, lg *zap.Logger, ch Channel, err error) bool {
	attrs := metric.WithAttributes(attribute.String("channel", string(ch)))
	if err != nil {
		d.failed.Add(ctx, 1, attrs)
		lg.Warn("Notification failed", zap.String("channel", string(ch)), zap.Error(err))
		return false
	}
	d.delivered.Add(ctx, 1, attrs)
	return true
}
