package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer used by KafkaSender.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// KafkaSender publishes notifications as JSON records for a downstream
// mail or SMS gateway. Records are keyed by order number.
type KafkaSender struct {
	w   MessageWriter
	now func() time.Time
}

// NewKafkaSender wraps w.
func NewKafkaSender(w MessageWriter) *KafkaSender {
	return &KafkaSender{w: w, now: time.Now}
}

// Send implements Sender.
func (s *KafkaSender) Send(ctx context.Context, m Message) error {
	msg := kafka.Message{
		Key:   []byte(m.OrderNo),
		Value: EncodeMessage(m, s.now()),
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(m.Channel)},
			{Key: "order_id", Value: []byte(strconv.FormatInt(m.OrderID, 10))},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s notification", m.Channel)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSender) Close() error {
	return s.w.Close()
}

// EncodeMessage renders m as a JSON object.
func EncodeMessage(m Message, at time.Time) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("channel")
	e.Str(string(m.Channel))
	e.FieldStart("order_id")
	e.Int64(m.OrderID)
	e.FieldStart("order_no")
	e.Str(m.OrderNo)
	e.FieldStart("recipients")
	e.ArrStart()
	for _, r := range m.Recipients {
		e.Str(r)
	}
	e.ArrEnd()
	e.FieldStart("subject")
	e.Str(m.Subject)
	e.FieldStart("body")
	e.Str(m.Body)
	e.FieldStart("html")
	e.Bool(m.HTML)
	e.FieldStart("created_at")
	e.Str(at.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}
