// Package notify delivers new-order notifications to administrators over
// email and SMS after the order has been committed.
package notify

import (
	"context"
)

// Channel is a notification medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Company identifies the seller in outgoing messages.
type Company struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Settings is the notification configuration, loaded once at startup.
type Settings struct {
	EmailEnabled bool
	AdminEmails  []string
	SMSEnabled   bool
	AdminPhones  []string
	Company      Company
}

// Message is a rendered notification ready for a transport.
type Message struct {
	Channel    Channel
	Recipients []string
	Subject    string
	Body       string
	HTML       bool
	OrderID    int64
	OrderNo    string
}

// Sender hands a message to a concrete transport.
type Sender interface {
	Send(ctx context.Context, m Message) error
}
