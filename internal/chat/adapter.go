// Package chat implements the citizen conversation engine and its channel
// adapter contract.
package chat

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific channel implementations
// must satisfy. Each adapter handles connection management, inbound payload
// translation, and reply delivery for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage is one citizen message translated from a platform webhook
// or gateway event into the engine's model.
type InboundMessage struct {
	Platform         string     // e.g. "whatsapp", "discord"
	DeliveryID       string     // gateway delivery id, used for replay protection
	UserHandle       string     // channel-specific sender address
	UserName         string     // profile display name if the platform provides one
	Text             string     // raw message text
	MediaCount       int        // number of attached media items
	MediaURL         string     // URL of the first media item
	MediaContentType string     // MIME type of the first media item
	Latitude         *float64   // location payload, nil when absent
	Longitude        *float64
	Address          string     // human-readable address if the platform provides one
	Timestamp        time.Time
}

// HasLocation reports whether the message carries a geolocation payload.
func (m InboundMessage) HasLocation() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// OutboundMessage is the engine's reply. The adapter owns wire
// serialization, including empty acknowledgement bodies.
type OutboundMessage struct {
	UserHandle string
	Text       string
}
