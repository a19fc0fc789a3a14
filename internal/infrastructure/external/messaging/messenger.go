package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/port"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

// ErrDeliveryFailed is returned for recipients configured to fail
var ErrDeliveryFailed = errors.New("message delivery failed")

// Message is a message accepted by the mock provider
type Message struct {
	ID        string
	Channel   string
	Recipient string
	Body      string
}

// Messenger is a mock SMS / e-mail gateway. It implements port.MessageSender.
type Messenger struct {
	failRecipients map[string]bool
	logger         *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewMessenger creates a mock messenger that fails for failRecipients
func NewMessenger(failRecipients []string, logger *zap.Logger) *Messenger {
	fail := make(map[string]bool, len(failRecipients))
	for _, r := range failRecipients {
		fail[strings.ToLower(strings.TrimSpace(r))] = true
	}
	return &Messenger{
		failRecipients: fail,
		logger:         logger,
	}
}

// Send delivers body to recipient and returns the provider message id
func (m *Messenger) Send(ctx context.Context, channel, recipient, body string) (string, error) {
	if channel != entity.ChannelSMS && channel != entity.ChannelEmail {
		return "", fmt.Errorf("unsupported channel %q", channel)
	}
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return "", fmt.Errorf("body cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if m.failRecipients[strings.ToLower(recipient)] {
		m.logger.Warn("Mock delivery failure",
			zap.String("channel", channel),
			zap.String("recipient", recipient))
		return "", fmt.Errorf("%w: %s rejected by %s gateway", ErrDeliveryFailed, recipient, strings.ToLower(channel))
	}

	msg := Message{
		ID:        uuid.NewString(),
		Channel:   channel,
		Recipient: recipient,
		Body:      body,
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("Message sent",
		zap.String("message_id", msg.ID),
		zap.String("channel", channel),
		zap.String("recipient", recipient))
	return msg.ID, nil
}

// Sent returns a copy of every accepted message
func (m *Messenger) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

var _ port.MessageSender = (*Messenger)(nil)
