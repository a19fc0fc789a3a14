package rideshare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/voucher-desk/internal/application/port"
)

// Failure modes of the mock provider
const (
	ModeOK    = "ok"    // every call succeeds
	ModeFlaky = "flaky" // the first attempt of every call times out
	ModeDown  = "down"  // every attempt times out
)

var (
	// ErrRejected is a permanent provider refusal; it is not retried
	ErrRejected = errors.New("rideshare credit rejected")
	// ErrUnavailable is a transient provider failure
	ErrUnavailable = errors.New("rideshare provider unavailable")
)

// Config configures the mock Uber client
type Config struct {
	Mode            string
	RejectRefs      []string // passenger ref prefixes the provider always rejects
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	CodeTTL         time.Duration
}

// Client is a mock Uber ride-credit API. It implements port.RideshareProvider.
type Client struct {
	cfg    Config
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// NewClient creates a mock rideshare client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Mode == "" {
		cfg.Mode = ModeOK
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 24 * time.Hour
	}
	return &Client{
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
		attempts: make(map[string]int),
	}
}

// IssueCredit requests a ride credit, retrying transient failures with
// exponential backoff
func (c *Client) IssueCredit(ctx context.Context, passengerRef string, amountCents int64, currency string) (*port.RideshareCode, error) {
	if passengerRef == "" {
		return nil, fmt.Errorf("%w: passenger ref cannot be empty", ErrRejected)
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval

	attempt := 0
	code, err := backoff.Retry(ctx, func() (*port.RideshareCode, error) {
		attempt++
		code, err := c.call(passengerRef, amountCents, attempt)
		if errors.Is(err, ErrRejected) {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Info("Rideshare attempt failed, retrying",
				zap.String("passenger_ref", passengerRef),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return code, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.cfg.MaxAttempts))
	if err != nil {
		c.logger.Error("Rideshare credit failed",
			zap.String("passenger_ref", passengerRef),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return nil, fmt.Errorf("rideshare credit after %d attempt(s): %w", attempt, err)
	}

	c.logger.Info("Rideshare credit issued",
		zap.String("passenger_ref", passengerRef),
		zap.String("code", code.Code),
		zap.Int64("amount_cents", amountCents),
		zap.String("currency", currency))
	return code, nil
}

func (c *Client) call(ref string, amountCents int64, attempt int) (*port.RideshareCode, error) {
	c.mu.Lock()
	c.attempts[ref]++
	c.mu.Unlock()

	for _, prefix := range c.cfg.RejectRefs {
		if prefix != "" && strings.HasPrefix(ref, prefix) {
			return nil, fmt.Errorf("%w: rider %s is not eligible", ErrRejected, ref)
		}
	}

	switch c.cfg.Mode {
	case ModeDown:
		return nil, fmt.Errorf("%w: request timed out", ErrUnavailable)
	case ModeFlaky:
		if attempt == 1 {
			return nil, fmt.Errorf("%w: request timed out", ErrUnavailable)
		}
	}

	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return &port.RideshareCode{
		Code:        "UBER-" + hex[:10],
		AmountCents: amountCents,
		ExpiresAt:   c.now().Add(c.cfg.CodeTTL).UTC().Format(time.RFC3339),
	}, nil
}

// Attempts returns how many provider calls were made for ref
func (c *Client) Attempts(ref string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[ref]
}

var _ port.RideshareProvider = (*Client)(nil)
