package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Handler receives the channel's lifecycle and events.
type Handler interface {
	ApplyEvent(ctx context.Context, ev Event) error
	OnChannelConnected()
	OnChannelDisconnected()
}

// Config holds client configuration.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:5000/ws.
	URL string

	// Session is sent as the Cookie header on the upgrade request.
	Session string

	// InitialBackoff and MaxBackoff bound the reconnect delay.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// StableAfter is how long a session must last before the reconnect
	// delay resets to InitialBackoff.
	StableAfter time.Duration

	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults for url.
func DefaultConfig(url string) *Config {
	return &Config{
		URL:            url,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		StableAfter:    time.Minute,
		Logger:         zerolog.Nop(),
	}
}

// Client keeps a websocket session open and feeds decoded events to a
// Handler, reconnecting with exponential backoff.
type Client struct {
	cfg     *Config
	handler Handler
}

// NewClient creates a client. A nil config uses DefaultConfig with an empty
// URL, which Run rejects.
func NewClient(cfg *Config, h Handler) *Client {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	return &Client{cfg: cfg, handler: h}
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.URL == "" {
		return fmt.Errorf("realtime URL cannot be empty")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		started := time.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) >= c.cfg.StableAfter {
			b.Reset()
		}
		wait := b.NextBackOff()
		c.cfg.Logger.Warn().Err(err).Dur("retry_in", wait).Msg("realtime channel closed")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails.
func (c *Client) session(ctx context.Context) error {
	opts := &websocket.DialOptions{}
	if c.cfg.Session != "" {
		opts.HTTPHeader = http.Header{"Cookie": []string{c.cfg.Session}}
	}

	conn, _, err := websocket.Dial(ctx, c.cfg.URL, opts)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	c.cfg.Logger.Info().Str("url", c.cfg.URL).Msg("realtime channel connected")
	c.handler.OnChannelConnected()
	defer c.handler.OnChannelDisconnected()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				_ = conn.Close(websocket.StatusNormalClosure, "")
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		ev, err := Decode(data)
		if err != nil {
			// Frames the client does not understand are skipped.
			c.cfg.Logger.Debug().Err(err).Msg("ignoring frame")
			continue
		}
		if err := c.handler.ApplyEvent(ctx, ev); err != nil {
			c.cfg.Logger.Warn().Err(err).Str("event", string(ev.Kind)).Str("id", ev.ID).Msg("failed to apply event")
		}
	}
}
