package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"meme-battle/internal/game"
)

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "memebattle",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher fans session lifecycle events out on NATS, one subject per
// event type.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

var _ game.EventSink = (*Publisher)(nil)

func Connect(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("meme-battle"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, event game.LifecycleEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := message(p.prefix, event)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	log.Debug().Str("subject", msg.Subject).Str("session_id", event.SessionID).Msg("published lifecycle event")
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

func message(prefix string, event game.LifecycleEvent) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &nats.Msg{
		Subject: Subject(prefix, event.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{event.Type},
			"Session-ID": []string{event.SessionID},
		},
	}, nil
}

// Subject is the NATS subject an event type is published on.
func Subject(prefix, eventType string) string {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
