// Package nats publishes completion notifications to a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// MsgIDHeader carries the message ID; JetStream streams use it for dedup.
const MsgIDHeader = "Nats-Msg-Id"

const (
	defaultConnectTimeout = 2 * time.Second
	defaultFlushTimeout   = 5 * time.Second
)

// Config names the server and the subject notices go to.
type Config struct {
	URL            string
	Subject        string
	ClientName     string
	ConnectTimeout time.Duration
	FlushTimeout   time.Duration
}

// IDGenerator produces message IDs.
type IDGenerator interface {
	NewID() (string, error)
}

type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher sends JSON notices on one subject.
type Publisher struct {
	conn         conn
	subject      string
	ids          IDGenerator
	flushTimeout time.Duration
}

// Open connects to cfg.URL.
func Open(cfg Config, ids IDGenerator, logger *zap.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("nats url is required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return nil, errors.New("nats subject is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	name := cfg.ClientName
	if name == "" {
		name = "webcrawler"
	}

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newPublisher(nc, cfg.Subject, ids, cfg.FlushTimeout), nil
}

func newPublisher(c conn, subject string, ids IDGenerator, flushTimeout time.Duration) *Publisher {
	if flushTimeout <= 0 {
		flushTimeout = defaultFlushTimeout
	}
	return &Publisher{conn: c, subject: subject, ids: ids, flushTimeout: flushTimeout}
}

// Publish marshals payload and sends it on the subject, falling back to the
// configured subject when topic is empty. It flushes so the server has the
// message before returning the generated message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p == nil || p.conn == nil {
		return "", errors.New("nats publisher is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	subject := topic
	if subject == "" {
		subject = p.subject
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id, err := p.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("message id: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(MsgIDHeader, id)
	msg.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		return "", fmt.Errorf("nats publish: %w", err)
	}
	if err := p.conn.FlushTimeout(p.flushTimeout); err != nil {
		return "", fmt.Errorf("nats flush: %w", err)
	}
	return id, nil
}

// Close drops the connection.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	p.conn.Close()
	return nil
}
