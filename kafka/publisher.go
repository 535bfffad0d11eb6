package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/caseflow/events"
	"github.com/kbukum/caseflow/logger"
	"github.com/kbukum/caseflow/resilience"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("kafka: publisher closed")

// messageWriter is the part of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events as JSON messages keyed by run ID.
type Publisher struct {
	writer messageWriter
	cfg    Config
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

var _ events.Sink = (*Publisher)(nil)

// NewPublisher builds a publisher for an enabled config.
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("kafka")

	transport := &kafkago.Transport{}
	if cfg.EnableTLS {
		tc, err := tlsConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("kafka tls: %w", err)
		}
		transport.TLS = tc
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  compression(cfg.Compression),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("writer: " + fmt.Sprintf(msg, args...))
		}),
	}
	log.Info("kafka publisher ready", logger.Fields("brokers", cfg.Brokers, "topic", cfg.Topic))
	return newPublisher(w, cfg, log), nil
}

func newPublisher(w messageWriter, cfg Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{writer: w, cfg: cfg, log: log}
}

// Publish writes e, retrying transient broker errors.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", e.Type, err)
	}
	msg := kafkago.Message{
		Key:     []byte(e.Key()),
		Value:   value,
		Time:    e.At,
		Headers: []kafkago.Header{{Key: "event_type", Value: []byte(e.Type)}},
	}
	retry := resilience.RetryConfig{
		MaxAttempts:    p.cfg.Retries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			p.log.Warn("publish failed, retrying", logger.Fields(
				logger.FieldRunID, e.RunID, logger.FieldAttempt, attempt, logger.FieldError, err.Error()))
		},
	}
	err = resilience.RetryFunc(ctx, retry, func(int) error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("kafka: publish %s for run %s: %w", e.Type, e.RunID, err)
	}
	return nil
}

// Close flushes pending messages. Later Publish calls fail with ErrClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

func compression(name string) kafkago.Compression {
	switch name {
	case "gzip":
		return kafkago.Gzip
	case "lz4":
		return kafkago.Lz4
	case "zstd":
		return kafkago.Zstd
	case "none":
		return 0
	default:
		return kafkago.Snappy
	}
}

func tlsConfig(cfg Config) (*tls.Config, error) {
	tc := &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify, MinVersion: tls.VersionTLS12}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tc.RootCAs = pool
	}
	return tc, nil
}
