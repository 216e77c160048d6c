// Package events publishes catalog domain events (registrations, reviews,
// wishlist changes, ingestion runs) to a message queue.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	UserRegistered  = "user.registered"
	ReviewAdded     = "review.added"
	WishlistAdded   = "wishlist.added"
	WishlistRemoved = "wishlist.removed"
	CatalogIngested = "catalog.ingested"
)

type Event struct {
	Type  string         `json:"type"`
	Time  time.Time      `json:"time"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

func New(typ string, attrs map[string]any) Event {
	return Event{Type: typ, Time: time.Now().UTC(), Attrs: attrs}
}

// Publisher is backed by Redis Streams, Kafka, memory or nothing.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type Config struct {
	Type         string   `mapstructure:"type" yaml:"type" json:"type"` // noop|memory|redis|kafka
	RedisURL     string   `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	Stream       string   `mapstructure:"stream" yaml:"stream" json:"stream"`
	MaxLen       int64    `mapstructure:"max_len" yaml:"max_len" json:"max_len"`
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers" json:"kafka_brokers"`
	Topic        string   `mapstructure:"topic" yaml:"topic" json:"topic"`
}

// Open builds the publisher named by cfg.Type.
func Open(cfg Config, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "noop", "none":
		return Noop{}, nil
	case "memory":
		return NewMemory(), nil
	case "redis":
		p, err := NewRedis(cfg.RedisURL, cfg.Stream, cfg.MaxLen)
		if err != nil {
			return nil, err
		}
		logger.Info("events publisher enabled", "type", "redis", "stream", p.stream)
		return p, nil
	case "kafka":
		p, err := NewKafka(cfg.KafkaBrokers, cfg.Topic)
		if err != nil {
			return nil, err
		}
		logger.Info("events publisher enabled", "type", "kafka", "brokers", cfg.KafkaBrokers, "topic", p.w.Topic)
		return p, nil
	}
	return nil, fmt.Errorf("unsupported events type %q", cfg.Type)
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }

// Memory keeps published events in order.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(_ context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types lists the recorded event types in order.
func (m *Memory) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func (m *Memory) Close() error { return nil }
