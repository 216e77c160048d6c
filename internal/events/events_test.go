package events

import (
	"context"
	"testing"
)

func TestOpenSelectsPublisher(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, "events.Noop"},
		{Config{Type: "memory"}, "*events.Memory"},
		{Config{Type: "redis", RedisURL: "redis://localhost:6379/1"}, "*events.RedisPublisher"},
		{Config{Type: "kafka", KafkaBrokers: []string{"localhost:9092"}}, "*events.KafkaPublisher"},
	}
	for _, c := range cases {
		p, err := Open(c.cfg, nil)
		if err != nil {
			t.Fatalf("Open(%+v): %v", c.cfg, err)
		}
		if got := typeName(p); got != c.want {
			t.Fatalf("Open(%+v) = %s, want %s", c.cfg, got, c.want)
		}
		_ = p.Close()
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Type: "amqp"},
		{Type: "redis", RedisURL: "http://not-redis"},
		{Type: "kafka"},
	} {
		if _, err := Open(cfg, nil); err == nil {
			t.Fatalf("Open(%+v) should fail", cfg)
		}
	}
}

func TestMemoryRecordsInOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Publish(ctx, New(UserRegistered, map[string]any{"username": "alice"}))
	_ = m.Publish(ctx, New(ReviewAdded, nil))
	types := m.Types()
	if len(types) != 2 || types[0] != UserRegistered || types[1] != ReviewAdded {
		t.Fatalf("types = %v", types)
	}
	if m.Events()[0].Attrs["username"] != "alice" {
		t.Fatalf("attrs not kept")
	}
}

func typeName(p Publisher) string {
	switch p.(type) {
	case Noop:
		return "events.Noop"
	case *Memory:
		return "*events.Memory"
	case *RedisPublisher:
		return "*events.RedisPublisher"
	case *KafkaPublisher:
		return "*events.KafkaPublisher"
	}
	return "unknown"
}
