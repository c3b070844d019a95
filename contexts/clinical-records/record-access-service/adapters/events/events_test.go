package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"medrecords/contexts/clinical-records/record-access-service/ports"

	"github.com/redis/go-redis/v9"
)

type topicCapture struct {
	topics []string
	events []ports.AuditEnvelope
	err    error
}

func (c *topicCapture) Publish(_ context.Context, topic string, event ports.AuditEnvelope) error {
	if c.err != nil {
		return c.err
	}
	c.topics = append(c.topics, topic)
	c.events = append(c.events, event)
	return nil
}

type sinkFunc func(context.Context, ports.AuditEnvelope) error

func (f sinkFunc) PublishAuditEvent(ctx context.Context, event ports.AuditEnvelope) error {
	return f(ctx, event)
}

func TestBusPublisherUsesDefaultTopic(t *testing.T) {
	bus := &topicCapture{}
	publisher := NewBusPublisher(bus, "", nil)

	if err := publisher.PublishAuditEvent(context.Background(), ports.AuditEnvelope{EventID: "evt-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(bus.topics) != 1 || bus.topics[0] != DefaultAuditTopic || bus.events[0].EventID != "evt-1" {
		t.Fatalf("unexpected bus traffic: %v %+v", bus.topics, bus.events)
	}
}

func TestFanoutStopsOnFirstFailure(t *testing.T) {
	var delivered []string
	record := func(name string, err error) ports.AuditEventPublisher {
		return sinkFunc(func(context.Context, ports.AuditEnvelope) error {
			delivered = append(delivered, name)
			return err
		})
	}
	fanout := Fanout{record("bus", nil), record("redis", errors.New("redis down")), record("never", nil)}

	err := fanout.PublishAuditEvent(context.Background(), ports.AuditEnvelope{EventID: "evt-1"})
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected sink error, got %v", err)
	}
	if strings.Join(delivered, ",") != "bus,redis" {
		t.Fatalf("unexpected delivery order: %v", delivered)
	}

	if err := (Fanout{}).PublishAuditEvent(context.Background(), ports.AuditEnvelope{}); err == nil {
		t.Fatalf("empty fanout must fail so the outbox row stays pending")
	}
}

func TestRedisStreamPublisherReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	publisher := NewRedisStreamPublisher(client, "", 1000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := publisher.PublishAuditEvent(ctx, ports.AuditEnvelope{EventID: "evt-1", EventType: "records.report_added"})
	if err == nil || !strings.Contains(err.Error(), DefaultAuditStream) {
		t.Fatalf("expected xadd error naming the stream, got %v", err)
	}
}
