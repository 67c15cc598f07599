package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"kintai/internal/batch"
)

// Publisher produces recompute triggers. Callers are upstream schedulers and
// the reopen flow, both outside this module; the publisher is also what tests
// and operator tooling use to enqueue a run by hand.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets a logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher connects a producer to the brokers.
func NewPublisher(brokers []string, topic string, opts ...PublisherOption) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	p := &Publisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish produces one recompute trigger, keyed by its idempotency key so all
// triggers for a (company, period) land on one partition in order.
func (p *Publisher) Publish(ctx context.Context, job batch.Job) error {
	msg := FromJob(job)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal recompute message: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.IdempotencyKey()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce recompute message: %w", err)
	}

	if p.logger != nil {
		p.logger.InfoContext(ctx, "recompute trigger published",
			"company_id", msg.CompanyID,
			"period", msg.PeriodKey,
			"employees", len(msg.EmployeeIDs),
		)
	}
	return nil
}

// Close flushes and releases the producer.
func (p *Publisher) Close() {
	p.client.Close()
}
