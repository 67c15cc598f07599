package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"kintai/internal/batch"
)

// JobRunner is what the consumer drives; satisfied by batch.Runner.
type JobRunner interface {
	Run(ctx context.Context, job batch.Job) (*batch.Result, error)
}

// Deduper filters redelivered triggers by idempotency key.
type Deduper interface {
	// TryAcquire claims a key for the TTL; false means someone already
	// processed (or is processing) this job.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Consumer reads recompute triggers from Kafka and drives the batch runner.
// One consumer group across worker replicas partitions companies between
// them; ordering per (company, period) holds because the publisher keys
// records by idempotency key.
type Consumer struct {
	client *kgo.Client
	runner JobRunner
	dedupe Deduper
	logger *slog.Logger

	dedupeTTL time.Duration
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets a logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = logger }
}

// WithDeduper enables idempotency-key filtering.
func WithDeduper(d Deduper, ttl time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.dedupe = d
		c.dedupeTTL = ttl
	}
}

// NewConsumer joins the consumer group and ensures the topic exists.
func NewConsumer(brokers []string, topic, group string, runner JobRunner, opts ...ConsumerOption) (*Consumer, error) {
	if runner == nil {
		return nil, fmt.Errorf("job runner is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	if err := ensureTopic(client, topic); err != nil {
		client.Close()
		return nil, err
	}

	c := &Consumer{client: client, runner: runner, dedupeTTL: 24 * time.Hour}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func ensureTopic(client *kgo.Client, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Run polls until the context ends. A malformed or failed job logs and moves
// on: poison messages must not wedge every company behind them.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if c.logger != nil {
				c.logger.ErrorContext(ctx, "kafka fetch error",
					"topic", topic, "partition", partition, "error", err)
			}
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handle(ctx, record)
		})
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	var msg RecomputeMessage
	if err := json.Unmarshal(record.Value, &msg); err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "malformed recompute message", "error", err)
		}
		return
	}

	if c.dedupe != nil {
		acquired, err := c.dedupe.TryAcquire(ctx, msg.IdempotencyKey(), c.dedupeTTL)
		if err != nil {
			if c.logger != nil {
				c.logger.WarnContext(ctx, "dedupe check failed, processing anyway", "error", err)
			}
		} else if !acquired {
			if c.logger != nil {
				c.logger.InfoContext(ctx, "duplicate trigger skipped",
					"key", msg.IdempotencyKey())
			}
			return
		}
	}

	job, err := msg.ToJob()
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "invalid recompute message", "error", err)
		}
		return
	}

	result, err := c.runner.Run(ctx, job)
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "recompute run failed",
				"company_id", msg.CompanyID,
				"period", msg.PeriodKey,
				"error", err,
			)
		}
		return
	}
	if c.logger != nil {
		c.logger.InfoContext(ctx, "recompute run complete",
			"company_id", msg.CompanyID,
			"period", msg.PeriodKey,
			"findings", result.Findings,
			"failed", len(result.Failed),
		)
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
