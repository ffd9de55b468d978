package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// Consumer polls the analysis topic and drives the Handler. Jobs process one
// at a time per consumer; the discovery budget, not CPU, is the bottleneck.
type Consumer struct {
	client   *kgo.Client
	producer *Producer
	jobs     domain.JobRepository
	handler  *Handler

	topic   string
	groupID string

	// dispatch budget per job, enforced across redeliveries
	maxDispatches int
	retryCooldown time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewConsumer(
	brokers []string,
	groupID, topic string,
	producer *Producer,
	jobs domain.JobRepository,
	handler *Handler,
	maxDispatches int,
	retryCooldown time.Duration,
) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("missing required group ID")
	}
	if topic == "" {
		topic = TopicAnalyze
	}
	if maxDispatches <= 0 {
		maxDispatches = 3
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(
		kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider())),
	))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.AutoCommitMarks(),
		kgo.AutoCommitInterval(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("op=consumer.new: %w", err)
	}

	return &Consumer{
		client:        client,
		producer:      producer,
		jobs:          jobs,
		handler:       handler,
		topic:         topic,
		groupID:       groupID,
		maxDispatches: maxDispatches,
		retryCooldown: retryCooldown,
		sleep:         sleepCtx,
		now:           time.Now,
	}, nil
}

// Start polls until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group_id", c.groupID))

	for {
		select {
		case <-ctx.Done():
			slog.Info("consumer shutting down")
			return ctx.Err()
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return fmt.Errorf("op=consumer.start: client closed")
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if fe.Err == context.Canceled {
					return ctx.Err()
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic),
					slog.Int("partition", int(fe.Partition)),
					slog.Any("error", fe.Err))
			}
			if err := c.sleep(ctx, 2*time.Second); err != nil {
				return err
			}
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			c.processRecord(ctx, record)
			c.client.MarkCommitRecords(record)
		})
	}
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) {
	var payload domain.AnalyzeTaskPayload
	if err := json.Unmarshal(record.Value, &payload); err != nil {
		slog.Error("dropping malformed record",
			slog.Int64("offset", record.Offset),
			slog.Any("error", err))
		return
	}

	attempt := headerInt(record, headerAttempt, 1)

	// redelivered records carry their cooldown deadline
	if due := headerUnix(record, headerNotBefore); !due.IsZero() {
		if wait := due.Sub(c.now()); wait > 0 {
			slog.Info("waiting for dispatch cooldown",
				slog.String("job_id", payload.JobID),
				slog.Duration("wait", wait))
			if err := c.sleep(ctx, wait); err != nil {
				return
			}
		}
	}

	slog.Info("dispatching analysis job",
		slog.String("job_id", payload.JobID),
		slog.Int("attempt", attempt))

	err := c.handler.HandleAnalyze(ctx, payload)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	if attempt >= c.maxDispatches {
		slog.Error("dispatch attempts exhausted",
			slog.String("job_id", payload.JobID),
			slog.Int("attempts", attempt),
			slog.Any("error", err))
		if ferr := c.jobs.MarkFailed(ctx, payload.JobID,
			fmt.Sprintf("failed after %d dispatch attempts: %v", attempt, err)); ferr != nil {
			slog.Error("failed to mark exhausted job failed",
				slog.String("job_id", payload.JobID), slog.Any("error", ferr))
		}
		return
	}

	notBefore := c.now().Add(c.retryCooldown)
	slog.Warn("job dispatch failed, scheduling retry",
		slog.String("job_id", payload.JobID),
		slog.Int("attempt", attempt),
		slog.Time("not_before", notBefore),
		slog.Any("error", err))
	if rerr := c.producer.enqueueRetry(ctx, payload, attempt+1, notBefore); rerr != nil {
		slog.Error("failed to schedule retry, failing job",
			slog.String("job_id", payload.JobID), slog.Any("error", rerr))
		if ferr := c.jobs.MarkFailed(ctx, payload.JobID,
			fmt.Sprintf("dispatch retry could not be scheduled: %v", err)); ferr != nil {
			slog.Error("failed to mark job failed",
				slog.String("job_id", payload.JobID), slog.Any("error", ferr))
		}
	}
}

// Close closes the consumer client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

func headerInt(record *kgo.Record, key string, def int) int {
	for _, h := range record.Headers {
		if h.Key == key {
			if v, err := strconv.Atoi(string(h.Value)); err == nil {
				return v
			}
		}
	}
	return def
}

func headerUnix(record *kgo.Record, key string) time.Time {
	for _, h := range record.Headers {
		if h.Key == key {
			if v, err := strconv.ParseInt(string(h.Value), 10, 64); err == nil {
				return time.Unix(v, 0)
			}
		}
	}
	return time.Time{}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
