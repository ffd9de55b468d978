// Package redpanda carries analysis jobs between the API and the worker over
// a Redpanda/Kafka topic. Producing is transactional so a job is enqueued
// exactly once; consumption redelivers with a bounded dispatch budget.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// TopicAnalyze is the topic analysis jobs travel on.
const TopicAnalyze = "analysis-jobs"

// Record headers carrying dispatch bookkeeping across redeliveries.
const (
	headerJobID     = "job_id"
	headerAttempt   = "attempt"
	headerNotBefore = "not_before"
)

// Producer wraps a transactional Kafka producer and implements domain.Queue.
type Producer struct {
	client *kgo.Client
	topic  string
	// serializes transactions; kgo allows one in flight per producer
	txn chan struct{}
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	return NewProducerWithTransactionalID(brokers, topic, "closetbot-producer")
}

// NewProducerWithTransactionalID lets tests pick a unique transactional ID so
// concurrent producers do not fence each other.
func NewProducerWithTransactionalID(brokers []string, topic, transactionalID string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		topic = TopicAnalyze
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=producer.new: %w", err)
	}

	if err := ensureTopic(context.Background(), client, topic, 1, 1); err != nil {
		slog.Warn("topic creation failed, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}

	return &Producer{
		client: client,
		topic:  topic,
		txn:    make(chan struct{}, 1),
	}, nil
}

// EnqueueAnalyze enqueues one job payload. Keyed by job ID so redeliveries of
// the same job stay ordered.
func (p *Producer) EnqueueAnalyze(ctx context.Context, payload domain.AnalyzeTaskPayload) (string, error) {
	return p.enqueue(ctx, payload, 1, time.Time{})
}

// enqueueRetry re-produces a job for a later dispatch attempt.
func (p *Producer) enqueueRetry(ctx context.Context, payload domain.AnalyzeTaskPayload, attempt int, notBefore time.Time) error {
	_, err := p.enqueue(ctx, payload, attempt, notBefore)
	return err
}

func (p *Producer) enqueue(ctx context.Context, payload domain.AnalyzeTaskPayload, attempt int, notBefore time.Time) (string, error) {
	select {
	case p.txn <- struct{}{}:
		defer func() { <-p.txn }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=producer.enqueue: marshal payload: %w", err)
	}

	headers := []kgo.RecordHeader{
		{Key: headerJobID, Value: []byte(payload.JobID)},
		{Key: headerAttempt, Value: []byte(strconv.Itoa(attempt))},
	}
	if !notBefore.IsZero() {
		headers = append(headers, kgo.RecordHeader{
			Key: headerNotBefore, Value: []byte(strconv.FormatInt(notBefore.Unix(), 10)),
		})
	}
	record := &kgo.Record{
		Topic:   p.topic,
		Key:     []byte(payload.JobID),
		Value:   b,
		Headers: headers,
	}

	if err := p.client.BeginTransaction(); err != nil {
		return "", fmt.Errorf("op=producer.enqueue: begin transaction: %w", err)
	}
	e := kgo.AbortingFirstErrPromise(p.client)
	p.client.Produce(ctx, record, e.Promise())
	if err := e.Err(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return "", fmt.Errorf("op=producer.enqueue: produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return "", fmt.Errorf("op=producer.enqueue: commit transaction: %w", err)
	}

	slog.Info("analysis job enqueued",
		slog.String("job_id", payload.JobID),
		slog.String("topic", p.topic),
		slog.Int("attempt", attempt))
	return payload.JobID, nil
}

// Close closes the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
