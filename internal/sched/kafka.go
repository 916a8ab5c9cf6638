package sched

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/strato-io/strato/internal/logging"
	"github.com/strato-io/strato/internal/metrics"
)

// DefaultCallTimeout bounds a synchronous scheduler call when the
// config does not set one.
const DefaultCallTimeout = 30 * time.Second

// KafkaConfig configures the Kafka-backed scheduler bus.
type KafkaConfig struct {
	Brokers []string
	// Topic is the scheduler request topic.
	Topic string
	// ReplyTopicPrefix names the per-process reply topic. Each bus
	// instance appends a random suffix so replies never cross
	// processes.
	ReplyTopicPrefix string
	CallTimeout      time.Duration
}

// KafkaBus implements Bus over two Kafka clients: a producer for the
// scheduler request topic and a consumer on a private reply topic.
// Replies are matched to in-flight calls by correlation ID.
type KafkaBus struct {
	producer    *kgo.Client
	consumer    *kgo.Client
	topic       string
	replyTopic  string
	callTimeout time.Duration
	logger      *logging.Logger
	metrics     *metrics.SchedMetrics

	mu      sync.Mutex
	pending map[string]chan reply
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaBus connects to the brokers and starts the reply consumer.
func NewKafkaBus(cfg KafkaConfig, logger *logging.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("sched: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("sched: no request topic configured")
	}
	if cfg.ReplyTopicPrefix == "" {
		cfg.ReplyTopicPrefix = cfg.Topic + "-reply"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	replyTopic := fmt.Sprintf("%s-%s", cfg.ReplyTopicPrefix, uuid.NewString())

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DisableIdempotentWrite(),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("sched: creating producer: %w", err)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(replyTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("sched: creating reply consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &KafkaBus{
		producer:    producer,
		consumer:    consumer,
		topic:       cfg.Topic,
		replyTopic:  replyTopic,
		callTimeout: cfg.CallTimeout,
		logger:      logger.With(map[string]any{"component": "sched-bus"}),
		pending:     make(map[string]chan reply),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go b.consumeReplies(ctx)

	b.logger.Infof("scheduler bus connected", map[string]any{
		"topic":      cfg.Topic,
		"replyTopic": replyTopic,
	})
	return b, nil
}

// WithMetrics attaches metrics and returns the receiver.
func (b *KafkaBus) WithMetrics(m *metrics.SchedMetrics) *KafkaBus {
	b.metrics = m
	return b
}

// Call implements Bus.
func (b *KafkaBus) Call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	start := time.Now()
	result, err := b.call(ctx, method, args)
	if b.metrics != nil {
		status := metrics.SchedSuccess
		switch {
		case err == nil:
		case err == ErrCallTimeout:
			status = metrics.SchedTimeout
		default:
			status = metrics.SchedFailure
		}
		b.metrics.CallLatency.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
	}
	return result, err
}

func (b *KafkaBus) call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	correlation := uuid.NewString()
	ch := make(chan reply, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.pending[correlation] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, correlation)
		b.mu.Unlock()
	}()

	if err := b.publish(ctx, envelope{
		Method:        method,
		Args:          args,
		ReplyTo:       b.replyTopic,
		CorrelationID: correlation,
	}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(b.callTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.Error != "" {
			return nil, &RemoteError{Method: method, Message: r.Error}
		}
		return r.Result, nil
	case <-timer.C:
		return nil, ErrCallTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrBusClosed
	}
}

// Cast implements Bus.
func (b *KafkaBus) Cast(ctx context.Context, method string, args map[string]any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	err := b.publish(ctx, envelope{Method: method, Args: args})
	if b.metrics != nil {
		status := metrics.SchedSuccess
		if err != nil {
			status = metrics.SchedFailure
		}
		b.metrics.CastsTotal.WithLabelValues(method, status).Inc()
	}
	return err
}

func (b *KafkaBus) publish(ctx context.Context, env envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("sched: encoding %s request: %w", env.Method, err)
	}
	record := &kgo.Record{
		Topic: b.topic,
		Key:   []byte(env.Method),
		Value: value,
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("sched: publishing %s request: %w", env.Method, err)
	}
	return nil
}

func (b *KafkaBus) consumeReplies(ctx context.Context) {
	defer close(b.done)
	for {
		fetches := b.consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			b.logger.Warnf("reply fetch error", map[string]any{
				"topic":     topic,
				"partition": partition,
				"error":     err.Error(),
			})
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			var r reply
			if err := json.Unmarshal(rec.Value, &r); err != nil {
				b.logger.Warnf("dropping undecodable reply", map[string]any{"error": err.Error()})
				return
			}
			b.deliver(r)
		})
	}
}

// deliver hands a reply to the call waiting on its correlation ID.
// Replies with no waiter, for example after a call timed out, are
// dropped.
func (b *KafkaBus) deliver(r reply) {
	b.mu.Lock()
	ch, ok := b.pending[r.CorrelationID]
	b.mu.Unlock()
	if !ok {
		b.logger.Debugf("dropping unmatched reply", map[string]any{
			"correlationId": r.CorrelationID,
		})
		return
	}
	select {
	case ch <- r:
	default:
	}
}

// Close stops the reply consumer and fails any in-flight calls.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.consumer.Close()
	<-b.done
	b.producer.Close()
	return nil
}

var _ Bus = (*KafkaBus)(nil)
