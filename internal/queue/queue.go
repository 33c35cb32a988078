package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/metrics"
)

// Handler processes one message. Returning an error asks for a retry.
type Handler func(ctx context.Context, payload []byte) error

// Queue carries delivery outcome events from the dispatcher to whatever
// records them.
type Queue interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

var ErrNoSubscribers = errors.New("no subscribers for topic")

// InMemoryQueue delivers messages to in-process subscribers with retry.
// Used when no broker is configured.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	closed   bool

	MaxRetries   int
	RetryBackoff time.Duration
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers:     make(map[string][]Handler),
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// jobPayload wraps a message payload with retry info
type jobPayload struct {
	topic      string
	payload    []byte
	retryCount int
}

// Publish hands the payload to every subscriber of topic asynchronously.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("queue closed")
	}
	handlers := q.handlers[topic]
	if len(handlers) == 0 {
		q.mu.Unlock()
		return fmt.Errorf("%w %s", ErrNoSubscribers, topic)
	}
	q.wg.Add(len(handlers))
	q.mu.Unlock()

	for _, h := range handlers {
		go q.processJob(h, jobPayload{topic: topic, payload: payload})
	}
	return nil
}

// processJob handles retries with linear backoff.
func (q *InMemoryQueue) processJob(handler Handler, job jobPayload) {
	defer q.wg.Done()
	log := logging.WithComponent("queue")

	for {
		err := handler(context.Background(), job.payload)
		if err == nil {
			metrics.RecordQueue(job.topic, "handled")
			return
		}

		job.retryCount++
		metrics.RecordQueue(job.topic, "handler_failed")
		if job.retryCount > q.MaxRetries {
			log.Error().Err(err).Str("topic", job.topic).Int("attempts", job.retryCount).
				Msg("message dropped after retries")
			metrics.RecordQueue(job.topic, "dropped")
			return
		}

		log.Warn().Err(err).Str("topic", job.topic).Int("attempt", job.retryCount).
			Msg("handler failed, retrying")
		time.Sleep(time.Duration(job.retryCount) * q.RetryBackoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops accepting messages and waits for in-flight handlers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
