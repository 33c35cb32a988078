package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/crm-dispatch/internal/logging"
	"github.com/unclebandit/crm-dispatch/internal/metrics"
)

// AMQPQueue publishes to and consumes from durable RabbitMQ queues named
// after the topic. A message whose handler fails is requeued once and then
// dropped.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu       sync.Mutex // amqp.Channel is not safe for concurrent publishes
	declared map[string]bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func DialAMQP(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set rabbitmq prefetch: %w", err)
	}
	return &AMQPQueue{
		conn:     conn,
		ch:       ch,
		declared: make(map[string]bool),
		stop:     make(chan struct{}),
	}, nil
}

// declare must be called with q.mu held.
func (q *AMQPQueue) declare(topic string) error {
	if q.declared[topic] {
		return nil
	}
	_, err := q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.declare(topic); err != nil {
		return err
	}
	err := q.ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		metrics.RecordQueue(topic, "publish_failed")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.RecordQueue(topic, "published")
	return nil
}

// Subscribe starts a consumer goroutine with manual acks.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	if err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return err
	}
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", topic, err)
	}

	q.wg.Add(1)
	go q.consume(topic, msgs, handler)
	return nil
}

func (q *AMQPQueue) consume(topic string, msgs <-chan amqp.Delivery, handler Handler) {
	defer q.wg.Done()
	log := logging.WithComponent("amqp").With().Str("topic", topic).Logger()

	for {
		select {
		case <-q.stop:
			return
		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("delivery channel closed")
				return
			}
			if err := handler(context.Background(), d.Body); err != nil {
				metrics.RecordQueue(topic, "handler_failed")
				requeue := !d.Redelivered
				log.Warn().Err(err).Bool("requeue", requeue).Msg("handler failed")
				if !requeue {
					metrics.RecordQueue(topic, "dropped")
				}
				_ = d.Nack(false, requeue)
				continue
			}
			metrics.RecordQueue(topic, "handled")
			_ = d.Ack(false)
		}
	}
}

// Close stops consumers and closes the connection.
func (q *AMQPQueue) Close() error {
	close(q.stop)
	q.wg.Wait()
	q.ch.Close()
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
