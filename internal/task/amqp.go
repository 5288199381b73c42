package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	exchangeName      = "generation_exchange"
	queueName         = "generation_queue"
	routingKey        = "generation.task"
	retryExchangeName = "generation_retry_exchange"
	retryQueueName    = "generation_queue.retry"

	// Rejected deliveries dead-letter into the retry queue, sit out the TTL
	// and flow back to the work queue, up to consumerMaxAttempts in total.
	retryDelay          = 30 * time.Second
	consumerMaxAttempts = 3
)

// DialAMQP connects to the broker, retrying with exponential backoff so the
// process survives the broker starting up after it.
func DialAMQP(ctx context.Context, url string, logger zerolog.Logger) (*amqp.Connection, error) {
	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp dial failed, retrying")
			return nil, err
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(5))
	if err != nil {
		return nil, fmt.Errorf("connect to amqp: %w", err)
	}
	logger.Info().Msg("connected to amqp broker")
	return conn, nil
}

// AMQPExecutor publishes tasks to the generation exchange for the worker
// fleet to consume.
type AMQPExecutor struct {
	ch     *amqp.Channel
	logger zerolog.Logger
}

func NewAMQPExecutor(conn *amqp.Connection, logger zerolog.Logger) (*AMQPExecutor, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		return nil, err
	}
	return &AMQPExecutor{ch: ch, logger: logger}, nil
}

// Submit publishes the task as a persistent JSON message.
func (e *AMQPExecutor) Submit(ctx context.Context, t Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	err = e.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    t.ID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	e.logger.Info().Str("kind", string(t.Kind)).Str("id", t.ID).Msg("task published")
	return nil
}

func (e *AMQPExecutor) Close() error {
	return e.ch.Close()
}

// Consumer pulls tasks off the generation queue and feeds them to a worker
// pool. A handler error nacks the message into the retry queue; after
// consumerMaxAttempts deliveries the message is dropped.
type Consumer struct {
	conn       *amqp.Connection
	handler    Handler
	numWorkers int
	logger     zerolog.Logger
}

func NewConsumer(conn *amqp.Connection, handler Handler, numWorkers int, logger zerolog.Logger) *Consumer {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Consumer{conn: conn, handler: handler, numWorkers: numWorkers, logger: logger}
}

// Consume blocks until the context is cancelled or the delivery channel
// closes.
func (c *Consumer) Consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.numWorkers, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < c.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				c.handle(ctx, msg)
			}
		}()
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}
			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	var t Task
	if err := json.Unmarshal(msg.Body, &t); err != nil {
		// A retry cannot fix a malformed body; drop it outright.
		c.logger.Error().Err(err).Msg("malformed task message, dropping")
		if err := msg.Ack(false); err != nil {
			c.logger.Error().Err(err).Msg("ack failed")
		}
		return
	}

	if err := c.handler(ctx, t); err != nil {
		attempt := deliveryAttempts(msg) + 1
		if attempt >= consumerMaxAttempts {
			c.logger.Error().Err(err).Str("kind", string(t.Kind)).Str("id", t.ID).
				Int("attempts", attempt).Msg("task failed, giving up")
			if err := msg.Ack(false); err != nil {
				c.logger.Error().Err(err).Msg("ack failed")
			}
			return
		}
		c.logger.Warn().Err(err).Str("kind", string(t.Kind)).Str("id", t.ID).
			Int("attempt", attempt).Msg("task handler failed, scheduling retry")
		if err := msg.Nack(false, false); err != nil {
			c.logger.Error().Err(err).Msg("nack failed")
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error().Err(err).Msg("ack failed")
	}
}

// deliveryAttempts reads how many times the broker has already dead-lettered
// this message out of the work queue, from the x-death header.
func deliveryAttempts(msg amqp.Delivery) int {
	deaths, ok := msg.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, d := range deaths {
		death, ok := d.(amqp.Table)
		if !ok {
			continue
		}
		if q, _ := death["queue"].(string); q != queueName {
			continue
		}
		switch count := death["count"].(type) {
		case int64:
			return int(count)
		case int32:
			return int(count)
		case int:
			return count
		}
	}
	return 0
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(retryExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare retry exchange: %w", err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    retryExchangeName,
		"x-dead-letter-routing-key": routingKey,
	})
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	rq, err := ch.QueueDeclare(retryQueueName, true, false, false, false, amqp.Table{
		"x-message-ttl":             retryDelay.Milliseconds(),
		"x-dead-letter-exchange":    exchangeName,
		"x-dead-letter-routing-key": routingKey,
	})
	if err != nil {
		return fmt.Errorf("declare retry queue: %w", err)
	}
	if err := ch.QueueBind(rq.Name, routingKey, retryExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind retry queue: %w", err)
	}
	return nil
}
