package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const maxRetryDelay = 30 * time.Second

// deadLetterQueue holds the rejected and nacked messages of queue.
func deadLetterQueue(queue string) string {
	return queue + ".dead"
}

func declareJobQueue(channel *amqp.Channel, queue string) error {
	dead := deadLetterQueue(queue)
	if _, err := channel.QueueDeclare(dead, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare rabbitmq queue %s: %w", dead, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dead,
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare rabbitmq queue %s: %w", queue, err)
	}
	return nil
}

func dial(url string) (*amqp.Connection, error) {
	delay := RetryDelay
	var err error
	for attempt := 1; attempt <= MaxConnectRetry; attempt++ {
		var conn *amqp.Connection
		if conn, err = amqp.Dial(url); err == nil {
			return conn, nil
		}
		slog.Warn("failed to connect to rabbitmq", "attempt", attempt, "max_attempts", MaxConnectRetry, "error", err)
		if attempt < MaxConnectRetry {
			time.Sleep(delay)
			delay = min(2*delay, maxRetryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", MaxConnectRetry, err)
}

// session is one connection with one channel on which the job queue is
// declared.
type session struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

type sessionOptions struct {
	prefetch int
	confirms bool
}

func openSession(url string, opts sessionOptions) (*session, error) {
	conn, err := dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	s := &session{conn: conn, channel: channel}

	if opts.prefetch > 0 {
		if err := channel.Qos(opts.prefetch, 0, false); err != nil {
			s.close()
			return nil, fmt.Errorf("failed to set rabbitmq prefetch: %w", err)
		}
	}
	if opts.confirms {
		if err := channel.Confirm(false); err != nil {
			s.close()
			return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
		}
	}
	if err := declareJobQueue(channel, ExtractJobQueue); err != nil {
		s.close()
		return nil, err
	}

	slog.Info("rabbitmq session opened", "prefetch", opts.prefetch, "confirms", opts.confirms)
	return s, nil
}

func (s *session) close() {
	if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		slog.Error("error closing rabbitmq connection", "error", err)
	}
}

// RabbitMQPublisher publishes persistent job messages and waits for the broker
// to confirm each one, so a job is only reported as queued once RabbitMQ owns it.
type RabbitMQPublisher struct {
	url string

	mu      sync.RWMutex
	session *session

	done      chan struct{}
	closeOnce sync.Once
}

func NewRabbitMQPublisher(url string) (*RabbitMQPublisher, error) {
	s, err := openSession(url, sessionOptions{confirms: true})
	if err != nil {
		return nil, err
	}

	p := &RabbitMQPublisher{url: url, session: s, done: make(chan struct{})}
	go p.watch(s)
	return p, nil
}

// watch replaces the session whenever the broker drops it. Publishers block on
// the lock while a new session is opened.
func (p *RabbitMQPublisher) watch(s *session) {
	for {
		amqpErr, ok := <-s.channel.NotifyClose(make(chan *amqp.Error, 1))
		if !ok {
			return
		}
		select {
		case <-p.done:
			return
		default:
		}

		slog.Warn("rabbitmq publisher lost its channel, reconnecting", "error", amqpErr)

		p.mu.Lock()
		s.close()
		s = p.reconnect()
		p.session = s
		p.mu.Unlock()

		if s == nil {
			return
		}
		slog.Info("rabbitmq publisher reconnected")
	}
}

func (p *RabbitMQPublisher) reconnect() *session {
	for {
		s, err := openSession(p.url, sessionOptions{confirms: true})
		if err == nil {
			return s
		}
		slog.Error("rabbitmq publisher reconnect failed", "error", err)

		select {
		case <-p.done:
			return nil
		case <-time.After(maxRetryDelay):
		}
	}
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue, messageId string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", queue, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.session == nil || p.session.channel.IsClosed() {
		return fmt.Errorf("rabbitmq publisher is not connected")
	}

	confirm, err := p.session.channel.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageId,
		Type:         queue,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		slog.Error("failed to publish message", "queue", queue, "message_id", messageId, "error", err)
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("no broker confirmation for %s message %s: %w", queue, messageId, err)
	}
	if !acked {
		return fmt.Errorf("broker refused %s message %s", queue, messageId)
	}
	return nil
}

func (p *RabbitMQPublisher) PublishExtractJob(ctx context.Context, payload ExtractJobPayload) error {
	return p.publish(ctx, ExtractJobQueue, payload.JobId.String(), payload)
}

func (p *RabbitMQPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.session != nil {
			p.session.close()
			p.session = nil
		}
	})
}

type RabbitMQTask struct {
	d amqp.Delivery
}

// Type is the queue the message was published for. Messages published without
// a type fall back to their routing key.
func (t *RabbitMQTask) Type() string {
	if t.d.Type != "" {
		return t.d.Type
	}
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

// Nack moves the message to the dead letter queue without requeueing it.
func (t *RabbitMQTask) Nack() error {
	return t.d.Nack(false, false)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

// RabbitMQReceiver hands out one job at a time. The broker redelivers any job
// that was not acknowledged when the connection went away.
type RabbitMQReceiver struct {
	url   string
	tasks chan Task

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRabbitMQReceiver(url string) (*RabbitMQReceiver, error) {
	s, deliveries, err := openConsumer(url)
	if err != nil {
		return nil, err
	}

	r := &RabbitMQReceiver{
		url:   url,
		tasks: make(chan Task),
		stop:  make(chan struct{}),
	}
	go r.run(s, deliveries)
	return r, nil
}

func openConsumer(url string) (*session, <-chan amqp.Delivery, error) {
	s, err := openSession(url, sessionOptions{prefetch: 1})
	if err != nil {
		return nil, nil, err
	}

	deliveries, err := s.channel.Consume(ExtractJobQueue, "", false, false, false, false, nil)
	if err != nil {
		s.close()
		return nil, nil, fmt.Errorf("failed to consume from rabbitmq queue %s: %w", ExtractJobQueue, err)
	}
	return s, deliveries, nil
}

// run forwards deliveries until Close, opening a new session whenever the
// broker ends the current one. The tasks channel is closed when run returns.
func (r *RabbitMQReceiver) run(s *session, deliveries <-chan amqp.Delivery) {
	defer close(r.tasks)

	for {
		stopped := r.forward(deliveries)
		s.close()
		if stopped {
			slog.Info("rabbitmq consumer stopped")
			return
		}

		slog.Warn("rabbitmq deliveries ended, reconnecting consumer")
		var ok bool
		if s, deliveries, ok = r.reconnect(); !ok {
			return
		}
		slog.Info("rabbitmq consumer reconnected")
	}
}

// forward reports true when the receiver was closed and false when the
// delivery channel ended.
func (r *RabbitMQReceiver) forward(deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-r.stop:
			return true
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			select {
			case r.tasks <- &RabbitMQTask{d: d}:
			case <-r.stop:
				return true
			}
		}
	}
}

func (r *RabbitMQReceiver) reconnect() (*session, <-chan amqp.Delivery, bool) {
	for {
		s, deliveries, err := openConsumer(r.url)
		if err == nil {
			return s, deliveries, true
		}
		slog.Error("rabbitmq consumer reconnect failed", "error", err)

		select {
		case <-r.stop:
			return nil, nil, false
		case <-time.After(maxRetryDelay):
		}
	}
}

func (r *RabbitMQReceiver) Tasks() <-chan Task {
	return r.tasks
}

// Close stops consuming. Tasks is closed shortly after; unacknowledged jobs go
// back to the queue.
func (r *RabbitMQReceiver) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
