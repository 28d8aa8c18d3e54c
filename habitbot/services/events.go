package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/ellavondegurechaff/habitbot/habitbot/progress"
)

const (
	RoutingKeyCompleted = "habit.completed"
	RoutingKeyLevelUp   = "habit.level_up"
	RoutingKeyBadge     = "habit.badge_awarded"
)

const (
	confirmTimeout    = 5 * time.Second
	confirmBuffer     = 64
	redialMinInterval = time.Second
	redialMaxInterval = 30 * time.Second
)

var (
	ErrPublisherClosed      = errors.New("event publisher closed")
	ErrPublisherUnavailable = errors.New("event publisher reconnecting")
)

// confirmTracker pairs broker confirmations with the publish that is waiting
// for them. A confirm for a tag nobody waits on anymore is dropped.
type confirmTracker struct {
	mu      sync.Mutex
	pending map[uint64]chan bool
}

func newConfirmTracker() *confirmTracker {
	return &confirmTracker{pending: make(map[uint64]chan bool)}
}

func (t *confirmTracker) expect(tag uint64) <-chan bool {
	ch := make(chan bool, 1)
	t.mu.Lock()
	t.pending[tag] = ch
	t.mu.Unlock()
	return ch
}

func (t *confirmTracker) forget(tag uint64) {
	t.mu.Lock()
	delete(t.pending, tag)
	t.mu.Unlock()
}

// resolve reports whether a waiter was found for the confirmation.
func (t *confirmTracker) resolve(c amqp.Confirmation) bool {
	t.mu.Lock()
	ch, ok := t.pending[c.DeliveryTag]
	delete(t.pending, c.DeliveryTag)
	t.mu.Unlock()
	if ok {
		ch <- c.Ack
	}
	return ok
}

// run resolves confirmations until the channel closes, then fails every
// waiter still pending.
func (t *confirmTracker) run(confirms <-chan amqp.Confirmation) {
	for c := range confirms {
		if !t.resolve(c) {
			slog.Debug("Dropped late publisher confirm",
				slog.String("type", "sys"),
				slog.Uint64("tag", c.DeliveryTag))
		}
	}
	t.mu.Lock()
	for tag, ch := range t.pending {
		close(ch)
		delete(t.pending, tag)
	}
	t.mu.Unlock()
}

type amqpSession struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms *confirmTracker
}

func dialSession(url, exchange string) (*amqpSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	if err = ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	s := &amqpSession{conn: conn, channel: ch, confirms: newConfirmTracker()}
	go s.confirms.run(ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer)))
	return s, nil
}

// AMQPPublisher fans completion events out to a topic exchange. Delivery is
// best effort: the completion has already committed when an event is sent.
// A dropped connection is redialled in the background; events published
// meanwhile fail with ErrPublisherUnavailable.
type AMQPPublisher struct {
	url      string
	exchange string
	timeout  time.Duration
	done     chan struct{}

	mu      sync.Mutex
	session *amqpSession
	closed  bool
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	s, err := dialSession(url, exchange)
	if err != nil {
		return nil, err
	}
	p := &AMQPPublisher{
		url:      url,
		exchange: exchange,
		timeout:  confirmTimeout,
		done:     make(chan struct{}),
		session:  s,
	}
	go p.watch(s)
	return p, nil
}

// watch waits for s to drop and replaces it until the publisher is closed.
func (p *AMQPPublisher) watch(s *amqpSession) {
	for {
		connClosed := s.conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClosed := s.channel.NotifyClose(make(chan *amqp.Error, 1))
		var err *amqp.Error
		select {
		case err = <-connClosed:
		case err = <-chanClosed:
			s.conn.Close()
		case <-p.done:
			return
		}
		if err != nil {
			slog.Error("AMQP connection closed",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		p.session = nil
		p.mu.Unlock()

		next, ok := p.redial()
		if !ok {
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			next.conn.Close()
			return
		}
		p.session = next
		p.mu.Unlock()
		s = next

		slog.Info("AMQP connection restored",
			slog.String("type", "sys"),
			slog.String("exchange", p.exchange))
	}
}

func (p *AMQPPublisher) redial() (*amqpSession, bool) {
	wait := redialMinInterval
	for {
		select {
		case <-p.done:
			return nil, false
		case <-time.After(wait):
		}

		s, err := dialSession(p.url, p.exchange)
		if err == nil {
			return s, true
		}
		slog.Warn("AMQP redial failed",
			slog.String("type", "sys"),
			slog.Duration("retry_in", wait),
			slog.Any("error", err))
		wait = min(wait*2, redialMaxInterval)
	}
}

// PublishCompletion sends the completion and, when they apply, separate
// level-up and badge events.
func (p *AMQPPublisher) PublishCompletion(ctx context.Context, event progress.CompletionEvent) error {
	if err := p.publish(ctx, RoutingKeyCompleted, event); err != nil {
		return err
	}
	if event.LevelUp {
		if err := p.publish(ctx, RoutingKeyLevelUp, event); err != nil {
			return err
		}
	}
	if len(event.Badges) > 0 {
		return p.publish(ctx, RoutingKeyBadge, event)
	}
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, event progress.CompletionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	// The tag is read and the message sent under one lock so tags match
	// the order the broker sees.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	s := p.session
	if s == nil {
		p.mu.Unlock()
		return ErrPublisherUnavailable
	}
	tag := s.channel.GetNextPublishSeqNo()
	acked := s.confirms.expect(tag)
	err = s.channel.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ActionID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		s.confirms.forget(tag)
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case ack, ok := <-acked:
		if !ok {
			return ErrPublisherUnavailable
		}
		if !ack {
			return fmt.Errorf("broker rejected %s event %s", key, event.ActionID)
		}
		return nil
	case <-ctx.Done():
		s.confirms.forget(tag)
		return ctx.Err()
	case <-timer.C:
		s.confirms.forget(tag)
		return fmt.Errorf("timed out waiting for %s confirmation", key)
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	s := p.session
	p.session = nil
	p.mu.Unlock()

	close(p.done)
	if s == nil {
		return nil
	}
	return s.conn.Close()
}
