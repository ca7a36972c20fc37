package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"gigledger/internal/core"
	"gigledger/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var (
	ErrCircuitOpen = errors.New("amqp: circuit breaker is open")
	// ErrNoEntitlementQueue is returned when consuming without a user.
	ErrNoEntitlementQueue = errors.New("amqp: entitlement queue needs a user id")
)

// Topology names the exchange and the queues bound to it. Routing keys
// equal queue names. Entitlement changes travel on one queue per user,
// see EntitlementRoutingKey.
type Topology struct {
	Exchange          string
	EventsQueue       string
	EntitlementsQueue string
	UserID            string
}

// EntitlementRoutingKey is the queue name and routing key carrying the
// entitlement changes of one user. Publishers route to it directly so the
// broker delivers each change only to that user's consumers.
func EntitlementRoutingKey(queue, userID string) string {
	return queue + "." + userID
}

func (t Topology) entitlementQueue() string {
	if t.EntitlementsQueue == "" || t.UserID == "" {
		return ""
	}
	return EntitlementRoutingKey(t.EntitlementsQueue, t.UserID)
}

type connection interface {
	IsClosed() bool
	Close() error
}

// channel is the part of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	IsClosed() bool
	Close() error
}

type dialFunc func(url string) (connection, channel, error)

func dialAMQP(url string) (connection, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return conn, ch, nil
}

type Client struct {
	url    string
	topo   Topology
	logger *log.Logger
	dial   dialFunc

	// reconnectMu serializes connect; mu guards the current pair.
	reconnectMu sync.Mutex
	mu          sync.Mutex
	conn        connection
	channel     channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

func NewClient(url string, topo Topology, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:    url,
		topo:   topo,
		logger: logger.WithComponent(log.ComponentAMQP),
		dial:   dialAMQP,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect opens a fresh connection unless the current one is healthy,
// which happens when a concurrent caller already reconnected. The replaced
// connection and channel are closed.
func (c *Client) connect() error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.mu.Lock()
	healthy := c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
	c.mu.Unlock()
	if healthy {
		return nil
	}

	conn, ch, err := c.dial(c.url)
	if err != nil {
		return err
	}
	if err := setup(ch, c.topo); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	oldConn, oldChannel := c.conn, c.channel
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	if oldChannel != nil {
		oldChannel.Close()
	}
	if oldConn != nil {
		oldConn.Close()
	}
	return nil
}

func setup(ch channel, topo Topology) error {
	err := ch.ExchangeDeclare(
		topo.Exchange, // name
		"direct",      // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{topo.EventsQueue, topo.entitlementQueue()} {
		if queue == "" {
			continue
		}
		if _, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, queue, topo.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

func (c *Client) currentChannel() channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// PublishRecordEvent announces a committed mutation on the events queue.
func (c *Client) PublishRecordEvent(ctx context.Context, ev core.RecordEvent) error {
	body, err := NewRecordEventMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.topo.EventsQueue, body); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Published record event",
		log.FieldCollection, string(ev.Collection),
		log.FieldRecordID, ev.ID,
		log.FieldOperation, ev.Op)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch := c.currentChannel()
	if ch == nil {
		c.recordFailure()
		return errors.New("publish message: channel not open")
	}
	err := ch.PublishWithContext(
		ctx,
		c.topo.Exchange, // exchange
		routingKey,      // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			if rerr := c.connect(); rerr != nil {
				c.logger.WarnContext(ctx, "AMQP reconnect failed", log.FieldError, rerr.Error())
			}
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeEntitlements delivers the user's entitlement messages to handler
// with manual acknowledgement. Malformed messages and messages the handler
// rejects with ErrNotRecipient are dropped, other handler errors requeue.
// A closed delivery channel triggers a reconnect with exponential backoff.
func (c *Client) ConsumeEntitlements(ctx context.Context, handler func(*EntitlementMessage) error) error {
	if c.topo.entitlementQueue() == "" {
		return ErrNoEntitlementQueue
	}
	for attempt := 0; ; {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "Entitlement consumer interrupted",
			log.FieldError, err.Error(),
			"attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
		if err := c.connect(); err != nil {
			attempt++
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(*EntitlementMessage) error) error {
	ch := c.currentChannel()
	if ch == nil {
		return errors.New("channel not open")
	}
	queue := c.topo.entitlementQueue()
	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming entitlement messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.settle(ctx, delivery, handler)
		}
	}
}

func (c *Client) settle(ctx context.Context, delivery amqp091.Delivery, handler func(*EntitlementMessage) error) {
	msg, err := EntitlementMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.LogError(ctx, "Failed to unmarshal message", err, log.OpConsume,
			log.NewFields().WithErrorType(log.ErrorTypeValidation))
		delivery.Nack(false, false)
		return
	}

	if err := handler(msg); err != nil {
		if errors.Is(err, ErrNotRecipient) {
			c.logger.WarnContext(ctx, "Dropping entitlement message for another user", log.FieldError, err.Error())
			delivery.Nack(false, false)
			return
		}
		c.logger.LogError(ctx, "Failed to handle message", err, log.OpConsume, nil)
		delivery.Nack(false, true)
		return
	}

	delivery.Ack(false)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	n := atomic.AddInt64(&c.failureCount, 1)
	// A failure in half-open reopens immediately.
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
