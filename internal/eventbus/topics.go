package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	connWriteWait   = 10 * time.Second
	connPongWait    = 45 * time.Second
	connPingPeriod  = 30 * time.Second
	connSendBufSize = 64
)

// TopicManager fans bus events out to websocket connections, one Conn per
// socket, subscribed to whatever topics that socket asked for. Each Conn
// serializes its own writes, so frames reach a given connection in
// publish order; a connection that falls behind is dropped rather than
// allowed to stall the bus.
type TopicManager struct {
	bus    *Bus
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewTopicManager returns a TopicManager that fans events out via bus.
func NewTopicManager(bus *Bus, logger *slog.Logger) *TopicManager {
	if logger == nil {
		logger = slog.Default().With("component", "eventbus.topics")
	}
	return &TopicManager{
		bus:    bus,
		logger: logger,
		conns:  make(map[*Conn]struct{}),
	}
}

// Conn wraps one websocket connection subscribed to zero or more topics.
type Conn struct {
	manager *TopicManager
	ws      *websocket.Conn
	send    chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*Subscription
}

// Register wraps ws, starts its write/ping loops, and tracks it for
// Shutdown. The caller owns read-loop teardown; Close (directly, or via
// the read loop returning) removes every subscription and stops the
// writer.
func (tm *TopicManager) Register(ctx context.Context, ws *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		manager: tm,
		ws:      ws,
		send:    make(chan []byte, connSendBufSize),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]*Subscription),
	}

	tm.mu.Lock()
	tm.conns[c] = struct{}{}
	tm.mu.Unlock()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(connPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(connPongWait))
	})

	go c.writeLoop()
	return c
}

// Subscribe adds topic to the set c receives Envelope frames for.
// Re-subscribing to a topic already held is a no-op.
func (c *Conn) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return
	}
	c.subs[topic] = c.manager.bus.Subscribe(topic, SubscriberFunc(c.deliver))
}

// Unsubscribe removes topic from c's subscription set.
func (c *Conn) Unsubscribe(topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	if ok {
		sub.Unsubscribe()
	}
}

// Close tears down every subscription held by c and stops its writer.
// Calling it more than once is a no-op.
func (c *Conn) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	if subs == nil {
		return
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}

	c.manager.mu.Lock()
	delete(c.manager.conns, c)
	c.manager.mu.Unlock()

	c.cancel()
}

// deliver implements Subscriber: it encodes e as a wire Envelope and
// enqueues it for c's writer. A connection whose send buffer is full is
// considered dead and dropped rather than blocking the publisher.
func (c *Conn) deliver(ctx context.Context, e Event) error {
	data, err := json.Marshal(toEnvelope(e))
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.manager.logger.Warn("dropping slow websocket subscriber", "topic", e.Topic)
		go c.Close()
		return fmt.Errorf("send buffer full, connection closed")
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(connPingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(connWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(connWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown closes every connection the manager is tracking.
func (tm *TopicManager) Shutdown() {
	tm.mu.Lock()
	conns := make([]*Conn, 0, len(tm.conns))
	for c := range tm.conns {
		conns = append(conns, c)
	}
	tm.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// ConnCount returns the number of live connections the manager is tracking.
func (tm *TopicManager) ConnCount() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.conns)
}
