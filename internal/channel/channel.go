// Package channel owns the publish/subscribe connection to the session hub.
// It exposes the connect, invoke, and subscribe primitives; everything above
// it reacts to events, never to the wire.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quizzer-session/internal/domain"
)

// Hub method and event names. The hub delivers events in order per
// connection; no ordering is guaranteed across clients.
const (
	MethodConnectToQuizSession = "ConnectToQuizSession"
	MethodStartQuizSession     = "StartQuizSession"
	MethodCompleteQuizSession  = "CompleteQuizSession"

	EventNotify        = "Notify"
	EventQuizStarted   = "QuizStarted"
	EventQuizCompleted = "QuizCompleted"
)

// Frame is the single wire envelope: method+args client-to-hub,
// event+payload hub-to-client.
type Frame struct {
	Method  string            `json:"method,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Event   string            `json:"event,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// Handler consumes the raw payload of one inbound event.
type Handler func(payload json.RawMessage)

// Channel is one logical connection per client per session attempt.
type Channel struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[string]Handler

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the hub endpoint. Failure is recoverable: callers retry
// the join/start action, they never treat it as fatal.
func Dial(ctx context.Context, endpoint string) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", endpoint, domain.ErrConnectionFailed, err)
	}
	c := &Channel{
		conn:     conn,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// On subscribes a handler for an event. Re-registering the same event
// replaces the previous handler, so a second registration can never
// double-fire side effects.
func (c *Channel) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = h
}

// Invoke sends a method invocation to the hub.
func (c *Channel) Invoke(ctx context.Context, method string, args ...any) error {
	frame := Frame{Method: method, Args: make([]json.RawMessage, 0, len(args))}
	for _, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("invoke %s: marshal arg: %w", method, err)
		}
		frame.Args = append(frame.Args, data)
	}

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("invoke %s: %w: %v", method, domain.ErrConnectionFailed, err)
	}
	return nil
}

// Done is closed once the connection's read loop has exited.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close tears down the connection.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	})
	return c.conn.Close()
}

// readLoop dispatches inbound events sequentially, preserving the
// per-connection delivery order the hub provides.
func (c *Channel) readLoop() {
	defer close(c.done)
	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Event == "" {
			continue
		}
		c.mu.RLock()
		h := c.handlers[frame.Event]
		c.mu.RUnlock()
		if h != nil {
			h(frame.Payload)
		}
	}
}
