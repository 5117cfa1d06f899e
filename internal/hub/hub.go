// Package hub is the session hub: it groups connected clients by session
// code, fans Notify out on every join, and broadcasts the QuizStarted and
// QuizCompleted signals every client keys its phase transitions off.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"quizzer-session/internal/channel"
)

// Hub routes hub invocations and event broadcasts. The optional Redis client
// marks session liveness so an external process can observe open lobbies.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int]*session

	redis *redis.Client
	ttl   time.Duration

	upgrader websocket.Upgrader
}

type session struct {
	code    int
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	send   chan channel.Frame
	group  *session
	userID string
}

func New(redisClient *redis.Client, ttl time.Duration) *Hub {
	return &Hub{
		sessions: make(map[int]*session),
		redis:    redisClient,
		ttl:      ttl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and runs the per-connection
// read loop. Each connection writes through a dedicated send channel so the
// broadcast path never performs concurrent websocket writes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, send: make(chan channel.Frame, 16)}
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for frame := range cl.send {
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var frame channel.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		h.dispatch(cl, frame)
	}

	h.leave(cl)
	close(cl.send)
	<-writerDone
}

func (h *Hub) dispatch(cl *client, frame channel.Frame) {
	switch frame.Method {
	case channel.MethodConnectToQuizSession:
		var code int
		var userID string
		if !decodeArgs(frame.Args, &code, &userID) {
			cl.trySend(errorFrame("invalid ConnectToQuizSession args"))
			return
		}
		h.join(cl, code, userID)

	case channel.MethodStartQuizSession:
		var sessionID string
		if !decodeArgs(frame.Args, &sessionID) {
			cl.trySend(errorFrame("invalid StartQuizSession args"))
			return
		}
		h.broadcast(cl.group, channel.EventQuizStarted, map[string]string{"sessionId": sessionID})

	case channel.MethodCompleteQuizSession:
		var sessionID string
		if !decodeArgs(frame.Args, &sessionID) {
			cl.trySend(errorFrame("invalid CompleteQuizSession args"))
			return
		}
		h.broadcast(cl.group, channel.EventQuizCompleted, map[string]string{"sessionId": sessionID})

	default:
		cl.trySend(errorFrame("unsupported method"))
	}
}

// join registers the connection under a session code and notifies the whole
// group; clients react by refetching the roster over REST.
func (h *Hub) join(cl *client, code int, userID string) {
	h.mu.Lock()
	group, ok := h.sessions[code]
	if !ok {
		group = &session{code: code, clients: make(map[*client]struct{})}
		h.sessions[code] = group
		h.markLive(code)
	}
	h.mu.Unlock()

	group.mu.Lock()
	group.clients[cl] = struct{}{}
	group.mu.Unlock()
	cl.group = group
	cl.userID = userID

	h.broadcast(group, channel.EventNotify, map[string]string{"userId": userID})
}

func (h *Hub) leave(cl *client) {
	group := cl.group
	if group == nil {
		return
	}
	group.mu.Lock()
	delete(group.clients, cl)
	empty := len(group.clients) == 0
	group.mu.Unlock()

	if empty {
		h.mu.Lock()
		if g, ok := h.sessions[group.code]; ok && g == group {
			delete(h.sessions, group.code)
			h.unmarkLive(group.code)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) broadcast(group *session, event string, payload any) {
	if group == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("broadcast %s: marshal payload: %v", event, err)
		return
	}
	frame := channel.Frame{Event: event, Payload: data}

	group.mu.Lock()
	defer group.mu.Unlock()
	for cl := range group.clients {
		select {
		case cl.send <- frame:
		default:
			// Slow client: drop it rather than stall the whole session.
			// Closing the conn unwinds its ServeWS loop, which owns the
			// send channel teardown.
			delete(group.clients, cl)
			cl.conn.Close()
		}
	}
}

func (cl *client) trySend(frame channel.Frame) {
	select {
	case cl.send <- frame:
	default:
	}
}

func errorFrame(msg string) channel.Frame {
	data, _ := json.Marshal(map[string]string{"message": msg})
	return channel.Frame{Event: "Error", Payload: data}
}

// markLive sets a best-effort liveness marker in Redis.
func (h *Hub) markLive(code int) {
	if h.redis == nil {
		return
	}
	_ = h.redis.Set(context.Background(), liveKey(code), "1", h.ttl).Err()
}

func (h *Hub) unmarkLive(code int) {
	if h.redis == nil {
		return
	}
	_ = h.redis.Del(context.Background(), liveKey(code)).Err()
}

func liveKey(code int) string {
	return "quiz:session:live:" + strconv.Itoa(code)
}

func decodeArgs(args []json.RawMessage, targets ...any) bool {
	if len(args) != len(targets) {
		return false
	}
	for i, raw := range args {
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			return false
		}
	}
	return true
}
