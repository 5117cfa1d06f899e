package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quizzer-session/internal/channel"
)

func startHub(t *testing.T, h *Hub) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	server := httptest.NewServer(mux)
	return server, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func collect(ch *channel.Channel, event string) <-chan json.RawMessage {
	out := make(chan json.RawMessage, 16)
	ch.On(event, func(payload json.RawMessage) {
		out <- payload
	})
	return out
}

func waitEvent(t *testing.T, ch <-chan json.RawMessage, what string) json.RawMessage {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestJoinBroadcastsNotifyToWholeSession(t *testing.T) {
	server, url := startHub(t, New(nil, time.Minute))
	defer server.Close()
	ctx := context.Background()

	host, err := channel.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial host: %v", err)
	}
	defer host.Close()
	hostNotify := collect(host, channel.EventNotify)

	if err := host.Invoke(ctx, channel.MethodConnectToQuizSession, 4321, "u1"); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	waitEvent(t, hostNotify, "host's own join notify")

	player, err := channel.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial player: %v", err)
	}
	defer player.Close()
	playerNotify := collect(player, channel.EventNotify)

	if err := player.Invoke(ctx, channel.MethodConnectToQuizSession, 4321, "u2"); err != nil {
		t.Fatalf("player connect: %v", err)
	}

	payload := waitEvent(t, hostNotify, "player join notify on host")
	var notify struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(payload, &notify); err != nil {
		t.Fatalf("decode notify: %v", err)
	}
	if notify.UserID != "u2" {
		t.Fatalf("expected notify for u2, got %q", notify.UserID)
	}
	waitEvent(t, playerNotify, "player's own join notify")
}

func TestStartAndCompleteReachEveryClient(t *testing.T) {
	server, url := startHub(t, New(nil, time.Minute))
	defer server.Close()
	ctx := context.Background()

	host, err := channel.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial host: %v", err)
	}
	defer host.Close()
	player, err := channel.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial player: %v", err)
	}
	defer player.Close()

	hostStarted := collect(host, channel.EventQuizStarted)
	playerStarted := collect(player, channel.EventQuizStarted)
	hostCompleted := collect(host, channel.EventQuizCompleted)
	playerCompleted := collect(player, channel.EventQuizCompleted)

	hostNotify := collect(host, channel.EventNotify)
	if err := host.Invoke(ctx, channel.MethodConnectToQuizSession, 7777, "u1"); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	waitEvent(t, hostNotify, "host join")
	if err := player.Invoke(ctx, channel.MethodConnectToQuizSession, 7777, "u2"); err != nil {
		t.Fatalf("player connect: %v", err)
	}
	waitEvent(t, hostNotify, "player join")

	if err := host.Invoke(ctx, channel.MethodStartQuizSession, "s1"); err != nil {
		t.Fatalf("start session: %v", err)
	}
	waitEvent(t, hostStarted, "QuizStarted on host")
	waitEvent(t, playerStarted, "QuizStarted on player")

	if err := host.Invoke(ctx, channel.MethodCompleteQuizSession, "s1"); err != nil {
		t.Fatalf("complete session: %v", err)
	}
	waitEvent(t, hostCompleted, "QuizCompleted on host")
	waitEvent(t, playerCompleted, "QuizCompleted on player")
}

func TestHandlerReRegistrationDoesNotDoubleFire(t *testing.T) {
	server, url := startHub(t, New(nil, time.Minute))
	defer server.Close()
	ctx := context.Background()

	cl, err := channel.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cl.Close()

	var fired atomic.Int32
	handler := func(json.RawMessage) { fired.Add(1) }
	cl.On(channel.EventNotify, handler)
	cl.On(channel.EventNotify, handler)

	if err := cl.Invoke(ctx, channel.MethodConnectToQuizSession, 1111, "u1"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Allow a moment for a hypothetical second delivery.
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected the handler to fire once per event, got %d", got)
	}
}

func TestSessionLivenessMarkers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	server, url := startHub(t, New(client, time.Minute))
	defer server.Close()
	ctx := context.Background()

	cl, err := channel.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	notify := collect(cl, channel.EventNotify)
	if err := cl.Invoke(ctx, channel.MethodConnectToQuizSession, 2468, "u1"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitEvent(t, notify, "join notify")

	if !mr.Exists("quiz:session:live:2468") {
		t.Fatalf("expected liveness marker after join")
	}

	cl.Close()
	deadline := time.Now().Add(5 * time.Second)
	for mr.Exists("quiz:session:live:2468") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mr.Exists("quiz:session:live:2468") {
		t.Fatalf("expected liveness marker removed once the session emptied")
	}
}
