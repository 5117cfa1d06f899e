// Package lobby tracks the session roster while participants gather.
package lobby

import (
	"context"
	"encoding/json"
	"log"
	"slices"
	"sync"
	"time"

	"quizzer-session/internal/channel"
	"quizzer-session/internal/domain"
)

// RosterFetcher pulls the authoritative participant snapshot over REST.
type RosterFetcher interface {
	GetQuizSessionParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
}

// Invoker is the slice of the session channel the coordinator uses.
type Invoker interface {
	Invoke(ctx context.Context, method string, args ...any) error
	On(event string, h channel.Handler)
}

// Coordinator owns the participant set for one session. The roster is
// replaced wholesale on every notification, last write wins; push events and
// REST snapshots may arrive in either order, and the latest processed one is
// always authoritative.
type Coordinator struct {
	sctx       domain.SessionContext
	hostUserID string

	ch  Invoker
	api RosterFetcher

	mu     sync.RWMutex
	roster []domain.Participant

	onRoster func([]domain.Participant)
}

// NewCoordinator builds a coordinator for the session described by sctx.
// hostUserID comes from the session-creation response, so host identity is
// re-derived from server data on every reconnect rather than carried in a
// client-local flag.
func NewCoordinator(sctx domain.SessionContext, hostUserID string, ch Invoker, api RosterFetcher) *Coordinator {
	return &Coordinator{sctx: sctx, hostUserID: hostUserID, ch: ch, api: api}
}

// Bind subscribes the coordinator to roster notifications. Binding twice is
// safe: the channel replaces the handler instead of stacking it.
func (c *Coordinator) Bind(ctx context.Context) {
	c.ch.On(channel.EventNotify, func(_ json.RawMessage) {
		c.refresh(ctx)
	})
}

// Join announces this user to the hub. It does not by itself guarantee
// membership; membership is confirmed only once a roster notification
// arrives that includes the local user.
func (c *Coordinator) Join(ctx context.Context) error {
	return c.ch.Invoke(ctx, channel.MethodConnectToQuizSession, c.sctx.Code, c.sctx.UserID)
}

// Replace installs a new roster wholesale. It never merges: patching diffs
// is exactly the bug class this design avoids.
func (c *Coordinator) Replace(roster []domain.Participant) {
	c.mu.Lock()
	c.roster = slices.Clone(roster)
	cb := c.onRoster
	snapshot := slices.Clone(c.roster)
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Roster returns a copy of the current participant set.
func (c *Coordinator) Roster() []domain.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.roster)
}

// IsMember reports whether the local user appears in the confirmed roster.
func (c *Coordinator) IsMember() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.ContainsFunc(c.roster, func(p domain.Participant) bool {
		return p.ID == c.sctx.UserID
	})
}

// IsHost reports whether the local user is the session host, derived from
// the server-issued host ID.
func (c *Coordinator) IsHost() bool {
	return c.hostUserID != "" && c.hostUserID == c.sctx.UserID
}

// SetOnRosterChanged registers a hook fired after every roster replacement.
func (c *Coordinator) SetOnRosterChanged(fn func([]domain.Participant)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRoster = fn
}

// refresh refetches the roster after a notification. On failure the previous
// roster stays in place; the next notification retries naturally.
func (c *Coordinator) refresh(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roster, err := c.api.GetQuizSessionParticipants(fetchCtx, c.sctx.SessionID)
	if err != nil {
		log.Printf("roster refresh for session %s failed: %v", c.sctx.SessionID, err)
		return
	}
	c.Replace(roster)
}
