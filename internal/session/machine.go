// Package session holds the client-side session state machine: the
// authoritative local view of the session phase and the active round.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"quizzer-session/internal/channel"
	"quizzer-session/internal/clock"
	"quizzer-session/internal/domain"
)

// Role distinguishes the participant who drives round timing from the ones
// who follow it.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// MetadataFetcher resolves session pacing data over REST.
type MetadataFetcher interface {
	GetQuestionCount(ctx context.Context, quizID string) (int, error)
}

// Invoker is the slice of the session channel the machine uses.
type Invoker interface {
	Invoke(ctx context.Context, method string, args ...any) error
	On(event string, h channel.Handler)
}

// Config wires a machine's collaborators. TickInterval defaults to one
// second; tests shrink it together with RoundDuration.
type Config struct {
	Role          Role
	Context       domain.SessionContext
	QuizID        string
	Channel       Invoker
	Metadata      MetadataFetcher
	RoundDuration time.Duration
	TickInterval  time.Duration

	// OnPhase fires after every phase transition.
	OnPhase func(domain.Phase)
	// OnRound fires when a new round becomes current, including round 1.
	OnRound func(round int)
	// OnExpire fires when a round's countdown ran out, before the index
	// advances. The reconciler uses it to record a timeout answer.
	OnExpire func(round int)
}

// Machine advances every participant through the same phase sequence:
// Lobby, Running, Completed. The phase never regresses and the question
// index is monotonic and bounded by the question count.
//
// Both roles run a local countdown per round. The host's countdown is the
// timing driver: when its final round expires it asks the hub to broadcast
// the single authoritative completion event, and every client, host
// included, transitions to Completed only on that event. A player's
// countdown only paces its own display and timeout submissions.
type Machine struct {
	cfg   Config
	clock *clock.RoundClock

	ctx context.Context

	mu            sync.Mutex
	state         domain.RoundState
	questionCount int
}

func New(cfg Config) *Machine {
	m := &Machine{
		cfg:   cfg,
		state: domain.RoundState{Phase: domain.PhaseLobby},
	}
	m.clock = clock.New(cfg.RoundDuration, cfg.TickInterval, m.handleTick, m.handleExpire)
	return m
}

// Bind subscribes the machine to the hub's lifecycle events. ctx bounds the
// machine's countdowns and invocations. Binding twice never double-fires:
// the channel replaces handlers on re-registration.
func (m *Machine) Bind(ctx context.Context) {
	m.ctx = ctx
	m.cfg.Channel.On(channel.EventQuizStarted, func(_ json.RawMessage) { m.handleQuizStarted() })
	m.cfg.Channel.On(channel.EventQuizCompleted, func(_ json.RawMessage) { m.handleQuizCompleted() })
}

// Prepare fetches the round count used for pacing. A failed fetch leaves the
// machine in Lobby; the caller surfaces the error and the user retries by
// re-entering, never by an automatic loop.
func (m *Machine) Prepare(ctx context.Context) error {
	count, err := m.cfg.Metadata.GetQuestionCount(ctx, m.cfg.QuizID)
	if err != nil {
		return fmt.Errorf("fetch question count for quiz %s: %w", m.cfg.QuizID, err)
	}
	m.mu.Lock()
	m.questionCount = count
	m.mu.Unlock()
	return nil
}

// StartSession asks the hub to start the quiz. Host only; the local
// transition still happens on the broadcast QuizStarted event, the same as
// for every other client.
func (m *Machine) StartSession(ctx context.Context) error {
	if m.cfg.Role != RoleHost {
		return domain.ErrNotHost
	}
	return m.cfg.Channel.Invoke(ctx, channel.MethodStartQuizSession, m.cfg.Context.SessionID)
}

// AdvanceAfterAnswer moves past a round the participant already answered
// manually, without waiting for the countdown. round must be the current
// round; anything else is a stale trigger and is rejected.
func (m *Machine) AdvanceAfterAnswer(round int) error {
	m.mu.Lock()
	if m.state.Phase != domain.PhaseRunning || round != m.state.CurrentQuestionIndex {
		m.mu.Unlock()
		return fmt.Errorf("advance after answer for round %d: %w", round, domain.ErrStaleRound)
	}
	m.mu.Unlock()

	m.advance(round)
	return nil
}

// State returns a copy of the current round state.
func (m *Machine) State() domain.RoundState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) handleQuizStarted() {
	m.mu.Lock()
	if !m.state.Phase.CanTransition(domain.PhaseRunning) {
		m.mu.Unlock()
		log.Printf("ignoring QuizStarted in phase %s", m.state.Phase)
		return
	}
	if m.questionCount == 0 {
		m.mu.Unlock()
		if err := m.Prepare(m.ctx); err != nil {
			// Stay in Lobby until a successful fetch; re-entering retries.
			log.Printf("quiz start deferred: %v", err)
			return
		}
		m.mu.Lock()
		if !m.state.Phase.CanTransition(domain.PhaseRunning) {
			m.mu.Unlock()
			return
		}
	}
	m.state.Phase = domain.PhaseRunning
	m.state.CurrentQuestionIndex = 1
	m.mu.Unlock()

	// Start the countdown before the callbacks run: a callback may answer
	// and advance immediately, and the newest Start must win.
	m.clock.Start(m.ctx, 1)
	if m.cfg.OnPhase != nil {
		m.cfg.OnPhase(domain.PhaseRunning)
	}
	if m.cfg.OnRound != nil {
		m.cfg.OnRound(1)
	}
}

func (m *Machine) handleQuizCompleted() {
	m.mu.Lock()
	if !m.state.Phase.CanTransition(domain.PhaseCompleted) {
		m.mu.Unlock()
		log.Printf("ignoring QuizCompleted in phase %s", m.state.Phase)
		return
	}
	m.state.Phase = domain.PhaseCompleted
	m.state.SecondsRemaining = 0
	m.mu.Unlock()

	m.clock.Stop()
	if m.cfg.OnPhase != nil {
		m.cfg.OnPhase(domain.PhaseCompleted)
	}
}

func (m *Machine) handleTick(round, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// The clock is the only writer of SecondsRemaining; stale rounds are
	// dropped by identity.
	if m.state.Phase == domain.PhaseRunning && round == m.state.CurrentQuestionIndex {
		m.state.SecondsRemaining = remaining
	}
}

func (m *Machine) handleExpire(round int) {
	m.mu.Lock()
	if m.state.Phase != domain.PhaseRunning || round != m.state.CurrentQuestionIndex {
		m.mu.Unlock()
		log.Printf("discarding expiry for round %d: %v", round, domain.ErrStaleRound)
		return
	}
	m.mu.Unlock()

	if m.cfg.OnExpire != nil {
		m.cfg.OnExpire(round)
	}
	m.advance(round)
}

// advance moves past round. On the final round the host requests the
// completion broadcast; intermediate rounds bump the index and restart the
// countdown.
func (m *Machine) advance(round int) {
	m.mu.Lock()
	if m.state.Phase != domain.PhaseRunning || round != m.state.CurrentQuestionIndex {
		m.mu.Unlock()
		return
	}
	last := round >= m.questionCount
	var next int
	if !last {
		m.state.CurrentQuestionIndex++
		next = m.state.CurrentQuestionIndex
	}
	m.mu.Unlock()

	if last {
		m.clock.Stop()
		if m.cfg.Role == RoleHost {
			if err := m.cfg.Channel.Invoke(m.ctx, channel.MethodCompleteQuizSession, m.cfg.Context.SessionID); err != nil {
				log.Printf("complete session %s: %v", m.cfg.Context.SessionID, err)
			}
		}
		// Completion lands with the broadcast QuizCompleted event.
		return
	}

	m.clock.Start(m.ctx, next)
	if m.cfg.OnRound != nil {
		m.cfg.OnRound(next)
	}
}
