// Package score records answers exactly once per question, finalizes the
// session result, and assembles the consolidated scoreboard.
package score

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"quizzer-session/internal/domain"
)

// API is the slice of the REST surface the reconciler needs.
type API interface {
	RecordAnswer(ctx context.Context, detail domain.ResultDetail) error
	UpdateQuizSessionResult(ctx context.Context, resultID string) error
	GetQuizSessionResult(ctx context.Context, resultID string) (domain.QuizSessionResult, error)
	GetQuizSessionParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	GetQuizSessionInfo(ctx context.Context, sessionID string) (domain.QuizSession, error)
}

// Reconciler enforces at-most-once answer submission per question under the
// manual-submit-vs-timeout race. The local latch is keyed by question
// identity, and every submission additionally carries a client-generated
// idempotency token the backend can deduplicate on.
type Reconciler struct {
	api             API
	sessionResultID string

	retryBudget time.Duration

	mu        sync.Mutex
	answered  map[string]struct{}
	finalized bool
}

func New(api API, sessionResultID string) *Reconciler {
	return &Reconciler{
		api:             api,
		sessionResultID: sessionResultID,
		retryBudget:     10 * time.Second,
		answered:        make(map[string]struct{}),
	}
}

// NewWithRetryBudget bounds the submission backoff, for deterministic tests.
func NewWithRetryBudget(api API, sessionResultID string, budget time.Duration) *Reconciler {
	r := New(api, sessionResultID)
	r.retryBudget = budget
	return r
}

// SubmitAnswer records one answer for a question. A nil chosenAnswerID
// encodes a timeout without selection and still produces a ResultDetail.
// Whichever trigger arrives second, manual action or countdown expiry, gets
// ErrAlreadyAnswered and causes no network call. Transient failures are
// retried with exponential backoff; a terminal failure releases the latch so
// the answer is not silently lost.
func (r *Reconciler) SubmitAnswer(ctx context.Context, questionID string, chosenAnswerID *string) error {
	r.mu.Lock()
	if _, ok := r.answered[questionID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("question %s: %w", questionID, domain.ErrAlreadyAnswered)
	}
	r.answered[questionID] = struct{}{}
	r.mu.Unlock()

	detail := domain.ResultDetail{
		SessionResultID: r.sessionResultID,
		QuestionID:      questionID,
		ChosenAnswerID:  chosenAnswerID,
		// Correctness is computed server-side from the chosen answer.
		IsCorrect:      false,
		IdempotencyKey: uuid.NewString(),
	}

	if err := r.retry(ctx, func() error { return r.api.RecordAnswer(ctx, detail) }); err != nil {
		r.mu.Lock()
		delete(r.answered, questionID)
		r.mu.Unlock()
		return fmt.Errorf("record answer for question %s: %w: %v", questionID, domain.ErrSubmissionFailed, err)
	}
	return nil
}

// Answered reports whether a question already has a recorded answer.
func (r *Reconciler) Answered(questionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.answered[questionID]
	return ok
}

// Finalize asks the backend to compute the final score and returns it. It
// runs at most once; the End-Quiz-vs-final-timeout race gets
// ErrAlreadyFinalized on its losing side.
func (r *Reconciler) Finalize(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.finalized {
		r.mu.Unlock()
		return 0, fmt.Errorf("result %s: %w", r.sessionResultID, domain.ErrAlreadyFinalized)
	}
	r.finalized = true
	r.mu.Unlock()

	if err := r.retry(ctx, func() error { return r.api.UpdateQuizSessionResult(ctx, r.sessionResultID) }); err != nil {
		r.mu.Lock()
		r.finalized = false
		r.mu.Unlock()
		return 0, fmt.Errorf("finalize result %s: %w: %v", r.sessionResultID, domain.ErrSubmissionFailed, err)
	}

	result, err := r.api.GetQuizSessionResult(ctx, r.sessionResultID)
	if err != nil {
		return 0, fmt.Errorf("read final score for result %s: %w", r.sessionResultID, err)
	}
	return result.Score, nil
}

// FetchResults pulls participants and their session results, joins them by
// user, and returns the ranking. Participants whose result still carries the
// not-yet-played sentinel are excluded. Ties keep roster order, which is the
// join order the backend returns.
func (r *Reconciler) FetchResults(ctx context.Context, sessionID string) ([]domain.RankedParticipant, error) {
	participants, err := r.api.GetQuizSessionParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch participants for session %s: %w", sessionID, err)
	}
	info, err := r.api.GetQuizSessionInfo(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}

	scores := make(map[string]int, len(info.Results))
	for _, result := range info.Results {
		scores[result.UserID] = result.Score
	}

	ranked := make([]domain.RankedParticipant, 0, len(participants))
	for _, p := range participants {
		score, ok := scores[p.ID]
		if !ok {
			score = 0
		}
		if score == domain.ScoreNotPlayed {
			continue
		}
		ranked = append(ranked, domain.RankedParticipant{Participant: p, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

func (r *Reconciler) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = r.retryBudget
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
