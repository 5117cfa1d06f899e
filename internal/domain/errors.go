package domain

import "errors"

var (
	// ErrConnectionFailed is returned when the hub channel cannot connect or
	// invoke; callers recover by retrying the join/start action.
	ErrConnectionFailed = errors.New("quiz hub connection failed")
	// ErrSessionNotFound is returned for an invalid or expired session code.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSubmissionFailed is returned when recording or finalizing an answer
	// failed after retries.
	ErrSubmissionFailed = errors.New("answer submission failed")
	// ErrStaleRound indicates a timer or event fired against a round that has
	// already advanced; such events are discarded, never applied.
	ErrStaleRound = errors.New("event targets a stale round")
	// ErrAlreadyAnswered indicates the current question already has a recorded
	// answer; the second trigger of the submit race is suppressed with it.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrAlreadyFinalized indicates the session result was finalized before.
	ErrAlreadyFinalized = errors.New("session result already finalized")
	// ErrIdentityMissing indicates no stored session context exists for the
	// user; the only recovery is rejoining with a fresh code.
	ErrIdentityMissing = errors.New("session identity missing, rejoin required")
	// ErrNotHost is returned when a non-host attempts a host-only action.
	ErrNotHost = errors.New("only the session host can start the quiz")
)
