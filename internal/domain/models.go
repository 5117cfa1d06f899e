package domain

import "time"

// Phase is the client-visible lifecycle of a quiz session.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// CanTransition reports whether moving from p to next is legal.
// Completed is terminal and the phase never regresses.
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseLobby:
		return next == PhaseRunning
	case PhaseRunning:
		return next == PhaseCompleted
	default:
		return false
	}
}

// ScoreNotPlayed marks a result row whose participant never finalized;
// such rows are excluded from the ranking.
const ScoreNotPlayed = -1

// Participant is one member of a session roster.
type Participant struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarRef string `json:"profilePicture"`
}

// QuizSession is the server-side session record as seen by clients.
// Code maps 1:1 to the session and is immutable once issued.
type QuizSession struct {
	ID            string              `json:"id"`
	QuizID        string              `json:"quizId"`
	Code          int                 `json:"code"`
	HostUserID    string              `json:"hostUserId"`
	StartTime     time.Time           `json:"startDate"`
	QuestionCount int                 `json:"questionCount,omitempty"`
	Results       []QuizSessionResult `json:"quizSessionResults,omitempty"`
}

// QuizSessionResult is one participant's result row, pre-seeded at join time.
type QuizSessionResult struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	SessionID string `json:"quizSessionId"`
	Score     int    `json:"score"`
}

// ResultDetail is the persisted record of one answer to one question.
// A nil ChosenAnswerID encodes a timeout with no selection and is still
// recorded so scoring and review stay complete.
type ResultDetail struct {
	SessionResultID string  `json:"quizSessionResultId"`
	QuestionID      string  `json:"questionId"`
	ChosenAnswerID  *string `json:"quizAnswerId"`
	IsCorrect       bool    `json:"isCorrect"`
	IdempotencyKey  string  `json:"idempotencyKey,omitempty"`
}

// RoundState is the local, non-persisted view of the active session.
type RoundState struct {
	Phase                Phase
	CurrentQuestionIndex int
	SecondsRemaining     int
}

// SessionContext is the durable identity of one participant in one
// session. It is constructed once at join/create time and threaded
// explicitly into every component; losing it means the client must
// rejoin with a fresh code.
type SessionContext struct {
	SessionID       string `json:"sessionId"`
	Code            int    `json:"code"`
	SessionResultID string `json:"sessionResultId"`
	UserID          string `json:"userId"`
	IsHost          bool   `json:"isHost"`
}

// Question is one quiz question as shown to a player.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Quiz is the playable content of a quiz session.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// AnswerOption is one selectable answer for a question.
type AnswerOption struct {
	ID         string `json:"id"`
	AnswerText string `json:"answerText"`
	IsCorrect  bool   `json:"isCorrect"`
}

// UserAnswer is one row of the per-question review after finalization.
type UserAnswer struct {
	ID           string        `json:"id"`
	Question     Question      `json:"question"`
	ChosenAnswer *AnswerOption `json:"quizAnswer"`
	IsCorrect    bool          `json:"isCorrect"`
}

// RankedParticipant is one scoreboard row produced by the reconciler.
type RankedParticipant struct {
	Participant
	Score int `json:"score"`
	Rank  int `json:"rank"`
}
