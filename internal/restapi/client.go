// Package restapi is the typed client for the quiz backend's REST surface.
// The backend and its persistence are external collaborators; everything the
// orchestrator knows about them goes through this client.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"quizzer-session/internal/domain"
)

type Client struct {
	base string
	http *http.Client
	// sf collapses concurrent reads of the same hot resource; Notify storms
	// trigger one roster refetch per session, not one per notification.
	sf singleflight.Group
}

func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetQuizSessionByCode resolves a human-entered code to a session.
func (c *Client) GetQuizSessionByCode(ctx context.Context, code int) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := c.get(ctx, "/QuizSession/code/"+strconv.Itoa(code), &session)
	return session, err
}

// GetQuizSessionInfo fetches a session including its pre-seeded result rows.
func (c *Client) GetQuizSessionInfo(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := c.get(ctx, "/QuizSession/"+sessionID, &session)
	return session, err
}

// GetQuizSessionParticipants returns the current roster snapshot.
func (c *Client) GetQuizSessionParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	v, err, _ := c.sf.Do("participants:"+sessionID, func() (interface{}, error) {
		var participants []domain.Participant
		if err := c.get(ctx, "/QuizSession/"+sessionID+"/participants", &participants); err != nil {
			return nil, err
		}
		return participants, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Participant), nil
}

// GetQuestionCount returns the round count used for session pacing.
func (c *Client) GetQuestionCount(ctx context.Context, quizID string) (int, error) {
	v, err, _ := c.sf.Do("questioncount:"+quizID, func() (interface{}, error) {
		var out struct {
			Count int `json:"count"`
		}
		if err := c.get(ctx, "/quiz/"+quizID+"/questions/count", &out); err != nil {
			return 0, err
		}
		return out.Count, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// GetQuiz fetches the playable question list for a quiz.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.get(ctx, "/quiz/"+quizID, &quiz)
	return quiz, err
}

// GetQuestionAnswers returns the selectable options for one question.
func (c *Client) GetQuestionAnswers(ctx context.Context, questionID string) ([]domain.AnswerOption, error) {
	var options []domain.AnswerOption
	err := c.get(ctx, "/QuizAnswer/question/"+questionID, &options)
	return options, err
}

// CreateQuizSessionMultiplayer starts a multiplayer session for a quiz and
// pre-seeds the host's result row. The response carries the session code
// players type to join and HostUserID, from which host identity is re-derived
// on every reconnect.
func (c *Client) CreateQuizSessionMultiplayer(ctx context.Context, quizID, userID string) (domain.QuizSession, error) {
	body := map[string]any{
		"quizId":    quizID,
		"startDate": time.Now().UTC().Format(time.RFC3339),
		"quizSessionResults": []map[string]any{
			{"userId": userID, "score": 0},
		},
	}
	var session domain.QuizSession
	err := c.post(ctx, "/QuizSession/multiplayer", body, &session)
	return session, err
}

// CreateQuizSession starts a single-player session.
func (c *Client) CreateQuizSession(ctx context.Context, quizID, userID string) (domain.QuizSession, error) {
	body := map[string]any{
		"quizId":    quizID,
		"startDate": time.Now().UTC().Format(time.RFC3339),
		"quizSessionResults": []map[string]any{
			{"userId": userID, "score": 0},
		},
	}
	var session domain.QuizSession
	err := c.post(ctx, "/QuizSession", body, &session)
	return session, err
}

// CreateQuizSessionResultByCode seeds a result row for a player joining an
// existing session by code.
func (c *Client) CreateQuizSessionResultByCode(ctx context.Context, code int, userID string) (domain.QuizSessionResult, error) {
	body := map[string]any{"userId": userID, "score": 0}
	var result domain.QuizSessionResult
	err := c.post(ctx, "/QuizSessionResult/code/"+strconv.Itoa(code), body, &result)
	return result, err
}

// RecordAnswer persists one ResultDetail. Correctness is computed server-side
// from the chosen answer; the client never sets IsCorrect.
func (c *Client) RecordAnswer(ctx context.Context, detail domain.ResultDetail) error {
	return c.post(ctx, "/resultdetails", detail, nil)
}

// UpdateQuizSessionResult asks the backend to compute the final score.
func (c *Client) UpdateQuizSessionResult(ctx context.Context, resultID string) error {
	return c.patch(ctx, "/quizsessionresult", map[string]string{"id": resultID})
}

// GetQuizSessionResult reads a result row, including its final score.
func (c *Client) GetQuizSessionResult(ctx context.Context, resultID string) (domain.QuizSessionResult, error) {
	var result domain.QuizSessionResult
	err := c.get(ctx, "/QuizSessionResult/"+resultID, &result)
	return result, err
}

// GetUserAnswersBySessionResultID returns the per-question review rows.
func (c *Client) GetUserAnswersBySessionResultID(ctx context.Context, resultID string) ([]domain.UserAnswer, error) {
	var answers []domain.UserAnswer
	err := c.get(ctx, "/ResultDetails/result/"+resultID, &answers)
	return answers, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) patch(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, domain.ErrSessionNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
