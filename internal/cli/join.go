package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"quizzer-session/internal/channel"
	"quizzer-session/internal/config"
	"quizzer-session/internal/domain"
	"quizzer-session/internal/lobby"
	"quizzer-session/internal/restapi"
	"quizzer-session/internal/score"
	"quizzer-session/internal/session"
)

// NewJoinCmd builds the CLI subcommand that joins a session by code and
// plays it as a participant.
func NewJoinCmd(configPath *string) *cobra.Command {
	var (
		code   int
		userID string
		auto   bool
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a multiplayer session by code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), *configPath, code, userID, auto)
		},
	}
	cmd.Flags().IntVar(&code, "code", 0, "session code to join")
	cmd.Flags().StringVar(&userID, "user", "", "joining user")
	cmd.Flags().BoolVar(&auto, "auto", true, "answer each question with its first option")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runJoin(ctx context.Context, configPath string, code int, userID string, auto bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	api := restapi.New(cfg.API.BaseURL)

	store := newContextStore(cfg)

	// A stored identity for the same code means a restarted client; reuse
	// the existing result row instead of seeding a second one.
	sctx, err := store.Load(ctx, userID)
	if err != nil || sctx.Code != code {
		result, err := api.CreateQuizSessionResultByCode(ctx, code, userID)
		if err != nil {
			return fmt.Errorf("connect to quiz: %w", err)
		}
		sctx = domain.SessionContext{
			SessionID:       result.SessionID,
			Code:            code,
			SessionResultID: result.ID,
			UserID:          userID,
		}
		if err := store.Save(ctx, sctx); err != nil {
			return fmt.Errorf("persist session identity: %w", err)
		}
	} else {
		log.Printf("resuming session %s with stored identity", sctx.SessionID)
	}
	defer func() { _ = store.Clear(context.Background(), userID) }()

	sess, err := api.GetQuizSessionInfo(ctx, sctx.SessionID)
	if err != nil {
		return fmt.Errorf("resolve session %s: %w", sctx.SessionID, err)
	}
	sctx.IsHost = sess.HostUserID == userID

	quiz, err := api.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return fmt.Errorf("fetch quiz %s: %w", sess.QuizID, err)
	}

	ch, err := channel.Dial(ctx, cfg.Hub.URL)
	if err != nil {
		return err
	}
	defer ch.Close()

	coord := lobby.NewCoordinator(sctx, sess.HostUserID, ch, api)
	coord.Bind(ctx)

	rec := score.New(api, sctx.SessionResultID)
	completed := make(chan struct{})

	var machine *session.Machine
	machine = session.New(session.Config{
		Role:          session.RolePlayer,
		Context:       sctx,
		QuizID:        sess.QuizID,
		Channel:       ch,
		Metadata:      api,
		RoundDuration: config.Duration(cfg.Rounds.Multiplayer, config.DefaultMultiplayerRound),
		OnPhase: func(phase domain.Phase) {
			log.Printf("session %s phase: %s", sctx.SessionID, phase)
			if phase == domain.PhaseCompleted {
				close(completed)
			}
		},
		OnRound: func(round int) {
			if !auto {
				return
			}
			answerRound(ctx, api, rec, machine, quiz, round)
		},
		OnExpire: func(round int) {
			submitTimeoutAnswer(ctx, rec, quiz, round)
		},
	})
	machine.Bind(ctx)
	if err := machine.Prepare(ctx); err != nil {
		return err
	}

	if err := coord.Join(ctx); err != nil {
		return err
	}
	log.Printf("joined session %d, waiting for the host to start", code)

	select {
	case <-completed:
	case <-ch.Done():
		return fmt.Errorf("session %s: %w", sctx.SessionID, domain.ErrConnectionFailed)
	case <-ctx.Done():
		return ctx.Err()
	}

	final, err := rec.Finalize(ctx)
	if err != nil && !errors.Is(err, domain.ErrAlreadyFinalized) {
		return err
	}
	log.Printf("final score: %d", final)

	review, err := api.GetUserAnswersBySessionResultID(ctx, sctx.SessionResultID)
	if err != nil {
		log.Printf("fetch answer review: %v", err)
	} else {
		for _, row := range review {
			mark := "wrong"
			if row.IsCorrect {
				mark = "correct"
			}
			log.Printf("question %q: %s", row.Question.Text, mark)
		}
	}

	ranking, err := rec.FetchResults(ctx, sctx.SessionID)
	if err != nil {
		return err
	}
	printScoreboard(ranking)
	return nil
}

// answerRound submits the first option for the round's question and advances
// past it without waiting for the countdown.
func answerRound(ctx context.Context, api *restapi.Client, rec *score.Reconciler, machine *session.Machine, quiz domain.Quiz, round int) {
	if round < 1 || round > len(quiz.Questions) {
		return
	}
	questionID := quiz.Questions[round-1].ID

	options, err := api.GetQuestionAnswers(ctx, questionID)
	if err != nil || len(options) == 0 {
		log.Printf("fetch options for question %s: %v", questionID, err)
		return
	}
	if err := rec.SubmitAnswer(ctx, questionID, &options[0].ID); err != nil {
		if !errors.Is(err, domain.ErrAlreadyAnswered) {
			log.Printf("answer round %d: %v", round, err)
		}
		return
	}
	if err := machine.AdvanceAfterAnswer(round); err != nil && !errors.Is(err, domain.ErrStaleRound) {
		log.Printf("advance after round %d: %v", round, err)
	}
}
