package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"quizzer-session/internal/channel"
	"quizzer-session/internal/config"
	"quizzer-session/internal/domain"
	"quizzer-session/internal/lobby"
	"quizzer-session/internal/restapi"
	"quizzer-session/internal/score"
	"quizzer-session/internal/session"
)

// NewHostCmd builds the CLI subcommand that creates a multiplayer session
// and drives it as the host.
func NewHostCmd(configPath *string) *cobra.Command {
	var (
		quizID    string
		userID    string
		lobbyWait time.Duration
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a multiplayer session and drive its rounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), *configPath, quizID, userID, lobbyWait)
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz to play")
	cmd.Flags().StringVar(&userID, "user", "", "hosting user")
	cmd.Flags().DurationVar(&lobbyWait, "lobby-wait", 15*time.Second, "how long to keep the lobby open before starting")
	_ = cmd.MarkFlagRequired("quiz")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runHost(ctx context.Context, configPath, quizID, userID string, lobbyWait time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	api := restapi.New(cfg.API.BaseURL)

	sess, err := api.CreateQuizSessionMultiplayer(ctx, quizID, userID)
	if err != nil {
		return fmt.Errorf("create multiplayer session: %w", err)
	}
	if len(sess.Results) == 0 {
		return fmt.Errorf("session %s has no pre-seeded result row", sess.ID)
	}
	sctx := domain.SessionContext{
		SessionID:       sess.ID,
		Code:            sess.Code,
		SessionResultID: sess.Results[0].ID,
		UserID:          userID,
		IsHost:          sess.HostUserID == userID,
	}
	store := newContextStore(cfg)
	if err := store.Save(ctx, sctx); err != nil {
		return fmt.Errorf("persist session identity: %w", err)
	}
	defer func() { _ = store.Clear(context.Background(), userID) }()

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
	coord.SetOnRosterChanged(func(roster []domain.Participant) {
		log.Printf("lobby %d: %d participant(s)", sctx.Code, len(roster))
	})
	coord.Bind(ctx)

	rec := score.New(api, sctx.SessionResultID)
	completed := make(chan struct{})

	machine := session.New(session.Config{
		Role:          session.RoleHost,
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
			log.Printf("round %d of %d", round, len(quiz.Questions))
		},
		OnExpire: func(round int) {
			submitTimeoutAnswer(ctx, rec, quiz, round)
		},
	})
	machine.Bind(ctx)
	if err := machine.Prepare(ctx); err != nil {
		// The session stays in the lobby; re-running the command retries.
		return err
	}

	if err := coord.Join(ctx); err != nil {
		return err
	}
	log.Printf("lobby open, session code %d", sctx.Code)

	select {
	case <-time.After(lobbyWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := machine.StartSession(ctx); err != nil {
		return err
	}

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

	ranking, err := rec.FetchResults(ctx, sctx.SessionID)
	if err != nil {
		return err
	}
	printScoreboard(ranking)
	return nil
}

// submitTimeoutAnswer records a nil answer when a round expires before the
// participant chose one. If the round was already answered the expiry is a
// no-op for submission.
func submitTimeoutAnswer(ctx context.Context, rec *score.Reconciler, quiz domain.Quiz, round int) {
	if round < 1 || round > len(quiz.Questions) {
		return
	}
	questionID := quiz.Questions[round-1].ID
	if rec.Answered(questionID) {
		return
	}
	if err := rec.SubmitAnswer(ctx, questionID, nil); err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
		log.Printf("timeout answer for round %d: %v", round, err)
	}
}
