package cli

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"quizzer-session/internal/config"
	"quizzer-session/internal/domain"
	"quizzer-session/internal/infra/memory"
	redisstore "quizzer-session/internal/infra/redis"
)

// contextStore is the durable memory of "who am I in this session".
type contextStore interface {
	Save(ctx context.Context, sctx domain.SessionContext) error
	Load(ctx context.Context, userID string) (domain.SessionContext, error)
	Clear(ctx context.Context, userID string) error
}

func newContextStore(cfg config.Config) contextStore {
	if cfg.Redis.Addr == "" {
		return memory.NewContextStore()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return redisstore.NewContextStore(client, config.Duration(cfg.Redis.TTL, 10*time.Minute))
}

func printScoreboard(ranking []domain.RankedParticipant) {
	fmt.Println("rank  score  player")
	for _, row := range ranking {
		fmt.Printf("%4d  %5d  %s\n", row.Rank, row.Score, row.Username)
	}
}
