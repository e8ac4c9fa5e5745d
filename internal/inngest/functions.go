package inngest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/NainishK/smartsubs/api/internal/repository"
	"github.com/NainishK/smartsubs/api/internal/service"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewHandler registers all Inngest functions and returns the HTTP handler.
func NewHandler(db *pgxpool.Pool, engine *service.EngineClient, cache service.JSONCache) http.Handler {
	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		AppID: "smartsubs-api",
	})
	if err != nil {
		log.Fatalf("inngest client: %v", err)
	}

	register := func(f inngestgo.ServableFunction, err error) {
		if err != nil {
			log.Fatalf("register function: %v", err)
		}
	}

	register(recomputeOnChangeFn(client, engine, cache))
	register(nightlyRecomputeFn(client, db, engine, cache))

	return client.Serve()
}

func warmRecommendationCaches(ctx context.Context, engine *service.EngineClient, cache service.JSONCache, userID string) error {
	items, err := engine.DashboardPicks(ctx, userID)
	if err != nil {
		return fmt.Errorf("dashboard picks: %w", err)
	}
	if err := cache.SetJSON(ctx, fmt.Sprintf("recs:dashboard:%s", userID), items, 5*time.Minute); err != nil {
		return fmt.Errorf("cache dashboard: %w", err)
	}
	return nil
}

// event/watchlist-record-changed — a mutation nudges the engine so the next
// dashboard visit sees recommendations computed against the new watchlist.
func recomputeOnChangeFn(client inngestgo.Client, engine *service.EngineClient, cache service.JSONCache) (inngestgo.ServableFunction, error) {
	type EventData struct {
		UserID     string `json:"user_id"`
		ExternalID int64  `json:"external_id"`
		Action     string `json:"action"`
	}

	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{ID: "recompute-on-change", Name: "Recompute Recommendations On Watchlist Change"},
		inngestgo.EventTrigger("watchlist/record.changed", nil),
		func(ctx context.Context, input inngestgo.Input[EventData]) (any, error) {
			userID := input.Event.Data.UserID
			if userID == "" {
				return nil, nil
			}
			log.Printf("recompute-on-change start user_id=%s action=%s", userID, input.Event.Data.Action)

			_, err := step.Run(ctx, "trigger-recompute", func(ctx context.Context) (string, error) {
				return "ok", engine.TriggerRecompute(ctx, userID)
			})
			if err != nil {
				log.Printf("recompute-on-change trigger failed user_id=%s err=%v", userID, err)
				return nil, fmt.Errorf("trigger recompute: %w", err)
			}

			_, err = step.Run(ctx, "warm-dashboard", func(ctx context.Context) (string, error) {
				return "ok", warmRecommendationCaches(ctx, engine, cache, userID)
			})
			if err != nil {
				log.Printf("recompute-on-change warm failed user_id=%s err=%v", userID, err)
				return nil, fmt.Errorf("warm caches: %w", err)
			}
			return map[string]any{"user_id": userID}, nil
		},
	)
}

// cron/nightly-recompute — refreshes every user's engine model once a day so
// long-idle accounts do not come back to stale recommendations.
func nightlyRecomputeFn(client inngestgo.Client, db *pgxpool.Pool, engine *service.EngineClient, cache service.JSONCache) (inngestgo.ServableFunction, error) {
	userRepo := repository.NewUserRepo(db)

	return inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{ID: "nightly-recompute", Name: "Nightly Recommendation Recompute"},
		inngestgo.CronTrigger("0 5 * * *"),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			userIDs, err := step.Run(ctx, "list-users", func(ctx context.Context) ([]string, error) {
				return userRepo.ListIDs(ctx)
			})
			if err != nil {
				return nil, fmt.Errorf("list users: %w", err)
			}

			processed := 0
			failed := 0
			for _, userID := range userIDs {
				uid := userID
				_, err := step.Run(ctx, "recompute-"+uid, func(ctx context.Context) (string, error) {
					if err := engine.TriggerRecompute(ctx, uid); err != nil {
						return "", err
					}
					return "ok", warmRecommendationCaches(ctx, engine, cache, uid)
				})
				if err != nil {
					failed++
					log.Printf("nightly-recompute failed user_id=%s err=%v", uid, err)
					continue
				}
				processed++
			}
			return map[string]any{"processed": processed, "failed": failed}, nil
		},
	)
}
