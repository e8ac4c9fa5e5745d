package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/NainishK/smartsubs/api/internal/handler"
	inngestfn "github.com/NainishK/smartsubs/api/internal/inngest"
	"github.com/NainishK/smartsubs/api/internal/middleware"
	"github.com/NainishK/smartsubs/api/internal/recommend"
	"github.com/NainishK/smartsubs/api/internal/repository"
	"github.com/NainishK/smartsubs/api/internal/service"
	"github.com/NainishK/smartsubs/api/internal/watchlist"
)

func main() {
	ctx := context.Background()

	db, err := repository.NewPool(ctx)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if err := repository.InitSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	cache, err := service.NewJSONCacheFromEnv()
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	catalog := service.NewCatalogClient()
	engine := service.NewEngineClient()
	publisher, err := service.NewEventPublisher()
	if err != nil {
		log.Fatalf("event publisher: %v", err)
	}

	userRepo := repository.NewUserRepo(db)
	watchlistRepo := repository.NewWatchlistRepo(db)
	accessRepo := repository.NewAccessRepo(db)

	sessions := watchlist.NewManager(watchlistRepo, catalog)
	streams := recommend.NewManager(engine, accessRepo, cache)

	internalH := handler.NewInternalHandler(userRepo)
	catalogH := handler.NewCatalogHandler(catalog, cache)
	watchlistH := handler.NewWatchlistHandler(sessions, publisher)
	recommendH := handler.NewRecommendHandler(streams, sessions)
	cacheStatsH := handler.NewCacheStatsHandler()

	inngestHandler := inngestfn.NewHandler(db, engine, cache)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Mount("/api/inngest", inngestHandler)

	// Called by the frontend server only, protected by X-Internal-Secret.
	r.Post("/api/internal/users/upsert", internalH.UpsertUser)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/search", catalogH.Search)
			r.Get("/{mediaType}/{externalId}", catalogH.Detail)
			r.Get("/{mediaType}/{externalId}/availability", catalogH.Availability)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", watchlistH.List)
			r.Post("/reload", watchlistH.Reload)
			r.Post("/transition", watchlistH.Transition)
			r.Get("/stats", watchlistH.Stats)
			r.Patch("/{externalId}/rating", watchlistH.SetRating)
			r.Delete("/{externalId}", watchlistH.Delete)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/dashboard", recommendH.Dashboard)
			r.Get("/similar", recommendH.Similar)
			r.Post("/refresh", recommendH.Refresh)
			r.Get("/ai", recommendH.PeekAI)
			r.Post("/ai/generate", recommendH.GenerateAI)
			r.Get("/access", recommendH.AccessState)
			r.Post("/access/request", recommendH.RequestAccess)
		})

		r.Get("/cache-stats", cacheStatsH.Get)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("api listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
