package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/yourorg/match-api/internal/env"
	"github.com/yourorg/match-api/internal/events"
	"github.com/yourorg/match-api/internal/match"
	"github.com/yourorg/match-api/internal/redisx"
	"github.com/yourorg/match-api/internal/refresh"
	"github.com/yourorg/match-api/internal/search"
	"github.com/yourorg/match-api/internal/store"
	"github.com/yourorg/match-api/mls"
)

func main() {
	port := env.GetInt("PORT", 4003)
	dsn := env.Must("DATABASE_URL")
	redisAddr := env.Get("REDIS_ADDR", "localhost:6379")
	redisPassword := env.Get("REDIS_PASSWORD", "")
	feedKey := env.Get("MLS_MEDIA_API_KEY", "")
	feedBase := env.Get("MLS_MEDIA_BASE_URL", "https://api.mlsmediagateway.com")
	cacheTTL := env.GetDuration("PREVIEW_CACHE_TTL", 5*time.Minute)

	ctx := context.Background()

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if err := st.Ping(ctx); err != nil {
		log.Fatalf("postgres ping: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rds := redisx.New(redisAddr, redisPassword, env.GetInt("REDIS_DB", 0))
	if err := rds.Ping(ctx); err != nil {
		log.Printf("[WARN] redis unavailable at %s: %v (locks and preview cache degraded)", redisAddr, err)
	}

	var hydrator *refresh.Hydrator
	if feedKey != "" {
		feed := mls.NewClient(feedKey, feedBase)
		feed.Rendition = env.Get("MLS_MEDIA_RENDITION", "")
		hydrator = refresh.New(256, 2, photoHydration(st, rds, feed))
	} else {
		log.Printf("[INFO] MLS_MEDIA_API_KEY not set; photo hydration disabled")
	}

	pub := events.NewInMemory(256)
	indexer := &search.Indexer{Pub: pub}
	go indexer.Run(ctx)

	workflow := match.NewService(st, rds, pub)
	workflow.StoreTimeout = env.GetDuration("STORE_TIMEOUT", 10*time.Second)

	router := BuildRouter(routerDeps{
		Store:    st,
		Redis:    rds,
		Workflow: workflow,
		Hydrator: hydrator,
		CacheTTL: cacheTTL,
	})

	log.Printf("match-api listening on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
		log.Fatal(err)
	}
}

// photoHydration fetches a listing's media set from the feed and persists
// it. A short negative cooldown keeps listings the feed knows nothing about
// from being fetched on every preview.
func photoHydration(st *store.Store, rds *redisx.Client, feed *mls.Client) func(ctx context.Context, j refresh.Job) {
	return func(ctx context.Context, j refresh.Job) {
		missKey := "photos:miss:" + j.ListingID
		if ok, _ := rds.Exists(ctx, missKey); ok {
			return
		}
		assets, err := feed.GetListingPhotos(ctx, j.MLSNumber)
		if err != nil {
			log.Printf("[WARN] photo hydration failed for %s: %v", j.MLSNumber, err)
			return
		}
		if len(assets) == 0 {
			_ = rds.Set(ctx, missKey, "1", 30*time.Minute)
			return
		}
		urls := make([]string, 0, len(assets))
		for _, a := range assets {
			urls = append(urls, a.Href)
		}
		if err := st.ReplaceListingPhotos(ctx, j.ListingID, urls); err != nil {
			log.Printf("[WARN] unable to persist photos for %s: %v", j.ListingID, err)
			return
		}
		log.Printf("[INFO] hydrated %d photos for listing %s", len(urls), j.ListingID)
	}
}
