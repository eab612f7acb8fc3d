// photosync backfills photo sets for listings whose photo table is empty.
// Run it on a schedule or with PHOTOSYNC_INTERVAL for a long-lived worker.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/yourorg/match-api/internal/env"
	"github.com/yourorg/match-api/internal/store"
	"github.com/yourorg/match-api/mls"
)

func main() {
	dsn := env.Must("DATABASE_URL")
	feedKey := env.Must("MLS_MEDIA_API_KEY")
	feedBase := env.Get("MLS_MEDIA_BASE_URL", "https://api.mlsmediagateway.com")
	batch := env.GetInt("PHOTOSYNC_BATCH", 100)
	interval := env.GetDuration("PHOTOSYNC_INTERVAL", 0)
	pause := env.GetDuration("PHOTOSYNC_PAUSE", 300*time.Millisecond)

	ctx := context.Background()

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if err := st.Ping(ctx); err != nil {
		log.Fatalf("postgres ping: %v", err)
	}
	feed := mls.NewClient(feedKey, feedBase)
	feed.Rendition = env.Get("MLS_MEDIA_RENDITION", "")

	if interval <= 0 {
		if err := runOnce(ctx, st, feed, batch, pause); err != nil {
			log.Fatalf("photosync: %v", err)
		}
		return
	}

	log.Printf("photosync running every %s (batch %d)", interval, batch)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := runOnce(ctx, st, feed, batch, pause); err != nil {
			log.Printf("[WARN] photosync pass failed: %v", err)
		}
		<-ticker.C
	}
}

func runOnce(ctx context.Context, st *store.Store, feed *mls.Client, batch int, pause time.Duration) error {
	refs, err := st.ListingsMissingPhotos(ctx, batch)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		log.Printf("[INFO] no listings missing photos")
		return nil
	}

	hydrated := 0
	for _, ref := range refs {
		assets, err := feed.GetListingPhotos(ctx, ref.MLSNumber)
		if err != nil {
			if errors.Is(err, mls.ErrDailyLimitExceeded) {
				log.Printf("[WARN] feed quota reached after %d/%d listings; stopping pass", hydrated, len(refs))
				return nil
			}
			log.Printf("[WARN] fetch failed for %s: %v", ref.MLSNumber, err)
			continue
		}
		if len(assets) == 0 {
			continue
		}
		urls := make([]string, 0, len(assets))
		for _, a := range assets {
			urls = append(urls, a.Href)
		}
		if err := st.ReplaceListingPhotos(ctx, ref.ID, urls); err != nil {
			log.Printf("[WARN] persist failed for listing %s: %v", ref.ID, err)
			continue
		}
		hydrated++
		time.Sleep(pause)
	}
	log.Printf("[INFO] photosync pass hydrated %d/%d listings", hydrated, len(refs))
	return nil
}
