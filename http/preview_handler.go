package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/match-api/internal/match"
	"github.com/yourorg/match-api/internal/normalize"
	"github.com/yourorg/match-api/internal/refresh"
)

// PreviewCache is the subset of the Redis client used here.
type PreviewCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, val string, ttl time.Duration) error
}

// PhotoHydrator queues background photo hydration for a listing.
type PhotoHydrator interface {
	Enqueue(j refresh.Job)
}

type PreviewDeps struct {
	Store    MatchStore
	Cache    PreviewCache
	Hydrator PhotoHydrator
	CacheTTL time.Duration
}

// previewEnvelope is what the agent UI renders on the match card: the
// normalized view of a raw listing, never the raw payload itself.
type previewEnvelope struct {
	MatchID   string   `json:"match_id"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
	Status    string   `json:"status"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Zip       string   `json:"zip"`
	ListPrice *float64 `json:"list_price"`
	Beds      *float64 `json:"beds"`
	Baths     *float64 `json:"baths"`
	Sqft      *float64 `json:"sqft"`
	YearBuilt *float64 `json:"year_built"`
	Photos    []string `json:"photos"`
}

func RegisterPreview(r chi.Router, d PreviewDeps) {
	r.Get("/matches/{matchID}/preview", func(w http.ResponseWriter, req *http.Request) {
		matchID := chi.URLParam(req, "matchID")
		ctx := req.Context()

		rec, err := d.Store.GetMatch(ctx, matchID)
		if err != nil {
			if errors.Is(err, match.ErrNotFound) {
				render.Status(req, http.StatusNotFound)
				render.JSON(w, req, map[string]any{"error": "not_found", "detail": err.Error()})
				return
			}
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{"error": "store_error", "detail": err.Error()})
			return
		}

		// The cache holds envelopes written while the record was new; once
		// the record is terminal the stored card is stale by definition.
		cacheKey := "preview:" + rec.ID
		if d.Cache != nil && rec.Status == match.StatusNew {
			if val, err := d.Cache.Get(ctx, cacheKey); err == nil && val != "" {
				var env previewEnvelope
				if err := json.Unmarshal([]byte(val), &env); err == nil {
					render.JSON(w, req, map[string]any{"ok": true, "source": "cache", "preview": env})
					return
				}
			}
		}

		listing, err := d.Store.GetListing(ctx, rec.ListingID)
		if err != nil {
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{"error": "store_error", "detail": err.Error()})
			return
		}
		photoURLs, err := d.Store.ListingPhotos(ctx, rec.ListingID)
		if err != nil {
			log.Printf("[WARN] photo lookup failed for listing %s: %v", rec.ListingID, err)
			photoURLs = nil
		}

		raw := listing.RawPayload
		photos := normalize.Photos(photoURLs, raw)
		if len(photoURLs) == 0 && d.Hydrator != nil {
			// Nothing in the photo table yet; hydrate from the feed for
			// next time. The payload-derived set still serves this request.
			d.Hydrator.Enqueue(refresh.Job{ListingID: listing.ID, MLSNumber: listing.MLSNumber})
		}

		reasons := rec.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		env := previewEnvelope{
			MatchID:   rec.ID,
			Score:     rec.Score,
			Reasons:   reasons,
			Status:    string(rec.Status),
			Address:   normalize.Address(listing.Address, raw, listing.Title),
			City:      listing.City,
			State:     listing.State,
			Zip:       listing.Zip,
			ListPrice: listing.ListPrice,
			Beds:      normalize.Beds(listing.Beds, raw),
			Baths:     normalize.Baths(listing.Baths, raw),
			Sqft:      normalize.Sqft(listing.Sqft, raw),
			YearBuilt: normalize.YearBuilt(listing.YearBuilt, raw),
			Photos:    photos,
		}

		if d.Cache != nil && rec.Status == match.StatusNew {
			b, _ := json.Marshal(env)
			_ = d.Cache.Set(ctx, cacheKey, string(b), cacheTTL(d.CacheTTL))
		}

		render.JSON(w, req, map[string]any{"ok": true, "source": "fresh", "preview": env})
	})
}

func cacheTTL(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return 5 * time.Minute
}
