package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/match-api/internal/match"
	"github.com/yourorg/match-api/internal/normalize"
	"github.com/yourorg/match-api/internal/refresh"
)

type previewStore struct {
	rec     *match.Record
	recErr  error
	listing *match.Listing
	photos  []string
}

func (s *previewStore) GetMatch(context.Context, string) (*match.Record, error) {
	if s.recErr != nil {
		return nil, s.recErr
	}
	cp := *s.rec
	return &cp, nil
}

func (s *previewStore) GetListing(context.Context, string) (*match.Listing, error) {
	cp := *s.listing
	return &cp, nil
}

func (s *previewStore) ListingPhotos(context.Context, string) ([]string, error) {
	return s.photos, nil
}

func (s *previewStore) ListMatchesByClient(context.Context, string, string, int) ([]match.Record, error) {
	return nil, nil
}

type fakeCache struct {
	vals map[string]string
	sets int
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	v, ok := c.vals[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, val string, _ time.Duration) error {
	if c.vals == nil {
		c.vals = make(map[string]string)
	}
	c.vals[key] = val
	c.sets++
	return nil
}

type fakeEnqueuer struct{ jobs []refresh.Job }

func (f *fakeEnqueuer) Enqueue(j refresh.Job) { f.jobs = append(f.jobs, j) }

func newPreviewRouter(st MatchStore, cache PreviewCache, hyd PhotoHydrator) http.Handler {
	r := chi.NewRouter()
	RegisterPreview(r, PreviewDeps{Store: st, Cache: cache, Hydrator: hyd})
	return r
}

func seedPreviewStore() *previewStore {
	return &previewStore{
		rec: &match.Record{ID: "m1", ClientID: "c1", ListingID: "l1", Score: 80, Status: match.StatusNew},
		listing: &match.Listing{
			ID: "l1", MLSNumber: "MLS-7",
			Address: normalize.AddressParts{StreetNumber: "9", StreetName: "Elm", StreetSuffix: "Ave"},
			City:    "Tustin", State: "CA", Zip: "92780",
			RawPayload: map[string]any{"BedroomsTotal": float64(2)},
		},
		photos: []string{"https://cdn/p.jpg"},
	}
}

func TestPreviewFreshThenCached(t *testing.T) {
	st := seedPreviewStore()
	cache := &fakeCache{}
	h := newPreviewRouter(st, cache, nil)

	rr, payload := doJSON(t, h, http.MethodGet, "/matches/m1/preview", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload["source"] != "fresh" {
		t.Errorf("source = %v, want fresh", payload["source"])
	}
	prev, _ := payload["preview"].(map[string]any)
	if prev["address"] != "9 Elm Ave" {
		t.Errorf("address = %v, want %q", prev["address"], "9 Elm Ave")
	}
	if prev["beds"] != float64(2) {
		t.Errorf("beds = %v, want 2 from raw payload", prev["beds"])
	}
	if cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1", cache.sets)
	}

	rr2, payload2 := doJSON(t, h, http.MethodGet, "/matches/m1/preview", "", nil)
	if rr2.Code != http.StatusOK || payload2["source"] != "cache" {
		t.Errorf("second request: status = %d source = %v, want cache hit", rr2.Code, payload2["source"])
	}
}

func TestPreviewTerminalRecordSkipsCache(t *testing.T) {
	st := seedPreviewStore()
	cache := &fakeCache{}
	h := newPreviewRouter(st, cache, nil)

	// Prime the cache while the record is new, then attach it.
	if _, payload := doJSON(t, h, http.MethodGet, "/matches/m1/preview", "", nil); payload["source"] != "fresh" {
		t.Fatalf("priming request source = %v", payload["source"])
	}
	st.rec.Status = match.StatusAttached

	rr, payload := doJSON(t, h, http.MethodGet, "/matches/m1/preview", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if payload["source"] != "fresh" {
		t.Errorf("source = %v, terminal record must bypass the cached card", payload["source"])
	}
	prev, _ := payload["preview"].(map[string]any)
	if prev["status"] != "attached" {
		t.Errorf("preview status = %v, want attached", prev["status"])
	}
	if cache.sets != 1 {
		t.Errorf("cache writes = %d, terminal responses must not be re-cached", cache.sets)
	}
}

func TestPreviewHydrationOnlyWhenPhotosMissing(t *testing.T) {
	st := seedPreviewStore()
	st.photos = nil
	enq := &fakeEnqueuer{}
	if _, payload := doJSON(t, newPreviewRouter(st, nil, enq), http.MethodGet, "/matches/m1/preview", "", nil); payload["source"] != "fresh" {
		t.Fatalf("source = %v", payload["source"])
	}
	if len(enq.jobs) != 1 {
		t.Fatalf("hydration jobs = %d, want 1 for empty photo table", len(enq.jobs))
	}
	if enq.jobs[0].ListingID != "l1" || enq.jobs[0].MLSNumber != "MLS-7" {
		t.Errorf("job = %+v", enq.jobs[0])
	}

	st2 := seedPreviewStore()
	enq2 := &fakeEnqueuer{}
	doJSON(t, newPreviewRouter(st2, nil, enq2), http.MethodGet, "/matches/m1/preview", "", nil)
	if len(enq2.jobs) != 0 {
		t.Errorf("hydration jobs = %d, want 0 when photos already stored", len(enq2.jobs))
	}
}

func TestPreviewNotFoundVsStoreError(t *testing.T) {
	st := seedPreviewStore()
	st.recErr = fmt.Errorf("%w: m1", match.ErrNotFound)
	rr, payload := doJSON(t, newPreviewRouter(st, nil, nil), http.MethodGet, "/matches/m1/preview", "", nil)
	if rr.Code != http.StatusNotFound || payload["error"] != "not_found" {
		t.Errorf("unknown id: status = %d payload = %v, want 404 not_found", rr.Code, payload)
	}

	st.recErr = errors.New("connection refused")
	rr, payload = doJSON(t, newPreviewRouter(st, nil, nil), http.MethodGet, "/matches/m1/preview", "", nil)
	if rr.Code != http.StatusBadGateway || payload["error"] != "store_error" {
		t.Errorf("store outage: status = %d payload = %v, want 502 store_error", rr.Code, payload)
	}
}
