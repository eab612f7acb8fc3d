package refresh

import (
    "context"
    "sync"
    "time"
)

// Job asks for one listing's photo set to be hydrated from the media feed.
type Job struct {
    ListingID string
    MLSNumber string
}

// Hydrator runs photo-hydration jobs on a small worker pool, deduping
// listings already in flight and dropping work when saturated.
type Hydrator struct {
    ch    chan Job
    inFly sync.Map // listing id -> struct{}
    Do    func(ctx context.Context, j Job)
}

func New(capacity int, workerCount int, do func(ctx context.Context, j Job)) *Hydrator {
    if capacity <= 0 { capacity = 256 }
    if workerCount <= 0 { workerCount = 2 }
    h := &Hydrator{ ch: make(chan Job, capacity), Do: do }
    for i := 0; i < workerCount; i++ {
        go h.worker()
    }
    return h
}

func (h *Hydrator) Enqueue(j Job) {
    if j.ListingID == "" || j.MLSNumber == "" {
        return
    }
    if _, exists := h.inFly.LoadOrStore(j.ListingID, struct{}{}); exists {
        return
    }
    select {
    case h.ch <- j:
    default:
        // drop if saturated
        h.inFly.Delete(j.ListingID)
    }
}

func (h *Hydrator) worker() {
    for j := range h.ch {
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        func() {
            defer func() {
                h.inFly.Delete(j.ListingID)
                cancel()
            }()
            if h.Do != nil { h.Do(ctx, j) }
        }()
    }
}
