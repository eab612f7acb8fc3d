package search

import (
    "context"
    "log"

    "github.com/yourorg/match-api/internal/events"
)

// Indexer is a stub that consumes match.attached events and logs them.
// Swap this with a real OpenSearch client later.
type Indexer struct {
    Pub events.Publisher
}

func (i *Indexer) Run(ctx context.Context) {
    sub := i.Pub.SubscribeMatchAttached()
    for {
        select {
        case <-ctx.Done():
            return
        case evt := <-sub:
            // TODO: map and upsert into OpenSearch
            log.Printf("indexer: match.attached match=%s client=%s property=%s", evt.MatchID, evt.ClientID, evt.PropertyID)
        }
    }
}
