package events

import (
    "context"
)

// MatchAttached is published after an attach lands all three mutations.
type MatchAttached struct {
    MatchID    string
    ClientID   string
    PropertyID string
}

type Publisher interface {
    PublishMatchAttached(ctx context.Context, evt MatchAttached)
    SubscribeMatchAttached() <-chan MatchAttached
}

type inMemory struct{ ch chan MatchAttached }

func NewInMemory(buffer int) Publisher {
    if buffer <= 0 { buffer = 256 }
    return &inMemory{ ch: make(chan MatchAttached, buffer) }
}

func (m *inMemory) PublishMatchAttached(_ context.Context, evt MatchAttached) {
    select { case m.ch <- evt: default: }
}

func (m *inMemory) SubscribeMatchAttached() <-chan MatchAttached { return m.ch }
