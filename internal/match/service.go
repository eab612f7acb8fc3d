package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourorg/match-api/internal/events"
	"github.com/yourorg/match-api/internal/normalize"
)

// Record is a scored client↔listing pairing awaiting agent review.
type Record struct {
	ID        string
	ClientID  string
	ListingID string
	Score     int
	Reasons   []string
	Status    Status
	AgentNote string
	CreatedAt time.Time
}

// Listing is the read-only upstream record a recommendation points at.
// Structured fields, when present, are authoritative over the raw payload.
type Listing struct {
	ID           string
	MLSNumber    string
	Address      normalize.AddressParts
	City         string
	State        string
	Zip          string
	Title        string
	Status       string
	PropertyType string
	ListPrice    *float64
	Beds         *float64
	Baths        *float64
	Sqft         *float64
	LotSqft      *float64
	YearBuilt    *float64
	RawPayload   map[string]any
}

// PropertyUpsert is the normalized CRM property payload. The store must
// insert-or-update on (BrokerageID, ExternalListingID).
type PropertyUpsert struct {
	BrokerageID       string
	AgentID           string
	ExternalListingID string
	Address           string
	City              string
	State             string
	Zip               string
	ListPrice         *float64
	Beds              *float64
	Baths             *float64
	Sqft              *float64
	LotSqft           *float64
	YearBuilt         *float64
	PropertyType      string
	Status            string
	PipelineStage     string
	PrimaryPhotoURL   string
}

// LinkUpsert ties a client to a property. Unique on (ClientID, PropertyID).
type LinkUpsert struct {
	ClientID     string
	PropertyID   string
	Relationship string
}

// Store is the keyed record store the workflow runs against.
type Store interface {
	GetMatch(ctx context.Context, id string) (*Record, error)
	GetListing(ctx context.Context, id string) (*Listing, error)
	ListingPhotos(ctx context.Context, listingID string) ([]string, error)
	ClientBrokerageID(ctx context.Context, clientID string) (string, error)
	UpsertProperty(ctx context.Context, in PropertyUpsert) (string, error)
	UpsertClientLink(ctx context.Context, in LinkUpsert) error
	// TransitionMatch applies status/agent_note only while the row is still
	// new, and reports whether the update took effect.
	TransitionMatch(ctx context.Context, id string, to Status, agentNote string) (bool, error)
}

// Locker serializes attach attempts per recommendation across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string)
}

// AgentContext is the acting agent's identity, passed explicitly rather
// than read from ambient session state.
type AgentContext struct {
	AgentID     string
	BrokerageID string
}

// AttachResult reports what an attach call did.
type AttachResult struct {
	PropertyID string
	Applied    bool
}

// Service orchestrates attach and dismiss. It is transport-agnostic.
type Service struct {
	Store Store
	Locks Locker
	Pub   events.Publisher

	StoreTimeout time.Duration
	LockTTL      time.Duration
}

func NewService(store Store, locks Locker, pub events.Publisher) *Service {
	return &Service{
		Store:        store,
		Locks:        locks,
		Pub:          pub,
		StoreTimeout: 10 * time.Second,
		LockTTL:      8 * time.Second,
	}
}

// Attach accepts a recommendation: it builds the normalized property
// payload, upserts the property, links it to the client, and transitions
// the recommendation to attached. Mutations run strictly in that order.
func (s *Service) Attach(ctx context.Context, agent AgentContext, matchID, agentNote string) (AttachResult, error) {
	var res AttachResult

	rec, err := s.getMatch(ctx, matchID)
	if err != nil {
		return res, err
	}
	if rec.Status != StatusNew {
		return res, ErrInvalidState
	}

	listing, err := s.getListing(ctx, rec.ListingID)
	if err != nil {
		return res, err
	}

	brokerageID, err := s.resolveBrokerage(ctx, rec.ClientID, agent)
	if err != nil {
		return res, err
	}

	// Single-flight per recommendation; the conditional status update below
	// is the final backstop against double attachment.
	lockKey := "match:attach:" + matchID
	if s.Locks != nil {
		ok, err := s.Locks.TryLock(ctx, lockKey, s.lockTTL())
		if err != nil {
			log.Printf("[WARN] attach lock unavailable for %s: %v", matchID, err)
		} else if !ok {
			return res, ErrAttachInFlight
		} else {
			defer s.Locks.Unlock(ctx, lockKey)
		}
	}

	prop := s.buildProperty(ctx, agent, brokerageID, listing)

	propertyID, err := s.upsertProperty(ctx, prop)
	if err != nil {
		return res, fmt.Errorf("property upsert: %w", err)
	}
	res.PropertyID = propertyID

	if err := s.upsertLink(ctx, LinkUpsert{
		ClientID:     rec.ClientID,
		PropertyID:   propertyID,
		Relationship: "recommended",
	}); err != nil {
		return res, &PartialAttachError{PropertyID: propertyID, Stage: StageClientLink, Err: err}
	}

	applied, err := s.transition(ctx, matchID, StatusAttached, agentNote)
	if err != nil {
		return res, &PartialAttachError{PropertyID: propertyID, LinkDone: true, Stage: StageStatus, Err: err}
	}
	if !applied {
		// Lost the race: another actor already moved the record. Property
		// and link writes are idempotent, so nothing to undo.
		return res, ErrInvalidState
	}

	if s.Pub != nil {
		s.Pub.PublishMatchAttached(ctx, events.MatchAttached{
			MatchID:    matchID,
			ClientID:   rec.ClientID,
			PropertyID: propertyID,
		})
	}

	res.Applied = true
	return res, nil
}

// Dismiss declines a recommendation. One conditional update, no downstream
// side effects.
func (s *Service) Dismiss(ctx context.Context, matchID, agentNote string) error {
	applied, err := s.transition(ctx, matchID, StatusDismissed, agentNote)
	if err != nil {
		return err
	}
	if !applied {
		return ErrInvalidState
	}
	return nil
}

// buildProperty runs the pure normalization pipeline. Photo table read
// failures degrade to the raw payload rather than aborting the attach.
func (s *Service) buildProperty(ctx context.Context, agent AgentContext, brokerageID string, listing *Listing) PropertyUpsert {
	raw := listing.RawPayload

	photoURLs, err := s.listingPhotos(ctx, listing.ID)
	if err != nil {
		log.Printf("[WARN] photo lookup failed for listing %s: %v", listing.ID, err)
		photoURLs = nil
	}

	status := listing.Status
	if status == "" {
		status = "active"
	}

	return PropertyUpsert{
		BrokerageID:       brokerageID,
		AgentID:           agent.AgentID,
		ExternalListingID: listing.MLSNumber,
		Address:           normalize.Address(listing.Address, raw, listing.Title),
		City:              listing.City,
		State:             listing.State,
		Zip:               listing.Zip,
		ListPrice:         listing.ListPrice,
		Beds:              normalize.Beds(listing.Beds, raw),
		Baths:             normalize.Baths(listing.Baths, raw),
		Sqft:              normalize.Sqft(listing.Sqft, raw),
		LotSqft:           listing.LotSqft,
		YearBuilt:         normalize.YearBuilt(listing.YearBuilt, raw),
		PropertyType:      listing.PropertyType,
		Status:            status,
		PipelineStage:     "recommended",
		PrimaryPhotoURL:   normalize.PrimaryPhoto(photoURLs, raw),
	}
}

// resolveBrokerage prefers the client's brokerage and falls back to the
// acting agent's.
func (s *Service) resolveBrokerage(ctx context.Context, clientID string, agent AgentContext) (string, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	clientBrokerage, err := s.Store.ClientBrokerageID(cctx, clientID)
	if err != nil {
		return "", storeErr(err)
	}
	if clientBrokerage != "" {
		return clientBrokerage, nil
	}
	if agent.BrokerageID != "" {
		return agent.BrokerageID, nil
	}
	return "", ErrMissingBrokerage
}

// ─── store call wrappers (per-call timeout, timeout as distinct kind) ─────

func (s *Service) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StoreTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 8 * time.Second
	}
	return s.LockTTL
}

func (s *Service) getMatch(ctx context.Context, id string) (*Record, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	rec, err := s.Store.GetMatch(cctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

func (s *Service) getListing(ctx context.Context, id string) (*Listing, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	l, err := s.Store.GetListing(cctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return l, nil
}

func (s *Service) listingPhotos(ctx context.Context, listingID string) ([]string, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	urls, err := s.Store.ListingPhotos(cctx, listingID)
	if err != nil {
		return nil, storeErr(err)
	}
	return urls, nil
}

func (s *Service) upsertProperty(ctx context.Context, in PropertyUpsert) (string, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	id, err := s.Store.UpsertProperty(cctx, in)
	if err != nil {
		return "", storeErr(err)
	}
	return id, nil
}

func (s *Service) upsertLink(ctx context.Context, in LinkUpsert) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	return storeErr(s.Store.UpsertClientLink(cctx, in))
}

func (s *Service) transition(ctx context.Context, id string, to Status, note string) (bool, error) {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	applied, err := s.Store.TransitionMatch(cctx, id, to, note)
	if err != nil {
		return false, storeErr(err)
	}
	return applied, nil
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}
