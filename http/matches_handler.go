package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/match-api/internal/match"
)

// Workflow is the attach/dismiss surface consumed by these handlers.
type Workflow interface {
	Attach(ctx context.Context, agent match.AgentContext, matchID, agentNote string) (match.AttachResult, error)
	Dismiss(ctx context.Context, matchID, agentNote string) error
}

// MatchStore is the read surface consumed by these handlers.
type MatchStore interface {
	GetMatch(ctx context.Context, id string) (*match.Record, error)
	GetListing(ctx context.Context, id string) (*match.Listing, error)
	ListingPhotos(ctx context.Context, listingID string) ([]string, error)
	ListMatchesByClient(ctx context.Context, clientID, statusFilter string, limit int) ([]match.Record, error)
}

type MatchesDeps struct {
	Workflow Workflow
	Store    MatchStore
}

type attachRequest struct {
	AgentNote string `json:"agent_note,omitempty"`
}

func RegisterMatches(r chi.Router, d MatchesDeps) {
	r.Get("/clients/{clientID}/matches", func(w http.ResponseWriter, req *http.Request) {
		clientID := chi.URLParam(req, "clientID")
		q := req.URL.Query()
		statusFilter := q.Get("status")
		if statusFilter != "" {
			if _, err := match.ParseStatus(statusFilter); err != nil {
				render.Status(req, http.StatusBadRequest)
				render.JSON(w, req, map[string]any{"error": "invalid_status", "detail": err.Error()})
				return
			}
		}
		limit := 50
		if v := q.Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				limit = i
			}
		}
		records, err := d.Store.ListMatchesByClient(req.Context(), clientID, statusFilter, limit)
		if err != nil {
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{"error": "store_error", "detail": err.Error()})
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(records), "matches": matchesToJSON(records)})
	})

	r.Post("/matches/{matchID}/attach", func(w http.ResponseWriter, req *http.Request) {
		matchID := chi.URLParam(req, "matchID")
		agent, ok := agentFromHeaders(w, req)
		if !ok {
			return
		}
		var body attachRequest
		if req.Body != nil && req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				render.Status(req, http.StatusBadRequest)
				render.JSON(w, req, map[string]any{"error": "invalid_json", "detail": err.Error()})
				return
			}
		}
		res, err := d.Workflow.Attach(req.Context(), agent, matchID, body.AgentNote)
		if err != nil {
			writeWorkflowError(w, req, matchID, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "applied": true, "property_id": res.PropertyID})
	})

	r.Post("/matches/{matchID}/dismiss", func(w http.ResponseWriter, req *http.Request) {
		matchID := chi.URLParam(req, "matchID")
		var body attachRequest
		if req.Body != nil && req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				render.Status(req, http.StatusBadRequest)
				render.JSON(w, req, map[string]any{"error": "invalid_json", "detail": err.Error()})
				return
			}
		}
		if err := d.Workflow.Dismiss(req.Context(), matchID, body.AgentNote); err != nil {
			writeWorkflowError(w, req, matchID, err)
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "applied": true})
	})
}

// agentFromHeaders builds the explicit acting-agent identity. The gateway
// in front of this service authenticates and sets these headers.
func agentFromHeaders(w http.ResponseWriter, req *http.Request) (match.AgentContext, bool) {
	agent := match.AgentContext{
		AgentID:     req.Header.Get("X-Agent-ID"),
		BrokerageID: req.Header.Get("X-Agent-Brokerage-ID"),
	}
	if agent.AgentID == "" {
		render.Status(req, http.StatusBadRequest)
		render.JSON(w, req, map[string]any{"error": "agent_id_required"})
		return agent, false
	}
	return agent, true
}

// writeWorkflowError maps workflow errors onto the response envelope. A
// stale-state attempt is a no-op success, not an error, because it usually
// means a duplicate click or an outdated page.
func writeWorkflowError(w http.ResponseWriter, req *http.Request, matchID string, err error) {
	switch {
	case errors.Is(err, match.ErrInvalidState):
		log.Printf("[INFO] stale action on match %s ignored", matchID)
		render.JSON(w, req, map[string]any{"ok": true, "applied": false})
	case errors.Is(err, match.ErrAttachInFlight):
		render.Status(req, http.StatusAccepted)
		render.JSON(w, req, map[string]any{"ok": false, "in_progress": true})
	case errors.Is(err, match.ErrMissingBrokerage):
		render.Status(req, http.StatusUnprocessableEntity)
		render.JSON(w, req, map[string]any{"error": "missing_brokerage_association", "detail": err.Error()})
	case errors.Is(err, match.ErrStoreTimeout):
		render.Status(req, http.StatusGatewayTimeout)
		render.JSON(w, req, map[string]any{"error": "store_timeout", "detail": err.Error()})
	default:
		var partial *match.PartialAttachError
		if errors.As(err, &partial) {
			log.Printf("[WARN] partial attach for match %s: %v", matchID, err)
			render.Status(req, http.StatusBadGateway)
			render.JSON(w, req, map[string]any{
				"error":       "partial_attach",
				"detail":      partial.Error(),
				"property_id": partial.PropertyID,
				"link_done":   partial.LinkDone,
			})
			return
		}
		render.Status(req, http.StatusBadGateway)
		render.JSON(w, req, map[string]any{"error": "store_error", "detail": err.Error()})
	}
}

func matchesToJSON(records []match.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		reasons := rec.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		out = append(out, map[string]any{
			"id":         rec.ID,
			"client_id":  rec.ClientID,
			"listing_id": rec.ListingID,
			"score":      rec.Score,
			"reasons":    reasons,
			"status":     rec.Status,
			"agent_note": rec.AgentNote,
			"created_at": rec.CreatedAt,
		})
	}
	return out
}
