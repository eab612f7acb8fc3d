package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/match-api/http"
	"github.com/yourorg/match-api/internal/match"
	"github.com/yourorg/match-api/internal/redisx"
	"github.com/yourorg/match-api/internal/refresh"
	"github.com/yourorg/match-api/internal/store"
)

type routerDeps struct {
	Store    *store.Store
	Redis    *redisx.Client
	Workflow *match.Service
	Hydrator *refresh.Hydrator
	CacheTTL time.Duration
}

func BuildRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(100, 1*time.Minute)) // agents double-click; keep the store safe
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterMatches(r, httpapi.MatchesDeps{Workflow: deps.Workflow, Store: deps.Store})
	previewDeps := httpapi.PreviewDeps{
		Store:    deps.Store,
		Cache:    deps.Redis,
		CacheTTL: deps.CacheTTL,
	}
	if deps.Hydrator != nil { // keep the interface nil when hydration is disabled
		previewDeps.Hydrator = deps.Hydrator
	}
	httpapi.RegisterPreview(r, previewDeps)

	return r
}
