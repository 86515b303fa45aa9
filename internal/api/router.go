package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keycat/internal/assets"
	"github.com/starford/keycat/internal/entryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// Asset downloads stay public so rendered descriptions can load them.
func NewRouter(svc *entryservice.Service, lib *assets.Library, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(lib)

	r := chi.NewRouter()
	r.Get("/assets/{filename}", ah.ServeFile)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Entries CRUD.
		r.Get("/entries", h.ListEntries)
		r.Post("/entries", h.CreateEntry)
		r.Get("/entries/{id}", h.GetEntry)
		r.Put("/entries/{id}", h.UpdateEntry)
		r.Delete("/entries/{id}", h.DeleteEntry)

		// Whole-catalog operations.
		r.Post("/catalog/reload", h.ReloadCatalog)
		r.Post("/catalog/save", h.SaveCatalog)

		// Markup codec.
		r.Post("/markup/parse", h.ParseMarkup)
		r.Post("/markup/serialize", h.SerializeMarkup)

		r.Get("/assets", ah.List)
		r.Post("/assets", ah.Upload)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
