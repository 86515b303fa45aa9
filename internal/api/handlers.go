package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/keycat/internal/entryservice"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/search"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *entryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *entryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// entryID extracts the entry id from the URL.
func entryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry id"))
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries, fuzzy-ranked when a query is given
//	@Tags			entries
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			field	query		string	false	"Field to match"	Enums(key, description)
//	@Success		200		{object}	EntryListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field, err := search.ParseField(q.Get("field"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	entries := h.svc.List(r.Context(), q.Get("q"), field)
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: entries, Total: len(entries)})
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a single entry
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	models.Entry
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Create a new entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EntryRequest	true	"Entry to create"
//	@Success		201		{object}	models.Entry
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := h.svc.Create(r.Context(), req.Key, req.Description)
	if err != nil {
		writeError(w, "create entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntry handles PUT /api/entries/{id}.
//
//	@Summary		Replace the key and description of an entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Entry id"
//	@Param			body	body		EntryRequest	true	"New values"
//	@Success		200		{object}	models.Entry
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [put]
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req EntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := h.svc.Update(r.Context(), id, req.Key, req.Description)
	if err != nil {
		writeError(w, "update entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/entries/{id}.
//
//	@Summary		Delete an entry
//	@Tags			entries
//	@Param			id	path	string	true	"Entry id"
//	@Success		204	"Entry deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReloadCatalog handles POST /api/catalog/reload.
//
//	@Summary		Re-read the catalog file, discarding unsaved edits
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	CatalogResponse
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/catalog/reload [post]
func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reload(r.Context()); err != nil {
		writeError(w, "reload catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, h.catalogResponse(r))
}

// SaveCatalog handles POST /api/catalog/save.
//
//	@Summary		Write the catalog file
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	CatalogResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/catalog/save [post]
func (h *Handler) SaveCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(r.Context()); err != nil {
		writeError(w, "save catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, h.catalogResponse(r))
}

func (h *Handler) catalogResponse(r *http.Request) CatalogResponse {
	return CatalogResponse{
		Path:     h.svc.Path(),
		Checksum: h.svc.Checksum(),
		Entries:  len(h.svc.List(r.Context(), "", search.FieldKey)),
	}
}

// ParseMarkup handles POST /api/markup/parse.
//
//	@Summary		Split description text into segments
//	@Tags			markup
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParseMarkupRequest	true	"Raw text"
//	@Success		200		{object}	ParseMarkupResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/markup/parse [post]
func (h *Handler) ParseMarkup(w http.ResponseWriter, r *http.Request) {
	var req ParseMarkupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	segs := markup.Parse(req.Raw)
	if segs == nil {
		segs = []markup.Segment{}
	}
	writeJSON(w, http.StatusOK, ParseMarkupResponse{Segments: segs, PlainText: markup.PlainText(segs)})
}

// SerializeMarkup handles POST /api/markup/serialize.
//
//	@Summary		Join segments back into description text
//	@Tags			markup
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SerializeMarkupRequest	true	"Segments"
//	@Success		200		{object}	SerializeMarkupResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/markup/serialize [post]
func (h *Handler) SerializeMarkup(w http.ResponseWriter, r *http.Request) {
	var req SerializeMarkupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, SerializeMarkupResponse{Raw: markup.Serialize(req.Segments)})
}
