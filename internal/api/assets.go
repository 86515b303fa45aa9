package api

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keycat/internal/assets"
)

// AssetHandler serves and accepts the files markup tags point at.
type AssetHandler struct {
	lib *assets.Library
}

// NewAssetHandler creates a handler over lib.
func NewAssetHandler(lib *assets.Library) *AssetHandler {
	return &AssetHandler{lib: lib}
}

// ServeFile handles GET /api/assets/{filename}.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, err := h.lib.Read(name)
	if err != nil {
		writeError(w, "serve asset", err)
		return
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// List handles GET /api/assets.
//
//	@Summary		List stored assets
//	@Tags			assets
//	@Produce		json
//	@Success		200	{object}	AssetListResponse
//	@Security		BearerAuth
//	@Router			/assets [get]
func (h *AssetHandler) List(w http.ResponseWriter, _ *http.Request) {
	list, err := h.lib.List()
	if err != nil {
		writeError(w, "list assets", err)
		return
	}
	writeJSON(w, http.StatusOK, AssetListResponse{Assets: list})
}

// Upload handles POST /api/assets (multipart/form-data, field "file", optional
// field "label"). The response carries the markup tag embedding the asset.
//
//	@Summary		Upload an image or sound
//	@Tags			assets
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Asset file"
//	@Param			label	formData	string	false	"Tag text"
//	@Success		201		{object}	AssetUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxSize+1<<20)

	if err := r.ParseMultipartForm(assets.MaxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, assets.MaxSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	a, err := h.lib.Save(header.Filename, r.FormValue("label"), data)
	if err != nil {
		writeError(w, "upload asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
