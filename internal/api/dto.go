package api

import (
	"github.com/starford/keycat/internal/assets"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/models"
)

// EntryRequest is the request body for creating or updating an entry.
type EntryRequest struct {
	Key         string `json:"key" example:"copy" validate:"required"`
	Description string `json:"description" example:"Copies the selection, see <link=\"https://example.com\" text=\"docs\">"`
}

// EntryListResponse wraps a ranked entry listing.
type EntryListResponse struct {
	Entries []models.Entry `json:"entries" validate:"required"`
	Total   int            `json:"total" example:"42" validate:"required"`
}

// CatalogResponse describes the catalog file after a reload or save.
type CatalogResponse struct {
	Path     string `json:"path" example:"./data.txt" validate:"required"`
	Checksum string `json:"checksum" example:"9f86d0..." validate:"required"`
	Entries  int    `json:"entries" example:"42" validate:"required"`
}

// ParseMarkupRequest carries raw description text.
type ParseMarkupRequest struct {
	Raw string `json:"raw" example:"see <image=\"cat.png\" text=\"cat\">"`
}

// ParseMarkupResponse is the parsed form of a description.
type ParseMarkupResponse struct {
	Segments  []markup.Segment `json:"segments" validate:"required"`
	PlainText string           `json:"plain_text" example:"see cat"`
}

// SerializeMarkupRequest carries description segments.
type SerializeMarkupRequest struct {
	Segments []markup.Segment `json:"segments" validate:"required"`
}

// SerializeMarkupResponse is the raw text of a segment list.
type SerializeMarkupResponse struct {
	Raw string `json:"raw" example:"see <image=\"cat.png\" text=\"cat\">"`
}

// AssetUploadResponse is returned after a successful asset upload.
type AssetUploadResponse = assets.Asset

// AssetListResponse wraps stored assets.
type AssetListResponse struct {
	Assets []assets.Asset `json:"assets" validate:"required"`
}
