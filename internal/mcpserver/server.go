// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the keycat catalog to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/keycat/internal/apperr"
	"github.com/starford/keycat/internal/assets"
	"github.com/starford/keycat/internal/entryservice"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/models"
	"github.com/starford/keycat/internal/search"
)

const markupFormatURI = "keycat://markup-format"

// Server wraps the MCP server with keycat tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *entryservice.Service
	assets *assets.Library
}

// New creates a new MCP server with all keycat tools registered.
func New(svc *entryservice.Service, lib *assets.Library) *Server {
	s := &Server{svc: svc, assets: lib}

	s.mcp = server.NewMCPServer(
		"keycat",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Fuzzy-search catalog entries. An empty query lists the whole catalog in order."),
		mcp.WithString("query", mcp.Description("Search query; characters must appear in order")),
		mcp.WithString("field", mcp.Description("Field to match: key (default) or description")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Read one entry by id or by key, including its parsed description."),
		mcp.WithString("id", mcp.Description("Entry id")),
		mcp.WithString("key", mcp.Description("Entry key, used when id is empty")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("add_entry",
		mcp.WithDescription("Add an entry to the catalog. The description MUST follow the markup "+
			"format contract; read it first via get_markup_contract or the "+markupFormatURI+" resource."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Entry key")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Description text with optional markup tags")),
	), s.addEntry)

	s.mcp.AddTool(mcp.NewTool("update_entry",
		mcp.WithDescription("Replace the key and description of an existing entry."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithString("key", mcp.Required(), mcp.Description("New key")),
		mcp.WithString("description", mcp.Required(), mcp.Description("New description")),
	), s.updateEntry)

	s.mcp.AddTool(mcp.NewTool("delete_entry",
		mcp.WithDescription("Delete an entry from the catalog."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	), s.deleteEntry)

	s.mcp.AddTool(mcp.NewTool("parse_markup",
		mcp.WithDescription("Split description text into text, link, image and sound segments."),
		mcp.WithString("raw", mcp.Required(), mcp.Description("Description text")),
	), s.parseMarkup)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the keycat markup format contract. "+
			"Call this before adding or updating entries."),
	), s.getMarkupContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image or sound from an http(s) URL or a base64 data URI. "+
			"Returns a markup tag to paste into a description."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("File name to store under")),
		mcp.WithString("label", mcp.Description("Tag text; defaults to the file name")),
	), s.uploadAsset)

	s.mcp.AddResource(
		mcp.NewResource(markupFormatURI, "Markup Format Contract",
			mcp.WithResourceDescription("Catalog entry and description markup format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkupFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optionalString(req mcp.CallToolRequest, name string) string {
	if v, err := req.RequireString(name); err == nil {
		return v
	}
	return ""
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err))
	}
}

func requireID(req mcp.CallToolRequest) (uuid.UUID, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := search.ParseField(optionalString(req, "field"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries := s.svc.List(ctx, optionalString(req, "query"), field)
	if entries == nil {
		entries = []models.Entry{}
	}
	return jsonResult(entries), nil
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		e   models.Entry
		err error
	)
	switch key := optionalString(req, "key"); {
	case optionalString(req, "id") != "":
		id, idErr := requireID(req)
		if idErr != nil {
			return mcp.NewToolResultError(idErr.Error()), nil
		}
		e, err = s.svc.Get(ctx, id)
	case key != "":
		e, err = s.svc.FindByKey(ctx, key)
	default:
		return mcp.NewToolResultError("id or key is required"), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(e), nil
}

func (s *Server) addEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.Create(ctx, key, desc)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(e), nil
}

func (s *Server) updateEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.Update(ctx, id, key, desc)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(e), nil
}

func (s *Server) deleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) parseMarkup(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("raw")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	segs := markup.Parse(raw)
	if segs == nil {
		segs = []markup.Segment{}
	}
	return jsonResult(segs), nil
}

func (s *Server) getMarkupContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupFormatContract), nil
}

func (s *Server) readMarkupFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      markupFormatURI,
			MIMEType: "text/markdown",
			Text:     MarkupFormatContract,
		},
	}, nil
}
