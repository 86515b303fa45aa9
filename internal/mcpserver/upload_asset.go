package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/keycat/internal/assets"
)

const maxRedirects = 5

// fetch is swapped in tests.
var fetch = fetchHTTP

var downloadClient = &http.Client{
	Timeout: 30 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects (max %d)", maxRedirects)
		}
		return checkBlockedHost(req.Context(), req.URL.Hostname())
	},
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, ext, err := readSource(ctx, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := optionalString(req, "filename")
	if name == "" {
		name = filenameFromURL(source, ext)
	}

	a, err := s.assets.Save(name, optionalString(req, "label"), data)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(a), nil
}

// readSource returns the bytes behind a data: URI or an http(s) URL along with
// the file extension implied by its media type, if any.
func readSource(ctx context.Context, source string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(source, "data:"); ok {
		return decodeDataURI(rest)
	}
	return fetch(ctx, source)
}

// decodeDataURI decodes the part of a data URI after "data:". Only base64
// payloads of a supported image or sound type are accepted.
func decodeDataURI(rest string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("invalid data URI: no comma before the payload")
	}
	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return nil, "", errors.New("data URI must be base64 encoded")
	}
	ext := assets.ExtForMIME(params[0])
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported media type %q", params[0])
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients drop the padding.
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, "", fmt.Errorf("data URI payload: %w", err)
		}
	}
	return data, ext, nil
}

func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme %q (only http and https)", u.Scheme)
	}
	if err := checkBlockedHost(ctx, u.Hostname()); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, assets.MaxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("download: read body: %w", err)
	}
	if len(data) > assets.MaxSize {
		return nil, "", fmt.Errorf("download: larger than %d bytes", assets.MaxSize)
	}
	return data, assets.ExtForMIME(resp.Header.Get("Content-Type")), nil
}

// checkBlockedHost refuses hosts that resolve to this machine or to a
// link-local address such as a cloud metadata endpoint. Resolution failures
// are left for the HTTP client to report.
func checkBlockedHost(ctx context.Context, host string) error {
	if host == "localhost" || host == "metadata.google.internal" {
		return fmt.Errorf("blocked host %s", host)
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else if addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host); err == nil {
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			return fmt.Errorf("blocked host %s (%s)", host, ip)
		}
	}
	return nil
}

// filenameFromURL takes the last path element of an http(s) URL and falls
// back to a random name with ext.
func filenameFromURL(source, ext string) string {
	if !strings.HasPrefix(source, "data:") {
		if u, err := url.Parse(source); err == nil {
			if base := path.Base(u.Path); base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}
