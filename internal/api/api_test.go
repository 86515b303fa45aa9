package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/assets"
	"github.com/starford/keycat/internal/catalog"
	"github.com/starford/keycat/internal/entryservice"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/models"
	"github.com/starford/keycat/internal/testutil"
)

type testEnv struct {
	svc       *entryservice.Service
	router    http.Handler
	path      string
	assetsDir string
}

// newEnv builds a service over a catalog file holding lines, with autosave on.
// An empty token means auth is disabled.
func newEnv(t *testing.T, token string, lines ...string) testEnv {
	t.Helper()
	return newEnvWithSSE(t, token, nil, lines...)
}

func newEnvWithSSE(t *testing.T, token string, sseHandler http.Handler, lines ...string) testEnv {
	t.Helper()
	path := testutil.MissingCatalog(t)
	if len(lines) > 0 {
		path = testutil.CatalogFile(t, lines...)
	}
	svc := entryservice.New(catalog.New(catalog.WithLogger(testutil.Logger())), path,
		entryservice.WithAutosave(true),
		entryservice.WithLogger(testutil.Logger()))
	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	dir, store := testutil.TestAssets(t)
	router := NewRouter(svc, assets.New(store), token != "", token, sseHandler)
	return testEnv{svc: svc, router: router, path: path, assetsDir: dir}
}

func (e testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestCreateAndGetEntry(t *testing.T) {
	env := newEnv(t, "")

	w := env.do(t, http.MethodPost, "/entries", EntryRequest{Key: "copy", Description: `see <link="https://x.io" text="docs">`})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Entry](t, w)
	if created.ID == uuid.Nil || len(created.Description()) != 2 {
		t.Fatalf("created = %+v", created)
	}

	w = env.do(t, http.MethodGet, "/entries/"+created.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[models.Entry](t, w)
	if got.Key != "copy" || got.Description()[1].Kind != markup.KindLink {
		t.Errorf("got = %+v", got)
	}

	if data := testutil.ReadFile(t, env.path); !strings.Contains(data, "copy:see <link=\"https\\://x.io\" text=\"docs\">") {
		t.Errorf("catalog file = %q", data)
	}
}

func TestCreateEntry_Invalid(t *testing.T) {
	env := newEnv(t, "")

	if w := env.do(t, http.MethodPost, "/entries", EntryRequest{Key: "", Description: "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("empty key = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestCreateEntry_Duplicate(t *testing.T) {
	env := newEnv(t, "", "2", "copy:ctrl+c")
	if w := env.do(t, http.MethodPost, "/entries", EntryRequest{Key: "copy", Description: "again"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", w.Code)
	}
}

func TestUpdateEntry(t *testing.T) {
	env := newEnv(t, "", "2", "a:1", "b:2")
	list := decode[EntryListResponse](t, env.do(t, http.MethodGet, "/entries", nil))
	id := list.Entries[0].ID

	w := env.do(t, http.MethodPut, "/entries/"+id.String(), EntryRequest{Key: "a", Description: "changed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if got := testutil.ReadFile(t, env.path); got != "2\na:changed\nb:2\n" {
		t.Errorf("catalog file = %q", got)
	}
}

func TestUpdateEntry_NotFound(t *testing.T) {
	env := newEnv(t, "")
	w := env.do(t, http.MethodPut, "/entries/"+uuid.NewString(), EntryRequest{Key: "k", Description: "v"})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	env := newEnv(t, "", "2", "a:1")
	id := decode[EntryListResponse](t, env.do(t, http.MethodGet, "/entries", nil)).Entries[0].ID

	if w := env.do(t, http.MethodDelete, "/entries/"+id.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/entries/"+id.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/entries/"+id.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestGetEntry_BadID(t *testing.T) {
	env := newEnv(t, "")
	if w := env.do(t, http.MethodGet, "/entries/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestListEntries_Search(t *testing.T) {
	env := newEnv(t, "", "2", "apple:fruit", "appetizer:starter", "banana:fruit")

	all := decode[EntryListResponse](t, env.do(t, http.MethodGet, "/entries", nil))
	if all.Total != 3 || all.Entries[0].Key != "apple" || all.Entries[2].Key != "banana" {
		t.Errorf("list = %+v", all)
	}

	hits := decode[EntryListResponse](t, env.do(t, http.MethodGet, "/entries?q=app", nil))
	if hits.Total != 2 {
		t.Errorf("q=app total = %d, want 2", hits.Total)
	}

	desc := decode[EntryListResponse](t, env.do(t, http.MethodGet, "/entries?q=starter&field=description", nil))
	if desc.Total != 1 || desc.Entries[0].Key != "appetizer" {
		t.Errorf("description search = %+v", desc)
	}

	if w := env.do(t, http.MethodGet, "/entries?field=title", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}
}

func TestCatalogReloadAndSave(t *testing.T) {
	env := newEnv(t, "", "1", "a:1")

	w := env.do(t, http.MethodPost, "/catalog/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d", w.Code)
	}
	if got := testutil.ReadFile(t, env.path); got != "2\na:1\n" {
		t.Errorf("saved = %q", got)
	}

	if err := os.WriteFile(env.path, []byte("2\na:1\nb:2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w = env.do(t, http.MethodPost, "/catalog/reload", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reload = %d", w.Code)
	}
	resp := decode[CatalogResponse](t, w)
	if resp.Entries != 2 || resp.Checksum == "" || resp.Path != env.path {
		t.Errorf("reload response = %+v", resp)
	}

	if err := os.WriteFile(env.path, []byte("9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := env.do(t, http.MethodPost, "/catalog/reload", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("too-new version = %d, want 422", w.Code)
	}
}

func TestMarkupEndpoints(t *testing.T) {
	env := newEnv(t, "")

	w := env.do(t, http.MethodPost, "/markup/parse", ParseMarkupRequest{Raw: `hi <sound="a.wav" text="beep"> there`})
	if w.Code != http.StatusOK {
		t.Fatalf("parse = %d", w.Code)
	}
	parsed := decode[ParseMarkupResponse](t, w)
	if len(parsed.Segments) != 3 || parsed.Segments[1] != markup.Sound("beep", "a.wav") || parsed.PlainText != "hi beep there" {
		t.Errorf("parsed = %+v", parsed)
	}

	w = env.do(t, http.MethodPost, "/markup/serialize", SerializeMarkupRequest{Segments: parsed.Segments})
	if w.Code != http.StatusOK {
		t.Fatalf("serialize = %d", w.Code)
	}
	if got := decode[SerializeMarkupResponse](t, w).Raw; got != `hi <sound="a.wav" text="beep"> there` {
		t.Errorf("raw = %q", got)
	}

	empty := decode[ParseMarkupResponse](t, env.do(t, http.MethodPost, "/markup/parse", ParseMarkupRequest{}))
	if empty.Segments == nil || len(empty.Segments) != 0 {
		t.Errorf("empty parse = %+v", empty)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newEnv(t, "secret123")

	body, _ := json.Marshal(EntryRequest{Key: "auth", Description: "test"})
	req := httptest.NewRequest(http.MethodPost, "/entries", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newEnv(t, "secret123")
	if w := env.do(t, http.MethodGet, "/entries", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	env := newEnv(t, "")
	if w := env.do(t, http.MethodGet, "/entries", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	env := newEnv(t, "secret123")
	if w := env.do(t, http.MethodGet, "/entries?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("query token GET = %d, want 200", w.Code)
	}
	w := env.do(t, http.MethodPost, "/catalog/save?access_token=secret123", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token POST = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

// blockingSSE writes headers and blocks until the client goes away.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newEnvWithSSE(t, "secret", blockingSSE)
	if w := env.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := newEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// Asset tests.

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, label string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	if label != "" {
		_ = mw.WriteField("label", label)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeAsset(t *testing.T) {
	env := newEnv(t, "")

	w := uploadFile(t, env.router, "cat.png", pngBytes, "my cat")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	a := decode[assets.Asset](t, w)
	if a.Tag != `<image="cat.png" text="my cat">` {
		t.Errorf("tag = %q", a.Tag)
	}
	if data, err := os.ReadFile(filepath.Join(env.assetsDir, "cat.png")); err != nil || !bytes.Equal(data, pngBytes) {
		t.Fatalf("file on disk: %v", err)
	}

	w = env.do(t, http.MethodGet, "/assets/cat.png", nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngBytes) {
		t.Errorf("serve = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	list := decode[AssetListResponse](t, env.do(t, http.MethodGet, "/assets", nil))
	if len(list.Assets) != 1 || list.Assets[0].Name != "cat.png" {
		t.Errorf("list = %+v", list)
	}
}

func TestServeAsset_NotFound(t *testing.T) {
	env := newEnv(t, "")
	if w := env.do(t, http.MethodGet, "/assets/nope.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

func TestServeAsset_PublicWithAuth(t *testing.T) {
	env := newEnv(t, "secret")
	if w := env.do(t, http.MethodGet, "/assets/nope.png", nil); w.Code == http.StatusUnauthorized {
		t.Error("asset downloads should not require auth")
	}
}

func TestServeAsset_TraversalBlocked(t *testing.T) {
	env := newEnv(t, "")
	for _, name := range []string{"../secret.md", "..%2F..%2Fetc%2Fpasswd"} {
		if w := env.do(t, http.MethodGet, "/assets/"+name, nil); w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

func TestUploadAsset_Rejected(t *testing.T) {
	env := newEnv(t, "")
	if w := uploadFile(t, env.router, "run.exe", []byte("MZ"), ""); w.Code != http.StatusBadRequest {
		t.Errorf("exe upload = %d, want 400", w.Code)
	}
	if w := uploadFile(t, env.router, "a.png", pngBytes, ""); w.Code != http.StatusCreated {
		t.Fatalf("first upload = %d", w.Code)
	}
	if w := uploadFile(t, env.router, "a.png", pngBytes, ""); w.Code != http.StatusConflict {
		t.Errorf("duplicate upload = %d, want 409", w.Code)
	}
}

func TestUploadAsset_AuthProtected(t *testing.T) {
	env := newEnv(t, "secret")
	if w := uploadFile(t, env.router, "x.png", pngBytes, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadAsset_MissingFileField(t *testing.T) {
	env := newEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
