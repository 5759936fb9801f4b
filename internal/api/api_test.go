package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvBuilder/internal/database"
	"cvBuilder/internal/draft"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/templates"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.objects[objectName] = b
	s.mu.Unlock()
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *memoryStore) PublicURL(_ context.Context, objectKey string) (string, error) {
	return "https://cdn.example.invalid/" + objectKey, nil
}

func (s *memoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

func (s *memoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for key := range s.objects {
		out = append(out, key)
	}
	return out
}

type fakeScanner struct{}

func (fakeScanner) Scan(r io.Reader) error {
	b, _ := io.ReadAll(r)
	if bytes.Contains(b, []byte("EICAR")) {
		return fmt.Errorf("%w: Eicar-Test-Signature", ErrInfected)
	}
	return nil
}

type testEnv struct {
	router *gin.Engine
	store  *memoryStore
	drafts *draft.MemoryStore
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemoryStore()
	drafts := draft.NewMemoryStore()
	repo := templates.NewRepository(db, store, templates.WithLogger(logger))

	router := NewRouter(logger)
	RegisterRoutes(router, Dependencies{
		Templates:            repo,
		Sessions:             editor.NewRegistry(repo, drafts, logger),
		Storage:              store,
		Scanner:              fakeScanner{},
		Redis:                rdb,
		MaxPreviewBytes:      1 << 20,
		MaxAvatarBytes:       1 << 10,
		UploadLimitPerMinute: 3,
	})
	return &testEnv{router: router, store: store, drafts: drafts, mr: mr, rdb: rdb}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, target, strings.NewReader(body), "application/json")
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

const (
	testLayout = `{"columns":3,"rows":[{"id":"r1","columns":[{"id":"c1","sections":["avatar"]},{"id":"c2","colSpan":2,"sections":["name","skills"]}]}]}`
	testTheme  = `{"color":"#333333","language":"en"}`
)

func createTemplate(t *testing.T, e *testEnv, name string, files ...formFile) string {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{
		"name":       name,
		"layoutJson": testLayout,
		"themeJson":  testTheme,
	}, files...)
	w := e.do(t, http.MethodPost, "/v1/templates", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	return decode[map[string]string](t, w)["id"]
}

func TestTemplateCRUD(t *testing.T) {
	e := newTestEnv(t)

	id := createTemplate(t, e, "Classic", formFile{field: "preview", name: "p.png", data: pngBytes})
	if id == "" {
		t.Fatal("expected id")
	}
	if diff := cmp.Diff([]string{"thumbnails/template/" + id + "/preview.png"}, e.store.keys()); diff != "" {
		t.Fatalf("uploaded objects (-want +got):\n%s", diff)
	}

	w := e.do(t, http.MethodGet, "/v1/templates/"+id, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	detail := decode[templateDetailResponse](t, w)
	if detail.Name != "Classic" || !strings.HasSuffix(detail.PreviewURL, "/preview.png") {
		t.Fatalf("detail = %+v", detail)
	}
	if !strings.Contains(detail.LayoutJSON, `"skills"`) || !strings.Contains(detail.ThemeJSON, `"#333333"`) {
		t.Fatalf("documents = %s / %s", detail.LayoutJSON, detail.ThemeJSON)
	}

	body, ct := multipartBody(t, map[string]string{"name": "Renamed", "layoutJson": testLayout, "themeJson": "{}"})
	if w := e.do(t, http.MethodPut, "/v1/templates/"+id, body, ct); w.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/v1/templates", nil, "")
	list := decode[struct {
		Items []templates.Summary `json:"items"`
	}](t, w)
	if len(list.Items) != 1 || list.Items[0].Name != "Renamed" {
		t.Fatalf("list = %+v", list.Items)
	}

	if w := e.do(t, http.MethodDelete, "/v1/templates/"+id, nil, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if len(e.store.keys()) != 0 {
		t.Fatalf("preview objects left behind: %v", e.store.keys())
	}
	if w := e.do(t, http.MethodGet, "/v1/templates/"+id, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d", w.Code)
	}
}

func TestDeleteTemplateDropsDraft(t *testing.T) {
	e := newTestEnv(t)
	id := createTemplate(t, e, "Doomed")

	e.doJSON(t, http.MethodPut, "/v1/editor/"+id+"/name", `{"name":"Unsaved edit"}`)
	if _, ok, _ := e.drafts.Load(context.Background(), id); !ok {
		t.Fatal("expected draft after edit")
	}

	if w := e.do(t, http.MethodDelete, "/v1/templates/"+id, nil, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if _, ok, _ := e.drafts.Load(context.Background(), id); ok {
		t.Fatal("draft of a deleted template must be removed")
	}
	if w := e.do(t, http.MethodGet, "/v1/editor/"+id, nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("editor for deleted template status = %d", w.Code)
	}
}

func TestTemplateFormValidation(t *testing.T) {
	e := newTestEnv(t)

	cases := []struct {
		name   string
		fields map[string]string
		files  []formFile
		status int
	}{
		{"missing name", map[string]string{"layoutJson": testLayout, "themeJson": "{}"}, nil, http.StatusBadRequest},
		{"unknown section", map[string]string{"name": "x", "layoutJson": `{"columns":1,"rows":[{"id":"r","columns":[{"id":"c","sections":["hobby"]}]}]}`, "themeJson": "{}"}, nil, http.StatusBadRequest},
		{"bad color", map[string]string{"name": "x", "layoutJson": testLayout, "themeJson": `{"color":"red"}`}, nil, http.StatusBadRequest},
		{"preview not png", map[string]string{"name": "x", "layoutJson": testLayout, "themeJson": "{}"}, []formFile{{"preview", "p.png", []byte("plain text")}}, http.StatusBadRequest},
		{"preview too large", map[string]string{"name": "x", "layoutJson": testLayout, "themeJson": "{}"}, []formFile{{"preview", "p.png", bytes.Repeat(pngBytes, 1<<15)}}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.fields, tc.files...)
			w := e.do(t, http.MethodPost, "/v1/templates", body, ct)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tc.status, w.Body.String())
			}
		})
	}

	if w := e.do(t, http.MethodGet, "/v1/templates/abc", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", w.Code)
	}
}

func TestRenderJSONAndHTML(t *testing.T) {
	e := newTestEnv(t)
	body := `{"layout":` + testLayout + `,"theme":` + testTheme + `,"content":{"avatar":"avatars/a.png","name":"Jane","skills":"**Go**"}}`

	w := e.doJSON(t, http.MethodPost, "/v1/render", body)
	if w.Code != http.StatusOK {
		t.Fatalf("render status = %d body=%s", w.Code, w.Body.String())
	}
	out := w.Body.String()
	if !strings.Contains(out, "https://cdn.example.invalid/avatars/a.png") {
		t.Fatalf("avatar not signed: %s", out)
	}
	if !strings.Contains(out, `"label":"SKILLS"`) {
		t.Fatalf("english label missing: %s", out)
	}

	w = e.doJSON(t, http.MethodPost, "/v1/render?format=html", body)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("html status = %d type=%q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), `id="a4-container"`) {
		t.Fatalf("html missing page container")
	}

	external := `{"content":{"avatar":"https://example.org/me.png"}}`
	w = e.doJSON(t, http.MethodPost, "/v1/render", external)
	if w.Code != http.StatusOK {
		t.Fatalf("default layout render status = %d", w.Code)
	}

	if w := e.doJSON(t, http.MethodPost, "/v1/render", `{"content":{"hobby":"x"}}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown content section status = %d", w.Code)
	}
}

func TestEditorNewTemplateFlow(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/v1/editor/new", nil, "")
	state := decode[editorStateResponse](t, w)
	if state.Source != editor.SourceDefault || state.Key != draft.NewKey {
		t.Fatalf("initial state = %+v", state)
	}

	w = e.doJSON(t, http.MethodPatch, "/v1/editor/new/theme", `{"sizeName":"30","color":"not-a-color","language":"en"}`)
	state = decode[editorStateResponse](t, w)
	if state.Source != editor.SourceDraft || state.Labels["skills"] != "SKILLS" {
		t.Fatalf("after theme: %+v", state)
	}
	if state.Theme.SizeName == nil || *state.Theme.SizeName != 30 {
		t.Fatalf("sizeName not coerced: %+v", state.Theme)
	}

	e.doJSON(t, http.MethodPut, "/v1/editor/new/name", `{"name":"Fresh"}`)

	dup := `{"columns":1,"rows":[{"id":"r","columns":[{"id":"c","sections":["name","name"]}]}]}`
	w = e.doJSON(t, http.MethodPut, "/v1/editor/new/layout", dup)
	state = decode[editorStateResponse](t, w)
	if len(state.Issues) == 0 {
		t.Fatalf("expected duplicate section issue")
	}

	record, ok, _ := e.drafts.Load(context.Background(), draft.NewKey)
	if !ok || record.Name != "Fresh" {
		t.Fatalf("draft = %+v ok=%v", record, ok)
	}

	w = e.do(t, http.MethodPost, "/v1/editor/new/save", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d body=%s", w.Code, w.Body.String())
	}
	id := decode[map[string]string](t, w)["id"]
	if _, ok, _ := e.drafts.Load(context.Background(), draft.NewKey); ok {
		t.Fatal("draft should be cleared after save")
	}

	w = e.do(t, http.MethodGet, "/v1/editor/"+id, nil, "")
	state = decode[editorStateResponse](t, w)
	if state.Source != editor.SourceServer || state.Name != "Fresh" || state.TemplateID != id {
		t.Fatalf("saved state = %+v", state)
	}

	w = e.do(t, http.MethodGet, "/v1/editor/new", nil, "")
	if state := decode[editorStateResponse](t, w); state.Name == "Fresh" {
		t.Fatal("new session should start from defaults again")
	}
}

func TestEditorPreviewAndDiscard(t *testing.T) {
	e := newTestEnv(t)
	id := createTemplate(t, e, "Base")

	e.doJSON(t, http.MethodPut, "/v1/editor/"+id+"/name", `{"name":"Edited"}`)
	if _, ok, _ := e.drafts.Load(context.Background(), id); !ok {
		t.Fatal("expected draft after edit")
	}

	w := e.doJSON(t, http.MethodPost, "/v1/editor/"+id+"/preview", `{"name":"Jane"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Jane") {
		t.Fatalf("preview status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<title>Edited</title>") {
		t.Fatalf("preview title missing")
	}

	if w := e.do(t, http.MethodDelete, "/v1/editor/"+id+"/draft", nil, ""); w.Code != http.StatusNoContent {
		t.Fatalf("discard status = %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/v1/editor/"+id, nil, "")
	state := decode[editorStateResponse](t, w)
	if state.Source != editor.SourceServer || state.Name != "Base" {
		t.Fatalf("after discard = %+v", state)
	}

	if w := e.do(t, http.MethodGet, "/v1/editor/999", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing template status = %d", w.Code)
	}
}

func TestUploadAvatar(t *testing.T) {
	e := newTestEnv(t)

	upload := func(data []byte) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, nil, formFile{field: "file", name: "Me.PNG", data: data})
		return e.do(t, http.MethodPost, "/v1/assets/avatar", body, ct)
	}

	w := upload(pngBytes)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", w.Code, w.Body.String())
	}
	resp := decode[map[string]string](t, w)
	if !strings.HasPrefix(resp["objectKey"], "avatars/") || !strings.HasSuffix(resp["objectKey"], ".png") {
		t.Fatalf("object key = %q", resp["objectKey"])
	}

	if w := upload([]byte("just text")); w.Code != http.StatusBadRequest {
		t.Fatalf("text upload status = %d", w.Code)
	}
	if w := upload(append(append([]byte{}, pngBytes...), "EICAR"...)); w.Code != http.StatusBadRequest {
		t.Fatalf("infected upload status = %d", w.Code)
	}
	if w := upload(bytes.Repeat(pngBytes, 64)); w.Code != http.StatusTooManyRequests {
		t.Fatalf("rate limited upload status = %d", w.Code)
	}
}

func TestUploadAvatarTooLarge(t *testing.T) {
	e := newTestEnv(t)
	body, ct := multipartBody(t, nil, formFile{field: "file", name: "big.png", data: bytes.Repeat(pngBytes, 64)})
	if w := e.do(t, http.MethodPost, "/v1/assets/avatar", body, ct); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetAssetURL(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/v1/assets/url?key=avatars/abc.png", nil, "")
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["url"] != "https://cdn.example.invalid/avatars/abc.png" {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	for _, key := range []string{"secrets/db.env", "avatars/../x.png", "avatars/a.txt"} {
		if w := e.do(t, http.MethodGet, "/v1/assets/url?key="+key, nil, ""); w.Code != http.StatusForbidden {
			t.Fatalf("key %q status = %d", key, w.Code)
		}
	}
	if w := e.do(t, http.MethodGet, "/v1/assets/url", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing key status = %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(t, http.MethodGet, "/health", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	w := e.do(t, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "cvbuilder_http_requests_total") {
		t.Fatalf("metrics status = %d", w.Code)
	}
}

func TestTemplateNotificationsWebSocket(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/templates/7"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	channel := "template_notify:7"
	deadline := time.Now().Add(2 * time.Second)
	for e.mr.PubSubNumSub(channel)[channel] == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	payload := `{"status":"completed","template_id":7}`
	e.mr.Publish(channel, payload)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != payload {
		t.Fatalf("message = %s", msg)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	h := NewWsHandler(nil, []string{"https://cv.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/v1/ws/templates/1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	if h.upgrader.CheckOrigin(req) {
		t.Fatal("foreign origin accepted")
	}
	req.Header.Set("Origin", "https://cv.example.com")
	if !h.upgrader.CheckOrigin(req) {
		t.Fatal("allowed origin rejected")
	}
}
