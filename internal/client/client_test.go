package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvBuilder/internal/api"
	"cvBuilder/internal/cv"
	"cvBuilder/internal/database"
	"cvBuilder/internal/draft"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/templates"
)

func newTestServer(t *testing.T) *httptest.Server {
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

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := templates.NewRepository(db, nil, templates.WithLogger(logger))
	router := api.NewRouter(logger)
	api.RegisterRoutes(router, api.Dependencies{
		Templates:       repo,
		Sessions:        editor.NewRegistry(repo, draft.NewMemoryStore(), logger),
		MaxPreviewBytes: 1 << 20,
		MaxAvatarBytes:  1 << 20,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func sampleTemplate() editor.Template {
	return editor.Template{
		Name: "Sidebar",
		Layout: cv.Layout{Columns: 2, Rows: []cv.Row{
			{ID: "r1", Columns: []cv.Column{
				{ID: "left", Sections: []cv.SectionID{cv.SectionAvatar, cv.SectionSkills}},
				{ID: "right", Sections: []cv.SectionID{cv.SectionName, cv.SectionExperience}},
			}},
		}},
		Theme: cv.Theme{SizeName: cv.Float(28), ColorName: "#1a73e8", Language: cv.LanguageEN},
	}
}

func TestTemplateLifecycle(t *testing.T) {
	c := New(newTestServer(t).URL + "/")
	ctx := context.Background()

	id, err := c.CreateTemplate(ctx, sampleTemplate(), nil)
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}

	got, err := c.FetchTemplate(ctx, id)
	if err != nil {
		t.Fatalf("FetchTemplate: %v", err)
	}
	want := sampleTemplate()
	want.ID = id
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("template mismatch (-want +got):\n%s", diff)
	}

	got.Name = "Sidebar v2"
	if _, err := c.UpdateTemplate(ctx, id, got, nil); err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	items, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Sidebar v2" {
		t.Fatalf("items = %+v", items)
	}

	if err := c.DeleteTemplate(ctx, id); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := c.FetchTemplate(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEditorSessionOverHTTP(t *testing.T) {
	c := New(newTestServer(t).URL)
	ctx := context.Background()
	drafts := draft.NewMemoryStore()

	s, err := editor.Open(ctx, "", c, drafts, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetTemplateName(ctx, "Remote")
	id, err := s.Save(ctx, c, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := editor.Open(ctx, id, c, drafts, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Source() != editor.SourceServer || reopened.Snapshot().Name != "Remote" {
		t.Fatalf("reopened source=%s name=%q", reopened.Source(), reopened.Snapshot().Name)
	}
}

func TestRenderHTML(t *testing.T) {
	c := New(newTestServer(t).URL)
	tpl := sampleTemplate()

	body, err := c.Render(context.Background(), tpl.Layout, tpl.Theme, cv.Content{cv.SectionName: "Ada"}, "html")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(body), "Ada") || !strings.Contains(string(body), "cv-render-ready") {
		t.Fatalf("unexpected html: %s", body)
	}
}

func TestStatusErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"name is required"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateTemplate(context.Background(), editor.Template{}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Message != "name is required" {
		t.Fatalf("status error = %+v", statusErr)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("400 must not match ErrNotFound")
	}
}

func TestUploadAvatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/assets/avatar" {
			http.NotFound(w, r)
			return
		}
		fh, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fh.Close()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"objectKey":"avatars/%s","url":"https://cdn.example.invalid/x"}`, header.Filename)
	}))
	defer srv.Close()

	key, err := New(srv.URL).UploadAvatar(context.Background(), "me.png", []byte("\x89PNG\r\n\x1a\n"))
	if err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	if key != "avatars/me.png" {
		t.Fatalf("key = %q", key)
	}
}
