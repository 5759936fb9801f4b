package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvBuilder/internal/cv"
	"cvBuilder/internal/database"
	"cvBuilder/internal/editor"
	"cvBuilder/internal/errcode"
	"cvBuilder/internal/tasks"
	"cvBuilder/internal/templates"
)

type fakeStorage struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, contentType string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.objects[objectName] = b
	s.contentTypes[objectName] = contentType
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) ReadObject(_ context.Context, objectKey string) ([]byte, string, error) {
	b, ok := s.objects[objectKey]
	if !ok {
		return nil, "", minio.ErrorResponse{Code: "NoSuchKey"}
	}
	return b, s.contentTypes[objectKey], nil
}

type fakeCapturer struct {
	html string
	err  error
}

func (c *fakeCapturer) Capture(_ context.Context, html string) ([]byte, error) {
	c.html = html
	if c.err != nil {
		return nil, c.err
	}
	return []byte("\x89PNG\r\n\x1a\nfake"), nil
}

type fixture struct {
	db        *gorm.DB
	repo      *templates.Repository
	storage   *fakeStorage
	capturer  *fakeCapturer
	redis     *redis.Client
	handler   *SnapshotHandler
	templateN uint
}

func newFixture(t *testing.T, avatarKey string) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		db:       db,
		repo:     templates.NewRepository(db, nil),
		storage:  newFakeStorage(),
		capturer: &fakeCapturer{},
		redis:    client,
	}
	f.handler = NewSnapshotHandler(f.repo, f.storage, f.capturer, client, slog.New(slog.NewTextHandler(io.Discard, nil)), avatarKey)

	id, err := f.repo.CreateTemplate(context.Background(), editor.Template{
		Name:   "Snapshot me",
		Layout: cv.DefaultLayout(),
		Theme:  cv.DefaultTheme(),
	}, nil)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	pk, _ := templates.ParseID(id)
	f.templateN = pk
	return f
}

func (f *fixture) subscribe(t *testing.T) *redis.PubSub {
	t.Helper()
	sub := f.redis.Subscribe(context.Background(), TemplateNotifyChannel(f.templateN))
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func receiveNotify(t *testing.T, sub *redis.PubSub) TemplateSnapshotNotifyMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive notification: %v", err)
	}
	var notify TemplateSnapshotNotifyMessage
	if err := json.Unmarshal([]byte(msg.Payload), &notify); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	return notify
}

func snapshotTask(t *testing.T, id uint) *asynq.Task {
	t.Helper()
	task, err := tasks.NewTemplateSnapshotTask(id, "corr-7")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestSnapshotHandlerStoresPreview(t *testing.T) {
	f := newFixture(t, "avatars/sample.png")
	f.storage.objects["avatars/sample.png"] = []byte("avatar-bytes")
	f.storage.contentTypes["avatars/sample.png"] = "image/png"
	sub := f.subscribe(t)

	if err := f.handler.ProcessTask(context.Background(), snapshotTask(t, f.templateN)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	key := fmt.Sprintf("thumbnails/template/%d/preview.png", f.templateN)
	if !strings.HasPrefix(string(f.storage.objects[key]), "\x89PNG") {
		t.Fatalf("snapshot not uploaded to %q", key)
	}
	model, err := f.repo.Get(context.Background(), f.templateN)
	if err != nil || model.PreviewObjectKey != key {
		t.Fatalf("preview key = %q, err = %v", model.PreviewObjectKey, err)
	}
	if !strings.Contains(f.capturer.html, "data:image/png;base64,") {
		t.Fatal("avatar should be inlined as a data URI")
	}
	if !strings.Contains(f.capturer.html, "Nguyễn Văn A") {
		t.Fatal("sample content missing from snapshot page")
	}

	notify := receiveNotify(t, sub)
	if notify.Status != StatusCompleted || notify.ErrorCode != errcode.OK || notify.PreviewKey != key || notify.CorrelationID != "corr-7" {
		t.Fatalf("notification = %+v", notify)
	}
}

func TestSnapshotHandlerMissingAvatarStillCompletes(t *testing.T) {
	f := newFixture(t, "avatars/gone.png")
	sub := f.subscribe(t)

	if err := f.handler.ProcessTask(context.Background(), snapshotTask(t, f.templateN)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	notify := receiveNotify(t, sub)
	if notify.Status != StatusCompleted || notify.ErrorCode != errcode.ResourceMissing {
		t.Fatalf("notification = %+v", notify)
	}
}

func TestSnapshotHandlerSkipsMissingTemplate(t *testing.T) {
	f := newFixture(t, "")
	if err := f.handler.ProcessTask(context.Background(), snapshotTask(t, f.templateN+100)); err != nil {
		t.Fatalf("missing template should be skipped, got %v", err)
	}
	if f.capturer.html != "" {
		t.Fatal("capture should not run for a missing template")
	}
}

func TestSnapshotHandlerCaptureFailure(t *testing.T) {
	f := newFixture(t, "")
	f.capturer.err = errors.New("chromium crashed")

	err := f.handler.ProcessTask(context.Background(), snapshotTask(t, f.templateN))
	if err == nil || !strings.Contains(err.Error(), "chromium crashed") {
		t.Fatalf("expected capture error, got %v", err)
	}
	if errcode.Of(err) != errcode.CaptureFailed {
		t.Fatalf("error code = %d", errcode.Of(err))
	}
	model, _ := f.repo.Get(context.Background(), f.templateN)
	if model.PreviewObjectKey != "" {
		t.Fatal("preview key must not be set when capture fails")
	}
}

func TestSnapshotHandlerBadPayload(t *testing.T) {
	f := newFixture(t, "")
	err := f.handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeTemplateSnapshot, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestSnapshotHandlerCorruptTemplateNotifies(t *testing.T) {
	f := newFixture(t, "")
	if err := f.db.Model(&database.Template{}).
		Where("id = ?", f.templateN).
		Update("layout_json", datatypes.JSON(`{"columns":"wide"}`)).Error; err != nil {
		t.Fatalf("corrupt template: %v", err)
	}
	sub := f.subscribe(t)

	err := f.handler.ProcessTask(context.Background(), snapshotTask(t, f.templateN))
	if !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, cv.ErrMalformedDocument) {
		t.Fatalf("expected SkipRetry wrapping a malformed document, got %v", err)
	}
	notify := receiveNotify(t, sub)
	if notify.Status != StatusError || notify.ErrorCode != errcode.InvalidTemplate {
		t.Fatalf("notification = %+v", notify)
	}
}
