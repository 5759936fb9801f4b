// Package editor 实现模板编辑会话：修改布局/主题/名称，镜像草稿并在保存后清理。
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cvBuilder/internal/cv"
	"cvBuilder/internal/draft"
	"cvBuilder/internal/render"
)

// ErrLoad 表示无法从持久化端取得模板。
var ErrLoad = errors.New("load template")

// Template 是持久化端返回的模板文档。
type Template struct {
	ID         string
	Name       string
	Layout     cv.Layout
	Theme      cv.Theme
	PreviewURL string
}

// Loader 读取已持久化的模板。
type Loader interface {
	FetchTemplate(ctx context.Context, id string) (Template, error)
}

// Persister 创建或更新模板，preview 为可选缩略图（PNG）。
type Persister interface {
	CreateTemplate(ctx context.Context, tpl Template, preview []byte) (string, error)
	UpdateTemplate(ctx context.Context, id string, tpl Template, preview []byte) (string, error)
}

// Source 表示会话初始文档的来源。
type Source string

const (
	SourceDefault Source = "default"
	SourceServer  Source = "server"
	SourceDraft   Source = "draft"
)

// Session 是单个模板的编辑会话，同一模板键只应有一个写者。
type Session struct {
	mu      sync.Mutex
	key     string
	id      string
	record  draft.Record
	source  Source
	drafts  draft.Store
	logger  *slog.Logger
	now     func() time.Time
	preview string
	rev     uint64
}

// Open 打开编辑会话。草稿存在时完全取代服务端/默认文档；草稿读取失败只记录日志。
func Open(ctx context.Context, templateID string, loader Loader, drafts draft.Store, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key := draft.Key(templateID)
	s := &Session{
		key:    key,
		drafts: drafts,
		logger: logger.With(slog.String("draft_key", key)),
		now:    time.Now,
	}
	if key != draft.NewKey {
		s.id = key
	}

	if drafts != nil {
		record, ok, err := drafts.Load(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("load draft failed, falling back to stored template", slog.Any("error", err))
		case ok:
			s.record = record
			s.source = SourceDraft
			s.logger.Info("editor session restored from draft")
			return s, nil
		}
	}

	if s.id == "" {
		s.record = draft.Record{
			Name:   defaultTemplateName,
			Layout: cv.DefaultLayout(),
			Theme:  cv.DefaultTheme(),
		}
		s.source = SourceDefault
		return s, nil
	}

	if loader == nil {
		return nil, fmt.Errorf("%w %q: no loader configured", ErrLoad, s.id)
	}
	tpl, err := loader.FetchTemplate(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrLoad, s.id, err)
	}
	s.record = draft.Record{
		Name:   tpl.Name,
		Layout: tpl.Layout.Clone(),
		Theme:  tpl.Theme.Clone(),
	}
	s.preview = tpl.PreviewURL
	s.source = SourceServer
	return s, nil
}

const defaultTemplateName = "Mẫu CV mới"

// Key 返回草稿键。
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// TemplateID 返回已持久化模板的 ID，新模板为空串。
func (s *Session) TemplateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Source 返回当前文档的来源。
func (s *Session) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// PreviewURL 返回服务端记录的缩略图地址（可能为空）。
func (s *Session) PreviewURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// Snapshot 返回当前记录的副本。
func (s *Session) Snapshot() draft.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecord(s.record)
}

// SetTheme 将 partial 浅合并进主题，输入被强制转换，不会失败。
func (s *Session) SetTheme(ctx context.Context, partial map[string]any) {
	s.mutate(ctx, func(r *draft.Record) {
		r.Theme = r.Theme.Merge(partial)
	})
}

// SetTemplateName 修改模板名称，与布局/主题无关。
func (s *Session) SetTemplateName(ctx context.Context, name string) {
	s.mutate(ctx, func(r *draft.Record) {
		r.Name = name
	})
}

// MutateLayout 整体替换布局，返回校验提示（只提示，不修正）。
func (s *Session) MutateLayout(ctx context.Context, layout cv.Layout) []cv.Issue {
	issues := cv.Validate(layout)
	for _, issue := range issues {
		s.logger.Warn("layout issue", slog.String("code", string(issue.Code)), slog.String("detail", issue.Message))
	}
	s.mutate(ctx, func(r *draft.Record) {
		r.Layout = layout.Clone()
	})
	return issues
}

// Preview 用当前布局/主题渲染实时预览。
func (s *Session) Preview(content cv.Content, opts ...render.Option) render.Tree {
	record := s.Snapshot()
	return render.Render(record.Layout, record.Theme, content, opts...)
}

// Save 持久化当前记录；成功后删除草稿并把会话绑定到持久化后的 ID。
// 保存期间又有修改时，草稿改挂到新 ID 下保留，来源仍为 draft。
// 失败时内存记录与草稿保持不变，由调用方决定是否重试。
func (s *Session) Save(ctx context.Context, persister Persister, preview []byte) (string, error) {
	s.mu.Lock()
	record := cloneRecord(s.record)
	id := s.id
	rev := s.rev
	s.mu.Unlock()

	tpl := Template{
		ID:     id,
		Name:   record.Name,
		Layout: record.Layout,
		Theme:  record.Theme,
	}

	var (
		savedID string
		err     error
	)
	if id == "" {
		savedID, err = persister.CreateTemplate(ctx, tpl, preview)
	} else {
		savedID, err = persister.UpdateTemplate(ctx, id, tpl, preview)
	}
	if err != nil {
		s.logger.Error("save template failed", slog.Any("error", err))
		return "", fmt.Errorf("save template: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey := s.key
	s.id = savedID
	s.key = draft.Key(savedID)
	s.logger = s.logger.With(slog.String("template_id", savedID))

	if s.rev != rev && s.drafts != nil {
		s.source = SourceDraft
		s.rebindDraft(ctx, oldKey)
		s.logger.Info("template saved, newer edits kept as draft")
		return savedID, nil
	}

	s.source = SourceServer
	if s.drafts != nil {
		if err := s.drafts.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("clear draft after save failed", slog.Any("error", err))
		}
	}
	s.logger.Info("template saved")
	return savedID, nil
}

// rebindDraft 把保存期间产生的草稿从旧键移到当前键，调用方持有锁。
func (s *Session) rebindDraft(ctx context.Context, oldKey string) {
	if err := s.drafts.Save(ctx, s.key, cloneRecord(s.record)); err != nil {
		s.logger.Warn("mirror draft failed", slog.Any("error", err))
		return
	}
	if oldKey == s.key {
		return
	}
	if err := s.drafts.Delete(ctx, oldKey); err != nil {
		s.logger.Warn("clear stale draft failed", slog.String("stale_key", oldKey), slog.Any("error", err))
	}
}

// Discard 显式清除草稿；内存中的记录不受影响。
func (s *Session) Discard(ctx context.Context) error {
	if s.drafts == nil {
		return nil
	}
	key := s.Key()
	if err := s.drafts.Delete(ctx, key); err != nil {
		return fmt.Errorf("discard draft: %w", err)
	}
	return nil
}

// mutate 在锁内修改记录并紧接着镜像草稿，保证草稿写入与修改同序。
// 草稿写失败只降级恢复能力，不影响编辑。
func (s *Session) mutate(ctx context.Context, fn func(*draft.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.record)
	s.rev++
	if s.drafts == nil {
		return
	}
	s.record.SavedAt = s.now().UTC()
	s.source = SourceDraft
	if err := s.drafts.Save(ctx, s.key, cloneRecord(s.record)); err != nil {
		s.logger.Warn("mirror draft failed", slog.Any("error", err))
	}
}

func cloneRecord(r draft.Record) draft.Record {
	return draft.Record{
		Name:    r.Name,
		Layout:  r.Layout.Clone(),
		Theme:   r.Theme.Clone(),
		SavedAt: r.SavedAt,
	}
}
