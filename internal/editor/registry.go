package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cvBuilder/internal/draft"
)

// Registry 按草稿键缓存编辑会话，同一模板在进程内只有一个会话实例。
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	loader   Loader
	drafts   draft.Store
	logger   *slog.Logger
}

// NewRegistry 返回空的会话表。
func NewRegistry(loader Loader, drafts draft.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		loader:   loader,
		drafts:   drafts,
		logger:   logger,
	}
}

// Get 返回模板的编辑会话，不存在时打开一个新会话。
func (r *Registry) Get(ctx context.Context, templateID string) (*Session, error) {
	key := draft.Key(templateID)

	r.mu.Lock()
	s, ok := r.sessions[key]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	opened, err := Open(ctx, templateID, r.loader, r.drafts, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[key]; ok {
		return existing, nil
	}
	r.sessions[key] = opened
	return opened, nil
}

// Save 保存会话，并把会话从旧键迁移到持久化后的 ID 下。
func (r *Registry) Save(ctx context.Context, s *Session, persister Persister, preview []byte) (string, error) {
	oldKey := s.Key()
	id, err := s.Save(ctx, persister, preview)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[oldKey] == s {
		delete(r.sessions, oldKey)
	}
	r.sessions[s.Key()] = s
	return id, nil
}

// Forget 丢弃会话的内存状态，下次 Get 会重新加载。
func (r *Registry) Forget(templateID string) {
	r.mu.Lock()
	delete(r.sessions, draft.Key(templateID))
	r.mu.Unlock()
}

// Remove 在模板被删除后调用：丢弃会话并删除其草稿，避免重新打开时恢复已删除模板的草稿。
func (r *Registry) Remove(ctx context.Context, templateID string) error {
	r.Forget(templateID)
	if r.drafts == nil {
		return nil
	}
	if err := r.drafts.Delete(ctx, draft.Key(templateID)); err != nil {
		return fmt.Errorf("delete draft for template %s: %w", templateID, err)
	}
	return nil
}
