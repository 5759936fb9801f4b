package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore 是进程内实现，命令行工具与测试使用。
// 记录以 JSON 形式保存，读写与 RedisStore 语义一致。
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryStore 创建空的内存草稿存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	data, ok := s.records[Key(key)]
	s.mu.Unlock()
	if !ok {
		return Record{}, false, nil
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, false, fmt.Errorf("decode draft %q: %w", key, err)
	}
	return record, true, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode draft %q: %w", key, err)
	}
	s.mu.Lock()
	s.records[Key(key)] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.records, Key(key))
	s.mu.Unlock()
	return nil
}
