package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 缩略图完成/失败时经 Redis Pub/Sub 推送给 WebSocket 订阅者的消息。
// 字段名与前端解析保持一致。
type TemplateSnapshotNotifyMessage struct {
	Status        string `json:"status"`
	TemplateID    uint   `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
	PreviewKey    string `json:"preview_key,omitempty"`
}

const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// TemplateNotifyChannel 返回模板通知频道名。
func TemplateNotifyChannel(templateID uint) string {
	return fmt.Sprintf("template_notify:%d", templateID)
}

// Publisher 是 Redis 客户端中发布消息的部分。
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

func publishNotify(ctx context.Context, publisher Publisher, notify TemplateSnapshotNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := TemplateNotifyChannel(notify.TemplateID)
	if err := publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
