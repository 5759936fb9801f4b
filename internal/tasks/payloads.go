package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeTemplateSnapshot = "template:snapshot"
)

// TemplateSnapshotPayload 描述生成模板缩略图所需的最小信息。
type TemplateSnapshotPayload struct {
	TemplateID    uint   `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewTemplateSnapshotTask 构造一个新的模板缩略图任务。
func NewTemplateSnapshotTask(id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplateSnapshotPayload{
		TemplateID:    id,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplateSnapshot, payload), nil
}

// ParseTemplateSnapshotPayload 解析任务负载。
func ParseTemplateSnapshotPayload(t *asynq.Task) (TemplateSnapshotPayload, error) {
	var payload TemplateSnapshotPayload
	err := json.Unmarshal(t.Payload(), &payload)
	return payload, err
}
