package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

type correlationKey struct{}

// WithCorrelationID 把请求的 Correlation ID 带入 ctx，投递任务时写入负载。
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID 取出 ctx 中的 Correlation ID。
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Enqueuer 是 asynq.Client 中投递任务的部分。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SnapshotQueue 投递模板缩略图任务。
type SnapshotQueue struct {
	client Enqueuer
}

// NewSnapshotQueue 返回 SnapshotQueue。
func NewSnapshotQueue(client Enqueuer) *SnapshotQueue {
	return &SnapshotQueue{client: client}
}

// EnqueueSnapshot 为模板投递缩略图任务，同一模板短时间内的重复投递会被合并。
func (q *SnapshotQueue) EnqueueSnapshot(ctx context.Context, templateID uint) error {
	task, err := NewTemplateSnapshotTask(templateID, CorrelationID(ctx))
	if err != nil {
		return fmt.Errorf("build snapshot task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.TaskID(fmt.Sprintf("snapshot:%d:%d", templateID, time.Now().Unix()/10)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue snapshot for template %d: %w", templateID, err)
	}
	return nil
}
