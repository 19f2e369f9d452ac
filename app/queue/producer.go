package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type TaskProducer struct {
	client *redis.Client
}

// NewTaskProducer constructs a Redis stream producer.
func NewTaskProducer(client *redis.Client) *TaskProducer {
	return &TaskProducer{client: client}
}

// Publish pushes a task invocation onto the stream.
func (p *TaskProducer) Publish(ctx context.Context, msg TaskMessage) error {
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]interface{}{
			"task_id": msg.TaskID,
			"name":    msg.Name,
			"args":    string(msg.Args),
			"kwargs":  string(msg.Kwargs),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", StreamName, err)
	}
	return nil
}
