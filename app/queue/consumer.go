package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
)

// TaskRunner executes a named task.
type TaskRunner interface {
	Run(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error)
}

type TaskConsumer struct {
	client       *redis.Client
	runner       TaskRunner
	consumerName string
	log          logrus.FieldLogger
	runTimeout   time.Duration
}

// NewTaskConsumer constructs a Redis stream consumer.
func NewTaskConsumer(client *redis.Client, runner TaskRunner, consumerName string, logger logrus.FieldLogger) *TaskConsumer {
	return &TaskConsumer{
		client:       client,
		runner:       runner,
		consumerName: consumerName,
		log:          logger.WithField("consumer", consumerName),
	}
}

// WithRunTimeout bounds each task run with a context deadline. Zero disables it.
func (c *TaskConsumer) WithRunTimeout(timeout time.Duration) *TaskConsumer {
	c.runTimeout = timeout
	return c
}

const (
	// pendingID reads entries already delivered to this consumer but not acked.
	pendingID = "0"
	// newID reads entries never delivered to the group.
	newID = ">"

	readBlock  = 5 * time.Second
	retryPause = time.Second
)

// Run starts the consumer loop and blocks until context cancellation. It
// replays this consumer's pending entries once, then follows new ones.
func (c *TaskConsumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	c.log.Infof("Consumer started on stream %s", StreamName)

	cursor := pendingID
	for ctx.Err() == nil {
		messages, err := c.read(ctx, cursor)
		switch {
		case errors.Is(err, redis.Nil):
			cursor = newID
		case err != nil:
			if ctx.Err() == nil {
				c.log.WithError(err).Error("Reading task stream failed")
				c.pause(ctx, retryPause)
			}
		case len(messages) == 0:
			cursor = newID
		default:
			for _, msg := range messages {
				c.processMessage(ctx, msg)
			}
			if cursor != newID {
				// Step past replayed entries so one that stays pending is not retried in a loop.
				cursor = messages[len(messages)-1].ID
			}
		}
	}

	c.log.Info("Consumer shutting down")
	return nil
}

// read fetches the next entry after cursor for this consumer.
func (c *TaskConsumer) read(ctx context.Context, cursor string) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: c.consumerName,
		Streams:  []string{StreamName, cursor},
		Count:    1,
		Block:    readBlock,
	}).Result()
	if err != nil {
		return nil, err
	}

	var messages []redis.XMessage
	for _, stream := range streams {
		messages = append(messages, stream.Messages...)
	}
	return messages, nil
}

func (c *TaskConsumer) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// processMessage runs a single task. Contended and undecodable messages are
// acked so they do not block the group; other failures stay pending.
func (c *TaskConsumer) processMessage(ctx context.Context, msg redis.XMessage) {
	taskID, _ := msg.Values["task_id"].(string)
	name, _ := msg.Values["name"].(string)
	rawArgs, _ := msg.Values["args"].(string)
	rawKwargs, _ := msg.Values["kwargs"].(string)

	log := c.log.WithFields(logrus.Fields{"message_id": msg.ID, "task_id": taskID, "task": name})
	log.Debug("Processing message")

	args, err := task.DecodeArgs([]byte(rawArgs))
	if err != nil {
		log.WithError(err).Error("Dropping message with invalid args")
		c.ack(ctx, msg.ID)
		return
	}
	kwargs, err := task.DecodeKwargs([]byte(rawKwargs))
	if err != nil {
		log.WithError(err).Error("Dropping message with invalid kwargs")
		c.ack(ctx, msg.ID)
		return
	}

	runCtx := service.WithTaskID(ctx, taskID)
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.runTimeout)
		defer cancel()
	}

	result, err := c.runner.Run(runCtx, name, args, kwargs)
	switch {
	case err == nil:
		log.WithField("result", result).Info("Task succeeded")
	case errors.Is(err, service.ErrOtherInstanceRunning):
		log.WithError(err).Info("Task skipped")
	case errors.Is(err, service.ErrUnknownTask):
		log.WithError(err).Error("Dropping message for unknown task")
	default:
		log.WithError(err).Errorf("Task failed, message %s stays pending", msg.ID)
		return
	}

	c.ack(ctx, msg.ID)
}

func (c *TaskConsumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, StreamName, ConsumerGroup, id).Err(); err != nil {
		c.log.WithError(err).Errorf("XAck failed for message %s", id)
	}
}

// ensureGroup creates the stream and consumer group if missing.
func (c *TaskConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, StreamName, ConsumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}
