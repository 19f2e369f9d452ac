package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestTaskProducerPublish(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	producer := NewTaskProducer(client)
	if err := producer.Publish(context.Background(), TaskMessage{
		TaskID: "task-1",
		Name:   "jobs.add",
		Args:   []byte(`[4,4]`),
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs, err := client.XRange(context.Background(), StreamName, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Values["name"] != "jobs.add" || msgs[0].Values["args"] != "[4,4]" {
		t.Fatalf("unexpected message values %v", msgs[0].Values)
	}
}
