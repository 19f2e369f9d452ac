package queue

const StreamName = "taskguard:tasks"
const ConsumerGroup = "task-workers"

// TaskMessage is a queued task invocation. Args and Kwargs hold JSON.
type TaskMessage struct {
	TaskID string
	Name   string
	Args   []byte
	Kwargs []byte
}
