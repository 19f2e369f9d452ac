package cmd

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-taskguard/app/queue"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [task] [args_json]",
	Short: "Queue a task invocation",
	Long:  "Publish a task invocation to the worker stream. Positional arguments are given as a JSON array.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runEnqueue,
}

var (
	enqueueKwargs string
	enqueueTaskID string
)

// init registers the enqueue command.
func init() {
	enqueueCmd.Flags().StringVar(&enqueueKwargs, "kwargs", "", "keyword arguments as a JSON object")
	enqueueCmd.Flags().StringVar(&enqueueTaskID, "task-id", "", "task id (generated when empty)")
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	msg, err := buildTaskMessage(args, enqueueKwargs, enqueueTaskID)
	if err != nil {
		return err
	}

	d, err := loadDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	if !slices.Contains(d.tasks.Names(), msg.Name) {
		return fmt.Errorf("unknown task %s", msg.Name)
	}
	if err := queue.NewTaskProducer(d.redis).Publish(cmd.Context(), msg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s\n", msg.Name, msg.TaskID)
	return nil
}

// buildTaskMessage validates command line input into a stream message.
func buildTaskMessage(args []string, kwargs, taskID string) (queue.TaskMessage, error) {
	msg := queue.TaskMessage{Name: args[0], TaskID: taskID}
	if msg.TaskID == "" {
		msg.TaskID = uuid.NewString()
	}
	if len(args) > 1 {
		if _, err := task.DecodeArgs([]byte(args[1])); err != nil {
			return queue.TaskMessage{}, err
		}
		msg.Args = []byte(args[1])
	}
	if kwargs != "" {
		if _, err := task.DecodeKwargs([]byte(kwargs)); err != nil {
			return queue.TaskMessage{}, err
		}
		msg.Kwargs = []byte(kwargs)
	}
	return msg, nil
}
