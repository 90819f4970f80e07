package tasks

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/app-sre/proms-mcp/internal/logging"
)

var _ logging.InternalLogger = (*TaskStoreLogger)(nil)

// TaskStoreLogger writes log lines into the task's ring buffer so they
// can be inspected after the run.
type TaskStoreLogger struct {
	Task *RunnableTask
}

func NewTaskStoreLogger(task *RunnableTask) *TaskStoreLogger {
	return &TaskStoreLogger{
		Task: task,
	}
}

func (t *TaskStoreLogger) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.Task.AppendLog("info", msg)
}

func (t *TaskStoreLogger) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.Task.AppendLog("warn", msg)
}

func (t *TaskStoreLogger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.Task.AppendLog("error", msg)
}

// NewCompositeLogger creates a MultiLogger that logs to both zerolog and the task store.
func NewCompositeLogger(task *RunnableTask, zlog zerolog.Logger) logging.MultiLogger {
	return logging.NewMultiLogger(
		logging.NewZLogger(zlog),
		NewTaskStoreLogger(task),
	)
}
