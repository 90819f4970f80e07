package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/app-sre/proms-mcp/internal/logging"
)

// waitForResult polls until the task reports a final result, since
// triggered runs are asynchronous.
func waitForResult(t *testing.T, m *Manager, name string) TaskStatus {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		for _, status := range m.ListStatus() {
			if status.Name == name && !status.Running && status.LastResult != "" {
				return status
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %q never finished", name)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerTriggerRunsTask(t *testing.T) {
	m := NewManager()
	ran := make(chan struct{})
	m.Register(TaskDefinition{
		Name: "demo",
		Handler: func(context.Context, logging.InternalLogger) error {
			close(ran)
			return nil
		},
	})

	if err := m.Trigger("demo"); err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task handler was not invoked")
	}

	status := waitForResult(t, m, "demo")
	if status.LastResult != "success" {
		t.Errorf("expected success, got %q", status.LastResult)
	}
	if status.LastRun.IsZero() {
		t.Error("expected a last run timestamp")
	}

	logs, err := m.GetLogs("demo")
	if err != nil {
		t.Fatalf("GetLogs returned error: %v", err)
	}
	if len(logs) == 0 {
		t.Error("expected task logs to be recorded")
	}
}

func TestManagerRecordsFailure(t *testing.T) {
	m := NewManager()
	m.Register(TaskDefinition{
		Name: "broken",
		Handler: func(context.Context, logging.InternalLogger) error {
			return errors.New("boom")
		},
	})

	if err := m.Trigger("broken"); err != nil {
		t.Fatalf("Trigger returned error: %v", err)
	}
	status := waitForResult(t, m, "broken")
	if status.LastResult != "failed: boom" {
		t.Errorf("expected failure result, got %q", status.LastResult)
	}
}

func TestManagerTriggerUnknownTask(t *testing.T) {
	m := NewManager()

	err := m.Trigger("nope")
	var notFound TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TaskNotFoundError, got %v", err)
	}
	if _, err := m.GetLogs("nope"); !errors.As(err, &notFound) {
		t.Fatalf("expected TaskNotFoundError from GetLogs, got %v", err)
	}
}

func TestManagerListStatusSorted(t *testing.T) {
	m := NewManager()
	noop := func(context.Context, logging.InternalLogger) error { return nil }
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		m.Register(TaskDefinition{Name: name, Handler: noop})
	}

	var names []string
	for _, status := range m.ListStatus() {
		names = append(names, status.Name)
	}
	want := []string{"alpha", "bravo", "charlie"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected sorted names %v, got %v", want, names)
		}
	}
}

func TestScheduledTaskAnnouncesNextRun(t *testing.T) {
	m := NewManager()
	m.Register(TaskDefinition{
		Name:     "ticker",
		Interval: time.Hour,
		Handler:  func(context.Context, logging.InternalLogger) error { return nil },
	})

	statuses := m.ListStatus()
	if len(statuses) != 1 {
		t.Fatalf("expected 1 task, got %d", len(statuses))
	}
	if statuses[0].NextRun.IsZero() {
		t.Error("expected a next run for a scheduled task")
	}
}
