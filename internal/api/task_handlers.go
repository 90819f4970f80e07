package api

import (
	"errors"
	"net/http"

	"github.com/app-sre/proms-mcp/internal/api/presenter"
	"github.com/app-sre/proms-mcp/internal/tasks"
)

// handleListTasks responds with the list of tasks and their statuses.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.taskManager.ListStatus(), http.StatusOK)
}

type TriggerTaskResponse struct {
	Status string `json:"status"`
}

// handleTriggerTask triggers a specific task by name.
func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		presenter.Error(w, r, "missing task name", http.StatusBadRequest)
		return
	}
	if err := s.taskManager.Trigger(name); err != nil {
		presenter.Error(w, r, err.Error(), taskErrorStatus(err))
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{
		Status: "triggered",
	}, http.StatusOK)
}

// handleLogsForTask retrieves the log buffer of a task's last run.
func (s *Server) handleLogsForTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		presenter.Error(w, r, "missing task name", http.StatusBadRequest)
		return
	}
	logs, err := s.taskManager.GetLogs(name)
	if err != nil {
		presenter.Error(w, r, err.Error(), taskErrorStatus(err))
		return
	}
	presenter.JSON(w, r, logs, http.StatusOK)
}

func taskErrorStatus(err error) int {
	var notFound tasks.TaskNotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
