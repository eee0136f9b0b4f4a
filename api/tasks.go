package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

type taskService struct {
	store  taskStore
	logger *slog.Logger
	now    func() time.Time
}

func newTaskService(store taskStore, logger *slog.Logger) *taskService {
	return &taskService{store: store, logger: logger, now: time.Now}
}

func defaultTaskFilter() taskFilter {
	return taskFilter{
		SortBy:   "createdAt",
		Page:     defaultPage,
		PageSize: defaultPageSize,
	}
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// pageOffset is the number of rows before the page, saturating instead of
// overflowing for pages far past the end.
func pageOffset(page, pageSize int) int {
	if page <= 1 || pageSize <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

func (s *taskService) List(ctx context.Context, userID int64, f taskFilter) (*taskPage, error) {
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}

	tasks, total, err := s.store.listTasks(ctx, userID, f)
	if err != nil {
		s.logger.Error("list_tasks_failed", "user_id", userID, "page", f.Page, "page_size", f.PageSize, "error", err)
		return nil, fmt.Errorf("list tasks for user %d: %w", userID, err)
	}

	return &taskPage{
		Tasks:      tasks,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: totalPages(total, f.PageSize),
	}, nil
}

func (s *taskService) Get(ctx context.Context, id uuid.UUID, userID int64) (*task, error) {
	t, err := s.store.getTask(ctx, id, userID)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, err
		}
		s.logger.Error("get_task_failed", "task_id", id, "user_id", userID, "error", err)
		return nil, fmt.Errorf("get task %s for user %d: %w", id, userID, err)
	}
	return t, nil
}

func (s *taskService) Create(ctx context.Context, userID int64, title, description string) (*task, error) {
	t := &task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      statusPending,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		UserID:      userID,
	}
	err := s.store.insertTask(ctx, t)
	if err != nil {
		s.logger.Error("create_task_failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("create task for user %d: %w", userID, err)
	}
	return t, nil
}

// Update applies title and description only when they are present and not
// blank; a present status is always applied.
func (s *taskService) Update(ctx context.Context, id uuid.UUID, userID int64, p taskPatch) (*task, error) {
	t, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if !isBlank(p.Title) {
		t.Title = *p.Title
	}
	if !isBlank(p.Description) {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}

	err = s.store.updateTask(ctx, t)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, err
		}
		s.logger.Error("update_task_failed", "task_id", id, "user_id", userID, "error", err)
		return nil, fmt.Errorf("update task %s for user %d: %w", id, userID, err)
	}
	return t, nil
}

func (s *taskService) Delete(ctx context.Context, id uuid.UUID, userID int64) (bool, error) {
	deleted, err := s.store.deleteTask(ctx, id, userID)
	if err != nil {
		s.logger.Error("delete_task_failed", "task_id", id, "user_id", userID, "error", err)
		return false, fmt.Errorf("delete task %s for user %d: %w", id, userID, err)
	}
	return deleted, nil
}

func (s *taskService) Stats(ctx context.Context, userID int64) (taskStats, error) {
	stats, err := s.store.taskStats(ctx, userID)
	if err != nil {
		s.logger.Error("task_stats_failed", "user_id", userID, "error", err)
		return taskStats{}, fmt.Errorf("task stats for user %d: %w", userID, err)
	}
	return stats, nil
}
