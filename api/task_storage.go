package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type taskStore interface {
	listTasks(ctx context.Context, userID int64, f taskFilter) ([]*task, int64, error)
	getTask(ctx context.Context, id uuid.UUID, userID int64) (*task, error)
	insertTask(ctx context.Context, t *task) error
	updateTask(ctx context.Context, t *task) error
	deleteTask(ctx context.Context, id uuid.UUID, userID int64) (bool, error)
	taskStats(ctx context.Context, userID int64) (taskStats, error)
}

type taskStorage struct {
	db      *gorm.DB
	timeout time.Duration
}

func newTaskStorage(db *gorm.DB, timeout time.Duration) *taskStorage {
	return &taskStorage{db: db, timeout: timeout}
}

func sortColumn(sortBy string) string {
	switch strings.ToLower(sortBy) {
	case "title":
		return "title"
	case "status":
		return "status"
	default:
		return "created_at"
	}
}

// searchTerm lower-cases the term as typed. A whitespace-only term means no
// search; other surrounding spaces are part of the match.
func searchTerm(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.ToLower(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *taskStorage) listTasks(ctx context.Context, userID int64, f taskFilter) ([]*task, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := s.db.WithContext(ctx).Model(&task{}).Where("user_id = ?", userID)
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if term := searchTerm(f.Search); term != "" {
		pattern := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	tasks := []*task{}
	err := q.
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumn(f.SortBy)}, Desc: f.SortDescending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: f.SortDescending}).
		Offset(pageOffset(f.Page, f.PageSize)).
		Limit(f.PageSize).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *taskStorage) getTask(ctx context.Context, id uuid.UUID, userID int64) (*task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var t task
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errRecordNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *taskStorage) insertTask(ctx context.Context, t *task) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *taskStorage) updateTask(ctx context.Context, t *task) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.db.WithContext(ctx).
		Model(&task{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"status":      string(t.Status),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errRecordNotFound
	}
	return nil
}

func (s *taskStorage) deleteTask(ctx context.Context, id uuid.UUID, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&task{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *taskStorage) taskStats(ctx context.Context, userID int64) (taskStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stats taskStats
	err := s.db.WithContext(ctx).
		Model(&task{}).
		Select(`COUNT(*) AS total_tasks,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_tasks,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_tasks`,
			string(statusDone), string(statusPending)).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	return stats, err
}
