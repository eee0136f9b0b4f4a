package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type user struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash []byte     `json:"-"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"-"`
}

type taskStatus string

const (
	statusPending taskStatus = "Pending"
	statusDone    taskStatus = "Done"
)

// parseTaskStatus accepts the textual names in any case, the "Completed" alias
// for Done and the legacy numeric values 0 and 1.
func parseTaskStatus(s string) (taskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "0":
		return statusPending, nil
	case "done", "completed", "1":
		return statusDone, nil
	}
	return "", fmt.Errorf("invalid task status %q", s)
}

func (s *taskStatus) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Errorf("invalid task status %s", data)
	}
	parsed, err := parseTaskStatus(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type task struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Description string     `json:"description" gorm:"size:1000;not null"`
	Status      taskStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null"`
	UserID      int64      `json:"userId" gorm:"not null;index"`
}

func (task) TableName() string { return "tasks" }

// taskPatch carries the optional fields of an update; nil means "not supplied".
type taskPatch struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Status      *taskStatus `json:"status"`
}

type taskFilter struct {
	Status         *taskStatus
	Search         string
	SortBy         string
	SortDescending bool
	Page           int
	PageSize       int
}

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
	maxPage         = math.MaxInt32
)

type taskPage struct {
	Tasks      []*task `json:"tasks"`
	TotalCount int64   `json:"totalCount"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

type taskStats struct {
	TotalTasks     int64 `json:"totalTasks"`
	CompletedTasks int64 `json:"completedTasks"`
	PendingTasks   int64 `json:"pendingTasks"`
}
