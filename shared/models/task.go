package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Priority string

const (
	PriorityNone   Priority = "none"
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Field limits shared by the store and the HTTP layer.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxTagsPerTask       = 20
)

// ParsePriority accepts only the canonical lowercase values.
// An empty string yields PriorityNone.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case "":
		return PriorityNone, nil
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", NewValidationError("priority", "priority must be one of none, low, medium, high")
	}
}

// Rank orders priorities for sorting: high sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	case PriorityNone:
		return 3
	default:
		return 4
	}
}

// Task is the representation handed across the core boundary.
// Tags are plain names in alphabetical order.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// NewTask holds the input for creating a task.
type NewTask struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
}

// TaskPatch is a partial update. A nil field leaves the stored value as is;
// a non-nil Tags (even empty) replaces every tag on the task.
type TaskPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Completed   *bool     `json:"completed"`
	Priority    *Priority `json:"priority"`
	Tags        *[]string `json:"tags"`
}

// ValidateTitle trims the title and checks its length.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", NewValidationError("title", "title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", NewValidationError("title", "title too long (max 200 chars)")
	}
	return title, nil
}

// ValidateDescription checks the description length. nil is allowed.
func ValidateDescription(desc *string) error {
	if desc != nil && utf8.RuneCountInString(*desc) > MaxDescriptionLength {
		return NewValidationError("description", "description too long (max 2000 chars)")
	}
	return nil
}
