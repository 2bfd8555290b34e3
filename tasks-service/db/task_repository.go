package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chepyr/go-todo-tracker/internal/tags"
	"github.com/chepyr/go-todo-tracker/shared/models"
)

// TaskRepositoryInterface defines the task store. Every method is scoped to
// userID; tasks owned by someone else behave as if they did not exist.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, userID string, input models.NewTask) (*models.Task, error)
	GetByID(ctx context.Context, taskID, userID string) (*models.Task, error)
	Update(ctx context.Context, taskID, userID string, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, taskID, userID string) error
	ToggleCompletion(ctx context.Context, taskID, userID string) (*models.Task, error)
	List(ctx context.Context, userID string, q models.ListQuery) (*models.ListResult, error)
}

type TaskRepository struct {
	store *Store
	tags  *TagRepository
}

func NewTaskRepository(store *Store) *TaskRepository {
	return &TaskRepository{store: store, tags: NewTagRepository(store)}
}

const taskColumns = "t.id, t.user_id, t.title, t.description, t.completed, t.priority, t.created_at, t.updated_at"

func scanTask(row scanner) (*models.Task, error) {
	task := &models.Task{}
	var description sql.NullString
	var updatedAt sql.NullTime
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &description,
		&task.Completed, &task.Priority, &task.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = task.CreatedAt.UTC()
	if description.Valid {
		task.Description = &description.String
	}
	if updatedAt.Valid {
		ts := updatedAt.Time.UTC()
		task.UpdatedAt = &ts
	}
	return task, nil
}

func normalizeTaskTags(raws []string) ([]string, error) {
	names, err := tags.NormalizeList(raws)
	if err != nil {
		return nil, err
	}
	if len(names) > models.MaxTagsPerTask {
		return nil, models.NewValidationError("tags",
			fmt.Sprintf("maximum %d tags per task", models.MaxTagsPerTask))
	}
	return names, nil
}

// Create validates the input and stores the task with its tags atomically.
func (r *TaskRepository) Create(ctx context.Context, userID string, input models.NewTask) (*models.Task, error) {
	title, err := models.ValidateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateDescription(input.Description); err != nil {
		return nil, err
	}
	priority, err := models.ParsePriority(string(input.Priority))
	if err != nil {
		return nil, err
	}
	names, err := normalizeTaskTags(input.Tags)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          newID(),
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Priority:    priority,
		CreatedAt:   r.store.timestamp(),
	}

	err = r.store.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO tasks (id, user_id, title, description, completed, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := tx.ExecContext(ctx, query, task.ID, task.UserID, task.Title, task.Description,
			task.Completed, task.Priority, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting task: %w", err)
		}
		if err := r.linkTags(ctx, tx, task.ID, names, userID); err != nil {
			return err
		}
		return r.attachTags(ctx, tx, userID, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID, userID string) (*models.Task, error) {
	var task *models.Task
	err := r.store.readTx(ctx, func(tx *sql.Tx) error {
		var err error
		task, err = r.getTask(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		return r.attachTags(ctx, tx, userID, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) getTask(ctx context.Context, q querier, taskID, userID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1 AND t.user_id = $2`
	task, err := scanTask(q.QueryRowContext(ctx, query, taskID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return task, nil
}

// Update applies the non-nil fields of patch. A non-nil Tags replaces the
// whole tag set; everything happens in one transaction.
func (r *TaskRepository) Update(ctx context.Context, taskID, userID string, patch models.TaskPatch) (*models.Task, error) {
	var title string
	if patch.Title != nil {
		var err error
		if title, err = models.ValidateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if err := models.ValidateDescription(patch.Description); err != nil {
		return nil, err
	}
	var priority models.Priority
	if patch.Priority != nil {
		var err error
		if priority, err = models.ParsePriority(string(*patch.Priority)); err != nil {
			return nil, err
		}
	}
	var names []string
	if patch.Tags != nil {
		var err error
		if names, err = normalizeTaskTags(*patch.Tags); err != nil {
			return nil, err
		}
	}

	var task *models.Task
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		t, err := r.getTask(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			t.Title = title
		}
		if patch.Description != nil {
			t.Description = patch.Description
		}
		if patch.Completed != nil {
			t.Completed = *patch.Completed
		}
		if patch.Priority != nil {
			t.Priority = priority
		}
		now := r.store.timestamp()
		t.UpdatedAt = &now

		query := `UPDATE tasks SET title = $1, description = $2, completed = $3, priority = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7`
		_, err = tx.ExecContext(ctx, query, t.Title, t.Description, t.Completed, t.Priority, t.UpdatedAt, t.ID, userID)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}

		if patch.Tags != nil {
			if err := r.replaceTags(ctx, tx, t.ID, names, userID); err != nil {
				return err
			}
			if err := r.pruneIfEnabled(ctx, tx, userID); err != nil {
				return err
			}
		}
		if err := r.attachTags(ctx, tx, userID, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes the task and its tag associations. The tags themselves stay
// unless auto-pruning is enabled.
func (r *TaskRepository) Delete(ctx context.Context, taskID, userID string) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
		if err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrTaskNotFound
		}
		// covers connections without foreign key enforcement
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
			return fmt.Errorf("deleting task tags: %w", err)
		}
		return r.pruneIfEnabled(ctx, tx, userID)
	})
}

// ToggleCompletion flips the completed flag in a single statement.
func (r *TaskRepository) ToggleCompletion(ctx context.Context, taskID, userID string) (*models.Task, error) {
	var task *models.Task
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE tasks SET completed = NOT completed, updated_at = $1 WHERE id = $2 AND user_id = $3`
		res, err := tx.ExecContext(ctx, query, r.store.timestamp(), taskID, userID)
		if err != nil {
			return fmt.Errorf("toggling task: %w", err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrTaskNotFound
		}
		if task, err = r.getTask(ctx, tx, taskID, userID); err != nil {
			return err
		}
		return r.attachTags(ctx, tx, userID, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *TaskRepository) pruneIfEnabled(ctx context.Context, q querier, userID string) error {
	if !r.store.autoPrune {
		return nil
	}
	_, err := cleanupOrphans(ctx, q, userID)
	return err
}
