package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/chepyr/go-todo-tracker/shared/models"
)

// replaceTags makes names the exact tag set of the task. names must already be
// normalized and deduplicated. It runs inside the caller's transaction so a
// failure leaves the previous associations intact.
func (r *TaskRepository) replaceTags(ctx context.Context, q querier, taskID string, names []string, userID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clearing task tags: %w", err)
	}
	return r.linkTags(ctx, q, taskID, names, userID)
}

func (r *TaskRepository) linkTags(ctx context.Context, q querier, taskID string, names []string, userID string) error {
	for _, name := range names {
		tag, err := r.tags.getOrCreate(ctx, q, name, userID)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2)`, taskID, tag.ID)
		if err != nil {
			return fmt.Errorf("linking tag %q: %w", name, err)
		}
	}
	return nil
}

// tagBatchSize caps the task ids bound in one query, well under the
// driver limits on bound parameters (32766 for sqlite, 65535 for postgres).
const tagBatchSize = 500

// loadTagNames fetches tag names for many tasks, tagBatchSize ids per query.
// Names come back alphabetically per task; tasks without tags are absent from
// the map.
func loadTagNames(ctx context.Context, q querier, userID string, taskIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(taskIDs))
	for start := 0; start < len(taskIDs); start += tagBatchSize {
		end := min(start+tagBatchSize, len(taskIDs))
		if err := loadTagBatch(ctx, q, userID, taskIDs[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func loadTagBatch(ctx context.Context, q querier, userID string, taskIDs []string, result map[string][]string) error {
	args := make([]any, 0, len(taskIDs)+1)
	args = append(args, userID)
	placeholders := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}

	query := `SELECT tt.task_id, g.name FROM task_tags tt
	 JOIN tags g ON g.id = tt.tag_id
	 WHERE g.user_id = $1 AND tt.task_id IN (` + strings.Join(placeholders, ", ") + `)
	 ORDER BY g.name`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("loading task tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, name string
		if err := rows.Scan(&taskID, &name); err != nil {
			return fmt.Errorf("scanning task tag: %w", err)
		}
		result[taskID] = append(result[taskID], name)
	}
	return rows.Err()
}

func (r *TaskRepository) attachTags(ctx context.Context, q querier, userID string, tasks ...*models.Task) error {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	names, err := loadTagNames(ctx, q, userID, ids)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		t.Tags = names[t.ID]
		if t.Tags == nil {
			t.Tags = []string{}
		}
	}
	return nil
}
