package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/chepyr/go-todo-tracker/internal/tags"
	"github.com/chepyr/go-todo-tracker/shared/models"
)

// listFilter accumulates WHERE conditions with positional arguments.
type listFilter struct {
	conditions []string
	args       []any
}

// arg binds v and returns its placeholder.
func (f *listFilter) arg(v any) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

func (f *listFilter) where() string {
	return strings.Join(f.conditions, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildListFilter(userID string, q models.ListQuery) (*listFilter, error) {
	f := &listFilter{}
	f.conditions = append(f.conditions, "t.user_id = "+f.arg(userID))

	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q.Search)) + "%"
		f.conditions = append(f.conditions, fmt.Sprintf(
			`(LOWER(t.title) LIKE %s ESCAPE '\' OR LOWER(COALESCE(t.description, '')) LIKE %s ESCAPE '\')`,
			f.arg(pattern), f.arg(pattern)))
	}

	switch q.Status {
	case models.StatusPending:
		f.conditions = append(f.conditions, "t.completed = "+f.arg(false))
	case models.StatusCompleted:
		f.conditions = append(f.conditions, "t.completed = "+f.arg(true))
	}

	if q.Priority != models.PriorityAll {
		f.conditions = append(f.conditions, "t.priority = "+f.arg(q.Priority))
	}

	if q.NoTags {
		f.conditions = append(f.conditions,
			"NOT EXISTS (SELECT 1 FROM task_tags tt WHERE tt.task_id = t.id)")
	} else if len(q.Tags) > 0 {
		names, err := tags.NormalizeList(q.Tags)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			owner := f.arg(userID)
			placeholders := make([]string, len(names))
			for i, name := range names {
				placeholders[i] = f.arg(name)
			}
			f.conditions = append(f.conditions, fmt.Sprintf(
				`EXISTS (SELECT 1 FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
				 WHERE tt.task_id = t.id AND g.user_id = %s AND g.name IN (%s))`,
				owner, strings.Join(placeholders, ", ")))
		}
	}
	return f, nil
}

// priorityRank maps the stored priority to its sort rank, high first.
var priorityRank = func() string {
	var b strings.Builder
	b.WriteString("CASE t.priority")
	for _, p := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow, models.PriorityNone} {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, p.Rank())
	}
	fmt.Fprintf(&b, " ELSE %d END", models.Priority("").Rank())
	return b.String()
}()

// orderBy always ends with t.id so pages are stable across equal keys.
func orderBy(q models.ListQuery) string {
	dir := "ASC"
	if q.SortOrder == models.SortDesc {
		dir = "DESC"
	}
	switch q.SortField {
	case models.SortByTitle:
		return "t.title " + dir + ", t.id ASC"
	case models.SortByCreatedAt:
		return "t.created_at " + dir + ", t.id ASC"
	default:
		return priorityRank + " " + dir + ", t.created_at DESC, t.id ASC"
	}
}

func (s *Store) pageClause(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		if limit == 0 && s.driver == DriverSQLite {
			// sqlite rejects OFFSET without LIMIT
			b.WriteString(" LIMIT -1")
		}
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}

// List returns one page of the user's tasks. The page, the user's total task
// count and the filtered count are read from the same snapshot.
func (r *TaskRepository) List(ctx context.Context, userID string, q models.ListQuery) (*models.ListResult, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	filter, err := buildListFilter(userID, q)
	if err != nil {
		return nil, err
	}

	result := &models.ListResult{Tasks: make([]*models.Task, 0)}
	err = r.store.readTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE user_id = $1`, userID).Scan(&result.Total)
		if err != nil {
			return fmt.Errorf("counting tasks: %w", err)
		}

		countQuery := `SELECT COUNT(*) FROM tasks t WHERE ` + filter.where()
		if err := tx.QueryRowContext(ctx, countQuery, filter.args...).Scan(&result.Filtered); err != nil {
			return fmt.Errorf("counting filtered tasks: %w", err)
		}

		listQuery := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + filter.where() +
			` ORDER BY ` + orderBy(q) + r.store.pageClause(q.Limit, q.Offset)
		rows, err := tx.QueryContext(ctx, listQuery, filter.args...)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return fmt.Errorf("scanning task: %w", err)
			}
			result.Tasks = append(result.Tasks, task)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		return r.attachTags(ctx, tx, userID, result.Tasks...)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
