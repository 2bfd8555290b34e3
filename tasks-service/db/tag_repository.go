package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chepyr/go-todo-tracker/internal/tags"
	"github.com/chepyr/go-todo-tracker/shared/models"
)

// TagRepositoryInterface is the per-user tag registry.
type TagRepositoryInterface interface {
	GetOrCreate(ctx context.Context, name, userID string) (*models.Tag, error)
	GetByID(ctx context.Context, tagID, userID string) (*models.Tag, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Tag, error)
	TagsForTask(ctx context.Context, taskID, userID string) ([]*models.Tag, error)
	Stats(ctx context.Context, userID string) ([]models.TagStat, error)
	CleanupOrphans(ctx context.Context, userID string) (int, error)
}

type TagRepository struct {
	store *Store
}

func NewTagRepository(store *Store) *TagRepository {
	return &TagRepository{store: store}
}

const tagColumns = "g.id, g.user_id, g.name, g.created_at"

func scanTag(row scanner) (*models.Tag, error) {
	tag := &models.Tag{}
	if err := row.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
		return nil, err
	}
	tag.CreatedAt = tag.CreatedAt.UTC()
	return tag, nil
}

func (r *TagRepository) GetOrCreate(ctx context.Context, name, userID string) (*models.Tag, error) {
	var tag *models.Tag
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		tag, err = r.getOrCreate(ctx, tx, name, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// getOrCreate inserts the tag unless the user already has one with the same
// normalized name, then reads back whichever row won.
func (r *TagRepository) getOrCreate(ctx context.Context, q querier, raw, userID string) (*models.Tag, error) {
	name, ok, err := tags.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("tags", "tag name cannot be empty")
	}

	query := `INSERT INTO tags (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)
	 ON CONFLICT (user_id, name) DO NOTHING`
	if _, err := q.ExecContext(ctx, query, newID(), userID, name, r.store.timestamp()); err != nil {
		return nil, fmt.Errorf("inserting tag %q: %w", name, err)
	}

	query = `SELECT ` + tagColumns + ` FROM tags g WHERE g.user_id = $1 AND g.name = $2`
	tag, err := scanTag(q.QueryRowContext(ctx, query, userID, name))
	if err != nil {
		return nil, fmt.Errorf("reading tag %q: %w", name, err)
	}
	return tag, nil
}

func (r *TagRepository) GetByID(ctx context.Context, tagID, userID string) (*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags g WHERE g.id = $1 AND g.user_id = $2`
	tag, err := scanTag(r.store.conn.QueryRowContext(ctx, query, tagID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag: %w", err)
	}
	return tag, nil
}

// ListForUser returns every tag the user owns, alphabetically.
func (r *TagRepository) ListForUser(ctx context.Context, userID string) ([]*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags g WHERE g.user_id = $1 ORDER BY g.name`
	return r.queryTags(ctx, r.store.conn, query, userID)
}

// TagsForTask returns the tags attached to a task the user owns.
func (r *TagRepository) TagsForTask(ctx context.Context, taskID, userID string) ([]*models.Tag, error) {
	var result []*models.Tag
	err := r.store.readTx(ctx, func(tx *sql.Tx) error {
		if err := ensureTaskOwned(ctx, tx, taskID, userID); err != nil {
			return err
		}
		query := `SELECT ` + tagColumns + ` FROM tags g
		 JOIN task_tags tt ON tt.tag_id = g.id
		 WHERE tt.task_id = $1 AND g.user_id = $2
		 ORDER BY g.name`
		var err error
		result, err = r.queryTags(ctx, tx, query, taskID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TagRepository) queryTags(ctx context.Context, q querier, query string, args ...any) ([]*models.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

// Stats reports how many of the user's tasks carry each tag, including tags
// with no tasks.
func (r *TagRepository) Stats(ctx context.Context, userID string) ([]models.TagStat, error) {
	query := `SELECT g.id, g.name, COUNT(tt.task_id) FROM tags g
	 LEFT JOIN task_tags tt ON tt.tag_id = g.id
	 WHERE g.user_id = $1
	 GROUP BY g.id, g.name
	 ORDER BY g.name`
	rows, err := r.store.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying tag stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.TagStat, 0)
	for rows.Next() {
		var s models.TagStat
		if err := rows.Scan(&s.ID, &s.Name, &s.TaskCount); err != nil {
			return nil, fmt.Errorf("scanning tag stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CleanupOrphans deletes the user's tags that no task references and returns
// how many were removed.
func (r *TagRepository) CleanupOrphans(ctx context.Context, userID string) (int, error) {
	var removed int
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = cleanupOrphans(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func cleanupOrphans(ctx context.Context, q querier, userID string) (int, error) {
	query := `DELETE FROM tags WHERE user_id = $1
	 AND NOT EXISTS (SELECT 1 FROM task_tags tt WHERE tt.tag_id = tags.id)`
	res, err := q.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting orphan tags: %w", err)
	}
	n, err := rowsAffected(res)
	return int(n), err
}

func ensureTaskOwned(ctx context.Context, q querier, taskID, userID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("checking task owner: %w", err)
	}
	return nil
}
