package db

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS tasks (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title VARCHAR(200) NOT NULL,
  description VARCHAR(2000),
  completed BOOLEAN NOT NULL DEFAULT FALSE,
  priority VARCHAR(10) NOT NULL DEFAULT 'none'
    CHECK (priority IN ('none', 'low', 'medium', 'high')),
  created_at %[1]s NOT NULL,
  updated_at %[1]s
);
CREATE TABLE IF NOT EXISTS tags (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name VARCHAR(50) NOT NULL,
  created_at %[1]s NOT NULL,
  UNIQUE (user_id, name)
);
CREATE TABLE IF NOT EXISTS task_tags (
  task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
  tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
  PRIMARY KEY (task_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tags_user_id ON tags(user_id);
CREATE INDEX IF NOT EXISTS idx_task_tags_tag_id ON task_tags(tag_id);
`

// Schema returns the DDL for the given driver.
func Schema(driver string) string {
	timestampType := "TIMESTAMPTZ"
	if driver == DriverSQLite {
		// mattn/go-sqlite3 only parses columns declared as TIMESTAMP/DATETIME
		timestampType = "TIMESTAMP"
	}
	return fmt.Sprintf(schemaTemplate, timestampType)
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, conn *sql.DB, driver string) error {
	if _, err := conn.ExecContext(ctx, Schema(driver)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
