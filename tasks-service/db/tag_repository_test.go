package db

import (
	"context"
	"sync"
	"testing"

	"github.com/chepyr/go-todo-tracker/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRepository_GetOrCreate(t *testing.T) {
	repo := NewTagRepository(setupStore(t))
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, " Work ", "alice")
	require.NoError(t, err)
	assert.Equal(t, "work", first.Name)
	assert.Equal(t, "alice", first.UserID)

	again, err := repo.GetOrCreate(ctx, "WORK", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := repo.GetOrCreate(ctx, "work", "bob")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "tags are scoped per user")

	_, err = repo.GetOrCreate(ctx, "   ", "alice")
	assert.True(t, models.IsValidation(err))
	_, err = repo.GetOrCreate(ctx, "two words", "alice")
	assert.True(t, models.IsValidation(err))
}

func TestTagRepository_GetOrCreateConcurrent(t *testing.T) {
	repo := NewTagRepository(setupStore(t))
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag, err := repo.GetOrCreate(ctx, "shared", "alice")
			errs[i] = err
			if err == nil {
				ids[i] = tag.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	all, err := repo.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTagRepository_GetByID(t *testing.T) {
	repo := NewTagRepository(setupStore(t))
	ctx := context.Background()

	tag, err := repo.GetOrCreate(ctx, "work", "alice")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, tag.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, tag.Name, got.Name)

	_, err = repo.GetByID(ctx, tag.ID, "bob")
	assert.ErrorIs(t, err, models.ErrTagNotFound)
}

func TestTagRepository_PerUserIsolation(t *testing.T) {
	store := setupStore(t)
	tasks := NewTaskRepository(store)
	repo := NewTagRepository(store)
	ctx := context.Background()

	_, err := tasks.Create(ctx, "alice", models.NewTask{Title: "a", Tags: []string{"work", "home"}})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, "bob", models.NewTask{Title: "b", Tags: []string{"work"}})
	require.NoError(t, err)

	aliceTags, err := repo.ListForUser(ctx, "alice")
	require.NoError(t, err)
	bobTags, err := repo.ListForUser(ctx, "bob")
	require.NoError(t, err)

	require.Len(t, aliceTags, 2)
	assert.Equal(t, "home", aliceTags[0].Name)
	assert.Equal(t, "work", aliceTags[1].Name)
	require.Len(t, bobTags, 1)
	assert.NotEqual(t, aliceTags[1].ID, bobTags[0].ID)

	bobStats, err := repo.Stats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []models.TagStat{{ID: bobTags[0].ID, Name: "work", TaskCount: 1}}, bobStats)
}

func TestTagRepository_TagsForTask(t *testing.T) {
	store := setupStore(t)
	tasks := NewTaskRepository(store)
	repo := NewTagRepository(store)
	ctx := context.Background()

	task, err := tasks.Create(ctx, "alice", models.NewTask{Title: "a", Tags: []string{"zeta", "alpha"}})
	require.NoError(t, err)

	got, err := repo.TagsForTask(ctx, task.ID, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "zeta", got[1].Name)

	_, err = repo.TagsForTask(ctx, task.ID, "bob")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestTagRepository_StatsAndCleanup(t *testing.T) {
	store := setupStore(t)
	tasks := NewTaskRepository(store)
	repo := NewTagRepository(store)
	ctx := context.Background()

	_, err := tasks.Create(ctx, "alice", models.NewTask{Title: "Task1", Tags: []string{"work", "urgent"}})
	require.NoError(t, err)
	_, err = tasks.Create(ctx, "alice", models.NewTask{Title: "Task2", Tags: []string{"work"}})
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, "unused", "alice")
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, "unused", "bob")
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, "alice")
	require.NoError(t, err)
	counts := map[string]int{}
	for _, s := range stats {
		counts[s.Name] = s.TaskCount
	}
	assert.Equal(t, map[string]int{"unused": 0, "urgent": 1, "work": 2}, counts)

	removed, err := repo.CleanupOrphans(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = repo.CleanupOrphans(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, removed)

	bobTags, err := repo.ListForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobTags, 1, "cleanup is scoped to the caller")
}
