package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))

	return New(pool)
}

func TestStoreSaveAndLoadWorkflow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	creator := models.PrincipalFromBytes([]byte("creator"))
	wf := &models.WorkflowDefinition{
		ID:           "wf-1",
		Name:         "sample",
		Creator:      creator,
		Phases:       []models.PhaseDefinition{{Name: "p0", Type: models.PhaseImmediate, Timeout: time.Minute}},
		IsActive:     true,
		CreationTime: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, store.SaveWorkflow(ctx, wf))

	loaded, err := store.LoadWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, loaded.ID)
	assert.Equal(t, wf.Name, loaded.Name)
	assert.True(t, loaded.IsActive)
	assert.Len(t, loaded.Phases, 1)

	require.NoError(t, store.SaveWorkflow(ctx, wf)) // upsert path

	active, err := store.LoadActiveWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestStoreSaveAndLoadExecution(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wf := &models.WorkflowDefinition{ID: "wf-2", Name: "exec-test", IsActive: true, CreationTime: time.Now()}
	require.NoError(t, store.SaveWorkflow(ctx, wf))

	exec := &models.WorkflowExecution{
		ExecutionID:   "exec-1",
		WorkflowID:    wf.ID,
		PhaseStatuses: []models.PhaseStatus{models.StatusPending},
		PhaseResults:  map[int][]byte{},
		IsComplete:    false,
	}
	require.NoError(t, store.SaveExecution(ctx, exec))

	incomplete, err := store.LoadIncompleteExecutions(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, exec.ExecutionID, incomplete[0].ExecutionID)

	exec.IsComplete = true
	exec.Successful = true
	require.NoError(t, store.SaveExecution(ctx, exec))

	incomplete, err = store.LoadIncompleteExecutions(ctx)
	require.NoError(t, err)
	assert.Len(t, incomplete, 0)
}
