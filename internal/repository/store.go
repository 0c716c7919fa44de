// Package repository persists workflow definitions and execution snapshots
// to PostgreSQL. It implements engine.Persister structurally; neither this
// package nor the engine imports the other.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// Store is a PostgreSQL-backed implementation of engine.Persister. Each
// workflow or execution is stored as one row with its full value
// snapshotted into a JSONB column; the engine is the only writer of
// authoritative state, so the store never needs partial updates.
type Store struct {
	db *pgxpool.Pool
}

// New creates a new Store.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// SaveWorkflow upserts a workflow definition snapshot.
func (s *Store) SaveWorkflow(ctx context.Context, wf *models.WorkflowDefinition) error {
	body, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", wf.ID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO workflows (id, creator, name, is_active, snapshot)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET is_active = $4, snapshot = $5
	`, string(wf.ID), wf.Creator.String(), wf.Name, wf.IsActive, body)
	return err
}

// SaveExecution upserts an execution snapshot.
func (s *Store) SaveExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	body, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("marshal execution %s: %w", exec.ExecutionID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO executions (id, workflow_id, is_complete, successful, snapshot)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET is_complete = $3, successful = $4, snapshot = $5
	`, string(exec.ExecutionID), string(exec.WorkflowID), exec.IsComplete, exec.Successful, body)
	return err
}

// LoadWorkflow reads back a workflow definition snapshot by ID. Startup
// repopulation uses LoadActiveWorkflows instead.
func (s *Store) LoadWorkflow(ctx context.Context, id models.ID) (*models.WorkflowDefinition, error) {
	var body []byte
	err := s.db.QueryRow(ctx, `SELECT snapshot FROM workflows WHERE id = $1`, string(id)).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}
	var wf models.WorkflowDefinition
	if err := json.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("unmarshal workflow %s: %w", id, err)
	}
	return &wf, nil
}

// LoadActiveWorkflows returns every workflow whose is_active flag is true,
// for repopulating the engine's registry at startup.
func (s *Store) LoadActiveWorkflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	rows, err := s.db.Query(ctx, `SELECT snapshot FROM workflows WHERE is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("load active workflows: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkflowDefinition
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan workflow row: %w", err)
		}
		var wf models.WorkflowDefinition
		if err := json.Unmarshal(body, &wf); err != nil {
			return nil, fmt.Errorf("unmarshal workflow: %w", err)
		}
		out = append(out, &wf)
	}
	return out, rows.Err()
}

// LoadIncompleteExecutions returns every execution not yet marked complete,
// for repopulating the engine's execution table at startup.
func (s *Store) LoadIncompleteExecutions(ctx context.Context) ([]*models.WorkflowExecution, error) {
	rows, err := s.db.Query(ctx, `SELECT snapshot FROM executions WHERE is_complete = false`)
	if err != nil {
		return nil, fmt.Errorf("load incomplete executions: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkflowExecution
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		var exec models.WorkflowExecution
		if err := json.Unmarshal(body, &exec); err != nil {
			return nil, fmt.Errorf("unmarshal execution: %w", err)
		}
		out = append(out, &exec)
	}
	return out, rows.Err()
}

// ErrNotFound is returned by LoadWorkflow when no row matches.
var ErrNotFound = pgx.ErrNoRows
