// Package entdriver
package entdriver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"

	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/storage/ent/migrate"
)

// Columns of the runs and run_events tables.
const (
	FieldID           = "id"
	FieldPrompt       = "prompt"
	FieldModel        = "model"
	FieldProvider     = "provider"
	FieldStartedAt    = "started_at"
	FieldFinishedAt   = "finished_at"
	FieldFinishReason = "finish_reason"

	FieldRunID     = "run_id"
	FieldSeq       = "seq"
	FieldKind      = "kind"
	FieldPayload   = "payload"
	FieldCreatedAt = "created_at"
)

// EntDriver provides storage operations on top of an ent SQL driver.
// It is database-agnostic and can be embedded by specific drivers.
type EntDriver struct {
	Driver *entsql.Driver
}

// New runs the schema migration on drv and returns a driver using it. The
// EntDriver owns drv from then on and closes it in Close.
func New(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	if err := migrate.Create(ctx, drv); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &EntDriver{Driver: drv}, nil
}

// CreateRun records the start of a run.
func (ed *EntDriver) CreateRun(ctx context.Context, run *storage.Run) error {
	if run == nil {
		return errors.New("cannot store nil run")
	}

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	query, args := ed.builder().Insert(migrate.RunsTable.Name).
		Columns(FieldID, FieldPrompt, FieldModel, FieldProvider, FieldStartedAt, FieldFinishReason).
		Values(run.ID, run.Prompt, run.Model, run.Provider, startedAt.UTC(), "").
		Query()

	if err := ed.Driver.Exec(ctx, query, args, nil); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("could not execute run creation: %w", err)
	}
	return nil
}

// FinishRun marks a run finished.
func (ed *EntDriver) FinishRun(ctx context.Context, runID, finishReason string) error {
	query, args := ed.builder().Update(migrate.RunsTable.Name).
		Set(FieldFinishedAt, time.Now().UTC()).
		Set(FieldFinishReason, finishReason).
		Where(entsql.EQ(FieldID, runID)).
		Query()

	var res sql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFoundError{RunID: runID}
	}
	return nil
}

// Put appends an entry to its run's log. The existence check and the insert
// share a transaction.
func (ed *EntDriver) Put(ctx context.Context, entry *storage.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := ed.Driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	if err := ed.runExists(ctx, tx, entry.RunID); err != nil {
		return rollback(tx, err)
	}

	query, args := ed.builder().Insert(migrate.EntriesTable.Name).
		Columns(FieldRunID, FieldSeq, FieldKind, FieldPayload, FieldCreatedAt).
		Values(entry.RunID, entry.Seq, entry.Kind, string(entry.Payload), createdAt.UTC()).
		Query()

	if err := tx.Exec(ctx, query, args, nil); err != nil {
		switch {
		case sqlgraph.IsUniqueConstraintError(err):
			err = fmt.Errorf("%w: %s/%d", storage.ErrDuplicateEntry, entry.RunID, entry.Seq)
		case sqlgraph.IsForeignKeyConstraintError(err):
			err = storage.NotFoundError{RunID: entry.RunID}
		default:
			err = fmt.Errorf("could not execute entry creation: %w", err)
		}
		return rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// List returns a run's entries ordered by sequence number.
func (ed *EntDriver) List(ctx context.Context, runID string) ([]*storage.Entry, error) {
	if err := ed.runExists(ctx, ed.Driver, runID); err != nil {
		return nil, err
	}

	b := ed.builder()
	t := b.Table(migrate.EntriesTable.Name)
	query, args := b.Select(t.C(FieldRunID), t.C(FieldSeq), t.C(FieldKind), t.C(FieldPayload), t.C(FieldCreatedAt)).
		From(t).
		Where(entsql.EQ(t.C(FieldRunID), runID)).
		OrderBy(t.C(FieldSeq)).
		Query()

	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []*storage.Entry{}
	for rows.Next() {
		var (
			e       storage.Entry
			payload string
		)
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Kind, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetRun retrieves a run by its ID.
func (ed *EntDriver) GetRun(ctx context.Context, runID string) (*storage.Run, error) {
	runs, err := ed.queryRuns(ctx, func(s *entsql.Selector, t *entsql.SelectTable) {
		s.Where(entsql.EQ(t.C(FieldID), runID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if len(runs) == 0 {
		return nil, storage.NotFoundError{RunID: runID}
	}
	return runs[0], nil
}

// Runs returns all runs, most recently started first.
func (ed *EntDriver) Runs(ctx context.Context) ([]*storage.Run, error) {
	runs, err := ed.queryRuns(ctx, func(s *entsql.Selector, t *entsql.SelectTable) {
		s.OrderBy(entsql.Desc(t.C(FieldStartedAt)), t.C(FieldID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.Driver.Dialect())
}

// queryRuns selects runs joined with their event count. Grouping by the
// primary key lets postgres accept the other run columns ungrouped.
func (ed *EntDriver) queryRuns(ctx context.Context, modify func(*entsql.Selector, *entsql.SelectTable)) ([]*storage.Run, error) {
	b := ed.builder()
	t := b.Table(migrate.RunsTable.Name)
	e := b.Table(migrate.EntriesTable.Name)

	s := b.Select(
		t.C(FieldID), t.C(FieldPrompt), t.C(FieldModel), t.C(FieldProvider),
		t.C(FieldStartedAt), t.C(FieldFinishedAt), t.C(FieldFinishReason),
		entsql.Count(e.C(FieldSeq)),
	).
		From(t).
		LeftJoin(e).
		On(t.C(FieldID), e.C(FieldRunID)).
		GroupBy(t.C(FieldID))
	modify(s, t)

	query, args := s.Query()
	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*storage.Run{}
	for rows.Next() {
		var (
			run        storage.Run
			finishedAt sql.NullTime
		)
		err := rows.Scan(&run.ID, &run.Prompt, &run.Model, &run.Provider,
			&run.StartedAt, &finishedAt, &run.FinishReason, &run.Events)
		if err != nil {
			return nil, err
		}

		run.StartedAt = run.StartedAt.UTC()
		if finishedAt.Valid {
			t := finishedAt.Time.UTC()
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (ed *EntDriver) runExists(ctx context.Context, q dialect.ExecQuerier, runID string) error {
	b := ed.builder()
	t := b.Table(migrate.RunsTable.Name)
	query, args := b.Select(t.C(FieldID)).
		From(t).
		Where(entsql.EQ(t.C(FieldID), runID)).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to check existence: %w", err)
		}
		return storage.NotFoundError{RunID: runID}
	}
	return nil
}

func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		return errors.Join(err, fmt.Errorf("rolling back transaction: %w", rerr))
	}
	return err
}
