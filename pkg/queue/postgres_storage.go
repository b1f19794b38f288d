package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grabkit/grabkit/pkg/pg"
)

// PostgresStorage implements Storage on a pgx connection pool. Transition
// rules are enforced in SQL with conditional updates, so concurrent control
// operations resolve the same way they do against MemoryStorage: the loser
// of a race gets ErrInvalidTransition.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage wraps an established connection pool. The schema must
// already be migrated (see pkg/pg and the migrations package).
func NewPostgresStorage(pool *pgxpool.Pool) (*PostgresStorage, error) {
	if pool == nil {
		return nil, ErrStorageNil
	}
	return &PostgresStorage{pool: pool}, nil
}

const jobColumns = `id, url, dir, host, options, status, priority, strategy,
	attempts, next_retry_at, reason, items_done, items_total, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j         Job
		nextRetry *time.Time
	)

	err := row.Scan(&j.ID, &j.URL, &j.Dir, &j.Host, &j.Options, &j.Status,
		&j.Priority, &j.Strategy, &j.Attempts, &nextRetry, &j.Reason,
		&j.ItemsDone, &j.ItemsTotal, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if nextRetry != nil {
		j.NextRetryAt = *nextRetry
	}
	return &j, nil
}

// sourcesFor lists the statuses from which the lifecycle graph permits
// moving to the given status, for use in conditional updates.
func sourcesFor(to Status) []string {
	all := []Status{StatusPending, StatusQueued, StatusRunning,
		StatusPaused, StatusRetrying, StatusCompleted, StatusFailed, StatusCancelled}

	var out []string
	for _, s := range all {
		if s.CanTransition(to) {
			out = append(out, string(s))
		}
	}
	return out
}

func (ps *PostgresStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", ErrPersistence)
	}

	options := job.Options
	if options == nil {
		options = map[string]string{}
	}

	var nextRetry *time.Time
	if !job.NextRetryAt.IsZero() {
		nextRetry = &job.NextRetryAt
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, job.URL, job.Dir, job.Host, options, job.Status, job.Priority,
		job.Strategy, job.Attempts, nextRetry, job.Reason,
		job.ItemsDone, job.ItemsTotal, job.CreatedAt, job.UpdatedAt)
	if pg.IsDuplicateKey(err) {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := ps.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if pg.IsNotFound(err) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (ps *PostgresStorage) ListJobs(ctx context.Context, f Filter) ([]*Job, error) {
	var (
		conds []string
		args  []any
	)

	if f.Host != "" {
		args = append(args, f.Host)
		conds = append(conds, fmt.Sprintf("host = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (ps *PostgresStorage) NextDue(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = 'queued'
		   OR (status = 'retrying' AND (next_retry_at IS NULL OR next_retry_at <= $1))
		ORDER BY priority DESC, created_at ASC
		LIMIT NULLIF($2::int, 0)`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("next due: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*Job, error) {
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// transition runs a conditional update guarded by the lifecycle graph. extra
// is appended to the SET clause; its placeholders start at $3.
func (ps *PostgresStorage) transition(ctx context.Context, id uuid.UUID, to Status, extra string, args ...any) (*Job, error) {
	set := "status = $2, updated_at = now()"
	if extra != "" {
		set += ", " + extra
	}

	query := `UPDATE jobs SET ` + set + `
		WHERE id = $1 AND status = ANY($` + fmt.Sprint(len(args)+3) + `)
		RETURNING ` + jobColumns

	full := append([]any{id, string(to)}, args...)
	full = append(full, sourcesFor(to))

	job, err := scanJob(ps.pool.QueryRow(ctx, query, full...))
	if pg.IsNotFound(err) {
		return nil, ps.transitionFailure(ctx, id, to)
	}
	if err != nil {
		return nil, fmt.Errorf("transition to %s: %w", to, err)
	}
	return job, nil
}

// transitionFailure distinguishes a missing job from a graph violation after
// a conditional update matched no row.
func (ps *PostgresStorage) transitionFailure(ctx context.Context, id uuid.UUID, to Status) error {
	var current Status
	err := ps.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if pg.IsNotFound(err) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect job %s: %w", id, err)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func (ps *PostgresStorage) MarkQueued(ctx context.Context, id uuid.UUID) (*Job, error) {
	return ps.transition(ctx, id, StatusQueued, "")
}

func (ps *PostgresStorage) MarkRunning(ctx context.Context, id uuid.UUID) (*Job, error) {
	return ps.transition(ctx, id, StatusRunning, "attempts = attempts + 1")
}

func (ps *PostgresStorage) MarkCompleted(ctx context.Context, id uuid.UUID) (*Job, error) {
	return ps.transition(ctx, id, StatusCompleted, "reason = ''")
}

func (ps *PostgresStorage) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*Job, error) {
	return ps.transition(ctx, id, StatusFailed, "reason = $3", reason)
}

func (ps *PostgresStorage) MarkRetrying(ctx context.Context, id uuid.UUID, reason string, nextAt time.Time) (*Job, error) {
	return ps.transition(ctx, id, StatusRetrying, "reason = $3, next_retry_at = $4", reason, nextAt)
}

func (ps *PostgresStorage) MarkCancelled(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := ps.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, ErrAlreadyTerminal
	}

	return ps.transition(ctx, id, StatusCancelled, "")
}

func (ps *PostgresStorage) MarkPaused(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := ps.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusQueued && job.Status != StatusRetrying {
		return nil, fmt.Errorf("%w: job is %s", ErrNotPausable, job.Status)
	}

	return ps.transition(ctx, id, StatusPaused, "")
}

func (ps *PostgresStorage) SetPriority(ctx context.Context, id uuid.UUID, p Priority) error {
	return ps.setColumn(ctx, id, "priority", p)
}

func (ps *PostgresStorage) SetStrategy(ctx context.Context, id uuid.UUID, strategy string) error {
	return ps.setColumn(ctx, id, "strategy", strategy)
}

func (ps *PostgresStorage) setColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	tag, err := ps.pool.Exec(ctx,
		`UPDATE jobs SET `+column+` = $2, updated_at = now() WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (ps *PostgresStorage) SetProgress(ctx context.Context, id uuid.UUID, done, total int) error {
	// Counters only ever grow; a late progress report cannot roll them back.
	tag, err := ps.pool.Exec(ctx, `
		UPDATE jobs SET
			items_done = GREATEST(items_done, $2),
			items_total = GREATEST(items_total, $3),
			updated_at = now()
		WHERE id = $1`,
		id, done, total)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (ps *PostgresStorage) UpsertItem(ctx context.Context, item *JobItem) error {
	if item == nil {
		return fmt.Errorf("%w: nil item", ErrPersistence)
	}

	_, err := ps.pool.Exec(ctx, `
		INSERT INTO job_items (job_id, idx, name, path, bytes, status, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (job_id, idx) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			bytes = EXCLUDED.bytes,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			updated_at = now()`,
		item.JobID, item.Index, item.Name, item.Path, item.Bytes, item.Status, item.Error)
	if pg.IsForeignKeyViolation(err) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) ListItems(ctx context.Context, jobID uuid.UUID) ([]*JobItem, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT job_id, idx, name, path, bytes, status, error, updated_at
		FROM job_items WHERE job_id = $1 ORDER BY idx`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []*JobItem
	for rows.Next() {
		var it JobItem
		if err := rows.Scan(&it.JobID, &it.Index, &it.Name, &it.Path,
			&it.Bytes, &it.Status, &it.Error, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func (ps *PostgresStorage) RecoverInterrupted(ctx context.Context) (int, error) {
	// Attempt counts stay as they are: a crash is not a retry penalty.
	tag, err := ps.pool.Exec(ctx, `
		UPDATE jobs SET status = 'queued', updated_at = now()
		WHERE status = 'running'`)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
