package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifyhub/pkg/pg"
)

// PostgresStorage keeps jobs in the queue_jobs table created by Migrations.
// Claims use FOR UPDATE SKIP LOCKED, so any number of processes can share
// one queue. Lock expiry is a locked_until predicate evaluated on Claim.
type PostgresStorage struct {
	pool            *pgxpool.Pool
	keepCompleted   int
	keepFailed      int
	starvationEvery int
	now             func() time.Time
}

// NewPostgresStorage applies the retention and aging settings of cfg.
func NewPostgresStorage(pool *pgxpool.Pool, cfg Config) *PostgresStorage {
	return &PostgresStorage{
		pool:            pool,
		keepCompleted:   cfg.KeepCompleted,
		keepFailed:      cfg.KeepFailed,
		starvationEvery: cfg.StarvationEvery,
		now:             time.Now,
	}
}

const jobColumns = `id, seq, channel, name, tier, payload, status, attempts, max_attempts,
	scheduled_at, last_error, locked_until, locked_by, created_at, finished_at`

func (s *PostgresStorage) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrPayloadNil
	}
	if job.Channel == "" {
		return ErrChannelRequired
	}

	job.Status = JobStatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = job.CreatedAt
	}
	var payload any
	if len(job.Payload) > 0 {
		payload = []byte(job.Payload)
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO queue_jobs (id, channel, name, tier, payload, status, attempts, max_attempts, scheduled_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING seq`,
		job.ID.String(), job.Channel, job.Name, int16(job.Tier), payload, string(job.Status),
		job.Attempts, job.MaxAttempts, job.ScheduledAt, job.CreatedAt,
	).Scan(&job.Seq)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("job %s already exists", job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM queue_jobs WHERE id = $1`, id.String()))
	if pg.IsNotFoundError(err) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// Claim counts the claim per channel and takes the best eligible row in one
// transaction. The counter row serializes claims of a channel; an empty claim
// rolls the count back.
func (s *PostgresStorage) Claim(ctx context.Context, channel, workerID string, lock time.Duration) (*Job, error) {
	now := s.now()
	if err := s.failExhausted(ctx, channel, now); err != nil {
		return nil, err
	}

	var job *Job
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var claims int64
		err := tx.QueryRow(ctx,
			`INSERT INTO queue_claims (channel, claims) VALUES ($1, 1)
			 ON CONFLICT (channel) DO UPDATE SET claims = queue_claims.claims + 1
			 RETURNING claims`,
			channel,
		).Scan(&claims)
		if err != nil {
			return fmt.Errorf("count claim: %w", err)
		}

		order := "tier DESC, seq"
		if s.starvationEvery > 0 && claims%int64(s.starvationEvery) == 0 {
			order = "seq"
		}

		job, err = scanJob(tx.QueryRow(ctx,
			`UPDATE queue_jobs SET
				status = 'active',
				attempts = attempts + 1,
				last_error = CASE WHEN status = 'active' THEN $5 ELSE last_error END,
				locked_until = $3,
				locked_by = $4
			 WHERE id = (
				SELECT id FROM queue_jobs
				WHERE channel = $1
				  AND ((status = 'queued' AND scheduled_at <= $2)
				    OR (status = 'active' AND locked_until < $2))
				ORDER BY `+order+`
				LIMIT 1
				FOR UPDATE SKIP LOCKED)
			 RETURNING `+jobColumns,
			channel, now, now.Add(lock), workerID, errLockExpired,
		))
		return err
	})
	if pg.IsNotFoundError(err) {
		return nil, ErrNoJobToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (s *PostgresStorage) Complete(ctx context.Context, id uuid.UUID, workerID string) error {
	var channel string
	err := s.pool.QueryRow(ctx,
		`UPDATE queue_jobs SET status = 'completed', last_error = '', finished_at = $3,
			locked_until = NULL, locked_by = ''
		 WHERE id = $1 AND status = 'active' AND locked_by = $2
		 RETURNING channel`,
		id.String(), workerID, s.now(),
	).Scan(&channel)
	if err != nil {
		return s.lockLost(ctx, id, err)
	}
	return s.trim(ctx, channel, JobStatusCompleted, s.keepCompleted)
}

func (s *PostgresStorage) Retry(ctx context.Context, id uuid.UUID, workerID, errMsg string, at time.Time) error {
	var channel string
	err := s.pool.QueryRow(ctx,
		`UPDATE queue_jobs SET status = 'queued', last_error = $3, scheduled_at = $4,
			locked_until = NULL, locked_by = ''
		 WHERE id = $1 AND status = 'active' AND locked_by = $2
		 RETURNING channel`,
		id.String(), workerID, errMsg, at,
	).Scan(&channel)
	if err != nil {
		return s.lockLost(ctx, id, err)
	}
	return nil
}

func (s *PostgresStorage) Fail(ctx context.Context, id uuid.UUID, workerID, errMsg string) error {
	var channel string
	err := s.pool.QueryRow(ctx,
		`UPDATE queue_jobs SET status = 'failed', last_error = $3, finished_at = $4,
			locked_until = NULL, locked_by = ''
		 WHERE id = $1 AND status = 'active' AND locked_by = $2
		 RETURNING channel`,
		id.String(), workerID, errMsg, s.now(),
	).Scan(&channel)
	if err != nil {
		return s.lockLost(ctx, id, err)
	}
	return s.trim(ctx, channel, JobStatusFailed, s.keepFailed)
}

func (s *PostgresStorage) ExtendLock(ctx context.Context, id uuid.UUID, workerID string, d time.Duration) error {
	var channel string
	err := s.pool.QueryRow(ctx,
		`UPDATE queue_jobs SET locked_until = $3
		 WHERE id = $1 AND status = 'active' AND locked_by = $2
		 RETURNING channel`,
		id.String(), workerID, s.now().Add(d),
	).Scan(&channel)
	if err != nil {
		return s.lockLost(ctx, id, err)
	}
	return nil
}

func (s *PostgresStorage) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM queue_jobs WHERE id = $1 AND status = 'queued' AND scheduled_at > $2`,
		id.String(), s.now(),
	)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrJobNotCancellable
	}
	return ErrJobNotFound
}

func (s *PostgresStorage) HasPending(ctx context.Context, channel, name string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM queue_jobs
			WHERE channel = $1 AND name = $2 AND status IN ('queued', 'active'))`,
		channel, name,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check pending job: %w", err)
	}
	return ok, nil
}

func (s *PostgresStorage) Stats(ctx context.Context, channel string) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
			count(*) FILTER (WHERE status = 'queued' AND scheduled_at <= $2),
			count(*) FILTER (WHERE status = 'queued' AND scheduled_at > $2),
			count(*) FILTER (WHERE status = 'active'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'failed')
		 FROM queue_jobs WHERE channel = $1`,
		channel, s.now(),
	).Scan(&st.Queued, &st.Delayed, &st.Active, &st.Completed, &st.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStorage) Failed(ctx context.Context, channel string) ([]Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM queue_jobs
		 WHERE channel = $1 AND status = 'failed'
		 ORDER BY finished_at DESC, seq DESC`,
		channel,
	)
	if err != nil {
		return nil, fmt.Errorf("query failed jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failed jobs: %w", err)
	}
	return out, nil
}

// failExhausted terminates expired jobs that used their last attempt, so
// Claim never hands them out again.
func (s *PostgresStorage) failExhausted(ctx context.Context, channel string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE queue_jobs SET status = 'failed', last_error = $3, finished_at = $2,
			locked_until = NULL, locked_by = ''
		 WHERE channel = $1 AND status = 'active' AND locked_until < $2
		   AND attempts >= max_attempts`,
		channel, now, errLockExpired,
	)
	if err != nil {
		return fmt.Errorf("fail expired jobs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return s.trim(ctx, channel, JobStatusFailed, s.keepFailed)
}

// trim drops the oldest finished jobs of status beyond limit. A negative
// limit keeps everything.
func (s *PostgresStorage) trim(ctx context.Context, channel string, status JobStatus, limit int) error {
	if limit < 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM queue_jobs WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE channel = $1 AND status = $2
			ORDER BY finished_at DESC, seq DESC
			OFFSET $3)`,
		channel, string(status), limit,
	)
	if err != nil {
		return fmt.Errorf("trim %s jobs: %w", status, err)
	}
	return nil
}

// lockLost maps a conditional update that matched no row to ErrJobNotFound
// or ErrLockLost.
func (s *PostgresStorage) lockLost(ctx context.Context, id uuid.UUID, err error) error {
	if !pg.IsNotFoundError(err) {
		return fmt.Errorf("update job: %w", err)
	}
	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrJobNotFound
	}
	return ErrLockLost
}

func (s *PostgresStorage) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_jobs WHERE id = $1)`, id.String()).Scan(&ok); err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	return ok, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job     Job
		id      string
		tier    int16
		payload []byte
		status  string
	)
	err := row.Scan(&id, &job.Seq, &job.Channel, &job.Name, &tier, &payload, &status,
		&job.Attempts, &job.MaxAttempts, &job.ScheduledAt, &job.LastError,
		&job.LockedUntil, &job.LockedBy, &job.CreatedAt, &job.FinishedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan job id: %w", err)
	}
	job.Tier = Tier(tier)
	job.Payload = payload
	job.Status = JobStatus(status)
	return &job, nil
}
