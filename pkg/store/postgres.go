package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// Postgres is the pgx-backed task store.
type Postgres struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewPostgres(logger zerolog.Logger, pgPool *pgxpool.Pool) *Postgres {
	return &Postgres{
		logger: logger.With().Str("component", "store").Logger(),
		pgPool: pgPool,
	}
}

// Base tables. Columns added after the first release go to
// schemaMigrations so existing deployments pick them up.
const createTablesQuery = `
CREATE TABLE IF NOT EXISTS tasks (
    id                   BIGSERIAL PRIMARY KEY,
    external_schedule_id TEXT        NOT NULL,
    creator_id           TEXT        NOT NULL DEFAULT '',
    executor_id          TEXT        NOT NULL DEFAULT '',
    title                TEXT        NOT NULL DEFAULT '',
    description          TEXT        NOT NULL DEFAULT '',
    start_time           TIMESTAMPTZ,
    end_time             TIMESTAMPTZ,
    status               TEXT        NOT NULL DEFAULT 'PENDING',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_calendars (
    user_id     TEXT PRIMARY KEY,
    calendar_id TEXT        NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

var schemaMigrations = []string{
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS owner_id TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS verifier_id TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS completion_time TIMESTAMPTZ`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS verify_time TIMESTAMPTZ`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS reject_reason TEXT`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS redo_count INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS last_reminder_kind TEXT NOT NULL DEFAULT 'NONE'`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS last_reminder_at TIMESTAMPTZ`,
	`ALTER TABLE tasks ADD COLUMN IF NOT EXISTS owner_calendar_id TEXT NOT NULL DEFAULT ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tasks_external_schedule_id_key ON tasks (external_schedule_id)`,
	`CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status)`,
	`CREATE INDEX IF NOT EXISTS tasks_executor_id_idx ON tasks (executor_id)`,
}

// EnsureSchema creates or extends the schema. It is safe to run on every
// startup.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pgPool.Exec(ctx, createTablesQuery)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to create tables")
		return fmt.Errorf("create tables: %w", err)
	}
	for _, stmt := range schemaMigrations {
		_, err = s.pgPool.Exec(ctx, stmt)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("statement", stmt).
				Msg("failed to apply schema migration")
			return fmt.Errorf("apply schema migration: %w", err)
		}
	}
	s.logger.Info().
		Int("migrations", len(schemaMigrations)).
		Msg("ensured schema")
	return nil
}

const selectTaskColumns = `
SELECT id,
       external_schedule_id,
       creator_id,
       executor_id,
       owner_id,
       verifier_id,
       title,
       description,
       start_time,
       end_time,
       completion_time,
       verify_time,
       status,
       COALESCE(reject_reason, ''),
       redo_count,
       last_reminder_kind,
       last_reminder_at,
       owner_calendar_id,
       created_at,
       updated_at
FROM tasks
`

func scanTask(row pgx.Row) (*model.Task, error) {
	task := new(model.Task)
	var status, reminderKind string
	err := row.Scan(
		&task.ID,
		&task.ExternalScheduleID,
		&task.CreatorID,
		&task.ExecutorID,
		&task.OwnerID,
		&task.VerifierID,
		&task.Title,
		&task.Description,
		&task.StartTime,
		&task.EndTime,
		&task.CompletionTime,
		&task.VerifyTime,
		&status,
		&task.RejectReason,
		&task.RedoCount,
		&reminderKind,
		&task.LastReminderAt,
		&task.OwnerCalendarID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = model.Status(status)
	task.LastReminderKind = model.ReminderKind(reminderKind)
	return task, nil
}

func (s *Postgres) InsertTask(ctx context.Context, task *model.Task) (int64, error) {
	const insertTaskQuery = `
INSERT INTO tasks (external_schedule_id,
                   creator_id,
                   executor_id,
                   owner_id,
                   title,
                   description,
                   start_time,
                   end_time,
                   status,
                   redo_count,
                   last_reminder_kind,
                   owner_calendar_id,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id
`
	reminderKind := task.LastReminderKind
	if reminderKind == "" {
		reminderKind = model.ReminderNone
	}

	var taskID int64
	err := s.pgPool.QueryRow(
		ctx,
		insertTaskQuery,
		task.ExternalScheduleID,
		task.CreatorID,
		task.ExecutorID,
		task.OwnerID,
		task.Title,
		task.Description,
		task.StartTime,
		task.EndTime,
		string(task.Status),
		task.RedoCount,
		string(reminderKind),
		task.OwnerCalendarID,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&taskID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			s.logger.Warn().
				Str("schedule_id", task.ExternalScheduleID).
				Msg("task with this schedule id already exists")
			return 0, ErrDuplicateSchedule
		}

		s.logger.Error().
			Err(err).
			Str("schedule_id", task.ExternalScheduleID).
			Msg("failed to insert task")
		return 0, fmt.Errorf("insert task: %w", err)
	}
	s.logger.Debug().
		Int64("task_id", taskID).
		Str("schedule_id", task.ExternalScheduleID).
		Msg("inserted task")
	return taskID, nil
}

func (s *Postgres) GetTaskByScheduleID(ctx context.Context, scheduleID string) (*model.Task, error) {
	task, err := scanTask(s.pgPool.QueryRow(ctx, selectTaskColumns+`WHERE external_schedule_id = $1`, scheduleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error().
			Err(err).
			Str("schedule_id", scheduleID).
			Msg("failed to select task by schedule id")
		return nil, fmt.Errorf("select task: %w", err)
	}
	return task, nil
}

func (s *Postgres) ListTasks(ctx context.Context, filter Filter) ([]*model.Task, error) {
	const listTasksWhere = `
WHERE ($1::text = '' OR status = $1)
  AND ($2::text = '' OR executor_id = $2)
ORDER BY id
`
	rows, err := s.pgPool.Query(
		ctx,
		selectTaskColumns+listTasksWhere,
		string(filter.Status),
		filter.ExecutorID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select tasks")
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Str("status", string(filter.Status)).
		Msg("selected tasks")
	return tasks, nil
}

// UpdateSyncFields overwrites only the fields owned by calendar sync.
func (s *Postgres) UpdateSyncFields(ctx context.Context, task *model.Task) error {
	const updateSyncFieldsQuery = `
UPDATE tasks
SET title = $1,
    description = $2,
    creator_id = $3,
    executor_id = $4,
    owner_id = $5,
    owner_calendar_id = $6,
    start_time = $7,
    end_time = $8,
    updated_at = $9
WHERE id = $10
`
	tag, err := s.pgPool.Exec(
		ctx,
		updateSyncFieldsQuery,
		task.Title,
		task.Description,
		task.CreatorID,
		task.ExecutorID,
		task.OwnerID,
		task.OwnerCalendarID,
		task.StartTime,
		task.EndTime,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", task.ID).
			Msg("failed to update synced fields")
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkWaitingVerify(ctx context.Context, id int64, at time.Time) (int64, error) {
	const markWaitingVerifyQuery = `
UPDATE tasks
SET status = 'WAITING_VERIFY',
    completion_time = $1,
    reject_reason = NULL,
    updated_at = $1
WHERE id = $2 AND status = 'PENDING'
`
	return s.transition(ctx, "submit", markWaitingVerifyQuery, at, id)
}

func (s *Postgres) Approve(ctx context.Context, id int64, verifierID string, at time.Time) (int64, error) {
	const approveQuery = `
UPDATE tasks
SET status = 'COMPLETED',
    verify_time = $1,
    verifier_id = $2,
    reject_reason = NULL,
    updated_at = $1
WHERE id = $3 AND status = 'WAITING_VERIFY'
`
	return s.transition(ctx, "approve", approveQuery, at, verifierID, id)
}

func (s *Postgres) Reject(ctx context.Context, id int64, verifierID, reason string, at time.Time) (int64, error) {
	const rejectQuery = `
UPDATE tasks
SET status = 'PENDING',
    verify_time = $1,
    verifier_id = $2,
    reject_reason = $3,
    redo_count = redo_count + 1,
    updated_at = $1
WHERE id = $4 AND status = 'WAITING_VERIFY'
`
	return s.transition(ctx, "reject", rejectQuery, at, verifierID, reason, id)
}

func (s *Postgres) transition(ctx context.Context, name, query string, args ...any) (int64, error) {
	tag, err := s.pgPool.Exec(ctx, query, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("transition", name).
			Msg("failed to update task status")
		return 0, fmt.Errorf("%s task: %w", name, err)
	}
	s.logger.Debug().
		Str("transition", name).
		Int64("affected", tag.RowsAffected()).
		Msg("updated task status")
	return tag.RowsAffected(), nil
}

func (s *Postgres) StampReminder(ctx context.Context, id int64, kind model.ReminderKind, at time.Time) error {
	const stampReminderQuery = `
UPDATE tasks
SET last_reminder_kind = $1,
    last_reminder_at = $2,
    updated_at = $2
WHERE id = $3
`
	tag, err := s.pgPool.Exec(ctx, stampReminderQuery, string(kind), at, id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to stamp reminder")
		return fmt.Errorf("stamp reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListUserCalendars(ctx context.Context) ([]model.UserCalendar, error) {
	const selectUserCalendarsQuery = `
SELECT user_id,
       calendar_id,
       updated_at
FROM user_calendars
ORDER BY updated_at, user_id
`
	rows, err := s.pgPool.Query(ctx, selectUserCalendarsQuery)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select user calendars")
		return nil, fmt.Errorf("select user calendars: %w", err)
	}
	defer rows.Close()

	var out []model.UserCalendar
	for rows.Next() {
		var row model.UserCalendar
		if err = rows.Scan(&row.UserID, &row.CalendarID, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user calendar: %w", err)
		}
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user calendars: %w", err)
	}
	return out, nil
}

func (s *Postgres) UpsertUserCalendar(ctx context.Context, row model.UserCalendar) error {
	const upsertUserCalendarQuery = `
INSERT INTO user_calendars (user_id, calendar_id, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET calendar_id = EXCLUDED.calendar_id,
    updated_at = EXCLUDED.updated_at
`
	_, err := s.pgPool.Exec(ctx, upsertUserCalendarQuery, row.UserID, row.CalendarID, row.UpdatedAt)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", row.UserID).
			Msg("failed to upsert user calendar")
		return fmt.Errorf("upsert user calendar: %w", err)
	}
	s.logger.Debug().
		Str("user_id", row.UserID).
		Str("calendar_id", row.CalendarID).
		Msg("upserted user calendar")
	return nil
}
