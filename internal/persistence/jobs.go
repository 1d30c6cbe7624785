package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MimeLyc/cinefluent/internal/jobs"
)

const jobColumns = `id, movie_id, language, title, external_subtitle_id, file_id, provider, source, file_url,
	status, priority, retry_count, error_message, dedupe_key, created_at, updated_at, started_at, completed_at, not_before`

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func scanJob(rows *sql.Rows) (*jobs.Job, error) {
	var (
		job                             jobs.Job
		status                          string
		createdAt, updatedAt, notBefore string
		startedAt, completedAt          sql.NullString
	)
	if err := rows.Scan(
		&job.ID,
		&job.MovieID,
		&job.Language,
		&job.Title,
		&job.ExternalSubtitleID,
		&job.FileID,
		&job.Provider,
		&job.Source,
		&job.FileURL,
		&status,
		&job.Priority,
		&job.RetryCount,
		&job.ErrorMessage,
		&job.DedupeKey,
		&createdAt,
		&updatedAt,
		&startedAt,
		&completedAt,
		&notBefore,
	); err != nil {
		return nil, err
	}
	job.Status = jobs.Status(status)

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.NotBefore, err = parseTime(notBefore); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if job.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	return &job, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			movie_id=excluded.movie_id,
			language=excluded.language,
			title=excluded.title,
			external_subtitle_id=excluded.external_subtitle_id,
			file_id=excluded.file_id,
			provider=excluded.provider,
			source=excluded.source,
			file_url=excluded.file_url,
			status=excluded.status,
			priority=excluded.priority,
			retry_count=excluded.retry_count,
			error_message=excluded.error_message,
			dedupe_key=excluded.dedupe_key,
			updated_at=excluded.updated_at,
			started_at=excluded.started_at,
			completed_at=excluded.completed_at,
			not_before=excluded.not_before`,
		job.ID,
		job.MovieID,
		job.Language,
		job.Title,
		job.ExternalSubtitleID,
		job.FileID,
		job.Provider,
		job.Source,
		job.FileURL,
		string(job.Status),
		job.Priority,
		job.RetryCount,
		job.ErrorMessage,
		job.DedupeKey,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		formatTime(job.NotBefore),
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// CompareAndSwapStatus updates the status only when the row still holds from.
func (s *SQLiteStore) CompareAndSwapStatus(ctx context.Context, jobID string, from, to jobs.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ? AND status = ?`, string(to), jobID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
