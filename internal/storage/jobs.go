package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, saved_query_id, subreddit, status, total_posts, collected_posts, total_comments, collected_comments, started_at, completed_at, error_message"

// CreateJob inserts a new pending collection job.
func (s *Store) CreateJob(ctx context.Context, subreddit string, savedQueryID *int64) (*CollectionJob, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO collection_jobs (saved_query_id, subreddit, status) VALUES (?, ?, ?)`,
		nullableInt64(savedQueryID),
		subreddit,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a collection job by identifier. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*CollectionJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM collection_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, job *CollectionJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE collection_jobs
         SET saved_query_id = ?, subreddit = ?, status = ?, total_posts = ?,
             collected_posts = ?, total_comments = ?, collected_comments = ?,
             started_at = ?, completed_at = ?, error_message = ?
         WHERE id = ?`,
		nullableInt64(job.SavedQueryID),
		job.Subreddit,
		job.Status,
		job.TotalPosts,
		job.CollectedPosts,
		job.TotalComments,
		job.CollectedComments,
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		nullableString(job.ErrorMessage),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// RecentJobs returns jobs most-recently-created first.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]*CollectionJob, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM collection_jobs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*CollectionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner rowScanner) (*CollectionJob, error) {
	var (
		id                int64
		savedQueryID      sql.NullInt64
		subreddit         string
		statusStr         string
		totalPosts        int
		collectedPosts    int
		totalComments     int
		collectedComments int
		startedRaw        sql.NullString
		completedRaw      sql.NullString
		errorMessage      sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&savedQueryID,
		&subreddit,
		&statusStr,
		&totalPosts,
		&collectedPosts,
		&totalComments,
		&collectedComments,
		&startedRaw,
		&completedRaw,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	job := &CollectionJob{
		ID:                id,
		Subreddit:         subreddit,
		Status:            Status(statusStr),
		TotalPosts:        totalPosts,
		CollectedPosts:    collectedPosts,
		TotalComments:     totalComments,
		CollectedComments: collectedComments,
		ErrorMessage:      errorMessage.String,
	}
	if savedQueryID.Valid {
		v := savedQueryID.Int64
		job.SavedQueryID = &v
	}
	if startedRaw.Valid {
		if t, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &t
		}
	}
	if completedRaw.Valid {
		if t, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &t
		}
	}
	return job, nil
}

// utcNow returns the current time in UTC, used for every stored timestamp.
func utcNow() time.Time { return time.Now().UTC() }
