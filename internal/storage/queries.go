package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const savedQueryColumns = "id, name, description, subreddit, sort, time_filter, item_limit, query, include_comments, comment_depth, created_at, last_run_at"

// CreateSavedQuery stores a reusable query template.
func (s *Store) CreateSavedQuery(ctx context.Context, q *SavedQuery) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = utcNow()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO saved_queries (
            name, description, subreddit, sort, time_filter, item_limit,
            query, include_comments, comment_depth, created_at, last_run_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Name,
		q.Description,
		q.Subreddit,
		q.Sort,
		q.TimeFilter,
		q.Limit,
		q.Query,
		boolToInt(q.IncludeComments),
		q.CommentDepth,
		q.CreatedAt.Format(timeFormat),
		nullableTime(q.LastRunAt),
	)
	if err != nil {
		return fmt.Errorf("insert saved query: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		q.ID = id
	}
	return nil
}

// GetSavedQuery fetches a saved query by identifier. Returns nil when absent.
func (s *Store) GetSavedQuery(ctx context.Context, id int64) (*SavedQuery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+savedQueryColumns+` FROM saved_queries WHERE id = ?`, id)
	q, err := scanSavedQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get saved query: %w", err)
	}
	return q, nil
}

// ListSavedQueries returns all saved queries, most recent first.
func (s *Store) ListSavedQueries(ctx context.Context) ([]*SavedQuery, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+savedQueryColumns+` FROM saved_queries ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list saved queries: %w", err)
	}
	defer rows.Close()

	var queries []*SavedQuery
	for rows.Next() {
		q, err := scanSavedQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// TouchSavedQuery records that a saved query was just run.
func (s *Store) TouchSavedQuery(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE saved_queries SET last_run_at = ? WHERE id = ?`,
		utcNow().Format(timeFormat),
		id,
	)
	if err != nil {
		return fmt.Errorf("touch saved query: %w", err)
	}
	return nil
}

// DeleteSavedQuery removes a saved query template.
func (s *Store) DeleteSavedQuery(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_queries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete saved query: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanSavedQuery(scanner rowScanner) (*SavedQuery, error) {
	var (
		q               SavedQuery
		includeComments int
		createdRaw      sql.NullString
		lastRunRaw      sql.NullString
	)
	if err := scanner.Scan(
		&q.ID,
		&q.Name,
		&q.Description,
		&q.Subreddit,
		&q.Sort,
		&q.TimeFilter,
		&q.Limit,
		&q.Query,
		&includeComments,
		&q.CommentDepth,
		&createdRaw,
		&lastRunRaw,
	); err != nil {
		return nil, err
	}
	q.IncludeComments = includeComments != 0
	if createdRaw.Valid {
		if t, err := parseTimeString(createdRaw.String); err == nil {
			q.CreatedAt = t
		}
	}
	if lastRunRaw.Valid {
		if t, err := parseTimeString(lastRunRaw.String); err == nil {
			q.LastRunAt = &t
		}
	}
	return &q, nil
}
