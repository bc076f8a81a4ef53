package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const commentColumns = "id, job_id, reddit_id, post_reddit_id, parent_reddit_id, author, body, score, created_utc, depth, collected_at"

// CommentExists reports whether a comment with the given natural key is
// already stored.
func (s *Store) CommentExists(ctx context.Context, redditID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM collected_comments WHERE reddit_id = ?`,
		redditID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("comment exists: %w", err)
	}
	return n > 0, nil
}

// InsertComment stores a collected comment.
func (s *Store) InsertComment(ctx context.Context, comment *CollectedComment) error {
	if comment.CollectedAt.IsZero() {
		comment.CollectedAt = utcNow()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO collected_comments (
            job_id, reddit_id, post_reddit_id, parent_reddit_id, author,
            body, score, created_utc, depth, collected_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.JobID,
		comment.RedditID,
		comment.PostRedditID,
		nullableString(comment.ParentRedditID),
		comment.Author,
		comment.Body,
		comment.Score,
		comment.CreatedUTC,
		comment.Depth,
		comment.CollectedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert comment %s: %w", comment.RedditID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		comment.ID = id
	}
	return nil
}

// JobComments returns a job's comments, optionally filtered to one parent
// post's natural key.
func (s *Store) JobComments(ctx context.Context, jobID int64, postRedditID string) ([]*CollectedComment, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if postRedditID == "" {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+commentColumns+` FROM collected_comments WHERE job_id = ? ORDER BY id`,
			jobID,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT `+commentColumns+` FROM collected_comments WHERE job_id = ? AND post_reddit_id = ? ORDER BY id`,
			jobID, postRedditID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list job comments: %w", err)
	}
	defer rows.Close()

	var comments []*CollectedComment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// JobCommentsByCreated returns all of a job's comments ordered by creation
// time ascending, as exports present them.
func (s *Store) JobCommentsByCreated(ctx context.Context, jobID int64) ([]*CollectedComment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+commentColumns+` FROM collected_comments WHERE job_id = ? ORDER BY created_utc ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job comments: %w", err)
	}
	defer rows.Close()

	var comments []*CollectedComment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// CommentCount returns the number of comments stored for a job.
func (s *Store) CommentCount(ctx context.Context, jobID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM collected_comments WHERE job_id = ?`,
		jobID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}

func scanComment(scanner rowScanner) (*CollectedComment, error) {
	var (
		comment      CollectedComment
		parentID     sql.NullString
		collectedRaw sql.NullString
	)
	if err := scanner.Scan(
		&comment.ID,
		&comment.JobID,
		&comment.RedditID,
		&comment.PostRedditID,
		&parentID,
		&comment.Author,
		&comment.Body,
		&comment.Score,
		&comment.CreatedUTC,
		&comment.Depth,
		&collectedRaw,
	); err != nil {
		return nil, err
	}
	comment.ParentRedditID = parentID.String
	if collectedRaw.Valid {
		if t, err := parseTimeString(collectedRaw.String); err == nil {
			comment.CollectedAt = t
		}
	}
	return &comment, nil
}
