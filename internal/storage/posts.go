package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const postColumns = "id, job_id, reddit_id, subreddit, title, selftext, author, score, num_comments, created_utc, url, permalink, collected_at"

// PostExists reports whether a post with the given natural key is already
// stored, regardless of which job collected it.
func (s *Store) PostExists(ctx context.Context, redditID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM collected_posts WHERE reddit_id = ?`,
		redditID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("post exists: %w", err)
	}
	return n > 0, nil
}

// InsertPost stores a collected post.
func (s *Store) InsertPost(ctx context.Context, post *CollectedPost) error {
	if post.CollectedAt.IsZero() {
		post.CollectedAt = utcNow()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO collected_posts (
            job_id, reddit_id, subreddit, title, selftext, author,
            score, num_comments, created_utc, url, permalink, collected_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.JobID,
		post.RedditID,
		post.Subreddit,
		post.Title,
		post.Selftext,
		post.Author,
		post.Score,
		post.NumComments,
		post.CreatedUTC,
		post.URL,
		post.Permalink,
		post.CollectedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert post %s: %w", post.RedditID, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		post.ID = id
	}
	return nil
}

// JobPosts returns a job's posts with offset/limit paging, in insertion order.
func (s *Store) JobPosts(ctx context.Context, jobID int64, offset, limit int) ([]*CollectedPost, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM collected_posts WHERE job_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		jobID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list job posts: %w", err)
	}
	defer rows.Close()

	var posts []*CollectedPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// JobPostsByCreated returns all of a job's posts ordered by creation time
// descending, as exports present them.
func (s *Store) JobPostsByCreated(ctx context.Context, jobID int64) ([]*CollectedPost, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM collected_posts WHERE job_id = ? ORDER BY created_utc DESC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job posts: %w", err)
	}
	defer rows.Close()

	var posts []*CollectedPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func scanPost(scanner rowScanner) (*CollectedPost, error) {
	var (
		post         CollectedPost
		collectedRaw sql.NullString
	)
	if err := scanner.Scan(
		&post.ID,
		&post.JobID,
		&post.RedditID,
		&post.Subreddit,
		&post.Title,
		&post.Selftext,
		&post.Author,
		&post.Score,
		&post.NumComments,
		&post.CreatedUTC,
		&post.URL,
		&post.Permalink,
		&collectedRaw,
	); err != nil {
		return nil, err
	}
	if collectedRaw.Valid {
		if t, err := parseTimeString(collectedRaw.String); err == nil {
			post.CollectedAt = t
		}
	}
	return &post, nil
}
