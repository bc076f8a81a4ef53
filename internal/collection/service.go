// Package collection orchestrates collection jobs: fetching posts and
// comments through a backend and persisting them with progress tracking.
package collection

import (
	"context"
	"log/slog"
	"time"

	"github.com/jethomasphd/thresh/internal/domain"
	"github.com/jethomasphd/thresh/internal/storage"
)

func utcNow() time.Time { return time.Now().UTC() }

// Per-post comment fetch ceiling. The job-level cap is enforced by the
// backend clamp on top of this.
const commentsPerPost = 100

// Service runs collection jobs against a backend and records results.
type Service struct {
	store     *storage.Store
	collector domain.Collector
	logger    *slog.Logger
}

func NewService(store *storage.Store, collector domain.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, collector: collector, logger: logger}
}

// Collect creates a job for cfg and runs it to a terminal state. The
// returned job reflects the final state; the error covers only job
// bookkeeping failures, never collection failures, which land in the
// job's status and error message instead.
func (s *Service) Collect(ctx context.Context, cfg domain.CollectionConfig) (*storage.CollectionJob, error) {
	job, err := s.store.CreateJob(ctx, cfg.Subreddit, nil)
	if err != nil {
		return nil, err
	}
	s.Run(ctx, job.ID, cfg)
	return s.store.GetJob(ctx, job.ID)
}

// RunSavedQuery replays a saved query as a new job and stamps the query's
// last-run time on success.
func (s *Service) RunSavedQuery(ctx context.Context, queryID int64) (*storage.CollectionJob, error) {
	saved, err := s.store.GetSavedQuery(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, domain.WrapErr(domain.ErrNotFound, "saved query not found", nil)
	}

	cfg := domain.CollectionConfig{
		Subreddit:       saved.Subreddit,
		Sort:            saved.Sort,
		TimeFilter:      saved.TimeFilter,
		Limit:           saved.Limit,
		Query:           saved.Query,
		IncludeComments: saved.IncludeComments,
		CommentDepth:    saved.CommentDepth,
	}
	job, err := s.store.CreateJob(ctx, saved.Subreddit, &saved.ID)
	if err != nil {
		return nil, err
	}
	s.Run(ctx, job.ID, cfg)

	if err := s.store.TouchSavedQuery(ctx, queryID); err != nil {
		s.logger.Error("failed to stamp saved query run time", "query_id", queryID, "error", err)
	}
	return s.store.GetJob(ctx, job.ID)
}

// Run executes one collection job to a terminal state. It never returns an
// error: every failure mode ends with the job marked failed and the cause
// recorded on the job row, so the job table is the single source of truth
// for what happened.
func (s *Service) Run(ctx context.Context, jobID int64, cfg domain.CollectionConfig) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		s.logger.Error("collection job not found", "job_id", jobID, "error", err)
		return
	}

	now := utcNow()
	job.Status = storage.StatusRunning
	job.StartedAt = &now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		s.logger.Error("failed to mark job running", "job_id", jobID, "error", err)
		return
	}
	s.logger.Info("collection started",
		"job_id", jobID, "subreddit", cfg.Subreddit, "sort", cfg.Sort, "limit", cfg.Limit)

	posts, err := s.collector.Posts(ctx, domain.ListingRequest{
		Subreddit:  cfg.Subreddit,
		Sort:       cfg.Sort,
		TimeFilter: cfg.TimeFilter,
		Limit:      cfg.Limit,
		Query:      cfg.Query,
	})
	if err != nil {
		s.fail(ctx, job, err)
		return
	}

	job.TotalPosts = len(posts)
	newPosts := make([]domain.PostData, 0, len(posts))
	for _, post := range posts {
		exists, err := s.store.PostExists(ctx, post.ID)
		if err != nil {
			s.fail(ctx, job, err)
			return
		}
		if exists {
			continue
		}
		if err := s.store.InsertPost(ctx, &storage.CollectedPost{
			JobID:       job.ID,
			RedditID:    post.ID,
			Subreddit:   post.Subreddit,
			Title:       post.Title,
			Selftext:    post.Selftext,
			Author:      post.Author,
			Score:       post.Score,
			NumComments: post.NumComments,
			CreatedUTC:  post.CreatedUTC,
			URL:         post.URL,
			Permalink:   post.Permalink,
		}); err != nil {
			s.fail(ctx, job, err)
			return
		}
		newPosts = append(newPosts, post)
		job.CollectedPosts = len(newPosts)
		if err := s.store.UpdateJob(ctx, job); err != nil {
			s.logger.Error("failed to update job progress", "job_id", jobID, "error", err)
		}
	}
	s.logger.Info("posts collected",
		"job_id", jobID, "fetched", len(posts), "new", len(newPosts))

	if cfg.IncludeComments && len(newPosts) > 0 {
		s.collectComments(ctx, job, cfg, newPosts)
	}

	now = utcNow()
	job.Status = storage.StatusCompleted
	job.CompletedAt = &now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		s.logger.Error("failed to mark job completed", "job_id", jobID, "error", err)
		return
	}
	s.logger.Info("collection completed",
		"job_id", jobID, "posts", job.CollectedPosts, "comments", job.CollectedComments)
}

// collectComments fetches replies for each newly collected post. A failure
// on one post is logged and skipped; partial comment coverage never fails
// the job.
func (s *Service) collectComments(ctx context.Context, job *storage.CollectionJob, cfg domain.CollectionConfig, posts []domain.PostData) {
	depth := cfg.CommentDepth
	if depth <= 0 || depth > domain.MaxCommentDepth {
		depth = domain.MaxCommentDepth
	}
	for _, post := range posts {
		job.TotalComments += post.NumComments
	}

	for _, post := range posts {
		comments, err := s.collector.Comments(ctx, post.ID, depth, commentsPerPost)
		if err != nil {
			s.logger.Warn("comment collection failed for post, skipping",
				"job_id", job.ID, "post_id", post.ID, "error", err)
			continue
		}
		for _, comment := range comments {
			exists, err := s.store.CommentExists(ctx, comment.ID)
			if err != nil || exists {
				continue
			}
			if err := s.store.InsertComment(ctx, &storage.CollectedComment{
				JobID:          job.ID,
				RedditID:       comment.ID,
				PostRedditID:   comment.PostID,
				ParentRedditID: comment.ParentID,
				Author:         comment.Author,
				Body:           comment.Body,
				Score:          comment.Score,
				CreatedUTC:     comment.CreatedUTC,
				Depth:          comment.Depth,
			}); err != nil {
				s.logger.Error("failed to store comment",
					"job_id", job.ID, "comment_id", comment.ID, "error", err)
				continue
			}
			job.CollectedComments++
		}
		if err := s.store.UpdateJob(ctx, job); err != nil {
			s.logger.Error("failed to update job progress", "job_id", job.ID, "error", err)
		}
	}
}

func (s *Service) fail(ctx context.Context, job *storage.CollectionJob, cause error) {
	now := utcNow()
	job.Status = storage.StatusFailed
	job.CompletedAt = &now
	job.ErrorMessage = cause.Error()
	if err := s.store.UpdateJob(ctx, job); err != nil {
		s.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	s.logger.Error("collection failed", "job_id", job.ID, "error", cause)
}
