package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/jethomasphd/thresh/internal/domain"
)

// MockCollector implements domain.Collector with overridable function
// fields. Nil fields fall back to deterministic fake data, which keeps
// orchestration tests short.
type MockCollector struct {
	SearchSubredditsFn    func(ctx context.Context, query string, limit int) ([]domain.SubredditInfo, error)
	SubredditMetaFn       func(ctx context.Context, name string) (domain.SubredditInfo, error)
	PostsFn               func(ctx context.Context, req domain.ListingRequest) ([]domain.PostData, error)
	CommentsFn            func(ctx context.Context, postID string, depth, limit int) ([]domain.CommentData, error)
	RateLimitStatusFn     func(ctx context.Context) domain.RateLimitInfo
	ValidateCredentialsFn func(ctx context.Context) (bool, string)
}

func NewMockCollector() *MockCollector { return &MockCollector{} }

func (mc *MockCollector) IsConfigured() bool { return true }

func (mc *MockCollector) SearchSubreddits(ctx context.Context, query string, limit int) ([]domain.SubredditInfo, error) {
	if mc.SearchSubredditsFn != nil {
		return mc.SearchSubredditsFn(ctx, query, limit)
	}
	results := make([]domain.SubredditInfo, 0, limit)
	for i := 0; i < limit; i++ {
		results = append(results, domain.SubredditInfo{
			Name:        fmt.Sprintf("%s_%d", query, i),
			Title:       fmt.Sprintf("Community about %s #%d", query, i),
			Subscribers: 1000 * (i + 1),
			CreatedUTC:  float64(time.Now().Unix()),
		})
	}
	return results, nil
}

func (mc *MockCollector) SubredditMeta(ctx context.Context, name string) (domain.SubredditInfo, error) {
	if mc.SubredditMetaFn != nil {
		return mc.SubredditMetaFn(ctx, name)
	}
	return domain.SubredditInfo{
		Name:        name,
		Title:       "r/" + name,
		Subscribers: 12345,
		Description: "mock subreddit",
		CreatedUTC:  float64(time.Now().Unix()),
	}, nil
}

func (mc *MockCollector) Posts(ctx context.Context, req domain.ListingRequest) ([]domain.PostData, error) {
	if mc.PostsFn != nil {
		return mc.PostsFn(ctx, req)
	}
	posts := make([]domain.PostData, 0, req.Limit)
	for i := 0; i < req.Limit; i++ {
		posts = append(posts, domain.PostData{
			ID:          fmt.Sprintf("mock_%s_%d", req.Subreddit, i),
			Subreddit:   req.Subreddit,
			Title:       fmt.Sprintf("Mock post #%d", i),
			Selftext:    "mock body",
			Author:      fmt.Sprintf("mock_user_%d", i%3),
			Score:       10 * i,
			NumComments: 2,
			CreatedUTC:  float64(time.Now().Unix()),
			URL:         "http://localhost/mock-url",
			Permalink:   fmt.Sprintf("/r/%s/comments/mock_%d", req.Subreddit, i),
		})
	}
	return posts, nil
}

func (mc *MockCollector) Comments(ctx context.Context, postID string, depth, limit int) ([]domain.CommentData, error) {
	if mc.CommentsFn != nil {
		return mc.CommentsFn(ctx, postID, depth, limit)
	}
	n := 2
	if n > limit {
		n = limit
	}
	comments := make([]domain.CommentData, 0, n)
	for i := 0; i < n; i++ {
		comments = append(comments, domain.CommentData{
			ID:         fmt.Sprintf("%s_c%d", postID, i),
			PostID:     postID,
			ParentID:   "t3_" + postID,
			Author:     fmt.Sprintf("mock_commenter_%d", i),
			Body:       "mock comment",
			Score:      i,
			CreatedUTC: float64(time.Now().Unix()),
			Depth:      0,
		})
	}
	return comments, nil
}

func (mc *MockCollector) RateLimitStatus(ctx context.Context) domain.RateLimitInfo {
	if mc.RateLimitStatusFn != nil {
		return mc.RateLimitStatusFn(ctx)
	}
	return domain.RateLimitInfo{Remaining: 100, Used: 0, ResetTimestamp: float64(time.Now().Add(time.Minute).Unix())}
}

func (mc *MockCollector) ValidateCredentials(ctx context.Context) (bool, string) {
	if mc.ValidateCredentialsFn != nil {
		return mc.ValidateCredentialsFn(ctx)
	}
	return true, "mock collector is always valid"
}
