package domain

import "context"

// DeletedAuthor is the sentinel for removed or anonymous authors.
const DeletedAuthor = "[deleted]"

// Hard ceilings shared by both backends.
const (
	MaxSubredditSearch = 25
	MaxPosts           = 250
	MaxComments        = 500
	MaxCommentDepth    = 10
)

// Sort modes for subreddit listings.
const (
	SortHot           = "hot"
	SortNew           = "new"
	SortTop           = "top"
	SortRising        = "rising"
	SortControversial = "controversial"
)

// Time filters, meaningful for top/controversial sorts.
const (
	TimeHour  = "hour"
	TimeDay   = "day"
	TimeWeek  = "week"
	TimeMonth = "month"
	TimeYear  = "year"
	TimeAll   = "all"
)

// SubredditInfo is basic subreddit metadata.
type SubredditInfo struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Subscribers int     `json:"subscribers"`
	Description string  `json:"description"`
	CreatedUTC  float64 `json:"created_utc"`
}

// PostData is a collected post as returned by a backend.
type PostData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
}

// CommentData is a collected comment, flattened out of the reply tree.
type CommentData struct {
	ID         string  `json:"id"`
	PostID     string  `json:"post_id"`
	ParentID   string  `json:"parent_id,omitempty"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Depth      int     `json:"depth"`
}

// RateLimitInfo is a best-effort view of remaining request capacity.
type RateLimitInfo struct {
	Remaining      float64 `json:"remaining"`
	Used           int     `json:"used"`
	ResetTimestamp float64 `json:"reset_timestamp"`
}

// ListingRequest describes one posts listing (or in-subreddit search when
// Query is set).
type ListingRequest struct {
	Subreddit  string
	Sort       string
	TimeFilter string
	Limit      int
	Query      string
}

// CollectionConfig configures a collection run.
type CollectionConfig struct {
	Subreddit       string `json:"subreddit"`
	Sort            string `json:"sort"`
	TimeFilter      string `json:"time_filter"`
	Limit           int    `json:"limit"`
	Query           string `json:"query,omitempty"`
	IncludeComments bool   `json:"include_comments"`
	CommentDepth    int    `json:"comment_depth"`
}

// Collector is the capability contract both backends implement. Callers can
// swap one backend for the other with no behavioral branching beyond the
// credential-check path.
type Collector interface {
	SearchSubreddits(ctx context.Context, query string, limit int) ([]SubredditInfo, error)
	SubredditMeta(ctx context.Context, name string) (SubredditInfo, error)
	Posts(ctx context.Context, req ListingRequest) ([]PostData, error)
	Comments(ctx context.Context, postID string, depth, limit int) ([]CommentData, error)
	RateLimitStatus(ctx context.Context) RateLimitInfo
	ValidateCredentials(ctx context.Context) (bool, string)
	IsConfigured() bool
}
