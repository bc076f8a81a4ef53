package storage

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a collection job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusPending:   {},
	StatusRunning:   {},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CollectionJob is the unit of work and audit record for one collection run.
type CollectionJob struct {
	ID                int64
	SavedQueryID      *int64
	Subreddit         string
	Status            Status
	TotalPosts        int
	CollectedPosts    int
	TotalComments     int
	CollectedComments int
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
}

// CollectedPost is a stored post. RedditID is the natural key, unique
// across the whole store.
type CollectedPost struct {
	ID          int64
	JobID       int64
	RedditID    string
	Subreddit   string
	Title       string
	Selftext    string
	Author      string
	Score       int
	NumComments int
	CreatedUTC  float64
	URL         string
	Permalink   string
	CollectedAt time.Time
}

// CollectedComment is a stored comment. ParentRedditID is a logical
// reference; the parent may not be materialized if expansion was partial.
type CollectedComment struct {
	ID             int64
	JobID          int64
	RedditID       string
	PostRedditID   string
	ParentRedditID string
	Author         string
	Body           string
	Score          int
	CreatedUTC     float64
	Depth          int
	CollectedAt    time.Time
}

// SavedQuery is a reusable collection query template.
type SavedQuery struct {
	ID              int64
	Name            string
	Description     string
	Subreddit       string
	Sort            string
	TimeFilter      string
	Limit           int
	Query           string
	IncludeComments bool
	CommentDepth    int
	CreatedAt       time.Time
	LastRunAt       *time.Time
}

// ExportRecord documents one produced export bundle.
type ExportRecord struct {
	ID               int64
	JobID            int64
	Format           string
	FilePath         string
	ExportedAt       time.Time
	RecordCount      int
	IncludesComments bool
	Anonymized       bool
}
