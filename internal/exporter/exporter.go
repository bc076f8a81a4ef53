// Package exporter turns a completed collection job into a research-ready
// ZIP bundle: the data file in CSV, JSON, or JSONL plus a provenance.txt
// sidecar documenting exactly how the data was collected.
package exporter

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	appcfg "github.com/jethomasphd/thresh/internal/config"
	"github.com/jethomasphd/thresh/internal/domain"
	"github.com/jethomasphd/thresh/internal/storage"
)

// Supported export formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Config selects the format and privacy options of one export.
type Config struct {
	Format           string `json:"format"`
	IncludeComments  bool   `json:"include_comments"`
	AnonymizeAuthors bool   `json:"anonymize_authors"`
}

// Exporter produces export bundles from stored collection data.
type Exporter struct {
	store    *storage.Store
	settings appcfg.Settings
	logger   *slog.Logger
}

func New(store *storage.Store, settings appcfg.Settings, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, settings: settings, logger: logger}
}

// ExportJob writes a ZIP bundle for a completed job and records it in the
// export table. Only completed jobs can be exported.
func (e *Exporter) ExportJob(ctx context.Context, jobID int64, cfg Config) (string, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", domain.WrapErr(domain.ErrNotFound, fmt.Sprintf("collection job %d not found", jobID), nil)
	}
	if job.Status != storage.StatusCompleted {
		return "", fmt.Errorf("collection job %d is not completed (status: %s); only completed jobs can be exported", jobID, job.Status)
	}

	posts, err := e.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return "", err
	}
	var comments []*storage.CollectedComment
	if cfg.IncludeComments {
		comments, err = e.store.JobCommentsByCreated(ctx, jobID)
		if err != nil {
			return "", err
		}
	}

	authors := newAuthorMapper(cfg.AnonymizeAuthors)

	var (
		dataContent  string
		dataFilename string
	)
	base := fmt.Sprintf("thresh_r-%s_job%d", job.Subreddit, job.ID)
	switch cfg.Format {
	case FormatCSV:
		dataContent, err = renderCSV(posts, comments, authors)
		dataFilename = base + ".csv"
	case FormatJSON:
		dataContent, err = renderJSON(posts, comments, authors)
		dataFilename = base + ".json"
	case FormatJSONL:
		dataContent, err = renderJSONL(posts, comments, authors)
		dataFilename = base + ".jsonl"
	default:
		return "", fmt.Errorf("unsupported export format: %s", cfg.Format)
	}
	if err != nil {
		return "", err
	}

	provenance, err := e.renderProvenance(ctx, job, cfg, len(posts), len(comments), authors)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.settings.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	zipName := fmt.Sprintf("%s_%s.zip", base, utcNow().Format("20060102_150405"))
	zipPath := filepath.Join(e.settings.ExportDir, zipName)
	if err := writeBundle(zipPath, dataFilename, dataContent, provenance); err != nil {
		return "", err
	}

	record := &storage.ExportRecord{
		JobID:            jobID,
		Format:           cfg.Format,
		FilePath:         zipPath,
		RecordCount:      len(posts),
		IncludesComments: cfg.IncludeComments,
		Anonymized:       cfg.AnonymizeAuthors,
	}
	if err := e.store.InsertExportRecord(ctx, record); err != nil {
		return "", err
	}

	e.logger.Info("export completed",
		"job_id", jobID, "path", zipPath,
		"posts", len(posts), "comments", len(comments), "format", cfg.Format)
	return zipPath, nil
}

// ExportPath resolves an export record to its file on disk. Returns empty
// when the record is missing or the file has been removed.
func (e *Exporter) ExportPath(ctx context.Context, exportID int64) (string, error) {
	record, err := e.store.GetExportRecord(ctx, exportID)
	if err != nil || record == nil {
		return "", err
	}
	if _, statErr := os.Stat(record.FilePath); statErr != nil {
		e.logger.Warn("export file missing", "path", record.FilePath)
		return "", nil
	}
	return record.FilePath, nil
}

func writeBundle(zipPath, dataFilename, dataContent, provenance string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create export bundle: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, entry := range []struct{ name, body string }{
		{dataFilename, dataContent},
		{"provenance.txt", provenance},
	} {
		w, err := zw.Create(entry.name)
		if err != nil {
			return fmt.Errorf("add %s to bundle: %w", entry.name, err)
		}
		if _, err := w.Write([]byte(entry.body)); err != nil {
			return fmt.Errorf("write %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}
	return f.Close()
}

// authorMapper assigns stable anonymous IDs (author_0001, ...) in order of
// first appearance. A disabled mapper passes names through untouched.
type authorMapper struct {
	enabled bool
	ids     map[string]string
	order   []string
}

func newAuthorMapper(enabled bool) *authorMapper {
	return &authorMapper{enabled: enabled, ids: make(map[string]string)}
}

func (m *authorMapper) apply(author string) string {
	if !m.enabled {
		return author
	}
	if id, ok := m.ids[author]; ok {
		return id
	}
	id := fmt.Sprintf("author_%04d", len(m.ids)+1)
	m.ids[author] = id
	m.order = append(m.order, author)
	return id
}

func renderCSV(posts []*storage.CollectedPost, comments []*storage.CollectedComment, authors *authorMapper) (string, error) {
	var sb strings.Builder
	// UTF-8 BOM for Excel compatibility.
	sb.WriteString("\uFEFF")

	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"id", "subreddit", "title", "selftext", "author", "score", "num_comments", "created_utc", "url", "permalink"}); err != nil {
		return "", err
	}
	for _, p := range posts {
		if err := w.Write([]string{
			p.RedditID, p.Subreddit, p.Title, p.Selftext, authors.apply(p.Author),
			fmt.Sprintf("%d", p.Score), fmt.Sprintf("%d", p.NumComments),
			formatUTCFloat(p.CreatedUTC), p.URL, p.Permalink,
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	if len(comments) > 0 {
		sb.WriteString("\n")
		cw := csv.NewWriter(&sb)
		if err := cw.Write([]string{"comment_id", "post_id", "parent_id", "author", "body", "score", "created_utc", "depth"}); err != nil {
			return "", err
		}
		for _, c := range comments {
			if err := cw.Write([]string{
				c.RedditID, c.PostRedditID, c.ParentRedditID, authors.apply(c.Author),
				c.Body, fmt.Sprintf("%d", c.Score), formatUTCFloat(c.CreatedUTC), fmt.Sprintf("%d", c.Depth),
			}); err != nil {
				return "", err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

type commentExport struct {
	Type       string  `json:"type,omitempty"`
	ID         string  `json:"id"`
	PostID     string  `json:"post_id"`
	ParentID   string  `json:"parent_id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Depth      int     `json:"depth"`
}

type postExport struct {
	Type        string          `json:"type,omitempty"`
	ID          string          `json:"id"`
	Subreddit   string          `json:"subreddit"`
	Title       string          `json:"title"`
	Selftext    string          `json:"selftext"`
	Author      string          `json:"author"`
	Score       int             `json:"score"`
	NumComments int             `json:"num_comments"`
	CreatedUTC  float64         `json:"created_utc"`
	URL         string          `json:"url"`
	Permalink   string          `json:"permalink"`
	Comments    []commentExport `json:"comments,omitempty"`
}

func postToExport(p *storage.CollectedPost, authors *authorMapper) postExport {
	return postExport{
		ID:          p.RedditID,
		Subreddit:   p.Subreddit,
		Title:       p.Title,
		Selftext:    p.Selftext,
		Author:      authors.apply(p.Author),
		Score:       p.Score,
		NumComments: p.NumComments,
		CreatedUTC:  p.CreatedUTC,
		URL:         p.URL,
		Permalink:   p.Permalink,
	}
}

func commentToExport(c *storage.CollectedComment, authors *authorMapper) commentExport {
	return commentExport{
		ID:         c.RedditID,
		PostID:     c.PostRedditID,
		ParentID:   c.ParentRedditID,
		Author:     authors.apply(c.Author),
		Body:       c.Body,
		Score:      c.Score,
		CreatedUTC: c.CreatedUTC,
		Depth:      c.Depth,
	}
}

// renderJSON nests each post's comments under the post in a pretty-printed
// top-level array.
func renderJSON(posts []*storage.CollectedPost, comments []*storage.CollectedComment, authors *authorMapper) (string, error) {
	byPost := make(map[string][]*storage.CollectedComment)
	for _, c := range comments {
		byPost[c.PostRedditID] = append(byPost[c.PostRedditID], c)
	}

	out := make([]postExport, 0, len(posts))
	for _, p := range posts {
		entry := postToExport(p, authors)
		for _, c := range byPost[p.RedditID] {
			entry.Comments = append(entry.Comments, commentToExport(c, authors))
		}
		out = append(out, entry)
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// renderJSONL writes one type-tagged object per line, posts first.
func renderJSONL(posts []*storage.CollectedPost, comments []*storage.CollectedComment, authors *authorMapper) (string, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)

	for _, p := range posts {
		entry := postToExport(p, authors)
		entry.Type = "post"
		if err := enc.Encode(entry); err != nil {
			return "", err
		}
	}
	for _, c := range comments {
		entry := commentToExport(c, authors)
		entry.Type = "comment"
		if err := enc.Encode(entry); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

var formatDisplay = map[string]string{
	FormatCSV:   "CSV (UTF-8 with BOM)",
	FormatJSON:  "JSON (pretty-printed)",
	FormatJSONL: "JSON Lines (streaming)",
}

// renderProvenance builds the provenance.txt sidecar. Every bundle carries
// one: reproducibility depends on it.
func (e *Exporter) renderProvenance(ctx context.Context, job *storage.CollectionJob, cfg Config, postCount, commentCount int, authors *authorMapper) (string, error) {
	method := "Reddit public web data (no API key)"
	if e.settings.HasCredentials() {
		method = "Reddit API (authenticated)"
	}

	var saved *storage.SavedQuery
	if job.SavedQueryID != nil {
		var err error
		saved, err = e.store.GetSavedQuery(ctx, *job.SavedQueryID)
		if err != nil {
			return "", err
		}
	}

	searchQuery := "(none)"
	sortMethod := domain.SortHot
	timeFilter := domain.TimeAll
	maxRequested := job.TotalPosts
	endpoints := []string{"subreddit." + sortMethod}
	if saved != nil {
		if saved.Query != "" {
			searchQuery = saved.Query
		}
		if saved.Sort != "" {
			sortMethod = saved.Sort
		}
		if saved.TimeFilter != "" {
			timeFilter = saved.TimeFilter
		}
		if saved.Limit > 0 {
			maxRequested = saved.Limit
		}
		endpoints = []string{"subreddit." + sortMethod}
		if saved.Query != "" {
			endpoints = append(endpoints, "subreddit.search")
		}
	}

	unavailable := maxRequested - postCount
	unavailableNote := "All requested posts were available at collection time."
	if unavailable > 0 {
		unavailableNote = fmt.Sprintf("%d post(s) were unavailable (deleted/removed/duplicate) at collection time.", unavailable)
	}
	rateNote := "No rate limit interruptions were recorded during collection."
	if job.ErrorMessage != "" {
		rateNote = "Note: " + job.ErrorMessage
	}

	authorInfo := "N/A (usernames included as-is)"
	if cfg.AnonymizeAuthors {
		if n := len(authors.ids); n > 0 {
			authorInfo = fmt.Sprintf("%d unique authors -> author_0001 through author_%04d", n, n)
		} else {
			authorInfo = "No authors to anonymize"
		}
	}

	display := formatDisplay[cfg.Format]
	if display == "" {
		display = cfg.Format
	}

	return fmt.Sprintf(`=====================================
PROVENANCE — The Threshing Floor
=====================================

Tool: Thresh (The Threshing Floor) v%s
Export Date: %s
Collection Method: %s

--- Collection Details ---
Data Source(s): %s
Subreddit(s): r/%s
Sort Method: %s
Time Filter: %s
Search Query: %s
Max Posts Requested: %d
Posts Collected: %d
Comments Collected: %d
Collection Date: %s

--- Export Configuration ---
Format: %s
Comments Included: %s
Usernames Anonymized: %s
Author Mapping: %s

--- Post-Collection Notes ---
%s
%s

--- Ethical Notice ---
This dataset was collected from publicly available Reddit data.
If using for research, consult your organization's ethics board
regarding human subjects review for social media data.

--- Citation ---
Thomas, J. E. (2025). Thresh: The Threshing Floor (Version %s)
[Computer software].
=====================================
`,
		appcfg.Version,
		formatUTC(utcNow()),
		method,
		strings.Join(endpoints, ", "),
		job.Subreddit,
		sortMethod,
		timeFilter,
		searchQuery,
		maxRequested,
		postCount,
		commentCount,
		formatUTCPtr(job.StartedAt),
		display,
		yesNo(cfg.IncludeComments),
		yesNo(cfg.AnonymizeAuthors),
		authorInfo,
		unavailableNote,
		rateNote,
		appcfg.Version,
	), nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func utcNow() time.Time { return time.Now().UTC() }

func formatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + " UTC"
}

func formatUTCPtr(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return formatUTC(*t)
}

func formatUTCFloat(ts float64) string {
	return fmt.Sprintf("%g", ts)
}
