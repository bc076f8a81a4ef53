package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJobLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("new job status = %q, want %q", job.Status, StatusPending)
	}
	if job.SavedQueryID != nil {
		t.Fatalf("new job saved query id = %v, want nil", *job.SavedQueryID)
	}

	now := utcNow()
	job.Status = StatusRunning
	job.StartedAt = &now
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	job.Status = StatusCompleted
	job.TotalPosts = 10
	job.CollectedPosts = 8
	job.CompletedAt = &now
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.CollectedPosts != 8 || got.TotalPosts != 10 {
		t.Errorf("counters = %d/%d, want 8/10", got.CollectedPosts, got.TotalPosts)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Errorf("timestamps not persisted: started=%v completed=%v", got.StartedAt, got.CompletedAt)
	}
}

func TestGetJobMissing(t *testing.T) {
	store := newTestStore(t)

	job, err := store.GetJob(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Fatalf("GetJob for missing id returned %+v, want nil", job)
	}
}

func TestRecentJobsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, sub := range []string{"first", "second", "third"} {
		if _, err := store.CreateJob(ctx, sub, nil); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	jobs, err := store.RecentJobs(ctx, 2)
	if err != nil {
		t.Fatalf("RecentJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].Subreddit != "third" || jobs[1].Subreddit != "second" {
		t.Errorf("order = [%s, %s], want [third, second]", jobs[0].Subreddit, jobs[1].Subreddit)
	}
}

func TestPostDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	post := &CollectedPost{
		JobID:     job.ID,
		RedditID:  "abc123",
		Subreddit: "golang",
		Title:     "first",
		Author:    "alice",
	}
	if err := store.InsertPost(ctx, post); err != nil {
		t.Fatalf("InsertPost: %v", err)
	}

	exists, err := store.PostExists(ctx, "abc123")
	if err != nil {
		t.Fatalf("PostExists: %v", err)
	}
	if !exists {
		t.Fatal("PostExists = false after insert")
	}

	// The natural key is unique across the whole store, not per job.
	other, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	dup := &CollectedPost{JobID: other.ID, RedditID: "abc123", Subreddit: "golang", Title: "dup"}
	if err := store.InsertPost(ctx, dup); err == nil {
		t.Fatal("InsertPost with duplicate reddit_id succeeded, want unique violation")
	}
}

func TestJobPostsPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	for i := 0; i < 5; i++ {
		post := &CollectedPost{
			JobID:     job.ID,
			RedditID:  string(rune('a' + i)),
			Subreddit: "golang",
			Title:     "post",
		}
		if err := store.InsertPost(ctx, post); err != nil {
			t.Fatalf("InsertPost %d: %v", i, err)
		}
	}

	page, err := store.JobPosts(ctx, job.ID, 2, 2)
	if err != nil {
		t.Fatalf("JobPosts: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("len(page) = %d, want 2", len(page))
	}
	if page[0].RedditID != "c" || page[1].RedditID != "d" {
		t.Errorf("page = [%s, %s], want [c, d]", page[0].RedditID, page[1].RedditID)
	}
}

func TestCommentDedupAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	comment := &CollectedComment{
		JobID:        job.ID,
		RedditID:     "c1",
		PostRedditID: "p1",
		Author:       "bob",
		Body:         "hello",
	}
	if err := store.InsertComment(ctx, comment); err != nil {
		t.Fatalf("InsertComment: %v", err)
	}

	exists, err := store.CommentExists(ctx, "c1")
	if err != nil {
		t.Fatalf("CommentExists: %v", err)
	}
	if !exists {
		t.Fatal("CommentExists = false after insert")
	}

	count, err := store.CommentCount(ctx, job.ID)
	if err != nil {
		t.Fatalf("CommentCount: %v", err)
	}
	if count != 1 {
		t.Errorf("CommentCount = %d, want 1", count)
	}
}

func TestSavedQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	q := &SavedQuery{
		Name:            "weekly golang",
		Description:     "top golang posts of the week",
		Subreddit:       "golang",
		Sort:            "top",
		TimeFilter:      "week",
		Limit:           50,
		IncludeComments: true,
		CommentDepth:    3,
	}
	if err := store.CreateSavedQuery(ctx, q); err != nil {
		t.Fatalf("CreateSavedQuery: %v", err)
	}
	if q.ID == 0 {
		t.Fatal("saved query id not assigned")
	}

	got, err := store.GetSavedQuery(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetSavedQuery: %v", err)
	}
	if got.Name != q.Name || got.Limit != 50 || !got.IncludeComments || got.CommentDepth != 3 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.LastRunAt != nil {
		t.Errorf("new saved query LastRunAt = %v, want nil", got.LastRunAt)
	}

	if err := store.TouchSavedQuery(ctx, q.ID); err != nil {
		t.Fatalf("TouchSavedQuery: %v", err)
	}
	got, err = store.GetSavedQuery(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetSavedQuery: %v", err)
	}
	if got.LastRunAt == nil {
		t.Error("LastRunAt still nil after touch")
	}

	deleted, err := store.DeleteSavedQuery(ctx, q.ID)
	if err != nil {
		t.Fatalf("DeleteSavedQuery: %v", err)
	}
	if !deleted {
		t.Error("DeleteSavedQuery reported nothing deleted")
	}
}

func TestExportRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	rec := &ExportRecord{
		JobID:            job.ID,
		Format:           "csv",
		FilePath:         "/tmp/export.zip",
		RecordCount:      42,
		IncludesComments: true,
		Anonymized:       false,
	}
	if err := store.InsertExportRecord(ctx, rec); err != nil {
		t.Fatalf("InsertExportRecord: %v", err)
	}

	all, err := store.ListExportRecords(ctx, 0)
	if err != nil {
		t.Fatalf("ListExportRecords: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(all) = %d, want 1", len(all))
	}

	forJob, err := store.ListExportRecords(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListExportRecords(job): %v", err)
	}
	if len(forJob) != 1 || forJob[0].RecordCount != 42 {
		t.Errorf("job exports = %+v", forJob)
	}

	none, err := store.ListExportRecords(ctx, job.ID+1)
	if err != nil {
		t.Fatalf("ListExportRecords(other): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("exports for unrelated job = %d, want 0", len(none))
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("  Completed "); !ok || s != StatusCompleted {
		t.Errorf("ParseStatus(Completed) = %q, %v", s, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Error("ParseStatus accepted bogus status")
	}
	if !StatusFailed.IsTerminal() || StatusRunning.IsTerminal() {
		t.Error("IsTerminal misclassified statuses")
	}
}
