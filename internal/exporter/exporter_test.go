package exporter

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	appcfg "github.com/jethomasphd/thresh/internal/config"
	"github.com/jethomasphd/thresh/internal/storage"
)

func newTestExporter(t *testing.T) (*Exporter, *storage.Store, int64) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	posts := []*storage.CollectedPost{
		{JobID: job.ID, RedditID: "p1", Subreddit: "golang", Title: "first post", Selftext: "body one", Author: "alice", Score: 10, NumComments: 1, CreatedUTC: 1700000100},
		{JobID: job.ID, RedditID: "p2", Subreddit: "golang", Title: "second post", Author: "bob", Score: 5, CreatedUTC: 1700000000},
	}
	for _, p := range posts {
		if err := store.InsertPost(ctx, p); err != nil {
			t.Fatalf("InsertPost: %v", err)
		}
	}
	comment := &storage.CollectedComment{
		JobID: job.ID, RedditID: "c1", PostRedditID: "p1", ParentRedditID: "t3_p1",
		Author: "alice", Body: "a comment", Score: 3, CreatedUTC: 1700000200,
	}
	if err := store.InsertComment(ctx, comment); err != nil {
		t.Fatalf("InsertComment: %v", err)
	}

	now := utcNow()
	job.Status = storage.StatusCompleted
	job.TotalPosts = 2
	job.CollectedPosts = 2
	job.StartedAt = &now
	job.CompletedAt = &now
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	settings := appcfg.Settings{ExportDir: filepath.Join(dir, "exports")}
	return New(store, settings, nil), store, job.ID
}

func readBundle(t *testing.T, zipPath string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer r.Close()

	files := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(body)
	}
	return files
}

func TestExportRequiresCompletedJob(t *testing.T) {
	exp, store, _ := newTestExporter(t)
	ctx := context.Background()

	pending, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := exp.ExportJob(ctx, pending.ID, Config{Format: FormatCSV}); err == nil {
		t.Fatal("ExportJob succeeded for a pending job")
	}
	if _, err := exp.ExportJob(ctx, 9999, Config{Format: FormatCSV}); err == nil {
		t.Fatal("ExportJob succeeded for a missing job")
	}
}

func TestExportCSV(t *testing.T) {
	exp, store, jobID := newTestExporter(t)
	ctx := context.Background()

	path, err := exp.ExportJob(ctx, jobID, Config{Format: FormatCSV, IncludeComments: true})
	if err != nil {
		t.Fatalf("ExportJob: %v", err)
	}

	files := readBundle(t, path)
	if _, ok := files["provenance.txt"]; !ok {
		t.Fatal("bundle missing provenance.txt")
	}
	data, ok := files["thresh_r-golang_job1.csv"]
	if !ok {
		t.Fatalf("bundle files = %v, missing data csv", files)
	}

	if !strings.HasPrefix(data, "\uFEFF") {
		t.Error("CSV missing UTF-8 BOM")
	}
	if !strings.Contains(data, "id,subreddit,title,selftext,author,score,num_comments,created_utc,url,permalink") {
		t.Error("CSV missing post header")
	}
	if !strings.Contains(data, "comment_id,post_id,parent_id,author,body,score,created_utc,depth") {
		t.Error("CSV missing comment section header")
	}
	// Export order is newest-created posts first.
	if strings.Index(data, "p1") > strings.Index(data, "p2") {
		t.Error("posts not ordered newest first")
	}

	records, err := store.ListExportRecords(ctx, jobID)
	if err != nil {
		t.Fatalf("ListExportRecords: %v", err)
	}
	if len(records) != 1 || records[0].Format != FormatCSV || records[0].RecordCount != 2 {
		t.Errorf("export record = %+v", records)
	}

	resolved, err := exp.ExportPath(ctx, records[0].ID)
	if err != nil {
		t.Fatalf("ExportPath: %v", err)
	}
	if resolved != path {
		t.Errorf("ExportPath = %q, want %q", resolved, path)
	}
}

func TestExportJSONNestsComments(t *testing.T) {
	exp, _, jobID := newTestExporter(t)

	path, err := exp.ExportJob(context.Background(), jobID, Config{Format: FormatJSON, IncludeComments: true})
	if err != nil {
		t.Fatalf("ExportJob: %v", err)
	}
	files := readBundle(t, path)
	data := files["thresh_r-golang_job1.json"]

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(decoded))
	}

	var withComments int
	for _, post := range decoded {
		if comments, ok := post["comments"].([]any); ok && len(comments) > 0 {
			withComments++
		}
	}
	if withComments != 1 {
		t.Errorf("posts with nested comments = %d, want 1", withComments)
	}
}

func TestExportJSONL(t *testing.T) {
	exp, _, jobID := newTestExporter(t)

	path, err := exp.ExportJob(context.Background(), jobID, Config{Format: FormatJSONL, IncludeComments: true})
	if err != nil {
		t.Fatalf("ExportJob: %v", err)
	}
	files := readBundle(t, path)
	data := files["thresh_r-golang_job1.jsonl"]

	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3 (2 posts + 1 comment)", len(lines))
	}
	var types []string
	for _, line := range lines {
		var obj struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Fatalf("decode line %q: %v", line, err)
		}
		types = append(types, obj.Type)
	}
	// Posts first, then comments.
	want := []string{"post", "post", "comment"}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("line %d type = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestExportAnonymization(t *testing.T) {
	exp, _, jobID := newTestExporter(t)

	path, err := exp.ExportJob(context.Background(), jobID, Config{
		Format:           FormatJSONL,
		IncludeComments:  true,
		AnonymizeAuthors: true,
	})
	if err != nil {
		t.Fatalf("ExportJob: %v", err)
	}
	files := readBundle(t, path)
	data := files["thresh_r-golang_job1.jsonl"]

	if strings.Contains(data, "alice") || strings.Contains(data, "bob") {
		t.Error("real usernames leaked into anonymized export")
	}
	if !strings.Contains(data, "author_0001") || !strings.Contains(data, "author_0002") {
		t.Error("anonymized ids missing")
	}
	// alice appears on a post and a comment: same id both times.
	if strings.Contains(data, "author_0003") {
		t.Error("same author mapped to more than one id")
	}

	provenance := files["provenance.txt"]
	if !strings.Contains(provenance, "Usernames Anonymized: Yes") {
		t.Error("provenance does not record anonymization")
	}
	if !strings.Contains(provenance, "2 unique authors") {
		t.Errorf("provenance author mapping line wrong:\n%s", provenance)
	}
}

func TestProvenanceContents(t *testing.T) {
	exp, _, jobID := newTestExporter(t)

	path, err := exp.ExportJob(context.Background(), jobID, Config{Format: FormatCSV})
	if err != nil {
		t.Fatalf("ExportJob: %v", err)
	}
	provenance := readBundle(t, path)["provenance.txt"]

	for _, want := range []string{
		"PROVENANCE",
		"Tool: Thresh (The Threshing Floor) v" + appcfg.Version,
		"Subreddit(s): r/golang",
		"Posts Collected: 2",
		"Comments Collected: 0",
		"Collection Method: Reddit public web data (no API key)",
		"Format: CSV (UTF-8 with BOM)",
		"Comments Included: No",
	} {
		if !strings.Contains(provenance, want) {
			t.Errorf("provenance missing %q", want)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	exp, _, jobID := newTestExporter(t)
	if _, err := exp.ExportJob(context.Background(), jobID, Config{Format: "xml"}); err == nil {
		t.Fatal("ExportJob accepted unsupported format")
	}
}
