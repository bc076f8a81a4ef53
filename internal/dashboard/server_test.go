package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jethomasphd/thresh/internal/analyzer"
	"github.com/jethomasphd/thresh/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, int64) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	job, err := store.CreateJob(ctx, "golang", nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	for i := 0; i < 3; i++ {
		post := &storage.CollectedPost{
			JobID:      job.ID,
			RedditID:   fmt.Sprintf("p%d", i),
			Subreddit:  "golang",
			Title:      "concurrency patterns explained",
			Author:     "alice",
			Score:      10 * (i + 1),
			CreatedUTC: 1700000000 + float64(i*86400),
		}
		if err := store.InsertPost(ctx, post); err != nil {
			t.Fatalf("InsertPost: %v", err)
		}
	}
	job.Status = storage.StatusCompleted
	job.CollectedPosts = 3
	if err := store.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	server := NewServer(store, analyzer.New(store, nil), nil)
	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)
	return srv, job.ID
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIndexListsJobs(t *testing.T) {
	srv, jobID := newTestServer(t)

	status, body := get(t, srv.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if !strings.Contains(body, "r/golang") || !strings.Contains(body, "completed") {
		t.Errorf("index missing job row:\n%s", body)
	}
	if !strings.Contains(body, fmt.Sprintf("/jobs?id=%d", jobID)) {
		t.Error("index missing chart link")
	}
}

func TestJobPageRendersCharts(t *testing.T) {
	srv, jobID := newTestServer(t)

	status, body := get(t, fmt.Sprintf("%s/jobs?id=%d", srv.URL, jobID))
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	for _, want := range []string{"Top Words", "Posts Over Time", "Score Distribution", "Top Authors by Post Count"} {
		if !strings.Contains(body, want) {
			t.Errorf("job page missing chart %q", want)
		}
	}
	// Rendered echarts output, not an empty shell.
	if !strings.Contains(body, "echarts") {
		t.Error("job page contains no chart markup")
	}
}

func TestJobPageErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	if status, _ := get(t, srv.URL+"/jobs?id=notanumber"); status != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", status)
	}
	if status, _ := get(t, srv.URL+"/jobs?id=9999"); status != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", status)
	}
	if status, _ := get(t, srv.URL+"/nowhere"); status != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", status)
	}
}
