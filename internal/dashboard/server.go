// Package dashboard serves a minimal research dashboard: a job index plus
// per-job charts rendered from analysis results.
package dashboard

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/jethomasphd/thresh/internal/analyzer"
	"github.com/jethomasphd/thresh/internal/storage"
)

// Server renders collection jobs and their analysis as HTML.
type Server struct {
	store    *storage.Store
	analyzer *analyzer.Analyzer
	logger   *slog.Logger
}

func NewServer(store *storage.Store, az *analyzer.Analyzer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, analyzer: az, logger: logger}
}

// Routes returns the dashboard's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/jobs", s.handleJob)
	return mux
}

// Start blocks serving the dashboard on the given port.
func (s *Server) Start(port string) error {
	s.logger.Info("dashboard listening", "port", port)
	return http.ListenAndServe(":"+port, s.Routes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	jobs, err := s.store.RecentJobs(r.Context(), 50)
	if err != nil {
		s.logger.Error("failed to list jobs", "error", err)
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><head><title>Thresh</title></head><body>")
	fmt.Fprint(w, "<h1>Thresh — Collection Jobs</h1>")
	if len(jobs) == 0 {
		fmt.Fprint(w, "<p>No collection jobs yet.</p>")
	} else {
		fmt.Fprint(w, "<table border='1' cellpadding='4'><tr><th>ID</th><th>Subreddit</th><th>Status</th><th>Posts</th><th>Comments</th><th></th></tr>")
		for _, job := range jobs {
			fmt.Fprintf(w, "<tr><td>%d</td><td>r/%s</td><td>%s</td><td>%d</td><td>%d</td><td><a href=\"/jobs?id=%d\">charts</a></td></tr>",
				job.ID, html.EscapeString(job.Subreddit), job.Status,
				job.CollectedPosts, job.CollectedComments, job.ID)
		}
		fmt.Fprint(w, "</table>")
	}
	fmt.Fprint(w, "</body></html>")
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.logger.Error("failed to load job", "job_id", jobID, "error", err)
		http.Error(w, "failed to load job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.NotFound(w, r)
		return
	}

	words, err := s.analyzer.WordFrequencies(ctx, jobID, 25, true)
	if err != nil {
		s.logger.Error("word frequency analysis failed", "job_id", jobID, "error", err)
	}
	timeline, err := s.analyzer.TemporalDistribution(ctx, jobID, "day")
	if err != nil {
		s.logger.Error("temporal analysis failed", "job_id", jobID, "error", err)
	}
	histogram, err := s.analyzer.ScoreDistribution(ctx, jobID, 20)
	if err != nil {
		s.logger.Error("score distribution failed", "job_id", jobID, "error", err)
	}
	authors, err := s.analyzer.TopAuthors(ctx, jobID, 10)
	if err != nil {
		s.logger.Error("author analysis failed", "job_id", jobID, "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// 1. Top words
	wordBar := charts.NewBar()
	wordBar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("r/%s — Top Words (job %d)", job.Subreddit, job.ID)}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)
	var wordX []string
	var wordY []opts.BarData
	for _, wc := range words {
		wordX = append(wordX, wc.Term)
		wordY = append(wordY, opts.BarData{Value: wc.Count})
	}
	wordBar.SetXAxis(wordX).AddSeries("Occurrences", wordY)

	// 2. Posts over time
	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Posts Over Time"}))
	var lineX []string
	var lineY []opts.LineData
	for _, bucket := range timeline {
		lineX = append(lineX, bucket.Date)
		lineY = append(lineY, opts.LineData{Value: bucket.Count})
	}
	line.SetXAxis(lineX).AddSeries("Posts", lineY)

	// 3. Score distribution
	scoreBar := charts.NewBar()
	scoreBar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Score Distribution"}))
	var scoreX []string
	var scoreY []opts.BarData
	for _, bin := range histogram {
		scoreX = append(scoreX, bin.Range)
		scoreY = append(scoreY, opts.BarData{Value: bin.Count})
	}
	scoreBar.SetXAxis(scoreX).AddSeries("Posts", scoreY)

	// 4. Top authors
	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Top Authors by Post Count"}))
	var pieItems []opts.PieData
	for _, author := range authors {
		pieItems = append(pieItems, opts.PieData{Name: author.Author, Value: author.Posts})
	}
	pie.AddSeries("Posts", pieItems)

	wordBar.Render(w)
	line.Render(w)
	scoreBar.Render(w)
	pie.Render(w)
}
