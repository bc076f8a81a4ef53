package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jethomasphd/thresh/internal/analyzer"
	"github.com/jethomasphd/thresh/internal/collection"
	"github.com/jethomasphd/thresh/internal/collector"
	"github.com/jethomasphd/thresh/internal/config"
	"github.com/jethomasphd/thresh/internal/dashboard"
	"github.com/jethomasphd/thresh/internal/domain"
	"github.com/jethomasphd/thresh/internal/exporter"
	"github.com/jethomasphd/thresh/internal/storage"
)

func main() {
	// 1. Setup
	godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	var (
		subreddit  = flag.String("subreddit", "", "subreddit to collect from")
		sort       = flag.String("sort", domain.SortHot, "listing sort: hot, new, top, rising, controversial")
		timeFilter = flag.String("time", domain.TimeAll, "time filter for top/controversial: hour, day, week, month, year, all")
		limit      = flag.Int("limit", 25, "number of posts to collect (max 250)")
		query      = flag.String("query", "", "search query within the subreddit")
		comments   = flag.Bool("comments", false, "also collect comments for new posts")
		depth      = flag.Int("depth", 3, "comment tree depth (max 10)")
		export     = flag.String("export", "", "export format after collection: csv, json, jsonl")
		anonymize  = flag.Bool("anonymize", false, "anonymize author names in the export")
		validate   = flag.Bool("validate", false, "check backend credentials and exit")
		serve      = flag.Bool("serve", false, "serve the dashboard")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if n, err := store.CacheClearExpired(ctx); err == nil && n > 0 {
		logger.Debug("cleared expired cache entries", "count", n)
	}

	// 3. Backend
	factory := collector.NewFactory(cfg, store, logger)
	backend := factory.Collector()

	if *validate {
		ok, msg := backend.ValidateCredentials(ctx)
		fmt.Println(msg)
		if !ok {
			os.Exit(1)
		}
		return
	}

	// 4. Collection
	if *subreddit != "" {
		service := collection.NewService(store, backend, logger)
		job, err := service.Collect(ctx, domain.CollectionConfig{
			Subreddit:       strings.TrimPrefix(*subreddit, "r/"),
			Sort:            *sort,
			TimeFilter:      *timeFilter,
			Limit:           *limit,
			Query:           *query,
			IncludeComments: *comments,
			CommentDepth:    *depth,
		})
		if err != nil {
			logger.Error("collection failed to start", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Job %d finished: %s (%d posts, %d comments)\n",
			job.ID, job.Status, job.CollectedPosts, job.CollectedComments)
		if job.Status == storage.StatusFailed {
			fmt.Println("Error: " + job.ErrorMessage)
			os.Exit(1)
		}

		if *export != "" {
			exp := exporter.New(store, cfg, logger)
			path, err := exp.ExportJob(ctx, job.ID, exporter.Config{
				Format:           *export,
				IncludeComments:  *comments,
				AnonymizeAuthors: *anonymize,
			})
			if err != nil {
				logger.Error("export failed", "job_id", job.ID, "error", err)
				os.Exit(1)
			}
			fmt.Println("Export written to " + path)
		}
	}

	// 5. Dashboard
	if *serve {
		server := dashboard.NewServer(store, analyzer.New(store, logger), logger)
		errCh := make(chan error, 1)
		go func() { errCh <- server.Start(cfg.Port) }()
		select {
		case err := <-errCh:
			logger.Error("dashboard failed", "error", err)
			os.Exit(1)
		case <-ctx.Done():
			logger.Info("shutdown signal received")
		}
		return
	}

	if *subreddit == "" {
		flag.Usage()
	}
}

func logLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
