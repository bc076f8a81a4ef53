package collector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"github.com/jethomasphd/thresh/internal/config"
	"github.com/jethomasphd/thresh/internal/domain"
)

// APIClient is the authenticated backend, wrapping the official Reddit API
// via go-reddit. When credentials are missing or the underlying client fails
// to construct, the backend stays in an unconfigured state: operations
// degrade to empty results or tagged errors instead of crashing.
type APIClient struct {
	client  *reddit.Client
	limiter *rate.Limiter
	cache   MetaCache
	logger  *slog.Logger

	mu           sync.Mutex
	requestCount int
	lastRate     *reddit.Rate
}

// NewAPIClient builds the authenticated backend. Construction is attempted
// only when all required credential fields are present; any failure leaves
// the client unconfigured rather than returning an error.
func NewAPIClient(cfg config.Settings, cache MetaCache, logger *slog.Logger) *APIClient {
	if logger == nil {
		logger = slog.Default()
	}
	ac := &APIClient{
		// API rate limit: ~60 reqs/min (safe buffer)
		limiter: rate.NewLimiter(rate.Every(1*time.Second), 1),
		cache:   cache,
		logger:  logger,
	}

	if !cfg.HasCredentials() {
		logger.Warn("reddit api credentials not configured, running in setup mode")
		return ac
	}

	creds := reddit.Credentials{
		ID:       cfg.RedditClientID,
		Secret:   cfg.RedditClientSecret,
		Username: cfg.RedditUsername,
		Password: cfg.RedditPassword,
	}
	client, err := reddit.NewClient(creds, reddit.WithUserAgent(cfg.RedditUserAgent))
	if err != nil {
		logger.Error("failed to initialize reddit api client", "error", err)
		return ac
	}
	ac.client = client
	logger.Info("reddit api client initialized")
	return ac
}

// IsConfigured reports whether the underlying API client was constructed.
func (ac *APIClient) IsConfigured() bool { return ac.client != nil }

func (ac *APIClient) countRequest(resp *reddit.Response) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.requestCount++
	if resp != nil {
		r := resp.Rate
		ac.lastRate = &r
	}
}

// SearchSubreddits searches for subreddits matching a query. Unconfigured
// clients return an empty list, not an error.
func (ac *APIClient) SearchSubreddits(ctx context.Context, query string, limit int) ([]domain.SubredditInfo, error) {
	if ac.client == nil {
		ac.logger.Warn("cannot search subreddits: client not configured")
		return nil, nil
	}
	if limit > domain.MaxSubredditSearch {
		limit = domain.MaxSubredditSearch
	}
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapErr(domain.ErrConnectivity, "search subreddits", err)
	}

	subs, resp, err := ac.client.Subreddit.Search(ctx, query, &reddit.ListSubredditOptions{
		ListOptions: reddit.ListOptions{Limit: limit},
	})
	ac.countRequest(resp)
	if err != nil {
		return nil, ac.mapError("search subreddits", err)
	}

	results := make([]domain.SubredditInfo, 0, len(subs))
	for _, sub := range subs {
		results = append(results, subredditInfoFromAPI(sub))
	}
	return results, nil
}

// SubredditMeta fetches metadata for one subreddit, consulting the cache
// first with a 15-minute TTL.
func (ac *APIClient) SubredditMeta(ctx context.Context, name string) (domain.SubredditInfo, error) {
	if ac.client == nil {
		return domain.SubredditInfo{}, domain.WrapErr(domain.ErrCredentials, "reddit client not configured", nil)
	}

	key := metaCacheKey(name)
	if cached, ok := cacheRetrieve(ctx, ac.cache, ac.logger, key); ok {
		var info domain.SubredditInfo
		if err := json.Unmarshal([]byte(cached), &info); err == nil {
			ac.logger.Debug("cache hit for subreddit metadata", "subreddit", name)
			return info, nil
		}
	}

	if err := ac.limiter.Wait(ctx); err != nil {
		return domain.SubredditInfo{}, domain.WrapErr(domain.ErrConnectivity, "subreddit meta", err)
	}
	sub, resp, err := ac.client.Subreddit.Get(ctx, name)
	ac.countRequest(resp)
	if err != nil {
		return domain.SubredditInfo{}, ac.mapError("subreddit meta", err)
	}

	info := subredditInfoFromAPI(sub)
	cacheStore(ctx, ac.cache, ac.logger, key, info)
	return info, nil
}

// Posts retrieves a subreddit listing, paginating transparently when the
// requested limit exceeds the API's 100-per-page ceiling.
func (ac *APIClient) Posts(ctx context.Context, req domain.ListingRequest) ([]domain.PostData, error) {
	if ac.client == nil {
		ac.logger.Warn("cannot get posts: client not configured")
		return nil, nil
	}
	limit := req.Limit
	if limit > domain.MaxPosts {
		limit = domain.MaxPosts
	}
	if limit <= 0 {
		limit = 25
	}

	var (
		posts []domain.PostData
		after string
	)
	for len(posts) < limit {
		batch := limit - len(posts)
		if batch > 100 {
			batch = 100
		}

		fetched, nextAfter, err := ac.fetchPage(ctx, req, batch, after)
		if err != nil {
			return nil, err
		}
		if len(fetched) == 0 {
			break
		}
		for _, p := range fetched {
			posts = append(posts, postDataFromAPI(p, req.Subreddit))
		}
		if nextAfter == "" {
			break
		}
		after = nextAfter
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (ac *APIClient) fetchPage(ctx context.Context, req domain.ListingRequest, batch int, after string) ([]*reddit.Post, string, error) {
	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, "", domain.WrapErr(domain.ErrConnectivity, "get posts", err)
	}

	opts := reddit.ListOptions{Limit: batch, After: after}

	var (
		fetched []*reddit.Post
		resp    *reddit.Response
		err     error
	)
	if req.Query != "" {
		sort := req.Sort
		switch sort {
		case "relevance", domain.SortHot, domain.SortTop, domain.SortNew, "comments":
		default:
			sort = "relevance"
		}
		fetched, resp, err = ac.client.Subreddit.SearchPosts(ctx, req.Query, req.Subreddit, &reddit.ListPostSearchOptions{
			ListPostOptions: reddit.ListPostOptions{ListOptions: opts, Time: req.TimeFilter},
			Sort:            sort,
		})
	} else {
		switch req.Sort {
		case domain.SortNew:
			fetched, resp, err = ac.client.Subreddit.NewPosts(ctx, req.Subreddit, &opts)
		case domain.SortRising:
			fetched, resp, err = ac.client.Subreddit.RisingPosts(ctx, req.Subreddit, &opts)
		case domain.SortTop:
			fetched, resp, err = ac.client.Subreddit.TopPosts(ctx, req.Subreddit, &reddit.ListPostOptions{ListOptions: opts, Time: req.TimeFilter})
		case domain.SortControversial:
			fetched, resp, err = ac.client.Subreddit.ControversialPosts(ctx, req.Subreddit, &reddit.ListPostOptions{ListOptions: opts, Time: req.TimeFilter})
		default:
			fetched, resp, err = ac.client.Subreddit.HotPosts(ctx, req.Subreddit, &opts)
		}
	}
	ac.countRequest(resp)
	if err != nil {
		return nil, "", ac.mapError("get posts", err)
	}

	var nextAfter string
	if resp != nil {
		nextAfter = resp.After
	}
	return fetched, nextAfter, nil
}

// Comments retrieves a post's replies flattened depth-first, expanding
// "load more" stubs up to depth rounds and stopping at limit.
func (ac *APIClient) Comments(ctx context.Context, postID string, depth, limit int) ([]domain.CommentData, error) {
	if ac.client == nil {
		ac.logger.Warn("cannot get comments: client not configured")
		return nil, nil
	}
	if limit > domain.MaxComments {
		limit = domain.MaxComments
	}
	if depth > domain.MaxCommentDepth {
		depth = domain.MaxCommentDepth
	}

	if err := ac.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapErr(domain.ErrConnectivity, "get comments", err)
	}
	pc, resp, err := ac.client.Post.Get(ctx, postID)
	ac.countRequest(resp)
	if err != nil {
		return nil, ac.mapError("get comments", err)
	}

	// Bounded stub expansion; a failed round is not fatal, the tree we
	// already have still flattens.
	for round := 0; round < depth && pc.HasMore(); round++ {
		if err := ac.limiter.Wait(ctx); err != nil {
			break
		}
		moreResp, err := ac.client.Post.LoadMoreComments(ctx, pc)
		ac.countRequest(moreResp)
		if err != nil {
			ac.logger.Warn("load more comments failed", "post_id", postID, "error", err)
			break
		}
	}

	results := make([]domain.CommentData, 0, limit)
	flattenAPIComments(pc.Comments, postID, 0, limit, &results)
	return results, nil
}

func flattenAPIComments(comments []*reddit.Comment, postID string, depth, limit int, out *[]domain.CommentData) {
	for _, c := range comments {
		if len(*out) >= limit {
			return
		}
		if c == nil {
			continue
		}
		author := c.Author
		if author == "" {
			author = domain.DeletedAuthor
		}
		var created float64
		if c.Created != nil {
			created = float64(c.Created.Unix())
		}
		*out = append(*out, domain.CommentData{
			ID:         c.ID,
			PostID:     postID,
			ParentID:   c.ParentID,
			Author:     author,
			Body:       c.Body,
			Score:      c.Score,
			CreatedUTC: created,
			Depth:      depth,
		})
		if len(c.Replies.Comments) > 0 && len(*out) < limit {
			flattenAPIComments(c.Replies.Comments, postID, depth+1, limit, out)
		}
	}
}

// RateLimitStatus reports the API's parsed rate headers when available,
// falling back to an estimate from the local request counter. Never errors.
func (ac *APIClient) RateLimitStatus(ctx context.Context) domain.RateLimitInfo {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.client == nil {
		return domain.RateLimitInfo{Remaining: 0, Used: ac.requestCount, ResetTimestamp: 0}
	}
	if ac.lastRate != nil {
		return domain.RateLimitInfo{
			Remaining:      float64(ac.lastRate.Remaining),
			Used:           ac.lastRate.Used,
			ResetTimestamp: float64(ac.lastRate.Reset.Unix()),
		}
	}
	remaining := 100.0 - float64(ac.requestCount)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitInfo{
		Remaining:      remaining,
		Used:           ac.requestCount,
		ResetTimestamp: float64(time.Now().Add(time.Minute).Unix()),
	}
}

// ValidateCredentials probes the API with a minimal call and reports a
// definitive result with a human-readable message. Never errors.
func (ac *APIClient) ValidateCredentials(ctx context.Context) (bool, string) {
	if ac.client == nil {
		return false, "Reddit API credentials are not configured. " +
			"Please set REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, and REDDIT_USER_AGENT."
	}

	if err := ac.limiter.Wait(ctx); err != nil {
		return false, "Could not reach Reddit. Check your internet connection."
	}
	_, resp, err := ac.client.Subreddit.HotPosts(ctx, "all", &reddit.ListOptions{Limit: 1})
	ac.countRequest(resp)
	if err == nil {
		return true, "Reddit API credentials are valid."
	}
	mapped := ac.mapError("validate credentials", err)
	switch {
	case errors.Is(mapped, domain.ErrCredentials):
		return false, "Invalid credentials. Please check your Reddit API settings."
	case errors.Is(mapped, domain.ErrConnectivity):
		return false, "Could not reach Reddit. Check your internet connection."
	default:
		return false, "An unexpected error occurred: " + err.Error()
	}
}

// mapError translates go-reddit failures into the tagged error taxonomy.
func (ac *APIClient) mapError(op string, err error) error {
	var rateErr *reddit.RateLimitError
	if errors.As(err, &rateErr) {
		return domain.WrapErr(domain.ErrConnectivity, op+": rate limited by reddit", err)
	}

	var respErr *reddit.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapErr(domain.ErrCredentials, op+": authentication rejected", err)
		case http.StatusNotFound:
			return domain.WrapErr(domain.ErrNotFound, op, err)
		case http.StatusTooManyRequests:
			return domain.WrapErr(domain.ErrConnectivity, op+": rate limited by reddit", err)
		default:
			return domain.WrapErr(domain.ErrBackend, op, err)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return domain.WrapErr(domain.ErrConnectivity, op+": could not reach reddit", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapErr(domain.ErrConnectivity, op+": reddit is not responding", err)
	}
	return domain.WrapErr(domain.ErrBackend, op, err)
}

func subredditInfoFromAPI(sub *reddit.Subreddit) domain.SubredditInfo {
	if sub == nil {
		return domain.SubredditInfo{}
	}
	var created float64
	if sub.Created != nil {
		created = float64(sub.Created.Unix())
	}
	return domain.SubredditInfo{
		Name:        sub.Name,
		Title:       sub.Title,
		Subscribers: sub.Subscribers,
		Description: sub.Description,
		CreatedUTC:  created,
	}
}

func postDataFromAPI(p *reddit.Post, fallbackSubreddit string) domain.PostData {
	author := p.Author
	if author == "" {
		author = domain.DeletedAuthor
	}
	subreddit := p.SubredditName
	if subreddit == "" {
		subreddit = fallbackSubreddit
	}
	var created float64
	if p.Created != nil {
		created = float64(p.Created.Unix())
	}
	return domain.PostData{
		ID:          p.ID,
		Subreddit:   subreddit,
		Title:       p.Title,
		Selftext:    p.Body,
		Author:      author,
		Score:       p.Score,
		NumComments: p.NumberOfComments,
		CreatedUTC:  created,
		URL:         p.URL,
		Permalink:   p.Permalink,
	}
}

// cacheRetrieve reads through the metadata cache; faults degrade to a miss.
func cacheRetrieve(ctx context.Context, cache MetaCache, logger *slog.Logger, key string) (string, bool) {
	if cache == nil {
		return "", false
	}
	value, ok, err := cache.CacheRetrieve(ctx, key)
	if err != nil {
		logger.Error("cache retrieve failed", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

// cacheStore writes to the metadata cache; faults are logged and swallowed.
func cacheStore(ctx context.Context, cache MetaCache, logger *slog.Logger, key string, info domain.SubredditInfo) {
	if cache == nil {
		return
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := cache.CacheStore(ctx, key, string(payload), metaCacheTTL); err != nil {
		logger.Error("cache store failed", "key", key, "error", err)
	}
}
