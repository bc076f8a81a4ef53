package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jethomasphd/thresh/internal/domain"
)

const (
	publicBaseURL = "https://www.reddit.com"

	// Politeness: one request per 2 seconds against public endpoints.
	publicMinInterval = 2 * time.Second
	publicTimeout     = 30 * time.Second
	publicMaxRetries  = 3

	defaultUserAgent = "thresh:v0.1.0 (research tool)"
)

// PublicClient collects Reddit data from public JSON endpoints without API
// credentials. Drop-in replacement for APIClient: same contract, same
// models, the rest of the application never knows the difference.
type PublicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	cache      MetaCache
	logger     *slog.Logger
	baseURL    string

	mu           sync.Mutex
	requestCount int
	sessionStart time.Time

	// sleep is swappable in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPublicClient builds the public backend. No credentials are required.
func NewPublicClient(userAgent string, cache MetaCache, logger *slog.Logger) *PublicClient {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicClient{
		httpClient:   &http.Client{Timeout: publicTimeout},
		limiter:      rate.NewLimiter(rate.Every(publicMinInterval), 1),
		userAgent:    userAgent,
		cache:        cache,
		logger:       logger,
		baseURL:      publicBaseURL,
		sessionStart: time.Now(),
		sleep:        sleepCtx,
	}
}

// IsConfigured is always true: the public backend needs no setup.
func (pc *PublicClient) IsConfigured() bool { return true }

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// getJSON fetches one endpoint with politeness throttling and bounded
// retries. Transient transport failures back off 2^attempt seconds; an
// explicit 429 backs off min(2^(attempt+2), 30) seconds. 404 and 403 are
// non-retryable.
func (pc *PublicClient) getJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := pc.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapErr(domain.ErrConnectivity, "request canceled", err)
	}

	endpoint := pc.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	for attempt := 0; attempt < publicMaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, domain.WrapErr(domain.ErrBackend, "build request", err)
		}
		req.Header.Set("User-Agent", pc.userAgent)
		req.Header.Set("Accept", "application/json")

		pc.mu.Lock()
		pc.requestCount++
		pc.mu.Unlock()

		resp, err := pc.httpClient.Do(req)
		if err != nil {
			if attempt < publicMaxRetries-1 {
				if serr := pc.sleep(ctx, time.Duration(1<<attempt)*time.Second); serr != nil {
					return nil, domain.WrapErr(domain.ErrConnectivity, "request canceled", serr)
				}
				continue
			}
			return nil, domain.WrapErr(domain.ErrConnectivity, "reddit is not responding, please try again in a moment", err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := time.Duration(1<<(attempt+2)) * time.Second
			if wait > 30*time.Second {
				wait = 30 * time.Second
			}
			pc.logger.Warn("rate limited by reddit", "wait", wait, "attempt", attempt+1)
			if serr := pc.sleep(ctx, wait); serr != nil {
				return nil, domain.WrapErr(domain.ErrConnectivity, "request canceled", serr)
			}
			continue
		case resp.StatusCode == http.StatusForbidden:
			return nil, domain.WrapErr(domain.ErrConnectivity,
				"reddit returned 403 forbidden; the subreddit may be private, quarantined, or reddit is temporarily blocking requests", nil)
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.WrapErr(domain.ErrNotFound, "subreddit or resource not found", nil)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, domain.WrapErr(domain.ErrConnectivity,
				fmt.Sprintf("reddit returned an error (HTTP %d), please try again", resp.StatusCode), nil)
		}

		if readErr != nil {
			return nil, domain.WrapErr(domain.ErrConnectivity, "read response", readErr)
		}
		return body, nil
	}

	return nil, domain.WrapErr(domain.ErrConnectivity, "failed to fetch data from reddit after retries", nil)
}

// Listing wire types for the public JSON endpoints.
type listingEnvelope struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	After    string  `json:"after"`
	Children []thing `json:"children"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type subredditPayload struct {
	DisplayName string  `json:"display_name"`
	Title       string  `json:"title"`
	Subscribers int     `json:"subscribers"`
	Description string  `json:"public_description"`
	CreatedUTC  float64 `json:"created_utc"`
}

type postPayload struct {
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

type commentPayload struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Depth      *int            `json:"depth"`
	Replies    json.RawMessage `json:"replies"`
}

// SearchSubreddits searches for subreddits matching a query.
func (pc *PublicClient) SearchSubreddits(ctx context.Context, query string, limit int) ([]domain.SubredditInfo, error) {
	if limit > domain.MaxSubredditSearch {
		limit = domain.MaxSubredditSearch
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("type", "sr")

	body, err := pc.getJSON(ctx, "/subreddits/search.json", params)
	if err != nil {
		return nil, err
	}

	var listing listingEnvelope
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, domain.WrapErr(domain.ErrBackend, "decode subreddit search response", err)
	}

	results := make([]domain.SubredditInfo, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		var sr subredditPayload
		if err := json.Unmarshal(child.Data, &sr); err != nil {
			continue
		}
		results = append(results, domain.SubredditInfo{
			Name:        sr.DisplayName,
			Title:       sr.Title,
			Subscribers: sr.Subscribers,
			Description: sr.Description,
			CreatedUTC:  sr.CreatedUTC,
		})
	}
	return results, nil
}

// SubredditMeta fetches metadata for one subreddit, consulting the cache
// first with a 15-minute TTL.
func (pc *PublicClient) SubredditMeta(ctx context.Context, name string) (domain.SubredditInfo, error) {
	key := metaCacheKey(name)
	if cached, ok := cacheRetrieve(ctx, pc.cache, pc.logger, key); ok {
		var info domain.SubredditInfo
		if err := json.Unmarshal([]byte(cached), &info); err == nil {
			pc.logger.Debug("cache hit for subreddit metadata", "subreddit", name)
			return info, nil
		}
	}

	body, err := pc.getJSON(ctx, "/r/"+name+"/about.json", nil)
	if err != nil {
		return domain.SubredditInfo{}, err
	}

	var envelope struct {
		Data subredditPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.SubredditInfo{}, domain.WrapErr(domain.ErrBackend, "decode subreddit info response", err)
	}

	displayName := envelope.Data.DisplayName
	if displayName == "" {
		displayName = name
	}
	info := domain.SubredditInfo{
		Name:        displayName,
		Title:       envelope.Data.Title,
		Subscribers: envelope.Data.Subscribers,
		Description: envelope.Data.Description,
		CreatedUTC:  envelope.Data.CreatedUTC,
	}
	cacheStore(ctx, pc.cache, pc.logger, key, info)
	return info, nil
}

// Posts retrieves a subreddit listing, following the server's continuation
// token until the limit is satisfied or the server reports end of data.
// Fewer than limit results is a valid, non-error outcome.
func (pc *PublicClient) Posts(ctx context.Context, req domain.ListingRequest) ([]domain.PostData, error) {
	limit := req.Limit
	if limit > domain.MaxPosts {
		limit = domain.MaxPosts
	}
	if limit <= 0 {
		limit = 25
	}
	perPage := limit
	if perPage > 100 {
		perPage = 100
	}

	var (
		posts []domain.PostData
		after string
	)
	for len(posts) < limit {
		batch := limit - len(posts)
		if batch > perPage {
			batch = perPage
		}

		var (
			path   string
			params = url.Values{}
		)
		timeFilter := req.TimeFilter
		if timeFilter == "" {
			timeFilter = domain.TimeAll
		}
		if req.Query != "" {
			path = "/r/" + req.Subreddit + "/search.json"
			sort := req.Sort
			switch sort {
			case "relevance", domain.SortHot, domain.SortTop, domain.SortNew, "comments":
			default:
				sort = "relevance"
			}
			params.Set("q", req.Query)
			params.Set("restrict_sr", "on")
			params.Set("sort", sort)
			params.Set("t", timeFilter)
			params.Set("limit", strconv.Itoa(batch))
		} else {
			sort := req.Sort
			if sort == "" {
				sort = domain.SortHot
			}
			path = "/r/" + req.Subreddit + "/" + sort + ".json"
			params.Set("limit", strconv.Itoa(batch))
			if sort == domain.SortTop || sort == domain.SortControversial {
				params.Set("t", timeFilter)
			}
		}
		if after != "" {
			params.Set("after", after)
		}

		body, err := pc.getJSON(ctx, path, params)
		if err != nil {
			return nil, err
		}
		var listing listingEnvelope
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, domain.WrapErr(domain.ErrBackend, "decode posts response", err)
		}
		if len(listing.Data.Children) == 0 {
			break
		}

		for _, child := range listing.Data.Children {
			var p postPayload
			if err := json.Unmarshal(child.Data, &p); err != nil {
				continue
			}
			author := p.Author
			if author == "" {
				author = domain.DeletedAuthor
			}
			subreddit := p.Subreddit
			if subreddit == "" {
				subreddit = req.Subreddit
			}
			posts = append(posts, domain.PostData{
				ID:          p.ID,
				Subreddit:   subreddit,
				Title:       p.Title,
				Selftext:    p.Selftext,
				Author:      author,
				Score:       p.Score,
				NumComments: p.NumComments,
				CreatedUTC:  p.CreatedUTC,
				URL:         p.URL,
				Permalink:   p.Permalink,
			})
		}

		after = listing.Data.After
		if after == "" {
			break
		}
	}

	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// Comments retrieves a post's replies flattened out of the nested tree,
// depth-first pre-order, stopping once limit replies are collected.
func (pc *PublicClient) Comments(ctx context.Context, postID string, depth, limit int) ([]domain.CommentData, error) {
	if limit > domain.MaxComments {
		limit = domain.MaxComments
	}
	if limit <= 0 {
		limit = 100
	}
	if depth > domain.MaxCommentDepth {
		depth = domain.MaxCommentDepth
	}

	params := url.Values{}
	params.Set("depth", strconv.Itoa(depth))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "confidence")

	body, err := pc.getJSON(ctx, "/comments/"+postID+".json", params)
	if err != nil {
		return nil, err
	}

	// The response is a two-element array: [0] the post, [1] the reply tree.
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil || len(parts) < 2 {
		return nil, nil
	}
	var tree listingEnvelope
	if err := json.Unmarshal(parts[1], &tree); err != nil {
		return nil, domain.WrapErr(domain.ErrBackend, "decode comments response", err)
	}

	comments := make([]domain.CommentData, 0, limit)
	pc.flattenTree(tree, postID, 0, limit, &comments)
	return comments, nil
}

// flattenTree walks a reply listing depth-first, pre-order, appending each
// full reply node before descending into its children. Stub nodes (kind !=
// "t1") contribute nothing and are skipped silently.
func (pc *PublicClient) flattenTree(listing listingEnvelope, postID string, level, limit int, out *[]domain.CommentData) {
	for _, child := range listing.Data.Children {
		if len(*out) >= limit {
			return
		}
		if child.Kind != "t1" {
			continue
		}
		var c commentPayload
		if err := json.Unmarshal(child.Data, &c); err != nil {
			continue
		}

		author := c.Author
		if author == "" {
			author = domain.DeletedAuthor
		}
		depth := level
		if c.Depth != nil {
			depth = *c.Depth
		}
		*out = append(*out, domain.CommentData{
			ID:         c.ID,
			PostID:     postID,
			ParentID:   c.ParentID,
			Author:     author,
			Body:       c.Body,
			Score:      c.Score,
			CreatedUTC: c.CreatedUTC,
			Depth:      depth,
		})

		// Replies is either an empty string or a nested listing.
		if len(*out) < limit && len(c.Replies) > 0 && c.Replies[0] == '{' {
			var nested listingEnvelope
			if err := json.Unmarshal(c.Replies, &nested); err == nil {
				pc.flattenTree(nested, postID, level+1, limit, out)
			}
		}
	}
}

// RateLimitStatus estimates remaining capacity for polite scraping: public
// endpoints allow roughly 30 requests per minute. Never errors.
func (pc *PublicClient) RateLimitStatus(ctx context.Context) domain.RateLimitInfo {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if time.Since(pc.sessionStart) >= time.Minute {
		pc.requestCount = 0
		pc.sessionStart = time.Now()
	}
	remaining := 30.0 - float64(pc.requestCount)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitInfo{
		Remaining:      remaining,
		Used:           pc.requestCount,
		ResetTimestamp: float64(pc.sessionStart.Add(time.Minute).Unix()),
	}
}

// ValidateCredentials always succeeds: the public backend needs none.
func (pc *PublicClient) ValidateCredentials(ctx context.Context) (bool, string) {
	return true, "No credentials needed; using public web access."
}
