// Package analyzer computes text and engagement statistics over the data a
// collection job produced: word and bigram frequencies, temporal
// distributions, keyword trends, author and score summaries. Pure in-memory
// computation, no external NLP dependencies.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jethomasphd/thresh/internal/domain"
	"github.com/jethomasphd/thresh/internal/storage"
)

var wordPattern = regexp.MustCompile(`\b[a-z]+\b`)

// Hardcoded English stopwords, including markdown artifacts and the
// [deleted]/[removed] placeholders that would otherwise dominate counts.
var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	list := []string{
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you",
		"your", "yours", "yourself", "yourselves", "he", "him", "his",
		"himself", "she", "her", "hers", "herself", "it", "its", "itself",
		"they", "them", "their", "theirs", "themselves", "what", "which",
		"who", "whom", "this", "that", "these", "those", "am", "is", "are",
		"was", "were", "be", "been", "being", "have", "has", "had", "having",
		"do", "does", "did", "doing", "a", "an", "the", "and", "but", "if",
		"or", "because", "as", "until", "while", "of", "at", "by", "for",
		"with", "about", "against", "between", "through", "during", "before",
		"after", "above", "below", "to", "from", "up", "down", "in", "out",
		"on", "off", "over", "under", "again", "further", "then", "once",
		"here", "there", "when", "where", "why", "how", "all", "both",
		"each", "few", "more", "most", "other", "some", "such", "no",
		"nor", "not", "only", "own", "same", "so", "than", "too", "very",
		"s", "t", "can", "will", "just", "don", "should", "now", "d", "ll",
		"m", "o", "re", "ve", "y", "ain", "aren", "couldn", "didn",
		"doesn", "hadn", "hasn", "haven", "isn", "ma", "mightn", "mustn",
		"needn", "shan", "shouldn", "wasn", "weren", "won", "wouldn",
		"also", "could", "would", "like", "get", "got", "really",
		"know", "think", "one", "even", "much", "still", "going",
		"want", "make", "people", "well", "right", "go", "way",
		"deleted", "removed", "http", "https", "www", "com",
		"amp", "gt", "lt", "nbsp",
	}
	set := make(map[string]struct{}, len(list))
	for _, w := range list {
		set[w] = struct{}{}
	}
	return set
}

// WordCount is one term (word or bigram) with its occurrence count.
type WordCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// TimeBucket is a post count within one time interval.
type TimeBucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AuthorStats summarizes one author's activity within a job.
type AuthorStats struct {
	Author        string  `json:"author"`
	Posts         int     `json:"posts"`
	AvgScore      float64 `json:"avg_score"`
	TotalComments int     `json:"total_comments"`
}

// EngagementStats summarizes a whole job's engagement.
type EngagementStats struct {
	TotalPosts         int     `json:"total_posts"`
	TotalComments      int     `json:"total_comments"`
	AvgScore           float64 `json:"avg_score"`
	MedianScore        float64 `json:"median_score"`
	AvgCommentsPerPost float64 `json:"avg_comments_per_post"`
	ScoreStdDev        float64 `json:"score_std_dev"`
	DateStart          string  `json:"date_start,omitempty"`
	DateEnd            string  `json:"date_end,omitempty"`
	UniqueAuthors      int     `json:"unique_authors"`
}

// ScoreBin is one histogram bucket of post scores.
type ScoreBin struct {
	Range string  `json:"range"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Analyzer reads a job's collected data and computes statistics.
type Analyzer struct {
	store  *storage.Store
	logger *slog.Logger
}

func New(store *storage.Store, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{store: store, logger: logger}
}

// WordFrequencies returns the topN most frequent words across a job's post
// titles, self-texts, and (optionally) comment bodies.
func (a *Analyzer) WordFrequencies(ctx context.Context, jobID int64, topN int, includeComments bool) ([]WordCount, error) {
	text, err := a.allText(ctx, jobID, includeComments)
	if err != nil {
		return nil, err
	}
	return topCounts(tokenize(text, 3), topN), nil
}

// BigramFrequencies returns the topN most frequent adjacent word pairs.
func (a *Analyzer) BigramFrequencies(ctx context.Context, jobID int64, topN int, includeComments bool) ([]WordCount, error) {
	text, err := a.allText(ctx, jobID, includeComments)
	if err != nil {
		return nil, err
	}
	words := tokenize(text, 3)
	if len(words) < 2 {
		return nil, nil
	}
	bigrams := make([]string, 0, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		bigrams = append(bigrams, words[i]+" "+words[i+1])
	}
	return topCounts(bigrams, topN), nil
}

// TemporalDistribution groups a job's posts into time buckets and returns
// the counts in chronological order. Interval is hour, day, week, or month.
func (a *Analyzer) TemporalDistribution(ctx context.Context, jobID int64, interval string) ([]TimeBucket, error) {
	posts, err := a.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	for _, post := range posts {
		counts[bucketKey(timestampUTC(post.CreatedUTC), interval)]++
	}
	return sortedBuckets(counts), nil
}

// KeywordTrends counts, per time bucket, how many posts mention each
// keyword (case-insensitive substring over title and selftext). Every
// keyword shares the same bucket axis so series line up when charted.
func (a *Analyzer) KeywordTrends(ctx context.Context, jobID int64, keywords []string, interval string) (map[string][]TimeBucket, error) {
	result := make(map[string][]TimeBucket, len(keywords))
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		normalized = append(normalized, kw)
		result[kw] = nil
	}
	if len(normalized) == 0 {
		return result, nil
	}

	posts, err := a.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return result, nil
	}

	perKeyword := make(map[string]map[string]int, len(normalized))
	for _, kw := range normalized {
		perKeyword[kw] = make(map[string]int)
	}
	allBuckets := make(map[string]struct{})

	for _, post := range posts {
		bucket := bucketKey(timestampUTC(post.CreatedUTC), interval)
		combined := strings.ToLower(post.Title + " " + post.Selftext)
		for _, kw := range normalized {
			if strings.Contains(combined, kw) {
				perKeyword[kw][bucket]++
				allBuckets[bucket] = struct{}{}
			}
		}
	}

	axis := make([]string, 0, len(allBuckets))
	for bucket := range allBuckets {
		axis = append(axis, bucket)
	}
	sort.Strings(axis)

	for _, kw := range normalized {
		series := make([]TimeBucket, 0, len(axis))
		for _, bucket := range axis {
			series = append(series, TimeBucket{Date: bucket, Count: perKeyword[kw][bucket]})
		}
		result[kw] = series
	}
	return result, nil
}

// TopAuthors returns the topN authors by post count, ties broken by average
// score. Deleted authors are excluded.
func (a *Analyzer) TopAuthors(ctx context.Context, jobID int64, topN int) ([]AuthorStats, error) {
	posts, err := a.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	grouped := make(map[string][]*storage.CollectedPost)
	for _, post := range posts {
		if post.Author == domain.DeletedAuthor {
			continue
		}
		grouped[post.Author] = append(grouped[post.Author], post)
	}

	stats := make([]AuthorStats, 0, len(grouped))
	for author, authorPosts := range grouped {
		var scoreSum, commentSum int
		for _, p := range authorPosts {
			scoreSum += p.Score
			commentSum += p.NumComments
		}
		stats = append(stats, AuthorStats{
			Author:        author,
			Posts:         len(authorPosts),
			AvgScore:      round1(float64(scoreSum) / float64(len(authorPosts))),
			TotalComments: commentSum,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Posts != stats[j].Posts {
			return stats[i].Posts > stats[j].Posts
		}
		if stats[i].AvgScore != stats[j].AvgScore {
			return stats[i].AvgScore > stats[j].AvgScore
		}
		return stats[i].Author < stats[j].Author
	})
	if topN > 0 && len(stats) > topN {
		stats = stats[:topN]
	}
	return stats, nil
}

// Engagement computes overall engagement statistics for a job.
func (a *Analyzer) Engagement(ctx context.Context, jobID int64) (EngagementStats, error) {
	posts, err := a.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return EngagementStats{}, err
	}
	commentCount, err := a.store.CommentCount(ctx, jobID)
	if err != nil {
		return EngagementStats{}, err
	}
	if len(posts) == 0 {
		return EngagementStats{TotalComments: commentCount}, nil
	}

	total := len(posts)
	scores := make([]int, 0, total)
	var scoreSum, commentSum int
	minTS, maxTS := posts[0].CreatedUTC, posts[0].CreatedUTC
	authors := make(map[string]struct{})

	for _, post := range posts {
		scores = append(scores, post.Score)
		scoreSum += post.Score
		commentSum += post.NumComments
		if post.CreatedUTC < minTS {
			minTS = post.CreatedUTC
		}
		if post.CreatedUTC > maxTS {
			maxTS = post.CreatedUTC
		}
		if post.Author != domain.DeletedAuthor {
			authors[post.Author] = struct{}{}
		}
	}

	mean := float64(scoreSum) / float64(total)
	var variance float64
	for _, s := range scores {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(total)

	sort.Ints(scores)
	var median float64
	mid := total / 2
	if total%2 == 0 {
		median = float64(scores[mid-1]+scores[mid]) / 2
	} else {
		median = float64(scores[mid])
	}

	return EngagementStats{
		TotalPosts:         total,
		TotalComments:      commentCount,
		AvgScore:           round1(mean),
		MedianScore:        round1(median),
		AvgCommentsPerPost: round1(float64(commentSum) / float64(total)),
		ScoreStdDev:        round1(math.Sqrt(variance)),
		DateStart:          timestampUTC(minTS).Format("2006-01-02"),
		DateEnd:            timestampUTC(maxTS).Format("2006-01-02"),
		UniqueAuthors:      len(authors),
	}, nil
}

// ScoreDistribution bins a job's post scores into a histogram. When every
// post has the same score a single degenerate bin is returned.
func (a *Analyzer) ScoreDistribution(ctx context.Context, jobID int64, bins int) ([]ScoreBin, error) {
	posts, err := a.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	if bins <= 0 {
		bins = 20
	}

	scores := make([]int, 0, len(posts))
	minScore, maxScore := posts[0].Score, posts[0].Score
	for _, post := range posts {
		scores = append(scores, post.Score)
		if post.Score < minScore {
			minScore = post.Score
		}
		if post.Score > maxScore {
			maxScore = post.Score
		}
	}

	if minScore == maxScore {
		return []ScoreBin{{
			Range: fmt.Sprintf("%d", minScore),
			Low:   float64(minScore),
			High:  float64(minScore),
			Count: len(scores),
		}}, nil
	}

	width := (float64(maxScore) - float64(minScore)) / float64(bins)
	if width < 1 {
		width = 1
	}
	histogram := make([]ScoreBin, 0, bins)
	for i := 0; i < bins; i++ {
		lo := float64(minScore) + float64(i)*width
		hi := lo + width
		var count int
		for _, s := range scores {
			v := float64(s)
			if i == bins-1 {
				// Last bin is closed on the upper edge.
				if v >= lo && v <= hi {
					count++
				}
			} else if v >= lo && v < hi {
				count++
			}
		}
		histogram = append(histogram, ScoreBin{
			Range: fmt.Sprintf("%d-%d", int(lo), int(hi)),
			Low:   round1(lo),
			High:  round1(hi),
			Count: count,
		})
	}
	return histogram, nil
}

func (a *Analyzer) allText(ctx context.Context, jobID int64, includeComments bool) (string, error) {
	posts, err := a.store.JobPostsByCreated(ctx, jobID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, post := range posts {
		if post.Title != "" {
			sb.WriteString(post.Title)
			sb.WriteByte(' ')
		}
		if post.Selftext != "" {
			sb.WriteString(post.Selftext)
			sb.WriteByte(' ')
		}
	}
	if includeComments {
		comments, err := a.store.JobComments(ctx, jobID, "")
		if err != nil {
			return "", err
		}
		for _, comment := range comments {
			if comment.Body != "" {
				sb.WriteString(comment.Body)
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String(), nil
}

func tokenize(text string, minLen int) []string {
	matches := wordPattern.FindAllString(strings.ToLower(text), -1)
	words := make([]string, 0, len(matches))
	for _, w := range matches {
		if len(w) < minLen {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		words = append(words, w)
	}
	return words
}

func topCounts(terms []string, topN int) []WordCount {
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, term := range terms {
		counts[term]++
	}
	result := make([]WordCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, WordCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if topN > 0 && len(result) > topN {
		result = result[:topN]
	}
	return result
}

func sortedBuckets(counts map[string]int) []TimeBucket {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	buckets := make([]TimeBucket, 0, len(keys))
	for _, key := range keys {
		buckets = append(buckets, TimeBucket{Date: key, Count: counts[key]})
	}
	return buckets
}

func timestampUTC(ts float64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

// bucketKey formats a timestamp as its interval bucket. Weeks are keyed by
// their Monday.
func bucketKey(t time.Time, interval string) string {
	switch interval {
	case "hour":
		return t.Format("2006-01-02 15:00")
	case "week":
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset).Format("2006-01-02")
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
