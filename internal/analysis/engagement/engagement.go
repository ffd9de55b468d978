// Package engagement computes engagement rates, follower-tier percentiles,
// and quality scores from fetched posts.
package engagement

import (
	"math"
	"sort"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

// Follower tiers. An account below 1k followers is treated as nano.
const (
	TierNano  = "nano"
	TierMicro = "micro"
	TierMid   = "mid"
	TierMacro = "macro"
)

// benchmark holds the low/avg/high engagement rates for one tier, in percent.
type benchmark struct {
	Low, Avg, High float64
}

var benchmarks = map[string]benchmark{
	TierNano:  {Low: 3.0, Avg: 5.0, High: 8.0},
	TierMicro: {Low: 2.0, Avg: 3.5, High: 6.0},
	TierMid:   {Low: 1.5, Avg: 2.5, High: 4.0},
	TierMacro: {Low: 1.0, Avg: 1.8, High: 3.0},
}

// Metrics is the engagement summary for one profile.
type Metrics struct {
	AvgEngagementRate  float64
	AvgLikes           float64
	AvgComments        float64
	TotalPostsAnalyzed int
	TierPercentile     float64
	QualityScore       float64
}

// Tier maps a follower count to its tier name.
func Tier(followers int) string {
	switch {
	case followers >= 200_000:
		return TierMacro
	case followers >= 50_000:
		return TierMid
	case followers >= 10_000:
		return TierMicro
	default:
		return TierNano
	}
}

// Rate computes a single post's engagement rate as a percentage, rounded to
// two decimals. When likes is nil the discovery API withheld the count, and
// comments stand in at a 3x weight. Zero followers yields 0.
func Rate(likes *int, comments, followers int) float64 {
	if followers == 0 {
		return 0
	}
	total := comments * 3
	if likes != nil {
		total = *likes
	}
	return round2(float64(total) / float64(followers) * 100)
}

// Analyze computes the full engagement summary for a set of posts.
func Analyze(media []domain.DiscoveredMedia, followers int) Metrics {
	m := averages(media, followers)
	m.TierPercentile = TierPercentile(m.AvgEngagementRate, followers)
	m.QualityScore = QualityScore(m.AvgEngagementRate, followers)
	return m
}

func averages(media []domain.DiscoveredMedia, followers int) Metrics {
	if len(media) == 0 {
		return Metrics{}
	}
	var rateSum, likeSum, commentSum float64
	for _, p := range media {
		rateSum += Rate(p.LikeCount, p.CommentsCount, followers)
		if p.LikeCount != nil {
			likeSum += float64(*p.LikeCount)
		}
		commentSum += float64(p.CommentsCount)
	}
	n := float64(len(media))
	return Metrics{
		AvgEngagementRate:  round2(rateSum / n),
		AvgLikes:           math.Round(likeSum / n),
		AvgComments:        math.Round(commentSum / n),
		TotalPostsAnalyzed: len(media),
	}
}

// TierPercentile places an engagement rate within its tier's benchmark
// bands: [0,low]->0-25, (low,avg]->25-50, (avg,high]->50-75, above high
// climbs toward 100 proportionally to the excess. Rounded to one decimal.
func TierPercentile(rate float64, followers int) float64 {
	b := benchmarks[Tier(followers)]
	var p float64
	switch {
	case rate <= b.Low:
		p = rate / b.Low * 25
	case rate <= b.Avg:
		p = 25 + (rate-b.Low)/(b.Avg-b.Low)*25
	case rate <= b.High:
		p = 50 + (rate-b.Avg)/(b.High-b.Avg)*25
	default:
		p = math.Min(100, 75+(rate-b.High)/b.High*25)
	}
	return math.Round(p*10) / 10
}

// QualityScore maps an engagement rate to a 0-100 score against its tier's
// benchmarks: >= high scores 90, [avg,high) interpolates 60-90, [low,avg)
// interpolates 30-60, below low interpolates 0-30. Rounded to an integer.
func QualityScore(rate float64, followers int) float64 {
	b := benchmarks[Tier(followers)]
	var score float64
	switch {
	case rate >= b.High:
		score = 90
	case rate >= b.Avg:
		score = 60 + (rate-b.Avg)/(b.High-b.Avg)*30
	case rate >= b.Low:
		score = 30 + (rate-b.Low)/(b.Avg-b.Low)*30
	default:
		score = math.Min(1, rate/b.Low) * 30
	}
	return math.Max(0, math.Min(100, math.Round(score)))
}

// TopPosts returns the n posts with the highest engagement rate, descending.
// Ties keep the input order.
func TopPosts(media []domain.DiscoveredMedia, followers, n int) []domain.DiscoveredMedia {
	ranked := make([]domain.DiscoveredMedia, len(media))
	copy(ranked, media)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Rate(ranked[i].LikeCount, ranked[i].CommentsCount, followers) >
			Rate(ranked[j].LikeCount, ranked[j].CommentsCount, followers)
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
