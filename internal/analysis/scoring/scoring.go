// Package scoring combines similarity, engagement, and category fit into a
// final graded score for one brand/influencer pairing.
package scoring

import (
	"log/slog"
	"math"
	"sort"
)

// Default component weights, summing to 1.0.
const (
	DefaultSimilarityWeight = 0.40
	DefaultEngagementWeight = 0.35
	DefaultCategoryWeight   = 0.25
)

// neutralCategoryScore stands in when either side has no category data.
const neutralCategoryScore = 50.0

// Breakdown carries the component scores, the weighted final score, and the
// letter grade. All scores are 0-100 rounded to one decimal.
type Breakdown struct {
	SimilarityScore  float64 `json:"similarity_score"`
	EngagementScore  float64 `json:"engagement_score"`
	CategoryScore    float64 `json:"category_score"`
	FinalScore       float64 `json:"final_score"`
	Grade            string  `json:"grade"`
	SimilarityWeight float64 `json:"-"`
	EngagementWeight float64 `json:"-"`
	CategoryWeight   float64 `json:"-"`
}

// gradeBand is one letter grade with its inclusive score range.
type gradeBand struct {
	Grade    string
	Min, Max float64
	Label    string
}

// Grade bands are checked top down, so a boundary score takes the higher
// grade.
var gradeBands = []gradeBand{
	{Grade: "A", Min: 80, Max: 100, Label: "강력 추천"},
	{Grade: "B", Min: 60, Max: 79, Label: "추천"},
	{Grade: "C", Min: 40, Max: 59, Label: "보통"},
	{Grade: "D", Min: 0, Max: 39, Label: "부적합"},
}

// Weights configures the component mix. Zero value means defaults.
type Weights struct {
	Similarity float64
	Engagement float64
	Category   float64
}

func (w Weights) orDefault() Weights {
	if w.Similarity <= 0 && w.Engagement <= 0 && w.Category <= 0 {
		return Weights{
			Similarity: DefaultSimilarityWeight,
			Engagement: DefaultEngagementWeight,
			Category:   DefaultCategoryWeight,
		}
	}
	return w
}

// Calculate produces the weighted final score and grade. Weights that do not
// sum to 1.0 (within 0.01) are normalized with a warning.
func Calculate(similarityScore, engagementScore, categoryScore float64, w Weights) Breakdown {
	w = w.orDefault()
	total := w.Similarity + w.Engagement + w.Category
	if math.Abs(total-1.0) > 0.01 {
		slog.Warn("score weights do not sum to 1.0, normalizing", slog.Float64("total", total))
		w.Similarity /= total
		w.Engagement /= total
		w.Category /= total
	}

	final := similarityScore*w.Similarity + engagementScore*w.Engagement + categoryScore*w.Category

	return Breakdown{
		SimilarityScore:  round1(similarityScore),
		EngagementScore:  round1(engagementScore),
		CategoryScore:    round1(categoryScore),
		FinalScore:       round1(final),
		Grade:            GradeFor(final),
		SimilarityWeight: w.Similarity,
		EngagementWeight: w.Engagement,
		CategoryWeight:   w.Category,
	}
}

// GradeFor maps a score to its letter grade. Out-of-range scores grade D.
func GradeFor(score float64) string {
	for _, b := range gradeBands {
		if score >= b.Min && score <= b.Max {
			return b.Grade
		}
	}
	return "D"
}

// GradeLabel returns the human-readable label for a grade.
func GradeLabel(grade string) string {
	for _, b := range gradeBands {
		if b.Grade == grade {
			return b.Label
		}
	}
	return "Unknown"
}

// CategoryScore is the Jaccard overlap of two category slug sets as a 0-100
// score. Either side empty yields the neutral score.
func CategoryScore(brandCategories, influencerCategories []string) float64 {
	if len(brandCategories) == 0 || len(influencerCategories) == 0 {
		return neutralCategoryScore
	}
	a := make(map[string]struct{}, len(brandCategories))
	for _, s := range brandCategories {
		a[s] = struct{}{}
	}
	b := make(map[string]struct{}, len(influencerCategories))
	for _, s := range influencerCategories {
		b[s] = struct{}{}
	}
	inter := 0
	for s := range a {
		if _, ok := b[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return round1(float64(inter) / float64(union) * 100)
}

// Rank sorts breakdowns by final score descending. When minGrade is set,
// entries below that grade's floor are dropped ("B" keeps A and B).
func Rank(scores []Breakdown, minGrade string) []Breakdown {
	floor := -1.0
	if minGrade != "" {
		for _, b := range gradeBands {
			if b.Grade == minGrade {
				floor = b.Min
			}
		}
	}
	out := make([]Breakdown, 0, len(scores))
	for _, s := range scores {
		if s.FinalScore >= floor {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
