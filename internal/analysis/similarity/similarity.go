// Package similarity computes weighted Jaccard similarity between a brand's
// and an influencer's hashtag and keyword sets.
package similarity

import (
	"math"
	"sort"
	"strings"
)

// Default component weights. Hashtags carry more signal than free-text
// keywords.
const (
	DefaultHashtagWeight = 0.7
	DefaultKeywordWeight = 0.3
)

// Result is the outcome of one brand/influencer comparison. Scores are
// percentages in [0,100] rounded to one decimal.
type Result struct {
	SimilarityScore        float64  `json:"similarity_score"`
	HashtagSimilarity      float64  `json:"hashtag_similarity"`
	KeywordSimilarity      float64  `json:"keyword_similarity"`
	CommonHashtags         []string `json:"common_hashtags"`
	CommonKeywords         []string `json:"common_keywords"`
	BrandHashtagCount      int      `json:"brand_hashtag_count"`
	InfluencerHashtagCount int      `json:"influencer_hashtag_count"`
	OverlapHashtagCount    int      `json:"overlap_hashtag_count"`
}

// Calculate scores the overlap of two hashtag/keyword corpora. Non-positive
// weights fall back to the defaults.
func Calculate(brandHashtags, brandKeywords, infHashtags, infKeywords []string, hashtagWeight, keywordWeight float64) Result {
	if hashtagWeight <= 0 || keywordWeight <= 0 {
		hashtagWeight = DefaultHashtagWeight
		keywordWeight = DefaultKeywordWeight
	}

	bTags := toSet(brandHashtags)
	bWords := toSet(brandKeywords)
	iTags := toSet(infHashtags)
	iWords := toSet(infKeywords)

	tagSim := jaccard(bTags, iTags)
	wordSim := jaccard(bWords, iWords)
	weighted := tagSim*hashtagWeight + wordSim*keywordWeight

	commonTags := intersect(bTags, iTags)
	commonWords := intersect(bWords, iWords)

	return Result{
		SimilarityScore:        round1(weighted * 100),
		HashtagSimilarity:      round1(tagSim * 100),
		KeywordSimilarity:      round1(wordSim * 100),
		CommonHashtags:         commonTags,
		CommonKeywords:         commonWords,
		BrandHashtagCount:      len(bTags),
		InfluencerHashtagCount: len(iTags),
		OverlapHashtagCount:    len(commonTags),
	}
}

// CalculateTFIDF is the frequency-aware variant: each hashtag contributes its
// term frequency scaled by its inverse document frequency, intersections take
// the minimum weight and unions the maximum. Unknown tags default to IDF 1.0.
// Returns a percentage in [0,100] rounded to one decimal.
func CalculateTFIDF(brandHashtags, infHashtags []string, idf map[string]float64) float64 {
	bFreq := frequency(brandHashtags)
	iFreq := frequency(infHashtags)

	all := make(map[string]struct{}, len(bFreq)+len(iFreq))
	for t := range bFreq {
		all[t] = struct{}{}
	}
	for t := range iFreq {
		all[t] = struct{}{}
	}

	var inter, union float64
	for t := range all {
		w := 1.0
		if v, ok := idf[t]; ok {
			w = v
		}
		bw := float64(bFreq[t]) * w
		iw := float64(iFreq[t]) * w
		inter += math.Min(bw, iw)
		union += math.Max(bw, iw)
	}
	if union == 0 {
		return 0
	}
	return round1(inter / union * 100)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
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
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[strings.ToLower(s)] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for s := range a {
		if _, ok := b[s]; ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func frequency(items []string) map[string]int {
	freq := make(map[string]int, len(items))
	for _, s := range items {
		freq[strings.ToLower(s)]++
	}
	return freq
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
