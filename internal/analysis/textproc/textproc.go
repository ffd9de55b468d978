// Package textproc extracts hashtags, mentions, and keywords from post
// captions and detects collaboration signals. All functions are pure.
package textproc

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

const defaultMinLength = 2

var (
	hashtagRe = regexp.MustCompile(`#(\w+)`)
	mentionRe = regexp.MustCompile(`@(\w+)`)
	urlRe     = regexp.MustCompile(`https?://\S+`)
	wordRe    = regexp.MustCompile(`\b[a-zA-Z가-힣]+\b`)
	digitsRe  = regexp.MustCompile(`^[0-9]+$`)
)

// Collaboration tag sets, checked in order: a paid tag wins over a gifted
// tag, which wins over a generic collab tag.
var (
	paidTags   = []string{"ad", "sponsored", "partner", "partnership", "광고", "유료광고", "파트너십"}
	giftedTags = []string{"gifted", "pr", "제품제공", "review", "리뷰"}
	collabTags = []string{"collab", "협찬", "협업"}
)

// allCollabTags is the scan order used when collecting matched tags.
var allCollabTags = []string{
	"ad", "sponsored", "partner", "partnership", "collab",
	"협찬", "광고", "제품제공", "파트너십", "협업", "유료광고",
	"gifted", "pr", "review", "리뷰", "내돈내산",
}

// ExtractHashtags returns the hashtags in text without "#", lowercased.
func ExtractHashtags(text string) []string {
	if text == "" {
		return nil
	}
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.TrimSpace(strings.ToLower(m[1]))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// ExtractMentions returns the @mentions in text without "@", lowercased.
func ExtractMentions(text string) []string {
	if text == "" {
		return nil
	}
	matches := mentionRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		u := strings.TrimSpace(strings.ToLower(m[1]))
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// ExtractKeywords tokenizes text after stripping hashtags, mentions, and
// URLs, then drops short tokens and stopwords. minLength <= 0 uses the
// default of 2.
func ExtractKeywords(text string, minLength int) []string {
	if text == "" {
		return nil
	}
	if minLength <= 0 {
		minLength = defaultMinLength
	}
	cleaned := hashtagRe.ReplaceAllString(text, "")
	cleaned = mentionRe.ReplaceAllString(cleaned, "")
	cleaned = urlRe.ReplaceAllString(cleaned, "")

	words := wordRe.FindAllString(cleaned, -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < minLength {
			continue
		}
		lw := strings.ToLower(w)
		if IsStopword(lw) {
			continue
		}
		out = append(out, lw)
	}
	return out
}

// FilterHashtags drops tags shorter than minLength, purely numeric tags,
// and (when removeSpam) known spam tags.
func FilterHashtags(hashtags []string, minLength int, removeSpam bool) []string {
	if minLength <= 0 {
		minLength = defaultMinLength
	}
	out := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		if len([]rune(tag)) < minLength {
			continue
		}
		if removeSpam && IsSpamHashtag(tag) {
			continue
		}
		if digitsRe.MatchString(tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// HashtagFrequency returns the topN most common hashtags with counts,
// descending. Ties break lexicographically for determinism.
func HashtagFrequency(hashtags []string, topN int) []domain.HashtagCount {
	counts := make(map[string]int, len(hashtags))
	for _, tag := range hashtags {
		counts[tag]++
	}
	out := make([]domain.HashtagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, domain.HashtagCount{Hashtag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hashtag < out[j].Hashtag
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// TopKeywords returns the topN most common keywords, deduplicated, most
// frequent first. Ties break lexicographically for determinism.
func TopKeywords(keywords []string, topN int) []string {
	counts := make(map[string]int, len(keywords))
	for _, kw := range keywords {
		counts[kw]++
	}
	uniq := make([]string, 0, len(counts))
	for kw := range counts {
		uniq = append(uniq, kw)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if counts[uniq[i]] != counts[uniq[j]] {
			return counts[uniq[i]] > counts[uniq[j]]
		}
		return uniq[i] < uniq[j]
	})
	if topN > 0 && len(uniq) > topN {
		uniq = uniq[:topN]
	}
	return uniq
}

// CollabSignals is the outcome of collaboration detection on one caption.
type CollabSignals struct {
	IsCollaboration   bool
	CollaborationType string // "paid", "gifted", "collab", or ""
	CollabHashtags    []string
	Mentions          []string
}

// DetectCollaboration scans a caption for sponsorship hashtags and brand
// mentions. A caption counts as a collaboration when either is present.
func DetectCollaboration(text string) CollabSignals {
	lower := strings.ToLower(text)

	var found []string
	for _, tag := range allCollabTags {
		if strings.Contains(lower, "#"+tag) {
			found = append(found, tag)
		}
	}
	mentions := ExtractMentions(text)

	collabType := ""
	switch {
	case containsAny(found, paidTags):
		collabType = "paid"
	case containsAny(found, giftedTags):
		collabType = "gifted"
	case containsAny(found, collabTags):
		collabType = "collab"
	}

	return CollabSignals{
		IsCollaboration:   len(found) > 0 || len(mentions) > 0,
		CollaborationType: collabType,
		CollabHashtags:    found,
		Mentions:          mentions,
	}
}

func containsAny(haystack, needles []string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}
