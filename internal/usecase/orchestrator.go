// Package usecase wires the analysis pipeline: job intake over the queue and
// the orchestration that turns discovery data into scored matches.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdh4601/ClosetBot/internal/adapter/observability"
	"github.com/jdh4601/ClosetBot/internal/analysis/engagement"
	"github.com/jdh4601/ClosetBot/internal/analysis/scoring"
	"github.com/jdh4601/ClosetBot/internal/analysis/similarity"
	"github.com/jdh4601/ClosetBot/internal/analysis/taxonomy"
	"github.com/jdh4601/ClosetBot/internal/analysis/textproc"
	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/pkg/textx"
)

const (
	// mediaLimit is the recent-post window every analysis looks at.
	mediaLimit = 20

	topCategories    = 3
	topHashtags      = 20
	topKeywords      = 20
	topPosts         = 3
	maxCollabSignals = 10
)

// BrandAnalysis is the extracted brand side of a comparison, computed once
// per job and reused for every influencer.
type BrandAnalysis struct {
	Profile     domain.DiscoveredProfile
	Hashtags    []string
	Keywords    []string
	Categories  []string
	TopHashtags []domain.HashtagCount
}

// InfluencerAnalysis is one influencer scored against a brand.
type InfluencerAnalysis struct {
	Profile        domain.DiscoveredProfile
	Hashtags       []string
	Keywords       []string
	Categories     []string
	Engagement     engagement.Metrics
	Score          scoring.Breakdown
	TopPosts       []domain.PostSummary
	CollabSignals  []domain.CollabSignal
	CommonHashtags []string
	TopHashtags    []domain.HashtagCount
}

// Orchestrator runs the analysis pipeline for one brand/influencer pair at a
// time. It owns no persistence; the queue handler saves what it returns.
type Orchestrator struct {
	fetcher    domain.ProfileFetcher
	classifier *taxonomy.Classifier
}

func NewOrchestrator(fetcher domain.ProfileFetcher, classifier *taxonomy.Classifier) *Orchestrator {
	if classifier == nil {
		classifier = taxonomy.NewClassifier()
	}
	return &Orchestrator{fetcher: fetcher, classifier: classifier}
}

// AnalyzeBrand fetches the brand profile and extracts its content signature.
func (o *Orchestrator) AnalyzeBrand(ctx context.Context, handle string) (BrandAnalysis, error) {
	slog.Info("analyzing brand", slog.String("handle", handle))

	profile, err := o.fetcher.GetProfile(ctx, handle, mediaLimit)
	if err != nil {
		return BrandAnalysis{}, fmt.Errorf("op=analyze_brand handle=%s: %w", handle, err)
	}

	hashtags, keywords := extractContent(profile.Media)
	categories := topSlugs(o.classifier.Classify(hashtags, keywords, 0), topCategories)

	return BrandAnalysis{
		Profile:  profile,
		Hashtags: hashtags,
		// the brand signature keeps only its most frequent keywords so one
		// wordy caption cannot dominate the similarity comparison
		Keywords:    textproc.TopKeywords(keywords, topKeywords),
		Categories:  categories,
		TopHashtags: textproc.HashtagFrequency(hashtags, topHashtags),
	}, nil
}

// AnalyzeInfluencer fetches one influencer and scores it against the brand.
func (o *Orchestrator) AnalyzeInfluencer(ctx context.Context, handle string, brand BrandAnalysis) (InfluencerAnalysis, error) {
	slog.Info("analyzing influencer", slog.String("handle", handle))

	profile, err := o.fetcher.GetProfile(ctx, handle, mediaLimit)
	if err != nil {
		return InfluencerAnalysis{}, fmt.Errorf("op=analyze_influencer handle=%s: %w", handle, err)
	}

	hashtags, keywords := extractContent(profile.Media)
	categories := topSlugs(o.classifier.Classify(hashtags, keywords, 0), topCategories)

	metrics := engagement.Analyze(profile.Media, profile.FollowersCount)
	simResult := similarity.Calculate(brand.Hashtags, brand.Keywords, hashtags, keywords, 0, 0)
	categoryScore := scoring.CategoryScore(brand.Categories, categories)
	engagementScore := engagement.QualityScore(metrics.AvgEngagementRate, profile.FollowersCount)
	breakdown := scoring.Calculate(simResult.SimilarityScore, engagementScore, categoryScore, scoring.Weights{})

	observability.ObserveMatch(breakdown.FinalScore, breakdown.Grade)

	return InfluencerAnalysis{
		Profile:        profile,
		Hashtags:       hashtags,
		Keywords:       keywords,
		Categories:     categories,
		Engagement:     metrics,
		Score:          breakdown,
		TopPosts:       summarizeTopPosts(profile.Media, profile.FollowersCount),
		CollabSignals:  collectCollabSignals(profile.Media),
		CommonHashtags: simResult.CommonHashtags,
		TopHashtags:    textproc.HashtagFrequency(hashtags, 10),
	}, nil
}

// extractContent pulls the filtered hashtag and keyword corpora out of a
// media window.
func extractContent(media []domain.DiscoveredMedia) (hashtags, keywords []string) {
	for _, m := range media {
		if m.Caption == "" {
			continue
		}
		hashtags = append(hashtags, textproc.ExtractHashtags(m.Caption)...)
		keywords = append(keywords, textproc.ExtractKeywords(m.Caption, 0)...)
	}
	return textproc.FilterHashtags(hashtags, 0, true), keywords
}

func topSlugs(scores []taxonomy.Score, n int) []string {
	if len(scores) > n {
		scores = scores[:n]
	}
	out := make([]string, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Slug)
	}
	return out
}

func summarizeTopPosts(media []domain.DiscoveredMedia, followers int) []domain.PostSummary {
	ranked := engagement.TopPosts(media, followers, topPosts)
	out := make([]domain.PostSummary, 0, len(ranked))
	for _, m := range ranked {
		out = append(out, domain.PostSummary{
			ExternalID:     m.ID,
			Permalink:      m.Permalink,
			CaptionPreview: textx.Preview(m.Caption, 120),
			EngagementRate: engagement.Rate(m.LikeCount, m.CommentsCount, followers),
			LikeCount:      m.LikeCount,
			CommentsCount:  m.CommentsCount,
			PostedAt:       formatTime(m.PostedAt),
		})
	}
	return out
}

func collectCollabSignals(media []domain.DiscoveredMedia) []domain.CollabSignal {
	var out []domain.CollabSignal
	for _, m := range media {
		if m.Caption == "" {
			continue
		}
		sig := textproc.DetectCollaboration(m.Caption)
		if !sig.IsCollaboration {
			continue
		}
		collabType := sig.CollaborationType
		if collabType == "" {
			collabType = "mention"
		}
		for _, mention := range sig.Mentions {
			out = append(out, domain.CollabSignal{
				BrandHandle:       mention,
				CollaborationType: collabType,
				PostPermalink:     m.Permalink,
				PostedAt:          formatTime(m.PostedAt),
			})
			if len(out) >= maxCollabSignals {
				return out
			}
		}
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
