package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdh4601/ClosetBot/internal/domain"
)

type fakeFetcher struct {
	profiles map[string]domain.DiscoveredProfile
	errs     map[string]error
	calls    []string
}

func (f *fakeFetcher) GetProfile(_ context.Context, handle string, _ int) (domain.DiscoveredProfile, error) {
	f.calls = append(f.calls, handle)
	if err, ok := f.errs[handle]; ok {
		return domain.DiscoveredProfile{}, err
	}
	p, ok := f.profiles[handle]
	if !ok {
		return domain.DiscoveredProfile{}, &domain.AccountNotFoundError{Handle: handle}
	}
	return p, nil
}

func (f *fakeFetcher) ValidateAccount(context.Context, string) (domain.AccountValidation, error) {
	return domain.AccountValidation{Valid: true}, nil
}

func intp(v int) *int { return &v }

func mediaPost(id, caption string, likes int) domain.DiscoveredMedia {
	posted := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return domain.DiscoveredMedia{
		ID:            id,
		Caption:       caption,
		LikeCount:     intp(likes),
		CommentsCount: 5,
		Permalink:     "https://ig/p/" + id,
		PostedAt:      &posted,
	}
}

func testFetcher() *fakeFetcher {
	return &fakeFetcher{profiles: map[string]domain.DiscoveredProfile{
		"acmewear": {
			ID: "b1", Handle: "acmewear", FollowersCount: 50_000,
			Media: []domain.DiscoveredMedia{
				mediaPost("b-m1", "new drop #minimal #simple #clean basic style", 2000),
				mediaPost("b-m2", "weekend looks #minimal #ootd", 1800),
			},
		},
		"style_kim": {
			ID: "i1", Handle: "style_kim", FollowersCount: 12_000,
			Media: []domain.DiscoveredMedia{
				mediaPost("k-m1", "today #minimal #clean fit with @acmewear #ad", 700),
				mediaPost("k-m2", "simple basics #minimal #simple", 500),
			},
		},
	}}
}

func TestAnalyzeBrand(t *testing.T) {
	o := NewOrchestrator(testFetcher(), nil)

	brand, err := o.AnalyzeBrand(context.Background(), "acmewear")
	require.NoError(t, err)
	assert.Equal(t, "acmewear", brand.Profile.Handle)
	assert.Contains(t, brand.Hashtags, "minimal")
	assert.Contains(t, brand.Keywords, "style")
	assert.Contains(t, brand.Categories, "minimal")
	require.NotEmpty(t, brand.TopHashtags)
	assert.Equal(t, "minimal", brand.TopHashtags[0].Hashtag)
	assert.Equal(t, 2, brand.TopHashtags[0].Count)
}

func TestAnalyzeBrand_CapsKeywords(t *testing.T) {
	f := testFetcher()
	caption := "denim denim denim alpaca bravo charlie delta echoed foxtrot golfer " +
		"hotelier indigo juliett kilogram limestone mikado november oscar papaya " +
		"quebec romeo sierra tango uniform victor whiskey yankee"
	f.profiles["wordy"] = domain.DiscoveredProfile{
		ID: "b2", Handle: "wordy", FollowersCount: 10_000,
		Media: []domain.DiscoveredMedia{mediaPost("w-m1", caption, 300)},
	}
	o := NewOrchestrator(f, nil)

	brand, err := o.AnalyzeBrand(context.Background(), "wordy")
	require.NoError(t, err)

	// the signature keeps the 20 most frequent unique keywords
	assert.Len(t, brand.Keywords, 20)
	assert.Equal(t, "denim", brand.Keywords[0])
}

func TestAnalyzeBrand_NotFound(t *testing.T) {
	o := NewOrchestrator(testFetcher(), nil)
	_, err := o.AnalyzeBrand(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAnalyzeInfluencer(t *testing.T) {
	o := NewOrchestrator(testFetcher(), nil)
	ctx := context.Background()

	brand, err := o.AnalyzeBrand(ctx, "acmewear")
	require.NoError(t, err)

	inf, err := o.AnalyzeInfluencer(ctx, "style_kim", brand)
	require.NoError(t, err)

	assert.Equal(t, "style_kim", inf.Profile.Handle)
	assert.Contains(t, inf.Categories, "minimal")
	assert.Contains(t, inf.CommonHashtags, "minimal")

	// engagement: (700+5*0)... likes present so comments ignored
	assert.Greater(t, inf.Engagement.AvgEngagementRate, 0.0)
	assert.Greater(t, inf.Score.FinalScore, 0.0)
	assert.Contains(t, []string{"A", "B", "C", "D"}, inf.Score.Grade)

	// top posts ranked by engagement, best first
	require.Len(t, inf.TopPosts, 2)
	assert.Equal(t, "k-m1", inf.TopPosts[0].ExternalID)
	assert.Greater(t, inf.TopPosts[0].EngagementRate, inf.TopPosts[1].EngagementRate)
	assert.NotEmpty(t, inf.TopPosts[0].PostedAt)

	// the #ad + @acmewear caption yields a paid collab signal
	require.NotEmpty(t, inf.CollabSignals)
	assert.Equal(t, "acmewear", inf.CollabSignals[0].BrandHandle)
	assert.Equal(t, "paid", inf.CollabSignals[0].CollaborationType)
}

func TestAnalyzeInfluencer_MentionOnlySignal(t *testing.T) {
	f := testFetcher()
	f.profiles["plain_mention"] = domain.DiscoveredProfile{
		ID: "i2", Handle: "plain_mention", FollowersCount: 5_000,
		Media: []domain.DiscoveredMedia{
			mediaPost("p-m1", "day out with @somebrand", 100),
		},
	}
	o := NewOrchestrator(f, nil)
	ctx := context.Background()

	brand, err := o.AnalyzeBrand(ctx, "acmewear")
	require.NoError(t, err)
	inf, err := o.AnalyzeInfluencer(ctx, "plain_mention", brand)
	require.NoError(t, err)

	require.Len(t, inf.CollabSignals, 1)
	assert.Equal(t, "mention", inf.CollabSignals[0].CollaborationType)
}

func TestAnalyzeInfluencer_EmptyMedia(t *testing.T) {
	f := testFetcher()
	f.profiles["quiet"] = domain.DiscoveredProfile{
		ID: "i3", Handle: "quiet", FollowersCount: 2_000,
	}
	o := NewOrchestrator(f, nil)
	ctx := context.Background()

	brand, err := o.AnalyzeBrand(ctx, "acmewear")
	require.NoError(t, err)
	inf, err := o.AnalyzeInfluencer(ctx, "quiet", brand)
	require.NoError(t, err)

	assert.Zero(t, inf.Engagement.AvgEngagementRate)
	assert.Empty(t, inf.TopPosts)
	assert.Empty(t, inf.CollabSignals)
	// no category data on the influencer side scores neutral 50
	assert.Equal(t, 50.0, inf.Score.CategoryScore)
}
