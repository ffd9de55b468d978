package redpanda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/internal/usecase"
)

type fakeJobRepo struct {
	status   map[string]domain.JobStatus
	apiCalls map[string]int
	errMsg   map[string]string
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		status:   map[string]domain.JobStatus{},
		apiCalls: map[string]int{},
		errMsg:   map[string]string{},
	}
}

func (f *fakeJobRepo) Create(context.Context, domain.Job) (string, error) { return "", nil }
func (f *fakeJobRepo) Get(_ context.Context, id string) (domain.Job, error) {
	return domain.Job{ID: id, Status: f.status[id]}, nil
}
func (f *fakeJobRepo) MarkRunning(_ context.Context, id string) error {
	f.status[id] = domain.JobRunning
	return nil
}
func (f *fakeJobRepo) MarkDone(_ context.Context, id string, apiCallsUsed int) error {
	f.status[id] = domain.JobDone
	f.apiCalls[id] = apiCallsUsed
	return nil
}
func (f *fakeJobRepo) MarkFailed(_ context.Context, id, msg string) error {
	f.status[id] = domain.JobFailed
	f.errMsg[id] = msg
	return nil
}

type fakeProfileRepo struct {
	upserts []domain.Profile
}

func (f *fakeProfileRepo) Upsert(_ context.Context, p domain.Profile) (string, error) {
	f.upserts = append(f.upserts, p)
	return "profile-" + p.Handle, nil
}

func (f *fakeProfileRepo) GetByHandle(context.Context, domain.ProfileKind, string) (domain.Profile, error) {
	return domain.Profile{}, domain.ErrNotFound
}

type fakeResultRepo struct {
	created []domain.AnalysisResult
}

func (f *fakeResultRepo) Create(_ context.Context, r domain.AnalysisResult) error {
	f.created = append(f.created, r)
	return nil
}

func (f *fakeResultRepo) ListByJob(context.Context, string) ([]domain.AnalysisResult, error) {
	return f.created, nil
}

type fakeMediaRepo struct {
	snapshots map[string]int
	hashtags  map[string]int
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{snapshots: map[string]int{}, hashtags: map[string]int{}}
}

func (f *fakeMediaRepo) ReplaceSnapshots(_ context.Context, profileID string, _ domain.ProfileKind, media []domain.DiscoveredMedia) error {
	f.snapshots[profileID] = len(media)
	return nil
}

func (f *fakeMediaRepo) UpsertHashtagCounts(_ context.Context, profileID string, counts []domain.HashtagCount) error {
	f.hashtags[profileID] = len(counts)
	return nil
}

// fakeFetcher simulates the discovery facade, counting one API call per
// uncached fetch the way the real one does.
type fakeFetcher struct {
	profiles map[string]domain.DiscoveredProfile
	errs     map[string]error
}

func (f *fakeFetcher) GetProfile(ctx context.Context, handle string, _ int) (domain.DiscoveredProfile, error) {
	if err, ok := f.errs[handle]; ok {
		return domain.DiscoveredProfile{}, err
	}
	p, ok := f.profiles[handle]
	if !ok {
		return domain.DiscoveredProfile{}, &domain.AccountNotFoundError{Handle: handle}
	}
	domain.APICallCounterFrom(ctx).Add(1)
	return p, nil
}

func (f *fakeFetcher) ValidateAccount(context.Context, string) (domain.AccountValidation, error) {
	return domain.AccountValidation{Valid: true}, nil
}

func intp(v int) *int { return &v }

func profileWithPosts(id, handle string, followers int, captions ...string) domain.DiscoveredProfile {
	p := domain.DiscoveredProfile{ID: id, Handle: handle, FollowersCount: followers}
	for i, c := range captions {
		p.Media = append(p.Media, domain.DiscoveredMedia{
			ID: handle + "-m" + string(rune('0'+i)), Caption: c,
			LikeCount: intp(100 * (i + 1)), CommentsCount: 4,
		})
	}
	return p
}

func newTestHandler(fetcher *fakeFetcher) (*Handler, *fakeJobRepo, *fakeProfileRepo, *fakeResultRepo, *fakeMediaRepo) {
	jobs := newFakeJobRepo()
	profiles := &fakeProfileRepo{}
	results := &fakeResultRepo{}
	media := newFakeMediaRepo()
	orch := usecase.NewOrchestrator(fetcher, nil)
	h := NewHandler(jobs, profiles, results, media, orch, time.Minute, 90*24*time.Hour)
	return h, jobs, profiles, results, media
}

func TestHandleAnalyze_Success(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]domain.DiscoveredProfile{
		"acmewear":  profileWithPosts("b1", "acmewear", 50_000, "#minimal #simple drop", "#minimal new"),
		"style_kim": profileWithPosts("i1", "style_kim", 12_000, "#minimal fit today", "#simple basics"),
		"min_joon":  profileWithPosts("i2", "min_joon", 8_000, "#streetwear #sneakers", "#hypebeast pickup"),
	}}
	h, jobs, profiles, results, media := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID:             "job-1",
		BrandHandle:       "acmewear",
		InfluencerHandles: []string{"style_kim", "min_joon"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobDone, jobs.status["job-1"])
	assert.Equal(t, 3, jobs.apiCalls["job-1"])

	// brand + 2 influencer profiles persisted
	require.Len(t, profiles.upserts, 3)
	assert.Equal(t, domain.ProfileBrand, profiles.upserts[0].Kind)
	assert.Equal(t, domain.ProfileInfluencer, profiles.upserts[1].Kind)

	require.Len(t, results.created, 2)
	assert.Equal(t, "job-1", results.created[0].JobID)
	assert.Equal(t, "profile-style_kim", results.created[0].InfluencerProfileID)
	assert.Contains(t, []string{"A", "B", "C", "D"}, results.created[0].Grade)

	// snapshots and hashtag aggregates land for every analyzed profile
	assert.Equal(t, 2, media.snapshots["profile-acmewear"])
	assert.Equal(t, 2, media.snapshots["profile-style_kim"])
	assert.Greater(t, media.hashtags["profile-acmewear"], 0)
}

func TestHandleAnalyze_BrandNotFoundIsConclusive(t *testing.T) {
	fetcher := &fakeFetcher{profiles: map[string]domain.DiscoveredProfile{}}
	h, jobs, _, results, _ := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID: "job-1", BrandHandle: "ghost", InfluencerHandles: []string{"style_kim"},
	})
	// no redispatch for a conclusive failure
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, jobs.status["job-1"])
	assert.Contains(t, jobs.errMsg["job-1"], "ghost")
	assert.Empty(t, results.created)
}

func TestHandleAnalyze_SkipsTerminalInfluencer(t *testing.T) {
	fetcher := &fakeFetcher{
		profiles: map[string]domain.DiscoveredProfile{
			"acmewear":  profileWithPosts("b1", "acmewear", 50_000, "#minimal drop"),
			"style_kim": profileWithPosts("i1", "style_kim", 12_000, "#minimal fit"),
		},
		errs: map[string]error{
			"private_one": &domain.PrivateAccountError{Handle: "private_one"},
		},
	}
	h, jobs, _, results, _ := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID:             "job-1",
		BrandHandle:       "acmewear",
		InfluencerHandles: []string{"private_one", "style_kim"},
	})
	require.NoError(t, err)

	// the private account is skipped, the job still completes
	assert.Equal(t, domain.JobDone, jobs.status["job-1"])
	require.Len(t, results.created, 1)
	assert.Equal(t, "profile-style_kim", results.created[0].InfluencerProfileID)
}

func TestHandleAnalyze_TransientInfluencerErrorSkipped(t *testing.T) {
	fetcher := &fakeFetcher{
		profiles: map[string]domain.DiscoveredProfile{
			"acmewear": profileWithPosts("b1", "acmewear", 50_000, "#minimal drop"),
			"min_joon": profileWithPosts("i2", "min_joon", 8_000, "#minimal pickup"),
		},
		errs: map[string]error{
			"style_kim": &domain.DiscoveryError{Message: "upstream down", Status: 503},
		},
	}
	h, jobs, _, results, _ := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID:             "job-1",
		BrandHandle:       "acmewear",
		InfluencerHandles: []string{"style_kim", "min_joon"},
	})
	require.NoError(t, err)

	// the flaky influencer is skipped, the rest still get analyzed and the
	// job finishes so its partial results stay reachable
	assert.Equal(t, domain.JobDone, jobs.status["job-1"])
	require.Len(t, results.created, 1)
	assert.Equal(t, "profile-min_joon", results.created[0].InfluencerProfileID)
}

func TestHandleAnalyze_StarvedInfluencerSkipped(t *testing.T) {
	fetcher := &fakeFetcher{
		profiles: map[string]domain.DiscoveredProfile{
			"acmewear":  profileWithPosts("b1", "acmewear", 50_000, "#minimal drop"),
			"style_kim": profileWithPosts("i1", "style_kim", 12_000, "#minimal fit"),
		},
		errs: map[string]error{
			"min_joon": &domain.RateLimitedError{RetryAfter: 1800 * time.Second},
		},
	}
	h, jobs, _, results, _ := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID:             "job-1",
		BrandHandle:       "acmewear",
		InfluencerHandles: []string{"style_kim", "min_joon"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobDone, jobs.status["job-1"])
	require.Len(t, results.created, 1)
	assert.Equal(t, "profile-style_kim", results.created[0].InfluencerProfileID)
}

func TestHandleAnalyze_AllInfluencersSkippedStillDone(t *testing.T) {
	fetcher := &fakeFetcher{
		profiles: map[string]domain.DiscoveredProfile{
			"acmewear": profileWithPosts("b1", "acmewear", 50_000, "#minimal drop"),
		},
	}
	h, jobs, _, results, _ := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID:             "job-1",
		BrandHandle:       "acmewear",
		InfluencerHandles: []string{"ghost_one", "ghost_two"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, jobs.status["job-1"])
	assert.Empty(t, results.created)
}

func TestHandleAnalyze_RateLimitBudgetError(t *testing.T) {
	fetcher := &fakeFetcher{
		profiles: map[string]domain.DiscoveredProfile{},
		errs: map[string]error{
			"acmewear": &domain.RateLimitedError{RetryAfter: 1800 * time.Second},
		},
	}
	h, jobs, _, _, _ := newTestHandler(fetcher)

	err := h.HandleAnalyze(context.Background(), domain.AnalyzeTaskPayload{
		JobID: "job-1", BrandHandle: "acmewear", InfluencerHandles: []string{"style_kim"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, domain.JobRunning, jobs.status["job-1"])
}

func TestHeaderHelpers(t *testing.T) {
	rec := recordWithHeaders(map[string]string{
		headerAttempt:   "2",
		headerNotBefore: "1700000000",
	})
	assert.Equal(t, 2, headerInt(rec, headerAttempt, 1))
	assert.Equal(t, int64(1700000000), headerUnix(rec, headerNotBefore).Unix())

	empty := recordWithHeaders(nil)
	assert.Equal(t, 1, headerInt(empty, headerAttempt, 1))
	assert.True(t, headerUnix(empty, headerNotBefore).IsZero())

	bad := recordWithHeaders(map[string]string{headerAttempt: "nope"})
	assert.Equal(t, 1, headerInt(bad, headerAttempt, 1))
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 63, roundScore(63.4))
	assert.Equal(t, 64, roundScore(63.5))
	assert.Equal(t, 0, roundScore(-3))
	assert.Equal(t, 100, roundScore(140))
}

func TestDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	assert.True(t, deadlineExceeded(ctx, errors.New("wrapped cause")))
	assert.True(t, deadlineExceeded(context.Background(), context.DeadlineExceeded))
	assert.False(t, deadlineExceeded(context.Background(), errors.New("other")))
}
