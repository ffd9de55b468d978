package domain

import (
	"context"
	"time"
)

// JobStatus enumerates the analysis job lifecycle. Transitions only move
// forward: queued -> running -> done|failed.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// ProfileKind distinguishes brand and influencer profiles.
type ProfileKind string

const (
	ProfileBrand      ProfileKind = "brand"
	ProfileInfluencer ProfileKind = "influencer"
)

// Job is one brand-to-influencers analysis request.
type Job struct {
	ID                string
	BrandHandle       string
	InfluencerHandles []string
	Status            JobStatus
	APICallsUsed      int
	APICallsEstimated int
	ErrorMessage      string
	CreatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
	ExpiresAt         *time.Time
}

// Profile is a stored brand or influencer profile. Handle is unique per kind,
// lowercased, at most 30 chars. AvgEngagementBP is the average engagement
// rate in integer basis points (520 = 5.20%) and only meaningful for
// influencers.
type Profile struct {
	ID                string
	Kind              ProfileKind
	Handle            string
	Name              string
	FollowersCount    int
	FollowsCount      int
	MediaCount        int
	Biography         string
	ProfilePictureURL string
	Categories        []string
	AvgEngagementBP   int
	LastFetchedAt     time.Time
	ExpiresAt         time.Time
}

// MediaSnapshot is one fetched post belonging to a profile. LikeCount stays
// nil when the discovery API withholds it; it is never coerced to zero.
type MediaSnapshot struct {
	ID            string
	ProfileID     string
	ProfileKind   ProfileKind
	ExternalID    string
	Caption       string
	LikeCount     *int
	CommentsCount int
	MediaType     string
	Permalink     string
	PostedAt      *time.Time
}

// PostSummary is a ranked post carried inside an analysis result.
type PostSummary struct {
	ExternalID     string  `json:"id"`
	Permalink      string  `json:"permalink"`
	CaptionPreview string  `json:"caption_preview"`
	EngagementRate float64 `json:"engagement_rate"`
	LikeCount      *int    `json:"like_count"`
	CommentsCount  int     `json:"comments_count"`
	PostedAt       string  `json:"posted_at"`
}

// CollabSignal is one detected collaboration mention in a caption.
type CollabSignal struct {
	BrandHandle       string `json:"brand_username"`
	CollaborationType string `json:"collaboration_type"`
	PostPermalink     string `json:"post_permalink"`
	PostedAt          string `json:"posted_at"`
}

// HashtagCount is a hashtag with its occurrence count.
type HashtagCount struct {
	Hashtag string `json:"hashtag"`
	Count   int    `json:"count"`
}

// AnalysisResult is the scored outcome for one (job, influencer) pair.
// Scores are 0-100 integers; Grade is one of A, B, C, D. The Influencer*
// fields are denormalized from the profile row on read.
type AnalysisResult struct {
	JobID                string
	InfluencerProfileID  string
	InfluencerHandle     string
	InfluencerFollowers  int
	InfluencerEngagement float64
	SimilarityScore      int
	EngagementScore      int
	CategoryScore        int
	FinalScore           int
	Grade                string
	TopPosts             []PostSummary
	CollabSignals        []CollabSignal
	CommonHashtags       []string
	CreatedAt            time.Time
}

// DiscoveredMedia is one post as returned by the discovery API.
type DiscoveredMedia struct {
	ID            string
	Caption       string
	LikeCount     *int
	CommentsCount int
	MediaType     string
	MediaURL      string
	ThumbnailURL  string
	Permalink     string
	PostedAt      *time.Time
}

// DiscoveredProfile is a profile (optionally with recent media) as returned
// by the discovery API.
type DiscoveredProfile struct {
	ID                string
	Handle            string
	Name              string
	FollowersCount    int
	FollowsCount      int
	MediaCount        int
	Biography         string
	Website           string
	ProfilePictureURL string
	IsVerified        bool
	Media             []DiscoveredMedia
}

// AccountValidation summarizes whether a handle can be analyzed. Exists and
// IsBusiness are nil when the check was indeterminate (rate limited or a
// transient API failure).
type AccountValidation struct {
	Valid      bool
	Exists     *bool
	IsBusiness *bool
	Error      string
}

// AnalyzeTaskPayload is the queued work item for one job.
type AnalyzeTaskPayload struct {
	JobID             string   `json:"job_id"`
	BrandHandle       string   `json:"brand_username"`
	InfluencerHandles []string `json:"influencer_usernames"`
}

// Repositories (ports)

type JobRepository interface {
	Create(ctx context.Context, j Job) (string, error)
	Get(ctx context.Context, id string) (Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string, apiCallsUsed int) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

type ProfileRepository interface {
	Upsert(ctx context.Context, p Profile) (string, error)
	GetByHandle(ctx context.Context, kind ProfileKind, handle string) (Profile, error)
}

type ResultRepository interface {
	Create(ctx context.Context, r AnalysisResult) error
	ListByJob(ctx context.Context, jobID string) ([]AnalysisResult, error)
}

// MediaRepository persists fetched posts and per-profile hashtag counts.
type MediaRepository interface {
	ReplaceSnapshots(ctx context.Context, profileID string, kind ProfileKind, media []DiscoveredMedia) error
	UpsertHashtagCounts(ctx context.Context, profileID string, counts []HashtagCount) error
}

// Queue (port)

type Queue interface {
	EnqueueAnalyze(ctx context.Context, payload AnalyzeTaskPayload) (string, error)
}

// ProfileFetcher is the cached, rate-limited, retried discovery facade the
// pipeline consumes.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, handle string, mediaLimit int) (DiscoveredProfile, error)
	ValidateAccount(ctx context.Context, handle string) (AccountValidation, error)
}
