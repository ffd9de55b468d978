package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jdh4601/ClosetBot/internal/adapter/cache"
	"github.com/jdh4601/ClosetBot/internal/config"
	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/internal/service/ratelimiter"
	"github.com/jdh4601/ClosetBot/internal/usecase"
)

// LimitsReporter exposes the discovery budget for the ops endpoint.
type LimitsReporter interface {
	LimiterStatus(ctx context.Context) ratelimiter.Status
}

// CacheStatsReporter exposes discovery cache entry counts for the ops endpoint.
type CacheStatsReporter interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Jobs       usecase.Jobs
	Limits     LimitsReporter
	CacheStats CacheStatsReporter
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, jobs usecase.Jobs, limits LimitsReporter, cacheStats CacheStatsReporter, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Jobs: jobs, Limits: limits, CacheStats: cacheStats, DBCheck: dbCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// SubmitHandler accepts a brand-to-influencers analysis request and queues it.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req struct {
			BrandUsername       string   `json:"brand_username" validate:"required"`
			InfluencerUsernames []string `json:"influencer_usernames" validate:"required,min=1,max=5"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
			return
		}

		job, err := s.Jobs.Submit(r.Context(), req.BrandUsername, req.InfluencerUsernames)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id":                       job.ID,
			"status":                       string(job.Status),
			"estimated_completion_minutes": estimatedMinutes(job),
			"created_at":                   job.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
}

// StatusHandler reports a job's lifecycle state and coarse progress.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		job, progress, err := s.Jobs.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		body := map[string]any{
			"job_id":              job.ID,
			"status":              string(job.Status),
			"progress":            progress,
			"api_calls_used":      job.APICallsUsed,
			"api_calls_estimated": job.APICallsEstimated,
			"created_at":          job.CreatedAt.UTC().Format(time.RFC3339),
		}
		if job.ErrorMessage != "" {
			body["error_message"] = job.ErrorMessage
		}
		if job.StartedAt != nil {
			body["started_at"] = job.StartedAt.UTC().Format(time.RFC3339)
		}
		if job.FinishedAt != nil {
			body["finished_at"] = job.FinishedAt.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// ResultsHandler returns the ranked matches of a completed job.
func (s *Server) ResultsHandler() http.HandlerFunc {
	type resultItem struct {
		InfluencerUsername string                `json:"influencer_username"`
		Followers          int                   `json:"followers"`
		AvgEngagementRate  float64               `json:"avg_engagement_rate"`
		SimilarityScore    int                   `json:"similarity_score"`
		EngagementScore    int                   `json:"engagement_score"`
		CategoryScore      int                   `json:"category_score"`
		FinalScore         int                   `json:"final_score"`
		Grade              string                `json:"grade"`
		TopPosts           []domain.PostSummary  `json:"top_posts"`
		CollabSignals      []domain.CollabSignal `json:"collab_signals"`
		CommonHashtags     []string              `json:"common_hashtags"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		job, results, err := s.Jobs.Results(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		items := make([]resultItem, 0, len(results))
		for _, res := range results {
			items = append(items, resultItem{
				InfluencerUsername: res.InfluencerHandle,
				Followers:          res.InfluencerFollowers,
				AvgEngagementRate:  res.InfluencerEngagement,
				SimilarityScore:    res.SimilarityScore,
				EngagementScore:    res.EngagementScore,
				CategoryScore:      res.CategoryScore,
				FinalScore:         res.FinalScore,
				Grade:              res.Grade,
				TopPosts:           emptyIfNilPosts(res.TopPosts),
				CollabSignals:      emptyIfNilSignals(res.CollabSignals),
				CommonHashtags:     emptyIfNilStrings(res.CommonHashtags),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":         job.ID,
			"brand_username": job.BrandHandle,
			"status":         string(job.Status),
			"api_calls_used": job.APICallsUsed,
			"results":        items,
		})
	}
}

// LimitsHandler exposes the shared discovery budget and cache occupancy for
// operators.
func (s *Server) LimitsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.Limits.LimiterStatus(r.Context())
		body := map[string]any{
			"discovery":      st,
			"window_seconds": int(st.Window.Seconds()),
		}
		if s.CacheStats != nil {
			if cst, err := s.CacheStats.Stats(r.Context()); err != nil {
				slog.Warn("cache stats unavailable", slog.Any("error", err))
			} else {
				body["cache"] = cst
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// HealthzHandler is the liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler probes the DB and Redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// estimatedMinutes is a coarse completion hint assuming every profile misses
// the cache and discovery calls pace out across the hourly budget.
func estimatedMinutes(job domain.Job) int {
	m := (job.APICallsEstimated + 1) / 2
	if m < 1 {
		m = 1
	}
	return m
}

func emptyIfNilPosts(v []domain.PostSummary) []domain.PostSummary {
	if v == nil {
		return []domain.PostSummary{}
	}
	return v
}

func emptyIfNilSignals(v []domain.CollabSignal) []domain.CollabSignal {
	if v == nil {
		return []domain.CollabSignal{}
	}
	return v
}

func emptyIfNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
