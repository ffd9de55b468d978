package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdh4601/ClosetBot/internal/adapter/cache"
	"github.com/jdh4601/ClosetBot/internal/domain"
	"github.com/jdh4601/ClosetBot/internal/service/ratelimiter"
)

func newTestService(t *testing.T, handler http.HandlerFunc, budget int) (*Service, *atomic.Int64) {
	t.Helper()
	var upstream atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstream.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "test-token", "1789", 5*time.Second)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.New(rdb, 6*time.Hour, time.Hour)
	l := ratelimiter.New(rdb, budget, time.Hour)
	return NewService(client, c, l, 0), &upstream
}

func discoveryOK(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `{"business_discovery":{
		"id":"9001","username":"acmewear","followers_count":12000,
		"media":{"data":[{"id":"m1","caption":"#minimal","comments_count":3,"like_count":50}]}}}`)
}

func TestService_FetchThenCacheHit(t *testing.T) {
	svc, upstream := newTestService(t, discoveryOK, 10)
	ctx, counter := domain.WithAPICallCounter(context.Background())

	p, err := svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)
	assert.Equal(t, "acmewear", p.Handle)
	require.Len(t, p.Media, 1)
	assert.Equal(t, int64(1), upstream.Load())
	assert.Equal(t, 1, counter.Count())

	// second lookup is fully served from cache
	p, err = svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)
	require.Len(t, p.Media, 1)
	assert.Equal(t, int64(1), upstream.Load())
	assert.Equal(t, 1, counter.Count())
}

func TestService_ProfileOnlyHitSkipsUpstream(t *testing.T) {
	svc, upstream := newTestService(t, discoveryOK, 10)
	ctx := context.Background()

	_, err := svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)

	// profile without media never needs the media tier
	p, err := svc.GetProfile(ctx, "acmewear", 0)
	require.NoError(t, err)
	assert.Empty(t, p.Media)
	assert.Equal(t, int64(1), upstream.Load())
}

func TestService_BudgetExhausted(t *testing.T) {
	svc, upstream := newTestService(t, discoveryOK, 1)
	ctx := context.Background()

	_, err := svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)

	// fresh handle, empty bucket, zero wait budget
	_, err = svc.GetProfile(ctx, "otherbrand", 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int64(1), upstream.Load())
}

func TestService_TerminalErrorPropagates(t *testing.T) {
	svc, upstream := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":80004}}`)
	}, 10)

	_, err := svc.GetProfile(context.Background(), "ghost", 20)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	// terminal errors never retry
	assert.Equal(t, int64(1), upstream.Load())
}

func TestService_ValidateAccount(t *testing.T) {
	svc, _ := newTestService(t, discoveryOK, 10)
	ctx, counter := domain.WithAPICallCounter(context.Background())

	v, err := svc.ValidateAccount(ctx, "acmewear")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 1, counter.Count())
}

func TestService_ValidateAccountBudgetExhausted(t *testing.T) {
	svc, upstream := newTestService(t, discoveryOK, 1)
	ctx := context.Background()

	_, err := svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)

	v, err := svc.ValidateAccount(ctx, "otherbrand")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Nil(t, v.Exists)
	assert.NotEmpty(t, v.Error)
	assert.Equal(t, int64(1), upstream.Load())
}

func TestService_InvalidateCache(t *testing.T) {
	svc, upstream := newTestService(t, discoveryOK, 10)
	ctx := context.Background()

	_, err := svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateCache(ctx, "acmewear"))

	_, err = svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), upstream.Load())
}

func TestService_LimiterStatus(t *testing.T) {
	svc, _ := newTestService(t, discoveryOK, 10)
	ctx := context.Background()

	_, err := svc.GetProfile(ctx, "acmewear", 20)
	require.NoError(t, err)

	st := svc.LimiterStatus(ctx)
	assert.Equal(t, 10, st.Capacity)
	assert.InDelta(t, 9.0, st.Tokens, 0.1)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "rate_limited", outcome(&domain.RateLimitedError{}))
	assert.Equal(t, "account_error", outcome(&domain.AccountNotFoundError{Handle: "x"}))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}
